// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package main

import (
	"fmt"
	"os"
	"strings"

	strataerr "github.com/strata-dev/strata/pkg/errors"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "strata: "+oneLine(err.Error()))
		os.Exit(strataerr.ExitCode(err))
	}
}

// oneLine keeps a failed command to a single stderr line.
func oneLine(msg string) string {
	return strings.Join(strings.Fields(msg), " ")
}
