// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/strata-dev/strata/internal/ingest"
)

// timeNow is the clock commands read; tests may pin it.
var timeNow = time.Now

// nowFlag returns --now, or the current time when it is unset.
func nowFlag(cmd *cobra.Command) (time.Time, error) {
	raw, _ := cmd.Flags().GetString("now")
	if raw == "" {
		return timeNow().UTC(), nil
	}
	return ingest.ParseTimestamp(raw)
}

func newCompressCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compress",
		Short: "Roll aged readings up into daily buckets",
		Long: "Aggregate every reading older than the retention window into one bucket per UTC " +
			"day. Raw readings are kept. Running compress again recomputes the same buckets.",
		Args: exactArgs(0),
		RunE: a.run(func(cmd *cobra.Command, _ []string) error {
			now, err := nowFlag(cmd)
			if err != nil {
				return err
			}
			engine, err := a.retentionEngine(cmd)
			if err != nil {
				return err
			}

			res, err := engine.Compress(cmd.Context(), now)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(),
				"Compressed %d day(s) from %d reading(s) before %s (%d frozen day(s) skipped)\n",
				res.Days, res.Readings, formatTime(res.Cutoff), res.Frozen)
			return err
		}),
	}

	cmd.Flags().String("now", "", "evaluate the retention window at this instant instead of now")
	return cmd
}
