// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	strataerr "github.com/strata-dev/strata/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Help(t *testing.T) {
	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"--help"})

	require.NoError(t, root.Execute())
	for _, name := range []string{
		"init", "insert", "query", "compress", "purge", "buckets", "daemon",
		"vector-add", "vector-search", "vector-reset", "status", "secret", "version",
	} {
		assert.Contains(t, buf.String(), name)
	}
}

func TestVersionCommand(t *testing.T) {
	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "strata dev")
}

func TestMissingConfigIsFatal(t *testing.T) {
	env := newTestEnv(t)
	env.cfgPath = filepath.Join(env.dir, "absent.yaml")

	_, _, err := env.execute(t, "insert", "1", "2026-03-01T00:00:00Z", "1")
	require.Error(t, err)
	assert.Equal(t, strataerr.ClassFatal, strataerr.Classify(err))
	assert.Equal(t, strataerr.ExitFailure, strataerr.ExitCode(err))
}

func TestBadConfigIsFatal(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"malformed", "database: [unclosed\n"},
		{"invalid value", "retention:\n  window: -1h\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			require.NoError(t, os.WriteFile(env.cfgPath, []byte("data_dir: "+env.dataDir+"\n"+tt.content), 0o600))

			_, _, err := env.execute(t, "insert", "1", "2026-03-01T00:00:00Z", "1")
			require.Error(t, err)
			assert.Equal(t, strataerr.ClassFatal, strataerr.Classify(err))
			assert.Equal(t, strataerr.ExitFailure, strataerr.ExitCode(err))
		})
	}
}

func TestUnknownFlagIsInvalidInput(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.execute(t, "query", "--bogus")
	require.Error(t, err)
	assert.Equal(t, strataerr.ExitInvalidInput, strataerr.ExitCode(err))
}

func TestOneLine(t *testing.T) {
	assert.Equal(t, "a b c", oneLine("a\n  b\tc\n"))
}
