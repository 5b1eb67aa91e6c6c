// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func init() {
	// Never touch the real OS keyring from tests.
	keyring.MockInit()
}

// testEnv is an isolated data directory with its own config file.
type testEnv struct {
	dir     string
	cfgPath string
	dataDir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)

	env := &testEnv{
		dir:     dir,
		cfgPath: filepath.Join(dir, "strata.yaml"),
		dataDir: filepath.Join(dir, "data"),
	}
	content := "data_dir: " + env.dataDir + "\nlog:\n  level: warn\n"
	require.NoError(t, os.WriteFile(env.cfgPath, []byte(content), 0o600))
	return env
}

// execute runs one strata invocation against env and returns stdout and
// stderr.
func (e *testEnv) execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return e.executeContext(t, context.Background(), args...)
}

func (e *testEnv) executeContext(t *testing.T, ctx context.Context, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--config", e.cfgPath}, args...))
	err := root.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

// mustExecute runs a command that has to succeed and returns stdout.
func (e *testEnv) mustExecute(t *testing.T, args ...string) string {
	t.Helper()
	out, stderr, err := e.execute(t, args...)
	require.NoError(t, err, "strata %v\nstderr: %s", args, stderr)
	return out
}
