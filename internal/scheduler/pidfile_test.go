// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

//go:build !windows

package scheduler_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/strata-dev/strata/internal/scheduler"
	strataerr "github.com/strata-dev/strata/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIDFile_AcquireWritesPID(t *testing.T) {
	path := scheduler.PIDPath(t.TempDir())

	pf, err := scheduler.AcquirePIDFile(path)
	require.NoError(t, err)
	defer func() { _ = pf.Release() }()

	pid, err := scheduler.ReadPID(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
	assert.Equal(t, path, pf.Path())
}

func TestPIDFile_SecondAcquireIsAlreadyRunning(t *testing.T) {
	path := scheduler.PIDPath(t.TempDir())

	pf, err := scheduler.AcquirePIDFile(path)
	require.NoError(t, err)
	defer func() { _ = pf.Release() }()

	_, err = scheduler.AcquirePIDFile(path)
	require.Error(t, err)
	assert.True(t, strataerr.IsAlreadyRunning(err))
	assert.Equal(t, os.Getpid(), strataerr.FieldsOf(err)["pid"])
}

func TestPIDFile_ReleaseAllowsReacquire(t *testing.T) {
	path := scheduler.PIDPath(t.TempDir())

	pf, err := scheduler.AcquirePIDFile(path)
	require.NoError(t, err)
	require.NoError(t, pf.Release())
	require.NoError(t, pf.Release())

	_, err = scheduler.ReadPID(path)
	assert.True(t, strataerr.HasCode(err, strataerr.CodeDaemonNotRunning))

	pf, err = scheduler.AcquirePIDFile(path)
	require.NoError(t, err)
	require.NoError(t, pf.Release())
}

func TestPIDFile_ReleaseKeepsFileLocked(t *testing.T) {
	path := scheduler.PIDPath(t.TempDir())

	first, err := scheduler.AcquirePIDFile(path)
	require.NoError(t, err)
	before, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, first.Release())

	// The next daemon locks the same file, so a third cannot create a fresh
	// one beside it and slip past the lock.
	assert.FileExists(t, path)
	second, err := scheduler.AcquirePIDFile(path)
	require.NoError(t, err)
	defer func() { _ = second.Release() }()

	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, os.SameFile(before, after))

	_, err = scheduler.AcquirePIDFile(path)
	require.Error(t, err)
	assert.True(t, strataerr.IsAlreadyRunning(err))
}

func TestPIDFile_StaleFileIsTakenOver(t *testing.T) {
	path := scheduler.PIDPath(t.TempDir())
	require.NoError(t, os.WriteFile(path, []byte("999999999\n"), 0o600))

	pf, err := scheduler.AcquirePIDFile(path)
	require.NoError(t, err)
	defer func() { _ = pf.Release() }()

	pid, err := scheduler.ReadPID(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestReadPID_Garbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), scheduler.PIDFileName)
	require.NoError(t, os.WriteFile(path, []byte("not-a-pid"), 0o600))

	_, err := scheduler.ReadPID(path)
	require.Error(t, err)
	assert.False(t, strataerr.HasCode(err, strataerr.CodeDaemonNotRunning))
}

func TestStopDaemon_NoPIDFile(t *testing.T) {
	_, err := scheduler.StopDaemon(scheduler.PIDPath(t.TempDir()))
	require.Error(t, err)
	assert.True(t, strataerr.HasCode(err, strataerr.CodeDaemonNotRunning))
}
