// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

//go:build !windows

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-dev/strata/internal/scheduler"
	"github.com/strata-dev/strata/internal/store"
	strataerr "github.com/strata-dev/strata/pkg/errors"
)

func stubLauncher(t *testing.T, pid int) *scheduler.Launcher {
	t.Helper()
	var got scheduler.Launcher
	orig := launchDaemon
	launchDaemon = func(l scheduler.Launcher) (int, error) {
		got = l
		return pid, nil
	}
	t.Cleanup(func() { launchDaemon = orig })
	return &got
}

func TestDaemon_LaunchesDetachedRun(t *testing.T) {
	env := newTestEnv(t)
	got := stubLauncher(t, 4242)

	out := env.mustExecute(t, "daemon")
	assert.Contains(t, out, "Daemon started (pid 4242)")

	require.GreaterOrEqual(t, len(got.Args), 2)
	assert.Equal(t, []string{"daemon", "run"}, got.Args[:2])
	assert.Contains(t, got.Args, "--config")
	assert.Contains(t, got.Args, env.cfgPath)
	assert.Contains(t, got.Args, "--data-dir")
	assert.Contains(t, got.Args, env.dataDir)
	assert.NotContains(t, got.Args, "--verbose")
	assert.Equal(t, filepath.Join(env.dataDir, scheduler.LogFileName), got.LogPath)

	// The check lock is released before the child starts.
	_, err := scheduler.ReadPID(scheduler.PIDPath(env.dataDir))
	assert.True(t, strataerr.HasCode(err, strataerr.CodeDaemonNotRunning))
}

func TestDaemon_PassesVerbose(t *testing.T) {
	env := newTestEnv(t)
	got := stubLauncher(t, 1)

	env.mustExecute(t, "--verbose", "daemon")
	assert.Contains(t, got.Args, "--verbose")
}

func TestDaemon_RefusesWhileRunning(t *testing.T) {
	env := newTestEnv(t)
	got := stubLauncher(t, 1)

	pf, err := scheduler.AcquirePIDFile(scheduler.PIDPath(env.dataDir))
	require.NoError(t, err)
	t.Cleanup(func() { _ = pf.Release() })

	_, _, err = env.execute(t, "daemon")
	require.Error(t, err)
	assert.Equal(t, strataerr.ExitAlreadyRunning, strataerr.ExitCode(err))
	assert.Empty(t, got.Args, "nothing launched")
}

func TestDaemonStop_NotRunning(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.execute(t, "daemon", "stop")
	require.Error(t, err)
	assert.True(t, strataerr.HasCode(err, strataerr.CodeDaemonNotRunning))
}

func TestDaemonRun_CompressesUntilCancelled(t *testing.T) {
	env := newTestEnv(t)
	old := time.Now().UTC().AddDate(0, 0, -90).Format(time.RFC3339)
	env.mustExecute(t, "insert", "1", old, "42")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, _, err := env.executeContext(t, ctx, "daemon", "run")
		done <- result{out, err}
	}()

	st, err := store.Open(context.Background(), &store.StorageConfig{
		Backend: "sqlite",
		Path:    filepath.Join(env.dataDir, "strata.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	pidPath := scheduler.PIDPath(env.dataDir)
	require.Eventually(t, func() bool {
		pid, err := scheduler.ReadPID(pidPath)
		return err == nil && pid == os.Getpid()
	}, 5*time.Second, 20*time.Millisecond, "daemon never wrote its pid file")

	require.Eventually(t, func() bool {
		buckets, err := st.Buckets().List(context.Background(), store.DayRange{})
		return err == nil && len(buckets) == 1
	}, 5*time.Second, 20*time.Millisecond, "daemon never compressed")

	cancel()
	select {
	case res := <-done:
		require.NoError(t, res.err)
		assert.Contains(t, res.out, "Daemon stopped (last success 20")
		assert.Contains(t, res.out, "0 consecutive failure(s)")
	case <-time.After(5 * time.Second):
		t.Fatal("daemon run did not return after cancel")
	}
	_, err = scheduler.ReadPID(pidPath)
	assert.True(t, strataerr.HasCode(err, strataerr.CodeDaemonNotRunning))

	// The lease was released on the way out.
	_, err = st.Leases().Get(context.Background(), scheduler.LeaseName)
	assert.True(t, strataerr.IsNotFound(err))
}
