// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package scheduler

import (
	"os"
	"os/exec"
	"path/filepath"

	"github.com/strata-dev/strata/internal/logging"
	strataerr "github.com/strata-dev/strata/pkg/errors"
)

// LogFileName is the daemon log file inside the data directory.
const LogFileName = "strata-daemon.log"

// Launcher starts the foreground daemon as a detached child process.
type Launcher struct {
	// Executable defaults to the running binary.
	Executable string
	// Args are passed to the child, for example "daemon", "run".
	Args []string
	// LogPath receives the child's stdout and stderr.
	LogPath string
	// Env is appended to the parent environment.
	Env []string
}

// Launch starts the child in its own session with stdio redirected to
// LogPath and returns its pid. The child is not waited for. Any failure is
// reported as CodeDaemonLaunchFailure.
func (l Launcher) Launch() (int, error) {
	exe := l.Executable
	if exe == "" {
		self, err := os.Executable()
		if err != nil {
			return 0, strataerr.Wrap(err, strataerr.CodeDaemonLaunchFailure, "resolving executable")
		}
		exe = self
	}

	if err := os.MkdirAll(filepath.Dir(l.LogPath), 0o700); err != nil {
		return 0, strataerr.Wrap(err, strataerr.CodeDaemonLaunchFailure, "creating log directory")
	}
	logFile, err := os.OpenFile(l.LogPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return 0, strataerr.Wrapf(err, strataerr.CodeDaemonLaunchFailure, "opening daemon log %s", l.LogPath)
	}
	defer func() { _ = logFile.Close() }()

	cmd := exec.Command(exe, l.Args...)
	cmd.Stdin = nil
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Env = append(os.Environ(), l.Env...)
	cmd.SysProcAttr = detachAttr()

	if err := cmd.Start(); err != nil {
		return 0, strataerr.Wrapf(err, strataerr.CodeDaemonLaunchFailure, "starting %s", exe)
	}

	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		logging.Component("scheduler").Warn("releasing daemon process handle", "pid", pid, "error", err)
	}
	logging.Component("scheduler").Info("daemon launched", "pid", pid, "log", l.LogPath)
	return pid, nil
}
