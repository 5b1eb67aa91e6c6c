// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

//go:build !windows

package scheduler

import (
	"errors"
	"os"
	"syscall"

	"golang.org/x/sys/unix"

	strataerr "github.com/strata-dev/strata/pkg/errors"
)

// lockFile takes a non-blocking exclusive flock. It reports false when
// another process holds the lock.
func lockFile(f *os.File) (bool, error) {
	err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if errors.Is(err, unix.EWOULDBLOCK) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func signalStop(pid int) error {
	err := unix.Kill(pid, unix.SIGTERM)
	if errors.Is(err, unix.ESRCH) {
		return strataerr.New(strataerr.CodeDaemonNotRunning, "daemon is not running",
			strataerr.Field("pid", pid))
	}
	if err != nil {
		return strataerr.Wrapf(err, strataerr.CodeCLIInternalFailure, "signalling daemon %d", pid)
	}
	return nil
}

func detachAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}
