// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

//go:build windows

package scheduler

import (
	"errors"
	"os"
	"syscall"

	"golang.org/x/sys/windows"

	strataerr "github.com/strata-dev/strata/pkg/errors"
)

func lockFile(f *os.File) (bool, error) {
	ol := new(windows.Overlapped)
	err := windows.LockFileEx(windows.Handle(f.Fd()),
		windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY, 0, 1, 0, ol)
	if errors.Is(err, windows.ERROR_LOCK_VIOLATION) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func signalStop(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return strataerr.New(strataerr.CodeDaemonNotRunning, "daemon is not running",
			strataerr.Field("pid", pid))
	}
	if err := proc.Kill(); err != nil {
		return strataerr.Wrapf(err, strataerr.CodeCLIInternalFailure, "stopping daemon %d", pid)
	}
	return nil
}

func detachAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		CreationFlags: windows.DETACHED_PROCESS | windows.CREATE_NEW_PROCESS_GROUP,
		HideWindow:    true,
	}
}
