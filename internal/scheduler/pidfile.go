// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package scheduler

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	strataerr "github.com/strata-dev/strata/pkg/errors"
)

// PIDFileName is the daemon pid file inside the data directory.
const PIDFileName = "strata-daemon.pid"

// PIDFile is an exclusively locked pid file held by a running daemon.
type PIDFile struct {
	path string
	f    *os.File
}

// PIDPath returns the pid file location for dataDir.
func PIDPath(dataDir string) string {
	return filepath.Join(dataDir, PIDFileName)
}

// AcquirePIDFile locks path and writes the current pid into it. A file
// locked by another live process fails with CodeSchedulerAlreadyRunning.
func AcquirePIDFile(path string) (*PIDFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, strataerr.Wrapf(err, strataerr.CodeDaemonLaunchFailure, "creating pid file directory")
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, strataerr.Wrapf(err, strataerr.CodeDaemonLaunchFailure, "opening pid file %s", path)
	}

	locked, err := lockFile(f)
	if err != nil {
		_ = f.Close()
		return nil, strataerr.Wrapf(err, strataerr.CodeDaemonLaunchFailure, "locking pid file %s", path)
	}
	if !locked {
		_ = f.Close()
		pid, _ := ReadPID(path)
		return nil, strataerr.New(strataerr.CodeSchedulerAlreadyRunning, "daemon is already running",
			strataerr.Field("pid", pid), strataerr.Field("pid_file", path))
	}

	if err := f.Truncate(0); err != nil {
		_ = f.Close()
		return nil, strataerr.Wrapf(err, strataerr.CodeDaemonLaunchFailure, "truncating pid file")
	}
	if _, err := f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0); err != nil {
		_ = f.Close()
		return nil, strataerr.Wrapf(err, strataerr.CodeDaemonLaunchFailure, "writing pid file")
	}

	return &PIDFile{path: path, f: f}, nil
}

// Path returns the file location.
func (p *PIDFile) Path() string { return p.path }

// Release empties the file and drops the lock. The file itself stays so
// every later acquirer locks the same inode.
func (p *PIDFile) Release() error {
	if p.f == nil {
		return nil
	}
	truncErr := p.f.Truncate(0)
	closeErr := p.f.Close()
	p.f = nil
	if truncErr != nil {
		return strataerr.Wrapf(truncErr, strataerr.CodeCLIInternalFailure, "emptying pid file %s", p.path)
	}
	return closeErr
}

// ReadPID returns the pid recorded in path. A missing or empty file fails
// with CodeDaemonNotRunning.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, strataerr.New(strataerr.CodeDaemonNotRunning, "daemon is not running",
			strataerr.Field("pid_file", path))
	}
	if err != nil {
		return 0, strataerr.Wrapf(err, strataerr.CodeCLIInternalFailure, "reading pid file %s", path)
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return 0, strataerr.New(strataerr.CodeDaemonNotRunning, "daemon is not running",
			strataerr.Field("pid_file", path))
	}
	pid, err := strconv.Atoi(text)
	if err != nil || pid <= 0 {
		return 0, strataerr.Errorf(strataerr.CodeCLIInternalFailure, "pid file %s holds %q", path, text)
	}
	return pid, nil
}

// StopDaemon asks the daemon recorded in the pid file to shut down.
func StopDaemon(path string) (int, error) {
	pid, err := ReadPID(path)
	if err != nil {
		return 0, err
	}
	if err := signalStop(pid); err != nil {
		return pid, err
	}
	return pid, nil
}
