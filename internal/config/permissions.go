// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

//go:build !windows

package config

import (
	"io/fs"
	"log/slog"
	"os"
)

// WarnInsecurePermissions logs a warning when the config file at path is
// readable by group or others, since it may carry the database password.
// It reports whether it warned. Startup continues either way.
func WarnInsecurePermissions(log *slog.Logger, path string) bool {
	if path == "" {
		return false
	}

	info, err := os.Stat(path)
	if err != nil {
		log.Debug("could not stat config file for permission check", "path", path, "error", err)
		return false
	}

	const groupOrOtherRead fs.FileMode = 0o044
	perm := info.Mode().Perm()
	if perm&groupOrOtherRead == 0 {
		return false
	}

	log.Warn("config file has insecure permissions, the database password may be readable by other users",
		"path", path,
		"mode", perm,
		"recommended", "0600",
	)
	return true
}
