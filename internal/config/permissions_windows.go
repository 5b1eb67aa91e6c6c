// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

//go:build windows

package config

import "log/slog"

// WarnInsecurePermissions is a no-op on Windows, where ACLs rather than
// mode bits control access.
func WarnInsecurePermissions(log *slog.Logger, path string) bool {
	if path != "" {
		log.Debug("config permission check not implemented on Windows", "path", path)
	}
	return false
}
