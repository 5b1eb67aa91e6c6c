// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package config

import (
	_ "embed"
	"os"
	"path/filepath"

	strataerr "github.com/strata-dev/strata/pkg/errors"
)

//go:embed strata.yaml.default
var DefaultConfigYAML []byte

// DefaultConfigPath returns ~/.config/strata/strata.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", strataerr.Errorf(strataerr.CodeConfigLoadReadFailure, "resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "strata", FileName), nil
}

// Bootstrap writes the default commented configuration to path unless a
// file already exists there. It reports whether it wrote the file.
func Bootstrap(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return false, strataerr.Errorf(strataerr.CodeConfigLoadReadFailure, "creating config directory: %w", err)
	}
	if err := os.WriteFile(path, DefaultConfigYAML, 0o600); err != nil {
		return false, strataerr.Errorf(strataerr.CodeConfigLoadReadFailure, "writing default config %s: %w", path, err)
	}
	return true, nil
}
