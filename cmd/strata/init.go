// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/strata-dev/strata/internal/config"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the configuration file and the store schema",
		Long: "Write a default configuration file if none exists, then create the store " +
			"schema. Running init again is safe.",
		Args: exactArgs(0),
		RunE: a.run(func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			path, err := initConfigPath(a.cfgPath)
			if err != nil {
				return err
			}
			if path != "" {
				wrote, err := config.Bootstrap(path)
				if err != nil {
					return err
				}
				if wrote {
					_, _ = fmt.Fprintf(out, "Wrote default config to %s\n", path)
				}
				a.cfgPath = path
			}

			if _, err := a.openStore(cmd); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "Initialized %s store (data dir %s)\n", a.cfg.Database.Backend, a.cfg.DataDir)
			return nil
		}),
	}
}

// initConfigPath picks where init bootstraps a config file: the --config
// path, or the per-user default when no file exists in the search paths.
// An empty result means an existing file is used as is.
func initConfigPath(flagPath string) (string, error) {
	if flagPath != "" {
		if _, err := os.Stat(flagPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		return flagPath, nil
	}
	if _, err := config.Find(); err == nil {
		return "", nil
	}
	return config.DefaultConfigPath()
}
