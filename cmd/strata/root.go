// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package main

import (
	"github.com/spf13/cobra"

	strataerr "github.com/strata-dev/strata/pkg/errors"
)

// NewRootCmd creates the root strata command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := newApp()

	root := &cobra.Command{
		Use:   "strata",
		Short: "Sensor reading store with daily rollups and a vector index",
		Long: "strata stores timestamped sensor readings, rolls aged readings up into daily " +
			"buckets, and keeps a nearest-neighbor index over fixed-dimension vectors.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags.
	root.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "", "path to config file")
	root.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "override data_dir from the config file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log at debug level")

	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return strataerr.Errorf(strataerr.CodeCLIInputInvalid, "%v", err)
	})

	root.AddCommand(
		newInitCmd(a),
		newInsertCmd(a),
		newQueryCmd(a),
		newCompressCmd(a),
		newPurgeCmd(a),
		newBucketsCmd(a),
		newDaemonCmd(a),
		newVectorAddCmd(a),
		newVectorSearchCmd(a),
		newVectorResetCmd(a),
		newStatusCmd(a),
		newSecretCmd(),
		newVersionCmd(),
	)

	return root
}

// exactArgs is cobra.ExactArgs with an invalid-input error code.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return strataerr.Errorf(strataerr.CodeCLIInputInvalid,
				"%s: accepts %d arg(s), received %d", cmd.Name(), n, len(args))
		}
		return nil
	}
}

// rangeArgs is cobra.RangeArgs with an invalid-input error code.
func rangeArgs(minArgs, maxArgs int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < minArgs || len(args) > maxArgs {
			return strataerr.Errorf(strataerr.CodeCLIInputInvalid,
				"%s: accepts between %d and %d arg(s), received %d", cmd.Name(), minArgs, maxArgs, len(args))
		}
		return nil
	}
}

// minimumArgs is cobra.MinimumNArgs with an invalid-input error code.
func minimumArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < n {
			return strataerr.Errorf(strataerr.CodeCLIInputInvalid,
				"%s: requires at least %d arg(s), received %d", cmd.Name(), n, len(args))
		}
		return nil
	}
}
