// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	strataerr "github.com/strata-dev/strata/pkg/errors"
)

func newPurgeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge --confirm",
		Short: "Delete raw readings already rolled up into buckets",
		Long: "Delete the raw readings of every compressed day older than the retention window " +
			"whose bucket still accounts for all of them, then freeze the bucket. Days with " +
			"readings the bucket does not cover are skipped until they are compressed again.",
		Args: exactArgs(0),
		RunE: a.run(func(cmd *cobra.Command, _ []string) error {
			if ok, _ := cmd.Flags().GetBool("confirm"); !ok {
				return strataerr.New(strataerr.CodeCLIInputInvalid,
					"purge permanently deletes raw readings; pass --confirm to proceed")
			}
			now, err := nowFlag(cmd)
			if err != nil {
				return err
			}
			engine, err := a.retentionEngine(cmd)
			if err != nil {
				return err
			}

			res, err := engine.Purge(cmd.Context(), now)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(),
				"Purged %d day(s), deleted %d reading(s), skipped %d day(s) needing recompression\n",
				res.Days, res.Rows, res.Skipped)
			return err
		}),
	}

	cmd.Flags().Bool("confirm", false, "confirm deleting raw readings")
	cmd.Flags().String("now", "", "evaluate the retention window at this instant instead of now")
	return cmd
}
