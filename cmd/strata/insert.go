// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strata-dev/strata/internal/ingest"
)

func newInsertCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "insert <sensor_id> <timestamp> <value>",
		Short: "Store one sensor reading",
		Long: "Store one reading. The timestamp may be RFC 3339, \"YYYY-MM-DD HH:MM:SS\" " +
			"(UTC unless a zone is given) or unix seconds. A reading with the same sensor " +
			"and timestamp is rejected.",
		Example: `  strata insert 7 2026-03-01T12:00:00Z 21.5
  strata insert 7 "2026-03-01 12:00:00" 21.5`,
		Args: exactArgs(3),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			reading, err := ingest.ParseReading(args[0], args[1], args[2])
			if err != nil {
				return err
			}

			mgr, err := a.ingestManager(cmd)
			if err != nil {
				return err
			}
			stored, err := mgr.Insert(cmd.Context(), reading)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Inserted reading: sensor=%d timestamp=%s value=%s\n",
				stored.SensorID, formatTime(stored.Timestamp), formatFloat(stored.Value))
			return err
		}),
	}
}
