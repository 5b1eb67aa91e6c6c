// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/strata-dev/strata/internal/ingest"
)

type readingRow struct {
	SensorID  int64   `json:"sensor_id" yaml:"sensor_id"`
	Timestamp string  `json:"timestamp" yaml:"timestamp"`
	Value     float64 `json:"value" yaml:"value"`
}

func newQueryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <start> <end>",
		Short: "List readings between two instants, inclusive",
		Args:  exactArgs(2),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			start, err := ingest.ParseTimestamp(args[0])
			if err != nil {
				return err
			}
			end, err := ingest.ParseTimestamp(args[1])
			if err != nil {
				return err
			}

			var sensor *int64
			if raw, _ := cmd.Flags().GetString("sensor"); raw != "" {
				id, err := ingest.ParseSensorID(raw)
				if err != nil {
					return err
				}
				sensor = &id
			}

			mgr, err := a.ingestManager(cmd)
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")
			readings, err := mgr.Query(cmd.Context(), start, end, sensor, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(readings) == 0 && format == outputTable {
				_, err := fmt.Fprintln(out, "No readings.")
				return err
			}

			data := make([]readingRow, 0, len(readings))
			t := tabular{headers: []string{"SENSOR", "TIMESTAMP", "VALUE"}}
			for _, r := range readings {
				ts := formatTime(r.Timestamp)
				t.rows = append(t.rows, []string{strconv.FormatInt(r.SensorID, 10), ts, formatFloat(r.Value)})
				data = append(data, readingRow{SensorID: r.SensorID, Timestamp: ts, Value: r.Value})
			}
			t.data = data
			return render(out, format, t)
		}),
	}

	cmd.Flags().String("sensor", "", "only readings of this sensor id")
	cmd.Flags().Int("limit", 0, "return at most this many readings (0 for all)")
	addOutputFlag(cmd)
	return cmd
}
