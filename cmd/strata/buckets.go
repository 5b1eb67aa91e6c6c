// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/strata-dev/strata/internal/ingest"
	"github.com/strata-dev/strata/internal/store"
)

type bucketRow struct {
	Day          string  `json:"day" yaml:"day"`
	AvgValue     float64 `json:"avg_value" yaml:"avg_value"`
	MinValue     float64 `json:"min_value" yaml:"min_value"`
	MaxValue     float64 `json:"max_value" yaml:"max_value"`
	SampleCount  int64   `json:"sample_count" yaml:"sample_count"`
	CompressedAt string  `json:"compressed_at" yaml:"compressed_at"`
	PurgedAt     string  `json:"purged_at,omitempty" yaml:"purged_at,omitempty"`
}

func newBucketsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "buckets [from] [to]",
		Short: "List daily buckets, optionally limited to a day range",
		Args:  rangeArgs(0, 2),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}

			var from, to time.Time
			if len(args) > 0 {
				if from, err = ingest.ParseTimestamp(args[0]); err != nil {
					return err
				}
				from = store.DayOf(from)
			}
			if len(args) > 1 {
				if to, err = ingest.ParseTimestamp(args[1]); err != nil {
					return err
				}
				to = store.DayOf(to)
			}

			engine, err := a.retentionEngine(cmd)
			if err != nil {
				return err
			}
			buckets, err := engine.Buckets(cmd.Context(), from, to)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(buckets) == 0 && format == outputTable {
				_, err := fmt.Fprintln(out, "No buckets.")
				return err
			}

			data := make([]bucketRow, 0, len(buckets))
			t := tabular{headers: []string{"DAY", "AVG", "MIN", "MAX", "SAMPLES", "COMPRESSED", "PURGED"}}
			for _, b := range buckets {
				row := bucketRow{
					Day:          b.Day.Format(time.DateOnly),
					AvgValue:     b.AvgValue,
					MinValue:     b.MinValue,
					MaxValue:     b.MaxValue,
					SampleCount:  b.SampleCount,
					CompressedAt: formatTime(b.CompressedAt),
				}
				purged := "-"
				if b.PurgedAt != nil {
					row.PurgedAt = formatTime(*b.PurgedAt)
					purged = row.PurgedAt
				}
				data = append(data, row)
				t.rows = append(t.rows, []string{
					row.Day, formatFloat(b.AvgValue), formatFloat(b.MinValue), formatFloat(b.MaxValue),
					strconv.FormatInt(b.SampleCount, 10), row.CompressedAt, purged,
				})
			}
			t.data = data
			return render(out, format, t)
		}),
	}

	addOutputFlag(cmd)
	return cmd
}
