// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/strata-dev/strata/internal/scheduler"
	"github.com/strata-dev/strata/internal/vectorindex/sqlitevec"
	strataerr "github.com/strata-dev/strata/pkg/errors"
)

type statusReport struct {
	Backend         string `json:"backend" yaml:"backend"`
	DataDir         string `json:"data_dir" yaml:"data_dir"`
	Readings        int64  `json:"readings" yaml:"readings"`
	OldestReading   string `json:"oldest_reading" yaml:"oldest_reading"`
	NewestReading   string `json:"newest_reading" yaml:"newest_reading"`
	Buckets         int64  `json:"buckets" yaml:"buckets"`
	PurgedBuckets   int64  `json:"purged_buckets" yaml:"purged_buckets"`
	RetentionWindow string `json:"retention_window" yaml:"retention_window"`
	LeaseOwner      string `json:"lease_owner,omitempty" yaml:"lease_owner,omitempty"`
	LeaseExpires    string `json:"lease_expires,omitempty" yaml:"lease_expires,omitempty"`
	DaemonPID       int    `json:"daemon_pid,omitempty" yaml:"daemon_pid,omitempty"`
	VectorIndex     string `json:"vector_index" yaml:"vector_index"`
	VectorDimension int    `json:"vector_dimension" yaml:"vector_dimension"`
}

func newStatusCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show store counts, the compression lease, the daemon and the vector index",
		Args:  exactArgs(0),
		RunE: a.run(func(cmd *cobra.Command, _ []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			st, err := a.openStore(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			cfg := a.cfg

			stats, err := st.Stats(ctx)
			if err != nil {
				return err
			}
			report := statusReport{
				Backend:         cfg.Database.Backend,
				DataDir:         cfg.DataDir,
				Readings:        stats.Readings,
				OldestReading:   formatTime(stats.OldestReading),
				NewestReading:   formatTime(stats.NewestReading),
				Buckets:         stats.Buckets,
				PurgedBuckets:   stats.PurgedBuckets,
				RetentionWindow: cfg.Retention.Window.String(),
				VectorIndex:     "absent",
			}

			lease, err := st.Leases().Get(ctx, scheduler.LeaseName)
			switch {
			case err == nil && !lease.Expired(timeNow()):
				report.LeaseOwner = lease.Owner
				report.LeaseExpires = formatTime(lease.ExpiresAt)
			case err != nil && !strataerr.IsNotFound(err):
				return err
			}

			if pid, err := scheduler.ReadPID(scheduler.PIDPath(cfg.DataDir)); err == nil {
				report.DaemonPID = pid
			}

			if path := cfg.VectorPath(); sqlitevec.Exists(path) {
				idx, err := a.vectorIndex(cmd)
				if err != nil {
					return err
				}
				report.VectorIndex = path
				report.VectorDimension = idx.Dimension()
			}

			return render(cmd.OutOrStdout(), format, statusTable(report))
		}),
	}

	addOutputFlag(cmd)
	return cmd
}

func statusTable(r statusReport) tabular {
	lease := "free"
	if r.LeaseOwner != "" {
		lease = r.LeaseOwner + " until " + r.LeaseExpires
	}
	daemon := "not running"
	if r.DaemonPID != 0 {
		daemon = "pid " + strconv.Itoa(r.DaemonPID)
	}
	dim := "-"
	if r.VectorDimension > 0 {
		dim = strconv.Itoa(r.VectorDimension)
	}

	return tabular{
		headers: []string{"FIELD", "VALUE"},
		rows: [][]string{
			{"backend", r.Backend},
			{"data dir", r.DataDir},
			{"readings", strconv.FormatInt(r.Readings, 10)},
			{"oldest reading", r.OldestReading},
			{"newest reading", r.NewestReading},
			{"buckets", strconv.FormatInt(r.Buckets, 10)},
			{"purged buckets", strconv.FormatInt(r.PurgedBuckets, 10)},
			{"retention window", r.RetentionWindow},
			{"compression lease", lease},
			{"daemon", daemon},
			{"vector index", r.VectorIndex},
			{"vector dimension", dim},
		},
		data: r,
	}
}
