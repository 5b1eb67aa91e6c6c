// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/strata-dev/strata/internal/scheduler"
	strataerr "github.com/strata-dev/strata/pkg/errors"
)

// launchDaemon starts the detached child. Tests replace it.
var launchDaemon = func(l scheduler.Launcher) (int, error) {
	return l.Launch()
}

func newDaemonCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Start background compression as a detached process",
		Long: "Start `strata daemon run` in its own session with output appended to " +
			"<data_dir>/strata-daemon.log, then return. The daemon compresses on every " +
			"scheduler.interval and also purges when retention.purge is set.",
		Args: exactArgs(0),
		RunE: a.run(func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}

			// Fail here rather than in the detached child's log.
			pidPath := scheduler.PIDPath(cfg.DataDir)
			held, err := scheduler.AcquirePIDFile(pidPath)
			if err != nil {
				return err
			}
			if err := held.Release(); err != nil {
				return strataerr.Wrap(err, strataerr.CodeDaemonLaunchFailure, "releasing pid file lock")
			}

			args := []string{"daemon", "run"}
			if cfgFile, err := filepath.Abs(cfg.File()); err == nil {
				args = append(args, "--config", cfgFile)
			}
			if dataDir, err := filepath.Abs(cfg.DataDir); err == nil {
				args = append(args, "--data-dir", dataDir)
			}
			if a.verbose {
				args = append(args, "--verbose")
			}

			logPath := filepath.Join(cfg.DataDir, scheduler.LogFileName)
			pid, err := launchDaemon(scheduler.Launcher{Args: args, LogPath: logPath})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Daemon started (pid %d), logging to %s\n", pid, logPath)
			return err
		}),
	}

	cmd.AddCommand(newDaemonRunCmd(a), newDaemonStopCmd(a))
	return cmd
}

func newDaemonRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run background compression in the foreground until interrupted",
		Args:  exactArgs(0),
		RunE: a.run(func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}

			pf, err := scheduler.AcquirePIDFile(scheduler.PIDPath(cfg.DataDir))
			if err != nil {
				return err
			}
			defer func() {
				if err := pf.Release(); err != nil {
					a.log.Warn("releasing pid file", "path", pf.Path(), "error", err)
				}
			}()

			sched, err := a.newScheduler(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := sched.Start(ctx); err != nil {
				return err
			}
			a.log.Info("daemon running", "pid", os.Getpid(), "pid_file", pf.Path(), "owner", sched.Owner())

			<-ctx.Done()
			sched.Stop()

			mon := sched.Monitor()
			status := mon.Status()
			if !mon.Healthy(timeNow(), 2*cfg.Scheduler.Interval) {
				a.log.Warn("daemon stopped without a recent successful run",
					"last_success", status.LastSuccess, "consecutive_failures", status.ConsecutiveFailures,
					"last_error", status.LastError)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Daemon stopped (last success %s, %d consecutive failure(s))\n",
				formatTime(status.LastSuccess), status.ConsecutiveFailures)
			return err
		}),
	}
}

func newDaemonStopCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Ask the running daemon to shut down",
		Args:  exactArgs(0),
		RunE: a.run(func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}
			pid, err := scheduler.StopDaemon(scheduler.PIDPath(cfg.DataDir))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Sent stop signal to daemon (pid %d)\n", pid)
			return err
		}),
	}
}
