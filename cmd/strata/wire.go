// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/strata-dev/strata/internal/config"
	"github.com/strata-dev/strata/internal/ingest"
	"github.com/strata-dev/strata/internal/logging"
	"github.com/strata-dev/strata/internal/retention"
	"github.com/strata-dev/strata/internal/scheduler"
	"github.com/strata-dev/strata/internal/secrets"
	"github.com/strata-dev/strata/internal/store"
	_ "github.com/strata-dev/strata/internal/store/postgres" // register postgres backend
	_ "github.com/strata-dev/strata/internal/store/sqlite"   // register sqlite backend
	"github.com/strata-dev/strata/internal/vectorindex"
	"github.com/strata-dev/strata/internal/vectorindex/sqlitevec"
	strataerr "github.com/strata-dev/strata/pkg/errors"
)

// secretStoreFactory creates a secrets.Store. It is a package-level variable
// so tests can substitute a mock implementation.
var secretStoreFactory = func() secrets.Store {
	return secrets.NewKeyringStore()
}

// app holds the state one command invocation wires up. The vector index
// manager lives here rather than in a package variable.
type app struct {
	cfgPath string
	dataDir string
	verbose bool

	cfg     *config.Config
	store   store.Store
	vectors *vectorindex.Manager
	log     *slog.Logger
}

func newApp() *app {
	return &app{}
}

// run wraps a command body so the store and vector index are closed when
// it returns.
func (a *app) run(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := fn(cmd, args)
		if closeErr := a.Close(); err == nil {
			err = closeErr
		}
		return err
	}
}

// loadConfig loads and validates the configuration once and installs the
// process logger on the command's stderr.
func (a *app) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}

	overrides := map[string]any{}
	if a.dataDir != "" {
		overrides["data_dir"] = a.dataDir
	}
	if a.verbose {
		overrides["log.level"] = "debug"
	}

	cfg, err := config.Load(a.cfgPath, config.LoadOptions{
		Secrets:   secretStoreFactory(),
		Overrides: overrides,
	})
	if err != nil {
		return nil, err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	logging.Init(cmd.ErrOrStderr(), level, cfg.Log.Format == "json")
	a.log = logging.Component("cli")
	config.WarnInsecurePermissions(a.log, cfg.File())

	a.cfg = cfg
	return cfg, nil
}

// openStore opens the configured store and brings its schema up to date.
func (a *app) openStore(cmd *cobra.Command) (store.Store, error) {
	if a.store != nil {
		return a.store, nil
	}

	cfg, err := a.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, strataerr.Errorf(strataerr.CodeCLISetupFailure, "creating data directory %s: %w", cfg.DataDir, err)
	}

	ctx := cmd.Context()
	st, err := store.Open(ctx, cfg.Storage())
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}

	a.log.Debug("store opened", "backend", cfg.Database.Backend)
	a.store = st
	return st, nil
}

func (a *app) ingestManager(cmd *cobra.Command) (*ingest.Manager, error) {
	st, err := a.openStore(cmd)
	if err != nil {
		return nil, err
	}
	return ingest.NewManager(st.Readings()), nil
}

func (a *app) retentionEngine(cmd *cobra.Command) (*retention.Engine, error) {
	st, err := a.openStore(cmd)
	if err != nil {
		return nil, err
	}
	return retention.NewEngine(st.Readings(), st.Buckets(), a.cfg.Retention.Window)
}

func (a *app) newScheduler(cmd *cobra.Command) (*scheduler.Scheduler, error) {
	engine, err := a.retentionEngine(cmd)
	if err != nil {
		return nil, err
	}
	return scheduler.New(a.store.Leases(), engine, scheduler.Options{
		Interval: a.cfg.Scheduler.Interval,
		LeaseTTL: a.cfg.Scheduler.LeaseTTL,
		Purge:    a.cfg.Retention.Purge,
	}), nil
}

// vectorIndex returns the process vector index manager. A persisted index
// is opened eagerly so searches in a new process see earlier adds.
func (a *app) vectorIndex(cmd *cobra.Command) (*vectorindex.Manager, error) {
	if a.vectors != nil {
		return a.vectors, nil
	}

	cfg, err := a.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	path := cfg.VectorPath()
	a.vectors = vectorindex.NewManager(sqlitevec.Allocator(path))

	if sqlitevec.Exists(path) {
		if err := a.vectors.EnsureReady(cmd.Context()); err != nil {
			return nil, err
		}
	}
	return a.vectors, nil
}

// Close releases the vector index handle and the store connection.
func (a *app) Close() error {
	var errs []error
	if a.vectors != nil {
		if err := a.vectors.Reset(); err != nil {
			errs = append(errs, err)
		}
		a.vectors = nil
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, strataerr.Wrap(err, strataerr.CodeCLIInternalFailure, "closing store"))
		}
		a.store = nil
	}
	if len(errs) == 0 {
		return nil
	}
	return strataerr.Join(errs...)
}
