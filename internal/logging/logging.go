// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

// Package logging configures the process-wide slog logger.
//
// Logs are written to stderr by default so that stdout carries only command
// output:
//
//	logging.Init(os.Stderr, slog.LevelInfo, false)
//	log := logging.Component("retention")
//	log.Info("compressed", "days", 3)
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	strataerr "github.com/strata-dev/strata/pkg/errors"
)

var (
	mu     sync.RWMutex
	logger *slog.Logger
)

// Init installs a logger writing to w at level as the slog default.
// If jsonFormat is true, logs are output as JSON; otherwise, human-readable text.
func Init(w io.Writer, level slog.Level, jsonFormat bool) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	if jsonFormat {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	l := slog.New(handler)
	mu.Lock()
	logger = l
	mu.Unlock()
	slog.SetDefault(l)
	return l
}

// Logger returns the installed logger, initialising a stderr text logger at
// info level on first use.
func Logger() *slog.Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l != nil {
		return l
	}
	return Init(os.Stderr, slog.LevelInfo, false)
}

// Component returns a logger that tags every entry with component=name.
func Component(name string) *slog.Logger {
	return Logger().With("component", name)
}

// ParseLevel maps a configured level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, strataerr.Errorf(strataerr.CodeConfigValidateInvalidValue,
			"unknown log level %q (want debug, info, warn or error)", name)
	}
}
