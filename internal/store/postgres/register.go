// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package postgres

import (
	"context"

	"github.com/strata-dev/strata/internal/store"
)

func init() {
	store.RegisterBackend("postgres", func(ctx context.Context, cfg *store.StorageConfig) (store.Store, error) {
		return Open(ctx, cfg.PostgresDSN())
	})
}
