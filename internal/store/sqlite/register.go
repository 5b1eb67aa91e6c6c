// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package sqlite

import (
	"context"

	"github.com/strata-dev/strata/internal/store"
)

func init() {
	store.RegisterBackend("sqlite", func(ctx context.Context, cfg *store.StorageConfig) (store.Store, error) {
		return Open(ctx, cfg.Path)
	})
}
