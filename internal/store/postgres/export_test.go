// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package postgres

import "context"

// Truncate empties every table so tests sharing a database start clean.
func (s *Store) Truncate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `TRUNCATE readings, compressed_buckets, leases`)
	return err
}
