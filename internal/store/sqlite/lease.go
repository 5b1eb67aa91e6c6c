// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/strata-dev/strata/internal/store"
	strataerr "github.com/strata-dev/strata/pkg/errors"
)

type leaseStore struct {
	db *sql.DB
}

func (s *leaseStore) Acquire(ctx context.Context, name, owner string, now time.Time, ttl time.Duration) (bool, error) {
	if name == "" || owner == "" || ttl <= 0 {
		return false, strataerr.New(strataerr.CodeStoreInvalidInput, "lease: name, owner and a positive ttl are required")
	}

	const q = `INSERT INTO leases (name, owner, acquired_at, expires_at) VALUES (?, ?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
	owner       = excluded.owner,
	acquired_at = excluded.acquired_at,
	expires_at  = excluded.expires_at
WHERE leases.expires_at <= excluded.acquired_at`

	res, err := s.db.ExecContext(ctx, q, name, owner, formatTime(now), formatTime(now.Add(ttl)))
	if err != nil {
		return false, strataerr.Wrapf(err, errCode(err, strataerr.CodeStoreLeaseFailure), "acquiring lease %s", name)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, strataerr.Wrapf(err, strataerr.CodeStoreLeaseFailure, "checking lease %s", name)
	}
	return n > 0, nil
}

func (s *leaseStore) Renew(ctx context.Context, name, owner string, now time.Time, ttl time.Duration) error {
	const q = `UPDATE leases SET expires_at = ? WHERE name = ? AND owner = ?`
	res, err := s.db.ExecContext(ctx, q, formatTime(now.Add(ttl)), name, owner)
	if err != nil {
		return strataerr.Wrapf(err, errCode(err, strataerr.CodeStoreLeaseFailure), "renewing lease %s", name)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return strataerr.Wrapf(err, strataerr.CodeStoreLeaseFailure, "checking lease %s", name)
	}
	if n == 0 {
		return strataerr.Errorf(strataerr.CodeStoreLeaseLost, "lease %s is no longer held by %s", name, owner)
	}
	return nil
}

func (s *leaseStore) Release(ctx context.Context, name, owner string) error {
	const q = `DELETE FROM leases WHERE name = ? AND owner = ?`
	if _, err := s.db.ExecContext(ctx, q, name, owner); err != nil {
		return strataerr.Wrapf(err, errCode(err, strataerr.CodeStoreLeaseFailure), "releasing lease %s", name)
	}
	return nil
}

func (s *leaseStore) Get(ctx context.Context, name string) (*store.Lease, error) {
	const q = `SELECT name, owner, acquired_at, expires_at FROM leases WHERE name = ?`

	var (
		l                     store.Lease
		acquiredAt, expiresAt string
	)
	err := s.db.QueryRowContext(ctx, q, name).Scan(&l.Name, &l.Owner, &acquiredAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, strataerr.Errorf(strataerr.CodeStoreEntityNotFound, "lease %s not found", name)
	}
	if err != nil {
		return nil, strataerr.Wrapf(err, errCode(err, strataerr.CodeStoreLeaseFailure), "reading lease %s", name)
	}
	if l.AcquiredAt, err = parseTime(acquiredAt); err != nil {
		return nil, err
	}
	if l.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, err
	}
	return &l, nil
}
