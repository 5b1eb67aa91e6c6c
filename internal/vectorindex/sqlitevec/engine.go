// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

// Package sqlitevec implements vectorindex.Engine on a sqlite-vec vec0
// virtual table. Vectors are keyed by rowid and ranked by L2 distance.
package sqlitevec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/mattn/go-sqlite3"

	"github.com/strata-dev/strata/internal/vectorindex"
	strataerr "github.com/strata-dev/strata/pkg/errors"
)

func init() {
	sqlite_vec.Auto()
}

// Memory is the path of an index that lives only as long as its handle.
const Memory = ":memory:"

// Compile-time interface check.
var _ vectorindex.Engine = (*Engine)(nil)

// Engine stores vectors in a vec0 table created on the first add, once the
// dimension is known.
type Engine struct {
	db     *sql.DB
	path   string
	closed bool
}

// Open opens (or creates) the index database at path.
func Open(ctx context.Context, path string) (*Engine, error) {
	if path == "" {
		return nil, strataerr.New(strataerr.CodeVectorInitFailure, "vector index path is required")
	}

	dsn := Memory
	if path != Memory {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, strataerr.Wrapf(err, strataerr.CodeVectorInitFailure, "creating vector index directory for %s", path)
		}
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, strataerr.Wrapf(err, strataerr.CodeVectorInitFailure, "opening vector index %s", path)
	}
	// One connection: the handle is used serially and :memory: must not be
	// split across connections.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, strataerr.Wrapf(err, strataerr.CodeVectorInitFailure, "pinging vector index %s", path)
	}

	const metaDDL = `CREATE TABLE IF NOT EXISTS vector_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`
	if _, err := db.ExecContext(ctx, metaDDL); err != nil {
		_ = db.Close()
		return nil, strataerr.Wrapf(err, strataerr.CodeVectorInitFailure, "creating vector_meta table in %s", path)
	}

	return &Engine{db: db, path: path}, nil
}

// Allocator returns a vectorindex.Allocator opening the index at path.
func Allocator(path string) vectorindex.Allocator {
	return func(ctx context.Context) (vectorindex.Engine, error) {
		return Open(ctx, path)
	}
}

// Exists reports whether a persisted index file is present at path.
func Exists(path string) bool {
	if path == "" || path == Memory {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Remove deletes a persisted index file and its WAL side files.
func Remove(path string) error {
	if path == "" || path == Memory {
		return nil
	}
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return strataerr.Wrapf(err, strataerr.CodeVectorResetFailure, "removing %s", p)
		}
	}
	return nil
}

// Path returns the database the engine was opened on.
func (e *Engine) Path() string { return e.path }

// Dimension reports the dimension stored in vector_meta.
func (e *Engine) Dimension(ctx context.Context) (int, error) {
	if err := e.checkOpen(); err != nil {
		return 0, err
	}
	return dimension(ctx, e.db)
}

func (e *Engine) checkOpen() error {
	if e.closed {
		return strataerr.Errorf(strataerr.CodeVectorHandleInvalidated, "vector index %s is closed", e.path)
	}
	return nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func dimension(ctx context.Context, q queryRower) (int, error) {
	var raw string
	err := q.QueryRowContext(ctx, `SELECT value FROM vector_meta WHERE key = 'dimension'`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, strataerr.Wrap(err, errCode(err, strataerr.CodeVectorInitFailure), "reading vector dimension")
	}
	dim, err := strconv.Atoi(raw)
	if err != nil || dim < 1 {
		return 0, strataerr.Errorf(strataerr.CodeVectorHandleInvalidated, "vector_meta holds invalid dimension %q", raw)
	}
	return dim, nil
}

// Add inserts or replaces the vector stored under id. The first add
// creates the vec0 table with len(vector) dimensions.
func (e *Engine) Add(ctx context.Context, id int64, vector []float32) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	blob, err := sqlite_vec.SerializeFloat32(vector)
	if err != nil {
		return strataerr.Wrap(err, strataerr.CodeVectorInputInvalid, "serializing vector")
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return strataerr.Wrap(err, errCode(err, strataerr.CodeVectorAddFailure), "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	dim, err := dimension(ctx, tx)
	if err != nil {
		return err
	}
	switch {
	case dim == 0:
		ddl := fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS vectors USING vec0(embedding float[%d])`, len(vector))
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return strataerr.Wrap(err, errCode(err, strataerr.CodeVectorAddFailure), "creating vectors virtual table")
		}
		const meta = `INSERT INTO vector_meta (key, value) VALUES ('dimension', ?)`
		if _, err := tx.ExecContext(ctx, meta, strconv.Itoa(len(vector))); err != nil {
			return strataerr.Wrap(err, errCode(err, strataerr.CodeVectorAddFailure), "recording vector dimension")
		}
	case dim != len(vector):
		return strataerr.Errorf(strataerr.CodeVectorDimensionMismatch,
			"vector has %d dimensions, index has %d", len(vector), dim)
	}

	// vec0 does not support ON CONFLICT; delete first for upsert.
	if _, err := tx.ExecContext(ctx, `DELETE FROM vectors WHERE rowid = ?`, id); err != nil {
		return strataerr.Wrapf(err, errCode(err, strataerr.CodeVectorAddFailure), "deleting existing vector %d", id)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO vectors (rowid, embedding) VALUES (?, ?)`, id, blob); err != nil {
		return strataerr.Wrapf(err, errCode(err, strataerr.CodeVectorAddFailure), "inserting vector %d", id)
	}

	if err := tx.Commit(); err != nil {
		return strataerr.Wrap(err, errCode(err, strataerr.CodeVectorAddFailure), "committing vector")
	}
	return nil
}

// MaxKNN is the largest k a vec0 KNN query accepts.
const MaxKNN = 4096

// Search runs a k-nearest-neighbor query. Distance is L2; 0.0 is an exact
// match. k is capped at the number of stored vectors. A k above MaxKNN is
// answered by a full scan with vec_distance_l2 instead of the KNN index.
func (e *Engine) Search(ctx context.Context, query []float32, k int) ([]vectorindex.Neighbor, error) {
	dim, err := e.Dimension(ctx)
	if err != nil || dim == 0 {
		return nil, err
	}
	if len(query) != dim {
		return nil, strataerr.Errorf(strataerr.CodeVectorDimensionMismatch,
			"query has %d dimensions, index has %d", len(query), dim)
	}

	var count int
	if err := e.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vectors`).Scan(&count); err != nil {
		return nil, strataerr.Wrap(err, errCode(err, strataerr.CodeVectorSearchFailure), "counting vectors")
	}
	if k > count {
		k = count
	}
	if k == 0 {
		return nil, nil
	}

	blob, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, strataerr.Wrap(err, strataerr.CodeVectorInputInvalid, "serializing query vector")
	}

	q := `SELECT rowid, distance FROM vectors
WHERE embedding MATCH ? AND k = ?
ORDER BY distance`
	if k > MaxKNN {
		q = `SELECT rowid, vec_distance_l2(embedding, ?) AS distance FROM vectors
ORDER BY distance, rowid
LIMIT ?`
	}

	rows, err := e.db.QueryContext(ctx, q, blob, k)
	if err != nil {
		return nil, strataerr.Wrap(err, errCode(err, strataerr.CodeVectorSearchFailure), "searching vectors")
	}
	defer func() { _ = rows.Close() }()

	out := make([]vectorindex.Neighbor, 0, k)
	for rows.Next() {
		var n vectorindex.Neighbor
		if err := rows.Scan(&n.ID, &n.Distance); err != nil {
			return nil, strataerr.Wrap(err, strataerr.CodeVectorSearchFailure, "scanning vector result")
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, strataerr.Wrap(err, errCode(err, strataerr.CodeVectorSearchFailure), "iterating vector results")
	}
	return out, nil
}

// Clear drops the vectors table and the recorded dimension.
func (e *Engine) Clear(ctx context.Context) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return strataerr.Wrap(err, errCode(err, strataerr.CodeVectorResetFailure), "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS vectors`); err != nil {
		return strataerr.Wrap(err, errCode(err, strataerr.CodeVectorResetFailure), "dropping vectors table")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM vector_meta WHERE key = 'dimension'`); err != nil {
		return strataerr.Wrap(err, errCode(err, strataerr.CodeVectorResetFailure), "clearing vector dimension")
	}
	if err := tx.Commit(); err != nil {
		return strataerr.Wrap(err, errCode(err, strataerr.CodeVectorResetFailure), "committing clear")
	}
	return nil
}

// Close closes the underlying database connection.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	return e.db.Close()
}

// errCode marks errors after which the connection cannot be trusted.
func errCode(err error, fallback strataerr.Code) strataerr.Code {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrCorrupt, sqlite3.ErrNotADB, sqlite3.ErrMisuse, sqlite3.ErrIoErr:
			return strataerr.CodeVectorHandleInvalidated
		}
	}
	if errors.Is(err, sql.ErrConnDone) {
		return strataerr.CodeVectorHandleInvalidated
	}
	return fallback
}
