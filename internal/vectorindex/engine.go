// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package vectorindex

import "context"

// Neighbor is one search hit. Lower distance means more similar.
type Neighbor struct {
	ID       int64   `json:"id" yaml:"id"`
	Distance float64 `json:"distance" yaml:"distance"`
}

// Engine is the ANN structure behind a Manager. Implementations need not be
// safe for concurrent use; the Manager serialises every call.
//
// Errors carrying CodeVectorHandleInvalidated tell the Manager the engine
// can no longer be used and must be closed and reallocated.
type Engine interface {
	// Dimension reports the dimensionality already fixed by stored vectors,
	// or 0 when the engine holds none.
	Dimension(ctx context.Context) (int, error)
	// Add stores vector under id, replacing any vector already stored
	// under id.
	Add(ctx context.Context, id int64, vector []float32) error
	// Search returns up to k neighbors of query ordered by distance.
	Search(ctx context.Context, query []float32, k int) ([]Neighbor, error)
	// Clear removes every vector and forgets the dimension.
	Clear(ctx context.Context) error
	// Close frees the engine.
	Close() error
}

// Allocator creates a fresh engine handle.
type Allocator func(ctx context.Context) (Engine, error)
