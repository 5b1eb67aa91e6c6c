// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

// Package vectorindex owns the single ANN engine handle of the process and
// serialises every operation against it.
package vectorindex

import (
	"context"
	"log/slog"
	"math"
	"sync"

	"github.com/strata-dev/strata/internal/logging"
	strataerr "github.com/strata-dev/strata/pkg/errors"
)

// State is the lifecycle state of the engine handle.
type State int

const (
	StateAbsent State = iota
	StateReady
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// validTransitions defines allowed state transitions as an adjacency list.
var validTransitions = map[State]map[State]bool{
	StateAbsent: {StateReady: true},
	StateReady:  {StateAbsent: true},
}

// Manager lazily allocates one engine and guards it with a mutex.
type Manager struct {
	mu        sync.Mutex
	alloc     Allocator
	engine    Engine
	state     State
	dimension int
	log       *slog.Logger
}

// NewManager returns a Manager in StateAbsent that allocates engines with alloc.
func NewManager(alloc Allocator) *Manager {
	return &Manager{
		alloc: alloc,
		state: StateAbsent,
		log:   logging.Component("vectorindex"),
	}
}

// State returns the current handle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Dimension returns the fixed dimensionality, or 0 while none is fixed.
func (m *Manager) Dimension() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dimension
}

// EnsureReady allocates the engine if the handle is absent. An engine that
// already stores vectors fixes the dimension.
func (m *Manager) EnsureReady(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensureReady(ctx)
}

func (m *Manager) ensureReady(ctx context.Context) error {
	if m.state == StateReady {
		return nil
	}

	engine, err := m.alloc(ctx)
	if err != nil {
		return strataerr.Wrap(err, strataerr.CodeVectorInitFailure, "allocating vector index")
	}

	dim, err := engine.Dimension(ctx)
	if err != nil {
		_ = engine.Close()
		return strataerr.Wrap(err, strataerr.CodeVectorInitFailure, "reading vector index dimension")
	}

	m.engine = engine
	m.dimension = dim
	m.transition(StateReady)
	m.log.Debug("vector index ready", "dimension", dim)
	return nil
}

// Add stores vector under id, allocating the engine first if needed. The
// first successful add fixes the dimension.
func (m *Manager) Add(ctx context.Context, id int64, vector []float32) error {
	if err := validateVector(vector); err != nil {
		return strataerr.With(err, strataerr.FieldVectorID(id))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureReady(ctx); err != nil {
		return err
	}
	if m.dimension != 0 && len(vector) != m.dimension {
		return strataerr.New(strataerr.CodeVectorDimensionMismatch,
			"vector dimension does not match index",
			strataerr.FieldVectorID(id), strataerr.Field("want", m.dimension), strataerr.Field("got", len(vector)))
	}

	if err := m.engine.Add(ctx, id, vector); err != nil {
		m.invalidateOn(err)
		return strataerr.Wrap(err, strataerr.CodeVectorAddFailure, "adding vector", strataerr.FieldVectorID(id))
	}

	if m.dimension == 0 {
		m.dimension = len(vector)
		m.log.Info("vector index dimension fixed", "dimension", m.dimension)
	}
	return nil
}

// Search returns up to topK neighbors of query, nearest first. It requires
// the handle to be ready.
func (m *Manager) Search(ctx context.Context, query []float32, topK int) ([]Neighbor, error) {
	if topK < 1 {
		return nil, strataerr.Errorf(strataerr.CodeVectorInputInvalid, "top_k must be at least 1, got %d", topK)
	}
	if err := validateVector(query); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateReady {
		return nil, strataerr.New(strataerr.CodeVectorNotInitialized, "vector index is not initialized")
	}
	if m.dimension == 0 {
		return nil, nil
	}
	if len(query) != m.dimension {
		return nil, strataerr.New(strataerr.CodeVectorDimensionMismatch,
			"query dimension does not match index",
			strataerr.Field("want", m.dimension), strataerr.Field("got", len(query)))
	}

	neighbors, err := m.engine.Search(ctx, query, topK)
	if err != nil {
		m.invalidateOn(err)
		return nil, strataerr.Wrap(err, strataerr.CodeVectorSearchFailure, "searching vectors")
	}
	return neighbors, nil
}

// Clear removes every stored vector and unfixes the dimension. The handle
// is allocated first if needed so persisted vectors are removed too.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureReady(ctx); err != nil {
		return err
	}
	if err := m.engine.Clear(ctx); err != nil {
		m.invalidateOn(err)
		return strataerr.Wrap(err, strataerr.CodeVectorResetFailure, "clearing vector index")
	}
	m.dimension = 0
	return nil
}

// Reset frees the handle and returns to StateAbsent. Calling it while
// absent does nothing.
func (m *Manager) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.release()
}

func (m *Manager) release() error {
	if m.state == StateAbsent {
		return nil
	}

	err := m.engine.Close()
	m.engine = nil
	m.dimension = 0
	m.transition(StateAbsent)
	if err != nil {
		return strataerr.Wrap(err, strataerr.CodeVectorResetFailure, "closing vector index")
	}
	return nil
}

// invalidateOn drops the handle when err says the engine is unusable.
func (m *Manager) invalidateOn(err error) {
	if !strataerr.HasCode(err, strataerr.CodeVectorHandleInvalidated) {
		return
	}
	m.log.Warn("vector index handle invalidated, releasing", "error", err)
	_ = m.release()
}

func (m *Manager) transition(to State) {
	if !validTransitions[m.state][to] {
		panic("vectorindex: invalid state transition " + m.state.String() + " -> " + to.String())
	}
	m.state = to
}

func validateVector(v []float32) error {
	if len(v) == 0 {
		return strataerr.New(strataerr.CodeVectorInputInvalid, "vector must not be empty")
	}
	for i, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return strataerr.Errorf(strataerr.CodeVectorInputInvalid, "vector component %d is not finite", i)
		}
	}
	return nil
}
