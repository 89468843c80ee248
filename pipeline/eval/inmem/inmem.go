// Package inmem provides an in-memory implementation of eval.Store for
// testing and local development. Production deployments use
// features/eval/mongo.
package inmem

import (
	"context"
	"sync"

	"github.com/draftforge/draftforge/pipeline/eval"
)

// Store implements eval.Store in memory, preserving append order per run.
// All operations are thread-safe.
type Store struct {
	mu      sync.RWMutex
	records map[string][]eval.Record
}

// New constructs an empty Store.
func New() *Store {
	return &Store{records: make(map[string][]eval.Record)}
}

// Append implements eval.Store.
func (s *Store) Append(_ context.Context, rec eval.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.RunID] = append(s.records[rec.RunID], rec)
	return nil
}

// ListByRun implements eval.Store. Records are returned in append order; an
// unknown run yields an empty slice.
func (s *Store) ListByRun(_ context.Context, runID string) ([]eval.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := s.records[runID]
	out := make([]eval.Record, len(recs))
	copy(out, recs)
	return out, nil
}
