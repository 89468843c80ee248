// Package inmem provides an in-memory implementation of run.Store for testing
// and local development. The store holds run metadata in a map keyed by RunID
// with no persistence across process restarts; production deployments use
// features/run/mongo.
package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/draftforge/draftforge/pipeline/run"
)

// Store implements run.Store in memory with no durability. All operations are
// thread-safe. Records are defensively copied on read and write to prevent
// accidental mutation of stored data.
type Store struct {
	mu      sync.RWMutex
	records map[string]run.Record
}

// New constructs an empty Store ready for immediate use.
func New() *Store {
	return &Store{records: make(map[string]run.Record)}
}

// Upsert inserts a new run record or updates an existing one, keyed by
// r.RunID. If the record already exists and r.StartedAt is zero, the original
// StartedAt timestamp is preserved; otherwise StartedAt defaults to now.
// UpdatedAt is always set to now when zero. The error return exists only to
// satisfy run.Store.
func (s *Store) Upsert(_ context.Context, r run.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.records[r.RunID]
	if ok {
		if r.StartedAt.IsZero() {
			r.StartedAt = existing.StartedAt
		}
	} else if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = time.Now()
	}
	copied := r
	copied.Labels = cloneLabels(r.Labels)
	s.records[r.RunID] = copied
	return nil
}

// Load retrieves the run record for the given runID. A missing run yields a
// zero Record and no error (callers check r.RunID == ""). The returned record
// is a defensive copy.
func (s *Store) Load(_ context.Context, runID string) (run.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[runID]
	if !ok {
		return run.Record{}, nil
	}
	r.Labels = cloneLabels(r.Labels)
	return r, nil
}

func cloneLabels(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
