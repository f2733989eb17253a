package store

import (
	"context"

	"github.com/crewkit/memstore/internal/model"
)

// Export returns every live item in insertion order, suitable for JSON
// serialization and later Import.
func (s *Store) Export(ctx context.Context) ([]model.Item, error) {
	return s.backend.QueryByFilter(ctx, nil)
}

// Import re-adds previously exported items, preserving their ids and
// timestamps, then runs a single eviction pass against the active config.
// Returns the number of items committed; a failure mid-batch leaves the
// already-imported prefix in place.
func (s *Store) Import(ctx context.Context, items []model.Item) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	imported := 0
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return imported, err
		}
		if it.TokenEstimate == 0 && it.Text != "" {
			it.TokenEstimate = s.estimate(it.Text)
		}
		if _, err := s.backend.Add(ctx, it); err != nil {
			return imported, err
		}
		imported++
	}
	s.evictLocked(ctx, true)
	return imported, nil
}
