// Package backend provides the uniform storage contract for memory items
// and its variants: in-memory, SQLite, and vector-index (chromem) backed.
package backend

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/crewkit/memstore/internal/model"
)

// Filter is a predicate over items for QueryByFilter.
type Filter func(model.Item) bool

// Stats summarizes a backend's live contents. TokenSum is maintained
// incrementally by implementations, never recomputed per query.
type Stats struct {
	ItemCount      int `json:"item_count"`
	TokenSum       int `json:"token_sum"`
	EmbeddingCount int `json:"embedding_count"`
}

// Backend is the storage contract. All query operations are read-only;
// the only permitted read side effect is TouchLastAccessed, which the store
// invokes explicitly and only under the LRU policy.
//
// SupportsSemantic is a static property of the variant — callers branch on
// it instead of probing QuerySemantic for an error.
type Backend interface {
	// Add stores one item, assigning an id if the item has none.
	// Re-adding an existing id replaces the stored item in place (imports
	// preserve ids, so the same export may be loaded twice).
	// Fails with model.ErrInvalidItem on empty text or a negative estimate.
	Add(ctx context.Context, item model.Item) (string, error)

	// AddMany stores a batch, checking ctx between items. Items committed
	// before a failure or cancellation stay committed.
	AddMany(ctx context.Context, items []model.Item) ([]string, error)

	// Get returns the item with the given id, or model.ErrNotFound.
	Get(ctx context.Context, id string) (model.Item, error)

	// QueryRecent returns up to k live items, newest CreatedAt first.
	QueryRecent(ctx context.Context, k int) ([]model.Item, error)

	// QuerySemantic returns up to k items by cosine similarity, highest
	// first, ties broken by newer CreatedAt. Fails with
	// model.ErrUnsupported on variants without embedding support.
	QuerySemantic(ctx context.Context, emb []float32, k int) ([]model.Item, error)

	// QueryByFilter returns items matching pred, in insertion order.
	QueryByFilter(ctx context.Context, pred Filter) ([]model.Item, error)

	// Delete removes the item with the given id, or model.ErrNotFound.
	Delete(ctx context.Context, id string) error

	// DeleteMany removes the given ids. Absent ids are ignored.
	DeleteMany(ctx context.Context, ids []string) error

	// Replace atomically deletes the given ids and adds the replacement.
	// Concurrent readers never observe the originals and the replacement
	// live at the same time, nor a window with neither.
	Replace(ctx context.Context, ids []string, replacement model.Item) (string, error)

	// TouchLastAccessed updates LastAccessedAt for the given ids.
	TouchLastAccessed(ctx context.Context, ids []string, at time.Time) error

	// Stats returns live counts and the running token sum.
	Stats(ctx context.Context) (Stats, error)

	// SupportsSemantic reports whether QuerySemantic is available.
	SupportsSemantic() bool

	// Close releases backend resources.
	Close() error
}

// validate enforces the add-time item contract shared by all variants.
func validate(item model.Item) error {
	if item.Text == "" {
		return fmt.Errorf("%w: empty text", model.ErrInvalidItem)
	}
	if item.TokenEstimate < 0 {
		return fmt.Errorf("%w: negative token estimate %d", model.ErrInvalidItem, item.TokenEstimate)
	}
	return nil
}

// newID returns a fresh ULID. Ids are sortable by creation time and are
// never reused, even after deletion.
func newID(entropy *rand.Rand) string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// prepare fills in id and timestamps for an incoming item and validates it.
func prepare(item model.Item, entropy *rand.Rand, now time.Time) (model.Item, error) {
	if err := validate(item); err != nil {
		return model.Item{}, err
	}
	if item.ID == "" {
		item.ID = newID(entropy)
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	if item.LastAccessedAt.Before(item.CreatedAt) {
		item.LastAccessedAt = item.CreatedAt
	}
	return item, nil
}
