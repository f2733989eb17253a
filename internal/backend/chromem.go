package backend

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/crewkit/memstore/internal/model"
)

// Chromem is the vector-index backend: chromem-go serves similarity queries
// while a parallel item table serves exact gets, recency, and stats.
// Embeddings are supplied by the caller; chromem never computes its own.
// The variant is in-process only — the durable variant is SQLite.
type Chromem struct {
	mu       sync.RWMutex
	col      *chromem.Collection
	order    []string
	items    map[string]model.Item
	tokenSum int
	embeds   int
	entropy  *rand.Rand
}

// NewChromem creates a chromem-backed store with the given collection name.
func NewChromem(collection string) (*Chromem, error) {
	if collection == "" {
		collection = "memstore"
	}
	db := chromem.NewDB()
	// nil embedding func: documents always arrive with embeddings attached
	col, err := db.CreateCollection(collection, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return &Chromem{
		col:     col,
		items:   make(map[string]model.Item),
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

func (c *Chromem) Add(ctx context.Context, item model.Item) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addLocked(ctx, item)
}

func (c *Chromem) addLocked(ctx context.Context, item model.Item) (string, error) {
	item, err := prepare(item.Clone(), c.entropy, time.Now().UTC())
	if err != nil {
		return "", err
	}

	if prev, exists := c.items[item.ID]; exists {
		// replacing an id would corrupt the running counters
		c.tokenSum -= prev.TokenEstimate
		if prev.HasEmbedding() {
			if err := c.col.Delete(ctx, nil, nil, prev.ID); err != nil {
				return "", fmt.Errorf("%w: delete stale document: %v", model.ErrBackendUnavailable, err)
			}
			c.embeds--
		}
	}

	if item.HasEmbedding() {
		doc := chromem.Document{
			ID:        item.ID,
			Content:   item.Text,
			Embedding: item.Embedding,
			Metadata:  map[string]string{"created_at": item.CreatedAt.Format(time.RFC3339Nano)},
		}
		if err := c.col.AddDocument(ctx, doc); err != nil {
			return "", fmt.Errorf("%w: add document: %v", model.ErrBackendUnavailable, err)
		}
		c.embeds++
	}

	if _, exists := c.items[item.ID]; !exists {
		c.order = append(c.order, item.ID)
	}
	c.items[item.ID] = item
	c.tokenSum += item.TokenEstimate
	return item.ID, nil
}

func (c *Chromem) AddMany(ctx context.Context, items []model.Item) ([]string, error) {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return ids, err
		}
		id, err := c.Add(ctx, item)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (c *Chromem) Get(ctx context.Context, id string) (model.Item, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[id]
	if !ok {
		return model.Item{}, model.ErrNotFound
	}
	return item.Clone(), nil
}

func (c *Chromem) QueryRecent(ctx context.Context, k int) ([]model.Item, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]model.Item, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.items[id].Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if k >= 0 && len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (c *Chromem) QuerySemantic(ctx context.Context, emb []float32, k int) ([]model.Item, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	// chromem rejects nResults larger than the collection
	if n := c.col.Count(); k > n {
		k = n
	}
	if k <= 0 {
		return nil, nil
	}

	results, err := c.col.QueryEmbedding(ctx, emb, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: query embedding: %v", model.ErrBackendUnavailable, err)
	}

	type scored struct {
		item model.Item
		sim  float32
	}
	var out []scored
	for _, res := range results {
		item, ok := c.items[res.ID]
		if !ok {
			continue // index entry for an id deleted mid-flight
		}
		out = append(out, scored{item.Clone(), res.Similarity})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].sim != out[j].sim {
			return out[i].sim > out[j].sim
		}
		return out[i].item.CreatedAt.After(out[j].item.CreatedAt)
	})
	items := make([]model.Item, len(out))
	for i, s := range out {
		items[i] = s.item
	}
	return items, nil
}

func (c *Chromem) QueryByFilter(ctx context.Context, pred Filter) ([]model.Item, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []model.Item
	for _, id := range c.order {
		if it := c.items[id]; pred == nil || pred(it) {
			out = append(out, it.Clone())
		}
	}
	return out, nil
}

func (c *Chromem) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[id]; !ok {
		return model.ErrNotFound
	}
	return c.deleteLocked(ctx, id)
}

func (c *Chromem) deleteLocked(ctx context.Context, id string) error {
	item, ok := c.items[id]
	if !ok {
		return nil
	}
	if item.HasEmbedding() {
		if err := c.col.Delete(ctx, nil, nil, id); err != nil {
			return fmt.Errorf("%w: delete document: %v", model.ErrBackendUnavailable, err)
		}
		c.embeds--
	}
	delete(c.items, id)
	c.tokenSum -= item.TokenEstimate
	for i, oid := range c.order {
		if oid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

func (c *Chromem) DeleteMany(ctx context.Context, ids []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		if err := c.deleteLocked(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (c *Chromem) Replace(ctx context.Context, ids []string, replacement model.Item) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		if err := c.deleteLocked(ctx, id); err != nil {
			return "", err
		}
	}
	return c.addLocked(ctx, replacement)
}

func (c *Chromem) TouchLastAccessed(ctx context.Context, ids []string, at time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		if item, ok := c.items[id]; ok && at.After(item.LastAccessedAt) {
			item.LastAccessedAt = at
			c.items[id] = item
		}
	}
	return nil
}

func (c *Chromem) Stats(ctx context.Context) (Stats, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		ItemCount:      len(c.items),
		TokenSum:       c.tokenSum,
		EmbeddingCount: c.embeds,
	}, nil
}

func (c *Chromem) SupportsSemantic() bool { return true }

func (c *Chromem) Close() error { return nil }
