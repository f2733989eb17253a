package backend

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/crewkit/memstore/internal/embedding"
	"github.com/crewkit/memstore/internal/model"
)

// Memory is the in-process backend: an ordered map keyed by id with a
// running token sum and an optional parallel vector index. Reads are safe
// under concurrent use; writers serialize through the store's facade.
type Memory struct {
	mu       sync.RWMutex
	order    []string // insertion order of live ids
	items    map[string]model.Item
	tokenSum int
	embeds   int
	semantic bool
	entropy  *rand.Rand
}

// NewMemory creates an in-memory backend without a vector index.
// QuerySemantic fails with model.ErrUnsupported.
func NewMemory() *Memory {
	return newMemory(false)
}

// NewSemanticMemory creates an in-memory backend that also serves cosine
// similarity queries over item embeddings.
func NewSemanticMemory() *Memory {
	return newMemory(true)
}

func newMemory(semantic bool) *Memory {
	return &Memory{
		items:    make(map[string]model.Item),
		semantic: semantic,
		entropy:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (m *Memory) Add(ctx context.Context, item model.Item) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addLocked(item)
}

func (m *Memory) addLocked(item model.Item) (string, error) {
	item, err := prepare(item.Clone(), m.entropy, time.Now().UTC())
	if err != nil {
		return "", err
	}
	if _, exists := m.items[item.ID]; !exists {
		m.order = append(m.order, item.ID)
	} else {
		// replacing an id would corrupt the running counters
		prev := m.items[item.ID]
		m.tokenSum -= prev.TokenEstimate
		if prev.HasEmbedding() {
			m.embeds--
		}
	}
	m.items[item.ID] = item
	m.tokenSum += item.TokenEstimate
	if item.HasEmbedding() {
		m.embeds++
	}
	return item.ID, nil
}

func (m *Memory) AddMany(ctx context.Context, items []model.Item) ([]string, error) {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return ids, err
		}
		id, err := m.Add(ctx, item)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *Memory) Get(ctx context.Context, id string) (model.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[id]
	if !ok {
		return model.Item{}, model.ErrNotFound
	}
	return item.Clone(), nil
}

func (m *Memory) QueryRecent(ctx context.Context, k int) ([]model.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Item, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.items[id].Clone())
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

func (m *Memory) QuerySemantic(ctx context.Context, emb []float32, k int) ([]model.Item, error) {
	if !m.semantic {
		return nil, model.ErrUnsupported
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	type scored struct {
		item model.Item
		sim  float64
	}
	var candidates []scored
	for _, id := range m.order {
		it := m.items[id]
		if !it.HasEmbedding() {
			continue
		}
		candidates = append(candidates, scored{it.Clone(), embedding.CosineSimilarity(emb, it.Embedding)})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].sim != candidates[j].sim {
			return candidates[i].sim > candidates[j].sim
		}
		// equal similarity: newer item wins
		return candidates[i].item.CreatedAt.After(candidates[j].item.CreatedAt)
	})
	if k >= 0 && len(candidates) > k {
		candidates = candidates[:k]
	}
	out := make([]model.Item, len(candidates))
	for i, c := range candidates {
		out[i] = c.item
	}
	return out, nil
}

func (m *Memory) QueryByFilter(ctx context.Context, pred Filter) ([]model.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Item
	for _, id := range m.order {
		if it := m.items[id]; pred == nil || pred(it) {
			out = append(out, it.Clone())
		}
	}
	return out, nil
}

func (m *Memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteLocked(id)
}

func (m *Memory) deleteLocked(id string) error {
	item, ok := m.items[id]
	if !ok {
		return model.ErrNotFound
	}
	delete(m.items, id)
	m.tokenSum -= item.TokenEstimate
	if item.HasEmbedding() {
		m.embeds--
	}
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory) DeleteMany(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		// absent ids are ignored per contract
		_ = m.deleteLocked(id)
	}
	return nil
}

// Replace atomically deletes the given ids and adds the replacement item.
// Concurrent readers observe either the originals or the summary, never a
// mixed state. Used by summarize-on-eviction.
func (m *Memory) Replace(ctx context.Context, ids []string, replacement model.Item) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		_ = m.deleteLocked(id)
	}
	return m.addLocked(replacement)
}

func (m *Memory) TouchLastAccessed(ctx context.Context, ids []string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if item, ok := m.items[id]; ok && at.After(item.LastAccessedAt) {
			item.LastAccessedAt = at
			m.items[id] = item
		}
	}
	return nil
}

func (m *Memory) Stats(ctx context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{
		ItemCount:      len(m.items),
		TokenSum:       m.tokenSum,
		EmbeddingCount: m.embeds,
	}, nil
}

func (m *Memory) SupportsSemantic() bool { return m.semantic }

func (m *Memory) Close() error { return nil }
