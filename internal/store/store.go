// Package store provides the memory store facade: one backend, one size
// config, and the eviction/summarization machinery the orchestration loop
// talks to.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/crewkit/memstore/internal/backend"
	"github.com/crewkit/memstore/internal/embedding"
	"github.com/crewkit/memstore/internal/eviction"
	"github.com/crewkit/memstore/internal/model"
	"github.com/crewkit/memstore/internal/token"
)

// Entry is one observation to remember.
type Entry struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Stats extends backend counts with cumulative eviction bookkeeping.
type Stats struct {
	backend.Stats
	Evictions      int64 `json:"evictions"`
	Summarizations int64 `json:"summarizations"`
}

// PruneResult reports what an eviction pass did. Warnings carry the
// best-effort failures (summarizer errors, backend hiccups) that did not
// stop the pass.
type PruneResult struct {
	Evicted    int      `json:"evicted"`
	Summarized int      `json:"summarized"`
	Warnings   []string `json:"warnings,omitempty"`
}

// Store owns exactly one Backend and one SizeConfig. Mutating calls
// (Add, AddMany, Delete, Prune, Configure) serialize through a single
// mutex spanning the mutation and the eviction re-check; reads go straight
// to the backend, which is safe for concurrent use.
type Store struct {
	mu         sync.Mutex
	backend    backend.Backend
	cfg        model.SizeConfig
	estimate   token.Estimator
	embedder   embedding.Embedder
	summarizer Summarizer
	logger     *slog.Logger

	evictions      int64
	summarizations int64
}

// Option configures a Store at construction.
type Option func(*Store)

// WithConfig sets the initial size configuration.
func WithConfig(cfg model.SizeConfig) Option {
	return func(s *Store) { s.cfg = cfg }
}

// WithEstimator replaces the default ~4 chars/token estimator.
func WithEstimator(est token.Estimator) Option {
	return func(s *Store) { s.estimate = est }
}

// WithEmbedder enables semantic queries. Without it, Search with
// semantic=true fails with model.ErrUnsupported even on a capable backend.
func WithEmbedder(e embedding.Embedder) Option {
	return func(s *Store) { s.embedder = e }
}

// WithSummarizer enables summarize-on-eviction when the config asks for it.
func WithSummarizer(sum Summarizer) Option {
	return func(s *Store) { s.summarizer = sum }
}

// WithLogger replaces slog.Default for best-effort failure reporting.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates a store over the given backend.
func New(b backend.Backend, opts ...Option) (*Store, error) {
	s := &Store{
		backend:  b,
		cfg:      model.DefaultSizeConfig(),
		estimate: token.Chars,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}
	s.cfg = s.cfg.Normalize()
	return s, nil
}

// Add stores one observation and synchronously re-checks the budget before
// returning. Callers observe the post-eviction state immediately.
func (s *Store) Add(ctx context.Context, text string, metadata map[string]string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.addLocked(ctx, Entry{Text: text, Metadata: metadata})
	if err != nil {
		return "", err
	}
	s.evictLocked(ctx, true)
	return id, nil
}

// AddMany stores a batch, checking ctx between items. Items committed
// before a cancellation stay committed; the eviction re-check runs once
// after the batch.
func (s *Store) AddMany(ctx context.Context, entries []Entry) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return ids, err
		}
		id, err := s.addLocked(ctx, e)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	s.evictLocked(ctx, true)
	return ids, nil
}

func (s *Store) addLocked(ctx context.Context, e Entry) (string, error) {
	item := model.Item{
		Text:          e.Text,
		TokenEstimate: s.estimate(e.Text),
		Metadata:      e.Metadata,
	}
	if s.embedder != nil && s.backend.SupportsSemantic() {
		vec, err := s.embedder.Embed(ctx, e.Text)
		if err != nil {
			return "", fmt.Errorf("embed item: %w", err)
		}
		item.Embedding = vec
	}
	return s.backend.Add(ctx, item)
}

// Get returns the item with the given id.
func (s *Store) Get(ctx context.Context, id string) (model.Item, error) {
	item, err := s.backend.Get(ctx, id)
	if err != nil {
		return model.Item{}, err
	}
	s.touchOnRead(ctx, []model.Item{item})
	return item, nil
}

// GetRecent returns up to n items, newest first.
func (s *Store) GetRecent(ctx context.Context, n int) ([]model.Item, error) {
	items, err := s.backend.QueryRecent(ctx, n)
	if err != nil {
		return nil, err
	}
	s.touchOnRead(ctx, items)
	return items, nil
}

// Search finds up to k items. With semantic=true the query is embedded and
// ranked by cosine similarity; this requires both an embedder and a capable
// backend, otherwise model.ErrUnsupported. With semantic=false it is a
// case-insensitive substring match over text and metadata, newest first.
func (s *Store) Search(ctx context.Context, query string, k int, semantic bool) ([]model.Item, error) {
	if semantic {
		if s.embedder == nil || !s.backend.SupportsSemantic() {
			return nil, fmt.Errorf("%w: semantic search needs an embedder and a semantic backend", model.ErrUnsupported)
		}
		vec, err := s.embedder.Embed(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		items, err := s.backend.QuerySemantic(ctx, vec, k)
		if err != nil {
			return nil, err
		}
		s.touchOnRead(ctx, items)
		return items, nil
	}

	needle := strings.ToLower(query)
	items, err := s.backend.QueryByFilter(ctx, func(it model.Item) bool {
		if strings.Contains(strings.ToLower(it.Text), needle) {
			return true
		}
		for _, v := range it.Metadata {
			if strings.Contains(strings.ToLower(v), needle) {
				return true
			}
		}
		return false
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID > items[j].ID
	})
	if k >= 0 && len(items) > k {
		items = items[:k]
	}
	s.touchOnRead(ctx, items)
	return items, nil
}

// GetByFilter returns items matching pred in insertion order.
func (s *Store) GetByFilter(ctx context.Context, pred func(model.Item) bool) ([]model.Item, error) {
	items, err := s.backend.QueryByFilter(ctx, backend.Filter(pred))
	if err != nil {
		return nil, err
	}
	s.touchOnRead(ctx, items)
	return items, nil
}

// Delete removes one item by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.Delete(ctx, id)
}

// Configure swaps the size configuration and immediately re-evaluates the
// existing items against the new limits. An invalid config is rejected
// before any change; the previous config stays in effect.
func (s *Store) Configure(ctx context.Context, cfg model.SizeConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg.Normalize()
	s.evictLocked(ctx, true)
	return nil
}

// Config returns the active size configuration.
func (s *Store) Config() model.SizeConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Prune forces an eviction pass without a write. Idempotent: a second call
// with no intervening writes removes nothing further.
func (s *Store) Prune(ctx context.Context) (PruneResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evictLocked(ctx, false), nil
}

// Stats returns live backend counts plus cumulative eviction counters.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	bs, err := s.backend.Stats(ctx)
	if err != nil {
		return Stats{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{Stats: bs, Evictions: s.evictions, Summarizations: s.summarizations}, nil
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// evictLocked runs eviction passes until the budget holds or no further
// progress is possible. Summarization can leave residual pressure (a group
// collapses into a new item that still counts), hence the loop.
// Best-effort: failures become warnings, never errors — the orchestration
// loop must not crash because housekeeping hiccuped.
func (s *Store) evictLocked(ctx context.Context, logWarnings bool) PruneResult {
	var res PruneResult
	for {
		items, err := s.backend.QueryByFilter(ctx, nil)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("eviction snapshot: %v", err))
			break
		}
		victims := eviction.Plan(items, s.cfg, time.Now().UTC())
		if len(victims) == 0 {
			break
		}

		evicted, summarized, warnings := s.applyEviction(ctx, victims)
		res.Evicted += evicted
		res.Summarized += summarized
		res.Warnings = append(res.Warnings, warnings...)
		if evicted == 0 {
			// nothing moved (backend down, or every group failed): tolerate
			// the over-budget state rather than spin
			break
		}
	}

	s.evictions += int64(res.Evicted)
	s.summarizations += int64(res.Summarized)
	if logWarnings {
		for _, w := range res.Warnings {
			s.logger.Warn("eviction", "warning", w)
		}
	}
	return res
}

// applyEviction removes the planned victims, summarizing contiguous groups
// when configured. Groups of one are always hard-deleted: replacing one
// item with one summary frees nothing.
func (s *Store) applyEviction(ctx context.Context, victims []model.Item) (evicted, summarized int, warnings []string) {
	if !s.cfg.SummarizeOnEviction || s.summarizer == nil {
		ids := itemIDs(victims)
		if err := s.backend.DeleteMany(ctx, ids); err != nil {
			return 0, 0, []string{fmt.Sprintf("delete victims: %v", err)}
		}
		return len(ids), 0, nil
	}

	for _, group := range eviction.GroupContiguous(victims, s.cfg.SummaryGap) {
		if err := ctx.Err(); err != nil {
			warnings = append(warnings, fmt.Sprintf("eviction interrupted: %v", err))
			return evicted, summarized, warnings
		}
		ids := itemIDs(group)

		if len(group) < 2 {
			if err := s.backend.DeleteMany(ctx, ids); err != nil {
				warnings = append(warnings, fmt.Sprintf("delete victim: %v", err))
				continue
			}
			evicted += len(ids)
			continue
		}

		summary, err := s.buildSummary(ctx, group)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%v; group hard-deleted", err))
			if derr := s.backend.DeleteMany(ctx, ids); derr != nil {
				warnings = append(warnings, fmt.Sprintf("delete group: %v", derr))
				continue
			}
			evicted += len(ids)
			continue
		}

		if _, err := s.backend.Replace(ctx, ids, summary); err != nil {
			warnings = append(warnings, fmt.Sprintf("replace group: %v", err))
			continue
		}
		evicted += len(ids)
		summarized++
	}
	return evicted, summarized, warnings
}

// buildSummary invokes the summarizer for one contiguous victim group and
// shapes the synthetic item: fresh token estimate, CreatedAt pinned to the
// group's latest timestamp, metadata referencing the original ids (for
// audit, not restoration).
func (s *Store) buildSummary(ctx context.Context, group []model.Item) (model.Item, error) {
	text, err := s.summarizer.Summarize(ctx, group)
	if err != nil {
		return model.Item{}, fmt.Errorf("%w: %v", model.ErrSummarization, err)
	}
	if text == "" {
		return model.Item{}, fmt.Errorf("%w: empty summary", model.ErrSummarization)
	}

	latest := group[0].CreatedAt
	for _, it := range group[1:] {
		if it.CreatedAt.After(latest) {
			latest = it.CreatedAt
		}
	}

	item := model.Item{
		Text:          text,
		TokenEstimate: s.estimate(text),
		CreatedAt:     latest,
		Metadata: map[string]string{
			model.MetaSummary:    "true",
			model.MetaSummarizes: strings.Join(itemIDs(group), ","),
		},
	}
	if s.embedder != nil && s.backend.SupportsSemantic() {
		if vec, embErr := s.embedder.Embed(ctx, text); embErr == nil {
			item.Embedding = vec
		}
		// an embedding failure leaves the summary unindexed, not lost
	}
	return item, nil
}

// touchOnRead updates access times, permitted only under the LRU policy.
func (s *Store) touchOnRead(ctx context.Context, items []model.Item) {
	if len(items) == 0 {
		return
	}
	s.mu.Lock()
	lru := s.cfg.Policy == model.LRU
	s.mu.Unlock()
	if !lru {
		return
	}
	if err := s.backend.TouchLastAccessed(ctx, itemIDs(items), time.Now().UTC()); err != nil {
		s.logger.Warn("touch on read", "error", err)
	}
}

func itemIDs(items []model.Item) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}
