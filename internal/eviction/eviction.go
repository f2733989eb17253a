// Package eviction decides which items leave a store when it exceeds its
// size budget. Plans are pure: callers pass a snapshot of the live item set
// and apply the returned victims themselves.
package eviction

import (
	"sort"
	"time"

	"github.com/crewkit/memstore/internal/model"
)

// Plan selects the minimal set of victims so that, after their removal, all
// bounded limits in cfg (MaxItems, MaxTokens, MaxEmbeddings, TimeWindow)
// hold simultaneously. Victims are returned in removal order per cfg.Policy.
//
// A single item whose TokenEstimate alone exceeds MaxTokens is not special:
// it was admitted as-is and simply becomes a victim here. Sane per-item
// limits are the caller's responsibility.
func Plan(items []model.Item, cfg model.SizeConfig, now time.Time) []model.Item {
	cfg = cfg.Normalize()
	if len(items) == 0 || !cfg.Bounded() {
		return nil
	}

	var victims []model.Item
	live := append([]model.Item(nil), items...)

	// The time window binds under every policy, not just TTL.
	if cfg.TimeWindow > 0 {
		cutoff := now.Add(-cfg.TimeWindow)
		kept := live[:0]
		for _, it := range live {
			if it.CreatedAt.Before(cutoff) {
				victims = append(victims, it)
			} else {
				kept = append(kept, it)
			}
		}
		live = kept
	}

	count := len(live)
	tokens := 0
	embeds := 0
	for _, it := range live {
		tokens += it.TokenEstimate
		if it.HasEmbedding() {
			embeds++
		}
	}

	overCount := func() bool { return cfg.MaxItems > 0 && count > cfg.MaxItems }
	overTokens := func() bool { return cfg.MaxTokens > 0 && tokens > cfg.MaxTokens }
	overEmbeds := func() bool { return cfg.MaxEmbeddings > 0 && embeds > cfg.MaxEmbeddings }

	if !overCount() && !overTokens() && !overEmbeds() {
		return victims
	}

	orderCandidates(live, cfg.Policy)
	for _, it := range live {
		if !overCount() && !overTokens() && !overEmbeds() {
			break
		}
		// Skip items that would not relieve any violated limit.
		helps := overCount() ||
			(overTokens() && it.TokenEstimate > 0) ||
			(overEmbeds() && it.HasEmbedding())
		if !helps {
			continue
		}
		victims = append(victims, it)
		count--
		tokens -= it.TokenEstimate
		if it.HasEmbedding() {
			embeds--
		}
	}
	return victims
}

// orderCandidates sorts live items into removal order for the given policy.
// TTL expiry is handled before this point, so TTL degrades to FIFO for
// whatever count/token pressure remains.
func orderCandidates(items []model.Item, policy model.Policy) {
	switch policy {
	case model.LRU:
		sort.Slice(items, func(i, j int) bool {
			if !items[i].LastAccessedAt.Equal(items[j].LastAccessedAt) {
				return items[i].LastAccessedAt.Before(items[j].LastAccessedAt)
			}
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		})
	case model.ReverseChrono:
		sort.Slice(items, func(i, j int) bool {
			if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
				return items[i].CreatedAt.After(items[j].CreatedAt)
			}
			return items[i].ID > items[j].ID
		})
	default: // FIFO and TTL fallback
		sort.Slice(items, func(i, j int) bool {
			if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
				return items[i].CreatedAt.Before(items[j].CreatedAt)
			}
			return items[i].ID < items[j].ID
		})
	}
}

// GroupContiguous partitions victims into time-contiguous groups for
// summarization: consecutive items (by CreatedAt) stay in one group as long
// as the gap between neighbors does not exceed gap.
func GroupContiguous(victims []model.Item, gap time.Duration) [][]model.Item {
	if len(victims) == 0 {
		return nil
	}
	if gap <= 0 {
		gap = model.DefaultSummaryGap
	}

	sorted := append([]model.Item(nil), victims...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	var groups [][]model.Item
	current := []model.Item{sorted[0]}
	for _, it := range sorted[1:] {
		prev := current[len(current)-1]
		if it.CreatedAt.Sub(prev.CreatedAt) > gap {
			groups = append(groups, current)
			current = []model.Item{it}
			continue
		}
		current = append(current, it)
	}
	return append(groups, current)
}
