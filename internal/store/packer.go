package store

import (
	"context"

	"github.com/crewkit/memstore/internal/model"
)

// DefaultCandidateLimit is the candidate pool size for packing — generous
// relative to what usually fits, so the greedy pass has cheap items to fall
// through to after skipping expensive ones.
const DefaultCandidateLimit = 50

// Packer greedily fills a token budget with items from a Store for
// downstream prompting.
//
// The packing is a deliberate simplicity/latency trade-off: candidates are
// taken in relevance order (similarity, or recency when semantic=false) and
// accepted while they fit; an item whose cost alone exceeds the remaining
// budget is skipped, not substituted. The result is a greedy prefix, not a
// knapsack-optimal packing.
type Packer struct {
	store *Store

	// CandidateLimit bounds the pool fetched per Pack call.
	CandidateLimit int
}

// NewPacker creates a packer over the given store.
func NewPacker(s *Store) *Packer {
	return &Packer{store: s, CandidateLimit: DefaultCandidateLimit}
}

// PackResult carries the selected items and their total token cost.
type PackResult struct {
	Items  []model.Item `json:"items"`
	Budget int          `json:"budget"`
	Used   int          `json:"used"`
}

// Pack selects items whose summed TokenEstimate never exceeds tokenBudget.
// With semantic=true candidates are ranked by similarity to query; with
// semantic=false by recency (query, when non-empty, narrows the pool by
// substring match).
func (p *Packer) Pack(ctx context.Context, query string, tokenBudget int, semantic bool) (PackResult, error) {
	res := PackResult{Budget: tokenBudget, Items: []model.Item{}}
	if tokenBudget <= 0 {
		return res, nil
	}

	limit := p.CandidateLimit
	if limit <= 0 {
		limit = DefaultCandidateLimit
	}

	var candidates []model.Item
	var err error
	switch {
	case semantic:
		candidates, err = p.store.Search(ctx, query, limit, true)
	case query != "":
		candidates, err = p.store.Search(ctx, query, limit, false)
	default:
		candidates, err = p.store.GetRecent(ctx, limit)
	}
	if err != nil {
		return res, err
	}

	for _, c := range candidates {
		if c.TokenEstimate > tokenBudget-res.Used {
			continue // too expensive on its own; cheaper candidates may still fit
		}
		res.Items = append(res.Items, c)
		res.Used += c.TokenEstimate
	}
	return res, nil
}
