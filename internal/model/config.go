package model

import (
	"fmt"
	"time"
)

// Policy selects which items are removed when a store exceeds its budget.
type Policy string

const (
	// FIFO removes the oldest items (by CreatedAt) first.
	FIFO Policy = "fifo"
	// LRU removes the least recently read items first.
	LRU Policy = "lru"
	// TTL removes everything older than TimeWindow, then falls back to FIFO
	// for residual count/token pressure.
	TTL Policy = "ttl"
	// ReverseChrono removes the newest items first — "keep only the oldest N"
	// retention.
	ReverseChrono Policy = "reverse-chrono"
)

// ValidPolicies are the accepted eviction policies.
var ValidPolicies = map[Policy]bool{
	FIFO:          true,
	LRU:           true,
	TTL:           true,
	ReverseChrono: true,
}

// DefaultSummaryGap is the largest CreatedAt gap allowed inside one
// summarization group.
const DefaultSummaryGap = 5 * time.Minute

// SizeConfig bounds a store. A zero value for any limit means unbounded.
type SizeConfig struct {
	MaxItems      int           `json:"max_items"`
	MaxTokens     int           `json:"max_tokens"`
	MaxEmbeddings int           `json:"max_embeddings"`
	TimeWindow    time.Duration `json:"time_window"`

	Policy              Policy        `json:"policy"`
	SummarizeOnEviction bool          `json:"summarize_on_eviction"`
	SummaryGap          time.Duration `json:"summary_gap"`
}

// DefaultSizeConfig returns an unbounded FIFO configuration.
func DefaultSizeConfig() SizeConfig {
	return SizeConfig{Policy: FIFO, SummaryGap: DefaultSummaryGap}
}

// Validate checks field ranges. It never mutates the receiver; callers keep
// their previous config when validation fails.
func (c SizeConfig) Validate() error {
	if c.MaxItems < 0 {
		return fmt.Errorf("%w: max_items %d is negative", ErrInvalidConfig, c.MaxItems)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("%w: max_tokens %d is negative", ErrInvalidConfig, c.MaxTokens)
	}
	if c.MaxEmbeddings < 0 {
		return fmt.Errorf("%w: max_embeddings %d is negative", ErrInvalidConfig, c.MaxEmbeddings)
	}
	if c.TimeWindow < 0 {
		return fmt.Errorf("%w: time_window %s is negative", ErrInvalidConfig, c.TimeWindow)
	}
	if c.SummaryGap < 0 {
		return fmt.Errorf("%w: summary_gap %s is negative", ErrInvalidConfig, c.SummaryGap)
	}
	if c.Policy != "" && !ValidPolicies[c.Policy] {
		return fmt.Errorf("%w: unknown policy %q", ErrInvalidConfig, c.Policy)
	}
	if c.Policy == TTL && c.TimeWindow == 0 {
		return fmt.Errorf("%w: ttl policy requires a time_window", ErrInvalidConfig)
	}
	return nil
}

// Normalize fills defaults for zero-value optional fields.
func (c SizeConfig) Normalize() SizeConfig {
	if c.Policy == "" {
		c.Policy = FIFO
	}
	if c.SummaryGap == 0 {
		c.SummaryGap = DefaultSummaryGap
	}
	return c
}

// Bounded reports whether any limit is set at all.
func (c SizeConfig) Bounded() bool {
	return c.MaxItems > 0 || c.MaxTokens > 0 || c.MaxEmbeddings > 0 || c.TimeWindow > 0
}
