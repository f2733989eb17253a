// Package model defines the core memory data types shared by backends and the store.
package model

import "time"

// Item is the unit of storage: one remembered observation.
// Text is immutable after creation — summarization produces a new item,
// it never rewrites an existing one.
type Item struct {
	ID             string            `json:"id"`
	Text           string            `json:"text"`
	Embedding      []float32         `json:"embedding,omitempty"`
	TokenEstimate  int               `json:"token_estimate"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	LastAccessedAt time.Time         `json:"last_accessed_at"`
}

// Metadata keys reserved for items synthesized by summarize-on-eviction.
const (
	MetaSummary    = "summary"    // "true" on synthetic summary items
	MetaSummarizes = "summarizes" // comma-joined ids of the originals (audit only)
)

// IsSummary reports whether the item was produced by summarize-on-eviction.
func (it Item) IsSummary() bool {
	return it.Metadata[MetaSummary] == "true"
}

// HasEmbedding reports whether a vector is attached.
func (it Item) HasEmbedding() bool {
	return len(it.Embedding) > 0
}

// Clone returns a deep copy so callers can hold results without aliasing
// backend-owned state.
func (it Item) Clone() Item {
	out := it
	if it.Embedding != nil {
		out.Embedding = append([]float32(nil), it.Embedding...)
	}
	if it.Metadata != nil {
		out.Metadata = make(map[string]string, len(it.Metadata))
		for k, v := range it.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
