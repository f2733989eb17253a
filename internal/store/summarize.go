package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/crewkit/memstore/internal/model"
)

// Summarizer compresses a group of about-to-be-evicted items into one
// synthetic text. Typically backed by a language model; failure is declared
// and non-fatal (the group is hard-deleted instead).
type Summarizer interface {
	Summarize(ctx context.Context, items []model.Item) (string, error)
}

// SummarizerFunc adapts a plain function to the Summarizer interface.
type SummarizerFunc func(ctx context.Context, items []model.Item) (string, error)

func (f SummarizerFunc) Summarize(ctx context.Context, items []model.Item) (string, error) {
	return f(ctx, items)
}

// HeadlineSummarizer is a model-free fallback: it keeps the first line of
// each item, clipped. Useful for tests and for running without an LLM.
type HeadlineSummarizer struct {
	MaxLineLen int // defaults to 80
}

func (h HeadlineSummarizer) Summarize(ctx context.Context, items []model.Item) (string, error) {
	if len(items) == 0 {
		return "", fmt.Errorf("nothing to summarize")
	}
	maxLen := h.MaxLineLen
	if maxLen <= 0 {
		maxLen = 80
	}

	lines := make([]string, 0, len(items)+1)
	lines = append(lines, fmt.Sprintf("[condensed from %d items]", len(items)))
	for _, it := range items {
		head := it.Text
		if i := strings.IndexByte(head, '\n'); i >= 0 {
			head = head[:i]
		}
		if len(head) > maxLen {
			head = head[:maxLen]
		}
		lines = append(lines, "- "+head)
	}
	return strings.Join(lines, "\n"), nil
}
