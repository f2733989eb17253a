// Package embedding provides a pluggable interface for text embedding providers.
package embedding

import (
	"context"
	"math"
	"os"
)

// Vector is a float32 embedding vector.
type Vector = []float32

// Embedder generates embedding vectors from text. Implementations must be
// deterministic for a given model version; absence of an Embedder disables
// semantic queries entirely.
type Embedder interface {
	Embed(ctx context.Context, text string) (Vector, error)
	Dims() int
}

// CosineSimilarity computes cosine similarity between two vectors.
// Mismatched or zero-norm inputs score 0.
func CosineSimilarity(a, b Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// NewFromEnv creates an embedder from environment variables.
// MEMSTORE_EMBED_PROVIDER: "ollama" | "openai" | "hash" | "" (disabled)
// MEMSTORE_EMBED_MODEL: model name
// MEMSTORE_EMBED_URL: base URL override
// OPENAI_API_KEY: for the openai provider
func NewFromEnv() Embedder {
	provider := os.Getenv("MEMSTORE_EMBED_PROVIDER")
	model := os.Getenv("MEMSTORE_EMBED_MODEL")

	switch provider {
	case "ollama":
		if model == "" {
			model = "nomic-embed-text"
		}
		return NewOllamaEmbedder(model)
	case "openai":
		url := os.Getenv("MEMSTORE_EMBED_URL")
		key := os.Getenv("OPENAI_API_KEY")
		return NewOpenAIEmbedder(url, key, model, 0)
	case "hash":
		return NewHashEmbedder(0)
	default:
		return nil // embeddings disabled
	}
}
