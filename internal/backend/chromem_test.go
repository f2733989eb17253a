package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/crewkit/memstore/internal/model"
)

func newTestChromem(t *testing.T) *Chromem {
	t.Helper()
	c, err := NewChromem("test")
	if err != nil {
		t.Fatalf("create backend: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestChromemAddAndQuerySemantic(t *testing.T) {
	ctx := context.Background()
	c := newTestChromem(t)

	if !c.SupportsSemantic() {
		t.Fatal("chromem backend must claim semantic support")
	}

	c.Add(ctx, model.Item{Text: "east", Embedding: []float32{1, 0, 0}})
	c.Add(ctx, model.Item{Text: "north", Embedding: []float32{0, 1, 0}})
	c.Add(ctx, model.Item{Text: "up", Embedding: []float32{0, 0, 1}})

	got, err := c.QuerySemantic(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("query semantic: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if got[0].Text != "east" {
		t.Errorf("expected closest match first, got %q", got[0].Text)
	}
}

func TestChromemClampsKToCollectionSize(t *testing.T) {
	ctx := context.Background()
	c := newTestChromem(t)

	c.Add(ctx, model.Item{Text: "solo", Embedding: []float32{1, 0}})

	got, err := c.QuerySemantic(ctx, []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("query semantic: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected 1 result, got %d", len(got))
	}
}

func TestChromemEmptyCollection(t *testing.T) {
	c := newTestChromem(t)
	got, err := c.QuerySemantic(context.Background(), []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("query semantic: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no results, got %d", len(got))
	}
}

func TestChromemItemsWithoutEmbeddings(t *testing.T) {
	ctx := context.Background()
	c := newTestChromem(t)

	// plain items live in the table but never surface in similarity results
	id, err := c.Add(ctx, model.Item{Text: "no vector", TokenEstimate: 2})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	c.Add(ctx, model.Item{Text: "vectored", Embedding: []float32{1, 0}})

	if _, err := c.Get(ctx, id); err != nil {
		t.Errorf("get plain item: %v", err)
	}
	got, _ := c.QuerySemantic(ctx, []float32{1, 0}, 5)
	for _, it := range got {
		if it.ID == id {
			t.Error("plain item surfaced in semantic results")
		}
	}

	st, _ := c.Stats(ctx)
	if st.ItemCount != 2 || st.EmbeddingCount != 1 {
		t.Errorf("expected 2 items / 1 embedding, got %+v", st)
	}
}

func TestChromemDeleteRemovesFromIndex(t *testing.T) {
	ctx := context.Background()
	c := newTestChromem(t)

	id, _ := c.Add(ctx, model.Item{Text: "gone soon", Embedding: []float32{1, 0}})
	c.Add(ctx, model.Item{Text: "stays", Embedding: []float32{0, 1}})

	if err := c.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := c.Get(ctx, id); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	got, err := c.QuerySemantic(ctx, []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("query semantic: %v", err)
	}
	for _, it := range got {
		if it.ID == id {
			t.Error("deleted item surfaced in semantic results")
		}
	}
}

func TestChromemReplace(t *testing.T) {
	ctx := context.Background()
	c := newTestChromem(t)

	id1, _ := c.Add(ctx, model.Item{Text: "a", TokenEstimate: 5, Embedding: []float32{1, 0}})
	id2, _ := c.Add(ctx, model.Item{Text: "b", TokenEstimate: 5, Embedding: []float32{0, 1}})

	sumID, err := c.Replace(ctx, []string{id1, id2}, model.Item{
		Text:          "a and b",
		TokenEstimate: 4,
		Embedding:     []float32{1, 1},
		Metadata:      map[string]string{model.MetaSummary: "true"},
	})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}

	st, _ := c.Stats(ctx)
	if st.ItemCount != 1 || st.TokenSum != 4 || st.EmbeddingCount != 1 {
		t.Errorf("expected {1 4 1}, got %+v", st)
	}

	got, _ := c.QuerySemantic(ctx, []float32{1, 1}, 1)
	if len(got) != 1 || got[0].ID != sumID {
		t.Errorf("expected only the summary in the index, got %v", got)
	}
}

func TestChromemReAddSameIDKeepsCountersExact(t *testing.T) {
	ctx := context.Background()
	c := newTestChromem(t)

	item := model.Item{ID: "fixed", Text: "pinned note", TokenEstimate: 5, Embedding: []float32{1, 0, 0}}
	if _, err := c.Add(ctx, item); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if _, err := c.Add(ctx, item); err != nil {
		t.Fatalf("second add: %v", err)
	}

	st, err := c.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.ItemCount != 1 {
		t.Errorf("item count %d, want 1", st.ItemCount)
	}
	if st.TokenSum != 5 {
		t.Errorf("token sum %d, want 5", st.TokenSum)
	}
	if st.EmbeddingCount != 1 {
		t.Errorf("embedding count %d, want 1", st.EmbeddingCount)
	}

	// replacement changes the cost: counters must follow
	item.TokenEstimate = 8
	item.Embedding = nil
	if _, err := c.Add(ctx, item); err != nil {
		t.Fatalf("third add: %v", err)
	}
	st, _ = c.Stats(ctx)
	if st.TokenSum != 8 || st.EmbeddingCount != 0 {
		t.Errorf("after replace: token sum %d embeddings %d, want 8 and 0", st.TokenSum, st.EmbeddingCount)
	}

	got, err := c.QuerySemantic(ctx, []float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("query semantic: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("stale document still indexed: %d results", len(got))
	}
}
