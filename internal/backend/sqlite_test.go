package backend

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/crewkit/memstore/internal/model"
)

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLite(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("create backend: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteAddAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	id, err := s.Add(ctx, model.Item{
		Text:          "durable note",
		TokenEstimate: 4,
		Metadata:      map[string]string{"author": "loop"},
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Text != "durable note" || got.TokenEstimate != 4 {
		t.Errorf("round-trip mismatch: %+v", got)
	}
	if got.Metadata["author"] != "loop" {
		t.Errorf("expected metadata round-trip, got %v", got.Metadata)
	}
}

func TestSQLiteGetNotFound(t *testing.T) {
	s := newTestSQLite(t)
	if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteRejectsInvalidItems(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	if _, err := s.Add(ctx, model.Item{Text: ""}); !errors.Is(err, model.ErrInvalidItem) {
		t.Errorf("expected ErrInvalidItem, got %v", err)
	}

	st, _ := s.Stats(ctx)
	if st.ItemCount != 0 {
		t.Errorf("rejected add must not mutate, stats %+v", st)
	}
}

func TestSQLiteQueryRecent(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	base := time.Now().UTC()
	for i, text := range []string{"first", "second", "third"} {
		_, err := s.Add(ctx, model.Item{Text: text, CreatedAt: base.Add(time.Duration(i) * time.Millisecond)})
		if err != nil {
			t.Fatalf("add %s: %v", text, err)
		}
	}

	recent, err := s.QueryRecent(ctx, 2)
	if err != nil {
		t.Fatalf("query recent: %v", err)
	}
	if len(recent) != 2 || recent[0].Text != "third" || recent[1].Text != "second" {
		t.Fatalf("expected [third second], got %v", recent)
	}
}

func TestSQLiteSemanticUnsupported(t *testing.T) {
	s := newTestSQLite(t)
	if s.SupportsSemantic() {
		t.Error("sqlite backend must not claim semantic support")
	}
	if _, err := s.QuerySemantic(context.Background(), []float32{1}, 3); !errors.Is(err, model.ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}

func TestSQLiteDeleteMany(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	id1, _ := s.Add(ctx, model.Item{Text: "a", TokenEstimate: 1})
	id2, _ := s.Add(ctx, model.Item{Text: "b", TokenEstimate: 2})
	s.Add(ctx, model.Item{Text: "c", TokenEstimate: 3})

	if err := s.DeleteMany(ctx, []string{id1, id2, "absent"}); err != nil {
		t.Fatalf("delete many: %v", err)
	}

	st, _ := s.Stats(ctx)
	if st.ItemCount != 1 || st.TokenSum != 3 {
		t.Errorf("expected {1 3}, got %+v", st)
	}
}

func TestSQLiteReplaceTransactional(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	id1, _ := s.Add(ctx, model.Item{Text: "a", TokenEstimate: 5})
	id2, _ := s.Add(ctx, model.Item{Text: "b", TokenEstimate: 5})

	sumID, err := s.Replace(ctx, []string{id1, id2}, model.Item{
		Text:          "a+b condensed",
		TokenEstimate: 3,
		Metadata:      map[string]string{model.MetaSummary: "true", model.MetaSummarizes: id1 + "," + id2},
	})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}

	if _, err := s.Get(ctx, id1); !errors.Is(err, model.ErrNotFound) {
		t.Error("original a still live after replace")
	}
	sum, err := s.Get(ctx, sumID)
	if err != nil {
		t.Fatalf("get summary: %v", err)
	}
	if !sum.IsSummary() {
		t.Error("expected summary metadata tag")
	}

	st, _ := s.Stats(ctx)
	if st.ItemCount != 1 || st.TokenSum != 3 {
		t.Errorf("expected {1 3}, got %+v", st)
	}
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "persist.db")

	s, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id, _ := s.Add(ctx, model.Item{Text: "survives restart", TokenEstimate: 4})
	s.Close()

	s2, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	got, err := s2.Get(ctx, id)
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if got.Text != "survives restart" {
		t.Errorf("expected persisted text, got %q", got.Text)
	}
}

func TestSQLiteTouchLastAccessed(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	id, _ := s.Add(ctx, model.Item{Text: "tracked"})
	before, _ := s.Get(ctx, id)

	at := before.LastAccessedAt.Add(time.Minute)
	if err := s.TouchLastAccessed(ctx, []string{id}, at); err != nil {
		t.Fatalf("touch: %v", err)
	}
	after, _ := s.Get(ctx, id)
	if !after.LastAccessedAt.Equal(at) {
		t.Errorf("expected %v, got %v", at, after.LastAccessedAt)
	}
}

func TestSQLiteReAddSameIDReplaces(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	item := model.Item{ID: "fixed", Text: "first revision", TokenEstimate: 5}
	if _, err := s.Add(ctx, item); err != nil {
		t.Fatalf("first add: %v", err)
	}

	item.Text = "second revision"
	item.TokenEstimate = 8
	if _, err := s.Add(ctx, item); err != nil {
		t.Fatalf("re-add must replace, not conflict: %v", err)
	}

	got, err := s.Get(ctx, "fixed")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Text != "second revision" {
		t.Errorf("text %q, want the replacement", got.Text)
	}

	st, _ := s.Stats(ctx)
	if st.ItemCount != 1 || st.TokenSum != 8 {
		t.Errorf("stats %+v, want 1 item at 8 tokens", st)
	}
}
