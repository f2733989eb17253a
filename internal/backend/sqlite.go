package backend

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/crewkit/memstore/internal/model"
)

// SQLite is the embedded-relational backend. Durable: reopening the same
// database path reconstructs the live item set as of the last committed
// write. No vector index; SupportsSemantic is false.
type SQLite struct {
	db      *sql.DB
	entropy *rand.Rand
}

// NewSQLite opens or creates a SQLite database at the given path.
func NewSQLite(dbPath string) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLite{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS items (
		id               TEXT PRIMARY KEY,
		text             TEXT NOT NULL,
		token_estimate   INTEGER NOT NULL,
		metadata         TEXT,
		created_at       INTEGER NOT NULL,
		last_accessed_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_items_created ON items(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_items_accessed ON items(last_accessed_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// unavailable tags storage failures so the store can degrade gracefully
// during eviction.
func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", model.ErrBackendUnavailable, op, err)
}

func (s *SQLite) Add(ctx context.Context, item model.Item) (string, error) {
	item, err := prepare(item, s.entropy, time.Now().UTC())
	if err != nil {
		return "", err
	}

	var metaJSON *string
	if len(item.Metadata) > 0 {
		b, _ := json.Marshal(item.Metadata)
		str := string(b)
		metaJSON = &str
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO items (id, text, token_estimate, metadata, created_at, last_accessed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		item.ID, item.Text, item.TokenEstimate, metaJSON,
		item.CreatedAt.UnixNano(), item.LastAccessedAt.UnixNano())
	if err != nil {
		return "", unavailable("insert item", err)
	}
	return item.ID, nil
}

func (s *SQLite) AddMany(ctx context.Context, items []model.Item) ([]string, error) {
	// Each item commits on its own: a cancelled batch leaves the prefix
	// intact with no rollback.
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return ids, err
		}
		id, err := s.Add(ctx, item)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *SQLite) Get(ctx context.Context, id string) (model.Item, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, text, token_estimate, metadata, created_at, last_accessed_at
		 FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Item{}, model.ErrNotFound
	}
	if err != nil {
		return model.Item{}, unavailable("get item", err)
	}
	return item, nil
}

func (s *SQLite) QueryRecent(ctx context.Context, k int) ([]model.Item, error) {
	query := `SELECT id, text, token_estimate, metadata, created_at, last_accessed_at
	          FROM items ORDER BY created_at DESC, id DESC`
	args := []interface{}{}
	if k >= 0 {
		query += ` LIMIT ?`
		args = append(args, k)
	}
	return s.queryItems(ctx, query, args...)
}

func (s *SQLite) QuerySemantic(ctx context.Context, emb []float32, k int) ([]model.Item, error) {
	return nil, model.ErrUnsupported
}

func (s *SQLite) QueryByFilter(ctx context.Context, pred Filter) ([]model.Item, error) {
	// Insertion order: ULIDs sort by creation, so id order is stable.
	items, err := s.queryItems(ctx,
		`SELECT id, text, token_estimate, metadata, created_at, last_accessed_at
		 FROM items ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	if pred == nil {
		return items, nil
	}
	matched := items[:0]
	for _, it := range items {
		if pred(it) {
			matched = append(matched, it)
		}
	}
	return matched, nil
}

func (s *SQLite) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return unavailable("delete item", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *SQLite) DeleteMany(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM items WHERE id IN (%s)`, placeholders), args...)
	if err != nil {
		return unavailable("delete items", err)
	}
	return nil
}

func (s *SQLite) Replace(ctx context.Context, ids []string, replacement model.Item) (string, error) {
	replacement, err := prepare(replacement, s.entropy, time.Now().UTC())
	if err != nil {
		return "", err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", unavailable("begin replace", err)
	}
	defer tx.Rollback()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id); err != nil {
			return "", unavailable("replace delete", err)
		}
	}

	var metaJSON *string
	if len(replacement.Metadata) > 0 {
		b, _ := json.Marshal(replacement.Metadata)
		str := string(b)
		metaJSON = &str
	}
	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO items (id, text, token_estimate, metadata, created_at, last_accessed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		replacement.ID, replacement.Text, replacement.TokenEstimate, metaJSON,
		replacement.CreatedAt.UnixNano(), replacement.LastAccessedAt.UnixNano())
	if err != nil {
		return "", unavailable("replace insert", err)
	}

	if err := tx.Commit(); err != nil {
		return "", unavailable("commit replace", err)
	}
	return replacement.ID, nil
}

func (s *SQLite) TouchLastAccessed(ctx context.Context, ids []string, at time.Time) error {
	nanos := at.UnixNano()
	for _, id := range ids {
		_, err := s.db.ExecContext(ctx,
			`UPDATE items SET last_accessed_at = ? WHERE id = ? AND last_accessed_at < ?`,
			nanos, id, nanos)
		if err != nil {
			return unavailable("touch item", err)
		}
	}
	return nil
}

func (s *SQLite) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(token_estimate), 0) FROM items`).
		Scan(&st.ItemCount, &st.TokenSum)
	if err != nil {
		return Stats{}, unavailable("stats", err)
	}
	return st, nil
}

func (s *SQLite) SupportsSemantic() bool { return false }

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) queryItems(ctx context.Context, query string, args ...interface{}) ([]model.Item, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("query items", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, unavailable("scan item", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row scanner) (model.Item, error) {
	var item model.Item
	var metaJSON sql.NullString
	var createdNanos, accessedNanos int64

	err := row.Scan(&item.ID, &item.Text, &item.TokenEstimate, &metaJSON,
		&createdNanos, &accessedNanos)
	if err != nil {
		return item, err
	}

	item.CreatedAt = time.Unix(0, createdNanos).UTC()
	item.LastAccessedAt = time.Unix(0, accessedNanos).UTC()
	if metaJSON.Valid {
		if err := json.Unmarshal([]byte(metaJSON.String), &item.Metadata); err != nil {
			return item, fmt.Errorf("decode metadata for %s: %w", item.ID, err)
		}
	}
	return item, nil
}
