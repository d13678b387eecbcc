package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store provides SQLite-based viewed-rules storage.
type Store struct {
	db         *sql.DB
	maxEntries int
}

// StoreConfig configures the history store.
type StoreConfig struct {
	// Path is the SQLite database file path
	Path string
	// MaxEntries caps the number of remembered rules (0 = unlimited)
	MaxEntries int
}

// NewStore creates a new history store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating history dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	store := &Store{db: db, maxEntries: cfg.MaxEntries}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS views (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			rule_key TEXT NOT NULL UNIQUE,
			rule_name TEXT NOT NULL,
			language TEXT,
			severity TEXT,
			type TEXT,
			profiles INTEGER DEFAULT 0,
			overridden INTEGER DEFAULT 0,
			view_count INTEGER DEFAULT 1,
			viewed_at INTEGER NOT NULL
		)`,

		`CREATE VIRTUAL TABLE IF NOT EXISTS views_fts USING fts5(
			rule_name,
			rule_key,
			content='views',
			content_rowid='id'
		)`,

		`CREATE TRIGGER IF NOT EXISTS views_ai AFTER INSERT ON views BEGIN
			INSERT INTO views_fts(rowid, rule_name, rule_key)
			VALUES (new.id, new.rule_name, new.rule_key);
		END`,

		`CREATE TRIGGER IF NOT EXISTS views_ad AFTER DELETE ON views BEGIN
			INSERT INTO views_fts(views_fts, rowid, rule_name, rule_key)
			VALUES ('delete', old.id, old.rule_name, old.rule_key);
		END`,

		`CREATE TRIGGER IF NOT EXISTS views_au AFTER UPDATE ON views BEGIN
			INSERT INTO views_fts(views_fts, rowid, rule_name, rule_key)
			VALUES ('delete', old.id, old.rule_name, old.rule_key);
			INSERT INTO views_fts(rowid, rule_name, rule_key)
			VALUES (new.id, new.rule_name, new.rule_key);
		END`,

		`CREATE INDEX IF NOT EXISTS idx_views_viewed ON views(viewed_at)`,
		`CREATE INDEX IF NOT EXISTS idx_views_language ON views(language)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// Record saves a view. Viewing a known rule refreshes its summary and bumps
// its view count.
func (s *Store) Record(ctx context.Context, v *View) error {
	if v.RuleKey == "" {
		return errors.New("rule key is required")
	}
	if v.ViewedAt.IsZero() {
		v.ViewedAt = time.Now()
	}

	query := `INSERT INTO views (
		rule_key, rule_name, language, severity, type, profiles, overridden, view_count, viewed_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?)
	ON CONFLICT(rule_key) DO UPDATE SET
		rule_name = excluded.rule_name,
		language = excluded.language,
		severity = excluded.severity,
		type = excluded.type,
		profiles = excluded.profiles,
		overridden = excluded.overridden,
		view_count = views.view_count + 1,
		viewed_at = excluded.viewed_at`

	_, err := s.db.ExecContext(ctx, query,
		v.RuleKey, v.RuleName, v.Language, v.Severity, v.Type,
		v.Profiles, v.Overridden, v.ViewedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("recording view: %w", err)
	}

	return s.prune(ctx)
}

// prune keeps the most recent maxEntries rules.
func (s *Store) prune(ctx context.Context) error {
	if s.maxEntries <= 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM views WHERE id NOT IN (
		SELECT id FROM views ORDER BY viewed_at DESC, id DESC LIMIT ?
	)`, s.maxEntries)
	if err != nil {
		return fmt.Errorf("pruning history: %w", err)
	}
	return nil
}

// Get returns the view of a rule, or nil if it was never viewed.
func (s *Store) Get(ctx context.Context, ruleKey string) (*View, error) {
	row := s.db.QueryRowContext(ctx, selectViews+" WHERE v.rule_key = ?", ruleKey)
	v, err := scanView(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return v, err
}

// Recent returns the most recently viewed rules.
func (s *Store) Recent(ctx context.Context, limit int) ([]*View, error) {
	return s.Search(ctx, SearchQuery{Limit: limit})
}

const selectViews = `SELECT v.id, v.rule_key, v.rule_name, v.language, v.severity, v.type,
	v.profiles, v.overridden, v.view_count, v.viewed_at FROM views v`

// Search finds viewed rules, most recent first.
func (s *Store) Search(ctx context.Context, q SearchQuery) ([]*View, error) {
	var args []interface{}
	var conditions []string

	if text := strings.TrimSpace(q.Text); text != "" {
		conditions = append(conditions, "v.id IN (SELECT rowid FROM views_fts WHERE views_fts MATCH ?)")
		args = append(args, ftsPrefix(text))
	}

	if q.Language != "" {
		conditions = append(conditions, "v.language = ?")
		args = append(args, q.Language)
	}

	if q.OnlyOverridden {
		conditions = append(conditions, "v.overridden > 0")
	}

	query := selectViews
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	query += " ORDER BY v.viewed_at DESC, v.id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching history: %w", err)
	}
	defer rows.Close()

	var views []*View
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

// GetStats summarizes the stored views.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ByLanguage: make(map[string]int)}

	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(view_count), 0) FROM views`)
	if err := row.Scan(&stats.Rules, &stats.Views); err != nil {
		return nil, fmt.Errorf("counting views: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT COALESCE(language, ''), COUNT(*) FROM views GROUP BY language`)
	if err != nil {
		return nil, fmt.Errorf("grouping views: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var lang string
		var count int
		if err := rows.Scan(&lang, &count); err != nil {
			return nil, err
		}
		stats.ByLanguage[lang] = count
	}
	return stats, rows.Err()
}

// Delete forgets a rule.
func (s *Store) Delete(ctx context.Context, ruleKey string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM views WHERE rule_key = ?`, ruleKey)
	return err
}

// Clear forgets every rule.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM views`)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanView(row scanner) (*View, error) {
	var v View
	var lang, sev, typ sql.NullString
	var viewedAt int64

	err := row.Scan(&v.ID, &v.RuleKey, &v.RuleName, &lang, &sev, &typ,
		&v.Profiles, &v.Overridden, &v.ViewCount, &viewedAt)
	if err != nil {
		return nil, err
	}

	v.Language = lang.String
	v.Severity = sev.String
	v.Type = typ.String
	v.ViewedAt = time.Unix(0, viewedAt)
	return &v, nil
}

// ftsPrefix quotes each word of text as an FTS5 prefix query so rule keys
// like "go:S100" are not parsed as column filters.
func ftsPrefix(text string) string {
	words := strings.Fields(text)
	for i, w := range words {
		words[i] = `"` + strings.ReplaceAll(w, `"`, `""`) + `"*`
	}
	return strings.Join(words, " ")
}
