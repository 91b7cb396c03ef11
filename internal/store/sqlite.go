// Package store provides SQLite persistence for the narrative engine.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/finpulse/narrative/internal/entity"
	"github.com/finpulse/narrative/internal/feeds"
	"github.com/finpulse/narrative/internal/narrative"
	"github.com/finpulse/narrative/internal/sentiment"
)

// Store implements narrative.Store on SQLite. NOT an interface - concrete
// type. Thread-safety: all methods are safe for concurrent use via an
// internal mutex, which also serializes concurrent updates to the same
// narrative.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ narrative.Store = (*Store)(nil)

// Open creates a new Store with the given database path. Creates tables if
// they don't exist. Uses WAL mode for better concurrent read performance
// (file-based DBs only).
func Open(dbPath string) (*Store, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		// Shared cache so all pooled connections see the same database
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &Store{db: db}

	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return s, nil
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS narratives (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		summary TEXT,
		sentiment TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_narratives_updated ON narratives(updated_at DESC);

	-- An item belongs to at most one narrative: item_id is the primary key.
	CREATE TABLE IF NOT EXISTS narrative_articles (
		item_id TEXT PRIMARY KEY,
		narrative_id TEXT NOT NULL,
		source TEXT,
		source_name TEXT,
		title TEXT,
		summary TEXT,
		url TEXT,
		external_id TEXT,
		published_at DATETIME NOT NULL,
		added_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_articles_narrative ON narrative_articles(narrative_id);
	CREATE INDEX IF NOT EXISTS idx_articles_published ON narrative_articles(published_at DESC);

	CREATE TABLE IF NOT EXISTS narrative_entities (
		narrative_id TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_value TEXT NOT NULL,
		PRIMARY KEY (narrative_id, entity_type, entity_value)
	);
	CREATE INDEX IF NOT EXISTS idx_entities_key ON narrative_entities(entity_type, entity_value);

	CREATE TABLE IF NOT EXISTS seeds (
		item_id TEXT PRIMARY KEY,
		source TEXT,
		source_name TEXT,
		title TEXT,
		summary TEXT,
		content TEXT,
		url TEXT,
		external_id TEXT,
		published_at DATETIME NOT NULL,
		held_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS seed_entities (
		item_id TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_value TEXT NOT NULL,
		PRIMARY KEY (item_id, entity_type, entity_value)
	);

	CREATE TABLE IF NOT EXISTS metric_snapshots (
		id TEXT PRIMARY KEY,
		narrative_id TEXT NOT NULL,
		period TEXT NOT NULL,
		mention_count INTEGER NOT NULL,
		previous_mention_count INTEGER NOT NULL,
		velocity REAL NOT NULL,
		computed_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_snapshots_lookup ON metric_snapshots(narrative_id, period, computed_at DESC);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// GetNarrative fetches one narrative with entity keys and member IDs.
func (s *Store) GetNarrative(ctx context.Context, id string) (*narrative.Narrative, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, summary, sentiment, created_at, updated_at
		FROM narratives WHERE id = ?
	`, id)

	n, err := scanNarrative(row)
	if err == sql.ErrNoRows {
		return nil, narrative.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query narrative: %w", err)
	}

	if err := s.fillNarrative(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// RecentNarratives returns narratives updated at or after since; a zero
// since returns everything.
func (s *Store) RecentNarratives(ctx context.Context, since time.Time) ([]*narrative.Narrative, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, title, summary, sentiment, created_at, updated_at
		FROM narratives
	`
	var args []any
	if !since.IsZero() {
		query += ` WHERE updated_at >= ?`
		args = append(args, since)
	}
	query += ` ORDER BY updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query narratives: %w", err)
	}
	defer rows.Close()

	var narratives []*narrative.Narrative
	for rows.Next() {
		n, err := scanNarrative(rows)
		if err != nil {
			return nil, fmt.Errorf("scan narrative: %w", err)
		}
		narratives = append(narratives, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, n := range narratives {
		if err := s.fillNarrative(ctx, n); err != nil {
			return nil, err
		}
	}
	return narratives, nil
}

// CreateNarrative persists a narrative with its founding members in one
// transaction. A memberless narrative violates the engine invariant and is
// rejected.
func (s *Store) CreateNarrative(ctx context.Context, n *narrative.Narrative, members []feeds.Item) error {
	if len(members) == 0 {
		return fmt.Errorf("create narrative %s: no members", n.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO narratives (id, title, summary, sentiment, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, n.ID, n.Title, n.Summary, string(n.Sentiment), n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert narrative: %w", err)
	}

	if err := insertMembers(ctx, tx, n.ID, members, n.UpdatedAt); err != nil {
		return err
	}
	if err := insertKeys(ctx, tx, n.ID, keysOf(n.EntityKeys)); err != nil {
		return err
	}

	return tx.Commit()
}

// UpdateNarrative atomically appends members, unions entity keys, and
// rewrites sentiment and UpdatedAt for one narrative.
func (s *Store) UpdateNarrative(ctx context.Context, id string, up narrative.NarrativeUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE narratives SET sentiment = ?, updated_at = ? WHERE id = ?
	`, string(up.Sentiment), up.UpdatedAt, id)
	if err != nil {
		return fmt.Errorf("update narrative: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return narrative.ErrNotFound
	}

	if err := insertMembers(ctx, tx, id, up.AddMembers, up.UpdatedAt); err != nil {
		return err
	}
	if err := insertKeys(ctx, tx, id, up.AddKeys); err != nil {
		return err
	}

	return tx.Commit()
}

// MemberArticleIDs reports which of the given item IDs already belong to a
// narrative.
func (s *Store) MemberArticleIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	result := make(map[string]bool)
	if len(ids) == 0 {
		return result, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id FROM narrative_articles WHERE item_id IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan member id: %w", err)
		}
		result[id] = true
	}
	return result, rows.Err()
}

// ArticleTitles returns member titles ordered by publish time.
func (s *Store) ArticleTitles(ctx context.Context, narrativeID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT title FROM narrative_articles
		WHERE narrative_id = ? ORDER BY published_at ASC, item_id ASC
	`, narrativeID)
	if err != nil {
		return nil, fmt.Errorf("query article titles: %w", err)
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan title: %w", err)
		}
		titles = append(titles, t)
	}
	return titles, rows.Err()
}

// ArticleTimes returns member publish timestamps ordered ascending.
func (s *Store) ArticleTimes(ctx context.Context, narrativeID string) ([]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT published_at FROM narrative_articles
		WHERE narrative_id = ? ORDER BY published_at ASC
	`, narrativeID)
	if err != nil {
		return nil, fmt.Errorf("query article times: %w", err)
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan time: %w", err)
		}
		times = append(times, t)
	}
	return times, rows.Err()
}

// PutSeeds upserts held seeds with their extracted entity keys.
func (s *Store) PutSeeds(ctx context.Context, seeds []narrative.Seed) error {
	if len(seeds) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	for _, sd := range seeds {
		it := sd.Item
		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO seeds (
				item_id, source, source_name, title, summary, content,
				url, external_id, published_at, held_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, it.ID, it.Source, it.SourceName, it.Title, it.Summary, it.Content,
			it.URL, it.ExternalID, it.Published, now)
		if err != nil {
			return fmt.Errorf("upsert seed %s: %w", it.ID, err)
		}

		for _, k := range sd.Keys {
			_, err := tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO seed_entities (item_id, entity_type, entity_value)
				VALUES (?, ?, ?)
			`, it.ID, string(k.Type), k.Value)
			if err != nil {
				return fmt.Errorf("insert seed entity: %w", err)
			}
		}
	}

	return tx.Commit()
}

// Seeds returns all held seeds with their entity keys.
func (s *Store) Seeds(ctx context.Context) ([]narrative.Seed, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id, source, source_name, title, summary, content,
			url, external_id, published_at
		FROM seeds ORDER BY published_at ASC, item_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query seeds: %w", err)
	}
	defer rows.Close()

	var seeds []narrative.Seed
	byID := make(map[string]int)
	for rows.Next() {
		var it feeds.Item
		err := rows.Scan(&it.ID, &it.Source, &it.SourceName, &it.Title, &it.Summary,
			&it.Content, &it.URL, &it.ExternalID, &it.Published)
		if err != nil {
			return nil, fmt.Errorf("scan seed: %w", err)
		}
		byID[it.ID] = len(seeds)
		seeds = append(seeds, narrative.Seed{Item: it})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	keyRows, err := s.db.QueryContext(ctx, `
		SELECT item_id, entity_type, entity_value FROM seed_entities
		ORDER BY item_id, entity_type, entity_value
	`)
	if err != nil {
		return nil, fmt.Errorf("query seed entities: %w", err)
	}
	defer keyRows.Close()

	for keyRows.Next() {
		var id, typ, value string
		if err := keyRows.Scan(&id, &typ, &value); err != nil {
			return nil, fmt.Errorf("scan seed entity: %w", err)
		}
		if i, ok := byID[id]; ok {
			seeds[i].Keys = append(seeds[i].Keys, entity.Key{Type: entity.Type(typ), Value: value})
		}
	}
	return seeds, keyRows.Err()
}

// DeleteSeeds drops seeds by item ID. IDs that were never held are ignored.
func (s *Store) DeleteSeeds(ctx context.Context, itemIDs []string) error {
	if len(itemIDs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(itemIDs)), ",")
	args := make([]any, len(itemIDs))
	for i, id := range itemIDs {
		args[i] = id
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM seeds WHERE item_id IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("delete seeds: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM seed_entities WHERE item_id IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("delete seed entities: %w", err)
	}
	return nil
}

// AppendSnapshot appends one metric snapshot row.
func (s *Store) AppendSnapshot(ctx context.Context, snap *narrative.MetricSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metric_snapshots (
			id, narrative_id, period, mention_count,
			previous_mention_count, velocity, computed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`, snap.ID, snap.NarrativeID, string(snap.Period), snap.MentionCount,
		snap.PreviousMentionCount, snap.Velocity, snap.ComputedAt)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the most recent snapshot for one narrative and
// period. Duplicate snapshots for the same computation are superseded by
// recency here.
func (s *Store) LatestSnapshot(ctx context.Context, narrativeID string, period narrative.Period) (*narrative.MetricSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, narrative_id, period, mention_count, previous_mention_count, velocity, computed_at
		FROM metric_snapshots
		WHERE narrative_id = ? AND period = ?
		ORDER BY computed_at DESC, id DESC
		LIMIT 1
	`, narrativeID, string(period))

	var snap narrative.MetricSnapshot
	var p string
	err := row.Scan(&snap.ID, &snap.NarrativeID, &p, &snap.MentionCount,
		&snap.PreviousMentionCount, &snap.Velocity, &snap.ComputedAt)
	if err == sql.ErrNoRows {
		return nil, narrative.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	snap.Period = narrative.Period(p)
	return &snap, nil
}

// DeleteNarrativesOlderThan removes narratives whose UpdatedAt is older
// than the given age, with their articles, entities, and snapshots.
func (s *Store) DeleteNarrativesOlderThan(ctx context.Context, age time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-age)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT id FROM narratives WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("query stale narratives: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	for _, stmt := range []string{
		`DELETE FROM narrative_articles WHERE narrative_id IN (` + placeholders + `)`,
		`DELETE FROM narrative_entities WHERE narrative_id IN (` + placeholders + `)`,
		`DELETE FROM metric_snapshots WHERE narrative_id IN (` + placeholders + `)`,
		`DELETE FROM narratives WHERE id IN (` + placeholders + `)`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return 0, fmt.Errorf("delete stale rows: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// scanner covers sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanNarrative(sc scanner) (*narrative.Narrative, error) {
	var n narrative.Narrative
	var sent string
	err := sc.Scan(&n.ID, &n.Title, &n.Summary, &sent, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, err
	}
	n.Sentiment = sentiment.Sentiment(sent)
	n.EntityKeys = make(map[entity.Key]bool)
	return &n, nil
}

// fillNarrative loads entity keys and member IDs. Caller holds the lock.
func (s *Store) fillNarrative(ctx context.Context, n *narrative.Narrative) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_type, entity_value FROM narrative_entities WHERE narrative_id = ?
	`, n.ID)
	if err != nil {
		return fmt.Errorf("query narrative entities: %w", err)
	}
	for rows.Next() {
		var typ, value string
		if err := rows.Scan(&typ, &value); err != nil {
			rows.Close()
			return fmt.Errorf("scan entity: %w", err)
		}
		n.EntityKeys[entity.Key{Type: entity.Type(typ), Value: value}] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	idRows, err := s.db.QueryContext(ctx, `
		SELECT item_id FROM narrative_articles
		WHERE narrative_id = ? ORDER BY published_at ASC, item_id ASC
	`, n.ID)
	if err != nil {
		return fmt.Errorf("query narrative articles: %w", err)
	}
	defer idRows.Close()
	for idRows.Next() {
		var id string
		if err := idRows.Scan(&id); err != nil {
			return fmt.Errorf("scan article id: %w", err)
		}
		n.ArticleIDs = append(n.ArticleIDs, id)
	}
	return idRows.Err()
}

func insertMembers(ctx context.Context, tx *sql.Tx, narrativeID string, members []feeds.Item, addedAt time.Time) error {
	for _, it := range members {
		_, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO narrative_articles (
				item_id, narrative_id, source, source_name, title, summary,
				url, external_id, published_at, added_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, it.ID, narrativeID, it.Source, it.SourceName, it.Title, it.Summary,
			it.URL, it.ExternalID, it.Published, addedAt)
		if err != nil {
			return fmt.Errorf("insert article %s: %w", it.ID, err)
		}
	}
	return nil
}

func insertKeys(ctx context.Context, tx *sql.Tx, narrativeID string, keys []entity.Key) error {
	for _, k := range keys {
		_, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO narrative_entities (narrative_id, entity_type, entity_value)
			VALUES (?, ?, ?)
		`, narrativeID, string(k.Type), k.Value)
		if err != nil {
			return fmt.Errorf("insert entity key: %w", err)
		}
	}
	return nil
}

// keysOf flattens a key set deterministically.
func keysOf(set map[entity.Key]bool) []entity.Key {
	keys := make([]entity.Key, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Type != keys[j].Type {
			return keys[i].Type < keys[j].Type
		}
		return keys[i].Value < keys[j].Value
	})
	return keys
}
