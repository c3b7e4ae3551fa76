// Package store provides SQLite persistence for tracklens: a cache of
// recommendation results keyed by seed set, and a history of applied
// snapshots.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/abelbrown/tracklens/internal/service"
)

// Store handles SQLite persistence. Safe for concurrent use; the UI reads
// and writes it from tea.Cmd goroutines.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open creates a Store at dbPath, creating tables if needed.
// ":memory:" opens an in-memory database that lives until Close.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Each connection to :memory: is a separate database; pin to one.
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
	CREATE TABLE IF NOT EXISTS recommendations (
		seed_key   TEXT NOT NULL,
		rec_limit  INTEGER NOT NULL,
		payload    BLOB NOT NULL,
		fetched_at DATETIME NOT NULL,
		PRIMARY KEY (seed_key, rec_limit)
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id    TEXT NOT NULL,
		generation    INTEGER NOT NULL,
		cluster_count INTEGER NOT NULL,
		features      TEXT NOT NULL,
		track_count   INTEGER NOT NULL,
		inertia       REAL NOT NULL,
		applied_at    DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_applied ON snapshots(applied_at DESC);
	CREATE INDEX IF NOT EXISTS idx_recommendations_fetched ON recommendations(fetched_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database. It waits for in-flight operations.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// SeedKey is the cache key of an ordered seed set.
func SeedKey(seeds []string) string {
	return strings.Join(seeds, ",")
}

// GetRecommendations returns cached results for seeds and limit fetched
// within maxAge. maxAge <= 0 accepts any age.
func (s *Store) GetRecommendations(seeds []string, limit int, maxAge time.Duration) ([]service.Recommendation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		payload []byte
		fetched time.Time
	)
	err := s.db.QueryRow(
		`SELECT payload, fetched_at FROM recommendations WHERE seed_key = ? AND rec_limit = ?`,
		SeedKey(seeds), limit,
	).Scan(&payload, &fetched)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query recommendations: %w", err)
	}
	if maxAge > 0 && time.Since(fetched) > maxAge {
		return nil, false, nil
	}

	recs := []service.Recommendation{}
	if err := json.Unmarshal(payload, &recs); err != nil {
		return nil, false, fmt.Errorf("decode cached recommendations: %w", err)
	}
	return recs, true, nil
}

// PutRecommendations caches recs for seeds and limit, replacing any
// previous entry. An empty list is cached too.
func (s *Store) PutRecommendations(seeds []string, limit int, recs []service.Recommendation) error {
	if recs == nil {
		recs = []service.Recommendation{}
	}
	payload, err := json.Marshal(recs)
	if err != nil {
		return fmt.Errorf("encode recommendations: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO recommendations (seed_key, rec_limit, payload, fetched_at) VALUES (?, ?, ?, ?)`,
		SeedKey(seeds), limit, payload, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert recommendations: %w", err)
	}
	return nil
}

// PruneRecommendations deletes cache entries fetched before cutoff and
// returns how many were removed.
func (s *Store) PruneRecommendations(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(`DELETE FROM recommendations WHERE fetched_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune recommendations: %w", err)
	}
	return res.RowsAffected()
}

// SnapshotRecord is one applied snapshot in the history.
type SnapshotRecord struct {
	ID           int64
	SessionID    string
	Generation   uint64
	ClusterCount int
	Features     []string
	TrackCount   int
	Inertia      float64
	AppliedAt    time.Time
}

// RecordSnapshot appends r to the history and returns its row id.
// A zero AppliedAt is set to now.
func (s *Store) RecordSnapshot(r SnapshotRecord) (int64, error) {
	if r.AppliedAt.IsZero() {
		r.AppliedAt = time.Now()
	}
	features, err := json.Marshal(r.Features)
	if err != nil {
		return 0, fmt.Errorf("encode features: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(`
		INSERT INTO snapshots (session_id, generation, cluster_count, features, track_count, inertia, applied_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.SessionID, int64(r.Generation), r.ClusterCount, string(features), r.TrackCount, r.Inertia, r.AppliedAt.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert snapshot: %w", err)
	}
	return res.LastInsertId()
}

// History returns up to limit snapshot records, newest first.
func (s *Store) History(limit int) ([]SnapshotRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, session_id, generation, cluster_count, features, track_count, inertia, applied_at
		FROM snapshots
		ORDER BY applied_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []SnapshotRecord
	for rows.Next() {
		var (
			r        SnapshotRecord
			gen      int64
			features string
		)
		if err := rows.Scan(&r.ID, &r.SessionID, &gen, &r.ClusterCount, &features, &r.TrackCount, &r.Inertia, &r.AppliedAt); err != nil {
			return nil, err
		}
		r.Generation = uint64(gen)
		if err := json.Unmarshal([]byte(features), &r.Features); err != nil {
			return nil, fmt.Errorf("decode features of snapshot %d: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
