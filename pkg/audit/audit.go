// Package audit persists generation traces to a dedicated SQLite database.
package audit

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/draftsmith/genpipe/pkg/models"
)

// Store writes and queries generation audit entries.
type Store struct {
	db *sql.DB
}

const createAuditTable = `
CREATE TABLE IF NOT EXISTS generation_log (
	request_id   TEXT PRIMARY KEY,
	category     TEXT NOT NULL,
	subject_hash TEXT NOT NULL,
	provider     TEXT,
	variant      TEXT,
	cache_status TEXT NOT NULL,
	latency_ms   INTEGER,
	trace        TEXT,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

// New opens the audit database and creates the schema.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate audit db: %w", err)
	}

	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	if _, err := db.Exec(createAuditTable); err != nil {
		return err
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_generation_category ON generation_log(category)`); err != nil {
		return err
	}
	_, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_generation_created ON generation_log(created_at)`)
	return err
}

// HashSubject hides the raw subject identifier behind SHA-256 so audit rows
// carry no user-identifying text.
func HashSubject(subjectID string) string {
	sum := sha256.Sum256([]byte(subjectID))
	return hex.EncodeToString(sum[:])
}

// Log inserts one audit entry.
func (s *Store) Log(ctx context.Context, entry models.AuditEntry) error {
	if s == nil || s.db == nil {
		return nil
	}

	traceJSON, err := json.Marshal(entry.Trace)
	if err != nil {
		return fmt.Errorf("marshal trace: %w", err)
	}
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO generation_log
		 (request_id, category, subject_hash, provider, variant, cache_status, latency_ms, trace, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RequestID, entry.Category, entry.SubjectHash, entry.Provider,
		entry.Variant, entry.CacheStatus, entry.LatencyMs, string(traceJSON), createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// Recent returns the newest entries, most recent first.
func (s *Store) Recent(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT request_id, category, subject_hash, provider, variant, cache_status, latency_ms, trace, created_at
		 FROM generation_log ORDER BY created_at DESC, request_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var out []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var traceJSON string
		if err := rows.Scan(&e.RequestID, &e.Category, &e.SubjectHash, &e.Provider,
			&e.Variant, &e.CacheStatus, &e.LatencyMs, &traceJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if traceJSON != "" {
			if err := json.Unmarshal([]byte(traceJSON), &e.Trace); err != nil {
				e.Trace = nil
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountByCategory returns entry counts per generation category.
func (s *Store) CountByCategory(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, COUNT(*) FROM generation_log GROUP BY category`)
	if err != nil {
		return nil, fmt.Errorf("query category counts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var category string
		var n int64
		if err := rows.Scan(&category, &n); err != nil {
			return nil, fmt.Errorf("scan category count: %w", err)
		}
		out[category] = n
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
