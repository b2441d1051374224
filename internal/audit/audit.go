// Package audit records every sandbox verdict and model invocation so a
// mission can be reconstructed after the fact. Entries go to Postgres when a
// DSN is configured and to an in-memory ring otherwise; recent entries are
// always served from memory.
package audit

import (
	"database/sql"
	"os"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Verdicts for command entries.
const (
	VerdictAllowed = "ALLOWED"
	VerdictBlocked = "BLOCKED"
)

// Entry is one audited event.
type Entry struct {
	ID          int64     `json:"id,omitempty"`
	At          time.Time `json:"at"`
	Cycle       int       `json:"cycle"`
	MissionTime float64   `json:"mission_time"`
	Kind        string    `json:"kind"` // "command" or "llm"
	CommandType string    `json:"command_type,omitempty"`
	GroupID     string    `json:"group_id,omitempty"`
	Verdict     string    `json:"verdict,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	Provider    string    `json:"provider,omitempty"`
	Detail      string    `json:"detail,omitempty"`
}

const recentCacheSize = 512

// Store persists audit entries.
type Store struct {
	db *sql.DB

	mu     sync.Mutex
	nextID int64
	recent *lru.Cache[int64, Entry]

	schemaOnce sync.Once
	schemaErr  error
}

// New returns a memory-only store.
func New() *Store {
	recent, _ := lru.New[int64, Entry](recentCacheSize)
	return &Store{recent: recent}
}

// NewPostgres opens a Postgres-backed store.
func NewPostgres(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	recent, _ := lru.New[int64, Entry](recentCacheSize)
	return &Store{db: db, recent: recent}, nil
}

// NewFromEnv uses TACTICOM_AUDIT_PG_DSN when set and reachable, otherwise
// falls back to memory.
func NewFromEnv() *Store {
	dsn := strings.TrimSpace(os.Getenv("TACTICOM_AUDIT_PG_DSN"))
	if dsn == "" {
		return New()
	}
	s, err := NewPostgres(dsn)
	if err != nil {
		return New()
	}
	return s
}

func (s *Store) ensureSchema() error {
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.Exec(`
CREATE TABLE IF NOT EXISTS audit_entries (
    id           BIGSERIAL PRIMARY KEY,
    at           TIMESTAMPTZ NOT NULL,
    cycle        INT NOT NULL,
    mission_time DOUBLE PRECISION NOT NULL,
    kind         TEXT NOT NULL,
    command_type TEXT,
    group_id     TEXT,
    verdict      TEXT,
    reason       TEXT,
    provider     TEXT,
    detail       TEXT
)`)
	})
	return s.schemaErr
}

// Record stores one entry. Postgres write errors are swallowed after the
// in-memory copy is taken; auditing must never stall the decision loop.
func (s *Store) Record(e Entry) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	s.mu.Lock()
	s.nextID++
	e.ID = s.nextID
	s.recent.Add(e.ID, e)
	s.mu.Unlock()

	if s.db == nil {
		return
	}
	if err := s.ensureSchema(); err != nil {
		return
	}
	_, _ = s.db.Exec(`
INSERT INTO audit_entries (at, cycle, mission_time, kind, command_type, group_id, verdict, reason, provider, detail)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		e.At, e.Cycle, e.MissionTime, e.Kind, e.CommandType, e.GroupID, e.Verdict, e.Reason, e.Provider, e.Detail)
}

// Recent returns up to n most recent entries, newest first.
func (s *Store) Recent(n int) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := s.recent.Keys()
	var out []Entry
	for i := len(keys) - 1; i >= 0 && len(out) < n; i-- {
		if e, ok := s.recent.Peek(keys[i]); ok {
			out = append(out, e)
		}
	}
	return out
}

// Close releases the database handle if one is open.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
