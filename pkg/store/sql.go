package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/convene-dev/convene/pkg/calendar"
	"github.com/convene-dev/convene/pkg/preferences"

	// Database drivers
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// SQLStore persists events and preferences via database/sql.
// Supports sqlite, postgres and mysql.
type SQLStore struct {
	db      *sql.DB
	dialect string
}

type eventRow struct {
	ID        string
	Partner   string
	Status    string
	StartAt   time.Time
	EventJSON string
	CreatedAt time.Time
	UpdatedAt time.Time
}

const createEventsTableSQL = `
CREATE TABLE IF NOT EXISTS events (
    id VARCHAR(255) PRIMARY KEY,
    partner VARCHAR(255) NOT NULL,
    status VARCHAR(50) NOT NULL,
    start_at TIMESTAMP NOT NULL,
    event_json TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_partner ON events(partner);
CREATE INDEX IF NOT EXISTS idx_events_status ON events(status);
CREATE INDEX IF NOT EXISTS idx_events_start_at ON events(start_at);
`

const createPreferencesTableSQL = `
CREATE TABLE IF NOT EXISTS booking_preferences (
    slot INTEGER PRIMARY KEY,
    prefs_json TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

// NewSQLStore wraps an open database connection. The dialect must be
// "sqlite", "postgres" or "mysql".
func NewSQLStore(db *sql.DB, dialect string) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	switch dialect {
	case "sqlite", "postgres", "mysql":
	default:
		return nil, fmt.Errorf("unsupported dialect: %s (supported: sqlite, postgres, mysql)", dialect)
	}

	s := &SQLStore{db: db, dialect: dialect}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Open opens a database connection and wraps it. The "sqlite" driver name is
// mapped to the go-sqlite3 registration name.
func Open(driver, dsn string) (*SQLStore, error) {
	driverName := driver
	if driverName == "sqlite" {
		driverName = "sqlite3"
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewSQLStore(db, driver)
}

func (s *SQLStore) initSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, schema := range []string{createEventsTableSQL, createPreferencesTableSQL} {
		if _, err := s.db.ExecContext(ctx, schema); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind swaps ? placeholders for $N on postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != "postgres" {
		return query
	}
	out := make([]byte, 0, len(query)+8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			out = append(out, fmt.Sprintf("$%d", n)...)
			continue
		}
		out = append(out, query[i])
	}
	return string(out)
}

// Save inserts or replaces an event row.
func (s *SQLStore) Save(ctx context.Context, ev *calendar.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	var query string
	switch s.dialect {
	case "postgres":
		query = s.rebind(`
INSERT INTO events (id, partner, status, start_at, event_json, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    partner = EXCLUDED.partner, status = EXCLUDED.status, start_at = EXCLUDED.start_at,
    event_json = EXCLUDED.event_json, updated_at = EXCLUDED.updated_at`)
	case "mysql":
		query = `
INSERT INTO events (id, partner, status, start_at, event_json, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    partner = VALUES(partner), status = VALUES(status), start_at = VALUES(start_at),
    event_json = VALUES(event_json), updated_at = VALUES(updated_at)`
	default:
		query = `
INSERT OR REPLACE INTO events (id, partner, status, start_at, event_json, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`
	}

	_, err = s.db.ExecContext(ctx, query,
		ev.ID, ev.PartnerAgent, string(ev.Status), ev.Start,
		string(payload), ev.CreatedAt, ev.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save event %s: %w", ev.ID, err)
	}
	return nil
}

// Load returns the event with the given id, or nil when absent.
func (s *SQLStore) Load(ctx context.Context, id string) (*calendar.Event, error) {
	query := s.rebind(`SELECT event_json FROM events WHERE id = ?`)

	var payload string
	err := s.db.QueryRowContext(ctx, query, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load event %s: %w", id, err)
	}

	var ev calendar.Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return nil, fmt.Errorf("failed to decode event %s: %w", id, err)
	}
	return &ev, nil
}

// LoadAll returns every persisted event.
func (s *SQLStore) LoadAll(ctx context.Context) ([]*calendar.Event, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT event_json FROM events ORDER BY start_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []*calendar.Event
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		var ev calendar.Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return nil, fmt.Errorf("failed to decode event row: %w", err)
		}
		events = append(events, &ev)
	}
	return events, rows.Err()
}

// Delete removes the event row. Deleting an absent id is not an error.
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	query := s.rebind(`DELETE FROM events WHERE id = ?`)
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete event %s: %w", id, err)
	}
	return nil
}

// SavePreferences writes the single preferences row.
func (s *SQLStore) SavePreferences(ctx context.Context, p *preferences.Preferences) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to serialize preferences: %w", err)
	}

	var query string
	switch s.dialect {
	case "postgres":
		query = s.rebind(`
INSERT INTO booking_preferences (slot, prefs_json, updated_at)
VALUES (1, ?, ?)
ON CONFLICT (slot) DO UPDATE SET prefs_json = EXCLUDED.prefs_json, updated_at = EXCLUDED.updated_at`)
	case "mysql":
		query = `
INSERT INTO booking_preferences (slot, prefs_json, updated_at)
VALUES (1, ?, ?)
ON DUPLICATE KEY UPDATE prefs_json = VALUES(prefs_json), updated_at = VALUES(updated_at)`
	default:
		query = `
INSERT OR REPLACE INTO booking_preferences (slot, prefs_json, updated_at)
VALUES (1, ?, ?)`
	}

	if _, err := s.db.ExecContext(ctx, query, string(payload), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}

// LoadPreferences reads the preferences row, nil when never saved.
func (s *SQLStore) LoadPreferences(ctx context.Context) (*preferences.Preferences, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT prefs_json FROM booking_preferences WHERE slot = 1`).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}

	var p preferences.Preferences
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return nil, fmt.Errorf("failed to decode preferences: %w", err)
	}
	return &p, nil
}
