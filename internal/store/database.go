// Package store persists schedule configuration and bookings in SQLite.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// DB wraps sql.DB for the booking engine.
type DB struct {
	*sql.DB
}

// ErrSlotTaken is returned when a reservation loses the race for a slot claim.
var ErrSlotTaken = errors.New("store: slot already claimed")

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// IsSlotTaken reports whether err is a lost slot-claim race.
func IsSlotTaken(err error) bool {
	return errors.Is(err, ErrSlotTaken)
}

// NewDB opens the database at path and runs migrations.
// foreign_keys is a per-connection pragma and database/sql pools
// connections, so it goes in the DSN: every pooled connection gets it,
// and the ON DELETE CASCADE from bookings to slot_claims holds on all
// of them.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := createTables(db); err != nil {
		return nil, err
	}
	return &DB{db}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		// Services
		`CREATE TABLE IF NOT EXISTS services (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            duration_minutes INTEGER NOT NULL,
            active BOOLEAN NOT NULL DEFAULT 1,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		// Weekly template windows
		`CREATE TABLE IF NOT EXISTS template_windows (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            weekday INTEGER NOT NULL,
            start_minute INTEGER NOT NULL,
            end_minute INTEGER NOT NULL
        )`,

		// Date overrides; a row here replaces the template for that date,
		// even with zero windows attached
		`CREATE TABLE IF NOT EXISTS date_overrides (
            date TEXT PRIMARY KEY,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		`CREATE TABLE IF NOT EXISTS override_windows (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            date TEXT NOT NULL,
            start_minute INTEGER NOT NULL,
            end_minute INTEGER NOT NULL,
            FOREIGN KEY (date) REFERENCES date_overrides(date) ON DELETE CASCADE
        )`,

		// Closures
		`CREATE TABLE IF NOT EXISTS closures (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            recurring BOOLEAN NOT NULL DEFAULT 0,
            weekday INTEGER,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		`CREATE TABLE IF NOT EXISTS closure_dates (
            closure_id TEXT NOT NULL,
            date TEXT NOT NULL,
            PRIMARY KEY (closure_id, date),
            FOREIGN KEY (closure_id) REFERENCES closures(id) ON DELETE CASCADE
        )`,

		// Bookings
		`CREATE TABLE IF NOT EXISTS bookings (
            id TEXT PRIMARY KEY,
            date TEXT NOT NULL,
            start_minute INTEGER NOT NULL,
            end_minute INTEGER NOT NULL,
            duration_minutes INTEGER NOT NULL,
            service_id TEXT NOT NULL,
            client_name TEXT NOT NULL,
            client_phone TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            FOREIGN KEY (service_id) REFERENCES services(id)
        )`,

		// Exclusive slot claims; the UNIQUE key is what makes concurrent
		// reservations for the same slot impossible
		`CREATE TABLE IF NOT EXISTS slot_claims (
            date TEXT NOT NULL,
            start_minute INTEGER NOT NULL,
            booking_id TEXT NOT NULL,
            PRIMARY KEY (date, start_minute),
            FOREIGN KEY (booking_id) REFERENCES bookings(id) ON DELETE CASCADE
        )`,

		// Indexes
		`CREATE INDEX IF NOT EXISTS idx_template_weekday ON template_windows(weekday)`,
		`CREATE INDEX IF NOT EXISTS idx_override_windows_date ON override_windows(date)`,
		`CREATE INDEX IF NOT EXISTS idx_closure_dates_date ON closure_dates(date)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_date ON bookings(date, status)`,
		`CREATE INDEX IF NOT EXISTS idx_slot_claims_booking ON slot_claims(booking_id)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}
