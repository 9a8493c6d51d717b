package store

import (
	"context"
	"database/sql"
	"fmt"

	"slotwise/internal/model"
	"slotwise/internal/timegrid"
)

// CreateBooking inserts a booking and claims every slot in [Start, End)
// in one transaction. The UNIQUE (date, start_minute) key on slot_claims
// is the exclusive-claim primitive: if any claim is already held the whole
// transaction rolls back with ErrSlotTaken, so of two concurrent
// submissions for the same slot at most one succeeds.
func (db *DB) CreateBooking(ctx context.Context, b *model.Booking, slotDuration int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO bookings
			(id, date, start_minute, end_minute, duration_minutes, service_id, client_name, client_phone, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, string(b.Date), b.Start.Minutes(), b.End.Minutes(), b.DurationMinutes,
		b.ServiceID, b.ClientName, b.ClientPhone, string(b.Status), b.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}

	for _, slot := range timegrid.ExpandRange(b.Range(), slotDuration) {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO slot_claims (date, start_minute, booking_id) VALUES (?, ?, ?)",
			string(b.Date), slot.Minutes(), b.ID,
		); err != nil {
			if isUniqueViolation(err) {
				return ErrSlotTaken
			}
			return fmt.Errorf("claim slot %s: %w", slot, err)
		}
	}
	return tx.Commit()
}

// DeleteBooking removes a booking; its slot claims cascade away with it.
func (db *DB) DeleteBooking(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, "DELETE FROM bookings WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// BookingsOn returns the active (pending or confirmed) bookings for a
// date, ordered by start time.
func (db *DB) BookingsOn(ctx context.Context, date model.Date) ([]model.Booking, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, date, start_minute, end_minute, duration_minutes, service_id, client_name, client_phone, status, created_at
		FROM bookings
		WHERE date = ? AND status IN ('pending', 'confirmed')
		ORDER BY start_minute`,
		string(date),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBookings(rows)
}

// BookingsInRange returns active bookings with date in [from, to],
// ordered by date then start time. Used by the export report.
func (db *DB) BookingsInRange(ctx context.Context, from, to model.Date) ([]model.Booking, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, date, start_minute, end_minute, duration_minutes, service_id, client_name, client_phone, status, created_at
		FROM bookings
		WHERE date >= ? AND date <= ? AND status IN ('pending', 'confirmed')
		ORDER BY date, start_minute`,
		string(from), string(to),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBookings(rows)
}

// HasBookingsOnDate reports whether any active booking exists on a date.
func (db *DB) HasBookingsOnDate(ctx context.Context, date model.Date) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM bookings
		WHERE date = ? AND status IN ('pending', 'confirmed')`,
		string(date),
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetBooking returns a booking by ID, or ErrNotFound.
func (db *DB) GetBooking(ctx context.Context, id string) (*model.Booking, error) {
	var b model.Booking
	var start, end int
	err := db.QueryRowContext(ctx, `
		SELECT id, date, start_minute, end_minute, duration_minutes, service_id, client_name, client_phone, status, created_at
		FROM bookings WHERE id = ?`,
		id,
	).Scan(&b.ID, &b.Date, &start, &end, &b.DurationMinutes, &b.ServiceID,
		&b.ClientName, &b.ClientPhone, &b.Status, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	b.Start = model.TimeOfDay(start)
	b.End = model.TimeOfDay(end)
	return &b, nil
}

// ServiceByID returns a service, or nil when it does not exist.
func (db *DB) ServiceByID(ctx context.Context, id string) (*model.Service, error) {
	var s model.Service
	err := db.QueryRowContext(ctx,
		"SELECT id, name, duration_minutes, active FROM services WHERE id = ?",
		id,
	).Scan(&s.ID, &s.Name, &s.DurationMinutes, &s.Active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UpsertService creates or updates a service.
func (db *DB) UpsertService(ctx context.Context, s *model.Service) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO services (id, name, duration_minutes, active)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			duration_minutes = excluded.duration_minutes,
			active = excluded.active,
			updated_at = CURRENT_TIMESTAMP`,
		s.ID, s.Name, s.DurationMinutes, s.Active,
	)
	return err
}

// ListServices returns all services, active first.
func (db *DB) ListServices(ctx context.Context) ([]model.Service, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, name, duration_minutes, active FROM services ORDER BY active DESC, name",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var services []model.Service
	for rows.Next() {
		var s model.Service
		if err := rows.Scan(&s.ID, &s.Name, &s.DurationMinutes, &s.Active); err != nil {
			return nil, err
		}
		services = append(services, s)
	}
	return services, rows.Err()
}

func scanBookings(rows *sql.Rows) ([]model.Booking, error) {
	var bookings []model.Booking
	for rows.Next() {
		var b model.Booking
		var start, end int
		if err := rows.Scan(&b.ID, &b.Date, &start, &end, &b.DurationMinutes,
			&b.ServiceID, &b.ClientName, &b.ClientPhone, &b.Status, &b.CreatedAt); err != nil {
			return nil, err
		}
		b.Start = model.TimeOfDay(start)
		b.End = model.TimeOfDay(end)
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}
