package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"slotwise/internal/model"
)

// TemplateFor returns the weekly template windows for a weekday, ordered
// by start time.
func (db *DB) TemplateFor(ctx context.Context, day time.Weekday) ([]model.TimeRange, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT start_minute, end_minute FROM template_windows
		WHERE weekday = ? ORDER BY start_minute`,
		int(day),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanWindows(rows)
}

// OverrideFor returns the date's override, or nil when none exists.
// An override row with no windows means "closed this date".
func (db *DB) OverrideFor(ctx context.Context, date model.Date) (*model.DateOverride, error) {
	var exists string
	err := db.QueryRowContext(ctx,
		"SELECT date FROM date_overrides WHERE date = ?", string(date),
	).Scan(&exists)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT start_minute, end_minute FROM override_windows
		WHERE date = ? ORDER BY start_minute`,
		string(date),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	windows, err := scanWindows(rows)
	if err != nil {
		return nil, err
	}
	return &model.DateOverride{Date: date, Windows: windows}, nil
}

// ClosuresOn returns the closures covering a date, whether by explicit
// date or by recurring weekday.
func (db *DB) ClosuresOn(ctx context.Context, date model.Date) ([]model.Closure, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT DISTINCT c.id, c.name, c.recurring, c.weekday
		FROM closures c
		LEFT JOIN closure_dates cd ON cd.closure_id = c.id
		WHERE cd.date = ? OR (c.recurring = 1 AND c.weekday = ?)`,
		string(date), int(date.Weekday()),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var closures []model.Closure
	for rows.Next() {
		var c model.Closure
		var weekday sql.NullInt64
		if err := rows.Scan(&c.ID, &c.Name, &c.Recurring, &weekday); err != nil {
			return nil, err
		}
		if weekday.Valid {
			c.Weekday = time.Weekday(weekday.Int64)
		}
		c.Dates = []model.Date{date}
		closures = append(closures, c)
	}
	return closures, rows.Err()
}

// ApplyTemplateDay replaces the template windows for one weekday.
// Callers run the mutation guard first.
func (db *DB) ApplyTemplateDay(ctx context.Context, day time.Weekday, windows []model.TimeRange) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM template_windows WHERE weekday = ?", int(day),
	); err != nil {
		return fmt.Errorf("clear template day: %w", err)
	}
	for _, w := range windows {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO template_windows (weekday, start_minute, end_minute) VALUES (?, ?, ?)",
			int(day), w.Start.Minutes(), w.End.Minutes(),
		); err != nil {
			return fmt.Errorf("insert template window: %w", err)
		}
	}
	return tx.Commit()
}

// PutOverride creates or replaces the override for a date.
func (db *DB) PutOverride(ctx context.Context, o *model.DateOverride) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO date_overrides (date) VALUES (?) ON CONFLICT(date) DO NOTHING",
		string(o.Date),
	); err != nil {
		return fmt.Errorf("upsert override: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM override_windows WHERE date = ?", string(o.Date),
	); err != nil {
		return fmt.Errorf("clear override windows: %w", err)
	}
	for _, w := range o.Windows {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO override_windows (date, start_minute, end_minute) VALUES (?, ?, ?)",
			string(o.Date), w.Start.Minutes(), w.End.Minutes(),
		); err != nil {
			return fmt.Errorf("insert override window: %w", err)
		}
	}
	return tx.Commit()
}

// DeleteOverride removes the override for a date.
func (db *DB) DeleteOverride(ctx context.Context, date model.Date) error {
	_, err := db.ExecContext(ctx,
		"DELETE FROM date_overrides WHERE date = ?", string(date),
	)
	return err
}

// CreateClosure stores a closure and its explicit dates.
func (db *DB) CreateClosure(ctx context.Context, c *model.Closure) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var weekday any
	if c.Recurring {
		weekday = int(c.Weekday)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO closures (id, name, recurring, weekday) VALUES (?, ?, ?, ?)",
		c.ID, c.Name, c.Recurring, weekday,
	); err != nil {
		return fmt.Errorf("insert closure: %w", err)
	}
	for _, d := range c.Dates {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO closure_dates (closure_id, date) VALUES (?, ?)",
			c.ID, string(d),
		); err != nil {
			return fmt.Errorf("insert closure date: %w", err)
		}
	}
	return tx.Commit()
}

// DeleteClosure removes a closure. Unblocking dates is always safe, so no
// guard applies.
func (db *DB) DeleteClosure(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, "DELETE FROM closures WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanWindows(rows *sql.Rows) ([]model.TimeRange, error) {
	var windows []model.TimeRange
	for rows.Next() {
		var start, end int
		if err := rows.Scan(&start, &end); err != nil {
			return nil, err
		}
		windows = append(windows, model.TimeRange{
			Start: model.TimeOfDay(start),
			End:   model.TimeOfDay(end),
		})
	}
	return windows, rows.Err()
}
