package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Registers the pure-Go "sqlite" driver.
	_ "modernc.org/sqlite"

	"github.com/oshokin/garage-alert/internal/domain/alert"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS snapshot (
	id               INTEGER PRIMARY KEY CHECK (id = 1),
	temperature      REAL    NOT NULL,
	humidity         REAL    NOT NULL,
	smoke_level      INTEGER NOT NULL,
	door_open        INTEGER NOT NULL,
	pir_inside       INTEGER NOT NULL,
	alarm_on         INTEGER NOT NULL,
	distance_outside REAL    NOT NULL,
	event_code       INTEGER NOT NULL,
	status_text      TEXT    NOT NULL,
	updated_at       TEXT    NOT NULL
);`

// SQLiteRepository keeps the snapshot in a single-row SQLite table.
type SQLiteRepository struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create snapshot directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot database: %w", err)
	}

	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err = db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("configure snapshot database: %w", err)
	}

	if _, err = db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("migrate snapshot database: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// Load reads the stored snapshot.
func (r *SQLiteRepository) Load(ctx context.Context) (alert.Snapshot, error) {
	var (
		s         alert.Snapshot
		eventCode int64
	)

	err := r.db.QueryRowContext(ctx,
		`SELECT temperature, humidity, smoke_level, door_open, pir_inside, alarm_on,
		        distance_outside, event_code, status_text
		   FROM snapshot WHERE id = 1`,
	).Scan(
		&s.Temperature, &s.Humidity, &s.SmokeLevel, &s.DoorOpen, &s.PIRInside, &s.AlarmOn,
		&s.DistanceOutside, &eventCode, &s.StatusText,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return alert.Snapshot{}, ErrNotFound
		}

		return alert.Snapshot{}, fmt.Errorf("query snapshot: %w", err)
	}

	s.EventCode = alert.EventCode(eventCode)

	return s, nil
}

// Save replaces the stored snapshot.
func (r *SQLiteRepository) Save(ctx context.Context, s alert.Snapshot) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO snapshot(id, temperature, humidity, smoke_level, door_open, pir_inside, alarm_on,
		                      distance_outside, event_code, status_text, updated_at)
		 VALUES(1,?,?,?,?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
		   temperature=excluded.temperature,
		   humidity=excluded.humidity,
		   smoke_level=excluded.smoke_level,
		   door_open=excluded.door_open,
		   pir_inside=excluded.pir_inside,
		   alarm_on=excluded.alarm_on,
		   distance_outside=excluded.distance_outside,
		   event_code=excluded.event_code,
		   status_text=excluded.status_text,
		   updated_at=excluded.updated_at`,
		s.Temperature, s.Humidity, s.SmokeLevel, s.DoorOpen, s.PIRInside, s.AlarmOn,
		s.DistanceOutside, int64(s.EventCode), s.StatusText, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	return nil
}

// Close releases the database.
func (r *SQLiteRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}

	return r.db.Close()
}
