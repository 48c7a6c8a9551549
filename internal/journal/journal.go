// Package journal keeps a SQLite log of answered and rejected velocity
// queries.
package journal

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DefaultLimit bounds Recent when the caller passes a non-positive limit.
const DefaultLimit = 100

// Entry is one journaled query.
type Entry struct {
	ID          int64     `json:"id"`
	RecordedAt  time.Time `json:"recorded_at"`
	RequestID   string    `json:"request_id,omitempty"`
	Track       string    `json:"track"`
	QueryTime   float64   `json:"query_time"`
	Outcome     string    `json:"outcome"`
	VelocityMPS float64   `json:"velocity_mps"`
	// LowIndex is -1 when the query produced no bracket.
	LowIndex int `json:"low_index"`
}

// Journal is safe for concurrent use.
type Journal struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path and applies pending
// migrations.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps :memory:
	// databases coherent.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure journal: %w", err)
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Journal{db: db, now: time.Now}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load journal migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite migration driver: %w", err)
	}
	// m is not closed: closing it would close db.
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("journal migration up failed: %w", err)
	}
	return nil
}

// Record stores e and returns its ID. A zero RecordedAt is stamped with the
// current time.
func (j *Journal) Record(ctx context.Context, e Entry) (int64, error) {
	if e.RecordedAt.IsZero() {
		e.RecordedAt = j.now()
	}
	res, err := j.db.ExecContext(ctx,
		`INSERT INTO query_journal (recorded_at, request_id, track, query_time, outcome, velocity_mps, low_index)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.RecordedAt.UTC().Format(time.RFC3339Nano), e.RequestID, e.Track, e.QueryTime, e.Outcome, e.VelocityMPS, e.LowIndex,
	)
	if err != nil {
		return 0, fmt.Errorf("record query: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns up to limit entries, newest first. An empty track matches
// every track.
func (j *Journal) Recent(ctx context.Context, track string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, recorded_at, request_id, track, query_time, outcome, velocity_mps, low_index
		   FROM query_journal
		  WHERE (? = '' OR track = ?)
		  ORDER BY id DESC
		  LIMIT ?`,
		track, track, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			recordedAt string
		)
		if err := rows.Scan(&e.ID, &recordedAt, &e.RequestID, &e.Track, &e.QueryTime, &e.Outcome, &e.VelocityMPS, &e.LowIndex); err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}
		if e.RecordedAt, err = time.Parse(time.RFC3339Nano, recordedAt); err != nil {
			return nil, fmt.Errorf("parse recorded_at %q: %w", recordedAt, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Counts returns the number of entries per outcome for track, or for every
// track when track is empty.
func (j *Journal) Counts(ctx context.Context, track string) (map[string]int, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT outcome, COUNT(*) FROM query_journal WHERE (? = '' OR track = ?) GROUP BY outcome`,
		track, track,
	)
	if err != nil {
		return nil, fmt.Errorf("count journal: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			outcome string
			n       int
		)
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scan journal count: %w", err)
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}

// Close releases the database.
func (j *Journal) Close() error { return j.db.Close() }
