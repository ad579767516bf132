package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const createEventsTable = `CREATE TABLE IF NOT EXISTS conversion_events (
	id           TEXT PRIMARY KEY,
	source_kind  TEXT NOT NULL,
	target_kind  TEXT NOT NULL,
	status       TEXT NOT NULL,
	input_bytes  BIGINT NOT NULL,
	output_bytes BIGINT NOT NULL,
	page_count   INTEGER NOT NULL,
	duration_ms  BIGINT NOT NULL,
	occurred_at  TIMESTAMP NOT NULL
)`

// SQLSink stores events in a SQL table. Supported drivers: sqlite3, postgres.
type SQLSink struct {
	db     *sql.DB
	driver string
}

// OpenSQL connects, pings, and creates the events table if needed.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLSink, error) {
	if driver != "sqlite3" && driver != "postgres" {
		return nil, fmt.Errorf("unsupported audit driver: %s", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	if driver == "sqlite3" {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping audit database: %w", err)
	}

	if _, err := db.ExecContext(ctx, createEventsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create audit table: %w", err)
	}

	return &SQLSink{db: db, driver: driver}, nil
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *SQLSink) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&sb, "$%d", n)
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// Write inserts one event.
func (s *SQLSink) Write(ctx context.Context, e Event) error {
	query := s.rebind(`INSERT INTO conversion_events
		(id, source_kind, target_kind, status, input_bytes, output_bytes, page_count, duration_ms, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := s.db.ExecContext(ctx, query,
		e.ID.String(), e.SourceKind, e.TargetKind, e.Status,
		e.InputBytes, e.OutputBytes, e.PageCount,
		e.Duration.Milliseconds(), e.OccurredAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (s *SQLSink) Recent(ctx context.Context, limit int) ([]Event, error) {
	query := s.rebind(`SELECT id, source_kind, target_kind, status, input_bytes, output_bytes, page_count, duration_ms, occurred_at
		FROM conversion_events ORDER BY occurred_at DESC LIMIT ?`)

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e          Event
			id         string
			durationMs int64
		)
		if err := rows.Scan(&id, &e.SourceKind, &e.TargetKind, &e.Status,
			&e.InputBytes, &e.OutputBytes, &e.PageCount, &durationMs, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse audit event id: %w", err)
		}
		e.Duration = time.Duration(durationMs) * time.Millisecond
		events = append(events, e)
	}
	return events, rows.Err()
}

// Close closes the database handle.
func (s *SQLSink) Close() error {
	return s.db.Close()
}
