// Package archive provides a local durable store for assembled traces,
// backed by an embedded SQLite database.
//
// The archive keeps the encoded wire form of each trace alongside the
// queryable columns (state, location, request time), so traces captured
// offline can be listed, re-decoded, and replayed to the store later.
package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ashita-ai/tsuiseki/tracing"
)

// ErrNotFound is returned when the requested trace is not archived.
var ErrNotFound = errors.New("archive: trace not found")

const schema = `
CREATE TABLE IF NOT EXISTS traces (
	trace_id     TEXT PRIMARY KEY,
	state        TEXT NOT NULL,
	request_time INTEGER NOT NULL,
	payload      BLOB NOT NULL,
	archived_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_traces_request_time ON traces (request_time DESC);
`

// Archive is a SQLite-backed trace store. Safe for concurrent use.
type Archive struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates or opens an archive at path. Use ":memory:" for an
// ephemeral archive in tests.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", path, err)
	}
	// modernc.org/sqlite serializes writes internally; a single connection
	// avoids SQLITE_BUSY on concurrent writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("archive: apply schema: %w", err)
	}
	return &Archive{db: db, logger: logger}, nil
}

// Save archives a trace, replacing any previous version with the same id.
func (a *Archive) Save(ctx context.Context, trace tracing.Trace) error {
	payload, err := tracing.EncodeTrace(trace)
	if err != nil {
		return err
	}

	_, err = a.db.ExecContext(ctx,
		`INSERT INTO traces (trace_id, state, request_time, payload, archived_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (trace_id) DO UPDATE SET
		   state = excluded.state,
		   request_time = excluded.request_time,
		   payload = excluded.payload,
		   archived_at = excluded.archived_at`,
		trace.Info.TraceID, string(trace.Info.State), trace.Info.RequestTime,
		payload, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("archive: save trace %s: %w", trace.Info.TraceID, err)
	}
	a.logger.Debug("archive: trace saved", "trace_id", trace.Info.TraceID)
	return nil
}

// Get returns the archived trace with the given id.
func (a *Archive) Get(ctx context.Context, traceID string) (tracing.Trace, error) {
	var payload []byte
	err := a.db.QueryRowContext(ctx,
		`SELECT payload FROM traces WHERE trace_id = ?`, traceID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return tracing.Trace{}, ErrNotFound
	}
	if err != nil {
		return tracing.Trace{}, fmt.Errorf("archive: get trace %s: %w", traceID, err)
	}
	return tracing.DecodeTrace(payload)
}

// ListFilter narrows List results. Zero values mean no filtering.
type ListFilter struct {
	State tracing.TraceState
	Limit int
}

// List returns archived trace infos, newest first.
func (a *Archive) List(ctx context.Context, filter ListFilter) ([]tracing.TraceInfo, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT payload FROM traces`
	args := []any{}
	if filter.State != "" {
		query += ` WHERE state = ?`
		args = append(args, string(filter.State))
	}
	query += ` ORDER BY request_time DESC LIMIT ?`
	args = append(args, limit)

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("archive: list traces: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var infos []tracing.TraceInfo
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("archive: scan trace row: %w", err)
		}
		trace, err := tracing.DecodeTrace(payload)
		if err != nil {
			return nil, err
		}
		infos = append(infos, trace.Info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("archive: iterate trace rows: %w", err)
	}
	return infos, nil
}

// Delete removes an archived trace. Deleting an absent trace is not an error.
func (a *Archive) Delete(ctx context.Context, traceID string) error {
	if _, err := a.db.ExecContext(ctx, `DELETE FROM traces WHERE trace_id = ?`, traceID); err != nil {
		return fmt.Errorf("archive: delete trace %s: %w", traceID, err)
	}
	return nil
}

// Close releases the underlying database handle.
func (a *Archive) Close() error {
	return a.db.Close()
}
