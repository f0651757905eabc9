package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sliink/mensura/internal/model"
)

// OpenSQLite opens (and creates if needed) the SQLite database at path and
// ensures required tables exist.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if _, err := db.ExecContext(pctx, "PRAGMA journal_mode = WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal_mode: %w", err)
	}
	if err := BootstrapSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// BootstrapSQLite creates tables/indexes if missing.
func BootstrapSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS output_meta (
  key   TEXT PRIMARY KEY,
  value TEXT NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS events (
  id      INTEGER PRIMARY KEY AUTOINCREMENT,
  writer  TEXT NOT NULL,
  run     INTEGER NOT NULL,
  lumi    INTEGER NOT NULL,
  event   INTEGER NOT NULL,
  weight  REAL NOT NULL,
  payload JSON NOT NULL DEFAULT '{}'
);`,
		`CREATE TABLE IF NOT EXISTS cutflow (
  counter        TEXT PRIMARY KEY,
  position       INTEGER NOT NULL,
  events         INTEGER NOT NULL,
  sum_weights    REAL NOT NULL,
  sum_weights_sq REAL NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS events_writer_idx ON events(writer);`,
		`CREATE INDEX IF NOT EXISTS events_id_idx ON events(run, lumi, event);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap sqlite: %w", err)
		}
	}
	return nil
}

// SetMeta stores a key/value pair describing the output file
func SetMeta(ctx context.Context, db *sql.DB, key, value string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO output_meta(key, value) VALUES(?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value;`, key, value)
	if err != nil {
		return fmt.Errorf("set meta %q: %w", key, err)
	}
	return nil
}

// Meta returns all key/value pairs describing the output file
func Meta(ctx context.Context, db *sql.DB) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT key, value FROM output_meta;`)
	if err != nil {
		return nil, fmt.Errorf("query meta: %w", err)
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan meta: %w", err)
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

// EventRow is one selected event stored by a writer
type EventRow struct {
	Writer string
	ID     model.EventID
	Weight float64
	Values map[string]float64
}

// InsertEvents stores event rows within tx
func InsertEvents(ctx context.Context, tx *sql.Tx, rows []EventRow) error {
	if len(rows) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO events(writer, run, lumi, event, weight, payload) VALUES(?, ?, ?, ?, ?, ?);`)
	if err != nil {
		return fmt.Errorf("prepare event insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		payload, err := json.Marshal(row.Values)
		if err != nil {
			return fmt.Errorf("encode event %s: %w", row.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, row.Writer, int64(row.ID.Run), int64(row.ID.LumiBlock), int64(row.ID.Event), row.Weight, string(payload)); err != nil {
			return fmt.Errorf("insert event %s: %w", row.ID, err)
		}
	}
	return nil
}

// ReadEvents returns the events stored by a writer in insertion order
func ReadEvents(ctx context.Context, db *sql.DB, writer string) ([]EventRow, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT run, lumi, event, weight, payload FROM events WHERE writer = ? ORDER BY id;`, writer)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []EventRow
	for rows.Next() {
		row := EventRow{Writer: writer}
		var payload string
		if err := rows.Scan(&row.ID.Run, &row.ID.LumiBlock, &row.ID.Event, &row.Weight, &payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &row.Values); err != nil {
			return nil, fmt.Errorf("decode event %s: %w", row.ID, err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// CutflowRow is the content of one event counter
type CutflowRow struct {
	Counter      string
	Position     int
	Events       int64
	SumWeights   float64
	SumWeightsSq float64
}

// WriteCutflow stores or replaces the content of an event counter
func WriteCutflow(ctx context.Context, db *sql.DB, row CutflowRow) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO cutflow(counter, position, events, sum_weights, sum_weights_sq) VALUES(?, ?, ?, ?, ?)
ON CONFLICT(counter) DO UPDATE SET
  position = excluded.position,
  events = excluded.events,
  sum_weights = excluded.sum_weights,
  sum_weights_sq = excluded.sum_weights_sq;`,
		row.Counter, row.Position, row.Events, row.SumWeights, row.SumWeightsSq)
	if err != nil {
		return fmt.Errorf("write cutflow %q: %w", row.Counter, err)
	}
	return nil
}

// ReadCutflow returns all counters ordered by their position in the path
func ReadCutflow(ctx context.Context, db *sql.DB) ([]CutflowRow, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT counter, position, events, sum_weights, sum_weights_sq FROM cutflow ORDER BY position, counter;`)
	if err != nil {
		return nil, fmt.Errorf("query cutflow: %w", err)
	}
	defer rows.Close()

	var out []CutflowRow
	for rows.Next() {
		var row CutflowRow
		if err := rows.Scan(&row.Counter, &row.Position, &row.Events, &row.SumWeights, &row.SumWeightsSq); err != nil {
			return nil, fmt.Errorf("scan cutflow: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
