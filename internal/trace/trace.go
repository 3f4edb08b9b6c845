// Package trace records dispatch resolutions to a local SQLite
// database, for offline inspection of which backend served which
// method.
//
// Recording is opt-in: a Recorder is installed as a registry observer
// and writes one row per completed invocation. The database is a plain
// file, queryable with the umethod CLI or any sqlite client.
package trace

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/funvibe/umethod/pkg/dispatch"
)

const schema = `
CREATE TABLE IF NOT EXISTS dispatches (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	at      TEXT    NOT NULL,
	method  TEXT    NOT NULL,
	backend TEXT    NOT NULL,
	outcome TEXT    NOT NULL,
	micros  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS dispatches_method ON dispatches(method);
`

// Recorder writes dispatch observations to a SQLite database. It is
// safe for concurrent use; database/sql serializes access.
type Recorder struct {
	db *sql.DB
}

// Open creates or opens a trace database at path.
func Open(path string) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening trace db %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing trace db %s: %w", path, err)
	}
	return &Recorder{db: db}, nil
}

// Close releases the underlying database handle.
func (r *Recorder) Close() error {
	return r.db.Close()
}

// ObserveDispatch implements dispatch.Observer.
//
// Failures to record are swallowed: tracing must never turn a working
// dispatch into a failing one.
func (r *Recorder) ObserveDispatch(method, backend string, outcome dispatch.Outcome, elapsed time.Duration) {
	_, _ = r.db.Exec(
		`INSERT INTO dispatches (at, method, backend, outcome, micros) VALUES (?, ?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339Nano), method, backend, outcome.String(), elapsed.Microseconds(),
	)
}

// Row is one recorded dispatch.
type Row struct {
	At      time.Time
	Method  string
	Backend string
	Outcome string
	Elapsed time.Duration
}

// Recent returns up to limit recorded dispatches, newest first.
// An empty method matches everything.
func (r *Recorder) Recent(method string, limit int) ([]Row, error) {
	query := `SELECT at, method, backend, outcome, micros FROM dispatches`
	args := []any{}
	if method != "" {
		query += ` WHERE method = ?`
		args = append(args, method)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying trace db: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var row Row
		var at string
		var micros int64
		if err := rows.Scan(&at, &row.Method, &row.Backend, &row.Outcome, &micros); err != nil {
			return nil, fmt.Errorf("scanning trace row: %w", err)
		}
		row.At, _ = time.Parse(time.RFC3339Nano, at)
		row.Elapsed = time.Duration(micros) * time.Microsecond
		out = append(out, row)
	}
	return out, rows.Err()
}

// Summary is the per-backend tally for one method.
type Summary struct {
	Backend string
	Outcome string
	Count   int
}

// Summarize tallies recorded dispatches by backend and outcome.
// An empty method matches everything.
func (r *Recorder) Summarize(method string) ([]Summary, error) {
	query := `SELECT backend, outcome, COUNT(*) FROM dispatches`
	args := []any{}
	if method != "" {
		query += ` WHERE method = ?`
		args = append(args, method)
	}
	query += ` GROUP BY backend, outcome ORDER BY COUNT(*) DESC`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying trace db: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.Backend, &s.Outcome, &s.Count); err != nil {
			return nil, fmt.Errorf("scanning trace summary: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
