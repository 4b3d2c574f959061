// Package journal keeps an append-only record of the expressions evaluated
// against a debuggee, in SQLite. It is an audit trail: nothing in it is
// ever read back to answer an evaluation.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tliron/commonlog"

	_ "modernc.org/sqlite"
)

var log = commonlog.GetLogger("rexpr.journal")

// Entry is one journaled evaluation.
type Entry struct {
	ID           int64
	SessionID    string
	Thread       string
	Op           string // "evaluate", "watch" or "condition"
	Expression   string
	Success      bool
	Result       string
	TypeName     string
	ErrorKind    string
	ErrorMessage string
	Elapsed      time.Duration
	At           time.Time
}

// Journal is an SQLite-backed evaluation journal.
type Journal struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens (creating if needed) the journal at path. The path ":memory:"
// opens a private in-memory journal.
func Open(path string) (*Journal, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	// An in-memory database lives as long as its one connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS evaluations (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id    TEXT NOT NULL,
		thread        TEXT NOT NULL,
		op            TEXT NOT NULL,
		expression    TEXT NOT NULL,
		success       INTEGER NOT NULL,
		result        TEXT,
		type_name     TEXT,
		error_kind    TEXT,
		error_message TEXT,
		elapsed_ns    INTEGER NOT NULL,
		at            INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	log.Infof("journal open at %s", path)
	return &Journal{db: db, path: path}, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

// Path returns the database path the journal was opened with.
func (j *Journal) Path() string { return j.path }

// Record appends e and returns its ID. A zero At is set to now.
func (j *Journal) Record(ctx context.Context, e Entry) (int64, error) {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	res, err := j.db.ExecContext(ctx,
		`INSERT INTO evaluations
		 (session_id, thread, op, expression, success, result, type_name, error_kind, error_message, elapsed_ns, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.Thread, e.Op, e.Expression, e.Success,
		e.Result, e.TypeName, e.ErrorKind, e.ErrorMessage,
		int64(e.Elapsed), e.At.UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("recording evaluation: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	return j.query(ctx,
		`SELECT id, session_id, thread, op, expression, success, result, type_name,
		        error_kind, error_message, elapsed_ns, at
		 FROM evaluations ORDER BY id DESC LIMIT ?`, limit)
}

// Session returns the entries of one session in the order they were made.
func (j *Journal) Session(ctx context.Context, sessionID string) ([]Entry, error) {
	return j.query(ctx,
		`SELECT id, session_id, thread, op, expression, success, result, type_name,
		        error_kind, error_message, elapsed_ns, at
		 FROM evaluations WHERE session_id = ? ORDER BY id`, sessionID)
}

func (j *Journal) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                                         Entry
			result, typeName, errorKind, errorMessage sql.NullString
			elapsed, at                               int64
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Thread, &e.Op, &e.Expression, &e.Success,
			&result, &typeName, &errorKind, &errorMessage, &elapsed, &at); err != nil {
			return nil, fmt.Errorf("scanning journal row: %w", err)
		}
		e.Result = result.String
		e.TypeName = typeName.String
		e.ErrorKind = errorKind.String
		e.ErrorMessage = errorMessage.String
		e.Elapsed = time.Duration(elapsed)
		e.At = time.Unix(0, at)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
