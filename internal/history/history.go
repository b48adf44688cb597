// Package history keeps a SQLite log of parse runs and their report rows.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/thywilljoshua/doc-parser/internal/parse"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  TEXT NOT NULL,
	finished_at TEXT,
	input_dir   TEXT NOT NULL,
	output_dir  TEXT NOT NULL,
	documents   INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS run_documents (
	run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq        INTEGER NOT NULL,
	document   TEXT NOT NULL,
	type       TEXT NOT NULL,
	toc        INTEGER NOT NULL,
	images     INTEGER NOT NULL,
	tables     INTEGER NOT NULL,
	paragraphs INTEGER NOT NULL,
	status     TEXT NOT NULL,
	error      TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, seq)
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
`

var pragmas = []string{
	"PRAGMA foreign_keys = ON",
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 10000",
	"PRAGMA synchronous = NORMAL",
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the history database at path. ":memory:"
// gives a private in-memory store.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("history: mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open: %w", err)
	}
	// Pragmas are per connection, and every connection to ":memory:" is a
	// separate database.
	db.SetMaxOpenConns(1)
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("history: %s: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

// Run is an open history entry. It implements parse.Recorder.
type Run struct {
	ID        string
	store     *Store
	documents int
	failed    int
}

func (s *Store) Begin(ctx context.Context, inputDir, outputDir string) (*Run, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, input_dir, output_dir) VALUES (?, ?, ?, ?)`,
		id, s.timestamp(), inputDir, outputDir)
	if err != nil {
		return nil, fmt.Errorf("history: begin run: %w", err)
	}
	return &Run{ID: id, store: s}, nil
}

func (r *Run) Record(ctx context.Context, row parse.ReportRow) error {
	_, err := r.store.db.ExecContext(ctx,
		`INSERT INTO run_documents (run_id, seq, document, type, toc, images, tables, paragraphs, status, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.documents, row.Document, string(row.Type), row.TOC, row.Images, row.Tables, row.Paragraphs,
		string(row.Status), row.Error)
	if err != nil {
		return fmt.Errorf("history: record %s: %w", row.Document, err)
	}
	r.documents++
	if row.Status == parse.StatusFailed {
		r.failed++
	}
	return nil
}

// Finish stamps the run with its end time and totals.
func (r *Run) Finish(ctx context.Context) error {
	_, err := r.store.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, documents = ?, failed = ? WHERE id = ?`,
		r.store.timestamp(), r.documents, r.failed, r.ID)
	if err != nil {
		return fmt.Errorf("history: finish run: %w", err)
	}
	return nil
}

type RunSummary struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	InputDir   string     `json:"input_dir"`
	OutputDir  string     `json:"output_dir"`
	Documents  int        `json:"documents"`
	Failed     int        `json:"failed"`
}

// Recent returns up to n runs, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, input_dir, output_dir, documents, failed
		 FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("history: recent: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			r        RunSummary
			started  string
			finished sql.NullString
		)
		if err := rows.Scan(&r.ID, &started, &finished, &r.InputDir, &r.OutputDir, &r.Documents, &r.Failed); err != nil {
			return nil, fmt.Errorf("history: scan run: %w", err)
		}
		if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("history: run %s: %w", r.ID, err)
		}
		if finished.Valid {
			t, err := time.Parse(time.RFC3339Nano, finished.String)
			if err != nil {
				return nil, fmt.Errorf("history: run %s: %w", r.ID, err)
			}
			r.FinishedAt = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Documents returns the report rows of a run in the order they were recorded.
func (s *Store) Documents(ctx context.Context, runID string) ([]parse.ReportRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT document, type, toc, images, tables, paragraphs, status, error
		 FROM run_documents WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("history: documents: %w", err)
	}
	defer rows.Close()

	var out []parse.ReportRow
	for rows.Next() {
		var r parse.ReportRow
		var kind, status string
		if err := rows.Scan(&r.Document, &kind, &r.TOC, &r.Images, &r.Tables, &r.Paragraphs, &status, &r.Error); err != nil {
			return nil, fmt.Errorf("history: scan document: %w", err)
		}
		r.Type, r.Status = parse.Kind(kind), parse.Status(status)
		out = append(out, r)
	}
	return out, rows.Err()
}
