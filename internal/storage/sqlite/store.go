// Package sqlite is the embedded store. It needs no server, which makes it
// the default for local runs and tests; the schema is created on open.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/JonMunkholm/autoimport/internal/core"
)

// maxVariables is SQLite's default SQLITE_MAX_VARIABLE_NUMBER.
const maxVariables = 32766

// timestampLayout is fixed width so stored timestamps sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS manufacturers (
  id          INTEGER PRIMARY KEY AUTOINCREMENT,
  name        TEXT NOT NULL UNIQUE CHECK (length(name) <= 255),
  description TEXT NOT NULL DEFAULT '' CHECK (length(description) <= 255),
  country     TEXT NOT NULL,
  created_at  TEXT NOT NULL,
  updated_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS cars (
  id              INTEGER PRIMARY KEY AUTOINCREMENT,
  manufacturer_id INTEGER NOT NULL REFERENCES manufacturers (id) ON DELETE CASCADE,
  model           TEXT NOT NULL CHECK (length(model) <= 255),
  year            TEXT NOT NULL,
  colour          TEXT NOT NULL CHECK (length(colour) <= 50),
  created_at      TEXT NOT NULL,
  updated_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cars_manufacturer_id ON cars (manufacturer_id);

CREATE TABLE IF NOT EXISTS import_runs (
  id          TEXT PRIMARY KEY,
  entity      TEXT NOT NULL,
  file_name   TEXT NOT NULL,
  state       TEXT NOT NULL,
  row_count   INTEGER NOT NULL DEFAULT 0,
  batch_count INTEGER NOT NULL DEFAULT 0,
  error       TEXT NOT NULL DEFAULT '',
  started_at  TEXT NOT NULL,
  finished_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_import_runs_started_at ON import_runs (started_at);
`

// Store implements core.Store and core.Repository over a SQLite file.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var (
	_ core.Store      = (*Store)(nil)
	_ core.Repository = (*Store)(nil)
)

// Open opens (or creates) the database at path and ensures the schema exists.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(wal)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Debug("opened sqlite store", "path", path)
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates any missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Begin opens the transaction a whole import runs in.
func (s *Store) Begin(ctx context.Context) (core.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqlTx{tx: tx}, nil
}

// RecordRun appends run to the import history.
func (s *Store) RecordRun(ctx context.Context, run core.ImportRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO import_runs
			(id, entity, file_name, state, row_count, batch_count, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Entity), run.FileName, string(run.State), run.Rows, run.Batches,
		run.Error, formatTime(run.StartedAt), formatTime(run.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("insert import run: %w", err)
	}
	return nil
}

// Reset deletes every car, manufacturer and run record.
func (s *Store) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{
		`DELETE FROM cars`,
		`DELETE FROM manufacturers`,
		`DELETE FROM import_runs`,
		`DELETE FROM sqlite_sequence`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
	}
	return tx.Commit()
}

type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) ManufacturerByName(ctx context.Context, name string) (core.Manufacturer, error) {
	var (
		m                core.Manufacturer
		created, updated string
	)
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, name, description, country, created_at, updated_at
		FROM manufacturers
		WHERE name = ?`, name,
	).Scan(&m.ID, &m.Name, &m.Description, &m.Country, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Manufacturer{}, core.ErrNotFound
	}
	if err != nil {
		return core.Manufacturer{}, fmt.Errorf("select manufacturer: %w", err)
	}
	if m.CreatedAt, err = parseTime(created); err != nil {
		return core.Manufacturer{}, err
	}
	if m.UpdatedAt, err = parseTime(updated); err != nil {
		return core.Manufacturer{}, err
	}
	return m, nil
}

// InsertBatch writes rows with multi-row INSERT statements, as many rows per
// statement as the variable limit allows.
func (t *sqlTx) InsertBatch(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(columns) == 0 {
		return 0, errors.New("insert: no columns")
	}

	perStmt := max(maxVariables/len(columns), 1)
	var total int64

	for start := 0; start < len(rows); start += perStmt {
		chunk := rows[start:min(start+perStmt, len(rows))]
		query, args := insertStatement(table, columns, chunk)

		res, err := t.tx.ExecContext(ctx, query, args...)
		if err != nil {
			return total, classify(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (t *sqlTx) Commit(context.Context) error {
	return t.tx.Commit()
}

func (t *sqlTx) Rollback(context.Context) error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

func insertStatement(table string, columns []string, rows [][]any) (string, []any) {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = core.QuoteIdentifier(c)
	}
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?,", len(columns)), ",") + ")"

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", core.QuoteIdentifier(table), strings.Join(quoted, ", "))

	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(tuple)
		for j, v := range row {
			args = append(args, bindValue(columns[j], v))
		}
	}
	return b.String(), args
}

// dateColumns hold calendar dates rather than instants.
var dateColumns = map[string]bool{"year": true}

func bindValue(column string, v any) any {
	t, ok := v.(time.Time)
	if !ok {
		return v
	}
	if dateColumns[column] {
		return t.UTC().Format(time.DateOnly)
	}
	return formatTime(t)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// classify wraps integrity violations in the matching core sentinel.
func classify(err error) error {
	var sqlErr *sqlitedrv.Error
	if errors.As(err, &sqlErr) {
		switch sqlErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %w", core.ErrDuplicate, err)
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY, sqlite3.SQLITE_CONSTRAINT_NOTNULL,
			sqlite3.SQLITE_CONSTRAINT_CHECK:
			return fmt.Errorf("%w: %w", core.ErrConstraint, err)
		}
	}

	// Primary result codes only carry the message.
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return fmt.Errorf("%w: %w", core.ErrDuplicate, err)
	case strings.Contains(msg, "constraint failed"):
		return fmt.Errorf("%w: %w", core.ErrConstraint, err)
	}
	return err
}
