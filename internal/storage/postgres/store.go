// Package postgres is the PostgreSQL store: batches are written with COPY
// inside a single transaction and the schema is managed by golang-migrate.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/autoimport/internal/config"
	"github.com/JonMunkholm/autoimport/internal/core"
)

// SQLSTATE codes mapped onto core sentinels.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeNotNullViolation    = "23502"
	codeCheckViolation      = "23514"
)

// Store implements core.Store and core.Repository over a pgx pool.
type Store struct {
	pool   *pgxpool.Pool
	url    string
	logger *slog.Logger
}

var (
	_ core.Store      = (*Store)(nil)
	_ core.Repository = (*Store)(nil)
)

// Open connects to PostgreSQL with the pool settings from cfg and verifies
// the connection.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	poolConfig.MinConns = int32(cfg.MinConns)
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Debug("connected to postgres", "database", poolConfig.ConnConfig.Database)
	return &Store{pool: pool, url: cfg.URL, logger: logger}, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Migrate brings the schema up to date.
func (s *Store) Migrate(ctx context.Context) error {
	return Migrate(ctx, s.url, s.logger)
}

// Begin opens the transaction a whole import runs in.
func (s *Store) Begin(ctx context.Context) (core.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &pgTx{tx: tx}, nil
}

// RecordRun appends run to the import history.
func (s *Store) RecordRun(ctx context.Context, run core.ImportRun) error {
	id, err := uuid.Parse(run.ID)
	if err != nil {
		return fmt.Errorf("run id %q: %w", run.ID, err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO import_runs
			(id, entity, file_name, state, row_count, batch_count, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, string(run.Entity), run.FileName, string(run.State), run.Rows, run.Batches,
		run.Error, run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert import run: %w", err)
	}
	return nil
}

// Reset deletes every car, manufacturer and run record.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `TRUNCATE cars, manufacturers, import_runs RESTART IDENTITY`); err != nil {
		return fmt.Errorf("truncate tables: %w", err)
	}
	return nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) ManufacturerByName(ctx context.Context, name string) (core.Manufacturer, error) {
	var m core.Manufacturer
	err := t.tx.QueryRow(ctx, `
		SELECT id, name, description, country, created_at, updated_at
		FROM manufacturers
		WHERE name = $1`, name,
	).Scan(&m.ID, &m.Name, &m.Description, &m.Country, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Manufacturer{}, core.ErrNotFound
	}
	if err != nil {
		return core.Manufacturer{}, fmt.Errorf("select manufacturer: %w", err)
	}
	return m, nil
}

func (t *pgTx) InsertBatch(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	n, err := t.tx.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, classify(err)
	}
	return n, nil
}

func (t *pgTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *pgTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}

// classify wraps integrity violations in the matching core sentinel.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeUniqueViolation:
		return fmt.Errorf("%w: %w", core.ErrDuplicate, err)
	case codeForeignKeyViolation, codeNotNullViolation, codeCheckViolation:
		return fmt.Errorf("%w: %w", core.ErrConstraint, err)
	}
	return err
}
