package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/autoimport/internal/core"
)

// LIKE is case-insensitive for ASCII in SQLite.
const carSearchFrom = `
	FROM cars c
	JOIN manufacturers m ON m.id = c.manufacturer_id
	WHERE c.model LIKE ?1 ESCAPE '\' OR m.name LIKE ?1 ESCAPE '\'`

func (s *Store) CountManufacturers(ctx context.Context) (int64, error) {
	return s.count(ctx, "manufacturers")
}

func (s *Store) CountCars(ctx context.Context) (int64, error) {
	return s.count(ctx, "cars")
}

func (s *Store) count(ctx context.Context, table string) (int64, error) {
	var n int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", core.QuoteIdentifier(table))
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

func (s *Store) SearchCars(ctx context.Context, term string, page, pageSize int) (*core.CarPage, error) {
	pattern := core.ContainsPattern(term)

	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*)"+carSearchFrom, pattern).Scan(&total); err != nil {
		return nil, fmt.Errorf("count cars: %w", err)
	}

	page, totalPages, offset, size := core.Paginate(total, page, pageSize)

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.manufacturer_id, m.name, m.country, c.model, c.year, c.colour,
		       c.created_at, c.updated_at`+carSearchFrom+`
		ORDER BY c.id
		LIMIT ?2 OFFSET ?3`,
		pattern, size, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("query cars: %w", err)
	}
	defer rows.Close()

	var cars []core.Car
	for rows.Next() {
		var (
			c                      core.Car
			year, created, updated string
		)
		if err := rows.Scan(&c.ID, &c.ManufacturerID, &c.Manufacturer, &c.Country,
			&c.Model, &year, &c.Colour, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan car: %w", err)
		}
		if c.Year, err = time.Parse(time.DateOnly, year); err != nil {
			return nil, fmt.Errorf("parse year %q: %w", year, err)
		}
		if c.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		if c.UpdatedAt, err = parseTime(updated); err != nil {
			return nil, err
		}
		cars = append(cars, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return &core.CarPage{
		Cars:       cars,
		Term:       term,
		TotalRows:  total,
		Page:       page,
		PageSize:   size,
		TotalPages: totalPages,
	}, nil
}

func (s *Store) ListRuns(ctx context.Context, limit int) ([]core.ImportRun, error) {
	if limit < 1 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity, file_name, state, row_count, batch_count, error, started_at, finished_at
		FROM import_runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query import runs: %w", err)
	}
	defer rows.Close()

	var runs []core.ImportRun
	for rows.Next() {
		var (
			r                                core.ImportRun
			entity, state, started, finished string
		)
		if err := rows.Scan(&r.ID, &entity, &r.FileName, &state, &r.Rows, &r.Batches,
			&r.Error, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan import run: %w", err)
		}
		r.Entity, r.State = core.Entity(entity), core.RunState(state)
		if r.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if r.FinishedAt, err = parseTime(finished); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return runs, nil
}
