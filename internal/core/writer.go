package core

import (
	"context"
	"errors"
	"fmt"
)

// Writer inserts batches of records through one open transaction and keeps
// running totals. It never commits or rolls back; the caller owns tx.
type Writer[R Record] struct {
	tx      Tx
	entity  Entity
	table   string
	columns []string
	rows    int64
	batches int
}

// NewWriter creates a writer for the transformer's table and columns.
func NewWriter[R Record](tx Tx, t RowTransformer[R]) *Writer[R] {
	return &Writer[R]{
		tx:      tx,
		entity:  t.Entity(),
		table:   t.Table(),
		columns: t.Columns(),
	}
}

// Write inserts batch. Constraint failures reported by the store become
// Integrity errors, anything else a Storage error.
func (w *Writer[R]) Write(ctx context.Context, batch []R) error {
	if len(batch) == 0 {
		return nil
	}

	rows := make([][]any, len(batch))
	for i, rec := range batch {
		rows[i] = rec.Values()
	}

	n, err := w.tx.InsertBatch(ctx, w.table, w.columns, rows)
	if err != nil {
		return w.translate(err)
	}

	w.rows += n
	w.batches++
	return nil
}

// Rows returns the number of rows inserted so far.
func (w *Writer[R]) Rows() int64 { return w.rows }

// Batches returns the number of batches inserted so far.
func (w *Writer[R]) Batches() int { return w.batches }

func (w *Writer[R]) translate(err error) error {
	switch {
	case errors.Is(err, ErrDuplicate):
		return &ImportError{
			Kind: KindIntegrity,
			Err:  fmt.Errorf("import failed due to duplicate %s in the dataset: %w", w.entity, err),
		}
	case errors.Is(err, ErrConstraint):
		return &ImportError{
			Kind: KindIntegrity,
			Err:  fmt.Errorf("import failed due to database integrity constraints: %w", err),
		}
	default:
		return &ImportError{
			Kind: KindStorage,
			Err:  fmt.Errorf("insert %s batch %d: %w", w.entity, w.batches+1, err),
		}
	}
}
