package core

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/autoimport/internal/logging"
)

// DefaultBatchSize is the number of rows per insert batch.
const DefaultBatchSize = 1000

// SuccessMessage is reported by every committed import.
const SuccessMessage = "import completed successfully"

// Option configures an Importer.
type Option func(*settings)

type settings struct {
	batchSize int
	now       func() time.Time
	logger    *slog.Logger
	progress  ProgressCallback
}

// WithBatchSize sets rows per insert batch. Values below 1 are ignored.
func WithBatchSize(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithClock sets the clock used for record timestamps and run history.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// WithLogger sets the base logger. Defaults to slog.Default at run time.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithProgress registers a callback invoked after each batch is written.
func WithProgress(fn ProgressCallback) Option {
	return func(s *settings) { s.progress = fn }
}

func newSettings(opts []Option) settings {
	s := settings{
		batchSize: DefaultBatchSize,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Importer runs whole-file imports of one entity kind. Every run is a
// single transaction: either all rows commit or none do.
type Importer[R Record] struct {
	store       Store
	transformer RowTransformer[R]
	settings
}

// NewImporter creates an importer for an arbitrary transformer.
func NewImporter[R Record](store Store, t RowTransformer[R], opts ...Option) *Importer[R] {
	return &Importer[R]{store: store, transformer: t, settings: newSettings(opts)}
}

// NewManufacturerImporter imports manufacturer files.
func NewManufacturerImporter(store Store, opts ...Option) *Importer[ManufacturerRecord] {
	s := newSettings(opts)
	return &Importer[ManufacturerRecord]{
		store:       store,
		transformer: ManufacturerRows{Now: s.now},
		settings:    s,
	}
}

// NewCarImporter imports car files. Manufacturers must already be stored.
func NewCarImporter(store Store, opts ...Option) *Importer[CarRecord] {
	s := newSettings(opts)
	return &Importer[CarRecord]{
		store:       store,
		transformer: CarRows{Now: s.now},
		settings:    s,
	}
}

// Entity returns the kind of record this importer writes.
func (im *Importer[R]) Entity() Entity { return im.transformer.Entity() }

// Import reads path and commits every row it contains, or nothing.
// Failures are reported on the result, never returned or panicked.
func (im *Importer[R]) Import(ctx context.Context, path string) ImportResult {
	runID := uuid.NewString()
	ctx = logging.ContextWithRunID(ctx, runID)

	base := im.logger
	if base == nil {
		base = slog.Default()
	}
	log := logging.Enrich(base, ctx).With("entity", im.Entity(), "file", filepath.Base(path))

	started := im.now()
	res := ImportResult{
		RunID:    runID,
		Entity:   im.Entity(),
		FileName: path,
		State:    StateNotStarted,
	}

	log.Info("import started", "batch_size", im.batchSize)
	err := im.run(ctx, path, &res, log)
	res.Duration = im.now().Sub(started)

	if err != nil {
		res.Success = false
		res.Err = err
		res.Error = err.Error()
		res.Kind = KindOf(err)
		log.Warn("import failed",
			"state", res.State,
			"kind", res.Kind.String(),
			"error", res.Error,
			"duration", res.Duration,
		)
	} else {
		res.Success = true
		res.Message = SuccessMessage
		log.Info("import completed",
			"rows", res.Rows,
			"batches", res.Batches,
			"duration", res.Duration,
		)
	}

	im.recordRun(ctx, res, started, log)
	return res
}

func (im *Importer[R]) run(ctx context.Context, path string, res *ImportResult, log *slog.Logger) error {
	chunker, err := OpenChunker(path, im.batchSize)
	if err != nil {
		return err
	}
	defer chunker.Close()
	log.Debug("header read", "columns", len(chunker.Header()))

	tx, err := im.store.Begin(ctx)
	if err != nil {
		return &ImportError{Kind: KindStorage, Err: fmt.Errorf("begin transaction: %w", err)}
	}
	res.State = StateRunning

	writer := NewWriter(tx, im.transformer)
	lookup := newLookupCache(tx)
	transform := func(row RawRow) (R, error) {
		return im.transformer.Transform(ctx, lookup, row)
	}

	for batch, err := range Batches(chunker, transform) {
		if err == nil {
			err = writer.Write(ctx, batch)
		}
		if err != nil {
			im.rollback(ctx, tx, res, log)
			return err
		}

		read, total := chunker.BytesRead()
		log.Debug("batch written", "batch", writer.Batches(), "rows", writer.Rows(), "bytes_read", read)
		if im.progress != nil {
			im.progress(Progress{
				RunID:      res.RunID,
				Entity:     res.Entity,
				Rows:       writer.Rows(),
				Batches:    writer.Batches(),
				BytesRead:  read,
				BytesTotal: total,
			})
		}
	}

	if err := tx.Commit(ctx); err != nil {
		im.rollback(ctx, tx, res, log)
		return &ImportError{Kind: KindStorage, Err: fmt.Errorf("commit: %w", err)}
	}

	res.State = StateCommitted
	res.Rows = writer.Rows()
	res.Batches = writer.Batches()
	return nil
}

// rollback discards the run. It uses a context detached from cancellation so
// a cancelled run still releases its transaction.
func (im *Importer[R]) rollback(ctx context.Context, tx Tx, res *ImportResult, log *slog.Logger) {
	if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil {
		log.Error("rollback failed", "error", err)
	}
	res.State = StateRolledBack
}

func (im *Importer[R]) recordRun(ctx context.Context, res ImportResult, started time.Time, log *slog.Logger) {
	run := ImportRun{
		ID:         res.RunID,
		Entity:     res.Entity,
		FileName:   filepath.Base(res.FileName),
		State:      res.State,
		Rows:       res.Rows,
		Batches:    res.Batches,
		Error:      res.Error,
		StartedAt:  started,
		FinishedAt: started.Add(res.Duration),
	}
	if err := im.store.RecordRun(context.WithoutCancel(ctx), run); err != nil {
		log.Warn("record import run failed", "error", err)
	}
}
