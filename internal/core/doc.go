// Package core implements the record-import pipeline.
//
// An import reads one comma-separated file describing a single kind of
// entity (manufacturers, or cars referencing stored manufacturers) and
// commits every row it contains in one transaction, or nothing at all.
//
// # Pipeline
//
//  1. [OpenChunker] opens the file, drops a UTF-8 BOM, sanitizes invalid
//     UTF-8 and discards the header record.
//  2. [Batches] lazily reads records, runs the entity's [RowTransformer] on
//     each one and groups the results into fixed-size batches.
//  3. [Writer] inserts each batch through the run's [Tx].
//  4. [Importer] owns the transaction: the first error from any stage rolls
//     back every batch written so far.
//
// Importers are selected statically:
//
//	res := core.NewCarImporter(store, core.WithBatchSize(500)).Import(ctx, "cars.csv")
//	if !res.Success {
//	    fmt.Println(res.Error) // e.g. "line 3: manufacturer not found: UnknownBrand"
//	}
//
// # Errors
//
// Failures are reported as [*ImportError] with an [ErrorKind] and, for row
// failures, the 1-based source line. [MapError] and [FormatUserError] turn
// them into user-facing messages with support codes.
//
// # Stores
//
// The [Store] interface is implemented by internal/storage/postgres and
// internal/storage/sqlite. Stores report unique violations wrapping
// [ErrDuplicate] and other integrity violations wrapping [ErrConstraint].
package core
