package core

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// ============================================================================
// Row Transform Benchmarks
// ============================================================================

// BenchmarkManufacturerTransform covers the per-row hot path of a
// manufacturer import, country normalization included.
func BenchmarkManufacturerTransform(b *testing.B) {
	rows := []RawRow{
		{Line: 2, Fields: []string{"1", "Toyota", "Japanese maker", "Japan"}},
		{Line: 3, Fields: []string{"2", "  Volkswagen  Group ", "German maker", "german"}},
		{Line: 4, Fields: []string{"3", "Ford", "American maker", "Nited States"}},
	}
	tr := ManufacturerRows{Now: fixedClock}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, row := range rows {
			if _, err := tr.Transform(ctx, nil, row); err != nil {
				b.Fatal(err)
			}
		}
	}
}

// BenchmarkCarTransform measures car rows with a memoized manufacturer lookup,
// the way an import run resolves them.
func BenchmarkCarTransform(b *testing.B) {
	row := RawRow{Line: 2, Fields: []string{"1", "Toyota", "Corolla", "2019", "Red"}}
	tr := CarRows{Now: fixedClock}
	lookup := newLookupCache(newMapLookup("Toyota"))
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := tr.Transform(ctx, lookup, row); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkSquish benchmarks whitespace normalization of a single field.
func BenchmarkSquish(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Squish("  Bayerische   Motoren \t Werke  ")
	}
}

// ============================================================================
// Streaming Benchmarks
// ============================================================================

// BenchmarkSanitizingReader measures BOM stripping and UTF-8 repair over a
// 1MB input.
func BenchmarkSanitizingReader(b *testing.B) {
	data := []byte("\xEF\xBB\xBF" + strings.Repeat("1,Toyota,Japanese maker,Japan\n", 35000))

	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := io.Copy(io.Discard, NewSanitizingReader(bytes.NewReader(data))); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkBatches_10K reads and batches a 10,000 row file.
func BenchmarkBatches_10K(b *testing.B) {
	var sb strings.Builder
	sb.WriteString("id,name,description,country\n")
	for i := range 10000 {
		fmt.Fprintf(&sb, "%d,maker-%d,desc,Germany\n", i, i)
	}
	path := filepath.Join(b.TempDir(), "bench.csv")
	if err := os.WriteFile(path, []byte(sb.String()), 0o600); err != nil {
		b.Fatal(err)
	}

	tr := ManufacturerRows{Now: fixedClock}
	ctx := context.Background()
	transform := func(row RawRow) (ManufacturerRecord, error) {
		return tr.Transform(ctx, nil, row)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c, err := OpenChunker(path, DefaultBatchSize)
		if err != nil {
			b.Fatal(err)
		}
		rows := 0
		for batch, err := range Batches(c, transform) {
			if err != nil {
				b.Fatal(err)
			}
			rows += len(batch)
		}
		if rows != 10000 {
			b.Fatalf("rows = %d, want 10000", rows)
		}
	}
}
