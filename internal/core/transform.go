package core

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"
)

// RowTransformer validates one raw row and converts it into a record of
// type R. Implementations are stateless apart from their clock.
type RowTransformer[R Record] interface {
	Entity() Entity
	Table() string
	// Columns lists destination columns in the order of R.Values.
	Columns() []string
	Transform(ctx context.Context, lookup ManufacturerLookup, row RawRow) (R, error)
}

// Squish trims s and collapses internal runs of whitespace to one space.
func Squish(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func tooManyRunes(s string, limit int) bool {
	return utf8.RuneCountInString(s) > limit
}

func nowOrDefault(now func() time.Time) time.Time {
	if now == nil {
		return time.Now().UTC()
	}
	return now()
}
