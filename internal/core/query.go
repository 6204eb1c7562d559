package core

import (
	"context"
	"strings"
)

// DefaultPageSize matches the browse page of the car catalogue.
const DefaultPageSize = 12

// Repository is the read side of a store.
type Repository interface {
	CountManufacturers(ctx context.Context) (int64, error)
	CountCars(ctx context.Context) (int64, error)
	// SearchCars returns cars whose model or manufacturer name contains term,
	// case-insensitively. An empty term matches every car.
	SearchCars(ctx context.Context, term string, page, pageSize int) (*CarPage, error)
	// ListRuns returns the most recent import runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]ImportRun, error)
}

// CarPage is one page of a car search.
type CarPage struct {
	Cars       []Car
	Term       string
	TotalRows  int64
	Page       int
	PageSize   int
	TotalPages int
}

// Paginate clamps page to [1, totalPages]. It returns the clamped page, the
// page count (at least 1), the row offset and the effective page size;
// pageSize below 1 falls back to DefaultPageSize.
func Paginate(totalRows int64, page, pageSize int) (clamped, totalPages, offset, size int) {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if page < 1 {
		page = 1
	}
	totalPages = int((totalRows + int64(pageSize) - 1) / int64(pageSize))
	if totalPages < 1 {
		totalPages = 1
	}
	if page > totalPages {
		page = totalPages
	}
	return page, totalPages, (page - 1) * pageSize, pageSize
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ContainsPattern builds a LIKE pattern matching term anywhere, with LIKE
// metacharacters in term escaped by backslash. Use with ESCAPE '\'.
func ContainsPattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

// QuoteIdentifier quotes a table or column name for SQL.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
