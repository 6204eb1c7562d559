package core

import (
	"context"
	"time"
)

// Entity names the kind of record an import file describes.
// It doubles as the destination table name.
type Entity string

const (
	EntityManufacturers Entity = "manufacturers"
	EntityCars          Entity = "cars"
)

// RawRow is one input record as read from the file.
type RawRow struct {
	Line   int // 1-based source line where the record starts
	Fields []string
}

// Record is a validated row ready for persistence. Values returns column
// values in the order of the producing transformer's Columns.
type Record interface {
	Values() []any
}

// ManufacturerRecord is a validated manufacturer row.
type ManufacturerRecord struct {
	Name        string
	Description string
	Country     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (r ManufacturerRecord) Values() []any {
	return []any{r.Name, r.Description, r.Country, r.CreatedAt, r.UpdatedAt}
}

// CarRecord is a validated car row.
type CarRecord struct {
	ManufacturerID int64
	Model          string
	Year           time.Time // January 1st of the model year, UTC
	Colour         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (r CarRecord) Values() []any {
	return []any{r.ManufacturerID, r.Model, r.Year, r.Colour, r.CreatedAt, r.UpdatedAt}
}

// Manufacturer is a stored manufacturer.
type Manufacturer struct {
	ID          int64
	Name        string
	Description string
	Country     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Car is a stored car joined with its manufacturer's name and country.
type Car struct {
	ID             int64
	ManufacturerID int64
	Manufacturer   string
	Country        string
	Model          string
	Year           time.Time
	Colour         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ManufacturerLookup resolves a manufacturer by exact name.
// Returns ErrNotFound when no manufacturer has that name.
type ManufacturerLookup interface {
	ManufacturerByName(ctx context.Context, name string) (Manufacturer, error)
}

// Tx is an open store transaction. Everything written through it becomes
// visible only on Commit.
type Tx interface {
	ManufacturerLookup

	// InsertBatch inserts rows into table. Unique violations are reported
	// wrapping ErrDuplicate, other integrity violations wrapping ErrConstraint.
	InsertBatch(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store is the persisted-store collaborator of the importer.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
	RecordRun(ctx context.Context, run ImportRun) error
}

// RunState is the importer's state for a single run.
type RunState string

const (
	StateNotStarted RunState = "not_started"
	StateRunning    RunState = "running"
	StateCommitted  RunState = "committed"
	StateRolledBack RunState = "rolled_back"
)

// ImportResult reports the outcome of one import. There is no partial
// success: Rows is zero unless the run committed.
type ImportResult struct {
	Success  bool
	Message  string // set on success
	Error    string // first cause, set on failure
	Kind     ErrorKind
	Err      error
	RunID    string
	Entity   Entity
	FileName string
	State    RunState
	Rows     int64
	Batches  int
	Duration time.Duration
}

// ImportRun is the history entry written after every run.
type ImportRun struct {
	ID         string
	Entity     Entity
	FileName   string
	State      RunState
	Rows       int64
	Batches    int
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Progress is a snapshot of a running import.
type Progress struct {
	RunID      string
	Entity     Entity
	Rows       int64
	Batches    int
	BytesRead  int64
	BytesTotal int64
}

// Percent returns byte-based progress (0-100), or 0 when the size is unknown.
func (p Progress) Percent() int {
	if p.BytesTotal <= 0 {
		return 0
	}
	return min(int(p.BytesRead*100/p.BytesTotal), 100)
}

// ProgressCallback is called after each batch is written.
type ProgressCallback func(Progress)
