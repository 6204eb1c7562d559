package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/autoimport/internal/core"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "data", "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const manufacturersCSV = `id,name,description,country
1,Toyota,Japanese maker,Japan
2,Volkswagen,German maker,german
3,Ford,American maker,United States
`

func importManufacturers(t *testing.T, store *Store) {
	t.Helper()
	res := core.NewManufacturerImporter(store).Import(context.Background(), writeFile(t, "m.csv", manufacturersCSV))
	require.True(t, res.Success, res.Error)
}

func TestImport_ManufacturersThenCars(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	res := core.NewManufacturerImporter(store, core.WithBatchSize(2)).
		Import(ctx, writeFile(t, "manufacturers.csv", manufacturersCSV))
	require.True(t, res.Success, res.Error)
	assert.Equal(t, int64(3), res.Rows)
	assert.Equal(t, 2, res.Batches)

	n, err := store.CountManufacturers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	cars := "id,manufacturer,model,year,colour\n" +
		"1,Toyota,Corolla,2019,Red\n" +
		"1,Volkswagen,Golf,1974,Yellow\n"
	res = core.NewCarImporter(store).Import(ctx, writeFile(t, "cars.csv", cars))
	require.True(t, res.Success, res.Error)
	assert.Equal(t, int64(2), res.Rows)

	page, err := store.SearchCars(ctx, "GOLF", 1, 12)
	require.NoError(t, err)
	require.Len(t, page.Cars, 1)
	car := page.Cars[0]
	assert.Equal(t, "Golf", car.Model)
	assert.Equal(t, "Volkswagen", car.Manufacturer)
	assert.Equal(t, "Germany", car.Country)
	assert.Equal(t, time.Date(1974, 1, 1, 0, 0, 0, 0, time.UTC), car.Year)
	assert.Equal(t, "Yellow", car.Colour)
	assert.False(t, car.CreatedAt.IsZero())
}

func TestImport_DuplicateRollsBackEverything(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	content := manufacturersCSV + "4,Ford,again,United States\n"
	res := core.NewManufacturerImporter(store, core.WithBatchSize(2)).Import(ctx, writeFile(t, "dup.csv", content))

	require.False(t, res.Success)
	assert.Equal(t, core.KindIntegrity, res.Kind)
	assert.Equal(t, core.StateRolledBack, res.State)
	assert.True(t, strings.HasPrefix(res.Error, "import failed due to duplicate manufacturers in the dataset"), res.Error)
	assert.Equal(t, "DB001", core.MapError(res.Err).Code)

	n, err := store.CountManufacturers(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "first batch must not survive the rollback")
}

func TestImport_ExistingNameIsDuplicate(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	importManufacturers(t, store)

	res := core.NewManufacturerImporter(store).
		Import(ctx, writeFile(t, "more.csv", "id,name,description,country\n9,Kia,Korean maker,South Korea\n9,Toyota,again,Japan\n"))
	require.False(t, res.Success)
	assert.Equal(t, core.KindIntegrity, res.Kind)

	n, err := store.CountManufacturers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestImport_MissingManufacturerRollsBackCars(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	importManufacturers(t, store)

	cars := "id,manufacturer,model,year,colour\n" +
		"1,Toyota,Corolla,2019,Red\n" +
		"1,Lada,Niva,1977,Green\n"
	res := core.NewCarImporter(store, core.WithBatchSize(1)).Import(ctx, writeFile(t, "cars.csv", cars))

	require.False(t, res.Success)
	assert.Equal(t, core.KindReference, res.Kind)
	assert.Equal(t, "line 3: manufacturer not found: Lada", res.Error)

	n, err := store.CountCars(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestImport_ValidationRollsBack(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	content := "id,name,description,country\n1,Toyota,x,Japan\n2,Acme,x,Atlantis\n"
	res := core.NewManufacturerImporter(store).Import(ctx, writeFile(t, "bad.csv", content))

	require.False(t, res.Success)
	assert.Equal(t, core.KindValidation, res.Kind)
	assert.Equal(t, "line 3: invalid country: Atlantis", res.Error)

	n, err := store.CountManufacturers(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestInsertBatch_ClassifiesConstraints(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	now := time.Now()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tx.Rollback(ctx) })

	mcols := []string{"name", "description", "country", "created_at", "updated_at"}
	_, err = tx.InsertBatch(ctx, "manufacturers", mcols, [][]any{{"Toyota", "", "Japan", now, now}})
	require.NoError(t, err)

	_, err = tx.InsertBatch(ctx, "manufacturers", mcols, [][]any{{"Toyota", "", "Japan", now, now}})
	assert.ErrorIs(t, err, core.ErrDuplicate)

	ccols := []string{"manufacturer_id", "model", "year", "colour", "created_at", "updated_at"}
	_, err = tx.InsertBatch(ctx, "cars", ccols, [][]any{{int64(999), "Ghost", now, "Red", now, now}})
	assert.ErrorIs(t, err, core.ErrConstraint)
	assert.NotErrorIs(t, err, core.ErrDuplicate)
}

func TestInsertBatch_SplitsAtVariableLimit(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	now := time.Now()

	// Five columns per row: 6554 rows per statement.
	const total = 7000
	rows := make([][]any, total)
	for i := range rows {
		rows[i] = []any{fmt.Sprintf("maker-%d", i), "", "Japan", now, now}
	}

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	n, err := tx.InsertBatch(ctx, "manufacturers", []string{"name", "description", "country", "created_at", "updated_at"}, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(total), n)
	require.NoError(t, tx.Commit(ctx))

	count, err := store.CountManufacturers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(total), count)
}

func TestSearchCars_EscapesAndPaginates(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	importManufacturers(t, store)

	cars := "id,manufacturer,model,year,colour\n"
	for _, model := range []string{"A", "B", "C", "D", "E"} {
		cars += "1,Ford,Model " + model + ",1930,Black\n"
	}
	cars += "1,Ford,100% Electric,2021,Grey\n"
	require.True(t, core.NewCarImporter(store).Import(ctx, writeFile(t, "c.csv", cars)).Success)

	page, err := store.SearchCars(ctx, "", 9, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(6), page.TotalRows)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Cars, 2)

	page, err = store.SearchCars(ctx, "%", 1, 0)
	require.NoError(t, err)
	assert.Equal(t, core.DefaultPageSize, page.PageSize)
	require.Len(t, page.Cars, 1)
	assert.Equal(t, "100% Electric", page.Cars[0].Model)

	page, err = store.SearchCars(ctx, "ford", 1, 12)
	require.NoError(t, err)
	assert.Equal(t, int64(6), page.TotalRows, "manufacturer name matches too")

	page, err = store.SearchCars(ctx, "nothing", 1, 12)
	require.NoError(t, err)
	assert.Empty(t, page.Cars)
	assert.Equal(t, 1, page.TotalPages)
}

func TestRuns_RecordedNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	ok := core.NewManufacturerImporter(store).Import(ctx, writeFile(t, "m.csv", manufacturersCSV))
	require.True(t, ok.Success)
	failed := core.NewManufacturerImporter(store).Import(ctx, writeFile(t, "again.csv", manufacturersCSV))
	require.False(t, failed.Success)

	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, failed.RunID, runs[0].ID)
	assert.Equal(t, core.StateRolledBack, runs[0].State)
	assert.Equal(t, "again.csv", runs[0].FileName)
	assert.Equal(t, failed.Error, runs[0].Error)

	assert.Equal(t, ok.RunID, runs[1].ID)
	assert.Equal(t, core.StateCommitted, runs[1].State)
	assert.Equal(t, int64(3), runs[1].Rows)
	assert.Equal(t, 1, runs[1].Batches)
	assert.Equal(t, core.EntityManufacturers, runs[1].Entity)
	assert.False(t, runs[1].FinishedAt.Before(runs[1].StartedAt))
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	importManufacturers(t, store)

	require.NoError(t, store.Reset(ctx))

	n, err := store.CountManufacturers(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, runs)

	importManufacturers(t, store)
	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)
	m, err := tx.ManufacturerByName(ctx, "Toyota")
	require.NoError(t, err)
	assert.Equal(t, int64(1), m.ID, "ids restart after reset")
}

func TestMigrate_Idempotent(t *testing.T) {
	store := openStore(t)
	require.NoError(t, store.Migrate(context.Background()))
}
