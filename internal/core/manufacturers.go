package core

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/autoimport/internal/country"
)

const (
	manufacturerMinFields = 4
	ManufacturerNameMax   = 255
	ManufacturerDescMax   = 255
)

// ManufacturerRows transforms manufacturer rows: id, name, description,
// country. The id column is ignored and trailing extra columns are allowed.
type ManufacturerRows struct {
	// Now stamps CreatedAt/UpdatedAt. Defaults to time.Now in UTC.
	Now func() time.Time
	// Countries resolves the country column. Defaults to country.Canonical.
	Countries *country.Matcher
}

func (ManufacturerRows) Entity() Entity { return EntityManufacturers }
func (ManufacturerRows) Table() string  { return string(EntityManufacturers) }

func (ManufacturerRows) Columns() []string {
	return []string{"name", "description", "country", "created_at", "updated_at"}
}

// Transform checks, in order: field count, name present, name length,
// description length, country resolvable. The first failure is returned.
func (t ManufacturerRows) Transform(_ context.Context, _ ManufacturerLookup, row RawRow) (ManufacturerRecord, error) {
	if len(row.Fields) < manufacturerMinFields {
		return ManufacturerRecord{}, incompleteRow(fmt.Sprintf("at least %d", manufacturerMinFields), len(row.Fields))
	}

	name := Squish(row.Fields[1])
	description := Squish(row.Fields[2])
	term := Squish(row.Fields[3])

	if name == "" {
		return ManufacturerRecord{}, emptyField("name")
	}
	if tooManyRunes(name, ManufacturerNameMax) {
		return ManufacturerRecord{}, tooLong("name", name, ManufacturerNameMax)
	}
	if tooManyRunes(description, ManufacturerDescMax) {
		return ManufacturerRecord{}, tooLong("description", description, ManufacturerDescMax)
	}

	canonical, ok := t.normalizeCountry(term)
	if !ok {
		return ManufacturerRecord{}, invalidField("country", term, fmt.Errorf("%w: %s", ErrInvalidCountry, term))
	}

	now := nowOrDefault(t.Now)
	return ManufacturerRecord{
		Name:        name,
		Description: description,
		Country:     canonical,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (t ManufacturerRows) normalizeCountry(term string) (string, bool) {
	if t.Countries != nil {
		return t.Countries.Normalize(term)
	}
	return country.Normalize(term)
}
