package core

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

const (
	carFields    = 5
	CarModelMax  = 255
	CarColourMax = 50
)

var yearPattern = regexp.MustCompile(`^\d{4}$`)

// CarRows transforms car rows: id, manufacturer, model, year, colour.
// The id column is ignored. The manufacturer must already be stored; it is
// never created on the fly.
type CarRows struct {
	// Now stamps CreatedAt/UpdatedAt. Defaults to time.Now in UTC.
	Now func() time.Time
}

func (CarRows) Entity() Entity { return EntityCars }
func (CarRows) Table() string  { return string(EntityCars) }

func (CarRows) Columns() []string {
	return []string{"manufacturer_id", "model", "year", "colour", "created_at", "updated_at"}
}

// Transform checks, in order: field count, required fields, year format,
// colour length, model length, year value, manufacturer existence.
func (t CarRows) Transform(ctx context.Context, lookup ManufacturerLookup, row RawRow) (CarRecord, error) {
	if len(row.Fields) != carFields {
		return CarRecord{}, incompleteRow(strconv.Itoa(carFields), len(row.Fields))
	}

	manufacturer := Squish(row.Fields[1])
	model := Squish(row.Fields[2])
	rawYear := row.Fields[3]
	colour := Squish(row.Fields[4])

	required := []struct{ field, value string }{
		{"manufacturer", manufacturer},
		{"model", model},
		{"year", rawYear},
		{"colour", colour},
	}
	for _, r := range required {
		if r.value == "" {
			return CarRecord{}, emptyField(r.field)
		}
	}

	if !yearPattern.MatchString(rawYear) {
		return CarRecord{}, invalidField("year", rawYear, fmt.Errorf("%w format: %s", ErrInvalidYear, rawYear))
	}
	if tooManyRunes(colour, CarColourMax) {
		return CarRecord{}, tooLong("colour", colour, CarColourMax)
	}
	if tooManyRunes(model, CarModelMax) {
		return CarRecord{}, tooLong("model", model, CarModelMax)
	}

	y, _ := strconv.Atoi(rawYear)
	if y < 1 {
		return CarRecord{}, invalidField("year", rawYear, fmt.Errorf("%w value: %s", ErrInvalidYear, rawYear))
	}
	year := time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)

	m, err := lookup.ManufacturerByName(ctx, manufacturer)
	if errors.Is(err, ErrNotFound) {
		return CarRecord{}, &ImportError{
			Kind:  KindReference,
			Field: "manufacturer",
			Value: manufacturer,
			Err:   fmt.Errorf("%w: %s", ErrManufacturerNotFound, manufacturer),
		}
	}
	if err != nil {
		return CarRecord{}, &ImportError{Kind: KindStorage, Err: fmt.Errorf("look up manufacturer %q: %w", manufacturer, err)}
	}

	now := nowOrDefault(t.Now)
	return CarRecord{
		ManufacturerID: m.ID,
		Model:          model,
		Year:           year,
		Colour:         colour,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// lookupCache memoizes successful manufacturer lookups for one run.
// Misses are not cached since they fail the run.
type lookupCache struct {
	next   ManufacturerLookup
	byName map[string]Manufacturer
}

func newLookupCache(next ManufacturerLookup) *lookupCache {
	return &lookupCache{next: next, byName: make(map[string]Manufacturer)}
}

func (c *lookupCache) ManufacturerByName(ctx context.Context, name string) (Manufacturer, error) {
	if m, ok := c.byName[name]; ok {
		return m, nil
	}
	m, err := c.next.ManufacturerByName(ctx, name)
	if err != nil {
		return Manufacturer{}, err
	}
	c.byName[name] = m
	return m, nil
}
