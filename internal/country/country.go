// Package country normalizes free-text country names to a closed list of
// canonical names.
//
// Matching runs in three stages over the list in declared order, first match
// wins:
//
//  1. exact, case-insensitive
//  2. substring match of the adjective-stripped term ("German" -> "germa")
//  3. substring match of the raw term ("Nited States" -> "United States")
//
// Stripped forms are tried before the raw term because raw adjectives
// ("Korean") substring-match unrelated names more often than their stems do.
// Both substring stages require at least three runes.
package country

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// MinFuzzyLength is the minimum rune length of a term used for substring matching.
const MinFuzzyLength = 3

// adjectiveSuffixes are stripped in sequence, each from the result of the
// previous one: "japanese" loses "ese" and then "n", ending as "japa".
var adjectiveSuffixes = []string{"ese", "ian", "ish", "n", "man"}

// Canonical is the ordered enumeration of accepted country names.
// Order matters: substring stages return the first entry that contains the term,
// so India precedes Indonesia and Austria precedes Australia.
var Canonical = []string{
	"United States",
	"Germany",
	"Japan",
	"South Korea",
	"Italy",
	"France",
	"United Kingdom",
	"Sweden",
	"China",
	"India",
	"Spain",
	"Czech Republic",
	"Netherlands",
	"Austria",
	"Australia",
	"Canada",
	"Mexico",
	"Brazil",
	"Argentina",
	"Russia",
	"Romania",
	"Poland",
	"Serbia",
	"Croatia",
	"Slovakia",
	"Belgium",
	"Switzerland",
	"Denmark",
	"Norway",
	"Finland",
	"Malaysia",
	"Indonesia",
	"Thailand",
	"Vietnam",
	"Taiwan",
	"Turkey",
	"Iran",
	"Egypt",
	"Morocco",
	"Algeria",
	"Nigeria",
	"South Africa",
	"New Zealand",
	"Ireland",
	"Portugal",
	"Hungary",
	"Ukraine",
	"Uzbekistan",
	"Philippines",
	"Pakistan",
}

// Matcher resolves terms against a fixed list of canonical names.
type Matcher struct {
	names  []string
	folded []string
	fold   cases.Caser
}

// NewMatcher builds a Matcher over names, preserving their order.
func NewMatcher(names []string) *Matcher {
	m := &Matcher{
		names:  append([]string(nil), names...),
		folded: make([]string, len(names)),
		fold:   cases.Fold(),
	}
	for i, n := range names {
		m.folded[i] = m.fold.String(n)
	}
	return m
}

var defaultMatcher = NewMatcher(Canonical)

// Normalize resolves term against Canonical.
// Returns the canonical name and true, or "" and false when nothing matches.
func Normalize(term string) (string, bool) {
	return defaultMatcher.Normalize(term)
}

// Normalize resolves term against the matcher's names.
func (m *Matcher) Normalize(term string) (string, bool) {
	search := m.fold.String(strings.TrimSpace(term))
	if search == "" {
		return "", false
	}

	for i, f := range m.folded {
		if f == search {
			return m.names[i], true
		}
	}

	if stem := stripSuffix(search); utf8.RuneCountInString(stem) >= MinFuzzyLength {
		if name, ok := m.containing(stem); ok {
			return name, true
		}
	}

	if utf8.RuneCountInString(search) >= MinFuzzyLength {
		if name, ok := m.containing(search); ok {
			return name, true
		}
	}

	return "", false
}

// Names returns a copy of the matcher's canonical names.
func (m *Matcher) Names() []string {
	return append([]string(nil), m.names...)
}

func (m *Matcher) containing(part string) (string, bool) {
	for i, f := range m.folded {
		if strings.Contains(f, part) {
			return m.names[i], true
		}
	}
	return "", false
}

// stripSuffix applies every adjective suffix in order.
func stripSuffix(term string) string {
	for _, suffix := range adjectiveSuffixes {
		term = strings.TrimSuffix(term, suffix)
	}
	return term
}
