// Package geoid decomposes Census block GEOIDs into their state, county,
// tract and block components.
//
// Reference: https://www.census.gov/programs-surveys/geography/guidance/geo-identifiers.html
package geoid

import (
	"sort"

	"github.com/rotisserie/eris"
)

// Length is the number of characters in a 2010 block GEOID.
const Length = 15

// Field offsets within a block GEOID.
const (
	stateEnd  = 2
	countyEnd = 5
	tractEnd  = 11
)

// ErrMalformed is returned by Validate for identifiers that are not
// 15 ASCII digits.
var ErrMalformed = eris.New("malformed block GEOID")

// GEOID is a block identifier split into its fixed-width fields.
type GEOID struct {
	State  string
	County string
	Tract  string
	Block  string
}

// Field is a single named component of a GEOID.
type Field struct {
	Name  string
	Value string
}

// Parse slices s positionally into state[0:2], county[2:5], tract[5:11]
// and block[11:]. No validation is done: short input yields empty trailing
// fields instead of failing.
func Parse(s string) GEOID {
	return GEOID{
		State:  slice(s, 0, stateEnd),
		County: slice(s, stateEnd, countyEnd),
		Tract:  slice(s, countyEnd, tractEnd),
		Block:  slice(s, tractEnd, len(s)),
	}
}

func slice(s string, start, end int) string {
	if start >= len(s) {
		return ""
	}
	if end > len(s) {
		end = len(s)
	}
	return s[start:end]
}

// Fields returns the components in order: state, county, tract, block.
func (g GEOID) Fields() []Field {
	return []Field{
		{Name: "state", Value: g.State},
		{Name: "county", Value: g.County},
		{Name: "tract", Value: g.Tract},
		{Name: "block", Value: g.Block},
	}
}

// CountyKey returns the 5-character state+county code.
func (g GEOID) CountyKey() string {
	return g.State + g.County
}

// String reassembles the identifier.
func (g GEOID) String() string {
	return g.State + g.County + g.Tract + g.Block
}

// Validate reports whether s is a well-formed 15-digit block GEOID.
func Validate(s string) error {
	if len(s) != Length {
		return eris.Wrapf(ErrMalformed, "%q has length %d, want %d", s, len(s), Length)
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return eris.Wrapf(ErrMalformed, "%q has non-digit at position %d", s, i)
		}
	}
	return nil
}

// ValidateAll validates every identifier and returns the first failure.
func ValidateAll(ids []string) error {
	for _, id := range ids {
		if err := Validate(id); err != nil {
			return err
		}
	}
	return nil
}

// Counties returns the distinct county keys implied by ids, sorted.
func Counties(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		key := Parse(id).CountyKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// Dedupe returns ids with duplicates removed, preserving first occurrence order.
func Dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
