package horizon

import (
	"fmt"
	"strings"
)

// #region bucket
// Bucket names one time horizon. Plan items and cached insights are grouped by it.
type Bucket string

const (
	Day       Bucket = "day"
	Week      Bucket = "week"
	Month     Bucket = "month"
	Year      Bucket = "year"
	FiveYears Bucket = "five_years"
	Lifetime  Bucket = "lifetime"
)

var ordered = []Bucket{Day, Week, Month, Year, FiveYears, Lifetime}
// #endregion bucket

// #region meta
type meta struct {
	label string
	focus string
}

var bucketMeta = map[Bucket]meta{
	Day:       {"Today", "mindfulness and the small beauty of the present moment"},
	Week:      {"This week", "rhythm, cadence and steady progress"},
	Month:     {"This month", "phases of growth and meaningful shifts"},
	Year:      {"This year", "transformation and the trajectory of a life"},
	FiveYears: {"Five years", "transformation, long arcs and the big picture"},
	Lifetime:  {"Lifetime", "legacy, essential meaning and the mark left on the world"},
}
// #endregion meta

// #region accessors
// All returns every bucket from the shortest horizon to the longest.
func All() []Bucket {
	out := make([]Bucket, len(ordered))
	copy(out, ordered)
	return out
}

// Valid reports whether b is one of the known buckets.
func (b Bucket) Valid() bool {
	_, ok := bucketMeta[b]
	return ok
}

// Label is the human-facing name of the bucket.
func (b Bucket) Label() string {
	if m, ok := bucketMeta[b]; ok {
		return m.label
	}
	return string(b)
}

// Focus is the theme the reflective prompt emphasizes for this horizon.
func (b Bucket) Focus() string {
	return bucketMeta[b].focus
}

func (b Bucket) String() string {
	return string(b)
}
// #endregion accessors

// #region parse
var aliases = map[string]Bucket{
	"today":      Day,
	"5y":         FiveYears,
	"five-years": FiveYears,
	"fiveyears":  FiveYears,
	"life":       Lifetime,
}

// Parse resolves a bucket identifier, case-insensitively, including a few aliases.
func Parse(s string) (Bucket, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if b := Bucket(key); b.Valid() {
		return b, nil
	}
	if b, ok := aliases[key]; ok {
		return b, nil
	}
	return "", fmt.Errorf("unknown bucket %q", s)
}
// #endregion parse
