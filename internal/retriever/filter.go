package retriever

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// UnitFilter detects a unit reference in free-form query text ("week 7") and
// maps it to the literal header convention used by the course material
// ("Week 7:"). It is a content-specific heuristic layered in front of the
// ranking, not part of it.
type UnitFilter struct {
	label   string
	pattern *regexp.Regexp
}

// NewUnitFilter creates a filter for the given header label, e.g. "Week".
func NewUnitFilter(label string) *UnitFilter {
	return &UnitFilter{
		label:   label,
		pattern: regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(label) + `\s*(\d{1,2})\b`),
	}
}

// Marker returns the literal passage marker for the unit referenced in the
// query, or false when the query names no unit.
func (f *UnitFilter) Marker(query string) (string, bool) {
	m := f.pattern.FindStringSubmatch(query)
	if m == nil {
		return "", false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%s %d:", f.label, n), true
}

// Contains reports whether the passage text carries the marker.
func (f *UnitFilter) Contains(text, marker string) bool {
	return strings.Contains(text, marker)
}
