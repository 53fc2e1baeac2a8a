// Package menu turns menu catalogs and forecast headcounts into per-dish demand.
package menu

import "strings"

const withSeparator = " with "

// Decompose splits a composite dish string into trimmed atomic dish names.
//
// The string is split on " with " when present, otherwise on commas, otherwise it is
// a single dish. Tokens are never re-split: "Rice with Dal, Salad" yields
// ["Rice", "Dal, Salad"], and that token is what demand is aggregated under.
func Decompose(composite string) []string {
	var parts []string
	switch {
	case strings.Contains(composite, withSeparator):
		parts = strings.Split(composite, withSeparator)
	case strings.Contains(composite, ","):
		parts = strings.Split(composite, ",")
	default:
		parts = []string{composite}
	}

	var dishes []string
	for _, p := range parts {
		if dish := strings.TrimSpace(p); dish != "" {
			dishes = append(dishes, dish)
		}
	}
	return dishes
}
