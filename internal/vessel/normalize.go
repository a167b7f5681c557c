// Package vessel contains the pure domain logic of the tracking core:
// vessel name normalization, active-shipment aggregation and track
// reconciliation. Nothing in this package performs I/O.
package vessel

import (
	"regexp"
	"strings"
)

// voyageSuffix matches a raw vessel field carrying a voyage code in square
// brackets, e.g. "MSC CARMELA [001E]".
var voyageSuffix = regexp.MustCompile(`^(.+?)\s*\[.+\]$`)

// Normalize extracts the canonical vessel name from a raw shipment field.
// A trailing "[voyage]" suffix is stripped, surrounding whitespace removed.
// Returns the empty string when no name is present. Idempotent:
// Normalize(Normalize(x)) == Normalize(x).
//
// The canonical name is the only join key between shipments, the position
// cache and the history log, so every component must normalize through this
// one function.
func Normalize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	if m := voyageSuffix.FindStringSubmatch(trimmed); m != nil {
		return strings.TrimSpace(m[1])
	}

	return trimmed
}
