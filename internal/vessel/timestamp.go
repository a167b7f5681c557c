package vessel

import "time"

// timestampLayouts covers the formats this system encounters: RFC3339 from
// our own writes and the upstream CRUD system, the AIS provider's
// human-readable form ("Nov 16, 2025 03:20 UTC"), and bare dates.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"Jan 2, 2006 15:04 MST",
	"Jan 02, 2006 15:04 MST",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTimestamp attempts to parse a timestamp string in any known layout.
func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseTimestamp is the exported form used by the gateway and orchestrators.
func ParseTimestamp(s string) (time.Time, bool) {
	return parseTimestamp(s)
}
