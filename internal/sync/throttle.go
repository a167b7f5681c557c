// Package sync holds the batch orchestrators that keep the position cache
// consistent: create-missing, backfill-from-history and the throttled
// refresh against the AIS provider.
package sync

import (
	"time"

	"github.com/asli-tracking/backend/internal/vessel"
)

// ShouldCallAPI reports whether a vessel's throttle window has elapsed:
// true when the clock has never been set, cannot be parsed, or the window
// has fully passed. The refresh path screens with it before spending any
// pacing delay; the atomic claim on the clock stays authoritative.
func ShouldCallAPI(lastAPICallAt string, now time.Time, window time.Duration) bool {
	if lastAPICallAt == "" {
		return true
	}
	last, ok := vessel.ParseTimestamp(lastAPICallAt)
	if !ok {
		return true
	}
	return now.Sub(last) >= window
}
