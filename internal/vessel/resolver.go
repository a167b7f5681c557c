package vessel

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/asli-tracking/backend/internal/models"
)

// Aggregate collects everything known about one active vessel from the
// shipment records that reference it.
type Aggregate struct {
	VesselName    string
	Bookings      map[string]struct{}
	Containers    map[string]struct{}
	Destinations  map[string]struct{}
	ETDCandidates []string
	ETACandidates []string
}

// ETD returns the displayed ETD: the earliest candidate. Candidates are ISO
// date strings so the lexicographic minimum is the chronological minimum.
func (a *Aggregate) ETD() string {
	return earliest(a.ETDCandidates)
}

// ETA returns the displayed ETA: the soonest candidate.
func (a *Aggregate) ETA() string {
	return earliest(a.ETACandidates)
}

// Destination joins all distinct destination ports for display.
func (a *Aggregate) Destination() string {
	return strings.Join(sortedKeys(a.Destinations), " / ")
}

// BookingList returns the bookings as a sorted slice.
func (a *Aggregate) BookingList() []string {
	return sortedKeys(a.Bookings)
}

// ContainerList returns the container codes as a sorted slice.
func (a *Aggregate) ContainerList() []string {
	return sortedKeys(a.Containers)
}

// IsActive reports whether a shipment still counts toward vessel tracking:
// not soft-deleted, not cancelled, and either without an ETA or with an ETA
// in the future. An unparseable ETA counts as "no ETA" and keeps the
// shipment active.
func IsActive(s *models.Shipment, now time.Time) bool {
	if s.DeletedAt != "" {
		return false
	}
	if strings.EqualFold(strings.TrimSpace(s.Status), models.ShipmentStatusCancelled) {
		return false
	}
	if s.ETA == "" {
		return true
	}
	eta, ok := parseTimestamp(s.ETA)
	if !ok {
		return true
	}
	return eta.After(now)
}

// Resolve groups all active shipments by canonical vessel name and returns
// one aggregate per vessel. Shipments whose normalized name is empty are
// discarded. Pure aggregation, no side effects.
func Resolve(shipments []models.Shipment, now time.Time) map[string]*Aggregate {
	byVessel := make(map[string]*Aggregate)

	for i := range shipments {
		s := &shipments[i]
		if !IsActive(s, now) {
			continue
		}

		name := Normalize(s.RawVessel)
		if name == "" {
			continue
		}

		agg := byVessel[name]
		if agg == nil {
			agg = &Aggregate{
				VesselName:   name,
				Bookings:     make(map[string]struct{}),
				Containers:   make(map[string]struct{}),
				Destinations: make(map[string]struct{}),
			}
			byVessel[name] = agg
		}

		if s.ETD != "" {
			agg.ETDCandidates = append(agg.ETDCandidates, s.ETD)
		}
		if s.ETA != "" {
			agg.ETACandidates = append(agg.ETACandidates, s.ETA)
		}
		if dest := strings.TrimSpace(s.POD); dest != "" {
			agg.Destinations[dest] = struct{}{}
		}
		if booking := strings.TrimSpace(s.Booking); booking != "" && booking != "-" {
			agg.Bookings[booking] = struct{}{}
		}
		for _, cont := range ParseContainers(s.Containers) {
			agg.Containers[cont] = struct{}{}
		}
	}

	return byVessel
}

// ActiveVesselNames returns the sorted canonical names of the resolved set.
func ActiveVesselNames(byVessel map[string]*Aggregate) []string {
	names := make([]string, 0, len(byVessel))
	for name := range byVessel {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseContainers flattens the free-form container field into distinct
// container codes. The field may be a JSON array of codes, a whitespace
// delimited list, or a single token. Empty and placeholder ("-") tokens
// are dropped.
func ParseContainers(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var tokens []string

	var arr []any
	if err := json.Unmarshal([]byte(raw), &arr); err == nil {
		for _, item := range arr {
			s, ok := item.(string)
			if !ok {
				continue
			}
			tokens = append(tokens, strings.Fields(s)...)
		}
	} else {
		tokens = strings.Fields(raw)
	}

	var out []string
	seen := make(map[string]struct{})
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" || tok == "-" {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

func earliest(candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	min := candidates[0]
	for _, c := range candidates[1:] {
		if c < min {
			min = c
		}
	}
	return min
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return []string{}
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
