package models

// VesselPosition is the cache row holding the best-known current position
// for one vessel, keyed by the normalized vessel name (unique).
//
// LastAPICallAt is the throttle clock: it moves only when the AIS provider
// is actually invoked, never on cache-only updates. It is always written as
// RFC3339 UTC by this code.
//
// LastPositionAt may be a raw provider string when the provider sent a
// timestamp we could not parse; consumers must tolerate that.
type VesselPosition struct {
	VesselName     string   `json:"vesselName"`
	IMO            string   `json:"imo,omitempty"`
	MMSI           string   `json:"mmsi,omitempty"`
	LastLat        *float64 `json:"lastLat"`
	LastLon        *float64 `json:"lastLon"`
	LastPositionAt string   `json:"lastPositionAt,omitempty"`
	LastAPICallAt  string   `json:"lastApiCallAt,omitempty"`

	// AIS-derived attributes carried opaquely from the provider payload.
	Speed              string `json:"speed,omitempty"`
	Course             string `json:"course,omitempty"`
	Destination        string `json:"destination,omitempty"`
	NavigationalStatus string `json:"navigationalStatus,omitempty"`
	ShipType           string `json:"shipType,omitempty"`
	Country            string `json:"country,omitempty"`
	ETAUTC             string `json:"etaUtc,omitempty"`
	ATDUTC             string `json:"atdUtc,omitempty"`
	LastPort           string `json:"lastPort,omitempty"`
	CurrentDraught     string `json:"currentDraught,omitempty"`
	Callsign           string `json:"callsign,omitempty"`
}

// HasIdentifier reports whether the vessel can be queried against the AIS
// provider at all. Lookups by bare name are never attempted.
func (p *VesselPosition) HasIdentifier() bool {
	return p.IMO != "" || p.MMSI != ""
}

// PositionHistoryEntry is one observed position in the append-only history
// log. Entries are never updated or deleted; every successful provider call
// appends exactly one.
type PositionHistoryEntry struct {
	VesselName string  `json:"vesselName"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	PositionAt string  `json:"positionAt"`
	Source     string  `json:"source"`
}

// TrackPoint is one point of a vessel's reconstructed track.
type TrackPoint struct {
	Lat        float64 `json:"lat" msgpack:"lat"`
	Lon        float64 `json:"lon" msgpack:"lon"`
	PositionAt string  `json:"positionAt" msgpack:"positionAt"`
}

// ActiveVessel is the read model served to the map view. It is computed at
// read time from the resolver aggregates, the position cache and the
// history log; it is never persisted.
type ActiveVessel struct {
	VesselName     string       `json:"vesselName" msgpack:"vesselName"`
	LastLat        *float64     `json:"lastLat" msgpack:"lastLat"`
	LastLon        *float64     `json:"lastLon" msgpack:"lastLon"`
	LastPositionAt string       `json:"lastPositionAt,omitempty" msgpack:"lastPositionAt"`
	LastAPICallAt  string       `json:"lastApiCallAt,omitempty" msgpack:"lastApiCallAt"`
	ETD            string       `json:"etd,omitempty" msgpack:"etd"`
	ETA            string       `json:"eta,omitempty" msgpack:"eta"`
	Destination    string       `json:"destination,omitempty" msgpack:"destination"`
	Bookings       []string     `json:"bookings" msgpack:"bookings"`
	Containers     []string     `json:"containers" msgpack:"containers"`
	Track          []TrackPoint `json:"track" msgpack:"track"`
}
