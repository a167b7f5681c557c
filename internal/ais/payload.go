package ais

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/asli-tracking/backend/internal/vessel"
)

// rawPayload mirrors the provider's response body. All scalar fields arrive
// as strings ("latitude": "53.47305"); the whole object may be nested under
// a "detail" wrapper or sit at the top level. Unknown fields are ignored so
// upstream schema drift cannot break parsing.
type rawPayload struct {
	Detail *rawDetail `json:"detail"`
	rawDetail
}

type rawDetail struct {
	Name               string `json:"name"`
	IMO                string `json:"imo"`
	MMSI               string `json:"mmsi"`
	Latitude           string `json:"latitude"`
	Longitude          string `json:"longitude"`
	PositionReceived   string `json:"positionReceived"`
	UpdateTime         string `json:"updateTime"`
	Speed              string `json:"speed"`
	Course             string `json:"course"`
	Destination        string `json:"destination"`
	NavigationalStatus string `json:"navigationalStatus"`
	ShipType           string `json:"shipType"`
	Country            string `json:"country"`
	ETAUTC             string `json:"etaUtc"`
	ATDUTC             string `json:"atdUtc"`
	LastPort           string `json:"lastPort"`
	CurrentDraught     string `json:"currentDraught"`
	Callsign           string `json:"callsign"`
}

// Position is a successfully parsed provider lookup: finite coordinates, a
// position timestamp (ISO when parseable, otherwise the provider's raw
// string), and the opaque vessel attributes worth caching.
type Position struct {
	Lat        float64
	Lon        float64
	PositionAt string

	Name               string
	IMO                string
	MMSI               string
	Speed              string
	Course             string
	Destination        string
	NavigationalStatus string
	ShipType           string
	Country            string
	ETAUTC             string
	ATDUTC             string
	LastPort           string
	CurrentDraught     string
	Callsign           string
}

// ParsePayload extracts a Position from a provider response body. Returns
// nil when the body is not JSON, or when latitude/longitude are missing or
// not finite numbers; such responses are non-results, not errors.
func ParsePayload(body []byte) *Position {
	var raw rawPayload
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil
	}

	detail := raw.rawDetail
	if raw.Detail != nil {
		detail = *raw.Detail
	}

	lat, latOK := parseCoordinate(detail.Latitude)
	lon, lonOK := parseCoordinate(detail.Longitude)
	if !latOK || !lonOK {
		return nil
	}

	return &Position{
		Lat:                lat,
		Lon:                lon,
		PositionAt:         normalizeTimestamp(detail.PositionReceived, detail.UpdateTime),
		Name:               strings.TrimSpace(detail.Name),
		IMO:                strings.TrimSpace(detail.IMO),
		MMSI:               strings.TrimSpace(detail.MMSI),
		Speed:              detail.Speed,
		Course:             detail.Course,
		Destination:        detail.Destination,
		NavigationalStatus: detail.NavigationalStatus,
		ShipType:           detail.ShipType,
		Country:            detail.Country,
		ETAUTC:             detail.ETAUTC,
		ATDUTC:             detail.ATDUTC,
		LastPort:           detail.LastPort,
		CurrentDraught:     detail.CurrentDraught,
		Callsign:           detail.Callsign,
	}
}

func parseCoordinate(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// normalizeTimestamp picks positionReceived over updateTime, converts it to
// RFC3339 UTC when it parses, and passes the raw string through unchanged
// when it does not. An empty result falls back to the current time so the
// cache never holds a position without a timestamp.
func normalizeTimestamp(positionReceived, updateTime string) string {
	raw := strings.TrimSpace(positionReceived)
	if raw == "" {
		raw = strings.TrimSpace(updateTime)
	}
	if raw == "" {
		return time.Now().UTC().Format(time.RFC3339)
	}
	if t, ok := vessel.ParseTimestamp(raw); ok {
		return t.UTC().Format(time.RFC3339)
	}
	return raw
}
