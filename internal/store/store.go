// Package store persists the shipment snapshot, the vessel position cache
// and the append-only position history in DuckDB.
package store

import (
	"context"

	"github.com/asli-tracking/backend/internal/models"
)

// Store defines the persistence interface for the tracking core.
// This allows mocking in tests.
type Store interface {
	// Shipments (ingested snapshot of the operations system).
	UpsertShipments(ctx context.Context, shipments []models.Shipment) (int, error)
	ListShipments(ctx context.Context) ([]models.Shipment, error)

	// Position cache, one row per canonical vessel name.
	GetPositions(ctx context.Context, names []string) (map[string]*models.VesselPosition, error)
	GetPosition(ctx context.Context, name string) (*models.VesselPosition, error)
	CreateMissing(ctx context.Context, name string) (bool, error)
	SetIdentifiers(ctx context.Context, name, imo, mmsi string) error

	// Throttle clock. ClaimAPICall atomically advances last_api_call_at when
	// the window has elapsed (or the clock is empty/unparseable) and reports
	// whether this caller won the claim. RestoreAPICall puts the previous
	// value back after a failed provider call.
	ClaimAPICall(ctx context.Context, name, now, cutoff string) (bool, error)
	RestoreAPICall(ctx context.Context, name, previous string) error

	// RecordObservation upserts the cache row (including the throttle clock
	// when callAt is non-empty) and appends one history entry, atomically.
	RecordObservation(ctx context.Context, pos *models.VesselPosition, entry models.PositionHistoryEntry) error

	// PromoteHistory overwrites the cache row's position fields from a
	// history entry. The throttle clock is left untouched.
	PromoteHistory(ctx context.Context, entry models.PositionHistoryEntry) error

	// History reads. limit caps the points returned per vessel; the newest
	// points win.
	HistoryForVessels(ctx context.Context, names []string, limit int) (map[string][]models.TrackPoint, error)
	LatestHistory(ctx context.Context) (map[string]models.PositionHistoryEntry, error)

	Close() error
}
