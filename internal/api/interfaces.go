// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/asli-tracking/backend/internal/models"
	"github.com/asli-tracking/backend/internal/sync"
)

// VesselHandler handles vessel tracking operations
type VesselHandler interface {
	HandleActiveVessels(c echo.Context) error
	HandleActiveVesselsMsgpack(c echo.Context) error
	HandleSyncMissingVessels(c echo.Context) error
	HandleSyncFromHistory(c echo.Context) error
	HandleUpdatePositions(c echo.Context) error
	HandleUpdatePositionsTest(c echo.Context) error
	HandleUpdatePositionsCron(c echo.Context) error
	HandleCheckBalance(c echo.Context) error
	HandleSetIdentifiers(c echo.Context) error
	HandleUpdateManual(c echo.Context) error
}

// ShipmentHandler handles shipment snapshot ingestion
type ShipmentHandler interface {
	HandleUpsertShipments(c echo.Context) error
	HandleListShipments(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// Syncer defines the orchestrator surface the vessel handlers depend on.
// This allows mocking in tests.
type Syncer interface {
	SyncMissingVessels(ctx context.Context) (*models.SyncMissingReport, error)
	SyncFromHistory(ctx context.Context) (*models.SyncHistoryReport, error)
	UpdatePositions(ctx context.Context, opts sync.UpdateOptions) (*models.UpdateReport, error)
	EstimateCost(ctx context.Context) (*models.BalanceReport, error)
}
