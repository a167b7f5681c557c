// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"github.com/labstack/echo/v4"

	"github.com/asli-tracking/backend/internal/store"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store        store.Store
	Syncer       Syncer
	CronToken    string
	HistoryLimit int
	Version      string
}

// Handlers holds all handler instances
type Handlers struct {
	Health   HealthHandler
	Vessel   VesselHandler
	Shipment ShipmentHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:   NewHealthHandler(deps.Version),
		Vessel:   NewVesselHandler(deps.Store, deps.Syncer, deps.CronToken, deps.HistoryLimit),
		Shipment: NewShipmentHandler(deps.Store),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	// Health check
	e.GET("/health", handlers.Health.HandleHealth)

	// Vessel tracking routes
	vesselGroup := e.Group("/api/vessels")
	vesselGroup.GET("/active", handlers.Vessel.HandleActiveVessels)
	vesselGroup.GET("/active/msgpack", handlers.Vessel.HandleActiveVesselsMsgpack)
	vesselGroup.POST("/sync-missing-vessels", handlers.Vessel.HandleSyncMissingVessels)
	vesselGroup.POST("/sync-from-history", handlers.Vessel.HandleSyncFromHistory)
	vesselGroup.POST("/update-positions", handlers.Vessel.HandleUpdatePositions)
	vesselGroup.POST("/update-positions-test", handlers.Vessel.HandleUpdatePositionsTest)
	vesselGroup.GET("/update-positions-cron", handlers.Vessel.HandleUpdatePositionsCron)
	vesselGroup.GET("/check-balance", handlers.Vessel.HandleCheckBalance)
	vesselGroup.POST("/set-imo", handlers.Vessel.HandleSetIdentifiers)
	vesselGroup.POST("/update-manual", handlers.Vessel.HandleUpdateManual)

	// Shipment snapshot routes
	shipmentGroup := e.Group("/api/shipments")
	shipmentGroup.POST("", handlers.Shipment.HandleUpsertShipments)
	shipmentGroup.GET("", handlers.Shipment.HandleListShipments)
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo) {
	// Use custom error handler
	e.HTTPErrorHandler = ErrorHandler
}
