// handlers_shipments.go - Shipment snapshot ingestion handlers
package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/asli-tracking/backend/internal/models"
	"github.com/asli-tracking/backend/internal/store"
)

// ShipmentHandlerImpl implements the ShipmentHandler interface
type ShipmentHandlerImpl struct {
	store store.Store
}

// NewShipmentHandler creates a new shipment handler instance
func NewShipmentHandler(st store.Store) *ShipmentHandlerImpl {
	return &ShipmentHandlerImpl{store: st}
}

// HandleUpsertShipments bulk-upserts the shipment snapshot. Rows without an
// id get one assigned so repeated syncs from the operations system can
// replace rows in place.
func (h *ShipmentHandlerImpl) HandleUpsertShipments(c echo.Context) error {
	var req struct {
		Shipments []models.Shipment `json:"shipments"`
	}
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if len(req.Shipments) == 0 {
		return NewValidationError("shipments")
	}

	for i := range req.Shipments {
		if req.Shipments[i].ID == "" {
			req.Shipments[i].ID = uuid.New().String()
		}
	}

	count, err := h.store.UpsertShipments(c.Request().Context(), req.Shipments)
	if err != nil {
		return NewInternalError("failed to upsert shipments", err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"upserted": count,
	})
}

// HandleListShipments returns the current shipment snapshot.
func (h *ShipmentHandlerImpl) HandleListShipments(c echo.Context) error {
	shipments, err := h.store.ListShipments(c.Request().Context())
	if err != nil {
		return NewInternalError("failed to list shipments", err)
	}
	if shipments == nil {
		shipments = []models.Shipment{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"shipments": shipments,
	})
}
