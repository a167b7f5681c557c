// handlers_vessels.go - Vessel tracking operation handlers
package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/asli-tracking/backend/internal/ais"
	"github.com/asli-tracking/backend/internal/models"
	"github.com/asli-tracking/backend/internal/store"
	"github.com/asli-tracking/backend/internal/sync"
	"github.com/asli-tracking/backend/internal/vessel"
)

// VesselHandlerImpl implements the VesselHandler interface
type VesselHandlerImpl struct {
	store        store.Store
	syncer       Syncer
	cronToken    string
	historyLimit int
	now          func() time.Time
}

// NewVesselHandler creates a new vessel handler instance
func NewVesselHandler(st store.Store, syncer Syncer, cronToken string, historyLimit int) *VesselHandlerImpl {
	if historyLimit <= 0 {
		historyLimit = 1000
	}
	return &VesselHandlerImpl{
		store:        st,
		syncer:       syncer,
		cronToken:    cronToken,
		historyLimit: historyLimit,
		now:          time.Now,
	}
}

// buildActiveVessels computes the read model: resolver aggregates joined
// (by canonical name) with the position cache and the reconciled track.
func (h *VesselHandlerImpl) buildActiveVessels(c echo.Context) ([]models.ActiveVessel, error) {
	ctx := c.Request().Context()

	shipments, err := h.store.ListShipments(ctx)
	if err != nil {
		return nil, NewInternalError("failed to load shipments", err)
	}

	byVessel := vessel.Resolve(shipments, h.now())
	names := vessel.ActiveVesselNames(byVessel)
	if len(names) == 0 {
		return []models.ActiveVessel{}, nil
	}

	positions, err := h.store.GetPositions(ctx, names)
	if err != nil {
		return nil, NewInternalError("failed to load vessel positions", err)
	}

	tracks, err := h.store.HistoryForVessels(ctx, names, h.historyLimit)
	if err != nil {
		return nil, NewInternalError("failed to load position history", err)
	}

	result := make([]models.ActiveVessel, 0, len(names))
	for _, name := range names {
		agg := byVessel[name]
		pos := positions[name]

		view := models.ActiveVessel{
			VesselName:  name,
			ETD:         agg.ETD(),
			ETA:         agg.ETA(),
			Destination: agg.Destination(),
			Bookings:    agg.BookingList(),
			Containers:  agg.ContainerList(),
			Track:       vessel.BuildTrack(tracks[name], pos),
		}
		if pos != nil {
			view.LastLat = pos.LastLat
			view.LastLon = pos.LastLon
			view.LastPositionAt = pos.LastPositionAt
			view.LastAPICallAt = pos.LastAPICallAt
		}
		result = append(result, view)
	}
	return result, nil
}

// HandleActiveVessels returns the active vessel read model for the map view.
func (h *VesselHandlerImpl) HandleActiveVessels(c echo.Context) error {
	vessels, err := h.buildActiveVessels(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"vessels": vessels,
	})
}

// HandleActiveVesselsMsgpack returns the same payload MessagePack-encoded
// for the map client's bulk refresh path.
func (h *VesselHandlerImpl) HandleActiveVesselsMsgpack(c echo.Context) error {
	vessels, err := h.buildActiveVessels(c)
	if err != nil {
		return err
	}
	data, err := msgpack.Marshal(map[string]interface{}{
		"vessels": vessels,
	})
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// HandleSyncMissingVessels creates cache stubs for active vessels that have
// no position row yet.
func (h *VesselHandlerImpl) HandleSyncMissingVessels(c echo.Context) error {
	report, err := h.syncer.SyncMissingVessels(c.Request().Context())
	if err != nil {
		return NewInternalError("failed to sync missing vessels", err)
	}
	return c.JSON(http.StatusOK, report)
}

// HandleSyncFromHistory promotes newer history entries into the cache.
func (h *VesselHandlerImpl) HandleSyncFromHistory(c echo.Context) error {
	report, err := h.syncer.SyncFromHistory(c.Request().Context())
	if err != nil {
		return NewInternalError("failed to sync from history", err)
	}
	return c.JSON(http.StatusOK, report)
}

// HandleUpdatePositions runs the throttled refresh batch.
func (h *VesselHandlerImpl) HandleUpdatePositions(c echo.Context) error {
	report, err := h.syncer.UpdatePositions(c.Request().Context(), sync.UpdateOptions{})
	if err != nil {
		return NewInternalError("failed to update positions", err)
	}
	return c.JSON(http.StatusOK, report)
}

// HandleUpdatePositionsTest runs the refresh without the throttle check.
// Every lookup consumes provider credits; for manual verification only.
func (h *VesselHandlerImpl) HandleUpdatePositionsTest(c echo.Context) error {
	var req struct {
		VesselNames []string `json:"vesselNames"`
	}
	// Body is optional; without it all active vessels are refreshed.
	_ = c.Bind(&req)

	report, err := h.syncer.UpdatePositions(c.Request().Context(), sync.UpdateOptions{
		BypassThrottle: true,
		VesselNames:    req.VesselNames,
	})
	if err != nil {
		return NewInternalError("failed to update positions", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"warning": "this endpoint bypasses the throttle and consumes AIS credits on every call",
		"report":  report,
	})
}

// HandleUpdatePositionsCron is the scheduler-facing refresh trigger. When a
// cron token is configured the caller must present it as a Bearer token.
func (h *VesselHandlerImpl) HandleUpdatePositionsCron(c echo.Context) error {
	if h.cronToken != "" {
		auth := c.Request().Header.Get("Authorization")
		if auth != "Bearer "+h.cronToken {
			return NewUnauthorizedError("invalid or missing cron token")
		}
	}

	report, err := h.syncer.UpdatePositions(c.Request().Context(), sync.UpdateOptions{})
	if err != nil {
		return NewInternalError("failed to update positions", err)
	}
	return c.JSON(http.StatusOK, report)
}

// HandleCheckBalance reports the estimated credit cost of the next refresh
// run without mutating any state.
func (h *VesselHandlerImpl) HandleCheckBalance(c echo.Context) error {
	report, err := h.syncer.EstimateCost(c.Request().Context())
	if err != nil {
		return NewInternalError("failed to estimate refresh cost", err)
	}
	return c.JSON(http.StatusOK, report)
}

// HandleSetIdentifiers assigns the IMO/MMSI pair used to query the AIS
// provider for one vessel.
func (h *VesselHandlerImpl) HandleSetIdentifiers(c echo.Context) error {
	var req struct {
		VesselName string `json:"vesselName"`
		IMO        string `json:"imo"`
		MMSI       string `json:"mmsi"`
	}
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	name := vessel.Normalize(req.VesselName)
	if name == "" {
		return NewValidationError("vesselName")
	}
	if strings.TrimSpace(req.IMO) == "" && strings.TrimSpace(req.MMSI) == "" {
		return NewBadRequestError("at least one of imo or mmsi is required", nil)
	}

	if err := h.store.SetIdentifiers(c.Request().Context(), name,
		strings.TrimSpace(req.IMO), strings.TrimSpace(req.MMSI)); err != nil {
		return NewInternalError("failed to set vessel identifiers", err)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"vesselName": name,
		"imo":        strings.TrimSpace(req.IMO),
		"mmsi":       strings.TrimSpace(req.MMSI),
	})
}

// HandleUpdateManual ingests a raw provider payload for one vessel, parsed
// with the same rules as a live lookup: cache upsert plus one history
// append. The throttle clock moves because a payload this fresh came from a
// provider query, even if an operator pasted it.
func (h *VesselHandlerImpl) HandleUpdateManual(c echo.Context) error {
	var req struct {
		VesselName string          `json:"vesselName"`
		Data       json.RawMessage `json:"data"`
	}
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	name := vessel.Normalize(req.VesselName)
	if name == "" {
		return NewValidationError("vesselName")
	}
	if len(req.Data) == 0 {
		return NewValidationError("data")
	}

	pos := ais.ParsePayload(req.Data)
	if pos == nil {
		return NewBadRequestError("payload has no usable coordinates", nil)
	}

	now := h.now().UTC().Format(time.RFC3339)
	cache := &models.VesselPosition{
		VesselName:         name,
		IMO:                pos.IMO,
		MMSI:               pos.MMSI,
		LastLat:            &pos.Lat,
		LastLon:            &pos.Lon,
		LastPositionAt:     pos.PositionAt,
		LastAPICallAt:      now,
		Speed:              pos.Speed,
		Course:             pos.Course,
		Destination:        pos.Destination,
		NavigationalStatus: pos.NavigationalStatus,
		ShipType:           pos.ShipType,
		Country:            pos.Country,
		ETAUTC:             pos.ETAUTC,
		ATDUTC:             pos.ATDUTC,
		LastPort:           pos.LastPort,
		CurrentDraught:     pos.CurrentDraught,
		Callsign:           pos.Callsign,
	}
	entry := models.PositionHistoryEntry{
		VesselName: name,
		Lat:        pos.Lat,
		Lon:        pos.Lon,
		PositionAt: pos.PositionAt,
		Source:     "AIS",
	}

	if err := h.store.RecordObservation(c.Request().Context(), cache, entry); err != nil {
		return NewInternalError("failed to record position", err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"vesselName": name,
		"lat":        pos.Lat,
		"lon":        pos.Lon,
		"positionAt": pos.PositionAt,
	})
}
