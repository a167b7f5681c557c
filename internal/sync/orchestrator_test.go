package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asli-tracking/backend/internal/ais"
	"github.com/asli-tracking/backend/internal/models"
	"github.com/asli-tracking/backend/internal/testutil"
	"github.com/asli-tracking/backend/internal/vessel"
)

var fixedNow = time.Date(2025, 11, 20, 12, 0, 0, 0, time.UTC)

// stubGateway serves canned positions and records which vessels were looked up.
type stubGateway struct {
	positions  map[string]*ais.Position
	configured bool
	calls      []string
}

func (g *stubGateway) Configured() bool { return g.configured }

func (g *stubGateway) FetchPosition(_ context.Context, vesselName, _, _ string) *ais.Position {
	g.calls = append(g.calls, vesselName)
	return g.positions[vesselName]
}

func newTestOrchestrator(st *testutil.MockStore, gw Gateway) *Orchestrator {
	o := NewOrchestrator(st, gw, 24*time.Hour, 0, 5)
	o.now = func() time.Time { return fixedNow }
	return o
}

func seedShipments(t *testing.T, st *testutil.MockStore, shipments ...models.Shipment) {
	t.Helper()
	_, err := st.UpsertShipments(context.Background(), shipments)
	require.NoError(t, err)
}

func TestSyncMissingVesselsIdempotent(t *testing.T) {
	st := testutil.NewMockStore()
	seedShipments(t, st,
		models.Shipment{ID: "1", RawVessel: "MSC CARMELA [001E]"},
		models.Shipment{ID: "2", RawVessel: "MSC CARMELA [003W]"},
		models.Shipment{ID: "3", RawVessel: "HMM BLESSING"},
	)
	o := newTestOrchestrator(st, &stubGateway{configured: true})

	report, err := o.SyncMissingVessels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.TotalActive)
	assert.ElementsMatch(t, []string{"MSC CARMELA", "HMM BLESSING"}, report.Created)
	assert.Equal(t, 0, report.AlreadyExisted)

	// Second run over the same active set creates nothing.
	report, err = o.SyncMissingVessels(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Created)
	assert.Equal(t, 2, report.AlreadyExisted)
}

func TestSyncMissingVesselsIgnoresInactive(t *testing.T) {
	st := testutil.NewMockStore()
	seedShipments(t, st,
		models.Shipment{ID: "1", RawVessel: "EVER ATOP", Status: models.ShipmentStatusCancelled},
		models.Shipment{ID: "2", RawVessel: "ONE HAMBURG", ETA: "2020-01-01"},
	)
	o := newTestOrchestrator(st, &stubGateway{configured: true})

	report, err := o.SyncMissingVessels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.TotalActive)
	assert.Empty(t, report.Created)
}

func TestUpdatePositionsFullRun(t *testing.T) {
	st := testutil.NewMockStore()
	seedShipments(t, st,
		models.Shipment{ID: "1", RawVessel: "MSC CARMELA [001E]"},
		models.Shipment{ID: "2", RawVessel: "HMM BLESSING"},
		models.Shipment{ID: "3", RawVessel: "NO ID VESSEL"},
	)
	st.SeedPosition(&models.VesselPosition{VesselName: "MSC CARMELA", MMSI: "255806210"})
	st.SeedPosition(&models.VesselPosition{VesselName: "HMM BLESSING", IMO: "9868326"})
	st.SeedPosition(&models.VesselPosition{VesselName: "NO ID VESSEL"})

	gw := &stubGateway{
		configured: true,
		positions: map[string]*ais.Position{
			"MSC CARMELA": {Lat: 53.47305, Lon: 8.49434, PositionAt: "2025-11-16T03:20:00Z"},
			// HMM BLESSING: lookup fails, gateway returns nil.
		},
	}
	o := newTestOrchestrator(st, gw)

	report, err := o.UpdatePositions(context.Background(), UpdateOptions{})
	require.NoError(t, err)

	assert.Equal(t, 3, report.TotalActiveVessels)
	assert.Equal(t, []string{"MSC CARMELA"}, report.Updated)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "HMM BLESSING", report.Failed[0].VesselName)
	assert.Equal(t, []string{"NO ID VESSEL"}, report.MissingIdentifiers)
	assert.Empty(t, report.Skipped)

	// The successful vessel got cache and history updates.
	cached := st.Position("MSC CARMELA")
	require.NotNil(t, cached)
	require.NotNil(t, cached.LastLat)
	assert.Equal(t, 53.47305, *cached.LastLat)
	assert.Equal(t, "2025-11-16T03:20:00Z", cached.LastPositionAt)
	assert.Equal(t, fixedNow.Format(time.RFC3339), cached.LastAPICallAt)
	assert.Equal(t, 1, st.HistoryLen())

	// The failed vessel's throttle clock was given back.
	failed := st.Position("HMM BLESSING")
	require.NotNil(t, failed)
	assert.Empty(t, failed.LastAPICallAt)
}

func TestUpdatePositionsThrottleSkips(t *testing.T) {
	st := testutil.NewMockStore()
	seedShipments(t, st, models.Shipment{ID: "1", RawVessel: "MSC CARMELA"})
	st.SeedPosition(&models.VesselPosition{
		VesselName:    "MSC CARMELA",
		MMSI:          "255806210",
		LastAPICallAt: fixedNow.Add(-1 * time.Hour).Format(time.RFC3339),
	})

	gw := &stubGateway{configured: true, positions: map[string]*ais.Position{
		"MSC CARMELA": {Lat: 1, Lon: 2, PositionAt: "2025-11-20T11:00:00Z"},
	}}
	o := newTestOrchestrator(st, gw)

	report, err := o.UpdatePositions(context.Background(), UpdateOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"MSC CARMELA"}, report.Skipped)
	assert.Empty(t, gw.calls, "throttled vessel must not reach the provider")

	// BypassThrottle forces the lookup through the same window.
	report, err = o.UpdatePositions(context.Background(), UpdateOptions{BypassThrottle: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"MSC CARMELA"}, report.Updated)
	assert.Equal(t, []string{"MSC CARMELA"}, gw.calls)
}

func TestUpdatePositionsVesselNameFilter(t *testing.T) {
	st := testutil.NewMockStore()
	seedShipments(t, st,
		models.Shipment{ID: "1", RawVessel: "MSC CARMELA"},
		models.Shipment{ID: "2", RawVessel: "HMM BLESSING"},
	)
	st.SeedPosition(&models.VesselPosition{VesselName: "MSC CARMELA", MMSI: "255806210"})
	st.SeedPosition(&models.VesselPosition{VesselName: "HMM BLESSING", MMSI: "440330000"})

	gw := &stubGateway{configured: true, positions: map[string]*ais.Position{
		"HMM BLESSING": {Lat: -35.65, Lon: -103.16, PositionAt: "2025-11-20T10:00:00Z"},
	}}
	o := newTestOrchestrator(st, gw)

	// Raw names are normalized before matching.
	report, err := o.UpdatePositions(context.Background(), UpdateOptions{
		BypassThrottle: true,
		VesselNames:    []string{"HMM BLESSING [X1]"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.TotalActiveVessels)
	assert.Equal(t, []string{"HMM BLESSING"}, report.Updated)
	assert.Equal(t, []string{"HMM BLESSING"}, gw.calls)
}

func TestUpdatePositionsNoDelayForSkippedVessels(t *testing.T) {
	st := testutil.NewMockStore()
	recent := fixedNow.Add(-1 * time.Hour).Format(time.RFC3339)
	seedShipments(t, st,
		models.Shipment{ID: "1", RawVessel: "MSC CARMELA"},
		models.Shipment{ID: "2", RawVessel: "HMM BLESSING"},
		models.Shipment{ID: "3", RawVessel: "EVER ATOP"},
	)
	st.SeedPosition(&models.VesselPosition{VesselName: "MSC CARMELA", MMSI: "255806210", LastAPICallAt: recent})
	st.SeedPosition(&models.VesselPosition{VesselName: "HMM BLESSING", IMO: "9868326", LastAPICallAt: recent})
	st.SeedPosition(&models.VesselPosition{VesselName: "EVER ATOP", MMSI: "228404900", LastAPICallAt: recent})

	gw := &stubGateway{configured: true}
	o := NewOrchestrator(st, gw, 24*time.Hour, 200*time.Millisecond, 5)
	o.now = func() time.Time { return fixedNow }

	start := time.Now()
	report, err := o.UpdatePositions(context.Background(), UpdateOptions{})
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Len(t, report.Skipped, 3)
	assert.Empty(t, gw.calls)
	// Three throttled vessels must not pay three pacing delays.
	assert.Less(t, elapsed, 100*time.Millisecond,
		"run over fully throttled fleet took %v", elapsed)
}

func TestUpdatePositionsPacesProviderCalls(t *testing.T) {
	st := testutil.NewMockStore()
	seedShipments(t, st,
		models.Shipment{ID: "1", RawVessel: "MSC CARMELA"},
		models.Shipment{ID: "2", RawVessel: "HMM BLESSING"},
	)
	st.SeedPosition(&models.VesselPosition{VesselName: "MSC CARMELA", MMSI: "255806210"})
	st.SeedPosition(&models.VesselPosition{VesselName: "HMM BLESSING", IMO: "9868326"})

	gw := &stubGateway{configured: true, positions: map[string]*ais.Position{
		"MSC CARMELA":  {Lat: 1, Lon: 2, PositionAt: "2025-11-20T10:00:00Z"},
		"HMM BLESSING": {Lat: 3, Lon: 4, PositionAt: "2025-11-20T10:00:00Z"},
	}}
	o := NewOrchestrator(st, gw, 24*time.Hour, 20*time.Millisecond, 5)
	o.now = func() time.Time { return fixedNow }

	start := time.Now()
	report, err := o.UpdatePositions(context.Background(), UpdateOptions{})
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Len(t, report.Updated, 2)
	assert.Len(t, gw.calls, 2)
	// One delay between the two consecutive lookups.
	assert.GreaterOrEqual(t, elapsed, 20*time.Millisecond)
}

func TestSyncFromHistory(t *testing.T) {
	st := testutil.NewMockStore()
	st.SeedPosition(&models.VesselPosition{
		VesselName:     "MSC CARMELA",
		LastPositionAt: "2025-11-15T00:00:00Z",
	})
	st.SeedHistory(
		models.PositionHistoryEntry{VesselName: "MSC CARMELA", Lat: 1, Lon: 2, PositionAt: "2025-11-16T00:00:00Z"},
		models.PositionHistoryEntry{VesselName: "EVER ATOP", Lat: 3, Lon: 4, PositionAt: "2025-11-14T00:00:00Z"},
	)
	o := newTestOrchestrator(st, &stubGateway{configured: true})

	report, err := o.SyncFromHistory(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"MSC CARMELA", "EVER ATOP"}, report.Updated)

	promoted := st.Position("MSC CARMELA")
	require.NotNil(t, promoted)
	assert.Equal(t, "2025-11-16T00:00:00Z", promoted.LastPositionAt)
	require.NotNil(t, promoted.LastLat)
	assert.Equal(t, 1.0, *promoted.LastLat)

	// The throttle clock is never touched by a backfill.
	assert.Empty(t, promoted.LastAPICallAt)

	// Second run: cache is already current, everything skips.
	report, err = o.SyncFromHistory(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Updated)
	assert.ElementsMatch(t, []string{"MSC CARMELA", "EVER ATOP"}, report.Skipped)
}

func TestEstimateCost(t *testing.T) {
	st := testutil.NewMockStore()
	seedShipments(t, st,
		models.Shipment{ID: "1", RawVessel: "MSC CARMELA"},  // due for refresh
		models.Shipment{ID: "2", RawVessel: "HMM BLESSING"}, // inside window
		models.Shipment{ID: "3", RawVessel: "NO ID VESSEL"}, // no identifier
	)
	st.SeedPosition(&models.VesselPosition{VesselName: "MSC CARMELA", MMSI: "255806210"})
	st.SeedPosition(&models.VesselPosition{
		VesselName:    "HMM BLESSING",
		IMO:           "9868326",
		LastAPICallAt: fixedNow.Add(-1 * time.Hour).Format(time.RFC3339),
	})
	st.SeedPosition(&models.VesselPosition{VesselName: "NO ID VESSEL"})

	o := newTestOrchestrator(st, &stubGateway{configured: true})

	report, err := o.EstimateCost(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.TotalActiveVessels)
	assert.Equal(t, 1, report.VesselsToUpdate)
	assert.Equal(t, 1, report.VesselsSkipped)
	assert.Equal(t, 1, report.VesselsWithoutIdentifiers)
	assert.Equal(t, 5, report.EstimatedCost)

	// Estimation mutates nothing: the due vessel is still due.
	again, err := o.EstimateCost(context.Background())
	require.NoError(t, err)
	assert.Equal(t, report, again)
}

func TestEndToEndSyncFlow(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewMockStore()
	seedShipments(t, st, models.Shipment{
		ID:        "s-1",
		RawVessel: "HMM BLESSING [X1]",
		Booking:   "BK-77",
		ETA:       "2025-12-15",
	})

	gw := &stubGateway{configured: true, positions: map[string]*ais.Position{
		"HMM BLESSING": {Lat: -35.65, Lon: -103.16, PositionAt: "2025-11-20T08:00:00Z"},
	}}
	o := newTestOrchestrator(st, gw)

	// 1. Create the cache stub from the shipment snapshot.
	missing, err := o.SyncMissingVessels(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"HMM BLESSING"}, missing.Created)

	// 2. Operator supplies the identifier.
	require.NoError(t, st.SetIdentifiers(ctx, "HMM BLESSING", "9868326", ""))

	// 3. Throttled refresh spends one lookup.
	update, err := o.UpdatePositions(ctx, UpdateOptions{})
	require.NoError(t, err)
	require.Equal(t, []string{"HMM BLESSING"}, update.Updated)

	// 4. The track now has exactly one point, matching the observation.
	history, err := st.HistoryForVessels(ctx, []string{"HMM BLESSING"}, 100)
	require.NoError(t, err)
	track := vessel.BuildTrack(history["HMM BLESSING"], st.Position("HMM BLESSING"))
	require.Len(t, track, 1)
	assert.Equal(t, -35.65, track[0].Lat)
	assert.Equal(t, -103.16, track[0].Lon)
}
