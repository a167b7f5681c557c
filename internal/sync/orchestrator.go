package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/asli-tracking/backend/internal/ais"
	"github.com/asli-tracking/backend/internal/models"
	"github.com/asli-tracking/backend/internal/store"
	"github.com/asli-tracking/backend/internal/vessel"
)

// Gateway is the provider lookup the refresh orchestrator depends on.
// Satisfied by *ais.Client; mocked in tests.
type Gateway interface {
	Configured() bool
	FetchPosition(ctx context.Context, vesselName, imo, mmsi string) *ais.Position
}

// Orchestrator runs the one-shot batch jobs. Each run processes vessels
// sequentially; runs are expected not to overlap (the throttle claim makes
// an overlap safe but wasteful, not incorrect).
type Orchestrator struct {
	store            store.Store
	gateway          Gateway
	throttleWindow   time.Duration
	callDelay        time.Duration
	creditsPerVessel int
	now              func() time.Time
}

// NewOrchestrator wires the batch jobs to their collaborators.
func NewOrchestrator(st store.Store, gw Gateway, throttleWindow, callDelay time.Duration, creditsPerVessel int) *Orchestrator {
	if creditsPerVessel <= 0 {
		creditsPerVessel = 5
	}
	return &Orchestrator{
		store:            st,
		gateway:          gw,
		throttleWindow:   throttleWindow,
		callDelay:        callDelay,
		creditsPerVessel: creditsPerVessel,
		now:              time.Now,
	}
}

// activeVessels loads the shipment snapshot and resolves the active set.
// A store failure here is a hard, batch-aborting error.
func (o *Orchestrator) activeVessels(ctx context.Context) (map[string]*vessel.Aggregate, []string, error) {
	shipments, err := o.store.ListShipments(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("loading shipments: %w", err)
	}
	byVessel := vessel.Resolve(shipments, o.now())
	return byVessel, vessel.ActiveVesselNames(byVessel), nil
}

// SyncMissingVessels creates cache stubs for active vessels with no cache
// row yet. Idempotent: a second run over the same active set creates
// nothing.
func (o *Orchestrator) SyncMissingVessels(ctx context.Context) (*models.SyncMissingReport, error) {
	_, names, err := o.activeVessels(ctx)
	if err != nil {
		return nil, err
	}

	report := &models.SyncMissingReport{
		Created:     []string{},
		TotalActive: len(names),
	}

	existing, err := o.store.GetPositions(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("reading position cache: %w", err)
	}

	for _, name := range names {
		if _, ok := existing[name]; ok {
			report.AlreadyExisted++
			continue
		}
		created, err := o.store.CreateMissing(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("creating cache stub for %s: %w", name, err)
		}
		if created {
			report.Created = append(report.Created, name)
		} else {
			report.AlreadyExisted++
		}
	}

	fmt.Printf("[Sync] Create-missing: %d created, %d already existed of %d active\n",
		len(report.Created), report.AlreadyExisted, report.TotalActive)
	return report, nil
}

// SyncFromHistory promotes the newest history entry into the cache wherever
// history is ahead of (or the cache is missing) the current position. The
// throttle clock is never touched; this repairs recorded-but-not-promoted
// positions without spending credits.
func (o *Orchestrator) SyncFromHistory(ctx context.Context) (*models.SyncHistoryReport, error) {
	latest, err := o.store.LatestHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading position history: %w", err)
	}

	report := &models.SyncHistoryReport{Updated: []string{}, Skipped: []string{}}

	for name, entry := range latest {
		existing, err := o.store.GetPosition(ctx, name)
		if err != nil {
			fmt.Printf("[Sync] Backfill: failed reading cache for %s: %v\n", name, err)
			report.Skipped = append(report.Skipped, name)
			continue
		}

		if existing != nil && !historyAhead(entry.PositionAt, existing.LastPositionAt) {
			report.Skipped = append(report.Skipped, name)
			continue
		}

		if err := o.store.PromoteHistory(ctx, entry); err != nil {
			fmt.Printf("[Sync] Backfill: failed promoting %s: %v\n", name, err)
			report.Skipped = append(report.Skipped, name)
			continue
		}
		report.Updated = append(report.Updated, name)
	}

	fmt.Printf("[Sync] Backfill-from-history: %d updated, %d skipped\n",
		len(report.Updated), len(report.Skipped))
	return report, nil
}

// historyAhead reports whether the history timestamp is strictly newer than
// the cache timestamp. A cache without a position always counts as behind.
func historyAhead(historyAt, cacheAt string) bool {
	if cacheAt == "" {
		return true
	}
	ht, hok := vessel.ParseTimestamp(historyAt)
	ct, cok := vessel.ParseTimestamp(cacheAt)
	if !hok || !cok {
		return false
	}
	return ht.After(ct)
}

// UpdateOptions control a refresh run.
type UpdateOptions struct {
	// BypassThrottle skips the window check. Every lookup then consumes
	// provider credits; only the explicitly marked test endpoint sets it.
	BypassThrottle bool
	// VesselNames restricts the run to these canonical names when non-empty.
	VesselNames []string
}

// UpdatePositions is the throttled poll: for each active vessel with a
// known identifier whose window has elapsed, call the provider and record
// the observation. One vessel's failure never aborts the batch; every
// active vessel lands in exactly one of the report's four lists.
func (o *Orchestrator) UpdatePositions(ctx context.Context, opts UpdateOptions) (*models.UpdateReport, error) {
	_, names, err := o.activeVessels(ctx)
	if err != nil {
		return nil, err
	}

	if len(opts.VesselNames) > 0 {
		requested := make(map[string]struct{}, len(opts.VesselNames))
		for _, n := range opts.VesselNames {
			requested[vessel.Normalize(n)] = struct{}{}
		}
		filtered := names[:0]
		for _, n := range names {
			if _, ok := requested[n]; ok {
				filtered = append(filtered, n)
			}
		}
		names = filtered
	}

	report := &models.UpdateReport{
		TotalActiveVessels: len(names),
		Updated:            []string{},
		Skipped:            []string{},
		Failed:             []models.VesselFailure{},
		MissingIdentifiers: []string{},
	}

	positions, err := o.store.GetPositions(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("reading position cache: %w", err)
	}

	calledGateway := false
	for _, name := range names {
		existing := positions[name]
		if existing == nil || !existing.HasIdentifier() {
			report.MissingIdentifiers = append(report.MissingIdentifiers, name)
			continue
		}

		now := o.now().UTC()
		if !opts.BypassThrottle && !ShouldCallAPI(existing.LastAPICallAt, now, o.throttleWindow) {
			report.Skipped = append(report.Skipped, name)
			continue
		}

		if calledGateway && o.callDelay > 0 {
			// Fixed spacing between lookups; the provider rate-limits
			// bursts. Vessels that skip the lookup don't pay it.
			select {
			case <-ctx.Done():
				return report, ctx.Err()
			case <-time.After(o.callDelay):
			}
		}

		if !opts.BypassThrottle {
			claimed, err := o.store.ClaimAPICall(ctx, name,
				now.Format(time.RFC3339),
				now.Add(-o.throttleWindow).Format(time.RFC3339))
			if err != nil {
				report.Failed = append(report.Failed, models.VesselFailure{
					VesselName: name,
					Reason:     fmt.Sprintf("failed to claim throttle window: %v", err),
				})
				continue
			}
			if !claimed {
				// Lost the claim to a concurrent run.
				report.Skipped = append(report.Skipped, name)
				continue
			}
		}

		pos := o.gateway.FetchPosition(ctx, name, existing.IMO, existing.MMSI)
		calledGateway = true
		if pos == nil {
			if !opts.BypassThrottle {
				// Give the window back so the next run retries this vessel.
				if err := o.store.RestoreAPICall(ctx, name, existing.LastAPICallAt); err != nil {
					fmt.Printf("[Sync] Failed to restore throttle clock for %s: %v\n", name, err)
				}
			}
			report.Failed = append(report.Failed, models.VesselFailure{
				VesselName: name,
				Reason:     "AIS provider returned no usable position, is not configured, or the vessel has no IMO/MMSI",
			})
			continue
		}

		if err := o.recordResult(ctx, name, existing, pos, now); err != nil {
			report.Failed = append(report.Failed, models.VesselFailure{
				VesselName: name,
				Reason:     fmt.Sprintf("failed to persist position: %v", err),
			})
			continue
		}

		report.Updated = append(report.Updated, name)
	}

	fmt.Printf("[Sync] Refresh: %d updated, %d skipped, %d failed, %d missing identifiers of %d active\n",
		len(report.Updated), len(report.Skipped), len(report.Failed),
		len(report.MissingIdentifiers), report.TotalActiveVessels)
	return report, nil
}

// recordResult writes one successful lookup: cache upsert (position fields,
// provider attributes, throttle clock) plus exactly one history append.
func (o *Orchestrator) recordResult(ctx context.Context, name string, existing *models.VesselPosition, pos *ais.Position, now time.Time) error {
	imo := existing.IMO
	if pos.IMO != "" {
		imo = pos.IMO
	}
	mmsi := existing.MMSI
	if pos.MMSI != "" {
		mmsi = pos.MMSI
	}

	cache := &models.VesselPosition{
		VesselName:         name,
		IMO:                imo,
		MMSI:               mmsi,
		LastLat:            &pos.Lat,
		LastLon:            &pos.Lon,
		LastPositionAt:     pos.PositionAt,
		LastAPICallAt:      now.Format(time.RFC3339),
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

	return o.store.RecordObservation(ctx, cache, entry)
}

// EstimateCost reports what the next refresh run would spend, without
// mutating any state.
func (o *Orchestrator) EstimateCost(ctx context.Context) (*models.BalanceReport, error) {
	_, names, err := o.activeVessels(ctx)
	if err != nil {
		return nil, err
	}

	positions, err := o.store.GetPositions(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("reading position cache: %w", err)
	}

	report := &models.BalanceReport{TotalActiveVessels: len(names)}
	now := o.now()

	for _, name := range names {
		existing := positions[name]
		if existing == nil || !existing.HasIdentifier() {
			report.VesselsWithoutIdentifiers++
			continue
		}
		if !ShouldCallAPI(existing.LastAPICallAt, now, o.throttleWindow) {
			report.VesselsSkipped++
			continue
		}
		report.VesselsWithIdentifiers++
		report.VesselsToUpdate++
	}

	report.EstimatedCost = report.VesselsToUpdate * o.creditsPerVessel
	return report, nil
}
