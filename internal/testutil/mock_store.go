// mock_store.go - Mock store implementation for testing
package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/asli-tracking/backend/internal/models"
	"github.com/asli-tracking/backend/internal/vessel"
)

// MockStore implements store.Store in memory for testing.
type MockStore struct {
	mu        sync.RWMutex
	shipments map[string]models.Shipment
	positions map[string]*models.VesselPosition
	history   []models.PositionHistoryEntry

	// Optional error injections.
	ListShipmentsErr error
	RecordErr        error
	PromoteErr       error
}

// NewMockStore creates an empty mock store.
func NewMockStore() *MockStore {
	return &MockStore{
		shipments: make(map[string]models.Shipment),
		positions: make(map[string]*models.VesselPosition),
	}
}

func (m *MockStore) UpsertShipments(_ context.Context, shipments []models.Shipment) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range shipments {
		m.shipments[s.ID] = s
	}
	return len(shipments), nil
}

func (m *MockStore) ListShipments(_ context.Context) ([]models.Shipment, error) {
	if m.ListShipmentsErr != nil {
		return nil, m.ListShipmentsErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.shipments))
	for id := range m.shipments {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]models.Shipment, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.shipments[id])
	}
	return out, nil
}

func (m *MockStore) GetPositions(_ context.Context, names []string) (map[string]*models.VesselPosition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*models.VesselPosition)
	for _, n := range names {
		if p, ok := m.positions[n]; ok {
			cp := *p
			out[n] = &cp
		}
	}
	return out, nil
}

func (m *MockStore) GetPosition(_ context.Context, name string) (*models.VesselPosition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.positions[name]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *MockStore) CreateMissing(_ context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.positions[name]; ok {
		return false, nil
	}
	m.positions[name] = &models.VesselPosition{VesselName: name}
	return true, nil
}

func (m *MockStore) SetIdentifiers(_ context.Context, name, imo, mmsi string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[name]
	if !ok {
		p = &models.VesselPosition{VesselName: name}
		m.positions[name] = p
	}
	p.IMO = imo
	p.MMSI = mmsi
	return nil
}

func (m *MockStore) ClaimAPICall(_ context.Context, name, now, cutoff string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[name]
	if !ok {
		return false, nil
	}
	if p.LastAPICallAt == "" {
		p.LastAPICallAt = now
		return true, nil
	}
	last, lok := vessel.ParseTimestamp(p.LastAPICallAt)
	cut, cok := vessel.ParseTimestamp(cutoff)
	if !lok || (cok && !last.After(cut)) {
		p.LastAPICallAt = now
		return true, nil
	}
	return false, nil
}

func (m *MockStore) RestoreAPICall(_ context.Context, name, previous string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.positions[name]; ok {
		p.LastAPICallAt = previous
	}
	return nil
}

func (m *MockStore) RecordObservation(_ context.Context, pos *models.VesselPosition, entry models.PositionHistoryEntry) error {
	if m.RecordErr != nil {
		return m.RecordErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing := m.positions[pos.VesselName]
	cp := *pos
	if existing != nil {
		if cp.IMO == "" {
			cp.IMO = existing.IMO
		}
		if cp.MMSI == "" {
			cp.MMSI = existing.MMSI
		}
		if cp.LastAPICallAt == "" {
			cp.LastAPICallAt = existing.LastAPICallAt
		}
	}
	m.positions[pos.VesselName] = &cp
	m.history = append(m.history, entry)
	return nil
}

func (m *MockStore) PromoteHistory(_ context.Context, entry models.PositionHistoryEntry) error {
	if m.PromoteErr != nil {
		return m.PromoteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[entry.VesselName]
	if !ok {
		p = &models.VesselPosition{VesselName: entry.VesselName}
		m.positions[entry.VesselName] = p
	}
	lat, lon := entry.Lat, entry.Lon
	p.LastLat = &lat
	p.LastLon = &lon
	p.LastPositionAt = entry.PositionAt
	return nil
}

func (m *MockStore) HistoryForVessels(_ context.Context, names []string, limit int) (map[string][]models.TrackPoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 {
		limit = 1000
	}
	wanted := make(map[string]struct{}, len(names))
	for _, n := range names {
		wanted[n] = struct{}{}
	}
	out := make(map[string][]models.TrackPoint)
	for _, e := range m.history {
		if _, ok := wanted[e.VesselName]; !ok {
			continue
		}
		out[e.VesselName] = append(out[e.VesselName], models.TrackPoint{
			Lat: e.Lat, Lon: e.Lon, PositionAt: e.PositionAt,
		})
	}
	for name := range out {
		pts := out[name]
		sort.SliceStable(pts, func(i, j int) bool {
			ti, iok := vessel.ParseTimestamp(pts[i].PositionAt)
			tj, jok := vessel.ParseTimestamp(pts[j].PositionAt)
			if iok && jok {
				return ti.Before(tj)
			}
			return pts[i].PositionAt < pts[j].PositionAt
		})
		// Per-vessel cap, newest points win.
		if len(pts) > limit {
			pts = pts[len(pts)-limit:]
		}
		out[name] = pts
	}
	return out, nil
}

func (m *MockStore) LatestHistory(_ context.Context) (map[string]models.PositionHistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]models.PositionHistoryEntry)
	for _, e := range m.history {
		existing, ok := out[e.VesselName]
		if !ok {
			out[e.VesselName] = e
			continue
		}
		te, eok := vessel.ParseTimestamp(e.PositionAt)
		tx, xok := vessel.ParseTimestamp(existing.PositionAt)
		if eok && xok && te.After(tx) {
			out[e.VesselName] = e
		}
	}
	return out, nil
}

func (m *MockStore) Close() error { return nil }

// SeedPosition inserts a cache row directly, bypassing the store API.
func (m *MockStore) SeedPosition(p *models.VesselPosition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.positions[p.VesselName] = &cp
}

// SeedHistory appends history entries directly.
func (m *MockStore) SeedHistory(entries ...models.PositionHistoryEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, entries...)
}

// Position returns the live cache row for assertions.
func (m *MockStore) Position(name string) *models.VesselPosition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.positions[name]
}

// HistoryLen returns the number of history entries recorded.
func (m *MockStore) HistoryLen() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.history)
}
