package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/marcboeker/go-duckdb"

	"github.com/asli-tracking/backend/internal/config"
	"github.com/asli-tracking/backend/internal/models"
	"github.com/asli-tracking/backend/internal/vessel"
)

// DuckStore implements Store on a DuckDB file. One file holds all three
// tables; they are joined only by the canonical vessel name string, never
// by foreign keys.
type DuckStore struct {
	db     *sql.DB
	dbPath string
}

// NewDuckStore opens (or creates) the tracking database at dbPath.
func NewDuckStore(dbPath string, cfg config.DatabaseConfig) (*DuckStore, error) {
	memLimit := cfg.MemoryLimit
	if memLimit == "" {
		memLimit = "512MB"
	}
	threads := cfg.Threads
	if threads <= 0 {
		threads = 2
	}

	connector, err := duckdb.NewConnector(dbPath, func(execer driver.ExecerContext) error {
		pragmas := []string{
			fmt.Sprintf("PRAGMA memory_limit='%s'", memLimit),
			fmt.Sprintf("PRAGMA threads=%d", threads),
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	fmt.Printf("[Store] Database ready at: %s\n", dbPath)
	return &DuckStore{db: db, dbPath: dbPath}, nil
}

func createSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS shipments (
			id          VARCHAR PRIMARY KEY,
			raw_vessel  VARCHAR NOT NULL,
			booking     VARCHAR,
			containers  VARCHAR,
			etd         VARCHAR,
			eta         VARCHAR,
			pod         VARCHAR,
			status      VARCHAR,
			deleted_at  VARCHAR
		)`,
		`CREATE TABLE IF NOT EXISTS vessel_positions (
			vessel_name         VARCHAR PRIMARY KEY,
			imo                 VARCHAR,
			mmsi                VARCHAR,
			last_lat            DOUBLE,
			last_lon            DOUBLE,
			last_position_at    VARCHAR,
			last_api_call_at    VARCHAR,
			speed               VARCHAR,
			course              VARCHAR,
			destination         VARCHAR,
			navigational_status VARCHAR,
			ship_type           VARCHAR,
			country             VARCHAR,
			eta_utc             VARCHAR,
			atd_utc             VARCHAR,
			last_port           VARCHAR,
			current_draught     VARCHAR,
			callsign            VARCHAR,
			created_at          VARCHAR,
			updated_at          VARCHAR
		)`,
		`CREATE TABLE IF NOT EXISTS vessel_position_history (
			vessel_name VARCHAR NOT NULL,
			lat         DOUBLE  NOT NULL,
			lon         DOUBLE  NOT NULL,
			position_at VARCHAR NOT NULL,
			source      VARCHAR NOT NULL,
			created_at  VARCHAR
		)`,
		`CREATE INDEX IF NOT EXISTS idx_history_vessel_time
			ON vessel_position_history (vessel_name, position_at)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *DuckStore) Close() error {
	return s.db.Close()
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// UpsertShipments inserts or replaces shipment rows. Rows without an id get
// one assigned by the caller before reaching the store.
func (s *DuckStore) UpsertShipments(ctx context.Context, shipments []models.Shipment) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO shipments
			(id, raw_vessel, booking, containers, etd, eta, pod, status, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare shipment upsert: %w", err)
	}
	defer stmt.Close()

	count := 0
	for i := range shipments {
		sh := &shipments[i]
		if _, err := stmt.ExecContext(ctx,
			sh.ID, sh.RawVessel, nullable(sh.Booking), nullable(sh.Containers),
			nullable(sh.ETD), nullable(sh.ETA), nullable(sh.POD),
			nullable(sh.Status), nullable(sh.DeletedAt),
		); err != nil {
			return 0, fmt.Errorf("failed to upsert shipment %s: %w", sh.ID, err)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit shipments: %w", err)
	}
	return count, nil
}

// ListShipments returns all shipment rows, including soft-deleted ones; the
// resolver applies the active predicate.
func (s *DuckStore) ListShipments(ctx context.Context) ([]models.Shipment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, raw_vessel, booking, containers, etd, eta, pod, status, deleted_at
		FROM shipments`)
	if err != nil {
		return nil, fmt.Errorf("failed to query shipments: %w", err)
	}
	defer rows.Close()

	var out []models.Shipment
	for rows.Next() {
		var sh models.Shipment
		var booking, containers, etd, eta, pod, status, deletedAt sql.NullString
		if err := rows.Scan(&sh.ID, &sh.RawVessel, &booking, &containers,
			&etd, &eta, &pod, &status, &deletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan shipment: %w", err)
		}
		sh.Booking = booking.String
		sh.Containers = containers.String
		sh.ETD = etd.String
		sh.ETA = eta.String
		sh.POD = pod.String
		sh.Status = status.String
		sh.DeletedAt = deletedAt.String
		out = append(out, sh)
	}
	return out, rows.Err()
}

const positionColumns = `vessel_name, imo, mmsi, last_lat, last_lon,
	last_position_at, last_api_call_at, speed, course, destination,
	navigational_status, ship_type, country, eta_utc, atd_utc, last_port,
	current_draught, callsign`

func scanPosition(scan func(dest ...any) error) (*models.VesselPosition, error) {
	var p models.VesselPosition
	var imo, mmsi, posAt, callAt sql.NullString
	var lat, lon sql.NullFloat64
	var speed, course, dest, navStatus, shipType, country sql.NullString
	var etaUTC, atdUTC, lastPort, draught, callsign sql.NullString

	err := scan(&p.VesselName, &imo, &mmsi, &lat, &lon, &posAt, &callAt,
		&speed, &course, &dest, &navStatus, &shipType, &country,
		&etaUTC, &atdUTC, &lastPort, &draught, &callsign)
	if err != nil {
		return nil, err
	}

	p.IMO = imo.String
	p.MMSI = mmsi.String
	if lat.Valid {
		v := lat.Float64
		p.LastLat = &v
	}
	if lon.Valid {
		v := lon.Float64
		p.LastLon = &v
	}
	p.LastPositionAt = posAt.String
	p.LastAPICallAt = callAt.String
	p.Speed = speed.String
	p.Course = course.String
	p.Destination = dest.String
	p.NavigationalStatus = navStatus.String
	p.ShipType = shipType.String
	p.Country = country.String
	p.ETAUTC = etaUTC.String
	p.ATDUTC = atdUTC.String
	p.LastPort = lastPort.String
	p.CurrentDraught = draught.String
	p.Callsign = callsign.String
	return &p, nil
}

// GetPositions returns the cache rows for the given vessel names, keyed by
// name. Names without a row are simply absent from the result.
func (s *DuckStore) GetPositions(ctx context.Context, names []string) (map[string]*models.VesselPosition, error) {
	out := make(map[string]*models.VesselPosition, len(names))
	if len(names) == 0 {
		return out, nil
	}

	placeholders := strings.Repeat("?,", len(names))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(names))
	for i, n := range names {
		args[i] = n
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+positionColumns+` FROM vessel_positions WHERE vessel_name IN (`+placeholders+`)`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query vessel_positions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPosition(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vessel position: %w", err)
		}
		out[p.VesselName] = p
	}
	return out, rows.Err()
}

// GetPosition returns one cache row, or nil when the vessel has none.
func (s *DuckStore) GetPosition(ctx context.Context, name string) (*models.VesselPosition, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+positionColumns+` FROM vessel_positions WHERE vessel_name = ?`, name)
	p, err := scanPosition(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read vessel position: %w", err)
	}
	return p, nil
}

// CreateMissing inserts a cache stub with all position fields null when the
// vessel has no row yet. Returns true when a row was created. The unique
// constraint on vessel_name makes concurrent stubs collapse to one row.
func (s *DuckStore) CreateMissing(ctx context.Context, name string) (bool, error) {
	now := nowISO()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO vessel_positions (vessel_name, created_at, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (vessel_name) DO NOTHING`,
		name, now, now)
	if err != nil {
		return false, fmt.Errorf("failed to create cache stub for %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SetIdentifiers upserts the IMO/MMSI pair for a vessel, creating the stub
// row when absent. Position fields and the throttle clock are untouched.
func (s *DuckStore) SetIdentifiers(ctx context.Context, name, imo, mmsi string) error {
	now := nowISO()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vessel_positions (vessel_name, imo, mmsi, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (vessel_name) DO UPDATE SET
			imo = excluded.imo,
			mmsi = excluded.mmsi,
			updated_at = excluded.updated_at`,
		name, nullable(imo), nullable(mmsi), now, now)
	if err != nil {
		return fmt.Errorf("failed to set identifiers for %s: %w", name, err)
	}
	return nil
}

// ClaimAPICall advances the throttle clock to now if and only if the window
// has elapsed: the clock is null, empty, unparseable, or at or before the
// cutoff. Rows-affected decides the claim, so two overlapping runs cannot
// both win the same window.
func (s *DuckStore) ClaimAPICall(ctx context.Context, name, now, cutoff string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE vessel_positions
		SET last_api_call_at = ?, updated_at = ?
		WHERE vessel_name = ?
		  AND (last_api_call_at IS NULL
			OR last_api_call_at = ''
			OR TRY_CAST(last_api_call_at AS TIMESTAMPTZ) IS NULL
			OR TRY_CAST(last_api_call_at AS TIMESTAMPTZ) <= TRY_CAST(? AS TIMESTAMPTZ))`,
		now, now, name, cutoff)
	if err != nil {
		return false, fmt.Errorf("failed to claim API call for %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RestoreAPICall puts the throttle clock back after a failed provider call
// so the vessel is retried on the next run instead of waiting a full window.
func (s *DuckStore) RestoreAPICall(ctx context.Context, name, previous string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE vessel_positions SET last_api_call_at = ?, updated_at = ? WHERE vessel_name = ?`,
		nullable(previous), nowISO(), name)
	if err != nil {
		return fmt.Errorf("failed to restore API clock for %s: %w", name, err)
	}
	return nil
}

// RecordObservation upserts the cache row and appends one history entry in
// a single transaction. When pos.LastAPICallAt is empty the existing clock
// value is preserved (cache-only updates never move the throttle clock).
func (s *DuckStore) RecordObservation(ctx context.Context, pos *models.VesselPosition, entry models.PositionHistoryEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := nowISO()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO vessel_positions
			(vessel_name, imo, mmsi, last_lat, last_lon, last_position_at, last_api_call_at,
			 speed, course, destination, navigational_status, ship_type, country,
			 eta_utc, atd_utc, last_port, current_draught, callsign, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (vessel_name) DO UPDATE SET
			imo = COALESCE(excluded.imo, vessel_positions.imo),
			mmsi = COALESCE(excluded.mmsi, vessel_positions.mmsi),
			last_lat = excluded.last_lat,
			last_lon = excluded.last_lon,
			last_position_at = excluded.last_position_at,
			last_api_call_at = COALESCE(excluded.last_api_call_at, vessel_positions.last_api_call_at),
			speed = excluded.speed,
			course = excluded.course,
			destination = excluded.destination,
			navigational_status = excluded.navigational_status,
			ship_type = excluded.ship_type,
			country = excluded.country,
			eta_utc = excluded.eta_utc,
			atd_utc = excluded.atd_utc,
			last_port = excluded.last_port,
			current_draught = excluded.current_draught,
			callsign = excluded.callsign,
			updated_at = excluded.updated_at`,
		pos.VesselName, nullable(pos.IMO), nullable(pos.MMSI),
		pos.LastLat, pos.LastLon, nullable(pos.LastPositionAt), nullable(pos.LastAPICallAt),
		nullable(pos.Speed), nullable(pos.Course), nullable(pos.Destination),
		nullable(pos.NavigationalStatus), nullable(pos.ShipType), nullable(pos.Country),
		nullable(pos.ETAUTC), nullable(pos.ATDUTC), nullable(pos.LastPort),
		nullable(pos.CurrentDraught), nullable(pos.Callsign), now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert vessel position for %s: %w", pos.VesselName, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO vessel_position_history (vessel_name, lat, lon, position_at, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.VesselName, entry.Lat, entry.Lon, entry.PositionAt, entry.Source, now)
	if err != nil {
		return fmt.Errorf("failed to append history for %s: %w", entry.VesselName, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit observation for %s: %w", pos.VesselName, err)
	}
	return nil
}

// PromoteHistory overwrites the cache row's position fields from a history
// entry, creating the row when absent. Never touches last_api_call_at: a
// promotion is not a provider call.
func (s *DuckStore) PromoteHistory(ctx context.Context, entry models.PositionHistoryEntry) error {
	now := nowISO()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vessel_positions (vessel_name, last_lat, last_lon, last_position_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (vessel_name) DO UPDATE SET
			last_lat = excluded.last_lat,
			last_lon = excluded.last_lon,
			last_position_at = excluded.last_position_at,
			updated_at = excluded.updated_at`,
		entry.VesselName, entry.Lat, entry.Lon, entry.PositionAt, now, now)
	if err != nil {
		return fmt.Errorf("failed to promote history for %s: %w", entry.VesselName, err)
	}
	return nil
}

// HistoryForVessels returns time-ascending track points per vessel for the
// given names. The limit bounds the points per vessel, keeping the newest
// ones, so one long-tracked vessel can never starve another's track.
func (s *DuckStore) HistoryForVessels(ctx context.Context, names []string, limit int) (map[string][]models.TrackPoint, error) {
	out := make(map[string][]models.TrackPoint, len(names))
	if len(names) == 0 {
		return out, nil
	}
	if limit <= 0 {
		limit = 1000
	}

	placeholders := strings.Repeat("?,", len(names))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(names)+1)
	for _, n := range names {
		args = append(args, n)
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT vessel_name, lat, lon, position_at FROM (
			SELECT vessel_name, lat, lon, position_at,
				ROW_NUMBER() OVER (
					PARTITION BY vessel_name
					ORDER BY TRY_CAST(position_at AS TIMESTAMPTZ) DESC NULLS LAST, position_at DESC
				) AS rn
			FROM vessel_position_history
			WHERE vessel_name IN (`+placeholders+`)
		)
		WHERE rn <= ?
		ORDER BY TRY_CAST(position_at AS TIMESTAMPTZ) ASC NULLS LAST, position_at ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query position history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var pt models.TrackPoint
		if err := rows.Scan(&name, &pt.Lat, &pt.Lon, &pt.PositionAt); err != nil {
			return nil, fmt.Errorf("failed to scan track point: %w", err)
		}
		out[name] = append(out[name], pt)
	}
	return out, rows.Err()
}

// LatestHistory returns the most recent history entry per vessel across the
// whole log. Ordering is resolved in Go so entries with raw, unparseable
// timestamps still participate the same way the read path treats them.
func (s *DuckStore) LatestHistory(ctx context.Context) (map[string]models.PositionHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT vessel_name, lat, lon, position_at, source
		FROM vessel_position_history`)
	if err != nil {
		return nil, fmt.Errorf("failed to query position history: %w", err)
	}
	defer rows.Close()

	out := make(map[string]models.PositionHistoryEntry)
	for rows.Next() {
		var e models.PositionHistoryEntry
		if err := rows.Scan(&e.VesselName, &e.Lat, &e.Lon, &e.PositionAt, &e.Source); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		existing, ok := out[e.VesselName]
		if !ok || historyNewer(e.PositionAt, existing.PositionAt) {
			out[e.VesselName] = e
		}
	}
	return out, rows.Err()
}

// historyNewer reports whether candidate is strictly newer than current.
// Unparseable timestamps sort oldest.
func historyNewer(candidate, current string) bool {
	ct, cok := vessel.ParseTimestamp(candidate)
	et, eok := vessel.ParseTimestamp(current)
	if cok && eok {
		return ct.After(et)
	}
	if cok != eok {
		return cok
	}
	return candidate > current
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
