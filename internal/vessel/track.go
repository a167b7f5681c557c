package vessel

import "github.com/asli-tracking/backend/internal/models"

// BuildTrack merges a vessel's history (already time-ascending) with its
// cache entry into a single track. The cache point is appended only when it
// is strictly newer than the last historical point; when history is empty or
// either timestamp cannot be parsed the cache point is appended anyway,
// favoring freshness over strict ordering. The most recent known position is
// therefore always part of the track.
func BuildTrack(history []models.TrackPoint, pos *models.VesselPosition) []models.TrackPoint {
	track := history
	if track == nil {
		track = []models.TrackPoint{}
	}

	if pos == nil || pos.LastLat == nil || pos.LastLon == nil {
		return track
	}

	if len(track) > 0 {
		last := track[len(track)-1]
		lastTime, lastOK := parseTimestamp(last.PositionAt)
		cacheTime, cacheOK := parseTimestamp(pos.LastPositionAt)
		if lastOK && cacheOK {
			if !cacheTime.After(lastTime) {
				return track
			}
		}
		// Unparseable on either side: fall through and append.
	}

	return append(track, models.TrackPoint{
		Lat:        *pos.LastLat,
		Lon:        *pos.LastLon,
		PositionAt: pos.LastPositionAt,
	})
}
