package store

import (
	"context"
	"time"

	"github.com/technosupport/crowdwatch/internal/model"
)

type EventModel struct {
	DB DBTX
}

func (m EventModel) Insert(ctx context.Context, e model.EntryExitEvent) error {
	query := `
		INSERT INTO entry_exit_events (camera_id, zone_id, track_id, kind, ts)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := m.DB.ExecContext(ctx, query, e.CameraID, e.ZoneID, e.TrackID, e.Kind, e.Timestamp)
	return err
}

// CountByCameraAndKind tallies events of kind for cameraID, used for the
// entry/exit summary endpoint.
func (m EventModel) CountByCameraAndKind(ctx context.Context, cameraID string, kind model.EventKind) (int, error) {
	var count int
	query := `SELECT count(*) FROM entry_exit_events WHERE camera_id = $1 AND kind = $2`
	err := m.DB.QueryRowContext(ctx, query, cameraID, kind).Scan(&count)
	return count, err
}

// ListRecentByCamera returns the most recent limit events for cameraID,
// newest first, for the entry-exit summary endpoint.
func (m EventModel) ListRecentByCamera(ctx context.Context, cameraID string, limit int) ([]model.EntryExitEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT camera_id, zone_id, track_id, kind, ts
		FROM entry_exit_events WHERE camera_id = $1 ORDER BY ts DESC LIMIT $2`
	rows, err := m.DB.QueryContext(ctx, query, cameraID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.EntryExitEvent
	for rows.Next() {
		var e model.EntryExitEvent
		if err := rows.Scan(&e.CameraID, &e.ZoneID, &e.TrackID, &e.Kind, &e.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (m EventModel) ListByCamera(ctx context.Context, cameraID string, from, to time.Time) ([]model.EntryExitEvent, error) {
	query := `
		SELECT camera_id, zone_id, track_id, kind, ts
		FROM entry_exit_events WHERE camera_id = $1 AND ts BETWEEN $2 AND $3 ORDER BY ts`
	rows, err := m.DB.QueryContext(ctx, query, cameraID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.EntryExitEvent
	for rows.Next() {
		var e model.EntryExitEvent
		if err := rows.Scan(&e.CameraID, &e.ZoneID, &e.TrackID, &e.Kind, &e.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
