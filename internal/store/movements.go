package store

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/technosupport/crowdwatch/internal/model"
)

// MovementFilter narrows a movement query; zero-value fields are ignored.
type MovementFilter struct {
	EntryCamera string
	ExitCamera  string
	From, To    time.Time
	Limit       int
}

// MovementStats summarizes cross_camera_movements for the /movements/statistics
// endpoint.
type MovementStats struct {
	Total        int                `json:"total"`
	ByConfidence map[string]int     `json:"by_confidence"`
	AvgSimilarity float64           `json:"avg_similarity"`
}

type MovementModel struct {
	DB DBTX
}

// Upsert is idempotent on (entry_camera, entry_track, exit_camera,
// exit_track), replacing the stored similarity only if strictly higher —
// mirroring the in-memory rule the matcher itself applies before
// persisting (§4.8).
func (m MovementModel) Upsert(ctx context.Context, mv model.CrossCameraMovement) error {
	query := `
		INSERT INTO cross_camera_movements
			(entry_camera, entry_zone, entry_track, entry_ts, exit_camera, exit_zone, exit_track, exit_ts, similarity, confidence, duration_s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (entry_camera, entry_track, exit_camera, exit_track)
		DO UPDATE SET
			entry_zone = EXCLUDED.entry_zone, entry_ts = EXCLUDED.entry_ts,
			exit_zone = EXCLUDED.exit_zone, exit_ts = EXCLUDED.exit_ts,
			similarity = EXCLUDED.similarity, confidence = EXCLUDED.confidence, duration_s = EXCLUDED.duration_s
		WHERE cross_camera_movements.similarity < EXCLUDED.similarity`
	_, err := m.DB.ExecContext(ctx, query,
		mv.EntryCamera, mv.EntryZone, mv.EntryTrack, mv.EntryTS,
		mv.ExitCamera, mv.ExitZone, mv.ExitTrack, mv.ExitTS,
		mv.Similarity, mv.Confidence, mv.DurationS)
	return err
}

func (m MovementModel) ListByCamera(ctx context.Context, cameraID string) ([]model.CrossCameraMovement, error) {
	query := `
		SELECT entry_camera, entry_zone, entry_track, entry_ts, exit_camera, exit_zone, exit_track, exit_ts, similarity, confidence, duration_s
		FROM cross_camera_movements
		WHERE entry_camera = $1 OR exit_camera = $1
		ORDER BY exit_ts DESC`
	rows, err := m.DB.QueryContext(ctx, query, cameraID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CrossCameraMovement
	for rows.Next() {
		var mv model.CrossCameraMovement
		if err := rows.Scan(&mv.EntryCamera, &mv.EntryZone, &mv.EntryTrack, &mv.EntryTS,
			&mv.ExitCamera, &mv.ExitZone, &mv.ExitTrack, &mv.ExitTS,
			&mv.Similarity, &mv.Confidence, &mv.DurationS); err != nil {
			return nil, err
		}
		out = append(out, mv)
	}
	return out, rows.Err()
}

// ListByPair returns movements linking entryCamera to exitCamera directly,
// for the /movements/pair/{a}/{b} endpoint.
func (m MovementModel) ListByPair(ctx context.Context, entryCamera, exitCamera string) ([]model.CrossCameraMovement, error) {
	return m.List(ctx, MovementFilter{EntryCamera: entryCamera, ExitCamera: exitCamera})
}

// List runs a filtered movement query; any zero-value MovementFilter field
// is omitted from the WHERE clause.
func (m MovementModel) List(ctx context.Context, f MovementFilter) ([]model.CrossCameraMovement, error) {
	var where []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return placeholder(len(args))
	}
	if f.EntryCamera != "" {
		where = append(where, "entry_camera = "+arg(f.EntryCamera))
	}
	if f.ExitCamera != "" {
		where = append(where, "exit_camera = "+arg(f.ExitCamera))
	}
	if !f.From.IsZero() {
		where = append(where, "exit_ts >= "+arg(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "exit_ts <= "+arg(f.To))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT entry_camera, entry_zone, entry_track, entry_ts, exit_camera, exit_zone, exit_track, exit_ts, similarity, confidence, duration_s
		FROM cross_camera_movements`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY exit_ts DESC LIMIT " + arg(limit)

	rows, err := m.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CrossCameraMovement
	for rows.Next() {
		var mv model.CrossCameraMovement
		if err := rows.Scan(&mv.EntryCamera, &mv.EntryZone, &mv.EntryTrack, &mv.EntryTS,
			&mv.ExitCamera, &mv.ExitZone, &mv.ExitTrack, &mv.ExitTS,
			&mv.Similarity, &mv.Confidence, &mv.DurationS); err != nil {
			return nil, err
		}
		out = append(out, mv)
	}
	return out, rows.Err()
}

// Statistics aggregates the full movement table for the
// /movements/statistics endpoint.
func (m MovementModel) Statistics(ctx context.Context) (MovementStats, error) {
	stats := MovementStats{ByConfidence: make(map[string]int)}

	row := m.DB.QueryRowContext(ctx, `SELECT count(*), COALESCE(avg(similarity), 0) FROM cross_camera_movements`)
	if err := row.Scan(&stats.Total, &stats.AvgSimilarity); err != nil {
		return stats, err
	}

	rows, err := m.DB.QueryContext(ctx, `SELECT confidence, count(*) FROM cross_camera_movements GROUP BY confidence`)
	if err != nil {
		return stats, err
	}
	defer rows.Close()
	for rows.Next() {
		var confidence string
		var count int
		if err := rows.Scan(&confidence, &count); err != nil {
			return stats, err
		}
		stats.ByConfidence[confidence] = count
	}
	return stats, rows.Err()
}

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}
