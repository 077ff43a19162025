package store

import (
	"context"
	"database/sql"

	"github.com/technosupport/crowdwatch/internal/model"
)

type CameraModel struct {
	DB DBTX
}

func (m CameraModel) Create(ctx context.Context, c *model.Camera) error {
	query := `
		INSERT INTO cameras (id, edge_id, location, resolution, fps, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING created_at`
	return m.DB.QueryRowContext(ctx, query, c.ID, c.EdgeID, c.Location, c.Resolution, c.FPS, c.Status).Scan(&c.CreatedAt)
}

func (m CameraModel) GetByID(ctx context.Context, id string) (*model.Camera, error) {
	query := `
		SELECT id, edge_id, location, resolution, fps, status, last_frame_time, created_at
		FROM cameras WHERE id = $1`
	var c model.Camera
	var lastFrame sql.NullTime
	err := m.DB.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.EdgeID, &c.Location, &c.Resolution, &c.FPS, &c.Status, &lastFrame, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if lastFrame.Valid {
		c.LastFrameTime = lastFrame.Time
	}
	return &c, nil
}

func (m CameraModel) List(ctx context.Context) ([]model.Camera, error) {
	query := `SELECT id, edge_id, location, resolution, fps, status, last_frame_time, created_at FROM cameras ORDER BY created_at`
	rows, err := m.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Camera
	for rows.Next() {
		var c model.Camera
		var lastFrame sql.NullTime
		if err := rows.Scan(&c.ID, &c.EdgeID, &c.Location, &c.Resolution, &c.FPS, &c.Status, &lastFrame, &c.CreatedAt); err != nil {
			return nil, err
		}
		if lastFrame.Valid {
			c.LastFrameTime = lastFrame.Time
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (m CameraModel) TouchLastFrame(ctx context.Context, id string, ts sql.NullTime) error {
	_, err := m.DB.ExecContext(ctx, `UPDATE cameras SET last_frame_time = $1 WHERE id = $2`, ts, id)
	return err
}

func (m CameraModel) SetStatus(ctx context.Context, id string, status model.CameraStatus) error {
	res, err := m.DB.ExecContext(ctx, `UPDATE cameras SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (m CameraModel) Delete(ctx context.Context, id string) error {
	res, err := m.DB.ExecContext(ctx, `DELETE FROM cameras WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
