package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/technosupport/crowdwatch/internal/model"
)

type ZoneModel struct {
	DB DBTX
}

func (m ZoneModel) Create(ctx context.Context, z *model.Zone) error {
	polygon, err := json.Marshal(z.Polygon)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO zones (id, camera_id, name, type, polygon, max_capacity, current_occupancy, status)
		VALUES ($1, $2, $3, $4, $5, $6, 0, 'active')`
	_, err = m.DB.ExecContext(ctx, query, z.ID, z.CameraID, z.Name, z.Type, polygon, z.MaxCapacity)
	return err
}

func (m ZoneModel) GetByID(ctx context.Context, id string) (*model.Zone, error) {
	query := `SELECT id, camera_id, name, type, polygon, max_capacity, current_occupancy, status FROM zones WHERE id = $1`
	var z model.Zone
	var polygon []byte
	err := m.DB.QueryRowContext(ctx, query, id).Scan(&z.ID, &z.CameraID, &z.Name, &z.Type, &polygon, &z.MaxCapacity, &z.CurrentOccupancy, &z.Status)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(polygon, &z.Polygon); err != nil {
		return nil, err
	}
	return &z, nil
}

func (m ZoneModel) ListByCamera(ctx context.Context, cameraID string) ([]model.Zone, error) {
	query := `SELECT id, camera_id, name, type, polygon, max_capacity, current_occupancy, status FROM zones WHERE camera_id = $1`
	rows, err := m.DB.QueryContext(ctx, query, cameraID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Zone
	for rows.Next() {
		var z model.Zone
		var polygon []byte
		if err := rows.Scan(&z.ID, &z.CameraID, &z.Name, &z.Type, &polygon, &z.MaxCapacity, &z.CurrentOccupancy, &z.Status); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(polygon, &z.Polygon); err != nil {
			return nil, err
		}
		out = append(out, z)
	}
	return out, rows.Err()
}

func (m ZoneModel) Update(ctx context.Context, z *model.Zone) error {
	polygon, err := json.Marshal(z.Polygon)
	if err != nil {
		return err
	}
	query := `
		UPDATE zones SET name = $1, type = $2, polygon = $3, max_capacity = $4
		WHERE id = $5`
	res, err := m.DB.ExecContext(ctx, query, z.Name, z.Type, polygon, z.MaxCapacity, z.ID)
	if err != nil {
		return err
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateOccupancy persists the zone evaluator's running occupancy count.
func (m ZoneModel) UpdateOccupancy(ctx context.Context, id string, occupancy int) error {
	_, err := m.DB.ExecContext(ctx, `UPDATE zones SET current_occupancy = $1 WHERE id = $2`, occupancy, id)
	return err
}

func (m ZoneModel) Delete(ctx context.Context, id string) error {
	res, err := m.DB.ExecContext(ctx, `DELETE FROM zones WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
