package store

import (
	"context"

	"github.com/technosupport/crowdwatch/internal/model"
)

type AlertModel struct {
	DB DBTX
}

func (m AlertModel) Insert(ctx context.Context, a model.Alert) error {
	query := `
		INSERT INTO alerts (id, camera_id, kind, severity, risk_score, message, ts, acknowledged)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := m.DB.ExecContext(ctx, query, a.ID, a.CameraID, a.Kind, a.Severity, a.RiskScore, a.Message, a.Timestamp, a.Acknowledged)
	return err
}

func (m AlertModel) ListByCamera(ctx context.Context, cameraID string, limit int) ([]model.Alert, error) {
	query := `
		SELECT id, camera_id, kind, severity, risk_score, message, ts, acknowledged
		FROM alerts WHERE camera_id = $1 ORDER BY ts DESC LIMIT $2`
	return m.scanAll(ctx, query, cameraID, limit)
}

// ListActive returns unacknowledged alerts, optionally narrowed to
// cameraID and/or severity, for GET /alerts/active.
func (m AlertModel) ListActive(ctx context.Context, cameraID string, severity model.RiskLevel, limit int) ([]model.Alert, error) {
	query := `SELECT id, camera_id, kind, severity, risk_score, message, ts, acknowledged FROM alerts WHERE acknowledged = false`
	var args []any
	if cameraID != "" {
		args = append(args, cameraID)
		query += " AND camera_id = " + placeholder(len(args))
	}
	if severity != "" {
		args = append(args, severity)
		query += " AND severity = " + placeholder(len(args))
	}
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query += " ORDER BY ts DESC LIMIT " + placeholder(len(args))
	return m.scanAll(ctx, query, args...)
}

func (m AlertModel) Acknowledge(ctx context.Context, id string) error {
	res, err := m.DB.ExecContext(ctx, `UPDATE alerts SET acknowledged = true WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (m AlertModel) scanAll(ctx context.Context, query string, args ...any) ([]model.Alert, error) {
	rows, err := m.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Alert
	for rows.Next() {
		var a model.Alert
		if err := rows.Scan(&a.ID, &a.CameraID, &a.Kind, &a.Severity, &a.RiskScore, &a.Message, &a.Timestamp, &a.Acknowledged); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
