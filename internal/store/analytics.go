package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/technosupport/crowdwatch/internal/model"
)

const latestAnalyticsTTL = 24 * time.Hour

type AnalyticsModel struct {
	DB    DBTX
	Redis *redis.Client
}

// Insert persists one sample and refreshes the per-camera "latest" cache
// entry used by realtime REST reads and push broadcast.
func (m AnalyticsModel) Insert(ctx context.Context, s model.AnalyticsSample) error {
	query := `
		INSERT INTO analytics_samples
			(camera_id, ts, people_count, density, avg_speed, flow_x, flow_y, congestion, risk_score, risk_level)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := m.DB.ExecContext(ctx, query,
		s.CameraID, s.Timestamp, s.PeopleCount, s.Density, s.AvgSpeed, s.Flow.X, s.Flow.Y, s.Congestion, s.RiskScore, s.RiskLevel)
	if err != nil {
		return err
	}
	if m.Redis != nil {
		data, merr := json.Marshal(s)
		if merr == nil {
			m.Redis.Set(ctx, latestKey(s.CameraID), data, latestAnalyticsTTL)
		}
	}
	return nil
}

// Latest returns the most recently cached sample for cameraID, falling
// back to Postgres on a cache miss.
func (m AnalyticsModel) Latest(ctx context.Context, cameraID string) (*model.AnalyticsSample, error) {
	if m.Redis != nil {
		data, err := m.Redis.Get(ctx, latestKey(cameraID)).Bytes()
		if err == nil {
			var s model.AnalyticsSample
			if json.Unmarshal(data, &s) == nil {
				return &s, nil
			}
		} else if err != redis.Nil {
			return nil, err
		}
	}

	query := `
		SELECT camera_id, ts, people_count, density, avg_speed, flow_x, flow_y, congestion, risk_score, risk_level
		FROM analytics_samples WHERE camera_id = $1 ORDER BY ts DESC LIMIT 1`
	var s model.AnalyticsSample
	err := m.DB.QueryRowContext(ctx, query, cameraID).Scan(
		&s.CameraID, &s.Timestamp, &s.PeopleCount, &s.Density, &s.AvgSpeed, &s.Flow.X, &s.Flow.Y, &s.Congestion, &s.RiskScore, &s.RiskLevel)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// History returns samples for cameraID within [from, to], ordered by time.
func (m AnalyticsModel) History(ctx context.Context, cameraID string, from, to time.Time) ([]model.AnalyticsSample, error) {
	query := `
		SELECT camera_id, ts, people_count, density, avg_speed, flow_x, flow_y, congestion, risk_score, risk_level
		FROM analytics_samples WHERE camera_id = $1 AND ts BETWEEN $2 AND $3 ORDER BY ts`
	rows, err := m.DB.QueryContext(ctx, query, cameraID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AnalyticsSample
	for rows.Next() {
		var s model.AnalyticsSample
		if err := rows.Scan(&s.CameraID, &s.Timestamp, &s.PeopleCount, &s.Density, &s.AvgSpeed, &s.Flow.X, &s.Flow.Y, &s.Congestion, &s.RiskScore, &s.RiskLevel); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func latestKey(cameraID string) string {
	return fmt.Sprintf("analytics:latest:%s", cameraID)
}
