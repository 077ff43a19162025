// Package store implements the Postgres persistence layer (via lib/pq) and
// the Redis-backed "latest analytics" cache feeding the REST API and push
// fabric.
package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/redis/go-redis/v9"

	_ "github.com/lib/pq"
)

// ErrNotFound is returned by every model's Get when no row matches.
var ErrNotFound = errors.New("record not found")

// DBTX is satisfied by *sql.DB and *sql.Tx, letting models run either
// standalone or inside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Store bundles the Postgres connection pool, Redis client, and the
// per-entity models over them.
type Store struct {
	DB    *sql.DB
	Redis *redis.Client

	Cameras    CameraModel
	Zones      ZoneModel
	Analytics  AnalyticsModel
	Alerts     AlertModel
	Events     EventModel
	Movements  MovementModel
}

// Open connects to Postgres (postgresDSN) and Redis (redisAddr) and wires
// every model over the resulting handles. It does not run migrations.
func Open(postgresDSN, redisAddr string) (*Store, error) {
	db, err := sql.Open("postgres", postgresDSN)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})

	s := &Store{DB: db, Redis: rdb}
	s.Cameras = CameraModel{DB: db}
	s.Zones = ZoneModel{DB: db}
	s.Analytics = AnalyticsModel{DB: db, Redis: rdb}
	s.Alerts = AlertModel{DB: db}
	s.Events = EventModel{DB: db}
	s.Movements = MovementModel{DB: db}
	return s, nil
}

func (s *Store) Close() error {
	if s.Redis != nil {
		_ = s.Redis.Close()
	}
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}
