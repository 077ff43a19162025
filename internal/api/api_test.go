package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/technosupport/crowdwatch/internal/api"
	"github.com/technosupport/crowdwatch/internal/framecache"
	"github.com/technosupport/crowdwatch/internal/model"
	"github.com/technosupport/crowdwatch/internal/push"
	"github.com/technosupport/crowdwatch/internal/registry"
	"github.com/technosupport/crowdwatch/internal/store"
)

// newTestServer builds a Server backed by a sqlmock Postgres handle and no
// live coordinator/NATS connection, since the handlers under test never
// reach the ingest or cross-camera path.
func newTestServer(t *testing.T) (*api.Server, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	st := &store.Store{DB: db}
	st.Cameras = store.CameraModel{DB: db}
	st.Zones = store.ZoneModel{DB: db}
	st.Analytics = store.AnalyticsModel{DB: db}
	st.Alerts = store.AlertModel{DB: db}
	st.Events = store.EventModel{DB: db}
	st.Movements = store.MovementModel{DB: db}

	srv := api.NewServer(api.Deps{
		Store:      st,
		Zones:      registry.NewZoneCache(),
		FrameCache: framecache.New(4, time.Second),
		PushHub:    push.NewHub(push.DefaultConfig()),
		StartedAt:  time.Now(),
	})
	return srv, mock
}

func TestHealth_ReportsDBDown(t *testing.T) {
	srv, mock := newTestServer(t)
	mock.ExpectPing().WillReturnError(sqlmock.ErrCancelled)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body["db"] != "down" {
		t.Errorf("expected db=down, got %v", body["db"])
	}
}

func TestRegisterCamera_CreatesWhenAbsent(t *testing.T) {
	srv, mock := newTestServer(t)

	mock.ExpectQuery("SELECT (.+) FROM cameras").
		WithArgs("cam-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "edge_id", "location", "resolution", "fps", "status", "last_frame_time", "created_at"}))
	mock.ExpectQuery("INSERT INTO cameras").
		WithArgs("cam-1", "edge-9", "lobby", "1920x1080", 15, model.CameraActive).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	body := `{"camera_id":"cam-1","edge_id":"edge-9","location":"lobby","resolution":"1920x1080","fps":15}`
	req := httptest.NewRequest(http.MethodPost, "/cameras/register", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRegisterCamera_IdempotentOnExisting(t *testing.T) {
	srv, mock := newTestServer(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "edge_id", "location", "resolution", "fps", "status", "last_frame_time", "created_at"}).
		AddRow("cam-1", "edge-9", "lobby", "1920x1080", 15, model.CameraActive, now, now)
	mock.ExpectQuery("SELECT (.+) FROM cameras").WithArgs("cam-1").WillReturnRows(rows)

	body := `{"camera_id":"cam-1"}`
	req := httptest.NewRequest(http.MethodPost, "/cameras/register", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on existing camera, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateZone_RejectsShortPolygon(t *testing.T) {
	srv, _ := newTestServer(t)

	body := `{"camera_id":"cam-1","name":"entrance","type":"entry","polygon":[{"x":0,"y":0},{"x":1,"y":1}]}`
	req := httptest.NewRequest(http.MethodPost, "/zones", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a 2-point polygon, got %d", rec.Code)
	}
}

func TestAcknowledgeAlert_NotFound(t *testing.T) {
	srv, mock := newTestServer(t)
	mock.ExpectExec("UPDATE alerts SET acknowledged").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	req := httptest.NewRequest(http.MethodPost, "/alerts/missing/acknowledge", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestActiveAlerts_FiltersByCameraAndSeverity(t *testing.T) {
	srv, mock := newTestServer(t)
	rows := sqlmock.NewRows([]string{"id", "camera_id", "kind", "severity", "risk_score", "message", "ts", "acknowledged"}).
		AddRow("alert-1", "cam-1", model.AlertHighDensity, model.RiskCritical, 0.9, "crowding", time.Now(), false)
	mock.ExpectQuery("SELECT (.+) FROM alerts").
		WithArgs("cam-1", model.RiskCritical, 10).
		WillReturnRows(rows)

	req := httptest.NewRequest(http.MethodGet, "/alerts/active?camera_id=cam-1&severity=CRITICAL&limit=10", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}
