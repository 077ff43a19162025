package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/technosupport/crowdwatch/internal/model"
	"github.com/technosupport/crowdwatch/internal/store"
)

func TestCameraModel_Create(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	m := store.CameraModel{DB: db}
	cam := &model.Camera{ID: "cam-1", EdgeID: "edge-1", Location: "lobby", Resolution: "1920x1080", FPS: 15, Status: model.CameraActive}

	mock.ExpectQuery("INSERT INTO cameras").
		WithArgs(cam.ID, cam.EdgeID, cam.Location, cam.Resolution, cam.FPS, cam.Status).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	if err := m.Create(context.Background(), cam); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCameraModel_GetByID_NotFound(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	m := store.CameraModel{DB: db}
	mock.ExpectQuery("SELECT (.+) FROM cameras").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "edge_id", "location", "resolution", "fps", "status", "last_frame_time", "created_at"}))

	_, err := m.GetByID(context.Background(), "missing")
	if err != store.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCameraModel_GetByID_Found(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	m := store.CameraModel{DB: db}
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "edge_id", "location", "resolution", "fps", "status", "last_frame_time", "created_at"}).
		AddRow("cam-1", "edge-1", "lobby", "1920x1080", 15, model.CameraActive, now, now)
	mock.ExpectQuery("SELECT (.+) FROM cameras").WithArgs("cam-1").WillReturnRows(rows)

	cam, err := m.GetByID(context.Background(), "cam-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if cam.ID != "cam-1" || cam.FPS != 15 {
		t.Errorf("unexpected camera: %+v", cam)
	}
}

func TestCameraModel_SetStatus_NotFound(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	m := store.CameraModel{DB: db}
	mock.ExpectExec("UPDATE cameras SET status").
		WithArgs(model.CameraInactive, "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := m.SetStatus(context.Background(), "missing", model.CameraInactive); err != store.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCameraModel_Delete(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	m := store.CameraModel{DB: db}
	mock.ExpectExec("DELETE FROM cameras").WithArgs("cam-1").WillReturnResult(sqlmock.NewResult(0, 1))

	if err := m.Delete(context.Background(), "cam-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
}
