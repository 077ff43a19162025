package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/technosupport/crowdwatch/internal/model"
	"github.com/technosupport/crowdwatch/internal/store"
)

func TestMovementModel_Upsert(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	m := store.MovementModel{DB: db}
	now := time.Now()
	mv := model.CrossCameraMovement{
		EntryCamera: "cam-1", EntryTrack: 1, EntryTS: now.Add(-time.Minute),
		ExitCamera: "cam-2", ExitTrack: 2, ExitTS: now,
		Similarity: 0.88, Confidence: model.ConfidenceHigh, DurationS: 60,
	}

	mock.ExpectExec("INSERT INTO cross_camera_movements").WillReturnResult(sqlmock.NewResult(1, 1))

	if err := m.Upsert(context.Background(), mv); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
}

func TestMovementModel_ListByCamera(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	m := store.MovementModel{DB: db}
	now := time.Now()
	rows := sqlmock.NewRows([]string{"entry_camera", "entry_zone", "entry_track", "entry_ts", "exit_camera", "exit_zone", "exit_track", "exit_ts", "similarity", "confidence", "duration_s"}).
		AddRow("cam-1", "zone-1", uint64(1), now.Add(-time.Minute), "cam-2", "zone-2", uint64(2), now, 0.9, model.ConfidenceHigh, 60.0)
	mock.ExpectQuery("SELECT (.+) FROM cross_camera_movements").WithArgs("cam-1").WillReturnRows(rows)

	out, err := m.ListByCamera(context.Background(), "cam-1")
	if err != nil {
		t.Fatalf("ListByCamera failed: %v", err)
	}
	if len(out) != 1 || out[0].ExitCamera != "cam-2" {
		t.Errorf("unexpected movements: %+v", out)
	}
}
