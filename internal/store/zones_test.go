package store_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/technosupport/crowdwatch/internal/model"
	"github.com/technosupport/crowdwatch/internal/store"
)

func TestZoneModel_Create(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	m := store.ZoneModel{DB: db}
	maxCap := 20
	zone := &model.Zone{ID: "zone-1", CameraID: "cam-1", Name: "entrance", Type: model.ZoneEntry,
		Polygon: []model.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}}, MaxCapacity: &maxCap}

	mock.ExpectExec("INSERT INTO zones").WillReturnResult(sqlmock.NewResult(1, 1))

	if err := m.Create(context.Background(), zone); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
}

func TestZoneModel_GetByID_UnmarshalsPolygon(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	m := store.ZoneModel{DB: db}
	polygon, _ := json.Marshal([]model.Point{{X: 1, Y: 1}, {X: 2, Y: 2}})
	rows := sqlmock.NewRows([]string{"id", "camera_id", "name", "type", "polygon", "max_capacity", "current_occupancy", "status"}).
		AddRow("zone-1", "cam-1", "entrance", model.ZoneEntry, polygon, nil, 3, "active")
	mock.ExpectQuery("SELECT (.+) FROM zones").WithArgs("zone-1").WillReturnRows(rows)

	z, err := m.GetByID(context.Background(), "zone-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if len(z.Polygon) != 2 || z.CurrentOccupancy != 3 {
		t.Errorf("unexpected zone: %+v", z)
	}
}

func TestZoneModel_UpdateOccupancy(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	m := store.ZoneModel{DB: db}
	mock.ExpectExec("UPDATE zones SET current_occupancy").WithArgs(5, "zone-1").WillReturnResult(sqlmock.NewResult(0, 1))

	if err := m.UpdateOccupancy(context.Background(), "zone-1", 5); err != nil {
		t.Fatalf("UpdateOccupancy failed: %v", err)
	}
}

func TestZoneModel_Delete_NotFound(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	m := store.ZoneModel{DB: db}
	mock.ExpectExec("DELETE FROM zones").WithArgs("missing").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := m.Delete(context.Background(), "missing"); err != store.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
