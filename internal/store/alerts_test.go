package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/technosupport/crowdwatch/internal/model"
	"github.com/technosupport/crowdwatch/internal/store"
)

func TestAlertModel_Insert(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	m := store.AlertModel{DB: db}
	a := model.Alert{ID: "alert-1", CameraID: "cam-1", Kind: model.AlertHighDensity, Severity: model.RiskWarning, RiskScore: 0.6, Message: "density rising", Timestamp: time.Now()}

	mock.ExpectExec("INSERT INTO alerts").WillReturnResult(sqlmock.NewResult(1, 1))

	if err := m.Insert(context.Background(), a); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
}

func TestAlertModel_ListByCamera(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	m := store.AlertModel{DB: db}
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "camera_id", "kind", "severity", "risk_score", "message", "ts", "acknowledged"}).
		AddRow("alert-1", "cam-1", model.AlertCongestion, model.RiskCritical, 0.9, "congestion", now, false)
	mock.ExpectQuery("SELECT (.+) FROM alerts").WithArgs("cam-1", 10).WillReturnRows(rows)

	out, err := m.ListByCamera(context.Background(), "cam-1", 10)
	if err != nil {
		t.Fatalf("ListByCamera failed: %v", err)
	}
	if len(out) != 1 || out[0].Severity != model.RiskCritical {
		t.Errorf("unexpected alerts: %+v", out)
	}
}

func TestAlertModel_Acknowledge_NotFound(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	m := store.AlertModel{DB: db}
	mock.ExpectExec("UPDATE alerts SET acknowledged").WithArgs("missing").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := m.Acknowledge(context.Background(), "missing"); err != store.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
