package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"tempmon-server/internal/migrate"
	"tempmon-server/internal/modules/monitoring/repository"
	"tempmon-server/internal/modules/monitoring/types"
)

func newSQLiteService(t *testing.T) *Service {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	// One connection so every statement sees the same in-memory database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("close db: %v", err)
		}
	})
	if _, err := migrate.Run(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewService(repository.NewRepository(db), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRecordReading_FirstContactCreatesDeviceAndReading(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteService(t)

	if _, err := s.RecordReading(ctx, types.ReadingInput{
		DeviceID: "greenhouse", Temperature: f64(19.6), Humidity: f64(55),
	}); err != nil {
		t.Fatalf("RecordReading: %v", err)
	}

	devices, err := s.ListDevices(ctx)
	if err != nil {
		t.Fatalf("ListDevices: %v", err)
	}
	if len(devices) != 1 || devices[0].ID != "greenhouse" {
		t.Fatalf("devices = %+v; want exactly greenhouse", devices)
	}

	readings, err := s.GetReadings(ctx, types.Filter{})
	if err != nil {
		t.Fatalf("GetReadings: %v", err)
	}
	if len(readings) != 1 {
		t.Fatalf("got %d readings; want 1", len(readings))
	}
	if r := readings[0]; r.DeviceID != "greenhouse" || r.Temperature != 20 || r.Humidity != 55 {
		t.Errorf("reading = %+v", r)
	}
}

func TestRecordReading_OutOfRangeStoresNothing(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteService(t)

	_, err := s.RecordReading(ctx, types.ReadingInput{
		DeviceID: "x", Temperature: f64(1e20), Humidity: f64(40),
	})
	if !errors.Is(err, types.ErrValidation) {
		t.Fatalf("error = %v; want ErrValidation", err)
	}

	devices, err := s.ListDevices(ctx)
	if err != nil {
		t.Fatalf("ListDevices: %v", err)
	}
	readings, err := s.GetReadings(ctx, types.Filter{})
	if err != nil {
		t.Fatalf("GetReadings: %v", err)
	}
	if len(devices) != 0 || len(readings) != 0 {
		t.Errorf("stored %d devices and %d readings; want none", len(devices), len(readings))
	}
}
