package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"tempmon-server/internal/modules/monitoring/query"
	"tempmon-server/internal/modules/monitoring/repository"
	"tempmon-server/internal/modules/monitoring/types"
)

// CSVHeader is the first row written by ExportCSV.
var CSVHeader = []string{"Timestamp", "Temperature", "Humidity"}

type Service struct {
	repository repository.MonitoringRepository
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(repository repository.MonitoringRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repository: repository, logger: logger, now: time.Now}
}

// storageErr marks err as a storage failure unless it already carries a
// domain meaning the caller can act on.
func storageErr(op string, err error) error {
	if errors.Is(err, types.ErrDeviceNotFound) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", types.ErrStorage, op, err)
}

func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", types.ErrValidation, fmt.Sprintf(format, args...))
}

func sampleValue(name string, v *float64) (int, error) {
	if v == nil {
		return 0, validationErr("%s is required", name)
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0, validationErr("%s must be a finite number", name)
	}
	n, ok := types.RoundSample(*v)
	if !ok {
		return 0, validationErr("%s is out of range", name)
	}
	return n, nil
}

// RecordReading makes sure the device exists, then appends the reading. If the
// append fails the device stays registered with no reading for this call.
func (s *Service) RecordReading(ctx context.Context, in types.ReadingInput) (types.Reading, error) {
	deviceID := strings.TrimSpace(in.DeviceID)
	if deviceID == "" {
		return types.Reading{}, validationErr("deviceId is required")
	}
	temperature, err := sampleValue("temperature", in.Temperature)
	if err != nil {
		return types.Reading{}, err
	}
	humidity, err := sampleValue("humidity", in.Humidity)
	if err != nil {
		return types.Reading{}, err
	}
	ts := s.now()
	if in.Timestamp != nil && !in.Timestamp.IsZero() {
		ts = *in.Timestamp
	}

	if _, err := s.repository.EnsureDevice(ctx, deviceID); err != nil {
		s.logger.Error("ensure device failed", "device_id", deviceID, "error", err)
		return types.Reading{}, storageErr("ensure device", err)
	}
	reading, err := s.repository.AppendReading(ctx, deviceID, temperature, humidity, ts)
	if err != nil {
		s.logger.Error("append reading failed", "device_id", deviceID, "error", err)
		return types.Reading{}, storageErr("append reading", err)
	}
	s.logger.Debug("reading recorded",
		"device_id", deviceID,
		"reading_id", reading.ID,
		"timestamp", reading.Timestamp,
	)
	return reading, nil
}

func (s *Service) ListDevices(ctx context.Context) ([]types.Device, error) {
	devices, err := s.repository.ListActiveDevices(ctx)
	if err != nil {
		s.logger.Error("list devices failed", "error", err)
		return nil, storageErr("list devices", err)
	}
	return devices, nil
}

// RegisterDevice creates a device or updates the name and location of an
// existing one. An empty name falls back to the default display name.
func (s *Service) RegisterDevice(ctx context.Context, d types.Device) (types.Device, error) {
	d.ID = strings.TrimSpace(d.ID)
	if d.ID == "" {
		return types.Device{}, validationErr("device id is required")
	}
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		d.Name = types.DefaultDeviceName(d.ID)
	}
	if d.Location != nil {
		loc := strings.TrimSpace(*d.Location)
		if loc == "" {
			d.Location = nil
		} else {
			d.Location = &loc
		}
	}
	out, err := s.repository.RegisterDevice(ctx, d)
	if err != nil {
		s.logger.Error("register device failed", "device_id", d.ID, "error", err)
		return types.Device{}, storageErr("register device", err)
	}
	s.logger.Info("device registered", "device_id", out.ID, "name", out.Name)
	return out, nil
}

func (s *Service) SetDeviceActive(ctx context.Context, id string, active bool) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return validationErr("device id is required")
	}
	if err := s.repository.SetDeviceActive(ctx, id, active); err != nil {
		if !errors.Is(err, types.ErrDeviceNotFound) {
			s.logger.Error("set device active failed", "device_id", id, "error", err)
		}
		return storageErr("set device active", err)
	}
	s.logger.Info("device activity changed", "device_id", id, "active", active)
	return nil
}

// GetReadings answers a historical query. The limit defaults to
// query.HistoryDefaultLimit and is capped at query.HistoryMaxLimit.
func (s *Service) GetReadings(ctx context.Context, f types.Filter) ([]types.Reading, error) {
	if err := query.ValidateRange(f.StartTime, f.EndTime); err != nil {
		return nil, err
	}
	limit, err := query.ClampLimit(f.Limit, query.HistoryDefaultLimit, query.HistoryMaxLimit)
	if err != nil {
		return nil, err
	}
	f.Limit = limit
	return s.queryReadings(ctx, f)
}

// GetLatestReadings is the live-view query: no time bounds and a small ceiling.
func (s *Service) GetLatestReadings(ctx context.Context, deviceID string, limit int) ([]types.Reading, error) {
	limit, err := query.ClampLimit(limit, query.LatestDefaultLimit, query.LatestMaxLimit)
	if err != nil {
		return nil, err
	}
	return s.queryReadings(ctx, types.Filter{DeviceID: strings.TrimSpace(deviceID), Limit: limit})
}

func (s *Service) queryReadings(ctx context.Context, f types.Filter) ([]types.Reading, error) {
	readings, err := s.repository.QueryReadings(ctx, f)
	if err != nil {
		s.logger.Error("query readings failed", "device_id", f.DeviceID, "error", err)
		return nil, storageErr("query readings", err)
	}
	return readings, nil
}

// GetStats aggregates every reading in the window. Both bounds are required.
// The filter limit is ignored.
func (s *Service) GetStats(ctx context.Context, f types.Filter) (types.Statistics, error) {
	if f.StartTime == nil || f.EndTime == nil {
		return types.Statistics{}, validationErr("startTime and endTime are required")
	}
	if err := query.ValidateRange(f.StartTime, f.EndTime); err != nil {
		return types.Statistics{}, err
	}
	f.Limit = 0
	stats, err := s.repository.Stats(ctx, f)
	if err != nil {
		s.logger.Error("stats failed", "device_id", f.DeviceID, "error", err)
		return types.Statistics{}, storageErr("stats", err)
	}
	return stats, nil
}

// ExportCSV writes the readings selected by f as CSV, newest first, using the
// same limits as GetReadings.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer, f types.Filter) error {
	readings, err := s.GetReadings(ctx, f)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range readings {
		record := []string{
			r.Timestamp.UTC().Format(time.RFC3339),
			strconv.Itoa(r.Temperature),
			strconv.Itoa(r.Humidity),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
