package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tempmon-server/internal/modules/monitoring/query"
	"tempmon-server/internal/modules/monitoring/types"
)

//go:embed sql/ensure-device.sql
var ensureDeviceSQL string

//go:embed sql/get-device.sql
var getDeviceSQL string

//go:embed sql/upsert-device.sql
var upsertDeviceSQL string

//go:embed sql/set-device-active.sql
var setDeviceActiveSQL string

//go:embed sql/list-active-devices.sql
var listActiveDevicesSQL string

//go:embed sql/insert-reading.sql
var insertReadingSQL string

//go:embed sql/query-readings.sql
var queryReadingsSQL string

//go:embed sql/stats.sql
var statsSQL string

const wherePlaceholder = "/* where */"

// TimeLayout is how reading and device times are stored in SQLite. It is fixed
// width so that text comparison orders the same way as time comparison.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

type MonitoringRepository interface {
	// EnsureDevice returns the device with id, creating it with default
	// attributes when absent. Safe to call concurrently for the same id.
	EnsureDevice(ctx context.Context, id string) (types.Device, error)
	RegisterDevice(ctx context.Context, d types.Device) (types.Device, error)
	SetDeviceActive(ctx context.Context, id string, active bool) error
	ListActiveDevices(ctx context.Context) ([]types.Device, error)
	AppendReading(ctx context.Context, deviceID string, temperature, humidity int, ts time.Time) (types.Reading, error)
	QueryReadings(ctx context.Context, f types.Filter) ([]types.Reading, error)
	Stats(ctx context.Context, f types.Filter) (types.Statistics, error)
	Ping(ctx context.Context) error
}

type repositoryImpl struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepository(db *sql.DB) MonitoringRepository {
	return &repositoryImpl{db: db, now: time.Now}
}

func encodeTime(t time.Time) any {
	return t.UTC().Format(TimeLayout)
}

func decodeTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

func withWhere(tmpl string, f types.Filter) (string, []any) {
	clause, args := query.Where(query.Predicates(f, encodeTime))
	return strings.Replace(tmpl, wherePlaceholder, clause, 1), args
}

func (r *repositoryImpl) EnsureDevice(ctx context.Context, id string) (types.Device, error) {
	if _, err := r.db.ExecContext(ctx, ensureDeviceSQL, id, types.DefaultDeviceName(id), encodeTime(r.now())); err != nil {
		return types.Device{}, fmt.Errorf("ensure device %q: %w", id, err)
	}
	return r.getDevice(ctx, id)
}

func (r *repositoryImpl) RegisterDevice(ctx context.Context, d types.Device) (types.Device, error) {
	var location any
	if d.Location != nil {
		location = *d.Location
	}
	if _, err := r.db.ExecContext(ctx, upsertDeviceSQL, d.ID, d.Name, location, encodeTime(r.now())); err != nil {
		return types.Device{}, fmt.Errorf("register device %q: %w", d.ID, err)
	}
	return r.getDevice(ctx, d.ID)
}

func (r *repositoryImpl) getDevice(ctx context.Context, id string) (types.Device, error) {
	d, err := scanDevice(r.db.QueryRowContext(ctx, getDeviceSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return types.Device{}, fmt.Errorf("%w: %q", types.ErrDeviceNotFound, id)
	}
	if err != nil {
		return types.Device{}, fmt.Errorf("get device %q: %w", id, err)
	}
	return d, nil
}

func (r *repositoryImpl) SetDeviceActive(ctx context.Context, id string, active bool) error {
	res, err := r.db.ExecContext(ctx, setDeviceActiveSQL, active, id)
	if err != nil {
		return fmt.Errorf("set device %q active: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set device %q active: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", types.ErrDeviceNotFound, id)
	}
	return nil
}

func (r *repositoryImpl) ListActiveDevices(ctx context.Context) ([]types.Device, error) {
	rows, err := r.db.QueryContext(ctx, listActiveDevicesSQL)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close devices rows", "error", err)
		}
	}()
	out := []types.Device{}
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (types.Device, error) {
	var d types.Device
	var location sql.NullString
	var createdAt string
	if err := row.Scan(&d.ID, &d.Name, &location, &d.IsActive, &createdAt); err != nil {
		return types.Device{}, err
	}
	if location.Valid {
		loc := location.String
		d.Location = &loc
	}
	t, err := decodeTime(createdAt)
	if err != nil {
		return types.Device{}, err
	}
	d.CreatedAt = t
	return d, nil
}

func (r *repositoryImpl) AppendReading(ctx context.Context, deviceID string, temperature, humidity int, ts time.Time) (types.Reading, error) {
	res, err := r.db.ExecContext(ctx, insertReadingSQL, deviceID, temperature, humidity, encodeTime(ts))
	if err != nil {
		return types.Reading{}, fmt.Errorf("insert reading: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return types.Reading{}, fmt.Errorf("insert reading: %w", err)
	}
	return types.Reading{
		ID:          id,
		DeviceID:    deviceID,
		Temperature: temperature,
		Humidity:    humidity,
		Timestamp:   ts.UTC(),
	}, nil
}

func (r *repositoryImpl) QueryReadings(ctx context.Context, f types.Filter) ([]types.Reading, error) {
	stmt, args := withWhere(queryReadingsSQL, f)
	rows, err := r.db.QueryContext(ctx, stmt, append(args, f.Limit)...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close readings rows", "error", err)
		}
	}()
	return scanReadings(rows)
}

func scanReadings(rows *sql.Rows) ([]types.Reading, error) {
	out := []types.Reading{}
	for rows.Next() {
		var rec types.Reading
		var ts string
		if err := rows.Scan(&rec.ID, &rec.DeviceID, &rec.Temperature, &rec.Humidity, &ts); err != nil {
			return nil, err
		}
		t, err := decodeTime(ts)
		if err != nil {
			return nil, err
		}
		rec.Timestamp = t
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *repositoryImpl) Stats(ctx context.Context, f types.Filter) (types.Statistics, error) {
	stmt, args := withWhere(statsSQL, f)
	var s types.Statistics
	err := r.db.QueryRowContext(ctx, stmt, args...).Scan(
		&s.Count,
		&s.AvgTemperature,
		&s.AvgHumidity,
		&s.MinTemperature,
		&s.MaxTemperature,
		&s.MinHumidity,
		&s.MaxHumidity,
	)
	if err != nil {
		return types.Statistics{}, fmt.Errorf("reading stats: %w", err)
	}
	return s, nil
}

func (r *repositoryImpl) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
