package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tempmon-server/internal/modules/monitoring/query"
	"tempmon-server/internal/modules/monitoring/types"
)

type deviceModel struct {
	ID        string `gorm:"primaryKey"`
	Name      string `gorm:"not null"`
	Location  *string
	IsActive  bool      `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"not null"`
}

func (deviceModel) TableName() string { return "devices" }

func (m deviceModel) toDevice() types.Device {
	return types.Device{
		ID:        m.ID,
		Name:      m.Name,
		Location:  m.Location,
		IsActive:  m.IsActive,
		CreatedAt: m.CreatedAt.UTC(),
	}
}

type readingModel struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	DeviceID    string    `gorm:"not null;index:idx_sensor_readings_device_ts,priority:1"`
	Temperature int       `gorm:"not null"`
	Humidity    int       `gorm:"not null"`
	RecordedAt  time.Time `gorm:"not null;index:idx_sensor_readings_device_ts,priority:2;index:idx_sensor_readings_ts"`
	Device      deviceModel `gorm:"foreignKey:DeviceID;references:ID"`
}

func (readingModel) TableName() string { return "sensor_readings" }

func (m readingModel) toReading() types.Reading {
	return types.Reading{
		ID:          m.ID,
		DeviceID:    m.DeviceID,
		Temperature: m.Temperature,
		Humidity:    m.Humidity,
		Timestamp:   m.RecordedAt.UTC(),
	}
}

type statsRow struct {
	Count          int
	AvgTemperature float64
	AvgHumidity    float64
	MinTemperature int
	MaxTemperature int
	MinHumidity    int
	MaxHumidity    int
}

const statsSelect = "COUNT(*) AS count, " +
	"COALESCE(AVG(temperature), 0) AS avg_temperature, " +
	"COALESCE(AVG(humidity), 0) AS avg_humidity, " +
	"COALESCE(MIN(temperature), 0) AS min_temperature, " +
	"COALESCE(MAX(temperature), 0) AS max_temperature, " +
	"COALESCE(MIN(humidity), 0) AS min_humidity, " +
	"COALESCE(MAX(humidity), 0) AS max_humidity"

type gormRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormRepository serves the same contract as NewRepository on any gorm
// dialect. Used for Postgres.
func NewGormRepository(db *gorm.DB) MonitoringRepository {
	return &gormRepository{db: db, now: time.Now}
}

// AutoMigrate creates or updates the tables backing the gorm store.
func AutoMigrate(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).AutoMigrate(&deviceModel{}, &readingModel{})
}

func (r *gormRepository) EnsureDevice(ctx context.Context, id string) (types.Device, error) {
	row := deviceModel{
		ID:        id,
		Name:      types.DefaultDeviceName(id),
		IsActive:  true,
		CreatedAt: r.now().UTC(),
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(&row).Error
	if err != nil {
		return types.Device{}, fmt.Errorf("ensure device %q: %w", id, err)
	}
	return r.getDevice(ctx, id)
}

func (r *gormRepository) RegisterDevice(ctx context.Context, d types.Device) (types.Device, error) {
	row := deviceModel{
		ID:        d.ID,
		Name:      d.Name,
		Location:  d.Location,
		IsActive:  true,
		CreatedAt: r.now().UTC(),
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "location"}),
		}).
		Create(&row).Error
	if err != nil {
		return types.Device{}, fmt.Errorf("register device %q: %w", d.ID, err)
	}
	return r.getDevice(ctx, d.ID)
}

func (r *gormRepository) getDevice(ctx context.Context, id string) (types.Device, error) {
	var row deviceModel
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.Device{}, fmt.Errorf("%w: %q", types.ErrDeviceNotFound, id)
	}
	if err != nil {
		return types.Device{}, fmt.Errorf("get device %q: %w", id, err)
	}
	return row.toDevice(), nil
}

func (r *gormRepository) SetDeviceActive(ctx context.Context, id string, active bool) error {
	res := r.db.WithContext(ctx).Model(&deviceModel{}).Where("id = ?", id).Update("is_active", active)
	if res.Error != nil {
		return fmt.Errorf("set device %q active: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %q", types.ErrDeviceNotFound, id)
	}
	return nil
}

func (r *gormRepository) ListActiveDevices(ctx context.Context) ([]types.Device, error) {
	var rows []deviceModel
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("created_at, id").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]types.Device, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDevice())
	}
	return out, nil
}

func (r *gormRepository) AppendReading(ctx context.Context, deviceID string, temperature, humidity int, ts time.Time) (types.Reading, error) {
	row := readingModel{
		DeviceID:    deviceID,
		Temperature: temperature,
		Humidity:    humidity,
		RecordedAt:  ts.UTC(),
	}
	if err := r.db.WithContext(ctx).Omit("Device").Create(&row).Error; err != nil {
		return types.Reading{}, fmt.Errorf("insert reading: %w", err)
	}
	return row.toReading(), nil
}

// filtered applies the shared predicate list one Where call at a time.
func (r *gormRepository) filtered(ctx context.Context, f types.Filter) *gorm.DB {
	tx := r.db.WithContext(ctx).Model(&readingModel{})
	for _, p := range query.Predicates(f, nil) {
		tx = tx.Where(p.SQL(), p.Value)
	}
	return tx
}

func (r *gormRepository) QueryReadings(ctx context.Context, f types.Filter) ([]types.Reading, error) {
	var rows []readingModel
	err := r.filtered(ctx, f).
		Order(query.ColumnTimestamp + " DESC, id DESC").
		Limit(f.Limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]types.Reading, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toReading())
	}
	return out, nil
}

func (r *gormRepository) Stats(ctx context.Context, f types.Filter) (types.Statistics, error) {
	var row statsRow
	if err := r.filtered(ctx, f).Select(statsSelect).Scan(&row).Error; err != nil {
		return types.Statistics{}, fmt.Errorf("reading stats: %w", err)
	}
	return types.Statistics(row), nil
}

func (r *gormRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
