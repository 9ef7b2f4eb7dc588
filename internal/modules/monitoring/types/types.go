package types

import (
	"math"
	"time"
)

type Device struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Location  *string   `json:"location"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

// Reading is one stored sample. Temperature and humidity are integers in storage;
// fractional input is rounded on the way in.
type Reading struct {
	ID          int64     `json:"id"`
	DeviceID    string    `json:"deviceId"`
	Temperature int       `json:"temperature"`
	Humidity    int       `json:"humidity"`
	Timestamp   time.Time `json:"timestamp"`
}

// ReadingInput is what a device submits.
type ReadingInput struct {
	DeviceID    string     `json:"deviceId"`
	Temperature *float64   `json:"temperature"`
	Humidity    *float64   `json:"humidity"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
}

// Filter selects readings. Zero-valued options impose no constraint.
type Filter struct {
	DeviceID  string
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
}

// Statistics is all zeros when nothing matched; check Count to tell "no data"
// apart from data that averages to zero.
type Statistics struct {
	Count          int     `json:"count"`
	AvgTemperature float64 `json:"avgTemperature"`
	AvgHumidity    float64 `json:"avgHumidity"`
	MinTemperature int     `json:"minTemperature"`
	MaxTemperature int     `json:"maxTemperature"`
	MinHumidity    int     `json:"minHumidity"`
	MaxHumidity    int     `json:"maxHumidity"`
}

// AckResponse answers a device write.
type AckResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// DefaultDeviceName is the display name given to a device created on first contact.
func DefaultDeviceName(id string) string {
	return "Device " + id
}

// RoundSample converts a submitted value to its stored integer form. ok is
// false when the rounded value does not fit the 32-bit sample column.
func RoundSample(v float64) (n int, ok bool) {
	r := math.Round(v)
	if math.IsNaN(r) || r < math.MinInt32 || r > math.MaxInt32 {
		return 0, false
	}
	return int(r), true
}
