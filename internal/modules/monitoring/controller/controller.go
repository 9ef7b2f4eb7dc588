package controller

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tempmon-server/internal/modules/monitoring/types"
)

// MonitoringService is the part of service.Service the HTTP layer calls.
type MonitoringService interface {
	RecordReading(ctx context.Context, in types.ReadingInput) (types.Reading, error)
	ListDevices(ctx context.Context) ([]types.Device, error)
	RegisterDevice(ctx context.Context, d types.Device) (types.Device, error)
	SetDeviceActive(ctx context.Context, id string, active bool) error
	GetReadings(ctx context.Context, f types.Filter) ([]types.Reading, error)
	GetLatestReadings(ctx context.Context, deviceID string, limit int) ([]types.Reading, error)
	GetStats(ctx context.Context, f types.Filter) (types.Statistics, error)
	ExportCSV(ctx context.Context, w io.Writer, f types.Filter) error
}

// Access holds the middleware for each capability a route can require.
type Access struct {
	Session   func(http.Handler) http.Handler
	DeviceKey func(http.Handler) http.Handler
}

type MonitoringController interface {
	RegisterRoutes(r chi.Router, access Access)
}

type monitoringControllerImpl struct {
	service MonitoringService
}

func NewMonitoringController(service MonitoringService) MonitoringController {
	return &monitoringControllerImpl{service: service}
}

// RegisterRoutes mounts the API under /api/v1. Each group requires exactly one
// capability; /api/v1/health requires none.
func (c *monitoringControllerImpl) RegisterRoutes(r chi.Router, access Access) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", c.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(access.DeviceKey)
			r.Post("/readings", c.handleAddReading)
		})

		r.Group(func(r chi.Router) {
			r.Use(access.Session)
			r.Get("/private", c.handlePrivate)
			r.Get("/devices", c.handleDevices)
			r.Put("/devices/{id}", c.handleRegisterDevice)
			r.Patch("/devices/{id}/active", c.handleSetDeviceActive)
			r.Get("/readings", c.handleReadings)
			r.Get("/readings/latest", c.handleLatest)
			r.Get("/readings/export.csv", c.handleExportCSV)
			r.Get("/stats", c.handleStats)
		})
	})
}
