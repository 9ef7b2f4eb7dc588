package monitoring

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"tempmon-server/internal/auth"
	"tempmon-server/internal/modules/monitoring/controller"
	"tempmon-server/internal/modules/monitoring/repository"
	"tempmon-server/internal/modules/monitoring/service"
	"tempmon-server/internal/mqtt"
)

// Feature is the wired monitoring module.
type Feature struct {
	Service *service.Service
	gate    auth.DeviceKeyGate
	logger  *slog.Logger
}

// RegisterFeature builds the monitoring module on repo and mounts its routes
// on r. Reads require a session resolved by sessions; ingestion requires the
// device key checked by gate.
func RegisterFeature(r chi.Router, repo repository.MonitoringRepository, sessions auth.SessionResolver, gate auth.DeviceKeyGate, logger *slog.Logger) *Feature {
	svc := service.NewService(repo, logger)
	controller.NewMonitoringController(svc).RegisterRoutes(r, controller.Access{
		Session:   auth.RequireSession(sessions),
		DeviceKey: auth.RequireDeviceKey(gate),
	})
	return &Feature{Service: svc, gate: gate, logger: logger}
}

// AttachMQTT makes subscriber feed readings into the module.
func (f *Feature) AttachMQTT(subscriber mqtt.MQTTSubscriber) {
	registerMQTTHandler(subscriber, f.Service, f.gate, f.logger)
}
