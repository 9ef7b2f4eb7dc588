package monitoring

import (
	"context"
	"fmt"
	"log/slog"

	"tempmon-server/internal/auth"
	"tempmon-server/internal/modules/monitoring/types"
	"tempmon-server/internal/mqtt"
)

type readingRecorder interface {
	RecordReading(ctx context.Context, in types.ReadingInput) (types.Reading, error)
}

// registerMQTTHandler routes MQTT readings through the device gate and into
// the recorder, the same path HTTP ingestion takes.
func registerMQTTHandler(subscriber mqtt.MQTTSubscriber, recorder readingRecorder, gate auth.DeviceKeyGate, logger *slog.Logger) {
	subscriber.SetMessageHandler(func(ctx context.Context, msg mqtt.ReadingMessage) error {
		if err := gate.Authorize(msg.APIKey); err != nil {
			logger.Warn("mqtt reading rejected", "device_id", msg.DeviceID, "error", err)
			return fmt.Errorf("authorize device %q: %w", msg.DeviceID, err)
		}

		reading, err := recorder.RecordReading(ctx, types.ReadingInput{
			DeviceID:    msg.DeviceID,
			Temperature: msg.Temperature,
			Humidity:    msg.Humidity,
			Timestamp:   msg.Timestamp,
		})
		if err != nil {
			return fmt.Errorf("record reading from %q: %w", msg.DeviceID, err)
		}

		logger.Debug("stored mqtt reading",
			"device_id", reading.DeviceID,
			"reading_id", reading.ID,
		)
		return nil
	})
}
