package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"tempmon-server/internal/config"
)

const publishTimeout = 5 * time.Second

// Publisher sends reading messages the way a device does.
type Publisher struct {
	client mqtt.Client
	cfg    config.Config
	logger *slog.Logger
}

func NewPublisher(cfg config.Config, logger *slog.Logger) *Publisher {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID + "-publisher")
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(publishTimeout)

	return &Publisher{client: mqtt.NewClient(opts), cfg: cfg, logger: logger}
}

func (p *Publisher) Connect(ctx context.Context) error {
	token := p.client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

// PublishReading publishes msg on the device's topic. Retained messages are
// delivered to a subscriber that connects later.
func (p *Publisher) PublishReading(msg ReadingMessage, retained bool) error {
	if !p.client.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}

	topic := ReadingTopic(p.cfg.MQTTTopic, msg.DeviceID)
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal reading: %w", err)
	}

	token := p.client.Publish(topic, 1, retained, data)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("publish reading: %w", token.Error())
	}

	p.logger.Debug("published reading", "topic", topic, "device_id", msg.DeviceID)
	return nil
}

func (p *Publisher) Disconnect() {
	p.client.Disconnect(250)
}

// ReadingTopic fills the trailing wildcard of the subscription filter with
// deviceID. A filter without one is used as is.
func ReadingTopic(filter, deviceID string) string {
	if prefix, ok := strings.CutSuffix(filter, "/+"); ok {
		return prefix + "/" + deviceID
	}
	if prefix, ok := strings.CutSuffix(filter, "/#"); ok {
		return prefix + "/" + deviceID
	}
	return filter
}
