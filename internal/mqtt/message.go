package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ReadingMessage is the JSON payload a device publishes. APIKey carries the
// same pre-shared key the HTTP ingest endpoint expects in its header.
type ReadingMessage struct {
	DeviceID    string     `json:"deviceId"`
	Temperature *float64   `json:"temperature"`
	Humidity    *float64   `json:"humidity"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
	APIKey      string     `json:"apiKey"`
}

// DecodeReading parses payload. When the payload has no deviceId the last
// segment of topic is used.
func DecodeReading(topic string, payload []byte) (ReadingMessage, error) {
	var msg ReadingMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return ReadingMessage{}, fmt.Errorf("parse reading message: %w", err)
	}
	msg.DeviceID = strings.TrimSpace(msg.DeviceID)
	if msg.DeviceID == "" {
		msg.DeviceID = topicDeviceID(topic)
	}
	if msg.DeviceID == "" {
		return ReadingMessage{}, fmt.Errorf("reading message without device id on topic %q", topic)
	}
	return msg, nil
}

func topicDeviceID(topic string) string {
	i := strings.LastIndex(topic, "/")
	last := topic[i+1:]
	if last == "+" || last == "#" {
		return ""
	}
	return strings.TrimSpace(last)
}
