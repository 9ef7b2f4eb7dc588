package monitoring

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"tempmon-server/internal/auth"
	"tempmon-server/internal/modules/monitoring/types"
	"tempmon-server/internal/mqtt"
)

type fakeSubscriber struct {
	handler mqtt.MessageHandler
}

func (f *fakeSubscriber) SetMessageHandler(h mqtt.MessageHandler) { f.handler = h }

type fakeRecorder struct {
	inputs []types.ReadingInput
	err    error
}

func (f *fakeRecorder) RecordReading(_ context.Context, in types.ReadingInput) (types.Reading, error) {
	f.inputs = append(f.inputs, in)
	return types.Reading{DeviceID: in.DeviceID}, f.err
}

func f64(v float64) *float64 { return &v }

func TestMQTTHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	msg := mqtt.ReadingMessage{DeviceID: "a", Temperature: f64(20), Humidity: f64(40), APIKey: "secret"}

	tests := []struct {
		name       string
		gate       auth.DeviceKeyGate
		msg        mqtt.ReadingMessage
		recordErr  error
		wantErr    error
		wantStored int
	}{
		{name: "valid key is recorded", gate: auth.DeviceKeyGate{Secret: "secret"}, msg: msg, wantStored: 1},
		{name: "wrong key is dropped", gate: auth.DeviceKeyGate{Secret: "other"}, msg: msg, wantErr: auth.ErrUnauthorized},
		{name: "unconfigured secret", gate: auth.DeviceKeyGate{}, msg: msg, wantErr: auth.ErrServerMisconfigured},
		{name: "record failure surfaces", gate: auth.DeviceKeyGate{Secret: "secret"}, msg: msg, recordErr: types.ErrStorage, wantErr: types.ErrStorage, wantStored: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &fakeSubscriber{}
			rec := &fakeRecorder{err: tt.recordErr}
			registerMQTTHandler(sub, rec, tt.gate, logger)
			if sub.handler == nil {
				t.Fatal("handler not registered")
			}

			err := sub.handler(context.Background(), tt.msg)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("handler error = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("handler error = %v, want %v", err, tt.wantErr)
			}
			if len(rec.inputs) != tt.wantStored {
				t.Errorf("recorded %d readings, want %d", len(rec.inputs), tt.wantStored)
			}
		})
	}
}
