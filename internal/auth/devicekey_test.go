package auth

import (
	"errors"
	"testing"
)

func TestDeviceKeyGate_Authorize(t *testing.T) {
	tests := []struct {
		name      string
		secret    string
		presented string
		wantErr   error
	}{
		{name: "match", secret: "s3cret", presented: "s3cret"},
		{name: "mismatch", secret: "s3cret", presented: "guess", wantErr: ErrUnauthorized},
		{name: "prefix only", secret: "s3cret", presented: "s3c", wantErr: ErrUnauthorized},
		{name: "missing key", secret: "s3cret", presented: "", wantErr: ErrUnauthorized},
		{name: "no secret configured", secret: "", presented: "anything", wantErr: ErrServerMisconfigured},
		{name: "no secret and no key", secret: "", presented: "", wantErr: ErrServerMisconfigured},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := DeviceKeyGate{Secret: tt.secret}.Authorize(tt.presented)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Authorize() error = %v; want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Authorize() error = %v; want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDeviceKeyGate_Header(t *testing.T) {
	if got := (DeviceKeyGate{}).Header(); got != DefaultDeviceHeader {
		t.Errorf("Header() = %q; want %q", got, DefaultDeviceHeader)
	}
	if got := (DeviceKeyGate{HeaderName: "X-Key"}).Header(); got != "X-Key" {
		t.Errorf("Header() = %q; want X-Key", got)
	}
}
