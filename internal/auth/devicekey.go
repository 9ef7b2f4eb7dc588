package auth

import (
	"crypto/subtle"
	"fmt"
)

// DefaultDeviceHeader is the request header carrying the device key when none
// is configured.
const DefaultDeviceHeader = "X-DEVICE-API-KEY"

// DeviceKeyGate checks a presented device key against the configured secret.
type DeviceKeyGate struct {
	HeaderName string
	Secret     string
}

// Header returns the configured header name or DefaultDeviceHeader.
func (g DeviceKeyGate) Header() string {
	if g.HeaderName == "" {
		return DefaultDeviceHeader
	}
	return g.HeaderName
}

// Authorize returns nil when presented equals the secret. A missing secret is
// reported before the presented key is looked at.
func (g DeviceKeyGate) Authorize(presented string) error {
	if g.Secret == "" {
		return fmt.Errorf("%w: device api key is not set", ErrServerMisconfigured)
	}
	if presented == "" {
		return fmt.Errorf("%w: missing device key", ErrUnauthorized)
	}
	if subtle.ConstantTimeCompare([]byte(presented), []byte(g.Secret)) != 1 {
		return fmt.Errorf("%w: invalid device key", ErrUnauthorized)
	}
	return nil
}
