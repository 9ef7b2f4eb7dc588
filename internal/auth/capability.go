package auth

import "context"

// User is the authenticated end user behind a session.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Capability is what a request was authorized as. Implementations are closed
// to this package.
type Capability interface {
	Kind() string
	capability()
}

// SessionAuth is granted to an end user with a valid session.
type SessionAuth struct {
	User User
}

func (SessionAuth) Kind() string { return "session" }
func (SessionAuth) capability()  {}

// DeviceKeyAuth is granted to a caller presenting the device secret.
type DeviceKeyAuth struct{}

func (DeviceKeyAuth) Kind() string { return "device_key" }
func (DeviceKeyAuth) capability()  {}

type ctxKey struct{}

// WithCapability returns ctx carrying c, replacing any capability already there.
func WithCapability(ctx context.Context, c Capability) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// CapabilityFrom returns the capability stored in ctx.
func CapabilityFrom(ctx context.Context) (Capability, bool) {
	c, ok := ctx.Value(ctxKey{}).(Capability)
	return c, ok
}

// SessionUser returns the session user when ctx was authorized as a session.
func SessionUser(ctx context.Context) (User, bool) {
	c, ok := CapabilityFrom(ctx)
	if !ok {
		return User{}, false
	}
	s, ok := c.(SessionAuth)
	if !ok {
		return User{}, false
	}
	return s.User, true
}
