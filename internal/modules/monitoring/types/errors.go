package types

import "errors"

// Sentinel errors for monitoring operations. Wrap them with fmt.Errorf("%w: ...")
// to add detail; callers match with errors.Is.
var (
	// ErrValidation marks input rejected before storage was touched.
	ErrValidation = errors.New("validation failed")

	// ErrStorage marks a failure of the backing store. The message shown to
	// callers is opaque.
	ErrStorage = errors.New("storage failure")

	// ErrDeviceNotFound is returned when an operation names an unknown device.
	ErrDeviceNotFound = errors.New("device not found")
)
