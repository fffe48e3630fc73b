package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when no device matches the given token
	// or (owner identity, sub-identity) pair.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when registering a device whose token is
	// already in use. The caller must choose a new token and retry.
	ErrDeviceExists = errors.New("device: token already exists")

	// ErrPairExists is returned when an insert loses the sub-identity
	// allocation race and retries are exhausted.
	ErrPairExists = errors.New("device: owner/sub-identity pair already exists")

	// ErrInvalidCoordinates is returned when a ping carries coordinates that
	// are missing or not finite numbers.
	ErrInvalidCoordinates = errors.New("device: invalid coordinates")

	// ErrSignalRequired is returned when a signal-only update omits the
	// signal strength.
	ErrSignalRequired = errors.New("device: signal strength is required")
)
