package device

import (
	"fmt"
	"math"
)

// Coordinate bounds in decimal degrees.
const (
	minLatitude  = -90.0
	maxLatitude  = 90.0
	minLongitude = -180.0
	maxLongitude = 180.0
)

// validateCoordinates checks that lat/lng are finite numbers within the
// WGS84 bounds. Telemetry with NaN or infinite coordinates is rejected
// rather than persisted.
func validateCoordinates(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsInf(lat, 0) {
		return fmt.Errorf("%w: latitude is not a finite number", ErrInvalidCoordinates)
	}
	if math.IsNaN(lng) || math.IsInf(lng, 0) {
		return fmt.Errorf("%w: longitude is not a finite number", ErrInvalidCoordinates)
	}
	if lat < minLatitude || lat > maxLatitude {
		return fmt.Errorf("%w: latitude %v out of range [%v, %v]", ErrInvalidCoordinates, lat, minLatitude, maxLatitude)
	}
	if lng < minLongitude || lng > maxLongitude {
		return fmt.Errorf("%w: longitude %v out of range [%v, %v]", ErrInvalidCoordinates, lng, minLongitude, maxLongitude)
	}
	return nil
}

// validateTelemetry checks optional initial readings supplied at registration.
// Coordinates are validated only when both are present; a partial pair is
// rejected because a point needs both axes.
func validateTelemetry(tel *Telemetry) error {
	if tel == nil {
		return nil
	}

	switch {
	case tel.Lat == nil && tel.Lng == nil:
		// No position supplied.
	case tel.Lat != nil && tel.Lng != nil:
		if err := validateCoordinates(*tel.Lat, *tel.Lng); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: latitude and longitude must be supplied together", ErrInvalidCoordinates)
	}

	if tel.Battery != nil && (*tel.Battery < 0 || *tel.Battery > 100) {
		return fmt.Errorf("device: battery percent %d out of range [0, 100]", *tel.Battery)
	}

	return nil
}
