package domain

import (
	"fmt"
	"time"
)

// PositionFix is a single raw reading from a location source.
type PositionFix struct {
	Latitude   float64
	Longitude  float64
	CapturedAt time.Time

	// Accuracy in meters as reported by the device, zero when unknown.
	Accuracy float64
}

// WatchOptions configures a location subscription or a one-shot request.
type WatchOptions struct {
	HighAccuracy bool
	MaxStaleness time.Duration
	Timeout      time.Duration
}

type LocationErrorCode string

const (
	LocationPermissionDenied    LocationErrorCode = "permission_denied"
	LocationPositionUnavailable LocationErrorCode = "position_unavailable"
	LocationTimeout             LocationErrorCode = "timeout"
)

// LocationError is reported by a location source. It is never fatal.
type LocationError struct {
	Code    LocationErrorCode
	Message string
}

func (e *LocationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("location error: %s", e.Code)
	}
	return fmt.Sprintf("location error: %s: %s", e.Code, e.Message)
}

// LocationEvent carries either a fix or an error from a subscription.
type LocationEvent struct {
	Fix PositionFix
	Err *LocationError
}
