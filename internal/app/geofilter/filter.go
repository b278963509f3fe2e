package geofilter

import (
	"math"
	"time"

	"github.com/PabloGalante/rumbo-agent/internal/domain"
)

const earthRadiusMeters = 6371000.0

// distanceTolerance absorbs haversine float noise at the threshold.
const distanceTolerance = 1e-6

// Decision is the outcome of offering a fix to the filter.
type Decision int

const (
	Reject Decision = iota
	Accept
)

func (d Decision) String() string {
	if d == Accept {
		return "accept"
	}
	return "reject"
}

// Thresholds bound how often a stationary device produces accepted positions.
// A fix is accepted when it moved strictly more than MinDistanceMeters or
// when strictly more than MaxAge passed since the last accepted fix.
// Distances within distanceTolerance (one micrometre) of the threshold count
// as on it.
type Thresholds struct {
	MinDistanceMeters float64
	MaxAge            time.Duration
}

// DefaultThresholds returns 20 meters / 60 seconds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinDistanceMeters: 20,
		MaxAge:            60 * time.Second,
	}
}

// Consider decides whether fix should replace lastAccepted.
// The first fix (lastAccepted == nil) is always accepted.
func (t Thresholds) Consider(fix domain.PositionFix, lastAccepted *domain.PositionFix) Decision {
	if lastAccepted == nil {
		return Accept
	}

	if Distance(*lastAccepted, fix) > t.MinDistanceMeters+distanceTolerance {
		return Accept
	}
	if fix.CapturedAt.Sub(lastAccepted.CapturedAt) > t.MaxAge {
		return Accept
	}
	return Reject
}

// Consider applies DefaultThresholds.
func Consider(fix domain.PositionFix, lastAccepted *domain.PositionFix) Decision {
	return DefaultThresholds().Consider(fix, lastAccepted)
}

// Distance returns the great-circle (haversine) distance between two fixes in meters.
func Distance(a, b domain.PositionFix) float64 {
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLat := lat2 - lat1
	dLon := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	// rounding can push h a hair above 1 for antipodal points
	h = math.Min(1, h)

	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
