// Package geofence checks submitted work coordinates against a site.
package geofence

import (
	"math"

	"github.com/fieldops/maintenance-ticketing/internal/domain"
)

// EarthRadiusMeters is the mean radius used by the spherical approximation.
const EarthRadiusMeters = 6371000.0

const (
	ReasonMissingCoordinates = "missing coordinates"
	ReasonInvalidCoordinates = "invalid coordinates"
	ReasonOutsideTolerance   = "outside tolerance"
)

// Result describes one verification.
type Result struct {
	IsValid         bool
	DistanceMeters  float64
	ToleranceMeters float64
	AccuracyMeters  *float64
	// LowAccuracy flags a reported accuracy radius wider than the tolerance.
	// It annotates the result and never changes IsValid.
	LowAccuracy bool
	Reason      string
}

// Verify compares actual against expected. Missing or malformed coordinates
// fail closed.
func Verify(expected, actual *domain.Coordinate, accuracy *float64, toleranceMeters float64) Result {
	res := Result{ToleranceMeters: toleranceMeters, AccuracyMeters: accuracy}
	if accuracy != nil && *accuracy > toleranceMeters {
		res.LowAccuracy = true
	}
	if expected == nil || actual == nil {
		res.Reason = ReasonMissingCoordinates
		return res
	}
	if !ValidCoordinate(*expected) || !ValidCoordinate(*actual) {
		res.Reason = ReasonInvalidCoordinates
		return res
	}
	res.DistanceMeters = Distance(*expected, *actual)
	res.IsValid = res.DistanceMeters <= toleranceMeters
	if !res.IsValid {
		res.Reason = ReasonOutsideTolerance
	}
	return res
}

// Distance returns the Haversine great-circle distance in meters.
func Distance(a, b domain.Coordinate) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusMeters * c
}

// ValidCoordinate reports whether c is a finite, in-range WGS84 position.
func ValidCoordinate(c domain.Coordinate) bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lng, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
