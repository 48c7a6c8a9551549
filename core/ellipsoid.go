package core

import "math"

// WGS84 reference ellipsoid axes, metres.
const (
	// WGS84A is the semi-major (equatorial) axis.
	WGS84A = 6378137.000
	// WGS84B is the semi-minor (polar) axis.
	WGS84B = 6356752.31424518
)

// pi is pinned to a literal so conversions are reproducible bit for bit
// against recorded reference values.
const pi = 3.14159265358979323846

// Squares are float64 products rather than exact constant expressions, which
// keeps rounding identical to the reference computation.
var (
	aSquared = squared(WGS84A)
	bSquared = squared(WGS84B)

	// eccentricitySquared is (a² - b²) / a².
	eccentricitySquared = (aSquared - bSquared) / aSquared
)

func squared(v float64) float64 { return v * v }

// DegreesToRadians converts an angle in degrees to radians.
func DegreesToRadians(deg float64) float64 {
	return (pi * deg) / 180
}

// RadiansToDegrees converts an angle in radians to degrees.
func RadiansToDegrees(rad float64) float64 {
	return (rad * 180) / pi
}

// RadiusOfCurvature returns the prime-vertical radius of curvature of the
// ellipsoid at the given geodetic latitude, in metres.
//
// sin²Φ is taken through the half-angle identity 0.5·(1 − cos 2Φ).
func RadiusOfCurvature(latitudeDegrees float64) float64 {
	sineSquared := 0.5 * (1 - math.Cos(DegreesToRadians(2*latitudeDegrees)))
	return WGS84A / math.Sqrt(1-eccentricitySquared*sineSquared)
}
