package core

import (
	"math"

	"github.com/signalsfoundry/ecef-velocity/model"
)

// Vec3 is an ECEF position in metres.
type Vec3 struct {
	X, Y, Z float64
}

// DistanceTo returns the straight-line distance between two points.
func (v Vec3) DistanceTo(other Vec3) float64 {
	dx := other.X - v.X
	dy := other.Y - v.Y
	dz := other.Z - v.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// LLAToECEF converts a geodetic position to ECEF. Latitude and longitude are
// radians, height is metres above the ellipsoid and radius is the
// prime-vertical radius of curvature at that latitude.
func LLAToECEF(latitude, longitude, height, radius float64) Vec3 {
	return Vec3{
		X: (radius + height) * (math.Cos(latitude) * math.Cos(longitude)),
		Y: (radius + height) * (math.Cos(latitude) * math.Sin(longitude)),
		Z: ((bSquared/aSquared)*radius + height) * math.Sin(latitude),
	}
}

// SampleToECEF converts a recorded sample to ECEF.
func SampleToECEF(s model.PositionSample) Vec3 {
	return LLAToECEF(
		DegreesToRadians(s.LatitudeDegrees),
		DegreesToRadians(s.LongitudeDegrees),
		s.HeightMeters,
		RadiusOfCurvature(s.LatitudeDegrees),
	)
}

// Geodetic is a WGS84 latitude/longitude/height triple.
type Geodetic struct {
	LatitudeDegrees  float64
	LongitudeDegrees float64
	HeightMeters     float64
}

// ECEFToGeodetic inverts LLAToECEF using Bowring's fixed-point iteration on
// latitude. Longitude is returned in (-180, 180].
func ECEFToGeodetic(p Vec3) Geodetic {
	const (
		maxIterations = 16
		tolerance     = 1e-14
	)

	lon := math.Atan2(p.Y, p.X)
	r := math.Hypot(p.X, p.Y)

	lat := math.Atan2(p.Z, r*(1-eccentricitySquared))
	for i := 0; i < maxIterations; i++ {
		sinLat := math.Sin(lat)
		n := WGS84A / math.Sqrt(1-eccentricitySquared*sinLat*sinLat)
		next := math.Atan2(p.Z+eccentricitySquared*n*sinLat, r)
		if math.Abs(next-lat) < tolerance {
			lat = next
			break
		}
		lat = next
	}

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)
	n := WGS84A / math.Sqrt(1-eccentricitySquared*sinLat*sinLat)

	var height float64
	if math.Abs(cosLat) > 1e-10 {
		height = r/cosLat - n
	} else {
		// Near the poles r/cos φ is ill-conditioned.
		height = math.Abs(p.Z)/math.Abs(sinLat) - n*(1-eccentricitySquared)
	}

	return Geodetic{
		LatitudeDegrees:  RadiansToDegrees(lat),
		LongitudeDegrees: RadiansToDegrees(lon),
		HeightMeters:     height,
	}
}
