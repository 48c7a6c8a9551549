package model

// PositionSample is one record of a recorded track: a geodetic position
// observed at a point in time.
type PositionSample struct {
	// Timestamp is seconds since the UNIX epoch.
	Timestamp float64

	LatitudeDegrees  float64
	LongitudeDegrees float64

	// HeightMeters is height above the WGS84 ellipsoid in metres. Raw track
	// files carry kilometres; the loader scales on read.
	HeightMeters float64
}

// TrackInfo summarises a loaded track for listings.
type TrackInfo struct {
	Name          string
	Source        string
	Samples       int
	Start         float64
	End           float64
	TimeIncrement float64
}
