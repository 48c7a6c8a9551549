package core

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// SegmentVelocity is the estimated speed across one bracket.
type SegmentVelocity struct {
	LowIndex  int
	StartTime float64
	Velocity  float64
}

// ProfileSummary describes the speed over every bracket of a track.
type ProfileSummary struct {
	Segments []SegmentVelocity
	Min      float64
	Max      float64
	Mean     float64
	StdDev   float64
}

// Profile computes the velocity of every consecutive sample pair. Each
// segment is exactly what QueryVelocity returns for a time inside it.
func (c *VelocityCalculator) Profile() ProfileSummary {
	n := c.seq.Len()
	segments := make([]SegmentVelocity, 0, n-1)
	speeds := make([]float64, 0, n-1)

	for low := 0; low < n-1; low++ {
		start := c.seq.At(low).Timestamp
		est := c.bracketEstimate(start, low)
		segments = append(segments, SegmentVelocity{
			LowIndex:  low,
			StartTime: start,
			Velocity:  est.Velocity,
		})
		speeds = append(speeds, est.Velocity)
	}

	mean, std := stat.MeanStdDev(speeds, nil)
	if len(speeds) < 2 {
		std = 0
	}
	return ProfileSummary{
		Segments: segments,
		Min:      floats.Min(speeds),
		Max:      floats.Max(speeds),
		Mean:     mean,
		StdDev:   std,
	}
}
