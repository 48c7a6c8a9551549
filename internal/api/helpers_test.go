package api

import (
	"testing"

	"github.com/signalsfoundry/ecef-velocity/core"
	"github.com/signalsfoundry/ecef-velocity/kb"
	"github.com/signalsfoundry/ecef-velocity/model"
)

const (
	testTrack = "equator"
	testStart = 1000.0
	testStep  = 10.0
)

// equatorSamples moves east along the equator by 0.001 degrees per sample.
func equatorSamples(n int) []model.PositionSample {
	samples := make([]model.PositionSample, n)
	for i := range samples {
		samples[i] = model.PositionSample{
			Timestamp:        testStart + float64(i)*testStep,
			LongitudeDegrees: 0.001 * float64(i),
		}
	}
	return samples
}

func newTestStore(t *testing.T) *kb.TrackStore {
	t.Helper()

	seq, err := core.NewSampleSequence(equatorSamples(6))
	if err != nil {
		t.Fatalf("NewSampleSequence: %v", err)
	}
	calc, err := core.NewVelocityCalculator(seq)
	if err != nil {
		t.Fatalf("NewVelocityCalculator: %v", err)
	}
	store := kb.NewTrackStore()
	if err := store.AddTrack(&kb.Track{Name: testTrack, Source: "memory", Calculator: calc}); err != nil {
		t.Fatalf("AddTrack: %v", err)
	}
	return store
}

// bracketSpeed is the speed across samples (low, low+1) of equatorSamples.
func bracketSpeed(low int) float64 {
	s := equatorSamples(low + 2)
	return core.Distance(core.SampleToECEF(s[low]), core.SampleToECEF(s[low+1])) / testStep
}
