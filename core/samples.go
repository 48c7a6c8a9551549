package core

import (
	"errors"
	"fmt"
	"math"

	"github.com/signalsfoundry/ecef-velocity/model"
)

// DefaultMaxSamples bounds how many samples a sequence keeps when no
// WithMaxSamples option is given.
const DefaultMaxSamples = 1000

var (
	ErrInsufficientSamples    = errors.New("at least two samples are required")
	ErrNonMonotonicTimestamps = errors.New("sample timestamps must be strictly increasing")
	ErrNonFiniteSample        = errors.New("sample contains a non-finite value")
	ErrInvalidMaxSamples      = errors.New("max samples must be at least 2")
)

// SampleSequence is an ordered, immutable run of position samples recorded at
// a fixed interval. The interval is taken from the first two samples and
// assumed to hold for the whole sequence; irregular spacing is not detected
// and degrades lookups.
type SampleSequence struct {
	samples       []model.PositionSample
	timeIncrement float64
	dropped       int
}

type sequenceOptions struct {
	maxSamples int
}

// SequenceOption configures NewSampleSequence.
type SequenceOption func(*sequenceOptions)

// WithMaxSamples caps the number of samples kept. Samples past the cap are
// ignored.
func WithMaxSamples(n int) SequenceOption {
	return func(o *sequenceOptions) {
		o.maxSamples = n
	}
}

// NewSampleSequence copies samples into an immutable sequence and computes
// the time increment. It rejects sequences that break the ordering and
// size preconditions rather than tolerating them.
func NewSampleSequence(samples []model.PositionSample, opts ...SequenceOption) (*SampleSequence, error) {
	o := sequenceOptions{maxSamples: DefaultMaxSamples}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxSamples < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidMaxSamples, o.maxSamples)
	}

	dropped := 0
	if len(samples) > o.maxSamples {
		dropped = len(samples) - o.maxSamples
		samples = samples[:o.maxSamples]
	}
	if len(samples) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInsufficientSamples, len(samples))
	}

	for i, s := range samples {
		if !isFinite(s.Timestamp) || !isFinite(s.LatitudeDegrees) ||
			!isFinite(s.LongitudeDegrees) || !isFinite(s.HeightMeters) {
			return nil, fmt.Errorf("%w: index %d", ErrNonFiniteSample, i)
		}
		if i > 0 && s.Timestamp <= samples[i-1].Timestamp {
			return nil, fmt.Errorf("%w: index %d (%f) follows %f",
				ErrNonMonotonicTimestamps, i, s.Timestamp, samples[i-1].Timestamp)
		}
	}

	owned := make([]model.PositionSample, len(samples))
	copy(owned, samples)

	return &SampleSequence{
		samples:       owned,
		timeIncrement: owned[1].Timestamp - owned[0].Timestamp,
		dropped:       dropped,
	}, nil
}

// Len returns the number of samples.
func (s *SampleSequence) Len() int { return len(s.samples) }

// At returns the sample at index i. It panics if i is out of range.
func (s *SampleSequence) At(i int) model.PositionSample { return s.samples[i] }

// TimeIncrement is the sampling interval in seconds.
func (s *SampleSequence) TimeIncrement() float64 { return s.timeIncrement }

// Start returns the first recorded timestamp.
func (s *SampleSequence) Start() float64 { return s.samples[0].Timestamp }

// End returns the last recorded timestamp.
func (s *SampleSequence) End() float64 { return s.samples[len(s.samples)-1].Timestamp }

// Dropped reports how many input samples were ignored because of the cap.
func (s *SampleSequence) Dropped() int { return s.dropped }

// FindBracketIndex returns the index k such that
// samples[k].Timestamp <= t < samples[k].Timestamp + TimeIncrement, or -1 if
// no such sample exists.
//
// The containment test runs before the search descends, so a query landing
// exactly on a sample resolves to that sample.
func (s *SampleSequence) FindBracketIndex(t float64) int {
	low, high := 0, len(s.samples)-1
	for low <= high {
		mid := (low + high) / 2
		gap := t - s.samples[mid].Timestamp

		switch {
		case gap >= 0 && gap < s.timeIncrement:
			return mid
		case s.samples[mid].Timestamp < t:
			low = mid + 1
		default:
			high = mid - 1
		}
	}
	return -1
}

// ValidateQueryTime reports why t cannot be used for a computed estimate, or
// nil when it can. A query at the first sample yields an AtOrigin rejection:
// velocity there is defined as zero rather than computed.
//
// Checks run in order: too early, too late, at origin.
func (s *SampleSequence) ValidateQueryTime(t float64) *Rejection {
	switch {
	case t < s.Start():
		return &Rejection{Reason: TooEarly, QueryTime: t, Bound: s.Start()}
	case t > s.End():
		return &Rejection{Reason: TooLate, QueryTime: t, Bound: s.End()}
	case t == s.Start():
		return &Rejection{Reason: AtOrigin, QueryTime: t, Bound: s.Start()}
	}
	return nil
}

// IsQueryTimeValid reports whether t can be used for a computed estimate.
func (s *SampleSequence) IsQueryTimeValid(t float64) bool {
	return s.ValidateQueryTime(t) == nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
