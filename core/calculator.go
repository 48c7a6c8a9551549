package core

import "errors"

// Estimate is the outcome of a velocity query.
type Estimate struct {
	QueryTime float64
	// Velocity is metres per second.
	Velocity float64
	// AtOrigin is set when the query hit the first sample; Velocity is then
	// zero by definition and nothing else is populated.
	AtOrigin bool

	// LowIndex and HighIndex are the bracketing samples.
	LowIndex  int
	HighIndex int
	From, To  Vec3
	Distance  float64
	Elapsed   float64
}

// VelocityCalculator answers velocity queries against one sample sequence.
// It holds no mutable state and is safe for concurrent use.
type VelocityCalculator struct {
	seq *SampleSequence
}

// NewVelocityCalculator binds a calculator to seq.
func NewVelocityCalculator(seq *SampleSequence) (*VelocityCalculator, error) {
	if seq == nil {
		return nil, errors.New("nil sample sequence")
	}
	return &VelocityCalculator{seq: seq}, nil
}

// Sequence returns the underlying samples.
func (c *VelocityCalculator) Sequence() *SampleSequence { return c.seq }

// QueryVelocity estimates ground-track speed at time t from the two samples
// bracketing it.
//
// Queries outside the recorded range return a *Rejection with reason
// TooEarly or TooLate. A query at the first sample returns an Estimate with
// AtOrigin set and zero velocity. A lookup that fails for an in-range time
// returns a *Rejection with reason InvalidLookup, which satisfies
// errors.Is(err, ErrLookupInvariant).
func (c *VelocityCalculator) QueryVelocity(t float64) (Estimate, error) {
	if rej := c.seq.ValidateQueryTime(t); rej != nil {
		if rej.Reason == AtOrigin {
			return Estimate{QueryTime: t, AtOrigin: true, LowIndex: 0, HighIndex: 0}, nil
		}
		return Estimate{}, rej
	}

	n := c.seq.Len()
	low := c.seq.FindBracketIndex(t)
	if low < 0 || low >= n {
		return Estimate{}, &Rejection{Reason: InvalidLookup, QueryTime: t, Bound: float64(low)}
	}
	// The last sample has no successor; fold it into the final bracket.
	if low == n-1 {
		low--
	}

	return c.bracketEstimate(t, low), nil
}

func (c *VelocityCalculator) bracketEstimate(t float64, low int) Estimate {
	high := low + 1
	from := SampleToECEF(c.seq.At(low))
	to := SampleToECEF(c.seq.At(high))
	distance := Distance(from, to)
	elapsed := c.seq.TimeIncrement()

	return Estimate{
		QueryTime: t,
		Velocity:  Velocity(distance, elapsed),
		LowIndex:  low,
		HighIndex: high,
		From:      from,
		To:        to,
		Distance:  distance,
		Elapsed:   elapsed,
	}
}
