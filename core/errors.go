package core

import (
	"errors"
	"fmt"
)

// ErrLookupInvariant marks a bracket search that produced an impossible
// index for a time already validated as in range. It signals a defect in the
// lookup or in the uniform-interval assumption, never bad input.
var ErrLookupInvariant = errors.New("bracket lookup returned an out-of-range index")

// RejectionReason classifies why a query did not produce a computed velocity.
type RejectionReason int

const (
	// TooEarly: the query precedes the first sample. Bound is the minimum.
	TooEarly RejectionReason = iota + 1
	// TooLate: the query follows the last sample. Bound is the maximum.
	TooLate
	// AtOrigin: the query is exactly the first sample, where velocity is
	// defined as zero.
	AtOrigin
	// InvalidLookup: the search failed for an in-range time.
	InvalidLookup
)

func (r RejectionReason) String() string {
	switch r {
	case TooEarly:
		return "too_early"
	case TooLate:
		return "too_late"
	case AtOrigin:
		return "at_origin"
	case InvalidLookup:
		return "invalid_lookup"
	default:
		return fmt.Sprintf("RejectionReason(%d)", int(r))
	}
}

// Rejection is returned in place of a computed velocity.
type Rejection struct {
	Reason    RejectionReason
	QueryTime float64
	// Bound is the violated time limit for TooEarly/TooLate, the origin time
	// for AtOrigin, and the looked-up index for InvalidLookup.
	Bound float64
}

func (r *Rejection) Error() string {
	switch r.Reason {
	case TooEarly:
		return fmt.Sprintf("time %f too small for time-range (minimum %f)", r.QueryTime, r.Bound)
	case TooLate:
		return fmt.Sprintf("time %f too large for time-range (maximum %f)", r.QueryTime, r.Bound)
	case AtOrigin:
		return fmt.Sprintf("time %f is the starting position; velocity is defined as 0", r.QueryTime)
	case InvalidLookup:
		return fmt.Sprintf("%s: time %f resolved to index %d", ErrLookupInvariant, r.QueryTime, int(r.Bound))
	default:
		return fmt.Sprintf("query at %f rejected: %s", r.QueryTime, r.Reason)
	}
}

// Unwrap exposes ErrLookupInvariant for InvalidLookup rejections.
func (r *Rejection) Unwrap() error {
	if r.Reason == InvalidLookup {
		return ErrLookupInvariant
	}
	return nil
}

// IsUserError reports whether the rejection stems from the query itself
// rather than from an internal defect.
func (r *Rejection) IsUserError() bool {
	return r.Reason == TooEarly || r.Reason == TooLate
}

// AsRejection unwraps err into a *Rejection if it holds one.
func AsRejection(err error) (*Rejection, bool) {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}
