package api

import (
	"fmt"
	"math"
	"strings"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/ecef-velocity/internal/units"
)

// Request field names.
const (
	fieldTrack     = "track"
	fieldTimestamp = "timestamp"
	fieldUnits     = "units"
)

// QueryRequest is a validated QueryVelocity request.
type QueryRequest struct {
	Track     string
	Timestamp float64
	Units     string
}

// ParseQueryRequest validates a QueryVelocity request. An absent units field
// resolves to defaultUnits.
func ParseQueryRequest(in *structpb.Struct, defaultUnits string) (QueryRequest, error) {
	if in == nil {
		return QueryRequest{}, fmt.Errorf("%w: request is required", ErrInvalidRequest)
	}
	if err := rejectUnknownFields(in, fieldTrack, fieldTimestamp, fieldUnits); err != nil {
		return QueryRequest{}, err
	}

	track, err := requiredString(in, fieldTrack)
	if err != nil {
		return QueryRequest{}, err
	}

	tsVal, ok := in.GetFields()[fieldTimestamp]
	if !ok {
		return QueryRequest{}, fmt.Errorf("%w: %s is required", ErrInvalidRequest, fieldTimestamp)
	}
	num, ok := tsVal.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return QueryRequest{}, fmt.Errorf("%w: %s must be a number", ErrInvalidRequest, fieldTimestamp)
	}
	if math.IsNaN(num.NumberValue) || math.IsInf(num.NumberValue, 0) {
		return QueryRequest{}, fmt.Errorf("%w: %s must be finite", ErrInvalidRequest, fieldTimestamp)
	}

	unit := defaultUnits
	if unit == "" {
		unit = units.MPS
	}
	if v, ok := in.GetFields()[fieldUnits]; ok {
		s, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return QueryRequest{}, fmt.Errorf("%w: %s must be a string", ErrInvalidRequest, fieldUnits)
		}
		if trimmed := strings.ToLower(strings.TrimSpace(s.StringValue)); trimmed != "" {
			unit = trimmed
		}
	}
	if !units.IsValid(unit) {
		return QueryRequest{}, fmt.Errorf("%w: units %q not one of %s", ErrInvalidRequest, unit, units.ValidUnitsString())
	}

	return QueryRequest{Track: track, Timestamp: num.NumberValue, Units: unit}, nil
}

// ParseTrackRequest validates a request that only names a track.
func ParseTrackRequest(in *structpb.Struct) (string, error) {
	if in == nil {
		return "", fmt.Errorf("%w: request is required", ErrInvalidRequest)
	}
	if err := rejectUnknownFields(in, fieldTrack); err != nil {
		return "", err
	}
	return requiredString(in, fieldTrack)
}

func requiredString(in *structpb.Struct, key string) (string, error) {
	v, ok := in.GetFields()[key]
	if !ok {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidRequest, key)
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string", ErrInvalidRequest, key)
	}
	trimmed := strings.TrimSpace(s.StringValue)
	if trimmed == "" {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidRequest, key)
	}
	return trimmed, nil
}

func rejectUnknownFields(in *structpb.Struct, allowed ...string) error {
	for key := range in.GetFields() {
		known := false
		for _, a := range allowed {
			if key == a {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("%w: unknown field %q", ErrInvalidRequest, key)
		}
	}
	return nil
}
