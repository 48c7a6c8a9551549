package api

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/ecef-velocity/core"
	"github.com/signalsfoundry/ecef-velocity/internal/units"
	"github.com/signalsfoundry/ecef-velocity/model"
)

// QueryResult is the decoded form of a QueryVelocity response.
type QueryResult struct {
	Track          string
	Timestamp      float64
	Velocity       float64
	Units          string
	VelocityMPS    float64
	DistanceMeters float64
	ElapsedSeconds float64
	LowIndex       int
	HighIndex      int
	AtOrigin       bool
}

// ProfileResult is the decoded form of a GetProfile response.
type ProfileResult struct {
	Track   string
	Summary core.ProfileSummary
}

func estimateToStruct(track, unit string, est core.Estimate) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"track":        structpb.NewStringValue(track),
		"timestamp":    structpb.NewNumberValue(est.QueryTime),
		"velocity":     structpb.NewNumberValue(units.ConvertSpeed(est.Velocity, unit)),
		"units":        structpb.NewStringValue(unit),
		"velocity_mps": structpb.NewNumberValue(est.Velocity),
		"distance_m":   structpb.NewNumberValue(est.Distance),
		"elapsed_s":    structpb.NewNumberValue(est.Elapsed),
		"low_index":    structpb.NewNumberValue(float64(est.LowIndex)),
		"high_index":   structpb.NewNumberValue(float64(est.HighIndex)),
		"at_origin":    structpb.NewBoolValue(est.AtOrigin),
	}}
}

func trackInfosToStruct(infos []model.TrackInfo) *structpb.Struct {
	list := make([]*structpb.Value, 0, len(infos))
	for _, info := range infos {
		list = append(list, structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"name":           structpb.NewStringValue(info.Name),
			"source":         structpb.NewStringValue(info.Source),
			"samples":        structpb.NewNumberValue(float64(info.Samples)),
			"start":          structpb.NewNumberValue(info.Start),
			"end":            structpb.NewNumberValue(info.End),
			"time_increment": structpb.NewNumberValue(info.TimeIncrement),
		}}))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"tracks": structpb.NewListValue(&structpb.ListValue{Values: list}),
	}}
}

func profileToStruct(track string, p core.ProfileSummary) *structpb.Struct {
	segments := make([]*structpb.Value, 0, len(p.Segments))
	for _, seg := range p.Segments {
		segments = append(segments, structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"low_index":  structpb.NewNumberValue(float64(seg.LowIndex)),
			"start_time": structpb.NewNumberValue(seg.StartTime),
			"velocity":   structpb.NewNumberValue(seg.Velocity),
		}}))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"track":    structpb.NewStringValue(track),
		"segments": structpb.NewListValue(&structpb.ListValue{Values: segments}),
		"min":      structpb.NewNumberValue(p.Min),
		"max":      structpb.NewNumberValue(p.Max),
		"mean":     structpb.NewNumberValue(p.Mean),
		"stddev":   structpb.NewNumberValue(p.StdDev),
	}}
}

// QueryResultFromStruct decodes a QueryVelocity response.
func QueryResultFromStruct(s *structpb.Struct) (QueryResult, error) {
	d := decoder{s: s}
	res := QueryResult{
		Track:          d.str("track"),
		Timestamp:      d.num("timestamp"),
		Velocity:       d.num("velocity"),
		Units:          d.str("units"),
		VelocityMPS:    d.num("velocity_mps"),
		DistanceMeters: d.num("distance_m"),
		ElapsedSeconds: d.num("elapsed_s"),
		LowIndex:       int(d.num("low_index")),
		HighIndex:      int(d.num("high_index")),
		AtOrigin:       d.boolean("at_origin"),
	}
	return res, d.err
}

// TrackInfosFromStruct decodes a ListTracks response.
func TrackInfosFromStruct(s *structpb.Struct) ([]model.TrackInfo, error) {
	d := decoder{s: s}
	items := d.list("tracks")
	infos := make([]model.TrackInfo, 0, len(items))
	for i, item := range items {
		id := decoder{s: item.GetStructValue()}
		if id.s == nil {
			return nil, fmt.Errorf("tracks[%d]: not an object", i)
		}
		infos = append(infos, model.TrackInfo{
			Name:          id.str("name"),
			Source:        id.str("source"),
			Samples:       int(id.num("samples")),
			Start:         id.num("start"),
			End:           id.num("end"),
			TimeIncrement: id.num("time_increment"),
		})
		if id.err != nil {
			return nil, fmt.Errorf("tracks[%d]: %w", i, id.err)
		}
	}
	return infos, d.err
}

// ProfileResultFromStruct decodes a GetProfile response.
func ProfileResultFromStruct(s *structpb.Struct) (ProfileResult, error) {
	d := decoder{s: s}
	res := ProfileResult{
		Track: d.str("track"),
		Summary: core.ProfileSummary{
			Min:    d.num("min"),
			Max:    d.num("max"),
			Mean:   d.num("mean"),
			StdDev: d.num("stddev"),
		},
	}
	for i, item := range d.list("segments") {
		sd := decoder{s: item.GetStructValue()}
		if sd.s == nil {
			return ProfileResult{}, fmt.Errorf("segments[%d]: not an object", i)
		}
		res.Summary.Segments = append(res.Summary.Segments, core.SegmentVelocity{
			LowIndex:  int(sd.num("low_index")),
			StartTime: sd.num("start_time"),
			Velocity:  sd.num("velocity"),
		})
		if sd.err != nil {
			return ProfileResult{}, fmt.Errorf("segments[%d]: %w", i, sd.err)
		}
	}
	return res, d.err
}

// decoder reads typed fields from a Struct, keeping the first error.
type decoder struct {
	s   *structpb.Struct
	err error
}

func (d *decoder) field(key string) *structpb.Value {
	if d.err != nil {
		return nil
	}
	v, ok := d.s.GetFields()[key]
	if !ok {
		d.err = fmt.Errorf("missing field %q", key)
		return nil
	}
	return v
}

func (d *decoder) num(key string) float64 {
	v := d.field(key)
	if v == nil {
		return 0
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		d.err = fmt.Errorf("field %q is not a number", key)
		return 0
	}
	return n.NumberValue
}

func (d *decoder) str(key string) string {
	v := d.field(key)
	if v == nil {
		return ""
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		d.err = fmt.Errorf("field %q is not a string", key)
		return ""
	}
	return s.StringValue
}

func (d *decoder) boolean(key string) bool {
	v := d.field(key)
	if v == nil {
		return false
	}
	b, ok := v.GetKind().(*structpb.Value_BoolValue)
	if !ok {
		d.err = fmt.Errorf("field %q is not a bool", key)
		return false
	}
	return b.BoolValue
}

func (d *decoder) list(key string) []*structpb.Value {
	v := d.field(key)
	if v == nil {
		return nil
	}
	l, ok := v.GetKind().(*structpb.Value_ListValue)
	if !ok {
		d.err = fmt.Errorf("field %q is not a list", key)
		return nil
	}
	return l.ListValue.GetValues()
}
