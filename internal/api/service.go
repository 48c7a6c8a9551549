// Package api serves velocity estimates for loaded tracks over gRPC.
package api

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/ecef-velocity/core"
	"github.com/signalsfoundry/ecef-velocity/internal/journal"
	"github.com/signalsfoundry/ecef-velocity/internal/logging"
	"github.com/signalsfoundry/ecef-velocity/internal/observability"
	"github.com/signalsfoundry/ecef-velocity/internal/units"
	"github.com/signalsfoundry/ecef-velocity/kb"
	"github.com/signalsfoundry/ecef-velocity/model"
)

// QueryRecorder persists query outcomes.
type QueryRecorder interface {
	Record(ctx context.Context, e journal.Entry) (int64, error)
}

// VelocityService implements VelocityServer over a TrackStore.
type VelocityService struct {
	store        *kb.TrackStore
	metrics      *observability.Collector
	recorder     QueryRecorder
	log          logging.Logger
	defaultUnits string
}

var _ VelocityServer = (*VelocityService)(nil)

// Option configures a VelocityService.
type Option func(*VelocityService)

// WithLogger sets the fallback logger used when the request context carries
// none.
func WithLogger(log logging.Logger) Option {
	return func(s *VelocityService) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMetrics records query outcomes on c.
func WithMetrics(c *observability.Collector) Option {
	return func(s *VelocityService) { s.metrics = c }
}

// WithRecorder journals every QueryVelocity outcome. Recording failures are
// logged and do not fail the RPC.
func WithRecorder(r QueryRecorder) Option {
	return func(s *VelocityService) { s.recorder = r }
}

// WithDefaultUnits sets the unit used when a request names none.
func WithDefaultUnits(unit string) Option {
	return func(s *VelocityService) {
		if units.IsValid(unit) {
			s.defaultUnits = unit
		}
	}
}

// NewVelocityService constructs a service bound to store.
func NewVelocityService(store *kb.TrackStore, opts ...Option) *VelocityService {
	s := &VelocityService{
		store:        store,
		log:          logging.Noop(),
		defaultUnits: units.MPS,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// QueryVelocity estimates the speed of a track at a timestamp.
func (s *VelocityService) QueryVelocity(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	req, err := ParseQueryRequest(in, s.defaultUnits)
	if err != nil {
		return nil, ToStatusError(err)
	}
	log := logging.FromContext(ctx, s.log).With(logging.String("track", req.Track))

	tr, err := s.store.GetTrack(req.Track)
	if err != nil {
		s.observe(ctx, log, req, observability.UnknownTrack, observability.OutcomeError, core.Estimate{LowIndex: -1})
		return nil, ToStatusError(err)
	}

	ctx, span := StartChildSpan(ctx, "velocity.query", req.Track, attribute.Float64("timestamp", req.Timestamp))
	defer span.End()

	est, err := tr.Calculator.QueryVelocity(req.Timestamp)
	if err != nil {
		span.RecordError(err)
		outcome := observability.OutcomeError
		if rej, ok := core.AsRejection(err); ok {
			outcome = rej.Reason.String()
		}
		s.observe(ctx, log, req, req.Track, outcome, core.Estimate{LowIndex: -1})

		if errors.Is(err, core.ErrLookupInvariant) {
			log.Error(ctx, "bracket lookup failed for in-range time",
				logging.Float64("timestamp", req.Timestamp),
				logging.Err(err),
			)
		} else {
			log.Debug(ctx, "velocity query rejected",
				logging.Float64("timestamp", req.Timestamp),
				logging.String("reason", outcome),
			)
		}
		return nil, ToStatusError(err)
	}

	outcome := observability.OutcomeComputed
	if est.AtOrigin {
		outcome = observability.OutcomeAtOrigin
	}
	s.observe(ctx, log, req, req.Track, outcome, est)
	span.SetAttributes(
		attribute.Float64("velocity_mps", est.Velocity),
		attribute.Int("low_index", est.LowIndex),
		attribute.Bool("at_origin", est.AtOrigin),
	)
	log.Debug(ctx, "velocity computed",
		logging.Float64("timestamp", req.Timestamp),
		logging.Float64("velocity_mps", est.Velocity),
		logging.Int("low_index", est.LowIndex),
	)

	return estimateToStruct(req.Track, req.Units, est), nil
}

// ListTracks returns a summary of every loaded track.
func (s *VelocityService) ListTracks(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	tracks := s.store.ListTracks()
	infos := make([]model.TrackInfo, 0, len(tracks))
	for _, tr := range tracks {
		infos = append(infos, tr.Info())
	}
	return trackInfosToStruct(infos), nil
}

// GetProfile returns the velocity of every bracket of a track.
func (s *VelocityService) GetProfile(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	name, err := ParseTrackRequest(in)
	if err != nil {
		return nil, ToStatusError(err)
	}
	tr, err := s.store.GetTrack(name)
	if err != nil {
		return nil, ToStatusError(err)
	}

	_, span := StartChildSpan(ctx, "velocity.profile", name)
	defer span.End()

	profile := tr.Calculator.Profile()
	span.SetAttributes(attribute.Int("segments", len(profile.Segments)))
	return profileToStruct(name, profile), nil
}

// observe counts the query under metricTrack and journals it under the
// requested track name.
func (s *VelocityService) observe(ctx context.Context, log logging.Logger, req QueryRequest, metricTrack, outcome string, est core.Estimate) {
	s.metrics.ObserveQuery(metricTrack, outcome, est.Velocity)
	if s.recorder == nil {
		return
	}
	if _, err := s.recorder.Record(ctx, journal.Entry{
		RequestID:   logging.RequestIDFromContext(ctx),
		Track:       req.Track,
		QueryTime:   req.Timestamp,
		Outcome:     outcome,
		VelocityMPS: est.Velocity,
		LowIndex:    est.LowIndex,
	}); err != nil {
		log.Warn(ctx, "failed to journal query", logging.Err(err))
	}
}

func (s *VelocityService) ensureReady() error {
	if s == nil || s.store == nil {
		return status.Error(codes.FailedPrecondition, "track store is not initialised")
	}
	return nil
}
