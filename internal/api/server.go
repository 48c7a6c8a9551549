package api

import (
	"context"
	"fmt"
	"path/filepath"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/signalsfoundry/ecef-velocity/core"
	"github.com/signalsfoundry/ecef-velocity/internal/config"
	"github.com/signalsfoundry/ecef-velocity/internal/loader"
	"github.com/signalsfoundry/ecef-velocity/internal/logging"
	"github.com/signalsfoundry/ecef-velocity/internal/observability"
	"github.com/signalsfoundry/ecef-velocity/kb"
)

// NewServer builds a gRPC server with the request-id, tracing and metrics
// interceptors chained in that order and an OpenTelemetry stats handler.
func NewServer(log logging.Logger, collector *observability.Collector, opts ...grpc.ServerOption) *grpc.Server {
	base := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			RequestIDUnaryServerInterceptor(log),
			TracingUnaryServerInterceptor(),
			collector.UnaryServerInterceptor(),
		),
	}
	return grpc.NewServer(append(base, opts...)...)
}

// Register attaches the velocity and health services to s. The returned
// health server reports SERVING for ServiceName until Shutdown is called on it.
func Register(s *grpc.Server, svc VelocityServer) *health.Server {
	RegisterVelocityServer(s, svc)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	return hs
}

// LoadTracks reads every configured track file, builds its calculator and
// adds it to store. Relative paths resolve against baseDir.
func LoadTracks(ctx context.Context, store *kb.TrackStore, baseDir string, tracks []config.TrackConfig, log logging.Logger) error {
	if log == nil {
		log = logging.Noop()
	}
	for _, tc := range tracks {
		path := tc.Path
		if baseDir != "" && !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}

		res, err := loader.LoadFile(path, loader.Options{MaxRows: tc.MaxSamples})
		if err != nil {
			return fmt.Errorf("track %q: %w", tc.Name, err)
		}
		if res.Truncated {
			log.Warn(ctx, "track file exceeds sample cap; extra rows ignored",
				logging.String("track", tc.Name),
				logging.Int("max_samples", tc.MaxSamples),
			)
		}

		opts := []core.SequenceOption{}
		if tc.MaxSamples > 0 {
			opts = append(opts, core.WithMaxSamples(tc.MaxSamples))
		}
		seq, err := core.NewSampleSequence(res.Samples, opts...)
		if err != nil {
			return fmt.Errorf("track %q: %w", tc.Name, err)
		}
		calc, err := core.NewVelocityCalculator(seq)
		if err != nil {
			return fmt.Errorf("track %q: %w", tc.Name, err)
		}
		if err := store.AddTrack(&kb.Track{Name: tc.Name, Source: path, Calculator: calc}); err != nil {
			return err
		}

		log.Info(ctx, "loaded track",
			logging.String("track", tc.Name),
			logging.String("path", path),
			logging.Int("samples", seq.Len()),
			logging.Float64("start", seq.Start()),
			logging.Float64("end", seq.End()),
			logging.Float64("time_increment", seq.TimeIncrement()),
		)
	}
	return nil
}

// BindMetrics keeps the track gauges of c in step with store. It seeds the
// gauges from the current contents and returns the unsubscribe function.
func BindMetrics(store *kb.TrackStore, c *observability.Collector) func() {
	if c == nil || store == nil {
		return func() {}
	}
	unsubscribe := store.Subscribe(func(ev kb.Event) {
		switch ev.Type {
		case kb.EventTrackAdded:
			c.SetTrackSamples(ev.Track.Name, ev.Track.Samples)
		case kb.EventTrackRemoved:
			c.RemoveTrack(ev.Track.Name)
		}
		c.SetTrackCount(store.Len())
	})
	for _, tr := range store.ListTracks() {
		c.SetTrackSamples(tr.Name, tr.Calculator.Sequence().Len())
	}
	c.SetTrackCount(store.Len())
	return unsubscribe
}
