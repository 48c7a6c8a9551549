package observability

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Query outcome label values.
const (
	OutcomeComputed = "computed"
	OutcomeAtOrigin = "at_origin"
	OutcomeError    = "error"
)

// UnknownTrack is the track label for queries naming no loaded track, so
// client-chosen names never become series.
const UnknownTrack = "unknown"

// Collector bundles Prometheus metrics for the velocity service and provides
// helpers to wire them into gRPC servers and HTTP handlers.
type Collector struct {
	gatherer prometheus.Gatherer

	RPCRequests  *prometheus.CounterVec
	RPCDurations *prometheus.HistogramVec

	Queries      *prometheus.CounterVec
	Velocities   *prometheus.HistogramVec
	TrackSamples *prometheus.GaugeVec
	Tracks       prometheus.Gauge
}

// NewCollector registers metrics against the provided registerer, defaulting
// to the global Prometheus registry when nil. Registering twice against the
// same registry reuses the existing collectors.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "velocity_rpc_requests_total",
		Help: "Total number of handled RPCs, labeled by service, method, and gRPC status code.",
	}, []string{"service", "method", "code"}), "velocity_rpc_requests_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "velocity_rpc_request_duration_seconds",
		Help:    "RPC latency in seconds.",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"service", "method"}), "velocity_rpc_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	queries, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "velocity_queries_total",
		Help: "Velocity queries by track and outcome (computed, at_origin, too_early, too_late, invalid_lookup, error).",
	}, []string{"track", "outcome"}), "velocity_queries_total")
	if err != nil {
		return nil, err
	}

	velocities, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "velocity_estimate_meters_per_second",
		Help:    "Distribution of returned velocity estimates.",
		Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 8000},
	}, []string{"track"}), "velocity_estimate_meters_per_second")
	if err != nil {
		return nil, err
	}

	samples, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "velocity_track_samples",
		Help: "Number of samples held for each loaded track.",
	}, []string{"track"}), "velocity_track_samples")
	if err != nil {
		return nil, err
	}

	tracks, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "velocity_tracks",
		Help: "Current number of loaded tracks.",
	}), "velocity_tracks")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:     gatherer,
		RPCRequests:  requests,
		RPCDurations: durations,
		Queries:      queries,
		Velocities:   velocities,
		TrackSamples: samples,
		Tracks:       tracks,
	}, nil
}

// UnaryServerInterceptor records request counts and durations for unary RPCs.
func (c *Collector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		if c == nil {
			return resp, err
		}

		fullMethod := ""
		if info != nil {
			fullMethod = info.FullMethod
		}
		service, method := SplitMethod(fullMethod)
		code := status.Code(err).String()

		c.RPCRequests.WithLabelValues(service, method, code).Inc()
		c.RPCDurations.WithLabelValues(service, method).Observe(time.Since(start).Seconds())

		return resp, err
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveQuery counts a query outcome and, for answered queries, records the
// returned velocity.
func (c *Collector) ObserveQuery(track, outcome string, velocity float64) {
	if c == nil {
		return
	}
	c.Queries.WithLabelValues(track, outcome).Inc()
	if outcome == OutcomeComputed || outcome == OutcomeAtOrigin {
		c.Velocities.WithLabelValues(track).Observe(velocity)
	}
}

// SetTrackSamples records the sample count of a loaded track.
func (c *Collector) SetTrackSamples(track string, samples int) {
	if c == nil {
		return
	}
	c.TrackSamples.WithLabelValues(track).Set(float64(samples))
}

// RemoveTrack drops per-track series for an unloaded track.
func (c *Collector) RemoveTrack(track string) {
	if c == nil {
		return
	}
	c.TrackSamples.DeleteLabelValues(track)
	c.Queries.DeletePartialMatch(prometheus.Labels{"track": track})
	c.Velocities.DeletePartialMatch(prometheus.Labels{"track": track})
}

// SetTrackCount sets the loaded-track gauge.
func (c *Collector) SetTrackCount(n int) {
	if c == nil {
		return
	}
	c.Tracks.Set(float64(n))
}

// SplitMethod parses a fully-qualified gRPC method name into service and method
// components. It tolerates empty strings and partial paths, returning
// "unknown"/"unknown" when parsing fails.
func SplitMethod(fullMethod string) (string, string) {
	if fullMethod == "" {
		return "unknown", "unknown"
	}
	fullMethod = strings.TrimPrefix(fullMethod, "/")
	parts := strings.Split(fullMethod, "/")
	if len(parts) < 2 {
		return "unknown", "unknown"
	}
	service := parts[len(parts)-2]
	method := parts[len(parts)-1]
	if dot := strings.LastIndex(service, "."); dot >= 0 && dot+1 < len(service) {
		service = service[dot+1:]
	}
	if service == "" {
		service = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	return service, method
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
