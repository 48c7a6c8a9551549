package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestUnaryInterceptorRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}

	interceptor := collector.UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/velocity.v1.VelocityService/QueryVelocity"}

	_, err = interceptor(context.Background(), struct{}{}, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		time.Sleep(time.Millisecond)
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("interceptor handler returned error: %v", err)
	}

	if got := testutil.ToFloat64(collector.RPCRequests.WithLabelValues("VelocityService", "QueryVelocity", "OK")); got != 1 {
		t.Fatalf("velocity_rpc_requests_total = %v, want 1", got)
	}

	if count := histogramSampleCount(t, reg, "velocity_rpc_request_duration_seconds", map[string]string{
		"service": "VelocityService",
		"method":  "QueryVelocity",
	}); count != 1 {
		t.Fatalf("velocity_rpc_request_duration_seconds sample_count = %d, want 1", count)
	}
}

func TestUnaryInterceptorRecordsErrorCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}

	interceptor := collector.UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/velocity.v1.VelocityService/QueryVelocity"}

	_, _ = interceptor(context.Background(), struct{}{}, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.OutOfRange, "too late")
	})

	if got := testutil.ToFloat64(collector.RPCRequests.WithLabelValues("VelocityService", "QueryVelocity", "OutOfRange")); got != 1 {
		t.Fatalf("velocity_rpc_requests_total error label = %v, want 1", got)
	}
}

func TestObserveQuery(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}

	collector.ObserveQuery("alpha", OutcomeComputed, 42)
	collector.ObserveQuery("alpha", OutcomeAtOrigin, 0)
	collector.ObserveQuery("alpha", "too_late", 0)

	if got := testutil.ToFloat64(collector.Queries.WithLabelValues("alpha", OutcomeComputed)); got != 1 {
		t.Fatalf("computed queries = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.Queries.WithLabelValues("alpha", "too_late")); got != 1 {
		t.Fatalf("too_late queries = %v, want 1", got)
	}
	if count := histogramSampleCount(t, reg, "velocity_estimate_meters_per_second", map[string]string{"track": "alpha"}); count != 2 {
		t.Fatalf("velocity histogram sample_count = %d, want 2 (rejections are not observed)", count)
	}
}

func TestTrackGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	collector.SetTrackSamples("alpha", 130)
	collector.SetTrackCount(1)
	collector.ObserveQuery("alpha", OutcomeComputed, 7600)
	collector.ObserveQuery("alpha", "too_late", 0)
	collector.ObserveQuery("beta", OutcomeComputed, 7500)

	if got := testutil.ToFloat64(collector.TrackSamples.WithLabelValues("alpha")); got != 130 {
		t.Fatalf("velocity_track_samples = %v, want 130", got)
	}
	if got := testutil.ToFloat64(collector.Tracks); got != 1 {
		t.Fatalf("velocity_tracks = %v, want 1", got)
	}

	collector.RemoveTrack("alpha")
	if n := testutil.CollectAndCount(collector.TrackSamples); n != 0 {
		t.Fatalf("track series remaining after RemoveTrack: %d", n)
	}
	if n := testutil.CollectAndCount(collector.Queries); n != 1 {
		t.Fatalf("query series after RemoveTrack = %d, want only beta", n)
	}
	if n := testutil.CollectAndCount(collector.Velocities); n != 1 {
		t.Fatalf("velocity series after RemoveTrack = %d, want only beta", n)
	}
}

func TestNewCollectorReusesRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	second, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("second NewCollector: %v", err)
	}
	if first.Queries != second.Queries {
		t.Fatalf("expected second collector to reuse registered counter")
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	c.ObserveQuery("x", OutcomeComputed, 1)
	c.SetTrackSamples("x", 1)
	c.RemoveTrack("x")
	c.SetTrackCount(1)
}

func TestMetricsHandlerExposesVelocityMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	collector.SetTrackSamples("alpha", 7)
	collector.SetTrackCount(1)
	collector.ObserveQuery("alpha", OutcomeComputed, 3)
	collector.RPCRequests.WithLabelValues("svc", "method", "OK").Inc()
	collector.RPCDurations.WithLabelValues("svc", "method").Observe(0.01)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"velocity_rpc_requests_total",
		"velocity_rpc_request_duration_seconds",
		"velocity_queries_total",
		"velocity_estimate_meters_per_second",
		`velocity_track_samples{track="alpha"} 7`,
		"velocity_tracks 1",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
}

func TestSplitMethod(t *testing.T) {
	tests := []struct {
		in              string
		service, method string
	}{
		{"/velocity.v1.VelocityService/QueryVelocity", "VelocityService", "QueryVelocity"},
		{"VelocityService/ListTracks", "VelocityService", "ListTracks"},
		{"", "unknown", "unknown"},
		{"/nomethod", "unknown", "unknown"},
	}
	for _, tc := range tests {
		s, m := SplitMethod(tc.in)
		if s != tc.service || m != tc.method {
			t.Errorf("SplitMethod(%q) = %q, %q; want %q, %q", tc.in, s, m, tc.service, tc.method)
		}
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
