package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/ecef-velocity/core"
	"github.com/signalsfoundry/ecef-velocity/internal/journal"
	"github.com/signalsfoundry/ecef-velocity/internal/observability"
	"github.com/signalsfoundry/ecef-velocity/kb"
	"github.com/signalsfoundry/ecef-velocity/model"
)

const (
	testTrack = "equator"
	testStart = 1000.0
	testStep  = 10.0
)

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
	require.NoError(t, err)
	calc, err := core.NewVelocityCalculator(seq)
	require.NoError(t, err)
	store := kb.NewTrackStore()
	require.NoError(t, store.AddTrack(&kb.Track{Name: testTrack, Source: "memory", Calculator: calc}))
	return store
}

func bracketSpeed(low int) float64 {
	s := equatorSamples(low + 2)
	return core.Distance(core.SampleToECEF(s[low]), core.SampleToECEF(s[low+1])) / testStep
}

func newTestServer(t *testing.T, opts ...Option) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewServer(newTestStore(t), opts...).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func getBody(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	resp, _ := getBody(t, srv.URL+"/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	empty := httptest.NewServer(NewServer(kb.NewTrackStore()).Handler())
	defer empty.Close()
	resp, _ = getBody(t, empty.URL+"/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRequestIDHeader(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := getBody(t, srv.URL+"/healthz")
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "req-42")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "req-42", resp.Header.Get("X-Request-ID"))
}

func TestTracks(t *testing.T) {
	srv := newTestServer(t)
	resp, body := getBody(t, srv.URL+"/tracks")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Tracks []struct {
			Name          string  `json:"name"`
			Samples       int     `json:"samples"`
			Start         float64 `json:"start"`
			End           float64 `json:"end"`
			TimeIncrement float64 `json:"time_increment"`
		} `json:"tracks"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	require.Len(t, out.Tracks, 1)
	assert.Equal(t, testTrack, out.Tracks[0].Name)
	assert.Equal(t, 6, out.Tracks[0].Samples)
	assert.Equal(t, testStart, out.Tracks[0].Start)
	assert.Equal(t, 1050.0, out.Tracks[0].End)
	assert.Equal(t, testStep, out.Tracks[0].TimeIncrement)

	resp, err := http.Post(srv.URL+"/tracks", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestProfileCharts(t *testing.T) {
	srv := newTestServer(t)

	resp, body := getBody(t, srv.URL+"/profile.html?track="+testTrack)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, string(body), "equator velocity profile")

	resp, body = getBody(t, srv.URL+"/profile.png?track="+testTrack+"&units=kph")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.True(t, strings.HasPrefix(string(body), "\x89PNG"))

	resp, body = getBody(t, srv.URL+"/profile.svg?track="+testTrack)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))
	assert.Contains(t, string(body), "<svg")
}

func TestTrackParameterErrors(t *testing.T) {
	srv := newTestServer(t)
	tests := []struct {
		name   string
		path   string
		status int
		errMsg string
	}{
		{name: "missing track", path: "/profile.html", status: http.StatusBadRequest, errMsg: "missing 'track'"},
		{name: "unknown track", path: "/profile.png?track=nope", status: http.StatusNotFound, errMsg: `"nope" not found`},
		{name: "bad units", path: "/profile.html?track=equator&units=furlongs", status: http.StatusBadRequest, errMsg: "furlongs"},
		{name: "replay bad step", path: "/ws/replay?track=equator&step=abc", status: http.StatusBadRequest, errMsg: "'step'"},
		{name: "replay zero step", path: "/ws/replay?track=equator&step=0", status: http.StatusBadRequest, errMsg: "positive"},
		{name: "replay reversed", path: "/ws/replay?track=equator&start=1040&end=1010", status: http.StatusBadRequest, errMsg: "precedes"},
		{name: "replay bad realtime", path: "/ws/replay?track=equator&realtime=maybe", status: http.StatusBadRequest, errMsg: "'realtime'"},
		{name: "replay tiny realtime", path: "/ws/replay?track=equator&step=1e-10&realtime=true", status: http.StatusBadRequest, errMsg: "out of range"},
		{name: "replay huge realtime", path: "/ws/replay?track=equator&step=1e10&realtime=true", status: http.StatusBadRequest, errMsg: "exceeds"},
		{name: "replay slow realtime", path: "/ws/replay?track=equator&step=3600&realtime=true", status: http.StatusBadRequest, errMsg: "exceeds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := getBody(t, srv.URL+tt.path)
			assert.Equal(t, tt.status, resp.StatusCode)
			var out map[string]string
			require.NoError(t, json.Unmarshal(body, &out))
			assert.Contains(t, out["error"], tt.errMsg)
		})
	}
}

func TestMetricsRoute(t *testing.T) {
	collector, err := observability.NewCollector(prometheus.NewRegistry())
	require.NoError(t, err)
	collector.ObserveQuery(testTrack, observability.OutcomeComputed, 7000)

	srv := newTestServer(t, WithCollector(collector))
	resp, body := getBody(t, srv.URL+"/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "velocity_")

	bare := newTestServer(t)
	resp, _ = getBody(t, bare.URL+"/metrics")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

type fakeJournal struct {
	entries   []journal.Entry
	err       error
	gotTrack  string
	gotLimit  int
	callCount int
}

func (f *fakeJournal) Recent(_ context.Context, track string, limit int) ([]journal.Entry, error) {
	f.callCount++
	f.gotTrack, f.gotLimit = track, limit
	return f.entries, f.err
}

func TestJournalRoute(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		srv := newTestServer(t)
		resp, _ := getBody(t, srv.URL+"/journal")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("passes filters", func(t *testing.T) {
		fj := &fakeJournal{entries: []journal.Entry{{ID: 3, Track: testTrack, Outcome: "computed", LowIndex: 1}}}
		srv := newTestServer(t, WithJournal(fj))
		resp, body := getBody(t, srv.URL+"/journal?track=equator&limit=5")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, testTrack, fj.gotTrack)
		assert.Equal(t, 5, fj.gotLimit)

		var out struct {
			Entries []journal.Entry `json:"entries"`
		}
		require.NoError(t, json.Unmarshal(body, &out))
		require.Len(t, out.Entries, 1)
		assert.Equal(t, int64(3), out.Entries[0].ID)
	})

	t.Run("empty is an array", func(t *testing.T) {
		srv := newTestServer(t, WithJournal(&fakeJournal{}))
		_, body := getBody(t, srv.URL+"/journal")
		assert.JSONEq(t, `{"entries":[]}`, string(body))
	})

	t.Run("bad limit", func(t *testing.T) {
		fj := &fakeJournal{}
		srv := newTestServer(t, WithJournal(fj))
		resp, _ := getBody(t, srv.URL+"/journal?limit=-1")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Zero(t, fj.callCount)
	})

	t.Run("read failure", func(t *testing.T) {
		srv := newTestServer(t, WithJournal(&fakeJournal{err: errors.New("disk gone")}))
		resp, body := getBody(t, srv.URL+"/journal")
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.NotContains(t, string(body), "disk gone")
	})

	t.Run("sqlite", func(t *testing.T) {
		j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
		require.NoError(t, err)
		defer j.Close()
		_, err = j.Record(context.Background(), journal.Entry{Track: testTrack, QueryTime: 1015, Outcome: "computed", VelocityMPS: 11.1, LowIndex: 1})
		require.NoError(t, err)

		srv := newTestServer(t, WithJournal(j))
		_, body := getBody(t, srv.URL+"/journal?track=equator")
		var out struct {
			Entries []journal.Entry `json:"entries"`
		}
		require.NoError(t, json.Unmarshal(body, &out))
		require.Len(t, out.Entries, 1)
		assert.Equal(t, 1015.0, out.Entries[0].QueryTime)
	})
}
