// Package web serves the HTTP side of the velocity server: Prometheus
// metrics, profile charts, the query journal and a websocket replay stream.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/signalsfoundry/ecef-velocity/internal/journal"
	"github.com/signalsfoundry/ecef-velocity/internal/logging"
	"github.com/signalsfoundry/ecef-velocity/internal/observability"
	"github.com/signalsfoundry/ecef-velocity/internal/units"
	"github.com/signalsfoundry/ecef-velocity/kb"
)

// JournalReader is the read side of the query journal.
type JournalReader interface {
	Recent(ctx context.Context, track string, limit int) ([]journal.Entry, error)
}

// Server routes HTTP requests against a track store.
type Server struct {
	store        *kb.TrackStore
	collector    *observability.Collector
	journal      JournalReader
	log          logging.Logger
	defaultUnits string
	upgrader     websocket.Upgrader
	maxRealtime  time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used for request logs.
func WithLogger(l logging.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithCollector exposes the collector on /metrics.
func WithCollector(c *observability.Collector) Option {
	return func(s *Server) { s.collector = c }
}

// WithJournal exposes recent journal entries on /journal.
func WithJournal(j JournalReader) Option {
	return func(s *Server) { s.journal = j }
}

// WithDefaultUnits sets the unit used when a request names none.
func WithDefaultUnits(u string) Option {
	return func(s *Server) {
		if u != "" {
			s.defaultUnits = u
		}
	}
}

// NewServer builds a Server over store.
func NewServer(store *kb.TrackStore, opts ...Option) *Server {
	s := &Server{
		store:        store,
		log:          logging.Noop(),
		defaultUnits: units.MPS,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		maxRealtime: time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/tracks", s.handleTracks)
	mux.HandleFunc("/profile.html", s.handleProfileHTML)
	mux.HandleFunc("/profile.png", s.handleProfileImage)
	mux.HandleFunc("/profile.svg", s.handleProfileImage)
	mux.HandleFunc("/journal", s.handleJournal)
	mux.HandleFunc("/ws/replay", s.handleReplay)
	if s.collector != nil {
		mux.Handle("/metrics", s.collector.Handler())
	}
	return s.withRequestID(mux)
}

// withRequestID tags each request with an ID and a request-scoped logger.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if id := r.Header.Get("X-Request-ID"); id != "" {
			ctx = logging.ContextWithRequestID(ctx, id)
		}
		ctx, id := logging.EnsureRequestID(ctx)
		ctx = logging.ContextWithLogger(ctx, s.log.With(logging.String("path", r.URL.Path)))
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.store == nil || s.store.Len() == 0 {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "no tracks"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTracks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	type trackJSON struct {
		Name          string  `json:"name"`
		Source        string  `json:"source"`
		Samples       int     `json:"samples"`
		Start         float64 `json:"start"`
		End           float64 `json:"end"`
		TimeIncrement float64 `json:"time_increment"`
	}
	out := make([]trackJSON, 0, s.store.Len())
	for _, tr := range s.store.ListTracks() {
		info := tr.Info()
		out = append(out, trackJSON{
			Name:          info.Name,
			Source:        info.Source,
			Samples:       info.Samples,
			Start:         info.Start,
			End:           info.End,
			TimeIncrement: info.TimeIncrement,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"tracks": out})
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		s.writeJSONError(w, http.StatusNotFound, "query journal is not enabled")
		return
	}
	q := r.URL.Query()
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid 'limit' parameter %q", raw))
			return
		}
		limit = n
	}
	entries, err := s.journal.Recent(r.Context(), q.Get("track"), limit)
	if err != nil {
		logging.FromContext(r.Context(), s.log).Error(r.Context(), "journal read failed", logging.Err(err))
		s.writeJSONError(w, http.StatusInternalServerError, "journal read failed")
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// lookupTrack resolves the track and unit query parameters, writing the
// error response itself when either is invalid.
func (s *Server) lookupTrack(w http.ResponseWriter, r *http.Request) (*kb.Track, string, bool) {
	q := r.URL.Query()
	name := q.Get("track")
	if name == "" {
		s.writeJSONError(w, http.StatusBadRequest, "missing 'track' parameter")
		return nil, "", false
	}
	unit := strings.ToLower(q.Get("units"))
	if unit == "" {
		unit = s.defaultUnits
	}
	if !units.IsValid(unit) {
		s.writeJSONError(w, http.StatusBadRequest,
			fmt.Sprintf("units %q not one of %s", unit, units.ValidUnitsString()))
		return nil, "", false
	}
	tr, err := s.store.GetTrack(name)
	if err != nil {
		if errors.Is(err, kb.ErrTrackNotFound) {
			s.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("track %q not found", name))
			return nil, "", false
		}
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return nil, "", false
	}
	return tr, unit, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Warn(context.Background(), "failed to encode JSON response", logging.Err(err))
	}
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
