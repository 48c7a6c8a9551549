package kb

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/signalsfoundry/ecef-velocity/core"
	"github.com/signalsfoundry/ecef-velocity/model"
)

var (
	ErrTrackExists   = errors.New("track already exists")
	ErrTrackNotFound = errors.New("track not found")
	ErrTrackInvalid  = errors.New("invalid track")
)

// EventType indicates what kind of change happened in the store.
type EventType int

const (
	EventTrackAdded EventType = iota
	EventTrackRemoved
)

// Event is emitted to subscribers when the set of tracks changes.
type Event struct {
	Type  EventType
	Track model.TrackInfo
}

// Track is a named, loaded sample sequence with its calculator. Tracks are
// immutable once added.
type Track struct {
	Name       string
	Source     string
	Calculator *core.VelocityCalculator
}

// Info summarises the track.
func (t *Track) Info() model.TrackInfo {
	seq := t.Calculator.Sequence()
	return model.TrackInfo{
		Name:          t.Name,
		Source:        t.Source,
		Samples:       seq.Len(),
		Start:         seq.Start(),
		End:           seq.End(),
		TimeIncrement: seq.TimeIncrement(),
	}
}

// TrackStore is an in-memory, thread-safe registry of tracks keyed by name.
type TrackStore struct {
	mu sync.RWMutex

	tracks map[string]*Track

	nextSub int
	subs    map[int]func(Event)
}

// NewTrackStore constructs an empty store.
func NewTrackStore() *TrackStore {
	return &TrackStore{
		tracks: make(map[string]*Track),
		subs:   make(map[int]func(Event)),
	}
}

// AddTrack registers a track. It returns ErrTrackExists if the name is taken.
func (s *TrackStore) AddTrack(tr *Track) error {
	if tr == nil || tr.Name == "" || tr.Calculator == nil {
		return fmt.Errorf("%w: name and calculator are required", ErrTrackInvalid)
	}

	s.mu.Lock()
	if _, exists := s.tracks[tr.Name]; exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrTrackExists, tr.Name)
	}
	s.tracks[tr.Name] = tr
	subs := s.snapshotSubsLocked()
	s.mu.Unlock()

	notify(subs, Event{Type: EventTrackAdded, Track: tr.Info()})
	return nil
}

// RemoveTrack drops a track by name.
func (s *TrackStore) RemoveTrack(name string) error {
	s.mu.Lock()
	tr, ok := s.tracks[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrTrackNotFound, name)
	}
	delete(s.tracks, name)
	subs := s.snapshotSubsLocked()
	s.mu.Unlock()

	notify(subs, Event{Type: EventTrackRemoved, Track: tr.Info()})
	return nil
}

// GetTrack returns the named track.
func (s *TrackStore) GetTrack(name string) (*Track, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tr, ok := s.tracks[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTrackNotFound, name)
	}
	return tr, nil
}

// ListTracks returns all tracks sorted by name.
func (s *TrackStore) ListTracks() []*Track {
	s.mu.RLock()
	res := make([]*Track, 0, len(s.tracks))
	for _, tr := range s.tracks {
		res = append(res, tr)
	}
	s.mu.RUnlock()

	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res
}

// Len returns the number of registered tracks.
func (s *TrackStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tracks)
}

// Subscribe registers a callback for store events. It returns an unsubscribe
// function. Callbacks run outside the store lock.
func (s *TrackStore) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *TrackStore) snapshotSubsLocked() []func(Event) {
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	subs := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		subs = append(subs, s.subs[id])
	}
	return subs
}

func notify(subs []func(Event), ev Event) {
	for _, sub := range subs {
		sub(ev)
	}
}
