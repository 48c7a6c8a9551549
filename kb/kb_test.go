package kb

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/signalsfoundry/ecef-velocity/core"
	"github.com/signalsfoundry/ecef-velocity/model"
)

func newTrack(t *testing.T, name string, n int) *Track {
	t.Helper()
	samples := make([]model.PositionSample, n)
	for i := range samples {
		samples[i] = model.PositionSample{Timestamp: 100 + float64(i)*10, LongitudeDegrees: float64(i) * 0.01}
	}
	seq, err := core.NewSampleSequence(samples)
	if err != nil {
		t.Fatalf("NewSampleSequence: %v", err)
	}
	calc, err := core.NewVelocityCalculator(seq)
	if err != nil {
		t.Fatalf("NewVelocityCalculator: %v", err)
	}
	return &Track{Name: name, Source: name + ".csv", Calculator: calc}
}

func TestAddAndGetTrack(t *testing.T) {
	store := NewTrackStore()
	if err := store.AddTrack(newTrack(t, "alpha", 4)); err != nil {
		t.Fatalf("AddTrack error: %v", err)
	}
	got, err := store.GetTrack("alpha")
	if err != nil {
		t.Fatalf("GetTrack error: %v", err)
	}
	info := got.Info()
	want := model.TrackInfo{Name: "alpha", Source: "alpha.csv", Samples: 4, Start: 100, End: 130, TimeIncrement: 10}
	if info != want {
		t.Fatalf("Info() = %+v, want %+v", info, want)
	}
}

func TestAddTrackDuplicateAndInvalid(t *testing.T) {
	store := NewTrackStore()
	if err := store.AddTrack(newTrack(t, "alpha", 3)); err != nil {
		t.Fatalf("first AddTrack error: %v", err)
	}
	if err := store.AddTrack(newTrack(t, "alpha", 3)); !errors.Is(err, ErrTrackExists) {
		t.Fatalf("duplicate AddTrack error = %v, want ErrTrackExists", err)
	}
	if err := store.AddTrack(&Track{Name: "empty"}); !errors.Is(err, ErrTrackInvalid) {
		t.Fatalf("AddTrack without calculator error = %v, want ErrTrackInvalid", err)
	}
	if err := store.AddTrack(nil); !errors.Is(err, ErrTrackInvalid) {
		t.Fatalf("AddTrack(nil) error = %v, want ErrTrackInvalid", err)
	}
}

func TestGetTrackMissing(t *testing.T) {
	store := NewTrackStore()
	if _, err := store.GetTrack("nope"); !errors.Is(err, ErrTrackNotFound) {
		t.Fatalf("GetTrack error = %v, want ErrTrackNotFound", err)
	}
	if err := store.RemoveTrack("nope"); !errors.Is(err, ErrTrackNotFound) {
		t.Fatalf("RemoveTrack error = %v, want ErrTrackNotFound", err)
	}
}

func TestListTracksSorted(t *testing.T) {
	store := NewTrackStore()
	for _, name := range []string{"charlie", "alpha", "bravo"} {
		if err := store.AddTrack(newTrack(t, name, 2)); err != nil {
			t.Fatalf("AddTrack(%s): %v", name, err)
		}
	}
	list := store.ListTracks()
	if len(list) != 3 || list[0].Name != "alpha" || list[1].Name != "bravo" || list[2].Name != "charlie" {
		t.Fatalf("ListTracks not sorted: %v", []string{list[0].Name, list[1].Name, list[2].Name})
	}
}

func TestSubscribeReceivesEventsUntilUnsubscribed(t *testing.T) {
	store := NewTrackStore()

	var events []Event
	unsubscribe := store.Subscribe(func(ev Event) { events = append(events, ev) })

	if err := store.AddTrack(newTrack(t, "alpha", 5)); err != nil {
		t.Fatalf("AddTrack: %v", err)
	}
	if err := store.RemoveTrack("alpha"); err != nil {
		t.Fatalf("RemoveTrack: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Type != EventTrackAdded || events[0].Track.Samples != 5 {
		t.Fatalf("unexpected add event %+v", events[0])
	}
	if events[1].Type != EventTrackRemoved || events[1].Track.Name != "alpha" {
		t.Fatalf("unexpected remove event %+v", events[1])
	}

	unsubscribe()
	if err := store.AddTrack(newTrack(t, "bravo", 2)); err != nil {
		t.Fatalf("AddTrack: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("unsubscribed callback still invoked, events=%d", len(events))
	}
}

func TestConcurrentReads(t *testing.T) {
	store := NewTrackStore()
	for i := 0; i < 4; i++ {
		if err := store.AddTrack(newTrack(t, fmt.Sprintf("track-%d", i), 10)); err != nil {
			t.Fatalf("AddTrack: %v", err)
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tr, err := store.GetTrack(fmt.Sprintf("track-%d", i%4))
			if err != nil {
				t.Errorf("GetTrack: %v", err)
				return
			}
			if _, err := tr.Calculator.QueryVelocity(155); err != nil {
				t.Errorf("QueryVelocity: %v", err)
			}
		}(i)
	}
	wg.Wait()
}
