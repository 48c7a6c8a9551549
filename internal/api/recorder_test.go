package api

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/signalsfoundry/ecef-velocity/internal/journal"
	"github.com/signalsfoundry/ecef-velocity/internal/logging"
)

type captureRecorder struct {
	mu      sync.Mutex
	entries []journal.Entry
	err     error
}

func (c *captureRecorder) Record(_ context.Context, e journal.Entry) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, e)
	return int64(len(c.entries)), c.err
}

func TestQueryVelocityJournalsOutcomes(t *testing.T) {
	rec := &captureRecorder{}
	svc := NewVelocityService(newTestStore(t), WithRecorder(rec))
	ctx := logging.ContextWithRequestID(context.Background(), "req-7")

	_, _ = svc.QueryVelocity(ctx, queryStruct(testTrack, testStart+15, ""))
	_, _ = svc.QueryVelocity(ctx, queryStruct(testTrack, testStart, ""))
	_, _ = svc.QueryVelocity(ctx, queryStruct(testTrack, testStart-1, ""))
	_, _ = svc.QueryVelocity(ctx, queryStruct("missing", testStart, ""))

	want := []struct {
		track    string
		outcome  string
		lowIndex int
	}{
		{testTrack, "computed", 1},
		{testTrack, "at_origin", 0},
		{testTrack, "too_early", -1},
		{"missing", "error", -1},
	}
	if len(rec.entries) != len(want) {
		t.Fatalf("journaled %d entries, want %d", len(rec.entries), len(want))
	}
	for i, w := range want {
		got := rec.entries[i]
		if got.Track != w.track || got.Outcome != w.outcome || got.LowIndex != w.lowIndex || got.RequestID != "req-7" {
			t.Fatalf("entry %d = %+v, want track=%s outcome=%s low=%d", i, got, w.track, w.outcome, w.lowIndex)
		}
	}
	if rec.entries[0].VelocityMPS != bracketSpeed(1) {
		t.Fatalf("journaled velocity = %v, want %v", rec.entries[0].VelocityMPS, bracketSpeed(1))
	}
}

func TestRecorderFailureDoesNotFailQuery(t *testing.T) {
	svc := NewVelocityService(newTestStore(t), WithRecorder(&captureRecorder{err: errors.New("disk full")}))
	if _, err := svc.QueryVelocity(context.Background(), queryStruct(testTrack, testStart+15, "")); err != nil {
		t.Fatalf("QueryVelocity: %v", err)
	}
}

func TestQueryVelocityWithSQLiteJournal(t *testing.T) {
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	defer j.Close()

	svc := NewVelocityService(newTestStore(t), WithRecorder(j))
	for _, ts := range []float64{testStart + 5, testStart + 25, testStart + 1000} {
		_, _ = svc.QueryVelocity(context.Background(), queryStruct(testTrack, ts, ""))
	}

	counts, err := j.Counts(context.Background(), testTrack)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts["computed"] != 2 || counts["too_late"] != 1 {
		t.Fatalf("counts = %v, want 2 computed and 1 too_late", counts)
	}
}
