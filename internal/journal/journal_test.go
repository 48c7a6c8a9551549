package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestRecordAndRecent(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	at := time.Date(2018, time.July, 23, 8, 20, 0, 0, time.UTC)

	id1, err := j.Record(ctx, Entry{RecordedAt: at, RequestID: "r1", Track: "alpha", QueryTime: 1532334015, Outcome: "computed", VelocityMPS: 7660.5, LowIndex: 1})
	require.NoError(t, err)
	id2, err := j.Record(ctx, Entry{RecordedAt: at.Add(time.Second), Track: "beta", QueryTime: 1, Outcome: "too_early", LowIndex: -1})
	require.NoError(t, err)
	_, err = j.Record(ctx, Entry{RecordedAt: at.Add(2 * time.Second), Track: "alpha", QueryTime: 1532334000, Outcome: "at_origin", LowIndex: 0})
	require.NoError(t, err)
	assert.Greater(t, id2, id1)

	all, err := j.Recent(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "at_origin", all[0].Outcome, "newest entry first")

	alpha, err := j.Recent(ctx, "alpha", 10)
	require.NoError(t, err)
	require.Len(t, alpha, 2)
	first := alpha[1]
	assert.Equal(t, id1, first.ID)
	assert.Equal(t, "r1", first.RequestID)
	assert.Equal(t, 1532334015.0, first.QueryTime)
	assert.Equal(t, 7660.5, first.VelocityMPS)
	assert.Equal(t, 1, first.LowIndex)
	assert.True(t, first.RecordedAt.Equal(at))

	limited, err := j.Recent(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestRecordStampsTime(t *testing.T) {
	j := openTestJournal(t)
	fixed := time.Date(2020, time.January, 2, 3, 4, 5, 0, time.UTC)
	j.now = func() time.Time { return fixed }

	_, err := j.Record(context.Background(), Entry{Track: "alpha", Outcome: "computed"})
	require.NoError(t, err)

	entries, err := j.Recent(context.Background(), "alpha", 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].RecordedAt.Equal(fixed))
}

func TestCounts(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	for _, outcome := range []string{"computed", "computed", "too_late", "computed"} {
		_, err := j.Record(ctx, Entry{Track: "alpha", Outcome: outcome})
		require.NoError(t, err)
	}
	_, err := j.Record(ctx, Entry{Track: "beta", Outcome: "too_late"})
	require.NoError(t, err)

	counts, err := j.Counts(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"computed": 3, "too_late": 1}, counts)

	counts, err = j.Counts(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, counts["too_late"])
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path)
	require.NoError(t, err)
	_, err = j.Record(context.Background(), Entry{Track: "alpha", Outcome: "computed"})
	require.NoError(t, err)
	require.NoError(t, j.Close())

	j, err = Open(path)
	require.NoError(t, err, "migrations must be idempotent on reopen")
	defer j.Close()

	entries, err := j.Recent(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
