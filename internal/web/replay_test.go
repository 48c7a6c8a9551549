package web

import (
	"net/http"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialReplay(t *testing.T, baseURL, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(baseURL, "http") + "/ws/replay?" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readFrames collects frames until the server closes the stream and returns
// them with the close code.
func readFrames(t *testing.T, conn *websocket.Conn) ([]ReplayFrame, int) {
	t.Helper()
	var frames []ReplayFrame
	for {
		var f ReplayFrame
		if err := conn.ReadJSON(&f); err != nil {
			var ce *websocket.CloseError
			require.ErrorAs(t, err, &ce)
			return frames, ce.Code
		}
		frames = append(frames, f)
	}
}

func TestReplayStreamsEveryTick(t *testing.T) {
	srv := newTestServer(t)
	conn := dialReplay(t, srv.URL, "track=equator")

	frames, code := readFrames(t, conn)
	assert.Equal(t, websocket.CloseNormalClosure, code)
	require.Len(t, frames, 6)

	assert.True(t, frames[0].AtOrigin)
	assert.Equal(t, 0.0, frames[0].Velocity)
	assert.Equal(t, 0, frames[0].LowIndex)

	wantLow := []int{0, 1, 2, 3, 4, 4}
	for i, f := range frames {
		assert.Equal(t, testTrack, f.Track)
		assert.Equal(t, testStart+float64(i)*testStep, f.Time)
		assert.Equal(t, "mps", f.Units)
		assert.Empty(t, f.Error)
		assert.Equal(t, wantLow[i], f.LowIndex, "frame %d", i)
		if i > 0 {
			assert.InDelta(t, bracketSpeed(wantLow[i]), f.Velocity, 1e-9, "frame %d", i)
		}
	}
}

func TestReplayCustomRangeAndUnits(t *testing.T) {
	srv := newTestServer(t, WithDefaultUnits("kph"))
	conn := dialReplay(t, srv.URL, "track=equator&start=1005&end=1045&step=20")

	frames, code := readFrames(t, conn)
	assert.Equal(t, websocket.CloseNormalClosure, code)
	require.Len(t, frames, 3)
	assert.Equal(t, []float64{1005, 1025, 1045}, []float64{frames[0].Time, frames[1].Time, frames[2].Time})
	for _, f := range frames {
		assert.Equal(t, "kph", f.Units)
	}
	assert.InDelta(t, bracketSpeed(0)*3.6, frames[0].Velocity, 1e-9)
}

func TestReplayReportsOutOfRangeTicks(t *testing.T) {
	srv := newTestServer(t)
	conn := dialReplay(t, srv.URL, "track=equator&start=990&end=1060&step=35")

	frames, _ := readFrames(t, conn)
	require.Len(t, frames, 3)

	assert.Equal(t, "too_early", frames[0].Reason)
	assert.Equal(t, -1, frames[0].LowIndex)
	assert.NotEmpty(t, frames[0].Error)

	assert.Empty(t, frames[1].Error)
	assert.Equal(t, 2, frames[1].LowIndex)

	assert.Equal(t, 1060.0, frames[2].Time)
	assert.Equal(t, "too_late", frames[2].Reason)
}

func TestReplayClientHangUp(t *testing.T) {
	srv := newTestServer(t)
	conn := dialReplay(t, srv.URL, "track=equator&step=0.01&realtime=true")

	var f ReplayFrame
	require.NoError(t, conn.ReadJSON(&f))
	assert.True(t, f.AtOrigin)
	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))
}
