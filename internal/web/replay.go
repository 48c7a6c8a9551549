package web

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/signalsfoundry/ecef-velocity/core"
	"github.com/signalsfoundry/ecef-velocity/internal/logging"
	"github.com/signalsfoundry/ecef-velocity/internal/units"
	"github.com/signalsfoundry/ecef-velocity/kb"
	"github.com/signalsfoundry/ecef-velocity/timectrl"
)

const replayWriteWait = 5 * time.Second

// ReplayFrame is one websocket message of a track replay.
type ReplayFrame struct {
	Track    string  `json:"track"`
	Time     float64 `json:"time"`
	Velocity float64 `json:"velocity"`
	Units    string  `json:"units"`
	AtOrigin bool    `json:"at_origin,omitempty"`
	LowIndex int     `json:"low_index"`
	// Reason and Error are set when the tick could not be estimated.
	Reason string `json:"reason,omitempty"`
	Error  string `json:"error,omitempty"`
}

type replayParams struct {
	start, end, step float64
	mode             timectrl.Mode
}

// parseReplayParams reads start, end, step and realtime. Missing bounds
// default to the track's range and a missing step to its sampling interval.
func (s *Server) parseReplayParams(r *http.Request, tr *kb.Track) (replayParams, error) {
	seq := tr.Calculator.Sequence()
	p := replayParams{
		start: seq.Start(),
		end:   seq.End(),
		step:  seq.TimeIncrement(),
		mode:  timectrl.Accelerated,
	}
	q := r.URL.Query()
	for _, f := range []struct {
		name string
		dst  *float64
	}{{"start", &p.start}, {"end", &p.end}, {"step", &p.step}} {
		raw := q.Get(f.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return replayParams{}, fmt.Errorf("invalid '%s' parameter %q", f.name, raw)
		}
		*f.dst = v
	}
	if raw := q.Get("realtime"); raw != "" {
		rt, err := strconv.ParseBool(raw)
		if err != nil {
			return replayParams{}, fmt.Errorf("invalid 'realtime' parameter %q", raw)
		}
		if rt {
			if p.step > s.maxRealtime.Seconds() {
				return replayParams{}, fmt.Errorf("realtime step %gs exceeds %s", p.step, s.maxRealtime)
			}
			p.mode = timectrl.RealTime
		}
	}
	return p, nil
}

// handleReplay streams one ReplayFrame per replay tick over a websocket and
// closes normally once the replay reaches its end. The client may hang up at
// any time to stop it.
func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	tr, unit, ok := s.lookupTrack(w, r)
	if !ok {
		return
	}
	p, err := s.parseReplayParams(r, tr)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	rc, err := timectrl.NewReplayController(p.start, p.end, p.step, p.mode)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	log := logging.FromContext(r.Context(), s.log).With(logging.String("track", tr.Name))
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied.
		log.Warn(r.Context(), "websocket upgrade failed", logging.Err(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Drain client frames so close and ping control messages are handled;
	// any read error means the client went away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	var writeErr error
	frames := 0
	rc.AddListener(func(t float64) {
		if writeErr != nil {
			return
		}
		_ = conn.SetWriteDeadline(time.Now().Add(replayWriteWait))
		if writeErr = conn.WriteJSON(replayFrame(tr, t, unit)); writeErr != nil {
			cancel()
			return
		}
		frames++
	})

	log.Info(ctx, "replay started",
		logging.Float64("start", p.start),
		logging.Float64("end", p.end),
		logging.Float64("step", p.step),
	)
	runErr := rc.Run(ctx)
	switch {
	case writeErr != nil:
		log.Warn(ctx, "replay aborted on write", logging.Int("frames", frames), logging.Err(writeErr))
	case errors.Is(runErr, context.Canceled):
		log.Info(ctx, "replay cancelled by client", logging.Int("frames", frames))
	default:
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "replay complete")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(replayWriteWait))
		log.Info(ctx, "replay complete", logging.Int("frames", frames))
	}
}

func replayFrame(tr *kb.Track, t float64, unit string) ReplayFrame {
	f := ReplayFrame{Track: tr.Name, Time: t, Units: unit, LowIndex: -1}
	est, err := tr.Calculator.QueryVelocity(t)
	if err != nil {
		f.Error = err.Error()
		if rej, ok := core.AsRejection(err); ok {
			f.Reason = rej.Reason.String()
		}
		return f
	}
	f.Velocity = units.ConvertSpeed(est.Velocity, unit)
	f.AtOrigin = est.AtOrigin
	f.LowIndex = est.LowIndex
	return f
}
