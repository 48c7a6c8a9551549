package timectrl

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

// Mode describes how the controller advances track time.
type Mode int

const (
	// RealTime waits one step of wall-clock time between ticks.
	RealTime Mode = iota
	// Accelerated fires ticks back to back.
	Accelerated
)

// ReplayController walks a recorded track's timeline from StartTime to
// EndTime in fixed steps and notifies listeners at every tick. Times are
// seconds since the UNIX epoch, matching sample timestamps.
type ReplayController struct {
	mu        sync.RWMutex
	StartTime float64
	EndTime   float64
	Step      float64
	Mode      Mode

	currentTime float64
	// interval is Step as wall-clock time; set only in RealTime mode.
	interval time.Duration

	listeners []func(float64)
}

// ErrRealtimeStep is returned when a RealTime step cannot be expressed as a
// positive time.Duration.
var ErrRealtimeStep = errors.New("realtime replay step out of range")

// NewReplayController constructs a controller. step must be positive and
// end must not precede start. In RealTime mode step must also lie between
// one nanosecond and the largest time.Duration.
func NewReplayController(start, end, step float64, mode Mode) (*ReplayController, error) {
	if !(step > 0) || math.IsInf(step, 0) {
		return nil, errors.New("replay step must be positive")
	}
	if end < start {
		return nil, errors.New("replay end precedes start")
	}
	rc := &ReplayController{
		StartTime:   start,
		EndTime:     end,
		Step:        step,
		Mode:        mode,
		currentTime: start,
	}
	if mode == RealTime {
		ns := step * float64(time.Second)
		if ns < 1 || ns >= math.MaxInt64 {
			return nil, fmt.Errorf("%w: %gs", ErrRealtimeStep, step)
		}
		rc.interval = time.Duration(ns)
	}
	return rc, nil
}

// Now returns the time of the most recent tick.
func (rc *ReplayController) Now() float64 {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.currentTime
}

// SetTime moves the replay cursor without firing listeners.
func (rc *ReplayController) SetTime(t float64) {
	rc.mu.Lock()
	rc.currentTime = t
	rc.mu.Unlock()
}

// AddListener registers a callback invoked on every tick. Register listeners
// before Run.
func (rc *ReplayController) AddListener(fn func(float64)) {
	rc.listeners = append(rc.listeners, fn)
}

// Run replays the timeline synchronously. Tick k lands on StartTime + k·Step
// so error does not accumulate; a final tick lands exactly on EndTime when the
// steps do not. It returns ctx.Err() if cancelled.
func (rc *ReplayController) Run(ctx context.Context) error {
	var ticker *time.Ticker
	if rc.Mode == RealTime {
		ticker = time.NewTicker(rc.interval)
		defer ticker.Stop()
	}

	for k := 0; ; k++ {
		t := rc.StartTime + float64(k)*rc.Step
		last := false
		if t >= rc.EndTime {
			t = rc.EndTime
			last = true
		}

		if k > 0 && ticker != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		rc.SetTime(t)
		for _, fn := range rc.listeners {
			fn(t)
		}
		if last {
			return nil
		}
	}
}

// Start runs Run in a separate goroutine. The returned channel receives
// Run's result and is then closed.
func (rc *ReplayController) Start(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- rc.Run(ctx)
	}()
	return done
}
