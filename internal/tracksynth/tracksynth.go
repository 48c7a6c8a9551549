// Package tracksynth produces recorded-track samples from orbital elements so
// that the velocity tools can be exercised without flight data.
package tracksynth

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/ecef-velocity/core"
	"github.com/signalsfoundry/ecef-velocity/model"
	"github.com/signalsfoundry/ecef-velocity/timectrl"
)

var (
	ErrInvalidTLE   = errors.New("invalid TLE")
	ErrPropagation  = errors.New("propagation failed")
	ErrInvalidRange = errors.New("invalid sample range")
)

// Source yields the position of a body at a given time.
type Source interface {
	SampleAt(t time.Time) (model.PositionSample, error)
}

// StaticSource reports the same geodetic position at every time.
type StaticSource struct {
	LatitudeDegrees  float64
	LongitudeDegrees float64
	HeightMeters     float64
}

// SampleAt returns the fixed position stamped with t.
func (s StaticSource) SampleAt(t time.Time) (model.PositionSample, error) {
	return model.PositionSample{
		Timestamp:        float64(t.Unix()),
		LatitudeDegrees:  s.LatitudeDegrees,
		LongitudeDegrees: s.LongitudeDegrees,
		HeightMeters:     s.HeightMeters,
	}, nil
}

// SGP4Source propagates a two-line element set with SGP4.
type SGP4Source struct {
	sat   satellite.Satellite
	epoch time.Time
}

// NewSGP4Source parses and checksums a TLE.
func NewSGP4Source(line1, line2 string) (src *SGP4Source, err error) {
	line1, line2 = strings.TrimRight(line1, " \r\n"), strings.TrimRight(line2, " \r\n")
	if err := checkTLELine(line1, '1'); err != nil {
		return nil, err
	}
	if err := checkTLELine(line2, '2'); err != nil {
		return nil, err
	}
	epoch, err := parseEpoch(line1)
	if err != nil {
		return nil, err
	}

	// TLEToSat panics on fields that survive the checksum but do not parse.
	defer func() {
		if r := recover(); r != nil {
			src, err = nil, fmt.Errorf("%w: %v", ErrInvalidTLE, r)
		}
	}()
	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS72)
	return &SGP4Source{sat: sat, epoch: epoch}, nil
}

// Epoch is the element set's reference time.
func (s *SGP4Source) Epoch() time.Time { return s.epoch }

// SampleAt propagates to t, truncated to whole seconds, and converts the
// inertial position to geodetic coordinates.
func (s *SGP4Source) SampleAt(t time.Time) (model.PositionSample, error) {
	t = t.UTC().Truncate(time.Second)
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	posECI, _ := satellite.Propagate(s.sat, year, int(month), day, hour, min, sec)
	if !finite(posECI.X) || !finite(posECI.Y) || !finite(posECI.Z) {
		return model.PositionSample{}, fmt.Errorf("%w at %s", ErrPropagation, t.Format(time.RFC3339))
	}
	gmst := satellite.ThetaG_JD(satellite.JDay(year, int(month), day, hour, min, sec))
	altKm, _, ll := satellite.ECIToLLA(posECI, gmst)

	const kmToM = 1000.0
	return model.PositionSample{
		Timestamp:        float64(t.Unix()),
		LatitudeDegrees:  core.RadiansToDegrees(ll.Latitude),
		LongitudeDegrees: wrapLongitude(core.RadiansToDegrees(ll.Longitude)),
		HeightMeters:     altKm * kmToM,
	}, nil
}

// Generate samples src count times, step apart, starting at start. The
// timeline is driven by an accelerated replay so sample times match what a
// replay of the resulting track visits.
func Generate(ctx context.Context, src Source, start time.Time, step time.Duration, count int) ([]model.PositionSample, error) {
	if count < 2 {
		return nil, fmt.Errorf("%w: count %d, need at least 2", ErrInvalidRange, count)
	}
	if step < time.Second || step%time.Second != 0 {
		return nil, fmt.Errorf("%w: step %s must be a whole number of seconds", ErrInvalidRange, step)
	}

	first := float64(start.Unix())
	stepSec := step.Seconds()
	rc, err := timectrl.NewReplayController(first, first+stepSec*float64(count-1), stepSec, timectrl.Accelerated)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	samples := make([]model.PositionSample, 0, count)
	var sampleErr error
	rc.AddListener(func(t float64) {
		if sampleErr != nil {
			return
		}
		s, err := src.SampleAt(time.Unix(int64(t), 0))
		if err != nil {
			sampleErr = err
			cancel()
			return
		}
		samples = append(samples, s)
	})

	if err := rc.Run(ctx); err != nil {
		if sampleErr != nil {
			return nil, sampleErr
		}
		return nil, err
	}
	return samples, nil
}

// WriteCSV writes samples in the loader's row format, heights in kilometres.
func WriteCSV(w io.Writer, samples []model.PositionSample) error {
	cw := csv.NewWriter(w)
	for _, s := range samples {
		if err := cw.Write([]string{
			strconv.FormatFloat(s.Timestamp, 'f', -1, 64),
			strconv.FormatFloat(s.LatitudeDegrees, 'f', 6, 64),
			strconv.FormatFloat(s.LongitudeDegrees, 'f', 6, 64),
			strconv.FormatFloat(s.HeightMeters/1000, 'f', 4, 64),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func checkTLELine(line string, want byte) error {
	if len(line) != 69 {
		return fmt.Errorf("%w: line %c has %d characters, want 69", ErrInvalidTLE, want, len(line))
	}
	if line[0] != want || line[1] != ' ' {
		return fmt.Errorf("%w: line %c has wrong line number", ErrInvalidTLE, want)
	}
	sum := 0
	for _, c := range line[:68] {
		switch {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	if got := int(line[68] - '0'); got != sum%10 {
		return fmt.Errorf("%w: line %c checksum %d, computed %d", ErrInvalidTLE, want, got, sum%10)
	}
	return nil
}

// parseEpoch reads the YYDDD.DDDDDDDD epoch field of line 1.
func parseEpoch(line1 string) (time.Time, error) {
	field := strings.TrimSpace(line1[18:32])
	if len(field) < 3 {
		return time.Time{}, fmt.Errorf("%w: epoch %q", ErrInvalidTLE, field)
	}
	yy, err := strconv.Atoi(field[:2])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: epoch year %q", ErrInvalidTLE, field[:2])
	}
	doy, err := strconv.ParseFloat(field[2:], 64)
	if err != nil || doy < 1 {
		return time.Time{}, fmt.Errorf("%w: epoch day %q", ErrInvalidTLE, field[2:])
	}

	year := 2000 + yy
	if yy >= 57 {
		year = 1900 + yy
	}
	base := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return base.Add(time.Duration((doy - 1) * float64(24*time.Hour))), nil
}

// wrapLongitude maps deg into (-180, 180].
func wrapLongitude(deg float64) float64 {
	deg = math.Mod(deg+180, 360)
	if deg < 0 {
		deg += 360
	}
	if deg == 0 {
		return 180
	}
	return deg - 180
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
