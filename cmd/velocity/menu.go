package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/signalsfoundry/ecef-velocity/core"
	"github.com/signalsfoundry/ecef-velocity/internal/logging"
	"github.com/signalsfoundry/ecef-velocity/internal/units"
	"github.com/signalsfoundry/ecef-velocity/timectrl"
)

// Preset query times offered by the menu.
const (
	presetFirst  = 1532334000.0
	presetSecond = 1532335268.0
)

// reporter prints query outcomes the way the interactive tool always has.
type reporter struct {
	out  io.Writer
	unit string
	log  logging.Logger
}

func (r *reporter) query(ctx context.Context, calc *core.VelocityCalculator, t float64) {
	est, err := calc.QueryVelocity(t)
	if err != nil {
		rej, ok := core.AsRejection(err)
		switch {
		case ok && rej.Reason == core.TooEarly:
			fmt.Fprintln(r.out, "Value too small for time-range.")
			fmt.Fprintf(r.out, "Minimum Value: %f\n", rej.Bound)
		case ok && rej.Reason == core.TooLate:
			fmt.Fprintln(r.out, "Value too large for time-range.")
			fmt.Fprintf(r.out, "Maximum Value: %f\n", rej.Bound)
		default:
			r.log.Error(ctx, "velocity lookup failed", logging.Float64("time", t), logging.Err(err))
			fmt.Fprintln(r.out, "ERROR")
		}
		return
	}

	if est.AtOrigin {
		fmt.Fprintln(r.out, "Starting Position: Velocity Calculated as 0.")
		return
	}
	fmt.Fprintf(r.out, "Velocity at %f seconds from UNIX epoch: %.6g %s.\n",
		t, units.ConvertSpeed(est.Velocity, r.unit), units.Suffix(r.unit))
}

func (r *reporter) profile(p core.ProfileSummary) {
	fmt.Fprintf(r.out, "%-20s %s\n", "start", units.Suffix(r.unit))
	for _, seg := range p.Segments {
		fmt.Fprintf(r.out, "%-20f %.6g\n", seg.StartTime, units.ConvertSpeed(seg.Velocity, r.unit))
	}
	fmt.Fprintf(r.out, "segments: %d\n", len(p.Segments))
	fmt.Fprintf(r.out, "min: %.6g\n", units.ConvertSpeed(p.Min, r.unit))
	fmt.Fprintf(r.out, "max: %.6g\n", units.ConvertSpeed(p.Max, r.unit))
	fmt.Fprintf(r.out, "mean: %.6g\n", units.ConvertSpeed(p.Mean, r.unit))
	fmt.Fprintf(r.out, "stddev: %.6g\n", units.ConvertSpeed(p.StdDev, r.unit))
}

// runMenu drives the numbered prompt until the user quits or input ends.
func runMenu(ctx context.Context, calc *core.VelocityCalculator, in io.Reader, rep *reporter) error {
	sc := bufio.NewScanner(in)
	sc.Split(bufio.ScanWords)
	out := rep.out

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		fmt.Fprintln(out, "Please Select An Option.")
		fmt.Fprintf(out, "1. Evaluate Velocity at %.0f Seconds From UNIX Epoch: \n", presetFirst)
		fmt.Fprintf(out, "2. Evaluate Velocity at %.0f Seconds From UNIX Epoch: \n", presetSecond)
		fmt.Fprintln(out, "3. Evaluate Velocity at Custom Time From UNIX Epoch: ")
		fmt.Fprintln(out, "4. Quit")

		if !sc.Scan() {
			return scanErr(sc)
		}
		switch sc.Text() {
		case "1":
			rep.query(ctx, calc, presetFirst)
		case "2":
			rep.query(ctx, calc, presetSecond)
		case "3":
			fmt.Fprintln(out, "Enter Your Time.")
			if !sc.Scan() {
				return scanErr(sc)
			}
			t, err := parseTime(sc.Text())
			if err != nil {
				fmt.Fprintln(out, "Not a Valid Time")
				continue
			}
			rep.query(ctx, calc, t)
		case "4":
			fmt.Fprintln(out, "Have A Lovely Day.")
			return nil
		default:
			fmt.Fprintln(out, "Not a Valid Input")
			fmt.Fprintln(out, "-----------------------")
		}
	}
}

func scanErr(sc *bufio.Scanner) error {
	if err := sc.Err(); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// replay steps through the track, reporting the velocity at every tick.
func replay(ctx context.Context, calc *core.VelocityCalculator, opts options, rep *reporter) error {
	seq := calc.Sequence()
	step := opts.replayStep
	if step == 0 {
		step = seq.TimeIncrement()
	}
	mode := timectrl.Accelerated
	if opts.realtime {
		mode = timectrl.RealTime
	}

	rc, err := timectrl.NewReplayController(seq.Start(), seq.End(), step, mode)
	if err != nil {
		return err
	}
	rc.AddListener(func(t float64) { rep.query(ctx, calc, t) })

	if err := rc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
