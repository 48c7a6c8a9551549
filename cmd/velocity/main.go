package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/signalsfoundry/ecef-velocity/core"
	"github.com/signalsfoundry/ecef-velocity/internal/loader"
	"github.com/signalsfoundry/ecef-velocity/internal/logging"
	"github.com/signalsfoundry/ecef-velocity/internal/report"
	"github.com/signalsfoundry/ecef-velocity/internal/units"
)

type options struct {
	dataPath   string
	maxSamples int
	unit       string
	queryTime  string
	profile    bool
	chartPath  string
	replay     bool
	replayStep float64
	realtime   bool
}

func parseFlags(args []string, errOut io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("velocity", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.StringVar(&opts.dataPath, "data", "configs/sample_track.csv", "CSV file of timestamp, latitude, longitude, height (km) rows")
	fs.IntVar(&opts.maxSamples, "max-samples", core.DefaultMaxSamples, "Maximum number of rows read from the data file")
	fs.StringVar(&opts.unit, "units", units.MPS, "Speed units: "+units.ValidUnitsString())
	fs.StringVar(&opts.queryTime, "time", "", "Print the velocity at this time (seconds from UNIX epoch) and exit")
	fs.BoolVar(&opts.profile, "profile", false, "Print the velocity of every sample interval and exit")
	fs.StringVar(&opts.chartPath, "chart", "", "Write a velocity profile chart to this .html, .png or .svg file and exit")
	fs.BoolVar(&opts.replay, "replay", false, "Replay the track, printing the velocity at each step")
	fs.Float64Var(&opts.replayStep, "replay-step", 0, "Replay step in seconds; 0 uses the track's sample interval")
	fs.BoolVar(&opts.realtime, "realtime", false, "Replay in wall-clock time instead of as fast as possible")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	if !units.IsValid(opts.unit) {
		return options{}, fmt.Errorf("invalid -units %q: must be one of %s", opts.unit, units.ValidUnitsString())
	}
	if opts.maxSamples < 2 {
		return options{}, fmt.Errorf("invalid -max-samples %d: must be at least 2", opts.maxSamples)
	}
	switch strings.ToLower(filepath.Ext(opts.chartPath)) {
	case "", ".html", ".png", ".svg":
	default:
		return options{}, fmt.Errorf("invalid -chart %q: extension must be .html, .png or .svg", opts.chartPath)
	}
	if opts.replayStep < 0 || math.IsNaN(opts.replayStep) || math.IsInf(opts.replayStep, 0) {
		return options{}, fmt.Errorf("invalid -replay-step %v", opts.replayStep)
	}
	return opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdin, os.Stdout, log); err != nil {
		log.Error(ctx, "velocity failed", logging.Err(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, in io.Reader, out io.Writer, log logging.Logger) error {
	calc, err := loadCalculator(ctx, opts, log)
	if err != nil {
		return err
	}
	rep := &reporter{out: out, unit: opts.unit, log: log}

	switch {
	case opts.queryTime != "":
		t, err := parseTime(opts.queryTime)
		if err != nil {
			return fmt.Errorf("invalid -time: %w", err)
		}
		rep.query(ctx, calc, t)
		return nil
	case opts.chartPath != "":
		if err := writeChart(opts.chartPath, opts.dataPath, calc.Profile(), opts.unit); err != nil {
			return err
		}
		fmt.Fprintf(out, "Wrote %s.\n", opts.chartPath)
		return nil
	case opts.profile:
		rep.profile(calc.Profile())
		return nil
	case opts.replay:
		return replay(ctx, calc, opts, rep)
	default:
		return runMenu(ctx, calc, in, rep)
	}
}

func loadCalculator(ctx context.Context, opts options, log logging.Logger) (*core.VelocityCalculator, error) {
	res, err := loader.LoadFile(opts.dataPath, loader.Options{MaxRows: opts.maxSamples})
	if err != nil {
		return nil, err
	}
	if res.Truncated {
		log.Warn(ctx, "data file exceeds sample cap; extra rows ignored",
			logging.String("path", opts.dataPath),
			logging.Int("max_samples", opts.maxSamples),
		)
	}

	seq, err := core.NewSampleSequence(res.Samples, core.WithMaxSamples(opts.maxSamples))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", opts.dataPath, err)
	}
	log.Debug(ctx, "loaded track",
		logging.String("path", opts.dataPath),
		logging.Int("samples", seq.Len()),
		logging.Float64("start", seq.Start()),
		logging.Float64("end", seq.End()),
		logging.Float64("time_increment", seq.TimeIncrement()),
	)
	return core.NewVelocityCalculator(seq)
}

// writeChart renders the profile named after the data file. HTML charts are
// interactive; PNG and SVG are static plots.
func writeChart(path, dataPath string, p core.ProfileSummary, unit string) error {
	track := strings.TrimSuffix(filepath.Base(dataPath), filepath.Ext(dataPath))
	if strings.EqualFold(filepath.Ext(path), ".html") {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := report.RenderProfileHTML(f, track, p, unit); err != nil {
			f.Close()
			return fmt.Errorf("render chart: %w", err)
		}
		return f.Close()
	}
	if err := report.SaveProfileImage(path, track, p, unit); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

func parseTime(raw string) (float64, error) {
	t, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return 0, fmt.Errorf("time %q is not finite", raw)
	}
	return t, nil
}
