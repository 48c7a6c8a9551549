package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/signalsfoundry/ecef-velocity/internal/logging"
	"github.com/signalsfoundry/ecef-velocity/internal/tracksynth"
)

// ISS element set used when no TLE is given.
const (
	defaultTLE1 = "1 25544U 98067A   08264.51782528 -.00002182  00000-0 -11606-4 0  2927"
	defaultTLE2 = "2 25544  51.6416 247.4627 0006703 130.5360 325.0288 15.72125391563537"
)

type options struct {
	tle1, tle2 string
	start      string
	step       time.Duration
	count      int
	outPath    string
}

func main() {
	var opts options
	flag.StringVar(&opts.tle1, "tle1", defaultTLE1, "TLE line 1")
	flag.StringVar(&opts.tle2, "tle2", defaultTLE2, "TLE line 2")
	flag.StringVar(&opts.start, "start", "", "First sample time (RFC3339 or UNIX seconds); empty uses the TLE epoch")
	flag.DurationVar(&opts.step, "step", 10*time.Second, "Interval between samples (whole seconds)")
	flag.IntVar(&opts.count, "count", 200, "Number of samples")
	flag.StringVar(&opts.outPath, "out", "", "Output CSV path; empty writes to stdout")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	out := io.Writer(os.Stdout)
	if opts.outPath != "" {
		f, err := os.Create(opts.outPath)
		if err != nil {
			log.Error(ctx, "failed to create output", logging.String("path", opts.outPath), logging.Err(err))
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}

	if err := run(ctx, opts, out, log); err != nil {
		log.Error(ctx, "track synthesis failed", logging.Err(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, out io.Writer, log logging.Logger) error {
	src, err := tracksynth.NewSGP4Source(opts.tle1, opts.tle2)
	if err != nil {
		return err
	}

	start := src.Epoch()
	if opts.start != "" {
		if start, err = parseStart(opts.start); err != nil {
			return err
		}
	}

	samples, err := tracksynth.Generate(ctx, src, start, opts.step, opts.count)
	if err != nil {
		return err
	}
	if err := tracksynth.WriteCSV(out, samples); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}

	log.Info(ctx, "synthesised track",
		logging.String("epoch", src.Epoch().Format(time.RFC3339)),
		logging.Float64("start", samples[0].Timestamp),
		logging.Float64("end", samples[len(samples)-1].Timestamp),
		logging.Int("samples", len(samples)),
	)
	return nil
}

func parseStart(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	var secs int64
	if _, err := fmt.Sscanf(raw, "%d", &secs); err == nil {
		return time.Unix(secs, 0), nil
	}
	return time.Time{}, errors.New("start must be RFC3339 or UNIX seconds")
}
