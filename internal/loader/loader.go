// Package loader reads recorded tracks from comma-separated files.
//
// Each row is "timestamp, latitude, longitude, height": seconds since the
// UNIX epoch, degrees, degrees and kilometres above the WGS84 ellipsoid.
// Heights are scaled to metres on read. Fields past the fourth are ignored.
package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/signalsfoundry/ecef-velocity/core"
	"github.com/signalsfoundry/ecef-velocity/model"
)

const (
	fieldsPerRow = 4

	// DefaultHeightScale converts the file's kilometre heights to metres.
	DefaultHeightScale = 1000.0
)

var ErrMalformedRow = errors.New("malformed row")

// Options controls parsing.
type Options struct {
	// MaxRows bounds how many rows are read; rows past it are ignored.
	// Zero means core.DefaultMaxSamples.
	MaxRows int
	// HeightScale multiplies the raw height column. Zero means
	// DefaultHeightScale.
	HeightScale float64
}

// Result is the parsed content of a track file.
type Result struct {
	Samples []model.PositionSample
	// Truncated is set when rows remained after MaxRows were read.
	Truncated bool
}

// Load parses rows from r.
func Load(r io.Reader, opts Options) (Result, error) {
	maxRows := opts.MaxRows
	if maxRows <= 0 {
		maxRows = core.DefaultMaxSamples
	}
	scale := opts.HeightScale
	if scale == 0 {
		scale = DefaultHeightScale
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	var res Result
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		if err != nil {
			return Result{}, fmt.Errorf("read track: %w", err)
		}
		if len(res.Samples) == maxRows {
			res.Truncated = true
			return res, nil
		}

		line, _ := cr.FieldPos(0)
		sample, err := parseRow(record, scale)
		if err != nil {
			return Result{}, fmt.Errorf("line %d: %w", line, err)
		}
		res.Samples = append(res.Samples, sample)
	}
}

// LoadFile opens path and parses it with Load.
func LoadFile(path string, opts Options) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open track %s: %w", path, err)
	}
	defer f.Close()

	res, err := Load(f, opts)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", path, err)
	}
	return res, nil
}

func parseRow(record []string, heightScale float64) (model.PositionSample, error) {
	if len(record) < fieldsPerRow {
		return model.PositionSample{}, fmt.Errorf("%w: want %d fields, got %d", ErrMalformedRow, fieldsPerRow, len(record))
	}

	var vals [fieldsPerRow]float64
	for i := range vals {
		v, err := strconv.ParseFloat(strings.TrimSpace(record[i]), 64)
		if err != nil {
			return model.PositionSample{}, fmt.Errorf("%w: field %d %q", ErrMalformedRow, i+1, record[i])
		}
		vals[i] = v
	}

	return model.PositionSample{
		Timestamp:        vals[0],
		LatitudeDegrees:  vals[1],
		LongitudeDegrees: vals[2],
		HeightMeters:     vals[3] * heightScale,
	}, nil
}
