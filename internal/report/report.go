// Package report renders velocity profiles as charts.
package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/signalsfoundry/ecef-velocity/core"
	"github.com/signalsfoundry/ecef-velocity/internal/units"
)

// Image formats accepted by WriteProfileImage.
const (
	FormatPNG = "png"
	FormatSVG = "svg"
)

// ProfilePlot draws segment velocity against seconds since the first sample.
func ProfilePlot(track string, p core.ProfileSummary, unit string) (*plot.Plot, error) {
	if len(p.Segments) == 0 {
		return nil, fmt.Errorf("track %q has no segments", track)
	}

	pl := plot.New()
	pl.Title.Text = fmt.Sprintf("%s velocity profile", track)
	pl.X.Label.Text = "seconds since first sample"
	pl.Y.Label.Text = units.Suffix(unit)
	pl.Add(plotter.NewGrid())

	origin := p.Segments[0].StartTime
	pts := make(plotter.XYs, 0, len(p.Segments))
	for _, seg := range p.Segments {
		pts = append(pts, plotter.XY{
			X: seg.StartTime - origin,
			Y: units.ConvertSpeed(seg.Velocity, unit),
		})
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("profile line: %w", err)
	}
	line.Width = vg.Points(1)
	pl.Add(line)

	mean, err := plotter.NewLine(plotter.XYs{
		{X: pts[0].X, Y: units.ConvertSpeed(p.Mean, unit)},
		{X: pts[len(pts)-1].X, Y: units.ConvertSpeed(p.Mean, unit)},
	})
	if err != nil {
		return nil, fmt.Errorf("mean line: %w", err)
	}
	mean.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	pl.Add(mean)
	pl.Legend.Add("velocity", line)
	pl.Legend.Add("mean", mean)
	return pl, nil
}

// WriteProfileImage renders the profile plot to w as PNG or SVG.
func WriteProfileImage(w io.Writer, format, track string, p core.ProfileSummary, unit string) error {
	if format != FormatPNG && format != FormatSVG {
		return fmt.Errorf("unsupported image format %q", format)
	}
	pl, err := ProfilePlot(track, p, unit)
	if err != nil {
		return err
	}
	wt, err := pl.WriterTo(10*vg.Inch, 4*vg.Inch, format)
	if err != nil {
		return fmt.Errorf("render %s: %w", format, err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// SaveProfileImage writes the profile plot to path; the extension picks the
// format.
func SaveProfileImage(path, track string, p core.ProfileSummary, unit string) error {
	pl, err := ProfilePlot(track, p, unit)
	if err != nil {
		return err
	}
	return pl.Save(10*vg.Inch, 4*vg.Inch, path)
}

// RenderProfileHTML writes an interactive line chart of the profile.
func RenderProfileHTML(w io.Writer, track string, p core.ProfileSummary, unit string) error {
	if len(p.Segments) == 0 {
		return fmt.Errorf("track %q has no segments", track)
	}

	xs := make([]string, 0, len(p.Segments))
	ys := make([]opts.LineData, 0, len(p.Segments))
	for _, seg := range p.Segments {
		xs = append(xs, strconv.FormatFloat(seg.StartTime, 'f', -1, 64))
		ys = append(ys, opts.LineData{Value: units.ConvertSpeed(seg.Velocity, unit)})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: track + " velocity", Width: "1100px", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{
			Title: fmt.Sprintf("%s velocity profile", track),
			Subtitle: fmt.Sprintf("segments=%d min=%.6g max=%.6g mean=%.6g %s",
				len(p.Segments),
				units.ConvertSpeed(p.Min, unit), units.ConvertSpeed(p.Max, unit), units.ConvertSpeed(p.Mean, unit),
				unit),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "start (s)", NameLocation: "middle", NameGap: 30}),
		charts.WithYAxisOpts(opts.YAxis{Name: units.Suffix(unit), NameLocation: "middle", NameGap: 50}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	line.SetXAxis(xs).AddSeries("velocity", ys)
	return line.Render(w)
}
