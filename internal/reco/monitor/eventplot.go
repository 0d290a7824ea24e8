package monitor

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/seedline/internal/reco/l3spacepoints"
	"github.com/banshee-data/seedline/internal/reco/pipeline"
)

var (
	hitColor  = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	seedColor = color.RGBA{R: 214, G: 39, B: 40, A: 160}
)

// view projects a spacepoint onto one plot plane.
type view struct {
	suffix string
	title  string
	xLabel string
	yLabel string
	xy     func(sp l3spacepoints.Spacepoint) (float64, float64)
}

var views = []view{
	{
		suffix: "xy", title: "transverse", xLabel: "x (mm)", yLabel: "y (mm)",
		xy: func(sp l3spacepoints.Spacepoint) (float64, float64) { return sp.Global[0], sp.Global[1] },
	},
	{
		suffix: "rz", title: "longitudinal", xLabel: "z (mm)", yLabel: "r (mm)",
		xy: func(sp l3spacepoints.Spacepoint) (float64, float64) { return sp.Z(), sp.R() },
	},
}

// PlotEvent writes the x-y and r-z views of one result into dir and
// returns the file paths. Spacepoints are drawn as dots and every seed as
// a polyline through its three spacepoints.
func PlotEvent(res *pipeline.Result, dir string) ([]string, error) {
	if res == nil {
		return nil, fmt.Errorf("plot event: nil result")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	var files []string
	for _, v := range views {
		p, err := eventPlot(res, v)
		if err != nil {
			return files, fmt.Errorf("event %d %s view: %w", res.EventID, v.suffix, err)
		}
		file := filepath.Join(dir, fmt.Sprintf("event_%06d_%s_%s.png", res.EventID, res.Variant, v.suffix))
		if err := p.Save(8*vg.Inch, 8*vg.Inch, file); err != nil {
			return files, fmt.Errorf("save %s: %w", file, err)
		}
		files = append(files, file)
	}
	return files, nil
}

func eventPlot(res *pipeline.Result, v view) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Event %d (%s) - %s: %d spacepoints, %d seeds",
		res.EventID, res.Variant, v.title, len(res.Spacepoints), len(res.Seeds))
	p.X.Label.Text = v.xLabel
	p.Y.Label.Text = v.yLabel

	for _, s := range res.Seeds {
		pts := make(plotter.XYs, 0, 3)
		for _, i := range []int{s.Inner, s.Middle, s.Outer} {
			if i < 0 || i >= len(res.Spacepoints) {
				return nil, fmt.Errorf("seed references spacepoint %d of %d", i, len(res.Spacepoints))
			}
			x, y := v.xy(res.Spacepoints[i])
			pts = append(pts, plotter.XY{X: x, Y: y})
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, err
		}
		line.Color = seedColor
		line.Width = vg.Points(0.75)
		p.Add(line)
	}

	if len(res.Spacepoints) > 0 {
		hits := make(plotter.XYs, len(res.Spacepoints))
		for i, sp := range res.Spacepoints {
			hits[i].X, hits[i].Y = v.xy(sp)
		}
		scatter, err := plotter.NewScatter(hits)
		if err != nil {
			return nil, err
		}
		scatter.GlyphStyle.Color = hitColor
		scatter.GlyphStyle.Radius = vg.Points(1.5)
		p.Add(scatter)
		p.Legend.Add("spacepoints", scatter)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Add(plotter.NewGrid())
	return p, nil
}
