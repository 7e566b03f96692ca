package api

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"net/http"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/mushmap/internal/mapimg"
	"github.com/banshee-data/mushmap/internal/pipeline"
)

// Tiers charted on the coverage trend, oldest line first in the legend.
var chartedTiers = []mapimg.Tier{
	mapimg.TierLow,
	mapimg.TierModerate,
	mapimg.TierHigh,
	mapimg.TierVeryHigh,
}

var tierLineColors = map[mapimg.Tier]color.RGBA{
	mapimg.TierLow:      {R: 217, G: 239, B: 139, A: 255},
	mapimg.TierModerate: {R: 166, G: 217, B: 106, A: 255},
	mapimg.TierHigh:     {R: 102, G: 189, B: 99, A: 255},
	mapimg.TierVeryHigh: {R: 0, G: 104, B: 55, A: 255},
}

// serveTrendChart plots per-tier coverage across the stored window as a PNG.
func (s *Server) serveTrendChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	snap, err := s.runner.Artifacts().Latest()
	if err != nil {
		if errors.Is(err, pipeline.ErrNotAvailable) {
			s.writeJSONError(w, http.StatusServiceUnavailable, "No coverage data yet")
			return
		}
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to load coverage")
		return
	}

	p := plot.New()
	p.Title.Text = "Tier coverage across stored window"
	p.X.Label.Text = "window position (oldest first)"
	p.Y.Label.Text = "fraction of data-bearing cells"
	p.Y.Min = 0
	p.Legend.Top = true

	for _, tier := range chartedTiers {
		pts := make(plotter.XYs, 0, len(snap.Coverage))
		for i, cov := range snap.Coverage {
			pts = append(pts, plotter.XY{X: float64(i), Y: cov.ByTier[tier]})
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			s.writeJSONError(w, http.StatusInternalServerError, "Failed to build chart")
			return
		}
		line.Color = tierLineColors[tier]
		line.Width = vg.Points(2)
		p.Add(line)
		p.Legend.Add(tier.String(), line)
	}

	wt, err := p.WriterTo(10*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to render chart")
		return
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to render chart")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(buf.Bytes())
}

// serveTierChart renders an interactive bar chart of the newest capture's
// tier coverage using go-echarts.
func (s *Server) serveTierChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	snap, err := s.runner.Artifacts().Latest()
	if err != nil {
		if errors.Is(err, pipeline.ErrNotAvailable) {
			s.writeJSONError(w, http.StatusServiceUnavailable, "No coverage data yet")
			return
		}
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to load coverage")
		return
	}

	newest := snap.Coverage[len(snap.Coverage)-1]
	labels := make([]string, 0, len(chartedTiers))
	values := make([]opts.BarData, 0, len(chartedTiers))
	for _, tier := range chartedTiers {
		labels = append(labels, tier.String())
		values = append(values, opts.BarData{Value: newest.ByTier[tier]})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Growth tier coverage",
			Subtitle: fmt.Sprintf("captured %s", newest.CapturedAt.Format(time.RFC3339)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "fraction of data-bearing cells"}),
	)
	bar.SetXAxis(labels)
	bar.AddSeries("coverage", values,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))

	var buf bytes.Buffer
	if err := bar.Render(&buf); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to render chart")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}
