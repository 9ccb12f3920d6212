// Package viz renders a finished test result as a self-contained HTML page
// for visual inspection: the smoothed hip trajectory and the per-window sway
// timeline. Debugging output, not a product report.
package viz

import (
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/finessevanes/ltad-coach-sub005/internal/balance"
)

var timeColors = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// Render writes the HTML report for one result to w.
func Render(w io.Writer, res *balance.TestResult) error {
	if res == nil {
		return fmt.Errorf("viz: nil result")
	}

	page := components.NewPage()
	page.PageTitle = "Balance Test Result"
	page.AddCharts(trajectoryChart(res), windowChart(res))

	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render result page: %w", err)
	}
	return nil
}

// WriteFile renders the report to a file.
func WriteFile(path string, res *balance.TestResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	defer f.Close()
	return Render(f, res)
}

// trajectoryChart plots the hip midpoint path, colored by elapsed hold time.
func trajectoryChart(res *balance.TestResult) *charts.Scatter {
	data := make([]opts.ScatterData, 0, len(res.HipTrajectory))

	// Center the axes on the trajectory start so drift reads directly in cm.
	var ox, oy float64
	if len(res.HipTrajectory) > 0 {
		ox, oy = res.HipTrajectory[0].X, res.HipTrajectory[0].Y
	}
	maxAbs := 0.0
	for _, p := range res.HipTrajectory {
		x := p.X - ox
		y := p.Y - oy
		if math.Abs(x) > maxAbs {
			maxAbs = math.Abs(x)
		}
		if math.Abs(y) > maxAbs {
			maxAbs = math.Abs(y)
		}
		data = append(data, opts.ScatterData{Value: []interface{}{x, y, p.T.Seconds()}})
	}
	pad := maxAbs * 1.05
	if pad == 0 {
		pad = 1.0
	}

	subtitle := fmt.Sprintf(
		"leg=%s held=%.1fs end=%s path=%.1fcm corrections=%d",
		res.Leg, res.HoldDuration.Seconds(), res.EndReason,
		res.Sway.PathLengthCm, res.Sway.Corrections,
	)

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: "Hip Trajectory", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "X (cm)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "Y (cm)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(res.HoldDuration.Seconds()),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: timeColors},
		}),
	)
	scatter.AddSeries("hip", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))
	return scatter
}

// windowChart plots sway velocity and correction counts per fixed window, with
// detected events listed in the subtitle.
func windowChart(res *balance.TestResult) *charts.Line {
	labels := make([]string, 0, len(res.Windows))
	velocity := make([]opts.LineData, 0, len(res.Windows))
	corrections := make([]opts.LineData, 0, len(res.Windows))
	for _, seg := range res.Windows {
		labels = append(labels, seg.Label)
		velocity = append(velocity, opts.LineData{Value: seg.SwayVelocityCmPerSec})
		corrections = append(corrections, opts.LineData{Value: seg.Corrections})
	}

	subtitle := "no events"
	if n := len(res.Events); n > 0 {
		subtitle = fmt.Sprintf("%d events, first %s at %s",
			n, res.Events[0].Type, res.Events[0].Time.Round(100*time.Millisecond))
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Sway Timeline", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "cm/s | count"}),
	)
	line.SetXAxis(labels).
		AddSeries("sway velocity", velocity).
		AddSeries("corrections", corrections)
	return line
}
