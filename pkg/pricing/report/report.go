// Package report renders a pricing run's recorded Stats history to an
// HTML chart. It is the only consumer of go-echarts in the module: the
// core package never imports it, keeping "no module-level stats state"
// true of pkg/pricing itself (§9 design notes).
package report

import (
	"fmt"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"github.com/dwpricing/pricingcore/pkg/pricing"
)

// PlotBoundTrajectory renders the joint Lagrangian bound and the
// applied-column count across rounds to an HTML line chart, grounded
// on util/plot.go's PlotResults: a two-series chart with titled axes,
// a themed initialization, and a direct file render.
func PlotBoundTrajectory(rounds []pricing.RoundStats, runName string, outputPath ...string) error {
	if len(rounds) == 0 {
		return fmt.Errorf("report: no rounds recorded for %s", runName)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: fmt.Sprintf("%s pricing loop: Lagrangian bound per round", runName),
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithInitializationOpts(opts.Initialization{
			Theme: types.ThemeWesteros,
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "round"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "value", SplitLine: &opts.SplitLine{Show: opts.Bool(true)}}),
	)

	xAxis := make([]string, len(rounds))
	bound := make([]opts.LineData, len(rounds))
	applied := make([]opts.LineData, len(rounds))
	for i, r := range rounds {
		xAxis[i] = fmt.Sprintf("%d", r.Round)
		val := r.LagrangianLB
		if !r.BoundValid {
			val = 0
		}
		bound[i] = opts.LineData{Value: val}
		applied[i] = opts.LineData{Value: r.NColsApplied}
	}

	line.SetXAxis(xAxis).
		AddSeries("Lagrangian bound", bound).
		AddSeries("columns applied", applied).
		SetSeriesOptions(
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(false)}),
			charts.WithLineChartOpts(opts.LineChart{Smooth: false}),
		)

	filename := fmt.Sprintf("%s_pricing_report.html", runName)
	if len(outputPath) > 0 && outputPath[0] != "" {
		filename = outputPath[0]
	}

	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	return line.Render(f)
}

// PlotFromRecorder is a convenience wrapper over PlotBoundTrajectory for
// the common case of plotting a *pricing.StatsRecorder directly.
func PlotFromRecorder(rec *pricing.StatsRecorder, runName string, outputPath ...string) error {
	if rec == nil {
		return fmt.Errorf("report: nil StatsRecorder for %s", runName)
	}
	return PlotBoundTrajectory(rec.Rounds, runName, outputPath...)
}
