package monitor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/seedline/internal/reco/validate"
)

// RenderReport writes an HTML page with one count chart per variant and a
// shared deviation chart.
func RenderReport(w io.Writer, title string, summaries []validate.VariantSummary) error {
	page := components.NewPage()
	for _, s := range summaries {
		page.AddCharts(countChart(title, s))
	}
	if len(summaries) > 0 {
		page.AddCharts(deviationChart(title, summaries))
	}
	return page.Render(w)
}

// WriteReport renders the report into the file at path.
func WriteReport(path, title string, summaries []validate.VariantSummary) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := RenderReport(f, title, summaries); err != nil {
		f.Close()
		return fmt.Errorf("render report: %w", err)
	}
	return f.Close()
}

func countChart(title string, s validate.VariantSummary) *charts.Bar {
	names := make([]string, len(s.Collections))
	matched := make([]opts.BarData, len(s.Collections))
	mismatched := make([]opts.BarData, len(s.Collections))
	unmatchedRef := make([]opts.BarData, len(s.Collections))
	unmatchedCand := make([]opts.BarData, len(s.Collections))
	for i, d := range s.Collections {
		names[i] = d.Collection
		matched[i] = opts.BarData{Value: d.Matched}
		mismatched[i] = opts.BarData{Value: d.Mismatched}
		unmatchedRef[i] = opts.BarData{Value: d.UnmatchedReference}
		unmatchedCand[i] = opts.BarData{Value: d.UnmatchedCandidate}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("%s vs reference", s.Variant),
			Subtitle: fmt.Sprintf("%s: events=%d failed=%d", title, s.Events, s.FailedEvents),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	label := charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"})
	bar.SetXAxis(names).
		AddSeries("matched", matched, label).
		AddSeries("mismatched", mismatched, label).
		AddSeries("unmatched reference", unmatchedRef, label).
		AddSeries("unmatched candidate", unmatchedCand, label)
	return bar
}

func deviationChart(title string, summaries []validate.VariantSummary) *charts.Bar {
	// Collections are listed in first-seen order across variants.
	var names []string
	seen := make(map[string]bool)
	for _, s := range summaries {
		for _, d := range s.Collections {
			if !seen[d.Collection] {
				seen[d.Collection] = true
				names = append(names, d.Collection)
			}
		}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Maximum deviation", Subtitle: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(names)
	for _, s := range summaries {
		data := make([]opts.BarData, len(names))
		for i, name := range names {
			data[i] = opts.BarData{Value: 0.0}
			for _, d := range s.Collections {
				if d.Collection == name {
					data[i] = opts.BarData{Value: d.MaxDeviation}
				}
			}
		}
		bar.AddSeries(s.Variant, data)
	}
	return bar
}
