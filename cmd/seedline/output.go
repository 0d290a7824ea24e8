package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"

	"github.com/banshee-data/seedline/internal/reco/validate"
)

var (
	okStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2CD7C7"))
	failStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#E74C3C"))
)

// printSummaries writes one status line per variant followed by its
// per-collection table.
func printSummaries(w io.Writer, summaries []validate.VariantSummary) {
	if len(summaries) == 0 {
		fmt.Fprintln(w, "no validated events")
		return
	}
	for _, s := range summaries {
		status := okStyle.Render("OK")
		if s.FailedEvents > 0 {
			status = failStyle.Render("MISMATCH")
		}
		fmt.Fprintf(w, "%s %s: %d events, %d disagreeing\n", status, s.Variant, s.Events, s.FailedEvents)

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "  collection\treference\tcandidate\tmatched\tmismatched\tunmatched ref\tunmatched cand\tmax dev\tmean dev")
		for _, d := range s.Collections {
			fmt.Fprintf(tw, "  %s\t%d\t%d\t%d\t%d\t%d\t%d\t%.3g\t%.3g\n",
				d.Collection, d.ReferenceCount, d.CandidateCount, d.Matched, d.Mismatched,
				d.UnmatchedReference, d.UnmatchedCandidate, d.MaxDeviation, d.MeanDeviation)
		}
		tw.Flush()
	}
}
