package validate

import (
	"sort"
)

// EventReport holds the diagnostics of one candidate variant for one
// event.
type EventReport struct {
	EventID     int64
	Variant     string
	Diagnostics []Diagnostics
}

// Problems returns the total number of disagreeing entries.
func (r EventReport) Problems() int {
	n := 0
	for _, d := range r.Diagnostics {
		n += d.Problems()
	}
	return n
}

// OK reports whether every collection agreed.
func (r EventReport) OK() bool { return r.Problems() == 0 }

// Lookup returns the diagnostics of the named collection.
func (r EventReport) Lookup(collection string) (Diagnostics, bool) {
	for _, d := range r.Diagnostics {
		if d.Collection == collection {
			return d, true
		}
	}
	return Diagnostics{}, false
}

// VariantSummary aggregates the reports of one variant across events.
type VariantSummary struct {
	Variant      string
	Events       int
	FailedEvents int
	// Collections holds totals per collection in first-seen order. Mean
	// deviation is weighted by the number of paired entries.
	Collections []Diagnostics
}

// Summary aggregates event reports by variant name. It is not safe for
// concurrent use.
type Summary struct {
	variants map[string]*VariantSummary
}

// NewSummary returns an empty summary.
func NewSummary() *Summary {
	return &Summary{variants: make(map[string]*VariantSummary)}
}

// Add folds one event report into the summary.
func (s *Summary) Add(r EventReport) {
	v, ok := s.variants[r.Variant]
	if !ok {
		v = &VariantSummary{Variant: r.Variant}
		s.variants[r.Variant] = v
	}
	v.Events++
	if !r.OK() {
		v.FailedEvents++
	}

	for _, d := range r.Diagnostics {
		idx := -1
		for i := range v.Collections {
			if v.Collections[i].Collection == d.Collection {
				idx = i
				break
			}
		}
		if idx < 0 {
			v.Collections = append(v.Collections, Diagnostics{Collection: d.Collection})
			idx = len(v.Collections) - 1
		}
		t := &v.Collections[idx]

		prevPairs := float64(t.Matched + t.Mismatched)
		pairs := float64(d.Matched + d.Mismatched)
		if prevPairs+pairs > 0 {
			t.MeanDeviation = (t.MeanDeviation*prevPairs + d.MeanDeviation*pairs) / (prevPairs + pairs)
		}
		t.MaxDeviation = max(t.MaxDeviation, d.MaxDeviation)
		t.ReferenceCount += d.ReferenceCount
		t.CandidateCount += d.CandidateCount
		t.Matched += d.Matched
		t.Mismatched += d.Mismatched
		t.UnmatchedReference += d.UnmatchedReference
		t.UnmatchedCandidate += d.UnmatchedCandidate
	}
}

// Variants returns the per-variant summaries sorted by name.
func (s *Summary) Variants() []VariantSummary {
	names := make([]string, 0, len(s.variants))
	for name := range s.variants {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]VariantSummary, 0, len(names))
	for _, name := range names {
		out = append(out, *s.variants[name])
	}
	return out
}
