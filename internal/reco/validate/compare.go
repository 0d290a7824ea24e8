package validate

import (
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Tolerance bounds the numeric difference accepted between matched
// entries: |a-b| <= Abs or |a-b| <= Rel*min(|a|,|b|).
type Tolerance struct {
	Rel float64
	Abs float64
}

// Matcher describes how to pair and judge entries of one collection.
type Matcher[T any, K comparable] struct {
	// ReferenceKey and CandidateKey map an entry to its identity. They are
	// separate because the identity is resolved through each side's own
	// upstream collections.
	ReferenceKey func(i int, v T) K
	CandidateKey func(i int, v T) K
	// Equal reports whether a matched pair agrees within tolerance.
	Equal func(ref, cand T) bool
	// Deviation is a scalar distance between a matched pair.
	Deviation func(ref, cand T) float64
}

// Diagnostics summarises the comparison of one collection.
type Diagnostics struct {
	Collection         string
	ReferenceCount     int
	CandidateCount     int
	Matched            int // paired and equal within tolerance
	Mismatched         int // paired but different
	UnmatchedReference int
	UnmatchedCandidate int
	MaxDeviation       float64
	MeanDeviation      float64
}

// Problems returns the number of entries that did not agree.
func (d Diagnostics) Problems() int {
	return d.Mismatched + d.UnmatchedReference + d.UnmatchedCandidate
}

// OK reports whether the collections agree completely.
func (d Diagnostics) OK() bool { return d.Problems() == 0 }

// Compare pairs reference and candidate entries by key and reports the
// outcome. Entries sharing a key are paired in input order. Compare never
// stops early.
func Compare[T any, K comparable](name string, ref, cand []T, m Matcher[T, K]) Diagnostics {
	d := Diagnostics{
		Collection:     name,
		ReferenceCount: len(ref),
		CandidateCount: len(cand),
	}

	byKey := make(map[K][]int, len(ref))
	for i, r := range ref {
		k := m.ReferenceKey(i, r)
		byKey[k] = append(byKey[k], i)
	}

	used := make([]bool, len(ref))
	var devs []float64
	for j, c := range cand {
		k := m.CandidateKey(j, c)
		queue := byKey[k]
		if len(queue) == 0 {
			d.UnmatchedCandidate++
			continue
		}
		i := queue[0]
		byKey[k] = queue[1:]
		used[i] = true

		if m.Equal(ref[i], c) {
			d.Matched++
		} else {
			d.Mismatched++
		}
		if m.Deviation != nil {
			devs = append(devs, m.Deviation(ref[i], c))
		}
	}
	for _, u := range used {
		if !u {
			d.UnmatchedReference++
		}
	}

	if len(devs) > 0 {
		d.MaxDeviation = floats.Max(devs)
		d.MeanDeviation = stat.Mean(devs, nil)
	}
	return d
}

// ApproxEqual returns an equality that compares structs field by field
// with floating point values equal within tol. Fields named in ignore are
// skipped; they usually hold indices into side-specific collections.
func ApproxEqual[T any](tol Tolerance, ignore ...string) func(a, b T) bool {
	opts := []cmp.Option{cmpopts.EquateApprox(tol.Rel, tol.Abs)}
	if len(ignore) > 0 {
		var zero T
		opts = append(opts, cmpopts.IgnoreFields(zero, ignore...))
	}
	return func(a, b T) bool {
		return cmp.Equal(a, b, opts...)
	}
}

// Diff returns a human-readable difference between two entries, for
// trace logging of mismatches.
func Diff[T any](a, b T, tol Tolerance) string {
	return cmp.Diff(a, b, cmpopts.EquateApprox(tol.Rel, tol.Abs))
}
