package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/seedline/internal/reco/validate"
)

// Outcome is everything produced for one event.
type Outcome struct {
	Event      *Event
	Reference  *Result
	Candidates []*Result
	Reports    []validate.EventReport // one per candidate, in candidate order
}

// Observer receives each finished event. An observer error aborts the
// run.
type Observer func(ctx context.Context, o *Outcome) error

// RunnerStats are running totals across all events.
type RunnerStats struct {
	Events         int64 `json:"events"`
	FailedEvents   int64 `json:"failed_events"`
	Measurements   int64 `json:"measurements"`
	Seeds          int64 `json:"seeds"`
	Problems       int64 `json:"problems"`
	ForcedCuts     int64 `json:"forced_cuts"`
	MaxClusterIter int   `json:"max_cluster_iterations"`
}

// Runner processes events through a reference variant and any number of
// candidate variants, then validates each candidate against the
// reference.
type Runner struct {
	reference  Variant
	candidates []Variant
	tol        validate.Tolerance
	metrics    *Metrics
	observers  []Observer

	mu      sync.Mutex
	summary *validate.Summary
	stats   RunnerStats
}

// NewRunner returns a runner comparing candidates against reference.
func NewRunner(reference Variant, candidates []Variant, tol validate.Tolerance) *Runner {
	return &Runner{
		reference:  reference,
		candidates: candidates,
		tol:        tol,
		summary:    validate.NewSummary(),
	}
}

// SetMetrics attaches Prometheus instruments.
func (r *Runner) SetMetrics(m *Metrics) { r.metrics = m }

// OnOutcome registers an observer called after every event, in
// registration order.
func (r *Runner) OnOutcome(o Observer) { r.observers = append(r.observers, o) }

// ProcessEvent runs every variant on ev concurrently and validates the
// candidates. Any variant error fails the event.
func (r *Runner) ProcessEvent(ctx context.Context, ev *Event) (*Outcome, error) {
	variants := append([]Variant{r.reference}, r.candidates...)
	results := make([]*Result, len(variants))

	var g errgroup.Group
	for i, v := range variants {
		g.Go(func() error {
			res, err := v.Process(ev)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		r.mu.Lock()
		r.stats.FailedEvents++
		r.mu.Unlock()
		return nil, err
	}

	out := &Outcome{Event: ev, Reference: results[0], Candidates: results[1:]}
	refCols := out.Reference.Collections()
	for _, cand := range out.Candidates {
		rep := validate.EventReport{
			EventID:     ev.ID,
			Variant:     cand.Variant,
			Diagnostics: validate.CompareEvent(refCols, cand.Collections(), r.tol),
		}
		out.Reports = append(out.Reports, rep)
		if !rep.OK() {
			diagf("event %d: %s disagrees with %s in %d entries", ev.ID, cand.Variant, ReferenceName, rep.Problems())
		}
	}
	r.record(out)

	for _, obs := range r.observers {
		if err := obs(ctx, out); err != nil {
			return out, fmt.Errorf("event %d: observer: %w", ev.ID, err)
		}
	}
	return out, nil
}

func (r *Runner) record(o *Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats.Events++
	r.stats.Measurements += int64(len(o.Reference.Measurements))
	r.stats.Seeds += int64(len(o.Reference.Seeds))
	r.metrics.observeResult(o.Reference)
	for _, c := range o.Candidates {
		r.stats.ForcedCuts += int64(c.ClusterStats.ForcedPartitions)
		r.stats.MaxClusterIter = max(r.stats.MaxClusterIter, c.ClusterStats.MaxRounds)
		r.metrics.observeResult(c)
	}
	for _, rep := range o.Reports {
		r.stats.Problems += int64(rep.Problems())
		r.summary.Add(rep)
		r.metrics.observeReport(rep)
	}
}

// Run pulls events from src until it is exhausted, ctx is done or an event
// fails. Cancellation is checked between events only; an event that has
// started always completes. A cancelled run returns ctx.Err().
func (r *Runner) Run(ctx context.Context, src Source) error {
	for {
		if err := ctx.Err(); err != nil {
			diagf("run stopped after %d events: %v", r.Stats().Events, err)
			return err
		}
		ev, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read event: %w", err)
		}

		if _, err := r.ProcessEvent(context.WithoutCancel(ctx), ev); err != nil {
			opsf("aborting run: %v", err)
			return err
		}
	}
}

// Stats returns a snapshot of the running totals.
func (r *Runner) Stats() RunnerStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Summary returns the per-variant validation summary so far.
func (r *Runner) Summary() []validate.VariantSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summary.Variants()
}
