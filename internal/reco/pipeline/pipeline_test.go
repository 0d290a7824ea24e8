package pipeline

import (
	"bytes"
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/seedline/internal/monitoring"
	"github.com/banshee-data/seedline/internal/reco/kernel"
	"github.com/banshee-data/seedline/internal/reco/l1cells"
)

// barrelGeometry has three modules on the positive x axis at r = 50, 100
// and 150 mm, each 20 x 20 channels of 0.1 mm.
func barrelGeometry(t *testing.T) *l1cells.Geometry {
	t.Helper()
	var mods []l1cells.Module
	for i, r := range []float64{50, 100, 150} {
		mods = append(mods, l1cells.Module{
			ID:         uint64(7 + i),
			Placement:  l1cells.BarrelPlacement(r, 0, 0),
			Pitch:      [2]float64{0.1, 0.1},
			HalfLength: [2]float64{1, 1},
		})
	}
	geom, err := l1cells.NewGeometry(mods)
	require.NoError(t, err)
	return geom
}

// block returns a 2x2 cell block centred on the module.
func block(module uint64) []l1cells.Cell {
	var cells []l1cells.Cell
	for _, ch1 := range []int{9, 10} {
		for _, ch0 := range []int{9, 10} {
			cells = append(cells, l1cells.Cell{ModuleID: module, Channel0: ch0, Channel1: ch1, Activation: 1})
		}
	}
	return cells
}

func newVariants(t *testing.T, geom *l1cells.Geometry) (Variant, Variant) {
	t.Helper()
	s := DefaultSettings()
	acc, err := NewAccelerated(s, geom, kernel.NewDevice(4, s.LocalMemoryLimit))
	require.NoError(t, err)
	return NewReference(s, geom), acc
}

func TestSingleBlockMakesOneMeasurement(t *testing.T) {
	geom := barrelGeometry(t)
	ref, acc := newVariants(t, geom)
	ev := NewEvent(1, block(7))

	for _, v := range []Variant{ref, acc} {
		res, err := v.Process(ev)
		require.NoError(t, err, v.Name())
		require.Len(t, res.Measurements, 1)
		assert.Equal(t, []int{0, 0, 0, 0}, res.CellLinks)
		assert.Equal(t, 4, res.Measurements[0].CellCount)
		require.Len(t, res.Spacepoints, 1)
		assert.InDeltaSlice(t, []float64{50, 0, 0}, res.Spacepoints[0].Global[:], 1e-9)
		assert.Empty(t, res.Seeds)
		assert.Empty(t, res.Parameters)
	}
}

func TestThreeBlocksMakeOneSeed(t *testing.T) {
	geom := barrelGeometry(t)
	ref, acc := newVariants(t, geom)

	var cells []l1cells.Cell
	for _, m := range []uint64{9, 7, 8} {
		cells = append(cells, block(m)...)
	}
	ev := NewEvent(2, cells)

	for _, v := range []Variant{ref, acc} {
		res, err := v.Process(ev)
		require.NoError(t, err, v.Name())
		require.Len(t, res.Measurements, 3)
		require.Len(t, res.Spacepoints, 3)
		require.Len(t, res.Seeds, 1, v.Name())
		require.Len(t, res.Parameters, 1)

		s := res.Seeds[0]
		assert.Equal(t, uint64(7), res.Spacepoints[s.Inner].ModuleID)
		assert.Equal(t, uint64(8), res.Spacepoints[s.Middle].ModuleID)
		assert.Equal(t, uint64(9), res.Spacepoints[s.Outer].ModuleID)
		assert.Zero(t, res.Parameters[0].QOverP, "straight radial track")
		assert.InDelta(t, 0, res.Parameters[0].Phi, 1e-9)
	}
}

func TestRunnerValidatesIdenticalVariants(t *testing.T) {
	geom := barrelGeometry(t)
	ref, acc := newVariants(t, geom)
	runner := NewRunner(ref, []Variant{acc}, DefaultSettings().Tolerance)

	var cells []l1cells.Cell
	for _, m := range []uint64{7, 8, 9} {
		cells = append(cells, block(m)...)
	}
	cells = append(cells, l1cells.Cell{ModuleID: 8, Channel0: 1, Channel1: 1, Activation: 0.3})

	out, err := runner.ProcessEvent(context.Background(), NewEvent(3, cells))
	require.NoError(t, err)
	require.Len(t, out.Reports, 1)
	assert.True(t, out.Reports[0].OK())
	assert.Equal(t, AcceleratedName, out.Reports[0].Variant)
	assert.Zero(t, out.Reports[0].Problems())

	stats := runner.Stats()
	assert.Equal(t, int64(1), stats.Events)
	assert.Equal(t, int64(4), stats.Measurements)
	assert.Equal(t, int64(0), stats.Problems)

	summary := runner.Summary()
	require.Len(t, summary, 1)
	assert.Equal(t, 1, summary[0].Events)
	assert.Zero(t, summary[0].FailedEvents)
}

func TestAcceleratedIsDeterministic(t *testing.T) {
	geom := barrelGeometry(t)
	_, acc := newVariants(t, geom)

	var cells []l1cells.Cell
	for _, m := range []uint64{7, 8, 9} {
		cells = append(cells, block(m)...)
		cells = append(cells, l1cells.Cell{ModuleID: m, Channel0: 2, Channel1: 15, Activation: 1})
	}
	ev := NewEvent(4, cells)

	first, err := acc.Process(ev)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := acc.Process(ev)
		require.NoError(t, err)
		assert.Equal(t, first.Collections(), again.Collections())
	}
}

func TestRunStopsBetweenEvents(t *testing.T) {
	geom := barrelGeometry(t)
	ref, acc := newVariants(t, geom)
	runner := NewRunner(ref, []Variant{acc}, DefaultSettings().Tolerance)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner.OnOutcome(func(ctx context.Context, o *Outcome) error {
		cancel()
		// The started event keeps a live context.
		assert.NoError(t, ctx.Err())
		return nil
	})

	src := NewSliceSource(NewEvent(1, block(7)), NewEvent(2, block(8)), NewEvent(3, block(9)))
	err := runner.Run(ctx, src)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(1), runner.Stats().Events)
}

func TestRunDrainsSource(t *testing.T) {
	geom := barrelGeometry(t)
	ref, acc := newVariants(t, geom)
	runner := NewRunner(ref, []Variant{acc}, DefaultSettings().Tolerance)

	var seen []int64
	runner.OnOutcome(func(_ context.Context, o *Outcome) error {
		seen = append(seen, o.Event.ID)
		return nil
	})
	require.NoError(t, runner.Run(context.Background(), NewSliceSource(NewEvent(1, block(7)), NewEvent(2, nil))))
	assert.Equal(t, []int64{1, 2}, seen)
}

func TestRunAbortsOnEventError(t *testing.T) {
	geom := barrelGeometry(t)
	ref, acc := newVariants(t, geom)
	runner := NewRunner(ref, []Variant{acc}, DefaultSettings().Tolerance)

	src := NewSliceSource(NewEvent(1, []l1cells.Cell{{ModuleID: 99}}), NewEvent(2, block(7)))
	err := runner.Run(context.Background(), src)
	require.Error(t, err)
	assert.ErrorIs(t, err, l1cells.ErrUnknownModule)
	assert.Equal(t, int64(1), runner.Stats().FailedEvents)
	assert.Equal(t, int64(0), runner.Stats().Events)
}

func TestAbortIsLoggedOnOpsStream(t *testing.T) {
	var ops, diag bytes.Buffer
	monitoring.SetLogWriters(&ops, &diag, nil)
	t.Cleanup(monitoring.Mute)

	geom := barrelGeometry(t)
	ref, acc := newVariants(t, geom)
	runner := NewRunner(ref, []Variant{acc}, DefaultSettings().Tolerance)
	require.Error(t, runner.Run(context.Background(), NewSliceSource(NewEvent(1, []l1cells.Cell{{ModuleID: 99}}))))

	assert.Contains(t, ops.String(), "[pipeline] aborting run")
	assert.NotContains(t, diag.String(), "aborting run")
}

func TestNewAcceleratedRejectsOversizedPartition(t *testing.T) {
	geom := barrelGeometry(t)
	s := DefaultSettings()
	s.Cluster.TargetPartitionSize = 1 << 20
	_, err := NewAccelerated(s, geom, s.Device())
	assert.ErrorIs(t, err, kernel.ErrLocalMemoryExceeded)
}

func TestMetricsCountEvents(t *testing.T) {
	geom := barrelGeometry(t)
	ref, acc := newVariants(t, geom)
	runner := NewRunner(ref, []Variant{acc}, DefaultSettings().Tolerance)
	reg := prometheus.NewRegistry()
	runner.SetMetrics(NewMetrics(reg))

	_, err := runner.ProcessEvent(context.Background(), NewEvent(1, block(7)))
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	counts := map[string]float64{}
	for _, f := range families {
		for _, m := range f.GetMetric() {
			if c := m.GetCounter(); c != nil {
				counts[f.GetName()] += c.GetValue()
			}
		}
	}
	assert.Equal(t, 2.0, counts["seedline_pipeline_events_total"])
	assert.Equal(t, 2.0, counts["seedline_pipeline_measurements_total"])
	assert.Equal(t, 0.0, counts["seedline_validation_problems_total"])
	assert.Contains(t, counts, "seedline_validation_problems_total")
}

func TestNewEventSortsCopy(t *testing.T) {
	cells := []l1cells.Cell{{ModuleID: 8}, {ModuleID: 7}}
	ev := NewEvent(1, cells)
	assert.True(t, l1cells.IsSorted(ev.Cells))
	assert.Equal(t, uint64(8), cells[0].ModuleID)
}
