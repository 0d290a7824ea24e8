package l2clusters

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/banshee-data/seedline/internal/reco/kernel"
	"github.com/banshee-data/seedline/internal/reco/l1cells"
)

// ParallelClusterer labels each partition with a group of threads running
// min-label propagation with pointer jumping. Groups share nothing but the
// output slot counter.
type ParallelClusterer struct {
	cfg    Config
	device *kernel.Device
	div    kernel.Division
}

// NewParallelClusterer validates the configuration against the device and
// returns a clusterer. A partition size whose label arrays do not fit the
// device's local memory is rejected here, before any launch.
func NewParallelClusterer(cfg Config, device *kernel.Device) (*ParallelClusterer, error) {
	div, err := kernel.Divide(cfg.TargetPartitionSize, cfg.CellsPerThread)
	if err != nil {
		return nil, fmt.Errorf("parallel clusterer: %w", err)
	}
	if device != nil && device.LocalMemoryLimit > 0 {
		need := kernel.LocalMemoryBytes(cfg.TargetPartitionSize)
		if err := kernel.CheckLocalMemory(need, device.LocalMemoryLimit); err != nil {
			return nil, fmt.Errorf("parallel clusterer: partition size %d: %w", cfg.TargetPartitionSize, err)
		}
	}
	return &ParallelClusterer{cfg: cfg, device: device, div: div}, nil
}

// Cluster runs one launch over all partitions of the event.
func Cluster(device *kernel.Device, cells []l1cells.Cell, geom *l1cells.Geometry, targetPartitionSize int) (*Result, error) {
	cfg := DefaultConfig()
	cfg.TargetPartitionSize = targetPartitionSize
	c, err := NewParallelClusterer(cfg, device)
	if err != nil {
		return nil, err
	}
	return c.Cluster(cells, geom)
}

// Division returns the thread layout used per group.
func (c *ParallelClusterer) Division() kernel.Division { return c.div }

// Cluster labels cells. With CanonicalOrder set, measurements are returned
// in Anchor order; otherwise their order follows slot reservation and may
// differ between runs.
func (c *ParallelClusterer) Cluster(cells []l1cells.Cell, geom *l1cells.Geometry) (*Result, error) {
	if len(cells) == 0 {
		return emptyResult(), nil
	}
	if !l1cells.IsSorted(cells) {
		return nil, ErrUnsortedCells
	}

	parts := PartitionCells(cells, c.cfg.TargetPartitionSize)
	modules := make([]l1cells.Module, len(parts))
	for i, p := range parts {
		m, err := geom.Lookup(p.ModuleID)
		if err != nil {
			return nil, fmt.Errorf("cluster partition %d: %w", i, err)
		}
		modules[i] = m
	}

	// One arena of label storage per concurrent slot, sized for the worst
	// case partition and reused across every partition run in that slot.
	capacity := c.div.Capacity
	arenas := make([][]int32, c.device.Slots(len(parts)))
	for i := range arenas {
		arenas[i] = make([]int32, 2*capacity)
	}

	out := make([]Measurement, len(cells))
	links := make([]int, len(cells))
	var counter kernel.SlotCounter
	var maxRounds atomic.Int64

	c.device.Launch(len(parts), func(group, slot int) {
		p := parts[group]
		arena := arenas[slot]
		g := labelGroup{
			cells:  cells[p.Start:p.End],
			base:   p.Start,
			module: modules[group],
			cur:    arena[:capacity],
			next:   arena[capacity : 2*capacity],
			div:    c.div,
		}
		rounds := g.run(&counter, out, links)
		for {
			prev := maxRounds.Load()
			if int64(rounds) <= prev || maxRounds.CompareAndSwap(prev, int64(rounds)) {
				break
			}
		}
	})

	res := &Result{
		Measurements: out[:counter.Count()],
		CellLinks:    links,
		Stats: Stats{
			Partitions: len(parts),
			MaxRounds:  int(maxRounds.Load()),
		},
	}
	for _, p := range parts {
		if p.Forced {
			res.Stats.ForcedPartitions++
		}
	}
	if c.cfg.CanonicalOrder {
		canonicalise(res)
	}
	return res, nil
}

// labelGroup is the state of one thread group working on one partition.
type labelGroup struct {
	cells  []l1cells.Cell
	base   int
	module l1cells.Module
	cur    []int32
	next   []int32
	div    kernel.Division
	// resume starts propagation from the labels already in cur instead of
	// the identity labelling.
	resume bool
}

// run labels the partition and writes one measurement per component.
// Thread t owns local cells t, t+T, t+2T, ... for T threads. Each round
// has two phases separated by barriers: every owned cell computes the
// minimum label over itself and its neighbours after one pointer jump,
// then copies it back and reports whether anything moved. The change flag
// is double buffered so thread 0 can clear the next round's flag without
// racing the readers of the current one.
func (g *labelGroup) run(counter *kernel.SlotCounter, out []Measurement, links []int) int {
	n := len(g.cells)
	threads := g.div.Threads
	barrier := kernel.NewBarrier(threads)
	var changed [2]atomic.Bool
	var rounds int

	var wg sync.WaitGroup
	wg.Add(threads)
	for t := 0; t < threads; t++ {
		go func(t int) {
			defer wg.Done()

			var own []int
			for k := 0; k < g.div.ItemsPerThread; k++ {
				if i := t + k*threads; i < n {
					own = append(own, i)
				}
			}
			adj := make([][]int32, len(own))
			for k, i := range own {
				adj[k] = g.neighbours(i)
				if !g.resume {
					g.cur[i] = int32(i)
				}
			}
			barrier.Wait()

			for round := 0; ; round++ {
				for k, i := range own {
					m := g.cur[g.cur[i]]
					for _, j := range adj[k] {
						if v := g.cur[g.cur[j]]; v < m {
							m = v
						}
					}
					g.next[i] = m
				}
				barrier.Wait()

				if t == 0 {
					changed[(round+1)%2].Store(false)
				}
				moved := false
				for _, i := range own {
					if g.next[i] != g.cur[i] {
						g.cur[i] = g.next[i]
						moved = true
					}
				}
				if moved {
					changed[round%2].Store(true)
				}
				barrier.Wait()

				if !changed[round%2].Load() {
					if t == 0 {
						rounds = round + 1
					}
					break
				}
			}

			// Labels have converged to the minimum local index of each
			// component, so the owner of that index folds the component.
			for _, i := range own {
				if int(g.cur[i]) != i {
					continue
				}
				slot := counter.Reserve()
				var acc accumulator
				for j := i; j < n; j++ {
					if int(g.cur[j]) == i {
						acc.add(g.cells[j])
						links[g.base+j] = slot
					}
				}
				out[slot] = acc.measurement(g.module, g.base+i)
			}
		}(t)
	}
	wg.Wait()
	return rounds
}

// neighbours returns the local indices of cells 8-connected to cell i.
func (g *labelGroup) neighbours(i int) []int32 {
	var adj []int32
	c := g.cells[i]
	for j := i - 1; j >= 0 && c.Channel1-g.cells[j].Channel1 <= 1; j-- {
		if l1cells.Adjacent(c, g.cells[j]) {
			adj = append(adj, int32(j))
		}
	}
	for j := i + 1; j < len(g.cells) && g.cells[j].Channel1-c.Channel1 <= 1; j++ {
		if l1cells.Adjacent(c, g.cells[j]) {
			adj = append(adj, int32(j))
		}
	}
	return adj
}

// canonicalise reorders measurements by Anchor and rewrites the links.
func canonicalise(res *Result) {
	order := make([]int, len(res.Measurements))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return res.Measurements[order[a]].Anchor < res.Measurements[order[b]].Anchor
	})

	remap := make([]int, len(order))
	sorted := make([]Measurement, len(order))
	for to, from := range order {
		remap[from] = to
		sorted[to] = res.Measurements[from]
	}
	for i, slot := range res.CellLinks {
		res.CellLinks[i] = remap[slot]
	}
	res.Measurements = sorted
}
