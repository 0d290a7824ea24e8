package l2clusters

import (
	"fmt"

	"github.com/banshee-data/seedline/internal/reco/l1cells"
)

// SequentialClusterer is the reference implementation: a per-module
// union-find over the sorted cells (SparseCCL).
type SequentialClusterer struct{}

// NewSequentialClusterer returns the reference clusterer.
func NewSequentialClusterer() *SequentialClusterer {
	return &SequentialClusterer{}
}

// Cluster labels cells module by module. Measurements come out in Anchor
// order.
func (c *SequentialClusterer) Cluster(cells []l1cells.Cell, geom *l1cells.Geometry) (*Result, error) {
	if len(cells) == 0 {
		return emptyResult(), nil
	}
	if !l1cells.IsSorted(cells) {
		return nil, ErrUnsortedCells
	}

	ranges := l1cells.ModuleRanges(cells)
	parent := make([]int, len(cells))
	links := make([]int, len(cells))
	var out []Measurement

	for _, mr := range ranges {
		mod, err := geom.Lookup(mr.ModuleID)
		if err != nil {
			return nil, fmt.Errorf("cluster module run at cell %d: %w", mr.Start, err)
		}

		for i := mr.Start; i < mr.End; i++ {
			parent[i] = i
			for j := i - 1; j >= mr.Start && cells[i].Channel1-cells[j].Channel1 <= 1; j-- {
				if l1cells.Adjacent(cells[i], cells[j]) {
					union(parent, i, j)
				}
			}
		}

		// Roots are the minimum index of their component, so a root is
		// always visited before the rest of its cluster.
		accs := make(map[int]*accumulator)
		slots := make(map[int]int)
		for i := mr.Start; i < mr.End; i++ {
			root := find(parent, i)
			if root == i {
				slots[i] = len(out) + len(slots)
				accs[i] = &accumulator{}
			}
			accs[root].add(cells[i])
			links[i] = slots[root]
		}

		out = append(out, make([]Measurement, len(slots))...)
		for root, slot := range slots {
			out[slot] = accs[root].measurement(mod, root)
		}
	}

	return &Result{
		Measurements: out,
		CellLinks:    links,
		Stats:        Stats{Partitions: len(ranges)},
	}, nil
}

func find(parent []int, i int) int {
	for parent[i] != i {
		parent[i] = parent[parent[i]]
		i = parent[i]
	}
	return i
}

// union links the larger root under the smaller one so the root of a
// component is always its minimum index.
func union(parent []int, a, b int) {
	ra, rb := find(parent, a), find(parent, b)
	if ra == rb {
		return
	}
	if ra < rb {
		parent[rb] = ra
	} else {
		parent[ra] = rb
	}
}
