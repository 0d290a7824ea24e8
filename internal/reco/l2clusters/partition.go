package l2clusters

import (
	"github.com/banshee-data/seedline/internal/reco/l1cells"
)

// Partition is a contiguous run of one module's cells handled by one
// thread group.
type Partition struct {
	Start    int
	End      int
	ModuleID uint64
	// Forced is set when the partition had to end at capacity without a
	// channel gap, so a cluster may continue into the next partition.
	Forced bool
}

// Len returns the number of cells in the partition.
func (p Partition) Len() int { return p.End - p.Start }

// PartitionCells splits sorted cells into partitions of at most target
// cells that never cross a module boundary. Within a module the cut is
// placed at the last position before capacity where Channel1 jumps by more
// than one, which guarantees no 8-connected pair straddles the cut.
func PartitionCells(cells []l1cells.Cell, target int) []Partition {
	if len(cells) == 0 || target <= 0 {
		return nil
	}

	var parts []Partition
	for _, mr := range l1cells.ModuleRanges(cells) {
		start := mr.Start
		for start < mr.End {
			if mr.End-start <= target {
				parts = append(parts, Partition{Start: start, End: mr.End, ModuleID: mr.ModuleID})
				break
			}

			limit := start + target
			cut := -1
			for c := limit; c > start; c-- {
				if cells[c].Channel1 > cells[c-1].Channel1+1 {
					cut = c
					break
				}
			}

			forced := cut < 0
			if forced {
				cut = limit
			}
			parts = append(parts, Partition{Start: start, End: cut, ModuleID: mr.ModuleID, Forced: forced})
			start = cut
		}
	}
	return parts
}

// BoundarySplits counts 8-connected cell pairs whose members fall in two
// different partitions. A non-zero count means at least one cluster was
// split by a forced cut and the partition size is too small for the
// occupancy.
func BoundarySplits(cells []l1cells.Cell, parts []Partition) int {
	splits := 0
	for k := 1; k < len(parts); k++ {
		prev, next := parts[k-1], parts[k]
		if prev.ModuleID != next.ModuleID || prev.End != next.Start {
			continue
		}
		first := cells[next.Start].Channel1
		for j := next.Start; j < next.End && cells[j].Channel1-first <= 1; j++ {
			for i := prev.End - 1; i >= prev.Start && cells[j].Channel1-cells[i].Channel1 <= 1; i-- {
				if l1cells.Adjacent(cells[i], cells[j]) {
					splits++
				}
			}
		}
	}
	return splits
}
