package l1cells

import (
	"cmp"
	"slices"
)

// Cell is a single digitised sensor activation.
type Cell struct {
	ModuleID   uint64
	Channel0   int     // local u channel
	Channel1   int     // local v channel
	Activation float64 // deposited charge (arbitrary units)
}

// compareCells orders cells by module, then Channel1, then Channel0.
func compareCells(a, b Cell) int {
	if c := cmp.Compare(a.ModuleID, b.ModuleID); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Channel1, b.Channel1); c != 0 {
		return c
	}
	return cmp.Compare(a.Channel0, b.Channel0)
}

// SortCells orders cells in place by (module, Channel1, Channel0), the
// layout clustering expects. The sort is stable so duplicate channels keep
// their read order.
func SortCells(cells []Cell) {
	slices.SortStableFunc(cells, compareCells)
}

// IsSorted reports whether cells are grouped by module and sorted by
// (Channel1, Channel0) within each module.
func IsSorted(cells []Cell) bool {
	return slices.IsSortedFunc(cells, compareCells)
}

// Adjacent reports whether two cells touch under 8-connectivity on the same
// module.
func Adjacent(a, b Cell) bool {
	if a.ModuleID != b.ModuleID {
		return false
	}
	d0 := a.Channel0 - b.Channel0
	d1 := a.Channel1 - b.Channel1
	return d0 >= -1 && d0 <= 1 && d1 >= -1 && d1 <= 1
}

// ModuleRange is the half-open index range of one module's cells.
type ModuleRange struct {
	ModuleID uint64
	Start    int
	End      int
}

// ModuleRanges splits a sorted cell slice into per-module runs.
func ModuleRanges(cells []Cell) []ModuleRange {
	if len(cells) == 0 {
		return nil
	}
	var out []ModuleRange
	start := 0
	for i := 1; i <= len(cells); i++ {
		if i == len(cells) || cells[i].ModuleID != cells[start].ModuleID {
			out = append(out, ModuleRange{ModuleID: cells[start].ModuleID, Start: start, End: i})
			start = i
		}
	}
	return out
}
