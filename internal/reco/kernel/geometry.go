package kernel

import (
	"errors"
	"fmt"
)

// ErrLocalMemoryExceeded reports a group working set larger than the
// device's local memory. It is a configuration error and is raised before
// any work is launched.
var ErrLocalMemoryExceeded = errors.New("local memory exceeded")

// labelBytes is the size of one label entry in group-local memory.
const labelBytes = 4

// scalarBytes covers the per-group scalar state (changed flag, round
// counter, partition bounds).
const scalarBytes = 64

// Range is a half-open interval [Start, End) of item indices.
type Range struct {
	Start int
	End   int
}

// Len returns the number of items in the range.
func (r Range) Len() int { return r.End - r.Start }

// Division describes how a partition of items maps onto a thread group.
type Division struct {
	Capacity       int // maximum items per partition
	ItemsPerThread int
	Threads        int // threads per group
}

// CeilDiv returns ceil(a/b) for positive b.
func CeilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// Divide sizes a thread group for partitions of the given capacity.
func Divide(capacity, itemsPerThread int) (Division, error) {
	if capacity <= 0 {
		return Division{}, fmt.Errorf("partition capacity must be positive, got %d", capacity)
	}
	if itemsPerThread <= 0 {
		return Division{}, fmt.Errorf("items per thread must be positive, got %d", itemsPerThread)
	}
	return Division{
		Capacity:       capacity,
		ItemsPerThread: itemsPerThread,
		Threads:        CeilDiv(capacity, itemsPerThread),
	}, nil
}

// Chunks splits n items into consecutive ranges of at most size items.
func Chunks(n, size int) []Range {
	if n <= 0 || size <= 0 {
		return nil
	}
	out := make([]Range, 0, CeilDiv(n, size))
	for start := 0; start < n; start += size {
		out = append(out, Range{Start: start, End: min(start+size, n)})
	}
	return out
}

// LocalMemoryBytes returns the group-local working set for a labelling
// partition of the given capacity: a current and a next label array plus
// the scalar state.
func LocalMemoryBytes(capacity int) int {
	return 2*capacity*labelBytes + scalarBytes
}

// CheckLocalMemory fails when required exceeds limit.
func CheckLocalMemory(required, limit int) error {
	if required > limit {
		return fmt.Errorf("%w: need %d bytes, device provides %d", ErrLocalMemoryExceeded, required, limit)
	}
	return nil
}
