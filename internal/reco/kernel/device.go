package kernel

import (
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// minChunk is the smallest per-goroutine slice handed out by For.
const minChunk = 64

// Device describes the parallel execution resources available to a stage.
type Device struct {
	// Workers bounds the number of groups running at once. Zero means
	// runtime.GOMAXPROCS(0).
	Workers int
	// LocalMemoryLimit is the per-group working-memory budget in bytes.
	LocalMemoryLimit int
}

// NewDevice returns a Device with the given limits.
func NewDevice(workers, localMemoryLimit int) *Device {
	return &Device{Workers: workers, LocalMemoryLimit: localMemoryLimit}
}

func (d *Device) workers() int {
	if d == nil || d.Workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return d.Workers
}

// Launch runs fn once per group index in [0, groups) and blocks until all
// groups have returned. At most Workers groups run concurrently. The slot
// argument identifies which of the Workers concurrent slots the group is
// using, so callers can keep per-slot arenas without locking.
func (d *Device) Launch(groups int, fn func(group, slot int)) {
	if groups <= 0 {
		return
	}
	w := min(d.workers(), groups)

	slots := make(chan int, w)
	for i := 0; i < w; i++ {
		slots <- i
	}

	var g errgroup.Group
	g.SetLimit(w)
	for group := 0; group < groups; group++ {
		g.Go(func() error {
			slot := <-slots
			defer func() { slots <- slot }()
			fn(group, slot)
			return nil
		})
	}
	_ = g.Wait()
}

// Slots returns the number of concurrent slots a launch of the given size
// will use.
func (d *Device) Slots(groups int) int {
	return max(1, min(d.workers(), groups))
}

// For executes fn(i) for i in [0, n), splitting the range across workers.
// Small n runs sequentially on the calling goroutine.
func (d *Device) For(n int, fn func(i int)) {
	if n <= 0 {
		return
	}
	w := d.workers()
	if w <= 1 || n < minChunk {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}

	chunk := max(CeilDiv(n, w), minChunk)
	var wg sync.WaitGroup
	for _, r := range Chunks(n, chunk) {
		wg.Add(1)
		go func(r Range) {
			defer wg.Done()
			for i := r.Start; i < r.End; i++ {
				fn(i)
			}
		}(r)
	}
	wg.Wait()
}
