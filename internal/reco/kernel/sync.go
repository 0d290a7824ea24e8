package kernel

import (
	"sync"
	"sync/atomic"
)

// Barrier blocks a fixed number of threads until all of them have arrived.
// It is reusable: once released, the next Wait starts a new generation.
type Barrier struct {
	mu         sync.Mutex
	cond       *sync.Cond
	parties    int
	waiting    int
	generation uint64
}

// NewBarrier returns a barrier for the given number of threads.
func NewBarrier(parties int) *Barrier {
	b := &Barrier{parties: parties}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Wait blocks until all parties have called Wait for the current generation.
func (b *Barrier) Wait() {
	if b.parties <= 1 {
		return
	}
	b.mu.Lock()
	gen := b.generation
	b.waiting++
	if b.waiting == b.parties {
		b.waiting = 0
		b.generation++
		b.mu.Unlock()
		b.cond.Broadcast()
		return
	}
	for gen == b.generation {
		b.cond.Wait()
	}
	b.mu.Unlock()
}

// SlotCounter hands out unique output slots across groups.
type SlotCounter struct {
	n atomic.Int64
}

// Reserve returns the next free slot. Concurrent callers never receive the
// same slot.
func (c *SlotCounter) Reserve() int {
	return int(c.n.Add(1) - 1)
}

// Count returns the number of slots reserved so far.
func (c *SlotCounter) Count() int {
	return int(c.n.Load())
}
