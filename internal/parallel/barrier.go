package parallel

import "sync"

// Barrier is a reusable rendezvous point for a fixed number of goroutines.
// Each call to Wait blocks until all parties have called it, then the
// barrier resets for the next phase.
type Barrier struct {
	mu         sync.Mutex
	cond       *sync.Cond
	parties    int
	waiting    int
	generation uint64
}

// NewBarrier returns a barrier for n parties. n must be positive.
func NewBarrier(n int) *Barrier {
	if n <= 0 {
		panic("parallel: barrier needs at least one party")
	}
	b := &Barrier{parties: n}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Parties returns the number of goroutines the barrier waits for.
func (b *Barrier) Parties() int { return b.parties }

// Wait blocks until every party has reached the barrier.
func (b *Barrier) Wait() {
	b.mu.Lock()
	defer b.mu.Unlock()

	gen := b.generation
	b.waiting++
	if b.waiting == b.parties {
		b.waiting = 0
		b.generation++
		b.cond.Broadcast()
		return
	}
	for gen == b.generation {
		b.cond.Wait()
	}
}
