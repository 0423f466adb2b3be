package automata

import "fmt"

// Allocator hands out instance ids of a simulator.
//
// A fresh allocator returns 0, 1, ..., capacity-1 in order. Released ids
// are reused most recent first.
//
// Allocator is not safe for concurrent use.
type Allocator struct {
	free  []int
	inUse []bool
}

// NewAllocator returns an allocator for ids [0, capacity).
func NewAllocator(capacity int) *Allocator {
	a := &Allocator{
		free:  make([]int, capacity),
		inUse: make([]bool, capacity),
	}
	for i := range a.free {
		a.free[i] = capacity - 1 - i
	}
	return a
}

// Allocate returns an unused id, or ErrExhaustedCapacity.
func (a *Allocator) Allocate() (int, error) {
	n := len(a.free)
	if n == 0 {
		return 0, ErrExhaustedCapacity
	}
	id := a.free[n-1]
	a.free = a.free[:n-1]
	a.inUse[id] = true
	return id, nil
}

// Deallocate releases id. Releasing an id that is not allocated is an
// error.
func (a *Allocator) Deallocate(id int) error {
	if id < 0 || id >= len(a.inUse) {
		return fmt.Errorf("automata: deallocate %d: %w", id, ErrBadIndex)
	}
	if !a.inUse[id] {
		return fmt.Errorf("automata: deallocate %d: id is not allocated", id)
	}
	a.inUse[id] = false
	a.free = append(a.free, id)
	return nil
}

// Available returns the number of unallocated ids.
func (a *Allocator) Available() int { return len(a.free) }

// Capacity returns the total number of ids.
func (a *Allocator) Capacity() int { return len(a.inUse) }
