// Package bitwise packs many narrow simulations into the bits of one.
//
// A Simulator created by New presents 32/b logical instances per instance of
// the wrapped simulator. Logical instance i lives in slot i*b/32 of the
// wrapped simulator, at bit lane (i*b) mod 32. Logical buffers keep the
// widths of the wrapped simulator; each logical word carries b significant
// bits, and writes keep only the low b bits of every word.
//
// Packing is only meaningful for automata whose expressions are bitwise, so
// that the lanes of one word evolve independently.
//
// Buffers are cached per slot. Dirty caches are flushed before Update, and
// the state and output caches are reloaded on first access after it.
package bitwise

import (
	"context"
	"errors"
	"fmt"

	"github.com/gogpu/automata"
)

// ErrBitsPerEntity is returned by New when bits per entity does not divide 32.
var ErrBitsPerEntity = errors.New("bitwise: bits per entity must divide 32")

const wordBits = 32

// Simulator is an automata.Simulator over the bit lanes of another one.
type Simulator struct {
	sim   automata.Simulator
	bits  int
	lanes int
	mask  uint32
	alloc *automata.Allocator

	state  *laneCache // read/write
	input  *laneCache // write only
	output *laneCache // read only
}

var _ automata.Simulator = (*Simulator)(nil)

// New wraps sim so that each of its instances carries 32/bitsPerEntity
// logical instances.
func New(sim automata.Simulator, bitsPerEntity int) (*Simulator, error) {
	if bitsPerEntity <= 0 || bitsPerEntity > wordBits || wordBits%bitsPerEntity != 0 {
		return nil, fmt.Errorf("%w: got %d", ErrBitsPerEntity, bitsPerEntity)
	}
	n := sim.Size()
	s := &Simulator{
		sim:   sim,
		bits:  bitsPerEntity,
		lanes: wordBits / bitsPerEntity,
		mask:  ^uint32(0) >> (wordBits - bitsPerEntity),
	}
	s.alloc = automata.NewAllocator(n * s.lanes)
	s.state = newLaneCache(n, sim.StateSize(), sim.State, sim.SetState)
	s.input = newLaneCache(n, sim.InputSize(), nil, sim.SetInput)
	s.output = newLaneCache(n, sim.OutputSize(), sim.Output, nil)
	return s, nil
}

// Unwrap returns the wrapped simulator.
func (s *Simulator) Unwrap() automata.Simulator { return s.sim }

// BitsPerEntity returns the lane width.
func (s *Simulator) BitsPerEntity() int { return s.bits }

// Allocator returns the allocator of logical instance ids.
func (s *Simulator) Allocator() *automata.Allocator { return s.alloc }

// Size returns the number of logical instances.
func (s *Simulator) Size() int { return s.sim.Size() * s.lanes }

// InputSize returns the input words per instance.
func (s *Simulator) InputSize() int { return s.sim.InputSize() }

// StateSize returns the state words per instance.
func (s *Simulator) StateSize() int { return s.sim.StateSize() }

// OutputSize returns the output words per instance.
func (s *Simulator) OutputSize() int { return s.sim.OutputSize() }

// slot returns the wrapped instance and bit offset of logical instance i.
func (s *Simulator) slot(i int) (int, uint, error) {
	if i < 0 || i >= s.Size() {
		return 0, 0, fmt.Errorf("bitwise: instance %d of %d: %w", i, s.Size(), automata.ErrBadIndex)
	}
	bit := i * s.bits
	return bit / wordBits, uint(bit % wordBits), nil
}

// State extracts the lane of logical instance i from each state word.
func (s *Simulator) State(i int, buf []int32) error {
	return s.get(s.state, i, "state", buf)
}

// SetState writes the low bits of buf into the lane of logical instance i.
func (s *Simulator) SetState(i int, buf []int32) error {
	return s.set(s.state, i, "state", buf)
}

// SetInput writes the low bits of buf into the input lane of i.
func (s *Simulator) SetInput(i int, buf []int32) error {
	return s.set(s.input, i, "input", buf)
}

// Output extracts the lane of logical instance i from each output word.
func (s *Simulator) Output(i int, buf []int32) error {
	return s.get(s.output, i, "output", buf)
}

// SetInputMap sets the input map of the wrapped instance holding i. All
// lanes of a slot share one map.
func (s *Simulator) SetInputMap(i int, m []int32) error {
	slot, _, err := s.slot(i)
	if err != nil {
		return err
	}
	return s.sim.SetInputMap(slot, m)
}

// SetOutputMap sets the output map of the wrapped instance holding i.
func (s *Simulator) SetOutputMap(i int, m []int32) error {
	slot, _, err := s.slot(i)
	if err != nil {
		return err
	}
	return s.sim.SetOutputMap(slot, m)
}

// States extracts the state of every logical instance into buf.
func (s *Simulator) States(buf []int32) error {
	return s.each(buf, s.StateSize(), "states", s.State)
}

// SetStates writes the state of every logical instance from buf.
func (s *Simulator) SetStates(buf []int32) error {
	return s.each(buf, s.StateSize(), "states", s.SetState)
}

// SetInputs writes the inputs of every logical instance from buf.
func (s *Simulator) SetInputs(buf []int32) error {
	return s.each(buf, s.InputSize(), "inputs", s.SetInput)
}

// Outputs extracts the outputs of every logical instance into buf.
func (s *Simulator) Outputs(buf []int32) error {
	return s.each(buf, s.OutputSize(), "outputs", s.Output)
}

// Update flushes dirty caches, updates the wrapped simulator and
// invalidates the state and output caches.
func (s *Simulator) Update(ctx context.Context) error {
	for _, c := range []*laneCache{s.state, s.input, s.output} {
		if err := c.flush(); err != nil {
			return fmt.Errorf("bitwise: flush: %w", err)
		}
	}
	if err := s.sim.Update(ctx); err != nil {
		return err
	}
	s.state.invalidate()
	s.output.invalidate()
	return nil
}

// InvalidateCaches drops every cached buffer, discarding unflushed writes.
// The next access reloads from the wrapped simulator.
func (s *Simulator) InvalidateCaches() {
	s.state.invalidate()
	s.input.invalidate()
	s.output.invalidate()
}

// Close closes the wrapped simulator.
func (s *Simulator) Close() error { return s.sim.Close() }

func (s *Simulator) get(c *laneCache, i int, what string, buf []int32) error {
	slot, shift, err := s.slot(i)
	if err != nil {
		return err
	}
	if len(buf) < c.size {
		return fmt.Errorf("bitwise: %s buffer of %d words, need %d: %w", what, len(buf), c.size, automata.ErrShortBuffer)
	}
	if err := c.ensure(); err != nil {
		return fmt.Errorf("bitwise: load %s: %w", what, err)
	}
	for j, w := range c.words[slot] {
		buf[j] = int32((uint32(w) >> shift) & s.mask) //nolint:gosec // bit-preserving
	}
	return nil
}

func (s *Simulator) set(c *laneCache, i int, what string, buf []int32) error {
	slot, shift, err := s.slot(i)
	if err != nil {
		return err
	}
	if len(buf) < c.size {
		return fmt.Errorf("bitwise: %s of %d words, need %d: %w", what, len(buf), c.size, automata.ErrShortBuffer)
	}
	if err := c.ensure(); err != nil {
		return fmt.Errorf("bitwise: load %s: %w", what, err)
	}
	clearMask := ^(s.mask << shift)
	words := c.words[slot]
	for j := range words {
		words[j] = int32(uint32(words[j])&clearMask | (uint32(buf[j])&s.mask)<<shift) //nolint:gosec // bit-preserving
	}
	c.dirty = true
	return nil
}

// each applies fn to every logical instance over consecutive size-word
// windows of buf.
func (s *Simulator) each(buf []int32, size int, what string, fn func(int, []int32) error) error {
	n := s.Size()
	if len(buf) < n*size {
		return fmt.Errorf("bitwise: %s buffer of %d words, need %d: %w", what, len(buf), n*size, automata.ErrShortBuffer)
	}
	for i := range n {
		if err := fn(i, buf[i*size:(i+1)*size]); err != nil {
			return err
		}
	}
	return nil
}

// laneCache mirrors one buffer of every wrapped instance.
type laneCache struct {
	size  int
	words [][]int32
	valid bool
	dirty bool

	// load is nil for write-only buffers, store for read-only ones.
	load  func(int, []int32) error
	store func(int, []int32) error
}

func newLaneCache(n, size int, load, store func(int, []int32) error) *laneCache {
	c := &laneCache{
		size:  size,
		words: make([][]int32, n),
		valid: load == nil,
		load:  load,
		store: store,
	}
	backing := make([]int32, n*size)
	for i := range c.words {
		c.words[i] = backing[i*size : (i+1)*size : (i+1)*size]
	}
	return c
}

func (c *laneCache) ensure() error {
	if c.valid {
		return nil
	}
	if c.load != nil {
		for slot, w := range c.words {
			if err := c.load(slot, w); err != nil {
				return err
			}
		}
	}
	c.valid = true
	c.dirty = false
	return nil
}

func (c *laneCache) flush() error {
	if !c.dirty || c.store == nil {
		return nil
	}
	for slot, w := range c.words {
		if err := c.store(slot, w); err != nil {
			return err
		}
	}
	c.dirty = false
	return nil
}

func (c *laneCache) invalidate() {
	c.valid = false
	c.dirty = false
}
