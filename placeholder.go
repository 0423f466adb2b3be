package automata

import (
	"context"
	"math/rand/v2"
)

// NoOp is a simulator that stores nothing and computes nothing. It honors
// the sizes and allocator of the Simulator contract, for callers that need
// the contract without the cost.
type NoOp struct {
	alloc                               *Allocator
	n, inputSize, stateSize, outputSize int
}

// NewNoOp returns a NoOp simulator with the given sizes.
func NewNoOp(n, inputSize, stateSize, outputSize int) *NoOp {
	return &NoOp{
		alloc:      NewAllocator(n),
		n:          n,
		inputSize:  inputSize,
		stateSize:  stateSize,
		outputSize: outputSize,
	}
}

// Allocator returns the instance id allocator.
func (s *NoOp) Allocator() *Allocator { return s.alloc }

// Size returns the number of instances.
func (s *NoOp) Size() int { return s.n }

// InputSize returns the configured input size.
func (s *NoOp) InputSize() int { return s.inputSize }

// StateSize returns the configured state size.
func (s *NoOp) StateSize() int { return s.stateSize }

// OutputSize returns the configured output size.
func (s *NoOp) OutputSize() int { return s.outputSize }

// State only checks i; buf is left untouched.
func (s *NoOp) State(i int, _ []int32) error { return s.check(i) }

// SetState only checks i.
func (s *NoOp) SetState(i int, _ []int32) error { return s.check(i) }

// SetInput only checks i.
func (s *NoOp) SetInput(i int, _ []int32) error { return s.check(i) }

// Output only checks i; buf is left untouched.
func (s *NoOp) Output(i int, _ []int32) error { return s.check(i) }

// SetInputMap only checks i.
func (s *NoOp) SetInputMap(i int, _ []int32) error { return s.check(i) }

// SetOutputMap only checks i.
func (s *NoOp) SetOutputMap(i int, _ []int32) error { return s.check(i) }

// States does nothing.
func (s *NoOp) States([]int32) error { return nil }

// SetStates does nothing.
func (s *NoOp) SetStates([]int32) error { return nil }

// SetInputs does nothing.
func (s *NoOp) SetInputs([]int32) error { return nil }

// Outputs does nothing.
func (s *NoOp) Outputs([]int32) error { return nil }

// Update only reports a cancelled context.
func (s *NoOp) Update(ctx context.Context) error { return ctx.Err() }

// Close does nothing.
func (s *NoOp) Close() error { return nil }

func (s *NoOp) check(i int) error {
	if i < 0 || i >= s.n {
		return ErrBadIndex
	}
	return nil
}

// Random is a NoOp simulator whose outputs are random words.
type Random struct {
	NoOp
	rng *rand.Rand
}

// NewRandom returns a Random simulator drawing from a PCG source seeded
// with seed.
func NewRandom(n, inputSize, stateSize, outputSize int, seed uint64) *Random {
	return &Random{
		NoOp: *NewNoOp(n, inputSize, stateSize, outputSize),
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Output fills buf with random words.
func (s *Random) Output(i int, buf []int32) error {
	if err := s.check(i); err != nil {
		return err
	}
	for k := range buf {
		buf[k] = int32(s.rng.Uint32())
	}
	return nil
}

// Outputs fills buf with random words.
func (s *Random) Outputs(buf []int32) error {
	for k := range buf {
		buf[k] = int32(s.rng.Uint32())
	}
	return nil
}
