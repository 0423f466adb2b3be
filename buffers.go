package automata

import "fmt"

// HostBuffers implements the buffer half of Simulator over host memory:
// every method except Update and Close. Backends embed it.
//
// The exported slices hold all instances back to back. Map entries are
// already reduced modulo the state size.
type HostBuffers struct {
	alloc *Allocator

	n, inputSize, stateSize, outputSize int

	StateBuf     []int32
	InputBuf     []int32
	InputMapBuf  []int32
	OutputMapBuf []int32
	OutputBuf    []int32
}

// NewHostBuffers allocates zeroed buffers for n instances.
func NewHostBuffers(n, inputSize, stateSize, outputSize int) *HostBuffers {
	return &HostBuffers{
		alloc:        NewAllocator(n),
		n:            n,
		inputSize:    inputSize,
		stateSize:    stateSize,
		outputSize:   outputSize,
		StateBuf:     make([]int32, n*stateSize),
		InputBuf:     make([]int32, n*inputSize),
		InputMapBuf:  make([]int32, n*inputSize),
		OutputMapBuf: make([]int32, n*outputSize),
		OutputBuf:    make([]int32, n*outputSize),
	}
}

// Allocator returns the instance id allocator.
func (b *HostBuffers) Allocator() *Allocator { return b.alloc }

// Size returns the number of instances.
func (b *HostBuffers) Size() int { return b.n }

// InputSize returns the input words per instance.
func (b *HostBuffers) InputSize() int { return b.inputSize }

// StateSize returns the state words per instance.
func (b *HostBuffers) StateSize() int { return b.stateSize }

// OutputSize returns the output words per instance.
func (b *HostBuffers) OutputSize() int { return b.outputSize }

// Instance returns the slices of instance i. They alias the buffers.
func (b *HostBuffers) Instance(i int) (state, input, inputMap, outputMap, output []int32) {
	return b.StateBuf[i*b.stateSize : (i+1)*b.stateSize],
		b.InputBuf[i*b.inputSize : (i+1)*b.inputSize],
		b.InputMapBuf[i*b.inputSize : (i+1)*b.inputSize],
		b.OutputMapBuf[i*b.outputSize : (i+1)*b.outputSize],
		b.OutputBuf[i*b.outputSize : (i+1)*b.outputSize]
}

// State copies the state of instance i into buf.
func (b *HostBuffers) State(i int, buf []int32) error {
	return b.copyOut(i, "state", buf, b.StateBuf, b.stateSize)
}

// SetState copies buf into the state of instance i.
func (b *HostBuffers) SetState(i int, buf []int32) error {
	return b.copyIn(i, "state", b.StateBuf, buf, b.stateSize)
}

// SetInput copies buf into the inputs of instance i.
func (b *HostBuffers) SetInput(i int, buf []int32) error {
	return b.copyIn(i, "input", b.InputBuf, buf, b.inputSize)
}

// Output copies the outputs of instance i into buf.
func (b *HostBuffers) Output(i int, buf []int32) error {
	return b.copyOut(i, "output", buf, b.OutputBuf, b.outputSize)
}

// SetInputMap sets the input map of instance i, reducing indices modulo
// the state size.
func (b *HostBuffers) SetInputMap(i int, m []int32) error {
	if err := b.copyIn(i, "input map", b.InputMapBuf, m, b.inputSize); err != nil {
		return err
	}
	ReduceMap(b.InputMapBuf[i*b.inputSize:(i+1)*b.inputSize], b.stateSize)
	return nil
}

// SetOutputMap sets the output map of instance i, reducing indices modulo
// the state size.
func (b *HostBuffers) SetOutputMap(i int, m []int32) error {
	if err := b.copyIn(i, "output map", b.OutputMapBuf, m, b.outputSize); err != nil {
		return err
	}
	ReduceMap(b.OutputMapBuf[i*b.outputSize:(i+1)*b.outputSize], b.stateSize)
	return nil
}

// States copies the state of every instance into buf.
func (b *HostBuffers) States(buf []int32) error {
	return copyAll("states", buf, b.StateBuf)
}

// SetStates replaces the state of every instance with buf.
func (b *HostBuffers) SetStates(buf []int32) error {
	return copyAll("states", b.StateBuf, buf)
}

// SetInputs replaces the inputs of every instance with buf.
func (b *HostBuffers) SetInputs(buf []int32) error {
	return copyAll("inputs", b.InputBuf, buf)
}

// Outputs copies the outputs of every instance into buf.
func (b *HostBuffers) Outputs(buf []int32) error {
	return copyAll("outputs", buf, b.OutputBuf)
}

// CheckIndex returns ErrBadIndex when i is not an instance id.
func (b *HostBuffers) CheckIndex(i int) error {
	if i < 0 || i >= b.n {
		return fmt.Errorf("automata: instance %d of %d: %w", i, b.n, ErrBadIndex)
	}
	return nil
}

func (b *HostBuffers) copyIn(i int, what string, dst, src []int32, size int) error {
	if err := b.CheckIndex(i); err != nil {
		return err
	}
	if len(src) < size {
		return fmt.Errorf("automata: %s of %d words, need %d: %w", what, len(src), size, ErrShortBuffer)
	}
	copy(dst[i*size:(i+1)*size], src)
	return nil
}

func (b *HostBuffers) copyOut(i int, what string, dst, src []int32, size int) error {
	if err := b.CheckIndex(i); err != nil {
		return err
	}
	if len(dst) < size {
		return fmt.Errorf("automata: %s buffer of %d words, need %d: %w", what, len(dst), size, ErrShortBuffer)
	}
	copy(dst, src[i*size:(i+1)*size])
	return nil
}

func copyAll(what string, dst, src []int32) error {
	if len(dst) < len(src) {
		return fmt.Errorf("automata: %s buffer of %d words, need %d: %w", what, len(dst), len(src), ErrShortBuffer)
	}
	copy(dst, src)
	return nil
}

// ReduceMap replaces every entry x of m by |x| mod stateSize.
func ReduceMap(m []int32, stateSize int) {
	if stateSize <= 0 {
		clear(m)
		return
	}
	for i, x := range m {
		v := int64(x)
		if v < 0 {
			v = -v
		}
		m[i] = int32(v % int64(stateSize))
	}
}
