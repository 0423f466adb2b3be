package program

import "fmt"

// StateBuilder assembles the state of count automata by variable name. It
// is meant for tests and tooling; simulators take the raw slice.
type StateBuilder struct {
	prog  *Program
	count int
	state []int32
}

// NewStateBuilder returns a zeroed builder for count automata of p.
func NewStateBuilder(p *Program, count int) *StateBuilder {
	return &StateBuilder{
		prog:  p,
		count: count,
		state: make([]int32, count*p.StateSize()),
	}
}

// State returns the state of every automaton, back to back. The slice
// aliases the builder.
func (b *StateBuilder) State() []int32 { return b.state }

// Instance returns the state of automaton i. The slice aliases the builder.
func (b *StateBuilder) Instance(i int) []int32 {
	n := b.prog.StateSize()
	return b.state[i*n : (i+1)*n]
}

// SetAll sets every word of every automaton to v.
func (b *StateBuilder) SetAll(v int32) *StateBuilder {
	for i := range b.state {
		b.state[i] = v
	}
	return b
}

// LU returns an accessor for logical unit unit of automaton instance.
// It panics if either index is out of range.
func (b *StateBuilder) LU(instance, unit int) LU {
	if instance < 0 || instance >= b.count {
		panic(fmt.Sprintf("program: instance %d out of range [0,%d)", instance, b.count))
	}
	if unit < 0 || unit >= b.prog.UnitCount() {
		panic(fmt.Sprintf("program: unit %d out of range [0,%d)", unit, b.prog.UnitCount()))
	}
	return LU{b: b, instance: instance, unit: unit}
}

// LU reads and writes the variables of one logical unit. Unknown names
// panic.
type LU struct {
	b        *StateBuilder
	instance int
	unit     int
}

// StateIndex returns the index of name within the automaton state.
func (l LU) StateIndex(name string) int {
	i, ok := l.b.prog.StateIndex(l.unit, name)
	if !ok {
		panic(fmt.Sprintf("program: unknown variable %q", name))
	}
	return i
}

// Get returns the value of name.
func (l LU) Get(name string) int32 {
	return l.b.Instance(l.instance)[l.StateIndex(name)]
}

// Set sets name to v.
func (l LU) Set(name string, v int32) LU {
	l.b.Instance(l.instance)[l.StateIndex(name)] = v
	return l
}
