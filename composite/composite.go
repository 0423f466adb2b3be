// Package composite presents several simulators of the same automaton as
// one.
//
// The instance ids of the composite are routed to instances allocated from
// the components' allocators when the composite is built, so components
// must not hand out those ids elsewhere.
package composite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/gogpu/automata"
)

var (
	// ErrNoComponents is returned by New without components.
	ErrNoComponents = errors.New("composite: no components")

	// ErrWidthMismatch is returned by New when components disagree on
	// input, state or output size.
	ErrWidthMismatch = errors.New("composite: component widths differ")
)

// Layout selects how composite ids are spread over components.
type Layout int

const (
	// Interleaved takes one id from each component in turn, skipping
	// exhausted components.
	Interleaved Layout = iota

	// Concatenated takes every id of the first component, then of the
	// second, and so on.
	Concatenated
)

func (l Layout) String() string {
	switch l {
	case Interleaved:
		return "interleaved"
	case Concatenated:
		return "concatenated"
	default:
		return fmt.Sprintf("Layout(%d)", int(l))
	}
}

type options struct {
	layout Layout
}

// Option configures New.
type Option func(*options)

// WithLayout selects the routing layout. The default is Interleaved.
func WithLayout(l Layout) Option {
	return func(o *options) {
		o.layout = l
	}
}

// CloseError collects the failures of closing the components.
type CloseError struct {
	Errs []error
}

func (e *CloseError) Error() string {
	msgs := lo.Map(e.Errs, func(err error, _ int) string { return err.Error() })
	return fmt.Sprintf("composite: closing %d component(s) failed: %s", len(e.Errs), strings.Join(msgs, "; "))
}

func (e *CloseError) Unwrap() []error { return e.Errs }

// route is the component instance behind a composite id.
type route struct {
	component int
	index     int
}

// Simulator dispatches calls to its components.
type Simulator struct {
	components []automata.Simulator
	routes     []route
	alloc      *automata.Allocator
	layout     Layout

	inputSize, stateSize, outputSize int
}

var _ automata.Simulator = (*Simulator)(nil)

// New builds a composite over components. Widths are taken from the first
// component; every component must match them.
func New(components []automata.Simulator, opts ...Option) (*Simulator, error) {
	if len(components) == 0 {
		return nil, ErrNoComponents
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	first := components[0]
	s := &Simulator{
		components: append([]automata.Simulator(nil), components...),
		layout:     o.layout,
		inputSize:  first.InputSize(),
		stateSize:  first.StateSize(),
		outputSize: first.OutputSize(),
	}
	for i, c := range components[1:] {
		if c.InputSize() != s.inputSize || c.StateSize() != s.stateSize || c.OutputSize() != s.outputSize {
			return nil, fmt.Errorf("%w: component %d has %d/%d/%d, want %d/%d/%d", ErrWidthMismatch, i+1,
				c.InputSize(), c.StateSize(), c.OutputSize(), s.inputSize, s.stateSize, s.outputSize)
		}
	}

	routes, err := buildRoutes(s.components, o.layout)
	if err != nil {
		return nil, err
	}
	s.routes = routes
	s.alloc = automata.NewAllocator(len(routes))
	return s, nil
}

// buildRoutes allocates every available id of every component.
func buildRoutes(components []automata.Simulator, layout Layout) ([]route, error) {
	total := lo.SumBy(components, func(c automata.Simulator) int { return c.Allocator().Available() })
	routes := make([]route, 0, total)

	take := func(c int) (bool, error) {
		a := components[c].Allocator()
		if a.Available() == 0 {
			return false, nil
		}
		id, err := a.Allocate()
		if err != nil {
			return false, fmt.Errorf("composite: allocate from component %d: %w", c, err)
		}
		routes = append(routes, route{component: c, index: id})
		return true, nil
	}

	switch layout {
	case Concatenated:
		for c := range components {
			for {
				ok, err := take(c)
				if err != nil {
					return nil, err
				}
				if !ok {
					break
				}
			}
		}
	default:
		active := lo.Range(len(components))
		for len(active) > 0 {
			next := active[:0]
			for _, c := range active {
				ok, err := take(c)
				if err != nil {
					return nil, err
				}
				if ok {
					next = append(next, c)
				}
			}
			active = next
		}
	}
	return routes, nil
}

// Components returns the component simulators.
func (s *Simulator) Components() []automata.Simulator { return s.components }

// Route returns the component and component instance id of composite id i.
func (s *Simulator) Route(i int) (component, index int, err error) {
	if i < 0 || i >= len(s.routes) {
		return 0, 0, fmt.Errorf("composite: instance %d of %d: %w", i, len(s.routes), automata.ErrBadIndex)
	}
	r := s.routes[i]
	return r.component, r.index, nil
}

// Allocator returns the allocator of composite instance ids.
func (s *Simulator) Allocator() *automata.Allocator { return s.alloc }

// Size returns the total number of instances across components.
func (s *Simulator) Size() int { return len(s.routes) }

// InputSize returns the input words per instance.
func (s *Simulator) InputSize() int { return s.inputSize }

// StateSize returns the state words per instance.
func (s *Simulator) StateSize() int { return s.stateSize }

// OutputSize returns the output words per instance.
func (s *Simulator) OutputSize() int { return s.outputSize }

// forward calls fn on the component instance of i.
func (s *Simulator) forward(i int, fn func(automata.Simulator, int) error) error {
	c, idx, err := s.Route(i)
	if err != nil {
		return err
	}
	return fn(s.components[c], idx)
}

// State reads the state of i from its component.
func (s *Simulator) State(i int, buf []int32) error {
	return s.forward(i, func(c automata.Simulator, idx int) error { return c.State(idx, buf) })
}

// SetState writes the state of i to its component.
func (s *Simulator) SetState(i int, buf []int32) error {
	return s.forward(i, func(c automata.Simulator, idx int) error { return c.SetState(idx, buf) })
}

// SetInput writes the inputs of i to its component.
func (s *Simulator) SetInput(i int, buf []int32) error {
	return s.forward(i, func(c automata.Simulator, idx int) error { return c.SetInput(idx, buf) })
}

// Output reads the outputs of i from its component.
func (s *Simulator) Output(i int, buf []int32) error {
	return s.forward(i, func(c automata.Simulator, idx int) error { return c.Output(idx, buf) })
}

// SetInputMap sets the input map of i in its component.
func (s *Simulator) SetInputMap(i int, m []int32) error {
	return s.forward(i, func(c automata.Simulator, idx int) error { return c.SetInputMap(idx, m) })
}

// SetOutputMap sets the output map of i in its component.
func (s *Simulator) SetOutputMap(i int, m []int32) error {
	return s.forward(i, func(c automata.Simulator, idx int) error { return c.SetOutputMap(idx, m) })
}

// States reads the state of every instance in composite id order.
func (s *Simulator) States(buf []int32) error {
	return s.each(buf, s.stateSize, "states", s.State)
}

// SetStates writes the state of every instance in composite id order.
func (s *Simulator) SetStates(buf []int32) error {
	return s.each(buf, s.stateSize, "states", s.SetState)
}

// SetInputs writes the inputs of every instance in composite id order.
func (s *Simulator) SetInputs(buf []int32) error {
	return s.each(buf, s.inputSize, "inputs", s.SetInput)
}

// Outputs reads the outputs of every instance in composite id order.
func (s *Simulator) Outputs(buf []int32) error {
	return s.each(buf, s.outputSize, "outputs", s.Output)
}

func (s *Simulator) each(buf []int32, size int, what string, fn func(int, []int32) error) error {
	n := len(s.routes)
	if len(buf) < n*size {
		return fmt.Errorf("composite: %s buffer of %d words, need %d: %w", what, len(buf), n*size, automata.ErrShortBuffer)
	}
	for i := range n {
		if err := fn(i, buf[i*size:(i+1)*size]); err != nil {
			return err
		}
	}
	return nil
}

// Update updates every component concurrently and joins their errors.
func (s *Simulator) Update(ctx context.Context) error {
	errs := make([]error, len(s.components))
	var wg sync.WaitGroup
	for i, c := range s.components {
		wg.Go(func() {
			if err := c.Update(ctx); err != nil {
				errs[i] = fmt.Errorf("composite: component %d: %w", i, err)
			}
		})
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Close closes every component, even after failures. The failures are
// returned as a *CloseError.
func (s *Simulator) Close() error {
	var errs []error
	for i, c := range s.components {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("component %d: %w", i, err))
		}
	}
	if len(errs) > 0 {
		return &CloseError{Errs: errs}
	}
	return nil
}
