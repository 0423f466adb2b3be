package composite

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gogpu/automata"
	"github.com/gogpu/automata/model"
)

// fake is a component that reports which instance a call reached.
type fake struct {
	*automata.NoOp
	id       int32
	updates  int
	closed   bool
	closeErr error
	setState []int
}

func newFake(id int32, n int) *fake {
	return &fake{NoOp: automata.NewNoOp(n, 2, 2, 2), id: id}
}

func (f *fake) State(i int, buf []int32) error {
	if err := f.NoOp.State(i, buf); err != nil {
		return err
	}
	buf[0], buf[1] = f.id, int32(i)
	return nil
}

func (f *fake) SetState(i int, buf []int32) error {
	f.setState = append(f.setState, i)
	return f.NoOp.SetState(i, buf)
}

func (f *fake) Update(context.Context) error {
	f.updates++
	return nil
}

func (f *fake) Close() error {
	f.closed = true
	return f.closeErr
}

func fakes(sizes ...int) ([]*fake, []automata.Simulator) {
	fs := make([]*fake, len(sizes))
	sims := make([]automata.Simulator, len(sizes))
	for i, n := range sizes {
		fs[i] = newFake(int32(i), n)
		sims[i] = fs[i]
	}
	return fs, sims
}

// =============================================================================
// Routing
// =============================================================================

func TestRouting(t *testing.T) {
	tests := []struct {
		name   string
		opts   []Option
		routes []route
	}{
		{
			name: "interleaved",
			routes: []route{
				{0, 0}, {1, 0}, {2, 0},
				{0, 1}, {1, 1}, {2, 1},
				{0, 2}, {1, 2}, {2, 2},
				{1, 3}, {2, 3},
				{1, 4}, {2, 4},
				{1, 5}, {1, 6},
			},
		},
		{
			name: "concatenated",
			opts: []Option{WithLayout(Concatenated)},
			routes: []route{
				{0, 0}, {0, 1}, {0, 2},
				{1, 0}, {1, 1}, {1, 2}, {1, 3}, {1, 4}, {1, 5}, {1, 6},
				{2, 0}, {2, 1}, {2, 2}, {2, 3}, {2, 4},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, sims := fakes(3, 7, 5)
			s, err := New(sims, tt.opts...)
			if err != nil {
				t.Fatal(err)
			}
			if s.Size() != 15 || s.Allocator().Available() != 15 {
				t.Errorf("Size() = %d, Available() = %d, want 15", s.Size(), s.Allocator().Available())
			}
			if diff := cmp.Diff(tt.routes, s.routes, cmp.AllowUnexported(route{})); diff != "" {
				t.Errorf("routes (-want +got):\n%s", diff)
			}
			for _, c := range sims {
				if c.Allocator().Available() != 0 {
					t.Error("component ids left unallocated")
				}
			}
		})
	}
}

func TestRouteIndexNine(t *testing.T) {
	_, sims := fakes(3, 7, 5)
	s, err := New(sims)
	if err != nil {
		t.Fatal(err)
	}
	c, idx, err := s.Route(9)
	if err != nil || c != 1 || idx != 3 {
		t.Errorf("Route(9) = %d, %d, %v; want 1, 3", c, idx, err)
	}
	buf := make([]int32, 2)
	if err := s.State(9, buf); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int32{1, 3}, buf); diff != "" {
		t.Errorf("State(9) (-want +got):\n%s", diff)
	}
	if _, _, err := s.Route(15); !errors.Is(err, automata.ErrBadIndex) {
		t.Errorf("Route(15) err = %v, want ErrBadIndex", err)
	}
}

func TestSkipsAllocatedIDs(t *testing.T) {
	fs, sims := fakes(2, 2)
	if _, err := fs[0].Allocator().Allocate(); err != nil {
		t.Fatal(err)
	}
	s, err := New(sims)
	if err != nil {
		t.Fatal(err)
	}
	want := []route{{0, 1}, {1, 0}, {1, 1}}
	if diff := cmp.Diff(want, s.routes, cmp.AllowUnexported(route{})); diff != "" {
		t.Errorf("routes (-want +got):\n%s", diff)
	}
}

func TestNewErrors(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, ErrNoComponents) {
		t.Errorf("New(nil) err = %v", err)
	}
	sims := []automata.Simulator{automata.NewNoOp(1, 1, 4, 1), automata.NewNoOp(1, 1, 5, 1)}
	if _, err := New(sims); !errors.Is(err, ErrWidthMismatch) {
		t.Errorf("mismatched widths err = %v", err)
	}
}

// =============================================================================
// Fan out
// =============================================================================

func TestForwarding(t *testing.T) {
	fs, sims := fakes(3, 7, 5)
	s, err := New(sims)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetStates(make([]int32, 15*2)); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{0, 1, 2, 3, 4, 5, 6}, fs[1].setState); diff != "" {
		t.Errorf("component 1 SetState ids (-want +got):\n%s", diff)
	}
	if err := s.Update(context.Background()); err != nil {
		t.Fatal(err)
	}
	for i, f := range fs {
		if f.updates != 1 {
			t.Errorf("component %d updated %d times", i, f.updates)
		}
	}
	if err := s.States(make([]int32, 3)); !errors.Is(err, automata.ErrShortBuffer) {
		t.Errorf("States short buffer err = %v", err)
	}
}

func TestCloseCollectsErrors(t *testing.T) {
	errA := errors.New("a failed")
	errC := errors.New("c failed")
	fs, sims := fakes(1, 1, 1)
	fs[0].closeErr = errA
	fs[2].closeErr = errC
	s, err := New(sims)
	if err != nil {
		t.Fatal(err)
	}

	err = s.Close()
	var ce *CloseError
	if !errors.As(err, &ce) {
		t.Fatalf("Close() = %v, want *CloseError", err)
	}
	if len(ce.Errs) != 2 {
		t.Errorf("len(Errs) = %d, want 2", len(ce.Errs))
	}
	if !errors.Is(err, errA) || !errors.Is(err, errC) {
		t.Errorf("Close() = %v does not wrap both failures", err)
	}

	fs[0].closeErr, fs[2].closeErr = nil, nil
	if err := s.Close(); err != nil {
		t.Errorf("Close() = %v, want nil", err)
	}
}

func TestCloseMiddleFailure(t *testing.T) {
	errMid := errors.New("middle failed")
	fs, sims := fakes(3, 7, 5)
	fs[1].closeErr = errMid
	s, err := New(sims)
	if err != nil {
		t.Fatal(err)
	}

	err = s.Close()
	var ce *CloseError
	if !errors.As(err, &ce) {
		t.Fatalf("Close() = %v, want *CloseError", err)
	}
	if len(ce.Errs) != 1 || !errors.Is(ce.Errs[0], errMid) {
		t.Errorf("Errs = %v, want only the middle failure", ce.Errs)
	}
	for i, f := range fs {
		if !f.closed {
			t.Errorf("component %d not closed", i)
		}
	}
}

// TestMatchesSingleSimulator compares a composite of two CPU simulators with
// one simulator holding all instances.
func TestMatchesSingleSimulator(t *testing.T) {
	d := model.NewUniform(2, 2, model.ToggleCellType(), 2, 2)
	newCPU := func(n int) automata.Simulator {
		sim, err := automata.New(automata.Config{NumInstances: n, Descriptor: d}, automata.WithBackend(automata.BackendCPU))
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = sim.Close() })
		return sim
	}
	single := newCPU(7)
	comp, err := New([]automata.Simulator{newCPU(3), newCPU(4)})
	if err != nil {
		t.Fatal(err)
	}

	rng := rand.New(rand.NewPCG(1, 2))
	states := make([]int32, 7*single.StateSize())
	for i := range states {
		states[i] = int32(rng.Uint32())
	}
	for _, sim := range []automata.Simulator{single, comp} {
		if err := sim.SetStates(states); err != nil {
			t.Fatal(err)
		}
		for range 2 {
			if err := sim.Update(context.Background()); err != nil {
				t.Fatal(err)
			}
		}
	}
	want := make([]int32, len(states))
	got := make([]int32, len(states))
	if err := single.States(want); err != nil {
		t.Fatal(err)
	}
	if err := comp.States(got); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("composite differs (-single +composite):\n%s", diff)
	}
}
