package bitwise

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gogpu/automata"
	"github.com/gogpu/automata/model"
)

// toggleCPU returns a CPU simulator of a 2x2 toggle automaton. Every state
// word is an output that inverts on each iteration.
func toggleCPU(t *testing.T, n int) *automata.CPU {
	t.Helper()
	d := model.NewUniform(2, 2, model.ToggleCellType(), 1, 1)
	sim, err := automata.New(automata.Config{NumInstances: n, Descriptor: d}, automata.WithBackend(automata.BackendCPU))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = sim.Close() })
	return sim.(*automata.CPU)
}

// recorder remembers the instances whose maps were set.
type recorder struct {
	*automata.NoOp
	inputMaps, outputMaps []int
}

func (r *recorder) SetInputMap(i int, _ []int32) error {
	r.inputMaps = append(r.inputMaps, i)
	return nil
}

func (r *recorder) SetOutputMap(i int, _ []int32) error {
	r.outputMaps = append(r.outputMaps, i)
	return nil
}

func randomLanes(rng *rand.Rand, n int, mask uint32) []int32 {
	w := make([]int32, n)
	for i := range w {
		w[i] = int32(rng.Uint32() & mask)
	}
	return w
}

// =============================================================================
// Construction
// =============================================================================

func TestNew(t *testing.T) {
	sim := automata.NewNoOp(3, 2, 5, 4)
	tests := []struct {
		bits int
		size int
		err  bool
	}{
		{bits: 1, size: 96},
		{bits: 2, size: 48},
		{bits: 4, size: 24},
		{bits: 8, size: 12},
		{bits: 16, size: 6},
		{bits: 32, size: 3},
		{bits: 0, err: true},
		{bits: 3, err: true},
		{bits: 64, err: true},
		{bits: -4, err: true},
	}
	for _, tt := range tests {
		b, err := New(sim, tt.bits)
		if tt.err {
			if !errors.Is(err, ErrBitsPerEntity) {
				t.Errorf("New(%d) err = %v, want ErrBitsPerEntity", tt.bits, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("New(%d): %v", tt.bits, err)
		}
		if b.Size() != tt.size || b.Allocator().Capacity() != tt.size {
			t.Errorf("New(%d): Size() = %d, capacity = %d, want %d", tt.bits, b.Size(), b.Allocator().Capacity(), tt.size)
		}
		if b.StateSize() != 5 || b.InputSize() != 2 || b.OutputSize() != 4 {
			t.Errorf("New(%d): widths %d/%d/%d", tt.bits, b.InputSize(), b.StateSize(), b.OutputSize())
		}
	}
}

// =============================================================================
// Lanes
// =============================================================================

func TestRoundTrip(t *testing.T) {
	for _, bits := range []int{1, 4, 8, 32} {
		cpu := toggleCPU(t, 2)
		b, err := New(cpu, bits)
		if err != nil {
			t.Fatal(err)
		}
		rng := rand.New(rand.NewPCG(uint64(bits), 1))
		want := make([][]int32, b.Size())
		for i := range want {
			want[i] = randomLanes(rng, b.StateSize(), b.mask)
			if err := b.SetState(i, want[i]); err != nil {
				t.Fatal(err)
			}
		}
		for i := range want {
			got := make([]int32, b.StateSize())
			if err := b.State(i, got); err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(want[i], got); diff != "" {
				t.Fatalf("bits %d: State(%d) (-want +got):\n%s", bits, i, diff)
			}
		}
	}
}

func TestSetStateMasksHighBits(t *testing.T) {
	b, err := New(toggleCPU(t, 1), 4)
	if err != nil {
		t.Fatal(err)
	}
	in := make([]int32, b.StateSize())
	for j := range in {
		in[j] = 0x7ff0 | int32(j&0xf)
	}
	if err := b.SetState(1, in); err != nil {
		t.Fatal(err)
	}
	got := make([]int32, b.StateSize())
	if err := b.State(1, got); err != nil {
		t.Fatal(err)
	}
	for j, v := range got {
		if v != int32(j&0xf) {
			t.Fatalf("word %d = %#x, want %#x", j, v, j&0xf)
		}
	}
}

func TestLaneIsolation(t *testing.T) {
	cpu := toggleCPU(t, 1)
	b, err := New(cpu, 4)
	if err != nil {
		t.Fatal(err)
	}
	ones := make([]int32, b.StateSize())
	for j := range ones {
		ones[j] = 0xf
	}
	if err := b.SetState(3, ones); err != nil {
		t.Fatal(err)
	}
	for i := range b.Size() {
		got := make([]int32, b.StateSize())
		if err := b.State(i, got); err != nil {
			t.Fatal(err)
		}
		want := make([]int32, b.StateSize())
		if i == 3 {
			want = ones
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("State(%d) (-want +got):\n%s", i, diff)
		}
	}

	// Flushed on Update: lane 3 occupies bits 12..15 of every word.
	if err := b.Update(context.Background()); err != nil {
		t.Fatal(err)
	}
	raw := make([]int32, cpu.StateSize())
	if err := cpu.State(0, raw); err != nil {
		t.Fatal(err)
	}
	for j, w := range raw[1:] {
		if want := ^int32(0xf000); w != want {
			t.Fatalf("raw word %d = %#x, want %#x", j+1, uint32(w), uint32(want))
		}
	}
}

// =============================================================================
// Update
// =============================================================================

// TestMatchesPackedCPU compares the adapter with a CPU simulator driven with
// hand-packed words.
func TestMatchesPackedCPU(t *testing.T) {
	const bits = 8
	wrapped := toggleCPU(t, 2)
	direct := toggleCPU(t, 2)
	b, err := New(wrapped, bits)
	if err != nil {
		t.Fatal(err)
	}

	rng := rand.New(rand.NewPCG(5, 6))
	size := b.StateSize()
	logical := randomLanes(rng, b.Size()*size, 0xff)
	if err := b.SetStates(logical); err != nil {
		t.Fatal(err)
	}
	packed := make([]int32, direct.Size()*size)
	for i := range b.Size() {
		slot, shift := i*bits/32, uint(i*bits%32)
		for j := range size {
			packed[slot*size+j] |= int32(uint32(logical[i*size+j]) << shift)
		}
	}
	if err := direct.SetStates(packed); err != nil {
		t.Fatal(err)
	}

	for range 3 {
		if err := b.Update(context.Background()); err != nil {
			t.Fatal(err)
		}
		if err := direct.Update(context.Background()); err != nil {
			t.Fatal(err)
		}
	}

	got := make([]int32, b.Size()*size)
	if err := b.States(got); err != nil {
		t.Fatal(err)
	}
	if err := direct.States(packed); err != nil {
		t.Fatal(err)
	}
	want := make([]int32, len(got))
	for i := range b.Size() {
		slot, shift := i*bits/32, uint(i*bits%32)
		for j := range size {
			want[i*size+j] = int32(uint32(packed[slot*size+j]) >> shift & 0xff)
		}
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("adapter differs from packed CPU (-want +got):\n%s", diff)
	}

	// Words past the default input map toggled three times: inverted.
	for i := range b.Size() {
		for j := 1; j < size; j++ {
			if w := ^uint32(logical[i*size+j]) & 0xff; uint32(got[i*size+j]) != w {
				t.Fatalf("instance %d word %d = %#x, want %#x", i, j, got[i*size+j], w)
			}
		}
	}
}

func TestInvalidateCaches(t *testing.T) {
	b, err := New(toggleCPU(t, 1), 16)
	if err != nil {
		t.Fatal(err)
	}
	state := make([]int32, b.StateSize())
	state[2] = 0x1234
	if err := b.SetState(0, state); err != nil {
		t.Fatal(err)
	}
	b.InvalidateCaches()
	got := make([]int32, b.StateSize())
	if err := b.State(0, got); err != nil {
		t.Fatal(err)
	}
	if got[2] != 0 {
		t.Errorf("unflushed write survived InvalidateCaches: %#x", got[2])
	}
}

func TestMapsForwardedToSlot(t *testing.T) {
	r := &recorder{NoOp: automata.NewNoOp(4, 1, 1, 1)}
	b, err := New(r, 8)
	if err != nil {
		t.Fatal(err)
	}
	for _, i := range []int{0, 3, 4, 9, 15} {
		if err := b.SetInputMap(i, nil); err != nil {
			t.Fatal(err)
		}
		if err := b.SetOutputMap(i, nil); err != nil {
			t.Fatal(err)
		}
	}
	want := []int{0, 0, 1, 2, 3}
	if diff := cmp.Diff(want, r.inputMaps); diff != "" {
		t.Errorf("input map slots (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, r.outputMaps); diff != "" {
		t.Errorf("output map slots (-want +got):\n%s", diff)
	}
	if err := b.SetInputMap(16, nil); !errors.Is(err, automata.ErrBadIndex) {
		t.Errorf("SetInputMap(16) err = %v, want ErrBadIndex", err)
	}
}

func TestShortBuffers(t *testing.T) {
	b, err := New(toggleCPU(t, 1), 8)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.State(0, nil); !errors.Is(err, automata.ErrShortBuffer) {
		t.Errorf("State err = %v", err)
	}
	if err := b.SetStates(make([]int32, 3)); !errors.Is(err, automata.ErrShortBuffer) {
		t.Errorf("SetStates err = %v", err)
	}
	if err := b.Output(-1, make([]int32, 1)); !errors.Is(err, automata.ErrBadIndex) {
		t.Errorf("Output(-1) err = %v", err)
	}
}
