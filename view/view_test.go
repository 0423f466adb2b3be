package view

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gogpu/automata"
	"github.com/gogpu/automata/model"
	"github.com/gogpu/automata/program"
)

// routing returns a 3x3 automaton of 4x4 routing units, its program and a
// CPU simulator of two instances.
func routing(t *testing.T) (*program.Program, automata.Simulator) {
	t.Helper()
	d := model.NewUniform(3, 3, model.Routing3In3OutCellType(), 4, 4)
	p, err := program.Compile(d)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	sim, err := automata.New(automata.Config{NumInstances: 2, Descriptor: d}, automata.WithBackend(automata.BackendCPU))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = sim.Close() })
	return p, sim
}

// =============================================================================
// Addressing
// =============================================================================

func TestGrid(t *testing.T) {
	p, sim := routing(t)
	v, err := New(p, sim, 0)
	if err != nil {
		t.Fatal(err)
	}
	if v.Rows() != 12 || v.Cols() != 12 {
		t.Fatalf("grid %dx%d, want 12x12", v.Rows(), v.Cols())
	}

	tests := []struct {
		row, col int
		id       string
	}{
		{0, 0, "1"},
		{0, 3, "4"},
		{3, 0, "13"},
		{5, 6, "7"},
		{11, 11, "16"},
		{4, 8, "1"},
	}
	for _, tt := range tests {
		id, err := v.CellID(tt.row, tt.col)
		if err != nil {
			t.Fatal(err)
		}
		if id != tt.id {
			t.Errorf("CellID(%d, %d) = %s, want %s", tt.row, tt.col, id, tt.id)
		}
	}
	if _, err := v.CellID(12, 0); !errors.Is(err, ErrOutOfGrid) {
		t.Errorf("CellID(12, 0) err = %v, want ErrOutOfGrid", err)
	}
	if _, err := v.Output(0, -1, "1"); !errors.Is(err, ErrOutOfGrid) {
		t.Errorf("Output(0, -1) err = %v, want ErrOutOfGrid", err)
	}
}

// =============================================================================
// Load and store
// =============================================================================

func TestStore(t *testing.T) {
	p, sim := routing(t)
	v, err := New(p, sim, 1)
	if err != nil {
		t.Fatal(err)
	}
	// (5, 6) is cell 7 of unit 4.
	if err := v.SetOutput(5, 6, "2", 0b011); err != nil {
		t.Fatal(err)
	}
	if err := v.SetOutputParam(5, 6, "1", "input2Mask", 0b101); err != nil {
		t.Fatal(err)
	}
	if err := v.SetParam(5, 6, "out3_input1Mask", 0b110); err != nil {
		t.Fatal(err)
	}
	if err := v.Store(); err != nil {
		t.Fatal(err)
	}

	want := program.NewStateBuilder(p, 2)
	want.LU(1, 4).
		Set("cell_7_out2", 0b011).
		Set("cell_7_out1_input2Mask", 0b101).
		Set("cell_7_out3_input1Mask", 0b110)
	got := make([]int32, 2*sim.StateSize())
	if err := sim.States(got); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want.State(), got); diff != "" {
		t.Errorf("stored state (-want +got):\n%s", diff)
	}
}

func TestLoad(t *testing.T) {
	p, sim := routing(t)
	v, err := New(p, sim, 0)
	if err != nil {
		t.Fatal(err)
	}

	b := program.NewStateBuilder(p, 1)
	b.LU(0, 8).
		Set("cell_16_out3", 0b100).
		Set("cell_16_out3_input2Mask", 0b010)
	if err := sim.SetState(0, b.Instance(0)); err != nil {
		t.Fatal(err)
	}
	if got, _ := v.Output(11, 11, "3"); got != 0 {
		t.Errorf("Output before Load = %03b, want 000", got)
	}
	if err := v.Load(); err != nil {
		t.Fatal(err)
	}
	if got, err := v.Output(11, 11, "3"); err != nil || got != 0b100 {
		t.Errorf("Output = %03b, %v; want 100", got, err)
	}
	if got, err := v.OutputParam(11, 11, "3", "input2Mask"); err != nil || got != 0b010 {
		t.Errorf("OutputParam = %03b, %v; want 010", got, err)
	}

	// Unstored writes are dropped by Load.
	if err := v.SetOutput(11, 11, "3", 0b111); err != nil {
		t.Fatal(err)
	}
	if err := v.Load(); err != nil {
		t.Fatal(err)
	}
	if got, _ := v.Output(11, 11, "3"); got != 0b100 {
		t.Errorf("Output after reload = %03b, want 100", got)
	}
}

func TestUnknownVariables(t *testing.T) {
	p, sim := routing(t)
	v, err := New(p, sim, 0)
	if err != nil {
		t.Fatal(err)
	}
	if v.HasOutput(0, 0, "4") {
		t.Error("HasOutput(4) = true")
	}
	if !v.HasOutput(0, 0, "1") {
		t.Error("HasOutput(1) = false")
	}
	if _, err := v.Output(0, 0, "4"); !errors.Is(err, ErrNotPersisted) {
		t.Errorf("Output(4) err = %v", err)
	}
	if err := v.SetParam(0, 0, "missing", 1); !errors.Is(err, ErrNotPersisted) {
		t.Errorf("SetParam(missing) err = %v", err)
	}
	if _, err := v.OutputParam(0, 0, "1", "input1Mask"); !errors.Is(err, ErrNotPersisted) {
		t.Errorf("OutputParam(1, input1Mask) err = %v", err)
	}
}

func TestNewErrors(t *testing.T) {
	p, sim := routing(t)
	if _, err := New(p, sim, 2); !errors.Is(err, automata.ErrBadIndex) {
		t.Errorf("New(index 2) err = %v, want ErrBadIndex", err)
	}
	if _, err := New(p, automata.NewNoOp(1, 1, 3, 1), 0); !errors.Is(err, ErrStateSize) {
		t.Errorf("New(NoOp) err = %v, want ErrStateSize", err)
	}
	if _, err := New(nil, sim, 0); err == nil {
		t.Error("New(nil program) succeeded")
	}
}
