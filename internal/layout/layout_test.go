package layout

import (
	"errors"
	"testing"

	"github.com/gogpu/automata/internal/topology"
	"github.com/gogpu/automata/model"
)

func build(t *testing.T, d *model.Descriptor) *Unit {
	t.Helper()
	tu, err := topology.Resolve(d)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	u, err := Build(tu)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return u
}

func routing(rows, cols int) *model.Descriptor {
	d := model.NewUniform(3, 3, model.Routing3In3OutCellType(), rows, cols)
	d.LogicalUnit.NeighborConnections = model.Neighbors3
	return d
}

// =============================================================================
// Slot assignment
// =============================================================================

func TestStateSize(t *testing.T) {
	u := build(t, routing(4, 4))
	// 16 cells, each with 3 outputs and 6 masks.
	if got, want := u.StateSize(), 16*9; got != want {
		t.Errorf("StateSize() = %d, want %d", got, want)
	}
	for s := 0; s < u.StateSize(); s++ {
		got, ok := u.Slot(u.Name(s))
		if !ok || got != s {
			t.Fatalf("slot %d: name %q maps to %d", s, u.Name(s), got)
		}
	}
}

func TestExternalOutputsFirst(t *testing.T) {
	u := build(t, routing(4, 4))
	firstInternal := -1
	for s := 0; s < u.StateSize(); s++ {
		name := u.Name(s)
		c, outputID, isOutput := findOutput(u, name)
		if !isOutput {
			if firstInternal < 0 {
				t.Fatalf("slot %d: param %q before outputs", s, name)
			}
			break
		}
		feeds := u.Topology.FeedsExternal(c.Node, outputID)
		if feeds && firstInternal >= 0 {
			t.Fatalf("slot %d: external output %q after internal output", s, name)
		}
		if !feeds && firstInternal < 0 {
			firstInternal = s
		}
	}
	if firstInternal <= 0 {
		t.Errorf("first internal output at %d, want > 0", firstInternal)
	}
}

func findOutput(u *Unit, name string) (*Cell, string, bool) {
	for _, c := range u.Cells {
		for _, o := range c.Outputs() {
			if v, _ := c.OutputVar(o.ID); v == name {
				return c, o.ID, true
			}
		}
	}
	return nil, "", false
}

func TestParamOrder(t *testing.T) {
	ct := model.CellType{
		ID:      "p",
		Params:  []model.Param{{ID: "a"}, {ID: "b"}},
		Vars:    []model.Var{{ID: "tmp"}},
		Outputs: []model.Output{model.NewOutput("1", "{a}", "m")},
	}
	u := build(t, model.NewUniform(1, 1, ct, 1, 2))
	want := []string{
		"cell_1_out1", "cell_2_out1",
		"cell_1_a", "cell_1_b", "cell_1_out1_m",
		"cell_2_a", "cell_2_b", "cell_2_out1_m",
	}
	got := u.Names()
	if len(got) != len(want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("slot %d = %q, want %q", i, got[i], want[i])
		}
	}
	if _, ok := u.Slot("cell_1_tmp"); ok {
		t.Error("vars must not be persisted")
	}
	c := u.Cell("1")
	if v, ok := c.ParamVar("out1_m"); !ok || v != "cell_1_out1_m" {
		t.Errorf("ParamVar(out1_m) = %q, %v", v, ok)
	}
	if v, ok := c.OutputParamVar("1", "m"); !ok || v != "cell_1_out1_m" {
		t.Errorf("OutputParamVar(1, m) = %q, %v", v, ok)
	}
	if v, ok := c.ParamVar("tmp"); !ok || v != "cell_1_tmp" {
		t.Errorf("ParamVar(tmp) = %q, %v", v, ok)
	}
	if got := c.Vars(); len(got) != 1 || got[0] != "cell_1_tmp" {
		t.Errorf("Vars() = %v", got)
	}
}

func TestInputVar(t *testing.T) {
	u := build(t, routing(2, 2))
	c := u.Cell("1")
	if got := u.InputVar(c.Node.Inputs[2]); got != "cell_2_out1" {
		t.Errorf("right input = %q, want cell_2_out1", got)
	}
	if got := u.InputVar(c.Node.Inputs[0]); got != "ex_in1" {
		t.Errorf("left input = %q, want ex_in1", got)
	}
}

// =============================================================================
// Errors
// =============================================================================

func TestDuplicateParameter(t *testing.T) {
	tests := []struct {
		name string
		ct   model.CellType
		id   string
	}{
		{"param", model.CellType{
			ID:      "d",
			Params:  []model.Param{{ID: "x"}, {ID: "x"}},
			Outputs: []model.Output{model.NewOutput("1", "0")},
		}, "x"},
		{"var shadows param", model.CellType{
			ID:      "d",
			Params:  []model.Param{{ID: "x"}},
			Vars:    []model.Var{{ID: "x"}},
			Outputs: []model.Output{model.NewOutput("1", "0")},
		}, "x"},
		{"output param", model.CellType{
			ID:      "d",
			Params:  []model.Param{{ID: "out1_m"}},
			Outputs: []model.Output{model.NewOutput("1", "0", "m")},
		}, "out1_m"},
		{"param named like output", model.CellType{
			ID:      "d",
			Params:  []model.Param{{ID: "out1"}},
			Outputs: []model.Output{model.NewOutput("1", "0")},
		}, "out1"},
		{"var named like output", model.CellType{
			ID:      "d",
			Vars:    []model.Var{{ID: "out2"}},
			Outputs: []model.Output{model.NewOutput("1", "0"), model.NewOutput("2", "0")},
		}, "out2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tu, err := topology.Resolve(model.NewUniform(1, 1, tt.ct, 1, 1))
			if err != nil {
				t.Fatal(err)
			}
			_, err = Build(tu)
			if !errors.Is(err, ErrDuplicateParameter) {
				t.Fatalf("Build() = %v, want ErrDuplicateParameter", err)
			}
			var dpe *DuplicateParameterError
			if !errors.As(err, &dpe) || dpe.CellID != "1" || dpe.ParamID != tt.id {
				t.Errorf("error = %#v", err)
			}
		})
	}
}

func TestDuplicateCellID(t *testing.T) {
	d := model.NewUniform(1, 1, model.ToggleCellType(), 1, 2)
	d.LogicalUnit.Rows[0].Cells[0].ID = "a"
	d.LogicalUnit.Rows[0].Cells[1].ID = "a"
	if _, err := topology.Resolve(d); !errors.Is(err, model.ErrInvalidDescriptor) {
		t.Fatalf("Resolve() = %v, want ErrInvalidDescriptor", err)
	}

	// An explicit id may also collide with an automatic one.
	d.LogicalUnit.Rows[0].Cells[0].ID = ""
	d.LogicalUnit.Rows[0].Cells[1].ID = "1"
	if _, err := topology.Resolve(d); !errors.Is(err, model.ErrInvalidDescriptor) {
		t.Fatalf("Resolve() = %v, want ErrInvalidDescriptor", err)
	}
}

func TestSlotNamesInjective(t *testing.T) {
	u := build(t, routing(3, 3))
	seen := make(map[string]int)
	for s, name := range u.Names() {
		if prev, ok := seen[name]; ok {
			t.Fatalf("slots %d and %d share %q", prev, s, name)
		}
		seen[name] = s
	}
}
