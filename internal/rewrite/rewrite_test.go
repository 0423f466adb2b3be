package rewrite

import (
	"errors"
	"testing"

	"github.com/gogpu/automata/internal/layout"
	"github.com/gogpu/automata/internal/topology"
	"github.com/gogpu/automata/model"
)

func unit(t *testing.T, d *model.Descriptor) *layout.Unit {
	t.Helper()
	tu, err := topology.Resolve(d)
	if err != nil {
		t.Fatal(err)
	}
	u, err := layout.Build(tu)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func TestExpression(t *testing.T) {
	ct := model.CellType{
		ID:     "c",
		Params: []model.Param{{ID: "k"}},
		Vars:   []model.Var{{ID: "tmp"}},
		Outputs: []model.Output{
			model.NewOutput("1", "", "mask"),
			model.NewOutput("2", "", "mask"),
		},
	}
	d := model.NewUniform(2, 2, ct, 2, 2)
	d.LogicalUnit.NeighborConnections = model.Neighbors4
	u := unit(t, d)
	c := u.Cell("1")

	tests := []struct {
		outputID string
		in       string
		want     string
	}{
		{"1", "  {k} + 1  ", "cell_1_k + 1"},
		{"1", "{mask}", "cell_1_out1_mask"},
		{"2", "{mask}", "cell_1_out2_mask"},
		{"1", "{out2_mask}", "cell_1_out2_mask"},
		{"1", "{tmp}", "cell_1_tmp"},
		{"1", "{input3}", "cell_2_out1"},
		{"1", "{INPUT4}", "cell_3_out2"},
		{"1", "{input1}", "ex_in1"},
		{"2", "~{output2} & {Output1}", "~cell_1_out2 & cell_1_out1"},
		{"1", "automatonInput[0]", "automatonInput[0]"},
	}
	for _, tt := range tests {
		got, err := Expression(u, c, tt.outputID, tt.in)
		if err != nil {
			t.Errorf("Expression(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Expression(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestUnresolved(t *testing.T) {
	u := unit(t, model.NewUniform(1, 1, model.ToggleCellType(), 1, 1))
	c := u.Cell("1")
	for _, token := range []string{"input9", "output4", "input0", "nope", "inputx"} {
		_, err := Expression(u, c, "1", "{"+token+"} + 1")
		if !errors.Is(err, ErrUnresolvedPlaceholder) {
			t.Errorf("%s: err = %v, want ErrUnresolvedPlaceholder", token, err)
			continue
		}
		var ue *UnresolvedPlaceholderError
		if !errors.As(err, &ue) || ue.CellID != "1" || ue.Token != token {
			t.Errorf("%s: err = %#v", token, err)
		}
	}
}

func TestPlaceholders(t *testing.T) {
	got := Placeholders("({input2} & {input2Mask}) | {x}")
	if len(got) != 3 || got[0] != "input2" || got[1] != "input2Mask" || got[2] != "x" {
		t.Errorf("Placeholders = %v", got)
	}
}
