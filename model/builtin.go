package model

// Builtin cell type ids.
const (
	InputType          = "input"
	Routing3In3OutType = "routing3in3out"
	ToggleType         = "toggle"
)

// NewOutput returns an output with the given expression and output-scoped params.
func NewOutput(id, expression string, paramIDs ...string) Output {
	o := Output{ID: id, UpdateExpression: expression}
	for _, p := range paramIDs {
		o.Params = append(o.Params, Param{ID: p})
	}
	return o
}

// InputCellType reads one word of the automaton input selected by its idx
// output param.
func InputCellType() CellType {
	return CellType{
		ID: InputType,
		Outputs: []Output{
			NewOutput("1", "automatonInput[{idx} % automatonInputLength] ", "idx"),
		},
	}
}

// Routing3In3OutCellType routes any two of its three inputs to each output
// through per-output masks.
func Routing3In3OutCellType() CellType {
	return CellType{
		ID: Routing3In3OutType,
		Outputs: []Output{
			NewOutput("1", "({input2} & {input2Mask}) | ({input3} & {input3Mask})", "input2Mask", "input3Mask"),
			NewOutput("2", "({input1} & {input1Mask}) | ({input3} & {input3Mask})", "input1Mask", "input3Mask"),
			NewOutput("3", "({input1} & {input1Mask}) | ({input2} & {input2Mask})", "input1Mask", "input2Mask"),
		},
	}
}

// ToggleCellType inverts each of its three outputs on every iteration.
func ToggleCellType() CellType {
	return CellType{
		ID: ToggleType,
		Outputs: []Output{
			NewOutput("1", "~{output1}"),
			NewOutput("2", "~{output2}"),
			NewOutput("3", "~{output3}"),
		},
	}
}

// NewUniform returns a width x height automaton whose logical unit is a
// rows x cols matrix of cells of type t.
func NewUniform(width, height int, t CellType, rows, cols int) *Descriptor {
	ids := make([][]string, rows)
	for r := range ids {
		ids[r] = make([]string, cols)
		for c := range ids[r] {
			ids[r][c] = t.ID
		}
	}
	return NewFromTypeIDs(width, height, []CellType{t}, ids)
}

// NewFromTypeIDs returns a width x height automaton whose logical unit places
// the given type ids row by row.
func NewFromTypeIDs(width, height int, types []CellType, ids [][]string) *Descriptor {
	d := &Descriptor{
		Width:     width,
		Height:    height,
		CellTypes: append([]CellType(nil), types...),
	}
	for _, rowIDs := range ids {
		var row Row
		for _, id := range rowIDs {
			row.Cells = append(row.Cells, Cell{Type: id})
		}
		d.LogicalUnit.Rows = append(d.LogicalUnit.Rows, row)
	}
	return d
}
