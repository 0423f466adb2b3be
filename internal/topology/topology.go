// Package topology connects the cells of a logical unit to their neighbors.
//
// Every cell receives exactly k inputs, where k is the neighbor strategy of
// the unit (3, 4 or 8). An input whose neighbor lies inside the cell matrix
// binds directly to the designated output of that cell. Otherwise a fresh
// external cell is minted that stands for the wrapped-around cell of an
// adjacent logical unit.
package topology

import (
	"fmt"
	"strconv"

	"github.com/gogpu/automata/model"
)

// ExternalType is the type id of external cells.
const ExternalType = "external"

// ExternalIDPrefix prefixes the ids of external cells: "in1", "in2", ...
const ExternalIDPrefix = "in"

// ExternalCellType returns the single-output type of an external cell.
func ExternalCellType() model.CellType {
	return model.CellType{ID: ExternalType, Outputs: []model.Output{{ID: "1"}}}
}

// Node is a resolved cell: either a cell of the matrix or an external cell.
type Node struct {
	ID   string
	Type model.CellType

	// Row and Col locate matrix cells. They are -1 for external cells.
	Row, Col int

	// Inputs holds one entry per neighbor slot. External cells have none.
	Inputs []Input

	// External is non-nil for external cells.
	External *ExternalCell
}

// IsExternal reports whether n stands for a cell of another logical unit.
func (n *Node) IsExternal() bool { return n.External != nil }

// Output returns the output with the given id, or nil.
func (n *Node) Output(id string) *model.Output {
	for i := range n.Type.Outputs {
		if n.Type.Outputs[i].ID == id {
			return &n.Type.Outputs[i]
		}
	}
	return nil
}

// ExternalCell records where an external cell reads its value.
type ExternalCell struct {
	// RelativeRow and RelativeCol are the unit step, each in {-1, 0, 1}.
	RelativeRow, RelativeCol int

	Source         *Node
	SourceOutputID string
}

// Input binds one neighbor slot to an output of a node.
type Input struct {
	Node     *Node
	OutputID string
}

// Unit is a connected logical unit.
type Unit struct {
	Strategy   string
	Rows, Cols int

	// Cells lists the matrix cells in row-major order.
	Cells []*Node

	// Externals lists external cells in creation order.
	Externals []*Node
}

// At returns the matrix cell at (row, col).
func (u *Unit) At(row, col int) *Node {
	return u.Cells[row*u.Cols+col]
}

// Cell returns the matrix cell with the given id, or nil.
func (u *Unit) Cell(id string) *Node {
	for _, c := range u.Cells {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// FeedsExternal reports whether some external cell reads output outputID of n.
func (u *Unit) FeedsExternal(n *Node, outputID string) bool {
	for _, ex := range u.Externals {
		if ex.External.Source == n && ex.External.SourceOutputID == outputID {
			return true
		}
	}
	return false
}

// Resolve builds the connected unit of d. Cell types are expanded, cells
// without an id are numbered in row-major order, and per-cell output
// restrictions produce derived types.
func Resolve(d *model.Descriptor) (*Unit, error) {
	lu := d.LogicalUnit
	if len(lu.Rows) == 0 || len(lu.Rows[0].Cells) == 0 {
		return nil, fmt.Errorf("topology: %w: empty logical unit", model.ErrInvalidDescriptor)
	}
	links, ok := strategies[lu.Strategy()]
	if !ok {
		return nil, fmt.Errorf("topology: %w: unsupported neighbor connections %q",
			model.ErrInvalidDescriptor, lu.NeighborConnections)
	}

	types := make(map[string]model.CellType, len(d.CellTypes))
	for _, t := range d.CellTypes {
		types[t.ID] = model.ExpandOutputs(t)
	}

	u := &Unit{
		Strategy: lu.Strategy(),
		Rows:     len(lu.Rows),
		Cols:     len(lu.Rows[0].Cells),
	}
	nextID := 1
	seen := make(map[string]bool)
	for r, row := range lu.Rows {
		if len(row.Cells) != u.Cols {
			return nil, fmt.Errorf("topology: %w: row %d has %d cells, want %d",
				model.ErrInvalidDescriptor, r, len(row.Cells), u.Cols)
		}
		for c, cell := range row.Cells {
			t, ok := types[cell.Type]
			if !ok {
				return nil, fmt.Errorf("topology: %w: unknown cell type %q",
					model.ErrInvalidDescriptor, cell.Type)
			}
			id := cell.ID
			if id == "" {
				id = strconv.Itoa(nextID)
				nextID++
			}
			if seen[id] {
				return nil, fmt.Errorf("topology: %w: duplicate cell id %q", model.ErrInvalidDescriptor, id)
			}
			seen[id] = true
			if cell.Outputs != "" {
				t = model.RestrictOutputs(t, t.ID+"_e"+id, cell.Outputs)
			}
			if len(t.Outputs) == 0 {
				return nil, fmt.Errorf("topology: %w: cell %s keeps no outputs", model.ErrInvalidDescriptor, id)
			}
			u.Cells = append(u.Cells, &Node{ID: id, Type: t, Row: r, Col: c})
		}
	}

	for _, n := range u.Cells {
		n.Inputs = make([]Input, len(links))
		for slot, l := range links {
			dr, dc := l.step(n.Row, n.Col)
			n.Inputs[slot] = u.connect(n.Row+dr, n.Col+dc, l.output)
		}
	}
	return u, nil
}

// connect binds to the cell at (row, col), minting an external cell when the
// position lies outside the matrix.
func (u *Unit) connect(row, col, designated int) Input {
	relRow, wrappedRow := wrap(row, u.Rows)
	relCol, wrappedCol := wrap(col, u.Cols)
	src := u.At(wrappedRow, wrappedCol)
	outputID := src.Type.Outputs[designated%len(src.Type.Outputs)].ID
	if relRow == 0 && relCol == 0 {
		return Input{Node: src, OutputID: outputID}
	}

	ex := &Node{
		ID:   ExternalIDPrefix + strconv.Itoa(len(u.Externals)+1),
		Type: ExternalCellType(),
		Row:  -1,
		Col:  -1,
		External: &ExternalCell{
			RelativeRow:    relRow,
			RelativeCol:    relCol,
			Source:         src,
			SourceOutputID: outputID,
		},
	}
	u.Externals = append(u.Externals, ex)
	return Input{Node: ex, OutputID: ex.Type.Outputs[0].ID}
}

// wrap splits i into a unit step and a position in [0, n).
func wrap(i, n int) (step, pos int) {
	switch {
	case i < 0:
		return -1, i + n
	case i >= n:
		return 1, i - n
	}
	return 0, i
}
