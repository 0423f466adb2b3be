// Package model defines the declarative description of a tiled cellular
// automaton: cell types, the cell matrix of one logical unit, and the grid
// of logical units that tiles the whole automaton.
//
// A Descriptor is plain data. It can be built in code (see NewUniform and the
// builtin cell types), or read from JSON or XML (see ReadFile). Compilation
// into an executable program lives in package program.
package model

import (
	"encoding/xml"
	"errors"
	"fmt"
	"regexp"

	"github.com/samber/lo"
)

// ErrInvalidDescriptor is returned when a descriptor fails validation.
var ErrInvalidDescriptor = errors.New("model: invalid descriptor")

// Neighbor connection strategies of a logical unit.
const (
	Neighbors3 = "3"
	Neighbors4 = "4"
	Neighbors8 = "8"
)

// Addressing selects how an external cell finds the logical unit it reads.
type Addressing string

const (
	// AddressingFlat adds relRow*width+relCol to the flat unit index and
	// reduces modulo the unit count. A horizontal wrap at column 0 lands in
	// the previous row.
	AddressingFlat Addressing = "flat"

	// AddressingToroidal wraps rows and columns independently.
	AddressingToroidal Addressing = "toroidal"
)

// Param is a persisted per-cell value referenced from expressions.
type Param struct {
	ID string `json:"id" xml:"id,attr"`
}

// Var is a cell-local temporary. Vars are not part of the persisted state.
type Var struct {
	ID string `json:"id" xml:"id,attr"`
}

// Output is one value computed by a cell on every iteration.
type Output struct {
	// ID identifies the output. A list of numeric ids such as "1,2,3"
	// declares one output per id sharing the same definition.
	ID string `json:"id" xml:"id,attr"`

	// UpdateExpression computes the new value. Placeholders in braces refer
	// to params, inputs and outputs.
	UpdateExpression string `json:"updateExpression" xml:"updateExpression"`

	// BeforeUpdate holds statements executed before the update expressions
	// of the same class (constant or dynamic).
	BeforeUpdate string `json:"beforeUpdate,omitempty" xml:"beforeUpdate,omitempty"`

	// Constant outputs are evaluated once per update, before the iteration loop.
	Constant bool `json:"constant,omitempty" xml:"constant,attr,omitempty"`

	Params []Param `json:"params,omitempty" xml:"param"`
}

// CellType is a reusable cell behavior.
type CellType struct {
	ID      string   `json:"id" xml:"id,attr"`
	Outputs []Output `json:"outputs" xml:"output"`
	Params  []Param  `json:"params,omitempty" xml:"param"`
	Vars    []Var    `json:"vars,omitempty" xml:"var"`
}

// Cell places a cell type in a logical unit.
type Cell struct {
	// ID is assigned "1", "2", ... in row-major order when empty.
	ID   string `json:"id,omitempty" xml:"id,attr,omitempty"`
	Type string `json:"type" xml:"type,attr"`

	// Outputs optionally restricts the type to a subset of its outputs,
	// for example "1,3".
	Outputs string `json:"outputs,omitempty" xml:"outputs,attr,omitempty"`
}

// Row is one row of cells.
type Row struct {
	Cells []Cell `json:"cells" xml:"cell"`
}

// LogicalUnit is the cell matrix repeated across the automaton grid.
type LogicalUnit struct {
	// NeighborConnections is "3", "4" or "8". Empty selects "8".
	NeighborConnections string `json:"neighborConnections,omitempty" xml:"neighborConnections,attr,omitempty"`
	Rows                []Row  `json:"rows" xml:"row"`
}

// Descriptor describes a complete automaton.
type Descriptor struct {
	XMLName xml.Name `json:"-" xml:"cellularAutomatonDescriptor"`

	// Width is the number of logical units per row.
	Width int `json:"width" xml:"width,attr"`
	// Height is the number of logical unit rows.
	Height int `json:"height" xml:"height,attr"`

	// IterationsPerUpdate defaults to 1 when zero.
	IterationsPerUpdate int `json:"iterationsPerUpdate,omitempty" xml:"iterationsPerUpdate,attr,omitempty"`

	// Addressing defaults to AddressingFlat when empty.
	Addressing Addressing `json:"addressing,omitempty" xml:"addressing,attr,omitempty"`

	CellTypes   []CellType  `json:"cellTypes" xml:"cellType"`
	LogicalUnit LogicalUnit `json:"logicalUnit" xml:"logicalUnit"`
}

// Iterations returns the effective number of iterations per update.
func (d *Descriptor) Iterations() int {
	if d.IterationsPerUpdate <= 0 {
		return 1
	}
	return d.IterationsPerUpdate
}

// UnitAddressing returns the effective addressing mode.
func (d *Descriptor) UnitAddressing() Addressing {
	if d.Addressing == "" {
		return AddressingFlat
	}
	return d.Addressing
}

// Strategy returns the effective neighbor connection strategy.
func (u *LogicalUnit) Strategy() string {
	if u.NeighborConnections == "" {
		return Neighbors8
	}
	return u.NeighborConnections
}

// CellType returns the type with the given id, or nil.
func (d *Descriptor) CellType(id string) *CellType {
	for i := range d.CellTypes {
		if d.CellTypes[i].ID == id {
			return &d.CellTypes[i]
		}
	}
	return nil
}

// Validate checks the structural constraints that compilation relies on.
func (d *Descriptor) Validate() error {
	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("%w: grid %dx%d", ErrInvalidDescriptor, d.Width, d.Height)
	}
	if len(d.LogicalUnit.Rows) == 0 {
		return fmt.Errorf("%w: logical unit has no rows", ErrInvalidDescriptor)
	}
	switch d.LogicalUnit.Strategy() {
	case Neighbors3, Neighbors4, Neighbors8:
	default:
		return fmt.Errorf("%w: unsupported neighbor connections %q",
			ErrInvalidDescriptor, d.LogicalUnit.NeighborConnections)
	}
	switch d.UnitAddressing() {
	case AddressingFlat, AddressingToroidal:
	default:
		return fmt.Errorf("%w: unknown addressing %q", ErrInvalidDescriptor, d.Addressing)
	}
	ids := lo.Map(d.CellTypes, func(t CellType, _ int) string { return t.ID })
	if dup := lo.FindDuplicates(ids); len(dup) > 0 {
		return fmt.Errorf("%w: cell type %q declared twice", ErrInvalidDescriptor, dup[0])
	}
	for r, row := range d.LogicalUnit.Rows {
		if len(row.Cells) == 0 {
			return fmt.Errorf("%w: row %d is empty", ErrInvalidDescriptor, r)
		}
		if len(row.Cells) != len(d.LogicalUnit.Rows[0].Cells) {
			return fmt.Errorf("%w: row %d has %d cells, want %d", ErrInvalidDescriptor,
				r, len(row.Cells), len(d.LogicalUnit.Rows[0].Cells))
		}
		for c, cell := range row.Cells {
			t := d.CellType(cell.Type)
			if t == nil {
				return fmt.Errorf("%w: cell (%d,%d) has unknown type %q",
					ErrInvalidDescriptor, r, c, cell.Type)
			}
			if len(t.Outputs) == 0 {
				return fmt.Errorf("%w: cell type %q has no outputs", ErrInvalidDescriptor, t.ID)
			}
		}
	}
	return nil
}

var numericID = regexp.MustCompile(`\d+`)

// ExpandOutputs returns a copy of t in which every output declaring several
// numeric ids is replicated once per id. Outputs without numeric ids are
// kept as they are.
func ExpandOutputs(t CellType) CellType {
	out := CellType{
		ID:     t.ID,
		Params: append([]Param(nil), t.Params...),
		Vars:   append([]Var(nil), t.Vars...),
	}
	for _, o := range t.Outputs {
		ids := numericID.FindAllString(o.ID, -1)
		if len(ids) == 0 {
			out.Outputs = append(out.Outputs, o)
			continue
		}
		for _, id := range ids {
			dup := o
			dup.ID = id
			dup.Params = append([]Param(nil), o.Params...)
			out.Outputs = append(out.Outputs, dup)
		}
	}
	return out
}

// RestrictOutputs returns a copy of t that keeps only the outputs listed in
// spec (for example "1,3"), in the order listed. Unknown ids are ignored.
func RestrictOutputs(t CellType, newID, spec string) CellType {
	out := CellType{
		ID:     newID,
		Params: append([]Param(nil), t.Params...),
		Vars:   append([]Var(nil), t.Vars...),
	}
	for _, id := range numericID.FindAllString(spec, -1) {
		if o, ok := lo.Find(t.Outputs, func(o Output) bool { return o.ID == id }); ok {
			out.Outputs = append(out.Outputs, o)
		}
	}
	return out
}
