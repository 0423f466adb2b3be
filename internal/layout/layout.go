// Package layout names the variables of a connected logical unit and assigns
// the persisted ones to state slots.
//
// Slot order: outputs that feed an external cell, then the remaining outputs,
// then per cell its unit params followed by its output params. External cell
// values and cell vars are not persisted.
package layout

import (
	"errors"
	"fmt"

	"github.com/gogpu/automata/internal/topology"
	"github.com/gogpu/automata/model"
)

// ErrDuplicateParameter is returned when a cell declares the same parameter
// or var id twice.
var ErrDuplicateParameter = errors.New("duplicate parameter")

// DuplicateParameterError identifies the offending cell and id.
type DuplicateParameterError struct {
	CellID  string
	ParamID string
}

func (e *DuplicateParameterError) Error() string {
	return fmt.Sprintf("cell %s: parameter %q defined more than once", e.CellID, e.ParamID)
}

func (e *DuplicateParameterError) Unwrap() error { return ErrDuplicateParameter }

// Cell holds the variable names of one matrix cell.
type Cell struct {
	Node *topology.Node

	// outputs maps output id to variable name.
	outputs map[string]string
	// params maps param id, including out<o>_<p> ids, to variable name.
	params map[string]string
	// vars maps var id to variable name.
	vars map[string]string
	// outputParams maps output id, then bare param id, to the out<o>_<p> id.
	outputParams map[string]map[string]string
}

// ID returns the cell id.
func (c *Cell) ID() string { return c.Node.ID }

// OutputVar returns the variable name of output id.
func (c *Cell) OutputVar(id string) (string, bool) {
	v, ok := c.outputs[id]
	return v, ok
}

// ParamVar returns the variable name of a unit param, an output param under
// its out<o>_<p> id, or a var.
func (c *Cell) ParamVar(id string) (string, bool) {
	if v, ok := c.params[id]; ok {
		return v, true
	}
	v, ok := c.vars[id]
	return v, ok
}

// OutputParamVar returns the variable name of param id of output outputID.
func (c *Cell) OutputParamVar(outputID, id string) (string, bool) {
	key, ok := c.outputParams[outputID][id]
	if !ok {
		return "", false
	}
	return c.params[key], true
}

// Vars returns the cell-local variable names in declaration order.
func (c *Cell) Vars() []string {
	names := make([]string, 0, len(c.Node.Type.Vars))
	for _, v := range c.Node.Type.Vars {
		names = append(names, c.vars[v.ID])
	}
	return names
}

// Unit is a named, slotted logical unit.
type Unit struct {
	Topology *topology.Unit
	Cells    []*Cell

	slots map[string]int
	names []string
}

// StateSize is the number of persisted slots per logical unit.
func (u *Unit) StateSize() int { return len(u.names) }

// Slot returns the state slot of a persisted variable.
func (u *Unit) Slot(name string) (int, bool) {
	s, ok := u.slots[name]
	return s, ok
}

// Name returns the variable persisted in slot s.
func (u *Unit) Name(s int) string { return u.names[s] }

// Names returns the persisted variable names indexed by slot.
func (u *Unit) Names() []string { return append([]string(nil), u.names...) }

// Cell returns the layout of the matrix cell with the given id, or nil.
func (u *Unit) Cell(id string) *Cell {
	for _, c := range u.Cells {
		if c.ID() == id {
			return c
		}
	}
	return nil
}

// InputVar returns the variable read by an input binding.
func (u *Unit) InputVar(in topology.Input) string {
	if in.Node.IsExternal() {
		return ExternalVar(in.Node)
	}
	return OutputVar(in.Node.ID, in.OutputID)
}

// OutputVar names output outputID of cell cellID.
func OutputVar(cellID, outputID string) string {
	return fmt.Sprintf("cell_%s_out%s", cellID, outputID)
}

// ExternalVar names the value of an external cell.
func ExternalVar(n *topology.Node) string {
	return "ex_" + n.ID
}

// ParamVar names a unit param or var of cell cellID.
func ParamVar(cellID, paramID string) string {
	return fmt.Sprintf("cell_%s_%s", cellID, paramID)
}

// OutputParamID is the id under which an output param is reachable from any
// expression of its cell.
func OutputParamID(outputID, paramID string) string {
	return fmt.Sprintf("out%s_%s", outputID, paramID)
}

// Build names every variable of t and assigns state slots.
func Build(t *topology.Unit) (*Unit, error) {
	u := &Unit{Topology: t, slots: make(map[string]int)}
	for _, n := range t.Cells {
		c, err := buildCell(n)
		if err != nil {
			return nil, err
		}
		u.Cells = append(u.Cells, c)
	}

	for _, external := range []bool{true, false} {
		for _, c := range u.Cells {
			for _, o := range c.Node.Type.Outputs {
				if t.FeedsExternal(c.Node, o.ID) != external {
					continue
				}
				if err := u.assign(c, o.ID, c.outputs[o.ID]); err != nil {
					return nil, err
				}
			}
		}
	}
	for _, c := range u.Cells {
		for _, p := range c.Node.Type.Params {
			if err := u.assign(c, p.ID, c.params[p.ID]); err != nil {
				return nil, err
			}
		}
		for _, o := range c.Node.Type.Outputs {
			for _, p := range o.Params {
				id := OutputParamID(o.ID, p.ID)
				if err := u.assign(c, id, c.params[id]); err != nil {
					return nil, err
				}
			}
		}
	}
	return u, nil
}

// assign gives name the next slot. A name generated twice, such as a param
// "out1" next to output 1, is a duplicate of the id that produced it.
func (u *Unit) assign(c *Cell, id, name string) error {
	if _, ok := u.slots[name]; ok {
		return &DuplicateParameterError{CellID: c.ID(), ParamID: id}
	}
	u.slots[name] = len(u.names)
	u.names = append(u.names, name)
	return nil
}

func buildCell(n *topology.Node) (*Cell, error) {
	c := &Cell{
		Node:         n,
		outputs:      make(map[string]string),
		params:       make(map[string]string),
		vars:         make(map[string]string),
		outputParams: make(map[string]map[string]string),
	}
	taken := func(id string) bool {
		_, p := c.params[id]
		_, v := c.vars[id]
		return p || v
	}
	dup := func(id string) error {
		return &DuplicateParameterError{CellID: n.ID, ParamID: id}
	}

	for _, p := range n.Type.Params {
		if taken(p.ID) {
			return nil, dup(p.ID)
		}
		c.params[p.ID] = ParamVar(n.ID, p.ID)
	}
	for _, v := range n.Type.Vars {
		if taken(v.ID) {
			return nil, dup(v.ID)
		}
		c.vars[v.ID] = ParamVar(n.ID, v.ID)
	}
	for _, o := range n.Type.Outputs {
		c.outputs[o.ID] = OutputVar(n.ID, o.ID)
		ids := make(map[string]string, len(o.Params))
		for _, p := range o.Params {
			id := OutputParamID(o.ID, p.ID)
			if taken(id) {
				return nil, dup(id)
			}
			ids[p.ID] = id
			c.params[id] = fmt.Sprintf("cell_%s_out%s_%s", n.ID, o.ID, p.ID)
		}
		c.outputParams[o.ID] = ids
	}
	// Vars are not persisted, so assign never sees them; one named like an
	// output would still share its working variable.
	for _, v := range n.Type.Vars {
		for _, o := range n.Type.Outputs {
			if c.vars[v.ID] == c.outputs[o.ID] {
				return nil, dup(v.ID)
			}
		}
	}
	return c, nil
}

// Outputs returns the outputs of c in declaration order.
func (c *Cell) Outputs() []model.Output { return c.Node.Type.Outputs }
