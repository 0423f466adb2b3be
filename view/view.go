// Package view addresses the state of one automaton instance cell by cell.
//
// The instance is seen as a grid of Height×Rows by Width×Cols cells, where
// Width and Height count logical units and Rows and Cols are the cell matrix
// of a unit. A View works on a copy of the instance state: Load refreshes
// the copy from the simulator and Store writes it back.
package view

import (
	"errors"
	"fmt"

	"github.com/gogpu/automata"
	"github.com/gogpu/automata/internal/layout"
	"github.com/gogpu/automata/program"
)

var (
	// ErrOutOfGrid is returned for a row or column outside the grid.
	ErrOutOfGrid = errors.New("view: cell outside grid")

	// ErrNotPersisted is returned for an output, param or var that the
	// cell does not have or that is not part of the persisted state.
	ErrNotPersisted = errors.New("view: variable not persisted")

	// ErrStateSize is returned by New when the simulator state does not
	// match the program.
	ErrStateSize = errors.New("view: state size mismatch")
)

// View is a cell grid over one instance.
type View struct {
	prog  *program.Program
	sim   automata.Simulator
	index int

	rows, cols int
	state      []int32
}

// New returns a view of instance index of sim, loaded with its current
// state. sim must run p.
func New(p *program.Program, sim automata.Simulator, index int) (*View, error) {
	if p == nil || sim == nil {
		return nil, fmt.Errorf("view: nil program or simulator: %w", automata.ErrInvalidDescriptor)
	}
	if sim.StateSize() != p.StateSize() {
		return nil, fmt.Errorf("%w: simulator has %d words, program %d", ErrStateSize, sim.StateSize(), p.StateSize())
	}
	if index < 0 || index >= sim.Size() {
		return nil, fmt.Errorf("view: instance %d of %d: %w", index, sim.Size(), automata.ErrBadIndex)
	}
	t := p.Layout.Topology
	v := &View{
		prog:  p,
		sim:   sim,
		index: index,
		rows:  p.UnitHeight * t.Rows,
		cols:  p.UnitWidth * t.Cols,
		state: make([]int32, p.StateSize()),
	}
	if err := v.Load(); err != nil {
		return nil, err
	}
	return v, nil
}

// Rows returns the number of cell rows.
func (v *View) Rows() int { return v.rows }

// Cols returns the number of cell columns.
func (v *View) Cols() int { return v.cols }

// Index returns the viewed instance.
func (v *View) Index() int { return v.index }

// Load replaces the local copy with the simulator's state, dropping
// unstored changes.
func (v *View) Load() error {
	if err := v.sim.State(v.index, v.state); err != nil {
		return fmt.Errorf("view: load instance %d: %w", v.index, err)
	}
	return nil
}

// Store writes the local copy to the simulator.
func (v *View) Store() error {
	if err := v.sim.SetState(v.index, v.state); err != nil {
		return fmt.Errorf("view: store instance %d: %w", v.index, err)
	}
	return nil
}

// CellID returns the id of the cell at (row, col).
func (v *View) CellID(row, col int) (string, error) {
	_, c, err := v.cell(row, col)
	if err != nil {
		return "", err
	}
	return c.ID(), nil
}

// HasOutput reports whether the cell at (row, col) persists outputID.
func (v *View) HasOutput(row, col int, outputID string) bool {
	_, err := v.stateIndex(row, col, func(c *layout.Cell) (string, bool) { return c.OutputVar(outputID) })
	return err == nil
}

// Output returns output outputID of the cell at (row, col).
func (v *View) Output(row, col int, outputID string) (int32, error) {
	return v.get(row, col, func(c *layout.Cell) (string, bool) { return c.OutputVar(outputID) })
}

// SetOutput sets output outputID of the cell at (row, col).
func (v *View) SetOutput(row, col int, outputID string, value int32) error {
	return v.set(row, col, value, func(c *layout.Cell) (string, bool) { return c.OutputVar(outputID) })
}

// Param returns a unit param or var of the cell at (row, col).
func (v *View) Param(row, col int, paramID string) (int32, error) {
	return v.get(row, col, func(c *layout.Cell) (string, bool) { return c.ParamVar(paramID) })
}

// SetParam sets a unit param of the cell at (row, col).
func (v *View) SetParam(row, col int, paramID string, value int32) error {
	return v.set(row, col, value, func(c *layout.Cell) (string, bool) { return c.ParamVar(paramID) })
}

// OutputParam returns param paramID of output outputID of the cell at
// (row, col).
func (v *View) OutputParam(row, col int, outputID, paramID string) (int32, error) {
	return v.get(row, col, func(c *layout.Cell) (string, bool) { return c.OutputParamVar(outputID, paramID) })
}

// SetOutputParam sets param paramID of output outputID of the cell at
// (row, col).
func (v *View) SetOutputParam(row, col int, outputID, paramID string, value int32) error {
	return v.set(row, col, value, func(c *layout.Cell) (string, bool) { return c.OutputParamVar(outputID, paramID) })
}

// cell returns the logical unit and cell layout at (row, col).
func (v *View) cell(row, col int) (int, *layout.Cell, error) {
	if row < 0 || row >= v.rows || col < 0 || col >= v.cols {
		return 0, nil, fmt.Errorf("%w: (%d, %d) of %dx%d", ErrOutOfGrid, row, col, v.rows, v.cols)
	}
	t := v.prog.Layout.Topology
	unit := (row/t.Rows)*v.prog.UnitWidth + col/t.Cols
	return unit, v.prog.Layout.Cells[(row%t.Rows)*t.Cols+col%t.Cols], nil
}

// stateIndex resolves the state index of the variable picked by name.
func (v *View) stateIndex(row, col int, name func(*layout.Cell) (string, bool)) (int, error) {
	unit, c, err := v.cell(row, col)
	if err != nil {
		return 0, err
	}
	varName, ok := name(c)
	if !ok {
		return 0, fmt.Errorf("%w: cell %s has no such variable", ErrNotPersisted, c.ID())
	}
	i, ok := v.prog.StateIndex(unit, varName)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotPersisted, varName)
	}
	return i, nil
}

func (v *View) get(row, col int, name func(*layout.Cell) (string, bool)) (int32, error) {
	i, err := v.stateIndex(row, col, name)
	if err != nil {
		return 0, err
	}
	return v.state[i], nil
}

func (v *View) set(row, col int, value int32, name func(*layout.Cell) (string, bool)) error {
	i, err := v.stateIndex(row, col, name)
	if err != nil {
		return err
	}
	v.state[i] = value
	return nil
}
