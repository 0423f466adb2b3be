// Package codegen turns a laid-out logical unit into an update program and
// renders it for the execution targets: a WGSL compute kernel, standalone Go
// source, and a closure plan executed by the CPU backend.
//
// Every target follows the same schedule. Each unit loads its state slots,
// publishes the values its neighbors read, and evaluates constant outputs.
// Then, once per iteration, every unit snapshots its external cells from the
// published values, evaluates its dynamic statements and outputs in
// declaration order, and publishes again. Units are separated by a full
// barrier between these phases. Finally outputs are stored back.
package codegen

import (
	"fmt"

	"github.com/gogpu/automata/internal/expr"
	"github.com/gogpu/automata/internal/layout"
	"github.com/gogpu/automata/internal/rewrite"
	"github.com/gogpu/automata/model"
)

// External is an external cell of the unit.
type External struct {
	// Name is the working variable holding the snapshot.
	Name string
	// Source names the variable of the neighbor unit that is read.
	Source string
	// RelRow and RelCol give the neighbor unit step.
	RelRow, RelCol int
}

// Model is the target-independent update program of one automaton.
type Model struct {
	Width, Height int
	Iterations    int
	Addressing    model.Addressing
	Layout        *layout.Unit

	Externals []External

	// Locals are working variables that are not persisted: cell vars and
	// names declared by before-update statements.
	Locals []string

	// Constant runs once per update, Dynamic once per iteration.
	Constant []*expr.AssignStmt
	Dynamic  []*expr.AssignStmt

	// Stored lists the slots written back to state after the update.
	Stored []int

	index map[string]int
}

// Units returns the number of logical units of one automaton.
func (m *Model) Units() int { return m.Width * m.Height }

// UnitStateSize returns the number of state slots of one logical unit.
func (m *Model) UnitStateSize() int { return m.Layout.StateSize() }

// StateSize returns the number of state words of one automaton.
func (m *Model) StateSize() int { return m.UnitStateSize() * m.Units() }

// FrameSize returns the number of working variables of one unit.
func (m *Model) FrameSize() int { return len(m.index) }

// VarIndex returns the working-variable index of name. State slots come
// first, so a slot is its own index; externals and locals follow.
func (m *Model) VarIndex(name string) (int, bool) {
	i, ok := m.index[name]
	return i, ok
}

// Vars returns every working variable ordered by index.
func (m *Model) Vars() []string {
	names := make([]string, len(m.index))
	for n, i := range m.index {
		names[i] = n
	}
	return names
}

// Neighbor returns the unit that unit reads for an external cell at step
// (relRow, relCol).
func (m *Model) Neighbor(unit, relRow, relCol int) int {
	return Neighbor(m.Addressing, m.Width, m.Height, unit, relRow, relCol)
}

// Neighbor applies an addressing mode to a flat row-major unit index.
func Neighbor(a model.Addressing, width, height, unit, relRow, relCol int) int {
	total := width * height
	if a == model.AddressingToroidal {
		row, col := unit/width, unit%width
		return ((row+relRow+height)%height)*width + (col+relCol+width)%width
	}
	return ((unit+relRow*width+relCol)%total + total) % total
}

// Build compiles every cell expression of u.
func Build(d *model.Descriptor, u *layout.Unit) (*Model, error) {
	m := &Model{
		Width:      d.Width,
		Height:     d.Height,
		Iterations: d.Iterations(),
		Addressing: d.UnitAddressing(),
		Layout:     u,
		index:      make(map[string]int),
	}
	for s := 0; s < u.StateSize(); s++ {
		m.index[u.Name(s)] = s
	}
	for _, n := range u.Topology.Externals {
		ex := n.External
		e := External{
			Name:   layout.ExternalVar(n),
			Source: layout.OutputVar(ex.Source.ID, ex.SourceOutputID),
			RelRow: ex.RelativeRow,
			RelCol: ex.RelativeCol,
		}
		m.Externals = append(m.Externals, e)
		m.index[e.Name] = len(m.index)
	}
	for _, c := range u.Cells {
		for _, v := range c.Vars() {
			m.addLocal(v)
		}
	}

	type compiled struct {
		before   []*expr.AssignStmt
		update   *expr.AssignStmt
		constant bool
	}
	var outputs []compiled
	assigned := map[string]bool{}
	for _, c := range u.Cells {
		for _, o := range c.Outputs() {
			var out compiled
			if o.BeforeUpdate != "" {
				text, err := rewrite.Expression(u, c, o.ID, o.BeforeUpdate)
				if err != nil {
					return nil, err
				}
				stmts, err := expr.ParseStatements(text)
				if err != nil {
					return nil, fmt.Errorf("codegen: cell %s output %s before update: %w", c.ID(), o.ID, err)
				}
				for _, s := range stmts {
					assigned[s.Name] = true
					if s.Decl {
						m.addLocal(s.Name)
					}
				}
				out.before = stmts
			}
			if o.UpdateExpression != "" {
				text, err := rewrite.Expression(u, c, o.ID, o.UpdateExpression)
				if err != nil {
					return nil, err
				}
				e, err := expr.ParseExpression(text)
				if err != nil {
					return nil, fmt.Errorf("codegen: cell %s output %s: %w", c.ID(), o.ID, err)
				}
				name, _ := c.OutputVar(o.ID)
				out.update = &expr.AssignStmt{Name: name, Op: "=", Value: e}
			}
			out.constant = o.Constant
			outputs = append(outputs, out)
		}
	}

	outputVars := map[string]bool{}
	for _, c := range u.Cells {
		for _, o := range c.Outputs() {
			name, _ := c.OutputVar(o.ID)
			outputVars[name] = true
		}
	}
	for i := range outputs {
		o := &outputs[i]
		if !o.constant && o.before == nil && o.update != nil {
			o.constant = readsOnlyParams(m, o.update.Value, outputVars, assigned)
		}
	}

	// Before-update statements of a class run ahead of its update expressions.
	for _, constant := range []bool{true, false} {
		var stmts []*expr.AssignStmt
		for _, o := range outputs {
			if o.constant == constant {
				stmts = append(stmts, o.before...)
			}
		}
		for _, o := range outputs {
			if o.constant == constant && o.update != nil {
				stmts = append(stmts, o.update)
			}
		}
		if constant {
			m.Constant = stmts
		} else {
			m.Dynamic = stmts
		}
	}

	for _, stmts := range [][]*expr.AssignStmt{m.Constant, m.Dynamic} {
		for _, s := range stmts {
			if err := m.checkNames(s); err != nil {
				return nil, err
			}
		}
	}

	for _, c := range u.Cells {
		for _, o := range c.Outputs() {
			name, _ := c.OutputVar(o.ID)
			m.Stored = append(m.Stored, m.index[name])
		}
	}
	return m, nil
}

// checkNames rejects statements that read or assign an undeclared name.
func (m *Model) checkNames(s *expr.AssignStmt) error {
	for _, name := range append([]string{s.Name}, expr.Idents(s.Value)...) {
		if _, ok := m.index[name]; !ok {
			return fmt.Errorf("codegen: %s: %w", s, &expr.UnknownIdentError{Name: name})
		}
	}
	return nil
}

func (m *Model) addLocal(name string) {
	if _, ok := m.index[name]; !ok {
		m.index[name] = len(m.index)
		m.Locals = append(m.Locals, name)
	}
}

// readsOnlyParams reports whether e reads nothing but persisted params that no
// statement assigns. Such an expression has the same value in every
// iteration.
func readsOnlyParams(m *Model, e expr.Expression, outputs, assigned map[string]bool) bool {
	if expr.ReadsInput(e) {
		return false
	}
	for _, name := range expr.Idents(e) {
		if outputs[name] || assigned[name] {
			return false
		}
		if s, ok := m.index[name]; !ok || s >= m.UnitStateSize() {
			return false
		}
	}
	return true
}
