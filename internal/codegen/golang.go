package codegen

import (
	"fmt"

	"golang.org/x/tools/imports"

	"github.com/gogpu/automata/internal/expr"
	"github.com/gogpu/automata/model"
)

// GenerateGo renders m as a standalone Go package. The package exports
// Update(state, input, inputMap, outputMap, output), which advances one
// automaton instance, and size constants. The result is gofmt-formatted.
func GenerateGo(m *Model, pkg string) ([]byte, error) {
	e := &emitter{tab: "\t"}
	e.line("// Code generated by cagen. DO NOT EDIT.")
	e.line("")
	e.line("package %s", pkg)
	e.line("")
	e.open("const (")
	e.line("UnitCount = %d", m.Units())
	e.line("UnitStateSize = %d", m.UnitStateSize())
	e.line("StateSize = UnitCount * UnitStateSize")
	e.line("ExternalCount = %d", len(m.Externals))
	e.line("IterationsPerUpdate = %d", m.Iterations)
	e.close(")")
	e.line("")

	e.line("// Update advances one automaton instance. Map entries must lie in [0, StateSize).")
	e.open("func Update(state, input, inputMap, outputMap, output []int32) {")
	e.open("for i := range input {")
	e.line("state[inputMap[i]] = input[i]")
	e.close("}")
	e.line("scratch := make([]int32, ExternalCount*UnitCount)")
	e.line("var units [UnitCount]unit")
	e.open("for lu := range units {")
	e.line("units[lu].load(state, lu)")
	e.line("units[lu].publish(scratch, lu)")
	e.close("}")
	e.open("for lu := range units {")
	e.line("units[lu].constants(input)")
	e.close("}")
	e.open("for it := 0; it < IterationsPerUpdate; it++ {")
	for _, phase := range []string{"snapshot(scratch, lu)", "update(input)", "publish(scratch, lu)"} {
		e.open("for lu := range units {")
		e.line("units[lu].%s", phase)
		e.close("}")
	}
	e.close("}")
	e.open("for lu := range units {")
	e.line("units[lu].store(state, lu)")
	e.close("}")
	e.open("for i := range output {")
	e.line("output[i] = state[outputMap[i]]")
	e.close("}")
	e.close("}")
	e.line("")

	e.open("type unit struct {")
	for _, name := range m.Vars() {
		e.line("%s int32", name)
	}
	e.close("}")
	e.line("")

	e.open("func (u *unit) load(state []int32, lu int) {")
	for s := 0; s < m.UnitStateSize(); s++ {
		e.line("u.%s = state[%d*UnitCount+lu]", m.Layout.Name(s), s)
	}
	e.close("}")
	e.line("")

	e.open("func (u *unit) publish(scratch []int32, lu int) {")
	for i, ex := range m.Externals {
		e.line("scratch[%d*UnitCount+lu] = u.%s", i, ex.Source)
	}
	e.close("}")
	e.line("")

	e.open("func (u *unit) snapshot(scratch []int32, lu int) {")
	for i, ex := range m.Externals {
		e.line("u.%s = scratch[%d*UnitCount+neighbor(lu, %d, %d)]", ex.Name, i, ex.RelRow, ex.RelCol)
	}
	e.close("}")
	e.line("")

	env := expr.Env{
		Ident:       func(n string) string { return "u." + n },
		Input:       func(i string) string { return "caInput(input, " + i + ")" },
		InputLength: "int32(len(input))",
	}
	emitStmts := func(name string, stmts []*expr.AssignStmt) {
		e.open("func (u *unit) %s(input []int32) {", name)
		for _, s := range stmts {
			value := expr.Print(s.Value, expr.Go, env)
			if op := s.BinaryOp(); op != "" {
				value = expr.Go.Binary(op, "u."+s.Name, value)
			}
			e.line("u.%s = %s", s.Name, value)
		}
		e.close("}")
		e.line("")
	}
	emitStmts("constants", m.Constant)
	emitStmts("update", m.Dynamic)

	e.open("func (u *unit) store(state []int32, lu int) {")
	for _, s := range m.Stored {
		e.line("state[%d*UnitCount+lu] = u.%s", s, m.Layout.Name(s))
	}
	e.close("}")
	e.line("")

	e.open("func neighbor(lu, relRow, relCol int) int {")
	e.line("const width, height = %d, %d", m.Width, m.Height)
	if m.Addressing == model.AddressingToroidal {
		e.line("row, col := lu/width, lu%%width")
		e.line("return ((row+relRow+height)%%height)*width + (col+relCol+width)%%width")
	} else {
		e.line("const total = width * height")
		e.line("return ((lu+relRow*width+relCol)%%total + total) %% total")
	}
	e.close("}")
	e.raw(expr.GoPrelude)

	src, err := imports.Process(pkg+".go", []byte(e.String()), nil)
	if err != nil {
		return nil, fmt.Errorf("codegen: format go: %w", err)
	}
	return src, nil
}
