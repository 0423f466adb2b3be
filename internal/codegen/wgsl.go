package codegen

import (
	"github.com/gogpu/automata/internal/expr"
	"github.com/gogpu/automata/model"
)

// MaxWorkgroupSize bounds the invocations per workgroup. Units beyond it are
// served by the same invocations in strides.
const MaxWorkgroupSize = 64

// Kernel bindings of group 0.
const (
	BindingState = iota
	BindingInput
	BindingInputMap
	BindingOutputMap
	BindingOutput
	BindingScratch
	BindingParams
)

// WorkgroupSize returns the invocations per workgroup used for m.
func WorkgroupSize(m *Model) int {
	return min(m.Units(), MaxWorkgroupSize)
}

// GenerateWGSL renders m as a compute kernel with entry point "main". One
// workgroup advances one instance; its invocations share the logical units
// and synchronize with barriers. Map entries must lie in [0, StateSize).
func GenerateWGSL(m *Model) string {
	wg := WorkgroupSize(m)
	perInvocation := (m.Units() + wg - 1) / wg

	e := &emitter{tab: "    "}
	e.line("// Code generated by cagen. DO NOT EDIT.")
	e.line("")
	e.line("const UNITS: u32 = %du;", m.Units())
	e.line("const UNIT_STATE: u32 = %du;", m.UnitStateSize())
	e.line("const STATE_SIZE: u32 = %du;", m.StateSize())
	e.line("const EXTERNALS: u32 = %du;", len(m.Externals))
	e.line("const ITERATIONS: u32 = %du;", m.Iterations)
	e.line("const WORKGROUP: u32 = %du;", wg)
	e.line("const PER_INVOCATION: u32 = %du;", perInvocation)
	e.line("const GRID_WIDTH: i32 = %di;", m.Width)
	e.line("const GRID_HEIGHT: i32 = %di;", m.Height)
	e.line("")
	e.open("struct Params {")
	e.line("instances: u32,")
	e.line("input_size: u32,")
	e.line("output_size: u32,")
	e.line("_pad: u32,")
	e.close("}")
	e.line("")
	e.open("struct Unit {")
	for _, name := range m.Vars() {
		e.line("%s: i32,", name)
	}
	e.close("}")
	e.line("")
	e.line("@group(0) @binding(%d) var<storage, read_write> state: array<i32>;", BindingState)
	e.line("@group(0) @binding(%d) var<storage, read> input: array<i32>;", BindingInput)
	e.line("@group(0) @binding(%d) var<storage, read> input_map: array<i32>;", BindingInputMap)
	e.line("@group(0) @binding(%d) var<storage, read> output_map: array<i32>;", BindingOutputMap)
	e.line("@group(0) @binding(%d) var<storage, read_write> output: array<i32>;", BindingOutput)
	e.line("@group(0) @binding(%d) var<storage, read_write> scratch: array<i32>;", BindingScratch)
	e.line("@group(0) @binding(%d) var<uniform> params: Params;", BindingParams)
	e.line("")
	e.line("var<private> units: array<Unit, PER_INVOCATION>;")
	e.line("var<private> state_base: u32;")
	e.line("var<private> input_base: u32;")
	e.line("var<private> scratch_base: u32;")
	e.raw(expr.WGSLPrelude)
	e.line("")

	e.open("fn ca_input(i: i32) -> i32 {")
	e.line("let n = i32(params.input_size);")
	e.open("if (n == 0i) {")
	e.line("return 0i;")
	e.close("}")
	e.line("var j = i %% n;")
	e.open("if (j < 0i) {")
	e.line("j = j + n;")
	e.close("}")
	e.line("return input[input_base + u32(j)];")
	e.close("}")
	e.line("")

	e.open("fn neighbor(lu: u32, rel_row: i32, rel_col: i32) -> u32 {")
	e.line("let unit = i32(lu);")
	if m.Addressing == model.AddressingToroidal {
		e.line("let row = unit / GRID_WIDTH;")
		e.line("let col = unit %% GRID_WIDTH;")
		e.line("return u32(((row + rel_row + GRID_HEIGHT) %% GRID_HEIGHT) * GRID_WIDTH + (col + rel_col + GRID_WIDTH) %% GRID_WIDTH);")
	} else {
		e.line("let total = GRID_WIDTH * GRID_HEIGHT;")
		e.line("return u32(((unit + rel_row * GRID_WIDTH + rel_col) %% total + total) %% total);")
	}
	e.close("}")
	e.line("")

	e.open("fn load_unit(k: u32, lu: u32) {")
	for s := 0; s < m.UnitStateSize(); s++ {
		e.line("units[k].%s = state[state_base + %du * UNITS + lu];", m.Layout.Name(s), s)
	}
	e.close("}")
	e.line("")

	e.open("fn publish(k: u32, lu: u32) {")
	for i, ex := range m.Externals {
		e.line("scratch[scratch_base + %du * UNITS + lu] = units[k].%s;", i, ex.Source)
	}
	e.close("}")
	e.line("")

	e.open("fn snapshot(k: u32, lu: u32) {")
	for i, ex := range m.Externals {
		e.line("units[k].%s = scratch[scratch_base + %du * UNITS + neighbor(lu, %di, %di)];",
			ex.Name, i, ex.RelRow, ex.RelCol)
	}
	e.close("}")
	e.line("")

	env := expr.Env{
		Ident:       func(n string) string { return "units[k]." + n },
		Input:       func(i string) string { return "ca_input(" + i + ")" },
		InputLength: "i32(params.input_size)",
	}
	emitStmts := func(name string, stmts []*expr.AssignStmt) {
		e.open("fn %s(k: u32) {", name)
		for _, s := range stmts {
			value := expr.Print(s.Value, expr.WGSL, env)
			if op := s.BinaryOp(); op != "" {
				value = expr.WGSL.Binary(op, "units[k]."+s.Name, value)
			}
			e.line("units[k].%s = %s;", s.Name, value)
		}
		e.close("}")
		e.line("")
	}
	emitStmts("constants", m.Constant)
	emitStmts("advance", m.Dynamic)

	e.open("fn store_unit(k: u32, lu: u32) {")
	for _, s := range m.Stored {
		e.line("state[state_base + %du * UNITS + lu] = units[k].%s;", s, m.Layout.Name(s))
	}
	e.close("}")
	e.line("")

	forUnits := func(body ...string) {
		e.open("for (var k = 0u; k < PER_INVOCATION; k = k + 1u) {")
		e.line("let lu = lid + k * WORKGROUP;")
		e.open("if (lu < UNITS) {")
		for _, b := range body {
			e.line("%s", b)
		}
		e.close("}")
		e.close("}")
	}
	barrier := func() {
		e.line("storageBarrier();")
		e.line("workgroupBarrier();")
	}

	e.line("@compute @workgroup_size(%d)", wg)
	e.open("fn main(@builtin(workgroup_id) wid: vec3<u32>, @builtin(local_invocation_index) lid: u32) {")
	e.line("let inst = wid.x;")
	e.line("state_base = inst * STATE_SIZE;")
	e.line("input_base = inst * params.input_size;")
	e.line("scratch_base = inst * EXTERNALS * UNITS;")
	e.line("let output_base = inst * params.output_size;")
	e.open("if (lid == 0u) {")
	e.open("for (var i = 0u; i < params.input_size; i = i + 1u) {")
	e.line("state[state_base + u32(input_map[input_base + i])] = input[input_base + i];")
	e.close("}")
	e.close("}")
	barrier()
	forUnits("load_unit(k, lu);", "publish(k, lu);", "constants(k);")
	e.open("for (var it = 0u; it < ITERATIONS; it = it + 1u) {")
	barrier()
	forUnits("snapshot(k, lu);")
	barrier()
	forUnits("advance(k);")
	barrier()
	forUnits("publish(k, lu);")
	e.close("}")
	forUnits("store_unit(k, lu);")
	barrier()
	e.open("if (lid == 0u) {")
	e.open("for (var i = 0u; i < params.output_size; i = i + 1u) {")
	e.line("output[output_base + i] = state[state_base + u32(output_map[output_base + i])];")
	e.close("}")
	e.close("}")
	e.close("}")
	return e.String()
}
