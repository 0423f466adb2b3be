package expr

import (
	"fmt"
	"math"
	"strings"
)

// Dialect renders operators for one target language.
type Dialect interface {
	Literal(v int32) string
	Unary(op, x string) string
	Binary(op, x, y string) string
	Cond(c, then, els string) string
}

// Env supplies target names for variables and the automaton input.
type Env struct {
	Ident       func(name string) string
	Input       func(index string) string
	InputLength string
}

// Print renders e in dialect d. Constant subexpressions are folded first so
// that the target compiler never sees an overflowing constant.
func Print(e Expression, d Dialect, env Env) string {
	return render(Fold(e), d, env)
}

func render(e Expression, d Dialect, env Env) string {
	switch n := e.(type) {
	case *NumberExpr:
		return d.Literal(n.Value)
	case *IdentExpr:
		if env.Ident != nil {
			return env.Ident(n.Name)
		}
		return n.Name
	case *InputLengthExpr:
		return env.InputLength
	case *InputExpr:
		return env.Input(render(n.Index, d, env))
	case *UnaryExpr:
		return d.Unary(n.Op, render(n.X, d, env))
	case *BinaryExpr:
		return d.Binary(n.Op, render(n.X, d, env), render(n.Y, d, env))
	case *CondExpr:
		return d.Cond(render(n.Cond, d, env), render(n.Then, d, env), render(n.Else, d, env))
	}
	panic(fmt.Sprintf("expr: cannot print %T", e))
}

// Go renders expressions as Go int32 arithmetic. Generated code must include
// GoPrelude.
var Go Dialect = goDialect{}

// WGSL renders expressions as WGSL i32 arithmetic. Generated code must
// include WGSLPrelude.
var WGSL Dialect = wgslDialect{}

// helper names shared by both preludes
var helpers = map[string]string{
	"/":   "Div",
	"%":   "Mod",
	"<<":  "Shl",
	">>":  "Shr",
	">>>": "Ushr",
}

type goDialect struct{}

func (goDialect) Literal(v int32) string {
	if v < 0 {
		return fmt.Sprintf("(%d)", v)
	}
	return fmt.Sprint(v)
}

func (goDialect) Unary(op, x string) string {
	switch op {
	case "-":
		return "(-" + x + ")"
	case "~":
		return "(^" + x + ")"
	case "!":
		return "caBool(" + x + " == 0)"
	}
	return x
}

func (goDialect) Binary(op, x, y string) string {
	if h, ok := helpers[op]; ok {
		return "ca" + h + "(" + x + ", " + y + ")"
	}
	switch op {
	case "<", "<=", ">", ">=", "==", "!=":
		return "caBool(" + x + " " + op + " " + y + ")"
	case "&&", "||":
		return "caBool(" + x + " != 0 " + op + " " + y + " != 0)"
	}
	return "(" + x + " " + op + " " + y + ")"
}

func (goDialect) Cond(c, then, els string) string {
	return "caSelect(" + c + " != 0, " + then + ", " + els + ")"
}

// GoPrelude defines the helpers referenced by the Go dialect.
const GoPrelude = `
func caBool(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

func caSelect(c bool, a, b int32) int32 {
	if c {
		return a
	}
	return b
}

func caDiv(a, b int32) int32 {
	if b == 0 {
		return 0
	}
	return a / b
}

func caMod(a, b int32) int32 {
	if b == 0 {
		return 0
	}
	return a % b
}

func caShl(a, b int32) int32  { return a << (uint32(b) & 31) }
func caShr(a, b int32) int32  { return a >> (uint32(b) & 31) }
func caUshr(a, b int32) int32 { return int32(uint32(a) >> (uint32(b) & 31)) }

func caInput(in []int32, i int32) int32 {
	n := int64(len(in))
	if n == 0 {
		return 0
	}
	j := int64(i) % n
	if j < 0 {
		j += n
	}
	return in[j]
}
`

type wgslDialect struct{}

func (wgslDialect) Literal(v int32) string {
	if v == math.MinInt32 {
		return "(-2147483647i - 1i)"
	}
	if v < 0 {
		return fmt.Sprintf("(%di)", v)
	}
	return fmt.Sprintf("%di", v)
}

func (wgslDialect) Unary(op, x string) string {
	switch op {
	case "-":
		return "(-" + x + ")"
	case "~":
		return "(~" + x + ")"
	case "!":
		return "ca_bool(" + x + " == 0i)"
	}
	return x
}

func (wgslDialect) Binary(op, x, y string) string {
	if h, ok := helpers[op]; ok {
		return "ca_" + strings.ToLower(h) + "(" + x + ", " + y + ")"
	}
	switch op {
	case "<", "<=", ">", ">=", "==", "!=":
		return "ca_bool(" + x + " " + op + " " + y + ")"
	case "&&", "||":
		return "ca_bool(" + x + " != 0i " + op + " " + y + " != 0i)"
	}
	return "(" + x + " " + op + " " + y + ")"
}

func (wgslDialect) Cond(c, then, els string) string {
	return "select(" + els + ", " + then + ", " + c + " != 0i)"
}

// WGSLPrelude defines the helpers referenced by the WGSL dialect.
const WGSLPrelude = `
fn ca_bool(b: bool) -> i32 {
    return select(0i, 1i, b);
}

fn ca_div(a: i32, b: i32) -> i32 {
    if (b == 0i) {
        return 0i;
    }
    if (a == -2147483647i - 1i && b == -1i) {
        return a;
    }
    return a / b;
}

fn ca_mod(a: i32, b: i32) -> i32 {
    if (b == 0i || b == -1i) {
        return 0i;
    }
    return a % b;
}

fn ca_shl(a: i32, b: i32) -> i32 {
    return a << (bitcast<u32>(b) & 31u);
}

fn ca_shr(a: i32, b: i32) -> i32 {
    return a >> (bitcast<u32>(b) & 31u);
}

fn ca_ushr(a: i32, b: i32) -> i32 {
    return bitcast<i32>(bitcast<u32>(a) >> (bitcast<u32>(b) & 31u));
}
`
