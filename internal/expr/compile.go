package expr

import "fmt"

// Frame is the storage an evaluated expression reads and writes.
type Frame struct {
	Vars  []int32
	Input []int32
}

// Eval evaluates a compiled expression.
type Eval func(f *Frame) int32

// Exec runs a compiled statement.
type Exec func(f *Frame)

// Resolver maps a variable name to its index in Frame.Vars.
type Resolver func(name string) (int, bool)

// UnknownIdentError is returned when a resolver does not know a name.
type UnknownIdentError struct {
	Name string
}

func (e *UnknownIdentError) Error() string {
	return fmt.Sprintf("expr: unknown identifier %q", e.Name)
}

// Compile turns e into a closure over a Frame.
func Compile(e Expression, resolve Resolver) (Eval, error) {
	switch n := Fold(e).(type) {
	case *NumberExpr:
		v := n.Value
		return func(*Frame) int32 { return v }, nil
	case *IdentExpr:
		i, ok := resolve(n.Name)
		if !ok {
			return nil, &UnknownIdentError{Name: n.Name}
		}
		return func(f *Frame) int32 { return f.Vars[i] }, nil
	case *InputLengthExpr:
		return func(f *Frame) int32 { return int32(len(f.Input)) }, nil
	case *InputExpr:
		idx, err := Compile(n.Index, resolve)
		if err != nil {
			return nil, err
		}
		return func(f *Frame) int32 { return Index(f.Input, idx(f)) }, nil
	case *UnaryExpr:
		x, err := Compile(n.X, resolve)
		if err != nil {
			return nil, err
		}
		op := n.Op
		return func(f *Frame) int32 { return ApplyUnary(op, x(f)) }, nil
	case *BinaryExpr:
		x, err := Compile(n.X, resolve)
		if err != nil {
			return nil, err
		}
		y, err := Compile(n.Y, resolve)
		if err != nil {
			return nil, err
		}
		return compileBinary(n.Op, x, y), nil
	case *CondExpr:
		c, err := Compile(n.Cond, resolve)
		if err != nil {
			return nil, err
		}
		t, err := Compile(n.Then, resolve)
		if err != nil {
			return nil, err
		}
		el, err := Compile(n.Else, resolve)
		if err != nil {
			return nil, err
		}
		return func(f *Frame) int32 {
			if c(f) != 0 {
				return t(f)
			}
			return el(f)
		}, nil
	default:
		return nil, fmt.Errorf("expr: cannot compile %T", n)
	}
}

// compileBinary specializes the hot operators and falls back to Apply.
func compileBinary(op string, x, y Eval) Eval {
	switch op {
	case "&":
		return func(f *Frame) int32 { return x(f) & y(f) }
	case "|":
		return func(f *Frame) int32 { return x(f) | y(f) }
	case "^":
		return func(f *Frame) int32 { return x(f) ^ y(f) }
	case "+":
		return func(f *Frame) int32 { return x(f) + y(f) }
	case "-":
		return func(f *Frame) int32 { return x(f) - y(f) }
	case "&&":
		return func(f *Frame) int32 { return b2i(x(f) != 0 && y(f) != 0) }
	case "||":
		return func(f *Frame) int32 { return b2i(x(f) != 0 || y(f) != 0) }
	}
	return func(f *Frame) int32 { return Apply(op, x(f), y(f)) }
}

// CompileStatement turns an assignment into a closure. The target must
// resolve like any other variable.
func CompileStatement(s *AssignStmt, resolve Resolver) (Exec, error) {
	target, ok := resolve(s.Name)
	if !ok {
		return nil, &UnknownIdentError{Name: s.Name}
	}
	value, err := Compile(s.Value, resolve)
	if err != nil {
		return nil, err
	}
	if op := s.BinaryOp(); op != "" {
		return func(f *Frame) { f.Vars[target] = Apply(op, f.Vars[target], value(f)) }, nil
	}
	return func(f *Frame) { f.Vars[target] = value(f) }, nil
}
