package expr

import "fmt"

// Apply evaluates a binary operator on 32-bit operands.
func Apply(op string, a, b int32) int32 {
	switch op {
	case "+":
		return a + b
	case "-":
		return a - b
	case "*":
		return a * b
	case "/":
		if b == 0 {
			return 0
		}
		return a / b
	case "%":
		if b == 0 {
			return 0
		}
		return a % b
	case "<<":
		return a << (uint32(b) & 31)
	case ">>":
		return a >> (uint32(b) & 31)
	case ">>>":
		return int32(uint32(a) >> (uint32(b) & 31))
	case "&":
		return a & b
	case "|":
		return a | b
	case "^":
		return a ^ b
	case "<":
		return b2i(a < b)
	case "<=":
		return b2i(a <= b)
	case ">":
		return b2i(a > b)
	case ">=":
		return b2i(a >= b)
	case "==":
		return b2i(a == b)
	case "!=":
		return b2i(a != b)
	case "&&":
		return b2i(a != 0 && b != 0)
	case "||":
		return b2i(a != 0 || b != 0)
	}
	panic(fmt.Sprintf("expr: unknown binary operator %q", op))
}

// ApplyUnary evaluates a unary operator.
func ApplyUnary(op string, a int32) int32 {
	switch op {
	case "-":
		return -a
	case "~":
		return ^a
	case "!":
		return b2i(a == 0)
	case "+":
		return a
	}
	panic(fmt.Sprintf("expr: unknown unary operator %q", op))
}

// Index reads in[i] with i reduced modulo len(in) into [0, len(in)). An
// empty input reads as 0.
func Index(in []int32, i int32) int32 {
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

func b2i(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// Fold replaces every subexpression that does not read a variable or the
// automaton input with its value.
func Fold(e Expression) Expression {
	switch n := e.(type) {
	case *UnaryExpr:
		x := Fold(n.X)
		if v, ok := x.(*NumberExpr); ok {
			return &NumberExpr{Value: ApplyUnary(n.Op, v.Value)}
		}
		return &UnaryExpr{Op: n.Op, X: x}
	case *BinaryExpr:
		x, y := Fold(n.X), Fold(n.Y)
		vx, okx := x.(*NumberExpr)
		vy, oky := y.(*NumberExpr)
		if okx && oky {
			return &NumberExpr{Value: Apply(n.Op, vx.Value, vy.Value)}
		}
		return &BinaryExpr{Op: n.Op, X: x, Y: y}
	case *CondExpr:
		c := Fold(n.Cond)
		if v, ok := c.(*NumberExpr); ok {
			if v.Value != 0 {
				return Fold(n.Then)
			}
			return Fold(n.Else)
		}
		return &CondExpr{Cond: c, Then: Fold(n.Then), Else: Fold(n.Else)}
	case *InputExpr:
		return &InputExpr{Index: Fold(n.Index)}
	}
	return e
}
