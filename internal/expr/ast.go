package expr

import (
	"fmt"
	"strings"
)

// Names of the automaton input builtins.
const (
	InputArray  = "automatonInput"
	InputLength = "automatonInputLength"
)

// Expression is a node of an expression tree.
type Expression interface {
	String() string
	expressionNode()
}

// NumberExpr is an integer literal.
type NumberExpr struct {
	Value int32
}

func (n *NumberExpr) String() string  { return fmt.Sprint(n.Value) }
func (n *NumberExpr) expressionNode() {}

// IdentExpr names a variable.
type IdentExpr struct {
	Name string
}

func (i *IdentExpr) String() string  { return i.Name }
func (i *IdentExpr) expressionNode() {}

// InputExpr reads automatonInput[Index].
type InputExpr struct {
	Index Expression
}

func (i *InputExpr) String() string  { return InputArray + "[" + i.Index.String() + "]" }
func (i *InputExpr) expressionNode() {}

// InputLengthExpr is automatonInputLength.
type InputLengthExpr struct{}

func (*InputLengthExpr) String() string  { return InputLength }
func (*InputLengthExpr) expressionNode() {}

// UnaryExpr applies one of - ~ ! +.
type UnaryExpr struct {
	Op string
	X  Expression
}

func (u *UnaryExpr) String() string  { return "(" + u.Op + u.X.String() + ")" }
func (u *UnaryExpr) expressionNode() {}

// BinaryExpr applies a binary operator.
type BinaryExpr struct {
	Op   string
	X, Y Expression
}

func (b *BinaryExpr) String() string {
	return "(" + b.X.String() + " " + b.Op + " " + b.Y.String() + ")"
}
func (b *BinaryExpr) expressionNode() {}

// CondExpr is Cond ? Then : Else.
type CondExpr struct {
	Cond, Then, Else Expression
}

func (c *CondExpr) String() string {
	return "(" + c.Cond.String() + " ? " + c.Then.String() + " : " + c.Else.String() + ")"
}
func (c *CondExpr) expressionNode() {}

// AssignStmt is "[int] Name Op Value;". Op is "=" or a compound operator
// such as "+=".
type AssignStmt struct {
	Decl  bool
	Name  string
	Op    string
	Value Expression
}

func (a *AssignStmt) String() string {
	var sb strings.Builder
	if a.Decl {
		sb.WriteString("int ")
	}
	sb.WriteString(a.Name + " " + a.Op + " " + a.Value.String() + ";")
	return sb.String()
}

// BinaryOp returns the binary operator applied by a compound assignment, or
// "" for plain assignment.
func (a *AssignStmt) BinaryOp() string {
	return strings.TrimSuffix(a.Op, "=")
}

// Walk calls fn for e and each of its subexpressions in depth-first order.
func Walk(e Expression, fn func(Expression)) {
	fn(e)
	switch n := e.(type) {
	case *InputExpr:
		Walk(n.Index, fn)
	case *UnaryExpr:
		Walk(n.X, fn)
	case *BinaryExpr:
		Walk(n.X, fn)
		Walk(n.Y, fn)
	case *CondExpr:
		Walk(n.Cond, fn)
		Walk(n.Then, fn)
		Walk(n.Else, fn)
	}
}

// Idents returns the distinct variable names read by e in first-use order.
func Idents(e Expression) []string {
	var names []string
	seen := map[string]bool{}
	Walk(e, func(x Expression) {
		if id, ok := x.(*IdentExpr); ok && !seen[id.Name] {
			seen[id.Name] = true
			names = append(names, id.Name)
		}
	})
	return names
}

// ReadsInput reports whether e reads the automaton input.
func ReadsInput(e Expression) bool {
	found := false
	Walk(e, func(x Expression) {
		switch x.(type) {
		case *InputExpr, *InputLengthExpr:
			found = true
		}
	})
	return found
}
