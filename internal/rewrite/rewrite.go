// Package rewrite replaces the {placeholder} tokens of cell expressions with
// the variable names assigned by package layout.
package rewrite

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/gogpu/automata/internal/layout"
)

// ErrUnresolvedPlaceholder is returned when a placeholder names nothing the
// cell can see.
var ErrUnresolvedPlaceholder = errors.New("unresolved placeholder")

// UnresolvedPlaceholderError identifies the cell and the placeholder text.
type UnresolvedPlaceholderError struct {
	CellID string
	Token  string
}

func (e *UnresolvedPlaceholderError) Error() string {
	return fmt.Sprintf("cell %s: invalid parameter %q", e.CellID, e.Token)
}

func (e *UnresolvedPlaceholderError) Unwrap() error { return ErrUnresolvedPlaceholder }

var placeholder = regexp.MustCompile(`\{[^}]+\}`)

// Expression trims text and replaces every placeholder in it. outputID is the
// output whose expression is rewritten; its params are visible under their
// bare ids.
//
// A placeholder resolves, in order, to a param or var of the cell, to a param
// of the output, to input<N> (the variable of the N-th bound input, 1-based)
// or to output<N> (the N-th output of the cell).
func Expression(u *layout.Unit, c *layout.Cell, outputID, text string) (string, error) {
	text = strings.TrimSpace(text)
	var firstErr error
	out := placeholder.ReplaceAllStringFunc(text, func(m string) string {
		token := m[1 : len(m)-1]
		name, ok := resolve(u, c, outputID, token)
		if !ok {
			if firstErr == nil {
				firstErr = &UnresolvedPlaceholderError{CellID: c.ID(), Token: token}
			}
			return m
		}
		return name
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

func resolve(u *layout.Unit, c *layout.Cell, outputID, token string) (string, bool) {
	if v, ok := c.ParamVar(token); ok {
		return v, true
	}
	if v, ok := c.OutputParamVar(outputID, token); ok {
		return v, true
	}
	if n, ok := ordinal(token, "input"); ok && n <= len(c.Node.Inputs) {
		return u.InputVar(c.Node.Inputs[n-1]), true
	}
	if n, ok := ordinal(token, "output"); ok {
		outputs := c.Outputs()
		if n <= len(outputs) {
			return c.OutputVar(outputs[n-1].ID)
		}
	}
	return "", false
}

// ordinal parses "<prefix><N>" case-insensitively with N >= 1.
func ordinal(token, prefix string) (int, bool) {
	if len(token) <= len(prefix) || !strings.EqualFold(token[:len(prefix)], prefix) {
		return 0, false
	}
	n, err := strconv.Atoi(token[len(prefix):])
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// Placeholders returns the placeholder tokens of text without braces.
func Placeholders(text string) []string {
	matches := placeholder.FindAllString(text, -1)
	tokens := make([]string, len(matches))
	for i, m := range matches {
		tokens[i] = m[1 : len(m)-1]
	}
	return tokens
}
