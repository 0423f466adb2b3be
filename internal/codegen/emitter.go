package codegen

import (
	"fmt"
	"strings"
)

// emitter accumulates indented target source.
type emitter struct {
	sb     strings.Builder
	indent int
	tab    string
}

func (e *emitter) line(format string, args ...any) {
	if format != "" {
		e.sb.WriteString(strings.Repeat(e.tab, e.indent))
		fmt.Fprintf(&e.sb, format, args...)
	}
	e.sb.WriteByte('\n')
}

func (e *emitter) open(format string, args ...any) {
	e.line(format, args...)
	e.indent++
}

func (e *emitter) close(format string, args ...any) {
	e.indent--
	e.line(format, args...)
}

func (e *emitter) raw(s string) {
	e.sb.WriteString(s)
}

func (e *emitter) String() string { return e.sb.String() }
