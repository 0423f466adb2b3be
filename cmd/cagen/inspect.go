package main

import (
	"fmt"
	"io"
	"slices"
	"text/tabwriter"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/gogpu/automata/internal/layout"
	"github.com/gogpu/automata/program"
)

// slotOwner is the cell and role of a persisted variable.
type slotOwner struct {
	cell string
	kind string
}

func newInspectCmd(root *rootFlags) *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the state layout of a descriptor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := readDescriptor(input)
			if err != nil {
				return err
			}
			p, err := program.Compile(d)
			if err != nil {
				return err
			}
			root.logger.Debug("compiled", "fingerprint", p.Fingerprint())
			return printLayout(cmd.OutOrStdout(), p)
		},
	}
	addInputFlag(cmd, &input)
	return cmd
}

func printLayout(w io.Writer, p *program.Program) error {
	lu := p.Layout
	t := lu.Topology
	d := p.Descriptor()

	fmt.Fprintf(w, "grid:        %dx%d units of %dx%d cells\n", p.UnitWidth, p.UnitHeight, t.Rows, t.Cols)
	fmt.Fprintf(w, "neighbors:   %s\n", t.Strategy)
	fmt.Fprintf(w, "addressing:  %s\n", d.UnitAddressing())
	fmt.Fprintf(w, "iterations:  %d\n", p.IterationsPerUpdate)
	fmt.Fprintf(w, "externals:   %d\n", len(t.Externals))
	fmt.Fprintf(w, "state:       %d words per unit, %d per automaton\n", p.UnitStateSize(), p.StateSize())
	fmt.Fprintf(w, "workgroup:   %d\n", p.WorkgroupSize())

	counts := lo.CountValuesBy(lu.Cells, func(c *layout.Cell) string { return c.Node.Type.ID })
	types := lo.Keys(counts)
	slices.Sort(types)
	for _, id := range types {
		fmt.Fprintf(w, "cell type:   %s x%d\n", id, counts[id])
	}
	fmt.Fprintln(w)

	owners := slotOwners(lu)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SLOT\tVARIABLE\tCELL\tKIND")
	for slot, name := range lu.Names() {
		o := owners[name]
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", slot, name, o.cell, o.kind)
	}
	return tw.Flush()
}

// slotOwners maps every variable name of lu to the cell declaring it.
func slotOwners(lu *layout.Unit) map[string]slotOwner {
	owners := make(map[string]slotOwner)
	add := func(c *layout.Cell, kind string, name string, ok bool) {
		if ok {
			owners[name] = slotOwner{cell: c.ID(), kind: kind}
		}
	}
	for _, c := range lu.Cells {
		for _, o := range c.Outputs() {
			name, ok := c.OutputVar(o.ID)
			add(c, "output", name, ok)
			for _, op := range o.Params {
				name, ok := c.OutputParamVar(o.ID, op.ID)
				add(c, "output param", name, ok)
			}
		}
		for _, prm := range c.Node.Type.Params {
			name, ok := c.ParamVar(prm.ID)
			add(c, "param", name, ok)
		}
		for _, v := range c.Node.Type.Vars {
			name, ok := c.ParamVar(v.ID)
			add(c, "var", name, ok)
		}
	}
	return owners
}
