package main

import (
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/gogpu/automata"
	"github.com/gogpu/automata/program"
	"github.com/gogpu/automata/snapshot"
	"github.com/gogpu/automata/view"
)

type runFlags struct {
	input     string
	updates   int
	instances int
	seed      uint64
	backend   string
	schedule  string
	workers   int

	png       string
	pngScale  int
	pngOutput string
	save      string
	load      string
}

func newRunCmd(root *rootFlags) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Simulate a descriptor and optionally save or render the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, root, f)
		},
	}
	addInputFlag(cmd, &f.input)
	fl := cmd.Flags()
	fl.IntVarP(&f.updates, "updates", "n", 1, "number of updates")
	fl.IntVar(&f.instances, "instances", 1, "number of automaton instances")
	fl.Uint64Var(&f.seed, "seed", 0, "randomize the initial state with this seed; 0 starts from zero")
	fl.StringVar(&f.backend, "backend", "", "backend name (cpu or gpu), best available when empty")
	fl.StringVar(&f.schedule, "schedule", "instance", "cpu schedule: instance or workgroup")
	fl.IntVar(&f.workers, "workers", 0, "cpu worker goroutines, GOMAXPROCS when 0")
	fl.StringVar(&f.png, "png", "", "render instance 0 to this PNG file")
	fl.IntVar(&f.pngScale, "png-scale", 8, "pixels per cell in the PNG")
	fl.StringVar(&f.pngOutput, "png-output", "1", "output id rendered in the PNG")
	fl.StringVar(&f.save, "save", "", "write a state snapshot to this file")
	fl.StringVar(&f.load, "load", "", "restore the initial state from this snapshot file")
	cmd.MarkFlagsMutuallyExclusive("seed", "load")
	return cmd
}

func run(cmd *cobra.Command, root *rootFlags, f *runFlags) error {
	d, err := readDescriptor(f.input)
	if err != nil {
		return err
	}
	p, err := program.Compile(d)
	if err != nil {
		return err
	}
	schedule, err := automata.ParseSchedule(f.schedule)
	if err != nil {
		return err
	}

	opts := []automata.Option{
		automata.WithLogger(root.logger),
		automata.WithSchedule(schedule),
		automata.WithWorkers(f.workers),
	}
	if f.backend != "" {
		opts = append(opts, automata.WithBackend(f.backend))
	}
	sim, err := automata.New(automata.Config{NumInstances: f.instances, Descriptor: d}, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sim.Close(); cerr != nil {
			root.logger.Warn("close simulator", "err", cerr)
		}
	}()

	if err := initState(sim, f); err != nil {
		return err
	}

	start := time.Now()
	for i := range f.updates {
		if err := sim.Update(cmd.Context()); err != nil {
			return fmt.Errorf("update %d: %w", i, err)
		}
	}
	elapsed := time.Since(start)
	fmt.Fprintf(cmd.OutOrStdout(), "%d update(s) of %d instance(s), %d words each, in %s\n",
		f.updates, sim.Size(), sim.StateSize(), elapsed.Round(time.Microsecond))

	if f.save != "" {
		s, err := snapshot.Capture(sim)
		if err != nil {
			return err
		}
		if err := snapshot.Save(f.save, s); err != nil {
			return err
		}
		root.logger.Info("snapshot saved", "path", f.save)
	}
	if f.png != "" {
		if err := renderPNG(p, sim, f); err != nil {
			return err
		}
		root.logger.Info("png written", "path", f.png)
	}
	return nil
}

func initState(sim automata.Simulator, f *runFlags) error {
	switch {
	case f.load != "":
		s, err := snapshot.Load(f.load)
		if err != nil {
			return err
		}
		return s.Restore(sim)
	case f.seed != 0:
		rng := rand.New(rand.NewPCG(f.seed, f.seed))
		state := make([]int32, sim.Size()*sim.StateSize())
		for i := range state {
			state[i] = int32(rng.Uint32()) //nolint:gosec // bit-preserving
		}
		return sim.SetStates(state)
	}
	return nil
}

func renderPNG(p *program.Program, sim automata.Simulator, f *runFlags) error {
	v, err := view.New(p, sim, 0)
	if err != nil {
		return err
	}
	out, err := os.Create(f.png) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return err
	}
	if err := snapshot.RenderPNG(out, v, f.pngScale, f.pngOutput); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
