package automata

import (
	"context"
	"fmt"

	"github.com/gogpu/automata/model"
	"github.com/gogpu/automata/program"
)

// Simulator advances many independent instances of one automaton.
//
// All buffers are []int32. Per-instance calls take an instance id in
// [0, Size()); bulk calls take or fill the buffers of every instance back
// to back. Map entries are reduced to |x| mod StateSize().
//
// A Simulator is single writer: Update must not run concurrently with any
// other call.
type Simulator interface {
	// Allocator hands out instance ids.
	Allocator() *Allocator

	// Size returns the number of instances.
	Size() int
	InputSize() int
	StateSize() int
	OutputSize() int

	State(i int, buf []int32) error
	SetState(i int, buf []int32) error
	SetInput(i int, buf []int32) error
	Output(i int, buf []int32) error
	SetInputMap(i int, m []int32) error
	SetOutputMap(i int, m []int32) error

	States(buf []int32) error
	SetStates(buf []int32) error
	SetInputs(buf []int32) error
	Outputs(buf []int32) error

	// Update copies inputs into state through the input maps, runs the
	// program once for every instance, and copies state into outputs
	// through the output maps.
	Update(ctx context.Context) error

	// Close releases backend resources. Close is idempotent.
	Close() error
}

// Config describes the simulator to construct.
type Config struct {
	// NumInstances defaults to 1.
	NumInstances int

	// InputSize and OutputSize are the words of input and output per
	// instance. Both default to 1.
	InputSize  int
	OutputSize int

	Descriptor *model.Descriptor
}

func (c Config) withDefaults() Config {
	if c.NumInstances <= 0 {
		c.NumInstances = 1
	}
	if c.InputSize <= 0 {
		c.InputSize = 1
	}
	if c.OutputSize <= 0 {
		c.OutputSize = 1
	}
	return c
}

// New compiles cfg.Descriptor and constructs a simulator on the selected
// backend.
//
// Without WithBackend, registered backends are tried in priority order
// (gpu, then cpu); a backend that fails to initialize is skipped with a
// warning. With WithBackend, only the named backend is tried.
func New(cfg Config, opts ...Option) (Simulator, error) {
	cfg = cfg.withDefaults()
	o := newOptions(opts)

	prog, err := program.Compile(cfg.Descriptor)
	if err != nil {
		return nil, fmt.Errorf("automata: %w", err)
	}
	o.Logger.Debug("automata: program compiled",
		"units", prog.UnitCount(),
		"stateSize", prog.StateSize(),
		"iterations", prog.IterationsPerUpdate)

	if o.Backend != "" {
		f, ok := factory(o.Backend)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrBackendNotAvailable, o.Backend)
		}
		return open(o.Backend, f, prog, cfg, o)
	}

	var firstErr error
	for _, name := range priorityOrder() {
		f, _ := factory(name)
		s, err := open(name, f, prog, cfg, o)
		if err == nil {
			return s, nil
		}
		o.Logger.Warn("automata: backend unavailable, trying next", "backend", name, "err", err)
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr == nil {
		firstErr = ErrBackendNotAvailable
	}
	return nil, firstErr
}

func open(name string, f Factory, prog *program.Program, cfg Config, o Options) (Simulator, error) {
	s, err := f(prog, cfg, o)
	if err != nil {
		return nil, err
	}
	propagateLogger(s, o.Logger)
	o.Logger.Info("automata: backend selected", "backend", name, "instances", cfg.NumInstances)
	return s, nil
}
