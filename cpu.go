package automata

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/automata/internal/codegen"
	"github.com/gogpu/automata/internal/parallel"
	"github.com/gogpu/automata/program"
)

// Schedule selects how the CPU backend maps an update onto goroutines.
type Schedule int

const (
	// ScheduleInstance runs each instance as one task that steps through
	// the barrier phases of all its logical units in turn.
	ScheduleInstance Schedule = iota

	// ScheduleWorkGroup runs the logical units of an instance on their own
	// goroutines, separated by a cyclic barrier, like a GPU workgroup.
	ScheduleWorkGroup
)

func (s Schedule) String() string {
	switch s {
	case ScheduleInstance:
		return "instance"
	case ScheduleWorkGroup:
		return "workgroup"
	default:
		return fmt.Sprintf("Schedule(%d)", int(s))
	}
}

// ParseSchedule parses the name returned by Schedule.String.
func ParseSchedule(name string) (Schedule, error) {
	switch name {
	case "instance", "":
		return ScheduleInstance, nil
	case "workgroup":
		return ScheduleWorkGroup, nil
	}
	return 0, fmt.Errorf("automata: unknown schedule %q", name)
}

// CPU is the CPU backend. It is always available.
type CPU struct {
	*HostBuffers

	prog     *program.Program
	plan     *codegen.Plan
	pool     *parallel.WorkerPool
	schedule Schedule
	log      atomic.Pointer[slog.Logger]

	workspaces sync.Pool
	closed     atomic.Bool
}

// NewCPU constructs a CPU simulator for p.
func NewCPU(p *program.Program, cfg Config, opts ...Option) (*CPU, error) {
	if p == nil {
		return nil, fmt.Errorf("automata: %w: nil program", ErrInvalidDescriptor)
	}
	cfg = cfg.withDefaults()
	o := newOptions(opts)

	c := &CPU{
		HostBuffers: NewHostBuffers(cfg.NumInstances, cfg.InputSize, p.StateSize(), cfg.OutputSize),
		prog:        p,
		plan:        p.Plan(),
		pool:        parallel.NewWorkerPool(o.Workers),
		schedule:    o.Schedule,
	}
	c.log.Store(o.Logger)
	c.workspaces.New = func() any { return c.plan.NewWorkspace() }

	o.Logger.Debug("automata: cpu simulator ready",
		"instances", cfg.NumInstances,
		"stateSize", p.StateSize(),
		"schedule", o.Schedule,
		"workers", c.pool.Workers())
	return c, nil
}

// SetLogger sets the logger of c.
func (c *CPU) SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	c.log.Store(l)
}

// Program returns the program c runs.
func (c *CPU) Program() *program.Program { return c.prog }

// Update advances every instance once. A cancelled context is honored
// between batches of instances.
func (c *CPU) Update(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	c.pool.ParallelFor(c.Size(), func(start, end int) {
		if ctx.Err() != nil {
			return
		}
		ws := c.workspaces.Get().(*codegen.Workspace)
		defer c.workspaces.Put(ws)
		for i := start; i < end; i++ {
			c.run(ws, i)
		}
	})
	return ctx.Err()
}

func (c *CPU) run(ws *codegen.Workspace, i int) {
	state, input, inputMap, outputMap, output := c.Instance(i)
	for k, s := range inputMap {
		state[s] = input[k]
	}
	if c.schedule == ScheduleWorkGroup {
		c.runWorkGroup(ws, state, input)
	} else {
		c.plan.Run(ws, state, input)
	}
	for k, s := range outputMap {
		output[k] = state[s]
	}
}

// runWorkGroup advances one instance with a goroutine per logical unit.
func (c *CPU) runWorkGroup(ws *codegen.Workspace, state, input []int32) {
	p := c.plan
	barrier := parallel.NewBarrier(p.Units)

	var wg sync.WaitGroup
	wg.Add(p.Units)
	for lu := range p.Units {
		go func() {
			defer wg.Done()
			p.Load(ws, state, input, lu)
			p.Constants(ws, lu)
			barrier.Wait()
			for range p.Iterations {
				p.Snapshot(ws, lu)
				barrier.Wait()
				p.Step(ws, lu)
				barrier.Wait()
				p.Publish(ws, lu)
				barrier.Wait()
			}
			p.Store(ws, state, lu)
		}()
	}
	wg.Wait()
}

// Close stops the worker pool. Close is idempotent.
func (c *CPU) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.pool.Close()
	c.log.Load().Debug("automata: cpu simulator closed")
	return nil
}
