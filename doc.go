// Package automata runs compiled cellular automata for many independent
// instances at once.
//
// # Overview
//
// An automaton is described by a [model.Descriptor]: a grid of logical
// units, each a small matrix of typed cells wired to fixed neighbors.
// Package program compiles the descriptor into an update program. A
// [Simulator] holds the state of many instances of that program in shared
// buffers and advances all of them on every call to Update.
//
// # Quick Start
//
//	import "github.com/gogpu/automata"
//
//	desc := model.NewUniform(3, 3, model.ToggleCellType(), 3, 3)
//	sim, err := automata.New(automata.Config{
//		NumInstances: 64,
//		Descriptor:   desc,
//	})
//	if err != nil {
//		return err
//	}
//	defer sim.Close()
//
//	id, _ := sim.Allocator().Allocate()
//	_ = sim.SetState(id, state)
//	_ = sim.Update(ctx)
//	_ = sim.State(id, state)
//
// # Backends
//
// The CPU backend is always available. It runs instances on a work-stealing
// worker pool, either one instance per task (ScheduleInstance) or one
// goroutine per logical unit synchronized by barriers (ScheduleWorkGroup).
//
// The GPU backend compiles the program to a WGSL compute kernel and runs one
// workgroup per instance through gogpu/wgpu. Enable it with a blank import:
//
//	import _ "github.com/gogpu/automata/gpu"
//
// New prefers the GPU backend when it is registered and falls back to the
// CPU backend when no device is available.
//
// # State Layout
//
// The state of one instance is StateSize words. The word of layout slot s
// of logical unit lu is at s*UnitCount + lu. Use program.StateBuilder or
// package view to address state by name.
//
// # Wrappers
//
// Package bitwise packs several narrow automata into the bit lanes of one
// instance. Package composite spreads instances across several simulators.
// Both implement [Simulator] themselves.
//
// Package snapshot saves and restores the state of a simulator and renders
// an instance, seen through package view, as a PNG. Command cagen wraps
// code generation, layout inspection and batch runs.
package automata

// Version is the current version of the library.
const Version = "0.1.0"
