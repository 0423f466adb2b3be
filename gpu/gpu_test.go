//go:build !nogpu

package gpu

import (
	"context"
	"errors"
	"testing"

	"github.com/gogpu/automata"
	"github.com/gogpu/automata/model"
)

func TestRegistered(t *testing.T) {
	if !automata.IsRegistered(automata.BackendGPU) {
		t.Fatal("gpu backend not registered")
	}
}

func TestNewGPU(t *testing.T) {
	SetDeviceProvider(nil)
	d := model.NewUniform(2, 2, model.ToggleCellType(), 1, 1)

	sim, err := automata.New(automata.Config{Descriptor: d}, automata.WithBackend(automata.BackendGPU))
	if err != nil {
		if !errors.Is(err, automata.ErrBackendFailure) {
			t.Fatalf("New: err = %v, want ErrBackendFailure", err)
		}
		t.Skipf("GPU not available: %v", err)
	}
	t.Cleanup(func() { _ = sim.Close() })

	if err := sim.Update(context.Background()); err != nil {
		t.Fatalf("Update: %v", err)
	}
	state := make([]int32, sim.StateSize())
	if err := sim.State(0, state); err != nil {
		t.Fatal(err)
	}
	// Every toggle output starts at zero and inverts once.
	for i, v := range state {
		if v != -1 {
			t.Fatalf("state[%d] = %d, want -1", i, v)
		}
	}
}

func TestNewFallsBackToCPU(t *testing.T) {
	d := model.NewUniform(2, 2, model.ToggleCellType(), 1, 1)
	sim, err := automata.New(automata.Config{Descriptor: d})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = sim.Close() })
	if err := sim.Update(context.Background()); err != nil {
		t.Fatalf("Update: %v", err)
	}
}
