package automata

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"slices"
	"testing"

	"github.com/gogpu/automata/model"
	"github.com/gogpu/automata/program"
)

// mockSimulator records the logger it receives.
type mockSimulator struct {
	*NoOp
	logger *slog.Logger
}

func (m *mockSimulator) SetLogger(l *slog.Logger) { m.logger = l }

func registerMock(t *testing.T, name string, f Factory) {
	t.Helper()
	Register(name, f)
	t.Cleanup(func() { Unregister(name) })
}

func toggle() *model.Descriptor {
	return model.NewUniform(2, 2, model.ToggleCellType(), 2, 2)
}

func TestRegistry_CPUAlwaysRegistered(t *testing.T) {
	if !IsRegistered(BackendCPU) {
		t.Fatal("cpu backend not registered")
	}
	if !slices.Contains(Available(), BackendCPU) {
		t.Errorf("Available() = %v", Available())
	}
}

func TestNew_ExplicitBackend(t *testing.T) {
	sim, err := New(Config{NumInstances: 3, Descriptor: toggle()}, WithBackend(BackendCPU))
	if err != nil {
		t.Fatal(err)
	}
	defer sim.Close()

	if _, ok := sim.(*CPU); !ok {
		t.Errorf("New() = %T, want *CPU", sim)
	}
	if sim.Size() != 3 || sim.InputSize() != 1 || sim.OutputSize() != 1 {
		t.Errorf("sizes = %d/%d/%d", sim.Size(), sim.InputSize(), sim.OutputSize())
	}
	if err := sim.Update(context.Background()); err != nil {
		t.Error(err)
	}
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := New(Config{Descriptor: toggle()}, WithBackend("tpu"))
	if !errors.Is(err, ErrBackendNotAvailable) {
		t.Errorf("New() error = %v, want ErrBackendNotAvailable", err)
	}
}

func TestNew_InvalidDescriptor(t *testing.T) {
	_, err := New(Config{Descriptor: model.NewUniform(0, 0, model.ToggleCellType(), 1, 1)})
	if !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("New() error = %v, want ErrInvalidDescriptor", err)
	}
}

func TestNew_FallsBackFromFailingGPU(t *testing.T) {
	if IsRegistered(BackendGPU) {
		t.Skip("a real gpu backend is registered")
	}
	failure := &BackendError{Backend: BackendGPU, Op: "open", Err: errors.New("no adapter")}
	registerMock(t, BackendGPU, func(*program.Program, Config, Options) (Simulator, error) {
		return nil, failure
	})

	sim, err := New(Config{Descriptor: toggle()})
	if err != nil {
		t.Fatal(err)
	}
	defer sim.Close()
	if _, ok := sim.(*CPU); !ok {
		t.Errorf("New() = %T, want CPU fallback", sim)
	}
}

func TestNew_PrefersGPU(t *testing.T) {
	if IsRegistered(BackendGPU) {
		t.Skip("a real gpu backend is registered")
	}
	var built *mockSimulator
	registerMock(t, BackendGPU, func(p *program.Program, cfg Config, _ Options) (Simulator, error) {
		built = &mockSimulator{NoOp: NewNoOp(cfg.NumInstances, cfg.InputSize, p.StateSize(), cfg.OutputSize)}
		return built, nil
	})

	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, nil))
	sim, err := New(Config{Descriptor: toggle()}, WithLogger(l))
	if err != nil {
		t.Fatal(err)
	}
	if sim != Simulator(built) {
		t.Fatalf("New() = %T, want the gpu mock", sim)
	}
	if built.logger != l {
		t.Error("New did not propagate the logger to the simulator")
	}
	if !bytes.Contains(buf.Bytes(), []byte("backend=gpu")) {
		t.Errorf("missing backend selection log, got %q", buf.String())
	}
}

func TestBackendError(t *testing.T) {
	cause := errors.New("device lost")
	err := error(&BackendError{Backend: "gpu", Op: "dispatch", Err: cause})
	if !errors.Is(err, ErrBackendFailure) {
		t.Error("BackendError does not match ErrBackendFailure")
	}
	if !errors.Is(err, cause) {
		t.Error("BackendError does not unwrap to its cause")
	}
	if got, want := err.Error(), "automata: gpu backend: dispatch: device lost"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
