package automata

import (
	"slices"
	"sync"

	"github.com/gogpu/automata/program"
)

// Backend names.
const (
	BackendCPU = "cpu"
	BackendGPU = "gpu"
)

// Factory constructs a simulator for a compiled program.
type Factory func(p *program.Program, cfg Config, o Options) (Simulator, error)

var (
	registryMu sync.RWMutex
	backends   = make(map[string]Factory)
	// First available wins.
	backendPriority = []string{BackendGPU, BackendCPU}
)

func init() {
	Register(BackendCPU, func(p *program.Program, cfg Config, o Options) (Simulator, error) {
		return NewCPU(p, cfg, WithWorkers(o.Workers), WithSchedule(o.Schedule), WithLogger(o.Logger))
	})
}

// Register registers a backend factory under name, replacing any previous
// one. It is typically called from init functions of backend packages.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	backends[name] = f
}

// Unregister removes a backend. This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(backends, name)
}

// Available returns the registered backend names, sorted.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsRegistered reports whether a backend with the given name is registered.
func IsRegistered(name string) bool {
	_, ok := factory(name)
	return ok
}

func factory(name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := backends[name]
	return f, ok
}

// priorityOrder returns registered backends: known names by priority, then
// the rest sorted.
func priorityOrder() []string {
	var names []string
	for _, name := range backendPriority {
		if IsRegistered(name) {
			names = append(names, name)
		}
	}
	for _, name := range Available() {
		if !slices.Contains(backendPriority, name) {
			names = append(names, name)
		}
	}
	return names
}
