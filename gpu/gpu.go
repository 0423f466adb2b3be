//go:build !nogpu

// Package gpu registers the GPU backend.
//
// Import this package to make automata.New prefer compute kernels on a
// wgpu/hal device over the CPU backend:
//
//	import _ "github.com/gogpu/automata/gpu" // enable the GPU backend
//
// If no Vulkan device can be opened, automata.New logs a warning and falls
// back to the CPU backend. Build with -tags nogpu to leave the backend out.
package gpu

import (
	"sync"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/automata"
	gpuimpl "github.com/gogpu/automata/internal/gpu"
	"github.com/gogpu/automata/program"
)

var (
	providerMu sync.RWMutex
	provider   gpucontext.DeviceProvider
)

func init() {
	automata.Register(automata.BackendGPU, newSimulator)
}

func newSimulator(p *program.Program, cfg automata.Config, o automata.Options) (automata.Simulator, error) {
	providerMu.RLock()
	dp := provider
	providerMu.RUnlock()

	if dp != nil {
		k, err := gpuimpl.NewWithProvider(p, cfg, dp)
		if err == nil {
			return k, nil
		}
		o.Logger.Warn("gpu: shared device unusable, opening own device", "err", err)
	}
	k, err := gpuimpl.New(p, cfg)
	if err != nil {
		return nil, err
	}
	return k, nil
}

// SetDeviceProvider makes simulators created afterwards run on the device
// of an external provider (e.g., gogpu) instead of opening their own.
//
// The provider should be a gpucontext.DeviceProvider that also implements
// HalDevice() any and HalQueue() any for direct HAL access. Pass nil to go
// back to private devices.
func SetDeviceProvider(dp gpucontext.DeviceProvider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	provider = dp
}
