//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
	_ "github.com/gogpu/wgpu/hal/vulkan" // registers the Vulkan HAL backend

	"github.com/gogpu/automata/internal/cache"
	"github.com/gogpu/automata/program"
)

var (
	errNoBackend   = errors.New("vulkan backend not available")
	errNoAdapter   = errors.New("no GPU adapters found")
	errBadProvider = errors.New("provider does not expose HAL device and queue")
)

// halProvider is implemented by device providers that expose wgpu/hal
// handles, such as gpucontext providers backed by wgpu.
type halProvider interface {
	HalDevice() any
	HalQueue() any
}

// openedDevice is a device this package created and must release.
type openedDevice struct {
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	name     string
}

// openDevice opens a device on the Vulkan backend, preferring discrete and
// integrated GPUs over software adapters.
func openDevice() (*openedDevice, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, errNoBackend
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, errNoAdapter
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("open device: %w", err)
	}
	return &openedDevice{
		instance: instance,
		device:   openDev.Device,
		queue:    openDev.Queue,
		name:     selected.Info.Name,
	}, nil
}

// providerDevice extracts the HAL device and queue of provider.
func providerDevice(provider any) (hal.Device, hal.Queue, error) {
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, nil, errBadProvider
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, nil, fmt.Errorf("provider HalDevice is not hal.Device: %w", errBadProvider)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, nil, fmt.Errorf("provider HalQueue is not hal.Queue: %w", errBadProvider)
	}
	return device, queue, nil
}

// kernels caches SPIR-V by program fingerprint.
var kernels = cache.New[string, []uint32](32)

// kernelSPIRV returns the compiled kernel of p.
func kernelSPIRV(p *program.Program) ([]uint32, error) {
	return kernels.GetOrCreate(p.Fingerprint(), func() ([]uint32, error) {
		return compileSPIRV(p.WGSL())
	})
}

// compileSPIRV compiles WGSL source to SPIR-V words.
func compileSPIRV(wgsl string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(wgsl)
	if err != nil {
		return nil, fmt.Errorf("compile kernel: %w", err)
	}
	// SPIR-V is little-endian 32-bit words
	code := make([]uint32, len(spirvBytes)/4)
	for i := range code {
		code[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return code, nil
}
