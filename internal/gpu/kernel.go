//go:build !nogpu

package gpu

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/automata"
	"github.com/gogpu/automata/internal/codegen"
	"github.com/gogpu/automata/program"
)

// MaxInstances bounds the instances of one KernelSimulator: one workgroup
// per instance along the x dimension of a single dispatch.
const MaxInstances = 65535

// submitTimeout bounds the wait for one submission.
const submitTimeout = 5 * time.Second

// numStorage is the number of storage bindings; the params uniform follows.
const numStorage = codegen.BindingParams

var storageLabels = [numStorage]string{
	codegen.BindingState:     "automata_state",
	codegen.BindingInput:     "automata_input",
	codegen.BindingInputMap:  "automata_input_map",
	codegen.BindingOutputMap: "automata_output_map",
	codegen.BindingOutput:    "automata_output",
	codegen.BindingScratch:   "automata_scratch",
}

var errSubmitTimeout = errors.New("timed out waiting for submission")

var _ automata.Simulator = (*KernelSimulator)(nil)

// KernelSimulator implements automata.Simulator on a wgpu/hal device.
//
// Host buffers are authoritative until Update. Writes mark them dirty and
// are uploaded before the next dispatch; after a dispatch the state and
// output buffers are stale on the host and are read back on first access.
type KernelSimulator struct {
	*automata.HostBuffers

	mu   sync.Mutex
	prog *program.Program

	opened         *openedDevice
	device         hal.Device
	queue          hal.Queue
	externalDevice bool

	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.ComputePipeline
	bindGroup  hal.BindGroup
	storage    [numStorage]hal.Buffer
	params     hal.Buffer
	staging    hal.Buffer

	// words holds the length of each storage buffer in int32 words.
	words [numStorage]int
	// dirty marks host buffers newer than the device.
	dirty [numStorage]bool
	// stale marks host buffers older than the device.
	stale [numStorage]bool
	bytes []byte

	closed bool
}

// New opens a device on the Vulkan backend and builds the kernel of p.
func New(p *program.Program, cfg automata.Config) (*KernelSimulator, error) {
	k, err := newKernel(p, cfg)
	if err != nil {
		return nil, err
	}
	dev, err := openDevice()
	if err != nil {
		return nil, k.fail("open device", err)
	}
	k.opened = dev
	k.device = dev.device
	k.queue = dev.queue
	if err := k.createResources(); err != nil {
		k.destroyResources()
		k.releaseDevice()
		return nil, k.fail("create resources", err)
	}
	slogger().Info("gpu: kernel simulator initialized", "adapter", dev.name, "instances", k.Size())
	return k, nil
}

// NewWithDevice builds the kernel of p on an existing device. The device
// stays owned by the caller.
func NewWithDevice(p *program.Program, cfg automata.Config, device hal.Device, queue hal.Queue) (*KernelSimulator, error) {
	if device == nil || queue == nil {
		return nil, &automata.BackendError{Backend: automata.BackendGPU, Op: "open device", Err: errBadProvider}
	}
	k, err := newKernel(p, cfg)
	if err != nil {
		return nil, err
	}
	k.device = device
	k.queue = queue
	k.externalDevice = true
	if err := k.createResources(); err != nil {
		k.destroyResources()
		return nil, k.fail("create resources", err)
	}
	return k, nil
}

// NewWithProvider builds the kernel of p on the device of provider, which
// must implement HalDevice() any and HalQueue() any.
func NewWithProvider(p *program.Program, cfg automata.Config, provider any) (*KernelSimulator, error) {
	device, queue, err := providerDevice(provider)
	if err != nil {
		return nil, &automata.BackendError{Backend: automata.BackendGPU, Op: "open device", Err: err}
	}
	return NewWithDevice(p, cfg, device, queue)
}

func newKernel(p *program.Program, cfg automata.Config) (*KernelSimulator, error) {
	if p == nil {
		return nil, fmt.Errorf("gpu: %w: nil program", automata.ErrInvalidDescriptor)
	}
	n := max(cfg.NumInstances, 1)
	inputSize := max(cfg.InputSize, 1)
	outputSize := max(cfg.OutputSize, 1)
	if n > MaxInstances {
		return nil, &automata.BackendError{
			Backend: automata.BackendGPU,
			Op:      "configure",
			Err:     fmt.Errorf("%d instances exceed the dispatch limit of %d", n, MaxInstances),
		}
	}

	k := &KernelSimulator{
		HostBuffers: automata.NewHostBuffers(n, inputSize, p.StateSize(), outputSize),
		prog:        p,
	}
	k.words[codegen.BindingState] = n * p.StateSize()
	k.words[codegen.BindingInput] = n * inputSize
	k.words[codegen.BindingInputMap] = n * inputSize
	k.words[codegen.BindingOutputMap] = n * outputSize
	k.words[codegen.BindingOutput] = n * outputSize
	k.words[codegen.BindingScratch] = n * len(p.Model.Externals) * p.UnitCount()
	return k, nil
}

// SetLogger sets the logger of the GPU backend.
func (k *KernelSimulator) SetLogger(l *slog.Logger) { setLogger(l) }

// Program returns the program k runs.
func (k *KernelSimulator) Program() *program.Program { return k.prog }

// SetDeviceProvider moves k onto a shared device. The provider must
// implement HalDevice() any and HalQueue() any returning hal.Device and
// hal.Queue. Device results are read back first and every buffer is
// uploaded again on the next Update.
func (k *KernelSimulator) SetDeviceProvider(provider any) error {
	device, queue, err := providerDevice(provider)
	if err != nil {
		return fmt.Errorf("gpu: %w", err)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return automata.ErrClosed
	}
	for b := range numStorage {
		if err := k.sync(b); err != nil {
			return err
		}
	}

	k.destroyResources()
	k.releaseDevice()
	k.device = device
	k.queue = queue
	k.externalDevice = true

	if err := k.createResources(); err != nil {
		k.destroyResources()
		return k.fail("create resources with shared device", err)
	}
	slogger().Info("gpu: switched to shared GPU device")
	return nil
}

// State reads back the device state if it is stale, then copies instance i.
func (k *KernelSimulator) State(i int, buf []int32) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.sync(codegen.BindingState); err != nil {
		return err
	}
	return k.HostBuffers.State(i, buf)
}

// States reads back the device state if it is stale, then copies it all.
func (k *KernelSimulator) States(buf []int32) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.sync(codegen.BindingState); err != nil {
		return err
	}
	return k.HostBuffers.States(buf)
}

// SetState writes instance i and marks the state for upload.
func (k *KernelSimulator) SetState(i int, buf []int32) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.sync(codegen.BindingState); err != nil {
		return err
	}
	return k.written(codegen.BindingState, k.HostBuffers.SetState(i, buf))
}

// SetStates replaces the whole state and marks it for upload.
func (k *KernelSimulator) SetStates(buf []int32) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.HostBuffers.SetStates(buf); err != nil {
		return err
	}
	k.stale[codegen.BindingState] = false
	k.dirty[codegen.BindingState] = true
	return nil
}

// SetInput writes the inputs of instance i and marks them for upload.
func (k *KernelSimulator) SetInput(i int, buf []int32) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.written(codegen.BindingInput, k.HostBuffers.SetInput(i, buf))
}

// SetInputs replaces all inputs and marks them for upload.
func (k *KernelSimulator) SetInputs(buf []int32) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.written(codegen.BindingInput, k.HostBuffers.SetInputs(buf))
}

// SetInputMap sets the input map of instance i and marks it for upload.
func (k *KernelSimulator) SetInputMap(i int, m []int32) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.written(codegen.BindingInputMap, k.HostBuffers.SetInputMap(i, m))
}

// SetOutputMap sets the output map of instance i and marks it for upload.
func (k *KernelSimulator) SetOutputMap(i int, m []int32) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.written(codegen.BindingOutputMap, k.HostBuffers.SetOutputMap(i, m))
}

// Output reads back the device outputs if stale, then copies instance i.
func (k *KernelSimulator) Output(i int, buf []int32) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.sync(codegen.BindingOutput); err != nil {
		return err
	}
	return k.HostBuffers.Output(i, buf)
}

// Outputs reads back the device outputs if stale, then copies them all.
func (k *KernelSimulator) Outputs(buf []int32) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.sync(codegen.BindingOutput); err != nil {
		return err
	}
	return k.HostBuffers.Outputs(buf)
}

// written marks b dirty when a host write succeeded.
func (k *KernelSimulator) written(b int, err error) error {
	if err == nil {
		k.dirty[b] = true
	}
	return err
}

// Update uploads dirty buffers, dispatches one workgroup per instance and
// waits for the device.
func (k *KernelSimulator) Update(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return automata.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := k.upload(); err != nil {
		return err
	}

	err := k.submit("automata_update", func(encoder hal.CommandEncoder) {
		pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "automata_kernel"})
		pass.SetPipeline(k.pipeline)
		pass.SetBindGroup(0, k.bindGroup, nil)
		pass.Dispatch(uint32(k.Size()), 1, 1) //nolint:gosec // bounded by MaxInstances
		pass.End()
	})
	if err != nil {
		return k.fail("dispatch", err)
	}
	k.stale[codegen.BindingState] = true
	k.stale[codegen.BindingOutput] = true
	slogger().Debug("gpu: dispatched",
		"instances", k.Size(),
		"workgroupSize", k.prog.WorkgroupSize(),
		"iterations", k.prog.IterationsPerUpdate)
	return nil
}

// Close reads back device results, then releases every GPU resource and the
// device when k opened it. Close is idempotent.
func (k *KernelSimulator) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return nil
	}
	var errs []error
	for b := range numStorage {
		if err := k.sync(b); err != nil {
			errs = append(errs, err)
		}
	}
	if k.device != nil {
		if err := k.device.WaitIdle(); err != nil {
			slogger().Warn("gpu: wait idle on close", "err", err)
		}
	}
	k.destroyResources()
	k.releaseDevice()
	k.closed = true
	return errors.Join(errs...)
}

// upload writes dirty host buffers to the device.
func (k *KernelSimulator) upload() error {
	for b := range numStorage {
		if !k.dirty[b] {
			continue
		}
		data := k.encode(k.host(b))
		if err := k.queue.WriteBuffer(k.storage[b], 0, data); err != nil {
			return k.fail("upload "+storageLabels[b], err)
		}
		k.dirty[b] = false
	}
	return nil
}

// sync reads b back from the device when the host copy is stale.
func (k *KernelSimulator) sync(b int) error {
	if !k.stale[b] {
		return nil
	}
	if k.device == nil {
		return automata.ErrClosed
	}
	host := k.host(b)
	size := uint64(len(host) * 4) //nolint:gosec // buffer sizes are positive
	err := k.submit("automata_readback", func(encoder hal.CommandEncoder) {
		encoder.CopyBufferToBuffer(k.storage[b], k.staging, []hal.BufferCopy{
			{SrcOffset: 0, DstOffset: 0, Size: size},
		})
	})
	if err != nil {
		return k.fail("readback "+storageLabels[b], err)
	}
	mapping, err := k.device.MapBuffer(k.staging, 0, size)
	if err != nil {
		return k.fail("map staging", err)
	}
	decode(host, unsafe.Slice((*byte)(mapping.Ptr), size))
	if err := k.device.UnmapBuffer(k.staging); err != nil {
		return k.fail("unmap staging", err)
	}
	k.stale[b] = false
	return nil
}

// submit records commands with fn, submits them and waits for completion.
func (k *KernelSimulator) submit(label string, fn func(hal.CommandEncoder)) error {
	encoder, err := k.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	defer encoder.Destroy()
	if err := encoder.BeginEncoding(label); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}
	fn(encoder)
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer k.device.FreeCommandBuffer(cmdBuf)

	index, err := k.queue.Submit([]hal.CommandBuffer{cmdBuf})
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	return k.wait(index)
}

// wait blocks until the queue completes submission index.
func (k *KernelSimulator) wait(index uint64) error {
	deadline := time.Now().Add(submitTimeout)
	backoff := 10 * time.Microsecond
	for k.queue.PollCompleted() < index {
		if time.Now().After(deadline) {
			return fmt.Errorf("submission %d: %w", index, errSubmitTimeout)
		}
		time.Sleep(backoff)
		backoff = min(backoff*2, time.Millisecond)
	}
	return nil
}

// host returns the host slice mirrored by binding b. Scratch has no host
// mirror.
func (k *KernelSimulator) host(b int) []int32 {
	switch b {
	case codegen.BindingState:
		return k.StateBuf
	case codegen.BindingInput:
		return k.InputBuf
	case codegen.BindingInputMap:
		return k.InputMapBuf
	case codegen.BindingOutputMap:
		return k.OutputMapBuf
	case codegen.BindingOutput:
		return k.OutputBuf
	}
	return nil
}

// encode packs words little-endian into a reused byte slice.
func (k *KernelSimulator) encode(words []int32) []byte {
	n := len(words) * 4
	if cap(k.bytes) < n {
		k.bytes = make([]byte, n)
	}
	data := k.bytes[:n]
	for i, w := range words {
		binary.LittleEndian.PutUint32(data[i*4:], uint32(w)) //nolint:gosec // bit-preserving
	}
	return data
}

func decode(dst []int32, src []byte) {
	for i := range dst {
		dst[i] = int32(binary.LittleEndian.Uint32(src[i*4:])) //nolint:gosec // bit-preserving
	}
}

// bufferSize returns the byte size of a buffer of n words. Bindings are
// never empty.
func bufferSize(n int) uint64 {
	return uint64(max(n, 1) * 4) //nolint:gosec // n is non-negative
}

func (k *KernelSimulator) createResources() error {
	code, err := kernelSPIRV(k.prog)
	if err != nil {
		return err
	}
	k.shader, err = k.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "automata_kernel",
		Source: hal.ShaderSource{SPIRV: code},
	})
	if err != nil {
		return fmt.Errorf("create shader module: %w", err)
	}

	storageRO := func(binding int) gputypes.BindGroupLayoutEntry {
		return gputypes.BindGroupLayoutEntry{
			Binding:    uint32(binding), //nolint:gosec // small constant
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage},
		}
	}
	storageRW := func(binding int) gputypes.BindGroupLayoutEntry {
		return gputypes.BindGroupLayoutEntry{
			Binding:    uint32(binding), //nolint:gosec // small constant
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage},
		}
	}
	k.bindLayout, err = k.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "automata_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			storageRW(codegen.BindingState),
			storageRO(codegen.BindingInput),
			storageRO(codegen.BindingInputMap),
			storageRO(codegen.BindingOutputMap),
			storageRW(codegen.BindingOutput),
			storageRW(codegen.BindingScratch),
			{
				Binding:    codegen.BindingParams,
				Visibility: gputypes.ShaderStageCompute,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group layout: %w", err)
	}

	k.pipeLayout, err = k.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: "automata_pipe_layout", BindGroupLayouts: []hal.BindGroupLayout{k.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}

	k.pipeline, err = k.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label: "automata_pipeline", Layout: k.pipeLayout,
		Compute: hal.ComputeState{Module: k.shader, EntryPoint: "main"},
	})
	if err != nil {
		return fmt.Errorf("create compute pipeline: %w", err)
	}

	var stagingWords int
	for b := range numStorage {
		k.storage[b], err = k.device.CreateBuffer(&hal.BufferDescriptor{
			Label: storageLabels[b],
			Size:  bufferSize(k.words[b]),
			Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst | gputypes.BufferUsageCopySrc,
		})
		if err != nil {
			return fmt.Errorf("create %s buffer: %w", storageLabels[b], err)
		}
		if k.host(b) != nil {
			stagingWords = max(stagingWords, k.words[b])
			k.dirty[b] = true
		}
		k.stale[b] = false
	}
	k.staging, err = k.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "automata_staging",
		Size:  bufferSize(stagingWords),
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create staging buffer: %w", err)
	}

	k.params, err = k.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "automata_params",
		Size:  16,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create params buffer: %w", err)
	}
	params := k.encode([]int32{int32(k.Size()), int32(k.InputSize()), int32(k.OutputSize()), 0}) //nolint:gosec // bounded sizes
	if err := k.queue.WriteBuffer(k.params, 0, params); err != nil {
		return fmt.Errorf("write params: %w", err)
	}

	entries := make([]gputypes.BindGroupEntry, 0, numStorage+1)
	for b := range numStorage {
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  uint32(b), //nolint:gosec // small constant
			Resource: gputypes.BufferBinding{Buffer: k.storage[b].NativeHandle(), Size: bufferSize(k.words[b])},
		})
	}
	entries = append(entries, gputypes.BindGroupEntry{
		Binding:  codegen.BindingParams,
		Resource: gputypes.BufferBinding{Buffer: k.params.NativeHandle(), Size: 16},
	})
	k.bindGroup, err = k.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   "automata_bind_group",
		Layout:  k.bindLayout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("create bind group: %w", err)
	}

	slogger().Debug("gpu: kernel resources created",
		"units", k.prog.UnitCount(),
		"stateSize", k.StateSize(),
		"workgroupSize", k.prog.WorkgroupSize(),
		"spirvWords", len(code))
	return nil
}

func (k *KernelSimulator) destroyResources() {
	if k.device == nil {
		return
	}
	if k.bindGroup != nil {
		k.device.DestroyBindGroup(k.bindGroup)
		k.bindGroup = nil
	}
	for b, buf := range k.storage {
		if buf != nil {
			k.device.DestroyBuffer(buf)
			k.storage[b] = nil
		}
	}
	if k.staging != nil {
		k.device.DestroyBuffer(k.staging)
		k.staging = nil
	}
	if k.params != nil {
		k.device.DestroyBuffer(k.params)
		k.params = nil
	}
	if k.pipeline != nil {
		k.device.DestroyComputePipeline(k.pipeline)
		k.pipeline = nil
	}
	if k.pipeLayout != nil {
		k.device.DestroyPipelineLayout(k.pipeLayout)
		k.pipeLayout = nil
	}
	if k.bindLayout != nil {
		k.device.DestroyBindGroupLayout(k.bindLayout)
		k.bindLayout = nil
	}
	if k.shader != nil {
		k.device.DestroyShaderModule(k.shader)
		k.shader = nil
	}
}

// releaseDevice drops the device, destroying it when k opened it.
func (k *KernelSimulator) releaseDevice() {
	if k.opened != nil && !k.externalDevice {
		k.opened.device.Destroy()
		k.opened.instance.Destroy()
	}
	k.opened = nil
	k.device = nil
	k.queue = nil
}

func (k *KernelSimulator) fail(op string, err error) error {
	var be *automata.BackendError
	if errors.As(err, &be) {
		return err
	}
	slogger().Warn("gpu: backend failure", "op", op, "err", err)
	return &automata.BackendError{Backend: automata.BackendGPU, Op: op, Err: err}
}
