//go:build !nogpu

// Package gpu runs compiled automata as wgpu/hal compute kernels.
//
// The kernel is the WGSL emitted by internal/codegen, compiled to SPIR-V
// with naga. One dispatch advances every instance: workgroup i owns
// instance i, and its invocations share the logical units of the instance,
// synchronizing with workgroup barriers between the snapshot, step and
// publish phases.
//
// KernelSimulator keeps host copies of all buffers and moves data lazily:
// host writes are uploaded on the next Update, and device results are read
// back through a staging buffer only when the host asks for them.
//
// The device is either opened on the Vulkan backend or shared with the
// host application through SetDeviceProvider.
package gpu
