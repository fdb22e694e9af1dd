// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpures/backend"
	"github.com/gogpu/gpures/internal/shaderreflect"
)

// Sentinel errors.
var (
	// ErrNoAdapter is returned when the HAL instance exposes no adapter.
	ErrNoAdapter = errors.New("wgpu: no adapter")

	// ErrNoHAL is returned by FromProvider when the provider does not
	// expose HAL device and queue.
	ErrNoHAL = errors.New("wgpu: provider does not expose HAL types")
)

// multisampleCount is the sample count used for every multisampled
// renderbuffer.
const multisampleCount = 4

// copyPitchAlignment is the required BytesPerRow alignment of
// texture-to-buffer copies.
const copyPitchAlignment = 256

func init() {
	backend.Register(backend.NameWGPU, func() (backend.Device, error) {
		return Open(Config{})
	})
}

// Config configures Open.
type Config struct {
	// API is the HAL backend to open. Nil selects the best registered one.
	API hal.Backend

	// Features are the optional features to request; only those the
	// adapter supports are enabled. Zero requests every feature the
	// resource layer can use.
	Features gputypes.Features
}

// Device is a backend.Device over a HAL device.
type Device struct {
	instance hal.Instance // nil when the device is borrowed
	device   hal.Device
	queue    hal.Queue
	info     gputypes.AdapterInfo
	caps     backend.Caps

	live  backend.Counts
	bound *Framebuffer
	blits int
}

var _ backend.Device = (*Device)(nil)

// Open creates a HAL instance, selects an adapter and opens a device on it.
// Discrete and integrated GPUs are preferred over other adapter types.
func Open(cfg Config) (*Device, error) {
	api := cfg.API
	if api == nil {
		var err error
		if api, err = hal.SelectBestBackend(); err != nil {
			return nil, fmt.Errorf("wgpu: select backend: %w", err)
		}
	}
	instance, err := api.CreateInstance(&hal.InstanceDescriptor{})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}

	wanted := cfg.Features
	if wanted == 0 {
		wanted.Insert(gputypes.FeatureTextureCompressionBC)
	}
	features := selected.Features.Intersect(wanted)
	limits := selected.Capabilities.Limits
	open, err := selected.Adapter.Open(features, limits)
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("wgpu: open device: %w", err)
	}

	d := &Device{
		instance: instance,
		device:   open.Device,
		queue:    open.Queue,
		info:     selected.Info,
		caps:     adapterCaps(selected.Adapter, features, limits),
	}
	backend.Logger().Info("wgpu: device opened",
		"adapter", selected.Info.Name, "backend", selected.Info.Backend.String())
	return d, nil
}

// New wraps a device owned by the caller. Close does not destroy it.
func New(device hal.Device, queue hal.Queue, caps backend.Caps) *Device {
	return &Device{device: device, queue: queue, caps: caps}
}

// FromProvider wraps the device of a gpucontext.DeviceProvider. The
// provider must implement HalDevice() and HalQueue() returning hal.Device
// and hal.Queue. When its Adapter is a hal.Adapter, capabilities are read
// from it; otherwise DefaultCaps is assumed.
func FromProvider(p gpucontext.DeviceProvider) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := p.(halProvider)
	if !ok {
		return nil, ErrNoHAL
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNoHAL)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNoHAL)
	}

	caps := DefaultCaps()
	if a, ok := p.Adapter().(hal.Adapter); ok && a != nil {
		caps = adapterCaps(a, 0, gputypes.DefaultLimits())
	}
	d := New(device, queue, caps)
	d.info.Name = p.AdapterInfo().Name
	backend.Logger().Info("wgpu: shared device", "adapter", d.info.Name)
	return d, nil
}

// DefaultCaps reports what every WebGPU device supports.
func DefaultCaps() backend.Caps {
	limits := gputypes.DefaultLimits()
	return backend.Caps{
		MultisampleBlit:     true,
		MaxSamples:          multisampleCount,
		PackedDepthStencil:  true,
		VertexBufferObjects: true,
		HalfFloatVertex:     true,
		MaxColorAttachments: int(limits.MaxColorAttachments),
		MaxTextureSize:      int(limits.MaxTextureDimension2D),
		Texture3D:           true,
		TextureArray:        true,
		TextureCube:         true,
	}
}

func adapterCaps(a hal.Adapter, features gputypes.Features, limits gputypes.Limits) backend.Caps {
	caps := DefaultCaps()
	caps.Features = features
	caps.MaxColorAttachments = int(limits.MaxColorAttachments)
	caps.MaxTextureSize = int(limits.MaxTextureDimension2D)

	const resolve = hal.TextureFormatCapabilityMultisample | hal.TextureFormatCapabilityMultisampleResolve
	rgba := a.TextureFormatCapabilities(gputypes.TextureFormatRGBA8Unorm).Flags
	caps.MultisampleBlit = rgba&resolve == resolve
	if !caps.MultisampleBlit {
		caps.MaxSamples = 1
	}
	ds := a.TextureFormatCapabilities(gputypes.TextureFormatDepth24PlusStencil8).Flags
	caps.PackedDepthStencil = ds&hal.TextureFormatCapabilityRenderAttachment != 0
	return caps
}

// Name implements backend.Device.
func (d *Device) Name() string { return backend.NameWGPU }

// Caps implements backend.Device.
func (d *Device) Caps() backend.Caps { return d.caps }

// AdapterInfo describes the adapter the device was opened on. Only Name is
// set for borrowed devices.
func (d *Device) AdapterInfo() gputypes.AdapterInfo { return d.info }

// HalDevice returns the underlying HAL device.
func (d *Device) HalDevice() hal.Device { return d.device }

// Live returns the live object counts.
func (d *Device) Live() backend.Counts { return d.live }

// Blits returns the number of resolve blits performed.
func (d *Device) Blits() int { return d.blits }

// CreateProgram implements backend.Device.
func (d *Device) CreateProgram() (backend.Program, error) {
	d.live.Programs++
	return &program{Program: shaderreflect.NewProgram(), dev: d}, nil
}

// BindFramebuffer implements backend.Device. WebGPU has no bound target;
// the framebuffer is remembered for the next render pass.
func (d *Device) BindFramebuffer(fb backend.Framebuffer) error {
	if fb == nil {
		d.bound = nil
		return nil
	}
	f, ok := fb.(*Framebuffer)
	if !ok || f.destroyed {
		return fmt.Errorf("%w: framebuffer", backend.ErrDestroyed)
	}
	d.bound = f
	return nil
}

// Bound returns the bound framebuffer, nil for the default target.
func (d *Device) Bound() *Framebuffer { return d.bound }

// Blit implements backend.Device. A multisampled color attachment 0 is
// resolved in an empty render pass; a single-sampled one is copied.
func (d *Device) Blit(src, dst backend.Framebuffer) error {
	if !d.caps.MultisampleBlit {
		return fmt.Errorf("%w: blit", backend.ErrUnsupported)
	}
	s, ok1 := src.(*Framebuffer)
	t, ok2 := dst.(*Framebuffer)
	if !ok1 || !ok2 {
		return fmt.Errorf("%w: foreign framebuffer", backend.ErrUnsupported)
	}
	if st := s.Status(); st != backend.FramebufferComplete {
		return fmt.Errorf("wgpu: blit source %s", st)
	}
	if st := t.Status(); st != backend.FramebufferComplete {
		return fmt.Errorf("wgpu: blit destination %s", st)
	}
	from, ok1 := s.attachments[backend.ColorAttachment(0)]
	to, ok2 := t.attachments[backend.ColorAttachment(0)]
	if !ok1 || !ok2 {
		return fmt.Errorf("wgpu: blit needs color attachment 0 on both framebuffers")
	}
	sw, sh := from.size()
	tw, th := to.size()
	if sw != tw || sh != th {
		return fmt.Errorf("%w: blit %dx%d to %dx%d", backend.ErrOutOfRange, sw, sh, tw, th)
	}

	err := d.submit("blit", func(enc hal.CommandEncoder) {
		if from.samples() > 1 {
			rp := enc.BeginRenderPass(&hal.RenderPassDescriptor{
				Label: "resolve",
				ColorAttachments: []hal.RenderPassColorAttachment{{
					View:          from.view,
					ResolveTarget: to.view,
					LoadOp:        gputypes.LoadOpLoad,
					StoreOp:       gputypes.StoreOpStore,
				}},
			})
			rp.End()
			return
		}
		enc.CopyTextureToTexture(from.raw(), to.raw(), []hal.TextureCopy{{
			SrcBase: from.copyBase(),
			DstBase: to.copyBase(),
			Size:    hal.Extent3D{Width: uint32(sw), Height: uint32(sh), DepthOrArrayLayers: 1},
		}})
	})
	if err != nil {
		return err
	}
	d.blits++
	backend.Logger().Debug("wgpu: blit", "width", sw, "height", sh, "samples", from.samples())
	return nil
}

// submit records commands, submits them and waits for completion.
func (d *Device) submit(label string, record func(hal.CommandEncoder)) error {
	enc, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return fmt.Errorf("wgpu: create encoder: %w", err)
	}
	defer enc.Destroy()
	if err := enc.BeginEncoding(label); err != nil {
		return fmt.Errorf("wgpu: begin encoding: %w", err)
	}
	record(enc)
	cmd, err := enc.EndEncoding()
	if err != nil {
		return fmt.Errorf("wgpu: end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmd)
	if _, err := d.queue.Submit([]hal.CommandBuffer{cmd}); err != nil {
		return fmt.Errorf("wgpu: submit: %w", err)
	}
	if err := d.device.WaitIdle(); err != nil {
		return fmt.Errorf("wgpu: wait: %w", err)
	}
	return nil
}

// readback copies size bytes produced by record into a staging buffer and
// returns them.
func (d *Device) readback(label string, size int, record func(enc hal.CommandEncoder, staging hal.Buffer)) ([]byte, error) {
	staging, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  uint64(align(size, 4)),
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create staging buffer: %w", err)
	}
	defer d.device.DestroyBuffer(staging)

	if err := d.submit(label, func(enc hal.CommandEncoder) { record(enc, staging) }); err != nil {
		return nil, err
	}
	m, err := d.device.MapBuffer(staging, 0, uint64(align(size, 4)))
	if err != nil {
		return nil, fmt.Errorf("wgpu: map staging buffer: %w", err)
	}
	out := make([]byte, size)
	copy(out, unsafe.Slice((*byte)(m.Ptr), size))
	if err := d.device.UnmapBuffer(staging); err != nil {
		return nil, fmt.Errorf("wgpu: unmap staging buffer: %w", err)
	}
	return out, nil
}

// Close implements backend.Device. Owned devices are destroyed.
func (d *Device) Close() {
	if d.live.Resources() > 0 {
		backend.Logger().Warn("wgpu: device closed with live resources",
			"textures", d.live.Textures, "buffers", d.live.Buffers,
			"renderbuffers", d.live.Renderbuffers, "framebuffers", d.live.Framebuffers)
	}
	d.bound = nil
	if d.instance == nil {
		return
	}
	if err := d.device.WaitIdle(); err != nil {
		backend.Logger().Warn("wgpu: wait idle on close", "err", err)
	}
	d.device.Destroy()
	d.instance.Destroy()
	d.instance = nil
}

func align(n, a int) int {
	return (n + a - 1) / a * a
}
