// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"fmt"
	"math/bits"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpures/backend"
	"github.com/gogpu/gpures/pixel"
)

// hostFormat is the layout uploaded bytes take for storage format f: the
// pixel format whose bytes match f's HAL format exactly.
func hostFormat(f pixel.Format) pixel.Format {
	switch f.GPUFormat() {
	case gputypes.TextureFormatRGBA8Unorm:
		return pixel.R8G8B8A8
	case gputypes.TextureFormatRG8Unorm:
		return pixel.L8A8
	}
	return f
}

func aspectOf(f pixel.Format) gputypes.TextureAspect {
	if f.IsDepth() {
		return gputypes.TextureAspectDepthOnly
	}
	return gputypes.TextureAspectAll
}

// Texture is HAL image storage.
type Texture struct {
	dev        *Device
	desc       backend.TextureDesc
	raw        hal.Texture
	host       pixel.Format
	compressed bool
	destroyed  bool
}

var _ backend.Texture = (*Texture)(nil)

// CreateTexture implements backend.Device. Compressed formats the adapter
// cannot sample are stored uncompressed.
func (d *Device) CreateTexture(desc backend.TextureDesc) (backend.Texture, error) {
	caps := d.caps
	switch {
	case !desc.Format.IsValid():
		return nil, fmt.Errorf("%w: format %v", backend.ErrUnsupported, desc.Format)
	case !caps.SupportsKind(desc.Kind):
		return nil, fmt.Errorf("%w: %v textures", backend.ErrUnsupported, desc.Kind)
	case desc.Width <= 0 || desc.Height <= 0 || desc.Depth <= 0:
		return nil, fmt.Errorf("%w: size %dx%dx%d", backend.ErrOutOfRange, desc.Width, desc.Height, desc.Depth)
	case caps.MaxTextureSize > 0 && max(desc.Width, desc.Height) > caps.MaxTextureSize:
		return nil, fmt.Errorf("%w: size %dx%d exceeds %d", backend.ErrOutOfRange, desc.Width, desc.Height, caps.MaxTextureSize)
	case desc.Levels <= 0 || desc.Levels > maxLevels(desc):
		return nil, fmt.Errorf("%w: %d mip levels", backend.ErrOutOfRange, desc.Levels)
	case desc.Kind == backend.TextureCube && desc.Width != desc.Height:
		return nil, fmt.Errorf("%w: cube faces must be square", backend.ErrOutOfRange)
	}

	t := &Texture{
		dev:        d,
		desc:       desc,
		compressed: desc.Format.IsCompressed() && caps.SupportsFormat(desc.Format),
	}
	if err := t.allocate(); err != nil {
		return nil, err
	}
	d.live.Textures++
	d.live.Bytes += t.bytes()
	return t, nil
}

func maxLevels(desc backend.TextureDesc) int {
	m := max(desc.Width, desc.Height)
	if desc.Kind == backend.Texture3D {
		m = max(m, desc.Depth)
	}
	return bits.Len(uint(m))
}

// allocate creates the HAL texture for the current storage format.
func (t *Texture) allocate() error {
	t.host = hostFormat(t.storage())
	usage := gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst | gputypes.TextureUsageCopySrc
	if t.desc.RenderTarget {
		usage |= gputypes.TextureUsageRenderAttachment
	}
	raw, err := t.dev.device.CreateTexture(&hal.TextureDescriptor{
		Label:         t.desc.Label,
		Size:          hal.Extent3D{Width: uint32(t.desc.Width), Height: uint32(t.desc.Height), DepthOrArrayLayers: uint32(t.layers())},
		MipLevelCount: uint32(t.desc.Levels),
		SampleCount:   1,
		Dimension:     dimensionOf(t.desc.Kind),
		Format:        t.host.GPUFormat(),
		Usage:         usage,
	})
	if err != nil {
		return fmt.Errorf("wgpu: create texture: %w", err)
	}
	t.raw = raw
	return nil
}

func dimensionOf(k backend.TextureKind) gputypes.TextureDimension {
	switch k {
	case backend.Texture1D:
		return gputypes.TextureDimension1D
	case backend.Texture3D:
		return gputypes.TextureDimension3D
	default:
		return gputypes.TextureDimension2D
	}
}

// layers is DepthOrArrayLayers of level 0.
func (t *Texture) layers() int {
	switch t.desc.Kind {
	case backend.TextureCube:
		return 6
	case backend.Texture2DArray, backend.Texture3D:
		return t.desc.Depth
	default:
		return 1
	}
}

func (t *Texture) bytes() int {
	n := 0
	for l := range t.desc.Levels {
		w, h, d := t.desc.LevelSize(l)
		n += t.host.NumOfBytes(w, h, d) * t.desc.Kind.Faces()
	}
	return n
}

// Desc implements backend.Texture.
func (t *Texture) Desc() backend.TextureDesc { return t.desc }

// Compressed implements backend.Texture.
func (t *Texture) Compressed() bool { return t.compressed }

func (t *Texture) storage() pixel.Format {
	if t.compressed {
		return t.desc.Format
	}
	return t.desc.Format.Uncompressed()
}

func (t *Texture) check(level, face int) error {
	if t.destroyed {
		return backend.ErrDestroyed
	}
	if level < 0 || level >= t.desc.Levels {
		return fmt.Errorf("%w: level %d of %d", backend.ErrOutOfRange, level, t.desc.Levels)
	}
	if face < 0 || face >= t.desc.Kind.Faces() {
		return fmt.Errorf("%w: face %d", backend.ErrOutOfRange, face)
	}
	return nil
}

// region returns the copy origin and extent of one level of one face.
// Compressed extents cover whole blocks.
func (t *Texture) region(level, face int) (hal.ImageCopyTexture, hal.Extent3D) {
	w, h, d := t.desc.LevelSize(level)
	if t.host.IsCompressed() {
		w, h = align(w, pixel.BlockDim), align(h, pixel.BlockDim)
	}
	base := hal.ImageCopyTexture{
		Texture:  t.raw,
		MipLevel: uint32(level),
		Origin:   hal.Origin3D{Z: uint32(face)},
		Aspect:   aspectOf(t.host),
	}
	return base, hal.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: uint32(d)}
}

// rows returns the number of texel rows (block rows for compressed
// formats) in one slice of level.
func (t *Texture) rows(level int) int {
	_, h, _ := t.desc.LevelSize(level)
	if t.host.IsCompressed() {
		return align(h, pixel.BlockDim) / pixel.BlockDim
	}
	return h
}

// WriteLevel implements backend.Texture. Uncompressed data written into
// compressed storage reallocates the texture uncompressed; earlier levels
// are lost.
func (t *Texture) WriteLevel(level, face int, src pixel.Format, data []byte) error {
	if err := t.check(level, face); err != nil {
		return err
	}
	w, h, d := t.desc.LevelSize(level)
	if want := src.NumOfBytes(w, h, d); len(data) != want {
		return fmt.Errorf("%w: level %d has %d bytes, want %d", pixel.ErrSize, level, len(data), want)
	}

	if src.IsCompressed() {
		if src != t.desc.Format || !t.compressed {
			return fmt.Errorf("%w: %v data into %v storage", backend.ErrUnsupported, src, t.storage())
		}
		return t.write(level, face, data)
	}

	if t.compressed {
		backend.Logger().Debug("wgpu: uncompressed upload into compressed storage",
			"format", t.desc.Format, "src", src)
		old := t.bytes()
		t.dev.device.DestroyTexture(t.raw)
		t.compressed = false
		if err := t.allocate(); err != nil {
			t.raw = nil
			t.destroyed = true
			t.dev.live.Textures--
			t.dev.live.Bytes -= old
			return err
		}
		t.dev.live.Bytes += t.bytes() - old
	}
	if t.host.GPUFormat() == gputypes.TextureFormatDepth24Plus {
		return fmt.Errorf("%w: uploads to %v", backend.ErrUnsupported, t.host)
	}
	conv, err := pixel.Convert(t.host, src, data)
	if err != nil {
		return err
	}
	return t.write(level, face, conv)
}

func (t *Texture) write(level, face int, data []byte) error {
	base, extent := t.region(level, face)
	layout := hal.ImageDataLayout{
		BytesPerRow:  uint32(t.host.RowBytes(int(extent.Width))),
		RowsPerImage: uint32(extent.Height),
	}
	if err := t.dev.queue.WriteTexture(&base, data, &layout, &extent); err != nil {
		return fmt.Errorf("wgpu: write texture level %d: %w", level, err)
	}
	return nil
}

// ReadLevel implements backend.Texture.
func (t *Texture) ReadLevel(level, face int) ([]byte, error) {
	if err := t.check(level, face); err != nil {
		return nil, err
	}
	base, extent := t.region(level, face)
	rowBytes := t.host.RowBytes(int(extent.Width))
	pitch := align(rowBytes, copyPitchAlignment)
	rows := t.rows(level)
	slices := int(extent.DepthOrArrayLayers)

	padded, err := t.dev.readback("texture readback", pitch*rows*slices, func(enc hal.CommandEncoder, staging hal.Buffer) {
		enc.CopyTextureToBuffer(t.raw, staging, []hal.BufferTextureCopy{{
			BufferLayout: hal.ImageDataLayout{BytesPerRow: uint32(pitch), RowsPerImage: uint32(extent.Height)},
			TextureBase:  base,
			Size:         extent,
		}})
	})
	if err != nil {
		return nil, err
	}

	tight := make([]byte, rowBytes*rows*slices)
	for r := range rows * slices {
		copy(tight[r*rowBytes:(r+1)*rowBytes], padded[r*pitch:])
	}
	if t.host.IsCompressed() || t.host == t.storage() {
		return tight, nil
	}
	return pixel.Convert(t.storage(), t.host, tight)
}

// GenerateMipmaps implements backend.Texture. WebGPU has no mipmap
// generation.
func (t *Texture) GenerateMipmaps() error {
	if t.destroyed {
		return backend.ErrDestroyed
	}
	return fmt.Errorf("%w: automatic mipmaps", backend.ErrUnsupported)
}

// Destroy implements backend.Texture.
func (t *Texture) Destroy() {
	if t.destroyed {
		return
	}
	t.destroyed = true
	t.dev.device.DestroyTexture(t.raw)
	t.raw = nil
	t.dev.live.Textures--
	t.dev.live.Bytes -= t.bytes()
}

// Renderbuffer is a render-attachment texture that is never sampled.
type Renderbuffer struct {
	dev       *Device
	desc      backend.RenderbufferDesc
	raw       hal.Texture
	view      hal.TextureView
	destroyed bool
}

var _ backend.Renderbuffer = (*Renderbuffer)(nil)

// CreateRenderbuffer implements backend.Device.
func (d *Device) CreateRenderbuffer(desc backend.RenderbufferDesc) (backend.Renderbuffer, error) {
	caps := d.caps
	switch {
	case !desc.Format.IsValid() || desc.Format.IsCompressed():
		return nil, fmt.Errorf("%w: renderbuffer format %v", backend.ErrUnsupported, desc.Format)
	case desc.Width <= 0 || desc.Height <= 0:
		return nil, fmt.Errorf("%w: renderbuffer %dx%d", backend.ErrOutOfRange, desc.Width, desc.Height)
	case desc.Samples > 1 && (!caps.MultisampleBlit || desc.Samples > caps.MaxSamples):
		return nil, fmt.Errorf("%w: %d samples", backend.ErrUnsupported, desc.Samples)
	case desc.DepthStencil && (!caps.PackedDepthStencil || desc.Format != pixel.D24):
		return nil, fmt.Errorf("%w: packed depth-stencil %v", backend.ErrUnsupported, desc.Format)
	}

	format := hostFormat(desc.Format).GPUFormat()
	if desc.DepthStencil {
		format = gputypes.TextureFormatDepth24PlusStencil8
	}
	samples := uint32(1)
	if desc.Samples > 1 {
		samples = multisampleCount
	}
	raw, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "renderbuffer",
		Size:          hal.Extent3D{Width: uint32(desc.Width), Height: uint32(desc.Height), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   samples,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create renderbuffer: %w", err)
	}
	view, err := d.device.CreateTextureView(raw, &hal.TextureViewDescriptor{
		Label:         "renderbuffer",
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		d.device.DestroyTexture(raw)
		return nil, fmt.Errorf("wgpu: create renderbuffer view: %w", err)
	}
	d.live.Renderbuffers++
	d.live.Bytes += rbBytes(desc)
	return &Renderbuffer{dev: d, desc: desc, raw: raw, view: view}, nil
}

func rbBytes(desc backend.RenderbufferDesc) int {
	n := hostFormat(desc.Format).NumOfBytes(desc.Width, desc.Height, 1)
	if desc.Samples > 1 {
		n *= multisampleCount
	}
	return n
}

// Desc implements backend.Renderbuffer.
func (r *Renderbuffer) Desc() backend.RenderbufferDesc { return r.desc }

// Destroy implements backend.Renderbuffer.
func (r *Renderbuffer) Destroy() {
	if r.destroyed {
		return
	}
	r.destroyed = true
	r.dev.device.DestroyTextureView(r.view)
	r.dev.device.DestroyTexture(r.raw)
	r.view, r.raw = nil, nil
	r.dev.live.Renderbuffers--
	r.dev.live.Bytes -= rbBytes(r.desc)
}
