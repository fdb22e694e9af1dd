// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package soft implements backend.Device in system memory.
//
// It is the reference backend: every capability in backend.Caps can be
// switched off through Config, storage is real (uploads can be read back,
// blits move pixels), and the device counts live resources and resolve blits
// so that resource lifecycle rules can be verified without a GPU.
package soft

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpures/backend"
	"github.com/gogpu/gpures/internal/shaderreflect"
	"github.com/gogpu/gpures/pixel"
)

// ErrOutOfMemory is returned when an allocation would exceed Config.MaxBytes.
var ErrOutOfMemory = errors.New("soft: out of memory")

func init() {
	backend.Register(backend.NameSoft, func() (backend.Device, error) {
		return New(Config{Caps: DefaultCaps()}), nil
	})
}

// Config configures a soft device.
type Config struct {
	Caps backend.Caps

	// MaxBytes limits resident texture, buffer and renderbuffer storage.
	// Zero means unlimited.
	MaxBytes int
}

// DefaultCaps reports every capability.
func DefaultCaps() backend.Caps {
	var features gputypes.Features
	features.Insert(gputypes.FeatureTextureCompressionBC)
	return backend.Caps{
		AutoMipmaps:         true,
		MultisampleBlit:     true,
		MaxSamples:          8,
		PackedDepthStencil:  true,
		Features:            features,
		VertexBufferObjects: true,
		HalfFloatVertex:     true,
		MaxColorAttachments: 8,
		MaxTextureSize:      16384,
		Texture3D:           true,
		TextureArray:        true,
		TextureCube:         true,
		TextureRectangle:    true,
	}
}

// Counts is a snapshot of live device objects.
type Counts = backend.Counts

// Device is a system-memory device.
type Device struct {
	cfg   Config
	live  Counts
	bound *Framebuffer
	blits int
}

var _ backend.Device = (*Device)(nil)

// New creates a device.
func New(cfg Config) *Device {
	return &Device{cfg: cfg}
}

// Name implements backend.Device.
func (d *Device) Name() string { return backend.NameSoft }

// Caps implements backend.Device.
func (d *Device) Caps() backend.Caps { return d.cfg.Caps }

// Live returns the live object counts.
func (d *Device) Live() Counts { return d.live }

// Blits returns the number of resolve blits performed.
func (d *Device) Blits() int { return d.blits }

// Bound returns the bound framebuffer, nil for the default target.
func (d *Device) Bound() *Framebuffer { return d.bound }

func (d *Device) reserve(n int) error {
	if d.cfg.MaxBytes > 0 && d.live.Bytes+n > d.cfg.MaxBytes {
		return fmt.Errorf("%w: %d bytes requested, %d of %d in use",
			ErrOutOfMemory, n, d.live.Bytes, d.cfg.MaxBytes)
	}
	d.live.Bytes += n
	return nil
}

func (d *Device) release(n int) { d.live.Bytes -= n }

// CreateProgram implements backend.Device.
func (d *Device) CreateProgram() (backend.Program, error) {
	d.live.Programs++
	return &program{Program: shaderreflect.NewProgram(), dev: d}, nil
}

type program struct {
	*shaderreflect.Program
	dev       *Device
	destroyed bool
}

func (p *program) Destroy() {
	if p.destroyed {
		return
	}
	p.destroyed = true
	p.Program.Destroy()
	p.dev.live.Programs--
}

// BindFramebuffer implements backend.Device.
func (d *Device) BindFramebuffer(fb backend.Framebuffer) error {
	if fb == nil {
		d.bound = nil
		return nil
	}
	sf, ok := fb.(*Framebuffer)
	if !ok || sf.destroyed {
		return fmt.Errorf("%w: framebuffer", backend.ErrDestroyed)
	}
	d.bound = sf
	return nil
}

// Blit implements backend.Device. Color attachment 0 of src is resolved
// into color attachment 0 of dst.
func (d *Device) Blit(src, dst backend.Framebuffer) error {
	if !d.cfg.Caps.MultisampleBlit {
		return fmt.Errorf("%w: blit", backend.ErrUnsupported)
	}
	s, ok1 := src.(*Framebuffer)
	t, ok2 := dst.(*Framebuffer)
	if !ok1 || !ok2 {
		return fmt.Errorf("%w: foreign framebuffer", backend.ErrUnsupported)
	}
	if st := s.Status(); st != backend.FramebufferComplete {
		return fmt.Errorf("soft: blit source %s", st)
	}
	if st := t.Status(); st != backend.FramebufferComplete {
		return fmt.Errorf("soft: blit destination %s", st)
	}
	from, ok1 := s.attachments[backend.ColorAttachment(0)]
	to, ok2 := t.attachments[backend.ColorAttachment(0)]
	if !ok1 || !ok2 {
		return fmt.Errorf("soft: blit needs color attachment 0 on both framebuffers")
	}
	sw, sh := from.size()
	tw, th := to.size()
	if sw != tw || sh != th {
		return fmt.Errorf("%w: blit %dx%d to %dx%d", backend.ErrOutOfRange, sw, sh, tw, th)
	}

	data, err := pixel.Convert(to.format(), from.format(), from.read())
	if err != nil {
		return err
	}
	to.write(data)
	d.blits++
	backend.Logger().Debug("soft: blit", "width", sw, "height", sh)
	return nil
}

// Clear fills every color attachment of the bound framebuffer with c.
// It stands in for draw calls in tests and tools.
func (d *Device) Clear(c pixel.Texel) error {
	if d.bound == nil {
		return fmt.Errorf("soft: no framebuffer bound")
	}
	for p, a := range d.bound.attachments {
		if !p.IsColor() {
			continue
		}
		w, h := a.size()
		f := a.format()
		buf := make([]byte, f.NumOfBytes(w, h, 1))
		for i := range w * h {
			if err := pixel.Encode(f, buf, i, c); err != nil {
				return err
			}
		}
		a.write(buf)
	}
	return nil
}

// Close implements backend.Device.
func (d *Device) Close() {
	if d.live.Resources() > 0 {
		backend.Logger().Warn("soft: device closed with live resources",
			"textures", d.live.Textures, "buffers", d.live.Buffers,
			"renderbuffers", d.live.Renderbuffers, "framebuffers", d.live.Framebuffers)
	}
	d.bound = nil
}
