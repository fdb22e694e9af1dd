// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build cgo && !nogl

package gl

import (
	"errors"
	"fmt"

	"github.com/go-gl/gl/v3.3-core/gl"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpures/backend"
)

// Sentinel errors.
var (
	// ErrNoContext is returned by New when no GL context is current.
	ErrNoContext = errors.New("gl: no current context")

	// ErrGL wraps a GL error code.
	ErrGL = errors.New("gl: error")
)

func init() {
	backend.Register(backend.NameGL, func() (backend.Device, error) {
		return New()
	})
}

// Device is a backend.Device over the current GL context.
type Device struct {
	version  string
	renderer string
	caps     backend.Caps

	live  backend.Counts
	bound *Framebuffer
	blits int
}

var _ backend.Device = (*Device)(nil)

// New loads GL entry points and wraps the current context.
func New() (*Device, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("gl: init: %w", err)
	}
	v := gl.GetString(gl.VERSION)
	if v == nil {
		return nil, ErrNoContext
	}
	d := &Device{
		version:  gl.GoStr(v),
		renderer: gl.GoStr(gl.GetString(gl.RENDERER)),
		caps:     queryCaps(),
	}
	backend.Logger().Info("gl: context wrapped", "version", d.version, "renderer", d.renderer)
	return d, nil
}

func queryCaps() backend.Caps {
	var samples, colors, size int32
	gl.GetIntegerv(gl.MAX_SAMPLES, &samples)
	gl.GetIntegerv(gl.MAX_COLOR_ATTACHMENTS, &colors)
	gl.GetIntegerv(gl.MAX_TEXTURE_SIZE, &size)

	caps := backend.Caps{
		AutoMipmaps:         true,
		MultisampleBlit:     samples > 1,
		MaxSamples:          max(1, int(samples)),
		PackedDepthStencil:  true,
		VertexBufferObjects: true,
		HalfFloatVertex:     true,
		MaxColorAttachments: int(colors),
		MaxTextureSize:      int(size),
		Texture3D:           true,
		TextureArray:        true,
		TextureCube:         true,
		TextureRectangle:    true,
	}
	// RGTC is core; S3TC is not.
	if hasExtension("GL_EXT_texture_compression_s3tc") {
		caps.Features.Insert(gputypes.FeatureTextureCompressionBC)
	}
	return caps
}

func hasExtension(name string) bool {
	var n int32
	gl.GetIntegerv(gl.NUM_EXTENSIONS, &n)
	for i := range uint32(n) {
		if gl.GoStr(gl.GetStringi(gl.EXTENSIONS, i)) == name {
			return true
		}
	}
	return false
}

// checkError drains the GL error queue and reports the first error.
func checkError(op string) error {
	first := gl.GetError()
	if first == gl.NO_ERROR {
		return nil
	}
	for gl.GetError() != gl.NO_ERROR {
	}
	return fmt.Errorf("%w: %s: 0x%04X", ErrGL, op, first)
}

// Name implements backend.Device.
func (d *Device) Name() string { return backend.NameGL }

// Caps implements backend.Device.
func (d *Device) Caps() backend.Caps { return d.caps }

// Version returns the GL_VERSION string.
func (d *Device) Version() string { return d.version }

// Renderer returns the GL_RENDERER string.
func (d *Device) Renderer() string { return d.renderer }

// Live returns the live object counts.
func (d *Device) Live() backend.Counts { return d.live }

// Blits returns the number of resolve blits performed.
func (d *Device) Blits() int { return d.blits }

// BindFramebuffer implements backend.Device.
func (d *Device) BindFramebuffer(fb backend.Framebuffer) error {
	if fb == nil {
		gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
		d.bound = nil
		return nil
	}
	f, ok := fb.(*Framebuffer)
	if !ok || f.handle == 0 {
		return fmt.Errorf("%w: framebuffer", backend.ErrDestroyed)
	}
	gl.BindFramebuffer(gl.FRAMEBUFFER, f.handle)
	d.bound = f
	return nil
}

// Bound returns the bound framebuffer, nil for the default target.
func (d *Device) Bound() *Framebuffer { return d.bound }

// restoreBinding rebinds the framebuffer the caller last bound.
func (d *Device) restoreBinding() {
	var h uint32
	if d.bound != nil {
		h = d.bound.handle
	}
	gl.BindFramebuffer(gl.FRAMEBUFFER, h)
}

// Blit implements backend.Device.
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
		return fmt.Errorf("gl: blit source %s", st)
	}
	if st := t.Status(); st != backend.FramebufferComplete {
		return fmt.Errorf("gl: blit destination %s", st)
	}
	sw, sh, ok1 := s.colorSize()
	tw, th, ok2 := t.colorSize()
	if !ok1 || !ok2 {
		return fmt.Errorf("gl: blit needs color attachment 0 on both framebuffers")
	}
	if sw != tw || sh != th {
		return fmt.Errorf("%w: blit %dx%d to %dx%d", backend.ErrOutOfRange, sw, sh, tw, th)
	}

	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, s.handle)
	gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, t.handle)
	gl.BlitFramebuffer(0, 0, int32(sw), int32(sh), 0, 0, int32(tw), int32(th), gl.COLOR_BUFFER_BIT, gl.NEAREST)
	d.restoreBinding()
	if err := checkError("blit"); err != nil {
		return err
	}
	d.blits++
	backend.Logger().Debug("gl: blit", "width", sw, "height", sh)
	return nil
}

// Close implements backend.Device. The context stays with the caller.
func (d *Device) Close() {
	if d.live.Resources() > 0 {
		backend.Logger().Warn("gl: device closed with live resources",
			"textures", d.live.Textures, "buffers", d.live.Buffers,
			"renderbuffers", d.live.Renderbuffers, "framebuffers", d.live.Framebuffers)
	}
	if d.bound != nil {
		gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
		d.bound = nil
	}
}
