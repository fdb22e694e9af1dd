// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build cgo && !nogl

package gl

import (
	"fmt"

	"github.com/go-gl/gl/v3.3-core/gl"

	"github.com/gogpu/gpures/backend"
	"github.com/gogpu/gpures/pixel"
)

// Renderbuffer is a GL renderbuffer object.
type Renderbuffer struct {
	dev     *Device
	desc    backend.RenderbufferDesc
	handle  uint32
	samples int
}

var _ backend.Renderbuffer = (*Renderbuffer)(nil)

// CreateRenderbuffer implements backend.Device. Sample counts above the
// context maximum are clamped.
func (d *Device) CreateRenderbuffer(desc backend.RenderbufferDesc) (backend.Renderbuffer, error) {
	caps := d.caps
	g, host, ok := formatOf(desc.Format)
	switch {
	case !ok || desc.Format.IsCompressed():
		return nil, fmt.Errorf("%w: renderbuffer format %v", backend.ErrUnsupported, desc.Format)
	case desc.Width <= 0 || desc.Height <= 0:
		return nil, fmt.Errorf("%w: renderbuffer %dx%d", backend.ErrOutOfRange, desc.Width, desc.Height)
	case desc.Samples > 1 && !caps.MultisampleBlit:
		return nil, fmt.Errorf("%w: %d samples", backend.ErrUnsupported, desc.Samples)
	case desc.DepthStencil && desc.Format != pixel.D24:
		return nil, fmt.Errorf("%w: packed depth-stencil %v", backend.ErrUnsupported, desc.Format)
	}

	internal := g.internal
	if desc.DepthStencil {
		internal = gl.DEPTH24_STENCIL8
	}
	rb := &Renderbuffer{dev: d, desc: desc, samples: 1}
	gl.GenRenderbuffers(1, &rb.handle)
	gl.BindRenderbuffer(gl.RENDERBUFFER, rb.handle)
	if desc.Samples > 1 {
		rb.samples = min(desc.Samples, caps.MaxSamples)
		gl.RenderbufferStorageMultisample(gl.RENDERBUFFER, int32(rb.samples), internal, int32(desc.Width), int32(desc.Height))
	} else {
		gl.RenderbufferStorage(gl.RENDERBUFFER, internal, int32(desc.Width), int32(desc.Height))
	}
	gl.BindRenderbuffer(gl.RENDERBUFFER, 0)
	if err := checkError("create renderbuffer"); err != nil {
		gl.DeleteRenderbuffers(1, &rb.handle)
		return nil, err
	}
	d.live.Renderbuffers++
	d.live.Bytes += host.NumOfBytes(desc.Width, desc.Height, 1) * rb.samples
	return rb, nil
}

// Handle returns the GL renderbuffer name, 0 once destroyed.
func (r *Renderbuffer) Handle() uint32 { return r.handle }

// Samples returns the allocated sample count.
func (r *Renderbuffer) Samples() int { return r.samples }

// Desc implements backend.Renderbuffer.
func (r *Renderbuffer) Desc() backend.RenderbufferDesc { return r.desc }

// Destroy implements backend.Renderbuffer.
func (r *Renderbuffer) Destroy() {
	if r.handle == 0 {
		return
	}
	gl.DeleteRenderbuffers(1, &r.handle)
	r.handle = 0
	_, host, _ := formatOf(r.desc.Format)
	r.dev.live.Renderbuffers--
	r.dev.live.Bytes -= host.NumOfBytes(r.desc.Width, r.desc.Height, 1) * r.samples
}

type attachment struct {
	rb    *Renderbuffer
	tex   *Texture
	level int
}

// Framebuffer is a GL framebuffer object.
type Framebuffer struct {
	dev         *Device
	handle      uint32
	attachments map[backend.AttachmentPoint]attachment
}

var _ backend.Framebuffer = (*Framebuffer)(nil)

// CreateFramebuffer implements backend.Device.
func (d *Device) CreateFramebuffer() (backend.Framebuffer, error) {
	fb := &Framebuffer{dev: d, attachments: map[backend.AttachmentPoint]attachment{}}
	gl.GenFramebuffers(1, &fb.handle)
	if fb.handle == 0 {
		return nil, fmt.Errorf("%w: no framebuffer name", ErrGL)
	}
	d.live.Framebuffers++
	return fb, nil
}

// Handle returns the GL framebuffer name, 0 once destroyed.
func (fb *Framebuffer) Handle() uint32 { return fb.handle }

func (fb *Framebuffer) checkPoint(p backend.AttachmentPoint) error {
	if fb.handle == 0 {
		return backend.ErrDestroyed
	}
	if p.IsColor() && int(p) >= fb.dev.caps.MaxColorAttachments {
		return fmt.Errorf("%w: %v", backend.ErrOutOfRange, p)
	}
	return nil
}

// bind makes fb the target of attachment calls; the caller restores the
// device binding.
func (fb *Framebuffer) bind() {
	gl.BindFramebuffer(gl.FRAMEBUFFER, fb.handle)
}

// AttachRenderbuffer implements backend.Framebuffer.
func (fb *Framebuffer) AttachRenderbuffer(p backend.AttachmentPoint, rb backend.Renderbuffer) error {
	if err := fb.checkPoint(p); err != nil {
		return err
	}
	r, ok := rb.(*Renderbuffer)
	if !ok {
		return fmt.Errorf("%w: foreign renderbuffer", backend.ErrUnsupported)
	}
	if r.handle == 0 {
		return fmt.Errorf("%w: renderbuffer", backend.ErrDestroyed)
	}
	fb.bind()
	gl.FramebufferRenderbuffer(gl.FRAMEBUFFER, attachmentOf(p), gl.RENDERBUFFER, r.handle)
	fb.dev.restoreBinding()
	if err := checkError("attach renderbuffer"); err != nil {
		return err
	}
	fb.attachments[p] = attachment{rb: r}
	return nil
}

// AttachTexture implements backend.Framebuffer. Array and 3D textures
// attach their first layer.
func (fb *Framebuffer) AttachTexture(p backend.AttachmentPoint, tex backend.Texture, level, face int) error {
	if err := fb.checkPoint(p); err != nil {
		return err
	}
	t, ok := tex.(*Texture)
	if !ok {
		return fmt.Errorf("%w: foreign texture", backend.ErrUnsupported)
	}
	if err := t.check(level, face); err != nil {
		return err
	}
	fb.bind()
	point := attachmentOf(p)
	switch t.target {
	case gl.TEXTURE_1D:
		gl.FramebufferTexture1D(gl.FRAMEBUFFER, point, t.target, t.handle, int32(level))
	case gl.TEXTURE_2D_ARRAY, gl.TEXTURE_3D:
		gl.FramebufferTextureLayer(gl.FRAMEBUFFER, point, t.handle, int32(level), 0)
	default:
		gl.FramebufferTexture2D(gl.FRAMEBUFFER, point, imageTarget(t.desc.Kind, face), t.handle, int32(level))
	}
	fb.dev.restoreBinding()
	if err := checkError("attach texture"); err != nil {
		return err
	}
	fb.attachments[p] = attachment{tex: t, level: level}
	return nil
}

// Detach implements backend.Framebuffer.
func (fb *Framebuffer) Detach(p backend.AttachmentPoint) {
	if fb.handle == 0 {
		return
	}
	if _, ok := fb.attachments[p]; !ok {
		return
	}
	fb.bind()
	gl.FramebufferRenderbuffer(gl.FRAMEBUFFER, attachmentOf(p), gl.RENDERBUFFER, 0)
	fb.dev.restoreBinding()
	delete(fb.attachments, p)
}

// Attached reports whether p has an attachment.
func (fb *Framebuffer) Attached(p backend.AttachmentPoint) bool {
	_, ok := fb.attachments[p]
	return ok
}

// colorSize returns the size of color attachment 0.
func (fb *Framebuffer) colorSize() (int, int, bool) {
	a, ok := fb.attachments[backend.ColorAttachment(0)]
	if !ok {
		return 0, 0, false
	}
	if a.rb != nil {
		return a.rb.desc.Width, a.rb.desc.Height, true
	}
	w, h, _ := a.tex.desc.LevelSize(a.level)
	return w, h, true
}

// Status implements backend.Framebuffer.
func (fb *Framebuffer) Status() backend.FramebufferStatus {
	if fb.handle == 0 {
		return backend.FramebufferUndefined
	}
	fb.bind()
	st := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	fb.dev.restoreBinding()
	return statusOf(st)
}

// Destroy implements backend.Framebuffer. Attachments are not destroyed.
func (fb *Framebuffer) Destroy() {
	if fb.handle == 0 {
		return
	}
	if fb.dev.bound == fb {
		fb.dev.bound = nil
	}
	gl.DeleteFramebuffers(1, &fb.handle)
	fb.dev.restoreBinding()
	fb.handle = 0
	fb.attachments = nil
	fb.dev.live.Framebuffers--
}
