// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package soft

import (
	"fmt"

	"github.com/gogpu/gpures/backend"
	"github.com/gogpu/gpures/pixel"
)

// Renderbuffer is render-only storage. Multisampled content is kept at one
// sample per pixel.
type Renderbuffer struct {
	dev       *Device
	desc      backend.RenderbufferDesc
	data      []byte
	destroyed bool
}

var _ backend.Renderbuffer = (*Renderbuffer)(nil)

// CreateRenderbuffer implements backend.Device.
func (d *Device) CreateRenderbuffer(desc backend.RenderbufferDesc) (backend.Renderbuffer, error) {
	caps := d.cfg.Caps
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
	n := desc.Format.NumOfBytes(desc.Width, desc.Height, 1)
	if err := d.reserve(n * max(1, desc.Samples)); err != nil {
		return nil, err
	}
	d.live.Renderbuffers++
	return &Renderbuffer{dev: d, desc: desc, data: make([]byte, n)}, nil
}

// Desc implements backend.Renderbuffer.
func (r *Renderbuffer) Desc() backend.RenderbufferDesc { return r.desc }

// Destroy implements backend.Renderbuffer.
func (r *Renderbuffer) Destroy() {
	if r.destroyed {
		return
	}
	r.destroyed = true
	r.data = nil
	n := r.desc.Format.NumOfBytes(r.desc.Width, r.desc.Height, 1)
	r.dev.release(n * max(1, r.desc.Samples))
	r.dev.live.Renderbuffers--
}

// attachment is either a renderbuffer or a texture level/face.
type attachment struct {
	rb    *Renderbuffer
	tex   *Texture
	level int
	face  int
}

func (a attachment) size() (int, int) {
	if a.rb != nil {
		return a.rb.desc.Width, a.rb.desc.Height
	}
	w, h, _ := a.tex.desc.LevelSize(a.level)
	return w, h
}

func (a attachment) format() pixel.Format {
	if a.rb != nil {
		return a.rb.desc.Format
	}
	return a.tex.storage()
}

func (a attachment) samples() int {
	if a.rb != nil {
		return max(1, a.rb.desc.Samples)
	}
	return 1
}

func (a attachment) destroyed() bool {
	if a.rb != nil {
		return a.rb.destroyed
	}
	return a.tex.destroyed
}

func (a attachment) read() []byte {
	if a.rb != nil {
		return a.rb.data
	}
	data, _ := a.tex.ReadLevel(a.level, a.face)
	return data
}

func (a attachment) write(data []byte) {
	if a.rb != nil {
		copy(a.rb.data, data)
		return
	}
	if a.tex.levels[a.face][a.level] == nil {
		a.tex.levels[a.face][a.level] = make([]byte, len(data))
	}
	copy(a.tex.levels[a.face][a.level], data)
}

// Framebuffer is an attachment set.
type Framebuffer struct {
	dev         *Device
	attachments map[backend.AttachmentPoint]attachment
	destroyed   bool
}

var _ backend.Framebuffer = (*Framebuffer)(nil)

// CreateFramebuffer implements backend.Device.
func (d *Device) CreateFramebuffer() (backend.Framebuffer, error) {
	d.live.Framebuffers++
	return &Framebuffer{dev: d, attachments: map[backend.AttachmentPoint]attachment{}}, nil
}

func (fb *Framebuffer) checkPoint(p backend.AttachmentPoint) error {
	if fb.destroyed {
		return backend.ErrDestroyed
	}
	if p.IsColor() && int(p) >= fb.dev.cfg.Caps.MaxColorAttachments {
		return fmt.Errorf("%w: %v", backend.ErrOutOfRange, p)
	}
	return nil
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
	fb.attachments[p] = attachment{rb: r}
	return nil
}

// AttachTexture implements backend.Framebuffer.
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
	fb.attachments[p] = attachment{tex: t, level: level, face: face}
	return nil
}

// Detach implements backend.Framebuffer.
func (fb *Framebuffer) Detach(p backend.AttachmentPoint) {
	delete(fb.attachments, p)
}

// Attached reports whether p has an attachment.
func (fb *Framebuffer) Attached(p backend.AttachmentPoint) bool {
	_, ok := fb.attachments[p]
	return ok
}

// Status implements backend.Framebuffer.
func (fb *Framebuffer) Status() backend.FramebufferStatus {
	if fb.destroyed {
		return backend.FramebufferUndefined
	}
	atts := make([]backend.AttachmentInfo, 0, len(fb.attachments))
	for p, a := range fb.attachments {
		w, h := a.size()
		atts = append(atts, backend.AttachmentInfo{
			Point:     p,
			Format:    a.format(),
			Width:     w,
			Height:    h,
			Samples:   a.samples(),
			Destroyed: a.destroyed(),
		})
	}
	return backend.CheckAttachments(atts)
}

// Destroy implements backend.Framebuffer. Attachments are not destroyed.
func (fb *Framebuffer) Destroy() {
	if fb.destroyed {
		return
	}
	fb.destroyed = true
	fb.attachments = nil
	if fb.dev.bound == fb {
		fb.dev.bound = nil
	}
	fb.dev.live.Framebuffers--
}
