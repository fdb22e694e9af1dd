// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpures/backend"
	"github.com/gogpu/gpures/pixel"
)

// attachment is a renderbuffer or a single-level, single-layer view of a
// texture.
type attachment struct {
	rb    *Renderbuffer
	tex   *Texture
	level int
	face  int
	view  hal.TextureView
	owned bool // view was created for this attachment
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
	if a.rb != nil && a.rb.desc.Samples > 1 {
		return multisampleCount
	}
	return 1
}

func (a attachment) destroyed() bool {
	if a.rb != nil {
		return a.rb.destroyed
	}
	return a.tex.destroyed
}

func (a attachment) raw() hal.Texture {
	if a.rb != nil {
		return a.rb.raw
	}
	return a.tex.raw
}

func (a attachment) copyBase() hal.ImageCopyTexture {
	return hal.ImageCopyTexture{
		Texture:  a.raw(),
		MipLevel: uint32(a.level),
		Origin:   hal.Origin3D{Z: uint32(a.face)},
		Aspect:   gputypes.TextureAspectAll,
	}
}

// Framebuffer is an attachment set used as a render pass target.
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
	if p.IsColor() && int(p) >= fb.dev.caps.MaxColorAttachments {
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
	if r.destroyed {
		return fmt.Errorf("%w: renderbuffer", backend.ErrDestroyed)
	}
	fb.Detach(p)
	fb.attachments[p] = attachment{rb: r, view: r.view}
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
	view, err := fb.dev.device.CreateTextureView(t.raw, &hal.TextureViewDescriptor{
		Label:           "attachment",
		Dimension:       gputypes.TextureViewDimension2D,
		Aspect:          aspectOf(t.host),
		BaseMipLevel:    uint32(level),
		MipLevelCount:   1,
		BaseArrayLayer:  uint32(face),
		ArrayLayerCount: 1,
	})
	if err != nil {
		return fmt.Errorf("wgpu: create attachment view: %w", err)
	}
	fb.Detach(p)
	fb.attachments[p] = attachment{tex: t, level: level, face: face, view: view, owned: true}
	return nil
}

// Detach implements backend.Framebuffer.
func (fb *Framebuffer) Detach(p backend.AttachmentPoint) {
	a, ok := fb.attachments[p]
	if !ok {
		return
	}
	if a.owned {
		fb.dev.device.DestroyTextureView(a.view)
	}
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
	for p := range fb.attachments {
		fb.Detach(p)
	}
	fb.destroyed = true
	fb.attachments = nil
	if fb.dev.bound == fb {
		fb.dev.bound = nil
	}
	fb.dev.live.Framebuffers--
}
