// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package soft

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gogpu/gpures/backend"
	"github.com/gogpu/gpures/pixel"
)

func newTestDevice() *Device {
	return New(Config{Caps: DefaultCaps()})
}

func TestRegistered(t *testing.T) {
	dev, err := backend.Get(backend.NameSoft)
	if err != nil {
		t.Fatalf("Get(soft) error = %v", err)
	}
	if dev.Name() != backend.NameSoft {
		t.Errorf("Name() = %q, want %q", dev.Name(), backend.NameSoft)
	}
}

func TestTexture_WriteRead(t *testing.T) {
	dev := newTestDevice()
	tex, err := dev.CreateTexture(backend.TextureDesc{
		Kind: backend.Texture2D, Format: pixel.R8G8B8A8, Width: 2, Height: 1, Depth: 1, Levels: 2,
	})
	if err != nil {
		t.Fatalf("CreateTexture() error = %v", err)
	}
	defer tex.Destroy()

	if err := tex.WriteLevel(0, 0, pixel.R8G8B8, []byte{1, 2, 3, 4, 5, 6}); err != nil {
		t.Fatalf("WriteLevel() error = %v", err)
	}
	got, err := tex.ReadLevel(0, 0)
	if err != nil {
		t.Fatalf("ReadLevel() error = %v", err)
	}
	if want := []byte{1, 2, 3, 255, 4, 5, 6, 255}; !bytes.Equal(got, want) {
		t.Errorf("ReadLevel() = %v, want %v", got, want)
	}

	if got, _ := tex.ReadLevel(1, 0); !bytes.Equal(got, make([]byte, 4)) {
		t.Errorf("unwritten level = %v, want zeros", got)
	}
}

func TestTexture_Errors(t *testing.T) {
	dev := newTestDevice()
	tex, err := dev.CreateTexture(backend.TextureDesc{
		Kind: backend.Texture2D, Format: pixel.L8, Width: 4, Height: 4, Depth: 1, Levels: 3,
	})
	if err != nil {
		t.Fatalf("CreateTexture() error = %v", err)
	}

	if err := tex.WriteLevel(3, 0, pixel.L8, []byte{0}); !errors.Is(err, backend.ErrOutOfRange) {
		t.Errorf("WriteLevel(level 3) error = %v, want ErrOutOfRange", err)
	}
	if err := tex.WriteLevel(0, 1, pixel.L8, make([]byte, 16)); !errors.Is(err, backend.ErrOutOfRange) {
		t.Errorf("WriteLevel(face 1) error = %v, want ErrOutOfRange", err)
	}
	if err := tex.WriteLevel(0, 0, pixel.L8, make([]byte, 15)); !errors.Is(err, pixel.ErrSize) {
		t.Errorf("WriteLevel(short) error = %v, want ErrSize", err)
	}
	tex.Destroy()
	if _, err := tex.ReadLevel(0, 0); !errors.Is(err, backend.ErrDestroyed) {
		t.Errorf("ReadLevel(destroyed) error = %v, want ErrDestroyed", err)
	}

	if _, err := dev.CreateTexture(backend.TextureDesc{
		Kind: backend.Texture2D, Format: pixel.L8, Width: 4, Height: 4, Depth: 1, Levels: 4,
	}); !errors.Is(err, backend.ErrOutOfRange) {
		t.Errorf("CreateTexture(4 levels of 4x4) error = %v, want ErrOutOfRange", err)
	}
}

func TestTexture_Compression(t *testing.T) {
	dev := newTestDevice()
	desc := backend.TextureDesc{Kind: backend.Texture2D, Format: pixel.DXT1, Width: 4, Height: 4, Depth: 1, Levels: 1}

	tex, _ := dev.CreateTexture(desc)
	if err := tex.WriteLevel(0, 0, pixel.DXT1, pixel.White(pixel.DXT1, 4, 4, 1)); err != nil {
		t.Fatalf("WriteLevel(DXT1) error = %v", err)
	}
	if !tex.Compressed() {
		t.Error("Compressed() after precompressed upload = false, want true")
	}
	if err := tex.WriteLevel(0, 0, pixel.DXT5, make([]byte, 16)); !errors.Is(err, backend.ErrUnsupported) {
		t.Errorf("WriteLevel(DXT5 into DXT1) error = %v, want ErrUnsupported", err)
	}
	tex.Destroy()

	tex, _ = dev.CreateTexture(desc)
	if err := tex.WriteLevel(0, 0, pixel.R8G8B8, make([]byte, 48)); err != nil {
		t.Fatalf("WriteLevel(R8G8B8) error = %v", err)
	}
	if tex.Compressed() {
		t.Error("Compressed() after uncompressed upload = true, want false")
	}
	tex.Destroy()

	noBC := New(Config{Caps: backend.Caps{}})
	tex, _ = noBC.CreateTexture(desc)
	if tex.Compressed() {
		t.Error("Compressed() without BC feature = true, want false")
	}
}

func TestTexture_GenerateMipmaps(t *testing.T) {
	dev := newTestDevice()
	tex, _ := dev.CreateTexture(backend.TextureDesc{
		Kind: backend.Texture2D, Format: pixel.L8, Width: 4, Height: 4, Depth: 1, Levels: 3,
	})
	level0 := bytes.Repeat([]byte{80}, 16)
	_ = tex.WriteLevel(0, 0, pixel.L8, level0)
	if err := tex.GenerateMipmaps(); err != nil {
		t.Fatalf("GenerateMipmaps() error = %v", err)
	}
	if got, _ := tex.ReadLevel(2, 0); !bytes.Equal(got, []byte{80}) {
		t.Errorf("level 2 = %v, want [80]", got)
	}

	off := New(Config{Caps: backend.Caps{}})
	tex2, _ := off.CreateTexture(backend.TextureDesc{
		Kind: backend.Texture2D, Format: pixel.L8, Width: 4, Height: 4, Depth: 1, Levels: 3,
	})
	if err := tex2.GenerateMipmaps(); !errors.Is(err, backend.ErrUnsupported) {
		t.Errorf("GenerateMipmaps() without caps error = %v, want ErrUnsupported", err)
	}
}

func TestDevice_OutOfMemory(t *testing.T) {
	dev := New(Config{Caps: DefaultCaps(), MaxBytes: 64})
	_, err := dev.CreateTexture(backend.TextureDesc{
		Kind: backend.Texture2D, Format: pixel.R8G8B8A8, Width: 8, Height: 8, Depth: 1, Levels: 1,
	})
	if !errors.Is(err, ErrOutOfMemory) {
		t.Errorf("CreateTexture() error = %v, want ErrOutOfMemory", err)
	}
	if got := dev.Live(); got.Textures != 0 || got.Bytes != 0 {
		t.Errorf("Live() = %+v, want nothing allocated", got)
	}
}

func TestBuffer_MapCommitsOnUnmap(t *testing.T) {
	dev := newTestDevice()
	buf, err := dev.CreateBuffer(backend.BufferDesc{Size: 4})
	if err != nil {
		t.Fatalf("CreateBuffer() error = %v", err)
	}
	defer buf.Destroy()

	m, err := buf.Map(backend.MapWrite)
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}
	copy(m, []byte{9, 8, 7, 6})
	if _, err := buf.Map(backend.MapRead); !errors.Is(err, backend.ErrAlreadyMapped) {
		t.Errorf("Map(twice) error = %v, want ErrAlreadyMapped", err)
	}

	out := make([]byte, 4)
	_ = buf.Read(0, out)
	if !bytes.Equal(out, make([]byte, 4)) {
		t.Errorf("Read() while mapped = %v, want zeros", out)
	}

	if err := buf.Unmap(); err != nil {
		t.Fatalf("Unmap() error = %v", err)
	}
	_ = buf.Read(0, out)
	if !bytes.Equal(out, []byte{9, 8, 7, 6}) {
		t.Errorf("Read() after Unmap = %v, want [9 8 7 6]", out)
	}
	if err := buf.Unmap(); !errors.Is(err, backend.ErrNotMapped) {
		t.Errorf("Unmap(twice) error = %v, want ErrNotMapped", err)
	}
	if err := buf.Write(2, []byte{1, 2, 3}); !errors.Is(err, backend.ErrOutOfRange) {
		t.Errorf("Write(overflow) error = %v, want ErrOutOfRange", err)
	}
}

func TestBuffer_NoVBO(t *testing.T) {
	dev := New(Config{Caps: backend.Caps{}})
	if _, err := dev.CreateBuffer(backend.BufferDesc{Size: 4}); !errors.Is(err, backend.ErrUnsupported) {
		t.Errorf("CreateBuffer() error = %v, want ErrUnsupported", err)
	}
}

func TestFramebuffer_Status(t *testing.T) {
	dev := newTestDevice()
	rb := func(f pixel.Format, w, h, samples int) backend.Renderbuffer {
		r, err := dev.CreateRenderbuffer(backend.RenderbufferDesc{Format: f, Width: w, Height: h, Samples: samples})
		if err != nil {
			t.Fatalf("CreateRenderbuffer() error = %v", err)
		}
		return r
	}

	tests := []struct {
		name   string
		attach map[backend.AttachmentPoint]backend.Renderbuffer
		want   backend.FramebufferStatus
	}{
		{"empty", nil, backend.FramebufferMissingAttachment},
		{"complete", map[backend.AttachmentPoint]backend.Renderbuffer{
			backend.ColorAttachment(0): rb(pixel.R8G8B8A8, 4, 4, 1),
			backend.AttachDepth:        rb(pixel.D16, 4, 4, 1),
		}, backend.FramebufferComplete},
		{"dimensions", map[backend.AttachmentPoint]backend.Renderbuffer{
			backend.ColorAttachment(0): rb(pixel.R8G8B8A8, 4, 4, 1),
			backend.AttachDepth:        rb(pixel.D16, 8, 8, 1),
		}, backend.FramebufferIncompleteDimensions},
		{"depth in color slot", map[backend.AttachmentPoint]backend.Renderbuffer{
			backend.ColorAttachment(0): rb(pixel.D24, 4, 4, 1),
		}, backend.FramebufferIncompleteAttachment},
		{"samples", map[backend.AttachmentPoint]backend.Renderbuffer{
			backend.ColorAttachment(0): rb(pixel.R8G8B8A8, 4, 4, 4),
			backend.AttachDepth:        rb(pixel.D16, 4, 4, 1),
		}, backend.FramebufferIncompleteMultisample},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb, _ := dev.CreateFramebuffer()
			defer fb.Destroy()
			for p, r := range tt.attach {
				if err := fb.AttachRenderbuffer(p, r); err != nil {
					t.Fatalf("AttachRenderbuffer(%v) error = %v", p, err)
				}
			}
			if got := fb.Status(); got != tt.want {
				t.Errorf("Status() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDevice_ClearAndBlit(t *testing.T) {
	dev := newTestDevice()
	msaa, _ := dev.CreateRenderbuffer(backend.RenderbufferDesc{Format: pixel.R8G8B8A8, Width: 2, Height: 2, Samples: 4})
	src, _ := dev.CreateFramebuffer()
	_ = src.AttachRenderbuffer(backend.ColorAttachment(0), msaa)

	tex, _ := dev.CreateTexture(backend.TextureDesc{
		Kind: backend.Texture2D, Format: pixel.R8G8B8A8, Width: 2, Height: 2, Depth: 1, Levels: 1, RenderTarget: true,
	})
	dst, _ := dev.CreateFramebuffer()
	_ = dst.AttachTexture(backend.ColorAttachment(0), tex, 0, 0)

	if err := dev.BindFramebuffer(src); err != nil {
		t.Fatalf("BindFramebuffer() error = %v", err)
	}
	if err := dev.Clear(pixel.Texel{1, 0, 0, 1}); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if err := dev.Blit(src, dst); err != nil {
		t.Fatalf("Blit() error = %v", err)
	}
	if dev.Blits() != 1 {
		t.Errorf("Blits() = %d, want 1", dev.Blits())
	}
	got, _ := tex.ReadLevel(0, 0)
	if want := bytes.Repeat([]byte{255, 0, 0, 255}, 4); !bytes.Equal(got, want) {
		t.Errorf("resolved = %v, want %v", got, want)
	}

	src.Destroy()
	if dev.Bound() != nil {
		t.Error("Bound() after destroying bound framebuffer != nil")
	}
}

func TestRenderbuffer_Capabilities(t *testing.T) {
	dev := New(Config{Caps: backend.Caps{MaxSamples: 1}})
	if _, err := dev.CreateRenderbuffer(backend.RenderbufferDesc{Format: pixel.R8G8B8A8, Width: 1, Height: 1, Samples: 4}); !errors.Is(err, backend.ErrUnsupported) {
		t.Errorf("multisample without caps error = %v, want ErrUnsupported", err)
	}
	if _, err := dev.CreateRenderbuffer(backend.RenderbufferDesc{Format: pixel.D24, Width: 1, Height: 1, DepthStencil: true}); !errors.Is(err, backend.ErrUnsupported) {
		t.Errorf("packed depth-stencil without caps error = %v, want ErrUnsupported", err)
	}
}

func TestDevice_LiveCounts(t *testing.T) {
	dev := newTestDevice()
	tex, _ := dev.CreateTexture(backend.TextureDesc{Kind: backend.TextureCube, Format: pixel.L8, Width: 2, Height: 2, Depth: 1, Levels: 1})
	if got := dev.Live(); got.Textures != 1 || got.Bytes != 24 {
		t.Errorf("Live() = %+v, want 1 texture of 24 bytes", got)
	}
	tex.Destroy()
	tex.Destroy()
	if got := dev.Live(); got.Textures != 0 || got.Bytes != 0 {
		t.Errorf("Live() after Destroy = %+v, want zero", got)
	}
}
