// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build cgo && !nogl

package gl

import (
	"fmt"
	"math/bits"
	"unsafe"

	"github.com/go-gl/gl/v3.3-core/gl"

	"github.com/gogpu/gpures/backend"
	"github.com/gogpu/gpures/pixel"
)

// Texture is a GL texture object.
type Texture struct {
	dev        *Device
	desc       backend.TextureDesc
	handle     uint32
	target     uint32
	compressed bool
}

var _ backend.Texture = (*Texture)(nil)

// CreateTexture implements backend.Device. Every level is allocated
// without content. Compressed formats the context cannot sample are stored
// uncompressed.
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
	case desc.Kind == backend.TextureRectangle && desc.Levels != 1:
		return nil, fmt.Errorf("%w: rectangle textures have one level", backend.ErrOutOfRange)
	case desc.Kind == backend.TextureCube && desc.Width != desc.Height:
		return nil, fmt.Errorf("%w: cube faces must be square", backend.ErrOutOfRange)
	}

	t := &Texture{
		dev:        d,
		desc:       desc,
		target:     targetOf(desc.Kind),
		compressed: desc.Format.IsCompressed() && caps.SupportsFormat(desc.Format),
	}
	if _, _, ok := formatOf(t.storage()); !ok {
		return nil, fmt.Errorf("%w: format %v", backend.ErrUnsupported, desc.Format)
	}
	gl.GenTextures(1, &t.handle)
	gl.BindTexture(t.target, t.handle)
	gl.TexParameteri(t.target, gl.TEXTURE_BASE_LEVEL, 0)
	gl.TexParameteri(t.target, gl.TEXTURE_MAX_LEVEL, int32(desc.Levels-1))
	for l := range desc.Levels {
		for f := range desc.Kind.Faces() {
			t.image(l, f, nil)
		}
	}
	if err := checkError("create texture"); err != nil {
		gl.DeleteTextures(1, &t.handle)
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

// image specifies one level of one face from host-layout data. nil data
// allocates without content.
func (t *Texture) image(level, face int, data []byte) {
	g, _, _ := formatOf(t.storage())
	w, h, d := t.desc.LevelSize(level)
	target := imageTarget(t.desc.Kind, face)
	var ptr unsafe.Pointer
	if len(data) > 0 {
		ptr = gl.Ptr(data)
	}

	if t.compressed {
		size := int32(t.desc.Format.NumOfBytes(w, h, d))
		switch t.target {
		case gl.TEXTURE_1D:
			gl.CompressedTexImage1D(target, int32(level), g.internal, int32(w), 0, size, ptr)
		case gl.TEXTURE_2D_ARRAY, gl.TEXTURE_3D:
			gl.CompressedTexImage3D(target, int32(level), g.internal, int32(w), int32(h), int32(d), 0, size, ptr)
		default:
			gl.CompressedTexImage2D(target, int32(level), g.internal, int32(w), int32(h), 0, size, ptr)
		}
		return
	}
	switch t.target {
	case gl.TEXTURE_1D:
		gl.TexImage1D(target, int32(level), int32(g.internal), int32(w), 0, g.format, g.xtype, ptr)
	case gl.TEXTURE_2D_ARRAY, gl.TEXTURE_3D:
		gl.TexImage3D(target, int32(level), int32(g.internal), int32(w), int32(h), int32(d), 0, g.format, g.xtype, ptr)
	default:
		gl.TexImage2D(target, int32(level), int32(g.internal), int32(w), int32(h), 0, g.format, g.xtype, ptr)
	}
}

func (t *Texture) bytes() int {
	_, f, _ := formatOf(t.storage())
	if t.compressed {
		f = t.desc.Format
	}
	n := 0
	for l := range t.desc.Levels {
		w, h, d := t.desc.LevelSize(l)
		n += f.NumOfBytes(w, h, d) * t.desc.Kind.Faces()
	}
	return n
}

// Handle returns the GL texture name, 0 once destroyed.
func (t *Texture) Handle() uint32 { return t.handle }

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
	if t.handle == 0 {
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

// WriteLevel implements backend.Texture. Uncompressed data written into
// compressed storage is compressed by the driver; when the driver declines,
// the texture stays uncompressed from then on.
func (t *Texture) WriteLevel(level, face int, src pixel.Format, data []byte) error {
	if err := t.check(level, face); err != nil {
		return err
	}
	w, h, d := t.desc.LevelSize(level)
	if want := src.NumOfBytes(w, h, d); len(data) != want {
		return fmt.Errorf("%w: level %d has %d bytes, want %d", pixel.ErrSize, level, len(data), want)
	}
	gl.BindTexture(t.target, t.handle)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)

	if src.IsCompressed() {
		if src != t.desc.Format || !t.compressed {
			return fmt.Errorf("%w: %v data into %v storage", backend.ErrUnsupported, src, t.storage())
		}
		t.image(level, face, data)
		return checkError("compressed upload")
	}

	g, host, _ := formatOf(t.desc.Format.Uncompressed())
	conv, err := pixel.Convert(host, src, data)
	if err != nil {
		return err
	}
	if !t.compressed {
		t.image(level, face, conv)
		return checkError("upload")
	}

	// Hand the texels to the driver with the compressed internal format.
	c, _, _ := formatOf(t.desc.Format)
	target := imageTarget(t.desc.Kind, face)
	switch t.target {
	case gl.TEXTURE_1D:
		gl.TexImage1D(target, int32(level), int32(c.internal), int32(w), 0, g.format, g.xtype, gl.Ptr(conv))
	case gl.TEXTURE_2D_ARRAY, gl.TEXTURE_3D:
		gl.TexImage3D(target, int32(level), int32(c.internal), int32(w), int32(h), int32(d), 0, g.format, g.xtype, gl.Ptr(conv))
	default:
		gl.TexImage2D(target, int32(level), int32(c.internal), int32(w), int32(h), 0, g.format, g.xtype, gl.Ptr(conv))
	}
	if err := checkError("upload for compression"); err != nil {
		return err
	}
	var compressed int32
	gl.GetTexLevelParameteriv(target, int32(level), gl.TEXTURE_COMPRESSED, &compressed)
	if compressed == gl.FALSE {
		backend.Logger().Debug("gl: driver stored level uncompressed", "format", t.desc.Format, "level", level)
		old := t.bytes()
		t.compressed = false
		t.dev.live.Bytes += t.bytes() - old
	}
	return nil
}

// ReadLevel implements backend.Texture.
func (t *Texture) ReadLevel(level, face int) ([]byte, error) {
	if err := t.check(level, face); err != nil {
		return nil, err
	}
	w, h, d := t.desc.LevelSize(level)
	target := imageTarget(t.desc.Kind, face)
	gl.BindTexture(t.target, t.handle)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)

	if t.compressed {
		out := make([]byte, t.desc.Format.NumOfBytes(w, h, d))
		gl.GetCompressedTexImage(target, int32(level), gl.Ptr(out))
		return out, checkError("compressed readback")
	}
	g, host, _ := formatOf(t.storage())
	out := make([]byte, host.NumOfBytes(w, h, d))
	gl.GetTexImage(target, int32(level), g.format, g.xtype, gl.Ptr(out))
	if err := checkError("readback"); err != nil {
		return nil, err
	}
	if host == t.storage() {
		return out, nil
	}
	return pixel.Convert(t.storage(), host, out)
}

// GenerateMipmaps implements backend.Texture.
func (t *Texture) GenerateMipmaps() error {
	if t.handle == 0 {
		return backend.ErrDestroyed
	}
	if t.desc.Kind == backend.TextureRectangle {
		return fmt.Errorf("%w: mipmaps of rectangle textures", backend.ErrUnsupported)
	}
	gl.BindTexture(t.target, t.handle)
	gl.GenerateMipmap(t.target)
	return checkError("generate mipmaps")
}

// Destroy implements backend.Texture.
func (t *Texture) Destroy() {
	if t.handle == 0 {
		return
	}
	gl.DeleteTextures(1, &t.handle)
	t.handle = 0
	t.dev.live.Textures--
	t.dev.live.Bytes -= t.bytes()
}
