// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package soft

import (
	"fmt"
	"math/bits"

	"github.com/gogpu/gpures/backend"
	"github.com/gogpu/gpures/pixel"
)

// Texture is system-memory image storage.
//
// Compressed storage is only kept when the device advertises the format and
// data arrives precompressed in that format. Uncompressed uploads into
// compressed storage leave the texture uncompressed (Compressed reports
// false), mirroring drivers that cannot encode on upload.
type Texture struct {
	dev        *Device
	desc       backend.TextureDesc
	levels     [][][]byte // [face][level]
	compressed bool
	bytes      int
	destroyed  bool
}

var _ backend.Texture = (*Texture)(nil)

// CreateTexture implements backend.Device.
func (d *Device) CreateTexture(desc backend.TextureDesc) (backend.Texture, error) {
	caps := d.cfg.Caps
	switch {
	case !desc.Format.IsValid():
		return nil, fmt.Errorf("%w: format %v", backend.ErrUnsupported, desc.Format)
	case !caps.SupportsKind(desc.Kind):
		return nil, fmt.Errorf("%w: %v textures", backend.ErrUnsupported, desc.Kind)
	case desc.Width <= 0 || desc.Height <= 0 || desc.Depth <= 0:
		return nil, fmt.Errorf("%w: size %dx%dx%d", backend.ErrOutOfRange, desc.Width, desc.Height, desc.Depth)
	case caps.MaxTextureSize > 0 && max(desc.Width, desc.Height, desc.Depth) > caps.MaxTextureSize:
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
	for l := range desc.Levels {
		t.bytes += desc.LevelBytes(l) * desc.Kind.Faces()
	}
	if err := d.reserve(t.bytes); err != nil {
		return nil, err
	}
	t.levels = make([][][]byte, desc.Kind.Faces())
	for f := range t.levels {
		t.levels[f] = make([][]byte, desc.Levels)
	}
	d.live.Textures++
	return t, nil
}

func maxLevels(desc backend.TextureDesc) int {
	m := max(desc.Width, desc.Height)
	if desc.Kind == backend.Texture3D {
		m = max(m, desc.Depth)
	}
	if desc.Kind == backend.TextureRectangle {
		return 1
	}
	return bits.Len(uint(m))
}

// Desc implements backend.Texture.
func (t *Texture) Desc() backend.TextureDesc { return t.desc }

// Compressed implements backend.Texture.
func (t *Texture) Compressed() bool { return t.compressed }

// storage is the format data is actually held in.
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

// WriteLevel implements backend.Texture.
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
		t.levels[face][level] = append([]byte(nil), data...)
		return nil
	}

	if t.compressed {
		// No encoder: the driver falls back to uncompressed storage and
		// earlier compressed levels are lost.
		backend.Logger().Debug("soft: uncompressed upload into compressed storage",
			"format", t.desc.Format, "src", src)
		t.compressed = false
		for f := range t.levels {
			clear(t.levels[f])
		}
	}
	conv, err := pixel.Convert(t.storage(), src, data)
	if err != nil {
		return err
	}
	t.levels[face][level] = conv
	return nil
}

// ReadLevel implements backend.Texture. Levels never written read as zeros.
func (t *Texture) ReadLevel(level, face int) ([]byte, error) {
	if err := t.check(level, face); err != nil {
		return nil, err
	}
	if data := t.levels[face][level]; data != nil {
		return append([]byte(nil), data...), nil
	}
	w, h, d := t.desc.LevelSize(level)
	return make([]byte, t.storage().NumOfBytes(w, h, d)), nil
}

// GenerateMipmaps implements backend.Texture.
func (t *Texture) GenerateMipmaps() error {
	if t.destroyed {
		return backend.ErrDestroyed
	}
	if !t.dev.cfg.Caps.AutoMipmaps {
		return fmt.Errorf("%w: automatic mipmaps", backend.ErrUnsupported)
	}
	f := t.storage()
	if f.IsCompressed() {
		return fmt.Errorf("%w: mipmaps for %v", backend.ErrUnsupported, f)
	}
	for face := range t.levels {
		for l := 1; l < t.desc.Levels; l++ {
			src, err := t.ReadLevel(l-1, face)
			if err != nil {
				return err
			}
			w, h, d := t.desc.LevelSize(l - 1)
			out, _, _, _, err := pixel.Downsample(f, src, w, h, d, t.desc.Kind == backend.Texture3D)
			if err != nil {
				return err
			}
			t.levels[face][l] = out
		}
	}
	return nil
}

// Destroy implements backend.Texture.
func (t *Texture) Destroy() {
	if t.destroyed {
		return
	}
	t.destroyed = true
	t.levels = nil
	t.dev.release(t.bytes)
	t.dev.live.Textures--
}
