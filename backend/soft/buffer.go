// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package soft

import (
	"fmt"

	"github.com/gogpu/gpures/backend"
)

// Buffer is a system-memory linear buffer. Map hands out a staging copy
// that is committed on Unmap, so mapped writes are invisible to Read until
// the buffer is unmapped.
type Buffer struct {
	dev       *Device
	desc      backend.BufferDesc
	data      []byte
	staging   []byte
	mode      backend.MapMode
	destroyed bool
}

var _ backend.Buffer = (*Buffer)(nil)

// CreateBuffer implements backend.Device.
func (d *Device) CreateBuffer(desc backend.BufferDesc) (backend.Buffer, error) {
	if !d.cfg.Caps.VertexBufferObjects {
		return nil, fmt.Errorf("%w: buffer objects", backend.ErrUnsupported)
	}
	if desc.Size <= 0 {
		return nil, fmt.Errorf("%w: buffer size %d", backend.ErrOutOfRange, desc.Size)
	}
	if err := d.reserve(desc.Size); err != nil {
		return nil, err
	}
	d.live.Buffers++
	return &Buffer{dev: d, desc: desc, data: make([]byte, desc.Size)}, nil
}

// Size implements backend.Buffer.
func (b *Buffer) Size() int { return b.desc.Size }

// Usage returns the usage hint the buffer was created with.
func (b *Buffer) Usage() backend.BufferUsage { return b.desc.Usage }

// Mapped reports whether the buffer is mapped.
func (b *Buffer) Mapped() bool { return b.staging != nil }

// Map implements backend.Buffer.
func (b *Buffer) Map(mode backend.MapMode) ([]byte, error) {
	if b.destroyed {
		return nil, backend.ErrDestroyed
	}
	if b.staging != nil {
		return nil, backend.ErrAlreadyMapped
	}
	b.staging = append([]byte(nil), b.data...)
	b.mode = mode
	return b.staging, nil
}

// Unmap implements backend.Buffer.
func (b *Buffer) Unmap() error {
	if b.destroyed {
		return backend.ErrDestroyed
	}
	if b.staging == nil {
		return backend.ErrNotMapped
	}
	if b.mode&backend.MapWrite != 0 {
		copy(b.data, b.staging)
	}
	b.staging = nil
	return nil
}

func (b *Buffer) span(offset, n int) error {
	if b.destroyed {
		return backend.ErrDestroyed
	}
	if offset < 0 || offset+n > len(b.data) {
		return fmt.Errorf("%w: [%d, %d) of %d bytes", backend.ErrOutOfRange, offset, offset+n, len(b.data))
	}
	return nil
}

// Write implements backend.Buffer.
func (b *Buffer) Write(offset int, data []byte) error {
	if err := b.span(offset, len(data)); err != nil {
		return err
	}
	copy(b.data[offset:], data)
	return nil
}

// Read implements backend.Buffer.
func (b *Buffer) Read(offset int, out []byte) error {
	if err := b.span(offset, len(out)); err != nil {
		return err
	}
	copy(out, b.data[offset:])
	return nil
}

// Destroy implements backend.Buffer.
func (b *Buffer) Destroy() {
	if b.destroyed {
		return
	}
	b.destroyed = true
	b.data, b.staging = nil, nil
	b.dev.release(b.desc.Size)
	b.dev.live.Buffers--
}
