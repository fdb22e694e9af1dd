// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build cgo && !nogl

package gl

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/go-gl/gl/v3.3-core/gl"

	"github.com/gogpu/gpures/backend"
)

// ErrMapLost is returned by Unmap when the driver discarded the mapped
// content, for example on a mode switch.
var ErrMapLost = errors.New("gl: mapped buffer content lost")

// Buffer is a GL array buffer.
type Buffer struct {
	dev    *Device
	desc   backend.BufferDesc
	handle uint32
	mapped bool
}

var _ backend.Buffer = (*Buffer)(nil)

// CreateBuffer implements backend.Device.
func (d *Device) CreateBuffer(desc backend.BufferDesc) (backend.Buffer, error) {
	if desc.Size <= 0 {
		return nil, fmt.Errorf("%w: buffer size %d", backend.ErrOutOfRange, desc.Size)
	}
	b := &Buffer{dev: d, desc: desc}
	gl.GenBuffers(1, &b.handle)
	gl.BindBuffer(gl.ARRAY_BUFFER, b.handle)
	gl.BufferData(gl.ARRAY_BUFFER, desc.Size, nil, usageOf(desc.Usage))
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	if err := checkError("create buffer"); err != nil {
		gl.DeleteBuffers(1, &b.handle)
		return nil, err
	}
	d.live.Buffers++
	d.live.Bytes += desc.Size
	return b, nil
}

// Handle returns the GL buffer name, 0 once destroyed.
func (b *Buffer) Handle() uint32 { return b.handle }

// Size implements backend.Buffer.
func (b *Buffer) Size() int { return b.desc.Size }

// Map implements backend.Buffer. The slice aliases driver memory and is
// invalid after Unmap.
func (b *Buffer) Map(mode backend.MapMode) ([]byte, error) {
	if b.handle == 0 {
		return nil, backend.ErrDestroyed
	}
	if b.mapped {
		return nil, backend.ErrAlreadyMapped
	}
	var access uint32
	if mode&backend.MapRead != 0 {
		access |= gl.MAP_READ_BIT
	}
	if mode&backend.MapWrite != 0 {
		access |= gl.MAP_WRITE_BIT
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, b.handle)
	ptr := gl.MapBufferRange(gl.ARRAY_BUFFER, 0, b.desc.Size, access)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	if ptr == nil {
		return nil, checkError("map buffer")
	}
	b.mapped = true
	return unsafe.Slice((*byte)(ptr), b.desc.Size), nil
}

// Unmap implements backend.Buffer.
func (b *Buffer) Unmap() error {
	if b.handle == 0 {
		return backend.ErrDestroyed
	}
	if !b.mapped {
		return backend.ErrNotMapped
	}
	b.mapped = false
	gl.BindBuffer(gl.ARRAY_BUFFER, b.handle)
	ok := gl.UnmapBuffer(gl.ARRAY_BUFFER)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	if !ok {
		return ErrMapLost
	}
	return nil
}

func (b *Buffer) span(offset, n int) error {
	if b.handle == 0 {
		return backend.ErrDestroyed
	}
	if b.mapped {
		return backend.ErrAlreadyMapped
	}
	if offset < 0 || offset+n > b.desc.Size {
		return fmt.Errorf("%w: [%d, %d) of %d bytes", backend.ErrOutOfRange, offset, offset+n, b.desc.Size)
	}
	return nil
}

// Write implements backend.Buffer.
func (b *Buffer) Write(offset int, data []byte) error {
	if err := b.span(offset, len(data)); err != nil || len(data) == 0 {
		return err
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, b.handle)
	gl.BufferSubData(gl.ARRAY_BUFFER, offset, len(data), gl.Ptr(data))
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	return checkError("write buffer")
}

// Read implements backend.Buffer.
func (b *Buffer) Read(offset int, out []byte) error {
	if err := b.span(offset, len(out)); err != nil || len(out) == 0 {
		return err
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, b.handle)
	gl.GetBufferSubData(gl.ARRAY_BUFFER, offset, len(out), gl.Ptr(out))
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	return checkError("read buffer")
}

// Destroy implements backend.Buffer. A mapped buffer is unmapped by the
// deletion.
func (b *Buffer) Destroy() {
	if b.handle == 0 {
		return
	}
	gl.DeleteBuffers(1, &b.handle)
	b.handle, b.mapped = 0, false
	b.dev.live.Buffers--
	b.dev.live.Bytes -= b.desc.Size
}
