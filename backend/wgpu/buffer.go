// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpures/backend"
)

// copyAlignment is the required alignment of buffer write offsets and sizes.
const copyAlignment = 4

// Buffer is a vertex buffer. Vertex buffers cannot be mapped in WebGPU, so
// Map hands out a copy read back from the device that Unmap writes again.
type Buffer struct {
	dev       *Device
	desc      backend.BufferDesc
	raw       hal.Buffer
	staging   []byte
	mode      backend.MapMode
	destroyed bool
}

var _ backend.Buffer = (*Buffer)(nil)

// CreateBuffer implements backend.Device.
func (d *Device) CreateBuffer(desc backend.BufferDesc) (backend.Buffer, error) {
	if !d.caps.VertexBufferObjects {
		return nil, fmt.Errorf("%w: buffer objects", backend.ErrUnsupported)
	}
	if desc.Size <= 0 {
		return nil, fmt.Errorf("%w: buffer size %d", backend.ErrOutOfRange, desc.Size)
	}
	raw, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  uint64(align(desc.Size, copyAlignment)),
		Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create buffer: %w", err)
	}
	d.live.Buffers++
	d.live.Bytes += desc.Size
	return &Buffer{dev: d, desc: desc, raw: raw}, nil
}

// Size implements backend.Buffer.
func (b *Buffer) Size() int { return b.desc.Size }

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
	data := make([]byte, b.desc.Size)
	if err := b.Read(0, data); err != nil {
		return nil, err
	}
	b.staging, b.mode = data, mode
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
	data, mode := b.staging, b.mode
	b.staging = nil
	if mode&backend.MapWrite != 0 {
		return b.Write(0, data)
	}
	return nil
}

func (b *Buffer) span(offset, n int) error {
	if b.destroyed {
		return backend.ErrDestroyed
	}
	if offset < 0 || offset+n > b.desc.Size {
		return fmt.Errorf("%w: [%d, %d) of %d bytes", backend.ErrOutOfRange, offset, offset+n, b.desc.Size)
	}
	return nil
}

// Write implements backend.Buffer. Unaligned writes read back the
// surrounding words first.
func (b *Buffer) Write(offset int, data []byte) error {
	if err := b.span(offset, len(data)); err != nil {
		return err
	}
	start := offset / copyAlignment * copyAlignment
	end := align(offset+len(data), copyAlignment)
	chunk := data
	if start != offset || end != offset+len(data) {
		chunk = make([]byte, end-start)
		if end > b.desc.Size {
			// The tail past Size is padding and never read.
			if err := b.Read(start, chunk[:b.desc.Size-start]); err != nil {
				return err
			}
		} else if err := b.Read(start, chunk); err != nil {
			return err
		}
		copy(chunk[offset-start:], data)
	}
	if err := b.dev.queue.WriteBuffer(b.raw, uint64(start), chunk); err != nil {
		return fmt.Errorf("wgpu: write buffer: %w", err)
	}
	return nil
}

// Read implements backend.Buffer.
func (b *Buffer) Read(offset int, out []byte) error {
	if err := b.span(offset, len(out)); err != nil {
		return err
	}
	if len(out) == 0 {
		return nil
	}
	start := offset / copyAlignment * copyAlignment
	size := align(offset+len(out), copyAlignment) - start
	data, err := b.dev.readback("buffer readback", size, func(enc hal.CommandEncoder, staging hal.Buffer) {
		enc.CopyBufferToBuffer(b.raw, staging, []hal.BufferCopy{{
			SrcOffset: uint64(start),
			DstOffset: 0,
			Size:      uint64(size),
		}})
	})
	if err != nil {
		return err
	}
	copy(out, data[offset-start:])
	return nil
}

// Destroy implements backend.Buffer.
func (b *Buffer) Destroy() {
	if b.destroyed {
		return
	}
	b.destroyed = true
	b.dev.device.DestroyBuffer(b.raw)
	b.raw, b.staging = nil, nil
	b.dev.live.Buffers--
	b.dev.live.Bytes -= b.desc.Size
}
