// Package gpures manages GPU resources for a rendering engine.
//
// # Overview
//
// gpures owns the life cycle of textures, vertex buffers, framebuffer
// objects and linked shader programs on top of a pluggable graphics
// backend. The backend is a small factory interface (see package backend)
// with one implementation per native API: wgpu, OpenGL, and a system-memory
// reference device. Everything in this package depends only on the
// capabilities a backend reports, never on which backend it is.
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/gpures"
//	    _ "github.com/gogpu/gpures/backend/wgpu"
//	)
//
//	r, err := gpures.NewRenderer()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//
//	img := gpures.NewImageFromGo(src)
//	tex, err := r.CreateTexture2D(img, pixel.Unknown, gpures.FlagMipmaps)
//
// # Resources
//
// Every resource is created through a Renderer and exposes a Release
// method. Operations report failure through boolean or nil results; the
// cause is kept and returned by the resource's Err method, and is logged
// through the package logger.
//
//   - TextureBuffer: 1D, 2D, 2D array, 3D, cube and rectangle textures with
//     format negotiation, mip chain completion and compressed fallback.
//   - VertexBuffer: interleaved per-vertex attributes with ref-counted
//     locking and an optional system-memory shadow copy.
//   - FrameBufferObject: render targets with optional multisampling, a
//     resolve step, and depth buffer sharing.
//   - Program: a linked shader program with lazily built attribute and
//     uniform directories.
//
// # Device Loss
//
// Renderer.BackupDeviceObjects captures the content of every live resource
// and releases the device handles; Renderer.RestoreDeviceObjects recreates
// them. Resources keep their identity across the cycle.
//
// # Threading
//
// A Renderer and its resources are bound to the goroutine that owns the
// native context. Only Statistics is safe for concurrent use.
//
// # Logging
//
// gpures produces no log output by default. Use SetLogger to enable it.
package gpures
