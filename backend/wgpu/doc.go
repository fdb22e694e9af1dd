// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package wgpu implements backend.Device on top of a gogpu/wgpu HAL device.
//
// Any hal.Backend can drive it: Vulkan, Metal, DX12 and GLES in production,
// the noop backend in tests. Open creates and owns a HAL device; New and
// FromProvider wrap a device owned by someone else (for example a gogpu
// application window) and never destroy it.
//
// # Storage
//
// Textures are stored in the HAL format closest to the requested pixel
// format (see pixel.Format.GPUFormat). Formats without an exact HAL
// equivalent, such as R5G6B5 or R8G8B8, are widened to RGBA8 on upload and
// narrowed again on readback, so ReadLevel always returns data in the
// texture's storage format.
//
// Renderbuffers are render-attachment textures. Multisampled renderbuffers
// use four samples, the only multisample count WebGPU guarantees.
//
// Readbacks (Texture.ReadLevel, Buffer.Read, Buffer.Map) copy into a
// staging buffer and wait for the queue to go idle.
//
// # Capabilities
//
// WebGPU has no automatic mipmap generation and no rectangle textures, so
// Caps.AutoMipmaps and Caps.TextureRectangle are always false. Block
// compression is reported when the adapter exposes
// gputypes.FeatureTextureCompressionBC.
//
// # Registration
//
// Importing the package registers the "wgpu" backend. Its factory opens
// the best registered HAL backend:
//
//	import (
//		_ "github.com/gogpu/gpures/backend/wgpu"
//		_ "github.com/gogpu/wgpu/hal/allbackends"
//	)
package wgpu
