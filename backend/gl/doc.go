// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build cgo && !nogl

// Package gl is a backend over OpenGL 3.3 core.
//
// The caller owns the GL context: it must be current on the calling
// goroutine's locked OS thread before New is called and for every call on
// the device and its resources afterwards.
//
// Uncompressed uploads into compressed storage are handed to the driver,
// which may or may not compress them; Texture.Compressed reports what the
// driver did. Shaders are GLSL. CompileShader returns shaders owned by the
// backend; WrapShader borrows a shader compiled elsewhere and never deletes
// it.
//
// Build with the nogl tag to leave the backend out.
package gl
