// Package backend defines the contract between the resource layer and a
// native graphics API.
//
// A backend implements Device plus the resource interfaces it returns
// (Texture, Buffer, Renderbuffer, Framebuffer, Program). Texture buffers,
// vertex buffers, frame buffer objects and program reflection in package
// gpures are written once against these interfaces and consult Caps to
// decide how to degrade when a capability is missing.
//
// # Backend Registration
//
// Backends register a Factory from init() and are selected at runtime:
//
//	import _ "github.com/gogpu/gpures/backend/soft"
//
//	dev, err := backend.Default()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer dev.Close()
//
// Use Get to request a backend by name ("wgpu", "gl", "soft").
//
// # Available Backends
//
//   - soft: system-memory reference implementation with configurable Caps
//   - wgpu: github.com/gogpu/wgpu HAL devices
//   - gl: OpenGL 3.3 core through github.com/go-gl/gl (cgo)
package backend
