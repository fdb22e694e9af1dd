// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build cgo && !nogl

package gl

import (
	"github.com/go-gl/gl/v3.3-core/gl"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpures/backend"
	"github.com/gogpu/gpures/pixel"
)

// glFormat is the GL storage of a format and the client layout used to
// transfer it. format and xtype are zero for compressed formats.
type glFormat struct {
	internal uint32
	format   uint32
	xtype    uint32

	// host is the pixel format whose bytes match format/xtype. Unknown
	// means the storage format itself.
	host pixel.Format
}

var formats = map[gputypes.TextureFormat]glFormat{
	gputypes.TextureFormatR8Unorm:      {gl.R8, gl.RED, gl.UNSIGNED_BYTE, pixel.Unknown},
	gputypes.TextureFormatR16Unorm:     {gl.R16, gl.RED, gl.UNSIGNED_SHORT, pixel.L16},
	gputypes.TextureFormatRG8Unorm:     {gl.RG8, gl.RG, gl.UNSIGNED_BYTE, pixel.L8A8},
	gputypes.TextureFormatRGBA8Unorm:   {gl.RGBA8, gl.RGBA, gl.UNSIGNED_BYTE, pixel.R8G8B8A8},
	gputypes.TextureFormatRGB10A2Unorm: {gl.RGB10_A2, gl.RGBA, gl.UNSIGNED_INT_2_10_10_10_REV, pixel.R10G10B10A2},
	gputypes.TextureFormatRGBA16Unorm:  {gl.RGBA16, gl.RGBA, gl.UNSIGNED_SHORT, pixel.R16G16B16A16},
	gputypes.TextureFormatR16Float:     {gl.R16F, gl.RED, gl.HALF_FLOAT, pixel.L16F},
	gputypes.TextureFormatR32Float:     {gl.R32F, gl.RED, gl.FLOAT, pixel.L32F},
	gputypes.TextureFormatRGBA16Float:  {gl.RGBA16F, gl.RGBA, gl.HALF_FLOAT, pixel.R16G16B16A16F},
	gputypes.TextureFormatRGBA32Float:  {gl.RGBA32F, gl.RGBA, gl.FLOAT, pixel.R32G32B32A32F},

	gputypes.TextureFormatDepth16Unorm: {gl.DEPTH_COMPONENT16, gl.DEPTH_COMPONENT, gl.UNSIGNED_SHORT, pixel.D16},
	// D24 is read and written as float depth; the packed 24-bit layout has
	// no client type.
	gputypes.TextureFormatDepth24Plus:  {gl.DEPTH_COMPONENT24, gl.DEPTH_COMPONENT, gl.FLOAT, pixel.D32},
	gputypes.TextureFormatDepth32Float: {gl.DEPTH_COMPONENT32F, gl.DEPTH_COMPONENT, gl.FLOAT, pixel.D32},

	gputypes.TextureFormatBC1RGBAUnorm: {internal: gl.COMPRESSED_RGB_S3TC_DXT1_EXT},
	gputypes.TextureFormatBC2RGBAUnorm: {internal: gl.COMPRESSED_RGBA_S3TC_DXT3_EXT},
	gputypes.TextureFormatBC3RGBAUnorm: {internal: gl.COMPRESSED_RGBA_S3TC_DXT5_EXT},
	gputypes.TextureFormatBC4RUnorm:    {internal: gl.COMPRESSED_RED_RGTC1},
	gputypes.TextureFormatBC5RGUnorm:   {internal: gl.COMPRESSED_RG_RGTC2},
}

// formatOf returns the GL storage of f and the pixel format client bytes
// take for it.
func formatOf(f pixel.Format) (glFormat, pixel.Format, bool) {
	g, ok := formats[f.GPUFormat()]
	if !ok {
		return glFormat{}, pixel.Unknown, false
	}
	host := g.host
	if host == pixel.Unknown {
		host = f
	}
	return g, host, true
}

func targetOf(k backend.TextureKind) uint32 {
	switch k {
	case backend.Texture1D:
		return gl.TEXTURE_1D
	case backend.Texture2DArray:
		return gl.TEXTURE_2D_ARRAY
	case backend.Texture3D:
		return gl.TEXTURE_3D
	case backend.TextureCube:
		return gl.TEXTURE_CUBE_MAP
	case backend.TextureRectangle:
		return gl.TEXTURE_RECTANGLE
	default:
		return gl.TEXTURE_2D
	}
}

// imageTarget is the target that addresses one face of a texture.
func imageTarget(k backend.TextureKind, face int) uint32 {
	if k == backend.TextureCube {
		return gl.TEXTURE_CUBE_MAP_POSITIVE_X + uint32(face)
	}
	return targetOf(k)
}

func attachmentOf(p backend.AttachmentPoint) uint32 {
	switch p {
	case backend.AttachDepth:
		return gl.DEPTH_ATTACHMENT
	case backend.AttachDepthStencil:
		return gl.DEPTH_STENCIL_ATTACHMENT
	default:
		return gl.COLOR_ATTACHMENT0 + uint32(p)
	}
}

func statusOf(s uint32) backend.FramebufferStatus {
	switch s {
	case gl.FRAMEBUFFER_COMPLETE:
		return backend.FramebufferComplete
	case gl.FRAMEBUFFER_INCOMPLETE_ATTACHMENT:
		return backend.FramebufferIncompleteAttachment
	case gl.FRAMEBUFFER_INCOMPLETE_MISSING_ATTACHMENT:
		return backend.FramebufferMissingAttachment
	case gl.FRAMEBUFFER_INCOMPLETE_DRAW_BUFFER:
		return backend.FramebufferIncompleteDrawBuffer
	case gl.FRAMEBUFFER_INCOMPLETE_READ_BUFFER:
		return backend.FramebufferIncompleteReadBuffer
	case gl.FRAMEBUFFER_UNSUPPORTED:
		return backend.FramebufferUnsupported
	case gl.FRAMEBUFFER_INCOMPLETE_MULTISAMPLE:
		return backend.FramebufferIncompleteMultisample
	default:
		return backend.FramebufferUndefined
	}
}

func usageOf(u backend.BufferUsage) uint32 {
	switch u {
	case backend.UsageDynamic:
		return gl.DYNAMIC_DRAW
	case backend.UsageStream:
		return gl.STREAM_DRAW
	default:
		return gl.STATIC_DRAW
	}
}

// typeNames spells GL uniform and attribute types the way GLSL does.
var typeNames = map[uint32]string{
	gl.FLOAT:             "float",
	gl.FLOAT_VEC2:        "vec2",
	gl.FLOAT_VEC3:        "vec3",
	gl.FLOAT_VEC4:        "vec4",
	gl.INT:               "int",
	gl.INT_VEC2:          "ivec2",
	gl.INT_VEC3:          "ivec3",
	gl.INT_VEC4:          "ivec4",
	gl.UNSIGNED_INT:      "uint",
	gl.UNSIGNED_INT_VEC2: "uvec2",
	gl.UNSIGNED_INT_VEC3: "uvec3",
	gl.UNSIGNED_INT_VEC4: "uvec4",
	gl.BOOL:              "bool",
	gl.FLOAT_MAT2:        "mat2",
	gl.FLOAT_MAT3:        "mat3",
	gl.FLOAT_MAT4:        "mat4",

	gl.SAMPLER_1D:        "sampler1D",
	gl.SAMPLER_2D:        "sampler2D",
	gl.SAMPLER_3D:        "sampler3D",
	gl.SAMPLER_CUBE:      "samplerCube",
	gl.SAMPLER_2D_ARRAY:  "sampler2DArray",
	gl.SAMPLER_2D_RECT:   "sampler2DRect",
	gl.SAMPLER_2D_SHADOW: "sampler2DShadow",
}

var samplerTypes = map[uint32]bool{
	gl.SAMPLER_1D:        true,
	gl.SAMPLER_2D:        true,
	gl.SAMPLER_3D:        true,
	gl.SAMPLER_CUBE:      true,
	gl.SAMPLER_2D_ARRAY:  true,
	gl.SAMPLER_2D_RECT:   true,
	gl.SAMPLER_2D_SHADOW: true,
}
