// Package pixel describes texel storage formats and converts texel data
// between them.
//
// The format set covers uncompressed luminance, color and packed layouts,
// depth formats, floating-point formats and the 4x4 block-compressed DXT and
// LATC families. Every format carries a static FormatInfo record; all other
// queries are derived from that table.
package pixel

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// Format is a semantic texel format.
type Format uint8

const (
	// Unknown means "unspecified": derive the format from the source.
	Unknown Format = iota

	L8
	L16
	A8
	L4A4
	L8A8
	D16
	D24
	D32
	R3G3B2
	R5G6B5
	R5G5B5A1
	R4G4B4A4
	R8G8B8
	R8G8B8A8
	R10G10B10A2
	R16G16B16A16

	// DXT1 stores RGB in 8-byte 4x4 blocks.
	DXT1
	// DXT3 stores RGBA with explicit alpha in 16-byte 4x4 blocks.
	DXT3
	// DXT5 stores RGBA with interpolated alpha in 16-byte 4x4 blocks.
	DXT5
	// LATC1 stores one luminance channel in 8-byte 4x4 blocks.
	LATC1
	// LATC2 stores luminance and alpha in 16-byte 4x4 blocks.
	LATC2

	L16F
	L32F
	R16G16B16A16F
	R32G32B32A32F

	formatCount
)

// BlockDim is the edge length in texels of a compressed block.
const BlockDim = 4

// FormatInfo contains static metadata about a format.
type FormatInfo struct {
	Name string

	// Components is the number of channels the format represents.
	Components int

	// BytesPerPixel is zero for block-compressed formats.
	BytesPerPixel int

	// BlockBytes is non-zero only for block-compressed formats.
	BlockBytes int

	Depth bool
	Float bool

	// GPU is the closest gputypes format able to hold the data.
	GPU gputypes.TextureFormat

	// Fallback is the uncompressed equivalent used when compressed storage
	// is unavailable.
	Fallback Format

	// Image is the format an image buffer can hold this format's data in.
	Image Format
}

var formatInfoTable = [formatCount]FormatInfo{
	Unknown:       {Name: "Unknown"},
	L8:            {Name: "L8", Components: 1, BytesPerPixel: 1, GPU: gputypes.TextureFormatR8Unorm},
	L16:           {Name: "L16", Components: 1, BytesPerPixel: 2, GPU: gputypes.TextureFormatR16Unorm},
	A8:            {Name: "A8", Components: 1, BytesPerPixel: 1, GPU: gputypes.TextureFormatR8Unorm},
	L4A4:          {Name: "L4A4", Components: 2, BytesPerPixel: 1, GPU: gputypes.TextureFormatRG8Unorm, Image: L8A8},
	L8A8:          {Name: "L8A8", Components: 2, BytesPerPixel: 2, GPU: gputypes.TextureFormatRG8Unorm},
	D16:           {Name: "D16", Components: 1, BytesPerPixel: 2, Depth: true, GPU: gputypes.TextureFormatDepth16Unorm},
	D24:           {Name: "D24", Components: 1, BytesPerPixel: 4, Depth: true, GPU: gputypes.TextureFormatDepth24Plus, Image: D16},
	D32:           {Name: "D32", Components: 1, BytesPerPixel: 4, Depth: true, GPU: gputypes.TextureFormatDepth32Float, Image: D16},
	R3G3B2:        {Name: "R3G3B2", Components: 3, BytesPerPixel: 1, GPU: gputypes.TextureFormatRGBA8Unorm, Image: R8G8B8},
	R5G6B5:        {Name: "R5G6B5", Components: 3, BytesPerPixel: 2, GPU: gputypes.TextureFormatRGBA8Unorm, Image: R8G8B8},
	R5G5B5A1:      {Name: "R5G5B5A1", Components: 4, BytesPerPixel: 2, GPU: gputypes.TextureFormatRGBA8Unorm, Image: R8G8B8A8},
	R4G4B4A4:      {Name: "R4G4B4A4", Components: 4, BytesPerPixel: 2, GPU: gputypes.TextureFormatRGBA8Unorm, Image: R8G8B8A8},
	R8G8B8:        {Name: "R8G8B8", Components: 3, BytesPerPixel: 3, GPU: gputypes.TextureFormatRGBA8Unorm},
	R8G8B8A8:      {Name: "R8G8B8A8", Components: 4, BytesPerPixel: 4, GPU: gputypes.TextureFormatRGBA8Unorm},
	R10G10B10A2:   {Name: "R10G10B10A2", Components: 4, BytesPerPixel: 4, GPU: gputypes.TextureFormatRGB10A2Unorm, Image: R16G16B16A16},
	R16G16B16A16:  {Name: "R16G16B16A16", Components: 4, BytesPerPixel: 8, GPU: gputypes.TextureFormatRGBA16Unorm},
	DXT1:          {Name: "DXT1", Components: 3, BlockBytes: 8, GPU: gputypes.TextureFormatBC1RGBAUnorm, Fallback: R8G8B8},
	DXT3:          {Name: "DXT3", Components: 4, BlockBytes: 16, GPU: gputypes.TextureFormatBC2RGBAUnorm, Fallback: R8G8B8A8},
	DXT5:          {Name: "DXT5", Components: 4, BlockBytes: 16, GPU: gputypes.TextureFormatBC3RGBAUnorm, Fallback: R8G8B8A8},
	LATC1:         {Name: "LATC1", Components: 1, BlockBytes: 8, GPU: gputypes.TextureFormatBC4RUnorm, Fallback: L8},
	LATC2:         {Name: "LATC2", Components: 2, BlockBytes: 16, GPU: gputypes.TextureFormatBC5RGUnorm, Fallback: L8A8},
	L16F:          {Name: "L16F", Components: 1, BytesPerPixel: 2, Float: true, GPU: gputypes.TextureFormatR16Float},
	L32F:          {Name: "L32F", Components: 1, BytesPerPixel: 4, Float: true, GPU: gputypes.TextureFormatR32Float},
	R16G16B16A16F: {Name: "R16G16B16A16F", Components: 4, BytesPerPixel: 8, Float: true, GPU: gputypes.TextureFormatRGBA16Float},
	R32G32B32A32F: {Name: "R32G32B32A32F", Components: 4, BytesPerPixel: 16, Float: true, GPU: gputypes.TextureFormatRGBA32Float},
}

// Info returns the FormatInfo for this format.
func (f Format) Info() FormatInfo {
	if f >= formatCount {
		return FormatInfo{}
	}
	return formatInfoTable[f]
}

// IsValid reports whether f is a known, specified format.
func (f Format) IsValid() bool {
	return f > Unknown && f < formatCount
}

// String returns the format name.
func (f Format) String() string {
	if f >= formatCount {
		return fmt.Sprintf("Format(%d)", uint8(f))
	}
	return formatInfoTable[f].Name
}

// Components returns the number of channels.
func (f Format) Components() int {
	return f.Info().Components
}

// BytesPerPixel returns the texel size, or 0 for compressed formats.
func (f Format) BytesPerPixel() int {
	return f.Info().BytesPerPixel
}

// BlockBytes returns the size of one 4x4 block, or 0 for uncompressed formats.
func (f Format) BlockBytes() int {
	return f.Info().BlockBytes
}

// IsCompressed reports whether f is block-compressed.
func (f Format) IsCompressed() bool {
	return f.Info().BlockBytes != 0
}

// IsDepth reports whether f is a depth format.
func (f Format) IsDepth() bool {
	return f.Info().Depth
}

// IsFloat reports whether f stores floating-point channels.
func (f Format) IsFloat() bool {
	return f.Info().Float
}

// Uncompressed returns the uncompressed equivalent of a compressed format.
// Uncompressed formats are returned unchanged.
func (f Format) Uncompressed() Format {
	if fb := f.Info().Fallback; fb != Unknown {
		return fb
	}
	return f
}

// ImageFormat returns the format an image buffer stores this format's data in.
func (f Format) ImageFormat() Format {
	if img := f.Info().Image; img != Unknown {
		return img
	}
	return f
}

// GPUFormat returns the closest gputypes texture format.
func (f Format) GPUFormat() gputypes.TextureFormat {
	return f.Info().GPU
}

// RequiredFeature returns the device feature needed to store f natively,
// or 0 when none is required.
func (f Format) RequiredFeature() gputypes.Feature {
	if f.IsCompressed() {
		return gputypes.FeatureTextureCompressionBC
	}
	return 0
}

// BlockAligned reports whether a w x h region can be stored in f without
// partial blocks. Uncompressed formats are always aligned.
func (f Format) BlockAligned(w, h int) bool {
	if !f.IsCompressed() {
		return true
	}
	return w%BlockDim == 0 && h%BlockDim == 0
}

// RowBytes returns the size of one row of texels (or one row of blocks).
func (f Format) RowBytes(width int) int {
	if f.IsCompressed() {
		return blocks(width) * f.BlockBytes()
	}
	return width * f.BytesPerPixel()
}

// NumOfBytes returns the storage size of a w x h x d region.
// Compressed formats round each slice up to whole blocks.
func (f Format) NumOfBytes(w, h, d int) int {
	if w <= 0 || h <= 0 || d <= 0 {
		return 0
	}
	if f.IsCompressed() {
		return blocks(w) * blocks(h) * f.BlockBytes() * d
	}
	return w * h * d * f.BytesPerPixel()
}

func blocks(n int) int {
	return (n + BlockDim - 1) / BlockDim
}
