package gpures

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/gogpu/gpures/pixel"
)

// DataFormat is the per-component storage of an ImageBuffer.
type DataFormat uint8

const (
	DataByte  DataFormat = iota // 8-bit unsigned normalized
	DataWord                    // 16-bit unsigned normalized
	DataHalf                    // 16-bit float
	DataFloat                   // 32-bit float
)

// String returns the data format name.
func (d DataFormat) String() string {
	switch d {
	case DataByte:
		return "byte"
	case DataWord:
		return "word"
	case DataHalf:
		return "half"
	case DataFloat:
		return "float"
	default:
		return fmt.Sprintf("DataFormat(%d)", uint8(d))
	}
}

// Compression is the block compression of precompressed image data.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionDXT1
	CompressionDXT3
	CompressionDXT5
	CompressionLATC1
	CompressionLATC2
)

var compressionFormats = [...]pixel.Format{
	CompressionNone:  pixel.Unknown,
	CompressionDXT1:  pixel.DXT1,
	CompressionDXT3:  pixel.DXT3,
	CompressionDXT5:  pixel.DXT5,
	CompressionLATC1: pixel.LATC1,
	CompressionLATC2: pixel.LATC2,
}

// Format returns the pixel format of the compressed data, pixel.Unknown
// for CompressionNone.
func (c Compression) Format() pixel.Format {
	if int(c) >= len(compressionFormats) {
		return pixel.Unknown
	}
	return compressionFormats[c]
}

// BlockBytes returns the size of one 4x4 block.
func (c Compression) BlockBytes() int {
	return c.Format().BlockBytes()
}

// String returns the compression name.
func (c Compression) String() string {
	if c == CompressionNone {
		return "none"
	}
	if f := c.Format(); f != pixel.Unknown {
		return f.String()
	}
	return fmt.Sprintf("Compression(%d)", uint8(c))
}

func compressionOf(f pixel.Format) Compression {
	for c, cf := range compressionFormats {
		if cf == f && f != pixel.Unknown {
			return Compression(c)
		}
	}
	return CompressionNone
}

// ImagePart names one independently stored image of a texture.
type ImagePart uint8

const (
	PartStatic ImagePart = iota
	PartCubePosX
	PartCubeNegX
	PartCubePosY
	PartCubeNegY
	PartCubePosZ
	PartCubeNegZ
)

// CubeFace returns the part of cube face i (0..5).
func CubeFace(i int) ImagePart {
	return PartCubePosX + ImagePart(i)
}

// String returns the part name.
func (p ImagePart) String() string {
	switch p {
	case PartStatic:
		return "static"
	case PartCubePosX:
		return "+x"
	case PartCubeNegX:
		return "-x"
	case PartCubePosY:
		return "+y"
	case PartCubeNegY:
		return "-y"
	case PartCubePosZ:
		return "+z"
	case PartCubeNegZ:
		return "-z"
	default:
		return fmt.Sprintf("ImagePart(%d)", uint8(p))
	}
}

// ImageBuffer is one mip level of one image part.
//
// Data holds uncompressed texels, rows tightly packed, Components channels
// of DataFormat each. When Compression is set, CompressedData holds the
// same level block-compressed; Data may then be empty.
type ImageBuffer struct {
	Width, Height, Depth int
	Components           int
	DataFormat           DataFormat
	Data                 []byte

	Compression    Compression
	CompressedData []byte
}

type imageLayout struct {
	data  DataFormat
	comps int
}

var imageLayouts = map[imageLayout]pixel.Format{
	{DataByte, 1}:  pixel.L8,
	{DataByte, 2}:  pixel.L8A8,
	{DataByte, 3}:  pixel.R8G8B8,
	{DataByte, 4}:  pixel.R8G8B8A8,
	{DataWord, 1}:  pixel.L16,
	{DataWord, 4}:  pixel.R16G16B16A16,
	{DataHalf, 1}:  pixel.L16F,
	{DataHalf, 4}:  pixel.R16G16B16A16F,
	{DataFloat, 1}: pixel.L32F,
	{DataFloat, 4}: pixel.R32G32B32A32F,
}

func layoutOf(f pixel.Format) (imageLayout, bool) {
	switch f {
	case pixel.A8:
		return imageLayout{DataByte, 1}, true
	case pixel.D16:
		return imageLayout{DataWord, 1}, true
	}
	for l, lf := range imageLayouts {
		if lf == f {
			return l, true
		}
	}
	return imageLayout{}, false
}

// PixelFormat returns the pixel format of Data, pixel.Unknown when the
// layout has no pixel format.
func (b *ImageBuffer) PixelFormat() pixel.Format {
	return imageLayouts[imageLayout{b.DataFormat, b.Components}]
}

func (b *ImageBuffer) depth() int {
	return max(1, b.Depth)
}

// NewImageBuffer creates a level holding data in format f. f must be one
// of the image-compatible formats (see pixel.Format.ImageFormat) or a
// compressed format, in which case data is stored as CompressedData.
func NewImageBuffer(w, h, d int, f pixel.Format, data []byte) (*ImageBuffer, error) {
	if want := f.NumOfBytes(w, h, max(1, d)); len(data) != want {
		return nil, fmt.Errorf("%w: %v %dx%dx%d has %d bytes, want %d",
			pixel.ErrSize, f, w, h, d, len(data), want)
	}
	b := &ImageBuffer{Width: w, Height: h, Depth: max(1, d)}
	if f.IsCompressed() {
		un := f.Uncompressed()
		l, _ := layoutOf(un)
		b.Components, b.DataFormat = l.comps, l.data
		b.Compression, b.CompressedData = compressionOf(f), data
		return b, nil
	}
	l, ok := layoutOf(f)
	if !ok {
		return nil, fmt.Errorf("%w: %v is not an image format", pixel.ErrInvalidFormat, f)
	}
	b.Components, b.DataFormat, b.Data = l.comps, l.data, data
	return b, nil
}

// Image is a decoded image: one or more parts, each a mip chain.
type Image struct {
	parts map[ImagePart][]*ImageBuffer
}

// NewImage creates an empty image.
func NewImage() *Image {
	return &Image{parts: map[ImagePart][]*ImageBuffer{}}
}

// SetLevels replaces the mip chain of part. levels[0] is the full size.
func (img *Image) SetLevels(part ImagePart, levels ...*ImageBuffer) {
	if len(levels) == 0 {
		delete(img.parts, part)
		return
	}
	img.parts[part] = levels
}

// Levels returns the mip chain of part.
func (img *Image) Levels(part ImagePart) []*ImageBuffer {
	if img == nil {
		return nil
	}
	return img.parts[part]
}

// Part returns level 0 of part, or nil.
func (img *Image) Part(part ImagePart) *ImageBuffer {
	if l := img.Levels(part); len(l) > 0 {
		return l[0]
	}
	return nil
}

// NumParts returns the number of parts present.
func (img *Image) NumParts() int {
	if img == nil {
		return 0
	}
	return len(img.parts)
}

// NewImageFromGo converts a Go image into a single-part, single-level
// R8G8B8A8 image with straight alpha.
func NewImageFromGo(src image.Image) *Image {
	b := src.Bounds()
	rgba, ok := src.(*image.NRGBA)
	if !ok || rgba.Rect.Min != (image.Point{}) || rgba.Stride != 4*b.Dx() {
		rgba = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), src, b.Min, draw.Src)
	}
	img := NewImage()
	img.SetLevels(PartStatic, &ImageBuffer{
		Width:      b.Dx(),
		Height:     b.Dy(),
		Depth:      1,
		Components: 4,
		DataFormat: DataByte,
		Data:       rgba.Pix,
	})
	return img
}

// ToGo converts level 0 of part into a Go image. Only 8-bit buffers with
// 1 to 4 components are supported.
func (img *Image) ToGo(part ImagePart) (*image.NRGBA, error) {
	b := img.Part(part)
	if b == nil {
		return nil, fmt.Errorf("%w: image has no %v part", ErrInvalidUsage, part)
	}
	f := b.PixelFormat()
	if b.DataFormat != DataByte || f == pixel.Unknown {
		return nil, fmt.Errorf("%w: %v x%d", pixel.ErrInvalidFormat, b.DataFormat, b.Components)
	}
	n := f.NumOfBytes(b.Width, b.Height, 1)
	if len(b.Data) < n {
		return nil, fmt.Errorf("%w: %d bytes, want %d", pixel.ErrSize, len(b.Data), n)
	}
	data, err := pixel.Convert(pixel.R8G8B8A8, f, b.Data[:n])
	if err != nil {
		return nil, err
	}
	out := image.NewNRGBA(image.Rect(0, 0, b.Width, b.Height))
	copy(out.Pix, data)
	return out, nil
}
