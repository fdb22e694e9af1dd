package pixel

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/x448/float16"
)

// Errors returned by the conversion functions.
var (
	// ErrCompressed is returned when texel access is requested on a
	// block-compressed format. Compressed data is only ever copied verbatim.
	ErrCompressed = errors.New("pixel: texel access on compressed format")

	// ErrInvalidFormat is returned for Unknown or out-of-range formats.
	ErrInvalidFormat = errors.New("pixel: invalid format")

	// ErrSize is returned when a buffer length does not match its dimensions.
	ErrSize = errors.New("pixel: buffer size mismatch")
)

// Texel is a decoded texel: red, green, blue, alpha in normalized units
// (or raw values for float formats). Luminance lands in RGB, depth in R.
type Texel [4]float32

var le = binary.LittleEndian

func unorm(v uint32, bits uint) float32 {
	return float32(v) / float32(uint32(1)<<bits-1)
}

func quant(x float32, bits uint) uint32 {
	maxv := float32(uint32(1)<<bits - 1)
	x = math32.Max(0, math32.Min(1, x))
	return uint32(math32.Round(x * maxv))
}

// Decode reads the i-th texel of data stored in format f.
func Decode(f Format, data []byte, i int) (Texel, error) {
	if f.IsCompressed() {
		return Texel{}, ErrCompressed
	}
	bpp := f.BytesPerPixel()
	if bpp == 0 {
		return Texel{}, ErrInvalidFormat
	}
	off := i * bpp
	if i < 0 || off+bpp > len(data) {
		return Texel{}, fmt.Errorf("%w: texel %d of %d bytes", ErrSize, i, len(data))
	}
	p := data[off : off+bpp]

	switch f {
	case L8:
		l := unorm(uint32(p[0]), 8)
		return Texel{l, l, l, 1}, nil
	case L16:
		l := unorm(uint32(le.Uint16(p)), 16)
		return Texel{l, l, l, 1}, nil
	case A8:
		return Texel{0, 0, 0, unorm(uint32(p[0]), 8)}, nil
	case L4A4:
		l := unorm(uint32(p[0]>>4), 4)
		return Texel{l, l, l, unorm(uint32(p[0]&0xF), 4)}, nil
	case L8A8:
		l := unorm(uint32(p[0]), 8)
		return Texel{l, l, l, unorm(uint32(p[1]), 8)}, nil
	case D16:
		return Texel{unorm(uint32(le.Uint16(p)), 16), 0, 0, 1}, nil
	case D24:
		return Texel{unorm(le.Uint32(p)&0xFFFFFF, 24), 0, 0, 1}, nil
	case D32:
		return Texel{math32.Float32frombits(le.Uint32(p)), 0, 0, 1}, nil
	case R3G3B2:
		v := uint32(p[0])
		return Texel{unorm(v>>5, 3), unorm(v>>2&0x7, 3), unorm(v&0x3, 2), 1}, nil
	case R5G6B5:
		v := uint32(le.Uint16(p))
		return Texel{unorm(v>>11, 5), unorm(v>>5&0x3F, 6), unorm(v&0x1F, 5), 1}, nil
	case R5G5B5A1:
		v := uint32(le.Uint16(p))
		return Texel{unorm(v>>11, 5), unorm(v>>6&0x1F, 5), unorm(v>>1&0x1F, 5), unorm(v&1, 1)}, nil
	case R4G4B4A4:
		v := uint32(le.Uint16(p))
		return Texel{unorm(v>>12, 4), unorm(v>>8&0xF, 4), unorm(v>>4&0xF, 4), unorm(v&0xF, 4)}, nil
	case R8G8B8:
		return Texel{unorm(uint32(p[0]), 8), unorm(uint32(p[1]), 8), unorm(uint32(p[2]), 8), 1}, nil
	case R8G8B8A8:
		return Texel{unorm(uint32(p[0]), 8), unorm(uint32(p[1]), 8), unorm(uint32(p[2]), 8), unorm(uint32(p[3]), 8)}, nil
	case R10G10B10A2:
		v := le.Uint32(p)
		return Texel{unorm(v&0x3FF, 10), unorm(v>>10&0x3FF, 10), unorm(v>>20&0x3FF, 10), unorm(v>>30, 2)}, nil
	case R16G16B16A16:
		var t Texel
		for c := range 4 {
			t[c] = unorm(uint32(le.Uint16(p[c*2:])), 16)
		}
		return t, nil
	case L16F:
		l := float16.Frombits(le.Uint16(p)).Float32()
		return Texel{l, l, l, 1}, nil
	case L32F:
		l := math32.Float32frombits(le.Uint32(p))
		return Texel{l, l, l, 1}, nil
	case R16G16B16A16F:
		var t Texel
		for c := range 4 {
			t[c] = float16.Frombits(le.Uint16(p[c*2:])).Float32()
		}
		return t, nil
	case R32G32B32A32F:
		var t Texel
		for c := range 4 {
			t[c] = math32.Float32frombits(le.Uint32(p[c*4:]))
		}
		return t, nil
	}
	return Texel{}, ErrInvalidFormat
}

// Encode writes t as the i-th texel of data stored in format f.
func Encode(f Format, data []byte, i int, t Texel) error {
	if f.IsCompressed() {
		return ErrCompressed
	}
	bpp := f.BytesPerPixel()
	if bpp == 0 {
		return ErrInvalidFormat
	}
	off := i * bpp
	if i < 0 || off+bpp > len(data) {
		return fmt.Errorf("%w: texel %d of %d bytes", ErrSize, i, len(data))
	}
	p := data[off : off+bpp]

	switch f {
	case L8:
		p[0] = byte(quant(t[0], 8))
	case L16:
		le.PutUint16(p, uint16(quant(t[0], 16)))
	case A8:
		p[0] = byte(quant(t[3], 8))
	case L4A4:
		p[0] = byte(quant(t[0], 4)<<4 | quant(t[3], 4))
	case L8A8:
		p[0] = byte(quant(t[0], 8))
		p[1] = byte(quant(t[3], 8))
	case D16:
		le.PutUint16(p, uint16(quant(t[0], 16)))
	case D24:
		le.PutUint32(p, quant(t[0], 24))
	case D32:
		le.PutUint32(p, math32.Float32bits(t[0]))
	case R3G3B2:
		p[0] = byte(quant(t[0], 3)<<5 | quant(t[1], 3)<<2 | quant(t[2], 2))
	case R5G6B5:
		le.PutUint16(p, uint16(quant(t[0], 5)<<11|quant(t[1], 6)<<5|quant(t[2], 5)))
	case R5G5B5A1:
		le.PutUint16(p, uint16(quant(t[0], 5)<<11|quant(t[1], 5)<<6|quant(t[2], 5)<<1|quant(t[3], 1)))
	case R4G4B4A4:
		le.PutUint16(p, uint16(quant(t[0], 4)<<12|quant(t[1], 4)<<8|quant(t[2], 4)<<4|quant(t[3], 4)))
	case R8G8B8:
		for c := range 3 {
			p[c] = byte(quant(t[c], 8))
		}
	case R8G8B8A8:
		for c := range 4 {
			p[c] = byte(quant(t[c], 8))
		}
	case R10G10B10A2:
		le.PutUint32(p, quant(t[0], 10)|quant(t[1], 10)<<10|quant(t[2], 10)<<20|quant(t[3], 2)<<30)
	case R16G16B16A16:
		for c := range 4 {
			le.PutUint16(p[c*2:], uint16(quant(t[c], 16)))
		}
	case L16F:
		le.PutUint16(p, float16.Fromfloat32(t[0]).Bits())
	case L32F:
		le.PutUint32(p, math32.Float32bits(t[0]))
	case R16G16B16A16F:
		for c := range 4 {
			le.PutUint16(p[c*2:], float16.Fromfloat32(t[c]).Bits())
		}
	case R32G32B32A32F:
		for c := range 4 {
			le.PutUint32(p[c*4:], math32.Float32bits(t[c]))
		}
	default:
		return ErrInvalidFormat
	}
	return nil
}

// Convert re-encodes uncompressed texel data from src to dst format.
// When the formats are equal the data is copied verbatim, which is also the
// only conversion allowed for compressed formats.
func Convert(dst, src Format, data []byte) ([]byte, error) {
	if dst == src {
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	}
	if dst.IsCompressed() || src.IsCompressed() {
		return nil, fmt.Errorf("%w: %s to %s", ErrCompressed, src, dst)
	}
	if !dst.IsValid() || !src.IsValid() {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidFormat, src, dst)
	}
	sbpp := src.BytesPerPixel()
	if len(data)%sbpp != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of %d", ErrSize, len(data), sbpp)
	}
	n := len(data) / sbpp
	out := make([]byte, n*dst.BytesPerPixel())
	for i := range n {
		t, err := Decode(src, data, i)
		if err != nil {
			return nil, err
		}
		if err := Encode(dst, out, i, t); err != nil {
			return nil, err
		}
	}
	return out, nil
}
