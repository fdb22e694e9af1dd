package pixel

import "fmt"

// Decompress decodes a w x h x d region of block-compressed data into
// f.Uncompressed(): DXT1 to R8G8B8, DXT3 and DXT5 to R8G8B8A8, LATC1 to L8
// and LATC2 to L8A8. Blocks overhanging the region are clipped.
func Decompress(f Format, data []byte, w, h, d int) ([]byte, error) {
	if !f.IsCompressed() {
		return nil, fmt.Errorf("%w: %s is not block-compressed", ErrInvalidFormat, f)
	}
	if want := f.NumOfBytes(w, h, d); len(data) != want || want == 0 {
		return nil, fmt.Errorf("%w: have %d bytes, want %d", ErrSize, len(data), want)
	}
	dst := f.Uncompressed()
	bpp := dst.BytesPerPixel()
	out := make([]byte, dst.NumOfBytes(w, h, d))
	bb := f.BlockBytes()
	bw, bh := blocks(w), blocks(h)

	var texels [16][4]byte
	off := 0
	for z := range d {
		for by := range bh {
			for bx := range bw {
				decodeBlock(f, data[off:off+bb], &texels)
				off += bb
				for i, t := range texels {
					x, y := bx*BlockDim+i%BlockDim, by*BlockDim+i/BlockDim
					if x >= w || y >= h {
						continue
					}
					p := ((z*h+y)*w + x) * bpp
					copy(out[p:p+bpp], t[:bpp])
				}
			}
		}
	}
	return out, nil
}

// decodeBlock writes the 16 texels of one block in row-major order, with
// channels laid out as in f.Uncompressed().
func decodeBlock(f Format, b []byte, out *[16][4]byte) {
	switch f {
	case DXT1:
		colorBlock(b, true, out)
	case DXT3:
		colorBlock(b[8:], false, out)
		bits := le.Uint64(b)
		for i := range out {
			a := byte(bits>>(4*i)) & 0xF
			out[i][3] = a<<4 | a
		}
	case DXT5:
		colorBlock(b[8:], false, out)
		var a [16]byte
		alphaBlock(b, &a)
		for i := range out {
			out[i][3] = a[i]
		}
	case LATC1:
		var l [16]byte
		alphaBlock(b, &l)
		for i := range out {
			out[i][0] = l[i]
		}
	case LATC2:
		var l, a [16]byte
		alphaBlock(b, &l)
		alphaBlock(b[8:], &a)
		for i := range out {
			out[i][0], out[i][1] = l[i], a[i]
		}
	}
}

func rgb565(c uint16) [4]byte {
	r, g, b := byte(c>>11&0x1F), byte(c>>5&0x3F), byte(c&0x1F)
	return [4]byte{r<<3 | r>>2, g<<2 | g>>4, b<<3 | b>>2, 0xFF}
}

func mix(a, b [4]byte, wa, wb, div int) [4]byte {
	var m [4]byte
	for c := range 3 {
		m[c] = byte((wa*int(a[c]) + wb*int(b[c])) / div)
	}
	m[3] = 0xFF
	return m
}

// colorBlock decodes an 8-byte BC1 color block. The three-color mode with
// transparent black only exists for DXT1.
func colorBlock(b []byte, dxt1 bool, out *[16][4]byte) {
	c0, c1 := le.Uint16(b), le.Uint16(b[2:])
	var pal [4][4]byte
	pal[0], pal[1] = rgb565(c0), rgb565(c1)
	if c0 > c1 || !dxt1 {
		pal[2] = mix(pal[0], pal[1], 2, 1, 3)
		pal[3] = mix(pal[0], pal[1], 1, 2, 3)
	} else {
		pal[2] = mix(pal[0], pal[1], 1, 1, 2)
		pal[3] = [4]byte{}
	}
	idx := le.Uint32(b[4:])
	for i := range out {
		out[i] = pal[idx>>(2*i)&3]
	}
}

// alphaBlock decodes an 8-byte BC4 block (DXT5 alpha, LATC channels).
func alphaBlock(b []byte, out *[16]byte) {
	a0, a1 := int(b[0]), int(b[1])
	var pal [8]byte
	pal[0], pal[1] = byte(a0), byte(a1)
	if a0 > a1 {
		for i := 1; i < 7; i++ {
			pal[i+1] = byte(((7-i)*a0 + i*a1) / 7)
		}
	} else {
		for i := 1; i < 5; i++ {
			pal[i+1] = byte(((5-i)*a0 + i*a1) / 5)
		}
		pal[6], pal[7] = 0, 0xFF
	}
	var bits uint64
	for i := range 6 {
		bits |= uint64(b[2+i]) << (8 * i)
	}
	for i := range out {
		out[i] = pal[bits>>(3*i)&7]
	}
}
