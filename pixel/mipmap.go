package pixel

import "fmt"

// Downsample produces the next mip level of a w x h x d region stored in f
// using a box filter. Each output texel averages the 2x2 (2x2x2 when
// halveDepth is set) source texels it covers; odd edges clamp to the last
// row, column or slice. Dimensions never drop below 1.
//
// Slices that are not halved (array layers, cube faces) are filtered
// independently.
func Downsample(f Format, data []byte, w, h, d int, halveDepth bool) (out []byte, nw, nh, nd int, err error) {
	if f.IsCompressed() {
		return nil, 0, 0, 0, ErrCompressed
	}
	if want := f.NumOfBytes(w, h, d); len(data) != want || want == 0 {
		return nil, 0, 0, 0, fmt.Errorf("%w: have %d bytes, want %d", ErrSize, len(data), want)
	}

	nw, nh, nd = max(1, w/2), max(1, h/2), d
	if halveDepth {
		nd = max(1, d/2)
	}
	out = make([]byte, f.NumOfBytes(nw, nh, nd))

	zTaps := 1
	if halveDepth && d > 1 {
		zTaps = 2
	}

	at := func(x, y, z int) (Texel, error) {
		x, y, z = min(x, w-1), min(y, h-1), min(z, d-1)
		return Decode(f, data, (z*h+y)*w+x)
	}

	for z := range nd {
		sz := z
		if halveDepth {
			sz = z * 2
		}
		for y := range nh {
			for x := range nw {
				var sum Texel
				n := float32(0)
				for dz := range zTaps {
					for dy := range 2 {
						for dx := range 2 {
							t, err := at(x*2+dx, y*2+dy, sz+dz)
							if err != nil {
								return nil, 0, 0, 0, err
							}
							for c := range 4 {
								sum[c] += t[c]
							}
							n++
						}
					}
				}
				for c := range 4 {
					sum[c] /= n
				}
				if err := Encode(f, out, (z*nh+y)*nw+x, sum); err != nil {
					return nil, 0, 0, 0, err
				}
			}
		}
	}
	return out, nw, nh, nd, nil
}

// White returns a w x h x d region of format f filled with opaque white
// (maximum depth for depth formats). Compressed formats are filled with
// blocks that decode to white.
func White(f Format, w, h, d int) []byte {
	size := f.NumOfBytes(w, h, d)
	out := make([]byte, size)
	if size == 0 {
		return out
	}
	if f.IsCompressed() {
		block := whiteBlock(f)
		for off := 0; off < size; off += len(block) {
			copy(out[off:], block)
		}
		return out
	}
	n := size / f.BytesPerPixel()
	for i := range n {
		_ = Encode(f, out, i, Texel{1, 1, 1, 1})
	}
	return out
}

var (
	// Both endpoints 0xFFFF (white), all indices 0.
	dxt1White = []byte{0xFF, 0xFF, 0xFF, 0xFF, 0, 0, 0, 0}
	// Endpoint 0 is 0xFF, all indices select it.
	rgtcWhite = []byte{0xFF, 0xFF, 0, 0, 0, 0, 0, 0}
)

func whiteBlock(f Format) []byte {
	switch f {
	case DXT1:
		return dxt1White
	case DXT3:
		b := make([]byte, 0, 16)
		b = append(b, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF)
		return append(b, dxt1White...)
	case DXT5:
		b := make([]byte, 0, 16)
		b = append(b, rgtcWhite...)
		return append(b, dxt1White...)
	case LATC1:
		return rgtcWhite
	case LATC2:
		b := make([]byte, 0, 16)
		b = append(b, rgtcWhite...)
		return append(b, rgtcWhite...)
	}
	return make([]byte, f.BlockBytes())
}
