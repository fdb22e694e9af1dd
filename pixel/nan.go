package pixel

import (
	"github.com/chewxy/math32"
	"github.com/x448/float16"
)

// NumNaN returns the number of NaN channel values in data.
// Only floating-point formats can hold NaNs; others always report 0.
func NumNaN(f Format, data []byte) int {
	return visitNaN(f, data, false)
}

// FixNaN replaces every NaN channel value in data with zero and returns the
// number of values replaced.
func FixNaN(f Format, data []byte) int {
	return visitNaN(f, data, true)
}

func visitNaN(f Format, data []byte, fix bool) int {
	n := 0
	switch f {
	case L16F, R16G16B16A16F:
		for off := 0; off+2 <= len(data); off += 2 {
			if float16.Frombits(le.Uint16(data[off:])).IsNaN() {
				n++
				if fix {
					le.PutUint16(data[off:], 0)
				}
			}
		}
	case L32F, R32G32B32A32F:
		for off := 0; off+4 <= len(data); off += 4 {
			if math32.IsNaN(math32.Float32frombits(le.Uint32(data[off:]))) {
				n++
				if fix {
					le.PutUint32(data[off:], 0)
				}
			}
		}
	}
	return n
}
