package gpures

import (
	"fmt"
	"math/bits"

	"github.com/gogpu/gpures/backend"
)

// Size is a texture or render target extent. Depth is the layer count of
// array textures and 1 for every kind but 3D.
type Size struct {
	Width, Height, Depth int
}

// String returns "WxHxD".
func (s Size) String() string {
	return fmt.Sprintf("%dx%dx%d", s.Width, s.Height, s.Depth)
}

// MipLevel describes one level of a mip chain.
type MipLevel struct {
	Index int
	Size  Size

	// Bytes is the storage size of the level across all faces.
	Bytes int
}

// MipLevelCount returns the length of a complete mip chain ending at 1x1
// (1x1x1 for 3D). Rectangle textures have no mip chain.
func MipLevelCount(kind backend.TextureKind, w, h, d int) int {
	if kind == backend.TextureRectangle {
		return 1
	}
	m := max(w, h)
	if kind == backend.Texture3D {
		m = max(m, d)
	}
	if m <= 0 {
		return 0
	}
	return bits.Len(uint(m))
}

// MipChain lists every level of desc.
func MipChain(desc backend.TextureDesc) []MipLevel {
	chain := make([]MipLevel, desc.Levels)
	for l := range chain {
		w, h, d := desc.LevelSize(l)
		chain[l] = MipLevel{
			Index: l,
			Size:  Size{w, h, d},
			Bytes: desc.LevelBytes(l) * desc.Kind.Faces(),
		}
	}
	return chain
}
