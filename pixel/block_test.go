package pixel

import (
	"bytes"
	"errors"
	"testing"
)

func TestDecompress(t *testing.T) {
	// Endpoints red (0xF800) and blue (0x001F); texel 0 selects c0, texel 1
	// c1, texel 2 the 2/3 red mix and texel 3 the 1/3 red mix.
	color4 := []byte{0x00, 0xF8, 0x1F, 0x00, 0xE4, 0, 0, 0}
	// c0 < c1 selects three-color mode; index 3 is black.
	color3 := []byte{0x1F, 0x00, 0x00, 0xF8, 0xFF, 0, 0, 0}
	// Alpha endpoints 255 and 0; texels 0-2 use indices 0, 1 and 2
	// (6/7 of a0).
	alpha := []byte{0xFF, 0x00, 0x88, 0x00, 0, 0, 0, 0}

	tests := []struct {
		name   string
		format Format
		block  []byte
		want   []byte // first texels of the decoded row
	}{
		{"DXT1 four colors", DXT1, color4, []byte{255, 0, 0, 0, 0, 255, 170, 0, 85, 85, 0, 170}},
		{"DXT1 three colors", DXT1, color3, []byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}},
		{"DXT3 explicit alpha", DXT3, append([]byte{0x21, 0, 0, 0, 0, 0, 0, 0}, color4...), []byte{255, 0, 0, 0x11, 0, 0, 255, 0x22}},
		{"DXT5 interpolated alpha", DXT5, append(append([]byte{}, alpha...), color4...), []byte{255, 0, 0, 255, 0, 0, 255, 0, 170, 0, 85, 218}},
		{"LATC1", LATC1, alpha, []byte{255, 0, 218}},
		{"LATC2", LATC2, append(append([]byte{}, alpha...), 0x80, 0x80, 0, 0, 0, 0, 0, 0), []byte{255, 128, 0, 128, 218, 128}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decompress(tt.format, tt.block, 4, 4, 1)
			if err != nil {
				t.Fatalf("Decompress() error = %v", err)
			}
			if want := tt.format.Uncompressed().NumOfBytes(4, 4, 1); len(got) != want {
				t.Fatalf("len(Decompress()) = %d, want %d", len(got), want)
			}
			if !bytes.Equal(got[:len(tt.want)], tt.want) {
				t.Errorf("Decompress() = %v, want prefix %v", got[:len(tt.want)], tt.want)
			}
		})
	}
}

func TestDecompressThreeColorMix(t *testing.T) {
	// Three-color mode: index 2 is the midpoint, index 3 black.
	block := []byte{0x1F, 0x00, 0x00, 0xF8, 0x0E, 0, 0, 0}
	got, err := Decompress(DXT1, block, 4, 4, 1)
	if err != nil {
		t.Fatalf("Decompress() error = %v", err)
	}
	want := []byte{127, 0, 127, 0, 0, 0, 0, 0, 255, 0, 0, 255}
	if !bytes.Equal(got[:12], want) {
		t.Errorf("Decompress() = %v, want prefix %v", got[:12], want)
	}
}

func TestDecompressClipsAndSlices(t *testing.T) {
	// A 6x2x2 DXT1 region spans two blocks per slice.
	data := White(DXT1, 6, 2, 2)
	got, err := Decompress(DXT1, data, 6, 2, 2)
	if err != nil {
		t.Fatalf("Decompress() error = %v", err)
	}
	if len(got) != 6*2*2*3 {
		t.Fatalf("len(Decompress()) = %d, want %d", len(got), 6*2*2*3)
	}
	for i, b := range got {
		if b != 255 {
			t.Fatalf("byte %d = %d, want 255", i, b)
		}
	}

	lum, err := Decompress(LATC2, White(LATC2, 1, 1, 1), 1, 1, 1)
	if err != nil {
		t.Fatalf("Decompress(LATC2) error = %v", err)
	}
	if !bytes.Equal(lum, []byte{255, 255}) {
		t.Errorf("Decompress(LATC2 white) = %v, want [255 255]", lum)
	}
}

func TestDecompressErrors(t *testing.T) {
	if _, err := Decompress(R8G8B8A8, make([]byte, 64), 4, 4, 1); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("Decompress(R8G8B8A8) error = %v, want ErrInvalidFormat", err)
	}
	if _, err := Decompress(DXT5, make([]byte, 8), 4, 4, 1); !errors.Is(err, ErrSize) {
		t.Errorf("Decompress(short) error = %v, want ErrSize", err)
	}
}
