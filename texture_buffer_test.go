package gpures

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpures/backend"
	"github.com/gogpu/gpures/backend/soft"
	"github.com/gogpu/gpures/pixel"
)

func TestTextureFlagsString(t *testing.T) {
	tests := []struct {
		flags TextureFlags
		want  string
	}{
		{0, "none"},
		{FlagMipmaps, "mipmaps"},
		{FlagMipmaps | FlagCompression, "mipmaps|compression"},
		{FlagRenderTarget, "render-target"},
	}
	for _, tt := range tests {
		if got := tt.flags.String(); got != tt.want {
			t.Errorf("TextureFlags(%d).String() = %q, want %q", tt.flags, got, tt.want)
		}
	}
}

func TestTextureMipChain(t *testing.T) {
	red := pixel.Texel{1, 0, 0, 1}
	tests := []struct {
		name         string
		autoMipmaps  bool
		wantWarnings int
	}{
		{"device generated", true, 0},
		{"synthesized", false, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _, stats := newTestRenderer(t, func(c *backend.Caps) { c.AutoMipmaps = tt.autoMipmaps })
			tb, err := r.CreateTexture2D(imageOf(solidBuffer(t, 256, 256, 1, pixel.R8G8B8A8, red)), pixel.Unknown, FlagMipmaps)
			if err != nil {
				t.Fatalf("CreateTexture2D() error = %v", err)
			}
			if got := tb.NumMipLevels(); got != 9 {
				t.Errorf("NumMipLevels() = %d, want 9", got)
			}
			if got := tb.GetSize(8); got != (Size{1, 1, 1}) {
				t.Errorf("GetSize(8) = %v, want 1x1x1", got)
			}
			total := 0
			for l := range tb.NumMipLevels() {
				total += tb.GetNumOfBytes(l)
			}
			if got := tb.GetTotalNumOfBytes(); got != total || got != 349524 {
				t.Errorf("GetTotalNumOfBytes() = %d, want %d (sum of levels)", got, total)
			}
			if got := len(tb.Warnings()); got != tt.wantWarnings {
				t.Errorf("len(Warnings()) = %d, want %d: %q", got, tt.wantWarnings, tb.Warnings())
			}
			if got := tb.Download(8, pixel.Unknown, 0); !bytes.Equal(got, []byte{255, 0, 0, 255}) {
				t.Errorf("Download(8) = %v, want [255 0 0 255]", got)
			}
			if got := stats.Bytes(KindTexture); got != int64(total) {
				t.Errorf("stats.Bytes(KindTexture) = %d, want %d", got, total)
			}
			if got := stats.Count(KindTexture); got != 1 {
				t.Errorf("stats.Count(KindTexture) = %d, want 1", got)
			}
		})
	}
}

func TestTextureSuppliedLevelsOnly(t *testing.T) {
	r, _, _ := newTestRenderer(t, nil)
	img := imageOf(
		patternBuffer(t, 8, 8, pixel.L8, 1),
		patternBuffer(t, 4, 4, pixel.L8, 2),
	)
	tb, err := r.CreateTexture2D(img, pixel.Unknown, 0)
	if err != nil {
		t.Fatalf("CreateTexture2D() error = %v", err)
	}
	if got := tb.NumMipLevels(); got != 2 {
		t.Errorf("NumMipLevels() = %d, want 2", got)
	}
	if got := tb.Download(1, pixel.Unknown, 0); !bytes.Equal(got, img.Levels(PartStatic)[1].Data) {
		t.Error("Download(1) differs from the supplied level")
	}
}

func TestTextureWrongLevelSize(t *testing.T) {
	r, dev, _ := newTestRenderer(t, nil)
	img := imageOf(patternBuffer(t, 8, 8, pixel.L8, 1), patternBuffer(t, 3, 3, pixel.L8, 2))
	if _, err := r.CreateTexture2D(img, pixel.Unknown, 0); !errors.Is(err, ErrInvalidUsage) {
		t.Errorf("CreateTexture2D() error = %v, want ErrInvalidUsage", err)
	}
	if n := dev.Live().Textures; n != 0 {
		t.Errorf("live textures = %d, want 0", n)
	}
}

func TestTextureCreateErrors(t *testing.T) {
	l8 := func(t *testing.T, w, h int) *Image { return imageOf(patternBuffer(t, w, h, pixel.L8, 0)) }
	tests := []struct {
		name   string
		edit   func(*backend.Caps)
		create func(*Renderer, *testing.T) error
		want   error
	}{
		{"1D with height", nil, func(r *Renderer, t *testing.T) error {
			_, err := r.CreateTexture1D(l8(t, 8, 2), pixel.Unknown, 0)
			return err
		}, ErrInvalidUsage},
		{"nil image", nil, func(r *Renderer, t *testing.T) error {
			_, err := r.CreateTexture2D(nil, pixel.Unknown, 0)
			return err
		}, ErrInvalidUsage},
		{"3D unsupported", func(c *backend.Caps) { c.Texture3D = false }, func(r *Renderer, t *testing.T) error {
			_, err := r.CreateTexture3D(l8(t, 8, 8), pixel.Unknown, 0)
			return err
		}, ErrCapabilityUnavailable},
		{"cube missing face", nil, func(r *Renderer, t *testing.T) error {
			_, err := r.CreateTextureCube(l8(t, 8, 8), pixel.Unknown, 0)
			return err
		}, ErrInvalidUsage},
		{"render texture empty size", nil, func(r *Renderer, t *testing.T) error {
			_, err := r.CreateRenderTexture(backend.Texture2D, Size{}, pixel.R8G8B8A8, 0)
			return err
		}, ErrInvalidUsage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _, _ := newTestRenderer(t, tt.edit)
			if err := tt.create(r, t); !errors.Is(err, tt.want) {
				t.Errorf("create error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestTextureOutOfMemory(t *testing.T) {
	dev := soft.New(soft.Config{Caps: soft.DefaultCaps(), MaxBytes: 512})
	stats := NewStatistics(StatsConfig{})
	r, err := NewRenderer(dev, WithStats(stats))
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}
	_, err = r.CreateTexture2D(imageOf(patternBuffer(t, 16, 16, pixel.R8G8B8A8, 0)), pixel.Unknown, 0)
	if !errors.Is(err, ErrAllocation) {
		t.Errorf("CreateTexture2D() error = %v, want ErrAllocation", err)
	}
	if !errors.Is(err, soft.ErrOutOfMemory) {
		t.Errorf("CreateTexture2D() error = %v, want wrapped soft.ErrOutOfMemory", err)
	}
	if got := stats.Count(KindTexture); got != 0 {
		t.Errorf("stats.Count(KindTexture) = %d, want 0", got)
	}
}

func TestTextureCompressionFallback(t *testing.T) {
	r, dev, _ := newTestRenderer(t, nil)
	src := patternBuffer(t, 8, 8, pixel.R8G8B8A8, 5)
	tb, err := r.CreateTexture2D(imageOf(src), pixel.Unknown, FlagCompression|FlagMipmaps)
	if err != nil {
		t.Fatalf("CreateTexture2D() error = %v", err)
	}
	if got := tb.Negotiation().Internal; got != pixel.DXT5 {
		t.Errorf("Negotiation().Internal = %v, want DXT5", got)
	}
	if got := tb.Format(); got != pixel.R8G8B8A8 {
		t.Errorf("Format() = %v, want R8G8B8A8", got)
	}
	if w := tb.Warnings(); len(w) != 1 || !strings.Contains(w[0], "compressed storage unavailable") {
		t.Errorf("Warnings() = %q, want one compression warning", w)
	}
	if got := tb.Download(0, pixel.Unknown, 0); !bytes.Equal(got, src.Data) {
		t.Error("level 0 differs from the image after fallback")
	}
	if got := tb.NumMipLevels(); got != 4 {
		t.Errorf("NumMipLevels() = %d, want 4", got)
	}
	if n := dev.Live().Textures; n != 1 {
		t.Errorf("live textures = %d, want 1", n)
	}
}

func TestTextureCompressionUnsupported(t *testing.T) {
	r, _, _ := newTestRenderer(t, func(c *backend.Caps) { c.Features = gputypes.Features(0) })
	tb, err := r.CreateTexture2D(imageOf(patternBuffer(t, 8, 8, pixel.R8G8B8A8, 0)), pixel.DXT5, 0)
	if err != nil {
		t.Fatalf("CreateTexture2D() error = %v", err)
	}
	if got := tb.Format(); got != pixel.R8G8B8A8 {
		t.Errorf("Format() = %v, want R8G8B8A8", got)
	}
	if len(tb.Negotiation().Notes) == 0 {
		t.Error("Negotiation().Notes is empty, want a degradation note")
	}
}

func dxt1Image(t *testing.T, w, h int, seed byte) *Image {
	t.Helper()
	data := make([]byte, pixel.DXT1.NumOfBytes(w, h, 1))
	for i := range data {
		data[i] = byte(i) ^ seed
	}
	b, err := NewImageBuffer(w, h, 1, pixel.DXT1, data)
	if err != nil {
		t.Fatalf("NewImageBuffer(DXT1) error = %v", err)
	}
	return imageOf(b)
}

// redDXT1Image returns a w x h DXT1 level of opaque red blocks without
// uncompressed data.
func redDXT1Image(t *testing.T, w, h int) *Image {
	t.Helper()
	data := make([]byte, pixel.DXT1.NumOfBytes(w, h, 1))
	for off := 0; off < len(data); off += 8 {
		copy(data[off:], []byte{0x00, 0xF8, 0x00, 0xF8, 0, 0, 0, 0})
	}
	b, err := NewImageBuffer(w, h, 1, pixel.DXT1, data)
	if err != nil {
		t.Fatalf("NewImageBuffer(DXT1) error = %v", err)
	}
	return imageOf(b)
}

func TestTexturePrecompressedOnlyDegrades(t *testing.T) {
	noBC := func(c *backend.Caps) { c.Features = gputypes.Features(0) }
	tests := []struct {
		name       string
		caps       func(*backend.Caps)
		format     pixel.Format
		flags      TextureFlags
		wantFormat pixel.Format
		wantLevels int
	}{
		{"no BC", noBC, pixel.Unknown, 0, pixel.R8G8B8, 1},
		{"no BC with compression", noBC, pixel.Unknown, FlagCompression, pixel.R8G8B8, 1},
		{"no BC with mipmaps", noBC, pixel.Unknown, FlagMipmaps | FlagCompression, pixel.R8G8B8, 4},
		{"other compressed format requested", nil, pixel.DXT5, FlagCompression, pixel.R8G8B8A8, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _, _ := newTestRenderer(t, tt.caps)
			tb, err := r.CreateTexture2D(redDXT1Image(t, 8, 8), tt.format, tt.flags)
			if err != nil {
				t.Fatalf("CreateTexture2D() error = %v", err)
			}
			if got := tb.Format(); got != tt.wantFormat {
				t.Errorf("Format() = %v, want %v", got, tt.wantFormat)
			}
			if got := tb.NumMipLevels(); got != tt.wantLevels {
				t.Errorf("NumMipLevels() = %d, want %d", got, tt.wantLevels)
			}
			last := tt.wantLevels - 1
			got := tb.Download(last, pixel.R8G8B8A8, 0)
			if len(got) < 4 || !bytes.Equal(got[:4], []byte{255, 0, 0, 255}) {
				t.Errorf("Download(%d) first texel = %v, want [255 0 0 255]", last, got)
			}
		})
	}
}

func TestTextureCompressedUpload(t *testing.T) {
	r, _, _ := newTestRenderer(t, nil)
	img := dxt1Image(t, 8, 8, 0x5a)
	tb, err := r.CreateTexture2D(img, pixel.Unknown, FlagCompression)
	if err != nil {
		t.Fatalf("CreateTexture2D() error = %v", err)
	}
	if !tb.Negotiation().Precompressed || tb.Format() != pixel.DXT1 {
		t.Fatalf("negotiation = %+v, want precompressed DXT1", tb.Negotiation())
	}
	want := img.Part(PartStatic).CompressedData

	tests := []struct {
		name   string
		format pixel.Format
		data   []byte
	}{
		{"other compressed format", pixel.DXT5, make([]byte, pixel.DXT5.NumOfBytes(8, 8, 1))},
		{"uncompressed into compressed", pixel.R8G8B8A8, make([]byte, 8*8*4)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tb.Upload(0, tt.format, tt.data, 0) {
				t.Errorf("Upload(%v) = true, want false", tt.format)
			}
			if !errors.Is(tb.Err(), ErrInvalidUsage) {
				t.Errorf("Err() = %v, want ErrInvalidUsage", tb.Err())
			}
			if got := tb.Download(0, pixel.Unknown, 0); !bytes.Equal(got, want) {
				t.Error("content changed by a rejected upload")
			}
			if !tb.Handle().Compressed() {
				t.Error("storage no longer compressed")
			}
		})
	}

	repl := make([]byte, len(want))
	if !tb.Upload(0, pixel.DXT1, repl, 0) {
		t.Fatalf("Upload(DXT1) error = %v", tb.Err())
	}
	if got := tb.Download(0, pixel.DXT1, 0); !bytes.Equal(got, repl) {
		t.Error("Download after matching upload differs")
	}
}

func TestTextureUploadDownload(t *testing.T) {
	r, _, _ := newTestRenderer(t, nil)
	tb, err := r.CreateTexture2D(imageOf(patternBuffer(t, 4, 4, pixel.L8, 0)), pixel.R8G8B8A8, 0)
	if err != nil {
		t.Fatalf("CreateTexture2D() error = %v", err)
	}
	gray := bytes.Repeat([]byte{0x80}, 16)
	if !tb.Upload(0, pixel.L8, gray, 0) {
		t.Fatalf("Upload(L8) error = %v", tb.Err())
	}
	if got := tb.Download(0, pixel.L8, 0); !bytes.Equal(got, gray) {
		t.Errorf("Download(L8) = %v, want %v", got, gray)
	}
	if got := tb.Download(0, pixel.Unknown, 0); len(got) != 64 || got[0] != 0x80 || got[3] != 0xff {
		t.Errorf("Download(storage) = %v, want gray RGBA", got)
	}

	tests := []struct {
		name  string
		level int
	}{
		{"negative level", -1},
		{"level past chain", 1},
	}
	for _, tt := range tests {
		if tb.Upload(tt.level, pixel.L8, gray, 0) {
			t.Errorf("%s: Upload(%d) = true, want false", tt.name, tt.level)
		}
		if tb.Download(tt.level, pixel.Unknown, 0) != nil {
			t.Errorf("%s: Download(%d) != nil", tt.name, tt.level)
		}
	}
}

func cubeImage(t *testing.T, size int) *Image {
	img := NewImage()
	for i := range 6 {
		img.SetLevels(CubeFace(i), solidBuffer(t, size, size, 1, pixel.L8, pixel.Texel{float32(i) / 5, 0, 0, 1}))
	}
	return img
}

func TestTextureCube(t *testing.T) {
	r, _, _ := newTestRenderer(t, nil)
	tb, err := r.CreateTextureCube(cubeImage(t, 4), pixel.Unknown, FlagMipmaps)
	if err != nil {
		t.Fatalf("CreateTextureCube() error = %v", err)
	}
	if got := tb.NumMipLevels(); got != 3 {
		t.Errorf("NumMipLevels() = %d, want 3", got)
	}
	if got := tb.GetNumOfBytes(0); got != 6*16 {
		t.Errorf("GetNumOfBytes(0) = %d, want %d", got, 6*16)
	}
	if got := tb.Download(0, pixel.Unknown, 5); got[0] != 255 {
		t.Errorf("face 5 texel = %d, want 255", got[0])
	}
	if got := tb.Download(0, pixel.Unknown, 0); got[0] != 0 {
		t.Errorf("face 0 texel = %d, want 0", got[0])
	}
	if tb.Upload(0, pixel.L8, make([]byte, 16), 6) {
		t.Error("Upload(face 6) = true, want false")
	}

	img := tb.CopyDataToImage()
	if img == nil {
		t.Fatalf("CopyDataToImage() error = %v", tb.Err())
	}
	if got := img.NumParts(); got != 6 {
		t.Errorf("NumParts() = %d, want 6", got)
	}
	if got := len(img.Levels(CubeFace(2))); got != 3 {
		t.Errorf("face 2 levels = %d, want 3", got)
	}

	bad := cubeImage(t, 4)
	bad.SetLevels(CubeFace(3), solidBuffer(t, 4, 8, 1, pixel.L8, pixel.Texel{}))
	bad.SetLevels(CubeFace(0), solidBuffer(t, 4, 8, 1, pixel.L8, pixel.Texel{}))
	if _, err := r.CreateTextureCube(bad, pixel.Unknown, 0); !errors.Is(err, ErrInvalidUsage) {
		t.Errorf("CreateTextureCube(non-square) error = %v, want ErrInvalidUsage", err)
	}
}

func TestTextureCubeSynthesizedFaces(t *testing.T) {
	r, _, _ := newTestRenderer(t, func(c *backend.Caps) { c.AutoMipmaps = false }, WithWorkers(2))
	tb, err := r.CreateTextureCube(cubeImage(t, 8), pixel.Unknown, FlagMipmaps)
	if err != nil {
		t.Fatalf("CreateTextureCube() error = %v", err)
	}
	if got := tb.NumMipLevels(); got != 4 {
		t.Fatalf("NumMipLevels() = %d, want 4", got)
	}
	if got := len(tb.Warnings()); got != 1 {
		t.Errorf("len(Warnings()) = %d, want 1", got)
	}
	for face := range 6 {
		want := byte(face * 51)
		got := tb.Download(3, pixel.Unknown, face)
		if len(got) != 1 || got[0] != want {
			t.Errorf("face %d level 3 = %v, want [%d]", face, got, want)
		}
	}
}

func TestTextureVolumeAndArrayChains(t *testing.T) {
	tests := []struct {
		name   string
		create func(*Renderer, *Image) (*TextureBuffer, error)
		levels int
		last   Size
	}{
		{"3D", func(r *Renderer, img *Image) (*TextureBuffer, error) {
			return r.CreateTexture3D(img, pixel.Unknown, FlagMipmaps)
		}, 4, Size{1, 1, 1}},
		{"array", func(r *Renderer, img *Image) (*TextureBuffer, error) {
			return r.CreateTexture2DArray(img, pixel.Unknown, FlagMipmaps)
		}, 4, Size{1, 1, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _, _ := newTestRenderer(t, nil)
			img := imageOf(solidBuffer(t, 8, 8, 4, pixel.L8, pixel.Texel{0.5, 0, 0, 1}))
			tb, err := tt.create(r, img)
			if err != nil {
				t.Fatalf("create error = %v", err)
			}
			if got := tb.NumMipLevels(); got != tt.levels {
				t.Errorf("NumMipLevels() = %d, want %d", got, tt.levels)
			}
			if got := tb.GetSize(tt.levels - 1); got != tt.last {
				t.Errorf("GetSize(last) = %v, want %v", got, tt.last)
			}
			chain := tb.MipChain()
			if chain[1].Bytes != tb.GetNumOfBytes(1) {
				t.Errorf("MipChain()[1].Bytes = %d, want %d", chain[1].Bytes, tb.GetNumOfBytes(1))
			}
		})
	}
}

func TestTextureRectangleAndRenderTexture(t *testing.T) {
	r, _, _ := newTestRenderer(t, nil)
	rect, err := r.CreateTextureRectangle(imageOf(patternBuffer(t, 12, 6, pixel.R8G8B8, 0)), pixel.Unknown, FlagMipmaps)
	if err != nil {
		t.Fatalf("CreateTextureRectangle() error = %v", err)
	}
	if rect.NumMipLevels() != 1 || rect.Flags()&FlagMipmaps != 0 {
		t.Errorf("rectangle levels = %d flags = %v, want 1 level without mipmaps", rect.NumMipLevels(), rect.Flags())
	}

	rt, err := r.CreateRenderTexture(backend.Texture2D, Size{Width: 64, Height: 32}, pixel.DXT5, FlagMipmaps)
	if err != nil {
		t.Fatalf("CreateRenderTexture() error = %v", err)
	}
	if rt.Format() != pixel.R8G8B8A8 {
		t.Errorf("render texture Format() = %v, want R8G8B8A8", rt.Format())
	}
	if rt.NumMipLevels() != 7 {
		t.Errorf("render texture NumMipLevels() = %d, want 7", rt.NumMipLevels())
	}
	if rt.Flags()&FlagRenderTarget == 0 || !rt.Handle().Desc().RenderTarget {
		t.Error("render texture not marked as render target")
	}
}

func TestTextureNaN(t *testing.T) {
	r, _, _ := newTestRenderer(t, nil)
	data := make([]byte, 4*4)
	vals := []float32{1, float32(math.NaN()), 0.25, float32(math.NaN())}
	for i, v := range vals {
		pixel.Encode(pixel.L32F, data, i, pixel.Texel{v, v, v, 1})
	}
	b, err := NewImageBuffer(2, 2, 1, pixel.L32F, data)
	if err != nil {
		t.Fatalf("NewImageBuffer() error = %v", err)
	}
	tb, err := r.CreateTexture2D(imageOf(b), pixel.Unknown, 0)
	if err != nil {
		t.Fatalf("CreateTexture2D() error = %v", err)
	}
	if got := tb.NumNaNValues(); got != 2 {
		t.Errorf("NumNaNValues() = %d, want 2", got)
	}
	if got := tb.FixNaNValues(); got != 2 {
		t.Errorf("FixNaNValues() = %d, want 2", got)
	}
	if got := tb.NumNaNValues(); got != 0 {
		t.Errorf("NumNaNValues() after fix = %d, want 0", got)
	}

	rgba, _ := r.CreateTexture2D(imageOf(patternBuffer(t, 2, 2, pixel.R8G8B8A8, 0)), pixel.Unknown, 0)
	if got := rgba.NumNaNValues(); got != 0 {
		t.Errorf("NumNaNValues() on R8G8B8A8 = %d, want 0", got)
	}
}

func TestTextureCopyDataToImage(t *testing.T) {
	r, _, _ := newTestRenderer(t, nil)
	src := patternBuffer(t, 4, 2, pixel.R8G8B8, 9)
	tb, err := r.CreateTexture2D(imageOf(src), pixel.R5G6B5, 0)
	if err != nil {
		t.Fatalf("CreateTexture2D() error = %v", err)
	}
	img := tb.CopyDataToImage()
	if img == nil {
		t.Fatalf("CopyDataToImage() error = %v", tb.Err())
	}
	b := img.Part(PartStatic)
	if b.PixelFormat() != pixel.R8G8B8 || b.Width != 4 || b.Height != 2 {
		t.Errorf("copied level = %v %dx%d, want R8G8B8 4x2", b.PixelFormat(), b.Width, b.Height)
	}

	comp, err := r.CreateTexture2D(dxt1Image(t, 4, 4, 1), pixel.Unknown, FlagCompression)
	if err != nil {
		t.Fatalf("CreateTexture2D(DXT1) error = %v", err)
	}
	cimg := comp.CopyDataToImage()
	if cimg == nil || cimg.Part(PartStatic).Compression != CompressionDXT1 {
		t.Error("compressed copy lost its compression")
	}
}

func TestTextureBackupRestore(t *testing.T) {
	tests := []struct {
		name  string
		image func(*testing.T) *Image
		flags TextureFlags
	}{
		{"uncompressed chain", func(t *testing.T) *Image { return imageOf(patternBuffer(t, 16, 8, pixel.R8G8B8A8, 4)) }, FlagMipmaps},
		{"precompressed", func(t *testing.T) *Image { return dxt1Image(t, 8, 8, 0x33) }, FlagCompression},
		{"cube", func(t *testing.T) *Image { return cubeImage(t, 2) }, FlagMipmaps},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, dev, _ := newTestRenderer(t, nil)
			create := r.CreateTexture2D
			if tt.name == "cube" {
				create = r.CreateTextureCube
			}
			tb, err := create(tt.image(t), pixel.Unknown, tt.flags)
			if err != nil {
				t.Fatalf("create error = %v", err)
			}
			var want [][]byte
			for face := range tb.Kind().Faces() {
				for l := range tb.NumMipLevels() {
					want = append(want, tb.Download(l, pixel.Unknown, face))
				}
			}

			data := tb.BackupDeviceData()
			if len(data) != tb.GetTotalNumOfBytes() {
				t.Errorf("capture = %d bytes, want %d", len(data), tb.GetTotalNumOfBytes())
			}
			if tb.Handle() != nil || dev.Live().Textures != 0 {
				t.Error("device texture survives backup")
			}
			if !tb.RestoreDeviceData(data) {
				t.Fatalf("RestoreDeviceData() error = %v", tb.Err())
			}
			i := 0
			for face := range tb.Kind().Faces() {
				for l := range tb.NumMipLevels() {
					if got := tb.Download(l, pixel.Unknown, face); !bytes.Equal(got, want[i]) {
						t.Errorf("face %d level %d differs after restore", face, l)
					}
					i++
				}
			}
			if tb.IsDirty() {
				t.Error("IsDirty() = true after restore from capture")
			}
		})
	}
}

var errReadback = errors.New("readback unsupported")

// unreadableTexture is a device texture whose content cannot be read back.
type unreadableTexture struct{ backend.Texture }

func (unreadableTexture) ReadLevel(int, int) ([]byte, error) { return nil, errReadback }

func TestTextureBackupReadFailure(t *testing.T) {
	r, dev, _ := newTestRenderer(t, nil)
	tb, err := r.CreateTexture2D(imageOf(patternBuffer(t, 8, 8, pixel.R8G8B8A8, 5)), pixel.Unknown, 0)
	if err != nil {
		t.Fatalf("CreateTexture2D() error = %v", err)
	}
	want := tb.Download(0, pixel.Unknown, 0)
	readable := tb.tex
	tb.tex = unreadableTexture{readable}

	if data := tb.BackupDeviceData(); data != nil {
		t.Errorf("BackupDeviceData() = %d bytes, want nil", len(data))
	}
	if err := tb.Err(); !errors.Is(err, ErrBackup) || !errors.Is(err, errReadback) {
		t.Errorf("Err() = %v, want ErrBackup wrapping the read error", err)
	}
	if tb.Handle() == nil || dev.Live().Textures != 1 {
		t.Fatal("device texture released after a failed backup")
	}
	if !tb.RestoreDeviceData(nil) {
		t.Fatalf("RestoreDeviceData() error = %v", tb.Err())
	}
	if tb.IsDirty() {
		t.Error("IsDirty() = true for a texture that kept its content")
	}
	tb.tex = readable
	if got := tb.Download(0, pixel.Unknown, 0); !bytes.Equal(got, want) {
		t.Error("content changed after a failed backup")
	}
}

func TestTextureRestoreWithoutCapture(t *testing.T) {
	r, _, _ := newTestRenderer(t, nil)
	tb, _ := r.CreateTexture2D(imageOf(patternBuffer(t, 4, 4, pixel.L8, 0)), pixel.Unknown, 0)
	tb.BackupDeviceData()
	if !tb.RestoreDeviceData(nil) {
		t.Fatalf("RestoreDeviceData(nil) error = %v", tb.Err())
	}
	if !tb.IsDirty() {
		t.Error("IsDirty() = false, want true")
	}
	if !tb.Upload(0, pixel.L8, make([]byte, 16), 0) || tb.IsDirty() {
		t.Error("Upload did not clear the dirty flag")
	}
	if tb.RestoreDeviceData([]byte{1}) != true {
		t.Error("RestoreDeviceData() on a live texture = false, want true")
	}

	tb.BackupDeviceData()
	if tb.RestoreDeviceData([]byte{1, 2, 3}) {
		t.Error("RestoreDeviceData(short capture) = true, want false")
	}
}

func TestTextureRelease(t *testing.T) {
	r, dev, stats := newTestRenderer(t, nil)
	tb, _ := r.CreateTexture2D(imageOf(patternBuffer(t, 4, 4, pixel.L8, 0)), pixel.Unknown, 0)
	tb.Release()
	tb.Release()
	if dev.Live().Textures != 0 || r.NumResources() != 0 {
		t.Error("texture survives Release")
	}
	if got := stats.Count(KindTexture); got != 0 {
		t.Errorf("stats.Count(KindTexture) = %d, want 0", got)
	}
	if tb.RestoreDeviceData(nil) || !errors.Is(tb.Err(), ErrReleased) {
		t.Errorf("RestoreDeviceData after Release error = %v, want ErrReleased", tb.Err())
	}
}
