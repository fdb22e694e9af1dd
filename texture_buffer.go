package gpures

import (
	"fmt"
	"strings"

	"github.com/gogpu/gpures/backend"
	"github.com/gogpu/gpures/internal/parallel"
	"github.com/gogpu/gpures/pixel"
)

// TextureFlags select texture features.
type TextureFlags uint16

const (
	// FlagMipmaps requests a complete mip chain.
	FlagMipmaps TextureFlags = 1 << iota

	// FlagCompression allows block-compressed storage.
	FlagCompression

	// FlagRenderTarget marks a texture that framebuffer objects draw into.
	FlagRenderTarget
)

// String returns the set flags joined by "|".
func (f TextureFlags) String() string {
	var names []string
	if f&FlagMipmaps != 0 {
		names = append(names, "mipmaps")
	}
	if f&FlagCompression != 0 {
		names = append(names, "compression")
	}
	if f&FlagRenderTarget != 0 {
		names = append(names, "render-target")
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// TextureBuffer owns device image storage and its mip chain.
type TextureBuffer struct {
	r        *Renderer
	desc     backend.TextureDesc
	flags    TextureFlags
	neg      Negotiation
	tex      backend.Texture
	bytes    int64
	warnings []string
	err      error
	dirty    bool
	released bool
}

var _ deviceResource = (*TextureBuffer)(nil)

// CreateTexture1D creates a 1D texture from an image with height 1.
func (r *Renderer) CreateTexture1D(img *Image, format pixel.Format, flags TextureFlags) (*TextureBuffer, error) {
	return r.createFromImage(backend.Texture1D, img, format, flags)
}

// CreateTexture2D creates a 2D texture.
func (r *Renderer) CreateTexture2D(img *Image, format pixel.Format, flags TextureFlags) (*TextureBuffer, error) {
	return r.createFromImage(backend.Texture2D, img, format, flags)
}

// CreateTexture2DArray creates a 2D array texture; the image depth is the
// layer count.
func (r *Renderer) CreateTexture2DArray(img *Image, format pixel.Format, flags TextureFlags) (*TextureBuffer, error) {
	return r.createFromImage(backend.Texture2DArray, img, format, flags)
}

// CreateTexture3D creates a volume texture.
func (r *Renderer) CreateTexture3D(img *Image, format pixel.Format, flags TextureFlags) (*TextureBuffer, error) {
	return r.createFromImage(backend.Texture3D, img, format, flags)
}

// CreateTextureCube creates a cube texture from the six cube face parts.
func (r *Renderer) CreateTextureCube(img *Image, format pixel.Format, flags TextureFlags) (*TextureBuffer, error) {
	return r.createFromImage(backend.TextureCube, img, format, flags)
}

// CreateTextureRectangle creates a rectangle texture. Rectangle textures
// have a single level; FlagMipmaps is ignored.
func (r *Renderer) CreateTextureRectangle(img *Image, format pixel.Format, flags TextureFlags) (*TextureBuffer, error) {
	return r.createFromImage(backend.TextureRectangle, img, format, flags&^FlagMipmaps)
}

// CreateRenderTexture creates an empty texture to render into. An unknown
// format selects R8G8B8A8; compressed formats are replaced by their
// uncompressed equivalent.
func (r *Renderer) CreateRenderTexture(kind backend.TextureKind, size Size, format pixel.Format, flags TextureFlags) (*TextureBuffer, error) {
	if !r.caps.SupportsKind(kind) {
		return nil, fmt.Errorf("%w: %v textures", ErrCapabilityUnavailable, kind)
	}
	size.Depth = max(1, size.Depth)
	if err := checkShape(kind, size); err != nil {
		return nil, err
	}
	if !format.IsValid() {
		format = pixel.R8G8B8A8
	}
	format = format.Uncompressed()

	levels := 1
	if flags&FlagMipmaps != 0 {
		levels = MipLevelCount(kind, size.Width, size.Height, size.Depth)
	}
	tb := &TextureBuffer{
		r: r,
		desc: backend.TextureDesc{
			Kind:         kind,
			Format:       format,
			Width:        size.Width,
			Height:       size.Height,
			Depth:        size.Depth,
			Levels:       levels,
			RenderTarget: true,
		},
		flags: flags | FlagRenderTarget,
		neg:   Negotiation{Internal: format, Fallback: format, Source: format},
	}
	if err := tb.allocate(); err != nil {
		return nil, err
	}
	tb.commit()
	return tb, nil
}

func checkShape(kind backend.TextureKind, s Size) error {
	switch {
	case s.Width <= 0 || s.Height <= 0 || s.Depth <= 0:
		return fmt.Errorf("%w: texture size %v", ErrInvalidUsage, s)
	case kind == backend.Texture1D && s.Height != 1:
		return fmt.Errorf("%w: 1D texture with height %d", ErrInvalidUsage, s.Height)
	case kind == backend.TextureCube && s.Width != s.Height:
		return fmt.Errorf("%w: cube face %dx%d is not square", ErrInvalidUsage, s.Width, s.Height)
	case kind != backend.Texture3D && kind != backend.Texture2DArray && s.Depth != 1:
		return fmt.Errorf("%w: %v texture with depth %d", ErrInvalidUsage, kind, s.Depth)
	}
	return nil
}

// imageParts returns the mip chain of each face.
func imageParts(kind backend.TextureKind, img *Image) ([][]*ImageBuffer, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrInvalidUsage)
	}
	if kind == backend.TextureCube {
		parts := make([][]*ImageBuffer, 6)
		for i := range parts {
			if parts[i] = img.Levels(CubeFace(i)); len(parts[i]) == 0 {
				return nil, fmt.Errorf("%w: cube image has no %v face", ErrInvalidUsage, CubeFace(i))
			}
		}
		return parts, nil
	}
	chain := img.Levels(PartStatic)
	if len(chain) == 0 {
		return nil, fmt.Errorf("%w: image has no static part", ErrInvalidUsage)
	}
	return [][]*ImageBuffer{chain}, nil
}

func (r *Renderer) createFromImage(kind backend.TextureKind, img *Image, format pixel.Format, flags TextureFlags) (*TextureBuffer, error) {
	if !r.caps.SupportsKind(kind) {
		return nil, fmt.Errorf("%w: %v textures", ErrCapabilityUnavailable, kind)
	}
	parts, err := imageParts(kind, img)
	if err != nil {
		return nil, err
	}
	base := parts[0][0]
	size := Size{base.Width, base.Height, base.depth()}
	if err := checkShape(kind, size); err != nil {
		return nil, err
	}

	neg := NegotiateFormat(base, format, flags, r.caps)
	for _, note := range neg.Notes {
		Logger().Warn("gpures: texture format degraded", "note", note, "format", neg.Internal)
	}

	levels := MipLevelCount(kind, size.Width, size.Height, size.Depth)
	if flags&FlagMipmaps == 0 {
		for _, chain := range parts {
			levels = min(levels, len(chain))
		}
	}

	tb := &TextureBuffer{
		r: r,
		desc: backend.TextureDesc{
			Kind:         kind,
			Format:       neg.Internal,
			Width:        size.Width,
			Height:       size.Height,
			Depth:        size.Depth,
			Levels:       levels,
			RenderTarget: flags&FlagRenderTarget != 0,
		},
		flags: flags,
		neg:   neg,
	}
	if err := tb.allocate(); err != nil {
		return nil, err
	}
	if err := tb.fill(parts); err != nil {
		tb.destroyHandle()
		return nil, err
	}

	// Compression support cannot always be known before allocation: ask
	// for compressed storage, then check what the device produced.
	if tb.desc.Format.IsCompressed() && !tb.tex.Compressed() {
		if err := tb.fallBack(parts); err != nil {
			tb.destroyHandle()
			return nil, err
		}
	}
	tb.commit()
	Logger().Debug("gpures: texture created",
		"kind", kind, "format", tb.desc.Format, "size", size, "levels", levels, "bytes", tb.bytes)
	return tb, nil
}

// allocate creates the device texture for desc, retrying once with the
// fallback format when a compressed allocation is refused.
func (tb *TextureBuffer) allocate() error {
	tex, err := tb.r.dev.CreateTexture(tb.desc)
	if err != nil && tb.desc.Format.IsCompressed() {
		Logger().Warn("gpures: compressed allocation refused, using fallback",
			"format", tb.desc.Format, "fallback", tb.neg.Fallback, "err", err)
		tb.useFallback()
		tex, err = tb.r.dev.CreateTexture(tb.desc)
	}
	if err != nil {
		return fmt.Errorf("%w: %v %v %dx%dx%d: %w", ErrAllocation,
			tb.desc.Kind, tb.desc.Format, tb.desc.Width, tb.desc.Height, tb.desc.Depth, err)
	}
	tb.tex = tex
	return nil
}

func (tb *TextureBuffer) useFallback() {
	tb.desc.Format = tb.neg.Fallback
	if tb.neg.Precompressed {
		tb.neg.Precompressed = false
		tb.neg.Source = tb.neg.Source.Uncompressed()
	}
}

// fallBack reallocates uncompressed storage after the device declined to
// store compressed data, and uploads the image again.
func (tb *TextureBuffer) fallBack(parts [][]*ImageBuffer) error {
	Logger().Warn("gpures: device did not produce compressed storage, re-uploading",
		"format", tb.desc.Format, "fallback", tb.neg.Fallback)
	tb.destroyHandle()
	tb.useFallback()
	if err := tb.allocate(); err != nil {
		return err
	}
	if err := tb.fill(parts); err != nil {
		return err
	}
	tb.warn(fmt.Sprintf("compressed storage unavailable, stored as %v", tb.desc.Format))
	return nil
}

// commit records the allocation in the statistics sink and the renderer.
func (tb *TextureBuffer) commit() {
	tb.bytes = int64(tb.GetTotalNumOfBytes())
	tb.r.stats.Add(KindTexture, tb.bytes)
	tb.r.track(tb)
}

func (tb *TextureBuffer) destroyHandle() {
	if tb.tex != nil {
		tb.tex.Destroy()
		tb.tex = nil
	}
}

func (tb *TextureBuffer) warn(msg string) {
	tb.warnings = append(tb.warnings, msg)
	Logger().Warn("gpures: "+msg, "kind", tb.desc.Kind, "format", tb.desc.Format)
}

// levelData returns the bytes of b to upload in format src. Levels that
// only carry compressed data are decompressed for uncompressed uploads.
func levelData(b *ImageBuffer, src pixel.Format) ([]byte, error) {
	if src.IsCompressed() {
		if len(b.CompressedData) == 0 {
			return nil, fmt.Errorf("%w: level has no compressed data", ErrInvalidUsage)
		}
		return b.CompressedData, nil
	}
	if len(b.Data) > 0 {
		return b.Data, nil
	}
	cf := b.Compression.Format()
	if cf == pixel.Unknown || len(b.CompressedData) == 0 {
		return nil, fmt.Errorf("%w: level has no uncompressed data", ErrInvalidUsage)
	}
	data, err := pixel.Decompress(cf, b.CompressedData, b.Width, b.Height, b.depth())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidUsage, err)
	}
	if un := cf.Uncompressed(); un != src {
		return pixel.Convert(src, un, data)
	}
	return data, nil
}

// fill uploads the image levels and completes the mip chain.
func (tb *TextureBuffer) fill(parts [][]*ImageBuffer) error {
	tb.warnings = nil
	src := tb.neg.Source
	supplied := tb.desc.Levels
	for _, chain := range parts {
		supplied = min(supplied, len(chain))
	}

	for face, chain := range parts {
		for l := range supplied {
			b := chain[l]
			w, h, d := tb.desc.LevelSize(l)
			if b.Width != w || b.Height != h || b.depth() != d {
				return fmt.Errorf("%w: level %d is %dx%dx%d, want %dx%dx%d",
					ErrInvalidUsage, l, b.Width, b.Height, b.depth(), w, h, d)
			}
			data, err := levelData(b, src)
			if err != nil {
				return err
			}
			if err := tb.tex.WriteLevel(l, face, src, data); err != nil {
				return fmt.Errorf("%w: level %d: %w", ErrInvalidUsage, l, err)
			}
		}
	}
	if supplied < tb.desc.Levels {
		return tb.completeChain(parts, supplied)
	}
	return nil
}

// completeChain fills levels [supplied, Levels). The device generates them
// when it can; otherwise they are box-filtered here, and levels that
// cannot be derived are filled with opaque white. Either way of doing it
// without the device is recorded as one warning.
func (tb *TextureBuffer) completeChain(parts [][]*ImageBuffer, supplied int) error {
	if tb.r.caps.AutoMipmaps && !tb.tex.Compressed() {
		err := tb.tex.GenerateMipmaps()
		if err == nil {
			return nil
		}
		Logger().Debug("gpures: device mipmap generation failed", "err", err)
	}

	src := tb.neg.Source
	derived := parallel.Map(tb.r.pool, len(parts), func(face int) [][]byte {
		return tb.downsampleChain(parts[face][supplied-1], supplied, src)
	})
	placeholders := 0
	for face, chain := range derived {
		for l := supplied; l < tb.desc.Levels; l++ {
			if i := l - supplied; i < len(chain) {
				if err := tb.tex.WriteLevel(l, face, src, chain[i]); err != nil {
					return fmt.Errorf("%w: level %d: %w", ErrInvalidUsage, l, err)
				}
				continue
			}
			f := tb.storageFormat()
			lw, lh, ld := tb.desc.LevelSize(l)
			if err := tb.tex.WriteLevel(l, face, f, pixel.White(f, lw, lh, ld)); err != nil {
				return fmt.Errorf("%w: placeholder level %d: %w", ErrInvalidUsage, l, err)
			}
			placeholders++
		}
	}
	tb.warn(fmt.Sprintf("mip levels %d to %d synthesized without device support, %d placeholder levels",
		supplied, tb.desc.Levels-1, placeholders))
	return nil
}

// downsampleChain box-filters levels [supplied, Levels) from the last
// supplied level. It stops at the first level that cannot be derived.
func (tb *TextureBuffer) downsampleChain(last *ImageBuffer, supplied int, src pixel.Format) [][]byte {
	cur, _ := levelData(last, src)
	if src.IsCompressed() || cur == nil {
		return nil
	}
	w, h, d := tb.desc.LevelSize(supplied - 1)
	var out [][]byte
	for range tb.desc.Levels - supplied {
		next, nw, nh, nd, err := pixel.Downsample(src, cur, w, h, d, tb.desc.Kind == backend.Texture3D)
		if err != nil {
			break
		}
		out = append(out, next)
		cur, w, h, d = next, nw, nh, nd
	}
	return out
}

// storageFormat is the format data is held in on the device.
func (tb *TextureBuffer) storageFormat() pixel.Format {
	if tb.tex != nil && tb.tex.Compressed() {
		return tb.desc.Format
	}
	return tb.desc.Format.Uncompressed()
}

func (tb *TextureBuffer) fail(err error) bool {
	tb.err = err
	Logger().Debug("gpures: texture operation failed", "kind", tb.desc.Kind, "err", err)
	return false
}

// Err returns the cause of the last failed operation.
func (tb *TextureBuffer) Err() error { return tb.err }

// Kind returns the texture kind.
func (tb *TextureBuffer) Kind() backend.TextureKind { return tb.desc.Kind }

// Format returns the storage format.
func (tb *TextureBuffer) Format() pixel.Format { return tb.desc.Format }

// Flags returns the creation flags.
func (tb *TextureBuffer) Flags() TextureFlags { return tb.flags }

// Negotiation returns the format negotiation outcome.
func (tb *TextureBuffer) Negotiation() Negotiation { return tb.neg }

// NumMipLevels returns the number of allocated levels.
func (tb *TextureBuffer) NumMipLevels() int { return tb.desc.Levels }

// Warnings returns the degradations recorded at creation.
func (tb *TextureBuffer) Warnings() []string { return tb.warnings }

// Handle returns the device texture, nil while backed up or released.
func (tb *TextureBuffer) Handle() backend.Texture { return tb.tex }

// IsDirty reports whether the content was lost and not uploaded since.
func (tb *TextureBuffer) IsDirty() bool { return tb.dirty }

// GetSize returns the size of a level, the zero Size when out of range.
func (tb *TextureBuffer) GetSize(level int) Size {
	if level < 0 || level >= tb.desc.Levels {
		return Size{}
	}
	w, h, d := tb.desc.LevelSize(level)
	return Size{w, h, d}
}

// GetNumOfBytes returns the storage size of a level across all faces.
func (tb *TextureBuffer) GetNumOfBytes(level int) int {
	if level < 0 || level >= tb.desc.Levels {
		return 0
	}
	return tb.desc.LevelBytes(level) * tb.desc.Kind.Faces()
}

// GetTotalNumOfBytes returns the storage size of the whole chain.
func (tb *TextureBuffer) GetTotalNumOfBytes() int {
	n := 0
	for l := range tb.desc.Levels {
		n += tb.GetNumOfBytes(l)
	}
	return n
}

// MipChain lists every allocated level.
func (tb *TextureBuffer) MipChain() []MipLevel {
	return MipChain(tb.desc)
}

func (tb *TextureBuffer) checkLevel(level, face int) (int, error) {
	if tb.tex == nil {
		return 0, fmt.Errorf("%w: no device texture", ErrInvalidUsage)
	}
	if level < 0 || level >= tb.desc.Levels {
		return 0, fmt.Errorf("%w: level %d of %d", ErrInvalidUsage, level, tb.desc.Levels)
	}
	if tb.desc.Kind != backend.TextureCube {
		return 0, nil
	}
	if face < 0 || face > 5 {
		return 0, fmt.Errorf("%w: cube face %d", ErrInvalidUsage, face)
	}
	return face, nil
}

// Upload replaces a whole level. face is used by cube textures only
// (0..5). An unknown format means the storage format. Compressed data must
// be in the texture's own compressed format, and compressed storage only
// accepts compressed data. Upload fails without side effects.
func (tb *TextureBuffer) Upload(level int, format pixel.Format, data []byte, face int) bool {
	face, err := tb.checkLevel(level, face)
	if err != nil {
		return tb.fail(err)
	}
	storage := tb.storageFormat()
	if !format.IsValid() {
		format = storage
	}
	switch {
	case format.IsCompressed() && format != tb.desc.Format:
		return tb.fail(fmt.Errorf("%w: %v data into %v texture", ErrInvalidUsage, format, tb.desc.Format))
	case storage.IsCompressed() && !format.IsCompressed():
		return tb.fail(fmt.Errorf("%w: uncompressed %v data into %v storage", ErrInvalidUsage, format, storage))
	}
	if err := tb.tex.WriteLevel(level, face, format, data); err != nil {
		return tb.fail(fmt.Errorf("%w: %w", ErrInvalidUsage, err))
	}
	tb.dirty = false
	tb.err = nil
	return true
}

// Download reads a whole level in format (unknown means the storage
// format). Compressed storage can only be read in its own format.
func (tb *TextureBuffer) Download(level int, format pixel.Format, face int) []byte {
	face, err := tb.checkLevel(level, face)
	if err != nil {
		tb.fail(err)
		return nil
	}
	data, err := tb.tex.ReadLevel(level, face)
	if err != nil {
		tb.fail(fmt.Errorf("%w: %w", ErrInvalidUsage, err))
		return nil
	}
	storage := tb.storageFormat()
	if !format.IsValid() || format == storage {
		return data
	}
	conv, err := pixel.Convert(format, storage, data)
	if err != nil {
		tb.fail(fmt.Errorf("%w: %w", ErrInvalidUsage, err))
		return nil
	}
	return conv
}

// CopyDataToImage downloads every level of every face into an image, in
// the image-compatible format of the storage. Compressed levels are kept
// as compressed data.
func (tb *TextureBuffer) CopyDataToImage() *Image {
	if tb.tex == nil {
		tb.fail(fmt.Errorf("%w: no device texture", ErrInvalidUsage))
		return nil
	}
	storage := tb.storageFormat()
	target := storage
	if !storage.IsCompressed() {
		target = storage.ImageFormat()
	}
	img := NewImage()
	for face := range tb.desc.Kind.Faces() {
		chain := make([]*ImageBuffer, tb.desc.Levels)
		for l := range chain {
			data := tb.Download(l, target, face)
			if data == nil {
				return nil
			}
			w, h, d := tb.desc.LevelSize(l)
			b, err := NewImageBuffer(w, h, d, target, data)
			if err != nil {
				tb.fail(err)
				return nil
			}
			chain[l] = b
		}
		part := PartStatic
		if tb.desc.Kind == backend.TextureCube {
			part = CubeFace(face)
		}
		img.SetLevels(part, chain...)
	}
	return img
}

// NumNaNValues counts NaN channels across all levels of a float texture.
func (tb *TextureBuffer) NumNaNValues() int {
	return tb.visitNaN(false)
}

// FixNaNValues replaces NaN channels with zero and returns how many were
// replaced.
func (tb *TextureBuffer) FixNaNValues() int {
	return tb.visitNaN(true)
}

func (tb *TextureBuffer) visitNaN(fix bool) int {
	storage := tb.storageFormat()
	if tb.tex == nil || !storage.IsFloat() {
		return 0
	}
	total := 0
	for face := range tb.desc.Kind.Faces() {
		for l := range tb.desc.Levels {
			data, err := tb.tex.ReadLevel(l, face)
			if err != nil {
				tb.fail(err)
				continue
			}
			if !fix {
				total += pixel.NumNaN(storage, data)
				continue
			}
			n := pixel.FixNaN(storage, data)
			if n == 0 {
				continue
			}
			if err := tb.tex.WriteLevel(l, face, storage, data); err != nil {
				tb.fail(err)
				continue
			}
			total += n
		}
	}
	return total
}

// BackupDeviceData reads every level of every face, level by level, and
// releases the device texture. It returns nil when nothing is resident.
// When a level cannot be read the texture stays resident, Err reports
// ErrBackup and nil is returned.
func (tb *TextureBuffer) BackupDeviceData() []byte {
	if tb.tex == nil {
		return nil
	}
	out := make([]byte, 0, tb.GetTotalNumOfBytes())
	for l := range tb.desc.Levels {
		for face := range tb.desc.Kind.Faces() {
			data, err := tb.tex.ReadLevel(l, face)
			if err != nil {
				tb.fail(fmt.Errorf("%w: level %d face %d: %w", ErrBackup, l, face, err))
				return nil
			}
			out = append(out, data...)
		}
	}
	tb.destroyHandle()
	return out
}

func (tb *TextureBuffer) resident() bool { return tb.tex != nil }

// RestoreDeviceData recreates the device texture with the original desc
// and uploads a capture made by BackupDeviceData. Without a capture the
// texture is recreated empty and marked dirty.
func (tb *TextureBuffer) RestoreDeviceData(data []byte) bool {
	if tb.released {
		return tb.fail(ErrReleased)
	}
	if tb.tex != nil {
		return true
	}
	if data != nil && len(data) != tb.GetTotalNumOfBytes() {
		return tb.fail(fmt.Errorf("%w: capture has %d bytes, want %d",
			ErrInvalidUsage, len(data), tb.GetTotalNumOfBytes()))
	}
	tex, err := tb.r.dev.CreateTexture(tb.desc)
	if err != nil {
		return tb.fail(fmt.Errorf("%w: %w", ErrAllocation, err))
	}
	tb.tex = tex
	if data == nil {
		tb.dirty = true
		return true
	}

	format := tb.desc.Format
	if format.IsCompressed() && !tex.Compressed() {
		tb.destroyHandle()
		return tb.fail(fmt.Errorf("%w: device lost %v support", ErrCapabilityUnavailable, format))
	}
	off := 0
	for l := range tb.desc.Levels {
		n := tb.desc.LevelBytes(l)
		for face := range tb.desc.Kind.Faces() {
			if err := tex.WriteLevel(l, face, format, data[off:off+n]); err != nil {
				tb.destroyHandle()
				return tb.fail(fmt.Errorf("restore level %d face %d: %w", l, face, err))
			}
			off += n
		}
	}
	tb.dirty = false
	return true
}

// Release destroys the device texture. It is safe to call more than once.
func (tb *TextureBuffer) Release() {
	if tb.released {
		return
	}
	tb.released = true
	tb.destroyHandle()
	tb.r.stats.Remove(KindTexture, tb.bytes)
	tb.r.untrack(tb)
}

// textureHandle returns tb's device texture for attachment.
func textureHandle(tb *TextureBuffer) (backend.Texture, error) {
	if tb == nil {
		return nil, fmt.Errorf("%w: nil texture buffer", ErrInvalidUsage)
	}
	if tb.tex == nil {
		return nil, fmt.Errorf("%w: texture has no device handle", ErrInvalidUsage)
	}
	return tb.tex, nil
}
