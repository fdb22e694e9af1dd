package gpures

import (
	"github.com/gogpu/gpures/backend"
	"github.com/gogpu/gpures/pixel"
)

// Negotiation is the outcome of format negotiation.
type Negotiation struct {
	// Internal is the format storage is requested in.
	Internal pixel.Format

	// Fallback is the uncompressed format used when the device does not
	// produce compressed storage for Internal.
	Fallback pixel.Format

	// Source is the format image data is uploaded in.
	Source pixel.Format

	// Precompressed means the image's CompressedData is uploaded as is.
	Precompressed bool

	// Notes lists the degradations applied, for diagnostics.
	Notes []string
}

// FormatFromImage derives a pixel format from an image level. Precompressed
// levels map to their compressed format unless noCompression is set, in
// which case the uncompressed equivalent is returned. Layouts without a
// pixel format yield pixel.Unknown.
func FormatFromImage(b *ImageBuffer, noCompression bool) pixel.Format {
	if b == nil {
		return pixel.Unknown
	}
	if f := b.Compression.Format(); f != pixel.Unknown {
		if noCompression {
			return f.Uncompressed()
		}
		return f
	}
	return b.PixelFormat()
}

// autoCompressed picks a compressed format by component count.
func autoCompressed(components int) pixel.Format {
	switch components {
	case 2:
		return pixel.LATC2
	case 3:
		return pixel.DXT1
	case 4:
		return pixel.DXT5
	}
	return pixel.Unknown
}

// NegotiateFormat chooses storage and upload formats for an image level
// (nil for an empty texture) and a requested format (pixel.Unknown derives
// it from the image). It never fails: in the worst case it returns an
// uncompressed pass-through of the image format, or R8G8B8A8 when nothing
// is known.
func NegotiateFormat(b *ImageBuffer, requested pixel.Format, flags TextureFlags, caps backend.Caps) Negotiation {
	var n Negotiation
	compress := flags&FlagCompression != 0

	src := FormatFromImage(b, !compress)
	if src.IsCompressed() && !caps.SupportsFormat(src) {
		n.Notes = append(n.Notes, "precompressed "+src.String()+" unsupported by device")
		src = src.Uncompressed()
	}
	if src.IsCompressed() && len(b.CompressedData) == 0 {
		src = src.Uncompressed()
	}
	n.Source = src

	internal := requested
	if !internal.IsValid() {
		internal = src
		if compress && !internal.IsCompressed() {
			if c := autoCompressed(internal.Components()); c != pixel.Unknown && caps.SupportsFormat(c) {
				internal = c
			}
		}
	}
	if !internal.IsValid() {
		internal = pixel.R8G8B8A8
		n.Notes = append(n.Notes, "no format known, using R8G8B8A8")
	}

	if internal.IsCompressed() {
		switch {
		case !caps.SupportsFormat(internal):
			n.Notes = append(n.Notes, internal.String()+" unsupported by device")
			internal = internal.Uncompressed()
		case b != nil && !internal.BlockAligned(b.Width, b.Height):
			n.Notes = append(n.Notes, internal.String()+" needs block-aligned size")
			internal = internal.Uncompressed()
		}
	}

	n.Precompressed = src.IsCompressed() && src == internal
	if src.IsCompressed() && !n.Precompressed {
		n.Source = src.Uncompressed()
	}
	if !n.Source.IsValid() {
		n.Source = internal.Uncompressed()
	}
	n.Internal = internal
	n.Fallback = internal.Uncompressed()
	return n
}
