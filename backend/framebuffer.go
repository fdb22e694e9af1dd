package backend

import "github.com/gogpu/gpures/pixel"

// AttachmentInfo is the part of an attachment that completeness depends on.
type AttachmentInfo struct {
	Point         AttachmentPoint
	Format        pixel.Format
	Width, Height int
	Samples       int
	Destroyed     bool
}

// CheckAttachments validates an attachment set. Backends without a native
// completeness query use it to implement Framebuffer.Status; the checks run
// in the order a driver reports them: attachment validity, then
// dimensions, then sample counts.
func CheckAttachments(atts []AttachmentInfo) FramebufferStatus {
	if len(atts) == 0 {
		return FramebufferMissingAttachment
	}
	for _, a := range atts {
		switch {
		case a.Destroyed:
			return FramebufferIncompleteAttachment
		case a.Format.IsCompressed():
			return FramebufferUnsupported
		case a.Point.IsColor() == a.Format.IsDepth():
			return FramebufferIncompleteAttachment
		}
	}
	for _, a := range atts[1:] {
		if a.Width != atts[0].Width || a.Height != atts[0].Height {
			return FramebufferIncompleteDimensions
		}
	}
	for _, a := range atts[1:] {
		if max(1, a.Samples) != max(1, atts[0].Samples) {
			return FramebufferIncompleteMultisample
		}
	}
	return FramebufferComplete
}

// Counts is a snapshot of live device objects.
type Counts struct {
	Textures      int
	Buffers       int
	Renderbuffers int
	Framebuffers  int
	Programs      int
	Bytes         int
}

// Resources returns the number of live storage objects, programs excluded.
func (c Counts) Resources() int {
	return c.Textures + c.Buffers + c.Renderbuffers + c.Framebuffers
}
