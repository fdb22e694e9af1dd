package gpures

import (
	"errors"

	"github.com/gogpu/gpures/backend"
)

// Resource errors. Operations return false or nil and keep one of these,
// usually wrapped with detail, in the resource's Err.
var (
	// ErrAllocation is returned when the device refuses to create storage.
	ErrAllocation = errors.New("gpures: allocation failed")

	// ErrCapabilityUnavailable is returned when a required device
	// capability is missing and no fallback exists.
	ErrCapabilityUnavailable = errors.New("gpures: capability unavailable")

	// ErrInvalidUsage is returned for calls that are invalid in the
	// resource's current state or with the given arguments.
	ErrInvalidUsage = errors.New("gpures: invalid usage")

	// ErrReleased is returned when operating on a released resource.
	ErrReleased = errors.New("gpures: resource released")

	// ErrLinkFailed is returned when a program does not link.
	ErrLinkFailed = errors.New("gpures: program link failed")

	// ErrBackup is returned when resident content cannot be read back.
	// The resource keeps its device handle and content.
	ErrBackup = errors.New("gpures: device data backup failed")

	// ErrIncomplete is the parent of every framebuffer completeness error.
	ErrIncomplete = errors.New("gpures: framebuffer incomplete")
)

// Framebuffer completeness errors, one per status.
var (
	ErrIncompleteAttachment   = incomplete("attachment")
	ErrMissingAttachment      = incomplete("missing attachment")
	ErrIncompleteDimensions   = incomplete("dimensions")
	ErrIncompleteFormats      = incomplete("formats")
	ErrIncompleteDrawBuffer   = incomplete("draw buffer")
	ErrIncompleteReadBuffer   = incomplete("read buffer")
	ErrUnsupportedFramebuffer = incomplete("unsupported attachment combination")
	ErrIncompleteMultisample  = incomplete("multisample")
	ErrFramebufferUndefined   = incomplete("undefined")
)

type incompleteError struct{ what string }

func incomplete(what string) error { return &incompleteError{what: what} }

func (e *incompleteError) Error() string { return "gpures: framebuffer incomplete: " + e.what }

func (e *incompleteError) Is(target error) bool { return target == ErrIncomplete }

// statusErrors maps completeness statuses to errors and diagnostics.
var statusErrors = map[backend.FramebufferStatus]struct {
	err  error
	hint string
}{
	backend.FramebufferIncompleteAttachment: {ErrIncompleteAttachment,
		"an attachment is not renderable or was destroyed"},
	backend.FramebufferMissingAttachment: {ErrMissingAttachment,
		"no attachment is bound"},
	backend.FramebufferIncompleteDimensions: {ErrIncompleteDimensions,
		"attachments differ in size"},
	backend.FramebufferIncompleteFormats: {ErrIncompleteFormats,
		"color attachments differ in format"},
	backend.FramebufferIncompleteDrawBuffer: {ErrIncompleteDrawBuffer,
		"a draw buffer names an empty attachment point"},
	backend.FramebufferIncompleteReadBuffer: {ErrIncompleteReadBuffer,
		"the read buffer names an empty attachment point"},
	backend.FramebufferUnsupported: {ErrUnsupportedFramebuffer,
		"the device cannot render to this combination of formats"},
	backend.FramebufferIncompleteMultisample: {ErrIncompleteMultisample,
		"attachments differ in sample count"},
	backend.FramebufferUndefined: {ErrFramebufferUndefined,
		"the framebuffer does not exist"},
}

// StatusError returns the error for a framebuffer status, nil when complete.
func StatusError(s backend.FramebufferStatus) error {
	if s == backend.FramebufferComplete {
		return nil
	}
	if e, ok := statusErrors[s]; ok {
		return e.err
	}
	return ErrIncomplete
}

func statusHint(s backend.FramebufferStatus) string {
	if e, ok := statusErrors[s]; ok {
		return e.hint
	}
	return "unknown status"
}
