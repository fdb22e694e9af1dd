package gpures

import (
	"fmt"
	"strings"

	"github.com/gogpu/gpures/backend"
	"github.com/gogpu/gpures/pixel"
)

// FBOState is the life cycle state of a FrameBufferObject.
type FBOState uint8

const (
	FBOUninitialized FBOState = iota
	FBOInitialized
	FBOBound
	FBOUnbound
	FBODestroyed
)

// String returns the state name.
func (s FBOState) String() string {
	switch s {
	case FBOUninitialized:
		return "uninitialized"
	case FBOInitialized:
		return "initialized"
	case FBOBound:
		return "bound"
	case FBOUnbound:
		return "unbound"
	case FBODestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("FBOState(%d)", uint8(s))
	}
}

// FBOFlags select the stores a framebuffer object creates.
type FBOFlags uint8

const (
	FBOColor FBOFlags = 1 << iota
	FBODepth
	FBOStencil
)

// String returns the set flags joined by "|".
func (f FBOFlags) String() string {
	var names []string
	if f&FBOColor != 0 {
		names = append(names, "color")
	}
	if f&FBODepth != 0 {
		names = append(names, "depth")
	}
	if f&FBOStencil != 0 {
		names = append(names, "stencil")
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

type fboParams struct {
	size          Size
	flags         FBOFlags
	format        pixel.Format
	noMultisample bool
}

// FrameBufferObject is an off-screen render target.
//
// When multisampling is active, drawing goes to a multisampled framebuffer
// and Finish resolves it into the single-sampled framebuffer that holds
// the target textures. Unbind always finishes first.
type FrameBufferObject struct {
	r       *Renderer
	state   FBOState
	params  fboParams
	samples int

	final backend.Framebuffer
	msaa  backend.Framebuffer
	color backend.Renderbuffer
	depth backend.Renderbuffer

	// depthPoint is where depth is attached.
	depthPoint backend.AttachmentPoint

	// targets are attached textures by color index, depth textures under
	// depthTarget.
	targets map[int]fboTarget

	bytes      int64
	depthBytes int64
	counted    bool
	err     error
}

type fboTarget struct {
	tb   *TextureBuffer
	face int
}

const depthTarget = -1

var _ deviceResource = (*FrameBufferObject)(nil)

// CreateFrameBufferObject creates an uninitialized framebuffer object.
func (r *Renderer) CreateFrameBufferObject() *FrameBufferObject {
	fbo := &FrameBufferObject{r: r, targets: map[int]fboTarget{}}
	r.track(fbo)
	return fbo
}

func (fbo *FrameBufferObject) fail(err error) bool {
	fbo.err = err
	Logger().Debug("gpures: frame buffer operation failed", "state", fbo.state, "err", err)
	return false
}

// Err returns the cause of the last failed operation.
func (fbo *FrameBufferObject) Err() error { return fbo.err }

// State returns the life cycle state.
func (fbo *FrameBufferObject) State() FBOState { return fbo.state }

// Size returns the render target size.
func (fbo *FrameBufferObject) Size() Size { return fbo.params.size }

// Samples returns the sample count, 0 when not multisampled.
func (fbo *FrameBufferObject) Samples() int { return fbo.samples }

// Multisampled reports whether drawing goes to a multisampled target.
func (fbo *FrameBufferObject) Multisampled() bool { return fbo.msaa != nil }

// Handle returns the framebuffer holding the target textures, nil while
// uninitialized.
func (fbo *FrameBufferObject) Handle() backend.Framebuffer { return fbo.final }

// HasDepth reports whether the object owns a depth store.
func (fbo *FrameBufferObject) HasDepth() bool { return fbo.depth != nil }

// drawTarget is the framebuffer drawing goes to.
func (fbo *FrameBufferObject) drawTarget() backend.Framebuffer {
	if fbo.msaa != nil {
		return fbo.msaa
	}
	return fbo.final
}

// Initialize creates the framebuffers and stores and validates them.
// targets are attached like SwitchTarget(targets[i], i, 0); depth-format
// textures become the depth target instead. On failure every partially
// created handle is released and the object stays uninitialized.
func (fbo *FrameBufferObject) Initialize(size Size, flags FBOFlags, textureFormat pixel.Format, noMultisample bool, targets ...*TextureBuffer) bool {
	if fbo.state != FBOUninitialized {
		return fbo.fail(fmt.Errorf("%w: initialize in state %v", ErrInvalidUsage, fbo.state))
	}
	size.Depth = 1
	if size.Width <= 0 || size.Height <= 0 {
		return fbo.fail(fmt.Errorf("%w: size %v", ErrInvalidUsage, size))
	}
	for i, tb := range targets {
		if _, err := textureHandle(tb); err != nil {
			return fbo.fail(fmt.Errorf("target %d: %w", i, err))
		}
		if s := tb.GetSize(0); s.Width != size.Width || s.Height != size.Height {
			fbo.diagnose(backend.FramebufferIncompleteDimensions,
				fmt.Sprintf("target %d is %dx%d, framebuffer is %dx%d", i, s.Width, s.Height, size.Width, size.Height))
			return fbo.fail(fmt.Errorf("%w: target %d is %dx%d, want %dx%d",
				ErrIncompleteDimensions, i, s.Width, s.Height, size.Width, size.Height))
		}
	}

	fbo.params = fboParams{size: size, flags: flags, format: textureFormat, noMultisample: noMultisample}
	if err := fbo.build(targets); err != nil {
		fbo.releaseHandles()
		fbo.targets = map[int]fboTarget{}
		return fbo.fail(err)
	}
	fbo.state = FBOInitialized
	if !fbo.counted {
		fbo.r.stats.Add(KindFrameBuffer, fbo.bytes)
		fbo.counted = true
	}
	Logger().Debug("gpures: frame buffer initialized",
		"size", size, "flags", flags, "format", textureFormat, "samples", fbo.samples)
	return true
}

// build creates the device objects for fbo.params.
func (fbo *FrameBufferObject) build(targets []*TextureBuffer) error {
	p := fbo.params
	caps := fbo.r.caps
	dev := fbo.r.dev

	fbo.samples = 0
	if !p.noMultisample && caps.MultisampleBlit && fbo.r.opts.samples > 1 && caps.MaxSamples > 1 {
		fbo.samples = min(fbo.r.opts.samples, caps.MaxSamples)
	}

	var err error
	if fbo.final, err = dev.CreateFramebuffer(); err != nil {
		return fmt.Errorf("%w: framebuffer: %w", ErrAllocation, err)
	}
	if fbo.samples > 1 {
		if fbo.msaa, err = dev.CreateFramebuffer(); err != nil {
			return fmt.Errorf("%w: multisample framebuffer: %w", ErrAllocation, err)
		}
	}
	draw := fbo.drawTarget()
	fbo.bytes, fbo.depthBytes = 0, 0

	if p.flags&FBOColor != 0 && !p.format.IsDepth() {
		f := p.format
		if !f.IsValid() || f.IsCompressed() {
			f = pixel.R8G8B8A8
		}
		fbo.color, err = dev.CreateRenderbuffer(backend.RenderbufferDesc{
			Format: f, Width: p.size.Width, Height: p.size.Height, Samples: fbo.samples,
		})
		if err != nil {
			return fmt.Errorf("%w: color store: %w", ErrAllocation, err)
		}
		if err := draw.AttachRenderbuffer(backend.ColorAttachment(0), fbo.color); err != nil {
			return fmt.Errorf("%w: %w", ErrIncompleteAttachment, err)
		}
		fbo.bytes += int64(f.NumOfBytes(p.size.Width, p.size.Height, 1) * max(1, fbo.samples))
	}

	if p.flags&(FBODepth|FBOStencil) != 0 {
		desc := backend.RenderbufferDesc{
			Format: pixel.D24, Width: p.size.Width, Height: p.size.Height, Samples: fbo.samples,
		}
		fbo.depthPoint = backend.AttachDepth
		switch {
		case p.flags&FBOStencil != 0 && caps.PackedDepthStencil:
			desc.DepthStencil = true
			fbo.depthPoint = backend.AttachDepthStencil
		case p.flags&FBOStencil != 0:
			Logger().Warn("gpures: packed depth-stencil unavailable, stencil dropped")
		case p.format.IsDepth():
			desc.Format = p.format
		}
		if fbo.depth, err = dev.CreateRenderbuffer(desc); err != nil {
			return fmt.Errorf("%w: depth store: %w", ErrAllocation, err)
		}
		if err := draw.AttachRenderbuffer(fbo.depthPoint, fbo.depth); err != nil {
			return fmt.Errorf("%w: %w", ErrIncompleteAttachment, err)
		}
		fbo.depthBytes = int64(desc.Format.NumOfBytes(p.size.Width, p.size.Height, 1) * max(1, fbo.samples))
		fbo.bytes += fbo.depthBytes
	}

	color := 0
	for _, tb := range targets {
		idx := depthTarget
		if !tb.Format().IsDepth() {
			idx = color
			color++
		}
		if err := fbo.attach(tb, idx, 0); err != nil {
			return err
		}
	}
	return fbo.validate()
}

// validate checks every framebuffer that has attachments. The resolve
// framebuffer of a multisampled object is empty until a target is set.
func (fbo *FrameBufferObject) validate() error {
	fbs := []backend.Framebuffer{fbo.drawTarget()}
	if fbo.msaa != nil && len(fbo.targets) > 0 {
		fbs = append(fbs, fbo.final)
	}
	for _, fb := range fbs {
		st := fb.Status()
		if st == backend.FramebufferComplete {
			continue
		}
		fbo.diagnose(st, "")
		return fmt.Errorf("%w: %s", StatusError(st), statusHint(st))
	}
	Logger().Debug("gpures: frame buffer complete")
	return nil
}

func (fbo *FrameBufferObject) diagnose(st backend.FramebufferStatus, detail string) {
	attrs := []any{"status", st.String(), "hint", statusHint(st), "size", fbo.params.size}
	if detail != "" {
		attrs = append(attrs, "detail", detail)
	}
	Logger().Warn("gpures: frame buffer incomplete", attrs...)
}

// attach binds a texture to the resolve framebuffer. idx is a color index
// or depthTarget.
func (fbo *FrameBufferObject) attach(tb *TextureBuffer, idx, face int) error {
	tex, err := textureHandle(tb)
	if err != nil {
		return err
	}
	if tb.Kind() != backend.TextureCube {
		face = 0
	} else if face < 0 || face > 5 {
		return fmt.Errorf("%w: cube face %d", ErrInvalidUsage, face)
	}
	point := backend.AttachDepth
	if idx != depthTarget {
		point = backend.ColorAttachment(idx)
	}
	if idx == depthTarget && fbo.msaa == nil && fbo.depth != nil {
		fbo.final.Detach(fbo.depthPoint)
	}
	if err := fbo.final.AttachTexture(point, tex, 0, face); err != nil {
		return fmt.Errorf("%w: %w", ErrIncompleteAttachment, err)
	}
	fbo.targets[idx] = fboTarget{tb: tb, face: face}
	return nil
}

// SwitchTarget attaches a texture at color index attachIndex (clamped to
// the highest supported index) or, for depth formats, as the depth target.
// face selects the cube face of cube textures. On failure the previous
// target is restored.
func (fbo *FrameBufferObject) SwitchTarget(tb *TextureBuffer, attachIndex, face int) bool {
	if fbo.state == FBOUninitialized || fbo.state == FBODestroyed {
		return fbo.fail(fmt.Errorf("%w: switch target in state %v", ErrInvalidUsage, fbo.state))
	}
	if _, err := textureHandle(tb); err != nil {
		return fbo.fail(err)
	}
	if s := tb.GetSize(0); s.Width != fbo.params.size.Width || s.Height != fbo.params.size.Height {
		fbo.diagnose(backend.FramebufferIncompleteDimensions,
			fmt.Sprintf("target is %dx%d", s.Width, s.Height))
		return fbo.fail(fmt.Errorf("%w: target is %dx%d, want %v",
			ErrIncompleteDimensions, s.Width, s.Height, fbo.params.size))
	}

	idx := depthTarget
	if !tb.Format().IsDepth() {
		maxIdx := fbo.r.opts.maxAttachIndex
		if n := fbo.r.caps.MaxColorAttachments; n > 0 {
			maxIdx = min(maxIdx, n-1)
		}
		idx = min(max(attachIndex, 0), maxIdx)
	}
	prev, hadPrev := fbo.targets[idx]
	if err := fbo.attach(tb, idx, face); err != nil {
		return fbo.fail(err)
	}
	if err := fbo.validate(); err != nil {
		fbo.detachTarget(idx)
		if hadPrev {
			_ = fbo.attach(prev.tb, idx, prev.face)
		}
		return fbo.fail(err)
	}
	return true
}

func (fbo *FrameBufferObject) detachTarget(idx int) {
	point := backend.AttachDepth
	if idx != depthTarget {
		point = backend.ColorAttachment(idx)
	}
	fbo.final.Detach(point)
	delete(fbo.targets, idx)
	if fbo.msaa != nil {
		return
	}
	switch {
	case idx == depthTarget && fbo.depth != nil:
		_ = fbo.final.AttachRenderbuffer(fbo.depthPoint, fbo.depth)
	case idx == 0 && fbo.color != nil:
		_ = fbo.final.AttachRenderbuffer(backend.ColorAttachment(0), fbo.color)
	}
}

// Target returns the texture at color index idx, or nil.
func (fbo *FrameBufferObject) Target(idx int) *TextureBuffer {
	return fbo.targets[idx].tb
}

// Bind makes the object the current draw target.
func (fbo *FrameBufferObject) Bind() bool {
	switch fbo.state {
	case FBOInitialized, FBOBound, FBOUnbound:
	default:
		return fbo.fail(fmt.Errorf("%w: bind in state %v", ErrInvalidUsage, fbo.state))
	}
	if err := fbo.r.dev.BindFramebuffer(fbo.drawTarget()); err != nil {
		return fbo.fail(fmt.Errorf("%w: %w", ErrInvalidUsage, err))
	}
	fbo.state = FBOBound
	return true
}

// Unbind finishes pending multisample work and restores the default
// target.
func (fbo *FrameBufferObject) Unbind() bool {
	if fbo.state != FBOBound {
		return fbo.fail(fmt.Errorf("%w: unbind in state %v", ErrInvalidUsage, fbo.state))
	}
	ok := fbo.Finish()
	if err := fbo.r.dev.BindFramebuffer(nil); err != nil {
		return fbo.fail(err)
	}
	fbo.state = FBOUnbound
	return ok
}

// Finish resolves the multisampled target into the target textures. It is
// a no-op without multisampling.
func (fbo *FrameBufferObject) Finish() bool {
	if fbo.msaa == nil {
		return true
	}
	if _, ok := fbo.targets[0]; !ok {
		return fbo.fail(fmt.Errorf("%w: no color target to resolve into", ErrMissingAttachment))
	}
	if err := fbo.r.dev.Blit(fbo.msaa, fbo.final); err != nil {
		return fbo.fail(fmt.Errorf("%w: resolve: %w", ErrInvalidUsage, err))
	}
	return true
}

// TakeDepthBufferFromFBO moves the donor's depth store into fbo, replacing
// fbo's own. Both objects must be initialized, have the same size and the
// same sample count. The store's bytes move with it. If the store cannot be
// attached, fbo keeps its own.
func (fbo *FrameBufferObject) TakeDepthBufferFromFBO(donor *FrameBufferObject) bool {
	switch {
	case donor == nil || donor == fbo:
		return fbo.fail(fmt.Errorf("%w: invalid donor", ErrInvalidUsage))
	case fbo.final == nil || donor.final == nil:
		return fbo.fail(fmt.Errorf("%w: donor and recipient must be initialized", ErrInvalidUsage))
	case donor.depth == nil:
		return fbo.fail(fmt.Errorf("%w: donor has no depth store", ErrInvalidUsage))
	case donor.params.size != fbo.params.size:
		return fbo.fail(fmt.Errorf("%w: donor is %v, recipient %v",
			ErrIncompleteDimensions, donor.params.size, fbo.params.size))
	case donor.samples != fbo.samples:
		return fbo.fail(fmt.Errorf("%w: donor has %d samples, recipient %d",
			ErrIncompleteMultisample, donor.samples, fbo.samples))
	}

	draw := fbo.drawTarget()
	if err := draw.AttachRenderbuffer(donor.depthPoint, donor.depth); err != nil {
		return fbo.fail(fmt.Errorf("%w: %w", ErrIncompleteAttachment, err))
	}
	if old := fbo.depth; old != nil {
		if fbo.depthPoint != donor.depthPoint {
			draw.Detach(fbo.depthPoint)
		}
		old.Destroy()
		fbo.bytes -= fbo.depthBytes
		if fbo.counted {
			fbo.r.stats.Resize(KindFrameBuffer, -fbo.depthBytes)
		}
	}
	donor.drawTarget().Detach(donor.depthPoint)
	moved := donor.depthBytes
	fbo.depth, fbo.depthPoint, fbo.depthBytes = donor.depth, donor.depthPoint, moved
	fbo.bytes += moved
	donor.depth, donor.depthBytes = nil, 0
	donor.bytes -= moved
	fbo.params.flags &^= FBOStencil
	fbo.params.flags |= FBODepth
	if fbo.depthPoint == backend.AttachDepthStencil {
		fbo.params.flags |= FBOStencil
	}
	donor.params.flags &^= FBODepth | FBOStencil
	return true
}

func (fbo *FrameBufferObject) releaseHandles() {
	if fbo.state == FBOBound {
		_ = fbo.r.dev.BindFramebuffer(nil)
	}
	for _, fb := range []backend.Framebuffer{fbo.msaa, fbo.final} {
		if fb != nil {
			fb.Destroy()
		}
	}
	for _, rb := range []backend.Renderbuffer{fbo.color, fbo.depth} {
		if rb != nil {
			rb.Destroy()
		}
	}
	fbo.msaa, fbo.final, fbo.color, fbo.depth = nil, nil, nil, nil
}

// BackupDeviceData releases the device objects. Render target content
// lives in the target textures, so nothing is captured.
func (fbo *FrameBufferObject) BackupDeviceData() []byte {
	if fbo.final == nil {
		return nil
	}
	fbo.releaseHandles()
	if fbo.state == FBOBound {
		fbo.state = FBOUnbound
	}
	return nil
}

func (fbo *FrameBufferObject) resident() bool { return fbo.final != nil }

// RestoreDeviceData rebuilds the device objects with the original
// parameters and reattaches the targets.
func (fbo *FrameBufferObject) RestoreDeviceData([]byte) bool {
	if fbo.state == FBOUninitialized || fbo.state == FBODestroyed || fbo.final != nil {
		return true
	}
	prev := fbo.targets
	fbo.targets = map[int]fboTarget{}
	if err := fbo.build(nil); err != nil {
		fbo.releaseHandles()
		return fbo.fail(err)
	}
	for idx, t := range prev {
		if err := fbo.attach(t.tb, idx, t.face); err != nil {
			return fbo.fail(err)
		}
	}
	if err := fbo.validate(); err != nil {
		return fbo.fail(err)
	}
	return true
}

// Release destroys the device objects. Target textures are not released.
func (fbo *FrameBufferObject) Release() {
	if fbo.state == FBODestroyed {
		return
	}
	fbo.releaseHandles()
	if fbo.counted {
		fbo.r.stats.Remove(KindFrameBuffer, fbo.bytes)
	}
	fbo.targets = nil
	fbo.state = FBODestroyed
	fbo.r.untrack(fbo)
}
