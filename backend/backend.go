package backend

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpures/pixel"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not registered.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrDestroyed is returned by operations on a destroyed resource.
	ErrDestroyed = errors.New("backend: resource destroyed")

	// ErrUnsupported is returned when the device lacks a capability.
	ErrUnsupported = errors.New("backend: unsupported")

	// ErrOutOfRange is returned for invalid level, face, offset or size arguments.
	ErrOutOfRange = errors.New("backend: argument out of range")

	// ErrNotMapped is returned by Unmap on a buffer that is not mapped.
	ErrNotMapped = errors.New("backend: buffer not mapped")

	// ErrAlreadyMapped is returned by Map on a buffer that is already mapped.
	ErrAlreadyMapped = errors.New("backend: buffer already mapped")
)

// Device is the per-API resource factory. One implementation exists per
// native graphics API; all resource semantics above this layer are
// backend-agnostic and depend only on Caps.
//
// A Device and everything it creates are bound to the goroutine that owns
// the native context.
type Device interface {
	// Name returns the backend identifier ("soft", "wgpu", "gl").
	Name() string

	// Caps reports what the device can do.
	Caps() Caps

	CreateTexture(desc TextureDesc) (Texture, error)
	CreateBuffer(desc BufferDesc) (Buffer, error)
	CreateRenderbuffer(desc RenderbufferDesc) (Renderbuffer, error)
	CreateFramebuffer() (Framebuffer, error)
	CreateProgram() (Program, error)

	// BindFramebuffer makes fb the current draw target. nil binds the
	// default target.
	BindFramebuffer(fb Framebuffer) error

	// Blit resolves the color content of src into dst. Both must be
	// complete and of equal size.
	Blit(src, dst Framebuffer) error

	// Close releases the device. Resources must be destroyed first.
	Close()
}

// Caps describes device capabilities consumed by the resource layer.
// Absence of a capability always degrades gracefully.
type Caps struct {
	// AutoMipmaps means Texture.GenerateMipmaps is available.
	AutoMipmaps bool

	// MultisampleBlit means multisampled renderbuffers and Device.Blit are available.
	MultisampleBlit bool

	// MaxSamples is the largest supported sample count.
	MaxSamples int

	// PackedDepthStencil means the D24S8 packed format can back a
	// renderbuffer attached at AttachDepthStencil.
	PackedDepthStencil bool

	// Features carries the compression feature bits
	// (gputypes.FeatureTextureCompressionBC for DXT/LATC).
	Features gputypes.Features

	// VertexBufferObjects means CreateBuffer is available. Without it vertex
	// data lives in system memory only.
	VertexBufferObjects bool

	// HalfFloatVertex means half-float vertex attributes are accepted.
	HalfFloatVertex bool

	MaxColorAttachments int
	MaxTextureSize      int

	Texture3D        bool
	TextureArray     bool
	TextureCube      bool
	TextureRectangle bool
}

// SupportsFormat reports whether f can be stored natively.
func (c Caps) SupportsFormat(f pixel.Format) bool {
	if !f.IsValid() {
		return false
	}
	if feat := f.RequiredFeature(); feat != 0 {
		return c.Features.Contains(feat)
	}
	return true
}

// SupportsKind reports whether textures of kind k can be created.
func (c Caps) SupportsKind(k TextureKind) bool {
	switch k {
	case Texture1D, Texture2D:
		return true
	case Texture2DArray:
		return c.TextureArray
	case Texture3D:
		return c.Texture3D
	case TextureCube:
		return c.TextureCube
	case TextureRectangle:
		return c.TextureRectangle
	}
	return false
}

// TextureKind is the shape of a texture.
type TextureKind uint8

const (
	Texture1D TextureKind = iota
	Texture2D
	Texture2DArray
	Texture3D
	TextureCube
	TextureRectangle
)

// String returns the kind name.
func (k TextureKind) String() string {
	switch k {
	case Texture1D:
		return "1D"
	case Texture2D:
		return "2D"
	case Texture2DArray:
		return "2DArray"
	case Texture3D:
		return "3D"
	case TextureCube:
		return "Cube"
	case TextureRectangle:
		return "Rectangle"
	default:
		return fmt.Sprintf("TextureKind(%d)", uint8(k))
	}
}

// Faces returns the number of independently addressed faces (6 for cube).
func (k TextureKind) Faces() int {
	if k == TextureCube {
		return 6
	}
	return 1
}

// TextureDesc describes texture storage.
type TextureDesc struct {
	Label  string
	Kind   TextureKind
	Format pixel.Format

	// Width, Height, Depth of level 0. Depth is the layer count for
	// Texture2DArray and 1 for every kind but Texture3D.
	Width, Height, Depth int

	Levels       int
	RenderTarget bool
}

// LevelSize returns the dimensions of mip level l. Array layers are never
// halved; 3D depth is.
func (d TextureDesc) LevelSize(l int) (w, h, depth int) {
	w, h, depth = max(1, d.Width>>l), max(1, d.Height>>l), max(1, d.Depth)
	if d.Kind == Texture3D {
		depth = max(1, d.Depth>>l)
	}
	return w, h, depth
}

// LevelBytes returns the storage size of one face of mip level l.
func (d TextureDesc) LevelBytes(l int) int {
	w, h, depth := d.LevelSize(l)
	return d.Format.NumOfBytes(w, h, depth)
}

// Texture is device image storage.
type Texture interface {
	Desc() TextureDesc

	// WriteLevel uploads a whole level of one face. data is in format src;
	// uncompressed data is converted to the storage format. Writing
	// uncompressed data into compressed storage asks the driver to
	// compress; Compressed reports whether it did.
	WriteLevel(level, face int, src pixel.Format, data []byte) error

	// ReadLevel returns a copy of a level of one face in the storage format.
	ReadLevel(level, face int) ([]byte, error)

	// Compressed reports whether the storage actually holds compressed data.
	Compressed() bool

	// GenerateMipmaps fills levels 1..n-1 from level 0.
	GenerateMipmaps() error

	Destroy()
}

// BufferUsage hints how often buffer content changes.
type BufferUsage uint8

const (
	UsageStatic BufferUsage = iota
	UsageDynamic
	UsageStream
)

// String returns the usage name.
func (u BufferUsage) String() string {
	switch u {
	case UsageStatic:
		return "static"
	case UsageDynamic:
		return "dynamic"
	case UsageStream:
		return "stream"
	default:
		return fmt.Sprintf("BufferUsage(%d)", uint8(u))
	}
}

// MapMode selects the access granted by Buffer.Map.
type MapMode uint8

const (
	MapRead MapMode = 1 << iota
	MapWrite

	MapReadWrite = MapRead | MapWrite
)

// BufferDesc describes a linear device buffer.
type BufferDesc struct {
	Label string
	Size  int
	Usage BufferUsage
}

// Buffer is a linear device buffer.
type Buffer interface {
	Size() int

	// Map exposes the buffer content. Writes through the returned slice
	// become device-visible at Unmap.
	Map(mode MapMode) ([]byte, error)
	Unmap() error

	Write(offset int, data []byte) error
	Read(offset int, out []byte) error

	Destroy()
}

// RenderbufferDesc describes render-only storage.
type RenderbufferDesc struct {
	Format        pixel.Format
	Width, Height int

	// Samples > 1 requests multisampled storage.
	Samples int

	// DepthStencil requests the packed depth-stencil layout; Format must
	// be D24.
	DepthStencil bool
}

// Renderbuffer is storage usable only as a framebuffer attachment.
type Renderbuffer interface {
	Desc() RenderbufferDesc
	Destroy()
}

// AttachmentPoint names a framebuffer attachment slot. Non-negative values
// are color attachment indices.
type AttachmentPoint int

const (
	AttachDepth        AttachmentPoint = -1
	AttachDepthStencil AttachmentPoint = -2
)

// ColorAttachment returns the point of color attachment i.
func ColorAttachment(i int) AttachmentPoint { return AttachmentPoint(i) }

// IsColor reports whether p is a color attachment.
func (p AttachmentPoint) IsColor() bool { return p >= 0 }

// String returns the attachment name.
func (p AttachmentPoint) String() string {
	switch p {
	case AttachDepth:
		return "depth"
	case AttachDepthStencil:
		return "depth-stencil"
	default:
		return fmt.Sprintf("color%d", int(p))
	}
}

// Framebuffer is a set of attachments.
type Framebuffer interface {
	AttachRenderbuffer(p AttachmentPoint, rb Renderbuffer) error
	AttachTexture(p AttachmentPoint, tex Texture, level, face int) error
	Detach(p AttachmentPoint)

	// Status validates the current attachment set.
	Status() FramebufferStatus

	Destroy()
}

// FramebufferStatus is the completeness of a framebuffer.
type FramebufferStatus uint8

const (
	FramebufferComplete FramebufferStatus = iota
	FramebufferIncompleteAttachment
	FramebufferMissingAttachment
	FramebufferIncompleteDimensions
	FramebufferIncompleteFormats
	FramebufferIncompleteDrawBuffer
	FramebufferIncompleteReadBuffer
	FramebufferUnsupported
	FramebufferIncompleteMultisample
	FramebufferUndefined
)

// String returns the status name.
func (s FramebufferStatus) String() string {
	switch s {
	case FramebufferComplete:
		return "complete"
	case FramebufferIncompleteAttachment:
		return "incomplete attachment"
	case FramebufferMissingAttachment:
		return "missing attachment"
	case FramebufferIncompleteDimensions:
		return "incomplete dimensions"
	case FramebufferIncompleteFormats:
		return "incomplete formats"
	case FramebufferIncompleteDrawBuffer:
		return "incomplete draw buffer"
	case FramebufferIncompleteReadBuffer:
		return "incomplete read buffer"
	case FramebufferUnsupported:
		return "unsupported"
	case FramebufferIncompleteMultisample:
		return "incomplete multisample"
	case FramebufferUndefined:
		return "undefined"
	default:
		return fmt.Sprintf("FramebufferStatus(%d)", uint8(s))
	}
}

// ShaderStage identifies a programmable pipeline stage.
type ShaderStage uint8

const (
	StageVertex ShaderStage = iota
	StageFragment
	StageCompute
)

// String returns the stage name.
func (s ShaderStage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	case StageCompute:
		return "compute"
	default:
		return fmt.Sprintf("ShaderStage(%d)", uint8(s))
	}
}

// Shader is an already compiled shader stage supplied by the caller.
type Shader interface {
	Stage() ShaderStage
}

// Program links shader stages and introspects the result.
type Program interface {
	Attach(s Shader) error
	Detach(s Shader)

	// Link links the attached stages. The log carries the reason on failure.
	Link() (ok bool, log string)

	// ActiveAttributes and ActiveUniforms list variables in declaration
	// order. Valid only after a successful Link.
	ActiveAttributes() []Variable
	ActiveUniforms() []Variable

	Destroy()
}

// Variable is an active attribute or uniform.
type Variable struct {
	Name string
	Type string

	// Location is the attribute or uniform location; for bind-group APIs
	// it is the binding index within Group.
	Location int
	Group    int

	// Size is the array length, 1 for scalars.
	Size int

	// Sampler marks texture/sampler uniforms that need a texture unit.
	Sampler bool
}
