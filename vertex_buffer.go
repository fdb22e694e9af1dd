package gpures

import (
	"encoding/binary"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/gogpu/gputypes"
	"github.com/x448/float16"

	"github.com/gogpu/gpures/backend"
	"github.com/gogpu/gpures/pixel"
)

// Semantic is the meaning of a vertex attribute.
type Semantic uint8

const (
	SemanticPosition Semantic = iota
	SemanticBlendWeight
	SemanticNormal
	SemanticColor
	SemanticFogCoord
	SemanticPointSize
	SemanticBlendIndices
	SemanticTexCoord
	SemanticTangent
	SemanticBinormal
	numSemantics
)

// MaxChannels is the number of channels per semantic.
const MaxChannels = 16

var semanticNames = [numSemantics]string{
	"position", "blend-weight", "normal", "color", "fog-coord",
	"point-size", "blend-indices", "texcoord", "tangent", "binormal",
}

// String returns the semantic name.
func (s Semantic) String() string {
	if s >= numSemantics {
		return fmt.Sprintf("Semantic(%d)", uint8(s))
	}
	return semanticNames[s]
}

// AttributeType is the storage type of a vertex attribute.
type AttributeType uint8

const (
	// AttrRGBA is a color of four float channels.
	AttrRGBA AttributeType = iota
	AttrFloat1
	AttrFloat2
	AttrFloat3
	AttrFloat4
	AttrShort2
	AttrShort4
	AttrHalf1
	AttrHalf2
	AttrHalf3
	AttrHalf4
	numAttributeTypes
)

type attributeTypeInfo struct {
	name       string
	components int
	compBytes  int
	gpu        gputypes.VertexFormat
}

var attributeTypes = [numAttributeTypes]attributeTypeInfo{
	AttrRGBA:   {"rgba", 4, 4, gputypes.VertexFormatFloat32x4},
	AttrFloat1: {"float1", 1, 4, gputypes.VertexFormatFloat32},
	AttrFloat2: {"float2", 2, 4, gputypes.VertexFormatFloat32x2},
	AttrFloat3: {"float3", 3, 4, gputypes.VertexFormatFloat32x3},
	AttrFloat4: {"float4", 4, 4, gputypes.VertexFormatFloat32x4},
	AttrShort2: {"short2", 2, 2, gputypes.VertexFormatSint16x2},
	AttrShort4: {"short4", 4, 2, gputypes.VertexFormatSint16x4},
	AttrHalf1:  {"half1", 1, 2, gputypes.VertexFormatUndefined},
	AttrHalf2:  {"half2", 2, 2, gputypes.VertexFormatFloat16x2},
	AttrHalf3:  {"half3", 3, 2, gputypes.VertexFormatUndefined},
	AttrHalf4:  {"half4", 4, 2, gputypes.VertexFormatFloat16x4},
}

func (t AttributeType) info() attributeTypeInfo {
	if t >= numAttributeTypes {
		return attributeTypeInfo{}
	}
	return attributeTypes[t]
}

// String returns the type name.
func (t AttributeType) String() string {
	if t >= numAttributeTypes {
		return fmt.Sprintf("AttributeType(%d)", uint8(t))
	}
	return attributeTypes[t].name
}

// Components returns the number of channels.
func (t AttributeType) Components() int { return t.info().components }

// Size returns the attribute size in bytes.
func (t AttributeType) Size() int { return t.info().components * t.info().compBytes }

// IsHalf reports whether t stores half floats.
func (t AttributeType) IsHalf() bool { return t >= AttrHalf1 && t <= AttrHalf4 }

// VertexFormat returns the matching gputypes vertex format, or
// VertexFormatUndefined for layouts wgpu cannot fetch.
func (t AttributeType) VertexFormat() gputypes.VertexFormat { return t.info().gpu }

// VertexAttribute is one attribute of the interleaved vertex layout.
type VertexAttribute struct {
	Semantic Semantic
	Channel  int
	Type     AttributeType
	Format   gputypes.VertexFormat
	Offset   int
	Size     int
}

// VertexBuffer is interleaved per-vertex storage.
//
// A managed buffer keeps a system-memory shadow that is the source of
// truth and is flushed to the device lazily. An unmanaged buffer maps the
// device buffer directly. Devices without buffer objects get a managed
// shadow with no device storage.
type VertexBuffer struct {
	r          *Renderer
	attrs      []VertexAttribute
	offsets    [numSemantics][MaxChannels]int
	vertexSize int

	count    int
	usage    backend.BufferUsage
	managed  bool
	software bool

	shadow   []byte
	buf      backend.Buffer
	dirty    bool
	bytes    int64
	counted  bool
	err      error
	released bool

	locks    int
	mapped   []byte
	lockMode backend.MapMode
}

var _ deviceResource = (*VertexBuffer)(nil)

// CreateVertexBuffer creates a vertex buffer with no attributes.
func (r *Renderer) CreateVertexBuffer() *VertexBuffer {
	vb := &VertexBuffer{r: r, software: !r.caps.VertexBufferObjects}
	vb.rebuildOffsets()
	r.track(vb)
	return vb
}

func (vb *VertexBuffer) fail(err error) bool {
	vb.err = err
	Logger().Debug("gpures: vertex buffer operation failed", "err", err)
	return false
}

// Err returns the cause of the last failed operation.
func (vb *VertexBuffer) Err() error { return vb.err }

// Attributes returns the layout.
func (vb *VertexBuffer) Attributes() []VertexAttribute { return vb.attrs }

// VertexSize returns the size of one vertex in bytes.
func (vb *VertexBuffer) VertexSize() int { return vb.vertexSize }

// Count returns the number of allocated vertices.
func (vb *VertexBuffer) Count() int { return vb.count }

// Usage returns the usage hint of the allocation.
func (vb *VertexBuffer) Usage() backend.BufferUsage { return vb.usage }

// Managed reports whether a shadow copy is kept.
func (vb *VertexBuffer) Managed() bool { return vb.managed || vb.software }

// Software reports whether the buffer lives in system memory only.
func (vb *VertexBuffer) Software() bool { return vb.software }

// IsDirty reports whether the shadow copy holds changes not yet flushed.
func (vb *VertexBuffer) IsDirty() bool { return vb.dirty }

// IsLocked reports whether the buffer is locked.
func (vb *VertexBuffer) IsLocked() bool { return vb.locks > 0 }

// Handle returns the device buffer, nil for software buffers and while
// backed up.
func (vb *VertexBuffer) Handle() backend.Buffer { return vb.buf }

// Offset returns the byte offset of (sem, channel) within a vertex, or -1.
func (vb *VertexBuffer) Offset(sem Semantic, channel int) int {
	if sem >= numSemantics || channel < 0 || channel >= MaxChannels {
		return -1
	}
	return vb.offsets[sem][channel]
}

func (vb *VertexBuffer) rebuildOffsets() {
	for s := range vb.offsets {
		for c := range vb.offsets[s] {
			vb.offsets[s][c] = -1
		}
	}
	off := 0
	for i := range vb.attrs {
		a := &vb.attrs[i]
		a.Offset = off
		a.Size = a.Type.Size()
		a.Format = a.Type.VertexFormat()
		vb.offsets[a.Semantic][a.Channel] = off
		off += a.Size
	}
	vb.vertexSize = off
}

func (vb *VertexBuffer) checkAttribute(sem Semantic, channel int, typ AttributeType) error {
	switch {
	case sem >= numSemantics:
		return fmt.Errorf("%w: semantic %v", ErrInvalidUsage, sem)
	case typ >= numAttributeTypes:
		return fmt.Errorf("%w: attribute type %v", ErrInvalidUsage, typ)
	case channel < 0 || channel >= MaxChannels:
		return fmt.Errorf("%w: channel %d", ErrInvalidUsage, channel)
	case vb.offsets[sem][channel] >= 0:
		return fmt.Errorf("%w: %v channel %d already present", ErrInvalidUsage, sem, channel)
	}
	switch sem {
	case SemanticNormal, SemanticTangent, SemanticBinormal:
		if typ != AttrFloat3 && typ != AttrHalf3 {
			return fmt.Errorf("%w: %v must be float3 or half3, not %v", ErrInvalidUsage, sem, typ)
		}
	case SemanticColor:
		if typ != AttrRGBA {
			return fmt.Errorf("%w: color must be rgba, not %v", ErrInvalidUsage, typ)
		}
	}
	switch {
	case (sem == SemanticPosition || sem == SemanticNormal) && channel > 1:
		return fmt.Errorf("%w: %v channel %d above 1", ErrInvalidUsage, sem, channel)
	case sem == SemanticColor && channel > 2:
		return fmt.Errorf("%w: color channel %d above 2", ErrInvalidUsage, channel)
	case typ.IsHalf() && !vb.r.caps.HalfFloatVertex:
		return fmt.Errorf("%w: half float vertex attributes", ErrCapabilityUnavailable)
	}
	return nil
}

// AddVertexAttribute appends an attribute to the layout. If storage is
// allocated, existing vertex data is moved into the new layout and the new
// attribute reads as zero.
func (vb *VertexBuffer) AddVertexAttribute(sem Semantic, channel int, typ AttributeType) bool {
	if vb.released {
		return vb.fail(ErrReleased)
	}
	if vb.locks > 0 {
		return vb.fail(fmt.Errorf("%w: layout change while locked", ErrInvalidUsage))
	}
	if err := vb.checkAttribute(sem, channel, typ); err != nil {
		return vb.fail(err)
	}
	if vb.count == 0 {
		vb.attrs = append(vb.attrs, VertexAttribute{Semantic: sem, Channel: channel, Type: typ})
		vb.rebuildOffsets()
		return true
	}

	old, ok := vb.readAll()
	if !ok {
		return false
	}
	oldSize := vb.vertexSize
	oldAttrs := append([]VertexAttribute(nil), vb.attrs...)
	vb.attrs = append(vb.attrs, VertexAttribute{Semantic: sem, Channel: channel, Type: typ})
	vb.rebuildOffsets()

	relaid := make([]byte, vb.count*vb.vertexSize)
	for i := range vb.count {
		for j, a := range oldAttrs {
			src := old[i*oldSize+a.Offset:][:a.Size]
			copy(relaid[i*vb.vertexSize+vb.attrs[j].Offset:], src)
		}
	}
	if !vb.reallocate(vb.count, vb.usage, vb.managed, relaid) {
		vb.attrs = oldAttrs
		vb.rebuildOffsets()
		return false
	}
	return true
}

// readAll copies the whole content out through a read-only lock.
func (vb *VertexBuffer) readAll() ([]byte, bool) {
	data := vb.Lock(backend.MapRead)
	if data == nil {
		return nil, false
	}
	out := append([]byte(nil), data...)
	vb.Unlock()
	return out, true
}

// Allocate sizes storage for count vertices. Reallocating with keepData
// copies the old content into the new storage, truncated or zero-extended.
// Changing only usage or managed always keeps the content. On failure the
// previous storage is kept.
func (vb *VertexBuffer) Allocate(count int, usage backend.BufferUsage, managed, keepData bool) bool {
	if vb.released {
		return vb.fail(ErrReleased)
	}
	switch {
	case count <= 0:
		return vb.fail(fmt.Errorf("%w: %d vertices", ErrInvalidUsage, count))
	case vb.vertexSize == 0:
		return vb.fail(fmt.Errorf("%w: no vertex attributes", ErrInvalidUsage))
	case vb.locks > 0:
		return vb.fail(fmt.Errorf("%w: allocation while locked", ErrInvalidUsage))
	}
	if vb.count == count && vb.usage == usage && vb.managed == managed {
		return true
	}

	// A usage or management change keeps the content even without keepData.
	var keep []byte
	if (keepData || count == vb.count) && vb.count > 0 {
		var ok bool
		if keep, ok = vb.readAll(); !ok {
			return false
		}
	}
	return vb.reallocate(count, usage, managed, keep)
}

// reallocate replaces storage and writes content at the start of it.
func (vb *VertexBuffer) reallocate(count int, usage backend.BufferUsage, managed bool, content []byte) bool {
	size := count * vb.vertexSize
	var buf backend.Buffer
	if !vb.software {
		var err error
		buf, err = vb.r.dev.CreateBuffer(backend.BufferDesc{Label: "vertices", Size: size, Usage: usage})
		if err != nil {
			return vb.fail(fmt.Errorf("%w: vertex buffer of %d bytes: %w", ErrAllocation, size, err))
		}
	}

	var shadow []byte
	if managed || vb.software {
		shadow = make([]byte, size)
		copy(shadow, content)
	}
	if buf != nil && len(content) > 0 {
		if err := buf.Write(0, content[:min(len(content), size)]); err != nil {
			buf.Destroy()
			return vb.fail(fmt.Errorf("%w: %w", ErrAllocation, err))
		}
	}

	if vb.buf != nil {
		vb.buf.Destroy()
	}
	vb.buf, vb.shadow = buf, shadow
	vb.count, vb.usage, vb.managed = count, usage, managed
	vb.dirty = false

	if !vb.counted {
		vb.r.stats.Add(KindVertexBuffer, int64(size))
		vb.counted = true
	} else {
		vb.r.stats.Resize(KindVertexBuffer, int64(size)-vb.bytes)
	}
	vb.bytes = int64(size)
	Logger().Debug("gpures: vertex buffer allocated",
		"vertices", count, "bytes", size, "usage", usage, "managed", managed, "software", vb.software)
	return true
}

// Lock exposes the vertex data. Locks nest: the mapping is released by the
// last matching Unlock, and writes become visible to the device only
// then. Lock returns nil when there is neither a shadow nor a device
// buffer.
func (vb *VertexBuffer) Lock(mode backend.MapMode) []byte {
	if vb.locks > 0 {
		vb.locks++
		vb.lockMode |= mode
		return vb.mapped
	}
	switch {
	case vb.shadow != nil:
		vb.mapped = vb.shadow
	case vb.buf != nil:
		// Nested locks may add write access, so map for both.
		data, err := vb.buf.Map(backend.MapReadWrite)
		if err != nil {
			vb.fail(fmt.Errorf("%w: map: %w", ErrInvalidUsage, err))
			return nil
		}
		vb.mapped = data
	default:
		vb.fail(fmt.Errorf("%w: no storage to lock", ErrInvalidUsage))
		return nil
	}
	vb.locks = 1
	vb.lockMode = mode
	return vb.mapped
}

// Unlock releases one lock.
func (vb *VertexBuffer) Unlock() bool {
	if vb.locks == 0 {
		return vb.fail(fmt.Errorf("%w: unlock without lock", ErrInvalidUsage))
	}
	vb.locks--
	if vb.locks > 0 {
		return true
	}
	vb.mapped = nil
	if vb.shadow != nil {
		if vb.lockMode&backend.MapWrite != 0 && !vb.software {
			vb.dirty = true
		}
		return true
	}
	if err := vb.buf.Unmap(); err != nil {
		return vb.fail(fmt.Errorf("%w: unmap: %w", ErrInvalidUsage, err))
	}
	return true
}

// Flush uploads a dirty shadow copy to the device buffer.
func (vb *VertexBuffer) Flush() bool {
	if !vb.dirty || vb.buf == nil {
		return true
	}
	if vb.locks > 0 {
		return vb.fail(fmt.Errorf("%w: flush while locked", ErrInvalidUsage))
	}
	if err := vb.buf.Write(0, vb.shadow); err != nil {
		return vb.fail(fmt.Errorf("%w: %w", ErrAllocation, err))
	}
	vb.dirty = false
	return true
}

// GetData returns the bytes of (sem, channel) of vertex index inside the
// current lock, or nil when unlocked or absent.
func (vb *VertexBuffer) GetData(index int, sem Semantic, channel int) []byte {
	a, off, ok := vb.locate(index, sem, channel)
	if !ok || vb.mapped == nil {
		return nil
	}
	return vb.mapped[off : off+a.Size : off+a.Size]
}

func (vb *VertexBuffer) locate(index int, sem Semantic, channel int) (VertexAttribute, int, bool) {
	off := vb.Offset(sem, channel)
	if off < 0 || index < 0 || index >= vb.count {
		return VertexAttribute{}, 0, false
	}
	for _, a := range vb.attrs {
		if a.Semantic == sem && a.Channel == channel {
			return a, index*vb.vertexSize + off, true
		}
	}
	return VertexAttribute{}, 0, false
}

var le = binary.LittleEndian

// GetFloat reads the components of (sem, channel) of vertex index as
// floats. Short components are returned unnormalized.
func (vb *VertexBuffer) GetFloat(index int, sem Semantic, channel int) ([]float32, bool) {
	a, off, ok := vb.locate(index, sem, channel)
	if !ok {
		return nil, vb.fail(fmt.Errorf("%w: no %v channel %d at vertex %d", ErrInvalidUsage, sem, channel, index))
	}
	data := vb.Lock(backend.MapRead)
	if data == nil {
		return nil, false
	}
	defer vb.Unlock()

	info := a.Type.info()
	out := make([]float32, info.components)
	for i := range out {
		p := data[off+i*info.compBytes:]
		switch {
		case a.Type == AttrShort2 || a.Type == AttrShort4:
			out[i] = float32(int16(le.Uint16(p)))
		case a.Type.IsHalf():
			out[i] = float16.Frombits(le.Uint16(p)).Float32()
		default:
			out[i] = math32.Float32frombits(le.Uint32(p))
		}
	}
	return out, true
}

// SetFloat writes up to Components values into (sem, channel) of vertex
// index. Short components are rounded and clamped.
func (vb *VertexBuffer) SetFloat(index int, sem Semantic, channel int, values ...float32) bool {
	a, off, ok := vb.locate(index, sem, channel)
	if !ok {
		return vb.fail(fmt.Errorf("%w: no %v channel %d at vertex %d", ErrInvalidUsage, sem, channel, index))
	}
	info := a.Type.info()
	if len(values) > info.components {
		return vb.fail(fmt.Errorf("%w: %d values for %v", ErrInvalidUsage, len(values), a.Type))
	}
	data := vb.Lock(backend.MapWrite)
	if data == nil {
		return false
	}
	for i, v := range values {
		p := data[off+i*info.compBytes:]
		switch {
		case a.Type == AttrShort2 || a.Type == AttrShort4:
			v = math32.Max(-32768, math32.Min(32767, math32.Round(v)))
			le.PutUint16(p, uint16(int16(v)))
		case a.Type.IsHalf():
			le.PutUint16(p, float16.Fromfloat32(v).Bits())
		default:
			le.PutUint32(p, math32.Float32bits(v))
		}
	}
	return vb.Unlock()
}

// GetColor reads color channel of vertex index.
func (vb *VertexBuffer) GetColor(index, channel int) (pixel.Texel, bool) {
	v, ok := vb.GetFloat(index, SemanticColor, channel)
	if !ok {
		return pixel.Texel{}, false
	}
	return pixel.Texel{v[0], v[1], v[2], v[3]}, true
}

// SetColor writes color channel of vertex index.
func (vb *VertexBuffer) SetColor(index, channel int, c pixel.Texel) bool {
	return vb.SetFloat(index, SemanticColor, channel, c[0], c[1], c[2], c[3])
}

// BackupDeviceData reads an unmanaged device buffer back and releases it.
// Managed buffers release the device buffer and return nil: the shadow
// copy already holds the content. A failed read keeps the device buffer,
// sets Err to ErrBackup and returns nil.
func (vb *VertexBuffer) BackupDeviceData() []byte {
	if vb.buf == nil {
		return nil
	}
	var out []byte
	if vb.shadow == nil {
		out = make([]byte, vb.buf.Size())
		if err := vb.buf.Read(0, out); err != nil {
			vb.fail(fmt.Errorf("%w: %w", ErrBackup, err))
			return nil
		}
	} else {
		vb.dirty = true
	}
	vb.buf.Destroy()
	vb.buf = nil
	vb.locks, vb.mapped = 0, nil
	return out
}

func (vb *VertexBuffer) resident() bool { return vb.buf != nil }

// RestoreDeviceData recreates the device buffer. A capture is written back;
// without one the buffer comes back empty and dirty, and managed buffers
// refill it from the shadow copy at the next Flush.
func (vb *VertexBuffer) RestoreDeviceData(data []byte) bool {
	if vb.released {
		return vb.fail(ErrReleased)
	}
	if vb.software || vb.buf != nil || vb.count == 0 {
		return true
	}
	size := vb.count * vb.vertexSize
	if data != nil && len(data) != size {
		return vb.fail(fmt.Errorf("%w: capture has %d bytes, want %d", ErrInvalidUsage, len(data), size))
	}
	buf, err := vb.r.dev.CreateBuffer(backend.BufferDesc{Label: "vertices", Size: size, Usage: vb.usage})
	if err != nil {
		return vb.fail(fmt.Errorf("%w: %w", ErrAllocation, err))
	}
	vb.buf = buf
	if data == nil {
		vb.dirty = true
		return true
	}
	if err := buf.Write(0, data); err != nil {
		return vb.fail(fmt.Errorf("restore: %w", err))
	}
	vb.dirty = false
	return true
}

// Release destroys the storage. It is safe to call more than once.
func (vb *VertexBuffer) Release() {
	if vb.released {
		return
	}
	vb.released = true
	if vb.buf != nil {
		vb.buf.Destroy()
		vb.buf = nil
	}
	vb.shadow, vb.mapped = nil, nil
	if vb.counted {
		vb.r.stats.Remove(KindVertexBuffer, vb.bytes)
	}
	vb.r.untrack(vb)
}
