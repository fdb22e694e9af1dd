package gpures

import (
	"fmt"
	"slices"

	"github.com/gogpu/gpures/backend"
	"github.com/gogpu/gpures/internal/shaderreflect"
)

// ParseWGSL wraps WGSL source as a shader stage for devices that reflect
// on WGSL (soft, wgpu). The source must declare one entry point for stage.
func ParseWGSL(stage backend.ShaderStage, source string) (backend.Shader, error) {
	s, err := shaderreflect.FromWGSL(stage, source)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Attribute is an active vertex input.
type Attribute struct {
	Name     string
	Type     string
	Location int
}

// Uniform is an active uniform or resource binding.
type Uniform struct {
	Name     string
	Type     string
	Location int
	Group    int
	Size     int

	// Unit is the texture unit of sampler-typed uniforms, -1 otherwise.
	Unit int
}

// Program is a linked shader program with lazily built attribute and
// uniform directories.
type Program struct {
	r       *Renderer
	prog    backend.Program
	shaders []backend.Shader

	linked     bool
	linkFailed bool
	linkLog    string

	built        bool
	attrs        []Attribute
	attrIndex    map[string]int
	uniforms     []Uniform
	uniformIndex map[string]int

	err      error
	released bool
}

var _ deviceResource = (*Program)(nil)

// CreateProgram creates an empty program.
func (r *Renderer) CreateProgram() (*Program, error) {
	prog, err := r.dev.CreateProgram()
	if err != nil {
		return nil, fmt.Errorf("%w: program: %w", ErrAllocation, err)
	}
	p := &Program{r: r, prog: prog}
	r.stats.Add(KindProgram, 0)
	r.track(p)
	return p, nil
}

func (p *Program) fail(err error) bool {
	p.err = err
	Logger().Debug("gpures: program operation failed", "err", err)
	return false
}

// Err returns the cause of the last failed operation.
func (p *Program) Err() error { return p.err }

// LinkLog returns the log of the last failed link.
func (p *Program) LinkLog() string { return p.linkLog }

// Shaders returns the attached stages.
func (p *Program) Shaders() []backend.Shader { return p.shaders }

// invalidate drops the link state and both directories.
func (p *Program) invalidate() {
	p.linked, p.linkFailed, p.linkLog = false, false, ""
	p.built = false
	p.attrs, p.attrIndex = nil, nil
	p.uniforms, p.uniformIndex = nil, nil
}

// AttachShader adds a stage and invalidates the link.
func (p *Program) AttachShader(s backend.Shader) bool {
	if p.prog == nil {
		return p.fail(fmt.Errorf("%w: no device program", ErrInvalidUsage))
	}
	if err := p.prog.Attach(s); err != nil {
		return p.fail(fmt.Errorf("%w: %w", ErrInvalidUsage, err))
	}
	p.shaders = append(p.shaders, s)
	p.invalidate()
	return true
}

// DetachShader removes a stage and invalidates the link.
func (p *Program) DetachShader(s backend.Shader) bool {
	i := slices.Index(p.shaders, s)
	if i < 0 {
		return p.fail(fmt.Errorf("%w: shader not attached", ErrInvalidUsage))
	}
	if p.prog != nil {
		p.prog.Detach(s)
	}
	p.shaders = slices.Delete(p.shaders, i, i+1)
	p.invalidate()
	return true
}

// Linked reports whether the program is linked.
func (p *Program) Linked() bool { return p.linked }

// Link links the attached stages. A failure is remembered: later calls
// return false without linking or logging again until a stage is attached
// or detached.
func (p *Program) Link() bool {
	switch {
	case p.linked:
		return true
	case p.linkFailed:
		return false
	case p.prog == nil:
		return p.fail(fmt.Errorf("%w: no device program", ErrInvalidUsage))
	}
	ok, log := p.prog.Link()
	if !ok {
		p.linkFailed, p.linkLog = true, log
		Logger().Warn("gpures: program link failed", "log", log)
		return p.fail(fmt.Errorf("%w: %s", ErrLinkFailed, log))
	}
	p.linked = true
	return true
}

// build fills both directories. Sampler uniforms get texture units in
// the order the device reports them.
func (p *Program) build() bool {
	if p.built {
		return true
	}
	if !p.Link() {
		return false
	}
	vars := p.prog.ActiveAttributes()
	p.attrs = make([]Attribute, 0, len(vars))
	p.attrIndex = make(map[string]int, len(vars))
	for _, v := range vars {
		p.attrIndex[v.Name] = len(p.attrs)
		p.attrs = append(p.attrs, Attribute{Name: v.Name, Type: v.Type, Location: v.Location})
	}

	vars = p.prog.ActiveUniforms()
	p.uniforms = make([]Uniform, 0, len(vars))
	p.uniformIndex = make(map[string]int, len(vars))
	unit := 0
	for _, v := range vars {
		u := Uniform{Name: v.Name, Type: v.Type, Location: v.Location, Group: v.Group, Size: v.Size, Unit: -1}
		if v.Sampler {
			u.Unit = unit
			unit++
		}
		p.uniformIndex[v.Name] = len(p.uniforms)
		p.uniforms = append(p.uniforms, u)
	}
	p.built = true
	return true
}

// GetAttribute looks up an active attribute, linking first if needed.
func (p *Program) GetAttribute(name string) (Attribute, bool) {
	if !p.build() {
		return Attribute{}, false
	}
	i, ok := p.attrIndex[name]
	if !ok {
		return Attribute{}, false
	}
	return p.attrs[i], true
}

// GetUniform looks up an active uniform, linking first if needed.
func (p *Program) GetUniform(name string) (Uniform, bool) {
	if !p.build() {
		return Uniform{}, false
	}
	i, ok := p.uniformIndex[name]
	if !ok {
		return Uniform{}, false
	}
	return p.uniforms[i], true
}

// Attributes returns every active attribute in declaration order.
func (p *Program) Attributes() []Attribute {
	if !p.build() {
		return nil
	}
	return p.attrs
}

// Uniforms returns every active uniform in declaration order.
func (p *Program) Uniforms() []Uniform {
	if !p.build() {
		return nil
	}
	return p.uniforms
}

// BackupDeviceData releases the device program. Nothing is captured; the
// attached stages are kept.
func (p *Program) BackupDeviceData() []byte {
	if p.prog != nil {
		p.prog.Destroy()
		p.prog = nil
	}
	p.invalidate()
	return nil
}

func (p *Program) resident() bool { return p.prog != nil }

// RestoreDeviceData recreates the device program and reattaches the
// stages. The program must be linked again.
func (p *Program) RestoreDeviceData([]byte) bool {
	if p.released {
		return p.fail(ErrReleased)
	}
	if p.prog != nil {
		return true
	}
	prog, err := p.r.dev.CreateProgram()
	if err != nil {
		return p.fail(fmt.Errorf("%w: %w", ErrAllocation, err))
	}
	for _, s := range p.shaders {
		if err := prog.Attach(s); err != nil {
			prog.Destroy()
			return p.fail(fmt.Errorf("%w: reattach: %w", ErrInvalidUsage, err))
		}
	}
	p.prog = prog
	p.invalidate()
	return true
}

// Release destroys the device program. It is safe to call more than once.
func (p *Program) Release() {
	if p.released {
		return
	}
	p.released = true
	if p.prog != nil {
		p.prog.Destroy()
		p.prog = nil
	}
	p.r.stats.Remove(KindProgram, 0)
	p.r.untrack(p)
}
