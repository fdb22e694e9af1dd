package shaderreflect

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gogpu/naga/ir"

	"github.com/gogpu/gpures/backend"
)

// Program links Shader stages. It implements backend.Program.
type Program struct {
	shaders  []*Shader
	linked   bool
	attrs    []backend.Variable
	uniforms []backend.Variable
}

var _ backend.Program = (*Program)(nil)

// NewProgram returns an empty program.
func NewProgram() *Program { return &Program{} }

// Attach adds a stage. The program must be relinked.
func (p *Program) Attach(s backend.Shader) error {
	sh, ok := s.(*Shader)
	if !ok || sh == nil {
		return ErrForeignShader
	}
	if slices.Contains(p.shaders, sh) {
		return ErrAlreadyAttached
	}
	p.shaders = append(p.shaders, sh)
	p.reset()
	return nil
}

// Detach removes a stage. The program must be relinked.
func (p *Program) Detach(s backend.Shader) {
	sh, ok := s.(*Shader)
	if !ok {
		return
	}
	if i := slices.Index(p.shaders, sh); i >= 0 {
		p.shaders = slices.Delete(p.shaders, i, i+1)
		p.reset()
	}
}

// Shaders returns the attached stages in attach order.
func (p *Program) Shaders() []*Shader { return p.shaders }

func (p *Program) reset() {
	p.linked = false
	p.attrs, p.uniforms = nil, nil
}

// Link checks the stage set and inter-stage interface and collects the
// active variables.
//
// A graphics program needs exactly one vertex stage and at most one
// fragment stage; every fragment @location input must be written by the
// vertex stage. A compute program has exactly one compute stage.
func (p *Program) Link() (bool, string) {
	p.reset()

	byStage := map[backend.ShaderStage][]*Shader{}
	for _, s := range p.shaders {
		byStage[s.stage] = append(byStage[s.stage], s)
	}
	var problems []string
	for _, st := range []backend.ShaderStage{backend.StageVertex, backend.StageFragment, backend.StageCompute} {
		if n := len(byStage[st]); n > 1 {
			problems = append(problems, fmt.Sprintf("%d %s stages attached", n, st))
		}
	}

	vs, fs, cs := first(byStage[backend.StageVertex]), first(byStage[backend.StageFragment]), first(byStage[backend.StageCompute])
	switch {
	case cs != nil && (vs != nil || fs != nil):
		problems = append(problems, "compute stage mixed with graphics stages")
	case cs == nil && vs == nil:
		problems = append(problems, "no vertex stage attached")
	}

	if vs != nil && fs != nil {
		outs := map[uint32]bool{}
		for _, loc := range resultLocations(vs) {
			outs[loc.location] = true
		}
		for _, in := range argumentLocations(fs) {
			if !outs[in.location] {
				problems = append(problems, fmt.Sprintf(
					"fragment input %q at location %d is not written by the vertex stage", in.name, in.location))
			}
		}
	}

	if len(problems) > 0 {
		return false, strings.Join(problems, "\n")
	}

	if vs != nil {
		for _, a := range argumentLocations(vs) {
			p.attrs = append(p.attrs, backend.Variable{
				Name:     a.name,
				Type:     a.typ,
				Location: int(a.location),
				Size:     1,
			})
		}
	}
	p.uniforms = collectUniforms(p.shaders)
	p.linked = true
	return true, ""
}

// Linked reports whether the last Link succeeded and nothing changed since.
func (p *Program) Linked() bool { return p.linked }

// ActiveAttributes returns vertex inputs in declaration order.
func (p *Program) ActiveAttributes() []backend.Variable { return p.attrs }

// ActiveUniforms returns resource globals in declaration order, vertex
// stage first.
func (p *Program) ActiveUniforms() []backend.Variable { return p.uniforms }

// Destroy detaches everything.
func (p *Program) Destroy() {
	p.shaders = nil
	p.reset()
}

func first(s []*Shader) *Shader {
	if len(s) == 0 {
		return nil
	}
	return s[0]
}

type location struct {
	name     string
	typ      string
	location uint32
}

// argumentLocations lists @location inputs of the entry point, flattening
// struct arguments member by member.
func argumentLocations(s *Shader) []location {
	m, fn := s.module, s.function()
	var out []location
	for _, arg := range fn.Arguments {
		if loc, ok := locationOf(arg.Binding); ok {
			out = append(out, location{arg.Name, typeName(m, arg.Type), loc})
			continue
		}
		out = append(out, memberLocations(m, arg.Type)...)
	}
	return out
}

// resultLocations lists @location outputs of the entry point.
func resultLocations(s *Shader) []location {
	m, fn := s.module, s.function()
	if fn.Result == nil {
		return nil
	}
	if loc, ok := locationOf(fn.Result.Binding); ok {
		return []location{{"", typeName(m, fn.Result.Type), loc}}
	}
	return memberLocations(m, fn.Result.Type)
}

func memberLocations(m *ir.Module, h ir.TypeHandle) []location {
	st, ok := structOf(m, h)
	if !ok {
		return nil
	}
	var out []location
	for _, mem := range st.Members {
		if loc, ok := locationOf(mem.Binding); ok {
			out = append(out, location{mem.Name, typeName(m, mem.Type), loc})
		}
	}
	return out
}

func locationOf(b *ir.Binding) (uint32, bool) {
	if b == nil || *b == nil {
		return 0, false
	}
	switch lb := (*b).(type) {
	case ir.LocationBinding:
		return lb.Location, true
	case *ir.LocationBinding:
		return lb.Location, true
	}
	return 0, false
}

func structOf(m *ir.Module, h ir.TypeHandle) (ir.StructType, bool) {
	if int(h) >= len(m.Types) {
		return ir.StructType{}, false
	}
	switch st := m.Types[h].Inner.(type) {
	case ir.StructType:
		return st, true
	case *ir.StructType:
		return *st, true
	}
	return ir.StructType{}, false
}

// collectUniforms walks uniform-buffer and handle-space globals of every
// stage. Globals shared by name across stages are listed once.
func collectUniforms(shaders []*Shader) []backend.Variable {
	ordered := slices.Clone(shaders)
	slices.SortStableFunc(ordered, func(a, b *Shader) int { return int(a.stage) - int(b.stage) })

	seen := map[string]bool{}
	var out []backend.Variable
	for _, s := range ordered {
		m := s.module
		for _, g := range m.GlobalVariables {
			if g.Space != ir.SpaceUniform && g.Space != ir.SpaceHandle {
				continue
			}
			if seen[g.Name] {
				continue
			}
			seen[g.Name] = true

			v := backend.Variable{
				Name:     g.Name,
				Type:     typeName(m, g.Type),
				Location: -1,
				Size:     arrayLen(m, g.Type),
				Sampler:  isImage(m, g.Type),
			}
			if g.Binding != nil {
				v.Group = int(g.Binding.Group)
				v.Location = int(g.Binding.Binding)
			}
			out = append(out, v)
		}
	}
	return out
}

func isImage(m *ir.Module, h ir.TypeHandle) bool {
	if int(h) >= len(m.Types) {
		return false
	}
	switch t := m.Types[h].Inner.(type) {
	case ir.ImageType, *ir.ImageType:
		return true
	case ir.ArrayType:
		return isImage(m, t.Base)
	case *ir.ArrayType:
		return isImage(m, t.Base)
	}
	return false
}

func arrayLen(m *ir.Module, h ir.TypeHandle) int {
	if int(h) >= len(m.Types) {
		return 1
	}
	var size ir.ArraySize
	switch t := m.Types[h].Inner.(type) {
	case ir.ArrayType:
		size = t.Size
	case *ir.ArrayType:
		size = t.Size
	default:
		return 1
	}
	if size.Constant == nil {
		return 1
	}
	return int(*size.Constant)
}
