// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build cgo && !nogl

package gl

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-gl/gl/v3.3-core/gl"

	"github.com/gogpu/gpures/backend"
)

// ErrCompile is returned when a GLSL shader does not compile.
var ErrCompile = errors.New("gl: shader compile failed")

var shaderTypes = map[backend.ShaderStage]uint32{
	backend.StageVertex:   gl.VERTEX_SHADER,
	backend.StageFragment: gl.FRAGMENT_SHADER,
}

// Shader is a compiled GLSL shader object.
type Shader struct {
	handle uint32
	stage  backend.ShaderStage
	owned  bool
}

var _ backend.Shader = (*Shader)(nil)

// CompileShader compiles GLSL source. The returned shader is owned and
// deleted by Destroy.
func CompileShader(stage backend.ShaderStage, source string) (*Shader, error) {
	typ, ok := shaderTypes[stage]
	if !ok {
		return nil, fmt.Errorf("%w: %s shaders", backend.ErrUnsupported, stage)
	}
	handle := gl.CreateShader(typ)
	csrc, free := gl.Strs(source + "\x00")
	gl.ShaderSource(handle, 1, csrc, nil)
	free()
	gl.CompileShader(handle)

	var status int32
	gl.GetShaderiv(handle, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var n int32
		gl.GetShaderiv(handle, gl.INFO_LOG_LENGTH, &n)
		log := strings.Repeat("\x00", int(n+1))
		gl.GetShaderInfoLog(handle, n, nil, gl.Str(log))
		gl.DeleteShader(handle)
		return nil, fmt.Errorf("%w: %s stage: %s", ErrCompile, stage, strings.TrimRight(log, "\x00"))
	}
	return &Shader{handle: handle, stage: stage, owned: true}, nil
}

// WrapShader borrows a shader compiled by the caller. Destroy never
// deletes it.
func WrapShader(handle uint32, stage backend.ShaderStage) *Shader {
	return &Shader{handle: handle, stage: stage}
}

// Stage implements backend.Shader.
func (s *Shader) Stage() backend.ShaderStage { return s.stage }

// Handle returns the GL shader name.
func (s *Shader) Handle() uint32 { return s.handle }

// Owned reports whether Destroy deletes the GL shader.
func (s *Shader) Owned() bool { return s.owned }

// Destroy deletes an owned shader and forgets a borrowed one.
func (s *Shader) Destroy() {
	if s.owned && s.handle != 0 {
		gl.DeleteShader(s.handle)
	}
	s.handle = 0
}

type program struct {
	dev      *Device
	handle   uint32
	shaders  []*Shader
	attrs    []backend.Variable
	uniforms []backend.Variable
}

// CreateProgram implements backend.Device.
func (d *Device) CreateProgram() (backend.Program, error) {
	h := gl.CreateProgram()
	if h == 0 {
		return nil, fmt.Errorf("%w: no program name", ErrGL)
	}
	d.live.Programs++
	return &program{dev: d, handle: h}, nil
}

func (p *program) Attach(s backend.Shader) error {
	if p.handle == 0 {
		return backend.ErrDestroyed
	}
	sh, ok := s.(*Shader)
	if !ok {
		return fmt.Errorf("%w: %T is not a GLSL shader", backend.ErrUnsupported, s)
	}
	if sh.handle == 0 {
		return fmt.Errorf("%w: shader", backend.ErrDestroyed)
	}
	if slices.Contains(p.shaders, sh) {
		return nil
	}
	gl.AttachShader(p.handle, sh.handle)
	p.shaders = append(p.shaders, sh)
	p.attrs, p.uniforms = nil, nil
	return checkError("attach shader")
}

func (p *program) Detach(s backend.Shader) {
	sh, ok := s.(*Shader)
	if !ok || p.handle == 0 {
		return
	}
	i := slices.Index(p.shaders, sh)
	if i < 0 {
		return
	}
	gl.DetachShader(p.handle, sh.handle)
	p.shaders = slices.Delete(p.shaders, i, i+1)
	p.attrs, p.uniforms = nil, nil
}

func (p *program) Link() (bool, string) {
	if p.handle == 0 {
		return false, "program destroyed"
	}
	p.attrs, p.uniforms = nil, nil
	gl.LinkProgram(p.handle)

	var status int32
	gl.GetProgramiv(p.handle, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var n int32
		gl.GetProgramiv(p.handle, gl.INFO_LOG_LENGTH, &n)
		log := strings.Repeat("\x00", int(n+1))
		gl.GetProgramInfoLog(p.handle, n, nil, gl.Str(log))
		return false, strings.TrimRight(log, "\x00")
	}
	p.attrs = p.active(gl.ACTIVE_ATTRIBUTES, gl.ACTIVE_ATTRIBUTE_MAX_LENGTH, gl.GetActiveAttrib, gl.GetAttribLocation)
	p.uniforms = p.active(gl.ACTIVE_UNIFORMS, gl.ACTIVE_UNIFORM_MAX_LENGTH, gl.GetActiveUniform, gl.GetUniformLocation)
	return true, ""
}

type activeFunc func(program, index uint32, bufSize int32, length, size *int32, xtype *uint32, name *uint8)

// active lists the program's active attributes or uniforms sorted by
// location. Built-ins (gl_*) have no location and are skipped.
func (p *program) active(count, maxLen uint32, get activeFunc, locate func(uint32, *uint8) int32) []backend.Variable {
	var n, bufLen int32
	gl.GetProgramiv(p.handle, count, &n)
	gl.GetProgramiv(p.handle, maxLen, &bufLen)

	vars := make([]backend.Variable, 0, n)
	buf := make([]uint8, bufLen+1)
	for i := range uint32(n) {
		var length, size int32
		var xtype uint32
		get(p.handle, i, int32(len(buf)), &length, &size, &xtype, &buf[0])
		name := string(buf[:length])
		loc := locate(p.handle, gl.Str(name+"\x00"))
		if loc < 0 {
			continue
		}
		vars = append(vars, backend.Variable{
			Name:     strings.TrimSuffix(name, "[0]"),
			Type:     typeName(xtype),
			Location: int(loc),
			Size:     int(size),
			Sampler:  samplerTypes[xtype],
		})
	}
	slices.SortFunc(vars, func(a, b backend.Variable) int { return a.Location - b.Location })
	return vars
}

func typeName(xtype uint32) string {
	if s, ok := typeNames[xtype]; ok {
		return s
	}
	return fmt.Sprintf("0x%04X", xtype)
}

func (p *program) ActiveAttributes() []backend.Variable { return p.attrs }

func (p *program) ActiveUniforms() []backend.Variable { return p.uniforms }

// Destroy deletes the program. Attached shaders are left to their owners.
func (p *program) Destroy() {
	if p.handle == 0 {
		return
	}
	gl.DeleteProgram(p.handle)
	p.handle = 0
	p.shaders, p.attrs, p.uniforms = nil, nil, nil
	p.dev.live.Programs--
}
