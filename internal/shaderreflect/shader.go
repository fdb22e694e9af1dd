// Package shaderreflect reflects on WGSL shader stages through naga.
//
// It supplies the Shader and Program implementations shared by the soft and
// wgpu backends: a Shader is an already compiled stage (WGSL lowered to naga
// IR), a Program links stages by matching inter-stage locations and lists
// active attributes and uniforms in declaration order.
package shaderreflect

import (
	"errors"
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"

	"github.com/gogpu/gpures/backend"
	"github.com/gogpu/gpures/internal/cache"
)

// Errors returned by FromWGSL and Program.
var (
	// ErrCompile wraps WGSL parse and lowering errors.
	ErrCompile = errors.New("shaderreflect: compile failed")

	// ErrNoEntryPoint is returned when the module has no entry point for the stage.
	ErrNoEntryPoint = errors.New("shaderreflect: no entry point for stage")

	// ErrForeignShader is returned when a Shader from another backend is attached.
	ErrForeignShader = errors.New("shaderreflect: shader not created by this package")

	// ErrAlreadyAttached is returned when a shader is attached twice.
	ErrAlreadyAttached = errors.New("shaderreflect: shader already attached")
)

// modules memoizes lowered modules by source text.
var modules = cache.New[string, *ir.Module](cache.DefaultCapacity)

// Shader is one compiled stage of a WGSL module.
type Shader struct {
	stage  backend.ShaderStage
	source string
	module *ir.Module
	entry  int
}

// FromWGSL compiles source and selects its first entry point for stage.
func FromWGSL(stage backend.ShaderStage, source string) (*Shader, error) {
	m, err := modules.GetOrCreate(source, func() (*ir.Module, error) {
		ast, err := naga.Parse(source)
		if err != nil {
			return nil, err
		}
		return naga.LowerWithSource(ast, source)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompile, err)
	}

	want := irStage(stage)
	for i := range m.EntryPoints {
		if m.EntryPoints[i].Stage == want {
			backend.Logger().Debug("shader compiled",
				"stage", stage, "entry", m.EntryPoints[i].Name)
			return &Shader{stage: stage, source: source, module: m, entry: i}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoEntryPoint, stage)
}

// Stage returns the pipeline stage.
func (s *Shader) Stage() backend.ShaderStage { return s.stage }

// Source returns the WGSL text.
func (s *Shader) Source() string { return s.source }

// Module returns the lowered IR.
func (s *Shader) Module() *ir.Module { return s.module }

// EntryPoint returns the entry point name for the stage.
func (s *Shader) EntryPoint() string { return s.module.EntryPoints[s.entry].Name }

func (s *Shader) function() *ir.Function {
	return &s.module.EntryPoints[s.entry].Function
}

func irStage(s backend.ShaderStage) ir.ShaderStage {
	switch s {
	case backend.StageFragment:
		return ir.StageFragment
	case backend.StageCompute:
		return ir.StageCompute
	default:
		return ir.StageVertex
	}
}

// CacheStats reports module cache usage.
func CacheStats() cache.Stats { return modules.Stats() }
