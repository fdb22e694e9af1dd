// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"fmt"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpures/internal/shaderreflect"
)

// program reflects like every other backend and, once linked, holds one
// HAL shader module per stage.
type program struct {
	*shaderreflect.Program
	dev       *Device
	modules   []hal.ShaderModule
	destroyed bool
}

// Link relinks and recreates the shader modules.
func (p *program) Link() (bool, string) {
	p.releaseModules()
	ok, log := p.Program.Link()
	if !ok {
		return false, log
	}
	for _, s := range p.Shaders() {
		m, err := p.dev.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
			Label:  s.EntryPoint(),
			Source: hal.ShaderSource{WGSL: s.Source()},
		})
		if err != nil {
			p.releaseModules()
			return false, fmt.Sprintf("%s stage: %v", s.Stage(), err)
		}
		p.modules = append(p.modules, m)
	}
	return true, log
}

// Modules returns the shader modules of the last successful link.
func (p *program) Modules() []hal.ShaderModule { return p.modules }

func (p *program) releaseModules() {
	for _, m := range p.modules {
		p.dev.device.DestroyShaderModule(m)
	}
	p.modules = nil
}

func (p *program) Destroy() {
	if p.destroyed {
		return
	}
	p.destroyed = true
	p.releaseModules()
	p.Program.Destroy()
	p.dev.live.Programs--
}
