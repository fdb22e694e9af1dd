package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/pelletier/go-toml/v2"

	"github.com/gogpu/gpures/backend"
	"github.com/gogpu/gpures/backend/soft"
	"github.com/gogpu/gpures/pixel"
)

// profile is a device capability set loaded from TOML. Keys left out of a
// profile keep the full soft device defaults.
type profile struct {
	Name                string   `toml:"name"`
	AutoMipmaps         bool     `toml:"auto_mipmaps"`
	MultisampleBlit     bool     `toml:"multisample_blit"`
	MaxSamples          int      `toml:"max_samples"`
	PackedDepthStencil  bool     `toml:"packed_depth_stencil"`
	VertexBufferObjects bool     `toml:"vertex_buffer_objects"`
	HalfFloatVertex     bool     `toml:"half_float_vertex"`
	MaxColorAttachments int      `toml:"max_color_attachments"`
	MaxTextureSize      int      `toml:"max_texture_size"`
	Texture3D           bool     `toml:"texture_3d"`
	TextureArray        bool     `toml:"texture_array"`
	TextureCube         bool     `toml:"texture_cube"`
	TextureRectangle    bool     `toml:"texture_rectangle"`
	Features            []string `toml:"features"`

	// MaxMemoryMB limits the soft device's resident storage. Zero means
	// unlimited.
	MaxMemoryMB int `toml:"max_memory_mb"`
}

var features = map[string]gputypes.Feature{
	"bc": gputypes.FeatureTextureCompressionBC,
}

// builtin profiles selectable by name with -profile.
var builtin = map[string]string{
	"full": `name = "full"`,
	"legacy": `
name = "legacy"
auto_mipmaps = false
multisample_blit = false
max_samples = 1
packed_depth_stencil = false
half_float_vertex = false
max_color_attachments = 1
max_texture_size = 2048
texture_3d = false
texture_array = false
texture_rectangle = false
features = []
`,
	"mobile": `
name = "mobile"
max_samples = 4
max_color_attachments = 4
max_texture_size = 4096
texture_rectangle = false
features = []
`,
}

func defaultProfile() profile {
	c := soft.DefaultCaps()
	p := profile{
		Name:                "full",
		AutoMipmaps:         c.AutoMipmaps,
		MultisampleBlit:     c.MultisampleBlit,
		MaxSamples:          c.MaxSamples,
		PackedDepthStencil:  c.PackedDepthStencil,
		VertexBufferObjects: c.VertexBufferObjects,
		HalfFloatVertex:     c.HalfFloatVertex,
		MaxColorAttachments: c.MaxColorAttachments,
		MaxTextureSize:      c.MaxTextureSize,
		Texture3D:           c.Texture3D,
		TextureArray:        c.TextureArray,
		TextureCube:         c.TextureCube,
		TextureRectangle:    c.TextureRectangle,
	}
	for name, f := range features {
		if c.Features.Contains(f) {
			p.Features = append(p.Features, name)
		}
	}
	return p
}

// decodeProfile reads a TOML profile over the defaults. Unknown keys are
// rejected.
func decodeProfile(r io.Reader) (profile, error) {
	p := defaultProfile()
	if err := toml.NewDecoder(r).DisallowUnknownFields().Decode(&p); err != nil {
		return profile{}, fmt.Errorf("profile: %w", err)
	}
	if _, err := p.caps(); err != nil {
		return profile{}, err
	}
	return p, nil
}

// loadProfile resolves a builtin profile name or a TOML file path.
func loadProfile(nameOrPath string) (profile, error) {
	if src, ok := builtin[nameOrPath]; ok {
		return decodeProfile(strings.NewReader(src))
	}
	f, err := os.Open(nameOrPath)
	if err != nil {
		return profile{}, err
	}
	defer f.Close()
	return decodeProfile(f)
}

// caps converts the profile to device capabilities.
func (p profile) caps() (backend.Caps, error) {
	var fs gputypes.Features
	for _, name := range p.Features {
		f, ok := features[strings.ToLower(name)]
		if !ok {
			return backend.Caps{}, fmt.Errorf("profile %q: unknown feature %q", p.Name, name)
		}
		fs.Insert(f)
	}
	return backend.Caps{
		AutoMipmaps:         p.AutoMipmaps,
		MultisampleBlit:     p.MultisampleBlit,
		MaxSamples:          p.MaxSamples,
		PackedDepthStencil:  p.PackedDepthStencil,
		Features:            fs,
		VertexBufferObjects: p.VertexBufferObjects,
		HalfFloatVertex:     p.HalfFloatVertex,
		MaxColorAttachments: p.MaxColorAttachments,
		MaxTextureSize:      p.MaxTextureSize,
		Texture3D:           p.Texture3D,
		TextureArray:        p.TextureArray,
		TextureCube:         p.TextureCube,
		TextureRectangle:    p.TextureRectangle,
	}, nil
}

// parseFormat maps a format name to a pixel format. "" and "auto" derive
// the format from the image.
func parseFormat(s string) (pixel.Format, error) {
	if s == "" || strings.EqualFold(s, "auto") {
		return pixel.Unknown, nil
	}
	for f := pixel.L8; f.IsValid(); f++ {
		if strings.EqualFold(f.String(), s) {
			return f, nil
		}
	}
	return pixel.Unknown, fmt.Errorf("unknown pixel format %q", s)
}
