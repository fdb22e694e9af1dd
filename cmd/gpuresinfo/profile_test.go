package main

import (
	"strings"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpures/backend/soft"
	"github.com/gogpu/gpures/pixel"
)

func TestBuiltinProfiles(t *testing.T) {
	tests := []struct {
		name        string
		bc          bool
		maxSize     int
		texture3D   bool
		autoMipmaps bool
	}{
		{"full", true, 16384, true, true},
		{"legacy", false, 2048, false, false},
		{"mobile", false, 4096, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := loadProfile(tt.name)
			if err != nil {
				t.Fatalf("loadProfile(%q) error = %v", tt.name, err)
			}
			if p.Name != tt.name {
				t.Errorf("Name = %q, want %q", p.Name, tt.name)
			}
			c, err := p.caps()
			if err != nil {
				t.Fatalf("caps() error = %v", err)
			}
			if got := c.Features.Contains(gputypes.FeatureTextureCompressionBC); got != tt.bc {
				t.Errorf("BC = %v, want %v", got, tt.bc)
			}
			if c.MaxTextureSize != tt.maxSize {
				t.Errorf("MaxTextureSize = %d, want %d", c.MaxTextureSize, tt.maxSize)
			}
			if c.Texture3D != tt.texture3D {
				t.Errorf("Texture3D = %v, want %v", c.Texture3D, tt.texture3D)
			}
			if c.AutoMipmaps != tt.autoMipmaps {
				t.Errorf("AutoMipmaps = %v, want %v", c.AutoMipmaps, tt.autoMipmaps)
			}
		})
	}
}

func TestFullProfileMatchesSoftDefaults(t *testing.T) {
	p, err := loadProfile("full")
	if err != nil {
		t.Fatalf("loadProfile() error = %v", err)
	}
	c, err := p.caps()
	if err != nil {
		t.Fatalf("caps() error = %v", err)
	}
	if want := soft.DefaultCaps(); c != want {
		t.Errorf("caps() = %+v, want %+v", c, want)
	}
}

func TestDecodeProfileErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown key", "name = \"x\"\nshaders = true\n"},
		{"unknown feature", "features = [\"astc\"]\n"},
		{"bad syntax", "name = \n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := decodeProfile(strings.NewReader(tt.src)); err == nil {
				t.Errorf("decodeProfile(%q) error = nil, want error", tt.src)
			}
		})
	}
}

func TestDecodeProfileKeepsDefaults(t *testing.T) {
	p, err := decodeProfile(strings.NewReader("max_texture_size = 512\nfeatures = [\"BC\"]\n"))
	if err != nil {
		t.Fatalf("decodeProfile() error = %v", err)
	}
	c, err := p.caps()
	if err != nil {
		t.Fatalf("caps() error = %v", err)
	}
	if c.MaxTextureSize != 512 {
		t.Errorf("MaxTextureSize = %d, want 512", c.MaxTextureSize)
	}
	if !c.TextureCube || !c.MultisampleBlit {
		t.Errorf("caps() = %+v, want unset keys to keep defaults", c)
	}
	if !c.Features.Contains(gputypes.FeatureTextureCompressionBC) {
		t.Errorf("BC feature missing")
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    pixel.Format
		wantErr bool
	}{
		{"", pixel.Unknown, false},
		{"auto", pixel.Unknown, false},
		{"dxt5", pixel.DXT5, false},
		{"R8G8B8A8", pixel.R8G8B8A8, false},
		{"R32G32B32A32F", pixel.R32G32B32A32F, false},
		{"Unknown", pixel.Unknown, true},
		{"RGBA", pixel.Unknown, true},
	}
	for _, tt := range tests {
		got, err := parseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("parseFormat(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
