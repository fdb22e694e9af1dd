package gpures

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gogpu/gpures/backend"
	"github.com/gogpu/gpures/backend/soft"
	"github.com/gogpu/gpures/pixel"
)

// newTestRenderer returns a renderer on a soft device whose default caps
// are adjusted by edit.
func newTestRenderer(t *testing.T, edit func(*backend.Caps), opts ...Option) (*Renderer, *soft.Device, *Statistics) {
	t.Helper()
	caps := soft.DefaultCaps()
	if edit != nil {
		edit(&caps)
	}
	dev := soft.New(soft.Config{Caps: caps})
	stats := NewStatistics(StatsConfig{})
	r, err := NewRenderer(dev, append([]Option{WithStats(stats)}, opts...)...)
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}
	return r, dev, stats
}

// solidBuffer returns a w x h x d level of format f filled with c.
func solidBuffer(t *testing.T, w, h, d int, f pixel.Format, c pixel.Texel) *ImageBuffer {
	t.Helper()
	data := make([]byte, f.NumOfBytes(w, h, d))
	for i := range w * h * d {
		if err := pixel.Encode(f, data, i, c); err != nil {
			t.Fatalf("Encode(%v) error = %v", f, err)
		}
	}
	b, err := NewImageBuffer(w, h, d, f, data)
	if err != nil {
		t.Fatalf("NewImageBuffer() error = %v", err)
	}
	return b
}

// patternBuffer returns a w x h level of format f with distinct bytes.
func patternBuffer(t *testing.T, w, h int, f pixel.Format, seed byte) *ImageBuffer {
	t.Helper()
	data := make([]byte, f.NumOfBytes(w, h, 1))
	for i := range data {
		data[i] = byte(i*7) + seed
	}
	b, err := NewImageBuffer(w, h, 1, f, data)
	if err != nil {
		t.Fatalf("NewImageBuffer() error = %v", err)
	}
	return b
}

func imageOf(levels ...*ImageBuffer) *Image {
	img := NewImage()
	img.SetLevels(PartStatic, levels...)
	return img
}

func TestNewRenderer(t *testing.T) {
	r, dev, _ := newTestRenderer(t, nil)
	if r.Device() != dev {
		t.Error("Device() did not return the given device")
	}
	if !r.Caps().AutoMipmaps {
		t.Error("Caps() lost AutoMipmaps")
	}

	r2, err := NewRenderer(nil, WithStatsConfig(StatsConfig{MaxMemoryMB: 32}))
	if err != nil {
		t.Fatalf("NewRenderer(nil) error = %v", err)
	}
	defer r2.Close()
	if r2.Device().Name() == "" {
		t.Error("default device has no name")
	}
	if s, ok := r2.Stats().(*Statistics); !ok || s.budget != 32<<20 {
		t.Errorf("default stats = %#v, want Statistics with 32 MB budget", r2.Stats())
	}
}

func TestRendererBackupRestore(t *testing.T) {
	r, dev, stats := newTestRenderer(t, nil)

	tex, err := r.CreateTexture2D(imageOf(patternBuffer(t, 16, 16, pixel.R8G8B8A8, 3)), pixel.Unknown, FlagMipmaps)
	if err != nil {
		t.Fatalf("CreateTexture2D() error = %v", err)
	}
	vb := r.CreateVertexBuffer()
	vb.AddVertexAttribute(SemanticPosition, 0, AttrFloat3)
	vb.Allocate(4, backend.UsageStatic, false, false)
	vb.SetFloat(2, SemanticPosition, 0, 1, 2, 3)

	target, _ := r.CreateRenderTexture(backend.Texture2D, Size{Width: 32, Height: 32}, pixel.R8G8B8A8, 0)
	fbo := r.CreateFrameBufferObject()
	if !fbo.Initialize(Size{Width: 32, Height: 32}, FBOColor|FBODepth, pixel.R8G8B8A8, false, target) {
		t.Fatalf("Initialize() error = %v", fbo.Err())
	}

	var want [][]byte
	for l := range tex.NumMipLevels() {
		want = append(want, tex.Download(l, pixel.Unknown, 0))
	}
	before := stats.Snapshot()

	b := r.BackupDeviceObjects()
	if b.Len() != 3 {
		t.Errorf("backup Len() = %d, want 3 (texture, render texture, vertex buffer)", b.Len())
	}
	if live := dev.Live(); live.Textures+live.Buffers+live.Framebuffers+live.Renderbuffers != 0 {
		t.Errorf("device objects after backup = %+v, want none", live)
	}
	if tex.Handle() != nil || vb.Handle() != nil || fbo.Handle() != nil {
		t.Error("handles survive backup")
	}

	if err := r.ResetDevice(soft.New(soft.Config{Caps: soft.DefaultCaps()})); err != nil {
		t.Fatalf("ResetDevice() error = %v", err)
	}
	if !r.RestoreDeviceObjects(b) {
		t.Fatal("RestoreDeviceObjects() = false")
	}
	for l, w := range want {
		if got := tex.Download(l, pixel.Unknown, 0); !bytes.Equal(got, w) {
			t.Errorf("level %d differs after restore", l)
		}
	}
	if got, _ := vb.GetFloat(2, SemanticPosition, 0); got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Errorf("vertex 2 after restore = %v, want [1 2 3]", got)
	}
	if fbo.Handle() == nil || fbo.Target(0) != target {
		t.Error("frame buffer object not rebuilt with its target")
	}
	if after := stats.Snapshot(); after.Counts != before.Counts || after.TotalBytes != before.TotalBytes {
		t.Errorf("stats changed across backup/restore: %v -> %v", before, after)
	}
}

func TestRendererBackupIncomplete(t *testing.T) {
	r, dev, _ := newTestRenderer(t, nil)
	ok, _ := r.CreateTexture2D(imageOf(patternBuffer(t, 4, 4, pixel.R8G8B8A8, 1)), pixel.Unknown, 0)
	bad, err := r.CreateTexture2D(imageOf(patternBuffer(t, 4, 4, pixel.R8G8B8A8, 2)), pixel.Unknown, 0)
	if err != nil {
		t.Fatalf("CreateTexture2D() error = %v", err)
	}
	bad.tex = unreadableTexture{bad.tex}

	b := r.BackupDeviceObjects()
	if err := b.Err(); !errors.Is(err, ErrBackup) {
		t.Errorf("backup Err() = %v, want ErrBackup", err)
	}
	if b.Len() != 1 {
		t.Errorf("backup Len() = %d, want 1", b.Len())
	}
	if ok.Handle() != nil || bad.Handle() == nil || dev.Live().Textures != 1 {
		t.Errorf("after backup: readable handle %v, unreadable handle %v, live %d",
			ok.Handle(), bad.Handle(), dev.Live().Textures)
	}
	if err := r.ResetDevice(soft.New(soft.Config{Caps: soft.DefaultCaps()})); !errors.Is(err, ErrBackup) {
		t.Fatalf("ResetDevice() error = %v, want ErrBackup", err)
	}

	bad.Release()
	if err := r.ResetDevice(soft.New(soft.Config{Caps: soft.DefaultCaps()})); err != nil {
		t.Fatalf("ResetDevice() after release error = %v", err)
	}
	if !r.RestoreDeviceObjects(b) {
		t.Fatal("RestoreDeviceObjects() = false")
	}
	if ok.Handle() == nil || ok.IsDirty() {
		t.Error("readable texture not restored from its capture")
	}
}

func TestRendererBackupComplete(t *testing.T) {
	r, _, _ := newTestRenderer(t, nil)
	if _, err := r.CreateTexture2D(imageOf(patternBuffer(t, 4, 4, pixel.L8, 1)), pixel.Unknown, 0); err != nil {
		t.Fatalf("CreateTexture2D() error = %v", err)
	}
	if err := r.BackupDeviceObjects().Err(); err != nil {
		t.Errorf("backup Err() = %v, want nil", err)
	}
	var none *DeviceBackup
	if err := none.Err(); err != nil {
		t.Errorf("nil backup Err() = %v, want nil", err)
	}
}

func TestRendererResetDeviceNeedsBackup(t *testing.T) {
	r, _, _ := newTestRenderer(t, nil)
	if err := r.ResetDevice(soft.New(soft.Config{})); !errors.Is(err, ErrInvalidUsage) {
		t.Errorf("ResetDevice() without backup error = %v, want ErrInvalidUsage", err)
	}
}

func TestRendererClose(t *testing.T) {
	r, dev, stats := newTestRenderer(t, nil)
	if _, err := r.CreateTexture2D(imageOf(solidBuffer(t, 4, 4, 1, pixel.L8, pixel.Texel{1, 1, 1, 1})), pixel.Unknown, 0); err != nil {
		t.Fatalf("CreateTexture2D() error = %v", err)
	}
	vb := r.CreateVertexBuffer()
	vb.AddVertexAttribute(SemanticPosition, 0, AttrFloat2)
	vb.Allocate(8, backend.UsageDynamic, true, false)
	if _, err := r.CreateProgram(); err != nil {
		t.Fatalf("CreateProgram() error = %v", err)
	}

	r.Close()
	if n := r.NumResources(); n != 0 {
		t.Errorf("NumResources() after Close = %d, want 0", n)
	}
	if live := dev.Live(); live != (soft.Counts{}) {
		t.Errorf("device objects after Close = %+v, want none", live)
	}
	snap := stats.Snapshot()
	if snap.TotalBytes != 0 || snap.Counts != [kindCount]int64{} {
		t.Errorf("stats after Close = %v, want empty", snap)
	}
}
