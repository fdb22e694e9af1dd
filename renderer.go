package gpures

import (
	"errors"
	"fmt"
	"slices"

	"github.com/gogpu/gpures/backend"
	"github.com/gogpu/gpures/internal/parallel"
)

// deviceResource is implemented by every resource that holds device
// handles.
type deviceResource interface {
	// BackupDeviceData captures resident content and releases the device
	// handles. nil means nothing needed capturing.
	BackupDeviceData() []byte

	// RestoreDeviceData recreates the device handles from a capture, or
	// empty ones from nil.
	RestoreDeviceData(data []byte) bool

	Release()

	// Err returns the cause of the last failed operation.
	Err() error

	// resident reports whether the resource still holds device handles.
	resident() bool
}

// Renderer owns a backend device and the resources created on it.
type Renderer struct {
	dev       backend.Device
	caps      backend.Caps
	stats     Stats
	opts      options
	pool      *parallel.Pool
	resources []deviceResource
	backup    *DeviceBackup
}

// NewRenderer creates a renderer on dev. A nil dev selects the highest
// priority registered backend.
func NewRenderer(dev backend.Device, opts ...Option) (*Renderer, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if dev == nil {
		var err error
		if dev, err = backend.Default(); err != nil {
			return nil, err
		}
	}
	stats := o.stats
	if stats == nil {
		stats = NewStatistics(o.statsConfig)
	}
	r := &Renderer{
		dev:   dev,
		caps:  dev.Caps(),
		stats: stats,
		opts:  o,
		pool:  parallel.NewPool(o.workers),
	}
	Logger().Info("gpures: renderer created", "backend", dev.Name())
	return r, nil
}

// Device returns the backend device.
func (r *Renderer) Device() backend.Device { return r.dev }

// Caps returns the device capabilities.
func (r *Renderer) Caps() backend.Caps { return r.caps }

// Stats returns the statistics sink.
func (r *Renderer) Stats() Stats { return r.stats }

// NumResources returns the number of live resources.
func (r *Renderer) NumResources() int { return len(r.resources) }

func (r *Renderer) track(res deviceResource) {
	r.resources = append(r.resources, res)
}

func (r *Renderer) untrack(res deviceResource) {
	if i := slices.Index(r.resources, res); i >= 0 {
		r.resources = slices.Delete(r.resources, i, i+1)
	}
}

// DeviceBackup holds the content captured by BackupDeviceObjects.
type DeviceBackup struct {
	data   map[deviceResource][]byte
	failed []deviceResource
	errs   []error
}

// Err reports the resources whose content could not be captured, joined.
// They keep their device handles. nil means the backup is complete.
func (b *DeviceBackup) Err() error {
	if b == nil {
		return nil
	}
	return errors.Join(b.errs...)
}

// Len returns the number of resources with captured content.
func (b *DeviceBackup) Len() int {
	if b == nil {
		return 0
	}
	return len(b.data)
}

// Bytes returns the total size of captured content.
func (b *DeviceBackup) Bytes() int {
	if b == nil {
		return 0
	}
	n := 0
	for _, d := range b.data {
		n += len(d)
	}
	return n
}

// BackupDeviceObjects captures every live resource and releases all
// device handles, in creation order. Call it before the native context is
// lost or recreated. Resources that cannot be read back stay resident and
// are reported by the backup's Err.
func (r *Renderer) BackupDeviceObjects() *DeviceBackup {
	b := &DeviceBackup{data: map[deviceResource][]byte{}}
	for _, res := range r.resources {
		if data := res.BackupDeviceData(); data != nil {
			b.data[res] = data
		}
		if res.resident() {
			b.failed = append(b.failed, res)
			b.errs = append(b.errs, res.Err())
		}
	}
	if len(b.failed) > 0 {
		Logger().Warn("gpures: device objects kept resident", "count", len(b.failed), "err", b.Err())
	}
	r.backup = b
	Logger().Info("gpures: device objects backed up",
		"resources", len(r.resources), "captured", b.Len(), "bytes", b.Bytes())
	return b
}

// ResetDevice replaces the device between BackupDeviceObjects and
// RestoreDeviceObjects. The old device is closed. It fails with ErrBackup
// while a resource whose backup failed still holds device handles; release
// those resources first to give up their content.
func (r *Renderer) ResetDevice(dev backend.Device) error {
	if r.backup == nil {
		return fmt.Errorf("%w: device reset without backup", ErrInvalidUsage)
	}
	if dev == nil {
		return fmt.Errorf("%w: nil device", ErrInvalidUsage)
	}
	kept := 0
	for _, res := range r.backup.failed {
		if res.resident() {
			kept++
		}
	}
	if kept > 0 {
		return fmt.Errorf("%w: %d resources still hold device content", ErrBackup, kept)
	}
	r.dev.Close()
	r.dev = dev
	r.caps = dev.Caps()
	Logger().Info("gpures: device reset", "backend", dev.Name())
	return nil
}

// RestoreDeviceObjects recreates device handles for every live resource.
// Textures, buffers and programs are restored before framebuffer objects
// so that render targets exist when attachments are rebound. b may be nil,
// in which case resources come back empty and marked dirty.
func (r *Renderer) RestoreDeviceObjects(b *DeviceBackup) bool {
	ok := true
	restore := func(res deviceResource) {
		var data []byte
		if b != nil {
			data = b.data[res]
		}
		if !res.RestoreDeviceData(data) {
			ok = false
		}
	}
	for _, res := range r.resources {
		if _, fbo := res.(*FrameBufferObject); !fbo {
			restore(res)
		}
	}
	for _, res := range r.resources {
		if _, fbo := res.(*FrameBufferObject); fbo {
			restore(res)
		}
	}
	r.backup = nil
	Logger().Info("gpures: device objects restored", "resources", len(r.resources), "ok", ok)
	return ok
}

// Close releases every live resource in reverse creation order and closes
// the device.
func (r *Renderer) Close() {
	for i := len(r.resources) - 1; i >= 0; i-- {
		if i < len(r.resources) {
			r.resources[i].Release()
		}
	}
	r.resources = nil
	r.dev.Close()
}
