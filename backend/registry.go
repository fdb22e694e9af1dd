package backend

import (
	"errors"
	"fmt"
	"slices"

	"github.com/gogpu/gpucontext"
)

// Backend names, in default selection order.
const (
	NameWGPU = "wgpu"
	NameGL   = "gl"
	NameSoft = "soft"
)

// Factory creates a device.
type Factory func() (Device, error)

// factories holds registered backends. wgpu > gl > soft; soft is the
// fallback that is always available once imported.
var (
	priority  = []string{NameWGPU, NameGL, NameSoft}
	factories = gpucontext.NewRegistry[Factory](gpucontext.WithPriority(priority...))
)

// Register registers a backend factory with the given name.
// This is typically called from init() functions in backend packages.
// If a backend with the same name is already registered, it is replaced.
func Register(name string, f Factory) {
	factories.Register(name, func() Factory { return f })
}

// Unregister removes a backend from the registry.
func Unregister(name string) {
	factories.Unregister(name)
}

// Available returns the registered backend names.
func Available() []string {
	return factories.Available()
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	return factories.Has(name)
}

// Get creates a device from the named backend.
func Get(name string) (Device, error) {
	f := factories.Get(name)
	if f == nil {
		return nil, fmt.Errorf("%w: %q", ErrBackendNotAvailable, name)
	}
	return f()
}

// Default creates a device from the best available backend. Backends are
// tried in priority order; one that fails to open is skipped.
func Default() (Device, error) {
	var errs []error
	for _, name := range selectionOrder() {
		dev, err := Get(name)
		if err != nil {
			Logger().Debug("backend unavailable", "name", name, "err", err)
			errs = append(errs, err)
			continue
		}
		Logger().Info("backend selected", "name", name)
		return dev, nil
	}
	if len(errs) == 0 {
		return nil, ErrBackendNotAvailable
	}
	return nil, fmt.Errorf("%w: %w", ErrBackendNotAvailable, errors.Join(errs...))
}

// selectionOrder lists registered backends, priority names first and the
// rest sorted.
func selectionOrder() []string {
	var names, rest []string
	for _, name := range priority {
		if factories.Has(name) {
			names = append(names, name)
		}
	}
	for _, name := range factories.Available() {
		if !slices.Contains(priority, name) {
			rest = append(rest, name)
		}
	}
	slices.Sort(rest)
	return append(names, rest...)
}
