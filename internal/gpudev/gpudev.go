// Package gpudev opens a standalone hal device for headless rendering.
package gpudev

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/camquad"
)

var (
	// ErrUnknownBackend is returned for a backend name ParseBackend does
	// not recognize.
	ErrUnknownBackend = errors.New("gpudev: unknown backend")

	// ErrBackendUnavailable is returned when the backend is not registered
	// in this build.
	ErrBackendUnavailable = errors.New("gpudev: backend not available")

	// ErrNoAdapter is returned when the backend enumerates no adapters.
	ErrNoAdapter = errors.New("gpudev: no GPU adapters found")
)

// Backend names accepted by ParseBackend.
var backendNames = map[string]gputypes.Backend{
	"software": gputypes.BackendEmpty,
	"vulkan":   gputypes.BackendVulkan,
	"metal":    gputypes.BackendMetal,
	"dx12":     gputypes.BackendDX12,
	"gl":       gputypes.BackendGL,
}

// ParseBackend maps a backend name to its hal variant.
func ParseBackend(name string) (gputypes.Backend, error) {
	b, ok := backendNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
	return b, nil
}

// Device is an open hal device with its queue.
type Device struct {
	Device hal.Device
	Queue  hal.Queue
	Info   gputypes.AdapterInfo

	instance hal.Instance
}

// Open opens the first suitable adapter of the named backend.
func Open(name string) (*Device, error) {
	variant, err := ParseBackend(name)
	if err != nil {
		return nil, err
	}
	backend, ok := hal.GetBackend(variant)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBackendUnavailable, name)
	}
	return OpenBackend(backend)
}

// OpenBackend opens a device on backend, preferring a hardware adapter.
func OpenBackend(backend hal.Backend) (*Device, error) {
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("gpudev: create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	selected := selectAdapter(adapters)

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("gpudev: open device: %w", err)
	}
	camquad.Logger().Info("gpudev: device opened",
		"backend", backend.Variant().String(),
		"adapter", selected.Info.Name,
		"type", selected.Info.DeviceType.String())

	return &Device{
		Device:   openDev.Device,
		Queue:    openDev.Queue,
		Info:     selected.Info,
		instance: instance,
	}, nil
}

func selectAdapter(adapters []hal.ExposedAdapter) *hal.ExposedAdapter {
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			return &adapters[i]
		}
	}
	return &adapters[0]
}

// Name returns the adapter name, or "unknown".
func (d *Device) Name() string {
	if d.Info.Name == "" {
		return "unknown"
	}
	return d.Info.Name
}

// Close waits for the device to go idle and destroys it.
func (d *Device) Close() {
	if d.Device != nil {
		if err := d.Device.WaitIdle(); err != nil {
			camquad.Logger().Warn("gpudev: wait idle failed", "err", err)
		}
		d.Device.Destroy()
		d.Device = nil
		d.Queue = nil
	}
	if d.instance != nil {
		d.instance.Destroy()
		d.instance = nil
	}
}
