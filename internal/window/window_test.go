package window

import (
	"errors"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/camquad/renderer"
)

var _ renderer.Drawable = (*Drawable)(nil)

func createNoopDevice(t *testing.T) (hal.Device, hal.Queue) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		t.Fatal("no adapters")
	}
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		openDev.Device.Destroy()
		instance.Destroy()
	})
	return openDev.Device, openDev.Queue
}

// halOnlyProvider exposes hal objects but no surface format.
type halOnlyProvider struct {
	device any
	queue  any
}

func (p *halOnlyProvider) HalDevice() any { return p.device }
func (p *halOnlyProvider) HalQueue() any  { return p.queue }

// fullProvider also implements gpucontext.DeviceProvider.
type fullProvider struct {
	halOnlyProvider
	format gputypes.TextureFormat
}

func (p *fullProvider) Device() gpucontext.Device             { return p.device }
func (p *fullProvider) Queue() gpucontext.Queue               { return p.queue }
func (p *fullProvider) Adapter() gpucontext.Adapter           { return nil }
func (p *fullProvider) SurfaceFormat() gputypes.TextureFormat { return p.format }
func (p *fullProvider) AdapterInfo() gpucontext.AdapterInfo   { return gpucontext.AdapterInfo{} }

func TestHostFromProvider(t *testing.T) {
	device, queue := createNoopDevice(t)

	t.Run("surface format", func(t *testing.T) {
		p := &fullProvider{
			halOnlyProvider: halOnlyProvider{device: device, queue: queue},
			format:          gputypes.TextureFormatRGBA8Unorm,
		}
		host, err := hostFromProvider(p)
		if err != nil {
			t.Fatal(err)
		}
		if host.Device != device || host.Queue != queue {
			t.Error("host does not carry the provider's device and queue")
		}
		if host.Format != gputypes.TextureFormatRGBA8Unorm {
			t.Errorf("Format = %v, want RGBA8Unorm", host.Format)
		}
	})

	t.Run("undefined format falls back to BGRA", func(t *testing.T) {
		p := &fullProvider{halOnlyProvider: halOnlyProvider{device: device, queue: queue}}
		host, err := hostFromProvider(p)
		if err != nil {
			t.Fatal(err)
		}
		if host.Format != gputypes.TextureFormatBGRA8Unorm {
			t.Errorf("Format = %v, want BGRA8Unorm", host.Format)
		}
	})

	t.Run("hal only", func(t *testing.T) {
		host, err := hostFromProvider(&halOnlyProvider{device: device, queue: queue})
		if err != nil {
			t.Fatal(err)
		}
		if host.Format != gputypes.TextureFormatBGRA8Unorm {
			t.Errorf("Format = %v, want BGRA8Unorm", host.Format)
		}
	})
}

func TestHostFromProviderErrors(t *testing.T) {
	device, queue := createNoopDevice(t)
	tests := []struct {
		name     string
		provider any
	}{
		{"no hal methods", struct{}{}},
		{"wrong device type", &halOnlyProvider{device: "gpu", queue: queue}},
		{"nil queue", &halOnlyProvider{device: device}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := hostFromProvider(tt.provider); !errors.Is(err, ErrNoHALAccess) {
				t.Errorf("err = %v, want ErrNoHALAccess", err)
			}
		})
	}
}

func TestHalView(t *testing.T) {
	device, _ := createNoopDevice(t)
	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Size:          hal.Extent3D{Width: 4, Height: 4, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatBGRA8Unorm,
		Usage:         gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer device.DestroyTexture(tex)
	view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{})
	if err != nil {
		t.Fatal(err)
	}
	defer device.DestroyTextureView(view)

	if got := halView(view); got != view {
		t.Error("hal view not passed through")
	}
	if got := halView(nil); got != nil {
		t.Errorf("halView(nil) = %v", got)
	}
	if got := halView(gpucontext.TextureView{}); got != nil {
		t.Errorf("halView(empty handle) = %v", got)
	}
	if got := halView((*wgpu.TextureView)(nil)); got != nil {
		t.Errorf("halView(nil wgpu view) = %v", got)
	}
}

func TestSizeTracker(t *testing.T) {
	var s sizeTracker
	if s.update(800, 600) {
		t.Error("first observation reported as a change")
	}
	if s.update(800, 600) {
		t.Error("same size reported as a change")
	}
	if !s.update(1024, 600) {
		t.Error("width change not reported")
	}
	if !s.update(1024, 768) {
		t.Error("height change not reported")
	}
}

func TestDrawable(t *testing.T) {
	d := &Drawable{width: 640, height: 480}
	if d.View() != nil {
		t.Error("View should be nil")
	}
	if w, h := d.Size(); w != 640 || h != 480 {
		t.Errorf("Size = %dx%d", w, h)
	}
	if err := d.Present(); err != nil {
		t.Fatal(err)
	}
	if !d.presented {
		t.Error("Present not recorded")
	}
}

func TestDrawLoopSetupFailureQuits(t *testing.T) {
	device, queue := createNoopDevice(t)
	setupErr := errors.New("pipeline build failed")

	var quits, frames int
	loop := &drawLoop{
		hooks: Hooks{
			Setup: func(Host) error { return setupErr },
			Frame: func(*Drawable) { frames++ },
		},
		provider: func() any { return &halOnlyProvider{device: device, queue: queue} },
		quit:     func() { quits++ },
	}

	for i := 0; i < 3; i++ {
		loop.draw(nil, 800, 600, "noop")
	}
	if quits != 1 {
		t.Errorf("quit called %d times, want 1", quits)
	}
	if frames != 0 {
		t.Errorf("Frame called %d times after failed setup", frames)
	}
	if !errors.Is(loop.setupErr, setupErr) {
		t.Errorf("setupErr = %v, want %v", loop.setupErr, setupErr)
	}
	if loop.ready {
		t.Error("loop marked ready after failed setup")
	}
}

func TestDrawLoopHostErrorQuits(t *testing.T) {
	quits := 0
	loop := &drawLoop{
		provider: func() any { return struct{}{} },
		quit:     func() { quits++ },
	}
	loop.draw(nil, 800, 600, "noop")
	if quits != 1 || !errors.Is(loop.setupErr, ErrNoHALAccess) {
		t.Errorf("quits = %d, setupErr = %v", quits, loop.setupErr)
	}
}

func TestDrawLoopFramesInPixels(t *testing.T) {
	device, queue := createNoopDevice(t)

	var (
		setups  int
		sizes   [][2]uint32
		resizes [][2]uint32
	)
	loop := &drawLoop{
		hooks: Hooks{
			Setup: func(h Host) error {
				setups++
				if h.Device != device {
					t.Error("Setup got the wrong device")
				}
				return nil
			},
			Frame: func(d *Drawable) {
				w, h := d.Size()
				sizes = append(sizes, [2]uint32{w, h})
			},
			Resize: func(w, h uint32) { resizes = append(resizes, [2]uint32{w, h}) },
		},
		provider: func() any { return &halOnlyProvider{device: device, queue: queue} },
		quit:     func() { t.Error("quit called on a healthy loop") },
	}

	// Framebuffer sizes of an 800x600 window at scale 2, then a resize.
	loop.draw(nil, 1600, 1200, "noop")
	loop.draw(nil, 1600, 1200, "noop")
	loop.draw(nil, 2048, 1536, "noop")

	if setups != 1 {
		t.Errorf("Setup called %d times, want 1", setups)
	}
	want := [][2]uint32{{1600, 1200}, {1600, 1200}, {2048, 1536}}
	if len(sizes) != len(want) {
		t.Fatalf("frames = %v, want %v", sizes, want)
	}
	for i := range want {
		if sizes[i] != want[i] {
			t.Errorf("frame %d size = %v, want %v", i, sizes[i], want[i])
		}
	}
	if len(resizes) != 1 || resizes[0] != [2]uint32{2048, 1536} {
		t.Errorf("resizes = %v, want [[2048 1536]]", resizes)
	}
}

func TestDrawLoopWaitsForDevice(t *testing.T) {
	frames := 0
	loop := &drawLoop{
		hooks:    Hooks{Frame: func(*Drawable) { frames++ }},
		provider: func() any { return nil },
		quit:     func() { t.Error("quit called while waiting for a device") },
	}
	loop.draw(nil, 800, 600, "noop")
	if frames != 0 || loop.ready || loop.setupErr != nil {
		t.Errorf("frames = %d ready = %v err = %v", frames, loop.ready, loop.setupErr)
	}
}

func TestDrawLoopSkipsEmptySurface(t *testing.T) {
	device, queue := createNoopDevice(t)
	frames := 0
	loop := &drawLoop{
		hooks:    Hooks{Frame: func(*Drawable) { frames++ }},
		provider: func() any { return &halOnlyProvider{device: device, queue: queue} },
		quit:     func() {},
	}
	loop.draw(nil, 0, 0, "noop")
	if !loop.ready {
		t.Error("setup should still run on a minimised window")
	}
	if frames != 0 {
		t.Errorf("Frame called %d times for an empty surface", frames)
	}
}
