// Package window hosts the renderer in a gogpu window.
package window

import (
	"errors"
	"fmt"

	"github.com/gogpu/gogpu"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/camquad"
)

// ErrNoHALAccess is returned when the window's device provider does not
// expose hal objects.
var ErrNoHALAccess = errors.New("window: device provider does not expose HAL types")

// Config describes the window.
type Config struct {
	Title  string
	Width  int
	Height int
}

// Host is the GPU context shared by the window.
type Host struct {
	Device hal.Device
	Queue  hal.Queue
	Format gputypes.TextureFormat
}

// Hooks are called on the window's draw goroutine.
type Hooks struct {
	// Setup runs once, before the first frame, with the window's device.
	Setup func(Host) error

	// Frame runs every display tick.
	Frame func(d *Drawable)

	// Resize runs when the surface size changes after the first frame.
	Resize func(width, height uint32)

	// Close runs when the window closes, while the device is still alive.
	Close func()
}

// Drawable is the current surface frame. Presentation is done by gogpu
// after the frame hook returns, so Present only records the request.
type Drawable struct {
	view      hal.TextureView
	width     uint32
	height    uint32
	presented bool
}

// View returns the surface view, or nil when the surface has no frame.
func (d *Drawable) View() hal.TextureView { return d.view }

// Size returns the surface size in pixels.
func (d *Drawable) Size() (uint32, uint32) { return d.width, d.height }

// Present implements renderer.Drawable.
func (d *Drawable) Present() error {
	d.presented = true
	return nil
}

// Run opens the window and blocks until it is closed. A Setup error quits
// the app and is returned from Run; no frames are drawn after it.
func Run(cfg Config, hooks Hooks) error {
	app := gogpu.NewApp(gogpu.DefaultConfig().
		WithTitle(cfg.Title).
		WithSize(cfg.Width, cfg.Height).
		WithContinuousRender(true))

	loop := &drawLoop{
		hooks: hooks,
		provider: func() any {
			if p := app.GPUContextProvider(); p != nil {
				return p
			}
			return nil
		},
		quit: app.Quit,
	}

	app.OnDraw(func(dc *gogpu.Context) {
		// The surface view is in physical pixels, so the drawable is too.
		fw, fh := dc.FramebufferSize()
		loop.draw(dc.SurfaceView(), fw, fh, dc.Backend())
	})

	app.OnClose(func() {
		if loop.ready && hooks.Close != nil {
			hooks.Close()
		}
	})

	if err := app.Run(); err != nil {
		return fmt.Errorf("window: %w", err)
	}
	return loop.setupErr
}

// drawLoop is the per-tick state of the window's draw hook.
type drawLoop struct {
	hooks    Hooks
	provider func() any
	quit     func()

	ready    bool
	setupErr error
	size     sizeTracker
}

// draw runs Setup on the first tick that has a device, then hands the
// surface to the Frame hook. A Setup failure quits the app once.
func (l *drawLoop) draw(surface any, width, height int, backend string) {
	if l.setupErr != nil {
		return
	}
	if !l.ready {
		provider := l.provider()
		if provider == nil {
			return
		}
		host, err := hostFromProvider(provider)
		if err == nil && l.hooks.Setup != nil {
			err = l.hooks.Setup(host)
		}
		if err != nil {
			l.setupErr = err
			camquad.Logger().Error("window: setup failed", "err", err)
			l.quit()
			return
		}
		l.ready = true
		camquad.Logger().Info("window: ready", "backend", backend, "format", host.Format)
	}

	if width <= 0 || height <= 0 {
		return
	}
	w, h := uint32(width), uint32(height)
	if l.size.update(w, h) && l.hooks.Resize != nil {
		l.hooks.Resize(w, h)
	}
	if l.hooks.Frame != nil {
		l.hooks.Frame(&Drawable{
			view:   halView(surface),
			width:  w,
			height: h,
		})
	}
}

// hostFromProvider extracts hal device, queue and surface format from a
// gogpu device provider.
func hostFromProvider(provider any) (Host, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return Host{}, ErrNoHALAccess
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return Host{}, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNoHALAccess)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return Host{}, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNoHALAccess)
	}

	format := gputypes.TextureFormatBGRA8Unorm
	if dp, ok := provider.(gpucontext.DeviceProvider); ok {
		if f := dp.SurfaceFormat(); f != gputypes.TextureFormatUndefined {
			format = f
		}
	}
	return Host{Device: device, Queue: queue, Format: format}, nil
}

// halView unwraps whatever gogpu hands out as the surface view.
func halView(sv any) hal.TextureView {
	switch v := sv.(type) {
	case *wgpu.TextureView:
		if v != nil {
			return v.HalTextureView()
		}
	case gpucontext.TextureView:
		if !v.IsNil() {
			return (*wgpu.TextureView)(v.Pointer()).HalTextureView()
		}
	case hal.TextureView:
		return v
	}
	return nil
}

// sizeTracker reports surface size changes after the first observation.
type sizeTracker struct {
	width, height uint32
	seen          bool
}

func (s *sizeTracker) update(w, h uint32) bool {
	changed := s.seen && (w != s.width || h != s.height)
	s.width, s.height, s.seen = w, h, true
	return changed
}
