package renderer

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// msaaTarget holds the multisampled color texture that resolves into the
// drawable when the surface sample count is above one. It is recreated when
// the drawable size changes.
type msaaTarget struct {
	tex    hal.Texture
	view   hal.TextureView
	width  uint32
	height uint32
}

// ensure creates or recreates the MSAA texture for a w x h drawable.
// If dimensions match and the texture exists this is a no-op.
func (mt *msaaTarget) ensure(device hal.Device, surface SurfaceDescriptor, w, h uint32) error {
	if mt.width == w && mt.height == h && mt.tex != nil {
		return nil
	}
	mt.destroy(device)

	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         "video_quad_msaa_color",
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   surface.SampleCount,
		Dimension:     gputypes.TextureDimension2D,
		Format:        surface.Format,
		Usage:         gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		return fmt.Errorf("create MSAA color texture: %w", err)
	}
	mt.tex = tex

	view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label: "video_quad_msaa_color_view",
	})
	if err != nil {
		mt.destroy(device)
		return fmt.Errorf("create MSAA color view: %w", err)
	}
	mt.view = view
	mt.width, mt.height = w, h
	return nil
}

// destroy releases the MSAA texture. Safe to call on an empty target.
func (mt *msaaTarget) destroy(device hal.Device) {
	if mt.view != nil {
		device.DestroyTextureView(mt.view)
		mt.view = nil
	}
	if mt.tex != nil {
		device.DestroyTexture(mt.tex)
		mt.tex = nil
	}
	mt.width, mt.height = 0, 0
}

// OffscreenTarget is a Drawable backed by a texture the renderer owns.
// It is used for headless rendering where no window surface exists.
type OffscreenTarget struct {
	device hal.Device
	tex    hal.Texture
	view   hal.TextureView
	width  uint32
	height uint32

	presents int
}

// NewOffscreenTarget creates a single-sample render target of the given
// size and format. The texture is CopySrc so frames can be read back.
func NewOffscreenTarget(device hal.Device, format gputypes.TextureFormat, w, h uint32) (*OffscreenTarget, error) {
	if device == nil {
		return nil, ErrNoDevice
	}
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("offscreen target: zero size %dx%d", w, h)
	}
	if format == gputypes.TextureFormatUndefined {
		format = gputypes.TextureFormatBGRA8Unorm
	}
	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         "video_quad_offscreen",
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("create offscreen texture: %w", err)
	}
	view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label: "video_quad_offscreen_view",
	})
	if err != nil {
		device.DestroyTexture(tex)
		return nil, fmt.Errorf("create offscreen view: %w", err)
	}
	return &OffscreenTarget{device: device, tex: tex, view: view, width: w, height: h}, nil
}

// View implements Drawable.
func (o *OffscreenTarget) View() hal.TextureView { return o.view }

// Size implements Drawable.
func (o *OffscreenTarget) Size() (uint32, uint32) { return o.width, o.height }

// Present implements Drawable. Offscreen frames have nothing to present;
// the call is counted.
func (o *OffscreenTarget) Present() error {
	o.presents++
	return nil
}

// Presents returns how many frames were presented to the target.
func (o *OffscreenTarget) Presents() int { return o.presents }

// Texture returns the backing texture.
func (o *OffscreenTarget) Texture() hal.Texture { return o.tex }

// Destroy releases the target's GPU objects.
func (o *OffscreenTarget) Destroy() {
	if o.view != nil {
		o.device.DestroyTextureView(o.view)
		o.view = nil
	}
	if o.tex != nil {
		o.device.DestroyTexture(o.tex)
		o.tex = nil
	}
}
