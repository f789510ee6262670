package renderer

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// createNoopDevice opens a device and queue on the noop backend.
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

func newTestRenderer(t *testing.T, cfg Config) *Renderer {
	t.Helper()
	device, queue := createNoopDevice(t)
	if cfg.DeviceName == "" {
		cfg.DeviceName = "noop"
	}
	r, err := New(device, queue, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(r.Close)
	return r
}

func newTestTarget(t *testing.T, r *Renderer, w, h uint32) *OffscreenTarget {
	t.Helper()
	target, err := NewOffscreenTarget(r.device, gputypes.TextureFormatBGRA8Unorm, w, h)
	if err != nil {
		t.Fatalf("NewOffscreenTarget: %v", err)
	}
	t.Cleanup(target.Destroy)
	return target
}

// nilViewDrawable models a tick where the surface had no drawable.
type nilViewDrawable struct{ presents int }

func (d *nilViewDrawable) View() hal.TextureView  { return nil }
func (d *nilViewDrawable) Size() (uint32, uint32) { return 0, 0 }
func (d *nilViewDrawable) Present() error {
	d.presents++
	return nil
}

// failingDrawable wraps a target and fails presentation.
type failingDrawable struct{ *OffscreenTarget }

var errPresent = errors.New("surface lost")

func (d failingDrawable) Present() error { return errPresent }

// passCall is one call recorded by fakePass.
type passCall struct {
	op    string
	index uint32
	args  [4]uint32
	obj   any
}

// fakePass records quad draw calls.
type fakePass struct {
	calls []passCall
}

func (p *fakePass) SetPipeline(pipeline hal.RenderPipeline) {
	p.calls = append(p.calls, passCall{op: "SetPipeline", obj: pipeline})
}

func (p *fakePass) SetBindGroup(index uint32, group hal.BindGroup, _ []uint32) {
	p.calls = append(p.calls, passCall{op: "SetBindGroup", index: index, obj: group})
}

func (p *fakePass) SetVertexBuffer(slot uint32, buffer hal.Buffer, offset uint64) {
	p.calls = append(p.calls, passCall{op: "SetVertexBuffer", index: slot, obj: buffer, args: [4]uint32{uint32(offset)}})
}

func (p *fakePass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.calls = append(p.calls, passCall{op: "Draw", args: [4]uint32{vertexCount, instanceCount, firstVertex, firstInstance}})
}
