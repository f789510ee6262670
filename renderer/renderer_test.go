package renderer

import (
	"errors"
	"image/color"
	"sync"
	"testing"

	"github.com/gogpu/camquad"
)

var red = color.NRGBA{R: 255, A: 255}

func TestNewNoDevice(t *testing.T) {
	if _, err := New(nil, nil, Config{}); !errors.Is(err, ErrNoDevice) {
		t.Errorf("New(nil) = %v, want ErrNoDevice", err)
	}
}

func TestRecordQuad(t *testing.T) {
	r := newTestRenderer(t, Config{})
	var pass fakePass
	group := r.samplerGroup // any bind group works as a stand-in
	r.recordQuad(&pass, group)

	want := []string{"SetPipeline", "SetBindGroup", "SetBindGroup", "SetVertexBuffer", "Draw"}
	if len(pass.calls) != len(want) {
		t.Fatalf("calls = %d, want %d", len(pass.calls), len(want))
	}
	for i, op := range want {
		if pass.calls[i].op != op {
			t.Errorf("call %d = %s, want %s", i, pass.calls[i].op, op)
		}
	}
	if pass.calls[1].index != textureGroup || pass.calls[2].index != samplerGroup {
		t.Errorf("bind group indices = %d,%d", pass.calls[1].index, pass.calls[2].index)
	}
	if pass.calls[3].index != 0 || pass.calls[3].args[0] != 0 {
		t.Errorf("vertex buffer slot/offset = %d/%d, want 0/0", pass.calls[3].index, pass.calls[3].args[0])
	}
	if pass.calls[4].args != [4]uint32{6, 1, 0, 0} {
		t.Errorf("Draw args = %v, want [6 1 0 0]", pass.calls[4].args)
	}
}

func TestDrawFrameIdleClearsWhite(t *testing.T) {
	r := newTestRenderer(t, Config{})
	target := newTestTarget(t, r, 64, 64)

	info, err := r.DrawFrame(target)
	if err != nil {
		t.Fatalf("DrawFrame: %v", err)
	}
	if info.Skipped {
		t.Fatal("idle frame reported as skipped")
	}
	if info.ClearColor != ClearColor || ClearColor.R != 1 || ClearColor.G != 1 || ClearColor.B != 1 || ClearColor.A != 1 {
		t.Errorf("ClearColor = %+v, want opaque white", info.ClearColor)
	}
	if info.DrawCalls != 0 || info.VertexCount != 0 {
		t.Errorf("draws = %d/%d, want 0/0", info.DrawCalls, info.VertexCount)
	}
	if info.Texture != nil || info.Source != nil || info.Sequence != 0 {
		t.Error("idle frame reported a texture")
	}
	if target.Presents() != 1 {
		t.Errorf("presents = %d, want 1", target.Presents())
	}
	st := r.Stats()
	if st.Frames != 1 || st.Idle != 1 || st.DrawCalls != 0 {
		t.Errorf("stats = %+v", st)
	}
}

func TestDrawFrameWithoutDrawableSkips(t *testing.T) {
	r := newTestRenderer(t, Config{})
	r.Converter().Convert(camquad.SolidPixelBuffer(8, 8, red))

	nv := &nilViewDrawable{}
	for _, d := range []Drawable{nil, nv} {
		info, err := r.DrawFrame(d)
		if err != nil {
			t.Fatalf("DrawFrame(%T) = %v, want nil", d, err)
		}
		if !info.Skipped || info.DrawCalls != 0 {
			t.Errorf("DrawFrame(%T) = %+v, want skipped", d, info)
		}
	}
	if nv.presents != 0 {
		t.Error("skipped frame was presented")
	}
	st := r.Stats()
	if st.Skipped != 2 || st.Frames != 2 || st.InFlight != 0 {
		t.Errorf("stats = %+v", st)
	}
	if r.Cache().Stats().InUse != 1 {
		t.Errorf("InUse = %d, want only the slot's texture", r.Cache().Stats().InUse)
	}
}

func TestDrawFrameSolidRed(t *testing.T) {
	r := newTestRenderer(t, Config{})
	target := newTestTarget(t, r, 128, 96)

	if !r.Converter().Convert(camquad.SolidPixelBuffer(64, 64, red)) {
		t.Fatal("Convert failed")
	}
	info, err := r.DrawFrame(target)
	if err != nil {
		t.Fatalf("DrawFrame: %v", err)
	}
	if info.DrawCalls != 1 || info.VertexCount != camquad.QuadVertexCount {
		t.Fatalf("draws = %d/%d, want 1/6", info.DrawCalls, info.VertexCount)
	}
	if info.Texture == nil || info.Source == nil || info.Sequence != 1 {
		t.Fatalf("frame info = %+v", info)
	}
	if w, h := info.Texture.Size(); w != 64 || h != 64 {
		t.Errorf("texture size = %dx%d", w, h)
	}

	// The drawable's center is the midpoint of the quad's texture space.
	verts := camquad.QuadVertices()
	u := (verts[0].TexCoord[0] + verts[1].TexCoord[0]) / 2
	v := (verts[0].TexCoord[1] + verts[2].TexCoord[1]) / 2
	if got := info.Source.Sample(u, v); got != red {
		t.Errorf("center sample = %v, want %v", got, red)
	}

	// Once the submission completes only the slot holds the texture.
	if got := info.Texture.Refs(); got != 1 {
		t.Errorf("refs after frame = %d, want 1", got)
	}
	if r.Stats().InFlight != 0 {
		t.Errorf("in flight = %d, want 0", r.Stats().InFlight)
	}
}

func TestDrawFrameShowsLatest(t *testing.T) {
	r := newTestRenderer(t, Config{})
	target := newTestTarget(t, r, 32, 32)
	blue := color.NRGBA{B: 255, A: 255}

	r.Converter().Convert(camquad.SolidPixelBuffer(16, 16, red))
	r.Converter().Convert(camquad.SolidPixelBuffer(16, 16, blue))

	info, err := r.DrawFrame(target)
	if err != nil {
		t.Fatal(err)
	}
	if info.Sequence != 2 {
		t.Errorf("Sequence = %d, want 2", info.Sequence)
	}
	if got := info.Source.Sample(0.5, 0.5); got != blue {
		t.Errorf("sample = %v, want latest frame %v", got, blue)
	}

	// Redrawing without a new frame shows the same texture again.
	again, err := r.DrawFrame(target)
	if err != nil {
		t.Fatal(err)
	}
	if again.Texture != info.Texture || again.Sequence != 2 {
		t.Error("redraw did not reuse the published texture")
	}
}

func TestDrawFramePresentError(t *testing.T) {
	r := newTestRenderer(t, Config{})
	target := newTestTarget(t, r, 16, 16)
	r.Converter().Convert(camquad.SolidPixelBuffer(4, 4, red))

	_, err := r.DrawFrame(failingDrawable{target})
	if !errors.Is(err, errPresent) {
		t.Fatalf("DrawFrame = %v, want present error", err)
	}
	if r.Stats().DrawErrors != 1 {
		t.Errorf("DrawErrors = %d", r.Stats().DrawErrors)
	}
	// The next frame reclaims the submitted resources.
	if _, err := r.DrawFrame(target); err != nil {
		t.Fatal(err)
	}
	if r.Cache().Stats().InUse != 1 {
		t.Errorf("InUse = %d, want 1", r.Cache().Stats().InUse)
	}
}

func TestDrawFrameMSAA(t *testing.T) {
	r := newTestRenderer(t, Config{Surface: SurfaceDescriptor{SampleCount: 4}})
	target := newTestTarget(t, r, 40, 30)
	r.Converter().Convert(camquad.SolidPixelBuffer(8, 8, red))

	info, err := r.DrawFrame(target)
	if err != nil {
		t.Fatalf("DrawFrame: %v", err)
	}
	if info.DrawCalls != 1 {
		t.Errorf("DrawCalls = %d", info.DrawCalls)
	}
	if r.msaa.width != 40 || r.msaa.height != 30 || r.msaa.view == nil {
		t.Errorf("msaa target = %dx%d", r.msaa.width, r.msaa.height)
	}
}

func TestResizeIsNoop(t *testing.T) {
	r := newTestRenderer(t, Config{})
	target := newTestTarget(t, r, 16, 16)
	r.Converter().Convert(camquad.SolidPixelBuffer(4, 4, red))

	r.Resize(1920, 1080)
	r.Resize(0, 0)
	info, err := r.DrawFrame(target)
	if err != nil || info.DrawCalls != 1 {
		t.Errorf("after resize: %+v, %v", info, err)
	}
	if r.Stats().Resizes != 2 {
		t.Errorf("Resizes = %d", r.Stats().Resizes)
	}
}

func TestClose(t *testing.T) {
	device, queue := createNoopDevice(t)
	r, err := New(device, queue, Config{})
	if err != nil {
		t.Fatal(err)
	}
	target, err := NewOffscreenTarget(device, 0, 8, 8)
	if err != nil {
		t.Fatal(err)
	}
	defer target.Destroy()

	r.Converter().Convert(camquad.SolidPixelBuffer(4, 4, red))
	info, err := r.DrawFrame(target)
	if err != nil {
		t.Fatal(err)
	}

	r.Close()
	r.Close()

	if _, err := r.DrawFrame(target); !errors.Is(err, ErrClosed) {
		t.Errorf("DrawFrame after Close = %v, want ErrClosed", err)
	}
	if info.Texture.Refs() >= 0 {
		t.Errorf("texture refs after Close = %d, want destroyed", info.Texture.Refs())
	}
	if r.Converter().Convert(camquad.SolidPixelBuffer(4, 4, red)) {
		t.Error("Convert after Close published a texture")
	}
}

// Conversions and draws interleave freely; every draw shows a fully
// published frame and sequences never go backwards.
func TestConcurrentConvertAndDraw(t *testing.T) {
	r := newTestRenderer(t, Config{})
	target := newTestTarget(t, r, 32, 32)
	const frames = 200

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= frames; i++ {
			pb := camquad.NewPixelBuffer(16, 16)
			pb.Data[0] = byte(i)
			if !r.Converter().Convert(pb) {
				t.Errorf("Convert(%d) failed", i)
				return
			}
		}
	}()

	var last uint64
	for range frames {
		info, err := r.DrawFrame(target)
		if err != nil {
			t.Fatalf("DrawFrame: %v", err)
		}
		if info.Sequence < last {
			t.Fatalf("sequence went backwards: %d after %d", info.Sequence, last)
		}
		last = info.Sequence
		if info.Texture == nil {
			continue
		}
		if got := info.Source.Data[0]; got != byte(info.Sequence) {
			t.Fatalf("frame %d shows data of frame %d", info.Sequence, got)
		}
	}
	wg.Wait()

	info, err := r.DrawFrame(target)
	if err != nil {
		t.Fatal(err)
	}
	if info.Sequence != frames {
		t.Errorf("final sequence = %d, want %d", info.Sequence, frames)
	}
	if st := r.Cache().Stats(); st.InUse != 1 {
		t.Errorf("InUse = %d, want 1", st.InUse)
	}
}

func TestLatestFrame(t *testing.T) {
	r := newTestRenderer(t, Config{})
	if _, _, ok := r.LatestFrame(); ok {
		t.Fatal("LatestFrame reported a frame before any conversion")
	}

	r.Converter().Convert(camquad.SolidPixelBuffer(8, 8, red))
	pb, seq, ok := r.LatestFrame()
	if !ok {
		t.Fatal("no latest frame after conversion")
	}
	if seq != 1 {
		t.Errorf("seq = %d, want 1", seq)
	}
	if got := pb.At(4, 4); got != red {
		t.Errorf("pixel = %v, want %v", got, red)
	}
	if refs := r.Cache().Stats().InUse; refs != 1 {
		t.Errorf("InUse = %d, want 1 (slot reference only)", refs)
	}
}
