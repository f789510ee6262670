package renderer

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/camquad"
	"github.com/gogpu/camquad/texcache"
)

// ClearColor is the color every frame is cleared to: opaque white.
var ClearColor = gputypes.Color{R: 1, G: 1, B: 1, A: 1}

// PassLabel labels the per-frame render pass in GPU debuggers.
const PassLabel = "video texture"

// Drawable is the render target for one display tick.
type Drawable interface {
	// View returns the texture view to render into, or nil if no drawable
	// is available this tick.
	View() hal.TextureView
	// Size returns the drawable size in pixels.
	Size() (width, height uint32)
	// Present schedules the rendered frame for display.
	Present() error
}

// Config configures a Renderer.
type Config struct {
	Surface SurfaceDescriptor

	// MaxTextureAge is the idle lifetime of cached frame textures.
	MaxTextureAge time.Duration

	// MaxTextureMemoryMB bounds the texture cache.
	MaxTextureMemoryMB int

	// DeviceName is reported in conversion diagnostics.
	DeviceName string

	// Now overrides the clock used for texture aging, for tests.
	Now func() time.Time
}

// FrameInfo describes what DrawFrame recorded.
type FrameInfo struct {
	// Skipped is true when no drawable was available and nothing was encoded.
	Skipped bool

	// ClearColor is the load-op clear value of the pass.
	ClearColor gputypes.Color

	// DrawCalls and VertexCount count the draws recorded in the pass.
	DrawCalls   int
	VertexCount int

	// Texture is the frame texture bound for the draw, nil when idle.
	// It stays valid until the submission completes; callers that keep it
	// longer must TryRetain it.
	Texture *texcache.Texture

	// Source is the pixel buffer uploaded into Texture, captured while the
	// texture was retained. Nil when idle.
	Source *camquad.PixelBuffer

	// Sequence is the publish sequence of Texture, 0 when idle.
	Sequence uint64

	// SubmissionIndex is the queue submission of the frame.
	SubmissionIndex uint64
}

// Stats contains renderer counters.
type Stats struct {
	Frames     uint64 `json:"frames"`
	Skipped    uint64 `json:"skipped"`
	Idle       uint64 `json:"idle"`
	DrawCalls  uint64 `json:"draw_calls"`
	InFlight   int    `json:"in_flight"`
	LastSeq    uint64 `json:"last_sequence"`
	Resizes    uint64 `json:"resizes"`
	DrawErrors uint64 `json:"draw_errors"`
}

// inflightFrame holds per-frame resources until the GPU has finished with
// them.
type inflightFrame struct {
	index   uint64
	cmd     hal.CommandBuffer
	group   hal.BindGroup
	texture *texcache.Texture
}

// Renderer draws the latest published camera frame on a full-screen quad.
//
// DrawFrame, Resize and Close are serialized by an internal mutex. Frame
// conversion runs concurrently through the Converter and only communicates
// with drawing through the latest-texture slot.
type Renderer struct {
	mu sync.Mutex

	device hal.Device
	queue  hal.Queue

	pipeline     *Pipeline
	vertexBuf    hal.Buffer
	sampler      hal.Sampler
	samplerGroup hal.BindGroup
	msaa         msaaTarget

	cache     *texcache.Cache
	latest    *camquad.Slot[*texcache.Texture]
	converter *Converter

	inflight []inflightFrame
	closed   bool

	frames     atomic.Uint64
	skipped    atomic.Uint64
	idle       atomic.Uint64
	drawCalls  atomic.Uint64
	lastSeq    atomic.Uint64
	resizes    atomic.Uint64
	drawErrors atomic.Uint64
}

// New builds the pipeline, uploads the quad vertices, creates the sampler
// and texture cache, and returns a renderer ready to draw. Every failure
// is returned; the application is expected to abort on it.
func New(device hal.Device, queue hal.Queue, cfg Config) (*Renderer, error) {
	if device == nil || queue == nil {
		return nil, ErrNoDevice
	}

	r := &Renderer{
		device: device,
		queue:  queue,
		latest: &camquad.Slot[*texcache.Texture]{},
	}
	if err := r.setup(cfg); err != nil {
		r.destroy()
		return nil, err
	}
	return r, nil
}

func (r *Renderer) setup(cfg Config) error {
	pipeline, err := BuildPipeline(r.device, cfg.Surface)
	if err != nil {
		return err
	}
	r.pipeline = pipeline

	vertexBuf, err := r.createAndUploadBuffer("video_quad_vertices",
		camquad.EncodeVertices(camquad.QuadVertices()),
		gputypes.BufferUsageVertex|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	r.vertexBuf = vertexBuf

	sampler, err := r.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "video texture sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeNearest,
		MinFilter:    gputypes.FilterModeNearest,
		MipmapFilter: gputypes.FilterModeNearest,
	})
	if err != nil {
		return fmt.Errorf("create video texture sampler: %w", err)
	}
	r.sampler = sampler

	samplerGroup, err := r.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "video_sampler_bind",
		Layout: r.pipeline.samplerLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.SamplerBinding{Sampler: r.sampler.NativeHandle()}},
		},
	})
	if err != nil {
		return fmt.Errorf("create sampler bind group: %w", err)
	}
	r.samplerGroup = samplerGroup

	cache, err := texcache.New(r.device, r.queue, texcache.Config{
		MaxTextureAge: cfg.MaxTextureAge,
		MaxMemoryMB:   cfg.MaxTextureMemoryMB,
		Now:           cfg.Now,
	})
	if err != nil {
		return fmt.Errorf("create texture cache: %w", err)
	}
	now := time.Now
	if cfg.Now != nil {
		now = cfg.Now
	}
	cache.Flush(now())
	r.cache = cache
	r.converter = newConverter(cache, r.latest, cfg.DeviceName, now)

	camquad.Logger().Info("renderer: ready",
		"device", cfg.DeviceName,
		"format", r.pipeline.surface.Format,
		"samples", r.pipeline.surface.SampleCount,
		"max_texture_age", cache.MaxTextureAge())
	return nil
}

// createAndUploadBuffer creates a GPU buffer and uploads data to it.
func (r *Renderer) createAndUploadBuffer(label string, data []byte, usage gputypes.BufferUsage) (hal.Buffer, error) {
	buf, err := r.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  uint64(len(data)),
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", label, err)
	}
	if err := r.queue.WriteBuffer(buf, 0, data); err != nil {
		r.device.DestroyBuffer(buf)
		return nil, fmt.Errorf("upload %s: %w", label, err)
	}
	return buf, nil
}

// Converter returns the frame converter that publishes into this renderer.
func (r *Renderer) Converter() *Converter { return r.converter }

// Cache returns the texture cache.
func (r *Renderer) Cache() *texcache.Cache { return r.cache }

// Latest returns the latest-texture slot. Readers must TryRetain a loaded
// texture before using it and re-check the slot sequence afterwards.
func (r *Renderer) Latest() *camquad.Slot[*texcache.Texture] { return r.latest }

// Pipeline returns the render pipeline state.
func (r *Renderer) Pipeline() *Pipeline { return r.pipeline }

// DrawFrame renders one display tick into d.
//
// A nil drawable, or one without a view, skips the frame: it is logged and
// counted, nothing is encoded and no error is returned. Otherwise the pass
// clears to ClearColor and, if a frame has been published, draws the quad
// with it. Errors come only from GPU encoding, submission or presentation.
func (r *Renderer) DrawFrame(d Drawable) (FrameInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return FrameInfo{}, ErrClosed
	}
	r.reclaimLocked(false)
	r.frames.Add(1)

	var view hal.TextureView
	if d != nil {
		view = d.View()
	}
	if view == nil {
		r.skipped.Add(1)
		camquad.Logger().Warn("renderer: no drawable available, frame skipped",
			"frame", r.frames.Load())
		return FrameInfo{Skipped: true}, nil
	}

	info, err := r.encodeLocked(d, view)
	if err != nil {
		r.drawErrors.Add(1)
		return info, err
	}
	if err := d.Present(); err != nil {
		r.drawErrors.Add(1)
		return info, fmt.Errorf("present: %w", err)
	}
	r.reclaimLocked(false)
	return info, nil
}

// encodeLocked records and submits one frame. Caller must hold mu.
func (r *Renderer) encodeLocked(d Drawable, view hal.TextureView) (FrameInfo, error) {
	info := FrameInfo{ClearColor: ClearColor}

	tex, seq := r.acquireLatest()
	var group hal.BindGroup
	release := func() {
		if group != nil {
			r.device.DestroyBindGroup(group)
		}
		if tex != nil {
			tex.Release()
		}
	}

	if tex != nil {
		var err error
		group, err = r.device.CreateBindGroup(&hal.BindGroupDescriptor{
			Label:  "video_texture_bind",
			Layout: r.pipeline.textureLayout,
			Entries: []gputypes.BindGroupEntry{
				{Binding: 0, Resource: gputypes.TextureViewBinding{TextureView: tex.View().NativeHandle()}},
			},
		})
		if err != nil {
			group = nil
			release()
			return info, fmt.Errorf("create texture bind group: %w", err)
		}
	}

	attachment := hal.RenderPassColorAttachment{
		View:       view,
		LoadOp:     gputypes.LoadOpClear,
		StoreOp:    gputypes.StoreOpStore,
		ClearValue: ClearColor,
	}
	if r.pipeline.surface.SampleCount > 1 {
		w, h := d.Size()
		if err := r.msaa.ensure(r.device, r.pipeline.surface, w, h); err != nil {
			release()
			return info, err
		}
		attachment.View = r.msaa.view
		attachment.ResolveTarget = view
	}

	encoder, err := r.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "video_frame_encoder",
	})
	if err != nil {
		release()
		return info, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("video_frame"); err != nil {
		release()
		return info, fmt.Errorf("begin encoding: %w", err)
	}

	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label:            PassLabel,
		ColorAttachments: []hal.RenderPassColorAttachment{attachment},
	})
	pass := &countingPass{quadPass: rp}
	if group != nil {
		r.recordQuad(pass, group)
	}
	rp.End()

	cmd, err := encoder.EndEncoding()
	if err != nil {
		encoder.DiscardEncoding()
		release()
		return info, fmt.Errorf("end encoding: %w", err)
	}
	index, err := r.queue.Submit([]hal.CommandBuffer{cmd})
	if err != nil {
		r.device.FreeCommandBuffer(cmd)
		release()
		return info, fmt.Errorf("submit: %w", err)
	}
	r.inflight = append(r.inflight, inflightFrame{index: index, cmd: cmd, group: group, texture: tex})

	info.DrawCalls = pass.draws
	info.VertexCount = pass.vertices
	info.Texture = tex
	info.Sequence = seq
	if tex != nil {
		info.Source = tex.Source()
	}
	info.SubmissionIndex = index

	r.drawCalls.Add(uint64(pass.draws)) //nolint:gosec // non-negative
	if tex == nil {
		r.idle.Add(1)
	} else {
		r.lastSeq.Store(seq)
	}
	return info, nil
}

// acquireLatest retains the most recently published texture. The slot is
// re-read after retaining: if it moved on, the retained texture may have
// been recycled for a newer frame, so the attempt is repeated.
func (r *Renderer) acquireLatest() (*texcache.Texture, uint64) {
	for {
		tex, seq, ok := r.latest.Load()
		if !ok || tex == nil {
			return nil, 0
		}
		if !tex.TryRetain() {
			if r.latest.Seq() == seq {
				return nil, 0
			}
			continue
		}
		cur, curSeq, ok := r.latest.Load()
		if ok && cur == tex && curSeq == seq {
			return tex, seq
		}
		tex.Release()
	}
}

// LatestFrame returns the pixel buffer behind the latest published texture
// and its publish sequence. ok is false while nothing is published.
func (r *Renderer) LatestFrame() (pb *camquad.PixelBuffer, seq uint64, ok bool) {
	tex, seq := r.acquireLatest()
	if tex == nil {
		return nil, 0, false
	}
	defer tex.Release()
	return tex.Source(), seq, true
}

// quadPass is the subset of hal.RenderPassEncoder used to draw the quad.
type quadPass interface {
	SetPipeline(pipeline hal.RenderPipeline)
	SetBindGroup(index uint32, group hal.BindGroup, offsets []uint32)
	SetVertexBuffer(slot uint32, buffer hal.Buffer, offset uint64)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
}

// recordQuad binds the pipeline, frame texture, sampler and vertex buffer,
// and draws the six quad vertices as one instance.
func (r *Renderer) recordQuad(rp quadPass, textureGroupBind hal.BindGroup) {
	rp.SetPipeline(r.pipeline.pipeline)
	rp.SetBindGroup(textureGroup, textureGroupBind, nil)
	rp.SetBindGroup(samplerGroup, r.samplerGroup, nil)
	rp.SetVertexBuffer(vertexSlot, r.vertexBuf, 0)
	rp.Draw(camquad.QuadVertexCount, 1, 0, 0)
}

// countingPass counts draws recorded through it.
type countingPass struct {
	quadPass
	draws    int
	vertices int
}

func (p *countingPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.draws++
	p.vertices += int(vertexCount * instanceCount)
	p.quadPass.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

// reclaimLocked frees resources of submissions the queue reports complete.
// With all set, every in-flight frame is freed. Caller must hold mu.
func (r *Renderer) reclaimLocked(all bool) {
	if len(r.inflight) == 0 {
		return
	}
	done := r.queue.PollCompleted()
	keep := r.inflight[:0]
	for _, f := range r.inflight {
		if !all && f.index > done {
			keep = append(keep, f)
			continue
		}
		r.device.FreeCommandBuffer(f.cmd)
		if f.group != nil {
			r.device.DestroyBindGroup(f.group)
		}
		if f.texture != nil {
			f.texture.Release()
		}
	}
	clear(r.inflight[len(keep):])
	r.inflight = keep
}

// Resize is called when the drawable size changes. The quad covers clip
// space, so nothing needs to change; MSAA targets follow the drawable size
// on the next frame.
func (r *Renderer) Resize(width, height uint32) {
	r.resizes.Add(1)
	camquad.Logger().Debug("renderer: drawable resized", "width", width, "height", height)
}

// Stats returns the renderer counters.
func (r *Renderer) Stats() Stats {
	r.mu.Lock()
	inflight := len(r.inflight)
	r.mu.Unlock()
	return Stats{
		Frames:     r.frames.Load(),
		Skipped:    r.skipped.Load(),
		Idle:       r.idle.Load(),
		DrawCalls:  r.drawCalls.Load(),
		InFlight:   inflight,
		LastSeq:    r.lastSeq.Load(),
		Resizes:    r.resizes.Load(),
		DrawErrors: r.drawErrors.Load(),
	}
}

// Close waits for the GPU to go idle and releases every resource. The
// device and queue are not destroyed.
func (r *Renderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	if err := r.device.WaitIdle(); err != nil {
		camquad.Logger().Warn("renderer: wait idle failed", "err", err)
	}
	r.destroy()
}

func (r *Renderer) destroy() {
	r.reclaimLocked(true)
	if r.converter != nil {
		r.converter.close()
	}
	if r.cache != nil {
		r.cache.Close()
	}
	r.msaa.destroy(r.device)
	if r.samplerGroup != nil {
		r.device.DestroyBindGroup(r.samplerGroup)
		r.samplerGroup = nil
	}
	if r.sampler != nil {
		r.device.DestroySampler(r.sampler)
		r.sampler = nil
	}
	if r.vertexBuf != nil {
		r.device.DestroyBuffer(r.vertexBuf)
		r.vertexBuf = nil
	}
	if r.pipeline != nil {
		r.pipeline.Destroy()
		r.pipeline = nil
	}
}
