package renderer

import (
	_ "embed"
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/camquad"
)

//go:embed shaders/quad.wgsl
var quadShaderSource string

// Shader entry points and bind group indices shared with quad.wgsl.
const (
	VertexEntryPoint   = "vertexPassthrough"
	FragmentEntryPoint = "fragmentPassthrough"

	textureGroup = 0
	samplerGroup = 1
	vertexSlot   = 0
)

// ErrShaderInvalid is returned when the quad shader fails WGSL validation.
var ErrShaderInvalid = errors.New("renderer: quad shader failed validation")

// SurfaceDescriptor describes the render target the pipeline draws into.
type SurfaceDescriptor struct {
	// Format is the drawable's color format, normally BGRA8Unorm.
	Format gputypes.TextureFormat

	// SampleCount is the MSAA sample count. Zero means 1.
	SampleCount uint32
}

func (s SurfaceDescriptor) withDefaults() SurfaceDescriptor {
	if s.Format == gputypes.TextureFormatUndefined {
		s.Format = gputypes.TextureFormatBGRA8Unorm
	}
	if s.SampleCount == 0 {
		s.SampleCount = 1
	}
	return s
}

// Pipeline holds the immutable GPU state for drawing the quad: shader,
// bind group layouts and the render pipeline.
type Pipeline struct {
	device  hal.Device
	surface SurfaceDescriptor

	shader        hal.ShaderModule
	textureLayout hal.BindGroupLayout
	samplerLayout hal.BindGroupLayout
	pipeLayout    hal.PipelineLayout
	pipeline      hal.RenderPipeline
}

// ValidateShader compiles the quad shader with naga and returns the SPIR-V
// size in bytes.
func ValidateShader() (int, error) {
	if quadShaderSource == "" {
		return 0, fmt.Errorf("%w: source is empty", ErrShaderInvalid)
	}
	spirv, err := naga.Compile(quadShaderSource)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrShaderInvalid, err)
	}
	return len(spirv), nil
}

// BuildPipeline compiles the quad shader and creates the render pipeline for
// surface. Any failure is returned; callers treat it as fatal.
func BuildPipeline(device hal.Device, surface SurfaceDescriptor) (*Pipeline, error) {
	if device == nil {
		return nil, ErrNoDevice
	}
	if _, err := ValidateShader(); err != nil {
		return nil, err
	}

	p := &Pipeline{device: device, surface: surface.withDefaults()}
	if err := p.create(); err != nil {
		p.Destroy()
		return nil, err
	}
	camquad.Logger().Debug("renderer: pipeline built",
		"format", p.surface.Format, "samples", p.surface.SampleCount)
	return p, nil
}

func (p *Pipeline) create() error {
	shader, err := p.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "video_quad_shader",
		Source: hal.ShaderSource{WGSL: quadShaderSource},
	})
	if err != nil {
		return fmt.Errorf("compile quad shader: %w", err)
	}
	p.shader = shader

	textureLayout, err := p.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "video_texture_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create texture bind group layout: %w", err)
	}
	p.textureLayout = textureLayout

	samplerLayout, err := p.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "video_sampler_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create sampler bind group layout: %w", err)
	}
	p.samplerLayout = samplerLayout

	pipeLayout, err := p.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "video_quad_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.textureLayout, p.samplerLayout},
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}
	p.pipeLayout = pipeLayout

	pipeline, err := p.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "video_quad_pipeline",
		Layout: p.pipeLayout,
		Vertex: hal.VertexState{
			Module:     p.shader,
			EntryPoint: VertexEntryPoint,
			Buffers:    quadVertexLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     p.shader,
			EntryPoint: FragmentEntryPoint,
			Targets: []gputypes.ColorTargetState{
				{
					Format:    p.surface.Format,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology:  gputypes.PrimitiveTopologyTriangleList,
			FrontFace: gputypes.FrontFaceCCW,
			CullMode:  gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: p.surface.SampleCount,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("create quad render pipeline: %w", err)
	}
	p.pipeline = pipeline
	return nil
}

// quadVertexLayout describes camquad.Vertex: position float4 at location 0,
// texture coordinate float2 at location 1.
func quadVertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: camquad.VertexStride,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x4, Offset: 0, ShaderLocation: 0},
				{Format: gputypes.VertexFormatFloat32x2, Offset: camquad.TexCoordOffset, ShaderLocation: 1},
			},
		},
	}
}

// Surface returns the descriptor the pipeline was built for.
func (p *Pipeline) Surface() SurfaceDescriptor { return p.surface }

// Destroy releases the GPU objects in reverse creation order. Safe to call
// more than once.
func (p *Pipeline) Destroy() {
	if p.device == nil {
		return
	}
	if p.pipeline != nil {
		p.device.DestroyRenderPipeline(p.pipeline)
		p.pipeline = nil
	}
	if p.pipeLayout != nil {
		p.device.DestroyPipelineLayout(p.pipeLayout)
		p.pipeLayout = nil
	}
	if p.samplerLayout != nil {
		p.device.DestroyBindGroupLayout(p.samplerLayout)
		p.samplerLayout = nil
	}
	if p.textureLayout != nil {
		p.device.DestroyBindGroupLayout(p.textureLayout)
		p.textureLayout = nil
	}
	if p.shader != nil {
		p.device.DestroyShaderModule(p.shader)
		p.shader = nil
	}
}
