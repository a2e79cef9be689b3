// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package wgpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/vitreousgfx/forge/driver"
)

// ShaderCode wraps a compiled wgpu shader module.
type ShaderCode struct{ mod *wgpu.ShaderModule }

// Destroy implements driver.Destroyer.
func (s *ShaderCode) Destroy() { s.mod.Release() }

// Buffer wraps a wgpu buffer. Host-visible buffers are mapped for
// their entire lifetime at creation time, since WebGPU buffers
// created with MappedAtCreation stay mapped until Unmap is called,
// and the driver.Buffer contract expects Bytes to be valid for the
// buffer's whole lifetime.
type Buffer struct {
	gpu     *GPU
	buf     *wgpu.Buffer
	size    int64
	visible bool
	bytes   []byte
}

// Destroy implements driver.Destroyer.
func (b *Buffer) Destroy() { b.buf.Release() }

// Visible implements driver.Buffer.
func (b *Buffer) Visible() bool { return b.visible }

// Bytes implements driver.Buffer.
func (b *Buffer) Bytes() []byte { return b.bytes }

// Cap implements driver.Buffer.
func (b *Buffer) Cap() int64 { return b.size }

// Image wraps a wgpu texture.
type Image struct {
	gpu     *GPU
	tex     *wgpu.Texture
	format  driver.PixelFmt
	size    driver.Dim3D
	layers  int
	levels  int
	samples int
}

// Destroy implements driver.Destroyer.
func (i *Image) Destroy() { i.tex.Release() }

// NewView implements driver.Image.
func (i *Image) NewView(typ driver.ViewType, layer, layers, level, levels int) (driver.ImageView, error) {
	dim := wgpu.TextureViewDimension2D
	switch typ {
	case driver.IView1D:
		dim = wgpu.TextureViewDimension1D
	case driver.IView3D:
		dim = wgpu.TextureViewDimension3D
	case driver.IViewCube:
		dim = wgpu.TextureViewDimensionCube
	case driver.IView1DArray:
		dim = wgpu.TextureViewDimension2DArray
	case driver.IView2DArray, driver.IView2DMSArray:
		dim = wgpu.TextureViewDimension2DArray
	case driver.IViewCubeArray:
		dim = wgpu.TextureViewDimensionCubeArray
	}
	v, err := i.tex.CreateView(&wgpu.TextureViewDescriptor{
		Format:          textureFormat(i.format),
		Dimension:       dim,
		BaseMipLevel:    uint32(level),
		MipLevelCount:   uint32(levels),
		BaseArrayLayer:  uint32(layer),
		ArrayLayerCount: uint32(layers),
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: creating texture view: %w", err)
	}
	return &ImageView{view: v, format: i.format}, nil
}

// ImageView wraps a wgpu texture view.
type ImageView struct {
	view   *wgpu.TextureView
	format driver.PixelFmt
}

// Destroy implements driver.Destroyer.
func (v *ImageView) Destroy() { v.view.Release() }

// Sampler wraps a wgpu sampler.
type Sampler struct{ smp *wgpu.Sampler }

// Destroy implements driver.Destroyer.
func (s *Sampler) Destroy() { s.smp.Release() }

// DescHeap wraps a wgpu bind group layout plus the bind groups
// materialized from it by New. A driver.DescHeap copy maps to one
// *wgpu.BindGroup.
type DescHeap struct {
	gpu    *GPU
	layout *wgpu.BindGroupLayout
	descs  []driver.Descriptor
	groups []*wgpu.BindGroup
	// pending accumulates the entries set via SetBuffer/SetImage/
	// SetSampler for each copy, since CreateBindGroup needs the
	// full entry list at once but the driver.DescHeap contract
	// allows setting descriptors one at a time.
	pending [][]wgpu.BindGroupEntry
}

// Destroy implements driver.Destroyer.
func (h *DescHeap) Destroy() {
	for _, g := range h.groups {
		if g != nil {
			g.Release()
		}
	}
	h.layout.Release()
}

// New implements driver.DescHeap.
func (h *DescHeap) New(n int) error {
	h.groups = make([]*wgpu.BindGroup, n)
	h.pending = make([][]wgpu.BindGroupEntry, n)
	for i := range h.pending {
		h.pending[i] = make([]wgpu.BindGroupEntry, len(h.descs))
		for j, d := range h.descs {
			h.pending[i][j].Binding = uint32(d.Nr)
		}
	}
	return nil
}

func (h *DescHeap) entryIndex(nr int) int {
	for i, d := range h.descs {
		if d.Nr == nr {
			return i
		}
	}
	return -1
}

func (h *DescHeap) invalidate(cpy int) {
	if cpy < len(h.groups) && h.groups[cpy] != nil {
		h.groups[cpy].Release()
		h.groups[cpy] = nil
	}
}

// SetBuffer implements driver.DescHeap.
func (h *DescHeap) SetBuffer(cpy, nr, start int, buf []driver.Buffer, off, size []int64) {
	idx := h.entryIndex(nr)
	if idx < 0 {
		return
	}
	b := buf[0].(*Buffer)
	h.pending[cpy][idx].Buffer = b.buf
	h.pending[cpy][idx].Offset = uint64(off[0])
	h.pending[cpy][idx].Size = uint64(size[0])
	h.invalidate(cpy)
}

// SetImage implements driver.DescHeap.
func (h *DescHeap) SetImage(cpy, nr, start int, iv []driver.ImageView) {
	idx := h.entryIndex(nr)
	if idx < 0 {
		return
	}
	h.pending[cpy][idx].TextureView = iv[0].(*ImageView).view
	h.invalidate(cpy)
}

// SetSampler implements driver.DescHeap.
func (h *DescHeap) SetSampler(cpy, nr, start int, splr []driver.Sampler) {
	idx := h.entryIndex(nr)
	if idx < 0 {
		return
	}
	h.pending[cpy][idx].Sampler = splr[0].(*Sampler).smp
	h.invalidate(cpy)
}

// Count implements driver.DescHeap.
func (h *DescHeap) Count() int { return len(h.groups) }

// bindGroup lazily materializes (or returns the cached) bind group
// for heap copy cpy.
func (h *DescHeap) bindGroup(cpy int) (*wgpu.BindGroup, error) {
	if cpy >= len(h.groups) {
		return nil, fmt.Errorf("wgpu: heap copy %d out of range (count=%d)", cpy, len(h.groups))
	}
	if h.groups[cpy] != nil {
		return h.groups[cpy], nil
	}
	g, err := h.gpu.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout:  h.layout,
		Entries: h.pending[cpy],
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: creating bind group: %w", err)
	}
	h.groups[cpy] = g
	return g, nil
}

// DescTable groups the heaps bound together for a pipeline. See
// GPU.NewDescTable for why this does not map onto a single wgpu
// object.
type DescTable struct {
	gpu   *GPU
	heaps []*DescHeap
}

// Destroy implements driver.Destroyer. The underlying heaps are
// owned (and destroyed) independently, since the same DescHeap can
// be shared by more than one DescTable.
func (t *DescTable) Destroy() {}

func (t *DescTable) bindGroupLayouts() []*wgpu.BindGroupLayout {
	ls := make([]*wgpu.BindGroupLayout, len(t.heaps))
	for i, h := range t.heaps {
		ls[i] = h.layout
	}
	return ls
}

// Pipeline wraps either a wgpu render or compute pipeline.
type Pipeline struct {
	render  *wgpu.RenderPipeline
	compute *wgpu.ComputePipeline
}

// Destroy implements driver.Destroyer.
func (p *Pipeline) Destroy() {
	if p.render != nil {
		p.render.Release()
	}
	if p.compute != nil {
		p.compute.Release()
	}
}

func (g *GPU) newGraphicsPipeline(s *driver.GraphState) (driver.Pipeline, error) {
	vert := s.VertFunc.Code.(*ShaderCode)
	frag := s.FragFunc.Code.(*ShaderCode)
	table, _ := s.Desc.(*DescTable)

	var layout *wgpu.PipelineLayout
	if table != nil {
		l, err := g.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
			BindGroupLayouts: table.bindGroupLayouts(),
		})
		if err != nil {
			return nil, fmt.Errorf("wgpu: creating pipeline layout: %w", err)
		}
		layout = l
	}

	buffers := make([]wgpu.VertexBufferLayout, len(s.Input))
	for i, in := range s.Input {
		buffers[i] = wgpu.VertexBufferLayout{
			ArrayStride: uint64(in.Stride),
			StepMode:    wgpu.VertexStepModeVertex,
			Attributes: []wgpu.VertexAttribute{{
				Format:         vertexFormat(in.Format),
				Offset:         0,
				ShaderLocation: uint32(in.Nr),
			}},
		}
	}

	pass, _ := s.Pass.(*RenderPass)
	var colorFmts []driver.PixelFmt
	var dsFmt driver.PixelFmt
	hasDS := false
	if pass != nil && s.Subpass < len(pass.sub) {
		sub := pass.sub[s.Subpass]
		for _, ci := range sub.Color {
			colorFmts = append(colorFmts, pass.att[ci].Format)
		}
		if sub.DS >= 0 {
			dsFmt = pass.att[sub.DS].Format
			hasDS = true
		}
	}
	if len(colorFmts) == 0 {
		colorFmts = []driver.PixelFmt{driver.RGBA8un}
	}

	targets := make([]wgpu.ColorTargetState, max(1, len(s.Blend.Color)))
	for i := range targets {
		fmtIdx := i
		if fmtIdx >= len(colorFmts) {
			fmtIdx = len(colorFmts) - 1
		}
		targets[i] = wgpu.ColorTargetState{
			Format:    textureFormat(colorFmts[fmtIdx]),
			WriteMask: wgpu.ColorWriteMaskAll,
		}
		if i < len(s.Blend.Color) && s.Blend.Color[i].Blend {
			cb := s.Blend.Color[i]
			targets[i].Blend = &wgpu.BlendState{
				Color: wgpu.BlendComponent{
					Operation: blendOp(cb.Op[0]),
					SrcFactor: blendFactor(cb.SrcFac[0]),
					DstFactor: blendFactor(cb.DstFac[0]),
				},
				Alpha: wgpu.BlendComponent{
					Operation: blendOp(cb.Op[1]),
					SrcFactor: blendFactor(cb.SrcFac[1]),
					DstFactor: blendFactor(cb.DstFac[1]),
				},
			}
		}
	}

	var depthStencil *wgpu.DepthStencilState
	if hasDS && (s.DS.DepthTest || s.DS.StencilTest) {
		depthStencil = &wgpu.DepthStencilState{
			Format:            textureFormat(dsFmt),
			DepthWriteEnabled: s.DS.DepthWrite,
			DepthCompare:      compareFunc(s.DS.DepthCmp),
		}
	}

	desc := &wgpu.RenderPipelineDescriptor{
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     vert.mod,
			EntryPoint: s.VertFunc.Name,
			Buffers:    buffers,
		},
		Fragment: &wgpu.FragmentState{
			Module:     frag.mod,
			EntryPoint: s.FragFunc.Name,
			Targets:    targets,
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  primitiveTopology(s.Topology),
			CullMode:  cullMode(s.Raster.Cull),
			FrontFace: frontFace(s.Raster.Clockwise),
		},
		Multisample: wgpu.MultisampleState{
			Count:                  uint32(max(s.Samples, 1)),
			Mask:                   0xFFFFFFFF,
			AlphaToCoverageEnabled: false,
		},
		DepthStencil: depthStencil,
	}

	p, err := g.device.CreateRenderPipeline(desc)
	if err != nil {
		return nil, fmt.Errorf("wgpu: creating render pipeline: %w", err)
	}
	return &Pipeline{render: p}, nil
}

func (g *GPU) newComputePipeline(s *driver.CompState) (driver.Pipeline, error) {
	comp := s.Func.Code.(*ShaderCode)
	table, _ := s.Desc.(*DescTable)

	var layout *wgpu.PipelineLayout
	if table != nil {
		l, err := g.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
			BindGroupLayouts: table.bindGroupLayouts(),
		})
		if err != nil {
			return nil, fmt.Errorf("wgpu: creating pipeline layout: %w", err)
		}
		layout = l
	}

	p, err := g.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Layout:  layout,
		Compute: wgpu.ProgrammableStageDescriptor{Module: comp.mod, EntryPoint: s.Func.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: creating compute pipeline: %w", err)
	}
	return &Pipeline{compute: p}, nil
}

func frontFace(clockwise bool) wgpu.FrontFace {
	if clockwise {
		return wgpu.FrontFaceCW
	}
	return wgpu.FrontFaceCCW
}
