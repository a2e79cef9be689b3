// Package wgpu implements driver.Driver and driver.GPU on top of
// WebGPU, using github.com/cogentcore/webgpu as the concrete
// wgpu-native binding. It is the engine's sole concrete backend, so
// there is no driver registry to participate in: a caller constructs
// a *Driver directly and calls Open to get a driver.GPU.
package wgpu

import (
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/vitreousgfx/forge/driver"
)

// Driver opens a lazily-created WebGPU instance. A single Driver
// value owns at most one GPU at a time; Open returns the existing
// one if called again before Close.
type Driver struct {
	mu  sync.Mutex
	gpu *GPU
}

// Name implements driver.Driver.
func (d *Driver) Name() string { return "wgpu" }

// Open implements driver.Driver.
func (d *Driver) Open() (driver.GPU, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gpu != nil {
		return d.gpu, nil
	}

	inst := wgpu.CreateInstance(nil)
	adapter, err := inst.RequestAdapter(&wgpu.RequestAdapterOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: requesting adapter: %v", driver.ErrNoDevice, err)
	}
	limits := wgpu.DefaultLimits()
	dev, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label:          "forge",
		RequiredLimits: &wgpu.RequiredLimits{Limits: limits},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: requesting device: %v", driver.ErrNoDevice, err)
	}

	d.gpu = &GPU{
		drv:      d,
		instance: inst,
		adapter:  adapter,
		device:   dev,
		queue:    dev.GetQueue(),
		limits:   limits,
	}
	return d.gpu, nil
}

// Close implements driver.Driver.
func (d *Driver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gpu == nil {
		return
	}
	d.gpu.device.Release()
	d.gpu.adapter.Release()
	d.gpu.instance.Release()
	d.gpu = nil
}

// GPU implements driver.GPU on top of a single WebGPU device/queue
// pair.
type GPU struct {
	drv      *Driver
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	limits   wgpu.Limits
}

// Driver implements driver.GPU.
func (g *GPU) Driver() driver.Driver { return g.drv }

// Commit implements driver.GPU.
//
// WebGPU command buffers are one-shot: Submit consumes them and
// they cannot be resubmitted or reset, unlike a Vulkan command
// buffer. CmdBuffer.Reset accounts for this by discarding its
// underlying wgpu.CommandBuffer so that a fresh one is produced
// the next time Begin/End are called on the same driver.CmdBuffer
// value.
func (g *GPU) Commit(wk *driver.WorkItem, ch chan<- *driver.WorkItem) error {
	bufs := make([]*wgpu.CommandBuffer, 0, len(wk.Work))
	for _, cb := range wk.Work {
		c, ok := cb.(*CmdBuffer)
		if !ok {
			return fmt.Errorf("wgpu: foreign CmdBuffer type %T", cb)
		}
		if c.cmdBuf == nil {
			return fmt.Errorf("wgpu: %w: command buffer was not ended", driver.ErrFatal)
		}
		bufs = append(bufs, c.cmdBuf)
	}
	g.queue.Submit(bufs...)
	for _, cb := range wk.Work {
		cb.(*CmdBuffer).cmdBuf = nil
	}
	if ch != nil {
		// The Go wgpu-native binding does not expose a portable
		// completion callback for Queue.Submit, so completion is
		// reported as soon as the batch is handed to the driver;
		// GPU/CPU overlap across frames is still bounded by the
		// frame-slot rotation in package renderer, which never
		// reuses a slot's resources until the matching Commit
		// call for the previous use of that slot has returned.
		go func() { ch <- wk }()
	}
	return nil
}

// NewCmdBuffer implements driver.GPU.
func (g *GPU) NewCmdBuffer() (driver.CmdBuffer, error) {
	return &CmdBuffer{gpu: g}, nil
}

// NewRenderPass implements driver.GPU.
func (g *GPU) NewRenderPass(att []driver.Attachment, sub []driver.Subpass) (driver.RenderPass, error) {
	return &RenderPass{gpu: g, att: att, sub: sub}, nil
}

// NewShaderCode implements driver.GPU.
func (g *GPU) NewShaderCode(data []byte) (driver.ShaderCode, error) {
	mod, err := g.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: string(data)},
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: creating shader module: %w", err)
	}
	return &ShaderCode{mod: mod}, nil
}

// NewDescHeap implements driver.GPU.
func (g *GPU) NewDescHeap(ds []driver.Descriptor) (driver.DescHeap, error) {
	entries := make([]wgpu.BindGroupLayoutEntry, len(ds))
	for i, d := range ds {
		entries[i] = bindGroupLayoutEntry(d)
	}
	layout, err := g.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{Entries: entries})
	if err != nil {
		return nil, fmt.Errorf("wgpu: creating bind group layout: %w", err)
	}
	return &DescHeap{gpu: g, layout: layout, descs: ds}, nil
}

// NewDescTable implements driver.GPU.
//
// A driver.DescTable groups a number of DescHeaps into the set of
// bindings a pipeline uses. WebGPU has no single object that plays
// this role; DescTable instead keeps the ordered list of heaps and
// materializes one wgpu.BindGroup per heap copy on demand, bound
// individually by CmdBuffer.SetDescTableGraph/Comp via
// SetBindGroup(index, ...).
func (g *GPU) NewDescTable(dh []driver.DescHeap) (driver.DescTable, error) {
	heaps := make([]*DescHeap, len(dh))
	for i, h := range dh {
		dh, ok := h.(*DescHeap)
		if !ok {
			return nil, fmt.Errorf("wgpu: foreign DescHeap type %T", h)
		}
		heaps[i] = dh
	}
	return &DescTable{gpu: g, heaps: heaps}, nil
}

// NewPipeline implements driver.GPU.
func (g *GPU) NewPipeline(state any) (driver.Pipeline, error) {
	switch s := state.(type) {
	case *driver.GraphState:
		return g.newGraphicsPipeline(s)
	case *driver.CompState:
		return g.newComputePipeline(s)
	default:
		return nil, fmt.Errorf("wgpu: unsupported pipeline state type %T", state)
	}
}

// NewBuffer implements driver.GPU.
func (g *GPU) NewBuffer(size int64, visible bool, usg driver.Usage) (driver.Buffer, error) {
	u := bufferUsage(usg)
	if visible {
		u |= wgpu.BufferUsageMapRead | wgpu.BufferUsageMapWrite
	}
	buf, err := g.device.CreateBuffer(&wgpu.BufferDescriptor{
		Size:             uint64(size),
		Usage:            u,
		MappedAtCreation: visible,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: creating buffer: %w", err)
	}
	b := &Buffer{gpu: g, buf: buf, size: size, visible: visible}
	if visible {
		bs, err := buf.GetMappedRange(0, uint(size))
		if err != nil {
			return nil, fmt.Errorf("wgpu: mapping buffer: %w", err)
		}
		b.bytes = bs
	}
	return b, nil
}

// NewImage implements driver.GPU.
func (g *GPU) NewImage(pf driver.PixelFmt, size driver.Dim3D, layers, levels, samples int, usg driver.Usage) (driver.Image, error) {
	dim := wgpu.TextureDimension2D
	if size.Depth > 1 {
		dim = wgpu.TextureDimension3D
	}
	tex, err := g.device.CreateTexture(&wgpu.TextureDescriptor{
		Size: wgpu.Extent3D{
			Width:              uint32(size.Width),
			Height:             uint32(size.Height),
			DepthOrArrayLayers: uint32(max(size.Depth, layers)),
		},
		MipLevelCount: uint32(levels),
		SampleCount:   uint32(samples),
		Dimension:     dim,
		Format:        textureFormat(pf),
		Usage:         textureUsage(usg),
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: creating texture: %w", err)
	}
	return &Image{gpu: g, tex: tex, format: pf, size: size, layers: layers, levels: levels, samples: samples}, nil
}

// NewSampler implements driver.GPU.
func (g *GPU) NewSampler(spln *driver.Sampling) (driver.Sampler, error) {
	s, err := g.device.CreateSampler(&wgpu.SamplerDescriptor{
		AddressModeU:  addrMode(spln.AddrU),
		AddressModeV:  addrMode(spln.AddrV),
		AddressModeW:  addrMode(spln.AddrW),
		MagFilter:     filterMode(spln.Mag),
		MinFilter:     filterMode(spln.Min),
		MipmapFilter:  mipmapFilterMode(spln.Mipmap),
		LodMinClamp:   spln.MinLOD,
		LodMaxClamp:   spln.MaxLOD,
		MaxAnisotropy: uint16(max(spln.MaxAniso, 1)),
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: creating sampler: %w", err)
	}
	return &Sampler{smp: s}, nil
}

// Limits implements driver.GPU.
func (g *GPU) Limits() driver.Limits {
	return driver.Limits{
		MaxImage1D:        int(g.limits.MaxTextureDimension1D),
		MaxImage2D:        int(g.limits.MaxTextureDimension2D),
		MaxImageCube:      int(g.limits.MaxTextureDimension2D),
		MaxImage3D:        int(g.limits.MaxTextureDimension3D),
		MaxLayers:         int(g.limits.MaxTextureArrayLayers),
		MaxDescHeaps:      int(g.limits.MaxBindGroups),
		MaxDBuffer:        int(g.limits.MaxStorageBuffersPerShaderStage),
		MaxDImage:         int(g.limits.MaxStorageTexturesPerShaderStage),
		MaxDConstant:      int(g.limits.MaxUniformBuffersPerShaderStage),
		MaxDTexture:       int(g.limits.MaxSampledTexturesPerShaderStage),
		MaxDSampler:       int(g.limits.MaxSamplersPerShaderStage),
		MaxDBufferRange:   int64(g.limits.MaxStorageBufferBindingSize),
		MaxDConstantRange: int64(g.limits.MaxUniformBufferBindingSize),
		MaxColorTargets:   int(g.limits.MaxColorAttachments),
		MaxFBSize:         [2]int{int(g.limits.MaxTextureDimension2D), int(g.limits.MaxTextureDimension2D)},
		MaxFBLayers:       int(g.limits.MaxTextureArrayLayers),
		MaxViewports:      1,
		MaxVertexIn:       int(g.limits.MaxVertexAttributes),
		MaxFragmentIn:     int(g.limits.MaxInterStageShaderComponents),
		MaxDispatch:       [3]int{int(g.limits.MaxComputeWorkgroupsPerDimension), int(g.limits.MaxComputeWorkgroupsPerDimension), int(g.limits.MaxComputeWorkgroupsPerDimension)},
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
