// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package wgpu

import (
	"bytes"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/vitreousgfx/forge/driver"
)

// passKind identifies which kind of pass (if any) is currently
// open on a CmdBuffer, mirroring the Begin*/End* state machine
// documented on driver.CmdBuffer.
type passKind int

const (
	noPass passKind = iota
	renderPassKind
	computePassKind
	blitPassKind
)

// CmdBuffer implements driver.CmdBuffer directly against a
// wgpu.CommandEncoder: unlike a deferred recording scheme, every
// Set*/Draw*/Copy* call issues its wgpu call immediately against
// whichever pass (if any) is currently open. This mirrors how
// wgpu's own command encoder works, so no intermediate recording
// format is needed.
type CmdBuffer struct {
	gpu     *GPU
	encoder *wgpu.CommandEncoder
	cmdBuf  *wgpu.CommandBuffer

	kind  passKind
	rpass *wgpu.RenderPassEncoder
	cpass *wgpu.ComputePassEncoder

	// fb is retained across NextSubpass calls so that the next
	// subpass's render pass descriptor can be rebuilt from the
	// same framebuffer.
	fb    *Framebuf
	clear []driver.ClearValue
	sub   int
}

// Destroy implements driver.Destroyer.
func (c *CmdBuffer) Destroy() {
	if c.cmdBuf != nil {
		c.cmdBuf.Release()
		c.cmdBuf = nil
	}
}

// Begin implements driver.CmdBuffer.
func (c *CmdBuffer) Begin() error {
	if c.cmdBuf != nil {
		c.cmdBuf.Release()
		c.cmdBuf = nil
	}
	enc, err := c.gpu.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("wgpu: creating command encoder: %w", err)
	}
	c.encoder = enc
	c.kind = noPass
	return nil
}

// BeginPass implements driver.CmdBuffer.
func (c *CmdBuffer) BeginPass(pass driver.RenderPass, fb driver.Framebuf, clear []driver.ClearValue) {
	rp, _ := pass.(*RenderPass)
	f, _ := fb.(*Framebuf)
	c.fb = f
	c.clear = clear
	c.sub = 0
	c.beginSubpass(rp, f, 0)
}

func (c *CmdBuffer) beginSubpass(pass *RenderPass, fb *Framebuf, subIdx int) {
	sub := pass.sub[subIdx]
	desc := &wgpu.RenderPassDescriptor{}
	for _, ci := range sub.Color {
		cv := driver.ClearValue{}
		if ci < len(c.clear) {
			cv = c.clear[ci]
		}
		load := wgpu.LoadOpLoad
		if pass.att[ci].Load[0] == driver.LClear {
			load = wgpu.LoadOpClear
		}
		store := wgpu.StoreOpStore
		if pass.att[ci].Store[0] == driver.SDontCare {
			store = wgpu.StoreOpDiscard
		}
		desc.ColorAttachments = append(desc.ColorAttachments, wgpu.RenderPassColorAttachment{
			View:       fb.views[ci].view,
			LoadOp:     load,
			StoreOp:    store,
			ClearValue: wgpu.Color{R: float64(cv.Color[0]), G: float64(cv.Color[1]), B: float64(cv.Color[2]), A: float64(cv.Color[3])},
		})
	}
	if sub.DS >= 0 {
		cv := driver.ClearValue{}
		if sub.DS < len(c.clear) {
			cv = c.clear[sub.DS]
		}
		load := wgpu.LoadOpLoad
		if pass.att[sub.DS].Load[0] == driver.LClear {
			load = wgpu.LoadOpClear
		}
		desc.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:            fb.views[sub.DS].view,
			DepthLoadOp:     load,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: cv.Depth,
		}
	}
	c.rpass = c.encoder.BeginRenderPass(desc)
	c.kind = renderPassKind
}

// NextSubpass implements driver.CmdBuffer.
//
// WebGPU has no notion of subpasses, so each one is emulated as a
// fresh render pass over the same framebuffer; content produced by
// an earlier subpass survives because color attachments default to
// LoadOpLoad unless their Attachment explicitly requests LClear.
func (c *CmdBuffer) NextSubpass() {
	c.rpass.End()
	c.sub++
	pass := c.fb.pass
	c.beginSubpass(pass, c.fb, c.sub)
}

// EndPass implements driver.CmdBuffer.
func (c *CmdBuffer) EndPass() {
	c.rpass.End()
	c.rpass = nil
	c.fb = nil
	c.kind = noPass
}

// BeginWork implements driver.CmdBuffer. wait has no effect: a
// single wgpu command encoder already serializes the passes
// recorded into it.
func (c *CmdBuffer) BeginWork(wait bool) {
	c.cpass = c.encoder.BeginComputePass(nil)
	c.kind = computePassKind
}

// EndWork implements driver.CmdBuffer.
func (c *CmdBuffer) EndWork() {
	c.cpass.End()
	c.cpass = nil
	c.kind = noPass
}

// BeginBlit implements driver.CmdBuffer. Unlike render/compute
// passes, wgpu copy commands are recorded directly against the
// command encoder, so this only updates bookkeeping state.
func (c *CmdBuffer) BeginBlit(wait bool) { c.kind = blitPassKind }

// EndBlit implements driver.CmdBuffer.
func (c *CmdBuffer) EndBlit() { c.kind = noPass }

// SetPipeline implements driver.CmdBuffer.
func (c *CmdBuffer) SetPipeline(pl driver.Pipeline) {
	p := pl.(*Pipeline)
	switch c.kind {
	case renderPassKind:
		c.rpass.SetPipeline(p.render)
	case computePassKind:
		c.cpass.SetPipeline(p.compute)
	}
}

// SetViewport implements driver.CmdBuffer. WebGPU supports a
// single viewport per render pass; if more than one is given, only
// the first is applied.
func (c *CmdBuffer) SetViewport(vp []driver.Viewport) {
	if len(vp) == 0 || c.rpass == nil {
		return
	}
	v := vp[0]
	c.rpass.SetViewport(v.X, v.Y, v.Width, v.Height, v.Znear, v.Zfar)
}

// SetScissor implements driver.CmdBuffer. As with SetViewport,
// only the first scissor rectangle is applied.
func (c *CmdBuffer) SetScissor(sciss []driver.Scissor) {
	if len(sciss) == 0 || c.rpass == nil {
		return
	}
	s := sciss[0]
	c.rpass.SetScissorRect(uint32(s.X), uint32(s.Y), uint32(s.Width), uint32(s.Height))
}

// SetBlendColor implements driver.CmdBuffer.
func (c *CmdBuffer) SetBlendColor(r, g, b, a float32) {
	c.rpass.SetBlendConstant(&wgpu.Color{R: float64(r), G: float64(g), B: float64(b), A: float64(a)})
}

// SetStencilRef implements driver.CmdBuffer.
func (c *CmdBuffer) SetStencilRef(value uint32) {
	c.rpass.SetStencilReference(value)
}

// SetVertexBuf implements driver.CmdBuffer.
func (c *CmdBuffer) SetVertexBuf(start int, buf []driver.Buffer, off []int64) {
	for i, b := range buf {
		bb := b.(*Buffer)
		o := int64(0)
		if i < len(off) {
			o = off[i]
		}
		c.rpass.SetVertexBuffer(uint32(start+i), bb.buf, uint64(o), uint64(bb.size-o))
	}
}

// SetIndexBuf implements driver.CmdBuffer.
func (c *CmdBuffer) SetIndexBuf(format driver.IndexFmt, buf driver.Buffer, off int64) {
	b := buf.(*Buffer)
	c.rpass.SetIndexBuffer(b.buf, indexFormat(format), uint64(off), uint64(b.size-off))
}

func (c *CmdBuffer) setDescTable(table driver.DescTable, start int, heapCopy []int, bind func(index uint32, group *wgpu.BindGroup)) {
	t := table.(*DescTable)
	for i, h := range t.heaps {
		cpy := 0
		if i < len(heapCopy) {
			cpy = heapCopy[i]
		}
		g, err := h.bindGroup(cpy)
		if err != nil {
			panic(fmt.Sprintf("wgpu: %v", err))
		}
		bind(uint32(start+i), g)
	}
}

// SetDescTableGraph implements driver.CmdBuffer.
func (c *CmdBuffer) SetDescTableGraph(table driver.DescTable, start int, heapCopy []int) {
	c.setDescTable(table, start, heapCopy, func(index uint32, g *wgpu.BindGroup) {
		c.rpass.SetBindGroup(index, g, nil)
	})
}

// SetDescTableComp implements driver.CmdBuffer.
func (c *CmdBuffer) SetDescTableComp(table driver.DescTable, start int, heapCopy []int) {
	c.setDescTable(table, start, heapCopy, func(index uint32, g *wgpu.BindGroup) {
		c.cpass.SetBindGroup(index, g, nil)
	})
}

// Draw implements driver.CmdBuffer.
func (c *CmdBuffer) Draw(vertCount, instCount, baseVert, baseInst int) {
	c.rpass.Draw(uint32(vertCount), uint32(instCount), uint32(baseVert), uint32(baseInst))
}

// DrawIndexed implements driver.CmdBuffer.
func (c *CmdBuffer) DrawIndexed(idxCount, instCount, baseIdx, vertOff, baseInst int) {
	c.rpass.DrawIndexed(uint32(idxCount), uint32(instCount), uint32(baseIdx), int32(vertOff), uint32(baseInst))
}

// Dispatch implements driver.CmdBuffer.
func (c *CmdBuffer) Dispatch(grpCountX, grpCountY, grpCountZ int) {
	c.cpass.DispatchWorkgroups(uint32(grpCountX), uint32(grpCountY), uint32(grpCountZ))
}

// CopyBuffer implements driver.CmdBuffer.
func (c *CmdBuffer) CopyBuffer(param *driver.BufferCopy) {
	from := param.From.(*Buffer)
	to := param.To.(*Buffer)
	c.encoder.CopyBufferToBuffer(from.buf, uint64(param.FromOff), to.buf, uint64(param.ToOff), uint64(param.Size))
}

// CopyImage implements driver.CmdBuffer.
func (c *CmdBuffer) CopyImage(param *driver.ImageCopy) {
	from := param.From.(*Image)
	to := param.To.(*Image)
	c.encoder.CopyTextureToTexture(
		&wgpu.ImageCopyTexture{
			Texture:  from.tex,
			MipLevel: uint32(param.FromLevel),
			Origin:   wgpu.Origin3D{X: uint32(param.FromOff.X), Y: uint32(param.FromOff.Y), Z: uint32(param.FromOff.Z)},
		},
		&wgpu.ImageCopyTexture{
			Texture:  to.tex,
			MipLevel: uint32(param.ToLevel),
			Origin:   wgpu.Origin3D{X: uint32(param.ToOff.X), Y: uint32(param.ToOff.Y), Z: uint32(param.ToOff.Z)},
		},
		&wgpu.Extent3D{Width: uint32(param.Size.Width), Height: uint32(param.Size.Height), DepthOrArrayLayers: uint32(max(param.Size.Depth, param.Layers))},
	)
}

// CopyBufToImg implements driver.CmdBuffer.
func (c *CmdBuffer) CopyBufToImg(param *driver.BufImgCopy) {
	buf := param.Buf.(*Buffer)
	img := param.Img.(*Image)
	c.encoder.CopyBufferToTexture(
		&wgpu.ImageCopyBuffer{
			Layout: wgpu.TextureDataLayout{
				Offset:       uint64(param.BufOff),
				BytesPerRow:  uint32(param.Stride[0]),
				RowsPerImage: uint32(param.Stride[1]),
			},
			Buffer: buf.buf,
		},
		&wgpu.ImageCopyTexture{
			Texture:  img.tex,
			MipLevel: uint32(param.Level),
			Origin:   wgpu.Origin3D{X: uint32(param.ImgOff.X), Y: uint32(param.ImgOff.Y), Z: uint32(param.ImgOff.Z)},
		},
		&wgpu.Extent3D{Width: uint32(param.Size.Width), Height: uint32(param.Size.Height), DepthOrArrayLayers: uint32(max(param.Size.Depth, 1))},
	)
}

// CopyImgToBuf implements driver.CmdBuffer.
func (c *CmdBuffer) CopyImgToBuf(param *driver.BufImgCopy) {
	buf := param.Buf.(*Buffer)
	img := param.Img.(*Image)
	c.encoder.CopyTextureToBuffer(
		&wgpu.ImageCopyTexture{
			Texture:  img.tex,
			MipLevel: uint32(param.Level),
			Origin:   wgpu.Origin3D{X: uint32(param.ImgOff.X), Y: uint32(param.ImgOff.Y), Z: uint32(param.ImgOff.Z)},
		},
		&wgpu.ImageCopyBuffer{
			Layout: wgpu.TextureDataLayout{
				Offset:       uint64(param.BufOff),
				BytesPerRow:  uint32(param.Stride[0]),
				RowsPerImage: uint32(param.Stride[1]),
			},
			Buffer: buf.buf,
		},
		&wgpu.Extent3D{Width: uint32(param.Size.Width), Height: uint32(param.Size.Height), DepthOrArrayLayers: uint32(max(param.Size.Depth, 1))},
	)
}

// Fill implements driver.CmdBuffer.
//
// wgpu has no native buffer-fill command, so Fill is emulated by
// queuing a write of a repeated byte pattern. This means a Fill
// takes effect when the queue processes it rather than strictly in
// command-stream order relative to other work in the same command
// buffer; callers that need a fill to precede a subsequent read in
// the same submission should prefer CopyBuffer from a
// pre-populated staging buffer instead.
func (c *CmdBuffer) Fill(buf driver.Buffer, off int64, value byte, size int64) {
	b := buf.(*Buffer)
	data := bytes.Repeat([]byte{value}, int(size))
	c.gpu.queue.WriteBuffer(b.buf, uint64(off), data)
}

// Barrier implements driver.CmdBuffer. WebGPU tracks resource
// hazards automatically, so explicit barriers are a no-op; the
// method exists only to satisfy the driver.CmdBuffer contract for
// callers written against an explicit-barrier API.
func (c *CmdBuffer) Barrier(b []driver.Barrier) {}

// Transition implements driver.CmdBuffer. See Barrier.
func (c *CmdBuffer) Transition(t []driver.Transition) {}

// End implements driver.CmdBuffer.
func (c *CmdBuffer) End() error {
	cb, err := c.encoder.Finish(nil)
	if err != nil {
		c.encoder = nil
		return fmt.Errorf("wgpu: finishing command buffer: %w", err)
	}
	c.cmdBuf = cb
	c.encoder = nil
	return nil
}

// Reset implements driver.CmdBuffer.
func (c *CmdBuffer) Reset() error {
	if c.cmdBuf != nil {
		c.cmdBuf.Release()
		c.cmdBuf = nil
	}
	c.encoder = nil
	c.kind = noPass
	return nil
}
