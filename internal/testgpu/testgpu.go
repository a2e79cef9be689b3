// Package testgpu implements a software driver.GPU, driver.CmdBuffer
// and driver.Presenter fake shared by the backend/swapchain/renderer
// packages' tests. It performs no real GPU work; it exists
// to exercise the call sequences those packages make against a
// driver.GPU without a real Vulkan device.
package testgpu

import (
	"errors"
	"fmt"

	"github.com/vitreousgfx/forge/driver"
	"github.com/vitreousgfx/forge/wsi"
)

type Destroyer struct{ Destroyed bool }

func (d *Destroyer) Destroy() { d.Destroyed = true }

type Buffer struct {
	Destroyer
	visible bool
	data    []byte
}

func (b *Buffer) Visible() bool   { return b.visible }
func (b *Buffer) Bytes() []byte   { return b.data }
func (b *Buffer) Cap() int64      { return int64(len(b.data)) }

type ImageView struct{ Destroyer }

type Image struct {
	Destroyer
	Format driver.PixelFmt
	Size   driver.Dim3D
	views  []*ImageView
}

func (img *Image) NewView(typ driver.ViewType, layer, layers, level, levels int) (driver.ImageView, error) {
	v := &ImageView{}
	img.views = append(img.views, v)
	return v, nil
}

type RenderPass struct{ Destroyer }

func (rp *RenderPass) NewFB(iv []driver.ImageView, width, height, layers int) (driver.Framebuf, error) {
	return &Framebuf{}, nil
}

type Framebuf struct{ Destroyer }
type ShaderCode struct{ Destroyer }
type Pipeline struct{ Destroyer }
type Sampler struct{ Destroyer }

type DescHeap struct {
	Destroyer
	descs []driver.Descriptor
}

func (h *DescHeap) New(n int) error { return nil }
func (h *DescHeap) SetBuffer(cpy, nr, start int, buf []driver.Buffer, off, size []int64) {}
func (h *DescHeap) SetImage(cpy, nr, start int, iv []driver.ImageView)                   {}
func (h *DescHeap) SetSampler(cpy, nr, start int, splr []driver.Sampler)                 {}
func (h *DescHeap) Count() int                                                           { return 1 }

type DescTable struct{ Destroyer }

// Call records one method invocation against a CmdBuffer, for tests
// that assert on the exact sequence of recorded commands.
type Call struct {
	Name string
	Args []any
}

// CmdBuffer records every call made against it (after Begin) so
// tests can assert exactly what a backend recorded, and tracks
// Begin/End/Reset state transitions.
type CmdBuffer struct {
	Destroyer
	Calls     []Call
	recording bool
}

func (cb *CmdBuffer) record(name string, args ...any) {
	cb.Calls = append(cb.Calls, Call{Name: name, Args: args})
}

func (cb *CmdBuffer) Begin() error {
	if cb.recording {
		return errors.New("testgpu: Begin called while already recording")
	}
	cb.recording = true
	cb.Calls = nil
	return nil
}

func (cb *CmdBuffer) BeginPass(pass driver.RenderPass, fb driver.Framebuf, clear []driver.ClearValue) {
	cb.record("BeginPass", pass, fb, clear)
}
func (cb *CmdBuffer) NextSubpass() { cb.record("NextSubpass") }
func (cb *CmdBuffer) EndPass()     { cb.record("EndPass") }
func (cb *CmdBuffer) BeginWork(wait bool) { cb.record("BeginWork", wait) }
func (cb *CmdBuffer) EndWork()             { cb.record("EndWork") }
func (cb *CmdBuffer) BeginBlit(wait bool)  { cb.record("BeginBlit", wait) }
func (cb *CmdBuffer) EndBlit()             { cb.record("EndBlit") }
func (cb *CmdBuffer) SetPipeline(pl driver.Pipeline) { cb.record("SetPipeline", pl) }
func (cb *CmdBuffer) SetViewport(vp []driver.Viewport) { cb.record("SetViewport", vp) }
func (cb *CmdBuffer) SetScissor(sciss []driver.Scissor) { cb.record("SetScissor", sciss) }
func (cb *CmdBuffer) SetBlendColor(r, g, b, a float32) { cb.record("SetBlendColor", r, g, b, a) }
func (cb *CmdBuffer) SetStencilRef(value uint32)        { cb.record("SetStencilRef", value) }
func (cb *CmdBuffer) SetVertexBuf(start int, buf []driver.Buffer, off []int64) {
	cb.record("SetVertexBuf", start, buf, off)
}
func (cb *CmdBuffer) SetIndexBuf(format driver.IndexFmt, buf driver.Buffer, off int64) {
	cb.record("SetIndexBuf", format, buf, off)
}
func (cb *CmdBuffer) SetDescTableGraph(table driver.DescTable, start int, heapCopy []int) {
	cb.record("SetDescTableGraph", table, start, heapCopy)
}
func (cb *CmdBuffer) SetDescTableComp(table driver.DescTable, start int, heapCopy []int) {
	cb.record("SetDescTableComp", table, start, heapCopy)
}
func (cb *CmdBuffer) Draw(vertCount, instCount, baseVert, baseInst int) {
	cb.record("Draw", vertCount, instCount, baseVert, baseInst)
}
func (cb *CmdBuffer) DrawIndexed(idxCount, instCount, baseIdx, vertOff, baseInst int) {
	cb.record("DrawIndexed", idxCount, instCount, baseIdx, vertOff, baseInst)
}
func (cb *CmdBuffer) Dispatch(x, y, z int) { cb.record("Dispatch", x, y, z) }
func (cb *CmdBuffer) CopyBuffer(param *driver.BufferCopy) { cb.record("CopyBuffer", param) }
func (cb *CmdBuffer) CopyImage(param *driver.ImageCopy)   { cb.record("CopyImage", param) }
func (cb *CmdBuffer) CopyBufToImg(param *driver.BufImgCopy) { cb.record("CopyBufToImg", param) }
func (cb *CmdBuffer) CopyImgToBuf(param *driver.BufImgCopy) { cb.record("CopyImgToBuf", param) }
func (cb *CmdBuffer) Fill(buf driver.Buffer, off int64, value byte, size int64) {
	cb.record("Fill", buf, off, value, size)
}
func (cb *CmdBuffer) Barrier(b []driver.Barrier)         { cb.record("Barrier", b) }
func (cb *CmdBuffer) Transition(t []driver.Transition)   { cb.record("Transition", t) }

func (cb *CmdBuffer) End() error {
	if !cb.recording {
		return errors.New("testgpu: End called while not recording")
	}
	cb.recording = false
	return nil
}

func (cb *CmdBuffer) Reset() error {
	cb.recording = false
	cb.Calls = nil
	return nil
}

// Swapchain is a fake windowed swapchain with a single backbuffer.
type Swapchain struct {
	Destroyer
	format       driver.PixelFmt
	view         *ImageView
	NextCalls    int
	PresentCalls int
	RecreateCalls int
	FailNextOnce bool // makes the next call to Next return driver.ErrSwapchain
}

func (s *Swapchain) Views() []driver.ImageView { return []driver.ImageView{s.view} }

func (s *Swapchain) Next(cb driver.CmdBuffer) (int, error) {
	s.NextCalls++
	if s.FailNextOnce {
		s.FailNextOnce = false
		return 0, driver.ErrSwapchain
	}
	return 0, nil
}

func (s *Swapchain) Present(index int, cb driver.CmdBuffer) error {
	s.PresentCalls++
	return nil
}

func (s *Swapchain) Recreate() error {
	s.RecreateCalls++
	return nil
}

func (s *Swapchain) Format() driver.PixelFmt { return s.format }

// Window is a fake wsi.Window with a fixed size.
type Window struct {
	W, H  int
	title string
}

func (w *Window) Map() error               { return nil }
func (w *Window) Unmap() error             { return nil }
func (w *Window) Resize(wd, ht int) error  { w.W, w.H = wd, ht; return nil }
func (w *Window) SetTitle(t string) error  { w.title = t; return nil }
func (w *Window) Close()                   {}
func (w *Window) Width() int               { return w.W }
func (w *Window) Height() int              { return w.H }
func (w *Window) Title() string            { return w.title }

var _ wsi.Window = (*Window)(nil)

// GPU is a fake driver.GPU (and driver.Presenter) that hands out the
// fakes above. CommitCalls records every batch committed, in order,
// so tests can assert on submission ordering; the completion channel
// is signalled synchronously since there is no real async execution
// to wait for.
type GPU struct {
	NewCmdBufferCalls int
	NewBufferCalls    int
	NewImageCalls     int
	CommitCalls       []*driver.WorkItem

	// Swapchains created via NewSwapchain, keyed by window, so a test
	// can reach into one and set FailNextOnce.
	Swapchains map[wsi.Window]*Swapchain

	FailNewSwapchain bool
}

func NewGPU() *GPU {
	return &GPU{Swapchains: make(map[wsi.Window]*Swapchain)}
}

func (g *GPU) Driver() driver.Driver { panic("testgpu: Driver not used") }

func (g *GPU) Commit(wk *driver.WorkItem, ch chan<- *driver.WorkItem) error {
	g.CommitCalls = append(g.CommitCalls, wk)
	wk.Err = nil
	ch <- wk
	return nil
}

func (g *GPU) NewCmdBuffer() (driver.CmdBuffer, error) {
	g.NewCmdBufferCalls++
	return &CmdBuffer{}, nil
}

func (g *GPU) NewRenderPass(att []driver.Attachment, sub []driver.Subpass) (driver.RenderPass, error) {
	return &RenderPass{}, nil
}

func (g *GPU) NewShaderCode(data []byte) (driver.ShaderCode, error) { return &ShaderCode{}, nil }

func (g *GPU) NewDescHeap(ds []driver.Descriptor) (driver.DescHeap, error) {
	return &DescHeap{descs: ds}, nil
}

func (g *GPU) NewDescTable(dh []driver.DescHeap) (driver.DescTable, error) { return &DescTable{}, nil }

func (g *GPU) NewPipeline(state any) (driver.Pipeline, error) { return &Pipeline{}, nil }

func (g *GPU) NewBuffer(size int64, visible bool, usg driver.Usage) (driver.Buffer, error) {
	g.NewBufferCalls++
	if size <= 0 {
		return nil, fmt.Errorf("testgpu: invalid buffer size %d", size)
	}
	return &Buffer{visible: visible, data: make([]byte, size)}, nil
}

func (g *GPU) NewImage(pf driver.PixelFmt, size driver.Dim3D, layers, levels, samples int, usg driver.Usage) (driver.Image, error) {
	g.NewImageCalls++
	return &Image{Format: pf, Size: size}, nil
}

func (g *GPU) NewSampler(spln *driver.Sampling) (driver.Sampler, error) { return &Sampler{}, nil }

func (g *GPU) Limits() driver.Limits { return driver.Limits{} }

func (g *GPU) NewSwapchain(win wsi.Window, imageCount int) (driver.Swapchain, error) {
	if g.FailNewSwapchain {
		return nil, driver.ErrCannotPresent
	}
	sc := &Swapchain{view: &ImageView{}}
	g.Swapchains[win] = sc
	return sc, nil
}

var (
	_ driver.GPU        = (*GPU)(nil)
	_ driver.Presenter  = (*GPU)(nil)
	_ driver.CmdBuffer  = (*CmdBuffer)(nil)
	_ driver.Buffer     = (*Buffer)(nil)
	_ driver.Image      = (*Image)(nil)
	_ driver.ImageView  = (*ImageView)(nil)
	_ driver.RenderPass = (*RenderPass)(nil)
	_ driver.Framebuf   = (*Framebuf)(nil)
	_ driver.Swapchain  = (*Swapchain)(nil)
	_ driver.DescHeap   = (*DescHeap)(nil)
	_ driver.DescTable  = (*DescTable)(nil)
	_ driver.ShaderCode = (*ShaderCode)(nil)
	_ driver.Pipeline   = (*Pipeline)(nil)
	_ driver.Sampler    = (*Sampler)(nil)
)
