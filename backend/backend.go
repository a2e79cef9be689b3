// Package backend turns a graph.Schedule's encoded pass command
// streams into actual driver.CmdBuffer calls, and owns the
// per-frame-slot resources a schedule needs: command buffers, a
// transient bump allocator for small per-frame uploads, and a
// staging allocator for image/buffer copies. It is the lowest
// layer that talks to a concrete driver.GPU; renderer drives it
// frame by frame.
package backend

import (
	"errors"
	"fmt"

	"github.com/vitreousgfx/forge/driver"
	"github.com/vitreousgfx/forge/encoder"
	"github.com/vitreousgfx/forge/graph"
	"github.com/vitreousgfx/forge/handle"
	"github.com/vitreousgfx/forge/pipeline"
)

// ErrNotCleared is returned by AcquirePhysicalResources and
// ProcessFrame when called on a slot that is not in the state the
// call requires (e.g. ProcessFrame called before
// AcquirePhysicalResources).
var ErrNotCleared = errors.New("backend: frame slot not ready for this call")

// slot holds the per-frame-slot GPU state a schedule's recorded
// commands execute against.
type slot struct {
	cb transientCmdBuffer
	wk chan *driver.WorkItem

	transient *transientAllocator

	recording bool
	schedule  *graph.Schedule
	encoded   []graph.Encoded
}

// transientCmdBuffer is the slot's command buffer, the same value
// held in wk's WorkItem; it is set once by New and reused for every
// frame recorded into the slot.
type transientCmdBuffer = driver.CmdBuffer

// Backend owns a GPU, a pipeline manager, the resource handle
// registry shared with the render graph, and one slot per
// triple-buffered frame in flight.
type Backend struct {
	gpu       driver.GPU
	pipelines *pipeline.Manager
	handles   *handle.Registry
	staging   *stagingAllocator

	slots []*slot
}

// New creates a Backend with n frame slots (typically 3, to match
// the triple-buffering scheme in package renderer).
func New(gpu driver.GPU, pipelines *pipeline.Manager, handles *handle.Registry, n int) (*Backend, error) {
	if n < 1 {
		return nil, fmt.Errorf("backend: frame slot count must be positive, got %d", n)
	}
	st, err := newStagingAllocator(gpu)
	if err != nil {
		return nil, fmt.Errorf("backend: %w", err)
	}
	b := &Backend{gpu: gpu, pipelines: pipelines, handles: handles, staging: st}
	b.slots = make([]*slot, n)
	for i := range b.slots {
		cb, err := gpu.NewCmdBuffer()
		if err != nil {
			return nil, fmt.Errorf("backend: creating command buffer for slot %d: %w", i, err)
		}
		wk := make(chan *driver.WorkItem, 1)
		wk <- &driver.WorkItem{Work: []driver.CmdBuffer{cb}}
		b.slots[i] = &slot{
			cb:        cb,
			wk:        wk,
			transient: newTransientAllocator(gpu),
		}
	}
	return b, nil
}

// Close releases every frame slot's resources and the staging
// allocator.
func (b *Backend) Close() {
	for _, s := range b.slots {
		wk := <-s.wk
		wk.Work[0].Destroy()
		s.transient.destroy()
	}
	b.staging.destroy()
}

// NumSlots returns the number of frame slots.
func (b *Backend) NumSlots() int { return len(b.slots) }

// ClearFrame resets slotIdx for a new frame: it waits for the
// previous dispatch on that slot to complete, resets the command
// buffer and the slot's transient allocator, and drops the
// previous schedule/encoded command streams.
func (b *Backend) ClearFrame(slotIdx int) error {
	s := b.slots[slotIdx]
	wk := <-s.wk
	wk.Err = nil
	if s.recording {
		if err := wk.Work[0].Reset(); err != nil {
			s.wk <- wk
			return fmt.Errorf("backend: resetting slot %d: %w", slotIdx, err)
		}
	}
	s.recording = false
	s.schedule = nil
	s.encoded = nil
	s.transient.reset()
	s.wk <- wk
	return nil
}

// AcquirePhysicalResources begins recording slotIdx's command
// buffer, stores sched/encoded for ProcessFrame to translate, and
// calls acquireSwapchains (if non-nil) with the freshly-begun
// command buffer so it can acquire whatever swapchain images this
// frame's root passes present to. A swapchain acquire that fails
// with driver.ErrSwapchain is the caller's responsibility to retry
// (package swapchain does so once, via Recreate, per the policy
// recorded in DESIGN.md).
func (b *Backend) AcquirePhysicalResources(slotIdx int, sched *graph.Schedule, encoded []graph.Encoded, acquireSwapchains func(driver.CmdBuffer) error) error {
	s := b.slots[slotIdx]
	if s.recording {
		return fmt.Errorf("backend: %w: slot %d already recording", ErrNotCleared, slotIdx)
	}
	wk := <-s.wk
	defer func() { s.wk <- wk }()

	if err := wk.Work[0].Begin(); err != nil {
		return fmt.Errorf("backend: beginning slot %d: %w", slotIdx, err)
	}
	s.recording = true
	s.schedule = sched
	s.encoded = encoded
	if acquireSwapchains != nil {
		if err := acquireSwapchains(wk.Work[0]); err != nil {
			return fmt.Errorf("backend: acquiring swapchain resources for slot %d: %w", slotIdx, err)
		}
	}
	return nil
}

// ResourceResolver resolves the handles a render-graph pass
// referenced during setup into the concrete driver objects the
// backend issues commands against, and supplies the render pass and
// framebuffer a graphics pass should bind.
type ResourceResolver interface {
	Pipeline(h *handle.Handle) (driver.Pipeline, driver.DescTable, bool)
	Image(h *handle.Handle) (driver.Image, bool)
	RenderTarget(p *graph.Pass) (driver.RenderPass, driver.Framebuf, []driver.ClearValue, bool)
}

// ProcessFrame translates every scheduled pass's encoded command
// stream into calls against slotIdx's command buffer, using res to
// resolve the handles those commands reference.
func (b *Backend) ProcessFrame(slotIdx int, res ResourceResolver) error {
	s := b.slots[slotIdx]
	if !s.recording {
		return fmt.Errorf("backend: %w: slot %d", ErrNotCleared, slotIdx)
	}
	wk := <-s.wk
	cb := wk.Work[0]
	s.wk <- wk

	for _, enc := range s.encoded {
		cmds, err := encoder.Decode(enc.Data, enc.Handles)
		if err != nil {
			return fmt.Errorf("backend: decoding pass %q: %w", enc.Pass.Name, err)
		}
		if err := b.issuePass(cb, s, enc.Pass, cmds, res); err != nil {
			return fmt.Errorf("backend: processing pass %q: %w", enc.Pass.Name, err)
		}
	}
	return nil
}

func (b *Backend) issuePass(cb driver.CmdBuffer, s *slot, p *graph.Pass, cmds []encoder.Command, res ResourceResolver) error {
	switch p.Queue {
	case graph.Compute:
		cb.BeginWork(false)
		defer cb.EndWork()
	case graph.Transfer:
		cb.BeginBlit(false)
		defer cb.EndBlit()
	default:
		rp, fb, clear, ok := res.RenderTarget(p)
		if !ok {
			return fmt.Errorf("no render target bound for pass %q", p.Name)
		}
		cb.BeginPass(rp, fb, clear)
		defer cb.EndPass()
	}

	var table driver.DescTable
	for _, c := range cmds {
		switch c.Op {
		case encoder.OpBindPipeline:
			pl, tb, ok := res.Pipeline(c.Pipeline)
			if !ok {
				return fmt.Errorf("unresolved pipeline handle %v", c.Pipeline)
			}
			cb.SetPipeline(pl)
			table = tb
		case encoder.OpBindArgData:
			if table == nil {
				return errors.New("set-argument-data with no pipeline bound")
			}
			if p.Queue == graph.Compute {
				cb.SetDescTableComp(table, c.Table, nil)
			} else {
				cb.SetDescTableGraph(table, c.Table, nil)
			}
		case encoder.OpSetVertexData:
			buf, off, err := s.transient.upload(c.Data)
			if err != nil {
				return fmt.Errorf("staging vertex data: %w", err)
			}
			cb.SetVertexBuf(c.Slot, []driver.Buffer{buf}, []int64{off})
		case encoder.OpSetIndexData:
			buf, off, err := s.transient.upload(c.Data)
			if err != nil {
				return fmt.Errorf("staging index data: %w", err)
			}
			cb.SetIndexBuf(driver.IndexFmt(c.IndexFormat), buf, off)
		case encoder.OpDraw:
			cb.Draw(c.VertCount, c.InstCount, c.BaseVert, c.BaseInst)
		case encoder.OpDrawIndexed:
			cb.DrawIndexed(c.IdxCount, c.InstCount, c.BaseIdx, c.VertOff, c.BaseInst)
		case encoder.OpDispatch:
			cb.Dispatch(c.GroupX, c.GroupY, c.GroupZ)
		case encoder.OpSetViewport:
			cb.SetViewport([]driver.Viewport{{
				X: c.Viewport.X, Y: c.Viewport.Y,
				Width: c.Viewport.Width, Height: c.Viewport.Height,
				Znear: c.Viewport.ZNear, Zfar: c.Viewport.ZFar,
			}})
		case encoder.OpSetScissor:
			cb.SetScissor([]driver.Scissor{{
				X: int(c.Scissor.X), Y: int(c.Scissor.Y),
				Width: int(c.Scissor.Width), Height: int(c.Scissor.Height),
			}})
		case encoder.OpSetLineWidth:
			// No driver.CmdBuffer equivalent: line width is baked
			// into RasterState at pipeline-creation time instead,
			// so this opcode is a no-op at issue time. It still
			// round-trips through the encoder for parity with the
			// pass-recording API.
		case encoder.OpMapImageMemory:
			img, ok := res.Image(c.Image)
			if !ok {
				return fmt.Errorf("unresolved image handle %v", c.Image)
			}
			off := driver.Off3D{X: int(c.Offset.X), Y: int(c.Offset.Y), Z: int(c.Offset.Z)}
			size := driver.Dim3D{Width: int(c.Size.Width), Height: int(c.Size.Height), Depth: int(c.Size.Depth)}
			if err := b.staging.copyToImage(cb, img, off, size, c.Data); err != nil {
				return fmt.Errorf("mapping image memory: %w", err)
			}
		case encoder.OpTraceRays:
			return errors.New("ray tracing dispatch is not supported by this driver backend")
		default:
			return fmt.Errorf("unhandled opcode %v", c.Op)
		}
	}
	return nil
}

// DispatchFrame records beforePresent (if non-nil, typically a
// swapchain Present call) against slotIdx's command buffer, ends
// recording, and commits it for execution. The backend's own wk
// channel receives the outcome; the next ClearFrame on this slot
// blocks on it.
func (b *Backend) DispatchFrame(slotIdx int, beforePresent func(driver.CmdBuffer) error) error {
	s := b.slots[slotIdx]
	if !s.recording {
		return fmt.Errorf("backend: %w: slot %d", ErrNotCleared, slotIdx)
	}
	wk := <-s.wk
	if beforePresent != nil {
		if err := beforePresent(wk.Work[0]); err != nil {
			s.wk <- wk
			return fmt.Errorf("backend: presenting slot %d: %w", slotIdx, err)
		}
	}
	if err := wk.Work[0].End(); err != nil {
		s.wk <- wk
		return fmt.Errorf("backend: ending slot %d: %w", slotIdx, err)
	}
	if err := b.gpu.Commit(wk, s.wk); err != nil {
		wk.Work[0].Reset()
		s.wk <- wk
		return fmt.Errorf("backend: committing slot %d: %w", slotIdx, err)
	}
	return nil
}
