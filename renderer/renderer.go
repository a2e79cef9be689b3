// Package renderer is the top-level frame pipeline: it owns N
// triple-buffered FrameData slots, drives each through
// clear → record → acquire → process → dispatch, and exposes the
// application-facing Renderer API (Setup, Update,
// Produce*ResourceHandle, swapchain management) on top of the
// lower-level handle, pipeline, graph, backend, and swapchain
// packages.
package renderer

import (
	"errors"
	"fmt"
	"log"

	"github.com/vitreousgfx/forge/backend"
	"github.com/vitreousgfx/forge/driver"
	"github.com/vitreousgfx/forge/graph"
	"github.com/vitreousgfx/forge/handle"
	"github.com/vitreousgfx/forge/pipeline"
	"github.com/vitreousgfx/forge/shadersrc"
	"github.com/vitreousgfx/forge/swapchain"
	"github.com/vitreousgfx/forge/wsi"
)

// State is a FrameData slot's position in its state machine.
type State int

// Recognized states. Negative values other than Initial are failures
// reached only from the state whose operation failed; a slot in a Failed*
// state is skipped until its next ClearFrame, which always succeeds
// in returning it to Cleared (or the cycle would never recover).
const (
	FailedClear    State = -4
	FailedDispatch State = -3
	FailedAcquire  State = -2
	Initial        State = -1
	Cleared        State = 0
	Recorded       State = 1
	Acquired       State = 2
	Processed      State = 3
	Dispatched     State = 4
)

func (s State) String() string {
	switch s {
	case FailedClear:
		return "failed-clear"
	case FailedDispatch:
		return "failed-dispatch"
	case FailedAcquire:
		return "failed-acquire"
	case Initial:
		return "initial"
	case Cleared:
		return "cleared"
	case Recorded:
		return "recorded"
	case Acquired:
		return "acquired"
	case Processed:
		return "processed"
	case Dispatched:
		return "dispatched"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// FrameData is the per-slot state the renderer advances through the
// clear/record/acquire/process/dispatch rotation.
type FrameData struct {
	State       State
	Module      *graph.Module
	FrameNumber uint64

	schedule *graph.Schedule
	encoded  []graph.Encoded
}

// ErrCycle is returned by Update when a frame's render graph
// contains a topological cycle: a process-fatal error per spec.md
// §7, since the schedule cannot be built at all.
var ErrCycle = errors.New("renderer: render graph has a cycle")

// RenderTarget is the (render pass, framebuffer, clear values)
// triple a graphics pass's commands are recorded against. The
// application supplies these by calling SetPassRenderTarget from
// within the pass's setup callback (or at module-construction time,
// if the target does not vary frame to frame).
type RenderTarget struct {
	Pass  driver.RenderPass
	Fb    driver.Framebuf
	Clear []driver.ClearValue
}

// Renderer drives the frame pipeline described in spec.md §4.6 on
// top of a Backend, a pipeline Manager, a swapchain Manager, and the
// shared resource-handle Registry all four packages reference
// handles from.
type Renderer struct {
	backend    *backend.Backend
	pipelines  *pipeline.Manager
	swapchains *swapchain.Manager
	handles    *handle.Registry

	numFrames           int
	frames              []FrameData
	currentFrameNumber  uint64

	pipelineBindings map[*handle.Handle]pipelineBinding
	imageBindings    map[*handle.Handle]driver.Image
	renderTargets    map[*graph.Pass]RenderTarget

	// OnStateChange, if set, is called after every slot transition;
	// tests use it to assert the rotation visits each state in
	// order (spec.md §8 scenario 3).
	OnStateChange func(slot int, from, to State)
}

type pipelineBinding struct {
	pl    driver.Pipeline
	table driver.DescTable
}

// Config configures a new Renderer.
type Config struct {
	NumFrames int // defaults to 3 if <= 0
}

// DefaultConfig is the configuration used when New is called with
// the zero Config.
var DefaultConfig = Config{NumFrames: 3}

// New creates a Renderer with N frame slots (Config.NumFrames,
// default 3) backed by gpu, compiling shaders through compiler.
func New(cfg Config, gpu driver.GPU, compiler shadersrc.Compiler) (*Renderer, error) {
	if cfg.NumFrames <= 0 {
		cfg.NumFrames = DefaultConfig.NumFrames
	}
	handles := handle.NewRegistry()
	pipelines, err := pipeline.NewManager(gpu, compiler, handles)
	if err != nil {
		return nil, fmt.Errorf("renderer: %w", err)
	}
	be, err := backend.New(gpu, pipelines, handles, cfg.NumFrames)
	if err != nil {
		return nil, fmt.Errorf("renderer: %w", err)
	}
	r := &Renderer{
		backend:          be,
		pipelines:        pipelines,
		swapchains:       swapchain.NewManager(gpu, handles),
		handles:          handles,
		numFrames:        cfg.NumFrames,
		frames:           make([]FrameData, cfg.NumFrames),
		pipelineBindings: make(map[*handle.Handle]pipelineBinding),
		imageBindings:    make(map[*handle.Handle]driver.Image),
		renderTargets:    make(map[*graph.Pass]RenderTarget),
	}
	for i := range r.frames {
		r.frames[i].State = Initial
	}
	return r, nil
}

// Destroy releases the renderer's backend and pipeline manager.
func (r *Renderer) Destroy() error {
	r.backend.Close()
	return r.pipelines.Close()
}

// Setup attaches the swapchains described by settings (a linked
// list; see swapchain.Settings.Next) to the renderer.
func (r *Renderer) Setup(settings swapchain.Settings) (*handle.Handle, error) {
	return r.swapchains.AddSwapchain(settings)
}

// SetupWithWindow is a convenience wrapper that attaches a single
// windowed swapchain bound to win.
func (r *Renderer) SetupWithWindow(win wsi.Window) (*handle.Handle, error) {
	return r.swapchains.AddSwapchain(swapchain.Settings{Kind: swapchain.Windowed, Window: win})
}

// Swapchains exposes the underlying swapchain.Manager for
// add/remove/resize/extent/resource operations (spec.md §6).
func (r *Renderer) Swapchains() *swapchain.Manager { return r.swapchains }

// Handles exposes the shared resource-handle registry.
func (r *Renderer) Handles() *handle.Registry { return r.handles }

// Pipelines exposes the pipeline manager.
func (r *Renderer) Pipelines() *pipeline.Manager { return r.pipelines }

// ProduceImgResourceHandle interns a handle for an image resource.
func (r *Renderer) ProduceImgResourceHandle(name string, flags handle.Flags, samples int) *handle.Handle {
	return r.handles.InternResource(name, handle.Image, flags, samples, 0, nil)
}

// ProduceBufResourceHandle interns a handle for a buffer resource.
func (r *Renderer) ProduceBufResourceHandle(name string, flags handle.Flags) *handle.Handle {
	return r.handles.InternResource(name, handle.Buffer, flags, 1, 0, nil)
}

// ProduceTLASResourceHandle interns a handle for a top-level
// acceleration structure.
func (r *Renderer) ProduceTLASResourceHandle(name string, flags handle.Flags) *handle.Handle {
	return r.handles.InternResource(name, handle.TLAS, flags, 1, 0, nil)
}

// ProduceBLASResourceHandle interns a handle for a bottom-level
// acceleration structure.
func (r *Renderer) ProduceBLASResourceHandle(name string, flags handle.Flags) *handle.Handle {
	return r.handles.InternResource(name, handle.BLAS, flags, 1, 0, nil)
}

// ProduceTextureResourceHandle interns a handle for a named texture.
func (r *Renderer) ProduceTextureResourceHandle(name string) *handle.Handle {
	return r.handles.InternTexture(name)
}

// BindImage associates a resource handle (as produced by one of the
// Produce*ResourceHandle methods) with the concrete driver.Image it
// should resolve to when a pass's commands reference it. Applications
// call this once a resource's physical backing is known. This is the
// only way a handle resolves to an image: swapchain resource handles
// are not bound automatically, neither by GetSwapchainResource nor by
// the acquire step.
func (r *Renderer) BindImage(h *handle.Handle, img driver.Image) { r.imageBindings[h] = img }

// BindPipeline associates a pipeline handle produced by the
// pipeline manager with the driver.Pipeline/DescTable a pass should
// bind when its commands reference it.
func (r *Renderer) BindPipeline(h *handle.Handle, pl driver.Pipeline, table driver.DescTable) {
	r.pipelineBindings[h] = pipelineBinding{pl, table}
}

// SetPassRenderTarget records the render pass, framebuffer, and
// clear values a graph.Pass's commands should be recorded against.
// Call this from the pass's setup callback (or once, for a static
// render target) before Update builds the schedule that contains it.
func (r *Renderer) SetPassRenderTarget(p *graph.Pass, rt RenderTarget) { r.renderTargets[p] = rt }

type resolver struct{ r *Renderer }

func (res resolver) Pipeline(h *handle.Handle) (driver.Pipeline, driver.DescTable, bool) {
	b, ok := res.r.pipelineBindings[h]
	return b.pl, b.table, ok
}

func (res resolver) Image(h *handle.Handle) (driver.Image, bool) {
	img, ok := res.r.imageBindings[h]
	return img, ok
}

func (res resolver) RenderTarget(p *graph.Pass) (driver.RenderPass, driver.Framebuf, []driver.ClearValue, bool) {
	rt, ok := res.r.renderTargets[p]
	return rt.Pass, rt.Fb, rt.Clear, ok
}

// Update advances the frame pipeline by one tick: it records module
// into the slot F mod N, runs acquire→process→dispatch on slot
// (F+2) mod N, clears slot (F+1) mod N, then increments F. Per
// spec.md §4.6, shader hot-reload runs once per Update, before
// recording.
func (r *Renderer) Update(module *graph.Module) error {
	r.pipelines.UpdateShaderModules()

	n := r.numFrames
	f := r.currentFrameNumber
	recordSlot := int(f % uint64(n))
	dispatchSlot := int((f + 2) % uint64(n))
	clearSlot := int((f + 1) % uint64(n))

	if err := r.record(recordSlot, module, f); err != nil {
		return err
	}
	// A freshly-started renderer has no prior frame in the other
	// two slots yet for the first N-1 ticks; skip rotation steps
	// whose slot has never been recorded.
	if r.frames[dispatchSlot].State == Recorded {
		r.acquireProcessDispatch(dispatchSlot)
	}
	switch r.frames[clearSlot].State {
	case Dispatched, FailedDispatch, FailedAcquire, FailedClear:
		r.clear(clearSlot)
	}

	r.currentFrameNumber++
	return nil
}

func (r *Renderer) transition(slot int, to State) {
	from := r.frames[slot].State
	r.frames[slot].State = to
	if r.OnStateChange != nil {
		r.OnStateChange(slot, from, to)
	}
}

func (r *Renderer) record(slot int, module *graph.Module, frameNumber uint64) error {
	st := r.frames[slot].State
	if st != Cleared && st != Initial {
		return fmt.Errorf("renderer: slot %d: %w: state is %v, want cleared or initial", ErrNotRecordable, slot, st)
	}

	sched, err := graph.Build(module, frameNumber)
	if err != nil {
		var cycle *graph.ErrCycle
		if errors.As(err, &cycle) {
			return fmt.Errorf("%w: %v", ErrCycle, err)
		}
		return fmt.Errorf("renderer: building schedule for slot %d: %w", slot, err)
	}
	if len(sched.Passes) == 0 {
		log.Printf("renderer: slot %d: schedule is empty after pruning, synthesizing a no-op clear pass", slot)
		sched = synthesizeClearSchedule(module)
	}
	encoded := graph.Execute(sched)

	r.frames[slot].Module = module
	r.frames[slot].FrameNumber = frameNumber
	r.frames[slot].schedule = sched
	r.frames[slot].encoded = encoded
	r.transition(slot, Recorded)
	return nil
}

// synthesizeClearSchedule implements open question (b): rather than
// leave a swapchain image in an undefined state when every pass was
// pruned away, schedule a single root pass whose execute callback
// records nothing (the render target's clear value alone paints it
// black, via the LClear load op on whatever render target the
// application bound).
func synthesizeClearSchedule(module *graph.Module) *graph.Schedule {
	p := graph.NewPass("synthetic-clear", graph.Graphics)
	p.SetIsRoot(true)
	noop := graph.NewModule()
	noop.AddPass(p)
	sched, err := graph.Build(noop, 0)
	if err != nil {
		// A single root pass with no resource uses can never
		// cycle or fail to prune.
		panic("renderer: synthesizeClearSchedule: " + err.Error())
	}
	return sched
}

// ErrNotRecordable is wrapped by record's error when a slot is not
// in a state Update is allowed to record into.
var ErrNotRecordable = errors.New("slot not recordable")

func (r *Renderer) acquireProcessDispatch(slot int) {
	acquireSwapchains := func(cb driver.CmdBuffer) error {
		return r.swapchains.AcquireSwapchainResources(cb)
	}
	sched, encoded := r.frames[slot].schedule, r.frames[slot].encoded

	if err := r.backend.AcquirePhysicalResources(slot, sched, encoded, acquireSwapchains); err != nil {
		log.Printf("renderer: slot %d: acquire failed: %v", slot, err)
		r.transition(slot, FailedAcquire)
		return
	}
	r.transition(slot, Acquired)

	if err := r.backend.ProcessFrame(slot, resolver{r}); err != nil {
		log.Printf("renderer: slot %d: process failed: %v", slot, err)
		r.transition(slot, FailedDispatch)
		return
	}
	r.transition(slot, Processed)

	beforePresent := func(cb driver.CmdBuffer) error {
		return r.swapchains.PresentResources(cb)
	}
	if err := r.backend.DispatchFrame(slot, beforePresent); err != nil {
		log.Printf("renderer: slot %d: dispatch failed: %v", slot, err)
		r.transition(slot, FailedDispatch)
		return
	}
	r.transition(slot, Dispatched)
}

func (r *Renderer) clear(slot int) {
	if err := r.backend.ClearFrame(slot); err != nil {
		log.Printf("renderer: slot %d: clear failed: %v", slot, err)
		r.transition(slot, FailedClear)
		return
	}
	r.transition(slot, Cleared)
}
