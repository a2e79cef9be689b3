package renderer_test

import (
	"testing"

	"github.com/vitreousgfx/forge/driver"
	"github.com/vitreousgfx/forge/encoder"
	"github.com/vitreousgfx/forge/graph"
	"github.com/vitreousgfx/forge/internal/testgpu"
	"github.com/vitreousgfx/forge/renderer"
	"github.com/vitreousgfx/forge/shadersrc"
)

type nopCompiler struct{}

func (nopCompiler) Compile(req shadersrc.Request) (shadersrc.Result, error) {
	return shadersrc.Result{}, nil
}

func newTestRenderer(t *testing.T, numFrames int) (*renderer.Renderer, *testgpu.GPU) {
	t.Helper()
	gpu := testgpu.NewGPU()
	r, err := renderer.New(renderer.Config{NumFrames: numFrames}, gpu, nopCompiler{})
	if err != nil {
		t.Fatalf("renderer.New: %v", err)
	}
	t.Cleanup(func() { r.Destroy() })
	return r, gpu
}

// TestTripleBufferRotationVisitsEveryState drives 6 Update calls with
// N=3 frame slots and checks that every slot is seen moving through
// Cleared -> Recorded -> Acquired -> Processed -> Dispatched and back
// to Cleared, matching the rotation table.
func TestTripleBufferRotationVisitsEveryState(t *testing.T) {
	r, _ := newTestRenderer(t, 3)

	colorImg := r.ProduceImgResourceHandle("color", 0, 1)
	rp := &testgpu.RenderPass{}
	fb := &testgpu.Framebuf{}

	var transitions []renderer.State
	r.OnStateChange = func(slot int, from, to renderer.State) {
		if slot == 0 {
			transitions = append(transitions, to)
		}
	}

	buildModule := func() *graph.Module {
		mod := graph.NewModule()
		p := graph.NewPass("draw", graph.Graphics)
		p.SetIsRoot(true)
		p.SetSetupCallback(func(p *graph.Pass) bool {
			p.UseResource(colorImg, graph.Write, driver.SFragment, 0)
			return true
		})
		p.SetExecuteCallback(func(p *graph.Pass, enc *encoder.Encoder) {
			enc.SetViewport(encoder.Viewport{Width: 1024, Height: 768})
		})
		r.SetPassRenderTarget(p, renderer.RenderTarget{Pass: rp, Fb: fb})
		mod.AddPass(p)
		return mod
	}

	for i := 0; i < 6; i++ {
		if err := r.Update(buildModule()); err != nil {
			t.Fatalf("Update %d: %v", i, err)
		}
	}

	// Slot 0 is recorded on tick 0, then its acquire/process/dispatch
	// happens on tick 1, and it is cleared again on tick 2. Over 6
	// ticks it should complete this full cycle twice.
	want := []renderer.State{
		renderer.Recorded,
		renderer.Acquired, renderer.Processed, renderer.Dispatched,
		renderer.Cleared,
		renderer.Recorded,
		renderer.Acquired, renderer.Processed, renderer.Dispatched,
		renderer.Cleared,
	}
	if len(transitions) != len(want) {
		t.Fatalf("slot 0 transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Fatalf("slot 0 transition[%d] = %v, want %v (full: %v)", i, transitions[i], want[i], transitions)
		}
	}
}

func TestUpdateRejectsCyclicModule(t *testing.T) {
	r, _ := newTestRenderer(t, 3)
	colorImg := r.ProduceImgResourceHandle("color", 0, 1)
	depthImg := r.ProduceImgResourceHandle("depth", 0, 1)

	a := graph.NewPass("a", graph.Graphics)
	a.SetIsRoot(true)
	a.SetSetupCallback(func(p *graph.Pass) bool {
		p.UseResource(colorImg, graph.Read, driver.SFragment, 0)
		p.UseResource(depthImg, graph.Write, driver.SFragment, 0)
		return true
	})
	b := graph.NewPass("b", graph.Graphics)
	b.SetIsRoot(true)
	b.SetSetupCallback(func(p *graph.Pass) bool {
		p.UseResource(depthImg, graph.Read, driver.SFragment, 0)
		p.UseResource(colorImg, graph.Write, driver.SFragment, 0)
		return true
	})
	mod := graph.NewModule()
	mod.AddPass(a)
	mod.AddPass(b)

	if err := r.Update(mod); err == nil {
		t.Fatal("expected Update to reject a cyclic module")
	}
}

func TestEmptyScheduleSynthesizesClearPass(t *testing.T) {
	r, _ := newTestRenderer(t, 1)
	// A module with a pass that vetoes itself produces an empty
	// schedule after pruning; Update must not error in this case.
	p := graph.NewPass("optional", graph.Graphics)
	p.SetSetupCallback(func(p *graph.Pass) bool { return false })
	mod := graph.NewModule()
	mod.AddPass(p)

	if err := r.Update(mod); err != nil {
		t.Fatalf("Update with an empty schedule: %v", err)
	}
}
