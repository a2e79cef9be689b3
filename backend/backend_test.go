package backend_test

import (
	"testing"

	"github.com/vitreousgfx/forge/backend"
	"github.com/vitreousgfx/forge/driver"
	"github.com/vitreousgfx/forge/encoder"
	"github.com/vitreousgfx/forge/graph"
	"github.com/vitreousgfx/forge/handle"
	"github.com/vitreousgfx/forge/internal/testgpu"
	"github.com/vitreousgfx/forge/pipeline"
	"github.com/vitreousgfx/forge/shadersrc"
)

type nopCompiler struct{}

func (nopCompiler) Compile(req shadersrc.Request) (shadersrc.Result, error) {
	return shadersrc.Result{}, nil
}

func newTestBackend(t *testing.T, n int) (*backend.Backend, *testgpu.GPU, *handle.Registry) {
	t.Helper()
	gpu := testgpu.NewGPU()
	handles := handle.NewRegistry()
	pipelines, err := pipeline.NewManager(gpu, nopCompiler{}, handles)
	if err != nil {
		t.Fatalf("pipeline.NewManager: %v", err)
	}
	t.Cleanup(func() { pipelines.Close() })
	be, err := backend.New(gpu, pipelines, handles, n)
	if err != nil {
		t.Fatalf("backend.New: %v", err)
	}
	t.Cleanup(be.Close)
	return be, gpu, handles
}

type fakeResolver struct {
	pipelines map[*handle.Handle]struct {
		pl    driver.Pipeline
		table driver.DescTable
	}
	images map[*handle.Handle]driver.Image
	rp     driver.RenderPass
	fb     driver.Framebuf
}

func (r fakeResolver) Pipeline(h *handle.Handle) (driver.Pipeline, driver.DescTable, bool) {
	b, ok := r.pipelines[h]
	return b.pl, b.table, ok
}
func (r fakeResolver) Image(h *handle.Handle) (driver.Image, bool) {
	img, ok := r.images[h]
	return img, ok
}
func (r fakeResolver) RenderTarget(p *graph.Pass) (driver.RenderPass, driver.Framebuf, []driver.ClearValue, bool) {
	if r.rp == nil {
		return nil, nil, nil, false
	}
	return r.rp, r.fb, []driver.ClearValue{{Color: [4]float32{0, 0, 0, 1}}}, true
}

func TestClearFrameRequiresAcquireBeforeProcess(t *testing.T) {
	be, _, _ := newTestBackend(t, 2)
	if err := be.ClearFrame(0); err != nil {
		t.Fatalf("ClearFrame: %v", err)
	}
	if err := be.ProcessFrame(0, fakeResolver{}); err == nil {
		t.Fatal("expected ProcessFrame to fail before AcquirePhysicalResources")
	}
}

func TestFrameLifecycleRunsPassCommands(t *testing.T) {
	be, gpu, handles := newTestBackend(t, 1)

	colorImg := handles.InternResource("color", handle.Image, 0, 1, 0, nil)

	root := graph.NewPass("clear-pass", graph.Graphics)
	root.SetIsRoot(true)
	root.SetSetupCallback(func(p *graph.Pass) bool {
		p.UseResource(colorImg, graph.Write, driver.SFragment, 0)
		return true
	})
	root.SetExecuteCallback(func(p *graph.Pass, enc *encoder.Encoder) {
		enc.Draw(3, 1, 0, 0)
	})
	mod := graph.NewModule()
	mod.AddPass(root)

	sched, err := graph.Build(mod, 0)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	encoded := graph.Execute(sched)

	if err := be.ClearFrame(0); err != nil {
		t.Fatalf("ClearFrame: %v", err)
	}
	if err := be.AcquirePhysicalResources(0, sched, encoded, nil); err != nil {
		t.Fatalf("AcquirePhysicalResources: %v", err)
	}

	fakeRP := &testgpu.RenderPass{}
	res := fakeResolver{rp: fakeRP, fb: &testgpu.Framebuf{}}
	if err := be.ProcessFrame(0, res); err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}
	if err := be.DispatchFrame(0, nil); err != nil {
		t.Fatalf("DispatchFrame: %v", err)
	}
	if len(gpu.CommitCalls) != 1 {
		t.Fatalf("expected exactly 1 Commit call, got %d", len(gpu.CommitCalls))
	}
}

func TestAcquirePhysicalResourcesInvokesSwapchainHook(t *testing.T) {
	be, _, _ := newTestBackend(t, 1)
	mod := graph.NewModule()
	sched, err := graph.Build(mod, 0)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	encoded := graph.Execute(sched)

	if err := be.ClearFrame(0); err != nil {
		t.Fatalf("ClearFrame: %v", err)
	}
	called := false
	hook := func(cb driver.CmdBuffer) error { called = true; return nil }
	if err := be.AcquirePhysicalResources(0, sched, encoded, hook); err != nil {
		t.Fatalf("AcquirePhysicalResources: %v", err)
	}
	if !called {
		t.Fatal("acquireSwapchains hook was not invoked")
	}
	if err := be.ProcessFrame(0, fakeResolver{}); err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}
	if err := be.DispatchFrame(0, nil); err != nil {
		t.Fatalf("DispatchFrame: %v", err)
	}
}

func TestDispatchFrameInvokesBeforePresentHook(t *testing.T) {
	be, _, _ := newTestBackend(t, 1)
	mod := graph.NewModule()
	sched, err := graph.Build(mod, 0)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	encoded := graph.Execute(sched)

	if err := be.ClearFrame(0); err != nil {
		t.Fatalf("ClearFrame: %v", err)
	}
	if err := be.AcquirePhysicalResources(0, sched, encoded, nil); err != nil {
		t.Fatalf("AcquirePhysicalResources: %v", err)
	}
	if err := be.ProcessFrame(0, fakeResolver{}); err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}
	called := false
	if err := be.DispatchFrame(0, func(cb driver.CmdBuffer) error { called = true; return nil }); err != nil {
		t.Fatalf("DispatchFrame: %v", err)
	}
	if !called {
		t.Fatal("beforePresent hook was not invoked")
	}
}
