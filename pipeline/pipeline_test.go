package pipeline_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vitreousgfx/forge/driver"
	"github.com/vitreousgfx/forge/handle"
	"github.com/vitreousgfx/forge/pipeline"
	"github.com/vitreousgfx/forge/shadersrc"
)

// fakeDestroyer satisfies driver.Destroyer for every fake resource
// type the fake GPU below hands out.
type fakeDestroyer struct{ destroyed bool }

func (d *fakeDestroyer) Destroy() { d.destroyed = true }

type fakeShaderCode struct{ fakeDestroyer }
type fakeDescHeap struct {
	fakeDestroyer
	descs []driver.Descriptor
}

func (h *fakeDescHeap) New(n int) error                                              { return nil }
func (h *fakeDescHeap) SetBuffer(cpy, nr, start int, buf []driver.Buffer, off, size []int64) {}
func (h *fakeDescHeap) SetImage(cpy, nr, start int, iv []driver.ImageView)            {}
func (h *fakeDescHeap) SetSampler(cpy, nr, start int, splr []driver.Sampler)          {}
func (h *fakeDescHeap) Count() int                                                    { return 1 }

type fakeDescTable struct{ fakeDestroyer }
type fakePipeline struct{ fakeDestroyer }

// fakeGPU implements just enough of driver.GPU for the pipeline
// manager to exercise: shader-code, descriptor-heap/table and
// pipeline creation. Every other method except Limits panics if
// called, since the pipeline manager never needs them.
type fakeGPU struct {
	newShaderCodeCalls int
	newPipelineCalls   int
}

func (g *fakeGPU) Driver() driver.Driver { panic("not used") }
func (g *fakeGPU) Commit(wk *driver.WorkItem, ch chan<- *driver.WorkItem) error {
	panic("not used")
}
func (g *fakeGPU) NewCmdBuffer() (driver.CmdBuffer, error) { panic("not used") }
func (g *fakeGPU) NewRenderPass(att []driver.Attachment, sub []driver.Subpass) (driver.RenderPass, error) {
	panic("not used")
}
func (g *fakeGPU) NewShaderCode(data []byte) (driver.ShaderCode, error) {
	g.newShaderCodeCalls++
	return &fakeShaderCode{}, nil
}
func (g *fakeGPU) NewDescHeap(ds []driver.Descriptor) (driver.DescHeap, error) {
	return &fakeDescHeap{descs: ds}, nil
}
func (g *fakeGPU) NewDescTable(dh []driver.DescHeap) (driver.DescTable, error) {
	return &fakeDescTable{}, nil
}
func (g *fakeGPU) NewPipeline(state any) (driver.Pipeline, error) {
	g.newPipelineCalls++
	return &fakePipeline{}, nil
}
func (g *fakeGPU) NewBuffer(size int64, visible bool, usg driver.Usage) (driver.Buffer, error) {
	panic("not used")
}
func (g *fakeGPU) NewImage(pf driver.PixelFmt, size driver.Dim3D, layers, levels, samples int, usg driver.Usage) (driver.Image, error) {
	panic("not used")
}
func (g *fakeGPU) NewSampler(spln *driver.Sampling) (driver.Sampler, error) { panic("not used") }
func (g *fakeGPU) Limits() driver.Limits                                   { return driver.Limits{} }

// fakeCompiler compiles by reading the request's path from disk
// and counts its calls in compiles, so tests can assert
// recompilation happened after a file-change notification.
type fakeCompiler struct {
	reflect   shadersrc.ReflectInfo
	failNext  bool
	compiles  int
}

func (c *fakeCompiler) Compile(req shadersrc.Request) (shadersrc.Result, error) {
	c.compiles++
	if c.failNext {
		c.failNext = false
		return shadersrc.Result{}, errors.New("injected compile failure")
	}
	data, err := os.ReadFile(req.Path)
	if err != nil {
		return shadersrc.Result{}, err
	}
	return shadersrc.Result{Code: data, Reflect: c.reflect}, nil
}

func writeShader(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("writing fixture shader: %v", err)
	}
	return p
}

func TestProduceShaderModuleCaches(t *testing.T) {
	dir := t.TempDir()
	path := writeShader(t, dir, "frag.spv", "v1")

	gpu := &fakeGPU{}
	comp := &fakeCompiler{}
	mgr, err := pipeline.NewManager(gpu, comp, handle.NewRegistry())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	defer mgr.Close()

	req := shadersrc.Request{Path: path, Stage: shadersrc.StageFragment}
	m1, err := mgr.ProduceShaderModule(req)
	if err != nil {
		t.Fatalf("ProduceShaderModule: %v", err)
	}
	m2, err := mgr.ProduceShaderModule(req)
	if err != nil {
		t.Fatalf("ProduceShaderModule (cached): %v", err)
	}
	if m1 != m2 {
		t.Fatalf("ProduceShaderModule returned distinct modules for an identical request")
	}
	if comp.compiles != 1 {
		t.Fatalf("expected exactly 1 compile, got %d", comp.compiles)
	}
	if gpu.newShaderCodeCalls != 1 {
		t.Fatalf("expected exactly 1 NewShaderCode call, got %d", gpu.newShaderCodeCalls)
	}
}

func TestProduceShaderModuleDistinguishesDefines(t *testing.T) {
	dir := t.TempDir()
	path := writeShader(t, dir, "frag.spv", "v1")

	mgr, err := pipeline.NewManager(&fakeGPU{}, &fakeCompiler{}, handle.NewRegistry())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	defer mgr.Close()

	base := shadersrc.Request{Path: path, Stage: shadersrc.StageFragment}
	withDefine := shadersrc.Request{Path: path, Stage: shadersrc.StageFragment, Defines: []string{"USE_FOG"}}

	a, err := mgr.ProduceShaderModule(base)
	if err != nil {
		t.Fatalf("ProduceShaderModule(base): %v", err)
	}
	b, err := mgr.ProduceShaderModule(withDefine)
	if err != nil {
		t.Fatalf("ProduceShaderModule(withDefine): %v", err)
	}
	if a == b {
		t.Fatalf("requests differing only in Defines collapsed to the same module")
	}
}

func TestProduceGraphicsPipelineCachesByState(t *testing.T) {
	dir := t.TempDir()
	vpath := writeShader(t, dir, "vert.spv", "vert-code")
	fpath := writeShader(t, dir, "frag.spv", "frag-code")

	gpu := &fakeGPU{}
	comp := &fakeCompiler{reflect: shadersrc.ReflectInfo{
		Bindings: map[int][]shadersrc.Binding{
			0: {{Number: 0, Kind: shadersrc.BindConstant, Count: 1}},
		},
	}}
	mgr, err := pipeline.NewManager(gpu, comp, handle.NewRegistry())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	defer mgr.Close()

	vert, err := mgr.ProduceShaderModule(shadersrc.Request{Path: vpath, Stage: shadersrc.StageVertex})
	if err != nil {
		t.Fatalf("ProduceShaderModule(vert): %v", err)
	}
	frag, err := mgr.ProduceShaderModule(shadersrc.Request{Path: fpath, Stage: shadersrc.StageFragment})
	if err != nil {
		t.Fatalf("ProduceShaderModule(frag): %v", err)
	}
	table, err := mgr.ProduceDescTable(vert, frag)
	if err != nil {
		t.Fatalf("ProduceDescTable: %v", err)
	}

	state := pipeline.GraphicsState{
		Vert:     vert,
		Frag:     frag,
		Topology: driver.TTriangle,
		Samples:  1,
		Desc:     table,
	}
	h1, p1, err := mgr.ProduceGraphicsPipeline("opaque", state)
	if err != nil {
		t.Fatalf("ProduceGraphicsPipeline: %v", err)
	}
	h2, p2, err := mgr.ProduceGraphicsPipeline("opaque", state)
	if err != nil {
		t.Fatalf("ProduceGraphicsPipeline (cached): %v", err)
	}
	if p1 != p2 {
		t.Fatalf("ProduceGraphicsPipeline rebuilt an identical state instead of returning the cached pipeline")
	}
	if h1 != h2 {
		t.Fatalf("ProduceGraphicsPipeline returned distinct handles for the same cached pipeline")
	}
	if gpu.newPipelineCalls != 1 {
		t.Fatalf("expected exactly 1 NewPipeline call, got %d", gpu.newPipelineCalls)
	}
	if h1.Kind() != handle.PipelineGraphics {
		t.Fatalf("expected a PipelineGraphics handle, got %s", h1.Kind())
	}
}

func TestUpdateShaderModulesInvalidatesDependentPipelines(t *testing.T) {
	dir := t.TempDir()
	vpath := writeShader(t, dir, "vert.spv", "vert-code")
	fpath := writeShader(t, dir, "frag.spv", "frag-code")

	gpu := &fakeGPU{}
	comp := &fakeCompiler{}
	mgr, err := pipeline.NewManager(gpu, comp, handle.NewRegistry())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	defer mgr.Close()

	vert, err := mgr.ProduceShaderModule(shadersrc.Request{Path: vpath, Stage: shadersrc.StageVertex})
	if err != nil {
		t.Fatalf("ProduceShaderModule(vert): %v", err)
	}
	frag, err := mgr.ProduceShaderModule(shadersrc.Request{Path: fpath, Stage: shadersrc.StageFragment})
	if err != nil {
		t.Fatalf("ProduceShaderModule(frag): %v", err)
	}
	table, err := mgr.ProduceDescTable(vert, frag)
	if err != nil {
		t.Fatalf("ProduceDescTable: %v", err)
	}

	state := pipeline.GraphicsState{Vert: vert, Frag: frag, Topology: driver.TTriangle, Samples: 1, Desc: table}
	_, p1, err := mgr.ProduceGraphicsPipeline("opaque", state)
	if err != nil {
		t.Fatalf("ProduceGraphicsPipeline: %v", err)
	}

	// Touch the fragment source and give the watcher time to see it.
	if err := os.WriteFile(fpath, []byte("frag-code-v2"), 0o644); err != nil {
		t.Fatalf("rewriting fixture shader: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mgr.UpdateShaderModules()
		if gpu.newShaderCodeCalls >= 3 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	_, p2, err := mgr.ProduceGraphicsPipeline("opaque", state)
	if err != nil {
		t.Fatalf("ProduceGraphicsPipeline (after reload): %v", err)
	}
	if p1 == p2 {
		t.Fatalf("pipeline was not rebuilt after its shader module was hot-reloaded")
	}
}

func TestUpdateShaderModulesKeepsPreviousModuleOnCompileFailure(t *testing.T) {
	dir := t.TempDir()
	fpath := writeShader(t, dir, "frag.spv", "frag-code")

	comp := &fakeCompiler{}
	mgr, err := pipeline.NewManager(&fakeGPU{}, comp, handle.NewRegistry())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	defer mgr.Close()

	mod, err := mgr.ProduceShaderModule(shadersrc.Request{Path: fpath, Stage: shadersrc.StageFragment})
	if err != nil {
		t.Fatalf("ProduceShaderModule: %v", err)
	}
	before := mod.Code()

	comp.failNext = true
	if err := os.WriteFile(fpath, []byte("broken"), 0o644); err != nil {
		t.Fatalf("rewriting fixture shader: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mgr.UpdateShaderModules()
		if comp.compiles >= 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if mod.Code() != before {
		t.Fatalf("module code changed despite a failed recompile")
	}
}
