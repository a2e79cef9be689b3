// Package pipeline implements the pipeline manager: a set of
// content-addressed caches for shader modules, descriptor-set
// layouts (descriptor heaps) and concrete pipeline objects; pipeline
// layouts (descriptor tables) are built anew on each call. It
// also owns shader hot-reload: a watched shader file that changes
// on disk is recompiled and any pipeline built from it is
// invalidated, without aborting whatever frame is in flight.
package pipeline

import (
	"fmt"
	"hash/fnv"
	"log"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/vitreousgfx/forge/driver"
	"github.com/vitreousgfx/forge/handle"
	"github.com/vitreousgfx/forge/shadersrc"
)

// ShaderModule is a compiled, cached shader module plus the
// reflection data recovered from it.
type ShaderModule struct {
	key     uint64
	req     shadersrc.Request
	code    driver.ShaderCode
	reflect shadersrc.ReflectInfo
}

// Code returns the driver-level shader code for use in a
// driver.ShaderFunc.
func (m *ShaderModule) Code() driver.ShaderCode { return m.code }

// Reflect returns the reflection info recovered from the shader.
func (m *ShaderModule) Reflect() shadersrc.ReflectInfo { return m.reflect }

// GraphicsState is the content-hashed key for a graphics
// pipeline: the combination of shader modules, render pass and
// subpass the pipeline is valid for, plus fixed-function state.
type GraphicsState struct {
	Vert, Frag *ShaderModule
	Pass       driver.RenderPass
	Subpass    int
	Input      []driver.VertexIn
	Topology   driver.Topology
	Raster     driver.RasterState
	Samples    int
	DS         driver.DSState
	Blend      driver.BlendState
	Desc       driver.DescTable
}

// ComputeState is the content-hashed key for a compute pipeline.
type ComputeState struct {
	Comp *ShaderModule
	Desc driver.DescTable
}

// RTXState is the content-hashed key for a ray-tracing pipeline.
type RTXState struct {
	RayGen, Miss, ClosestHit *ShaderModule
	Desc                     driver.DescTable
}

// Manager deduplicates shader modules, descriptor-set layouts and
// pipelines by content hash (descriptor tables are not cached), and drives
// shader hot-reload. The zero value is not usable; use NewManager.
type Manager struct {
	gpu      driver.GPU
	compiler shadersrc.Compiler
	handles  *handle.Registry
	watcher  *fsnotify.Watcher

	mu        sync.Mutex
	modules   map[uint64]*ShaderModule
	descHeaps map[uint64]driver.DescHeap
	pipelines map[uint64]driver.Pipeline
	// watchedBy maps a watched path to the module keys that were
	// compiled from it, so a file-change event can invalidate
	// every pipeline built on top of them.
	watchedBy map[string][]uint64
	// dependents maps a module key to the pipeline keys built
	// from it.
	dependents map[uint64][]uint64
}

// NewManager creates a Manager that builds pipelines through gpu
// and compiles shaders through compiler. handles is used to mint
// stable handles for newly produced shader modules and pipelines.
func NewManager(gpu driver.GPU, compiler shadersrc.Compiler, handles *handle.Registry) (*Manager, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("pipeline: creating shader watcher: %w", err)
	}
	return &Manager{
		gpu:        gpu,
		compiler:   compiler,
		handles:    handles,
		watcher:    w,
		modules:    make(map[uint64]*ShaderModule),
		descHeaps:  make(map[uint64]driver.DescHeap),
		pipelines:  make(map[uint64]driver.Pipeline),
		watchedBy:  make(map[string][]uint64),
		dependents: make(map[uint64][]uint64),
	}, nil
}

// Close releases the shader file watcher.
func (m *Manager) Close() error { return m.watcher.Close() }

func shaderKey(req shadersrc.Request) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%d|%s", req.Path, req.Stage, strings.Join(req.Defines, ","))
	return h.Sum64()
}

// ProduceShaderModule returns the cached module for req if one
// exists, otherwise compiles it via the external shader compiler,
// caches it and starts watching its source path for hot-reload.
// Compile failure is returned to the caller; it never invalidates
// an existing cached module for the same key.
func (m *Manager) ProduceShaderModule(req shadersrc.Request) (*ShaderModule, error) {
	key := shaderKey(req)

	m.mu.Lock()
	if mod, ok := m.modules[key]; ok {
		m.mu.Unlock()
		return mod, nil
	}
	m.mu.Unlock()

	res, err := m.compiler.Compile(req)
	if err != nil {
		return nil, fmt.Errorf("pipeline: compiling %s: %w", req.Path, err)
	}
	code, err := m.gpu.NewShaderCode(res.Code)
	if err != nil {
		return nil, fmt.Errorf("pipeline: creating shader code for %s: %w", req.Path, err)
	}
	mod := &ShaderModule{key: key, req: req, code: code, reflect: res.Reflect}

	m.mu.Lock()
	m.modules[key] = mod
	m.watchedBy[req.Path] = append(m.watchedBy[req.Path], key)
	m.mu.Unlock()

	if err := m.watcher.Add(req.Path); err != nil {
		log.Printf("pipeline: could not watch %s for hot-reload: %v", req.Path, err)
	}
	return mod, nil
}

func descKey(bindings map[int][]shadersrc.Binding) uint64 {
	h := fnv.New64a()
	for set := 0; set < 32; set++ {
		bs, ok := bindings[set]
		if !ok {
			continue
		}
		for _, b := range bs {
			fmt.Fprintf(h, "%d:%d:%d:%d|", set, b.Number, b.Kind, b.Count)
		}
	}
	return h.Sum64()
}

func toDescType(k shadersrc.BindingKind) driver.DescType {
	switch k {
	case shadersrc.BindBuffer:
		return driver.DBuffer
	case shadersrc.BindImage:
		return driver.DImage
	case shadersrc.BindConstant:
		return driver.DConstant
	case shadersrc.BindTexture:
		return driver.DTexture
	case shadersrc.BindSampler:
		return driver.DSampler
	default:
		return driver.DBuffer
	}
}

// ProduceDescTable builds (or returns the cached) descriptor
// table for the merged reflection info of the given shader
// modules. Bindings are merged by set index across all modules,
// as the render pass may bind vertex and fragment stages that
// share a set.
func (m *Manager) ProduceDescTable(mods ...*ShaderModule) (driver.DescTable, error) {
	merged := make(map[int][]shadersrc.Binding)
	for _, mod := range mods {
		for set, bs := range mod.reflect.Bindings {
			merged[set] = append(merged[set], bs...)
		}
	}
	key := descKey(merged)

	m.mu.Lock()
	// Descriptor tables are cheap to rebuild and the driver owns
	// their lifetime, so only the per-set heaps are cached; the
	// table itself is assembled fresh from the cached heaps.
	heaps := make([]driver.DescHeap, 0, len(merged))
	for set := 0; set < 32; set++ {
		bs, ok := merged[set]
		if !ok {
			continue
		}
		hkey := key ^ uint64(set)*0x9E3779B97F4A7C15
		dh, ok := m.descHeaps[hkey]
		if !ok {
			descs := make([]driver.Descriptor, len(bs))
			for i, b := range bs {
				count := b.Count
				if count < 1 {
					count = 1
				}
				descs[i] = driver.Descriptor{Type: toDescType(b.Kind), Stages: driver.SVertex | driver.SFragment, Nr: b.Number, Len: count}
			}
			var err error
			dh, err = m.gpu.NewDescHeap(descs)
			if err != nil {
				m.mu.Unlock()
				return nil, fmt.Errorf("pipeline: creating descriptor heap for set %d: %w", set, err)
			}
			m.descHeaps[hkey] = dh
		}
		heaps = append(heaps, dh)
	}
	m.mu.Unlock()

	table, err := m.gpu.NewDescTable(heaps)
	if err != nil {
		return nil, fmt.Errorf("pipeline: creating descriptor table: %w", err)
	}
	return table, nil
}

func hashState(v any) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%#v", v)
	return h.Sum64()
}

// ProduceGraphicsPipeline returns the cached pipeline for state if
// one matches; otherwise it builds and caches one. Pipelines are
// invalidated (and rebuilt on next use) when a shader module they
// were built from is hot-reloaded.
func (m *Manager) ProduceGraphicsPipeline(name string, state GraphicsState) (*handle.Handle, driver.Pipeline, error) {
	key := hashState(state)

	m.mu.Lock()
	if p, ok := m.pipelines[key]; ok {
		m.mu.Unlock()
		h := m.handles.InternResource(name, handle.PipelineGraphics, 0, 1, 0, nil)
		return h, p, nil
	}
	m.mu.Unlock()

	gs := &driver.GraphState{
		VertFunc: driver.ShaderFunc{Code: state.Vert.Code(), Name: "main"},
		FragFunc: driver.ShaderFunc{Code: state.Frag.Code(), Name: "main"},
		Desc:     state.Desc,
		Input:    state.Input,
		Topology: state.Topology,
		Raster:   state.Raster,
		Samples:  state.Samples,
		DS:       state.DS,
		Blend:    state.Blend,
		Pass:     state.Pass,
		Subpass:  state.Subpass,
	}
	p, err := m.gpu.NewPipeline(gs)
	if err != nil {
		return nil, nil, fmt.Errorf("pipeline: creating graphics pipeline %q: %w", name, err)
	}

	m.mu.Lock()
	m.pipelines[key] = p
	for _, mod := range []*ShaderModule{state.Vert, state.Frag} {
		m.dependents[mod.key] = append(m.dependents[mod.key], key)
	}
	m.mu.Unlock()

	h := m.handles.InternResource(name, handle.PipelineGraphics, 0, 1, 0, nil)
	return h, p, nil
}

// ProduceComputePipeline returns the cached compute pipeline for
// state, building and caching one if necessary.
func (m *Manager) ProduceComputePipeline(name string, state ComputeState) (*handle.Handle, driver.Pipeline, error) {
	key := hashState(state)

	m.mu.Lock()
	if p, ok := m.pipelines[key]; ok {
		m.mu.Unlock()
		h := m.handles.InternResource(name, handle.PipelineCompute, 0, 1, 0, nil)
		return h, p, nil
	}
	m.mu.Unlock()

	cs := &driver.CompState{
		Func: driver.ShaderFunc{Code: state.Comp.Code(), Name: "main"},
		Desc: state.Desc,
	}
	p, err := m.gpu.NewPipeline(cs)
	if err != nil {
		return nil, nil, fmt.Errorf("pipeline: creating compute pipeline %q: %w", name, err)
	}

	m.mu.Lock()
	m.pipelines[key] = p
	m.dependents[state.Comp.key] = append(m.dependents[state.Comp.key], key)
	m.mu.Unlock()

	h := m.handles.InternResource(name, handle.PipelineCompute, 0, 1, 0, nil)
	return h, p, nil
}

// UpdateShaderModules checks for shader-file change notifications
// and recompiles any that fired, invalidating dependent cached
// pipelines. It is non-blocking: it drains whatever events are
// already queued and returns immediately if there are none. It is
// meant to be called once per Renderer.Update, before recording.
func (m *Manager) UpdateShaderModules() {
	for {
		select {
		case ev, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			m.reloadPath(ev.Name)
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("pipeline: shader watcher error: %v", err)
		default:
			return
		}
	}
}

func (m *Manager) reloadPath(path string) {
	m.mu.Lock()
	keys := append([]uint64(nil), m.watchedBy[path]...)
	m.mu.Unlock()

	for _, key := range keys {
		m.mu.Lock()
		mod := m.modules[key]
		m.mu.Unlock()
		if mod == nil {
			continue
		}
		res, err := m.compiler.Compile(mod.req)
		if err != nil {
			// Recoverable across frames: keep the previous
			// module live and retry on the next change.
			log.Printf("pipeline: recompiling %s failed, keeping previous module: %v", path, err)
			continue
		}
		code, err := m.gpu.NewShaderCode(res.Code)
		if err != nil {
			log.Printf("pipeline: creating shader code for %s failed: %v", path, err)
			continue
		}

		m.mu.Lock()
		mod.code = code
		mod.reflect = res.Reflect
		dependents := m.dependents[key]
		for _, pkey := range dependents {
			delete(m.pipelines, pkey)
		}
		delete(m.dependents, key)
		m.mu.Unlock()
	}
}
