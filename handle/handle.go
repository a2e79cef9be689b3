// Package handle implements the resource-handle registry: the
// interning of stable, pointer-identity tokens for every GPU
// resource the render graph can reference (images, buffers,
// acceleration structures, textures, shader modules, pipelines
// and samplers).
//
// Handles are minted once and pinned for the lifetime of the
// process. This sidesteps the dangling-reference problem a
// reloadable-plugin architecture otherwise has to solve, at the
// cost of never reclaiming a handle's debug-name slot until
// shutdown, which is an explicit, accepted tradeoff (see
// DESIGN.md).
package handle

import (
	"fmt"
	"sync"
)

// Kind identifies the sort of GPU resource a Handle names.
type Kind int

// Resource kinds.
const (
	Image Kind = iota
	Buffer
	TLAS
	BLAS
	Texture
	ShaderModule
	PipelineGraphics
	PipelineCompute
	PipelineRTX
	Sampler
)

func (k Kind) String() string {
	switch k {
	case Image:
		return "image"
	case Buffer:
		return "buffer"
	case TLAS:
		return "tlas"
	case BLAS:
		return "blas"
	case Texture:
		return "texture"
	case ShaderModule:
		return "shader-module"
	case PipelineGraphics:
		return "pipeline-graphics"
	case PipelineCompute:
		return "pipeline-compute"
	case PipelineRTX:
		return "pipeline-rtx"
	case Sampler:
		return "sampler"
	default:
		return "unknown"
	}
}

// Flags is a bitmask of resource creation flags. Its meaning is
// resource-kind specific; the registry only uses it as part of
// a resource's identity key.
type Flags int

// Handle is an opaque, interned, pointer-identity token for a
// GPU resource. Two handles obtained by interning with identical
// arguments always compare equal (same pointer); two handles
// obtained with different arguments are never equal.
//
// A Handle is safe to retain indefinitely and to use as a map
// key from any goroutine once obtained; the registry that
// created it guards mutation of the handle's own fields.
type Handle struct {
	kind    Kind
	name    string
	samples int
	flags   Flags
	index   int
	parent  *Handle
}

// Kind returns the resource kind the handle names.
func (h *Handle) Kind() Kind { return h.kind }

// Name returns the handle's debug name. Anonymous handles are
// assigned a synthetic name derived from their address so debug
// output remains unique even without an application-supplied
// name.
func (h *Handle) Name() string { return h.name }

// Samples returns the image sample count the handle was interned
// with. It is meaningless for non-image kinds.
func (h *Handle) Samples() int { return h.samples }

// Flags returns the creation flags the handle was interned with.
func (h *Handle) Flags() Flags { return h.flags }

// Index returns the sub-resource index (e.g. array layer or
// view index) the handle was interned with.
func (h *Handle) Index() int { return h.index }

// Parent returns the handle this one is a sub-view or alias of,
// or nil if it names a root resource.
func (h *Handle) Parent() *Handle { return h.parent }

func (h *Handle) String() string {
	return fmt.Sprintf("%s(%q)", h.kind, h.name)
}

// resourceKey identifies a non-texture resource handle. Two
// interned calls with identical keys always yield the same
// *Handle.
type resourceKey struct {
	name    string
	kind    Kind
	flags   Flags
	samples int
	index   int
	parent  *Handle
}

// Registry interns Handles. The zero value is not usable; call
// NewRegistry. A Registry is safe for concurrent use: the texture
// and resource maps are guarded by independent mutexes so interning
// a texture never blocks interning a resource and vice versa.
type Registry struct {
	texMu  sync.Mutex
	tex    map[string]*Handle
	anonTex int

	resMu  sync.Mutex
	res    map[resourceKey]*Handle
	anonRes int

	// store holds every Handle ever minted so pointers remain
	// stable: callers hold *Handle values directly, so the
	// backing slice must never be reallocated. A slice of
	// pointers to individually heap-allocated Handles achieves
	// this without an arena.
	storeMu sync.Mutex
	store   []*Handle
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		tex: make(map[string]*Handle),
		res: make(map[resourceKey]*Handle),
	}
}

func (r *Registry) intern(h *Handle) *Handle {
	r.storeMu.Lock()
	r.store = append(r.store, h)
	r.storeMu.Unlock()
	return h
}

// InternTexture interns a handle naming a Texture resource. If
// name is empty, a fresh handle is minted and tagged with a
// synthetic name so debug output stays unique; repeated calls
// with an empty name therefore always yield distinct handles.
// Repeated calls with the same non-empty name always yield the
// same handle.
func (r *Registry) InternTexture(name string) *Handle {
	r.texMu.Lock()
	defer r.texMu.Unlock()

	if name == "" {
		r.anonTex++
		h := &Handle{kind: Texture}
		h.name = fmt.Sprintf("texture@%p", h)
		return r.intern(h)
	}
	if h, ok := r.tex[name]; ok {
		return h
	}
	h := &Handle{kind: Texture, name: name}
	r.tex[name] = h
	return r.intern(h)
}

// InternResource interns a handle naming an Image, Buffer, TLAS,
// BLAS, ShaderModule, Pipeline or Sampler resource. If name is
// empty, a fresh handle is minted and tagged with a synthetic
// name. Repeated calls with identical arguments always yield the
// same handle, per the package-level stability invariant.
func (r *Registry) InternResource(name string, kind Kind, flags Flags, samples, index int, parent *Handle) *Handle {
	r.resMu.Lock()
	defer r.resMu.Unlock()

	if name == "" {
		r.anonRes++
		h := &Handle{kind: kind, flags: flags, samples: samples, index: index, parent: parent}
		h.name = fmt.Sprintf("%s@%p", kind, h)
		return r.intern(h)
	}
	key := resourceKey{name: name, kind: kind, flags: flags, samples: samples, index: index, parent: parent}
	if h, ok := r.res[key]; ok {
		return h
	}
	h := &Handle{kind: kind, name: name, flags: flags, samples: samples, index: index, parent: parent}
	r.res[key] = h
	return r.intern(h)
}

// LookupTexture returns the handle previously interned under
// name, if any.
func (r *Registry) LookupTexture(name string) (*Handle, bool) {
	r.texMu.Lock()
	defer r.texMu.Unlock()
	h, ok := r.tex[name]
	return h, ok
}

// Count returns the number of handles interned so far, of any
// kind. It is intended for diagnostics and tests.
func (r *Registry) Count() int {
	r.storeMu.Lock()
	defer r.storeMu.Unlock()
	return len(r.store)
}
