// Package graph implements the render graph: application-declared
// passes and resources are resolved, once per frame, into a pruned,
// topologically ordered schedule with inferred synchronization
// metadata. Two phases run inside Build: setup (invoke each pass's
// setup callback, merging its resource declarations) and build
// (prune non-contributing passes by reverse reachability from the
// root passes, then topologically sort the survivors). A third
// phase, Execute, invokes each scheduled pass's execute callback
// against a fresh encoder.
package graph

import (
	"fmt"
	"log"

	"github.com/vitreousgfx/forge/driver"
	"github.com/vitreousgfx/forge/encoder"
	"github.com/vitreousgfx/forge/handle"
)

// QueueClass identifies the kind of GPU queue a pass's work targets.
type QueueClass int

// Queue classes.
const (
	Graphics QueueClass = iota
	Compute
	Transfer
)

func (q QueueClass) String() string {
	switch q {
	case Compute:
		return "compute"
	case Transfer:
		return "transfer"
	default:
		return "graphics"
	}
}

// Access describes how a pass uses a resource.
type Access int

// Resource access modes.
const (
	Read Access = 1 << iota
	Write
	ReadWrite = Read | Write
)

// ResourceUse records a single resource reference made by a pass
// during its setup callback.
type ResourceUse struct {
	Handle *handle.Handle
	Access Access
	Stages driver.Stage
	Sync   driver.Sync
}

// SetupFunc declares the resources a pass will use. It returns
// false to veto the pass's own inclusion in the schedule; a vetoed
// pass allocates nothing and is dropped before the build phase
// runs.
type SetupFunc func(p *Pass) bool

// ExecuteFunc records a pass's commands into enc. It runs only for
// passes that survive pruning, in schedule order.
type ExecuteFunc func(p *Pass, enc *encoder.Encoder)

// Pass is a single bounded unit of GPU work: a name, a queue class,
// a setup callback that declares resource uses, an execute callback
// that records commands, and an optional root flag.
type Pass struct {
	Name   string
	Queue  QueueClass
	IsRoot bool

	setup   SetupFunc
	execute ExecuteFunc
	uses    []ResourceUse

	declOrder int // assigned by Module.AddPass; breaks sort ties
}

// NewPass creates a pass. Use the Set*/UseResource methods (or set
// IsRoot directly) before adding it to a Module.
func NewPass(name string, queue QueueClass) *Pass {
	return &Pass{Name: name, Queue: queue}
}

// SetSetupCallback sets the pass's setup callback.
func (p *Pass) SetSetupCallback(fn SetupFunc) { p.setup = fn }

// SetExecuteCallback sets the pass's execute callback.
func (p *Pass) SetExecuteCallback(fn ExecuteFunc) { p.execute = fn }

// SetIsRoot marks the pass as a root of the reachability walk
// (typically a pass that writes to a swapchain image).
func (p *Pass) SetIsRoot(isRoot bool) { p.IsRoot = isRoot }

// UseResource records a resource reference. It is meant to be
// called from within the pass's setup callback; calling it at any
// other time still works but the use will not be visible to a Build
// call already in progress.
func (p *Pass) UseResource(h *handle.Handle, access Access, stages driver.Stage, sync driver.Sync) {
	p.uses = append(p.uses, ResourceUse{Handle: h, Access: access, Stages: stages, Sync: sync})
}

// Uses returns the resource uses declared so far.
func (p *Pass) Uses() []ResourceUse { return p.uses }

// ResourceInfo is the declarative description of a resource
// declared directly on a Module, outside of any pass's own use
// (e.g. an externally-persistent image the backend must reconcile
// physical storage for).
type ResourceInfo struct {
	Format  driver.PixelFmt
	Size    driver.Dim3D
	Layers  int
	Levels  int
	Samples int
	Usage   driver.Usage
	// BufSize and BufUsage apply when the resource is a buffer
	// rather than an image; Format/Size/Layers/Levels/Samples are
	// meaningless in that case.
	BufSize  int64
	BufUsage driver.Usage
}

// Module is a bag of passes plus optional externally-declared
// resources. It becomes ordered only after a call to Build.
type Module struct {
	passes    []*Pass
	declared  map[*handle.Handle]ResourceInfo
	declOrder []*handle.Handle
}

// NewModule creates an empty Module.
func NewModule() *Module {
	return &Module{declared: make(map[*handle.Handle]ResourceInfo)}
}

// AddPass appends a pass to the module, in declaration order.
func (m *Module) AddPass(p *Pass) {
	p.declOrder = len(m.passes)
	m.passes = append(m.passes, p)
}

// DeclareResource registers a resource's declarative description
// with the module, independent of any pass's own declarations.
func (m *Module) DeclareResource(h *handle.Handle, info ResourceInfo) {
	if _, ok := m.declared[h]; !ok {
		m.declOrder = append(m.declOrder, h)
	}
	m.declared[h] = info
}

// resourceState tracks the passes (in final schedule order) that
// read and write a resource, used to compute first/last pass index.
type resourceState struct {
	writers []int // indices into Schedule.Passes
	readers []int
}

// Schedule is the result of Build: the pruned, topologically
// ordered list of contributing passes plus the per-resource and
// per-root metadata the backend needs to synchronize and dispatch
// them.
type Schedule struct {
	Passes []*Pass

	// DeclaredResources mirrors Module.declared, carried through so
	// the backend can reconcile physical storage for resources that
	// no surviving pass happens to reference directly.
	DeclaredResources map[*handle.Handle]ResourceInfo

	// FirstUse and LastUse give, for every resource referenced by
	// any scheduled pass, the index (into Passes) of its first and
	// last use of any kind.
	FirstUse map[*handle.Handle]int
	LastUse  map[*handle.Handle]int

	// RootAffinity assigns every root pass's dependency subgraph a
	// queue-submission affinity mask. A mask of 0 means "default
	// graphics queue" (see DESIGN.md for the open-question
	// resolution this preserves from the source).
	RootAffinity map[*Pass]AffinityMask
}

// AffinityMask is a bitmask of queues a root pass's subgraph may be
// submitted on.
type AffinityMask uint32

// Default-graphics affinity, preserved from the source: a root
// pass's mask is zero unless the application overrides it, and
// zero is interpreted as "submit on the default graphics queue."
const AffinityDefault AffinityMask = 0

// ErrCycle reports a topological-sort cycle: a fatal programming
// error per spec.md §4.4, meant to abort the frame rather than be
// silently worked around.
type ErrCycle struct{ Pass string }

func (e *ErrCycle) Error() string {
	return fmt.Sprintf("graph: cycle detected involving pass %q", e.Pass)
}

// Build runs the setup and pruning/ordering phases over module and
// returns the resulting Schedule. It does not invoke any execute
// callback; call Execute on the result to do that.
func Build(module *Module, frameNumber uint64) (*Schedule, error) {
	// Setup phase: invoke every pass's setup callback. A callback
	// returning false vetoes the pass outright, before it is ever
	// considered for pruning.
	var survivors []*Pass
	for _, p := range module.passes {
		if p.setup != nil && !p.setup(p) {
			continue
		}
		survivors = append(survivors, p)
	}

	// Build phase: reverse-reachability prune from the roots, then
	// topologically sort by write-before-read edges.
	contributing, err := prune(survivors)
	if err != nil {
		return nil, err
	}
	ordered, err := topoSort(contributing)
	if err != nil {
		return nil, err
	}

	sched := &Schedule{
		Passes:            ordered,
		DeclaredResources: module.declared,
		FirstUse:          make(map[*handle.Handle]int),
		LastUse:           make(map[*handle.Handle]int),
		RootAffinity:      make(map[*Pass]AffinityMask),
	}
	for i, p := range ordered {
		for _, u := range p.uses {
			if _, ok := sched.FirstUse[u.Handle]; !ok {
				sched.FirstUse[u.Handle] = i
			}
			sched.LastUse[u.Handle] = i
		}
		if p.IsRoot {
			sched.RootAffinity[p] = AffinityDefault
		}
	}
	return sched, nil
}

// writersOf builds, for every handle referenced by passes, the list
// of passes (by index into the input slice) that write it.
func writersOf(passes []*Pass) map[*handle.Handle][]int {
	writers := make(map[*handle.Handle][]int)
	for i, p := range passes {
		for _, u := range p.uses {
			if u.Access&Write != 0 {
				writers[u.Handle] = append(writers[u.Handle], i)
			}
		}
	}
	return writers
}

// prune performs the reverse-reachability walk described in
// spec.md §4.4: starting from the root passes, a pass P contributes
// iff some contributing pass reads a resource that P writes. The
// result preserves declaration order.
func prune(passes []*Pass) ([]*Pass, error) {
	writers := writersOf(passes)

	contributes := make([]bool, len(passes))
	var queue []int
	for i, p := range passes {
		if p.IsRoot {
			contributes[i] = true
			queue = append(queue, i)
		}
	}

	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		p := passes[i]
		for _, u := range p.uses {
			if u.Access&Read == 0 {
				continue
			}
			for _, wi := range writers[u.Handle] {
				if !contributes[wi] {
					contributes[wi] = true
					queue = append(queue, wi)
				}
			}
		}
	}

	var out []*Pass
	for i, p := range passes {
		if !contributes[i] {
			continue
		}
		if missingWriter(p, writers) {
			log.Printf("graph: pass %q reads a resource with no writer in this frame; a default resource will be substituted", p.Name)
		}
		out = append(out, p)
	}
	return out, nil
}

func missingWriter(p *Pass, writers map[*handle.Handle][]int) bool {
	for _, u := range p.uses {
		if u.Access&Read == 0 {
			continue
		}
		if len(writers[u.Handle]) == 0 {
			return true
		}
	}
	return false
}

// topoSort orders passes so that, for every resource with a writer
// W and a reader Rd both present in passes, W appears before Rd.
// Ties (passes with no ordering constraint between them) are broken
// by original declaration order, for determinism. A cycle is
// reported as *ErrCycle, a fatal programming error per spec.md.
func topoSort(passes []*Pass) ([]*Pass, error) {
	n := len(passes)
	indexOf := make(map[*Pass]int, n)
	for i, p := range passes {
		indexOf[p] = i
	}

	// adj[i] lists indices of passes that must come after i.
	adj := make([][]int, n)
	indeg := make([]int, n)
	writers := writersOf(passes)
	seen := make(map[[2]int]bool)
	for _, p := range passes {
		for _, u := range p.uses {
			if u.Access&Read == 0 {
				continue
			}
			ri := indexOf[p]
			for _, wi := range writers[u.Handle] {
				if wi == ri {
					continue
				}
				key := [2]int{wi, ri}
				if seen[key] {
					continue
				}
				seen[key] = true
				adj[wi] = append(adj[wi], ri)
				indeg[ri]++
			}
		}
	}

	// Kahn's algorithm with a min-heap-by-declaration-order
	// substitute: since declOrder is already the slice order here,
	// a simple ready-queue scanned in index order reproduces stable
	// tie-breaking without needing a real heap.
	ready := make([]bool, n)
	var readyList []int
	for i := 0; i < n; i++ {
		if indeg[i] == 0 {
			ready[i] = true
			readyList = append(readyList, i)
		}
	}

	var out []*Pass
	for len(readyList) > 0 {
		// pick the smallest index among ready passes for a stable,
		// declaration-order tie-break
		best := 0
		for i := 1; i < len(readyList); i++ {
			if readyList[i] < readyList[best] {
				best = i
			}
		}
		i := readyList[best]
		readyList = append(readyList[:best], readyList[best+1:]...)

		out = append(out, passes[i])
		for _, j := range adj[i] {
			indeg[j]--
			if indeg[j] == 0 {
				ready[j] = true
				readyList = append(readyList, j)
			}
		}
	}

	if len(out) != n {
		for i := range passes {
			if indeg[i] > 0 {
				return nil, &ErrCycle{Pass: passes[i].Name}
			}
		}
		return nil, &ErrCycle{Pass: "unknown"}
	}
	return out, nil
}

// Encoded holds the command stream produced by Execute for a single
// scheduled pass.
type Encoded struct {
	Pass    *Pass
	Data    []byte
	Handles []*handle.Handle
	NumCmds int
}

// Execute runs the execute callback of every pass in sched, in
// schedule order, each against a fresh Encoder, and returns the
// encoded command stream for each.
func Execute(sched *Schedule) []Encoded {
	out := make([]Encoded, 0, len(sched.Passes))
	for _, p := range sched.Passes {
		enc := encoder.New()
		if p.execute != nil {
			p.execute(p, enc)
		}
		data, handles, n := enc.GetEncodedData()
		out = append(out, Encoded{Pass: p, Data: data, Handles: handles, NumCmds: n})
	}
	return out
}
