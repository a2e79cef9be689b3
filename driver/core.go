// Package driver defines the GPU contract that package backend issues
// commands against and that package renderer's frame pipeline drives:
// a device handle (GPU), command buffers recorded against it
// (CmdBuffer), and the resource types (Buffer, Image, Pipeline, ...)
// those commands operate on. The render graph and frame pipeline never
// import a concrete graphics API; everything they need is expressed
// here, so a new backend only has to satisfy these interfaces to be
// usable by the rest of the engine.
package driver

import "errors"

// Driver loads and unloads a concrete GPU implementation.
// A process constructs exactly one Driver value for whichever
// concrete backend it links in (see package driver/wgpu) and calls
// Open once to obtain the GPU that the rest of the engine will issue
// work against.
type Driver interface {
	// Open brings the driver online and returns its GPU.
	// Repeated calls on the same receiver must return the same GPU
	// instance without re-initializing anything. Open is not safe
	// to call from multiple goroutines concurrently.
	Open() (GPU, error)

	// Name identifies the driver, e.g. for logging or diagnostics.
	// Calling Name must never trigger initialization.
	Name() string

	// Close tears the driver down. Closing an unopened driver is a
	// no-op. Close is not safe to call concurrently with Open or
	// with itself. A driver may be reopened after Close.
	Close()
}

// Sentinel errors a Driver or GPU may return. Backends should wrap
// one of these with fmt.Errorf's %w so callers can classify a
// failure with errors.Is even when the underlying API's own error
// type differs across backends.
var (
	// ErrNoDevice means no adapter/device satisfying the driver's
	// requirements could be found on this system.
	ErrNoDevice = errors.New("driver: no suitable device found")

	// ErrNoHostMemory means a host-side allocation failed.
	ErrNoHostMemory = errors.New("driver: out of host memory")

	// ErrNoDeviceMemory means a device-side allocation failed.
	ErrNoDeviceMemory = errors.New("driver: out of device memory")

	// ErrFatal means the GPU is in an unrecoverable state. Once this
	// is returned, the caller must destroy every resource it created
	// through this GPU and close the owning Driver; Open may be
	// called again afterward to start over.
	ErrFatal = errors.New("driver: fatal error")
)

// GPU is the open handle to a concrete backend: it creates every
// other resource type in this package and is the only way to submit
// recorded commands for execution.
type GPU interface {
	// Driver returns the Driver that produced this GPU.
	Driver() Driver

	// Commit submits wk.Work for execution as a single batch. Wait
	// flags recorded via CmdBuffer.BeginWork/BeginBlit apply across
	// the whole batch, so the order of buffers in wk.Work matters.
	// wk is sent back on ch, with wk.Err set to the outcome, once
	// every command buffer in the batch has finished executing;
	// none of them may be recorded into again until then. ch may be
	// nil if the caller does not need a completion signal.
	Commit(wk *WorkItem, ch chan<- *WorkItem) error

	// NewCmdBuffer creates a command buffer ready for recording.
	NewCmdBuffer() (CmdBuffer, error)

	// NewRenderPass creates a render pass from its attachment and
	// subpass layout.
	NewRenderPass(att []Attachment, sub []Subpass) (RenderPass, error)

	// NewShaderCode compiles or loads shader binary data into a
	// backend-native module.
	NewShaderCode(data []byte) (ShaderCode, error)

	// NewDescHeap creates a descriptor heap from its layout.
	NewDescHeap(ds []Descriptor) (DescHeap, error)

	// NewDescTable groups a set of descriptor heaps into the
	// bindings a pipeline will use.
	NewDescTable(dh []DescHeap) (DescTable, error)

	// NewPipeline creates a pipeline from its state. state must be
	// a *GraphState or a *CompState.
	NewPipeline(state any) (Pipeline, error)

	// NewBuffer allocates a fixed-size buffer. visible requests
	// host-visible (CPU-mappable) memory.
	NewBuffer(size int64, visible bool, usg Usage) (Buffer, error)

	// NewImage allocates an image of the given format, size, layer
	// count, mip level count and sample count.
	NewImage(pf PixelFmt, size Dim3D, layers, levels, samples int, usg Usage) (Image, error)

	// NewSampler creates an image sampler from its state.
	NewSampler(spln *Sampling) (Sampler, error)

	// Limits reports the implementation's fixed capability limits.
	Limits() Limits
}

// WorkItem is one batch submitted to GPU.Commit: the command buffers
// to execute, together with an arbitrary Custom value the caller can
// use to recognize the batch when it comes back on the completion
// channel. Err carries the submission's outcome and is only valid
// once the WorkItem has been received on that channel.
type WorkItem struct {
	Work   []CmdBuffer
	Custom any
	Err    error
}

// Destroyer frees the external (non-GC-managed) memory or handles a
// resource holds. Every resource type in this package embeds it, and
// every value obtained from a GPU must eventually have Destroy called
// on it exactly once.
type Destroyer interface {
	Destroy()
}

// CmdBuffer records GPU work for later submission via GPU.Commit.
// Recording is organized into three kinds of logical block, matching
// the three graph.QueueClass values a render-graph pass can declare:
// a render block (BeginPass/EndPass, bracketing Draw* and Set* calls,
// one per render pass), a compute block (BeginWork/EndWork,
// bracketing Dispatch calls), and a copy block (BeginBlit/EndBlit,
// bracketing Copy*/Fill calls). A single CmdBuffer may record any
// number of these blocks in sequence, but they must not nest: one
// block must end before the next begins, and all must end before the
// final call to End.
//
// The full sequence is: Begin, then zero or more blocks in any
// combination, then End, then GPU.Commit (or Reset to discard
// everything recorded since the last Begin).
type CmdBuffer interface {
	Destroyer

	// Begin readies the command buffer for recording. It must be
	// called before any other recording method, and again after
	// the command buffer has been submitted or reset.
	Begin() error

	// BeginPass starts the first subpass of pass, rendering into fb.
	// clear supplies the load values for attachments configured with
	// LClear. Draw commands within one subpass may execute in any
	// order; ordering across subpasses follows the render pass's own
	// subpass dependency configuration.
	BeginPass(pass RenderPass, fb Framebuf, clear []ClearValue)

	// NextSubpass ends the current subpass and begins the next one.
	// It must not be called for a render pass's final subpass.
	NextSubpass()

	// EndPass ends the current render pass block.
	EndPass()

	// BeginWork starts a compute block. If wait is set, the GPU will
	// not begin this block's dispatches until every command recorded
	// earlier in this command buffer has finished.
	BeginWork(wait bool)

	// EndWork ends the current compute block.
	EndWork()

	// BeginBlit starts a copy block. If wait is set, the GPU will
	// not begin this block's copies until every command recorded
	// earlier in this command buffer has finished.
	BeginBlit(wait bool)

	// EndBlit ends the current copy block.
	EndBlit()

	// SetPipeline binds pl. Graphics and compute pipelines occupy
	// separate binding points.
	SetPipeline(pl Pipeline)

	// SetViewport sets one or more viewport rectangles.
	SetViewport(vp []Viewport)

	// SetScissor sets one or more scissor rectangles.
	SetScissor(sciss []Scissor)

	// SetBlendColor sets the constant blend color.
	SetBlendColor(r, g, b, a float32)

	// SetStencilRef sets the stencil reference value.
	SetStencilRef(value uint32)

	// SetVertexBuf binds one or more vertex buffers starting at
	// binding index start. Each off must be aligned to the stride
	// of the corresponding vertex input in the bound pipeline.
	SetVertexBuf(start int, buf []Buffer, off []int64)

	// SetIndexBuf binds the index buffer. off must be 4-byte
	// aligned.
	SetIndexBuf(format IndexFmt, buf Buffer, off int64)

	// SetDescTableGraph binds table's heap copies, starting at
	// binding index start, for use by the graphics pipeline.
	SetDescTableGraph(table DescTable, start int, heapCopy []int)

	// SetDescTableComp binds table's heap copies, starting at
	// binding index start, for use by the compute pipeline.
	SetDescTableComp(table DescTable, start int, heapCopy []int)

	// Draw issues a non-indexed draw. Valid only inside a render
	// pass block.
	Draw(vertCount, instCount, baseVert, baseInst int)

	// DrawIndexed issues an indexed draw. Valid only inside a render
	// pass block.
	DrawIndexed(idxCount, instCount, baseIdx, vertOff, baseInst int)

	// Dispatch issues a compute dispatch. Valid only inside a
	// compute block.
	Dispatch(grpCountX, grpCountY, grpCountZ int)

	// CopyBuffer copies between two buffers. Valid only inside a
	// copy block.
	CopyBuffer(param *BufferCopy)

	// CopyImage copies between two images. Valid only inside a copy
	// block.
	CopyImage(param *ImageCopy)

	// CopyBufToImg copies from a buffer into an image. Valid only
	// inside a copy block.
	CopyBufToImg(param *BufImgCopy)

	// CopyImgToBuf copies from an image into a buffer. Valid only
	// inside a copy block.
	CopyImgToBuf(param *BufImgCopy)

	// Fill writes size bytes of value starting at off in buf. Valid
	// only inside a copy block. off and size must be 4-byte aligned.
	Fill(buf Buffer, off int64, value byte, size int64)

	// Barrier inserts one or more global synchronization barriers.
	Barrier(b []Barrier)

	// Transition inserts one or more image layout transitions.
	Transition(t []Transition)

	// End closes recording and prepares the command buffer for
	// submission. No further recording is allowed until it has been
	// submitted or reset. On failure, the command buffer is reset.
	End() error

	// Reset discards everything recorded since the last Begin.
	Reset() error
}

// BufferCopy parameterizes a buffer-to-buffer copy.
type BufferCopy struct {
	From    Buffer
	FromOff int64
	To      Buffer
	ToOff   int64
	Size    int64
}

// ImageCopy parameterizes an image-to-image copy.
type ImageCopy struct {
	From      Image
	FromOff   Off3D
	FromLayer int
	FromLevel int
	To        Image
	ToOff     Off3D
	ToLayer   int
	ToLevel   int
	Size      Dim3D
	Layers    int
}

// BufImgCopy parameterizes a copy between a buffer and an image.
// BufOff must be 512-byte aligned; Stride[0] must be 256-byte
// aligned.
type BufImgCopy struct {
	Buf    Buffer
	BufOff int64
	// Stride gives the row length ([0]) and image height ([1]) used
	// to address image data within the buffer, in pixels.
	Stride [2]int64
	Img    Image
	ImgOff Off3D
	Layer  int
	Level  int
	Size   Dim3D
	// DepthCopy selects the depth aspect instead of stencil when Img
	// has a combined depth/stencil format.
	DepthCopy bool
}

// Sync is a mask of pipeline stages used to scope a synchronization
// barrier.
type Sync int

const (
	SVertexInput Sync = 1 << iota
	SVertexShading
	SFragmentShading
	SComputeShading
	SColorOutput
	SDSOutput
	SDraw
	SResolve
	SCopy
	SAll
	SNone Sync = 0
)

// Access is a mask of memory access kinds used to scope a
// synchronization barrier.
type Access int

const (
	AVertexBufRead Access = 1 << iota
	AIndexBufRead
	AColorRead
	AColorWrite
	ADSRead
	ADSWrite
	AResolveRead
	AResolveWrite
	ACopyRead
	ACopyWrite
	AShaderRead
	AShaderWrite
	AAnyRead
	AAnyWrite
	ANone Access = 0
)

// Layout names an image's physical memory layout at a point in a
// command buffer's recording.
type Layout int

const (
	LUndefined Layout = iota
	LCommon
	LColorTarget
	LDSTarget
	LDSRead
	LResolveSrc
	LResolveDst
	LCopySrc
	LCopyDst
	LShaderRead
	LPresent
)

// Barrier is a synchronization scope: work covered by SyncBefore and
// AccessBefore must complete and become visible before work covered
// by SyncAfter and AccessAfter may begin.
type Barrier struct {
	SyncBefore   Sync
	SyncAfter    Sync
	AccessBefore Access
	AccessAfter  Access
}

// Transition is a Barrier scoped to a single image subresource,
// additionally changing its layout from LayoutBefore to LayoutAfter.
// backend.stagingAllocator uses this to move an image from
// LUndefined into LCopyDst before a buffer-to-image copy.
type Transition struct {
	Barrier

	LayoutBefore Layout
	LayoutAfter  Layout
	IView        ImageView
}

// LoadOp is an attachment's load operation at the start of a render
// pass.
type LoadOp int

const (
	LDontCare LoadOp = iota
	LClear
	LLoad
)

// StoreOp is an attachment's store operation at the end of a render
// pass.
type StoreOp int

const (
	SDontCare StoreOp = iota
	SStore
)

// Attachment configures one render target slot of a render pass:
// its format, sample count, and load/store behavior for the color
// ([0]) and, where applicable, depth/stencil ([1]) aspects.
type Attachment struct {
	Format  PixelFmt
	Samples int
	Load    [2]LoadOp
	Store   [2]StoreOp
}

// Subpass is one subpass of a render pass. Color, DS and MSR index
// into the render pass's attachment list to select which render
// targets this subpass writes (DS selects at most one depth/stencil
// attachment; MSR names attachments that multisample-resolve into
// a matching entry in Color). Wait mirrors CmdBuffer.BeginWork's
// wait flag, scoped to this subpass.
type Subpass struct {
	Color []int
	DS    int
	MSR   []int
	Wait  bool
}

// RenderPass is the fixed attachment/subpass layout that a schedule's
// BeginPass commands target; it is resolved once per pass by
// backend.ResourceResolver and reused across frames.
type RenderPass interface {
	Destroyer

	// NewFB binds iv (one view per attachment, in order) into a
	// framebuffer of the given dimensions. Each view's format and
	// sample count must match its attachment, and its image must
	// have been created with URenderTarget usage. Every framebuffer
	// created from a render pass must be destroyed before the
	// render pass itself is.
	NewFB(iv []ImageView, width, height, layers int) (Framebuf, error)
}

// Framebuf binds a RenderPass's attachments to concrete image views.
type Framebuf interface {
	Destroyer
}

// ClearValue gives the load value for one render target, interpreted
// as Color for a color attachment or Depth/Stencil for a depth or
// combined depth/stencil attachment.
type ClearValue struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
}

// ShaderCode is a compiled or loaded shader module, ready to be
// referenced by a ShaderFunc in a pipeline state.
type ShaderCode interface {
	Destroyer
}

// ShaderFunc names one entry point within a shader module.
type ShaderFunc struct {
	Code ShaderCode
	Name string
}

// Stage is a mask of programmable pipeline stages.
type Stage int

const (
	SVertex Stage = 1 << iota
	SFragment
	SCompute
)

// DescType is the kind of resource a Descriptor binds.
type DescType int

const (
	DBuffer DescType = iota // read/write buffer
	DImage                  // read/write image
	DConstant               // constant buffer
	DTexture                // sampled texture
	DSampler                // texture sampler
)

// Descriptor describes one binding slot within a descriptor heap:
// its resource type, which stages see it, its binding number, and
// how many consecutive bindings (an array) it covers.
type Descriptor struct {
	Type   DescType
	Stages Stage
	Nr     int
	Len    int
}

// DescHeap is a set of descriptors of uniform layout, with storage
// for one or more interchangeable copies (so a frame in flight can
// rewrite its bindings without disturbing another frame still
// reading the previous copy).
type DescHeap interface {
	Destroyer

	// New allocates storage for n copies of the heap's descriptors,
	// invalidating any previous copies unless n already equals
	// Count. New(0) frees all storage.
	New(n int) error

	// SetBuffer updates the buffer ranges bound to descriptor nr of
	// heap copy cpy, starting at array index start. The descriptor
	// must be of type DBuffer or DConstant. Ranges must be 256-byte
	// aligned.
	SetBuffer(cpy, nr, start int, buf []Buffer, off, size []int64)

	// SetImage updates the image views bound to descriptor nr of
	// heap copy cpy, starting at array index start. The descriptor
	// must be of type DImage or DTexture.
	SetImage(cpy, nr, start int, iv []ImageView)

	// SetSampler updates the samplers bound to descriptor nr of heap
	// copy cpy, starting at array index start. The descriptor must
	// be of type DSampler.
	SetSampler(cpy, nr, start int, splr []Sampler)

	// Count returns the number of heap copies allocated by New.
	Count() int
}

// DescTable groups a pipeline's descriptor heaps into the bindings
// CmdBuffer.SetDescTableGraph/Comp references by index.
type DescTable interface {
	Destroyer
}

// VertexFmt is the wire format of one vertex input channel.
type VertexFmt int

const (
	Int8 VertexFmt = iota
	Int8x2
	Int8x3
	Int8x4
	Int16
	Int16x2
	Int16x3
	Int16x4
	Int32
	Int32x2
	Int32x3
	Int32x4
	UInt8
	UInt8x2
	UInt8x3
	UInt8x4
	UInt16
	UInt16x2
	UInt16x3
	UInt16x4
	UInt32
	UInt32x2
	UInt32x3
	UInt32x4
	Float32
	Float32x2
	Float32x3
	Float32x4
)

// VertexIn is one vertex buffer binding within a graphics pipeline's
// input layout. Consecutive vertices are Stride bytes apart; inputs
// are never interleaved into a shared buffer. Nr and Name are
// shader-specific binding identifiers.
type VertexIn struct {
	Format VertexFmt
	Stride int
	Nr     int
	Name   string
}

// Topology selects how a pipeline assembles vertices into
// primitives.
type Topology int

const (
	TPoint Topology = iota
	TLine
	TLnStrip
	TTriangle
	TTriStrip
)

// IndexFmt is the element width of an index buffer, in bytes.
type IndexFmt int

const (
	Index16 IndexFmt = 2
	Index32 IndexFmt = 4
)

// Viewport is one viewport's bounds and depth range.
type Viewport struct {
	X, Y, Width, Height, Znear, Zfar float32
}

// Scissor is one scissor rectangle, in pixels.
type Scissor struct {
	X, Y, Width, Height int
}

// CullMode selects which triangle facing, if any, is discarded
// before rasterization.
type CullMode int

const (
	CNone CullMode = iota
	CFront
	CBack
)

// FillMode selects a pipeline's triangle rasterization mode.
type FillMode int

const (
	FFill FillMode = iota
	FLines
)

// RasterState is a graphics pipeline's fixed-function rasterizer
// configuration.
type RasterState struct {
	Clockwise bool // winding order; false means counter-clockwise
	Cull      CullMode
	Fill      FillMode
	DepthBias bool
	BiasValue float32
	BiasSlope float32
	BiasClamp float32
}

// CmpFunc is a comparison function used by depth and stencil tests.
type CmpFunc int

const (
	CNever CmpFunc = iota
	CLess
	CEqual
	CLessEqual
	CGreater
	CNotEqual
	CGreaterEqual
	CAlways
)

// StencilOp is a stencil buffer update operation.
type StencilOp int

const (
	SKeep StencilOp = iota
	SZero
	SReplace
	SIncClamp
	SDecClamp
	SInvert
	SIncWrap
	SDecWrap
)

// StencilT is one face's stencil test configuration. DSFail holds
// the operation for depth-fail ([0]) and stencil-fail ([1]); Pass
// holds the operation when both tests pass.
type StencilT struct {
	DSFail    [2]StencilOp
	Pass      StencilOp
	ReadMask  uint32
	WriteMask uint32
	Cmp       CmpFunc
}

// DSState is a graphics pipeline's depth/stencil test configuration.
type DSState struct {
	DepthTest   bool
	DepthWrite  bool
	DepthCmp    CmpFunc
	StencilTest bool
	Front       StencilT
	Back        StencilT
}

// BlendOp combines a fragment's color with the render target's
// current contents.
type BlendOp int

const (
	BAdd BlendOp = iota
	BSubtract
	BRevSubtract
	BMin
	BMax
)

// BlendFac scales a color or alpha term before a BlendOp combines it.
type BlendFac int

const (
	BZero BlendFac = iota
	BOne
	BSrcColor
	BInvSrcColor
	BSrcAlpha
	BInvSrcAlpha
	BDstColor
	BInvDstColor
	BDstAlpha
	BInvDstAlpha
	BSrcAlphaSaturated
	BBlendColor
	BInvBlendColor
)

// ColorMask selects which color channels a draw writes.
type ColorMask int

const (
	CRed ColorMask = 1 << iota
	CGreen
	CBlue
	CAlpha
	CAll ColorMask = 1<<iota - 1
)

// ColorBlend is one render target's blend configuration. Op, SrcFac
// and DstFac index [0] for the color term and [1] for the alpha
// term. When Blend is false, WriteMask still applies but incoming
// samples are written unmodified.
type ColorBlend struct {
	Blend     bool
	WriteMask ColorMask
	Op        [2]BlendOp
	SrcFac    [2]BlendFac
	DstFac    [2]BlendFac
}

// BlendState is a graphics pipeline's color blend configuration
// across all of its render targets. When IndependentBlend is false,
// Color[0] applies to every target.
type BlendState struct {
	IndependentBlend bool
	Color            []ColorBlend
}

// GraphState is the full fixed-and-programmable configuration of a
// graphics pipeline. Pass and Subpass fix the render pass and
// subpass the resulting Pipeline may be bound within; using it in
// any other subpass is invalid.
type GraphState struct {
	VertFunc ShaderFunc
	FragFunc ShaderFunc
	Desc     DescTable
	Input    []VertexIn
	Topology Topology
	Raster   RasterState
	Samples  int
	DS       DSState
	Blend    BlendState
	Pass     RenderPass
	Subpass  int
}

// CompState is a compute pipeline's configuration: a single compute
// shader plus the descriptor table describing what it can access.
type CompState struct {
	Func ShaderFunc
	Desc DescTable
}

// Pipeline is a compiled graphics or compute pipeline, built from a
// GraphState or CompState via GPU.NewPipeline and cached by package
// pipeline.
type Pipeline interface {
	Destroyer
}

// Usage is a mask of valid uses for a Buffer or Image.
type Usage int

const (
	UShaderRead Usage = 1 << iota
	UShaderWrite
	UShaderConst  // Buffer only
	UShaderSample // Image only
	UVertexData   // Buffer only
	UIndexData    // Buffer only
	URenderTarget // Image only
	UGeneric      Usage = 1<<iota - 1
)

// Buffer is a fixed-size GPU buffer. A larger buffer requires
// creating a new one and copying data across explicitly; buffers do
// not grow in place.
type Buffer interface {
	Destroyer

	// Visible reports whether the buffer's memory is host-visible.
	Visible() bool

	// Bytes returns the buffer's Cap()-length backing slice, or nil
	// if the buffer is not host-visible. The slice remains valid for
	// the buffer's lifetime.
	Bytes() []byte

	// Cap returns the buffer's capacity in bytes, which may exceed
	// the size requested at creation.
	Cap() int64
}

// PixelFmt describes one pixel's channel layout and encoding.
type PixelFmt int

// FInternal marks formats reserved for backend-internal use; client
// code must not request an image in an internal format.
const FInternal PixelFmt = 1 << 31

// IsInternal reports whether f has FInternal set.
func (f PixelFmt) IsInternal() bool { return f&FInternal == FInternal }

const (
	RGBA8un PixelFmt = iota
	RGBA8n
	RGBA8sRGB
	BGRA8un
	BGRA8sRGB
	RG8un
	RG8n
	R8un
	R8n
	RGBA16f
	RG16f
	R16f
	RGBA32f
	RG32f
	R32f
	D16un
	D32f
	S8ui
	D24unS8ui
	D32fS8ui
)

// Dim3D is a width/height/depth extent.
type Dim3D struct {
	Width, Height, Depth int
}

// Off3D is an x/y/z offset.
type Off3D struct {
	X, Y, Z int
}

// Image is a GPU image. Its memory is never directly CPU-addressable;
// uploading pixel data goes through a host-visible Buffer and a copy
// command, which is exactly what backend's stagingAllocator exists
// to manage.
type Image interface {
	Destroyer

	// NewView creates a typed view of a subresource range. typ must
	// be compatible with the image (e.g. a 3D view of a 2D image is
	// invalid, as is an array view over a single layer). Every view
	// created from an image must be destroyed before the image
	// itself is.
	NewView(typ ViewType, layer, layers, level, levels int) (ImageView, error)
}

// ViewType is the dimensionality and arrayness of an ImageView.
type ViewType int

const (
	IView1D ViewType = iota
	IView2D
	IView3D
	IViewCube
	IView1DArray
	IView2DArray
	IViewCubeArray
	IView2DMS
	IView2DMSArray
)

// ImageView is a typed view over a subresource range of an Image,
// the unit that render targets, samplers and Transition all address.
type ImageView interface {
	Destroyer
}

// Filter is a sampler's texel filtering mode.
type Filter int

const (
	FNearest Filter = iota
	FLinear
	// FNoMipmap, used only as a sampler's mip filter, pins sampling
	// to mip level 0.
	FNoMipmap
)

// AddrMode is a sampler's out-of-range texture coordinate behavior.
type AddrMode int

const (
	AWrap AddrMode = iota
	AMirror
	AClamp
)

// Sampler configures how a shader samples a texture.
type Sampler interface {
	Destroyer
}

// Sampling is a sampler's filtering and addressing state.
type Sampling struct {
	Min      Filter
	Mag      Filter
	Mipmap   Filter
	AddrU    AddrMode
	AddrV    AddrMode
	AddrW    AddrMode
	MaxAniso int
	Cmp      CmpFunc
	MinLOD   float32
	MaxLOD   float32
}

// Limits reports a GPU's fixed capability limits, which may vary
// across backends and devices; callers that need to scale resource
// sizes (e.g. the pipeline cache or staging allocator) should read
// these once at startup rather than assume fixed constants.
type Limits struct {
	MaxImage1D   int
	MaxImage2D   int
	MaxImageCube int
	MaxImage3D   int
	MaxLayers    int

	MaxDescHeaps      int
	MaxDBuffer        int
	MaxDImage         int
	MaxDConstant      int
	MaxDTexture       int
	MaxDSampler       int
	MaxDBufferRange   int64
	MaxDConstantRange int64

	MaxColorTargets int
	MaxFBSize       [2]int
	MaxFBLayers     int
	MaxPointSize    float32
	MaxViewports    int

	MaxVertexIn   int
	MaxFragmentIn int

	MaxDispatch [3]int
}
