// Package shadersrc defines the contract between the core and an
// external shader-compiler collaborator. Compilation itself
// (GLSL/HLSL/WGSL to SPIR-V or to a wgpu shader module, include
// resolution, macro expansion) is out of scope for the renderer
// core; the core only needs SPIR-V (or WGSL source) bytes for a
// given stage and a set of preprocessor defines.
package shadersrc

// Stage identifies a programmable shader stage.
type Stage int

// Shader stages.
const (
	StageVertex Stage = iota
	StageFragment
	StageCompute
)

// Request describes a single shader module to compile.
type Request struct {
	// Path is the source file to compile. It is also the unit
	// watched for hot-reload.
	Path string
	// Stage is the pipeline stage the result will be bound to.
	Stage Stage
	// Defines are preprocessor defines passed to the compiler,
	// in "NAME=VALUE" or bare "NAME" form.
	Defines []string
}

// Result is the output of a successful compilation.
type Result struct {
	// Code is the compiled module bytes (SPIR-V or a
	// backend-native representation).
	Code []byte
	// Reflect describes the resources the shader declares, as
	// recovered by the compiler's reflection step.
	Reflect ReflectInfo
}

// ReflectInfo describes the resources a compiled shader module
// declares, as needed to build descriptor-set layouts and
// pipeline layouts. The pipeline manager never parses shader
// binaries itself; it only consumes this struct.
type ReflectInfo struct {
	// Bindings maps descriptor set index to the bindings
	// declared in that set.
	Bindings map[int][]Binding
	// PushConstants lists the push-constant ranges the shader
	// uses.
	PushConstants []PushConstantRange
}

// Binding describes a single descriptor binding recovered by
// shader reflection.
type Binding struct {
	Number int
	Kind   BindingKind
	Count  int
}

// BindingKind mirrors the descriptor kinds a shader can declare.
type BindingKind int

// Binding kinds.
const (
	BindBuffer BindingKind = iota
	BindImage
	BindConstant
	BindTexture
	BindSampler
)

// PushConstantRange describes a push-constant byte range
// accessible to one or more stages.
type PushConstantRange struct {
	Offset, Size int
	Stages       Stage
}

// Compiler is the interface an external shader-compiler
// collaborator implements. renderer.New and pipeline.NewManager
// take it as an argument; it is not looked up through the plugin
// registry.
type Compiler interface {
	// Compile compiles the shader described by req and returns
	// its bytecode plus reflection info.
	Compile(req Request) (Result, error)
}
