// Package encoder implements the command-buffer encoder: an
// API-agnostic recorder that serializes draw/dispatch/copy/bind
// commands, plus their inline payload bytes, into a single linear
// buffer. One Encoder is created per render-graph pass; its
// execute callback records into it, and the backend later
// translates the encoded stream into native command-buffer calls.
//
// The encoder never touches the GPU. It is pure serialization:
// argument data and vertex/index data passed to Set* methods are
// copied into the encoder's own arena immediately, so the caller's
// buffers do not need to outlive the call.
package encoder

import (
	"encoding/binary"
	"fmt"

	"github.com/vitreousgfx/forge/handle"
)

// Opcode identifies the kind of a recorded command.
type Opcode uint32

// Recognized opcodes.
const (
	OpBindPipeline Opcode = iota
	OpBindArgData
	OpSetVertexData
	OpSetIndexData
	OpDraw
	OpDrawIndexed
	OpDispatch
	OpSetViewport
	OpSetScissor
	OpSetLineWidth
	OpMapImageMemory
	OpTraceRays
)

func (op Opcode) String() string {
	switch op {
	case OpBindPipeline:
		return "bind-pipeline"
	case OpBindArgData:
		return "bind-arg-data"
	case OpSetVertexData:
		return "set-vertex-data"
	case OpSetIndexData:
		return "set-index-data"
	case OpDraw:
		return "draw"
	case OpDrawIndexed:
		return "draw-indexed"
	case OpDispatch:
		return "dispatch"
	case OpSetViewport:
		return "set-viewport"
	case OpSetScissor:
		return "set-scissor"
	case OpSetLineWidth:
		return "set-line-width"
	case OpMapImageMemory:
		return "map-image-memory"
	case OpTraceRays:
		return "trace-rays"
	default:
		return "unknown"
	}
}

// IndexFormat describes the width of index-buffer elements.
type IndexFormat uint32

// Index formats.
const (
	Index16 IndexFormat = 2
	Index32 IndexFormat = 4
)

// Viewport mirrors driver.Viewport without importing the driver
// package, so encoder stays usable without pulling in a concrete
// GPU backend.
type Viewport struct {
	X, Y, Width, Height, ZNear, ZFar float32
}

// Scissor is a scissor rectangle in pixels.
type Scissor struct {
	X, Y, Width, Height int32
}

// Off3D is a three-dimensional offset, used by MapImageMemory.
type Off3D struct {
	X, Y, Z int32
}

// Dim3D is a three-dimensional size, used by MapImageMemory.
type Dim3D struct {
	Width, Height, Depth int32
}

// record header: 4 bytes opcode + 4 bytes payload size.
const headerSize = 8

// noHandle marks the absence of a handle reference in a record.
const noHandle = ^uint32(0)

// Encoder serializes a sequence of rendering/compute/transfer
// commands into a linear byte buffer. The zero value is not
// usable; use New.
type Encoder struct {
	buf     []byte
	handles []*handle.Handle
	count   int
}

// New creates an empty Encoder.
func New() *Encoder {
	return &Encoder{buf: make([]byte, 0, 256)}
}

func (e *Encoder) refHandle(h *handle.Handle) uint32 {
	if h == nil {
		return noHandle
	}
	e.handles = append(e.handles, h)
	return uint32(len(e.handles) - 1)
}

// header appends the fixed opcode+size header and returns the
// buffer positioned to receive payload bytes of the given size.
func (e *Encoder) header(op Opcode, payloadSize int) {
	var h [headerSize]byte
	binary.LittleEndian.PutUint32(h[0:4], uint32(op))
	binary.LittleEndian.PutUint32(h[4:8], uint32(payloadSize))
	e.buf = append(e.buf, h[:]...)
	e.count++
}

func putU32(b []byte, v uint32) []byte  { return binary.LittleEndian.AppendUint32(b, v) }
func putI32(b []byte, v int32) []byte   { return binary.LittleEndian.AppendUint32(b, uint32(v)) }
func putF32(b []byte, v float32) []byte { return binary.LittleEndian.AppendUint32(b, mathFloatBits(v)) }

// BindPipeline records a pipeline bind.
func (e *Encoder) BindPipeline(pipeline *handle.Handle) {
	ref := e.refHandle(pipeline)
	e.header(OpBindPipeline, 4)
	e.buf = putU32(e.buf, ref)
}

// SetArgumentData records a descriptor/uniform update for the
// given table index. data is copied into the encoder's arena.
func (e *Encoder) SetArgumentData(table int, data []byte) {
	e.header(OpBindArgData, 8+len(data))
	e.buf = putI32(e.buf, int32(table))
	e.buf = putU32(e.buf, uint32(len(data)))
	e.buf = append(e.buf, data...)
}

// SetVertexData records a vertex-buffer update for the given
// binding slot. data is copied into the encoder's arena.
func (e *Encoder) SetVertexData(slot int, data []byte) {
	e.header(OpSetVertexData, 8+len(data))
	e.buf = putI32(e.buf, int32(slot))
	e.buf = putU32(e.buf, uint32(len(data)))
	e.buf = append(e.buf, data...)
}

// SetIndexData records an index-buffer update. data is copied
// into the encoder's arena.
func (e *Encoder) SetIndexData(format IndexFormat, data []byte) {
	e.header(OpSetIndexData, 8+len(data))
	e.buf = putU32(e.buf, uint32(format))
	e.buf = putU32(e.buf, uint32(len(data)))
	e.buf = append(e.buf, data...)
}

// Draw records a non-indexed draw call.
func (e *Encoder) Draw(vertCount, instCount, baseVert, baseInst int) {
	e.header(OpDraw, 16)
	e.buf = putI32(e.buf, int32(vertCount))
	e.buf = putI32(e.buf, int32(instCount))
	e.buf = putI32(e.buf, int32(baseVert))
	e.buf = putI32(e.buf, int32(baseInst))
}

// DrawIndexed records an indexed draw call.
func (e *Encoder) DrawIndexed(idxCount, instCount, baseIdx, vertOff, baseInst int) {
	e.header(OpDrawIndexed, 20)
	e.buf = putI32(e.buf, int32(idxCount))
	e.buf = putI32(e.buf, int32(instCount))
	e.buf = putI32(e.buf, int32(baseIdx))
	e.buf = putI32(e.buf, int32(vertOff))
	e.buf = putI32(e.buf, int32(baseInst))
}

// Dispatch records a compute dispatch.
func (e *Encoder) Dispatch(groupCountX, groupCountY, groupCountZ int) {
	e.header(OpDispatch, 12)
	e.buf = putI32(e.buf, int32(groupCountX))
	e.buf = putI32(e.buf, int32(groupCountY))
	e.buf = putI32(e.buf, int32(groupCountZ))
}

// SetViewport records a viewport update.
func (e *Encoder) SetViewport(vp Viewport) {
	e.header(OpSetViewport, 24)
	e.buf = putF32(e.buf, vp.X)
	e.buf = putF32(e.buf, vp.Y)
	e.buf = putF32(e.buf, vp.Width)
	e.buf = putF32(e.buf, vp.Height)
	e.buf = putF32(e.buf, vp.ZNear)
	e.buf = putF32(e.buf, vp.ZFar)
}

// SetScissor records a scissor-rectangle update.
func (e *Encoder) SetScissor(sc Scissor) {
	e.header(OpSetScissor, 16)
	e.buf = putI32(e.buf, sc.X)
	e.buf = putI32(e.buf, sc.Y)
	e.buf = putI32(e.buf, sc.Width)
	e.buf = putI32(e.buf, sc.Height)
}

// SetLineWidth records a line-width update.
func (e *Encoder) SetLineWidth(width float32) {
	e.header(OpSetLineWidth, 4)
	e.buf = putF32(e.buf, width)
}

// MapImageMemory records a host-to-image transfer. data is copied
// into the encoder's arena. Valid only within a transfer pass.
func (e *Encoder) MapImageMemory(img *handle.Handle, off Off3D, size Dim3D, data []byte) {
	ref := e.refHandle(img)
	e.header(OpMapImageMemory, 4+12+12+4+len(data))
	e.buf = putU32(e.buf, ref)
	e.buf = putI32(e.buf, off.X)
	e.buf = putI32(e.buf, off.Y)
	e.buf = putI32(e.buf, off.Z)
	e.buf = putI32(e.buf, size.Width)
	e.buf = putI32(e.buf, size.Height)
	e.buf = putI32(e.buf, size.Depth)
	e.buf = putU32(e.buf, uint32(len(data)))
	e.buf = append(e.buf, data...)
}

// TraceRays records a ray-dispatch command.
func (e *Encoder) TraceRays(width, height, depth int) {
	e.header(OpTraceRays, 12)
	e.buf = putI32(e.buf, int32(width))
	e.buf = putI32(e.buf, int32(height))
	e.buf = putI32(e.buf, int32(depth))
}

// GetEncodedData returns the raw encoded command stream, the
// handles referenced by it (indexed by the records that carry a
// handle reference), and the number of commands recorded.
func (e *Encoder) GetEncodedData() (data []byte, handles []*handle.Handle, numCommands int) {
	return e.buf, e.handles, e.count
}

// Reset clears the encoder so it can be reused for another pass.
func (e *Encoder) Reset() {
	e.buf = e.buf[:0]
	e.handles = e.handles[:0]
	e.count = 0
}

// Command is a single decoded command. Only the fields relevant
// to Op are populated; see each Opcode's comment on Encoder for
// which fields apply.
type Command struct {
	Op Opcode

	Pipeline *handle.Handle
	Image    *handle.Handle

	Table int
	Slot  int
	Data  []byte

	IndexFormat IndexFormat

	VertCount, InstCount, BaseVert, BaseInst int
	IdxCount, BaseIdx, VertOff               int
	GroupX, GroupY, GroupZ                   int

	Viewport Viewport
	Scissor  Scissor

	LineWidth float32

	Offset Off3D
	Size   Dim3D

	RaysWidth, RaysHeight, RaysDepth int
}

// Decode parses an encoded command stream (as returned by
// GetEncodedData) back into a slice of Command values. handles
// must be the handle slice returned alongside data by the same
// call to GetEncodedData.
func Decode(data []byte, handles []*handle.Handle) ([]Command, error) {
	resolve := func(ref uint32) (*handle.Handle, error) {
		if ref == noHandle {
			return nil, nil
		}
		if int(ref) >= len(handles) {
			return nil, fmt.Errorf("encoder: handle reference %d out of range", ref)
		}
		return handles[ref], nil
	}

	var cmds []Command
	for off := 0; off < len(data); {
		if off+headerSize > len(data) {
			return nil, fmt.Errorf("encoder: truncated header at offset %d", off)
		}
		op := Opcode(binary.LittleEndian.Uint32(data[off : off+4]))
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		off += headerSize
		if off+size > len(data) {
			return nil, fmt.Errorf("encoder: truncated payload at offset %d", off)
		}
		p := data[off : off+size]
		off += size

		var c Command
		c.Op = op
		var err error
		switch op {
		case OpBindPipeline:
			c.Pipeline, err = resolve(binary.LittleEndian.Uint32(p[0:4]))
		case OpBindArgData:
			c.Table = int(int32(binary.LittleEndian.Uint32(p[0:4])))
			n := binary.LittleEndian.Uint32(p[4:8])
			c.Data = append([]byte(nil), p[8:8+n]...)
		case OpSetVertexData:
			c.Slot = int(int32(binary.LittleEndian.Uint32(p[0:4])))
			n := binary.LittleEndian.Uint32(p[4:8])
			c.Data = append([]byte(nil), p[8:8+n]...)
		case OpSetIndexData:
			c.IndexFormat = IndexFormat(binary.LittleEndian.Uint32(p[0:4]))
			n := binary.LittleEndian.Uint32(p[4:8])
			c.Data = append([]byte(nil), p[8:8+n]...)
		case OpDraw:
			c.VertCount = int(int32(binary.LittleEndian.Uint32(p[0:4])))
			c.InstCount = int(int32(binary.LittleEndian.Uint32(p[4:8])))
			c.BaseVert = int(int32(binary.LittleEndian.Uint32(p[8:12])))
			c.BaseInst = int(int32(binary.LittleEndian.Uint32(p[12:16])))
		case OpDrawIndexed:
			c.IdxCount = int(int32(binary.LittleEndian.Uint32(p[0:4])))
			c.InstCount = int(int32(binary.LittleEndian.Uint32(p[4:8])))
			c.BaseIdx = int(int32(binary.LittleEndian.Uint32(p[8:12])))
			c.VertOff = int(int32(binary.LittleEndian.Uint32(p[12:16])))
			c.BaseInst = int(int32(binary.LittleEndian.Uint32(p[16:20])))
		case OpDispatch:
			c.GroupX = int(int32(binary.LittleEndian.Uint32(p[0:4])))
			c.GroupY = int(int32(binary.LittleEndian.Uint32(p[4:8])))
			c.GroupZ = int(int32(binary.LittleEndian.Uint32(p[8:12])))
		case OpSetViewport:
			c.Viewport = Viewport{
				X:      floatFromBits(binary.LittleEndian.Uint32(p[0:4])),
				Y:      floatFromBits(binary.LittleEndian.Uint32(p[4:8])),
				Width:  floatFromBits(binary.LittleEndian.Uint32(p[8:12])),
				Height: floatFromBits(binary.LittleEndian.Uint32(p[12:16])),
				ZNear:  floatFromBits(binary.LittleEndian.Uint32(p[16:20])),
				ZFar:   floatFromBits(binary.LittleEndian.Uint32(p[20:24])),
			}
		case OpSetScissor:
			c.Scissor = Scissor{
				X:      int32(binary.LittleEndian.Uint32(p[0:4])),
				Y:      int32(binary.LittleEndian.Uint32(p[4:8])),
				Width:  int32(binary.LittleEndian.Uint32(p[8:12])),
				Height: int32(binary.LittleEndian.Uint32(p[12:16])),
			}
		case OpSetLineWidth:
			c.LineWidth = floatFromBits(binary.LittleEndian.Uint32(p[0:4]))
		case OpMapImageMemory:
			c.Image, err = resolve(binary.LittleEndian.Uint32(p[0:4]))
			c.Offset = Off3D{
				X: int32(binary.LittleEndian.Uint32(p[4:8])),
				Y: int32(binary.LittleEndian.Uint32(p[8:12])),
				Z: int32(binary.LittleEndian.Uint32(p[12:16])),
			}
			c.Size = Dim3D{
				Width:  int32(binary.LittleEndian.Uint32(p[16:20])),
				Height: int32(binary.LittleEndian.Uint32(p[20:24])),
				Depth:  int32(binary.LittleEndian.Uint32(p[24:28])),
			}
			n := binary.LittleEndian.Uint32(p[28:32])
			c.Data = append([]byte(nil), p[32:32+n]...)
		case OpTraceRays:
			c.RaysWidth = int(int32(binary.LittleEndian.Uint32(p[0:4])))
			c.RaysHeight = int(int32(binary.LittleEndian.Uint32(p[4:8])))
			c.RaysDepth = int(int32(binary.LittleEndian.Uint32(p[8:12])))
		default:
			return nil, fmt.Errorf("encoder: unknown opcode %d at offset %d", op, off-headerSize-size)
		}
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, c)
	}
	return cmds, nil
}
