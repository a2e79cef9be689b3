package backend

import (
	"fmt"

	"github.com/vitreousgfx/forge/driver"
)

// transientBlock is the granularity of a transient allocation, and
// transientGrow the number of blocks a single buffer grow step
// adds. Vertex/index/argument data recorded by a single pass is
// usually small, so a modest block size keeps the common case to
// one buffer for the whole frame.
const (
	transientBlock = 256
	transientGrow  = 1024 // 256 KiB per grow step
)

// transientAllocator is a per-frame-slot bump allocator for the
// small copies of vertex/index/argument data a render-graph pass
// hands the encoder. Unlike stagingAllocator, it never tracks
// individual frees: the whole allocator is rewound by reset, once
// per frame, when the owning slot is cleared.
type transientAllocator struct {
	gpu  driver.GPU
	buf  driver.Buffer
	used int64
}

func newTransientAllocator(gpu driver.GPU) *transientAllocator {
	return &transientAllocator{gpu: gpu}
}

// upload copies data into the allocator's buffer and returns the
// buffer and the byte offset the copy was placed at. It grows the
// underlying buffer (discarding its previous contents, which are
// only ever read within the same frame) if there is not enough
// room left.
func (a *transientAllocator) upload(data []byte) (driver.Buffer, int64, error) {
	n := int64(len(data))
	aligned := (n + transientBlock - 1) &^ (transientBlock - 1)
	if a.buf == nil || a.used+aligned > a.buf.Cap() {
		if err := a.grow(aligned); err != nil {
			return nil, 0, err
		}
	}
	off := a.used
	copy(a.buf.Bytes()[off:], data)
	a.used += aligned
	return a.buf, off, nil
}

func (a *transientAllocator) grow(atLeast int64) error {
	size := int64(transientBlock * transientGrow)
	for size < atLeast {
		size *= 2
	}
	if a.buf != nil {
		size += a.buf.Cap()
		a.buf.Destroy()
		a.buf = nil
	}
	buf, err := a.gpu.NewBuffer(size, true, driver.UVertexData|driver.UIndexData|driver.UShaderConst)
	if err != nil {
		return fmt.Errorf("transient: growing buffer to %d bytes: %w", size, err)
	}
	a.buf = buf
	a.used = 0
	return nil
}

// reset rewinds the allocator so the whole buffer is free again.
// The underlying driver.Buffer, if any, is kept and reused.
func (a *transientAllocator) reset() { a.used = 0 }

// destroy releases the allocator's buffer.
func (a *transientAllocator) destroy() {
	if a.buf != nil {
		a.buf.Destroy()
		a.buf = nil
	}
}
