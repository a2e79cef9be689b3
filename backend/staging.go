package backend

import (
	"fmt"

	"github.com/vitreousgfx/forge/driver"
)

// Block size and granularity for the staging allocator's bitmap.
// Large enough that a single 1024x1024 32-bit texture upload (no
// mip) fits in one bitmap word.
const (
	stagingBlock = 131072
	stagingNBit  = 32
)

// stagingBlockMap tracks which stagingBlock-sized blocks of a
// staging buffer are reserved by a pending copy. It grows in
// 32-block words and never shrinks; clear just unsets
// every bit once a frame's copies have all been consumed.
type stagingBlockMap struct {
	words []uint32
	free  int
}

// grow appends nwords words of fresh, all-unset blocks.
func (m *stagingBlockMap) grow(nwords int) {
	if nwords <= 0 {
		return
	}
	m.free += nwords * stagingNBit
	m.words = append(m.words, make([]uint32, nwords)...)
}

// set marks block i reserved.
func (m *stagingBlockMap) set(i int) {
	w, b := i/stagingNBit, uint(i%stagingNBit)
	if m.words[w]&(1<<b) == 0 {
		m.words[w] |= 1 << b
		m.free--
	}
}

// clear unmarks every reserved block.
func (m *stagingBlockMap) clear() {
	n := len(m.words) * stagingNBit
	if n == m.free {
		return
	}
	for i := range m.words {
		m.words[i] = 0
	}
	m.free = n
}

// searchRange locates a contiguous run of n unset blocks, reporting
// its starting index. It fails only when fewer than n blocks are
// free across the whole map.
func (m *stagingBlockMap) searchRange(n int) (index int, ok bool) {
	if m.free < n {
		return 0, false
	}
	var run int
	for i, w := range m.words {
		if w == ^uint32(0) {
			run = 0
			continue
		}
		for b := 0; b < stagingNBit; b++ {
			if w&(1<<uint(b)) != 0 {
				run = 0
				continue
			}
			run++
			if run >= n {
				return i*stagingNBit + b - run + 1, true
			}
		}
	}
	return 0, false
}

// stagingAllocator owns a host-visible buffer used as the
// intermediate step of CPU-to-GPU image copies (the OpMapImageMemory
// opcode). Unlike transientAllocator, allocations here are tracked
// individually with a block map so that a copy that has not yet been
// consumed by the GPU is never overwritten by a later allocation
// within the same frame; blocks are cleared wholesale once the
// backend knows the copies that used them have been committed.
type stagingAllocator struct {
	gpu driver.GPU
	buf driver.Buffer
	bm  stagingBlockMap
}

func newStagingAllocator(gpu driver.GPU) (*stagingAllocator, error) {
	s := &stagingAllocator{gpu: gpu}
	if err := s.grow(stagingBlock * stagingNBit); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *stagingAllocator) grow(atLeast int) error {
	n := (atLeast + stagingBlock*stagingNBit - 1) &^ (stagingBlock*stagingNBit - 1)
	buf, err := s.gpu.NewBuffer(int64(n), true, driver.UGeneric)
	if err != nil {
		return fmt.Errorf("staging: allocating %d-byte buffer: %w", n, err)
	}
	if s.buf != nil {
		s.buf.Destroy()
	}
	s.buf = buf
	s.bm = stagingBlockMap{}
	s.bm.grow(n / stagingBlock / stagingNBit)
	return nil
}

// reserve finds (or makes room for) a contiguous byte range able to
// hold n bytes and marks it used, returning its offset.
func (s *stagingAllocator) reserve(n int) (int64, error) {
	if n <= 0 {
		return 0, fmt.Errorf("staging: invalid reservation size %d", n)
	}
	blocks := (n + stagingBlock - 1) / stagingBlock
	idx, ok := s.bm.searchRange(blocks)
	if !ok {
		// No contiguous free range large enough: grow to add room,
		// preserving the existing buffer's bytes is not attempted
		// since every pending copy is always consumed within the
		// same frame before reset is called.
		if err := s.grow(int(s.buf.Cap())*2 + n); err != nil {
			return 0, err
		}
		idx, ok = s.bm.searchRange(blocks)
		if !ok {
			return 0, fmt.Errorf("staging: could not find a free range for %d bytes after growing", n)
		}
	}
	for i := 0; i < blocks; i++ {
		s.bm.set(idx + i)
	}
	return int64(idx) * stagingBlock, nil
}

// reset releases every tracked reservation. The backend calls this
// once a frame's dispatch has completed, since only then is it safe
// to assume every copy that referenced the staging buffer has been
// consumed by the GPU.
func (s *stagingAllocator) reset() { s.bm.clear() }

// destroy releases the allocator's buffer.
func (s *stagingAllocator) destroy() {
	if s.buf != nil {
		s.buf.Destroy()
		s.buf = nil
	}
}

// copyToImage stages data into the allocator's buffer and records a
// copy command from that staged range into img at the given offset
// and size.
func (s *stagingAllocator) copyToImage(cb driver.CmdBuffer, img driver.Image, off driver.Off3D, size driver.Dim3D, data []byte) error {
	bo, err := s.reserve(len(data))
	if err != nil {
		return err
	}
	copy(s.buf.Bytes()[bo:], data)

	// The transition only needs a view for the duration of this
	// call: CopyBufToImg addresses the image directly, not through
	// a view, so the view can be released as soon as it has been
	// handed to Transition.
	view, err := img.NewView(driver.IView2D, 0, 1, 0, 1)
	if err != nil {
		return fmt.Errorf("staging: creating transition view: %w", err)
	}
	cb.Transition([]driver.Transition{{
		Barrier: driver.Barrier{
			SyncBefore:   driver.SNone,
			SyncAfter:    driver.SCopy,
			AccessBefore: driver.ANone,
			AccessAfter:  driver.ACopyWrite,
		},
		LayoutBefore: driver.LUndefined,
		LayoutAfter:  driver.LCopyDst,
		IView:        view,
	}})
	view.Destroy()
	cb.CopyBufToImg(&driver.BufImgCopy{
		Buf:    s.buf,
		BufOff: bo,
		Stride: [2]int64{int64(size.Width), int64(size.Height)},
		Img:    img,
		ImgOff: off,
		Layer:  0,
		Level:  0,
		Size:   size,
	})
	return nil
}
