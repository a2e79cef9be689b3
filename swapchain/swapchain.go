// Package swapchain maps logical swapchain handles to physical
// presentation surfaces: an OS window, an offscreen host-memory
// buffer (used by headless tests), or a pipe to an external encoder
// process. It exposes per-frame image acquisition, resize, and the
// handle/extent lookups the renderer and render-graph passes need
// to reference "the current frame's presentable image" without
// knowing which kind of surface backs it.
package swapchain

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"os/exec"
	"sync"

	"github.com/vitreousgfx/forge/driver"
	"github.com/vitreousgfx/forge/handle"
	"github.com/vitreousgfx/forge/wsi"
)

// Kind identifies what a swapchain presents to.
type Kind int

// Recognized swapchain kinds.
const (
	Windowed Kind = iota
	Image
	VideoPipe
)

func (k Kind) String() string {
	switch k {
	case Image:
		return "image"
	case VideoPipe:
		return "video-pipe"
	default:
		return "windowed"
	}
}

// Settings describes a single swapchain to create. Settings form a
// linked sequence (via Next) so a single Setup call can attach
// multiple outputs, exactly as spec.md's "settings contain a linked
// list of swapchain descriptions" describes.
type Settings struct {
	Kind Kind

	// Window is required for Windowed, ignored otherwise.
	Window wsi.Window

	// Width/Height give the initial extent for Image and
	// VideoPipe kinds; for Windowed the window's own size is used
	// and these are ignored.
	Width, Height int

	// Format is the pixel format images are presented in. If zero,
	// driver.RGBA8un is used.
	Format driver.PixelFmt

	// Command and Args name the external encoder process for the
	// VideoPipe kind (e.g. "ffmpeg", []string{"-f", "rawvideo", ...}).
	Command string
	Args    []string

	Next *Settings
}

// entry is a single managed swapchain.
type entry struct {
	id       *handle.Handle
	kind     Kind
	settings Settings

	width, height int
	format        driver.PixelFmt

	// resource is the handle.Registry entry the render graph uses
	// to reference this swapchain's current image; its identity is
	// stable even though the concrete driver.Image behind it can
	// change across a resize or a windowed Recreate.
	resource *handle.Handle

	sc  driver.Swapchain // Windowed only
	img driver.Image     // Image/VideoPipe only: the single offscreen target
	buf driver.Buffer    // Image/VideoPipe only: host-visible readback buffer

	cmd   *exec.Cmd     // VideoPipe only
	stdin io.WriteCloser // VideoPipe only
}

// ErrUnknownSwapchain is returned by every operation given a handle
// this Manager did not produce via AddSwapchain.
var ErrUnknownSwapchain = errors.New("swapchain: unknown handle")

// Manager owns the set of swapchains a Renderer presents to.
type Manager struct {
	gpu     driver.GPU
	handles *handle.Registry

	mu   sync.Mutex
	sets map[*handle.Handle]*entry
}

// NewManager creates a Manager. handles is the registry new
// swapchains' resource handles are interned into, so render-graph
// passes can reference them the same way they reference any other
// resource.
//
// NewManager also registers the Manager as the process-wide
// wsi.WindowHandler, so that a window resize or close observed by
// the window-system backend drives ResizeSwapchain/RemoveSwapchain
// on the Windowed swapchain bound to that window without the
// renderer having to poll window size every frame.
func NewManager(gpu driver.GPU, handles *handle.Registry) *Manager {
	m := &Manager{gpu: gpu, handles: handles, sets: make(map[*handle.Handle]*entry)}
	wsi.SetWindowHandler(m)
	return m
}

// findByWindow returns the handle of the Windowed swapchain bound to
// win, or nil if none is managed.
func (m *Manager) findByWindow(win wsi.Window) *handle.Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	for h, e := range m.sets {
		if e.kind == Windowed && e.settings.Window == win {
			return h
		}
	}
	return nil
}

// WindowClose implements wsi.WindowHandler by removing the Windowed
// swapchain bound to win, if any.
func (m *Manager) WindowClose(win wsi.Window) {
	if h := m.findByWindow(win); h != nil {
		if err := m.RemoveSwapchain(h); err != nil {
			log.Printf("swapchain: removing swapchain for closed window: %v", err)
		}
	}
}

// WindowResize implements wsi.WindowHandler by resizing the Windowed
// swapchain bound to win, if any.
func (m *Manager) WindowResize(win wsi.Window, newWidth, newHeight int) {
	if h := m.findByWindow(win); h != nil {
		if err := m.ResizeSwapchain(h, newWidth, newHeight); err != nil {
			log.Printf("swapchain: resizing swapchain for resized window: %v", err)
		}
	}
}

// AddSwapchain creates a swapchain from settings and returns its
// handle. Passing a Settings chain (via Next) adds every entry in
// the chain; the returned handle refers to the head entry.
func (m *Manager) AddSwapchain(settings Settings) (*handle.Handle, error) {
	var first *handle.Handle
	for s := &settings; s != nil; s = s.Next {
		h, err := m.addOne(*s)
		if err != nil {
			return nil, err
		}
		if first == nil {
			first = h
		}
	}
	return first, nil
}

func (m *Manager) addOne(s Settings) (*handle.Handle, error) {
	format := s.Format
	if format == 0 {
		format = driver.RGBA8un
	}

	e := &entry{kind: s.Kind, settings: s, format: format}

	switch s.Kind {
	case Windowed:
		pres, ok := m.gpu.(driver.Presenter)
		if !ok {
			return nil, fmt.Errorf("swapchain: %w: GPU does not implement driver.Presenter", driver.ErrCannotPresent)
		}
		if s.Window == nil {
			return nil, errors.New("swapchain: windowed settings require a non-nil Window")
		}
		sc, err := pres.NewSwapchain(s.Window, 1)
		if err != nil {
			return nil, fmt.Errorf("swapchain: creating windowed swapchain: %w", err)
		}
		e.sc = sc
		e.width, e.height = s.Window.Width(), s.Window.Height()
		e.format = sc.Format()

	case Image, VideoPipe:
		w, h := s.Width, s.Height
		if w <= 0 || h <= 0 {
			return nil, fmt.Errorf("swapchain: invalid offscreen extent %dx%d", w, h)
		}
		if err := e.allocateOffscreen(m.gpu, w, h, format); err != nil {
			return nil, err
		}
		if s.Kind == VideoPipe {
			if s.Command == "" {
				return nil, errors.New("swapchain: video-pipe settings require a Command")
			}
			cmd := exec.Command(s.Command, s.Args...)
			stdin, err := cmd.StdinPipe()
			if err != nil {
				return nil, fmt.Errorf("swapchain: opening encoder stdin: %w", err)
			}
			if err := cmd.Start(); err != nil {
				return nil, fmt.Errorf("swapchain: starting encoder process: %w", err)
			}
			e.cmd = cmd
			e.stdin = stdin
		}

	default:
		return nil, fmt.Errorf("swapchain: unknown kind %v", s.Kind)
	}

	e.id = m.handles.InternTexture("")
	e.resource = m.handles.InternResource("", handle.Image, 0, 1, 0, nil)

	m.mu.Lock()
	m.sets[e.id] = e
	m.mu.Unlock()
	return e.id, nil
}

func (e *entry) allocateOffscreen(gpu driver.GPU, w, h int, format driver.PixelFmt) error {
	img, err := gpu.NewImage(format, driver.Dim3D{Width: w, Height: h, Depth: 1}, 1, 1, 1, driver.URenderTarget|driver.UShaderSample)
	if err != nil {
		return fmt.Errorf("swapchain: allocating offscreen image: %w", err)
	}
	buf, err := gpu.NewBuffer(int64(w*h*4), true, driver.UGeneric)
	if err != nil {
		img.Destroy()
		return fmt.Errorf("swapchain: allocating readback buffer: %w", err)
	}
	e.img, e.buf, e.width, e.height, e.format = img, buf, w, h, format
	return nil
}

func (m *Manager) get(h *handle.Handle) (*entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sets[h]
	if !ok {
		return nil, ErrUnknownSwapchain
	}
	return e, nil
}

// RemoveSwapchain destroys the swapchain identified by h.
func (m *Manager) RemoveSwapchain(h *handle.Handle) error {
	m.mu.Lock()
	e, ok := m.sets[h]
	if ok {
		delete(m.sets, h)
	}
	m.mu.Unlock()
	if !ok {
		return ErrUnknownSwapchain
	}
	switch e.kind {
	case Windowed:
		e.sc.Destroy()
	case Image, VideoPipe:
		e.img.Destroy()
		e.buf.Destroy()
		if e.stdin != nil {
			e.stdin.Close()
		}
		if e.cmd != nil {
			e.cmd.Wait()
		}
	}
	return nil
}

// ResizeSwapchain updates the swapchain's extent. For a windowed
// swapchain this calls Recreate so the next acquire picks up the
// window's current size; for offscreen kinds it reallocates the
// image and buffer.
func (m *Manager) ResizeSwapchain(h *handle.Handle, w, hgt int) error {
	e, err := m.get(h)
	if err != nil {
		return err
	}
	switch e.kind {
	case Windowed:
		if err := e.sc.Recreate(); err != nil {
			return fmt.Errorf("swapchain: resizing windowed swapchain: %w", err)
		}
		if e.settings.Window != nil {
			e.width, e.height = e.settings.Window.Width(), e.settings.Window.Height()
		}
	case Image, VideoPipe:
		old := e.img
		oldBuf := e.buf
		if err := e.allocateOffscreen(m.gpu, w, hgt, e.format); err != nil {
			return err
		}
		old.Destroy()
		oldBuf.Destroy()
	}
	return nil
}

// GetSwapchainExtent returns the current width/height of the
// swapchain identified by h.
func (m *Manager) GetSwapchainExtent(h *handle.Handle) (w, hgt int, err error) {
	e, err := m.get(h)
	if err != nil {
		return 0, 0, err
	}
	return e.width, e.height, nil
}

// GetSwapchainResource returns the stable resource handle the
// render graph should use to reference this swapchain's current
// image.
func (m *Manager) GetSwapchainResource(h *handle.Handle) (*handle.Handle, error) {
	e, err := m.get(h)
	if err != nil {
		return nil, err
	}
	return e.resource, nil
}

// AcquireSwapchainResources is called at the start of a frame's
// acquire phase for every managed swapchain. cb is the command
// buffer that will record the frame's render passes; windowed
// swapchains need it to call driver.Swapchain.Next. On
// driver.ErrSwapchain it retries once after Recreate, per the
// policy recorded in DESIGN.md.
func (m *Manager) AcquireSwapchainResources(cb driver.CmdBuffer) error {
	m.mu.Lock()
	entries := make([]*entry, 0, len(m.sets))
	for _, e := range m.sets {
		entries = append(entries, e)
	}
	m.mu.Unlock()

	for _, e := range entries {
		if e.kind != Windowed {
			continue
		}
		if _, err := e.sc.Next(cb); err != nil {
			if !errors.Is(err, driver.ErrSwapchain) {
				return fmt.Errorf("swapchain: acquiring image: %w", err)
			}
			log.Printf("swapchain: acquire failed (%v), recreating and retrying once", err)
			if err := e.sc.Recreate(); err != nil {
				return fmt.Errorf("swapchain: recreating after failed acquire: %w", err)
			}
			if _, err := e.sc.Next(cb); err != nil {
				return fmt.Errorf("swapchain: acquiring image after recreate: %w", err)
			}
		}
	}
	return nil
}

// PresentResources presents every windowed swapchain's acquired
// image and, for Image/VideoPipe kinds, records a read back of the
// offscreen target to host memory. It does not write to a VideoPipe's
// encoder; PipeFrame does that.
func (m *Manager) PresentResources(cb driver.CmdBuffer) error {
	m.mu.Lock()
	entries := make([]*entry, 0, len(m.sets))
	for _, e := range m.sets {
		entries = append(entries, e)
	}
	m.mu.Unlock()

	for _, e := range entries {
		switch e.kind {
		case Windowed:
			if err := e.sc.Present(0, cb); err != nil {
				return fmt.Errorf("swapchain: presenting: %w", err)
			}
		case Image, VideoPipe:
			if err := e.readBack(cb); err != nil {
				return err
			}
		}
	}
	return nil
}

// readBack copies e.img into e.buf. The copy is recorded now but
// only valid to inspect once the command buffer has been committed
// and its completion observed by the caller (see Manager.Bytes).
func (e *entry) readBack(cb driver.CmdBuffer) error {
	cb.BeginBlit(false)
	defer cb.EndBlit()
	cb.CopyImgToBuf(&driver.BufImgCopy{
		Buf:    e.buf,
		BufOff: 0,
		Stride: [2]int64{int64(e.width), int64(e.height)},
		Img:    e.img,
		ImgOff: driver.Off3D{},
		Layer:  0,
		Level:  0,
		Size:   driver.Dim3D{Width: e.width, Height: e.height, Depth: 1},
	})
	return nil
}

// Bytes returns the host-memory contents of an Image-kind
// swapchain's last completed frame. It is meaningless for Windowed
// swapchains.
func (m *Manager) Bytes(h *handle.Handle) ([]byte, error) {
	e, err := m.get(h)
	if err != nil {
		return nil, err
	}
	if e.kind == Windowed {
		return nil, errors.New("swapchain: Bytes is not meaningful for a windowed swapchain")
	}
	return e.buf.Bytes(), nil
}

// PipeFrame writes a VideoPipe swapchain's current readback bytes to
// its external encoder process. It is a no-op for every other kind,
// Image included.
func (m *Manager) PipeFrame(h *handle.Handle) error {
	e, err := m.get(h)
	if err != nil {
		return err
	}
	if e.kind != VideoPipe {
		return nil
	}
	_, err = io.Copy(e.stdin, bytes.NewReader(e.buf.Bytes()))
	return err
}

// Image returns the underlying driver.Image for an Image/VideoPipe
// swapchain. Neither the renderer nor the backend calls it; the
// swapchain's resource handle resolves to this image only once it is
// bound with Renderer.BindImage.
func (m *Manager) Image(h *handle.Handle) (driver.Image, error) {
	e, err := m.get(h)
	if err != nil {
		return nil, err
	}
	if e.kind == Windowed {
		return nil, errors.New("swapchain: Image is not meaningful for a windowed swapchain")
	}
	return e.img, nil
}
