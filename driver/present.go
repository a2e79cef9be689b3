package driver

import (
	"errors"

	"github.com/vitreousgfx/forge/wsi"
)

// Sentinel errors returned by Presenter.NewSwapchain and Swapchain's
// methods. swapchain.Manager classifies failures against these: a
// retryable ErrSwapchain drives its acquire-retry-once policy, while
// the rest surface as-is to the caller.
var (
	// ErrCannotPresent means this GPU has no presentation support at
	// all (e.g. an offscreen-only or compute-only device).
	ErrCannotPresent = errors.New("presentation not supported")

	// ErrWindow means a wsi.Window is misconfigured in a way that
	// blocks presentation, e.g. a swapchain requested against a
	// window that isn't mapped.
	ErrWindow = errors.New("window-related error")

	// ErrCompositor means the display compositor's configuration is
	// blocking presentation, e.g. it doesn't support the opaque
	// composition mode a swapchain requires.
	ErrCompositor = errors.New("compositor-related error")

	// ErrSwapchain means a specific swapchain has been invalidated,
	// typically by a window resize or compositor change, and needs
	// Recreate before it can be used again.
	ErrSwapchain = errors.New("swapchain-related error")

	// ErrNoBackbuffer means every backbuffer of a swapchain is
	// currently acquired; backbuffers free up as Present is called.
	ErrNoBackbuffer = errors.New("all backbuffers in use")
)

// Presenter is the optional capability a GPU implements to support
// on-screen output. swapchain.Manager type-asserts a driver.GPU
// against this interface when adding a Windowed-kind swapchain.
type Presenter interface {
	// NewSwapchain creates a swapchain of imageCount images bound to
	// win. A window may have at most one swapchain at a time.
	NewSwapchain(win wsi.Window, imageCount int) (Swapchain, error)
}

// Swapchain is an n-buffered chain of presentable images. Like any
// other GPU work, presentation only takes effect once the command
// buffer passed to Next/Present is submitted via GPU.Commit, and at
// most one Next/Present pair may be recorded per Commit.
type Swapchain interface {
	Destroyer

	// Views lists the swapchain's image views. The slice is stable
	// until Destroy or Recreate is called.
	Views() []ImageView

	// Next returns the index of the next writable image view. cb
	// must be the first command buffer to touch that image; any
	// render pass targeting it must be recorded after this call.
	Next(cb CmdBuffer) (int, error)

	// Present schedules the image view at index for display. cb
	// must be the last command buffer to write to that image; every
	// render pass targeting it must be recorded before this call.
	Present(index int, cb CmdBuffer) error

	// Recreate rebuilds the swapchain in place, in response to an
	// ErrSwapchain failure from Next or Present.
	Recreate() error

	// Format reports the pixel format of the swapchain's views.
	Format() PixelFmt
}
