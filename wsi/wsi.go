// Package wsi is the engine's window-system integration layer: a
// Window abstracts a drawable surface a GPU can present into, kept
// deliberately thin since the render graph only ever needs a size, a
// title, and a lifecycle. A host system need not have a window
// system at all (a headless/offscreen renderer has no use for one),
// so wsi degrades to a dummy backend rather than failing to build;
// see wsi_dummy.go and wsi_glfw.go.
package wsi

import "errors"

// Window is a drawable surface a GPU can present into.
type Window interface {
	// Map makes the window visible.
	Map() error

	// Unmap hides the window without destroying it.
	Unmap() error

	// Resize changes the window's size.
	Resize(width, height int) error

	// SetTitle changes the window's title.
	SetTitle(title string) error

	// Close destroys the window. Calling any other method on it
	// afterward is invalid.
	Close()

	Width() int
	Height() int
	Title() string
}

// MaxWindows bounds how many windows may exist at once. swapchain.Manager
// associates at most one Windowed swapchain per window, so this also
// caps the number of simultaneous on-screen outputs a process drives.
const MaxWindows = 16

var (
	windowCount    int
	createdWindows [MaxWindows]Window
)

// NewWindow creates a window of the given size and title using
// whichever backend initGLFW/initDummy selected at package init.
func NewWindow(width, height int, title string) (Window, error) {
	if windowCount >= MaxWindows {
		return nil, errors.New("wsi: too many windows")
	}
	win, err := newWindow(width, height, title)
	if err != nil {
		return nil, err
	}
	for i := range createdWindows {
		if createdWindows[i] == nil {
			createdWindows[i] = win
			windowCount++
			break
		}
	}
	return win, nil
}

var newWindow func(int, int, string) (Window, error)

// Windows lists every window created by NewWindow that has not since
// been closed. The returned slice is a snapshot; it goes stale after
// the next NewWindow or Window.Close.
func Windows() []Window {
	if windowCount == 0 {
		return nil
	}
	wins := make([]Window, 0, windowCount)
	for i := range createdWindows {
		if createdWindows[i] != nil {
			wins = append(wins, createdWindows[i])
		}
	}
	return wins
}

// closeWindow drops win from the bookkeeping above. Backend Close
// implementations must call this. win must be comparable.
func closeWindow(win Window) {
	for i := range createdWindows {
		if createdWindows[i] == win {
			createdWindows[i] = nil
			windowCount--
			return
		}
	}
}

// WindowHandler receives window lifecycle events. swapchain.Manager
// registers itself as the process's WindowHandler so that a window
// resize or close drives ResizeSwapchain/RemoveSwapchain on the
// swapchain bound to that window, without the renderer having to
// poll window state every frame.
type WindowHandler interface {
	// WindowClose is called when a window has been closed.
	WindowClose(win Window)

	// WindowResize is called when a window's framebuffer size
	// changes.
	WindowResize(win Window, newWidth, newHeight int)
}

// SetWindowHandler installs the process-wide WindowHandler. A later
// call replaces the previous handler; only one is active at a time.
func SetWindowHandler(wh WindowHandler) {
	windowHandler = wh
}

var windowHandler WindowHandler

// Dispatch processes queued window-system events, delivering any
// that occurred to the registered WindowHandler before returning.
func Dispatch() {
	dispatch()
}

var dispatch func()

// AppName returns the identifier the backend advertises to the
// window system for this process.
func AppName() string {
	return appName
}

// SetAppName changes the identifier the backend advertises to the
// window system for this process.
func SetAppName(s string) {
	setAppName(s)
	appName = s
}

var (
	appName    string
	setAppName func(string)
)

// Platform identifies which backend is providing wsi's functionality.
type Platform int

const (
	// None means no listed window system was identified. With the
	// dummy backend NewWindow always fails and Dispatch is a no-op;
	// the glfw backend also reports None on darwin.
	None Platform = iota
	Android
	Wayland
	Win32
	XCB
)

// PlatformInUse reports the Platform wsi selected at init.
func PlatformInUse() Platform {
	return platform
}

var platform Platform
