// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package wsi

import (
	"fmt"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
)

// glfwWindow implements Window on top of a *glfw.Window. It also
// exposes GLFWWindow so that a driver's swapchain implementation
// can build a native surface descriptor from it without wsi
// depending on any particular GPU API.
type glfwWindow struct {
	win    *glfw.Window
	title  string
	mapped bool
}

// GLFWWindow returns the underlying glfw window handle. Driver
// packages that need a native surface (e.g. to call
// wgpuglfw.GetSurfaceDescriptor) type-assert wsi.Window against
// this method set rather than importing package wsi's internals.
func (w *glfwWindow) GLFWWindow() *glfw.Window { return w.win }

func (w *glfwWindow) Map() error {
	w.win.Show()
	w.mapped = true
	return nil
}

func (w *glfwWindow) Unmap() error {
	w.win.Hide()
	w.mapped = false
	return nil
}

func (w *glfwWindow) Resize(width, height int) error {
	w.win.SetSize(width, height)
	return nil
}

func (w *glfwWindow) SetTitle(title string) error {
	w.win.SetTitle(title)
	w.title = title
	return nil
}

func (w *glfwWindow) Close() {
	closeWindow(w)
	if windowHandler != nil {
		windowHandler.WindowClose(w)
	}
	w.win.Destroy()
}

func (w *glfwWindow) Width() int {
	width, _ := w.win.GetSize()
	return width
}

func (w *glfwWindow) Height() int {
	_, height := w.win.GetSize()
	return height
}

func (w *glfwWindow) Title() string { return w.title }

func newWindowGLFW(width, height int, title string) (Window, error) {
	runtime.LockOSThread()

	// WebGPU provides its own swapchain, so no client API context
	// is created for the window.
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Visible, glfw.False)

	win, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("wsi: creating glfw window: %w", err)
	}

	w := &glfwWindow{win: win, title: title}

	// The close and framebuffer-resize callbacks are the events
	// swapchain.Manager cares about: a closed or resized window
	// invalidates the Windowed swapchain bound to it.
	win.SetCloseCallback(func(_ *glfw.Window) {
		if windowHandler != nil {
			windowHandler.WindowClose(w)
		}
	})
	win.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		if windowHandler != nil {
			windowHandler.WindowResize(w, width, height)
		}
	})

	return w, nil
}

func dispatchGLFW() { glfw.PollEvents() }

var appNameGLFW string

func setAppNameGLFW(name string) { appNameGLFW = name }

// initGLFW initializes GLFW and wires it in as the wsi backend.
// It returns an error if GLFW could not be initialized (e.g. no
// display server available), in which case the caller falls back
// to the dummy backend.
func initGLFW() error {
	runtime.LockOSThread()
	if err := glfw.Init(); err != nil {
		return fmt.Errorf("wsi: initializing glfw: %w", err)
	}
	newWindow = newWindowGLFW
	dispatch = dispatchGLFW
	setAppName = setAppNameGLFW
	switch runtime.GOOS {
	case "windows":
		platform = Win32
	case "darwin":
		platform = None
	default:
		platform = XCB
	}
	return nil
}
