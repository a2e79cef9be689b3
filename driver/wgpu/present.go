// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package wgpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/vitreousgfx/forge/driver"
	"github.com/vitreousgfx/forge/wsi"
)

// glfwWindower is implemented by wsi.Window values backed by a
// *glfw.Window (package wsi's glfwWindow type). It lets this
// package build a native wgpu surface without wsi depending on
// any particular GPU API.
type glfwWindower interface {
	GLFWWindow() *glfw.Window
}

// NewSwapchain implements driver.Presenter.
func (g *GPU) NewSwapchain(win wsi.Window, imageCount int) (driver.Swapchain, error) {
	gw, ok := win.(glfwWindower)
	if !ok {
		return nil, fmt.Errorf("wgpu: %w: window is not backed by glfw", driver.ErrWindow)
	}
	surfDesc := wgpuglfw.GetSurfaceDescriptor(gw.GLFWWindow())
	surf := g.instance.CreateSurface(surfDesc)
	if surf == nil {
		return nil, fmt.Errorf("wgpu: %w: creating surface", driver.ErrWindow)
	}

	s := &Swapchain{
		gpu:  g,
		win:  win,
		surf: surf,
		n:    imageCount,
	}
	if err := s.configure(); err != nil {
		surf.Release()
		return nil, err
	}
	return s, nil
}

// Swapchain implements driver.Swapchain on top of a wgpu surface.
// Unlike the teacher's Vulkan-oriented model of a fixed ring of
// pre-allocated backbuffer images, a wgpu surface hands out one
// texture per call to GetCurrentTexture and expects it to be
// presented (or released) before the next call; Next/Present below
// adapt that single-slot protocol to the n-index Views/Next/Present
// contract by re-wrapping the same acquired texture's view at
// index 0 every time, since imageCount beyond 1 has no meaning for
// a wgpu surface.
type Swapchain struct {
	gpu  *GPU
	win  wsi.Window
	surf *wgpu.Surface
	n    int

	format driver.PixelFmt
	view   *wgpu.TextureView
	tex    *wgpu.Texture
	iv     []driver.ImageView
	held   bool
}

func (s *Swapchain) configure() error {
	caps := s.surf.GetCapabilities(s.gpu.adapter)
	if len(caps.Formats) == 0 {
		return fmt.Errorf("wgpu: %w: surface reports no supported formats", driver.ErrSwapchain)
	}
	format := caps.Formats[0]
	alpha := wgpu.CompositeAlphaModeOpaque
	if len(caps.AlphaModes) > 0 {
		alpha = caps.AlphaModes[0]
	}
	s.surf.Configure(s.gpu.adapter, s.gpu.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      format,
		Width:       uint32(s.win.Width()),
		Height:      uint32(s.win.Height()),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   alpha,
	})
	s.format = pixelFmtFrom(format)
	return nil
}

// Destroy implements driver.Destroyer.
func (s *Swapchain) Destroy() {
	s.releaseAcquired()
	s.surf.Release()
}

func (s *Swapchain) releaseAcquired() {
	if s.view != nil {
		s.view.Release()
		s.view = nil
	}
	if s.tex != nil {
		s.tex.Release()
		s.tex = nil
	}
	s.iv = nil
	s.held = false
}

// Views implements driver.Swapchain.
//
// A wgpu surface only ever exposes the texture most recently
// returned by GetCurrentTexture, so this slice is only meaningful
// between a call to Next and the matching call to Present.
func (s *Swapchain) Views() []driver.ImageView { return s.iv }

// Next implements driver.Swapchain.
func (s *Swapchain) Next(cb driver.CmdBuffer) (int, error) {
	if s.held {
		return 0, fmt.Errorf("wgpu: %w: backbuffer already acquired", driver.ErrNoBackbuffer)
	}
	tex, err := s.surf.GetCurrentTexture()
	if err != nil {
		return 0, fmt.Errorf("wgpu: %w: acquiring next image: %v", driver.ErrSwapchain, err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return 0, fmt.Errorf("wgpu: creating swapchain image view: %w", err)
	}
	s.tex = tex
	s.view = view
	s.iv = []driver.ImageView{&ImageView{view: view, format: s.format}}
	s.held = true
	return 0, nil
}

// Present implements driver.Swapchain.
func (s *Swapchain) Present(index int, cb driver.CmdBuffer) error {
	if !s.held || index != 0 {
		return fmt.Errorf("wgpu: %w: no acquired backbuffer at index %d", driver.ErrSwapchain, index)
	}
	s.surf.Present()
	s.releaseAcquired()
	return nil
}

// Recreate implements driver.Swapchain.
func (s *Swapchain) Recreate() error {
	s.releaseAcquired()
	return s.configure()
}

// Format implements driver.Swapchain.
func (s *Swapchain) Format() driver.PixelFmt { return s.format }
