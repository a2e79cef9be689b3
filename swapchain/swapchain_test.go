package swapchain_test

import (
	"testing"

	"github.com/vitreousgfx/forge/driver"
	"github.com/vitreousgfx/forge/handle"
	"github.com/vitreousgfx/forge/internal/testgpu"
	"github.com/vitreousgfx/forge/swapchain"
)

func TestAddWindowedSwapchainAndAcquirePresent(t *testing.T) {
	gpu := testgpu.NewGPU()
	mgr := swapchain.NewManager(gpu, handle.NewRegistry())
	win := &testgpu.Window{W: 1024, H: 768}

	h, err := mgr.AddSwapchain(swapchain.Settings{Kind: swapchain.Windowed, Window: win})
	if err != nil {
		t.Fatalf("AddSwapchain: %v", err)
	}
	w, hgt, err := mgr.GetSwapchainExtent(h)
	if err != nil {
		t.Fatalf("GetSwapchainExtent: %v", err)
	}
	if w != 1024 || hgt != 768 {
		t.Fatalf("extent = %dx%d, want 1024x768", w, hgt)
	}

	cb := &testgpu.CmdBuffer{}
	if err := mgr.AcquireSwapchainResources(cb); err != nil {
		t.Fatalf("AcquireSwapchainResources: %v", err)
	}
	if err := mgr.PresentResources(cb); err != nil {
		t.Fatalf("PresentResources: %v", err)
	}

	sc := gpu.Swapchains[win]
	if sc.NextCalls != 1 || sc.PresentCalls != 1 {
		t.Fatalf("Next/Present calls = %d/%d, want 1/1", sc.NextCalls, sc.PresentCalls)
	}
}

func TestAcquireRetriesOnceAfterRecreate(t *testing.T) {
	gpu := testgpu.NewGPU()
	mgr := swapchain.NewManager(gpu, handle.NewRegistry())
	win := &testgpu.Window{W: 800, H: 600}

	if _, err := mgr.AddSwapchain(swapchain.Settings{Kind: swapchain.Windowed, Window: win}); err != nil {
		t.Fatalf("AddSwapchain: %v", err)
	}
	sc := gpu.Swapchains[win]
	sc.FailNextOnce = true

	cb := &testgpu.CmdBuffer{}
	if err := mgr.AcquireSwapchainResources(cb); err != nil {
		t.Fatalf("AcquireSwapchainResources: %v", err)
	}
	if sc.RecreateCalls != 1 {
		t.Fatalf("expected exactly 1 Recreate call, got %d", sc.RecreateCalls)
	}
	if sc.NextCalls != 2 {
		t.Fatalf("expected 2 Next calls (fail then retry), got %d", sc.NextCalls)
	}
}

func TestResizeOffscreenSwapchain(t *testing.T) {
	gpu := testgpu.NewGPU()
	mgr := swapchain.NewManager(gpu, handle.NewRegistry())

	h, err := mgr.AddSwapchain(swapchain.Settings{Kind: swapchain.Image, Width: 1024, Height: 768})
	if err != nil {
		t.Fatalf("AddSwapchain: %v", err)
	}
	if err := mgr.ResizeSwapchain(h, 1280, 720); err != nil {
		t.Fatalf("ResizeSwapchain: %v", err)
	}
	w, hgt, err := mgr.GetSwapchainExtent(h)
	if err != nil {
		t.Fatalf("GetSwapchainExtent: %v", err)
	}
	if w != 1280 || hgt != 720 {
		t.Fatalf("extent after resize = %dx%d, want 1280x720", w, hgt)
	}
}

func TestImageSwapchainReadBack(t *testing.T) {
	gpu := testgpu.NewGPU()
	mgr := swapchain.NewManager(gpu, handle.NewRegistry())

	h, err := mgr.AddSwapchain(swapchain.Settings{Kind: swapchain.Image, Width: 4, Height: 4, Format: driver.RGBA8sRGB})
	if err != nil {
		t.Fatalf("AddSwapchain: %v", err)
	}
	cb := &testgpu.CmdBuffer{}
	if err := mgr.AcquireSwapchainResources(cb); err != nil {
		t.Fatalf("AcquireSwapchainResources: %v", err)
	}
	if err := mgr.PresentResources(cb); err != nil {
		t.Fatalf("PresentResources: %v", err)
	}
	b, err := mgr.Bytes(h)
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if len(b) != 4*4*4 {
		t.Fatalf("readback buffer size = %d, want %d", len(b), 4*4*4)
	}
}

func TestUnknownSwapchainHandleErrors(t *testing.T) {
	gpu := testgpu.NewGPU()
	mgr := swapchain.NewManager(gpu, handle.NewRegistry())
	other := handle.NewRegistry().InternTexture("not-a-swapchain")
	if _, _, err := mgr.GetSwapchainExtent(other); err != swapchain.ErrUnknownSwapchain {
		t.Fatalf("GetSwapchainExtent error = %v, want ErrUnknownSwapchain", err)
	}
}
