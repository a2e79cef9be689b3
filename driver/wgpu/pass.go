// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package wgpu

import (
	"fmt"

	"github.com/vitreousgfx/forge/driver"
)

// RenderPass records the attachment layout and subpass list a
// pipeline and framebuffer must agree on. Unlike a Vulkan render
// pass, WebGPU has no persistent render-pass object: the
// attachment/subpass description is only consulted when building a
// graphics pipeline (for target formats) and when CmdBuffer builds
// a wgpu.RenderPassDescriptor from a Framebuf at BeginPass time.
type RenderPass struct {
	gpu *GPU
	att []driver.Attachment
	sub []driver.Subpass
}

// Destroy implements driver.Destroyer. There is no underlying
// wgpu object to release.
func (p *RenderPass) Destroy() {}

// NewFB implements driver.RenderPass.
func (p *RenderPass) NewFB(iv []driver.ImageView, width, height, layers int) (driver.Framebuf, error) {
	if len(iv) != len(p.att) {
		return nil, fmt.Errorf("wgpu: framebuffer has %d views, render pass has %d attachments", len(iv), len(p.att))
	}
	views := make([]*ImageView, len(iv))
	for i, v := range iv {
		vv, ok := v.(*ImageView)
		if !ok {
			return nil, fmt.Errorf("wgpu: foreign ImageView type %T", v)
		}
		views[i] = vv
	}
	return &Framebuf{pass: p, views: views, width: width, height: height, layers: layers}, nil
}

// Framebuf binds a RenderPass's attachment list to concrete image
// views.
type Framebuf struct {
	pass   *RenderPass
	views  []*ImageView
	width  int
	height int
	layers int
}

// Destroy implements driver.Destroyer. The views are owned by
// their Image, not by the Framebuf.
func (f *Framebuf) Destroy() {}
