// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	vk "github.com/devblok/vulkan"

	"github.com/devblok/koruframe/gfx/frame"
)

// DefaultClearColor is the near-black the renderer clears to.
var DefaultClearColor = [4]float32{0.005, 0.005, 0.005, 1}

// Record fills the command buffer of f. It opens the render pass on the
// frame's framebuffer, clearing color to clear and depth to 1, sets a
// viewport and scissor covering the extent and calls body, if any,
// before closing the pass.
func Record(f frame.Frame, clear [4]float32, body func(cmd vk.CommandBuffer)) error {
	cmd := vkCommandBuffer(f.Commands)

	if err := vkError("ResetCommandBuffer", vk.ResetCommandBuffer(cmd, 0)); err != nil {
		return err
	}

	cbbi := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if err := vkError("BeginCommandBuffer", vk.BeginCommandBuffer(cmd, &cbbi)); err != nil {
		return err
	}

	clearValues := make([]vk.ClearValue, 2)
	clearValues[0].SetColor(clear[:])
	clearValues[1].SetDepthStencil(1, 0)

	area := renderArea(f.Extent)
	rpbi := vk.RenderPassBeginInfo{
		SType:           vk.StructureTypeRenderPassBeginInfo,
		RenderPass:      vkRenderPass(f.RenderPass),
		Framebuffer:     vkFramebuffer(f.Framebuffer),
		RenderArea:      area,
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(cmd, &rpbi, vk.SubpassContentsInline)
	vk.CmdSetViewport(cmd, 0, 1, []vk.Viewport{viewport(f.Extent)})
	vk.CmdSetScissor(cmd, 0, 1, []vk.Rect2D{area})

	if body != nil {
		body(cmd)
	}

	vk.CmdEndRenderPass(cmd)
	return vkError("EndCommandBuffer", vk.EndCommandBuffer(cmd))
}

func renderArea(extent frame.Extent2D) vk.Rect2D {
	return vk.Rect2D{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: vk.Extent2D{
			Width:  extent.Width,
			Height: extent.Height,
		},
	}
}

func viewport(extent frame.Extent2D) vk.Viewport {
	return vk.Viewport{
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}
}
