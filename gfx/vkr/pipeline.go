// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"unsafe"

	vk "github.com/devblok/vulkan"
	glm "github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/devblok/koruframe/gfx"
	"github.com/devblok/koruframe/gfx/frame"
)

type pushConstant struct {
	Model glm.Mat4
}

// Pipeline is a graphics pipeline whose only input is a model matrix
// pushed per draw. Vertices are generated by the vertex shader.
type Pipeline struct {
	device   vk.Device
	layout   vk.PipelineLayout
	pipeline vk.Pipeline
	modules  []vk.ShaderModule
}

func newShaderModule(device vk.Device, code []byte) (vk.ShaderModule, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, errors.Errorf("shader code of %d bytes is not SPIR-V", len(code))
	}
	smci := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    gfx.SliceUint32(code),
	}
	var module vk.ShaderModule
	if err := vkError("CreateShaderModule", vk.CreateShaderModule(device, &smci, nil, &module)); err != nil {
		return nil, err
	}
	return module, nil
}

// NewPipeline builds a pipeline for renderPass from SPIR-V vertex and
// fragment code. Viewport and scissor are dynamic, so the pipeline
// survives surface reconfiguration as long as the render pass does.
func NewPipeline(dev *Device, renderPass frame.RenderPass, vertex, fragment []byte) (p *Pipeline, err error) {
	p = &Pipeline{device: dev.Handle()}
	defer func() {
		if err != nil {
			p.Release()
			p = nil
		}
	}()

	stages := make([]vk.PipelineShaderStageCreateInfo, 0, 2)
	for _, s := range []struct {
		stage vk.ShaderStageFlagBits
		code  []byte
	}{
		{vk.ShaderStageVertexBit, vertex},
		{vk.ShaderStageFragmentBit, fragment},
	} {
		module, err := newShaderModule(p.device, s.code)
		if err != nil {
			return p, err
		}
		p.modules = append(p.modules, module)
		stages = append(stages, vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  s.stage,
			Module: module,
			PName:  safeString("main"),
		})
	}

	pcr := []vk.PushConstantRange{{
		Offset:     0,
		Size:       uint32(unsafe.Sizeof(pushConstant{})),
		StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit),
	}}
	plci := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		PushConstantRangeCount: uint32(len(pcr)),
		PPushConstantRanges:    pcr,
	}
	if err := vkError("CreatePipelineLayout", vk.CreatePipelineLayout(p.device, &plci, nil, &p.layout)); err != nil {
		return p, err
	}

	gpci := []vk.GraphicsPipelineCreateInfo{{
		SType:      vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount: uint32(len(stages)),
		PStages:    stages,
		PVertexInputState: &vk.PipelineVertexInputStateCreateInfo{
			SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
		},
		PInputAssemblyState: &vk.PipelineInputAssemblyStateCreateInfo{
			SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
			Topology: vk.PrimitiveTopologyTriangleList,
		},
		PViewportState: &vk.PipelineViewportStateCreateInfo{
			SType:         vk.StructureTypePipelineViewportStateCreateInfo,
			ViewportCount: 1,
			ScissorCount:  1,
		},
		PRasterizationState: &vk.PipelineRasterizationStateCreateInfo{
			SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
			PolygonMode: vk.PolygonModeFill,
			CullMode:    vk.CullModeFlags(vk.CullModeNone),
			FrontFace:   vk.FrontFaceCounterClockwise,
			LineWidth:   1.0,
		},
		PDepthStencilState: &vk.PipelineDepthStencilStateCreateInfo{
			SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
			DepthTestEnable:  vk.True,
			DepthWriteEnable: vk.True,
			DepthCompareOp:   vk.CompareOpLess,
			Back: vk.StencilOpState{
				FailOp:    vk.StencilOpKeep,
				PassOp:    vk.StencilOpKeep,
				CompareOp: vk.CompareOpAlways,
			},
			Front: vk.StencilOpState{
				FailOp:    vk.StencilOpKeep,
				PassOp:    vk.StencilOpKeep,
				CompareOp: vk.CompareOpAlways,
			},
		},
		PMultisampleState: &vk.PipelineMultisampleStateCreateInfo{
			SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
			RasterizationSamples: vk.SampleCount1Bit,
		},
		PColorBlendState: &vk.PipelineColorBlendStateCreateInfo{
			SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
			AttachmentCount: 1,
			PAttachments: []vk.PipelineColorBlendAttachmentState{{
				ColorWriteMask: 0xF,
				BlendEnable:    vk.False,
			}},
		},
		PDynamicState: &vk.PipelineDynamicStateCreateInfo{
			SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
			DynamicStateCount: 2,
			PDynamicStates: []vk.DynamicState{
				vk.DynamicStateScissor,
				vk.DynamicStateViewport,
			},
		},
		Layout:     p.layout,
		RenderPass: vkRenderPass(renderPass),
	}}

	var cache vk.PipelineCache
	pipelines := make([]vk.Pipeline, len(gpci))
	if err := vkError("CreateGraphicsPipelines", vk.CreateGraphicsPipelines(p.device, cache, uint32(len(gpci)), gpci, nil, pipelines)); err != nil {
		return p, err
	}
	p.pipeline = pipelines[0]
	return p, nil
}

// Draw binds the pipeline, pushes model and draws vertices generated
// by the vertex shader. It is meant to run inside a Record body.
func (p *Pipeline) Draw(cmd vk.CommandBuffer, model glm.Mat4, vertices uint32) {
	pc := pushConstant{Model: model}
	vk.CmdBindPipeline(cmd, vk.PipelineBindPointGraphics, p.pipeline)
	vk.CmdPushConstants(cmd, p.layout, vk.ShaderStageFlags(vk.ShaderStageVertexBit), 0, uint32(unsafe.Sizeof(pc)), unsafe.Pointer(&pc))
	vk.CmdDraw(cmd, vertices, 1, 0, 0)
}

// Release destroys the pipeline, its layout and shader modules. It may
// be called more than once.
func (p *Pipeline) Release() {
	if p.pipeline != nil {
		vk.DestroyPipeline(p.device, p.pipeline, nil)
		p.pipeline = nil
	}
	if p.layout != nil {
		vk.DestroyPipelineLayout(p.device, p.layout, nil)
		p.layout = nil
	}
	for _, m := range p.modules {
		vk.DestroyShaderModule(p.device, m, nil)
	}
	p.modules = nil
}
