// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package frame

// Render pass enumerations. Values match Vulkan.
type (
	LoadOp        uint32
	StoreOp       uint32
	ImageLayout   uint32
	PipelineStage uint32
	Access        uint32
)

// Attachment load operations.
const (
	LoadOpLoad     LoadOp = 0
	LoadOpClear    LoadOp = 1
	LoadOpDontCare LoadOp = 2
)

// Attachment store operations.
const (
	StoreOpStore    StoreOp = 0
	StoreOpDontCare StoreOp = 1
)

// Image layouts used by the frame render pass.
const (
	ImageLayoutUndefined                     ImageLayout = 0
	ImageLayoutColorAttachmentOptimal        ImageLayout = 2
	ImageLayoutDepthStencilAttachmentOptimal ImageLayout = 3
	ImageLayoutPresentSrc                    ImageLayout = 1000001002
)

// Pipeline stages used by the frame render pass.
const (
	PipelineStageColorAttachmentOutput PipelineStage = 0x00000400
	PipelineStageBottomOfPipe          PipelineStage = 0x00002000
)

// Access masks used by the frame render pass.
const (
	AccessColorAttachmentRead  Access = 0x00000080
	AccessColorAttachmentWrite Access = 0x00000100
	AccessMemoryRead           Access = 0x00008000
)

// SubpassExternal refers to work outside the render pass.
const SubpassExternal = ^uint32(0)

// AttachmentDescription describes how one attachment is loaded,
// stored and transitioned by the render pass.
type AttachmentDescription struct {
	Format         Format
	LoadOp         LoadOp
	StoreOp        StoreOp
	StencilLoadOp  LoadOp
	StencilStoreOp StoreOp
	InitialLayout  ImageLayout
	FinalLayout    ImageLayout
}

// SubpassDependency orders work across a subpass boundary.
type SubpassDependency struct {
	SrcSubpass uint32
	DstSubpass uint32
	SrcStage   PipelineStage
	DstStage   PipelineStage
	SrcAccess  Access
	DstAccess  Access
	ByRegion   bool
}

// Attachments holds the color attachment followed by the depth attachment.
type Attachments [2]AttachmentDescription

// Color returns the color attachment.
func (a Attachments) Color() AttachmentDescription { return a[0] }

// Depth returns the depth-stencil attachment.
func (a Attachments) Depth() AttachmentDescription { return a[1] }

// Dependencies holds the dependency into the subpass followed by the one out of it.
type Dependencies [2]SubpassDependency

// Entry returns the dependency from external work into the subpass.
func (d Dependencies) Entry() SubpassDependency { return d[0] }

// Exit returns the dependency from the subpass to external work.
func (d Dependencies) Exit() SubpassDependency { return d[1] }

// RenderPassDescription is a single subpass render pass
// with one color and one depth attachment.
type RenderPassDescription struct {
	Attachments  Attachments
	Dependencies Dependencies
}

// NewRenderPassDescription describes a pass that clears both attachments,
// keeps color for presentation and leaves depth in attachment layout.
func NewRenderPassDescription(color, depth Format) RenderPassDescription {
	return RenderPassDescription{
		Attachments: Attachments{
			{
				Format:         color,
				LoadOp:         LoadOpClear,
				StoreOp:        StoreOpStore,
				StencilLoadOp:  LoadOpDontCare,
				StencilStoreOp: StoreOpDontCare,
				InitialLayout:  ImageLayoutUndefined,
				FinalLayout:    ImageLayoutPresentSrc,
			},
			{
				Format:         depth,
				LoadOp:         LoadOpClear,
				StoreOp:        StoreOpStore,
				StencilLoadOp:  LoadOpClear,
				StencilStoreOp: StoreOpDontCare,
				InitialLayout:  ImageLayoutUndefined,
				FinalLayout:    ImageLayoutDepthStencilAttachmentOptimal,
			},
		},
		Dependencies: Dependencies{
			{
				SrcSubpass: SubpassExternal,
				DstSubpass: 0,
				SrcStage:   PipelineStageBottomOfPipe,
				DstStage:   PipelineStageColorAttachmentOutput,
				SrcAccess:  AccessMemoryRead,
				DstAccess:  AccessColorAttachmentRead | AccessColorAttachmentWrite,
				ByRegion:   true,
			},
			{
				SrcSubpass: 0,
				DstSubpass: SubpassExternal,
				SrcStage:   PipelineStageColorAttachmentOutput,
				DstStage:   PipelineStageBottomOfPipe,
				SrcAccess:  AccessColorAttachmentRead | AccessColorAttachmentWrite,
				DstAccess:  AccessMemoryRead,
				ByRegion:   true,
			},
		},
	}
}
