// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"os"

	vk "github.com/devblok/vulkan"
	glm "github.com/go-gl/mathgl/mgl32"
	"github.com/gobuffalo/packr"
	"github.com/sirupsen/logrus"

	"github.com/devblok/koruframe/asset"
	"github.com/devblok/koruframe/gfx"
	"github.com/devblok/koruframe/gfx/frame"
	"github.com/devblok/koruframe/gfx/vkr"
)

const (
	shaderName = "triangle"

	// radians per second
	rotationSpeed = 0.5
)

// shaderLoader picks the shader source: a kar archive or a directory
// when path is set, the shaders box otherwise.
func shaderLoader(path string) (gfx.Loader, func(), error) {
	noop := func() {}
	if path == "" {
		return asset.BoxLoader{Finder: packr.NewBox("../../shaders")}, noop, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, noop, err
	}
	if info.IsDir() {
		return asset.DirLoader{Root: path}, noop, nil
	}

	archive, closer, err := asset.OpenFile(path)
	if err != nil {
		return nil, noop, err
	}
	return archive, func() { closer.Close() }, nil
}

// world spins a single triangle. Without loadable shaders it only
// clears the screen.
type world struct {
	log    logrus.FieldLogger
	device *vkr.Device
	loader gfx.Loader

	pipeline   *vkr.Pipeline
	renderPass frame.RenderPass

	angle float32
}

func newWorld(device *vkr.Device, loader gfx.Loader, log logrus.FieldLogger) *world {
	return &world{
		log:    log,
		device: device,
		loader: loader,
	}
}

// Advance implements frame.Application.
func (w *world) Advance(iteration uint64, msPerFrame float64) {
	w.angle += float32(msPerFrame/1000) * rotationSpeed
}

// Draw implements frame.Application.
func (w *world) Draw(f frame.Frame) error {
	if f.RenderPass != w.renderPass {
		w.rebuild(f.RenderPass)
	}

	model := glm.HomogRotate3D(w.angle, glm.Vec3{0, 0, 1})
	return vkr.Record(f, vkr.DefaultClearColor, func(cmd vk.CommandBuffer) {
		if w.pipeline != nil {
			w.pipeline.Draw(cmd, model, 3)
		}
	})
}

// rebuild makes a pipeline for a new render pass. Render passes only
// change after the device went idle, so the old pipeline is unused.
func (w *world) rebuild(renderPass frame.RenderPass) {
	w.Release()
	w.renderPass = renderPass

	vertex, err := w.loader.Load(asset.ShaderFileName(shaderName, asset.VertexShaderType))
	if err != nil {
		w.log.WithError(err).Warn("drawing without pipeline")
		return
	}
	fragment, err := w.loader.Load(asset.ShaderFileName(shaderName, asset.FragmentShaderType))
	if err != nil {
		w.log.WithError(err).Warn("drawing without pipeline")
		return
	}

	pipeline, err := vkr.NewPipeline(w.device, renderPass, vertex, fragment)
	if err != nil {
		w.log.WithError(err).Warn("drawing without pipeline")
		return
	}
	w.pipeline = pipeline
}

// Release implements gfx.Releasable.
func (w *world) Release() {
	if w.pipeline != nil {
		w.pipeline.Release()
		w.pipeline = nil
	}
}

var _ gfx.Releasable = (*world)(nil)
