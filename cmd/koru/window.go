// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"github.com/pkg/errors"
	"github.com/veandco/go-sdl2/sdl"

	"github.com/devblok/koruframe/core"
	"github.com/devblok/koruframe/gfx/frame"
)

func newWindow(cfg core.WindowConfiguration) (*sdl.Window, error) {
	window, err := sdl.CreateWindow(cfg.Title,
		sdl.WINDOWPOS_UNDEFINED,
		sdl.WINDOWPOS_UNDEFINED,
		int32(cfg.Width),
		int32(cfg.Height),
		sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		return nil, errors.Wrap(err, "sdl.CreateWindow()")
	}
	return window, nil
}

// windowEvents drains the SDL queue once per frame.
type windowEvents struct {
	window *sdl.Window
}

// Poll implements frame.EventSource.
func (e windowEvents) Poll() frame.Events {
	var events frame.Events
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch et := event.(type) {
		case *sdl.QuitEvent:
			events.Terminate = true
		case *sdl.KeyboardEvent:
			if et.Type == sdl.KEYDOWN && et.Keysym.Sym == sdl.K_ESCAPE {
				events.Terminate = true
			}
		case *sdl.WindowEvent:
			switch et.Event {
			case sdl.WINDOWEVENT_CLOSE:
				events.Terminate = true
			case sdl.WINDOWEVENT_RESIZED, sdl.WINDOWEVENT_SIZE_CHANGED,
				sdl.WINDOWEVENT_MINIMIZED, sdl.WINDOWEVENT_RESTORED:
				width, height := e.window.VulkanGetDrawableSize()
				events.Resized = true
				events.Width, events.Height = uint32(width), uint32(height)
			}
		}
	}
	return events
}
