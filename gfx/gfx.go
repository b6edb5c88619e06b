// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package gfx defines contracts shared by the frame core, the Vulkan
// backend and the asset loaders.
package gfx

// Releasable defines any memory-occupying item that can be freed.
type Releasable interface {

	// Release releases memory occupied by the implementing structure.
	// Calling it more than once must be safe.
	Release()
}

// Loader describes a binary resource loader mechanism.
type Loader interface {

	// Load tries to find the resource associated with
	// the provided name and returns its raw contents.
	Load(name string) ([]byte, error)
}
