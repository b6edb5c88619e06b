// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package frame

// Cursor tracks the iteration count and the currently acquired image.
type Cursor struct {
	iteration uint64
	image     uint32
	acquired  bool
}

// Iteration returns the number of the current iteration.
func (c Cursor) Iteration() uint64 {
	return c.iteration
}

// Acquired returns the acquired image index. The index is only
// valid between acquire and the matching present.
func (c Cursor) Acquired() (uint32, bool) {
	return c.image, c.acquired
}

func (c *Cursor) acquire(index uint32) {
	c.image = index
	c.acquired = true
}

func (c *Cursor) release() {
	c.acquired = false
}

// advance moves to the next iteration, dropping any acquired index.
func (c *Cursor) advance() {
	c.release()
	c.iteration++
}
