// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package frame_test

import (
	"context"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/pkg/errors"

	"github.com/devblok/koruframe/gfx/frame"
)

// recordingApp remembers every hook invocation.
type recordingApp struct {
	advanced []uint64
	frames   []frame.Frame
	mspf     []float64
	err      error
}

func (a *recordingApp) Advance(iteration uint64, msPerFrame float64) {
	a.advanced = append(a.advanced, iteration)
	a.mspf = append(a.mspf, msPerFrame)
}

func (a *recordingApp) Draw(f frame.Frame) error {
	a.frames = append(a.frames, f)
	return a.err
}

// scriptedEvents requests termination after a number of polls.
type scriptedEvents struct {
	polls       int
	terminateAt int // zero never terminates
	resizeAt    int
	resize      frame.Events
}

func (e *scriptedEvents) Poll() frame.Events {
	e.polls++
	if e.terminateAt > 0 && e.polls >= e.terminateAt {
		return frame.Events{Terminate: true}
	}
	if e.resizeAt > 0 && e.polls == e.resizeAt {
		return e.resize
	}
	return frame.Events{}
}

type fixedClock time.Duration

func (c fixedClock) Lap() time.Duration { return time.Duration(c) }

func newDriver(c *qt.C, f *fixture, cfg frame.DriverConfiguration) *frame.Driver {
	if cfg.Width == 0 {
		cfg.Width, cfg.Height = 800, 600
	}
	if cfg.Clock == nil {
		cfg.Clock = fixedClock(16 * time.Millisecond)
	}
	cfg.VSync = true
	driver, err := frame.NewDriver(f.connect(), cfg)
	c.Assert(err, qt.IsNil)
	return driver
}

func TestDriverSteadyState(t *testing.T) {
	c := qt.New(t)
	f := newFixture()
	driver := newDriver(c, f, frame.DriverConfiguration{})
	c.Assert(driver.State(), qt.Equals, frame.StateIdle)
	c.Assert(driver.Pool().Len(), qt.Equals, 3)

	app := &recordingApp{}
	events := &scriptedEvents{}
	for i := 0; i < 9; i++ {
		alive, err := driver.Step(app, events)
		c.Assert(err, qt.IsNil)
		c.Assert(alive, qt.IsTrue)
	}

	c.Assert(driver.Cursor().Iteration(), qt.Equals, uint64(9))
	_, acquired := driver.Cursor().Acquired()
	c.Assert(acquired, qt.IsFalse)
	c.Assert(app.advanced, qt.DeepEquals, []uint64{0, 1, 2, 3, 4, 5, 6, 7, 8})
	c.Assert(app.frames, qt.HasLen, 9)
	c.Assert(f.swapchain.presented, qt.DeepEquals, []uint32{0, 1, 2, 0, 1, 2, 0, 1, 2})
	c.Assert(app.mspf[0], qt.Equals, float64(0))
	c.Assert(app.mspf[1], qt.Equals, float64(16))

	for _, fr := range app.frames {
		c.Assert(fr.RenderPass, qt.Equals, driver.Targets().RenderPass())
		c.Assert(fr.Extent, qt.Equals, frame.Extent2D{Width: 800, Height: 600})
	}
}

func TestDriverIndexConsistency(t *testing.T) {
	c := qt.New(t)
	f := newFixture()
	driver := newDriver(c, f, frame.DriverConfiguration{})

	// Hand out images out of order.
	order := []uint32{2, 0, 1, 1, 2, 0, 0, 2}
	f.swapchain.acquireErr = func(call int) error {
		f.swapchain.next = order[call%len(order)]
		return nil
	}

	app := &recordingApp{}
	for i := 0; i < len(order); i++ {
		_, err := driver.Step(app, &scriptedEvents{})
		c.Assert(err, qt.IsNil)
	}

	pool := driver.Pool()
	framebuffers := driver.Targets().Framebuffers()
	c.Assert(f.swapchain.acquired, qt.DeepEquals, order)
	c.Assert(f.swapchain.presented, qt.DeepEquals, order)
	c.Assert(f.device.waited, qt.HasLen, len(order))
	c.Assert(f.device.submits, qt.HasLen, len(order))
	for i, index := range order {
		slot, err := pool.Slot(int(index))
		c.Assert(err, qt.IsNil)
		c.Assert(f.device.waited[i], qt.Equals, slot.Fence())
		c.Assert(f.device.submits[i].fence, qt.Equals, slot.Fence())
		c.Assert(f.device.submits[i].commands, qt.Equals, slot.Commands)
		c.Assert(app.frames[i].ImageIndex, qt.Equals, index)
		c.Assert(app.frames[i].Commands, qt.Equals, slot.Commands)
		c.Assert(app.frames[i].Framebuffer, qt.Equals, framebuffers[index])
	}
}

func TestDriverSemaphoreOrdering(t *testing.T) {
	c := qt.New(t)
	f := newFixture()
	driver := newDriver(c, f, frame.DriverConfiguration{})

	_, err := driver.Step(&recordingApp{}, &scriptedEvents{})
	c.Assert(err, qt.IsNil)

	pair := driver.Pool().Semaphores()
	c.Assert(f.device.submits[0].wait, qt.Equals, pair.ImageAcquired)
	c.Assert(f.device.submits[0].signal, qt.Equals, pair.RenderComplete)
}

func TestDriverOutOfDateOnAcquire(t *testing.T) {
	c := qt.New(t)
	f := newFixture()
	driver := newDriver(c, f, frame.DriverConfiguration{})

	f.swapchain.acquireErr = func(call int) error {
		if call == 10 {
			return frame.ErrSurfaceOutOfDate
		}
		return nil
	}

	var transitions []frame.State
	app := &recordingApp{}
	for i := 0; i < 13; i++ {
		if i == 10 {
			transitions = nil
		}
		alive, err := driver.Step(app, &scriptedEvents{})
		c.Assert(err, qt.IsNil)
		c.Assert(alive, qt.IsTrue)
		if i == 10 {
			transitions = append(transitions, driver.State())
		}
	}

	c.Assert(app.advanced, qt.HasLen, 13)
	c.Assert(app.frames, qt.HasLen, 12)
	c.Assert(app.frames[9].Iteration, qt.Equals, uint64(9))
	c.Assert(app.frames[10].Iteration, qt.Equals, uint64(11))
	c.Assert(f.swapchain.presented, qt.HasLen, 12)
	c.Assert(f.swapchain.created, qt.HasLen, 2)
	c.Assert(driver.Cursor().Iteration(), qt.Equals, uint64(13))
	c.Assert(transitions, qt.DeepEquals, []frame.State{frame.StateIdle})
}

func TestDriverTransitions(t *testing.T) {
	c := qt.New(t)
	f := newFixture()

	var seen []frame.State
	driver := newDriver(c, f, frame.DriverConfiguration{
		OnTransition: func(from, to frame.State) {
			seen = append(seen, to)
		},
	})
	seen = nil

	_, err := driver.Step(&recordingApp{}, &scriptedEvents{})
	c.Assert(err, qt.IsNil)
	c.Assert(seen, qt.DeepEquals, []frame.State{
		frame.StateAcquiring,
		frame.StateRecording,
		frame.StateSubmitted,
		frame.StatePresenting,
		frame.StateIdle,
	})

	seen = nil
	f.swapchain.acquireErr = func(int) error { return frame.ErrSurfaceOutOfDate }
	_, err = driver.Step(&recordingApp{}, &scriptedEvents{})
	c.Assert(err, qt.IsNil)
	c.Assert(seen, qt.DeepEquals, []frame.State{
		frame.StateAcquiring,
		frame.StateReconfiguring,
		frame.StateIdle,
	})
}

func TestDriverOutOfDateOnPresent(t *testing.T) {
	c := qt.New(t)
	f := newFixture()
	driver := newDriver(c, f, frame.DriverConfiguration{})

	f.swapchain.presentErr = func(call int) error {
		if call == 3 {
			return frame.ErrSurfaceOutOfDate
		}
		return nil
	}

	app := &recordingApp{}
	for i := 0; i < 6; i++ {
		_, err := driver.Step(app, &scriptedEvents{})
		c.Assert(err, qt.IsNil)
	}
	c.Assert(app.frames, qt.HasLen, 6)
	c.Assert(f.swapchain.created, qt.HasLen, 2)
	c.Assert(driver.Cursor().Iteration(), qt.Equals, uint64(6))

	idle := 0
	for _, call := range f.device.calls {
		if call == "WaitIdle" {
			idle++
		}
	}
	c.Assert(idle, qt.Equals, 2)
}

func TestDriverAcquireTimeoutSkips(t *testing.T) {
	c := qt.New(t)
	f := newFixture()
	driver := newDriver(c, f, frame.DriverConfiguration{AcquireTimeout: time.Millisecond})

	f.swapchain.acquireErr = func(call int) error {
		if call == 1 {
			return frame.ErrTimeout
		}
		return nil
	}

	app := &recordingApp{}
	for i := 0; i < 3; i++ {
		_, err := driver.Step(app, &scriptedEvents{})
		c.Assert(err, qt.IsNil)
	}
	c.Assert(app.frames, qt.HasLen, 2)
	c.Assert(f.swapchain.created, qt.HasLen, 1)
}

func TestDriverResize(t *testing.T) {
	c := qt.New(t)
	f := newFixture()
	f.swapchain.caps.CurrentExtent = frame.Extent2D{Width: frame.UndefinedExtent, Height: frame.UndefinedExtent}
	driver := newDriver(c, f, frame.DriverConfiguration{})
	pair := driver.Pool().Semaphores()

	events := &scriptedEvents{
		resizeAt: 2,
		resize:   frame.Events{Resized: true, Width: 1024, Height: 768},
	}
	app := &recordingApp{}
	for i := 0; i < 3; i++ {
		_, err := driver.Step(app, events)
		c.Assert(err, qt.IsNil)
	}
	c.Assert(app.frames[0].Extent, qt.Equals, frame.Extent2D{Width: 800, Height: 600})
	c.Assert(app.frames[1].Extent, qt.Equals, frame.Extent2D{Width: 1024, Height: 768})
	c.Assert(driver.Surface().Extent(), qt.Equals, frame.Extent2D{Width: 1024, Height: 768})

	// Same image count, so the semaphore pair is kept.
	c.Assert(driver.Pool().Semaphores(), qt.Equals, pair)
}

func TestDriverMinimized(t *testing.T) {
	c := qt.New(t)
	f := newFixture()
	driver := newDriver(c, f, frame.DriverConfiguration{})

	f.swapchain.caps.CurrentExtent = frame.Extent2D{}
	f.swapchain.acquireErr = func(call int) error {
		if call == 0 {
			return frame.ErrSurfaceOutOfDate
		}
		return nil
	}

	app := &recordingApp{}
	for i := 0; i < 3; i++ {
		alive, err := driver.Step(app, &scriptedEvents{})
		c.Assert(err, qt.IsNil)
		c.Assert(alive, qt.IsTrue)
	}
	c.Assert(app.frames, qt.HasLen, 0)
	c.Assert(app.advanced, qt.HasLen, 1)

	// Restored.
	f.swapchain.caps.CurrentExtent = frame.Extent2D{Width: 640, Height: 480}
	_, err := driver.Step(app, &scriptedEvents{})
	c.Assert(err, qt.IsNil)
	c.Assert(app.frames, qt.HasLen, 1)
	c.Assert(app.frames[0].Extent, qt.Equals, frame.Extent2D{Width: 640, Height: 480})
	c.Assert(app.frames[0].Iteration, qt.Equals, uint64(3))
}

func TestDriverImageCountChange(t *testing.T) {
	c := qt.New(t)
	f := newFixture()
	driver := newDriver(c, f, frame.DriverConfiguration{})
	c.Assert(driver.Pool().Len(), qt.Equals, 3)
	pair := driver.Pool().Semaphores()

	f.swapchain.caps.MinImageCount = 4
	f.swapchain.acquireErr = func(call int) error {
		if call == 0 {
			return frame.ErrSurfaceOutOfDate
		}
		return nil
	}
	_, err := driver.Step(&recordingApp{}, &scriptedEvents{})
	c.Assert(err, qt.IsNil)
	c.Assert(driver.Pool().Len(), qt.Equals, 5)
	c.Assert(driver.Targets().Len(), qt.Equals, 5)
	c.Assert(f.device.fences, qt.HasLen, 5)

	// The pool is rebuilt as a whole, semaphore pair included.
	c.Assert(driver.Pool().Semaphores(), qt.Not(qt.Equals), pair)
	c.Assert(f.device.semaphores, qt.HasLen, 2)
}

func TestDriverShutdownOrdering(t *testing.T) {
	c := qt.New(t)
	f := newFixture()
	driver := newDriver(c, f, frame.DriverConfiguration{})
	pair := driver.Pool().Semaphores()
	_ = pair

	events := &scriptedEvents{terminateAt: 6}
	err := driver.Run(context.Background(), &recordingApp{}, events)
	c.Assert(err, qt.IsNil)
	c.Assert(driver.State(), qt.Equals, frame.StateTerminated)
	c.Assert(driver.Cursor().Iteration(), qt.Equals, uint64(5))

	lastSubmit := -1
	for i, call := range f.device.calls {
		if call == "Submit" {
			lastSubmit = i
		}
	}
	idle := indexOf(f.device.calls, "WaitIdle", lastSubmit)
	c.Assert(idle, qt.Not(qt.Equals), -1)
	for _, released := range []string{"DestroyFence", "DestroySemaphore", "FreeCommandBuffers", "DestroyRenderPass"} {
		at := indexOf(f.device.calls, released, lastSubmit)
		c.Assert(at > idle, qt.IsTrue, qt.Commentf("%s released before the device went idle", released))
	}

	c.Assert(f.device.fences, qt.HasLen, 0)
	c.Assert(f.device.semaphores, qt.HasLen, 0)
	c.Assert(f.device.buffers, qt.HasLen, 0)
	c.Assert(f.device.views, qt.HasLen, 0)
	c.Assert(f.device.framebuffers, qt.HasLen, 0)
	c.Assert(f.device.depths, qt.HasLen, 0)

	// Shutting down twice is harmless.
	c.Assert(driver.Shutdown(), qt.IsNil)
	alive, err := driver.Step(&recordingApp{}, events)
	c.Assert(err, qt.IsNil)
	c.Assert(alive, qt.IsFalse)
}

func TestDriverRunCancelled(t *testing.T) {
	c := qt.New(t)
	f := newFixture()
	driver := newDriver(c, f, frame.DriverConfiguration{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.Assert(driver.Run(ctx, &recordingApp{}, &scriptedEvents{}), qt.IsNil)
	c.Assert(driver.Cursor().Iteration(), qt.Equals, uint64(0))
	c.Assert(f.device.fences, qt.HasLen, 0)
}

func TestDriverFatalSubmit(t *testing.T) {
	c := qt.New(t)
	f := newFixture()
	driver := newDriver(c, f, frame.DriverConfiguration{})
	f.device.failSubmit = errors.New("device lost")

	err := driver.Run(context.Background(), &recordingApp{}, &scriptedEvents{})
	var de *frame.DriverError
	c.Assert(errors.As(err, &de), qt.IsTrue)
	c.Assert(de.Op, qt.Equals, "vkQueueSubmit")
	c.Assert(driver.State(), qt.Equals, frame.StateTerminated)
	c.Assert(f.device.semaphores, qt.HasLen, 0)
}

func TestDriverDrawError(t *testing.T) {
	c := qt.New(t)
	f := newFixture()
	driver := newDriver(c, f, frame.DriverConfiguration{})

	_, err := driver.Step(&recordingApp{err: errors.New("no pipeline")}, &scriptedEvents{})
	c.Assert(err, qt.ErrorMatches, "draw: no pipeline")
	c.Assert(f.device.submits, qt.HasLen, 0)
}

func TestDriverStats(t *testing.T) {
	c := qt.New(t)
	f := newFixture()
	driver := newDriver(c, f, frame.DriverConfiguration{StatsInterval: 2})
	f.hook.Reset()

	for i := 0; i < 4; i++ {
		_, err := driver.Step(&recordingApp{}, &scriptedEvents{})
		c.Assert(err, qt.IsNil)
	}

	var stats int
	for _, entry := range f.hook.AllEntries() {
		if entry.Message == "frame stats" {
			stats++
			c.Assert(entry.Data["ms_per_frame"], qt.Equals, float64(16))
			c.Assert(entry.Data["fps"], qt.IsNil)
		}
	}
	c.Assert(stats, qt.Equals, 2)
}

// averagingClock reports fixed laps along with their averages.
type averagingClock struct {
	fixedClock
}

func (c averagingClock) Average() time.Duration { return time.Duration(c.fixedClock) }

func (c averagingClock) FramesPerSecond() float64 {
	return float64(time.Second) / float64(c.fixedClock)
}

func TestDriverStatsClock(t *testing.T) {
	c := qt.New(t)
	f := newFixture()
	driver := newDriver(c, f, frame.DriverConfiguration{
		StatsInterval: 1,
		Clock:         averagingClock{fixedClock(20 * time.Millisecond)},
	})
	f.hook.Reset()

	_, err := driver.Step(&recordingApp{}, &scriptedEvents{})
	c.Assert(err, qt.IsNil)

	entry := f.hook.LastEntry()
	c.Assert(entry, qt.Not(qt.IsNil))
	c.Assert(entry.Message, qt.Equals, "frame stats")
	c.Assert(entry.Data["ms_per_frame"], qt.Equals, float64(20))
	c.Assert(entry.Data["average_ms"], qt.Equals, float64(20))
	c.Assert(entry.Data["fps"], qt.Equals, float64(50))
}

func TestNewDriverUnsupported(t *testing.T) {
	c := qt.New(t)
	f := newFixture()
	f.swapchain.formats = nil

	_, err := frame.NewDriver(f.connect(), frame.DriverConfiguration{Width: 800, Height: 600})
	c.Assert(frame.IsConfigurationFatal(err), qt.IsTrue)
	c.Assert(f.swapchain.created, qt.HasLen, 0)
}

func TestStateString(t *testing.T) {
	c := qt.New(t)
	c.Assert(frame.StateReconfiguring.String(), qt.Equals, "Reconfiguring")
	c.Assert(frame.State(42).String(), qt.Equals, "Unknown")
}
