// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package frame

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// State is a Driver state.
type State int

// Driver states.
const (
	StateIdle State = iota
	StateAcquiring
	StateRecording
	StateSubmitted
	StatePresenting
	StateReconfiguring
	StateTerminated
)

var stateNames = [...]string{
	StateIdle:          "Idle",
	StateAcquiring:     "Acquiring",
	StateRecording:     "Recording",
	StateSubmitted:     "Submitted",
	StatePresenting:    "Presenting",
	StateReconfiguring: "Reconfiguring",
	StateTerminated:    "Terminated",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// Frame is what the application records against during one iteration.
type Frame struct {
	Iteration   uint64
	ImageIndex  uint32
	Commands    CommandBuffer
	Framebuffer Framebuffer
	RenderPass  RenderPass
	Extent      Extent2D
}

// Application is driven once per iteration.
type Application interface {
	// Advance is called before an image is acquired.
	Advance(iteration uint64, msPerFrame float64)

	// Draw records the commands of one frame. The command buffer
	// is not in use by the GPU when Draw is called.
	Draw(f Frame) error
}

// Events is the outcome of draining the platform event queue.
type Events struct {
	Terminate     bool
	Resized       bool
	Width, Height uint32
}

// EventSource drains pending platform events.
type EventSource interface {
	Poll() Events
}

// Clock measures time between iterations.
type Clock interface {
	// Lap returns the time since the previous call.
	Lap() time.Duration
}

// StatsClock is a Clock that keeps running averages, which are added
// to the periodic frame stats.
type StatsClock interface {
	Clock
	Average() time.Duration
	FramesPerSecond() float64
}

// DriverConfiguration is used to configure the frame driver.
type DriverConfiguration struct {
	Width, Height uint32
	VSync         bool
	ImageCount    uint32

	// AcquireTimeout bounds image acquisition, zero waits indefinitely.
	AcquireTimeout time.Duration

	// FenceTimeout bounds the wait on a frame slot, zero waits indefinitely.
	FenceTimeout time.Duration

	// DepthFormats defaults to DefaultDepthFormats.
	DepthFormats DepthFormatPolicy

	// StatsInterval logs frame timing every that many iterations.
	// Zero disables it.
	StatsInterval uint64

	// Clock defaults to wall clock time.
	Clock Clock

	// OnTransition observes every state change.
	OnTransition func(from, to State)
}

// NewDriver builds the surface, render targets and frame pool for ctx
// and configures them for the requested size.
func NewDriver(ctx *DeviceContext, cfg DriverConfiguration) (*Driver, error) {
	if cfg.DepthFormats == nil {
		cfg.DepthFormats = DefaultDepthFormats
	}
	if cfg.Clock == nil {
		cfg.Clock = &wallClock{last: time.Now()}
	}

	surface, err := NewSurface(ctx, SurfaceConfiguration{DesiredImageCount: cfg.ImageCount})
	if err != nil {
		return nil, err
	}

	d := &Driver{
		ctx:     ctx,
		cfg:     cfg,
		surface: surface,
		pool:    NewPool(ctx, cfg.FenceTimeout),
		targets: NewTargets(ctx),
		width:   cfg.Width,
		height:  cfg.Height,
		log:     ctx.logger(),
	}

	if _, err := d.reconfigure(); err != nil {
		d.release()
		return nil, err
	}
	return d, nil
}

// Driver runs the acquire, record, submit, present loop.
type Driver struct {
	ctx     *DeviceContext
	cfg     DriverConfiguration
	surface *Surface
	pool    *Pool
	targets *Targets
	log     logrus.FieldLogger

	state         State
	cursor        Cursor
	width, height uint32
	pending       bool
	msPerFrame    float64
	released      bool
}

// Run steps the driver until events request termination or ctx is
// done. Cancellation is only observed between iterations. The driver
// is shut down on every return path.
func (d *Driver) Run(ctx context.Context, app Application, events EventSource) error {
	for {
		select {
		case <-ctx.Done():
			return d.Shutdown()
		default:
		}

		alive, err := d.Step(app, events)
		if err != nil {
			if serr := d.Shutdown(); serr != nil {
				d.log.WithError(serr).Error("shutdown after failure")
			}
			return err
		}
		if !alive {
			return d.Shutdown()
		}
	}
}

// Step runs a single iteration. It returns false once
// termination has been requested.
func (d *Driver) Step(app Application, events EventSource) (bool, error) {
	if d.state == StateTerminated {
		return false, nil
	}

	ev := events.Poll()
	if ev.Terminate {
		d.transition(StateTerminated)
		return false, nil
	}
	if ev.Resized {
		d.width, d.height = ev.Width, ev.Height
		d.pending = true
	}
	if d.pending {
		ready, err := d.reconfigure()
		if err != nil {
			return false, err
		}
		if !ready {
			d.finish()
			return true, nil
		}
	}

	app.Advance(d.cursor.Iteration(), d.msPerFrame)

	d.transition(StateAcquiring)
	semaphores := d.pool.Semaphores()
	index, err := d.surface.AcquireNext(d.cfg.AcquireTimeout, semaphores.ImageAcquired)
	if err != nil {
		if !IsRecoverable(err) {
			return false, err
		}
		d.log.WithError(err).WithField("iteration", d.cursor.Iteration()).Info("skipping frame")
		if errors.Is(err, ErrSurfaceOutOfDate) {
			if _, err := d.reconfigure(); err != nil {
				return false, err
			}
		}
		d.finish()
		return true, nil
	}
	d.cursor.acquire(index)

	d.transition(StateRecording)
	if err := d.pool.WaitAndReset(int(index)); err != nil {
		return false, err
	}
	slot, err := d.pool.Slot(int(index))
	if err != nil {
		return false, err
	}
	framebuffer, err := d.targets.Framebuffer(int(index))
	if err != nil {
		return false, err
	}
	if err := app.Draw(Frame{
		Iteration:   d.cursor.Iteration(),
		ImageIndex:  index,
		Commands:    slot.Commands,
		Framebuffer: framebuffer,
		RenderPass:  d.targets.RenderPass(),
		Extent:      d.targets.Extent(),
	}); err != nil {
		return false, errors.Wrap(err, "draw")
	}

	if err := d.pool.Submit(int(index), slot.Commands, semaphores.ImageAcquired, semaphores.RenderComplete, d.ctx.Queue); err != nil {
		return false, err
	}
	d.transition(StateSubmitted)

	d.transition(StatePresenting)
	if err := d.surface.Present(index, semaphores.RenderComplete); err != nil {
		if !errors.Is(err, ErrSurfaceOutOfDate) {
			return false, err
		}
		d.log.WithField("iteration", d.cursor.Iteration()).Info("surface out of date on present")
		if _, err := d.reconfigure(); err != nil {
			return false, err
		}
	}

	d.finish()
	return true, nil
}

// Shutdown waits for the device to go idle and releases every frame
// resource. It is safe to call more than once.
func (d *Driver) Shutdown() error {
	d.transition(StateTerminated)
	if d.released {
		return nil
	}
	if err := d.ctx.Device.WaitIdle(); err != nil {
		return driverFailure("vkDeviceWaitIdle", err)
	}
	d.release()
	return nil
}

// State returns the current state.
func (d *Driver) State() State {
	return d.state
}

// Cursor returns the frame cursor.
func (d *Driver) Cursor() Cursor {
	return d.cursor
}

// Surface returns the presentation surface.
func (d *Driver) Surface() *Surface {
	return d.surface
}

// Pool returns the frame resource pool.
func (d *Driver) Pool() *Pool {
	return d.pool
}

// Targets returns the render target set.
func (d *Driver) Targets() *Targets {
	return d.targets
}

// reconfigure rebuilds the surface and everything depending on it.
// It reports false when the surface can not be presented to yet.
func (d *Driver) reconfigure() (bool, error) {
	d.transition(StateReconfiguring)
	if err := d.ctx.Device.WaitIdle(); err != nil {
		return false, driverFailure("vkDeviceWaitIdle", err)
	}

	d.targets.Teardown()
	images, err := d.surface.Configure(d.width, d.height, d.cfg.VSync)
	if err != nil {
		if errors.Is(err, ErrSurfaceOutOfDate) {
			d.pending = true
			d.transition(StateIdle)
			return false, nil
		}
		return false, err
	}

	desc := TargetDescription{
		ColorFormat: d.surface.Format().Format,
		Extent:      d.surface.Extent(),
	}
	if err := d.targets.Build(desc, images, d.cfg.DepthFormats); err != nil {
		return false, err
	}

	if d.pool.Len() != len(images) {
		if err := d.pool.Initialize(len(images)); err != nil {
			return false, err
		}
	}

	d.pending = false
	d.transition(StateIdle)
	return true, nil
}

// finish closes an iteration, whether it presented or not.
func (d *Driver) finish() {
	d.cursor.advance()
	d.msPerFrame = float64(d.cfg.Clock.Lap()) / float64(time.Millisecond)
	if n := d.cfg.StatsInterval; n > 0 && d.cursor.Iteration()%n == 0 {
		fields := logrus.Fields{
			"iteration":    d.cursor.Iteration(),
			"ms_per_frame": d.msPerFrame,
		}
		if stats, ok := d.cfg.Clock.(StatsClock); ok {
			fields["average_ms"] = float64(stats.Average()) / float64(time.Millisecond)
			fields["fps"] = stats.FramesPerSecond()
		}
		d.log.WithFields(fields).Info("frame stats")
	}
	d.transition(StateIdle)
}

func (d *Driver) transition(to State) {
	from := d.state
	if from == to {
		return
	}
	if from == StateTerminated {
		return
	}
	d.state = to
	if d.cfg.OnTransition != nil {
		d.cfg.OnTransition(from, to)
	}
}

func (d *Driver) release() {
	d.pool.Release()
	d.targets.Release()
	d.surface.Release()
	d.released = true
}

type wallClock struct {
	last time.Time
}

func (c *wallClock) Lap() time.Duration {
	now := time.Now()
	lap := now.Sub(c.last)
	c.last = now
	return lap
}
