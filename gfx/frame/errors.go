// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package frame

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Recoverable conditions. The driver reconfigures or skips the iteration.
var (
	// ErrSurfaceOutOfDate is returned when the surface no longer matches
	// the swapchain, e.g. after a window resize.
	ErrSurfaceOutOfDate = errors.New("surface out of date")

	// ErrTimeout is returned when a bounded wait expires.
	ErrTimeout = errors.New("timeout expired")
)

// ErrNoSupportedDepthFormat is returned when no depth format in the
// policy can be used as a depth-stencil attachment.
var ErrNoSupportedDepthFormat = errors.New("no supported depth format")

// UnsupportedSurfaceError is returned when the device can not present
// to the surface in any way the frame core understands.
type UnsupportedSurfaceError struct {
	Reason string
}

func (e *UnsupportedSurfaceError) Error() string {
	return "unsupported surface: " + e.Reason
}

// MissingEntryPointError lists swapchain entry points that
// could not be resolved at connect time.
type MissingEntryPointError struct {
	Names []string
}

func (e *MissingEntryPointError) Error() string {
	return "missing entry points: " + strings.Join(e.Names, ", ")
}

// DriverError is a low level device failure. It is never retried.
type DriverError struct {
	Op  string
	Err error
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying device error.
func (e *DriverError) Unwrap() error {
	return e.Err
}

// driverFailure records op along with the call stack of the failure.
func driverFailure(op string, err error) error {
	return errors.WithStack(&DriverError{Op: op, Err: err})
}

// IsRecoverable reports whether err should make the driver skip an
// iteration instead of stopping.
func IsRecoverable(err error) bool {
	var de *DriverError
	if errors.As(err, &de) {
		return false
	}
	return errors.Is(err, ErrSurfaceOutOfDate) || errors.Is(err, ErrTimeout)
}

// IsConfigurationFatal reports whether err means the device or
// platform does not meet the minimum requirements.
func IsConfigurationFatal(err error) bool {
	var (
		use *UnsupportedSurfaceError
		mee *MissingEntryPointError
	)
	return errors.As(err, &use) || errors.As(err, &mee) || errors.Is(err, ErrNoSupportedDepthFormat)
}
