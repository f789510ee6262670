// Package capture delivers camera frames to a single registered handler.
//
// A Session reads frames from a Camera on one goroutine and calls its
// Handler from another, one frame at a time. With late-frame discarding
// enabled, a frame that arrives while the handler is still busy replaces
// any frame waiting to be delivered, so the handler always receives the
// newest frame available.
package capture

import (
	"context"
	"errors"

	"github.com/gogpu/camquad"
)

// Capture errors.
var (
	// ErrCameraClosed is returned by ReadFrame after Close.
	ErrCameraClosed = errors.New("capture: camera closed")

	// ErrNoCamera is returned when a session is created without a camera.
	ErrNoCamera = errors.New("capture: no camera")

	// ErrNoHandler is returned when a session is created without a handler.
	ErrNoHandler = errors.New("capture: no frame handler")

	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("capture: session already started")

	// ErrTooManyErrors ends a session after repeated consecutive read failures.
	ErrTooManyErrors = errors.New("capture: too many consecutive read errors")
)

// Camera is a source of BGRA frames.
type Camera interface {
	// ReadFrame blocks until the next frame is available. It returns io.EOF
	// when the source is exhausted and ctx.Err() when ctx is done.
	ReadFrame(ctx context.Context) (*camquad.PixelBuffer, error)

	// Close releases the device.
	Close() error
}

// Handler receives delivered frames. Calls never overlap.
type Handler func(*camquad.PixelBuffer)
