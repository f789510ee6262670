package renderer

import "errors"

// Renderer errors.
var (
	// ErrNoDevice is returned when a GPU device or queue is missing.
	ErrNoDevice = errors.New("renderer: device and queue are required")

	// ErrClosed is returned by DrawFrame after Close.
	ErrClosed = errors.New("renderer: closed")
)
