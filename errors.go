package camquad

import "errors"

// Sentinel errors for pixel buffer validation.
var (
	// ErrNilBuffer is returned when a conversion is attempted without a frame.
	ErrNilBuffer = errors.New("camquad: nil pixel buffer")

	// ErrZeroDimension is returned for frames with zero width or height.
	ErrZeroDimension = errors.New("camquad: pixel buffer has zero dimension")

	// ErrUnsupportedFormat is returned for pixel formats other than BGRA.
	ErrUnsupportedFormat = errors.New("camquad: unsupported pixel format")

	// ErrShortBuffer is returned when the plane data is smaller than
	// BytesPerRow * Height or BytesPerRow cannot hold a full row.
	ErrShortBuffer = errors.New("camquad: pixel buffer data too short")
)

// Sentinel errors for configuration.
var (
	// ErrInvalidConfig wraps every configuration validation failure.
	ErrInvalidConfig = errors.New("camquad: invalid config")
)
