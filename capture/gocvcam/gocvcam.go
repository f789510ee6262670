// Package gocvcam captures frames from a local camera through OpenCV.
//
// Building this package requires OpenCV 4 and cgo.
package gocvcam

import (
	"context"
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	"github.com/gogpu/camquad"
	"github.com/gogpu/camquad/capture"
)

// Config selects the device and requested frame format. The driver may
// deliver a different size; frames report what was actually captured.
type Config struct {
	Device int
	Width  int
	Height int
	FPS    int
}

// Camera is a capture.Camera backed by gocv.VideoCapture.
type Camera struct {
	mu     sync.Mutex
	vc     *gocv.VideoCapture
	frame  gocv.Mat
	bgra   gocv.Mat
	closed bool
}

var _ capture.Camera = (*Camera)(nil)

// Open opens the camera and applies cfg. The driver buffer is limited to
// one frame so reads return the newest frame.
func Open(cfg Config) (*Camera, error) {
	vc, err := gocv.OpenVideoCapture(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("gocvcam: open device %d: %w", cfg.Device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("gocvcam: device %d not available", cfg.Device)
	}
	if cfg.Width > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	}
	if cfg.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	}
	if cfg.FPS > 0 {
		vc.Set(gocv.VideoCaptureFPS, float64(cfg.FPS))
	}
	vc.Set(gocv.VideoCaptureBufferSize, 1)

	camquad.Logger().Info("gocvcam: camera opened",
		"device", cfg.Device,
		"width", int(vc.Get(gocv.VideoCaptureFrameWidth)),
		"height", int(vc.Get(gocv.VideoCaptureFrameHeight)),
		"fps", vc.Get(gocv.VideoCaptureFPS))

	return &Camera{
		vc:    vc,
		frame: gocv.NewMat(),
		bgra:  gocv.NewMat(),
	}, nil
}

// ReadFrame implements capture.Camera. Reads block in the driver; ctx is
// checked before each read.
func (c *Camera) ReadFrame(ctx context.Context) (*camquad.PixelBuffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, capture.ErrCameraClosed
	}
	if ok := c.vc.Read(&c.frame); !ok || c.frame.Empty() {
		return nil, fmt.Errorf("gocvcam: empty frame")
	}
	gocv.CvtColor(c.frame, &c.bgra, gocv.ColorBGRToBGRA)
	if c.bgra.Empty() {
		return nil, fmt.Errorf("gocvcam: convert %d-channel frame to BGRA failed", c.frame.Channels())
	}

	w, h := c.bgra.Cols(), c.bgra.Rows()
	data := c.bgra.ToBytes()
	return &camquad.PixelBuffer{
		Width:       w,
		Height:      h,
		BytesPerRow: len(data) / max(1, h),
		Format:      camquad.PixelFormatBGRA,
		Data:        data,
	}, nil
}

// Close implements capture.Camera.
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.frame.Close()
	c.bgra.Close()
	return c.vc.Close()
}
