package capture

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // register decoders for still frames
	_ "image/png"
	"io"
	"os"
	"sync"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/gogpu/camquad"
)

// ImageConfig configures an ImageCamera.
type ImageConfig struct {
	// Path is a PNG, JPEG, BMP, TIFF or WebP file.
	Path string

	// FPS paces frames. Zero delivers frames as fast as they are read.
	FPS int

	// Frames ends the stream with io.EOF after this many frames.
	// Zero means unlimited.
	Frames int
}

// ImageCamera repeats a still image as a frame stream. Every frame is a
// separate buffer, as a camera would deliver.
type ImageCamera struct {
	cfg    ImageConfig
	still  *camquad.PixelBuffer
	ticker *time.Ticker

	mu     sync.Mutex
	n      int
	closed bool
}

// NewImageCamera decodes the image at cfg.Path.
func NewImageCamera(cfg ImageConfig) (*ImageCamera, error) {
	f, err := os.Open(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	defer f.Close()
	return newImageCamera(f, cfg)
}

func newImageCamera(r io.Reader, cfg ImageConfig) (*ImageCamera, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("capture: decode %s: %w", cfg.Path, err)
	}
	still := camquad.NewPixelBufferFromImage(img)
	if err := still.Validate(); err != nil {
		return nil, fmt.Errorf("capture: %s image %s: %w", format, cfg.Path, err)
	}
	camquad.Logger().Debug("capture: still image loaded", "path", cfg.Path,
		"format", format, "size", fmt.Sprintf("%dx%d", still.Width, still.Height))

	c := &ImageCamera{cfg: cfg, still: still}
	if cfg.FPS > 0 {
		c.ticker = time.NewTicker(time.Second / time.Duration(cfg.FPS))
	}
	return c, nil
}

// ReadFrame implements Camera.
func (c *ImageCamera) ReadFrame(ctx context.Context) (*camquad.PixelBuffer, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrCameraClosed
	}
	if c.cfg.Frames > 0 && c.n >= c.cfg.Frames {
		c.mu.Unlock()
		return nil, io.EOF
	}
	c.mu.Unlock()

	if c.ticker != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.ticker.C:
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.n++
	c.mu.Unlock()
	return c.still.Clone(), nil
}

// FramesProduced returns how many frames were delivered.
func (c *ImageCamera) FramesProduced() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// Close implements Camera.
func (c *ImageCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.ticker != nil {
		c.ticker.Stop()
	}
	return nil
}
