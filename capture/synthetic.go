package capture

import (
	"context"
	"fmt"
	"image/color"
	"io"
	"sync"
	"time"

	"github.com/gogpu/camquad"
)

// SyntheticConfig configures a SyntheticCamera.
type SyntheticConfig struct {
	Width  int
	Height int

	// FPS paces frames. Zero delivers frames as fast as they are read.
	FPS int

	// Pattern is one of camquad.PatternSolid, PatternBars, PatternGradient.
	Pattern string

	// Color is the solid pattern color. Defaults to opaque red.
	Color color.Color

	// Frames ends the stream with io.EOF after this many frames.
	// Zero means unlimited.
	Frames int
}

// barColors are the classic eight vertical test bars.
var barColors = [8]color.NRGBA{
	{R: 255, G: 255, B: 255, A: 255},
	{R: 255, G: 255, B: 0, A: 255},
	{R: 0, G: 255, B: 255, A: 255},
	{R: 0, G: 255, B: 0, A: 255},
	{R: 255, G: 0, B: 255, A: 255},
	{R: 255, G: 0, B: 0, A: 255},
	{R: 0, G: 0, B: 255, A: 255},
	{R: 0, G: 0, B: 0, A: 255},
}

// SyntheticCamera generates test frames without camera hardware.
type SyntheticCamera struct {
	cfg    SyntheticConfig
	solid  color.NRGBA
	ticker *time.Ticker

	mu     sync.Mutex
	n      int
	closed bool
}

// NewSyntheticCamera validates cfg and returns a camera producing frames.
func NewSyntheticCamera(cfg SyntheticConfig) (*SyntheticCamera, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("capture: synthetic size %dx%d: %w", cfg.Width, cfg.Height, camquad.ErrZeroDimension)
	}
	if cfg.Pattern == "" {
		cfg.Pattern = camquad.PatternBars
	}
	switch cfg.Pattern {
	case camquad.PatternSolid, camquad.PatternBars, camquad.PatternGradient:
	default:
		return nil, fmt.Errorf("capture: unknown synthetic pattern %q", cfg.Pattern)
	}
	if cfg.Color == nil {
		cfg.Color = color.NRGBA{R: 255, A: 255}
	}

	c := &SyntheticCamera{
		cfg:   cfg,
		solid: color.NRGBAModel.Convert(cfg.Color).(color.NRGBA),
	}
	if cfg.FPS > 0 {
		c.ticker = time.NewTicker(time.Second / time.Duration(cfg.FPS))
	}
	return c, nil
}

// ReadFrame implements Camera.
func (c *SyntheticCamera) ReadFrame(ctx context.Context) (*camquad.PixelBuffer, error) {
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
	n := c.n
	c.mu.Unlock()
	return c.render(n), nil
}

// FramesProduced returns how many frames were generated.
func (c *SyntheticCamera) FramesProduced() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// Close implements Camera.
func (c *SyntheticCamera) Close() error {
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

// render draws frame n of the configured pattern.
func (c *SyntheticCamera) render(n int) *camquad.PixelBuffer {
	w, h := c.cfg.Width, c.cfg.Height
	switch c.cfg.Pattern {
	case camquad.PatternSolid:
		return camquad.SolidPixelBuffer(w, h, c.solid)
	case camquad.PatternGradient:
		pb := camquad.NewPixelBuffer(w, h)
		for y := range h {
			row := pb.Data[y*pb.BytesPerRow:]
			g := byte(y * 255 / max(1, h-1))
			for x := range w {
				r := byte(((x + n) % w) * 255 / max(1, w-1))
				row[x*4+0] = 128
				row[x*4+1] = g
				row[x*4+2] = r
				row[x*4+3] = 255
			}
		}
		return pb
	default:
		pb := camquad.NewPixelBuffer(w, h)
		for y := range h {
			row := pb.Data[y*pb.BytesPerRow:]
			for x := range w {
				bc := barColors[((x+n)*len(barColors)/w)%len(barColors)]
				row[x*4+0] = bc.B
				row[x*4+1] = bc.G
				row[x*4+2] = bc.R
				row[x*4+3] = bc.A
			}
		}
		return pb
	}
}
