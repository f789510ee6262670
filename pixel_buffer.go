package camquad

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// PixelFormat is a four-character code identifying a pixel buffer layout.
type PixelFormat uint32

// Known pixel formats. Only PixelFormatBGRA can be uploaded.
const (
	PixelFormatBGRA        PixelFormat = 'B'<<24 | 'G'<<16 | 'R'<<8 | 'A'
	PixelFormatRGBA        PixelFormat = 'R'<<24 | 'G'<<16 | 'B'<<8 | 'A'
	PixelFormatYUV420Video PixelFormat = '4'<<24 | '2'<<16 | '0'<<8 | 'v'
)

// BytesPerPixel is the size of one BGRA texel.
const BytesPerPixel = 4

// String renders the format as its four-character code, falling back to
// hex when any byte is not printable.
func (f PixelFormat) String() string {
	b := [4]byte{byte(f >> 24), byte(f >> 16), byte(f >> 8), byte(f)}
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return fmt.Sprintf("0x%08x", uint32(f))
		}
	}
	return string(b[:])
}

// PlaneCount returns the number of image planes for the format.
func (f PixelFormat) PlaneCount() int {
	if f == PixelFormatYUV420Video {
		return 2
	}
	return 1
}

// PixelBuffer is one captured camera frame in CPU memory.
//
// Data holds Height rows of BytesPerRow bytes each; BytesPerRow may exceed
// Width*4 when the driver pads rows.
type PixelBuffer struct {
	Width       int
	Height      int
	BytesPerRow int
	Format      PixelFormat
	Data        []byte
}

// NewPixelBuffer allocates a zeroed, tightly packed BGRA buffer.
func NewPixelBuffer(width, height int) *PixelBuffer {
	return &PixelBuffer{
		Width:       width,
		Height:      height,
		BytesPerRow: width * BytesPerPixel,
		Format:      PixelFormatBGRA,
		Data:        make([]byte, width*height*BytesPerPixel),
	}
}

// SolidPixelBuffer returns a BGRA buffer filled with c.
func SolidPixelBuffer(width, height int, c color.Color) *PixelBuffer {
	pb := NewPixelBuffer(width, height)
	nc := color.NRGBAModel.Convert(c).(color.NRGBA)
	for i := 0; i+3 < len(pb.Data); i += BytesPerPixel {
		pb.Data[i+0] = nc.B
		pb.Data[i+1] = nc.G
		pb.Data[i+2] = nc.R
		pb.Data[i+3] = nc.A
	}
	return pb
}

// NewPixelBufferFromImage converts img into a tightly packed BGRA buffer.
func NewPixelBufferFromImage(img image.Image) *PixelBuffer {
	b := img.Bounds()
	rgba := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)

	pb := NewPixelBuffer(b.Dx(), b.Dy())
	for y := 0; y < pb.Height; y++ {
		src := rgba.Pix[y*rgba.Stride : y*rgba.Stride+pb.Width*4]
		dst := pb.Data[y*pb.BytesPerRow:]
		for x := 0; x < pb.Width; x++ {
			dst[x*4+0] = src[x*4+2]
			dst[x*4+1] = src[x*4+1]
			dst[x*4+2] = src[x*4+0]
			dst[x*4+3] = src[x*4+3]
		}
	}
	return pb
}

// DataSize returns the number of bytes held by the buffer.
func (pb *PixelBuffer) DataSize() int {
	if pb == nil {
		return 0
	}
	return len(pb.Data)
}

// PlaneCount returns the number of planes of the buffer's format.
func (pb *PixelBuffer) PlaneCount() int {
	if pb == nil {
		return 0
	}
	return pb.Format.PlaneCount()
}

// Validate reports whether the buffer can be uploaded as a BGRA texture.
func (pb *PixelBuffer) Validate() error {
	switch {
	case pb == nil:
		return ErrNilBuffer
	case pb.Width <= 0 || pb.Height <= 0:
		return fmt.Errorf("%w: %dx%d", ErrZeroDimension, pb.Width, pb.Height)
	case pb.Format != PixelFormatBGRA:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, pb.Format)
	case pb.BytesPerRow < pb.Width*BytesPerPixel:
		return fmt.Errorf("%w: %d bytes per row for width %d", ErrShortBuffer, pb.BytesPerRow, pb.Width)
	case len(pb.Data) < pb.BytesPerRow*pb.Height:
		return fmt.Errorf("%w: have %d, need %d", ErrShortBuffer, len(pb.Data), pb.BytesPerRow*pb.Height)
	}
	return nil
}

// At returns the texel at column x, row y.
func (pb *PixelBuffer) At(x, y int) color.NRGBA {
	i := y*pb.BytesPerRow + x*BytesPerPixel
	p := pb.Data[i : i+4 : i+4]
	return color.NRGBA{R: p[2], G: p[1], B: p[0], A: p[3]}
}

// Sample returns the nearest texel at normalized texture coordinate (u, v),
// where (0,0) is the first byte of row 0. Coordinates are clamped to the
// edge, as with a clamp-to-edge sampler.
func (pb *PixelBuffer) Sample(u, v float32) color.NRGBA {
	x := clampIndex(int(u*float32(pb.Width)), pb.Width)
	y := clampIndex(int(v*float32(pb.Height)), pb.Height)
	return pb.At(x, y)
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// Image returns a copy of the buffer as an NRGBA image, scaled down with
// bilinear filtering so that neither side exceeds maxSide. A maxSide of
// zero or less keeps the full size.
func (pb *PixelBuffer) Image(maxSide int) *image.NRGBA {
	full := image.NewNRGBA(image.Rect(0, 0, pb.Width, pb.Height))
	for y := 0; y < pb.Height; y++ {
		for x := 0; x < pb.Width; x++ {
			full.SetNRGBA(x, y, pb.At(x, y))
		}
	}
	if maxSide <= 0 || (pb.Width <= maxSide && pb.Height <= maxSide) {
		return full
	}

	w, h := pb.Width, pb.Height
	if w >= h {
		h = max(1, h*maxSide/w)
		w = maxSide
	} else {
		w = max(1, w*maxSide/h)
		h = maxSide
	}
	scaled := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), full, full.Bounds(), draw.Src, nil)
	return scaled
}

// Clone returns a deep copy of the buffer.
func (pb *PixelBuffer) Clone() *PixelBuffer {
	if pb == nil {
		return nil
	}
	c := *pb
	c.Data = append([]byte(nil), pb.Data...)
	return &c
}
