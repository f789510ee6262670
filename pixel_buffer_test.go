package camquad

import (
	"errors"
	"image"
	"image/color"
	"testing"
)

var red = color.NRGBA{R: 255, A: 255}

func TestPixelFormatString(t *testing.T) {
	tests := []struct {
		f    PixelFormat
		want string
	}{
		{PixelFormatBGRA, "BGRA"},
		{PixelFormatRGBA, "RGBA"},
		{PixelFormatYUV420Video, "420v"},
		{PixelFormat(0x01020304), "0x01020304"},
	}
	for _, tt := range tests {
		if got := tt.f.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestPixelBufferValidate(t *testing.T) {
	tests := []struct {
		name string
		pb   *PixelBuffer
		want error
	}{
		{"nil", nil, ErrNilBuffer},
		{"zero width", &PixelBuffer{Height: 4, Format: PixelFormatBGRA}, ErrZeroDimension},
		{"zero height", &PixelBuffer{Width: 4, BytesPerRow: 16, Format: PixelFormatBGRA}, ErrZeroDimension},
		{"rgba", &PixelBuffer{Width: 1, Height: 1, BytesPerRow: 4, Format: PixelFormatRGBA, Data: make([]byte, 4)}, ErrUnsupportedFormat},
		{"narrow rows", &PixelBuffer{Width: 4, Height: 1, BytesPerRow: 8, Format: PixelFormatBGRA, Data: make([]byte, 16)}, ErrShortBuffer},
		{"short data", &PixelBuffer{Width: 4, Height: 4, BytesPerRow: 16, Format: PixelFormatBGRA, Data: make([]byte, 63)}, ErrShortBuffer},
		{"padded rows", &PixelBuffer{Width: 4, Height: 2, BytesPerRow: 32, Format: PixelFormatBGRA, Data: make([]byte, 64)}, nil},
		{"packed", NewPixelBuffer(64, 64), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.pb.Validate()
			if tt.want == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSolidPixelBuffer(t *testing.T) {
	pb := SolidPixelBuffer(64, 64, red)
	if pb.DataSize() != 64*64*4 {
		t.Fatalf("DataSize = %d", pb.DataSize())
	}
	// BGRA byte order.
	if pb.Data[0] != 0 || pb.Data[1] != 0 || pb.Data[2] != 255 || pb.Data[3] != 255 {
		t.Errorf("first texel bytes = %v, want [0 0 255 255]", pb.Data[:4])
	}
	if got := pb.Sample(0.5, 0.5); got != red {
		t.Errorf("Sample(center) = %v, want %v", got, red)
	}
	if pb.PlaneCount() != 1 {
		t.Errorf("PlaneCount = %d, want 1", pb.PlaneCount())
	}
}

func TestPixelBufferFromImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(10, 10, 14, 12))
	img.Set(10, 10, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	img.Set(13, 11, color.RGBA{G: 255, A: 255})

	pb := NewPixelBufferFromImage(img)
	if pb.Width != 4 || pb.Height != 2 {
		t.Fatalf("size = %dx%d, want 4x2", pb.Width, pb.Height)
	}
	if got := pb.At(0, 0); got != (color.NRGBA{R: 10, G: 20, B: 30, A: 255}) {
		t.Errorf("At(0,0) = %v", got)
	}
	if got := pb.Sample(1, 1); got != (color.NRGBA{G: 255, A: 255}) {
		t.Errorf("Sample(1,1) = %v, want clamped last texel", got)
	}
}

func TestPixelBufferImageScaled(t *testing.T) {
	pb := SolidPixelBuffer(640, 480, red)
	img := pb.Image(160)
	if b := img.Bounds(); b.Dx() != 160 || b.Dy() != 120 {
		t.Fatalf("scaled bounds = %v, want 160x120", b)
	}
	if got := img.NRGBAAt(80, 60); got != red {
		t.Errorf("scaled center = %v, want %v", got, red)
	}
	if b := pb.Image(0).Bounds(); b.Dx() != 640 {
		t.Errorf("unscaled width = %d", b.Dx())
	}
}

func TestPixelBufferClone(t *testing.T) {
	pb := SolidPixelBuffer(2, 2, red)
	c := pb.Clone()
	c.Data[0] = 99
	if pb.Data[0] == 99 {
		t.Error("Clone shares data")
	}
	if (*PixelBuffer)(nil).Clone() != nil {
		t.Error("nil Clone should be nil")
	}
}
