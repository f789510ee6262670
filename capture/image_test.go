package capture

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// checkerPNG encodes a 4x2 image whose left half is red and right half blue.
func checkerPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			c := color.NRGBA{R: 255, A: 255}
			if x >= 2 {
				c = color.NRGBA{B: 255, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestImageCameraFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "still.png")
	if err := os.WriteFile(path, checkerPNG(t), 0o600); err != nil {
		t.Fatal(err)
	}
	cam, err := NewImageCamera(ImageConfig{Path: path})
	if err != nil {
		t.Fatal(err)
	}
	defer cam.Close()

	pb, err := cam.ReadFrame(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if pb.Width != 4 || pb.Height != 2 {
		t.Errorf("frame size = %dx%d, want 4x2", pb.Width, pb.Height)
	}
	if err := pb.Validate(); err != nil {
		t.Fatalf("frame invalid: %v", err)
	}
	if got := pb.At(0, 0); got != (color.NRGBA{R: 255, A: 255}) {
		t.Errorf("At(0,0) = %v, want red", got)
	}
	if got := pb.At(3, 1); got != (color.NRGBA{B: 255, A: 255}) {
		t.Errorf("At(3,1) = %v, want blue", got)
	}
}

func TestImageCameraFramesAreIndependent(t *testing.T) {
	cam, err := newImageCamera(bytes.NewReader(checkerPNG(t)), ImageConfig{Path: "mem.png"})
	if err != nil {
		t.Fatal(err)
	}
	defer cam.Close()

	ctx := context.Background()
	first, err := cam.ReadFrame(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for i := range first.Data {
		first.Data[i] = 0
	}
	second, err := cam.ReadFrame(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got := second.At(0, 0); got != (color.NRGBA{R: 255, A: 255}) {
		t.Errorf("second frame At(0,0) = %v; frames share storage", got)
	}
	if got := cam.FramesProduced(); got != 2 {
		t.Errorf("FramesProduced = %d, want 2", got)
	}
}

func TestImageCameraFrameLimit(t *testing.T) {
	cam, err := newImageCamera(bytes.NewReader(checkerPNG(t)), ImageConfig{Path: "mem.png", Frames: 2})
	if err != nil {
		t.Fatal(err)
	}
	defer cam.Close()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := cam.ReadFrame(ctx); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}
	if _, err := cam.ReadFrame(ctx); !errors.Is(err, io.EOF) {
		t.Errorf("err = %v, want io.EOF", err)
	}
}

func TestImageCameraClosed(t *testing.T) {
	cam, err := newImageCamera(bytes.NewReader(checkerPNG(t)), ImageConfig{Path: "mem.png", FPS: 1000})
	if err != nil {
		t.Fatal(err)
	}
	if err := cam.Close(); err != nil {
		t.Fatal(err)
	}
	if err := cam.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := cam.ReadFrame(context.Background()); !errors.Is(err, ErrCameraClosed) {
		t.Errorf("err = %v, want ErrCameraClosed", err)
	}
}

func TestImageCameraCancelled(t *testing.T) {
	cam, err := newImageCamera(bytes.NewReader(checkerPNG(t)), ImageConfig{Path: "mem.png"})
	if err != nil {
		t.Fatal(err)
	}
	defer cam.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := cam.ReadFrame(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestNewImageCameraErrors(t *testing.T) {
	if _, err := NewImageCamera(ImageConfig{Path: filepath.Join(t.TempDir(), "missing.png")}); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file: err = %v, want os.ErrNotExist", err)
	}
	if _, err := newImageCamera(strings.NewReader("not an image"), ImageConfig{Path: "junk"}); !errors.Is(err, image.ErrFormat) {
		t.Errorf("junk: err = %v, want image.ErrFormat", err)
	}
}
