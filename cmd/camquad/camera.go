package main

import (
	"github.com/gogpu/camquad"
	"github.com/gogpu/camquad/capture"
	"github.com/gogpu/camquad/capture/gocvcam"
)

// openCamera opens the configured frame source: the synthetic pattern, then
// a still image, then the camera device. frames limits the generated
// sources; zero is unlimited.
func openCamera(cfg camquad.CameraConfig, frames int) (capture.Camera, error) {
	switch {
	case cfg.Synthetic:
		cam, err := capture.NewSyntheticCamera(capture.SyntheticConfig{
			Width:   cfg.Width,
			Height:  cfg.Height,
			FPS:     cfg.FPS,
			Pattern: cfg.Pattern,
			Frames:  frames,
		})
		if err != nil {
			return nil, err
		}
		return cam, nil
	case cfg.Image != "":
		cam, err := capture.NewImageCamera(capture.ImageConfig{
			Path:   cfg.Image,
			FPS:    cfg.FPS,
			Frames: frames,
		})
		if err != nil {
			return nil, err
		}
		return cam, nil
	}
	cam, err := gocvcam.Open(gocvcam.Config{
		Device: cfg.Device,
		Width:  cfg.Width,
		Height: cfg.Height,
		FPS:    cfg.FPS,
	})
	if err != nil {
		return nil, err
	}
	return cam, nil
}

// framesProduced reports how many frames a generated source delivered.
func framesProduced(cam capture.Camera) (int, bool) {
	fp, ok := cam.(interface{ FramesProduced() int })
	if !ok {
		return 0, false
	}
	return fp.FramesProduced(), true
}
