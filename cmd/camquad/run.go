package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/urfave/cli"

	"github.com/gogpu/camquad"
	"github.com/gogpu/camquad/capture"
	"github.com/gogpu/camquad/debugserver"
	"github.com/gogpu/camquad/internal/window"
	"github.com/gogpu/camquad/renderer"
)

func runWindow(ctx *cli.Context) error {
	cfg, err := loadConfigWithFlags(ctx)
	if err != nil {
		return err
	}
	log := setupLogging(ctx, cfg)

	cam, err := openCamera(cfg.Camera, 0)
	if err != nil {
		return fmt.Errorf("open camera: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		r       *renderer.Renderer
		session *capture.Session
		debug   *debugserver.Server
	)
	hooks := window.Hooks{
		Setup: func(host window.Host) error {
			var err error
			r, err = newRenderer(host.Device, host.Queue, host.Format, cfg, "window")
			if err != nil {
				return err
			}
			session, err = startSession(runCtx, cam, r, cfg)
			if err != nil {
				return err
			}
			debug = startDebugServer(log, cfg.Debug.Listen, r, session)
			return nil
		},
		Frame: func(d *window.Drawable) {
			if _, err := r.DrawFrame(d); err != nil {
				log.Warn("draw failed", "err", err)
			}
		},
		Resize: func(w, h uint32) {
			r.Resize(w, h)
		},
		Close: func() {
			cancel()
			if session != nil {
				if err := session.Wait(); err != nil {
					log.Warn("capture stopped with error", "err", err)
				}
			}
			stopDebugServer(log, debug)
			r.Close()
		},
	}

	err = window.Run(window.Config{
		Title:  cfg.Window.Title,
		Width:  cfg.Window.Width,
		Height: cfg.Window.Height,
	}, hooks)
	if session == nil {
		// The session owns the camera once created.
		_ = cam.Close()
	}
	if r != nil && session == nil {
		r.Close()
	}
	return err
}

// newRenderer builds the renderer from the render configuration.
func newRenderer(device hal.Device, queue hal.Queue, format gputypes.TextureFormat, cfg camquad.Config, deviceName string) (*renderer.Renderer, error) {
	r, err := renderer.New(device, queue, renderer.Config{
		Surface: renderer.SurfaceDescriptor{
			Format:      format,
			SampleCount: uint32(cfg.Render.SampleCount),
		},
		MaxTextureAge: cfg.Render.MaxTextureAge.Duration(),
		DeviceName:    deviceName,
	})
	if err != nil {
		return nil, fmt.Errorf("create renderer: %w", err)
	}
	return r, nil
}

// startSession connects cam to the renderer's converter and starts it.
func startSession(ctx context.Context, cam capture.Camera, r *renderer.Renderer, cfg camquad.Config) (*capture.Session, error) {
	session, err := capture.NewSession(cam, capture.Config{
		Handler:           r.Converter().HandleFrame,
		DiscardLateFrames: cfg.Camera.DiscardLateFrames,
	})
	if err != nil {
		return nil, fmt.Errorf("create capture session: %w", err)
	}
	if err := session.Start(ctx); err != nil {
		return nil, fmt.Errorf("start capture session: %w", err)
	}
	return session, nil
}

func startDebugServer(log *slog.Logger, addr string, r *renderer.Renderer, session *capture.Session) *debugserver.Server {
	if addr == "" {
		return nil
	}
	srv := debugserver.New(debugserver.Options{Frames: r, Capture: session})
	go func() {
		if err := srv.Listen(addr); err != nil {
			log.Warn("debug server stopped", "err", err)
		}
	}()
	return srv
}

func stopDebugServer(log *slog.Logger, srv *debugserver.Server) {
	if srv == nil {
		return
	}
	if err := srv.Shutdown(); err != nil {
		log.Warn("debug server shutdown failed", "err", err)
	}
}
