package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"os"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"

	"github.com/gogpu/camquad/capture"
	"github.com/gogpu/camquad/internal/gpudev"
	"github.com/gogpu/camquad/renderer"
)

// headlessTick paces offscreen frames like a 60 Hz display.
const headlessTick = time.Second / 60

func runHeadless(ctx *cli.Context) error {
	cfg, err := loadConfigWithFlags(ctx)
	if err != nil {
		return err
	}
	log := setupLogging(ctx, cfg)

	dev, err := gpudev.Open(cfg.Headless.Backend)
	if err != nil {
		return err
	}
	defer dev.Close()

	target, err := renderer.NewOffscreenTarget(dev.Device, gputypes.TextureFormatBGRA8Unorm,
		uint32(cfg.Headless.Width), uint32(cfg.Headless.Height))
	if err != nil {
		return err
	}
	defer target.Destroy()

	r, err := newRenderer(dev.Device, dev.Queue, gputypes.TextureFormatBGRA8Unorm, cfg, dev.Name())
	if err != nil {
		return err
	}
	defer r.Close()

	cam, err := openCamera(cfg.Camera, 0)
	if err != nil {
		return fmt.Errorf("open camera: %w", err)
	}
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	session, err := startSession(runCtx, cam, r, cfg)
	if err != nil {
		_ = cam.Close()
		return err
	}

	log.Info("headless: rendering", "frames", cfg.Headless.Frames,
		"size", fmt.Sprintf("%dx%d", cfg.Headless.Width, cfg.Headless.Height),
		"device", dev.Name())

	start := time.Now()
	ticker := time.NewTicker(headlessTick)
	defer ticker.Stop()
	for i := 0; i < cfg.Headless.Frames; i++ {
		if _, err := r.DrawFrame(target); err != nil {
			log.Warn("headless: draw failed", "frame", i, "err", err)
		}
		select {
		case <-ticker.C:
		case <-session.Done():
		}
	}
	elapsed := time.Since(start)

	cancel()
	if err := session.Wait(); err != nil {
		log.Warn("headless: capture stopped with error", "err", err)
	}

	if n, ok := framesProduced(cam); ok {
		log.Info("headless: source frames", "produced", n)
	}

	if out := ctx.String("out"); out != "" {
		if err := writeLatestFrame(r, out); err != nil {
			return err
		}
		log.Info("headless: latest frame written", "file", out)
	}

	fmt.Print(formatStats(dev.Name(), elapsed, session.Stats(), r))
	return nil
}

// writeLatestFrame saves the most recently published frame as PNG.
func writeLatestFrame(r *renderer.Renderer, path string) error {
	pb, _, ok := r.LatestFrame()
	if !ok {
		return errors.New("no frame was published")
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, pb.Image(0)); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

// formatStats renders run counters as a table.
func formatStats(device string, elapsed time.Duration, cs capture.Stats, r *renderer.Renderer) string {
	rs := r.Stats()
	conv := r.Converter().Stats()
	cache := r.Cache().Stats()

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Stage", "Counter", "Value"})
	rows := [][]string{
		{"capture", "read", fmt.Sprintf("%d", cs.Read)},
		{"capture", "delivered", fmt.Sprintf("%d", cs.Delivered)},
		{"capture", "dropped", fmt.Sprintf("%d", cs.Dropped)},
		{"capture", "errors", fmt.Sprintf("%d", cs.Errors)},
		{"convert", "converted", fmt.Sprintf("%d", conv.Converted)},
		{"convert", "failed", fmt.Sprintf("%d", conv.Failed)},
		{"cache", "textures", fmt.Sprintf("%d", cache.Textures)},
		{"cache", "created", fmt.Sprintf("%d", cache.Created)},
		{"cache", "reused", fmt.Sprintf("%d", cache.Reused)},
		{"cache", "evicted", fmt.Sprintf("%d", cache.Evicted)},
		{"render", "frames", fmt.Sprintf("%d", rs.Frames)},
		{"render", "idle", fmt.Sprintf("%d", rs.Idle)},
		{"render", "draw calls", fmt.Sprintf("%d", rs.DrawCalls)},
		{"render", "skipped", fmt.Sprintf("%d", rs.Skipped)},
	}
	table.AppendBulk(rows)
	table.SetFooter([]string{device, "elapsed", elapsed.Round(time.Millisecond).String()})
	table.Render()
	return buf.String()
}
