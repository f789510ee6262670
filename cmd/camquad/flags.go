package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli"

	"github.com/gogpu/camquad"
)

// overrides are the command-line settings that replace configuration
// values. Zero values leave the configuration untouched.
type overrides struct {
	synthetic   bool
	image       string
	debugListen string
	backend     string
	frames      *int
	samples     *int
	title       string
	size        string
}

func overridesFromContext(ctx *cli.Context) overrides {
	o := overrides{
		synthetic:   ctx.Bool("synthetic"),
		image:       ctx.String("image"),
		debugListen: ctx.String("debug-listen"),
		backend:     ctx.String("backend"),
		title:       ctx.String("title"),
		size:        ctx.String("size"),
	}
	if ctx.IsSet("frames") {
		n := ctx.Int("frames")
		o.frames = &n
	}
	if ctx.IsSet("samples") {
		n := ctx.Int("samples")
		o.samples = &n
	}
	return o
}

// apply returns cfg with the overrides set and validates the result.
func (o overrides) apply(cfg camquad.Config) (camquad.Config, error) {
	if o.image != "" {
		cfg = cfg.WithImageCamera(o.image)
	}
	if o.synthetic {
		cfg = cfg.WithSyntheticCamera(cfg.Camera.Pattern)
	}
	if o.debugListen != "" {
		cfg = cfg.WithDebugListen(o.debugListen)
	}
	if o.backend != "" {
		cfg.Headless.Backend = o.backend
	}
	if o.frames != nil {
		cfg.Headless.Frames = *o.frames
	}
	if o.samples != nil {
		cfg = cfg.WithSampleCount(*o.samples)
	}
	if o.title != "" {
		cfg = cfg.WithTitle(o.title)
	}
	if o.size != "" {
		w, h, err := parseSize(o.size)
		if err != nil {
			return camquad.Config{}, err
		}
		cfg = cfg.WithSize(w, h)
	}
	if err := cfg.Validate(); err != nil {
		return camquad.Config{}, err
	}
	return cfg, nil
}

// parseSize reads "WIDTHxHEIGHT".
func parseSize(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("%w: size %q, want WIDTHxHEIGHT", camquad.ErrInvalidConfig, s)
	}
	w, errW := strconv.Atoi(strings.TrimSpace(ws))
	h, errH := strconv.Atoi(strings.TrimSpace(hs))
	if errW != nil || errH != nil {
		return 0, 0, fmt.Errorf("%w: size %q, want WIDTHxHEIGHT", camquad.ErrInvalidConfig, s)
	}
	return w, h, nil
}

// loadConfigWithFlags loads the configuration and applies the command's
// flags on top of it.
func loadConfigWithFlags(ctx *cli.Context) (camquad.Config, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return camquad.Config{}, err
	}
	return overridesFromContext(ctx).apply(cfg)
}
