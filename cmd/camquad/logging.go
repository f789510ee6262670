package main

import (
	"log/slog"
	"os"

	"github.com/urfave/cli"

	"github.com/gogpu/camquad"
)

// setupLogging installs the process logger. The level comes from the
// configuration unless -v or -vv is given. CAMQUAD_LOG_FORMAT=json
// switches to JSON output.
func setupLogging(ctx *cli.Context, cfg camquad.Config) *slog.Logger {
	level, err := cfg.Level()
	if err != nil {
		level = slog.LevelInfo
	}
	if ctx.GlobalBool("v") {
		level = slog.LevelInfo
	}
	if ctx.GlobalBool("vv") {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if os.Getenv("CAMQUAD_LOG_FORMAT") == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	camquad.SetLogger(logger)
	return logger
}

// loadConfig returns the configuration from --config, or the defaults.
func loadConfig(ctx *cli.Context) (camquad.Config, error) {
	path := ctx.GlobalString("config")
	if path == "" {
		return camquad.DefaultConfig(), nil
	}
	return camquad.LoadConfig(path)
}

func printConfig(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	return cfg.WriteYAML(os.Stdout)
}
