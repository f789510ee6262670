package camquad

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Camera test patterns produced by the synthetic camera.
const (
	PatternSolid    = "solid"
	PatternBars     = "bars"
	PatternGradient = "gradient"
)

// Duration wraps time.Duration so it reads and writes as "2s" in YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Config is the complete application configuration.
type Config struct {
	Window   WindowConfig   `yaml:"window"`
	Camera   CameraConfig   `yaml:"camera"`
	Render   RenderConfig   `yaml:"render"`
	Headless HeadlessConfig `yaml:"headless"`
	Debug    DebugConfig    `yaml:"debug"`
	LogLevel string         `yaml:"log_level"`
}

// WindowConfig configures the on-screen window.
type WindowConfig struct {
	Title  string `yaml:"title"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

// CameraConfig selects and configures the frame source.
type CameraConfig struct {
	Device    int  `yaml:"device"`
	Synthetic bool `yaml:"synthetic"`
	// Image is a still image file used as the frame source unless
	// Synthetic is set.
	Image             string `yaml:"image"`
	Pattern           string `yaml:"pattern"`
	Width             int    `yaml:"width"`
	Height            int    `yaml:"height"`
	FPS               int    `yaml:"fps"`
	DiscardLateFrames bool   `yaml:"discard_late_frames"`
}

// RenderConfig configures the GPU side.
type RenderConfig struct {
	// SampleCount is the MSAA sample count of the render target (1 or 4).
	SampleCount int `yaml:"sample_count"`
	// MaxTextureAge is how long an unused cached texture survives.
	MaxTextureAge Duration `yaml:"max_texture_age"`
}

// HeadlessConfig configures offscreen rendering.
type HeadlessConfig struct {
	Backend string `yaml:"backend"`
	Frames  int    `yaml:"frames"`
	Width   int    `yaml:"width"`
	Height  int    `yaml:"height"`
}

// DebugConfig configures the optional introspection server.
// An empty Listen address disables it.
type DebugConfig struct {
	Listen string `yaml:"listen"`
}

// DefaultConfig returns the configuration used when no file is given.
// The camera defaults mirror a low-resolution preset with late frames
// discarded.
func DefaultConfig() Config {
	return Config{
		Window: WindowConfig{
			Title:  "camquad",
			Width:  800,
			Height: 600,
		},
		Camera: CameraConfig{
			Pattern:           PatternBars,
			Width:             192,
			Height:            144,
			FPS:               30,
			DiscardLateFrames: true,
		},
		Render: RenderConfig{
			SampleCount:   1,
			MaxTextureAge: Duration(2 * time.Second),
		},
		Headless: HeadlessConfig{
			Backend: "software",
			Frames:  60,
			Width:   320,
			Height:  240,
		},
		LogLevel: "info",
	}
}

// WithTitle returns a copy with the window title set.
func (c Config) WithTitle(title string) Config {
	c.Window.Title = title
	return c
}

// WithSize returns a copy with the window size set.
func (c Config) WithSize(width, height int) Config {
	c.Window.Width, c.Window.Height = width, height
	return c
}

// WithSyntheticCamera returns a copy that uses the synthetic camera.
func (c Config) WithSyntheticCamera(pattern string) Config {
	c.Camera.Synthetic = true
	c.Camera.Pattern = pattern
	return c
}

// WithImageCamera returns a copy that repeats the still image at path.
func (c Config) WithImageCamera(path string) Config {
	c.Camera.Synthetic = false
	c.Camera.Image = path
	return c
}

// WithSampleCount returns a copy with the MSAA sample count set.
func (c Config) WithSampleCount(n int) Config {
	c.Render.SampleCount = n
	return c
}

// WithDebugListen returns a copy with the debug server address set.
func (c Config) WithDebugListen(addr string) Config {
	c.Debug.Listen = addr
	return c
}

// Validate checks the configuration for values the application cannot use.
// All problems are reported together, each wrapping ErrInvalidConfig.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		bad("window size %dx%d", c.Window.Width, c.Window.Height)
	}
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		bad("camera size %dx%d", c.Camera.Width, c.Camera.Height)
	}
	if c.Camera.FPS <= 0 {
		bad("camera fps %d", c.Camera.FPS)
	}
	switch c.Camera.Pattern {
	case PatternSolid, PatternBars, PatternGradient:
	default:
		bad("camera pattern %q", c.Camera.Pattern)
	}
	if c.Render.SampleCount != 1 && c.Render.SampleCount != 4 {
		bad("sample count %d (want 1 or 4)", c.Render.SampleCount)
	}
	if c.Render.MaxTextureAge <= 0 {
		bad("max texture age %s", c.Render.MaxTextureAge.Duration())
	}
	if c.Headless.Frames < 0 {
		bad("headless frames %d", c.Headless.Frames)
	}
	if c.Headless.Width <= 0 || c.Headless.Height <= 0 {
		bad("headless size %dx%d", c.Headless.Width, c.Headless.Height)
	}
	if _, err := c.Level(); err != nil {
		bad("log level %q", c.LogLevel)
	}
	return errors.Join(errs...)
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel)))
	return l, err
}

// LoadConfig reads a YAML file over DefaultConfig. Keys absent from the
// file keep their default values.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML over DefaultConfig and validates the result.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WriteYAML encodes the configuration to w.
func (c Config) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}
