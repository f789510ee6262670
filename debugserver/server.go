// Package debugserver exposes renderer and capture state over HTTP.
//
// Routes:
//
//	GET /healthz    liveness
//	GET /stats      counters as JSON
//	GET /frame.png  the latest published frame, 204 when none
package debugserver

import (
	"bytes"
	"image/png"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/gogpu/camquad"
	"github.com/gogpu/camquad/capture"
	"github.com/gogpu/camquad/renderer"
	"github.com/gogpu/camquad/texcache"
)

// DefaultPreviewSize bounds the longer side of /frame.png.
const DefaultPreviewSize = 320

// Frames is what the server reads from the renderer.
type Frames interface {
	Stats() renderer.Stats
	LatestFrame() (*camquad.PixelBuffer, uint64, bool)
	Converter() *renderer.Converter
	Cache() *texcache.Cache
}

// CaptureStats reports capture session counters.
type CaptureStats interface {
	ID() string
	Stats() capture.Stats
}

// Options configures a Server.
type Options struct {
	Frames  Frames
	Capture CaptureStats

	// PreviewSize defaults to DefaultPreviewSize.
	PreviewSize int
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	SessionID string                  `json:"session_id,omitempty"`
	Uptime    string                  `json:"uptime"`
	Capture   *capture.Stats          `json:"capture,omitempty"`
	Converter renderer.ConverterStats `json:"converter"`
	Renderer  renderer.Stats          `json:"renderer"`
	Cache     texcache.Stats          `json:"cache"`
}

// Server is the debug HTTP server.
type Server struct {
	app     *fiber.App
	opts    Options
	started time.Time
}

// New creates the server and registers its routes.
func New(opts Options) *Server {
	if opts.PreviewSize <= 0 {
		opts.PreviewSize = DefaultPreviewSize
	}
	s := &Server{opts: opts, started: time.Now()}

	app := fiber.New(fiber.Config{
		AppName:               "camquad debug",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	app.Get("/healthz", s.handleHealth)
	app.Get("/stats", s.handleStats)
	app.Get("/frame.png", s.handleFrame)

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	camquad.Logger().Info("debugserver: listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	resp := StatsResponse{
		Uptime: time.Since(s.started).Round(time.Second).String(),
	}
	if s.opts.Capture != nil {
		st := s.opts.Capture.Stats()
		resp.SessionID = s.opts.Capture.ID()
		resp.Capture = &st
	}
	if f := s.opts.Frames; f != nil {
		resp.Renderer = f.Stats()
		if conv := f.Converter(); conv != nil {
			resp.Converter = conv.Stats()
		}
		if cache := f.Cache(); cache != nil {
			resp.Cache = cache.Stats()
		}
	}
	return c.JSON(resp)
}

func (s *Server) handleFrame(c *fiber.Ctx) error {
	if s.opts.Frames == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}
	pb, seq, ok := s.opts.Frames.LatestFrame()
	if !ok || pb == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, pb.Image(s.opts.PreviewSize)); err != nil {
		camquad.Logger().Warn("debugserver: encode frame failed", "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	c.Set(fiber.HeaderContentType, "image/png")
	c.Set("X-Frame-Sequence", strconv.FormatUint(seq, 10))
	return c.Send(buf.Bytes())
}
