// Package camquad renders live camera frames as a textured full-screen quad
// using the gogpu WebGPU stack.
//
// # Overview
//
// A capture session delivers pixel buffers from a camera. Each buffer is
// uploaded into a GPU texture through a recycling texture cache and
// published into a single latest-value [Slot]. Once per display tick the
// renderer clears the drawable to opaque white and, if a texture has been
// published, draws it on a quad covering the whole surface.
//
// There is no frame queue. A newer frame replaces an older one before it is
// ever drawn, and a stalled camera leaves the last frame on screen.
//
// # Packages
//
//   - camquad: shared data model (Vertex, PixelBuffer, Slot, Config, logger)
//   - capture: camera abstraction, capture session, synthetic camera
//   - capture/gocvcam: OpenCV camera backed by gocv
//   - texcache: pixel buffer to GPU texture conversion with texture reuse
//   - renderer: pipeline builder, frame converter, per-frame renderer
//   - debugserver: HTTP introspection (stats, latest frame as PNG)
//   - cmd/camquad: window, headless and config commands
//
// # Logging
//
// camquad is silent by default. Use [SetLogger] to route diagnostics to a
// [log/slog] handler.
package camquad
