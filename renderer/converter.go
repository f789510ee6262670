package renderer

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/camquad"
	"github.com/gogpu/camquad/texcache"
)

// ConverterStats counts conversion outcomes.
type ConverterStats struct {
	Converted uint64 `json:"converted"`
	Failed    uint64 `json:"failed"`
}

// Converter turns delivered pixel buffers into GPU textures and publishes
// each one as the latest texture, replacing the previous frame.
//
// Conversion never reports errors to the caller. A frame that cannot be
// converted is logged with diagnostic context and dropped; the previously
// published texture stays in place.
type Converter struct {
	mu         sync.Mutex
	cache      *texcache.Cache
	latest     *camquad.Slot[*texcache.Texture]
	deviceName string
	now        func() time.Time

	converted atomic.Uint64
	failed    atomic.Uint64
}

func newConverter(cache *texcache.Cache, latest *camquad.Slot[*texcache.Texture], deviceName string, now func() time.Time) *Converter {
	return &Converter{cache: cache, latest: latest, deviceName: deviceName, now: now}
}

// HandleFrame converts pb and publishes it. It has the signature of a
// capture frame handler.
func (c *Converter) HandleFrame(pb *camquad.PixelBuffer) {
	c.Convert(pb)
}

// Convert uploads pb into a texture and publishes it. It reports whether a
// new texture was published. Calls are serialized.
func (c *Converter) Convert(pb *camquad.PixelBuffer) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.cache.Flush(c.now())

	tex, err := c.cache.TextureFromBuffer(pb)
	if err != nil {
		c.failed.Add(1)
		attrs := []any{
			"device", c.deviceName,
			"data_size", pb.DataSize(),
			"planes", pb.PlaneCount(),
			"cache", c.cache.Stats().String(),
			"err", err,
		}
		if pb != nil {
			attrs = append(attrs,
				"width", pb.Width,
				"height", pb.Height,
				"format", pb.Format.String())
		}
		camquad.Logger().Warn("renderer: failed to create texture from pixel buffer", attrs...)
		return false
	}

	if old, ok := c.latest.Swap(tex); ok && old != nil {
		old.Release()
	}
	c.converted.Add(1)
	return true
}

// Stats returns conversion counters.
func (c *Converter) Stats() ConverterStats {
	return ConverterStats{
		Converted: c.converted.Load(),
		Failed:    c.failed.Load(),
	}
}

// close drops the slot's reference to the published texture.
func (c *Converter) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tex, ok := c.latest.Take(); ok && tex != nil {
		tex.Release()
	}
}
