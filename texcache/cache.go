package texcache

import (
	"container/list"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/camquad"
)

// Cache errors.
var (
	// ErrCacheClosed is returned when converting through a closed cache.
	ErrCacheClosed = errors.New("texcache: cache closed")

	// ErrBudgetExceeded is returned when a texture does not fit in the memory
	// budget even after every idle texture has been evicted.
	ErrBudgetExceeded = errors.New("texcache: memory budget exceeded")

	// ErrNoDevice is returned by New without a device or uploader.
	ErrNoDevice = errors.New("texcache: device and uploader are required")
)

// Defaults.
const (
	// DefaultMaxTextureAge is how long an idle texture stays pooled.
	DefaultMaxTextureAge = 2 * time.Second

	// DefaultMaxMemoryMB is the default GPU memory budget for cached textures.
	DefaultMaxMemoryMB = 64
)

// Uploader writes pixel data into a texture. hal.Queue implements it.
type Uploader interface {
	WriteTexture(dst *hal.ImageCopyTexture, data []byte, layout *hal.ImageDataLayout, size *hal.Extent3D) error
}

// Config holds configuration for creating a Cache.
type Config struct {
	// MaxTextureAge defaults to DefaultMaxTextureAge if <= 0.
	MaxTextureAge time.Duration

	// MaxMemoryMB defaults to DefaultMaxMemoryMB if <= 0.
	MaxMemoryMB int

	// Label prefixes GPU object labels. Defaults to "video texture".
	Label string

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Stats contains cache usage statistics.
type Stats struct {
	Textures    int    `json:"textures"`
	InUse       int    `json:"in_use"`
	UsedBytes   uint64 `json:"used_bytes"`
	BudgetBytes uint64 `json:"budget_bytes"`
	Created     uint64 `json:"created"`
	Reused      uint64 `json:"reused"`
	Evicted     uint64 `json:"evicted"`
	Failures    uint64 `json:"failures"`
}

// String returns a human-readable summary.
func (s Stats) String() string {
	return fmt.Sprintf("TextureCache[%d textures (%d in use), %d/%d KB, %d created, %d reused, %d evicted, %d failures]",
		s.Textures, s.InUse, s.UsedBytes/1024, s.BudgetBytes/1024,
		s.Created, s.Reused, s.Evicted, s.Failures)
}

// textureEntry tracks a texture with its LRU position.
type textureEntry struct {
	texture *Texture
	element *list.Element
}

// Cache creates, recycles and evicts frame textures.
//
// Cache is safe for concurrent use.
type Cache struct {
	mu sync.Mutex

	device   hal.Device
	uploader Uploader

	maxAge      time.Duration
	budgetBytes uint64
	usedBytes   uint64
	label       string
	now         func() time.Time

	textures map[uint64]*textureEntry

	// front = most recently used, back = least recently used
	lru *list.List

	nextID   uint64
	created  uint64
	reused   uint64
	evicted  uint64
	failures uint64

	closed bool
}

// New creates a texture cache on device. Uploads go through uploader,
// normally the device's queue.
func New(device hal.Device, uploader Uploader, cfg Config) (*Cache, error) {
	if device == nil || uploader == nil {
		return nil, ErrNoDevice
	}
	maxAge := cfg.MaxTextureAge
	if maxAge <= 0 {
		maxAge = DefaultMaxTextureAge
	}
	maxMB := cfg.MaxMemoryMB
	if maxMB <= 0 {
		maxMB = DefaultMaxMemoryMB
	}
	label := cfg.Label
	if label == "" {
		label = "video texture"
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	//nolint:gosec // G115: maxMB is positive
	return &Cache{
		device:      device,
		uploader:    uploader,
		maxAge:      maxAge,
		budgetBytes: uint64(maxMB) * 1024 * 1024,
		label:       label,
		now:         now,
		textures:    make(map[uint64]*textureEntry),
		lru:         list.New(),
	}, nil
}

// MaxTextureAge returns the idle lifetime of pooled textures.
func (c *Cache) MaxTextureAge() time.Duration { return c.maxAge }

// TextureFromBuffer uploads pb into a texture of matching size, reusing an
// idle pooled texture when one exists. The returned texture carries one
// reference owned by the caller, who must Release it.
//
// On error no texture is retained and the cache is unchanged apart from
// its failure counter.
func (c *Cache) TextureFromBuffer(pb *camquad.PixelBuffer) (*Texture, error) {
	if err := pb.Validate(); err != nil {
		c.countFailure()
		return nil, err
	}
	//nolint:gosec // G115: dimensions validated positive
	w, h := uint32(pb.Width), uint32(pb.Height)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrCacheClosed
	}
	t := c.claimLocked(w, h)
	if t == nil {
		var err error
		t, err = c.createLocked(w, h)
		if err != nil {
			c.failures++
			c.mu.Unlock()
			return nil, err
		}
	}
	c.mu.Unlock()

	err := c.uploader.WriteTexture(
		&hal.ImageCopyTexture{
			Texture: t.tex,
			Aspect:  gputypes.TextureAspectAll,
		},
		pb.Data,
		&hal.ImageDataLayout{
			BytesPerRow:  uint32(pb.BytesPerRow), //nolint:gosec // validated
			RowsPerImage: h,
		},
		&hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	)
	if err != nil {
		t.Release()
		c.countFailure()
		return nil, fmt.Errorf("upload %dx%d frame: %w", w, h, err)
	}
	t.setSource(pb)
	return t, nil
}

// claimLocked takes an idle pooled texture of the given size.
// Caller must hold mu.
func (c *Cache) claimLocked(w, h uint32) *Texture {
	for e := c.lru.Front(); e != nil; e = e.Next() {
		entry, ok := e.Value.(*textureEntry)
		if !ok {
			continue
		}
		t := entry.texture
		if t.width != w || t.height != h {
			continue
		}
		if t.refs.CompareAndSwap(refsIdle, 1) {
			t.lastUsed = c.now()
			c.lru.MoveToFront(e)
			c.reused++
			return t
		}
	}
	return nil
}

// createLocked allocates a new texture with one reference.
// Caller must hold mu.
func (c *Cache) createLocked(w, h uint32) (*Texture, error) {
	size := uint64(w) * uint64(h) * camquad.BytesPerPixel
	if size > c.budgetBytes {
		return nil, fmt.Errorf("%w: %dx%d texture needs %d KB, budget is %d KB",
			ErrBudgetExceeded, w, h, size/1024, c.budgetBytes/1024)
	}
	if err := c.evictForLocked(size); err != nil {
		return nil, err
	}

	tex, err := c.device.CreateTexture(&hal.TextureDescriptor{
		Label:         c.label,
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatBGRA8Unorm,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("create %dx%d texture: %w", w, h, err)
	}
	view, err := c.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         c.label + " view",
		Format:        gputypes.TextureFormatBGRA8Unorm,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		c.device.DestroyTexture(tex)
		return nil, fmt.Errorf("create %dx%d texture view: %w", w, h, err)
	}

	c.nextID++
	t := &Texture{
		cache:     c,
		id:        c.nextID,
		tex:       tex,
		view:      view,
		width:     w,
		height:    h,
		format:    gputypes.TextureFormatBGRA8Unorm,
		sizeBytes: size,
		lastUsed:  c.now(),
	}
	t.refs.Store(1)

	entry := &textureEntry{texture: t}
	entry.element = c.lru.PushFront(entry)
	t.entry = entry
	c.textures[t.id] = entry
	c.usedBytes += size
	c.created++

	camquad.Logger().Debug("texcache: texture created",
		"id", t.id, "width", w, "height", h, "used_kb", c.usedBytes/1024)
	return t, nil
}

// evictForLocked destroys idle textures, least recently used first, until
// requested bytes fit in the budget. Caller must hold mu.
func (c *Cache) evictForLocked(requested uint64) error {
	for e := c.lru.Back(); e != nil && c.usedBytes+requested > c.budgetBytes; {
		prev := e.Prev()
		if entry, ok := e.Value.(*textureEntry); ok {
			if entry.texture.refs.CompareAndSwap(refsIdle, refsDestroyed) {
				c.destroyLocked(entry)
			}
		} else {
			c.lru.Remove(e)
		}
		e = prev
	}
	if c.usedBytes+requested > c.budgetBytes {
		return fmt.Errorf("%w: need %d KB, %d KB available",
			ErrBudgetExceeded, requested/1024, (c.budgetBytes-c.usedBytes)/1024)
	}
	return nil
}

// destroyLocked removes an entry and frees its GPU objects.
// The texture's refs must already be refsDestroyed. Caller must hold mu.
func (c *Cache) destroyLocked(entry *textureEntry) {
	t := entry.texture
	if entry.element != nil {
		c.lru.Remove(entry.element)
	}
	delete(c.textures, t.id)
	c.usedBytes -= t.sizeBytes
	c.evicted++
	c.destroyGPU(t)
}

func (c *Cache) destroyGPU(t *Texture) {
	if t.view != nil {
		c.device.DestroyTextureView(t.view)
	}
	if t.tex != nil {
		c.device.DestroyTexture(t.tex)
	}
}

// returnToPool handles the release of the last reference. It reports false
// if the count changed concurrently and the caller must retry.
func (c *Cache) returnToPool(t *Texture) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		if !t.refs.CompareAndSwap(1, refsDestroyed) {
			return false
		}
		c.destroyGPU(t)
		return true
	}
	if !t.refs.CompareAndSwap(1, refsIdle) {
		return false
	}
	t.lastUsed = c.now()
	if t.entry != nil && t.entry.element != nil {
		c.lru.MoveToFront(t.entry.element)
	}
	return true
}

func (c *Cache) countFailure() {
	c.mu.Lock()
	c.failures++
	c.mu.Unlock()
}

// Flush destroys idle textures that have not been used for longer than the
// maximum texture age as of now. It returns the number destroyed.
func (c *Cache) Flush(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0
	}
	n := 0
	for e := c.lru.Back(); e != nil; {
		prev := e.Prev()
		entry, ok := e.Value.(*textureEntry)
		if ok && now.Sub(entry.texture.lastUsed) > c.maxAge &&
			entry.texture.refs.CompareAndSwap(refsIdle, refsDestroyed) {
			c.destroyLocked(entry)
			n++
		}
		e = prev
	}
	if n > 0 {
		camquad.Logger().Debug("texcache: flushed idle textures", "count", n, "used_kb", c.usedBytes/1024)
	}
	return n
}

// Stats returns current cache statistics.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	inUse := 0
	for _, entry := range c.textures {
		if entry.texture.refs.Load() > 0 {
			inUse++
		}
	}
	return Stats{
		Textures:    len(c.textures),
		InUse:       inUse,
		UsedBytes:   c.usedBytes,
		BudgetBytes: c.budgetBytes,
		Created:     c.created,
		Reused:      c.reused,
		Evicted:     c.evicted,
		Failures:    c.failures,
	}
}

// Close destroys all idle textures. Textures still referenced are destroyed
// when their last reference is released. The cache must be closed before
// its device is destroyed.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	for id, entry := range c.textures {
		t := entry.texture
		if t.refs.CompareAndSwap(refsIdle, refsDestroyed) {
			c.destroyGPU(t)
		}
		t.entry = nil
		delete(c.textures, id)
	}
	c.lru.Init()
	c.usedBytes = 0
	c.closed = true
}
