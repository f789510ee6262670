package texcache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/camquad"
)

// Reference states. A positive count means the texture is in use.
const (
	refsIdle      = 0
	refsDestroyed = -1
)

// Texture is a GPU texture owned by a Cache.
//
// Texture is safe for concurrent use. Holders call TryRetain to take an
// extra reference and Release to drop one.
type Texture struct {
	cache *Cache
	id    uint64

	tex  hal.Texture
	view hal.TextureView

	width, height uint32
	format        gputypes.TextureFormat
	sizeBytes     uint64

	refs atomic.Int32

	// Guarded by cache.mu.
	lastUsed time.Time
	entry    *textureEntry

	srcMu  sync.RWMutex
	source *camquad.PixelBuffer
}

// ID returns an identifier unique within the owning cache.
func (t *Texture) ID() uint64 { return t.id }

// View returns the sampleable view of the texture.
func (t *Texture) View() hal.TextureView { return t.view }

// Size returns the texture dimensions in texels.
func (t *Texture) Size() (width, height uint32) { return t.width, t.height }

// Format returns the GPU pixel format.
func (t *Texture) Format() gputypes.TextureFormat { return t.format }

// SizeBytes returns the GPU memory accounted for this texture.
func (t *Texture) SizeBytes() uint64 { return t.sizeBytes }

// Source returns the pixel buffer most recently uploaded into the texture.
// The buffer must be treated as read-only.
func (t *Texture) Source() *camquad.PixelBuffer {
	t.srcMu.RLock()
	defer t.srcMu.RUnlock()
	return t.source
}

func (t *Texture) setSource(pb *camquad.PixelBuffer) {
	t.srcMu.Lock()
	t.source = pb
	t.srcMu.Unlock()
}

// Refs returns the current reference count. Zero means idle in the pool and
// a negative value means the texture has been destroyed.
func (t *Texture) Refs() int32 { return t.refs.Load() }

// TryRetain adds a reference if the texture is still in use by someone.
// It fails for idle or destroyed textures: an idle texture may be claimed
// by the cache for a new frame at any moment.
func (t *Texture) TryRetain() bool {
	for {
		n := t.refs.Load()
		if n <= refsIdle {
			return false
		}
		if t.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Release drops one reference. Dropping the last reference returns the
// texture to the cache pool, or destroys it if the cache has been closed.
func (t *Texture) Release() {
	for {
		n := t.refs.Load()
		if n <= refsIdle {
			panic("texcache: release of unreferenced texture")
		}
		if n > 1 {
			if t.refs.CompareAndSwap(n, n-1) {
				return
			}
			continue
		}
		if t.cache.returnToPool(t) {
			return
		}
	}
}
