// Package texcache turns CPU pixel buffers into GPU textures and recycles
// those textures across frames.
//
// A [Cache] keeps every texture it has created. A texture handed out by
// [Cache.TextureFromBuffer] carries one reference owned by the caller.
// When the last reference is released the texture returns to the pool,
// where the next frame of the same size and format can claim it without a
// new allocation. [Cache.Flush] destroys pooled textures that have been idle
// for longer than the configured maximum age, and the memory budget evicts
// the least recently used idle textures first.
package texcache
