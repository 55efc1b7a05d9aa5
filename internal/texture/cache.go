package texture

import (
	"image"
	"sync"

	"iso-slope-tiles/internal/imageio"
)

// Resolver returns a texture scaled to the requested tile size.
type Resolver interface {
	Resolve(path string, w, h int) (*image.NRGBA, error)
}

// Cache is a concurrency-safe texture cache. Each source file is decoded
// once and each requested size is resampled once.
type Cache struct {
	mu      sync.RWMutex
	sources map[string]*cacheEntry
	scaled  map[key]*image.NRGBA
}

type key struct {
	path string
	w, h int
}

type cacheEntry struct {
	img *image.NRGBA
	err error
}

// NewCache creates an empty texture cache.
func NewCache() *Cache {
	return &Cache{
		sources: make(map[string]*cacheEntry),
		scaled:  make(map[key]*image.NRGBA),
	}
}

// Resolve loads the texture at path and scales it to w x h.
// Load failures are cached too, so a missing texture is reported the same
// way on every call.
func (c *Cache) Resolve(path string, w, h int) (*image.NRGBA, error) {
	k := key{path, w, h}

	// Fast path: read lock
	c.mu.RLock()
	if img, ok := c.scaled[k]; ok {
		c.mu.RUnlock()
		return img, nil
	}
	c.mu.RUnlock()

	src, err := c.source(path)
	if err != nil {
		return nil, err
	}
	img := imageio.Resize(src, w, h)

	// Write lock with double-check
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.scaled[k]; ok {
		return existing, nil
	}
	c.scaled[k] = img
	return img, nil
}

// scaledCount returns the number of cached scaled textures.
func (c *Cache) scaledCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.scaled)
}

func (c *Cache) source(path string) (*image.NRGBA, error) {
	c.mu.RLock()
	if entry, ok := c.sources[path]; ok {
		c.mu.RUnlock()
		return entry.img, entry.err
	}
	c.mu.RUnlock()

	img, err := imageio.Load(path)

	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.sources[path]; ok {
		return entry.img, entry.err
	}
	c.sources[path] = &cacheEntry{img: img, err: err}
	return img, err
}
