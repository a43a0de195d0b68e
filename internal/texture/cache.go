package texture

import (
	"sync"

	"grapple/internal/arena"
)

// Uploader sends decoded pixels to the GPU and sets Texture.Handle.
type Uploader interface {
	UploadTexture(t *Texture) error
}

// Load reads a BMP from path and uploads it.
func Load(u Uploader, path string, a *arena.Arena) (*Texture, error) {
	t, err := LoadFile(path, a)
	if err != nil {
		return nil, err
	}
	if err := u.UploadTexture(t); err != nil {
		return nil, err
	}
	return t, nil
}

// Cache loads each path at most once. Textures stay cached until the
// uploader that created them is destroyed; there is no eviction.
type Cache struct {
	mu       sync.RWMutex
	textures map[string]*Texture
	uploader Uploader
	arena    *arena.Arena
}

func NewCache(u Uploader, a *arena.Arena) *Cache {
	return &Cache{
		textures: make(map[string]*Texture),
		uploader: u,
		arena:    a,
	}
}

// Get returns the cached texture for path, loading and uploading it on first
// use.
func (c *Cache) Get(path string) (*Texture, error) {
	c.mu.RLock()
	if t, ok := c.textures[path]; ok {
		c.mu.RUnlock()
		return t, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double check locking
	if t, ok := c.textures[path]; ok {
		return t, nil
	}

	t, err := Load(c.uploader, path, c.arena)
	if err != nil {
		return nil, err
	}
	c.textures[path] = t
	return t, nil
}

// Len returns the number of cached textures.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.textures)
}
