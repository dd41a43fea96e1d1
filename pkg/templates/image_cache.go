package templates

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// cachedImage is one decoded file, keyed by path and scale.
type cachedImage struct {
	path  string
	scale float64
	image *image.RGBA
	err   error
	mu    sync.RWMutex
}

// ImageCache decodes template images once and shares the pixels between
// every set that references the same file.
type ImageCache struct {
	images map[cacheKey]*cachedImage
	mu     sync.Mutex
	stats  CacheStats
}

type cacheKey struct {
	path  string
	scale float64
}

// CacheStats tracks cache performance
type CacheStats struct {
	Hits   int64 // served from memory
	Misses int64 // had to decode
	Fails  int64 // decode or read failures
}

// NewImageCache creates a new image cache
func NewImageCache() *ImageCache {
	return &ImageCache{images: make(map[cacheKey]*cachedImage)}
}

// Load returns the decoded, scaled image at path.
func (ic *ImageCache) Load(path string, scale float64) (*image.RGBA, error) {
	if scale == 0 {
		scale = 1
	}
	key := cacheKey{path: path, scale: scale}

	ic.mu.Lock()
	entry, ok := ic.images[key]
	if !ok {
		entry = &cachedImage{path: path, scale: scale}
		ic.images[key] = entry
	}
	ic.mu.Unlock()

	img, loaded, err := entry.getOrLoad()

	ic.mu.Lock()
	switch {
	case err != nil:
		ic.stats.Fails++
		// Forget failures so a fixed file is picked up on the next load.
		delete(ic.images, key)
	case loaded:
		ic.stats.Misses++
	default:
		ic.stats.Hits++
	}
	ic.mu.Unlock()

	return img, err
}

// Stats returns cache statistics
func (ic *ImageCache) Stats() CacheStats {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	return ic.stats
}

// Len returns the number of cached images
func (ic *ImageCache) Len() int {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	return len(ic.images)
}

// getOrLoad returns the cached image or decodes it. loaded is true when
// this call did the decoding.
func (ci *cachedImage) getOrLoad() (img *image.RGBA, loaded bool, err error) {
	ci.mu.RLock()
	if ci.image != nil || ci.err != nil {
		defer ci.mu.RUnlock()
		return ci.image, false, ci.err
	}
	ci.mu.RUnlock()

	ci.mu.Lock()
	defer ci.mu.Unlock()

	// Double-check after acquiring write lock
	if ci.image != nil || ci.err != nil {
		return ci.image, false, ci.err
	}

	ci.image, ci.err = decodeFile(ci.path, ci.scale)
	return ci.image, true, ci.err
}

// decodeFile reads a png, jpeg or bmp file into RGBA anchored at (0,0).
func decodeFile(path string, scale float64) (*image.RGBA, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	src, format, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode template: %w", err)
	}

	b := src.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("empty %s image", format)
	}

	if scale == 1 {
		rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), src, b.Min, draw.Src)
		return rgba, nil
	}

	w := int(float64(b.Dx())*scale + 0.5)
	h := int(float64(b.Dy())*scale + 0.5)
	if w < 1 || h < 1 {
		return nil, fmt.Errorf("scale %.3f shrinks %dx%d template to nothing", scale, b.Dx(), b.Dy())
	}
	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(rgba, rgba.Bounds(), src, b, draw.Src, nil)
	return rgba, nil
}
