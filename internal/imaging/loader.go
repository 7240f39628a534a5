package imaging

import (
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// DefaultCacheTTL is how long a decoded image stays cached when no TTL is
// given to NewImageCache.
const DefaultCacheTTL = 10 * time.Minute

// ImageCache provides thread-safe caching of decoded images to avoid
// redundant disk reads.
//
// Entries are keyed by path, size and modification time. Replacing a file on
// disk therefore yields a fresh decode, while the stale entry simply expires.
//
// # Example Usage
//
//	cache := imaging.NewImageCache(5 * time.Minute)
//	img, err := cache.Load("/path/to/image.png")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cache.Evict("/path/to/image.png") // Optional: free memory
type ImageCache struct {
	items *gocache.Cache
	ttl   time.Duration
}

// cachedImage is a single decoded file.
type cachedImage struct {
	path   string
	img    image.Image
	format string
}

// NewImageCache creates an empty cache whose entries expire after ttl.
//
// Parameters:
//   - ttl: How long a decoded image is kept. A non-positive value selects
//     DefaultCacheTTL.
//
// The returned cache is ready for immediate use and is safe for concurrent access.
func NewImageCache(ttl time.Duration) *ImageCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &ImageCache{
		items: gocache.New(ttl, 2*ttl),
		ttl:   ttl,
	}
}

// TTL returns the expiry applied to new entries.
func (c *ImageCache) TTL() time.Duration {
	return c.ttl
}

// Load retrieves an image from the cache or decodes it from disk.
//
// Parameters:
//   - path: Absolute or relative file path to the image. Supported formats are
//     PNG, JPEG, and GIF.
//
// Returns:
//   - image.Image: The decoded image. The concrete type depends on the image format
//     and color model (e.g., *image.NRGBA, *image.YCbCr).
//   - error: Non-nil if the file cannot be stat'd, opened or decoded.
//
// # Errors
//
//   - Returns error if the file does not exist or cannot be read
//   - Returns error if the file is not a valid PNG, JPEG, or GIF image
func (c *ImageCache) Load(path string) (image.Image, error) {
	entry, err := c.load(path)
	if err != nil {
		return nil, err
	}
	return entry.img, nil
}

func (c *ImageCache) load(path string) (*cachedImage, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	key := cacheKey(path, stat)

	if v, ok := c.items.Get(key); ok {
		return v.(*cachedImage), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	entry := &cachedImage{path: path, img: img, format: format}
	c.items.Set(key, entry, gocache.DefaultExpiration)
	return entry, nil
}

func cacheKey(path string, stat os.FileInfo) string {
	return fmt.Sprintf("%s|%d|%d", path, stat.Size(), stat.ModTime().UnixNano())
}

// Len returns the number of unexpired entries.
func (c *ImageCache) Len() int {
	return c.items.ItemCount()
}

// Clear removes all images from the cache.
func (c *ImageCache) Clear() {
	c.items.Flush()
}

// Evict removes every cached version of an image.
//
// Parameters:
//   - path: The exact path string used when the image was loaded.
//
// If the path is not in the cache, this method does nothing.
func (c *ImageCache) Evict(path string) {
	for key, item := range c.items.Items() {
		if entry, ok := item.Object.(*cachedImage); ok && entry.path == path {
			c.items.Delete(key)
		}
	}
}

// ImageInfo contains metadata about a loaded image file.
type ImageInfo struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`

	// Format is the decoder that accepted the file: "png", "jpeg" or "gif".
	// It reflects the file contents, not its extension.
	Format string `json:"format"`

	// ColorDepth indicates the bit depth per channel: "8-bit" or "16-bit".
	ColorDepth string `json:"color_depth"`

	// HasAlpha indicates whether the image has an alpha (transparency) channel.
	HasAlpha bool `json:"has_alpha"`

	// FileSizeBytes is the size of the image file on disk in bytes.
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// LoadImageInfo loads an image through the cache and returns its metadata.
//
// Parameters:
//   - cache: The image cache to use for loading. Must not be nil.
//   - path: Path to the image file.
//
// Returns:
//   - *ImageInfo: Metadata about the image.
//   - error: Non-nil if the image cannot be loaded or the file cannot be stat'd.
//
// # Color Depth Detection
//
// Color depth is determined by the Go image type:
//   - *image.RGBA64, *image.NRGBA64, *image.Gray16 -> "16-bit"
//   - All other types -> "8-bit"
func LoadImageInfo(cache *ImageCache, path string) (*ImageInfo, error) {
	entry, err := cache.load(path)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	hasAlpha := false
	colorDepth := "8-bit"
	switch entry.img.(type) {
	case *image.RGBA, *image.NRGBA:
		hasAlpha = true
	case *image.RGBA64, *image.NRGBA64:
		hasAlpha = true
		colorDepth = "16-bit"
	case *image.Gray16:
		colorDepth = "16-bit"
	}

	bounds := entry.img.Bounds()
	return &ImageInfo{
		Width:         bounds.Dx(),
		Height:        bounds.Dy(),
		Format:        entry.format,
		ColorDepth:    colorDepth,
		HasAlpha:      hasAlpha,
		FileSizeBytes: stat.Size(),
	}, nil
}
