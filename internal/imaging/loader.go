package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder

	"github.com/ironsheep/chipdetect-mcp/internal/geometry"
)

const (
	// DefaultFetchTimeout bounds the wait for a remote server's response.
	DefaultFetchTimeout = 15 * time.Second
	// DefaultMaxDownloadBytes caps the size of a remote image.
	DefaultMaxDownloadBytes int64 = 1 << 30
)

// Raster is a decoded source image.
type Raster struct {
	// Image holds the pixels, normalized to 8-bit when required.
	Image image.Image
	// Transform is the GeoTIFF pixel-to-world transform, nil when absent.
	Transform *geometry.Affine
	// Format is the decoder name: "png", "jpeg", "gif", "bmp", "webp" or "tiff".
	Format string
	// Source is the path or URL the raster was loaded from.
	Source string
	// ColorDepth is the bit depth per channel before normalization.
	ColorDepth string
	// Bands is the number of color channels before normalization.
	Bands int
	// HasAlpha reports whether the decoded image carries an alpha channel.
	HasAlpha bool
	// Normalized is set when the pixels were stretched to 8-bit RGB.
	Normalized bool
	// SizeBytes is the encoded size of the image.
	SizeBytes int64
}

// Bounds returns the raster dimensions.
func (r *Raster) Bounds() image.Rectangle {
	return r.Image.Bounds()
}

// UnsupportedFormatError is returned when the image bytes cannot be decoded.
type UnsupportedFormatError struct {
	Source string
	Err    error
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported image format: %s: %v", e.Source, e.Err)
}

func (e *UnsupportedFormatError) Unwrap() error {
	return e.Err
}

// ForceFetchRequiredError is returned for a remote GeoTIFF loaded without
// LoadOptions.ForceFetch.
type ForceFetchRequiredError struct {
	URL string
}

func (e *ForceFetchRequiredError) Error() string {
	return fmt.Sprintf("remote GeoTIFF %s must be fetched explicitly (force fetch not set)", e.URL)
}

// LoadOptions are per-call loading options.
type LoadOptions struct {
	// ForceFetch acknowledges the download of a remote GeoTIFF.
	ForceFetch bool
}

// LoaderOptions configure a Loader.
type LoaderOptions struct {
	// Timeout bounds the wait for a response header. Zero means
	// DefaultFetchTimeout.
	Timeout time.Duration
	// MaxDownloadBytes caps remote image size. Zero means
	// DefaultMaxDownloadBytes.
	MaxDownloadBytes int64
	// TempDir is where remote TIFFs are staged. Empty means os.TempDir().
	TempDir string
	// Logger receives debug output. Nil disables logging.
	Logger *zap.SugaredLogger
}

// Loader loads rasters from local paths and URLs and caches them by source.
type Loader struct {
	cache    *ImageCache
	client   *http.Client
	maxBytes int64
	tempDir  string
	logger   *zap.SugaredLogger
}

// NewLoader creates a Loader with an empty cache.
func NewLoader(opts LoaderOptions) *Loader {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	maxBytes := opts.MaxDownloadBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxDownloadBytes
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout

	return &Loader{
		cache:    NewImageCache(),
		client:   &http.Client{Transport: transport},
		maxBytes: maxBytes,
		tempDir:  opts.TempDir,
		logger:   logger,
	}
}

// Cache returns the loader's raster cache.
func (l *Loader) Cache() *ImageCache {
	return l.cache
}

// Load returns the raster for src, a local path or an http(s) URL. Cached
// rasters are returned without I/O.
//
// # Errors
//
//   - *ForceFetchRequiredError for a remote .tif/.tiff without opts.ForceFetch
//   - *UnsupportedFormatError when the bytes cannot be decoded
//   - wrapped I/O and HTTP errors otherwise
func (l *Loader) Load(ctx context.Context, src string, opts LoadOptions) (*Raster, error) {
	if src == "" {
		return nil, fmt.Errorf("image source is empty")
	}
	if r, ok := l.cache.Get(src); ok {
		return r, nil
	}

	var (
		r   *Raster
		err error
	)
	if IsURL(src) {
		r, err = l.loadRemote(ctx, src, opts)
	} else {
		r, err = l.loadFile(src)
	}
	if err != nil {
		return nil, err
	}

	l.logger.Debugw("loaded image",
		"source", src,
		"format", r.Format,
		"width", r.Bounds().Dx(), "height", r.Bounds().Dy(),
		"normalized", r.Normalized,
		"geotransform", r.Transform != nil)

	l.cache.Put(src, r)
	return r, nil
}

// IsURL reports whether src is an http or https URL.
func IsURL(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

func (l *Loader) loadFile(name string) (*Raster, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	return l.decode(name, f, stat.Size())
}

func (l *Loader) loadRemote(ctx context.Context, rawURL string, opts LoadOptions) (*Raster, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid image URL: %w", err)
	}

	if isTIFF(u.Path) {
		if !opts.ForceFetch {
			return nil, &ForceFetchRequiredError{URL: rawURL}
		}
		return l.loadRemoteTIFF(ctx, rawURL, path.Ext(u.Path))
	}

	data, err := l.fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return l.decode(rawURL, bytes.NewReader(data), int64(len(data)))
}

// loadRemoteTIFF stages the download in a temporary file so that the
// geotag reader can seek through it.
func (l *Loader) loadRemoteTIFF(ctx context.Context, rawURL, ext string) (*Raster, error) {
	tmp, size, err := l.download(ctx, rawURL, ext)
	if err != nil {
		return nil, err
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind download: %w", err)
	}
	return l.decode(rawURL, tmp, size)
}

// sourceReader is satisfied by *os.File and *bytes.Reader.
type sourceReader interface {
	io.Reader
	io.ReaderAt
}

func (l *Loader) decode(src string, r sourceReader, size int64) (*Raster, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, &UnsupportedFormatError{Source: src, Err: err}
	}

	out := &Raster{
		Source:    src,
		Format:    format,
		SizeBytes: size,
	}
	out.ColorDepth, out.Bands, out.HasAlpha = describe(img)

	if format == "tiff" {
		tr, err := ReadGeoTransform(r)
		if err != nil {
			l.logger.Warnw("ignoring unreadable geotags", "source", src, "error", err)
		}
		out.Transform = tr
	}

	out.Image, out.Normalized = Normalize(img)
	return out, nil
}

func isTIFF(p string) bool {
	switch strings.ToLower(path.Ext(p)) {
	case ".tif", ".tiff":
		return true
	}
	return false
}

// describe reports the bit depth, band count and alpha presence of a decoded
// image from its concrete type.
func describe(img image.Image) (depth string, bands int, alpha bool) {
	switch img.(type) {
	case *image.Gray:
		return "8-bit", 1, false
	case *image.Gray16:
		return "16-bit", 1, false
	case *image.RGBA, *image.NRGBA:
		return "8-bit", 4, true
	case *image.RGBA64, *image.NRGBA64:
		return "16-bit", 4, true
	default:
		return "8-bit", 3, false
	}
}

// ImageCache provides thread-safe caching of loaded rasters keyed by source.
//
// Cached rasters remain in memory until explicitly removed via Evict() or
// Clear(). For long-running processes handling many images, consider
// periodic cleanup to prevent unbounded memory growth.
type ImageCache struct {
	mu      sync.RWMutex
	rasters map[string]*Raster
}

// NewImageCache creates and initializes a new empty cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		rasters: make(map[string]*Raster),
	}
}

// Get returns the cached raster for src.
func (c *ImageCache) Get(src string) (*Raster, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.rasters[src]
	return r, ok
}

// Put stores r under src, replacing any previous entry.
func (c *ImageCache) Put(src string, r *Raster) {
	c.mu.Lock()
	c.rasters[src] = r
	c.mu.Unlock()
}

// Len returns the number of cached rasters.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rasters)
}

// Clear removes all rasters from the cache.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.rasters = make(map[string]*Raster)
	c.mu.Unlock()
}

// Evict removes a specific raster from the cache by its source.
//
// If the source is not in the cache, this method does nothing.
func (c *ImageCache) Evict(src string) {
	c.mu.Lock()
	delete(c.rasters, src)
	c.mu.Unlock()
}

// ImageInfo contains metadata about a loaded raster.
type ImageInfo struct {
	Source        string           `json:"source"`
	Width         int              `json:"width"`
	Height        int              `json:"height"`
	Format        string           `json:"format"`
	ColorDepth    string           `json:"color_depth"`
	Bands         int              `json:"bands"`
	HasAlpha      bool             `json:"has_alpha"`
	Normalized    bool             `json:"normalized"`
	FileSizeBytes int64            `json:"file_size_bytes"`
	Transform     *geometry.Affine `json:"geotransform,omitempty"`
}

// Info returns the metadata of r.
func (r *Raster) Info() *ImageInfo {
	b := r.Bounds()
	return &ImageInfo{
		Source:        r.Source,
		Width:         b.Dx(),
		Height:        b.Dy(),
		Format:        r.Format,
		ColorDepth:    r.ColorDepth,
		Bands:         r.Bands,
		HasAlpha:      r.HasAlpha,
		Normalized:    r.Normalized,
		FileSizeBytes: r.SizeBytes,
		Transform:     r.Transform,
	}
}
