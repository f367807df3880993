// Package artwork serves downscaled copies of cover art and slideshow photos
// stored under the static directory.
package artwork

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif" // GIF decoder
	"image/jpeg"
	_ "image/png" // PNG decoder
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // WebP decoder
	"golang.org/x/sync/singleflight"
)

var (
	// ErrNotFound is returned when the source image does not exist.
	ErrNotFound = errors.New("image not found")
	// ErrInvalidPath is returned for paths escaping the image root.
	ErrInvalidPath = errors.New("invalid image path")
)

// Widths are the output widths a request is rounded up to, so that the
// cache holds a bounded number of variants per image.
var Widths = []int{48, 96, 128, 256, 384, 640, 828, 1080, 1920}

// Resizer scales images under root and caches the results as JPEG.
type Resizer struct {
	root     string
	cacheDir string

	// group collapses concurrent requests for the same variant.
	group singleflight.Group
}

// NewResizer creates a resizer serving images from root.
func NewResizer(root, cacheDir string) *Resizer {
	return &Resizer{
		root:     root,
		cacheDir: cacheDir,
	}
}

// SnapWidth rounds w up to the nearest entry of Widths.
func SnapWidth(w int) int {
	i, _ := slices.BinarySearch(Widths, w)
	if i == len(Widths) {
		return Widths[len(Widths)-1]
	}
	return Widths[i]
}

// Resize returns the path of a copy of the image at urlPath no wider than
// width. Images already narrower are copied at their own size.
func (r *Resizer) Resize(urlPath string, width int) (string, error) {
	src, err := r.source(urlPath)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(src)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	if info.IsDir() {
		return "", ErrNotFound
	}

	width = SnapWidth(width)
	key := uuid.NewSHA1(uuid.NameSpaceURL, fmt.Appendf(nil, "%s@%d", urlPath, info.ModTime().UnixNano()))
	thumbPath := filepath.Join(r.cacheDir, fmt.Sprintf("%s_%d.jpg", key, width))

	_, err, _ = r.group.Do(thumbPath, func() (any, error) {
		if _, err := os.Stat(thumbPath); err == nil {
			return nil, nil
		}
		return nil, r.generate(src, thumbPath, width)
	})
	if err != nil {
		return "", err
	}
	return thumbPath, nil
}

// source maps a URL path onto the file system below root.
func (r *Resizer) source(urlPath string) (string, error) {
	if !strings.HasPrefix(urlPath, "/") || strings.Contains(urlPath, "\\") {
		return "", ErrInvalidPath
	}
	clean := filepath.Clean(urlPath)
	if clean != filepath.FromSlash(urlPath) {
		return "", ErrInvalidPath
	}
	return filepath.Join(r.root, clean), nil
}

func (r *Resizer) generate(sourcePath, thumbPath string, width int) error {
	if err := os.MkdirAll(r.cacheDir, 0755); err != nil {
		return fmt.Errorf("failed to create image cache directory: %w", err)
	}

	src, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to open source image: %w", err)
	}
	defer src.Close()

	img, format, err := image.Decode(src)
	if err != nil {
		return fmt.Errorf("failed to decode image: %w", err)
	}

	log.Debug().
		Str("source", sourcePath).
		Str("format", format).
		Int("width", width).
		Msg("Resizing image")

	// Write to a temp file so a concurrent reader never sees a partial JPEG.
	tmp, err := os.CreateTemp(r.cacheDir, "resize-*.jpg")
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := jpeg.Encode(tmp, scaleToWidth(img, width), &jpeg.Options{Quality: 85}); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), thumbPath)
}

// scaleToWidth scales src down to width keeping its aspect ratio. It never
// upscales.
func scaleToWidth(src image.Image, width int) image.Image {
	bounds := src.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	if srcW <= width {
		width = srcW
	}
	height := max(1, int(float64(srcH)*float64(width)/float64(srcW)))

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst
}
