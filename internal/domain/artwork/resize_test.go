package artwork_test

import (
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/edumarques81/serenata/internal/domain/artwork"
)

func createTestImage(t *testing.T, path string, width, height int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 60, B: 90, A: 255})
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if filepath.Ext(path) == ".png" {
		err = png.Encode(f, img)
	} else {
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: 90})
	}
	if err != nil {
		t.Fatal(err)
	}
}

func decodeSize(t *testing.T, path string) (int, int) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Resized file not found: %v", err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatalf("Failed to decode resized image: %v", err)
	}
	return cfg.Width, cfg.Height
}

func TestResizeScalesToWidth(t *testing.T) {
	root := t.TempDir()
	createTestImage(t, filepath.Join(root, "photos", "beach.jpg"), 800, 600)

	r := artwork.NewResizer(root, t.TempDir())
	out, err := r.Resize("/photos/beach.jpg", 256)
	if err != nil {
		t.Fatalf("Resize failed: %v", err)
	}

	w, h := decodeSize(t, out)
	if w != 256 || h != 192 {
		t.Errorf("Expected 256x192, got %dx%d", w, h)
	}
}

func TestResizeNeverUpscales(t *testing.T) {
	root := t.TempDir()
	createTestImage(t, filepath.Join(root, "covers", "1.png"), 40, 40)

	out, err := artwork.NewResizer(root, t.TempDir()).Resize("/covers/1.png", 48)
	if err != nil {
		t.Fatalf("Resize failed: %v", err)
	}
	if w, h := decodeSize(t, out); w != 40 || h != 40 {
		t.Errorf("Expected 40x40, got %dx%d", w, h)
	}
}

func TestResizeReusesCachedCopy(t *testing.T) {
	root := t.TempDir()
	createTestImage(t, filepath.Join(root, "a.jpg"), 500, 500)
	r := artwork.NewResizer(root, t.TempDir())

	first, err := r.Resize("/a.jpg", 100)
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Resize("/a.jpg", 128)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("Expected widths 100 and 128 to share a cached file, got %s and %s", first, second)
	}
}

func TestResizeErrors(t *testing.T) {
	root := t.TempDir()
	createTestImage(t, filepath.Join(root, "a.jpg"), 10, 10)
	if err := os.WriteFile(filepath.Join(root, "notes.jpg"), []byte("not an image"), 0644); err != nil {
		t.Fatal(err)
	}
	r := artwork.NewResizer(root, t.TempDir())

	tests := []struct {
		path string
		want error
	}{
		{"/missing.jpg", artwork.ErrNotFound},
		{"/", artwork.ErrNotFound},
		{"a.jpg", artwork.ErrInvalidPath},
		{"/../a.jpg", artwork.ErrInvalidPath},
		{"/x/../../etc/passwd", artwork.ErrInvalidPath},
	}
	for _, tc := range tests {
		if _, err := r.Resize(tc.path, 48); !errors.Is(err, tc.want) {
			t.Errorf("Resize(%q) error = %v, want %v", tc.path, err, tc.want)
		}
	}

	if _, err := r.Resize("/notes.jpg", 48); err == nil {
		t.Error("Expected decode error for a non-image file")
	}
}

func TestSnapWidth(t *testing.T) {
	tests := map[int]int{1: 48, 48: 48, 49: 96, 300: 384, 1920: 1920, 5000: 1920}
	for in, want := range tests {
		if got := artwork.SnapWidth(in); got != want {
			t.Errorf("SnapWidth(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestConcurrentResizeSharesOneFile(t *testing.T) {
	root := t.TempDir()
	cache := t.TempDir()
	createTestImage(t, filepath.Join(root, "photo.jpg"), 600, 400)
	r := artwork.NewResizer(root, cache)

	var wg sync.WaitGroup
	paths := make([]string, 8)
	errs := make([]error, 8)
	for i := range paths {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			paths[i], errs[i] = r.Resize("/photo.jpg", 256)
		}(i)
	}
	wg.Wait()

	for i := range paths {
		if errs[i] != nil {
			t.Fatalf("Resize %d failed: %v", i, errs[i])
		}
		if paths[i] != paths[0] {
			t.Errorf("Resize %d returned %s, want %s", i, paths[i], paths[0])
		}
	}

	entries, err := os.ReadDir(cache)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected one cached file, found %d", len(entries))
	}
}
