package playlist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNotFound is returned when no record exists for a slug.
	ErrNotFound = errors.New("playlist not found")
	// ErrInvalidSlug is returned for slugs outside [a-z0-9-].
	ErrInvalidSlug = errors.New("invalid slug")
)

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,127}$`)

// Provider returns the record for a slug.
type Provider interface {
	Get(ctx context.Context, slug string) (*Record, error)
}

// FileProvider serves records from <dir>/<slug>.json. Parsed records are
// cached until the backing file changes.
type FileProvider struct {
	dir string

	mu       sync.RWMutex
	cache    map[string]*Record
	watcher  *fsnotify.Watcher
	onChange []func(slug string)
}

// NewFileProvider creates a provider rooted at dir.
func NewFileProvider(dir string) *FileProvider {
	return &FileProvider{
		dir:   dir,
		cache: make(map[string]*Record),
	}
}

// ValidSlug reports whether slug is acceptable as a file name stem.
func ValidSlug(slug string) bool {
	return slugPattern.MatchString(slug)
}

// Get returns the record for slug. The returned record is shared and must
// be treated as read-only.
func (p *FileProvider) Get(ctx context.Context, slug string) (*Record, error) {
	if !ValidSlug(slug) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSlug, slug)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	rec, ok := p.cache[slug]
	p.mu.RUnlock()
	if ok {
		return rec, nil
	}

	rec, err := p.load(slug)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.cache[slug] = rec
	p.mu.Unlock()

	log.Debug().Str("slug", slug).Int("tracks", len(rec.Playlist)).Int("photos", len(rec.Photos)).Msg("Playlist loaded")
	return rec, nil
}

func (p *FileProvider) load(slug string) (*Record, error) {
	path := filepath.Join(p.dir, slug+".json")

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, slug)
		}
		return nil, fmt.Errorf("failed to read playlist %s: %w", slug, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse playlist %s: %w", slug, err)
	}
	return &rec, nil
}

// Slugs lists the slugs available in the data directory.
func (p *FileProvider) Slugs() ([]string, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}

	var slugs []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		slug := strings.TrimSuffix(e.Name(), ".json")
		if ValidSlug(slug) {
			slugs = append(slugs, slug)
		}
	}
	sort.Strings(slugs)
	return slugs, nil
}

// Invalidate drops a cached record.
func (p *FileProvider) Invalidate(slug string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.cache, slug)
}

// Watch evicts cached records when their files change. It returns once the
// watcher is registered; eviction runs until ctx is cancelled or Close.
func (p *FileProvider) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create playlist watcher: %w", err)
	}
	if err := w.Add(p.dir); err != nil {
		w.Close()
		return fmt.Errorf("failed to watch %s: %w", p.dir, err)
	}

	p.mu.Lock()
	p.watcher = w
	p.mu.Unlock()

	go func() {
		log.Info().Str("dir", p.dir).Msg("Playlist watcher started")
		for {
			select {
			case <-ctx.Done():
				w.Close()
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				p.handleEvent(ev)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("Playlist watcher error")
			}
		}
	}()

	return nil
}

func (p *FileProvider) handleEvent(ev fsnotify.Event) {
	if filepath.Ext(ev.Name) != ".json" {
		return
	}
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return
	}
	slug := strings.TrimSuffix(filepath.Base(ev.Name), ".json")
	p.Invalidate(slug)
	log.Debug().Str("slug", slug).Str("op", ev.Op.String()).Msg("Playlist cache invalidated")

	p.mu.RLock()
	hooks := p.onChange
	p.mu.RUnlock()
	for _, fn := range hooks {
		fn(slug)
	}
}

// OnChange registers fn to run after a watched record file changes.
func (p *FileProvider) OnChange(fn func(slug string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChange = append(p.onChange, fn)
}

// Close stops the watcher if one is running.
func (p *FileProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.watcher != nil {
		err := p.watcher.Close()
		p.watcher = nil
		return err
	}
	return nil
}
