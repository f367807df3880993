// Package session models one open presentation page: it owns the current
// track index and wires the playback and slideshow controllers to a
// playlist record.
package session

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/edumarques81/serenata/internal/clock"
	"github.com/edumarques81/serenata/internal/domain/playback"
	"github.com/edumarques81/serenata/internal/domain/playlist"
	"github.com/edumarques81/serenata/internal/domain/slideshow"
)

var (
	// ErrTrackOutOfRange is returned when selecting a track index that does
	// not exist.
	ErrTrackOutOfRange = errors.New("track index out of range")
	// ErrUnknownTrack is returned when liking a track id not in the playlist.
	ErrUnknownTrack = errors.New("unknown track")
)

// Listener receives state changes for pushing to the page.
type Listener interface {
	PlaybackChanged(playback.State)
	SlideChanged(slideshow.State)
}

// Options configures a session.
type Options struct {
	NewWidget playback.WidgetFactory
	Listener  Listener
	Clock     clock.Clock
	Intn      func(n int) int
}

// Session is the server-side counterpart of one page.
type Session struct {
	ID     string
	Slug   string
	record *playlist.Record

	Player *playback.Controller
	Slides *slideshow.Controller

	// trackMu is held from an index change until its track is loaded, so
	// concurrent changes reach the player in the order they were applied.
	trackMu sync.Mutex

	mu      sync.Mutex
	current int
	liked   map[playlist.ID]bool
	started bool
}

// View is what the page renders.
type View struct {
	ID           string             `json:"id"`
	Slug         string             `json:"slug"`
	Title        string             `json:"title"`
	Subtitle     string             `json:"subtitle"`
	Photos       []playlist.Photo   `json:"photos"`
	Playlist     []playlist.Track   `json:"playlist"`
	Messages     []playlist.Message `json:"messages"`
	CurrentTrack int                `json:"currentTrack"`
	Liked        []playlist.ID      `json:"liked"`
	Playback     playback.State     `json:"playback"`
	Slideshow    slideshow.State    `json:"slideshow"`
}

// New creates a session for a record. Call Start to load the first track
// and begin the slideshow.
func New(slug string, rec *playlist.Record, opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Intn == nil {
		opts.Intn = rand.IntN
	}

	s := &Session{
		ID:     uuid.NewString(),
		Slug:   slug,
		record: rec,
		liked:  make(map[playlist.ID]bool),
	}

	var onPlayback func(playback.State)
	var onSlide func(slideshow.State)
	if opts.Listener != nil {
		onPlayback = opts.Listener.PlaybackChanged
		onSlide = opts.Listener.SlideChanged
	}

	s.Player = playback.NewController(len(rec.Playlist), playback.Options{
		NewWidget:     opts.NewWidget,
		OnTrackChange: s.changeTrack,
		OnChange:      onPlayback,
		Clock:         opts.Clock,
		Intn:          opts.Intn,
	})
	s.Slides = slideshow.NewController(len(rec.Photos), rec.Settings.SlideInterval(), opts.Clock, onSlide)

	s.current = rec.InitialTrack(opts.Intn)
	return s
}

// Start loads the initial track without autoplay and starts the slideshow.
func (s *Session) Start() {
	s.trackMu.Lock()
	defer s.trackMu.Unlock()

	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	index := s.current
	s.mu.Unlock()

	if index >= 0 {
		s.Player.LoadTrack(index, s.record.Playlist[index], false)
	}
	s.Slides.Start()

	log.Info().Str("session", s.ID).Str("slug", s.Slug).Int("track", index).Msg("Session started")
}

// changeTrack is the index-change callback handed to the player.
func (s *Session) changeTrack(index int, autoplay bool) {
	if index < 0 || index >= len(s.record.Playlist) {
		return
	}
	s.trackMu.Lock()
	defer s.trackMu.Unlock()

	s.mu.Lock()
	s.current = index
	s.mu.Unlock()

	s.Player.LoadTrack(index, s.record.Playlist[index], autoplay)
}

// SelectTrack switches to a track picked from the list. It counts as a user
// gesture.
func (s *Session) SelectTrack(index int) error {
	if index < 0 || index >= len(s.record.Playlist) {
		return fmt.Errorf("%w: %d", ErrTrackOutOfRange, index)
	}
	s.Player.MarkInteraction()
	s.changeTrack(index, true)
	return nil
}

// CurrentTrack returns the current track, if the playlist is not empty.
func (s *Session) CurrentTrack() (playlist.Track, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current < 0 {
		return playlist.Track{}, false
	}
	return s.record.Playlist[s.current], true
}

// CurrentIndex returns the current track index, -1 for an empty playlist.
func (s *Session) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// ToggleLike flips the liked flag for a track and returns the new value.
func (s *Session) ToggleLike(id playlist.ID) (bool, error) {
	if s.record.TrackIndex(id) < 0 {
		return false, fmt.Errorf("%w: %s", ErrUnknownTrack, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.liked[id] {
		delete(s.liked, id)
		return false, nil
	}
	s.liked[id] = true
	return true, nil
}

// View returns a snapshot for rendering.
func (s *Session) View() View {
	s.mu.Lock()
	current := s.current
	liked := lo.Keys(s.liked)
	s.mu.Unlock()

	slices.Sort(liked)

	return View{
		ID:           s.ID,
		Slug:         s.Slug,
		Title:        s.record.Title,
		Subtitle:     s.record.Subtitle,
		Photos:       s.record.Photos,
		Playlist:     s.record.Playlist,
		Messages:     s.record.Messages,
		CurrentTrack: current,
		Liked:        liked,
		Playback:     s.Player.Snapshot(),
		Slideshow:    s.Slides.Snapshot(),
	}
}

// Close stops both controllers and releases the widget.
func (s *Session) Close() {
	s.Player.Close()
	s.Slides.Close()
	log.Info().Str("session", s.ID).Str("slug", s.Slug).Msg("Session closed")
}
