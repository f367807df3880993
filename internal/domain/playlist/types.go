// Package playlist provides the per-slug presentation records: photos,
// tracks, messages and page settings.
package playlist

import (
	"bytes"
	"encoding/json"
	"time"
)

// DefaultSlideInterval is used when a record does not set autoSlideInterval.
const DefaultSlideInterval = 5 * time.Second

// ID identifies a track. Data files use either JSON numbers or strings.
type ID string

// UnmarshalJSON accepts both `"7"` and `7`.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// Track is one playlist entry.
type Track struct {
	ID       ID     `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	CoverURL string `json:"cover"`
	// DurationLabel is display only ("3:45").
	DurationLabel string `json:"duration"`
	// ExternalMediaID is the video-platform id the media widget binds to.
	ExternalMediaID string `json:"youtubeId"`
}

// Photo is one slideshow image.
type Photo struct {
	URL     string `json:"url"`
	Alt     string `json:"alt"`
	Caption string `json:"caption"`
}

// Message is a dedication shown below the player.
type Message struct {
	Message string `json:"message"`
	Author  string `json:"author"`
}

// Settings holds per-page tunables.
type Settings struct {
	// AutoSlideInterval is in milliseconds.
	AutoSlideInterval int  `json:"autoSlideInterval,omitempty"`
	InitialTrack      *int `json:"initialTrack,omitempty"`
}

// SlideInterval returns the slideshow period.
func (s Settings) SlideInterval() time.Duration {
	if s.AutoSlideInterval <= 0 {
		return DefaultSlideInterval
	}
	return time.Duration(s.AutoSlideInterval) * time.Millisecond
}

// Record is the immutable data snapshot for one slug.
type Record struct {
	Title    string    `json:"title"`
	Subtitle string    `json:"subtitle"`
	Photos   []Photo   `json:"photos"`
	Playlist []Track   `json:"playlist"`
	Messages []Message `json:"messages"`
	Settings Settings  `json:"settings"`
}

// InitialTrack picks the track a fresh page starts on: the configured
// initialTrack when it is in range, otherwise intn(len). Returns -1 for an
// empty playlist.
func (r *Record) InitialTrack(intn func(n int) int) int {
	n := len(r.Playlist)
	if n == 0 {
		return -1
	}
	if it := r.Settings.InitialTrack; it != nil && *it >= 0 && *it < n {
		return *it
	}
	return intn(n)
}

// TrackIndex returns the position of the track with the given id, or -1.
func (r *Record) TrackIndex(id ID) int {
	for i, t := range r.Playlist {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// String renders an id for logs.
func (id ID) String() string {
	return string(id)
}
