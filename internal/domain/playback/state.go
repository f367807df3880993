// Package playback provides the media playback state machine: track
// loading, autoplay negotiation, progress sampling, shuffle and repeat.
package playback

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/edumarques81/serenata/internal/domain/playlist"
)

// Status is the controller's position in the playback lifecycle.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusReady
	StatusPlaying
	StatusPaused
	StatusBuffering
	StatusEnded
)

var statusNames = map[Status]string{
	StatusIdle:      "idle",
	StatusLoading:   "loading",
	StatusReady:     "ready",
	StatusPlaying:   "playing",
	StatusPaused:    "paused",
	StatusBuffering: "buffering",
	StatusEnded:     "ended",
}

// String returns the status name.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// WidgetState is a state report from the media widget. Values follow the
// embedded video player's numeric codes.
type WidgetState int

const (
	WidgetUnstarted WidgetState = -1
	WidgetEnded     WidgetState = 0
	WidgetPlaying   WidgetState = 1
	WidgetPaused    WidgetState = 2
	WidgetBuffering WidgetState = 3
	WidgetCued      WidgetState = 5
)

// String returns the widget state name.
func (w WidgetState) String() string {
	switch w {
	case WidgetUnstarted:
		return "unstarted"
	case WidgetEnded:
		return "ended"
	case WidgetPlaying:
		return "playing"
	case WidgetPaused:
		return "paused"
	case WidgetBuffering:
		return "buffering"
	case WidgetCued:
		return "cued"
	default:
		return "unknown"
	}
}

// ParseWidgetState accepts either a state name or its numeric code.
func ParseWidgetState(s string) (WidgetState, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		ws := WidgetState(n)
		if ws.String() == "unknown" {
			return 0, fmt.Errorf("unknown widget state code %d", n)
		}
		return ws, nil
	}
	for _, ws := range []WidgetState{WidgetUnstarted, WidgetEnded, WidgetPlaying, WidgetPaused, WidgetBuffering, WidgetCued} {
		if ws.String() == s {
			return ws, nil
		}
	}
	return 0, fmt.Errorf("unknown widget state %q", s)
}

// State is a point-in-time copy of the controller's playback state.
type State struct {
	Status            Status      `json:"status"`
	CurrentTrackIndex int         `json:"currentTrackIndex"`
	TrackID           playlist.ID `json:"trackId,omitempty"`

	IsPlaying   bool `json:"isPlaying"`
	IsBuffering bool `json:"isBuffering"`

	Volume  int  `json:"volume"`
	IsMuted bool `json:"isMuted"`

	ElapsedSeconds float64 `json:"elapsedSeconds"`
	TotalSeconds   float64 `json:"totalSeconds"`
	Progress       float64 `json:"progress"`

	AutoplayBlocked      bool `json:"autoplayBlocked"`
	UserHasInteracted    bool `json:"userHasInteracted"`
	AutoplayAttemptCount int  `json:"autoplayAttemptCount"`
	// NeedsManualStart asks the page for a tap-to-play affordance.
	NeedsManualStart bool `json:"needsManualStart"`

	Shuffle bool `json:"shuffle"`
	Repeat  bool `json:"repeat"`
}

// progressOf returns elapsed/total in [0,1], or 0 when the duration is
// unknown.
func progressOf(elapsed, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return min(elapsed/total, 1)
}
