package playback

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/serenata/internal/clock"
	"github.com/edumarques81/serenata/internal/domain/playlist"
)

const (
	// DefaultVolume is the starting volume and the unmute fallback.
	DefaultVolume = 100

	// ProgressInterval is the elapsed-time sampling period while playing.
	ProgressInterval = time.Second
)

// Options configures a Controller.
type Options struct {
	// NewWidget creates the media widget for each loaded track. Required.
	NewWidget WidgetFactory

	// OnTrackChange asks the host to move to index. autoplay is true when
	// the new track should start on its own once ready.
	OnTrackChange func(index int, autoplay bool)

	// OnChange receives a snapshot after every state transition.
	OnChange func(State)

	Clock clock.Clock
	// Intn returns a uniform int in [0,n). Defaults to math/rand/v2.
	Intn func(n int) int
}

// Controller is the playback state machine for one page. The host owns the
// current track index; the controller only reads the value handed to
// LoadTrack and requests changes through OnTrackChange.
type Controller struct {
	length        int
	newWidget     WidgetFactory
	onTrackChange func(int, bool)
	onChange      func(State)
	clock         clock.Clock
	intn          func(int) int

	mu      sync.Mutex
	effects []func()

	gen     uint64
	widget  Widget
	index   int
	trackID playlist.ID
	status  Status

	isPlaying   bool
	isBuffering bool
	elapsed     float64
	total       float64

	volume        int
	lastAudible   int
	muted         bool
	shuffle       bool
	repeat        bool
	interacted    bool
	autoplayOnRdy bool

	negotiating bool
	attempts    int
	blocked     bool
	checkTimer  clock.Timer
	retryTimer  clock.Timer

	progressTimer clock.Timer
	progressSeq   uint64
	closed        bool
}

// NewController creates a controller for a playlist of the given length.
func NewController(length int, opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Intn == nil {
		opts.Intn = rand.IntN
	}
	return &Controller{
		length:        length,
		newWidget:     opts.NewWidget,
		onTrackChange: opts.OnTrackChange,
		onChange:      opts.OnChange,
		clock:         opts.Clock,
		intn:          opts.Intn,
		status:        StatusIdle,
		volume:        DefaultVolume,
	}
}

// apply runs fn under the lock, then runs any host callbacks fn queued.
func (c *Controller) apply(fn func()) {
	c.mu.Lock()
	fn()
	effects := c.effects
	c.effects = nil
	c.mu.Unlock()

	for _, f := range effects {
		f()
	}
}

func (c *Controller) notifyLocked() {
	if c.onChange == nil {
		return
	}
	st := c.snapshotLocked()
	cb := c.onChange
	c.effects = append(c.effects, func() { cb(st) })
}

func (c *Controller) requestTrackLocked(index int, autoplay bool) {
	if c.onTrackChange == nil {
		return
	}
	cb := c.onTrackChange
	c.effects = append(c.effects, func() { cb(index, autoplay) })
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() State {
	return State{
		Status:               c.status,
		CurrentTrackIndex:    c.index,
		TrackID:              c.trackID,
		IsPlaying:            c.isPlaying,
		IsBuffering:          c.isBuffering,
		Volume:               c.volume,
		IsMuted:              c.muted,
		ElapsedSeconds:       c.elapsed,
		TotalSeconds:         c.total,
		Progress:             progressOf(c.elapsed, c.total),
		AutoplayBlocked:      c.blocked,
		UserHasInteracted:    c.interacted,
		AutoplayAttemptCount: c.attempts,
		NeedsManualStart:     c.blocked && !c.isPlaying,
		Shuffle:              c.shuffle,
		Repeat:               c.repeat,
	}
}

// LoadTrack binds a fresh widget to track, tearing down the previous one.
// Playback does not start until the widget reports ready; autoplay marks
// this load as a track change that may start on its own.
func (c *Controller) LoadTrack(index int, track playlist.Track, autoplay bool) {
	c.apply(func() {
		if c.closed {
			return
		}

		c.teardownLocked()
		c.gen++
		c.index = index
		c.trackID = track.ID
		c.status = StatusLoading
		c.isPlaying = false
		c.isBuffering = false
		c.elapsed = 0
		c.total = 0
		c.blocked = false
		c.attempts = 0
		c.autoplayOnRdy = autoplay

		log.Debug().Int("index", index).Str("track", track.ID.String()).Bool("autoplay", autoplay).Msg("Loading track")

		if c.newWidget == nil {
			log.Warn().Msg("No widget factory configured, track stays loading")
			c.notifyLocked()
			return
		}
		w, err := c.newWidget(track.ExternalMediaID, boundSink{c: c, gen: c.gen})
		if err != nil {
			// No fallback track: the page shows an indefinite loading state.
			log.Warn().Err(err).Str("media_id", track.ExternalMediaID).Msg("Widget failed to load track")
			c.notifyLocked()
			return
		}
		c.widget = w
		c.notifyLocked()
	})
}

// teardownLocked cancels every timer and destroys the current widget.
func (c *Controller) teardownLocked() {
	c.cancelNegotiationLocked()
	c.stopProgressLocked()
	if c.widget != nil {
		if err := c.widget.Destroy(); err != nil {
			log.Debug().Err(err).Msg("Widget destroy failed")
		}
		c.widget = nil
	}
}

// OnWidgetReady handles a ready event for the current widget.
func (c *Controller) OnWidgetReady(durationSeconds float64) {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()
	c.widgetReady(gen, durationSeconds)
}

func (c *Controller) widgetReady(gen uint64, durationSeconds float64) {
	c.apply(func() {
		if gen != c.gen || c.closed || c.status != StatusLoading {
			return
		}
		if durationSeconds > 0 {
			c.total = durationSeconds
		}
		c.status = StatusReady
		c.callWidgetLocked("set volume", func(w Widget) error { return w.SetVolume(c.volume) })

		autoplay := c.autoplayOnRdy
		c.autoplayOnRdy = false
		log.Debug().Float64("duration", c.total).Bool("autoplay", autoplay).Bool("interacted", c.interacted).Msg("Widget ready")

		if autoplay && c.interacted {
			c.attemptAutoplayLocked()
		}
		c.notifyLocked()
	})
}

// OnWidgetStateChange handles a state report for the current widget.
func (c *Controller) OnWidgetStateChange(state WidgetState) {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()
	c.widgetStateChange(gen, state)
}

func (c *Controller) widgetStateChange(gen uint64, state WidgetState) {
	c.apply(func() {
		if gen != c.gen || c.closed {
			return
		}

		switch state {
		case WidgetPlaying:
			c.isPlaying = true
			c.isBuffering = false
			c.blocked = false
			c.status = StatusPlaying
			if c.negotiating {
				c.autoplaySucceededLocked()
			}
			c.startProgressLocked()
			c.notifyLocked()

		case WidgetPaused:
			c.isPlaying = false
			c.isBuffering = false
			c.status = StatusPaused
			c.stopProgressLocked()
			c.notifyLocked()

		case WidgetEnded:
			c.isPlaying = false
			c.isBuffering = false
			c.status = StatusEnded
			c.stopProgressLocked()
			c.cancelNegotiationLocked()
			if c.repeat {
				c.elapsed = 0
				c.callWidgetLocked("seek", func(w Widget) error { return w.SeekTo(0) })
				c.callWidgetLocked("play", func(w Widget) error { return w.Play() })
			} else {
				c.nextLocked()
			}
			c.notifyLocked()

		case WidgetBuffering:
			// Ignore buffering before the first play so no spinner shows on load.
			if !c.isPlaying && !c.negotiating {
				return
			}
			c.isBuffering = true
			c.status = StatusBuffering
			c.stopProgressLocked()
			c.notifyLocked()

		case WidgetCued:
			c.isBuffering = false
			c.notifyLocked()
		}
	})
}

// MarkInteraction trips the user-interaction latch. Once set it is never
// cleared, and it unlocks autoplay for the rest of the session.
func (c *Controller) MarkInteraction() {
	c.apply(func() {
		if c.interacted {
			return
		}
		c.interacted = true
		log.Debug().Msg("User interaction latched")
		c.notifyLocked()
	})
}

// Interacted reports whether the interaction latch has tripped.
func (c *Controller) Interacted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interacted
}

// TogglePlay pauses when playing, otherwise requests playback.
func (c *Controller) TogglePlay() {
	c.apply(func() {
		if c.closed {
			return
		}
		c.interacted = true
		// No command reaches a widget that has not signalled ready.
		if c.widget == nil || c.status == StatusIdle || c.status == StatusLoading {
			c.notifyLocked()
			return
		}

		if c.isPlaying {
			c.callWidgetLocked("pause", func(w Widget) error { return w.Pause() })
		} else {
			c.isBuffering = true
			c.callWidgetLocked("play", func(w Widget) error { return w.Play() })
		}
		c.notifyLocked()
	})
}

// Next asks the host for the following track: a uniform random pick when
// shuffling (the current track may be picked again), else the next index
// with wrap-around.
func (c *Controller) Next() {
	c.apply(c.nextLocked)
}

func (c *Controller) nextLocked() {
	if c.length <= 0 || c.closed {
		return
	}
	var next int
	if c.shuffle {
		next = c.intn(c.length)
	} else {
		next = (c.index + 1) % c.length
	}
	c.requestTrackLocked(next, c.interacted)
}

// Previous asks the host for the preceding track, wrapping around.
// Shuffle does not apply.
func (c *Controller) Previous() {
	c.apply(func() {
		if c.length <= 0 || c.closed {
			return
		}
		prev := (c.index - 1 + c.length) % c.length
		c.requestTrackLocked(prev, c.interacted)
	})
}

// Seek jumps to a fractional position in [0,1]. It does nothing until the
// duration is known.
func (c *Controller) Seek(fraction float64) {
	c.apply(func() {
		if c.total <= 0 || c.widget == nil {
			return
		}
		if fraction < 0 {
			fraction = 0
		} else if fraction > 1 {
			fraction = 1
		}
		secs := fraction * c.total
		c.callWidgetLocked("seek", func(w Widget) error { return w.SeekTo(secs) })
		c.elapsed = secs
		c.notifyLocked()
	})
}

// SetVolume sets the volume (0-100). Muted is derived: volume 0 is muted.
func (c *Controller) SetVolume(volume int) {
	c.apply(func() {
		c.setVolumeLocked(volume)
		c.notifyLocked()
	})
}

func (c *Controller) setVolumeLocked(volume int) {
	if volume < 0 {
		volume = 0
	} else if volume > 100 {
		volume = 100
	}
	c.volume = volume
	c.muted = volume == 0
	if volume > 0 {
		c.lastAudible = volume
	}
	c.callWidgetLocked("set volume", func(w Widget) error { return w.SetVolume(volume) })
}

// ToggleMute switches between 0 and the last non-zero volume.
func (c *Controller) ToggleMute() {
	c.apply(func() {
		if c.muted {
			restore := c.lastAudible
			if restore == 0 {
				restore = DefaultVolume
			}
			c.setVolumeLocked(restore)
		} else {
			c.setVolumeLocked(0)
		}
		c.notifyLocked()
	})
}

// SetShuffle enables or disables random next-track selection.
func (c *Controller) SetShuffle(on bool) {
	c.apply(func() {
		c.shuffle = on
		c.notifyLocked()
	})
}

// SetRepeat makes an ended track replay instead of advancing.
func (c *Controller) SetRepeat(on bool) {
	c.apply(func() {
		c.repeat = on
		c.notifyLocked()
	})
}

// Close cancels all timers and destroys the widget. Further calls are
// ignored.
func (c *Controller) Close() {
	c.apply(func() {
		if c.closed {
			return
		}
		c.teardownLocked()
		c.gen++
		c.closed = true
		c.isPlaying = false
		c.status = StatusIdle
	})
}

func (c *Controller) callWidgetLocked(op string, fn func(Widget) error) {
	if c.widget == nil {
		return
	}
	if err := fn(c.widget); err != nil {
		log.Warn().Err(err).Str("op", op).Msg("Widget command failed")
	}
}

func (c *Controller) startProgressLocked() {
	c.stopProgressLocked()
	c.scheduleProgressLocked(c.progressSeq)
}

func (c *Controller) scheduleProgressLocked(seq uint64) {
	c.progressTimer = c.clock.AfterFunc(ProgressInterval, func() { c.sampleProgress(seq) })
}

// stopProgressLocked also invalidates a sample whose timer already fired
// but has not yet taken the lock.
func (c *Controller) stopProgressLocked() {
	c.progressSeq++
	if c.progressTimer != nil {
		c.progressTimer.Stop()
		c.progressTimer = nil
	}
}

func (c *Controller) sampleProgress(seq uint64) {
	c.apply(func() {
		if seq != c.progressSeq || c.closed || c.status != StatusPlaying || c.widget == nil {
			return
		}
		c.elapsed = c.widget.CurrentTime()
		c.scheduleProgressLocked(seq)
		c.notifyLocked()
	})
}
