package socketio

import (
	"sync"
	"time"
)

// Push kinds accepted by PushDebouncer.Trigger.
const (
	pushPlayback = "playback"
	pushSlide    = "slide"
)

// PushDebouncer collapses bursts of controller changes into one push per
// kind. A track change, for example, emits loading, ready and playing in
// quick succession; the page only needs the last one.
type PushDebouncer struct {
	window           time.Duration
	playbackCallback func()
	slideCallback    func()

	mu              sync.Mutex
	pendingPlayback bool
	pendingSlide    bool
	timer           *time.Timer
	stopped         bool
}

// NewPushDebouncer creates a debouncer with the given window duration.
func NewPushDebouncer(window time.Duration, playbackCallback, slideCallback func()) *PushDebouncer {
	return &PushDebouncer{
		window:           window,
		playbackCallback: playbackCallback,
		slideCallback:    slideCallback,
	}
}

// Trigger records a change of the given kind. Callbacks are deferred until
// the window elapses without further triggers.
func (d *PushDebouncer) Trigger(kind string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	switch kind {
	case pushPlayback:
		d.pendingPlayback = true
	case pushSlide:
		d.pendingSlide = true
	default:
		return
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

// flush fires callbacks for any pending flags and resets them.
func (d *PushDebouncer) flush() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	doPlayback := d.pendingPlayback
	doSlide := d.pendingSlide
	d.pendingPlayback = false
	d.pendingSlide = false
	d.mu.Unlock()

	if doPlayback && d.playbackCallback != nil {
		d.playbackCallback()
	}
	if doSlide && d.slideCallback != nil {
		d.slideCallback()
	}
}

// Stop prevents any further callbacks from firing.
func (d *PushDebouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pendingPlayback = false
	d.pendingSlide = false
}
