// Package slideshow manages the photo carousel: timed auto-advance,
// hover and drag suspension, and swipe navigation.
package slideshow

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/serenata/internal/clock"
)

const (
	// DefaultInterval is the auto-advance period when none is configured.
	DefaultInterval = 5 * time.Second

	// SwipeThreshold is the horizontal distance a drag must exceed to
	// change photos.
	SwipeThreshold = 50.0

	// DragCooldown delays auto-advance after a drag so it does not
	// immediately compete with the gesture.
	DragCooldown = time.Second
)

// ErrIndexOutOfRange is returned by GoTo for an index outside the photo set.
var ErrIndexOutOfRange = errors.New("photo index out of range")

// State is a snapshot of the carousel.
type State struct {
	CurrentPhotoIndex int  `json:"currentPhotoIndex"`
	IsAutoAdvancing   bool `json:"isAutoAdvancing"`
	DragInProgress    bool `json:"dragInProgress"`
	// Navigable is false for an empty photo set; the page hides arrows and
	// indicators.
	Navigable bool `json:"navigable"`
}

// Controller advances a photo index on a timer. Hover and drag suspend the
// timer; any index change restarts the current interval.
type Controller struct {
	clock    clock.Clock
	interval time.Duration
	length   int
	onChange func(State)

	mu       sync.Mutex
	effects  []func()
	index    int
	started  bool
	closed   bool
	hovering bool
	dragging bool
	cooling  bool
	dragX    float64

	timer    clock.Timer
	timerSeq uint64
	cooldown clock.Timer
}

// NewController creates a carousel over length photos. A non-positive
// interval selects DefaultInterval.
func NewController(length int, interval time.Duration, clk clock.Clock, onChange func(State)) *Controller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if clk == nil {
		clk = clock.New()
	}
	if length < 0 {
		length = 0
	}
	return &Controller{
		clock:    clk,
		interval: interval,
		length:   length,
		onChange: onChange,
	}
}

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

// Interval returns the auto-advance period.
func (c *Controller) Interval() time.Duration {
	return c.interval
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() State {
	return State{
		CurrentPhotoIndex: c.index,
		IsAutoAdvancing:   c.autoAdvancingLocked(),
		DragInProgress:    c.dragging,
		Navigable:         c.length > 0,
	}
}

func (c *Controller) autoAdvancingLocked() bool {
	return c.started && !c.closed && c.length > 0 && !c.hovering && !c.dragging && !c.cooling
}

// Start resets to the first photo and arms the timer. An empty photo set
// stays static.
func (c *Controller) Start() {
	c.apply(func() {
		if c.closed {
			return
		}
		c.started = true
		c.index = 0
		c.armLocked()
		c.notifyLocked()
	})
}

// armLocked (re)starts the interval from now if auto-advance is allowed.
func (c *Controller) armLocked() {
	c.disarmLocked()
	if !c.autoAdvancingLocked() {
		return
	}
	seq := c.timerSeq
	c.timer = c.clock.AfterFunc(c.interval, func() { c.tick(seq) })
}

func (c *Controller) disarmLocked() {
	c.timerSeq++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) tick(seq uint64) {
	c.apply(func() {
		if seq != c.timerSeq || !c.autoAdvancingLocked() {
			return
		}
		c.timer = nil
		c.index = (c.index + 1) % c.length
		log.Debug().Int("photo", c.index).Msg("Slideshow advanced")
		c.armLocked()
		c.notifyLocked()
	})
}

// Hover pauses auto-advance while the pointer is over the carousel
// controls and resumes it on leave.
func (c *Controller) Hover(inside bool) {
	c.apply(func() {
		if c.hovering == inside {
			return
		}
		c.hovering = inside
		c.armLocked()
		c.notifyLocked()
	})
}

// DragStart suspends auto-advance for a touch drag starting at x.
func (c *Controller) DragStart(x float64) {
	c.apply(func() {
		if c.length == 0 || c.closed {
			return
		}
		c.dragging = true
		c.dragX = x
		c.stopCooldownLocked()
		c.armLocked()
		c.notifyLocked()
	})
}

// DragEnd finishes a drag at x. A leftward swipe past the threshold moves
// to the next photo, a rightward one to the previous; shorter drags change
// nothing. Auto-advance resumes after DragCooldown.
func (c *Controller) DragEnd(x float64) {
	c.apply(func() {
		if !c.dragging {
			return
		}
		c.dragging = false

		dx := x - c.dragX
		switch {
		case dx < -SwipeThreshold:
			c.index = (c.index + 1) % c.length
		case dx > SwipeThreshold:
			c.index = (c.index - 1 + c.length) % c.length
		}

		c.stopCooldownLocked()
		c.cooling = true
		c.cooldown = c.clock.AfterFunc(DragCooldown, c.endCooldown)
		c.armLocked()
		c.notifyLocked()
	})
}

func (c *Controller) endCooldown() {
	c.apply(func() {
		if !c.cooling {
			return
		}
		c.cooling = false
		c.cooldown = nil
		c.armLocked()
		c.notifyLocked()
	})
}

func (c *Controller) stopCooldownLocked() {
	c.cooling = false
	if c.cooldown != nil {
		c.cooldown.Stop()
		c.cooldown = nil
	}
}

// Next shows the following photo.
func (c *Controller) Next() {
	c.apply(func() {
		if c.length == 0 {
			return
		}
		c.index = (c.index + 1) % c.length
		c.armLocked()
		c.notifyLocked()
	})
}

// Previous shows the preceding photo.
func (c *Controller) Previous() {
	c.apply(func() {
		if c.length == 0 {
			return
		}
		c.index = (c.index - 1 + c.length) % c.length
		c.armLocked()
		c.notifyLocked()
	})
}

// GoTo shows the photo at index, as selected from an indicator.
func (c *Controller) GoTo(index int) error {
	var err error
	c.apply(func() {
		if index < 0 || index >= c.length {
			err = ErrIndexOutOfRange
			return
		}
		c.index = index
		c.armLocked()
		c.notifyLocked()
	})
	return err
}

// Close stops all timers.
func (c *Controller) Close() {
	c.apply(func() {
		c.closed = true
		c.disarmLocked()
		c.stopCooldownLocked()
	})
}
