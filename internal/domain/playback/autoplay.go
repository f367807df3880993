package playback

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Autoplay negotiation. The runtime hosting the widget may silently refuse
// to start playback until a user gesture, so a play command is never
// assumed to succeed: each attempt is confirmed against the widget's real
// state and refused attempts are retried with a linear backoff.
const (
	// MaxAutoplayAttempts bounds the attempts per track load.
	MaxAutoplayAttempts = 3

	// AutoplayConfirmWindow is how long after a play command the widget
	// state is checked.
	AutoplayConfirmWindow = time.Second

	// AutoplayCheckTimeout bounds an attempt from play command to verdict.
	AutoplayCheckTimeout = 2 * time.Second

	// AutoplayRetryStep is multiplied by the attempt count to get the
	// delay before the next attempt.
	AutoplayRetryStep = time.Second
)

// attemptAutoplayLocked issues one play command and arms its confirmation.
// The latch guard lives here so no caller can bypass it.
func (c *Controller) attemptAutoplayLocked() {
	if !c.interacted || c.widget == nil || c.closed {
		return
	}

	c.negotiating = true
	c.attempts++
	attempt := c.attempts
	gen := c.gen

	log.Debug().Int("attempt", attempt).Msg("Autoplay attempt")
	c.callWidgetLocked("play", func(w Widget) error { return w.Play() })

	c.checkTimer = c.clock.AfterFunc(AutoplayConfirmWindow, func() { c.confirmAutoplay(gen, attempt) })
}

// negotiationCurrentLocked reports whether an attempt's timer still belongs
// to the live negotiation.
func (c *Controller) negotiationCurrentLocked(gen uint64, attempt int) bool {
	return gen == c.gen && !c.closed && c.negotiating && c.attempts == attempt
}

func (c *Controller) confirmAutoplay(gen uint64, attempt int) {
	var w Widget
	var resolved bool

	c.apply(func() {
		if !c.negotiationCurrentLocked(gen, attempt) {
			resolved = true
			return
		}
		c.checkTimer = nil
		if c.isPlaying {
			c.autoplaySucceededLocked()
			resolved = true
			return
		}
		w = c.widget
	})
	if resolved || w == nil {
		return
	}

	// The query runs unlocked: the widget may need to deliver events while
	// it answers.
	ctx, cancel := context.WithTimeout(context.Background(), AutoplayCheckTimeout-AutoplayConfirmWindow)
	state, err := w.State(ctx)
	cancel()

	c.apply(func() {
		if !c.negotiationCurrentLocked(gen, attempt) {
			return
		}
		switch {
		case c.isPlaying || (err == nil && state == WidgetPlaying):
			c.isPlaying = true
			c.status = StatusPlaying
			c.startProgressLocked()
			c.autoplaySucceededLocked()
		default:
			if err != nil {
				log.Debug().Err(err).Int("attempt", attempt).Msg("Autoplay check failed")
			}
			c.autoplayRefusedLocked(gen)
		}
		c.notifyLocked()
	})
}

func (c *Controller) autoplaySucceededLocked() {
	log.Info().Int("attempt", c.attempts).Msg("Autoplay confirmed")
	c.cancelNegotiationLocked()
	c.blocked = false
	c.isBuffering = false
}

func (c *Controller) autoplayRefusedLocked(gen uint64) {
	if c.attempts < MaxAutoplayAttempts {
		delay := time.Duration(c.attempts) * AutoplayRetryStep
		attempt := c.attempts
		log.Debug().Int("attempt", attempt).Dur("retry_in", delay).Msg("Autoplay refused, retrying")
		c.settleRefusedLocked()
		c.retryTimer = c.clock.AfterFunc(delay, func() { c.retryAutoplay(gen, attempt) })
		return
	}

	log.Info().Int("attempts", c.attempts).Msg("Autoplay blocked, waiting for manual start")
	c.cancelNegotiationLocked()
	c.settleRefusedLocked()
	c.blocked = true
}

// settleRefusedLocked drops the buffering hint of a refused attempt. Nothing
// is playing, so the status falls back to Paused if the track had started
// and Ready otherwise.
func (c *Controller) settleRefusedLocked() {
	c.isBuffering = false
	if c.status != StatusBuffering {
		return
	}
	if c.elapsed > 0 {
		c.status = StatusPaused
	} else {
		c.status = StatusReady
	}
}

func (c *Controller) retryAutoplay(gen uint64, attempt int) {
	c.apply(func() {
		if !c.negotiationCurrentLocked(gen, attempt) {
			return
		}
		c.retryTimer = nil
		c.attemptAutoplayLocked()
		c.notifyLocked()
	})
}

// cancelNegotiationLocked abandons any in-flight negotiation. The attempt
// count is kept so the final state still reports how many were made.
func (c *Controller) cancelNegotiationLocked() {
	c.negotiating = false
	if c.checkTimer != nil {
		c.checkTimer.Stop()
		c.checkTimer = nil
	}
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
}
