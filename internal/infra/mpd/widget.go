package mpd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/fhs/gompd/v2/mpd"
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/serenata/internal/domain/playback"
)

var errWidgetDestroyed = errors.New("mpd widget destroyed")

// Player is the part of Client the jukebox output drives.
type Player interface {
	Status() (mpd.Attrs, error)
	PlaylistInfo() ([]mpd.Attrs, error)
	Play(pos int) error
	Pause(pause bool) error
	Stop() error
	Seek(pos int) error
	SetVolume(vol int) error
	Clear() error
	Add(uri string) error
}

// Output plays tracks on an MPD server instead of in the browser. A track's
// external media id is taken as an MPD URI. Only one widget is live at a
// time; it owns the MPD queue.
type Output struct {
	player Player

	mu      sync.Mutex
	current *Widget
}

// NewOutput creates a jukebox output on player.
func NewOutput(player Player) *Output {
	return &Output{player: player}
}

// NewWidget implements playback.WidgetFactory: it replaces the MPD queue
// with uri and reports ready once the duration is known.
func (o *Output) NewWidget(uri string, sink playback.EventSink) (playback.Widget, error) {
	if uri == "" {
		return nil, fmt.Errorf("empty MPD uri")
	}
	if err := o.player.Clear(); err != nil {
		return nil, fmt.Errorf("failed to clear MPD queue: %w", err)
	}
	if err := o.player.Add(uri); err != nil {
		return nil, fmt.Errorf("failed to queue %s: %w", uri, err)
	}

	w := &Widget{
		output: o,
		uri:    uri,
		sink:   sink,
		last:   playback.WidgetUnstarted,
	}

	o.mu.Lock()
	o.current = w
	o.mu.Unlock()

	// The sink must not be called from inside the factory.
	go w.announceReady()
	return w, nil
}

// Run turns MPD "player" subsystem changes into state events for the live
// widget until events is closed or ctx is cancelled.
func (o *Output) Run(ctx context.Context, events <-chan string) {
	log.Info().Msg("MPD output watcher started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("MPD output watcher stopped")
			return
		case subsystem, ok := <-events:
			if !ok {
				log.Warn().Msg("MPD watcher channel closed")
				return
			}
			if subsystem == "player" {
				o.Sync()
			}
		}
	}
}

// Sync reads MPD status and forwards any state change to the live widget.
func (o *Output) Sync() {
	o.mu.Lock()
	w := o.current
	o.mu.Unlock()
	if w == nil {
		return
	}

	status, err := o.player.Status()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read MPD status")
		return
	}
	w.observe(status)
}

// release detaches w and reports whether it still owned the queue.
func (o *Output) release(w *Widget) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current != w {
		return false
	}
	o.current = nil
	return true
}

// Widget is one track loaded into MPD.
type Widget struct {
	output *Output
	uri    string
	sink   playback.EventSink

	mu        sync.Mutex
	last      playback.WidgetState
	elapsed   float64
	destroyed bool
}

func (w *Widget) player() Player { return w.output.player }

func (w *Widget) alive() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed {
		return errWidgetDestroyed
	}
	return nil
}

func (w *Widget) announceReady() {
	var duration float64
	songs, err := w.player().PlaylistInfo()
	if err != nil {
		log.Warn().Err(err).Str("uri", w.uri).Msg("Failed to read MPD queue")
	} else if len(songs) > 0 {
		duration = songDuration(songs[0])
	}
	if w.alive() != nil {
		return
	}
	w.sink.OnWidgetReady(duration)
}

// Play starts the queued track, or resumes it when paused.
func (w *Widget) Play() error {
	if err := w.alive(); err != nil {
		return err
	}
	w.mu.Lock()
	paused := w.last == playback.WidgetPaused
	w.mu.Unlock()

	if paused {
		return w.player().Pause(false)
	}
	return w.player().Play(0)
}

func (w *Widget) Pause() error {
	if err := w.alive(); err != nil {
		return err
	}
	return w.player().Pause(true)
}

func (w *Widget) SeekTo(seconds float64) error {
	if err := w.alive(); err != nil {
		return err
	}
	return w.player().Seek(int(seconds))
}

func (w *Widget) SetVolume(volume int) error {
	if err := w.alive(); err != nil {
		return err
	}
	return w.player().SetVolume(volume)
}

// CurrentTime returns the elapsed time from the last status read.
func (w *Widget) CurrentTime() float64 {
	if status, err := w.player().Status(); err == nil {
		if e, ok := parseSeconds(status["elapsed"]); ok {
			w.mu.Lock()
			w.elapsed = e
			w.mu.Unlock()
		}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.elapsed
}

// State queries MPD directly.
func (w *Widget) State(ctx context.Context) (playback.WidgetState, error) {
	if err := w.alive(); err != nil {
		return playback.WidgetUnstarted, err
	}

	type result struct {
		attrs mpd.Attrs
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		attrs, err := w.player().Status()
		ch <- result{attrs, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return playback.WidgetUnstarted, r.err
		}
		return widgetState(r.attrs["state"], false), nil
	case <-ctx.Done():
		return playback.WidgetUnstarted, ctx.Err()
	}
}

// Destroy detaches the widget and stops MPD. A widget replaced by a newer
// one leaves MPD alone.
func (w *Widget) Destroy() error {
	w.mu.Lock()
	if w.destroyed {
		w.mu.Unlock()
		return nil
	}
	w.destroyed = true
	w.mu.Unlock()

	if !w.output.release(w) {
		return nil
	}
	return w.player().Stop()
}

// observe maps an MPD status to a widget state and reports changes. A
// stop after playing means the track ran out.
func (w *Widget) observe(status mpd.Attrs) {
	w.mu.Lock()
	if w.destroyed {
		w.mu.Unlock()
		return
	}
	wasPlaying := w.last == playback.WidgetPlaying
	st := widgetState(status["state"], wasPlaying)
	if e, ok := parseSeconds(status["elapsed"]); ok {
		w.elapsed = e
	}
	if st == w.last {
		w.mu.Unlock()
		return
	}
	w.last = st
	w.mu.Unlock()

	log.Debug().Str("uri", w.uri).Str("state", st.String()).Msg("MPD state changed")
	w.sink.OnWidgetStateChange(st)
}

func widgetState(mpdState string, wasPlaying bool) playback.WidgetState {
	switch mpdState {
	case "play":
		return playback.WidgetPlaying
	case "pause":
		return playback.WidgetPaused
	case "stop":
		if wasPlaying {
			return playback.WidgetEnded
		}
		return playback.WidgetCued
	default:
		return playback.WidgetUnstarted
	}
}

// songDuration reads "duration" (MPD >= 0.20) or falls back to "Time".
func songDuration(song mpd.Attrs) float64 {
	if d, ok := parseSeconds(song["duration"]); ok {
		return d
	}
	if d, ok := parseSeconds(song["Time"]); ok {
		return d
	}
	return 0
}

func parseSeconds(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
