package socketio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/edumarques81/serenata/internal/domain/playback"
)

var errWidgetDestroyed = errors.New("widget destroyed")

// pageWidget is a playback.Widget hosted by the browser. Commands become
// widget:* events on the page's socket; the page reports back with
// widget:ready, widget:state, widget:progress and widget:stateReport.
type pageWidget struct {
	mediaID string
	emit    func(ev string, args ...any)
	sink    playback.EventSink
	reports chan playback.WidgetState

	mu        sync.Mutex
	current   float64
	destroyed bool
}

func newPageWidget(mediaID string, emit func(string, ...any), sink playback.EventSink) *pageWidget {
	w := &pageWidget{
		mediaID: mediaID,
		emit:    emit,
		sink:    sink,
		reports: make(chan playback.WidgetState, 1),
	}
	w.emit("widget:load", map[string]any{"id": mediaID})
	return w
}

func (w *pageWidget) command(ev string, payload map[string]any) error {
	w.mu.Lock()
	destroyed := w.destroyed
	w.mu.Unlock()
	if destroyed {
		return errWidgetDestroyed
	}
	if payload == nil {
		payload = map[string]any{}
	}
	payload["id"] = w.mediaID
	w.emit(ev, payload)
	return nil
}

func (w *pageWidget) Play() error  { return w.command("widget:play", nil) }
func (w *pageWidget) Pause() error { return w.command("widget:pause", nil) }

func (w *pageWidget) SeekTo(seconds float64) error {
	return w.command("widget:seek", map[string]any{"seconds": seconds})
}

func (w *pageWidget) SetVolume(volume int) error {
	return w.command("widget:volume", map[string]any{"value": volume})
}

func (w *pageWidget) CurrentTime() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// State asks the page for the player's real state and waits for the
// matching widget:stateReport.
func (w *pageWidget) State(ctx context.Context) (playback.WidgetState, error) {
	select {
	case <-w.reports:
	default:
	}
	if err := w.command("widget:getState", nil); err != nil {
		return playback.WidgetUnstarted, err
	}
	select {
	case st := <-w.reports:
		return st, nil
	case <-ctx.Done():
		return playback.WidgetUnstarted, fmt.Errorf("no state report for %s: %w", w.mediaID, ctx.Err())
	}
}

func (w *pageWidget) Destroy() error {
	w.mu.Lock()
	if w.destroyed {
		w.mu.Unlock()
		return nil
	}
	w.destroyed = true
	w.mu.Unlock()

	w.emit("widget:destroy", map[string]any{"id": w.mediaID})
	return nil
}

func (w *pageWidget) ready(durationSeconds float64) {
	w.sink.OnWidgetReady(durationSeconds)
}

func (w *pageWidget) stateChanged(st playback.WidgetState) {
	w.sink.OnWidgetStateChange(st)
}

func (w *pageWidget) progress(seconds float64) {
	w.mu.Lock()
	w.current = seconds
	w.mu.Unlock()
}

// report delivers an answer to a pending State query. Unsolicited reports
// replace any unread one.
func (w *pageWidget) report(st playback.WidgetState) {
	for {
		select {
		case w.reports <- st:
			return
		default:
		}
		select {
		case <-w.reports:
		default:
		}
	}
}
