package playback

import "context"

// Widget is the external media player bound to a single track. It is
// created per track and destroyed on track change.
//
// Implementations report ready and state changes through the EventSink
// they were created with. They must not call the sink from inside a
// command method; events are delivered from the widget's own goroutine.
type Widget interface {
	Play() error
	Pause() error
	SeekTo(seconds float64) error
	SetVolume(volume int) error
	// CurrentTime returns the playhead position in seconds.
	CurrentTime() float64
	// State queries the widget's actual playback state.
	State(ctx context.Context) (WidgetState, error)
	Destroy() error
}

// EventSink receives widget events.
type EventSink interface {
	OnWidgetReady(durationSeconds float64)
	OnWidgetStateChange(state WidgetState)
}

// WidgetFactory binds a new widget to an external media id.
type WidgetFactory func(externalID string, sink EventSink) (Widget, error)

// boundSink routes events from one widget instance to the controller and
// drops them once that widget's track is no longer current.
type boundSink struct {
	c   *Controller
	gen uint64
}

func (s boundSink) OnWidgetReady(durationSeconds float64) {
	s.c.widgetReady(s.gen, durationSeconds)
}

func (s boundSink) OnWidgetStateChange(state WidgetState) {
	s.c.widgetStateChange(s.gen, state)
}
