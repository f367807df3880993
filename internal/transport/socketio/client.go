package socketio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/serenata/internal/domain/playback"
	"github.com/edumarques81/serenata/internal/domain/playlist"
	"github.com/edumarques81/serenata/internal/domain/session"
	"github.com/edumarques81/serenata/internal/domain/slideshow"
)

const openTimeout = 5 * time.Second

var (
	errNoSession   = errors.New("no open session")
	errBadArgument = errors.New("bad argument")
)

type errorPayload struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// pageClient binds one connected page to its session.
type pageClient struct {
	id        string
	emit      func(ev string, args ...any)
	manager   *session.Manager
	newWidget playback.WidgetFactory
	debouncer *PushDebouncer

	mu           sync.Mutex
	session      *session.Session
	widget       *pageWidget
	lastPlayback []byte
	lastSlide    []byte
}

func newPageClient(id string, emit func(string, ...any), manager *session.Manager, opts Options) *pageClient {
	pc := &pageClient{
		id:        id,
		emit:      emit,
		manager:   manager,
		newWidget: opts.NewWidget,
	}
	window := opts.PushWindow
	if window <= 0 {
		window = DefaultPushWindow
	}
	pc.debouncer = NewPushDebouncer(window, pc.pushPlayback, pc.pushSlide)
	return pc
}

type pageHandler func(pc *pageClient, args []any) error

// gesture marks events that come from a click, tap or key press and so
// trip the interaction latch before they are handled.
type pageEvent struct {
	handle  pageHandler
	gesture bool
}

var pageEvents = map[string]pageEvent{
	"session:open": {handle: (*pageClient).open},
	"interact":     {handle: func(pc *pageClient, _ []any) error { return nil }, gesture: true},

	"togglePlay": {handle: withSession(func(s *session.Session, _ []any) error { s.Player.TogglePlay(); return nil }), gesture: true},
	"next":       {handle: withSession(func(s *session.Session, _ []any) error { s.Player.Next(); return nil }), gesture: true},
	"prev":       {handle: withSession(func(s *session.Session, _ []any) error { s.Player.Previous(); return nil }), gesture: true},
	"toggleMute": {handle: withSession(func(s *session.Session, _ []any) error { s.Player.ToggleMute(); return nil }), gesture: true},
	"seek": {handle: withSession(func(s *session.Session, args []any) error {
		f, err := argFloat(args, "fraction")
		if err != nil {
			return err
		}
		s.Player.Seek(f)
		return nil
	}), gesture: true},
	"volume": {handle: withSession(func(s *session.Session, args []any) error {
		v, err := argFloat(args, "value")
		if err != nil {
			return err
		}
		s.Player.SetVolume(int(v))
		return nil
	}), gesture: true},
	"setShuffle": {handle: withSession(func(s *session.Session, args []any) error {
		v, err := argBool(args, "value")
		if err != nil {
			return err
		}
		s.Player.SetShuffle(v)
		return nil
	}), gesture: true},
	"setRepeat": {handle: withSession(func(s *session.Session, args []any) error {
		v, err := argBool(args, "value")
		if err != nil {
			return err
		}
		s.Player.SetRepeat(v)
		return nil
	}), gesture: true},
	"selectTrack": {handle: withSession(func(s *session.Session, args []any) error {
		i, err := argFloat(args, "index")
		if err != nil {
			return err
		}
		return s.SelectTrack(int(i))
	}), gesture: true},
	"toggleLike": {handle: (*pageClient).toggleLike, gesture: true},

	"slide:hover": {handle: withSession(func(s *session.Session, args []any) error {
		inside, err := argBool(args, "inside")
		if err != nil {
			return err
		}
		s.Slides.Hover(inside)
		return nil
	})},
	"slide:dragStart": {handle: withSession(func(s *session.Session, args []any) error {
		x, err := argFloat(args, "x")
		if err != nil {
			return err
		}
		s.Slides.DragStart(x)
		return nil
	}), gesture: true},
	"slide:dragEnd": {handle: withSession(func(s *session.Session, args []any) error {
		x, err := argFloat(args, "x")
		if err != nil {
			return err
		}
		s.Slides.DragEnd(x)
		return nil
	})},
	"slide:goto": {handle: withSession(func(s *session.Session, args []any) error {
		i, err := argFloat(args, "index")
		if err != nil {
			return err
		}
		return s.Slides.GoTo(int(i))
	}), gesture: true},
	"slide:next": {handle: withSession(func(s *session.Session, _ []any) error { s.Slides.Next(); return nil }), gesture: true},
	"slide:prev": {handle: withSession(func(s *session.Session, _ []any) error { s.Slides.Previous(); return nil }), gesture: true},

	"widget:ready":       {handle: (*pageClient).widgetReady},
	"widget:state":       {handle: (*pageClient).widgetState},
	"widget:progress":    {handle: (*pageClient).widgetProgress},
	"widget:stateReport": {handle: (*pageClient).widgetStateReport},
}

// pageEventNames returns the registered event names in a stable order.
func pageEventNames() []string {
	names := make([]string, 0, len(pageEvents))
	for name := range pageEvents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func withSession(fn func(s *session.Session, args []any) error) pageHandler {
	return func(pc *pageClient, args []any) error {
		s := pc.currentSession()
		if s == nil {
			return errNoSession
		}
		return fn(s, args)
	}
}

// dispatch runs the handler for an incoming page event. Failures are
// reported to the page as pushError and never close the connection.
func (pc *pageClient) dispatch(event string, args []any) {
	ev, ok := pageEvents[event]
	if !ok {
		log.Debug().Str("id", pc.id).Str("event", event).Msg("Unknown page event")
		return
	}
	log.Debug().Str("id", pc.id).Str("event", event).Interface("data", args).Msg("Page event")

	if ev.gesture {
		if s := pc.currentSession(); s != nil {
			s.Player.MarkInteraction()
		}
	}

	if err := ev.handle(pc, args); err != nil {
		log.Warn().Err(err).Str("id", pc.id).Str("event", event).Msg("Page event failed")
		pc.emit("pushError", errorPayload{Error: err.Error(), Code: errorCode(err)})
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, playlist.ErrNotFound), errors.Is(err, playlist.ErrInvalidSlug):
		return "not_found"
	case errors.Is(err, errNoSession):
		return "no_session"
	case errors.Is(err, errBadArgument),
		errors.Is(err, session.ErrTrackOutOfRange),
		errors.Is(err, session.ErrUnknownTrack),
		errors.Is(err, slideshow.ErrIndexOutOfRange):
		return "bad_request"
	default:
		return "internal"
	}
}

func (pc *pageClient) currentSession() *session.Session {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.session
}

// open replaces any session held by the page with a new one for the slug.
func (pc *pageClient) open(args []any) error {
	slug, err := argString(args, "slug")
	if err != nil {
		return err
	}

	pc.closeSession()

	factory := pc.newWidget
	if factory == nil {
		factory = pc.loadPageWidget
	}

	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()

	s, err := pc.manager.Open(ctx, slug, session.Options{
		NewWidget: factory,
		Listener:  pc,
	})
	if err != nil {
		return err
	}

	pc.mu.Lock()
	pc.session = s
	pc.lastPlayback = nil
	pc.lastSlide = nil
	pc.mu.Unlock()

	log.Info().Str("id", pc.id).Str("slug", slug).Str("session", s.ID).Msg("Session opened")
	pc.emit("pushSession", s.View())
	return nil
}

func (pc *pageClient) toggleLike(args []any) error {
	s := pc.currentSession()
	if s == nil {
		return errNoSession
	}
	id, err := argID(args, "id")
	if err != nil {
		return err
	}
	if _, err := s.ToggleLike(id); err != nil {
		return err
	}
	pc.emit("pushSession", s.View())
	return nil
}

// loadPageWidget is the widget factory for browser-hosted playback.
func (pc *pageClient) loadPageWidget(externalID string, sink playback.EventSink) (playback.Widget, error) {
	if externalID == "" {
		return nil, fmt.Errorf("%w: empty media id", errBadArgument)
	}
	w := newPageWidget(externalID, pc.emit, sink)

	pc.mu.Lock()
	pc.widget = w
	pc.mu.Unlock()
	return w, nil
}

// currentWidget returns the page widget an event refers to. Events naming
// another media id belong to a widget that was already replaced.
func (pc *pageClient) currentWidget(args []any) *pageWidget {
	pc.mu.Lock()
	w := pc.widget
	pc.mu.Unlock()

	if w == nil {
		return nil
	}
	if id, err := argString(args, "id"); err == nil && id != w.mediaID {
		return nil
	}
	return w
}

func (pc *pageClient) widgetReady(args []any) error {
	w := pc.currentWidget(args)
	if w == nil {
		return nil
	}
	d, _ := argFloat(args, "duration")
	w.ready(d)
	return nil
}

func (pc *pageClient) widgetState(args []any) error {
	w := pc.currentWidget(args)
	if w == nil {
		return nil
	}
	st, err := argWidgetState(args)
	if err != nil {
		return err
	}
	w.stateChanged(st)
	return nil
}

func (pc *pageClient) widgetProgress(args []any) error {
	w := pc.currentWidget(args)
	if w == nil {
		return nil
	}
	sec, err := argFloat(args, "seconds")
	if err != nil {
		return err
	}
	w.progress(sec)
	return nil
}

func (pc *pageClient) widgetStateReport(args []any) error {
	w := pc.currentWidget(args)
	if w == nil {
		return nil
	}
	st, err := argWidgetState(args)
	if err != nil {
		return err
	}
	w.report(st)
	return nil
}

// PlaybackChanged implements session.Listener.
func (pc *pageClient) PlaybackChanged(playback.State) {
	pc.debouncer.Trigger(pushPlayback)
}

// SlideChanged implements session.Listener.
func (pc *pageClient) SlideChanged(slideshow.State) {
	pc.debouncer.Trigger(pushSlide)
}

// pushPlayback sends the latest playback snapshot unless it matches the
// last one sent.
func (pc *pageClient) pushPlayback() {
	s := pc.currentSession()
	if s == nil {
		return
	}
	st := s.Player.Snapshot()
	if pc.unchanged(&pc.lastPlayback, st) {
		return
	}
	pc.emit("pushPlayback", st)
}

func (pc *pageClient) pushSlide() {
	s := pc.currentSession()
	if s == nil {
		return
	}
	st := s.Slides.Snapshot()
	if pc.unchanged(&pc.lastSlide, st) {
		return
	}
	pc.emit("pushSlide", st)
}

// unchanged records v as the last pushed value and reports whether it is
// identical to the previous one.
func (pc *pageClient) unchanged(last *[]byte, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		return false
	}

	pc.mu.Lock()
	defer pc.mu.Unlock()
	if *last != nil && string(*last) == string(data) {
		return true
	}
	*last = data
	return false
}

func (pc *pageClient) closeSession() {
	pc.mu.Lock()
	s := pc.session
	pc.session = nil
	pc.widget = nil
	pc.mu.Unlock()

	if s != nil {
		pc.manager.Close(s.ID)
	}
}

func (pc *pageClient) close() {
	pc.debouncer.Stop()
	pc.closeSession()
}
