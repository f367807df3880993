package socketio

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edumarques81/serenata/internal/clock"
	"github.com/edumarques81/serenata/internal/domain/playback"
	"github.com/edumarques81/serenata/internal/domain/playlist"
	"github.com/edumarques81/serenata/internal/domain/session"
)

type emitted struct {
	event   string
	payload any
}

type recorder struct {
	mu     sync.Mutex
	events []emitted
	hook   func(ev string)
}

func (r *recorder) emit(ev string, args ...any) {
	var payload any
	if len(args) > 0 {
		payload = args[0]
	}
	r.mu.Lock()
	r.events = append(r.events, emitted{event: ev, payload: payload})
	hook := r.hook
	r.mu.Unlock()
	if hook != nil {
		hook(ev)
	}
}

func (r *recorder) named(ev string) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []any
	for _, e := range r.events {
		if e.event == ev {
			out = append(out, e.payload)
		}
	}
	return out
}

type mapProvider map[string]*playlist.Record

func (p mapProvider) Get(ctx context.Context, slug string) (*playlist.Record, error) {
	rec, ok := p[slug]
	if !ok {
		return nil, playlist.ErrNotFound
	}
	return rec, nil
}

func testRecord() *playlist.Record {
	initial := 0
	return &playlist.Record{
		Title:  "Para Ana",
		Photos: []playlist.Photo{{URL: "/1.jpg"}, {URL: "/2.jpg"}},
		Playlist: []playlist.Track{
			{ID: "1", Title: "Primeira", ExternalMediaID: "aaa"},
			{ID: "2", Title: "Segunda", ExternalMediaID: "bbb"},
		},
		Settings: playlist.Settings{InitialTrack: &initial},
	}
}

func newTestClient(t *testing.T) (*pageClient, *recorder) {
	t.Helper()
	manager := session.NewManager(mapProvider{"ana": testRecord()}, session.Options{
		Clock: clock.NewFake(),
		Intn:  func(int) int { return 0 },
	})
	rec := &recorder{}
	pc := newPageClient("page-1", rec.emit, manager, Options{PushWindow: 10 * time.Millisecond})
	t.Cleanup(pc.close)
	return pc, rec
}

func payload(kv ...any) []any {
	m := map[string]interface{}{}
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i].(string)] = kv[i+1]
	}
	return []any{m}
}

func openSession(t *testing.T, pc *pageClient) *session.Session {
	t.Helper()
	pc.dispatch("session:open", payload("slug", "ana"))
	s := pc.currentSession()
	require.NotNil(t, s)
	return s
}

func TestOpenSessionLoadsWidgetAndPushesView(t *testing.T) {
	pc, rec := newTestClient(t)
	openSession(t, pc)

	loads := rec.named("widget:load")
	require.Len(t, loads, 1)
	assert.Equal(t, map[string]any{"id": "aaa"}, loads[0])

	views := rec.named("pushSession")
	require.Len(t, views, 1)
	view := views[0].(session.View)
	assert.Equal(t, "Para Ana", view.Title)
	assert.Equal(t, 0, view.CurrentTrack)
}

func TestOpenUnknownSlugPushesError(t *testing.T) {
	pc, rec := newTestClient(t)

	pc.dispatch("session:open", payload("slug", "nobody"))

	errs := rec.named("pushError")
	require.Len(t, errs, 1)
	assert.Equal(t, "not_found", errs[0].(errorPayload).Code)
	assert.Nil(t, pc.currentSession())
}

func TestReopenReplacesSession(t *testing.T) {
	pc, rec := newTestClient(t)
	first := openSession(t, pc)
	second := openSession(t, pc)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 1, pc.manager.Count())
	assert.Len(t, rec.named("widget:destroy"), 1, "closing the first session destroys its widget")
}

func TestCommandWithoutSession(t *testing.T) {
	pc, rec := newTestClient(t)

	pc.dispatch("togglePlay", nil)

	errs := rec.named("pushError")
	require.Len(t, errs, 1)
	assert.Equal(t, "no_session", errs[0].(errorPayload).Code)
}

func TestBadArgumentsReported(t *testing.T) {
	pc, rec := newTestClient(t)
	openSession(t, pc)

	pc.dispatch("seek", payload("fraction", "half"))
	pc.dispatch("selectTrack", payload("index", 9.0))
	pc.dispatch("widget:state", payload("id", "aaa", "state", "dancing"))

	errs := rec.named("pushError")
	require.Len(t, errs, 3)
	for _, e := range errs {
		assert.Equal(t, "bad_request", e.(errorPayload).Code)
	}
}

func TestUnknownEventIgnored(t *testing.T) {
	pc, rec := newTestClient(t)
	pc.dispatch("browseLibrary", nil)
	assert.Empty(t, rec.named("pushError"))
}

func TestWidgetRoundTrip(t *testing.T) {
	pc, rec := newTestClient(t)
	s := openSession(t, pc)

	pc.dispatch("widget:ready", payload("id", "aaa", "duration", 215.0))
	st := s.Player.Snapshot()
	assert.Equal(t, playback.StatusReady, st.Status)
	assert.Equal(t, 215.0, st.TotalSeconds)
	assert.NotEmpty(t, rec.named("widget:volume"))

	pc.dispatch("togglePlay", nil)
	assert.Len(t, rec.named("widget:play"), 1)
	assert.True(t, s.Player.Interacted(), "togglePlay is a gesture")

	pc.dispatch("widget:state", payload("id", "aaa", "state", 1.0))
	assert.Equal(t, playback.StatusPlaying, s.Player.Snapshot().Status)

	pc.dispatch("widget:progress", payload("id", "aaa", "seconds", 42.0))
	assert.Equal(t, 42.0, pc.widget.CurrentTime())

	pc.dispatch("widget:state", payload("id", "aaa", "state", "paused"))
	assert.Equal(t, playback.StatusPaused, s.Player.Snapshot().Status)
}

func TestStaleWidgetEventsDropped(t *testing.T) {
	pc, _ := newTestClient(t)
	s := openSession(t, pc)

	pc.dispatch("next", nil)
	require.Equal(t, 1, s.CurrentIndex())

	pc.dispatch("widget:ready", payload("id", "aaa", "duration", 100.0))
	assert.Equal(t, playback.StatusLoading, s.Player.Snapshot().Status)

	pc.dispatch("widget:ready", payload("id", "bbb", "duration", 100.0))
	assert.Equal(t, playback.StatusReady, s.Player.Snapshot().Status)
}

func TestInteractTripsLatch(t *testing.T) {
	pc, _ := newTestClient(t)
	s := openSession(t, pc)

	pc.dispatch("slide:hover", payload("inside", true))
	assert.False(t, s.Player.Interacted(), "hover is not a gesture")

	pc.dispatch("interact", nil)
	assert.True(t, s.Player.Interacted())
}

func TestSlideEvents(t *testing.T) {
	pc, _ := newTestClient(t)
	s := openSession(t, pc)

	pc.dispatch("slide:goto", payload("index", 1.0))
	assert.Equal(t, 1, s.Slides.Snapshot().CurrentPhotoIndex)

	pc.dispatch("slide:next", nil)
	assert.Equal(t, 0, s.Slides.Snapshot().CurrentPhotoIndex)

	pc.dispatch("slide:dragStart", payload("x", 300.0))
	assert.True(t, s.Slides.Snapshot().DragInProgress)
	pc.dispatch("slide:dragEnd", payload("x", 100.0))
	assert.Equal(t, 1, s.Slides.Snapshot().CurrentPhotoIndex)
}

func TestToggleLikePushesView(t *testing.T) {
	pc, rec := newTestClient(t)
	openSession(t, pc)

	pc.dispatch("toggleLike", payload("id", 2.0))

	views := rec.named("pushSession")
	require.Len(t, views, 2)
	assert.Equal(t, []playlist.ID{"2"}, views[1].(session.View).Liked)
}

func TestPlaybackPushesAreDebounced(t *testing.T) {
	pc, rec := newTestClient(t)
	openSession(t, pc)

	pc.dispatch("volume", payload("value", 30.0))
	pc.dispatch("volume", payload("value", 20.0))

	assert.Eventually(t, func() bool {
		pushes := rec.named("pushPlayback")
		if len(pushes) == 0 {
			return false
		}
		return pushes[len(pushes)-1].(playback.State).Volume == 20
	}, time.Second, 5*time.Millisecond)
}

func TestIdenticalPushSkipped(t *testing.T) {
	pc, rec := newTestClient(t)
	openSession(t, pc)
	pc.debouncer.Stop()

	pc.pushPlayback()
	pc.pushPlayback()
	pc.pushSlide()
	pc.pushSlide()

	assert.Len(t, rec.named("pushPlayback"), 1)
	assert.Len(t, rec.named("pushSlide"), 1)

	pc.currentSession().Player.SetVolume(10)
	pc.pushPlayback()
	assert.Len(t, rec.named("pushPlayback"), 2)
}

func TestCloseEndsSession(t *testing.T) {
	pc, _ := newTestClient(t)
	openSession(t, pc)

	pc.close()

	assert.Nil(t, pc.currentSession())
	assert.Equal(t, 0, pc.manager.Count())
}
