package slideshow_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edumarques81/serenata/internal/clock"
	"github.com/edumarques81/serenata/internal/domain/slideshow"
)

func newStarted(t *testing.T, length int) (*slideshow.Controller, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake()
	c := slideshow.NewController(length, time.Second, clk, nil)
	c.Start()
	return c, clk
}

func TestAutoAdvanceWraps(t *testing.T) {
	c, clk := newStarted(t, 3)

	var seen []int
	for i := 0; i < 4; i++ {
		clk.Advance(time.Second)
		seen = append(seen, c.Snapshot().CurrentPhotoIndex)
	}
	assert.Equal(t, []int{1, 2, 0, 1}, seen)
}

func TestDefaultInterval(t *testing.T) {
	c := slideshow.NewController(2, 0, clock.NewFake(), nil)
	assert.Equal(t, slideshow.DefaultInterval, c.Interval())
}

func TestEmptyPhotoSetIsStatic(t *testing.T) {
	c, clk := newStarted(t, 0)

	assert.Equal(t, 0, clk.Pending(), "no timer for an empty set")

	c.Next()
	c.Previous()
	c.DragStart(0)
	c.DragEnd(-200)
	clk.Advance(time.Minute)

	st := c.Snapshot()
	assert.Equal(t, 0, st.CurrentPhotoIndex)
	assert.False(t, st.Navigable)
	assert.False(t, st.IsAutoAdvancing)
	assert.ErrorIs(t, c.GoTo(0), slideshow.ErrIndexOutOfRange)
}

func TestNotStartedDoesNotAdvance(t *testing.T) {
	clk := clock.NewFake()
	c := slideshow.NewController(3, time.Second, clk, nil)

	clk.Advance(10 * time.Second)
	assert.Equal(t, 0, c.Snapshot().CurrentPhotoIndex)
}

func TestHoverPausesAndResumes(t *testing.T) {
	c, clk := newStarted(t, 4)

	c.Hover(true)
	assert.False(t, c.Snapshot().IsAutoAdvancing)
	clk.Advance(5 * time.Second)
	assert.Equal(t, 0, c.Snapshot().CurrentPhotoIndex)

	c.Hover(false)
	assert.True(t, c.Snapshot().IsAutoAdvancing)
	clk.Advance(time.Second)
	assert.Equal(t, 1, c.Snapshot().CurrentPhotoIndex)
}

func TestDragSwipeLeftGoesNext(t *testing.T) {
	c, _ := newStarted(t, 3)

	c.DragStart(300)
	assert.True(t, c.Snapshot().DragInProgress)
	c.DragEnd(200)

	st := c.Snapshot()
	assert.Equal(t, 1, st.CurrentPhotoIndex)
	assert.False(t, st.DragInProgress)
}

func TestDragSwipeRightGoesPrevious(t *testing.T) {
	c, _ := newStarted(t, 3)

	c.DragStart(100)
	c.DragEnd(180)

	assert.Equal(t, 2, c.Snapshot().CurrentPhotoIndex)
}

func TestShortDragIsNoop(t *testing.T) {
	c, _ := newStarted(t, 3)

	c.DragStart(100)
	c.DragEnd(150)

	assert.Equal(t, 0, c.Snapshot().CurrentPhotoIndex)
}

func TestDragSuspendsAndCooldownResumes(t *testing.T) {
	c, clk := newStarted(t, 5)

	clk.Advance(500 * time.Millisecond)
	c.DragStart(0)
	clk.Advance(10 * time.Second)
	assert.Equal(t, 0, c.Snapshot().CurrentPhotoIndex, "no advance mid-drag")

	c.DragEnd(-100) // -> 1
	require.Equal(t, 1, c.Snapshot().CurrentPhotoIndex)
	assert.False(t, c.Snapshot().IsAutoAdvancing)

	clk.Advance(slideshow.DragCooldown)
	assert.True(t, c.Snapshot().IsAutoAdvancing)
	assert.Equal(t, 1, c.Snapshot().CurrentPhotoIndex, "cooldown end restarts the window")

	clk.Advance(time.Second)
	assert.Equal(t, 2, c.Snapshot().CurrentPhotoIndex)
}

func TestManualNavigationRestartsWindow(t *testing.T) {
	c, clk := newStarted(t, 4)

	clk.Advance(900 * time.Millisecond)
	c.Next() // -> 1, window restarts
	clk.Advance(900 * time.Millisecond)
	assert.Equal(t, 1, c.Snapshot().CurrentPhotoIndex)

	clk.Advance(100 * time.Millisecond)
	assert.Equal(t, 2, c.Snapshot().CurrentPhotoIndex)
	assert.True(t, c.Snapshot().IsAutoAdvancing)
}

func TestGoTo(t *testing.T) {
	c, _ := newStarted(t, 4)

	require.NoError(t, c.GoTo(3))
	assert.Equal(t, 3, c.Snapshot().CurrentPhotoIndex)

	assert.ErrorIs(t, c.GoTo(4), slideshow.ErrIndexOutOfRange)
	assert.ErrorIs(t, c.GoTo(-1), slideshow.ErrIndexOutOfRange)
	assert.Equal(t, 3, c.Snapshot().CurrentPhotoIndex)

	c.Previous()
	assert.Equal(t, 2, c.Snapshot().CurrentPhotoIndex)
}

func TestOnlyOneTimerArmed(t *testing.T) {
	c, clk := newStarted(t, 3)

	c.Next()
	c.Next()
	c.Hover(true)
	c.Hover(false)
	_ = c.GoTo(0)

	assert.Equal(t, 1, clk.Pending())
}

func TestCloseStopsTimers(t *testing.T) {
	c, clk := newStarted(t, 3)
	c.DragStart(0)
	c.DragEnd(-100)

	c.Close()

	assert.Equal(t, 0, clk.Pending())
	clk.Advance(time.Minute)
	assert.Equal(t, 1, c.Snapshot().CurrentPhotoIndex)
}

func TestOnChangeReceivesSnapshots(t *testing.T) {
	clk := clock.NewFake()
	var got []slideshow.State
	c := slideshow.NewController(2, time.Second, clk, func(s slideshow.State) { got = append(got, s) })

	c.Start()
	clk.Advance(time.Second)

	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].CurrentPhotoIndex)
	assert.Equal(t, 1, got[1].CurrentPhotoIndex)
}
