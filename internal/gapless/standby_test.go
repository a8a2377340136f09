package gapless

import (
	"testing"

	"gapless-player/internal/decoder"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// playFirst sets items, starts playback and prepares item 0. It returns the
// active decoder and the standby being warmed, if any.
func (h *harness) playFirst(items []string, looping bool) (*fakeDecoder, *fakeDecoder) {
	h.t.Helper()
	h.c.SetPlayList(items, looping)
	h.c.Start()
	first := h.requireOpened(1)[0]
	h.prepared(first)
	require.Equal(h.t, Playing, h.c.State())
	ds := h.engine.opened()
	if len(ds) < 2 {
		return first, nil
	}
	return first, ds[1]
}

func TestEndToEndGaplessSwap(t *testing.T) {
	h := newHarness(t)
	first, next := h.playFirst([]string{"a.mp4", "b.mp4"}, false)

	// Pre-warm for item 1 began as soon as item 0 played.
	require.NotNil(t, next)
	assert.Equal(t, "b.mp4", next.source)
	assert.Nil(t, next.boundSurface(), "standby must not touch the surface")
	h.inspect(func(c *Controller) {
		assert.NotNil(t, c.warming)
		assert.True(t, c.standby.IsAbsent())
	})

	h.prepared(next)
	h.inspect(func(c *Controller) {
		assert.Nil(t, c.warming)
		assert.True(t, c.standby.IsPresent())
	})
	assert.Equal(t, 0, next.startCount(), "standby is not started early")

	h.completed(first)

	assert.True(t, first.isReleased())
	assert.Nil(t, first.boundSurface())
	assert.Equal(t, h.surface, next.boundSurface())
	assert.Equal(t, Playing, h.c.State())
	assert.Equal(t, 1, next.startCount())
	assert.Equal(t, "b.mp4", h.c.Status().Source)

	// No item 2: the pre-warm was attempted and aborted without opening.
	h.requireOpened(2)
	h.inspect(func(c *Controller) {
		assert.True(t, c.exhausted)
		assert.Nil(t, c.warming)
		assert.True(t, c.standby.IsAbsent())
		assert.Equal(t, 1, c.list.Index())
	})

	e := <-h.sub.Completed
	assert.Equal(t, 0, e.Index)
	ic := <-h.sub.ItemChanged
	assert.Equal(t, ItemChange{PreviousIndex: 0, Index: 1, Source: "b.mp4"}, ic)
	assert.Equal(t, 1, h.focus.max)
	assert.False(t, h.engine.exclusiveViolated())
}

func TestPlaylistEndedAfterLastItem(t *testing.T) {
	h := newHarness(t)
	first, next := h.playFirst([]string{"a.mp4", "b.mp4"}, false)
	h.prepared(next)
	h.completed(first)

	h.completed(next)

	assert.Equal(t, Completed, h.c.State())
	select {
	case e := <-h.sub.PlaylistEnded:
		assert.Equal(t, PlaylistEnded{Source: "b.mp4", Index: 1}, e)
	default:
		t.Fatal("expected the play-list to end")
	}
	h.requireOpened(2)
}

func TestSingleItemNonLoopingEnds(t *testing.T) {
	h := newHarness(t)
	first, next := h.playFirst([]string{"a.mp4"}, false)
	require.Nil(t, next)

	h.completed(first)

	e := <-h.sub.PlaylistEnded
	assert.Equal(t, 0, e.Index)
}

func TestLoopingWrapsAround(t *testing.T) {
	h := newHarness(t)
	first, next := h.playFirst([]string{"a.mp4", "b.mp4"}, true)
	h.prepared(next)
	h.completed(first)

	// Item 0 again after item 1.
	ds := h.requireOpened(3)
	assert.Equal(t, "a.mp4", ds[2].source)

	h.prepared(ds[2])
	h.completed(next)

	assert.Equal(t, h.surface, ds[2].boundSurface())
	assert.Equal(t, 0, h.c.Status().Index)
	assert.Equal(t, "b.mp4", h.requireOpened(4)[3].source)
	assert.False(t, h.engine.exclusiveViolated())
}

func TestPrewarmTwiceOpensOnce(t *testing.T) {
	h := newHarness(t)
	h.playFirst([]string{"a.mp4", "b.mp4", "c.mp4"}, false)

	h.inspect(func(c *Controller) {
		c.prewarm()
		c.prewarm()
	})

	ds := h.requireOpened(2)
	assert.Equal(t, 1, ds[1].prepares)

	// Also once the standby is ready.
	h.prepared(ds[1])
	h.inspect(func(c *Controller) { c.prewarm() })
	h.requireOpened(2)
}

func TestStaleNotificationsAreDropped(t *testing.T) {
	h := newHarness(t)
	first, next := h.playFirst([]string{"a.mp4", "b.mp4", "c.mp4"}, false)
	h.prepared(next)
	h.completed(first)
	before := h.c.Status()

	first.listener.OnPrepared()
	first.listener.OnCompletion()
	first.listener.OnError(decoder.ErrorIO, 0)
	first.listener.OnVideoSizeChanged(10, 10)
	first.listener.OnInfo(decoder.InfoRenderingStart, 0)
	h.sync()

	assert.Equal(t, before, h.c.Status())
	assert.Empty(t, h.sub.Errors)
	assert.Empty(t, h.sub.Info)
}

func TestCompletionBeforeStandbyReadyStalls(t *testing.T) {
	h := newHarness(t)
	first, next := h.playFirst([]string{"a.mp4", "b.mp4"}, false)

	h.completed(first)
	assert.Equal(t, Completed, h.c.State())
	assert.False(t, first.isReleased(), "nothing to swap in yet")
	assert.Empty(t, h.sub.Errors)

	h.prepared(next)

	assert.True(t, first.isReleased())
	assert.Equal(t, Playing, h.c.State())
	assert.Equal(t, h.surface, next.boundSurface())
}

func TestPausedDuringStallSwapsWithoutStarting(t *testing.T) {
	h := newHarness(t)
	first, next := h.playFirst([]string{"a.mp4", "b.mp4"}, false)
	h.completed(first)

	h.c.Pause()
	h.prepared(next)

	assert.Equal(t, Prepared, h.c.State())
	assert.Equal(t, 0, next.startCount())
	assert.Equal(t, h.surface, next.boundSurface())
}

func TestStandbyErrorIsContained(t *testing.T) {
	h := newHarness(t)
	first, next := h.playFirst([]string{"a.mp4", "b.mp4"}, false)

	next.listener.OnError(decoder.ErrorMalformed, 0)
	h.sync()

	assert.True(t, next.isReleased())
	assert.Equal(t, Playing, h.c.State())
	assert.Empty(t, h.sub.Errors)
	h.inspect(func(c *Controller) {
		assert.Nil(t, c.warming)
		assert.True(t, c.standby.IsAbsent())
	})

	// Completion retries the pre-warm and stalls on it.
	h.completed(first)
	ds := h.requireOpened(3)
	assert.Equal(t, "b.mp4", ds[2].source)
	assert.Equal(t, Completed, h.c.State())

	h.prepared(ds[2])
	assert.Equal(t, Playing, h.c.State())
}

func TestStandbyErrorAfterCompletionOpensItemAsActive(t *testing.T) {
	h := newHarness(t)
	first, next := h.playFirst([]string{"a.mp4", "b.mp4"}, false)
	h.completed(first)

	next.listener.OnError(decoder.ErrorMalformed, 0)
	h.sync()

	assert.True(t, first.isReleased())
	d := h.requireOpened(3)[2]
	assert.Equal(t, "b.mp4", d.source)
	assert.Equal(t, h.surface, d.boundSurface())
	assert.Equal(t, Preparing, h.c.State())

	h.prepared(d)
	assert.Equal(t, Playing, h.c.State())
}

func TestStopDiscardsReadyStandby(t *testing.T) {
	h := newHarness(t)
	_, next := h.playFirst([]string{"a.mp4", "b.mp4"}, false)
	h.prepared(next)

	h.c.Stop()

	assert.True(t, next.isReleased())
	// A late notification from the discarded standby changes nothing.
	next.listener.OnPrepared()
	h.sync()
	h.inspect(func(c *Controller) { assert.True(t, c.standby.IsAbsent()) })
}

func TestSetPlayListDiscardsStandby(t *testing.T) {
	h := newHarness(t)
	first, next := h.playFirst([]string{"a.mp4", "b.mp4"}, false)

	h.c.SetPlayList([]string{"x.mp4", "y.mp4"}, false)

	assert.True(t, first.isReleased())
	assert.True(t, next.isReleased())
	d := h.requireOpened(3)[2]
	assert.Equal(t, "x.mp4", d.source)
	h.prepared(d)
	assert.Equal(t, Playing, h.c.State())
	assert.Equal(t, "y.mp4", h.requireOpened(4)[3].source)
}

func TestExclusiveBindingAcrossOperations(t *testing.T) {
	h := newHarness(t)
	first, next := h.playFirst([]string{"a.mp4", "b.mp4", "c.mp4"}, true)

	check := func() {
		t.Helper()
		assert.LessOrEqual(t, h.engine.boundTo(h.surface), 1)
		assert.False(t, h.engine.exclusiveViolated())
		assert.LessOrEqual(t, h.focus.max, 1)
	}

	h.prepared(next)
	h.completed(first)
	check()

	h.c.Stop()
	check()
	h.c.Resume()
	h.c.Start()
	h.prepared(h.engine.last())
	check()

	h.c.SurfaceDestroyed()
	check()
	h.c.SurfaceCreated(h.surface)
	h.sync()
	h.prepared(h.engine.last())
	check()

	h.c.Suspend()
	h.c.Resume()
	h.sync()
	check()
	assert.Equal(t, 1, h.engine.boundTo(h.surface))
}

func TestUnopenableNextItemIsReportedAtCompletion(t *testing.T) {
	h := newHarness(t)
	h.engine.openErr["b.mp4"] = decoder.ErrUnsupported
	first, next := h.playFirst([]string{"a.mp4", "b.mp4"}, true)
	require.Nil(t, next, "pre-warm open failed")
	assert.Empty(t, h.sub.Errors)

	h.completed(first)

	assert.True(t, first.isReleased())
	assert.Equal(t, Error, h.c.State())
	e := <-h.sub.Errors
	assert.Equal(t, "b.mp4", e.Source)
	assert.Equal(t, 1, e.Index)
	assert.Equal(t, decoder.ErrorUnsupported, e.What)
}

func TestCompletionAfterErrorIsDropped(t *testing.T) {
	h := newHarness(t)
	first, next := h.playFirst([]string{"a.mp4", "b.mp4"}, false)
	h.prepared(next)

	first.listener.OnError(decoder.ErrorMalformed, 0)
	h.sync()
	require.Equal(t, Error, h.c.State())

	h.completed(first)

	assert.Equal(t, Error, h.c.State())
	assert.Equal(t, "a.mp4", h.c.Status().Source)
	assert.Empty(t, h.sub.Completed)
	assert.Empty(t, h.sub.ItemChanged)
	assert.Nil(t, next.boundSurface())
	h.inspect(func(c *Controller) {
		assert.Same(t, first, c.active.dec)
		assert.True(t, c.standby.IsPresent())
	})
}
