package view

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func TestToasterStacksAndDismisses(t *testing.T) {
	clock := NewManualClock(epoch)
	var sunk []string
	toaster := NewToaster(clock, 3*time.Second, WithSink(func(t Toast) { sunk = append(sunk, t.Message) }))

	toaster.Show("first", LevelSuccess)
	clock.Advance(time.Second)
	toaster.Show("second", LevelError)

	require.Len(t, toaster.Active(), 2)
	assert.Equal(t, []string{"first", "second"}, sunk)

	clock.Advance(2 * time.Second)
	active := toaster.Active()
	require.Len(t, active, 1, "first toast expires after 3s")
	assert.Equal(t, "second", active[0].Message)

	clock.Advance(time.Second)
	assert.Empty(t, toaster.Active())
	assert.Len(t, toaster.History(), 2)
}

func TestToasterReplaceExisting(t *testing.T) {
	clock := NewManualClock(epoch)
	toaster := NewToaster(clock, 3*time.Second, ReplaceExisting())

	toaster.Show("first", LevelInfo)
	toaster.Show("second", LevelError)

	active := toaster.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "second", active[0].Message)
	assert.Equal(t, 1, clock.Pending(), "replaced toast timer is cancelled")

	last, ok := toaster.Last()
	require.True(t, ok)
	assert.Equal(t, LevelError, last.Level)
}

func TestStagger(t *testing.T) {
	step := 100 * time.Millisecond
	assert.Equal(t, time.Duration(0), Stagger(0, step))
	assert.Equal(t, 300*time.Millisecond, Stagger(3, step))
	assert.Equal(t, time.Duration(0), Stagger(-1, step))
}

func TestBusy(t *testing.T) {
	b := NewBusy("Track")

	release, ok := b.Acquire("Tracking...")
	require.True(t, ok)
	disabled, label := b.State()
	assert.True(t, disabled)
	assert.Equal(t, "Tracking...", label)

	_, ok = b.Acquire("again")
	assert.False(t, ok, "second acquire while busy is refused")

	release()
	release()
	disabled, label = b.State()
	assert.False(t, disabled)
	assert.Equal(t, "Track", label)
}

func TestBusyHoldCountsHolders(t *testing.T) {
	b := NewBusy("Search")

	first := b.Hold("Searching...")
	second := b.Hold("Searching...")

	_, ok := b.Acquire("Searching...")
	assert.False(t, ok, "acquire is refused while held")

	first()
	first()
	disabled, label := b.State()
	assert.True(t, disabled, "still held by the second caller")
	assert.Equal(t, "Searching...", label)

	second()
	disabled, label = b.State()
	assert.False(t, disabled)
	assert.Equal(t, "Search", label)
}

func TestSlots(t *testing.T) {
	var all Slots
	assert.True(t, all.Has("anything"))

	some := NewSlots("ticket", "status")
	assert.True(t, some.Has("ticket"))
	assert.False(t, some.Has("image"))
}

func TestManualClockAfter(t *testing.T) {
	clock := NewManualClock(epoch)

	ch := clock.After(300 * time.Millisecond)
	select {
	case <-ch:
		t.Fatal("fired early")
	default:
	}

	done := make(chan struct{})
	go func() {
		<-ch
		close(done)
	}()
	clock.BlockUntil(1)
	clock.Advance(300 * time.Millisecond)
	<-done

	select {
	case <-clock.After(0):
	default:
		t.Fatal("zero wait should complete immediately")
	}
}

func TestManualClockStop(t *testing.T) {
	clock := NewManualClock(epoch)
	fired := false
	timer := clock.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())
	clock.Advance(time.Minute)
	assert.False(t, fired)
}
