package sched

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestVirtual_RunsInDueOrder(t *testing.T) {
	v := NewVirtual(epoch)
	var order []string

	v.AfterFunc(30*time.Millisecond, func() { order = append(order, "c") })
	v.AfterFunc(10*time.Millisecond, func() { order = append(order, "a") })
	v.AfterFunc(10*time.Millisecond, func() { order = append(order, "b") })

	v.Advance(20 * time.Millisecond)
	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, epoch.Add(20*time.Millisecond), v.Now())

	v.Advance(10 * time.Millisecond)
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Zero(t, v.Pending())
}

func TestVirtual_NowDuringContinuation(t *testing.T) {
	v := NewVirtual(epoch)
	var seen time.Time
	v.AfterFunc(15*time.Millisecond, func() { seen = v.Now() })

	v.Advance(time.Second)
	assert.Equal(t, epoch.Add(15*time.Millisecond), seen)
	assert.Equal(t, epoch.Add(time.Second), v.Now())
}

func TestVirtual_ChainedContinuations(t *testing.T) {
	v := NewVirtual(epoch)
	var ticks []time.Duration

	var tick func()
	tick = func() {
		ticks = append(ticks, v.Now().Sub(epoch))
		if len(ticks) < 3 {
			v.AfterFunc(50*time.Millisecond, tick)
		}
	}
	v.AfterFunc(50*time.Millisecond, tick)

	v.Advance(120 * time.Millisecond)
	assert.Equal(t, []time.Duration{50 * time.Millisecond, 100 * time.Millisecond}, ticks)

	v.Advance(time.Second)
	assert.Len(t, ticks, 3)
	assert.Zero(t, v.Pending())
}

func TestVirtual_Stop(t *testing.T) {
	v := NewVirtual(epoch)
	ran := false
	timer := v.AfterFunc(10*time.Millisecond, func() { ran = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop(), "second stop is a no-op")

	v.Advance(time.Second)
	assert.False(t, ran)
}

func TestVirtual_StopAfterFire(t *testing.T) {
	v := NewVirtual(epoch)
	timer := v.AfterFunc(0, func() {})
	v.Advance(0)
	assert.False(t, timer.Stop())
}

func TestVirtual_NextDue(t *testing.T) {
	v := NewVirtual(epoch)
	_, ok := v.NextDue()
	assert.False(t, ok)

	v.AfterFunc(40*time.Millisecond, func() {})
	v.AfterFunc(25*time.Millisecond, func() {})
	due, ok := v.NextDue()
	require.True(t, ok)
	assert.Equal(t, epoch.Add(25*time.Millisecond), due)
}

func TestClock_AfterFunc(t *testing.T) {
	fc := clockwork.NewFakeClock()
	c := NewClock(fc)

	var fired atomic.Bool
	c.AfterFunc(100*time.Millisecond, func() { fired.Store(true) })

	fc.Advance(50 * time.Millisecond)
	assert.False(t, fired.Load())

	fc.Advance(50 * time.Millisecond)
	assert.Eventually(t, fired.Load, time.Second, time.Millisecond)
}

func TestClock_Stop(t *testing.T) {
	fc := clockwork.NewFakeClock()
	c := NewClock(fc)

	var fired atomic.Bool
	timer := c.AfterFunc(100*time.Millisecond, func() { fired.Store(true) })
	assert.True(t, timer.Stop())

	fc.Advance(time.Second)
	assert.Never(t, fired.Load, 50*time.Millisecond, 5*time.Millisecond)
}
