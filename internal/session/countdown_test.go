package session

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountdown_ManualTicksExpireOnce(t *testing.T) {
	var ticks []int
	var expired int
	c := NewCountdown(2, 0, func(r int) { ticks = append(ticks, r) }, func() { expired++ })
	c.Start()

	assert.True(t, c.Tick())
	assert.False(t, c.Tick())
	assert.False(t, c.Tick())

	assert.Equal(t, []int{1, 0}, ticks)
	assert.Equal(t, 1, expired)
	assert.True(t, c.Expired())
	assert.Equal(t, 0, c.Remaining())

	c.Start()
	assert.Equal(t, 1, expired, "restarting an expired countdown does nothing")
}

func TestCountdown_StartWithNothingLeftExpiresImmediately(t *testing.T) {
	var expired int
	c := NewCountdown(0, 0, nil, func() { expired++ })

	c.Start()
	c.Start()

	assert.Equal(t, 1, expired)
	assert.False(t, c.Running())
}

func TestCountdown_StopHaltsAndStartResumes(t *testing.T) {
	c := NewCountdown(5, 0, nil, nil)
	c.Start()
	require.True(t, c.Tick())

	c.Stop()
	assert.False(t, c.Tick())
	assert.Equal(t, 4, c.Remaining())

	c.Start()
	assert.True(t, c.Tick())
	assert.Equal(t, 3, c.Remaining())
}

func TestCountdown_TickerDrivesExpiry(t *testing.T) {
	var expired atomic.Int32
	c := NewCountdown(3, time.Millisecond, nil, func() { expired.Add(1) })
	c.Start()

	require.Eventually(t, func() bool { return expired.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int32(1), expired.Load())
	assert.Equal(t, 0, c.Remaining())
}

func TestCountdown_NoTicksAfterStop(t *testing.T) {
	var ticks atomic.Int32
	c := NewCountdown(1000, time.Millisecond, func(int) { ticks.Add(1) }, nil)
	c.Start()
	require.Eventually(t, func() bool { return ticks.Load() > 0 }, time.Second, time.Millisecond)

	c.Stop()
	// a tick already past the lock may still land
	time.Sleep(5 * time.Millisecond)
	seen := ticks.Load()
	remaining := c.Remaining()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, seen, ticks.Load())
	assert.Equal(t, remaining, c.Remaining())
}

func TestFormatTimeLeft(t *testing.T) {
	assert.Equal(t, "0:00", FormatTimeLeft(0))
	assert.Equal(t, "0:00", FormatTimeLeft(-5))
	assert.Equal(t, "0:09", FormatTimeLeft(9))
	assert.Equal(t, "1:05", FormatTimeLeft(65))
	assert.Equal(t, "90:00", FormatTimeLeft(5400))
}
