package session

import (
	"fmt"
	"sync"
	"time"
)

// Countdown decrements a number of seconds once per interval and calls
// onExpire exactly once when it reaches zero. An interval of zero disables
// the internal ticker so the owner drives it through Tick.
type Countdown struct {
	mu        sync.Mutex
	remaining int
	interval  time.Duration
	running   bool
	expired   bool
	gen       int
	stop      chan struct{}

	onTick   func(remaining int)
	onExpire func()
}

func NewCountdown(seconds int, interval time.Duration, onTick func(int), onExpire func()) *Countdown {
	if onTick == nil {
		onTick = func(int) {}
	}
	if onExpire == nil {
		onExpire = func() {}
	}
	return &Countdown{
		remaining: seconds,
		interval:  interval,
		onTick:    onTick,
		onExpire:  onExpire,
	}
}

// Start begins or resumes counting. It is a no-op while running or after
// expiry. Starting with nothing left expires immediately.
func (c *Countdown) Start() {
	c.mu.Lock()
	if c.running || c.expired {
		c.mu.Unlock()
		return
	}
	if c.remaining <= 0 {
		c.remaining = 0
		c.expired = true
		c.mu.Unlock()
		c.onExpire()
		return
	}

	c.running = true
	c.gen++
	if c.interval > 0 {
		c.stop = make(chan struct{})
		go c.run(c.gen, c.stop)
	}
	c.mu.Unlock()
}

// Stop halts counting. A stopped countdown never calls back until started
// again.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.running = false
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}

// Tick advances the countdown by one step. It reports whether the countdown
// is still running afterwards.
func (c *Countdown) Tick() bool {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()
	return c.tick(gen)
}

func (c *Countdown) tick(gen int) bool {
	c.mu.Lock()
	if !c.running || c.expired || gen != c.gen {
		c.mu.Unlock()
		return false
	}
	c.remaining--
	remaining := c.remaining
	fire := remaining <= 0
	if fire {
		c.remaining = 0
		remaining = 0
		c.expired = true
		c.running = false
		if c.stop != nil {
			close(c.stop)
			c.stop = nil
		}
	}
	c.mu.Unlock()

	c.onTick(remaining)
	if fire {
		c.onExpire()
	}
	return !fire
}

func (c *Countdown) run(gen int, stop <-chan struct{}) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !c.tick(gen) {
				return
			}
		}
	}
}

func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Countdown) Expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expired
}

// FormatTimeLeft renders seconds as m:ss.
func FormatTimeLeft(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
