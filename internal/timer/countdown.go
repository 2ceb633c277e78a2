package timer

import (
	"sync"
	"time"
)

// DefaultInterval is the wall-clock length of one countdown step.
const DefaultInterval = time.Second

// Tick describes one countdown step. Seq identifies the arming that produced
// it so listeners can drop ticks from a timer that has since been re-armed.
type Tick struct {
	Seq       uint64
	Remaining int
}

// Countdown is a single re-armable per-question timer. Callbacks run on the
// countdown goroutine after the internal lock has been released, so they may
// call back into the owner (including Cancel) without deadlocking.
type Countdown struct {
	interval time.Duration
	onTick   func(Tick)
	onExpire func(Tick)

	mu        sync.Mutex
	seq       uint64
	stop      chan struct{}
	remaining int
	armed     bool
	expired   bool
}

// New builds a countdown. Either callback may be nil.
func New(interval time.Duration, onTick, onExpire func(Tick)) *Countdown {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Countdown{
		interval: interval,
		onTick:   onTick,
		onExpire: onExpire,
	}
}

// Start arms the countdown for seconds steps, cancelling any previous arming.
// It returns the sequence number carried by every Tick of this arming.
func (c *Countdown) Start(seconds int) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelLocked()
	c.seq++
	c.remaining = seconds
	c.expired = false

	if seconds <= 0 {
		// Nothing to count down; treat as already expired without firing.
		c.expired = true
		return c.seq
	}

	c.armed = true
	c.stop = make(chan struct{})
	go c.run(c.seq, c.stop)
	return c.seq
}

// Cancel disarms the countdown. It never blocks on the countdown goroutine.
func (c *Countdown) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelLocked()
}

func (c *Countdown) cancelLocked() {
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
	c.armed = false
}

// left reports the seconds left and whether the countdown is armed.
func (c *Countdown) left() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining, c.armed
}

func (c *Countdown) hasExpired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expired
}

func (c *Countdown) run(seq uint64, stop <-chan struct{}) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			tick, live, fired := c.step(seq)
			if !live {
				return
			}
			if fired {
				if c.onExpire != nil {
					c.onExpire(tick)
				}
				return
			}
			if c.onTick != nil {
				c.onTick(tick)
			}
		}
	}
}

// step decrements under the lock. live is false when the arming was cancelled
// or replaced; fired is true exactly once, on the step that reaches zero.
func (c *Countdown) step(seq uint64) (tick Tick, live bool, fired bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.seq != seq || !c.armed || c.expired {
		return Tick{}, false, false
	}
	c.remaining--
	if c.remaining > 0 {
		return Tick{Seq: seq, Remaining: c.remaining}, true, false
	}
	c.remaining = 0
	c.expired = true
	c.cancelLocked()
	return Tick{Seq: seq, Remaining: 0}, true, true
}
