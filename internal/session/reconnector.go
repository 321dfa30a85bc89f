package session

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultReconnectDelay is the fixed wait between a drop and the next dial.
const DefaultReconnectDelay = 3000 * time.Millisecond

// Reconnector owns the single pending reconnect attempt of a client.
// Scheduling again replaces the pending attempt instead of adding another.
type Reconnector struct {
	clock clock.Clock
	delay time.Duration
	fn    func()

	mu    sync.Mutex
	timer *clock.Timer
	gen   uint64
}

// NewReconnector calls fn delay after each Schedule. A non-positive delay
// means DefaultReconnectDelay and a nil clock means the wall clock.
func NewReconnector(clk clock.Clock, delay time.Duration, fn func()) *Reconnector {
	if clk == nil {
		clk = clock.New()
	}
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	return &Reconnector{clock: clk, delay: delay, fn: fn}
}

// Delay returns the fixed reconnect delay.
func (r *Reconnector) Delay() time.Duration {
	return r.delay
}

// Schedule cancels any pending attempt and arms a new one.
func (r *Reconnector) Schedule() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopLocked()
	r.gen++
	gen := r.gen
	r.timer = r.clock.AfterFunc(r.delay, func() { r.fire(gen) })
}

// Cancel drops the pending attempt, if any. It reports whether one was
// pending.
func (r *Reconnector) Cancel() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	pending := r.timer != nil
	r.stopLocked()
	r.gen++
	return pending
}

// Pending reports whether an attempt is armed and has not fired yet.
func (r *Reconnector) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.timer != nil
}

func (r *Reconnector) stopLocked() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// fire runs the callback unless a later Schedule or Cancel superseded this
// timer. Stop does not recall a callback that is already running.
func (r *Reconnector) fire(gen uint64) {
	r.mu.Lock()
	if gen != r.gen {
		r.mu.Unlock()
		return
	}
	r.timer = nil
	r.mu.Unlock()

	r.fn()
}
