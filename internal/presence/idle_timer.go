package presence

import (
	"sync"
	"time"
)

// IdleTimer fires once after a period without activity. It is armed while the
// session's user is ONLINE and disarmed otherwise; Touch restarts the period.
type IdleTimer struct {
	mu      sync.Mutex
	timeout time.Duration
	onIdle  func()
	timer   *time.Timer
	gen     uint64
	stopped bool
}

func NewIdleTimer(timeout time.Duration, onIdle func()) *IdleTimer {
	return &IdleTimer{timeout: timeout, onIdle: onIdle}
}

// Arm starts the countdown if it is not already running.
func (t *IdleTimer) Arm() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.timer != nil {
		return
	}
	t.startLocked()
}

// Touch restarts the countdown when it is running.
func (t *IdleTimer) Touch() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.timer == nil {
		return
	}
	t.timer.Stop()
	t.startLocked()
}

func (t *IdleTimer) Disarm() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disarmLocked()
}

func (t *IdleTimer) SetTimeout(timeout time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeout = timeout
	if t.timer != nil && !t.stopped {
		t.timer.Stop()
		t.startLocked()
	}
}

func (t *IdleTimer) Timeout() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timeout
}

func (t *IdleTimer) Armed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil
}

// Stop disarms the timer permanently.
func (t *IdleTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disarmLocked()
	t.stopped = true
}

func (t *IdleTimer) disarmLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.gen++
}

func (t *IdleTimer) startLocked() {
	t.gen++
	gen := t.gen
	t.timer = time.AfterFunc(t.timeout, func() {
		t.mu.Lock()
		// A stale callback raced with Touch or Disarm.
		if gen != t.gen || t.stopped {
			t.mu.Unlock()
			return
		}
		t.timer = nil
		t.mu.Unlock()
		t.onIdle()
	})
}
