package session

import (
	"sync"
	"time"

	"callsync/internal/clock"
)

// Timer 会话计时：只在运行期间累积，暂停时冻结，不会倒退
// Timer accumulates elapsed time only while running; frozen while paused and never runs backward.
//
// Callers guard against starting twice; Start on a running timer is ignored.
type Timer struct {
	clk clock.Clock

	// OnTick 每秒调用一次，参数为当前累计秒数
	// OnTick runs once per second with the current elapsed seconds
	OnTick func(seconds int)

	mu          sync.Mutex
	accumulated time.Duration
	startedAt   time.Time
	running     bool
	lastSeconds int
	ticker      clock.Ticker
	stop        chan struct{}
}

func NewTimer(clk clock.Clock) *Timer {
	return &Timer{clk: clock.OrReal(clk)}
}

func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return
	}
	t.running = true
	t.startedAt = t.clk.Now()
	t.ticker = t.clk.NewTicker(time.Second)
	t.stop = make(chan struct{})
	go t.loop(t.ticker, t.stop)
}

// Pause freezes the counter at its current value.
func (t *Timer) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	t.accumulated += t.clk.Now().Sub(t.startedAt)
	t.haltLocked()
}

// Resume continues counting from the frozen value.
func (t *Timer) Resume() { t.Start() }

// Reset sets the counter to zero and halts it.
func (t *Timer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		t.haltLocked()
	}
	t.accumulated = 0
	t.lastSeconds = 0
}

func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Elapsed returns the accumulated running time.
func (t *Timer) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.elapsedLocked()
}

// Seconds returns whole elapsed seconds. It never decreases between resets.
func (t *Timer) Seconds() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.secondsLocked()
}

func (t *Timer) elapsedLocked() time.Duration {
	d := t.accumulated
	if t.running {
		if since := t.clk.Now().Sub(t.startedAt); since > 0 {
			d += since
		}
	}
	return d
}

func (t *Timer) secondsLocked() int {
	s := int(t.elapsedLocked() / time.Second)
	if s < t.lastSeconds {
		s = t.lastSeconds
	}
	t.lastSeconds = s
	return s
}

func (t *Timer) haltLocked() {
	t.running = false
	if t.ticker != nil {
		t.ticker.Stop()
		t.ticker = nil
	}
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
}

func (t *Timer) loop(ticker clock.Ticker, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			t.mu.Lock()
			if !t.running {
				t.mu.Unlock()
				return
			}
			seconds := t.secondsLocked()
			cb := t.OnTick
			t.mu.Unlock()
			if cb != nil {
				cb(seconds)
			}
		}
	}
}
