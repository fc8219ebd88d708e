package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake 手动推进的时钟：Advance 按时间顺序触发 ticker 与 AfterFunc
// Fake is a manually advanced clock; Advance fires tickers and AfterFuncs in time order
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*fakeWaiter
}

type fakeWaiter struct {
	at      time.Time
	period  time.Duration
	ch      chan time.Time
	fn      func()
	stopped bool
	owner   *Fake
}

func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) NewTicker(d time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := &fakeWaiter{at: f.now.Add(d), period: d, ch: make(chan time.Time, 1), owner: f}
	f.waiters = append(f.waiters, w)
	return fakeTicker{w}
}

func (f *Fake) AfterFunc(d time.Duration, fn func()) Stopper {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := &fakeWaiter{at: f.now.Add(d), fn: fn, owner: f}
	f.waiters = append(f.waiters, w)
	return fakeTimer{w}
}

// Pending returns the number of live tickers and unfired AfterFuncs.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, w := range f.waiters {
		if !w.stopped {
			n++
		}
	}
	return n
}

// Advance moves time forward by d. AfterFunc callbacks run synchronously on
// the calling goroutine; ticker sends are dropped when the channel is full.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	end := f.now.Add(d)
	f.mu.Unlock()

	for {
		f.mu.Lock()
		w := f.nextLocked(end)
		if w == nil {
			f.now = end
			f.mu.Unlock()
			return
		}
		f.now = w.at
		at := w.at
		if w.period > 0 {
			w.at = w.at.Add(w.period)
		} else {
			w.stopped = true
		}
		f.mu.Unlock()

		if w.ch != nil {
			select {
			case w.ch <- at:
			default:
			}
		}
		if w.fn != nil {
			w.fn()
		}
	}
}

func (f *Fake) nextLocked(end time.Time) *fakeWaiter {
	live := f.waiters[:0]
	for _, w := range f.waiters {
		if !w.stopped {
			live = append(live, w)
		}
	}
	f.waiters = live
	sort.SliceStable(f.waiters, func(i, j int) bool { return f.waiters[i].at.Before(f.waiters[j].at) })
	if len(f.waiters) == 0 || f.waiters[0].at.After(end) {
		return nil
	}
	return f.waiters[0]
}

func (w *fakeWaiter) stop() bool {
	w.owner.mu.Lock()
	defer w.owner.mu.Unlock()
	was := !w.stopped
	w.stopped = true
	return was
}

type fakeTicker struct{ w *fakeWaiter }

func (t fakeTicker) C() <-chan time.Time { return t.w.ch }

func (t fakeTicker) Stop() { t.w.stop() }

type fakeTimer struct{ w *fakeWaiter }

func (t fakeTimer) Stop() bool { return t.w.stop() }
