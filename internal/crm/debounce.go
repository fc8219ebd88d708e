package crm

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"callsync/internal/clock"
	"callsync/internal/config"
)

// Debouncer 只在输入静止 delay 之后提交最新查询，过期结果到达时直接丢弃
// Debouncer submits only the latest query after a quiet period and drops stale results on arrival
type Debouncer struct {
	search Searcher
	delay  time.Duration
	minLen int
	clk    clock.Clock
	logger *zap.Logger

	// OnResult receives results for the query that is still current.
	OnResult func(query string, deals []Deal, err error)

	mu      sync.Mutex
	gen     uint64
	current string
	timer   clock.Stopper
	cancel  context.CancelFunc
	closed  bool
}

// NewDebouncer uses the default 300ms window when delay <= 0.
func NewDebouncer(search Searcher, delay time.Duration, minLen int, clk clock.Clock, logger *zap.Logger) *Debouncer {
	if delay <= 0 {
		delay = config.DefaultSearchDebounceMS * time.Millisecond
	}
	if minLen <= 0 {
		minLen = config.DefaultSearchMinQueryLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Debouncer{search: search, delay: delay, minLen: minLen, clk: clock.OrReal(clk), logger: logger}
}

// Input 记录当前输入文本并重新计时
// Input records the current text and restarts the quiet-period timer
func (d *Debouncer) Input(text string) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.gen++
	gen := d.gen
	d.current = text
	d.stopLocked()

	if utf8.RuneCountInString(strings.TrimSpace(text)) < d.minLen {
		d.mu.Unlock()
		d.deliver(text, nil, nil)
		return
	}
	d.timer = d.clk.AfterFunc(d.delay, func() { d.fire(gen, text) })
	d.mu.Unlock()
}

// Current returns the latest text passed to Input.
func (d *Debouncer) Current() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// Close 取消计时器与进行中的请求 / Close cancels the pending timer and any in-flight request
func (d *Debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.gen++
	d.stopLocked()
}

func (d *Debouncer) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

func (d *Debouncer) fire(gen uint64, text string) {
	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.timer = nil
	d.mu.Unlock()
	defer cancel()

	deals, err := d.search.Search(ctx, text)

	d.mu.Lock()
	stale := gen != d.gen || d.current != text
	d.mu.Unlock()
	if stale {
		d.logger.Debug("discarding stale search result", zap.String("query", text))
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	d.deliver(text, deals, err)
}

func (d *Debouncer) deliver(query string, deals []Deal, err error) {
	if d.OnResult != nil {
		d.OnResult(query, deals, err)
	}
}
