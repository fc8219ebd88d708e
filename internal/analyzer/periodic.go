package analyzer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"callsync/internal/capture"
	"callsync/internal/checklist"
	"callsync/internal/clock"
)

const defaultRequestTimeout = 90 * time.Second

// Snapshotter yields the audio captured so far without disturbing capture.
type Snapshotter interface {
	Snapshot() capture.Artifact
}

// Merger applies detected topic ids and returns the ids that changed.
type Merger interface {
	Merge(ids []string) []string
}

// Encoder compresses a snapshot before it is sent for analysis.
type Encoder interface {
	Encode(ctx context.Context, in capture.Artifact) (capture.Artifact, error)
}

// Periodic 录音期间按固定间隔提交音频快照做清单分析
// Periodic submits audio snapshots for checklist analysis at a fixed interval while recording.
//
// At most one submission is in flight; a tick that fires while one is pending is
// dropped. Stop cancels pending ticks but never an in-flight submission. After
// Invalidate, results of submissions started earlier are discarded.
type Periodic struct {
	clk      clock.Clock
	interval time.Duration
	analyzer checklist.Analyzer
	logger   *zap.Logger
	inflight *semaphore.Weighted
	timeout  time.Duration

	// OnMerged 在结果改变清单时调用
	// OnMerged runs after a result changed at least one item
	OnMerged func(changed []string)

	// Encoder 可选；编码失败时发送原始 WAV
	// Encoder is optional; a failed encode sends the raw snapshot
	Encoder Encoder
	// MaxBytes skips snapshots still larger than this after encoding; zero disables the check.
	MaxBytes int

	base   context.Context
	cancel context.CancelFunc

	// mergeMu orders result merges against Invalidate.
	mergeMu sync.Mutex
	epoch   uint64

	mu      sync.Mutex
	ticker  clock.Ticker
	stop    chan struct{}
	src     Snapshotter
	sink    Merger
	skipped int
	runs    int
}

func New(a checklist.Analyzer, interval time.Duration, clk clock.Clock, logger *zap.Logger) *Periodic {
	if logger == nil {
		logger = zap.NewNop()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Periodic{
		clk:      clock.OrReal(clk),
		interval: interval,
		analyzer: a,
		logger:   logger,
		inflight: semaphore.NewWeighted(1),
		timeout:  defaultRequestTimeout,
		base:     base,
		cancel:   cancel,
	}
}

// Start 开始调度；已在运行时替换数据源
// Start begins scheduling ticks against src and sink; calling it while running rebinds them
func (p *Periodic) Start(src Snapshotter, sink Merger) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.src = src
	p.sink = sink
	if p.ticker != nil || p.interval <= 0 || p.analyzer == nil {
		return
	}
	p.ticker = p.clk.NewTicker(p.interval)
	p.stop = make(chan struct{})
	go p.loop(p.ticker, p.stop)
}

// Stop cancels pending ticks. In-flight submissions keep running.
func (p *Periodic) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ticker == nil {
		return
	}
	p.ticker.Stop()
	close(p.stop)
	p.ticker = nil
	p.stop = nil
}

// Invalidate drops the results of every submission started before the call.
func (p *Periodic) Invalidate() {
	p.mergeMu.Lock()
	p.epoch++
	p.mergeMu.Unlock()
}

// Close stops ticking and cancels any in-flight submission; used on teardown.
func (p *Periodic) Close() {
	p.Stop()
	p.Invalidate()
	p.cancel()
}

// Running reports whether ticks are scheduled.
func (p *Periodic) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ticker != nil
}

// Stats returns how many submissions ran and how many ticks were dropped.
func (p *Periodic) Stats() (runs, skipped int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runs, p.skipped
}

// WaitIdle blocks until no submission is in flight.
func (p *Periodic) WaitIdle(ctx context.Context) error {
	if err := p.inflight.Acquire(ctx, 1); err != nil {
		return err
	}
	p.inflight.Release(1)
	return nil
}

func (p *Periodic) loop(ticker clock.Ticker, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			select {
			case <-stop:
				return
			default:
			}
			p.tick()
		}
	}
}

func (p *Periodic) tick() {
	if !p.inflight.TryAcquire(1) {
		p.mu.Lock()
		p.skipped++
		p.mu.Unlock()
		p.logger.Debug("analysis tick skipped, previous submission pending")
		return
	}

	p.mu.Lock()
	src, sink := p.src, p.sink
	p.mu.Unlock()
	if src == nil || sink == nil {
		p.inflight.Release(1)
		return
	}

	snap := src.Snapshot()
	if snap.Empty() {
		p.inflight.Release(1)
		return
	}

	p.mu.Lock()
	p.runs++
	p.mu.Unlock()
	p.mergeMu.Lock()
	epoch := p.epoch
	p.mergeMu.Unlock()
	go p.submit(snap, sink, epoch)
}

func (p *Periodic) submit(snap capture.Artifact, sink Merger, epoch uint64) {
	defer p.inflight.Release(1)

	ctx, cancel := context.WithTimeout(p.base, p.timeout)
	defer cancel()

	started := p.clk.Now()
	if p.Encoder != nil {
		encoded, err := p.Encoder.Encode(ctx, snap)
		if err != nil {
			p.logger.Warn("snapshot encode failed, sending wav", zap.Int("bytes", snap.Len()), zap.Error(err))
		} else if !encoded.Empty() {
			snap = encoded
		}
	}
	if p.MaxBytes > 0 && snap.Len() > p.MaxBytes {
		p.logger.Warn("snapshot over upload limit, analysis skipped",
			zap.Int("bytes", snap.Len()), zap.Int("limit", p.MaxBytes))
		return
	}
	ids, err := p.analyzer.Analyze(ctx, checklist.Input{Audio: snap})
	if err != nil {
		p.logger.Warn("checklist analysis failed", zap.Int("bytes", snap.Len()), zap.Error(err))
		return
	}
	p.mergeMu.Lock()
	if p.epoch != epoch {
		p.mergeMu.Unlock()
		p.logger.Debug("discarding analysis result from previous session")
		return
	}
	changed := sink.Merge(checklist.FilterKnown(ids))
	p.mergeMu.Unlock()
	p.logger.Info("checklist analysis merged",
		zap.Strings("detected", ids),
		zap.Strings("changed", changed),
		zap.Duration("took", p.clk.Now().Sub(started)),
	)
	if len(changed) > 0 && p.OnMerged != nil {
		p.OnMerged(changed)
	}
}
