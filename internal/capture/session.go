package capture

import (
	"context"
	"errors"
	"io"
	"sync"

	"go.uber.org/zap"

	"callsync/internal/errs"
)

type phase int

const (
	phaseNew phase = iota
	phaseOpen
	phaseCapturing
	phasePaused
	phaseStopped
	phaseFailed
	phaseDisposed
)

const readBufferSize = 4096

// Session 管理一次硬件采集：按 1 秒增量累积 PCM，可随时快照，退出路径上必定释放设备
// Session owns one hardware capture. PCM accumulates in 1-second increments, snapshots
// never disturb capture, and every exit path releases the device.
type Session struct {
	id     string
	src    Source
	format Format
	logger *zap.Logger

	// OnError 在采集中途设备失败时调用（在采集协程中）；设备已释放，已累积数据保留
	// OnError runs on the capture goroutine after a mid-capture device failure; the device is released and accumulated data kept
	OnError func(error)

	mu       sync.Mutex
	phase    phase
	chunks   [][]byte
	pending  []byte
	held     bool
	closing  bool
	readDone chan struct{}
}

// NewSession binds a capture to src. The id identifies the owner of the device lock.
func NewSession(id string, src Source, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		id:     id,
		src:    src,
		format: src.Format(),
		logger: logger.With(zap.String("session_id", id)),
	}
}

// Open 获取麦克风；失败时不持有任何资源
// Open requests the microphone. On failure no resources are held.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != phaseNew {
		return errs.New(errs.KindInvalidState, "open capture", "capture already opened")
	}
	if err := acquireDevice(s.id); err != nil {
		return err
	}
	if err := s.src.Open(ctx); err != nil {
		releaseDevice(s.id)
		if errs.KindOf(err) == errs.KindUnknown {
			err = errs.Wrap(errs.KindDeviceNotFound, "open capture", err)
		}
		return err
	}
	s.held = true
	s.phase = phaseOpen
	return nil
}

// Start begins accumulating data from the opened device.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != phaseOpen {
		return errs.New(errs.KindInvalidState, "start capture", "capture is not open")
	}
	s.phase = phaseCapturing
	s.readDone = make(chan struct{})
	go s.readLoop(s.readDone)
	return nil
}

// Pause 暂停累积；设备保持打开，期间读到的数据被丢弃
// Pause suspends accumulation. The device stays open and data read meanwhile is dropped.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != phaseCapturing {
		return errs.New(errs.KindInvalidState, "pause capture", "capture is not running")
	}
	s.phase = phasePaused
	return nil
}

func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != phasePaused {
		return errs.New(errs.KindInvalidState, "resume capture", "capture is not paused")
	}
	s.phase = phaseCapturing
	return nil
}

// Snapshot returns a WAV copy of everything accumulated so far without
// disturbing capture. It is empty when nothing has been accumulated yet.
func (s *Session) Snapshot() Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return EncodeWAV(s.assembleLocked(), s.format)
}

// Stop 停止采集并无条件释放设备，返回完整音频；未在采集时返回 false 且无副作用
// Stop halts capture, releases the device unconditionally and returns the assembled
// artifact. When not capturing it returns false and does nothing.
func (s *Session) Stop() (Artifact, bool) {
	s.mu.Lock()
	if s.phase != phaseCapturing && s.phase != phasePaused {
		s.mu.Unlock()
		return Artifact{}, false
	}
	s.phase = phaseStopped
	s.mu.Unlock()

	s.releaseStream()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushPendingLocked()
	return EncodeWAV(s.assembleLocked(), s.format), true
}

// Salvage assembles whatever was accumulated before a device failure.
func (s *Session) Salvage() Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != phaseFailed {
		return Artifact{}
	}
	return EncodeWAV(s.assembleLocked(), s.format)
}

// Dispose 在任意退出路径释放设备并丢弃已累积数据；可重复调用
// Dispose releases the device on any exit path and drops accumulated data. Safe to call repeatedly.
func (s *Session) Dispose() {
	s.mu.Lock()
	if s.phase == phaseDisposed {
		s.mu.Unlock()
		return
	}
	s.phase = phaseDisposed
	s.mu.Unlock()

	s.releaseStream()

	s.mu.Lock()
	s.chunks = nil
	s.pending = nil
	s.mu.Unlock()
}

// Capturing reports whether the device is open and accumulating or paused.
func (s *Session) Capturing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase == phaseCapturing || s.phase == phasePaused
}

// Increments returns the number of completed 1-second increments.
func (s *Session) Increments() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunks)
}

// releaseStream closes the source and waits for the read loop. It must be called without s.mu held.
func (s *Session) releaseStream() {
	s.mu.Lock()
	if !s.held {
		s.mu.Unlock()
		return
	}
	s.held = false
	s.closing = true
	done := s.readDone
	s.mu.Unlock()

	if err := s.src.Close(); err != nil {
		s.logger.Warn("close capture source", zap.Error(err))
	}
	if done != nil {
		<-done
	}
	releaseDevice(s.id)
}

func (s *Session) readLoop(done chan struct{}) {
	defer close(done)
	buf := make([]byte, readBufferSize)
	for {
		n, err := s.src.Read(buf)
		if n > 0 {
			s.accumulate(buf[:n])
		}
		if err == nil {
			continue
		}

		s.mu.Lock()
		closing := s.closing
		s.mu.Unlock()
		if closing {
			return
		}
		s.fail(err)
		return
	}
}

func (s *Session) accumulate(p []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != phaseCapturing {
		return
	}
	s.pending = append(s.pending, p...)
	size := s.format.BytesPerSecond()
	if size <= 0 {
		return
	}
	for len(s.pending) >= size {
		chunk := make([]byte, size)
		copy(chunk, s.pending[:size])
		s.chunks = append(s.chunks, chunk)
		s.pending = append(s.pending[:0], s.pending[size:]...)
	}
}

// fail runs on the read loop after an unexpected source error.
func (s *Session) fail(cause error) {
	s.mu.Lock()
	if s.phase != phaseCapturing && s.phase != phasePaused {
		s.mu.Unlock()
		return
	}
	s.phase = phaseFailed
	s.flushPendingLocked()
	s.held = false
	s.closing = true
	s.mu.Unlock()

	if err := s.src.Close(); err != nil {
		s.logger.Warn("close capture source after failure", zap.Error(err))
	}
	releaseDevice(s.id)

	if errors.Is(cause, io.EOF) {
		cause = errors.New("capture stream ended unexpectedly")
	}
	err := errs.Wrap(errs.KindDeviceNotFound, "capture", cause)
	s.logger.Error("capture device failed", zap.Error(err))
	if s.OnError != nil {
		s.OnError(err)
	}
}

func (s *Session) flushPendingLocked() {
	if len(s.pending) == 0 {
		return
	}
	chunk := make([]byte, len(s.pending))
	copy(chunk, s.pending)
	s.chunks = append(s.chunks, chunk)
	s.pending = nil
}

func (s *Session) assembleLocked() []byte {
	total := len(s.pending)
	for _, c := range s.chunks {
		total += len(c)
	}
	if total == 0 {
		return nil
	}
	out := make([]byte, 0, total)
	for _, c := range s.chunks {
		out = append(out, c...)
	}
	return append(out, s.pending...)
}
