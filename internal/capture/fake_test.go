package capture

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"
)

// fakeSource feeds PCM pushed by the test and blocks Read until data, failure or Close.
type fakeSource struct {
	format  Format
	openErr error

	mu      sync.Mutex
	cond    *sync.Cond
	queue   [][]byte
	closed  bool
	failErr error
	opened  bool
	closes  int
	waiting bool
}

func newFakeSource(f Format) *fakeSource {
	s := &fakeSource{format: f}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *fakeSource) Format() Format { return s.format }

func (s *fakeSource) Open(ctx context.Context) error {
	if s.openErr != nil {
		return s.openErr
	}
	s.mu.Lock()
	s.opened = true
	s.mu.Unlock()
	return nil
}

func (s *fakeSource) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queue) == 0 && !s.closed && s.failErr == nil {
		s.waiting = true
		s.cond.Broadcast()
		s.cond.Wait()
	}
	s.waiting = false
	if s.closed {
		return 0, io.EOF
	}
	if len(s.queue) == 0 && s.failErr != nil {
		return 0, s.failErr
	}
	n := copy(p, s.queue[0])
	if n < len(s.queue[0]) {
		s.queue[0] = s.queue[0][n:]
	} else {
		s.queue = s.queue[1:]
	}
	return n, nil
}

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.closes++
	s.cond.Broadcast()
	return nil
}

// push queues data and returns once the reader has drained it and is blocked
// again, which means the previous read has been accumulated.
func (s *fakeSource) push(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.queue = append(s.queue, append([]byte(nil), data...))
	s.waiting = false
	s.cond.Broadcast()
	for !(len(s.queue) == 0 && s.waiting) && !s.closed {
		s.cond.Wait()
	}
}

func (s *fakeSource) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
	s.cond.Broadcast()
}

func (s *fakeSource) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

var errUnplugged = errors.New("input/output error")

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
