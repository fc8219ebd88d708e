package session

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"callsync/internal/capture"
	"callsync/internal/checklist"
	"callsync/internal/clock"
	"callsync/internal/provider"
	"callsync/internal/storage"
)

// tinyFormat makes one second of audio eight bytes long.
var tinyFormat = capture.Format{SampleRate: 4, Channels: 1}

func second() []byte { return make([]byte, tinyFormat.BytesPerSecond()) }

// testSource feeds PCM pushed by the test and blocks Read until data, failure or Close.
type testSource struct {
	openErr error

	mu      sync.Mutex
	cond    *sync.Cond
	queue   [][]byte
	closed  bool
	failErr error
	closes  int
	waiting bool
}

func newTestSource() *testSource {
	s := &testSource{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *testSource) Format() capture.Format { return tinyFormat }

func (s *testSource) Open(context.Context) error { return s.openErr }

func (s *testSource) Read(p []byte) (int, error) {
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
	if len(s.queue) == 0 {
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

func (s *testSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.closes++
	s.cond.Broadcast()
	return nil
}

// push returns once the reader drained data and blocked again, so it has been accumulated.
func (s *testSource) push(data []byte) {
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

func (s *testSource) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
	s.cond.Broadcast()
}

func (s *testSource) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// scriptedTranscriber returns queued errors first, then the result.
type scriptedTranscriber struct {
	mu     sync.Mutex
	errs   []error
	result provider.Result
	calls  int
	exts   []string
	gate   chan struct{}
	called chan struct{}
}

func (f *scriptedTranscriber) Transcribe(ctx context.Context, sessionID string, audio capture.Artifact) (provider.Result, error) {
	f.mu.Lock()
	f.calls++
	f.exts = append(f.exts, audio.Ext)
	gate, called := f.gate, f.called
	var err error
	if len(f.errs) > 0 {
		err = f.errs[0]
		f.errs = f.errs[1:]
	}
	res := f.result
	f.mu.Unlock()

	if called != nil {
		called <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return provider.Result{}, ctx.Err()
		}
	}
	if err != nil {
		return provider.Result{}, err
	}
	if audio.Empty() {
		return provider.Result{}, errors.New("empty audio")
	}
	return res, nil
}

func (f *scriptedTranscriber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type note struct {
	dealID  int64
	content string
}

type fakeNotes struct {
	mu     sync.Mutex
	err    error
	notes  []note
	gate   chan struct{}
	called chan struct{}
}

func (f *fakeNotes) AddNote(ctx context.Context, dealID int64, content string) (int64, error) {
	if f.called != nil {
		f.called <- struct{}{}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.notes = append(f.notes, note{dealID: dealID, content: content})
	return int64(100 + len(f.notes)), nil
}

// stubAnalyzer always detects the same ids.
type stubAnalyzer struct{ ids []string }

func (s stubAnalyzer) Analyze(context.Context, checklist.Input) ([]string, error) {
	return s.ids, nil
}

// fixedEncoder returns out for any input, or err when set.
type fixedEncoder struct {
	out capture.Artifact
	err error
}

func (e fixedEncoder) Encode(context.Context, capture.Artifact) (capture.Artifact, error) {
	return e.out, e.err
}

// inputRecorder remembers the extension of every snapshot it analyzes.
type inputRecorder struct {
	mu   sync.Mutex
	exts []string
}

func (r *inputRecorder) Analyze(_ context.Context, in checklist.Input) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exts = append(r.exts, in.Audio.Ext)
	return nil, nil
}

func (r *inputRecorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.exts...)
}

type harness struct {
	ctrl  *Controller
	clk   *clock.Fake
	src   *testSource
	trans *scriptedTranscriber
	notes *fakeNotes
	store *storage.SQLiteStore
	blobs *storage.FSBlobStore
}

func newHarness(t *testing.T, mutate func(*Deps, *Options)) *harness {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewSQLiteStore(filepath.Join(dir, "calls.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	blobs, err := storage.NewFSBlobStore(filepath.Join(dir, "blobs"))
	require.NoError(t, err)

	h := &harness{
		clk:   clock.NewFake(time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)),
		src:   newTestSource(),
		trans: &scriptedTranscriber{result: provider.Result{Transcript: "bonjour", Summary: "Résumé de l'appel"}},
		notes: &fakeNotes{},
		store: store,
		blobs: blobs,
	}
	deps := Deps{
		NewSource:   func() capture.Source { return h.src },
		Transcriber: h.trans,
		Notes:       h.notes,
		Store:       store,
		Blobs:       blobs,
		Clock:       h.clk,
	}
	opts := Options{Retry: provider.RetryPolicy{Attempts: 3, Base: time.Millisecond}}
	if mutate != nil {
		mutate(&deps, &opts)
	}
	h.ctrl = NewController(deps, opts)
	t.Cleanup(h.ctrl.Close)
	return h
}

// record starts a session and feeds n seconds of audio.
func (h *harness) record(t *testing.T, n int) {
	t.Helper()
	require.NoError(t, h.ctrl.Start(context.Background()))
	for i := 0; i < n; i++ {
		h.src.push(second())
		h.clk.Advance(time.Second)
	}
}
