package session

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"callsync/internal/analyzer"
	"callsync/internal/capture"
	"callsync/internal/checklist"
	"callsync/internal/clock"
	"callsync/internal/crm"
	"callsync/internal/errs"
	"callsync/internal/provider"
	"callsync/internal/storage"
)

// Encoder 上传前压缩音频；失败时回退为 WAV
// Encoder compresses audio before upload; on failure the WAV is uploaded as is
type Encoder interface {
	Encode(ctx context.Context, in capture.Artifact) (capture.Artifact, error)
}

// Deps 控制器的协作者 / Deps are the collaborators of a Controller
type Deps struct {
	// NewSource returns a fresh capture source for each recording.
	NewSource   func() capture.Source
	Analyzer    checklist.Analyzer
	Transcriber provider.Transcriber
	Notes       crm.NoteAttacher
	Store       storage.Store
	Blobs       storage.BlobStore
	Encoder     Encoder
	Clock       clock.Clock
	Logger      *zap.Logger
}

// Options 控制器参数 / Options tune a Controller
type Options struct {
	AnalysisInterval time.Duration
	// MaxDuration stops recording automatically; zero disables the limit.
	MaxDuration time.Duration
	Retry       provider.RetryPolicy
	// MaxUploadBytes rejects larger audio before upload; zero means provider.MaxUploadBytes.
	MaxUploadBytes int
}

// Controller 独占会话与清单，驱动录音、处理、上传状态机
// Controller exclusively owns the session and checklist and drives the
// record, process and upload state machine.
//
// Network calls never run under the controller lock, so pause, stop and reset
// stay responsive while a request is outstanding. Results that arrive after a
// reset are dropped by comparing the session generation.
type Controller struct {
	deps   Deps
	opts   Options
	logger *zap.Logger

	timer     *Timer
	periodic  *analyzer.Periodic
	checklist *checklist.Model

	mu         sync.Mutex
	state      State
	gen        uint64
	starting   bool
	id         string
	capture    *capture.Session
	audio      capture.Artifact
	elapsed    int
	dealID     int64
	dealName   string
	transcript string
	summary    string
	recorded   bool
	lastErr    error

	obsMu     sync.Mutex
	observers map[int]func(Event)
	nextObs   int
}

func NewController(deps Deps, opts Options) *Controller {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	deps.Clock = clock.OrReal(deps.Clock)
	if opts.AnalysisInterval <= 0 {
		opts.AnalysisInterval = 60 * time.Second
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = provider.MaxUploadBytes
	}
	c := &Controller{
		deps:      deps,
		opts:      opts,
		logger:    deps.Logger,
		timer:     NewTimer(deps.Clock),
		checklist: checklist.NewModel(),
		observers: map[int]func(Event){},
	}
	if deps.Analyzer != nil {
		c.periodic = analyzer.New(deps.Analyzer, opts.AnalysisInterval, deps.Clock, deps.Logger)
		c.periodic.OnMerged = func(changed []string) {
			c.emit(Event{Kind: EventChecklist, State: c.State(), Changed: changed})
		}
		c.periodic.MaxBytes = opts.MaxUploadBytes
		if deps.Encoder != nil {
			c.periodic.Encoder = deps.Encoder
		}
	}
	c.timer.OnTick = c.onTick
	return c
}

// Subscribe 注册事件回调，返回取消函数；回调在任意协程上执行，不得阻塞
// Subscribe registers fn for events and returns an unsubscribe func. fn runs on
// arbitrary goroutines and must not block.
func (c *Controller) Subscribe(fn func(Event)) func() {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	return func() {
		c.obsMu.Lock()
		defer c.obsMu.Unlock()
		delete(c.observers, id)
	}
}

func (c *Controller) emit(ev Event) {
	c.obsMu.Lock()
	fns := make([]func(Event), 0, len(c.observers))
	for _, fn := range c.observers {
		fns = append(fns, fn)
	}
	c.obsMu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// View returns a consistent snapshot for rendering.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := View{
		ID:             c.id,
		State:          c.state,
		ElapsedSeconds: c.elapsed,
		DealID:         c.dealID,
		DealName:       c.dealName,
		Transcript:     c.transcript,
		Summary:        c.summary,
		Checklist:      c.checklist.Items(),
		AudioBytes:     c.audio.Len(),
	}
	if c.state.Capturing() {
		v.ElapsedSeconds = c.timer.Seconds()
	}
	if c.lastErr != nil {
		v.LastError = c.lastErr.Error()
	}
	return v
}

// transition sets the state under c.mu and logs it.
func (c *Controller) transitionLocked(to State) {
	from := c.state
	c.state = to
	c.logger.Info("session state",
		zap.String("session_id", c.id),
		zap.Stringer("from", from),
		zap.Stringer("to", to),
	)
}

func invalid(op string, s State) error {
	return errs.New(errs.KindInvalidState, op, "not allowed while "+s.String())
}

// --- Recording ---

// Start 开始新录音；在 Stopped/Ready/Uploaded/Failed 状态下先隐式 Reset
// Start begins a new recording. From Stopped, Ready, Uploaded or Failed it resets first.
// Device errors surface immediately and leave the controller Idle with nothing held.
func (c *Controller) Start(ctx context.Context) error {
	const op = "start"
	c.mu.Lock()
	switch c.state {
	case Idle:
	case Stopped, Ready, Uploaded, Failed:
		c.mu.Unlock()
		c.Reset()
		c.mu.Lock()
	default:
		s := c.state
		c.mu.Unlock()
		return invalid(op, s)
	}
	if c.starting || c.state != Idle {
		s := c.state
		c.mu.Unlock()
		return invalid(op, s)
	}
	if c.deps.NewSource == nil {
		c.mu.Unlock()
		return errs.New(errs.KindDeviceNotFound, op, "no capture source configured")
	}
	c.starting = true
	c.gen++
	gen := c.gen
	id := storage.NewCallID()
	c.mu.Unlock()

	cs := capture.NewSession(id, c.deps.NewSource(), c.logger)
	cs.OnError = func(err error) { c.onCaptureError(gen, err) }
	openErr := cs.Open(ctx)

	c.mu.Lock()
	c.starting = false
	if openErr != nil {
		c.mu.Unlock()
		c.logger.Warn("capture open failed", zap.Error(openErr))
		return openErr
	}
	if c.gen != gen {
		c.mu.Unlock()
		cs.Dispose()
		return errs.New(errs.KindInvalidState, op, "session was reset while opening the device")
	}
	if err := cs.Start(); err != nil {
		c.mu.Unlock()
		cs.Dispose()
		return err
	}
	c.id = id
	c.capture = cs
	c.elapsed = 0
	c.checklist.Reset()
	c.timer.Reset()
	c.timer.Start()
	if c.periodic != nil {
		c.periodic.Start(cs, c.checklist)
	}
	c.transitionLocked(Recording)
	c.mu.Unlock()

	c.emit(Event{Kind: EventState, State: Recording})
	return nil
}

func (c *Controller) Pause() error {
	c.mu.Lock()
	if c.state != Recording {
		s := c.state
		c.mu.Unlock()
		return invalid("pause", s)
	}
	if err := c.capture.Pause(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.timer.Pause()
	if c.periodic != nil {
		c.periodic.Stop()
	}
	c.elapsed = c.timer.Seconds()
	c.transitionLocked(Paused)
	c.mu.Unlock()

	c.emit(Event{Kind: EventState, State: Paused})
	return nil
}

func (c *Controller) Resume() error {
	c.mu.Lock()
	if c.state != Paused {
		s := c.state
		c.mu.Unlock()
		return invalid("resume", s)
	}
	if err := c.capture.Resume(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.timer.Resume()
	if c.periodic != nil {
		c.periodic.Start(c.capture, c.checklist)
	}
	c.transitionLocked(Recording)
	c.mu.Unlock()

	c.emit(Event{Kind: EventState, State: Recording})
	return nil
}

// Stop 停止录音并保留完整音频
// Stop ends the recording and keeps the assembled audio for processing
func (c *Controller) Stop() error {
	c.mu.Lock()
	if !c.state.Capturing() {
		s := c.state
		c.mu.Unlock()
		return invalid("stop", s)
	}
	c.stopLocked()
	c.mu.Unlock()

	c.emit(Event{Kind: EventState, State: Stopped})
	return nil
}

func (c *Controller) stopLocked() {
	if c.periodic != nil {
		c.periodic.Stop()
	}
	c.timer.Pause()
	c.elapsed = c.timer.Seconds()
	art, ok := c.capture.Stop()
	if !ok {
		// the device failed concurrently; keep what it captured
		art = c.capture.Salvage()
	}
	c.audio = art
	c.transitionLocked(Stopped)
	c.logger.Info("recording stopped",
		zap.String("session_id", c.id),
		zap.Int("seconds", c.elapsed),
		zap.Int("bytes", art.Len()),
	)
}

func (c *Controller) onTick(seconds int) {
	limit := int(c.opts.MaxDuration / time.Second)
	c.mu.Lock()
	if c.state != Recording {
		c.mu.Unlock()
		return
	}
	c.elapsed = seconds
	if limit > 0 && seconds >= limit {
		c.logger.Info("max recording duration reached", zap.String("session_id", c.id), zap.Int("seconds", seconds))
		c.stopLocked()
		c.mu.Unlock()
		c.emit(Event{Kind: EventState, State: Stopped})
		return
	}
	c.mu.Unlock()
	c.emit(Event{Kind: EventTick, State: Recording, Seconds: seconds})
}

// onCaptureError 采集中途设备失败：转入 Failed 并尽力保留已采集音频
// onCaptureError moves a live recording to Failed and salvages what was captured
func (c *Controller) onCaptureError(gen uint64, err error) {
	c.mu.Lock()
	if gen != c.gen || !c.state.Capturing() {
		c.mu.Unlock()
		return
	}
	if c.periodic != nil {
		c.periodic.Stop()
	}
	c.timer.Pause()
	c.elapsed = c.timer.Seconds()
	c.audio = c.capture.Salvage()
	c.lastErr = err
	c.transitionLocked(Failed)
	c.mu.Unlock()

	c.logger.Error("capture failed", zap.Error(err))
	c.emit(Event{Kind: EventState, State: Failed, Err: err})
}

// Reset 回到 Idle：释放设备、清空清单与音频；返回前设备已释放
// Reset returns to Idle. The device is released, the timer zeroed, and the
// checklist and audio cleared before it returns. In-flight requests are not
// cancelled; their results are ignored.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.gen++
	cs := c.capture
	c.capture = nil
	if c.periodic != nil {
		c.periodic.Stop()
		c.periodic.Invalidate()
	}
	c.timer.Reset()
	c.checklist.Reset()
	c.audio = capture.Artifact{}
	c.elapsed = 0
	c.dealID, c.dealName = 0, ""
	c.transcript, c.summary = "", ""
	c.recorded = false
	c.lastErr = nil
	c.transitionLocked(Idle)
	c.id = ""
	c.mu.Unlock()

	if cs != nil {
		cs.Dispose()
	}
	c.emit(Event{Kind: EventState, State: Idle})
}

// Close resets and stops the analyzer for good.
func (c *Controller) Close() {
	c.Reset()
	if c.periodic != nil {
		c.periodic.Close()
	}
}

// --- Checklist ---

// ToggleChecklist 手动切换条目；之后自动分析不再改变它
// ToggleChecklist flips an item manually; analysis never changes it afterwards
func (c *Controller) ToggleChecklist(ctx context.Context, itemID string) (checklist.Item, error) {
	c.mu.Lock()
	if c.state == Idle {
		c.mu.Unlock()
		return checklist.Item{}, invalid("toggle checklist", Idle)
	}
	item, err := c.checklist.Toggle(itemID)
	if err != nil {
		c.mu.Unlock()
		return checklist.Item{}, errs.Wrap(errs.KindPreconditionFailed, "toggle checklist", err)
	}
	id, recorded := c.id, c.recorded
	c.mu.Unlock()

	c.emit(Event{Kind: EventChecklist, State: c.State(), Changed: []string{itemID}})
	if recorded {
		checked := c.checkedIDs()
		if _, err := c.deps.Store.UpdateCall(ctx, id, storage.CallPatch{Checklist: &checked}); err != nil {
			c.logger.Warn("persist checklist failed", zap.String("session_id", id), zap.Error(err))
		}
	}
	return item, nil
}

func (c *Controller) checkedIDs() []string {
	ids := []string{}
	for _, it := range c.checklist.Items() {
		if it.Checked {
			ids = append(ids, it.ID)
		}
	}
	return ids
}

// --- Linking & summary ---

// LinkRecord 关联 CRM 交易；幂等，记录已存在时立即持久化
// LinkRecord attaches the session to a CRM deal. It is idempotent and persists at
// once when a stored record exists.
func (c *Controller) LinkRecord(ctx context.Context, dealID int64, dealName string) error {
	const op = "link record"
	if dealID <= 0 {
		return errs.New(errs.KindPreconditionFailed, op, "deal id is required")
	}
	c.mu.Lock()
	switch c.state {
	case Recording, Paused, Stopped, Processing, Ready, Failed:
	default:
		s := c.state
		c.mu.Unlock()
		return invalid(op, s)
	}
	if c.dealID == dealID && c.dealName == dealName {
		c.mu.Unlock()
		return nil
	}
	c.dealID, c.dealName = dealID, dealName
	id, recorded, state := c.id, c.recorded, c.state
	c.mu.Unlock()

	c.logger.Info("deal linked", zap.String("session_id", id), zap.Int64("deal_id", dealID))
	c.emit(Event{Kind: EventState, State: state})
	if !recorded {
		return nil
	}
	_, err := c.deps.Store.UpdateCall(ctx, id, storage.CallPatch{DealID: &dealID, DealName: &dealName})
	if err != nil {
		return errs.Wrap(errs.KindTransientService, op, err)
	}
	return nil
}

// EditSummary replaces the summary of a Ready session and persists it.
func (c *Controller) EditSummary(ctx context.Context, text string) error {
	const op = "edit summary"
	c.mu.Lock()
	if c.state != Ready {
		s := c.state
		c.mu.Unlock()
		return invalid(op, s)
	}
	c.summary = text
	id := c.id
	c.mu.Unlock()

	if _, err := c.deps.Store.UpdateCall(ctx, id, storage.CallPatch{Summary: &text}); err != nil {
		return errs.Wrap(errs.KindTransientService, op, err)
	}
	c.emit(Event{Kind: EventState, State: Ready})
	return nil
}

// --- Processing ---

type processJob struct {
	gen      uint64
	id       string
	audio    capture.Artifact
	elapsed  int
	dealID   int64
	dealName string
	recorded bool
}

// Process 上传音频、转写并生成摘要；仅在 Stopped 或保留音频的 Failed 状态可调用
// Process uploads the audio, transcribes and summarizes it. It is accepted from
// Stopped, or from Failed while audio is still held, and returns InvalidState
// without side effects otherwise. Failure moves to Failed with the audio kept.
func (c *Controller) Process(ctx context.Context) error {
	const op = "process"
	c.mu.Lock()
	if (c.state != Stopped && c.state != Failed) || c.audio.Empty() {
		s := c.state
		c.mu.Unlock()
		if s == Stopped || s == Failed {
			return errs.New(errs.KindInvalidState, op, "no audio recorded")
		}
		return invalid(op, s)
	}
	if c.deps.Store == nil || c.deps.Blobs == nil || c.deps.Transcriber == nil {
		c.mu.Unlock()
		return errs.New(errs.KindPreconditionFailed, op, "processing collaborators are not configured")
	}
	job := processJob{
		gen:      c.gen,
		id:       c.id,
		audio:    c.audio,
		elapsed:  c.elapsed,
		dealID:   c.dealID,
		dealName: c.dealName,
		recorded: c.recorded,
	}
	c.lastErr = nil
	c.transitionLocked(Processing)
	c.mu.Unlock()
	c.emit(Event{Kind: EventState, State: Processing})

	res, blobPath, err := c.runProcess(ctx, job)
	if err != nil {
		return c.failProcess(job, err)
	}

	c.mu.Lock()
	if c.gen != job.gen {
		c.mu.Unlock()
		c.logger.Info("discarding processing result after reset", zap.String("session_id", job.id))
		return errs.New(errs.KindInvalidState, op, "session was reset during processing")
	}
	c.transcript = res.Transcript
	c.summary = res.Summary
	dealID, dealName := c.dealID, c.dealName
	c.mu.Unlock()

	checked := c.checkedIDs()
	ready := storage.StatusReady
	empty := ""
	_, err = c.deps.Store.UpdateCall(ctx, job.id, storage.CallPatch{
		Transcription: &res.Transcript,
		Summary:       &res.Summary,
		Checklist:     &checked,
		Status:        &ready,
		Error:         &empty,
		DealID:        &dealID,
		DealName:      &dealName,
	})
	if err != nil {
		return c.failProcess(job, errs.Wrap(errs.KindTransientService, "store result", err))
	}

	c.mu.Lock()
	current := c.gen == job.gen
	if current {
		c.transitionLocked(Ready)
	}
	c.mu.Unlock()
	if current {
		c.emit(Event{Kind: EventState, State: Ready})
	}

	if err := c.deps.Blobs.Delete(ctx, blobPath); err != nil {
		c.logger.Warn("delete processed audio failed", zap.String("session_id", job.id), zap.String("path", blobPath), zap.Error(err))
	} else if _, err := c.deps.Store.UpdateCall(ctx, job.id, storage.CallPatch{AudioPath: &empty}); err != nil {
		c.logger.Warn("clear audio path failed", zap.String("session_id", job.id), zap.Error(err))
	}
	return nil
}

func (c *Controller) runProcess(ctx context.Context, job processJob) (provider.Result, string, error) {
	upload := job.audio
	if c.deps.Encoder != nil {
		encoded, err := c.deps.Encoder.Encode(ctx, job.audio)
		if err != nil {
			c.logger.Warn("audio encode failed, uploading wav", zap.String("session_id", job.id), zap.Error(err))
		} else if !encoded.Empty() {
			upload = encoded
		}
	}
	blobPath := storage.BlobPath(job.id, upload.Ext)
	if upload.Len() > c.opts.MaxUploadBytes {
		return provider.Result{}, blobPath, errs.New(errs.KindPreconditionFailed, "upload audio",
			fmt.Sprintf("recording is %d bytes, over the %d byte upload limit; enable audio.encode or record shorter calls",
				upload.Len(), c.opts.MaxUploadBytes))
	}

	if err := c.persistProcessing(ctx, job, blobPath); err != nil {
		return provider.Result{}, blobPath, err
	}

	if err := c.deps.Blobs.Put(ctx, blobPath, bytes.NewReader(upload.Data), upload.ContentType); err != nil {
		return provider.Result{}, blobPath, errs.Wrap(errs.KindNetwork, "upload audio", err)
	}
	ok, err := c.deps.Blobs.Exists(ctx, blobPath)
	if err != nil {
		return provider.Result{}, blobPath, errs.Wrap(errs.KindNetwork, "verify audio", err)
	}
	if !ok {
		return provider.Result{}, blobPath, errs.New(errs.KindTransientService, "verify audio", "uploaded audio not found in storage")
	}

	policy := c.opts.Retry
	userRetry := policy.OnRetry
	policy.OnRetry = func(attempt int, err error) {
		c.logger.Warn("transcription retry", zap.String("session_id", job.id), zap.Int("attempt", attempt), zap.Error(err))
		if userRetry != nil {
			userRetry(attempt, err)
		}
	}
	var res provider.Result
	err = policy.Do(ctx, func(ctx context.Context) error {
		var callErr error
		res, callErr = c.deps.Transcriber.Transcribe(ctx, job.id, upload)
		return callErr
	})
	if err != nil {
		return provider.Result{}, blobPath, err
	}
	if strings.TrimSpace(res.Summary) == "" {
		return provider.Result{}, blobPath, errs.New(errs.KindMalformedResponse, "transcribe", "empty summary")
	}
	return res, blobPath, nil
}

// persistProcessing creates the record on the first attempt and flips it back to processing on retries.
func (c *Controller) persistProcessing(ctx context.Context, job processJob, blobPath string) error {
	processing := storage.StatusProcessing
	if job.recorded {
		empty := ""
		_, err := c.deps.Store.UpdateCall(ctx, job.id, storage.CallPatch{Status: &processing, Error: &empty, AudioPath: &blobPath})
		if err != nil {
			return errs.Wrap(errs.KindTransientService, "persist record", err)
		}
		return nil
	}
	rec := storage.CallRecord{
		ID:              job.id,
		DealID:          job.dealID,
		DealName:        job.dealName,
		AudioPath:       blobPath,
		DurationSeconds: job.elapsed,
		Status:          processing,
		Checklist:       c.checkedIDs(),
	}
	if err := c.deps.Store.CreateCall(ctx, rec); err != nil {
		return errs.Wrap(errs.KindTransientService, "persist record", err)
	}
	c.mu.Lock()
	if c.gen == job.gen {
		c.recorded = true
	}
	c.mu.Unlock()
	return nil
}

func (c *Controller) failProcess(job processJob, cause error) error {
	c.logger.Error("processing failed", zap.String("session_id", job.id), zap.Error(cause))

	c.mu.Lock()
	current := c.gen == job.gen
	recorded := c.recorded
	if current {
		c.lastErr = cause
		c.transitionLocked(Failed)
	}
	c.mu.Unlock()

	if recorded {
		failed := storage.StatusFailed
		msg := cause.Error()
		// 使用独立 context：调用方的 ctx 可能已经取消
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := c.deps.Store.UpdateCall(ctx, job.id, storage.CallPatch{Status: &failed, Error: &msg}); err != nil {
			c.logger.Warn("persist failure status failed", zap.String("session_id", job.id), zap.Error(err))
		}
	}
	if current {
		c.emit(Event{Kind: EventState, State: Failed, Err: cause})
	}
	return cause
}

// --- Upload ---

// Upload 把摘要作为笔记挂到已关联的交易；失败回到 Ready 且保留摘要
// Upload attaches the summary as a note on the linked deal. Without a linked deal
// or with an empty summary it fails with PreconditionFailed and changes nothing.
// A failed attach returns to Ready with the summary intact.
func (c *Controller) Upload(ctx context.Context) error {
	const op = "upload"
	c.mu.Lock()
	if c.state != Ready {
		s := c.state
		c.mu.Unlock()
		return invalid(op, s)
	}
	if c.dealID <= 0 {
		c.mu.Unlock()
		return errs.New(errs.KindPreconditionFailed, op, "no record selected")
	}
	if strings.TrimSpace(c.summary) == "" {
		c.mu.Unlock()
		return errs.New(errs.KindPreconditionFailed, op, "summary empty")
	}
	if c.deps.Notes == nil {
		c.mu.Unlock()
		return errs.New(errs.KindPreconditionFailed, op, "crm is not configured")
	}
	gen, id, dealID, summary := c.gen, c.id, c.dealID, c.summary
	c.lastErr = nil
	c.transitionLocked(Uploading)
	c.mu.Unlock()
	c.emit(Event{Kind: EventState, State: Uploading})

	noteID, err := c.deps.Notes.AddNote(ctx, dealID, summary)
	if err != nil {
		c.mu.Lock()
		current := c.gen == gen
		if current {
			c.lastErr = err
			c.transitionLocked(Ready)
		}
		c.mu.Unlock()
		c.logger.Error("note upload failed", zap.String("session_id", id), zap.Error(err))
		if current {
			c.emit(Event{Kind: EventState, State: Ready, Err: err})
		}
		return err
	}

	c.mu.Lock()
	current := c.gen == gen
	if current {
		c.transitionLocked(Uploaded)
	}
	c.mu.Unlock()

	uploaded := storage.StatusUploaded
	if _, err := c.deps.Store.UpdateCall(ctx, id, storage.CallPatch{Status: &uploaded, NoteID: &noteID}); err != nil {
		c.logger.Warn("persist uploaded status failed", zap.String("session_id", id), zap.Error(err))
	}
	if current {
		c.emit(Event{Kind: EventState, State: Uploaded})
	}
	return nil
}
