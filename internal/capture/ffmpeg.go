package capture

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"callsync/internal/errs"
)

const openProbeTimeout = 5 * time.Second

// FFmpegSource 通过 ffmpeg 子进程从系统麦克风读取 s16le PCM
// FFmpegSource reads s16le PCM from the system microphone through an ffmpeg subprocess
type FFmpegSource struct {
	Path        string
	InputFormat string
	Device      string
	format      Format

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdout io.ReadCloser
	reader *bufio.Reader
	stderr *syncBuffer
	once   sync.Once
}

func NewFFmpegSource(path, inputFormat, device string, f Format) *FFmpegSource {
	if strings.TrimSpace(path) == "" {
		path = "ffmpeg"
	}
	defFormat, defDevice := defaultInput()
	if strings.TrimSpace(inputFormat) == "" {
		inputFormat = defFormat
	}
	if strings.TrimSpace(device) == "" {
		device = defDevice
	}
	return &FFmpegSource{Path: path, InputFormat: inputFormat, Device: device, format: f}
}

func defaultInput() (string, string) {
	switch runtime.GOOS {
	case "darwin":
		return "avfoundation", ":default"
	case "windows":
		return "dshow", "audio=default"
	default:
		return "pulse", "default"
	}
}

func (s *FFmpegSource) Format() Format { return s.format }

func (s *FFmpegSource) args() []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-f", s.InputFormat,
		"-i", s.Device,
		"-ac", strconv.Itoa(s.format.Channels),
		"-ar", strconv.Itoa(s.format.SampleRate),
		"-f", "s16le",
		"pipe:1",
	}
}

// Open starts ffmpeg and waits for the first PCM bytes so that device
// errors surface here rather than on the first Read.
func (s *FFmpegSource) Open(ctx context.Context) error {
	bin, err := exec.LookPath(s.Path)
	if err != nil {
		return errs.Wrap(errs.KindDeviceNotFound, "open capture", fmt.Errorf("ffmpeg not found: %w", err))
	}

	cmd := exec.Command(bin, s.args()...)
	stderr := &syncBuffer{limit: 8 << 10}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errs.Wrap(errs.KindDeviceNotFound, "open capture", err)
	}
	if err := cmd.Start(); err != nil {
		return errs.Wrap(errs.KindDeviceNotFound, "open capture", err)
	}
	reader := bufio.NewReaderSize(stdout, 64<<10)

	probe := make(chan error, 1)
	go func() {
		_, err := reader.Peek(1)
		probe <- err
	}()

	var probeErr error
	select {
	case probeErr = <-probe:
	case <-ctx.Done():
		probeErr = ctx.Err()
	case <-time.After(openProbeTimeout):
		probeErr = errors.New("no audio received from input device")
	}
	if probeErr != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = probeErr.Error()
		}
		return errs.New(ClassifyDeviceError(msg), "open capture", msg)
	}

	s.mu.Lock()
	s.cmd = cmd
	s.stdout = stdout
	s.reader = reader
	s.stderr = stderr
	s.mu.Unlock()
	return nil
}

func (s *FFmpegSource) Read(p []byte) (int, error) {
	s.mu.Lock()
	r := s.reader
	s.mu.Unlock()
	if r == nil {
		return 0, io.EOF
	}
	n, err := r.Read(p)
	if err == io.EOF {
		if msg := strings.TrimSpace(s.stderr.String()); msg != "" {
			return n, errors.New(msg)
		}
	}
	return n, err
}

// Close interrupts ffmpeg and reaps it. Safe to call more than once.
func (s *FFmpegSource) Close() error {
	var closeErr error
	s.once.Do(func() {
		s.mu.Lock()
		cmd := s.cmd
		s.mu.Unlock()
		if cmd == nil || cmd.Process == nil {
			return
		}
		_ = cmd.Process.Signal(os.Interrupt)
		done := make(chan error, 1)
		go func() { done <- cmd.Wait() }()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			closeErr = cmd.Process.Kill()
			<-done
		}
	})
	return closeErr
}

// ClassifyDeviceError maps ffmpeg/OS diagnostics to a capture-open error kind.
func ClassifyDeviceError(msg string) errs.Kind {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "permission denied"),
		strings.Contains(lower, "not authorized"),
		strings.Contains(lower, "operation not permitted"),
		strings.Contains(lower, "access denied"):
		return errs.KindPermissionDenied
	case strings.Contains(lower, "device or resource busy"),
		strings.Contains(lower, "resource busy"),
		strings.Contains(lower, "device busy"),
		strings.Contains(lower, "already in use"):
		return errs.KindDeviceBusy
	default:
		return errs.KindDeviceNotFound
	}
}

// FFmpegEncoder 把 WAV 压缩为 webm/opus，码率来自配置
// FFmpegEncoder compresses a WAV artifact to webm/opus at the configured bitrate
type FFmpegEncoder struct {
	Path    string
	Bitrate int
}

func (e FFmpegEncoder) Encode(ctx context.Context, in Artifact) (Artifact, error) {
	if in.Empty() {
		return in, nil
	}
	path := e.Path
	if path == "" {
		path = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, path,
		"-hide_banner", "-loglevel", "error",
		"-f", "wav", "-i", "pipe:0",
		"-c:a", "libopus", "-b:a", strconv.Itoa(e.Bitrate),
		"-f", "webm", "pipe:1",
	)
	cmd.Stdin = bytes.NewReader(in.Data)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return Artifact{}, fmt.Errorf("encode audio: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return Artifact{Data: stdout.Bytes(), ContentType: "audio/webm", Ext: "webm"}, nil
}

type syncBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *syncBuffer) String() string {
	if b == nil {
		return ""
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
