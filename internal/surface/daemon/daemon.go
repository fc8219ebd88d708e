package daemon

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"callsync/internal/errs"
	"callsync/internal/surface"
)

// SocketName 默认套接字文件名 / SocketName is the default socket file under the data dir
const SocketName = "callsync.sock"

// DefaultTimeout bounds a client request when none is configured.
const DefaultTimeout = 10 * time.Second

const maxLineBytes = 1 << 20

// SocketPath returns the configured socket, or the default one under dataDir.
func SocketPath(configured, dataDir string) string {
	if configured != "" {
		return configured
	}
	return filepath.Join(dataDir, SocketName)
}

// Server 通过 unix 套接字接收换行分隔的 JSON 命令
// Server accepts newline-delimited JSON commands on a unix socket.
//
// Commands run on the server context, so a client that times out or
// disconnects does not abort an operation that is already running.
type Server struct {
	Socket   string
	Dispatch *surface.Dispatcher
	Logger   *zap.Logger
}

// Run 监听直到 ctx 结束；返回前删除套接字文件
// Run serves until ctx ends and removes the socket file before returning
func (s *Server) Run(ctx context.Context) error {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(s.Socket), 0o700); err != nil {
		return fmt.Errorf("create socket dir: %w", err)
	}
	if err := removeStale(s.Socket); err != nil {
		return err
	}
	ln, err := net.Listen("unix", s.Socket)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.Socket, err)
	}
	defer os.Remove(s.Socket)
	if err := os.Chmod(s.Socket, 0o600); err != nil {
		_ = ln.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}
	logger.Info("daemon listening", zap.String("socket", s.Socket))

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		conns = map[net.Conn]struct{}{}
	)
	shutdown := sync.OnceFunc(func() {
		_ = ln.Close()
		mu.Lock()
		for c := range conns {
			_ = c.Close()
		}
		mu.Unlock()
	})
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		shutdown()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			shutdown()
			wg.Wait()
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		mu.Lock()
		conns[conn] = struct{}{}
		mu.Unlock()
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.serveConn(ctx, conn, logger)
			mu.Lock()
			delete(conns, conn)
			mu.Unlock()
			_ = conn.Close()
		}()
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn, logger *zap.Logger) {
	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 0, 4096), maxLineBytes)
	enc := json.NewEncoder(conn)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var cmd surface.Command
		var resp surface.Response
		if err := json.Unmarshal(line, &cmd); err != nil {
			resp = surface.Response{Error: fmt.Sprintf("decode command: %v", err), Kind: errs.KindPreconditionFailed.String()}
		} else {
			resp = s.Dispatch.Dispatch(ctx, cmd)
		}
		if err := enc.Encode(resp); err != nil {
			logger.Debug("write response failed", zap.Error(err))
			return
		}
	}
	if err := sc.Err(); err != nil && ctx.Err() == nil {
		logger.Debug("read command failed", zap.Error(err))
	}
}

// removeStale deletes a leftover socket that nobody is listening on.
func removeStale(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	conn, err := net.DialTimeout("unix", path, 200*time.Millisecond)
	if err == nil {
		_ = conn.Close()
		return errs.New(errs.KindDeviceBusy, "daemon", "another daemon is listening on "+path)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove stale socket: %w", err)
	}
	return nil
}

// Client 向守护进程发送单条命令，每次请求都有明确超时
// Client sends one command per connection to a running daemon with an explicit timeout
type Client struct {
	Socket  string
	Timeout time.Duration
}

// Do 发送命令并等待应答；超时返回 NetworkError，服务端操作不会被取消
// Do sends cmd and waits for the reply. A timeout surfaces as a network error;
// the operation keeps running on the daemon.
func (c *Client) Do(ctx context.Context, cmd surface.Command) (surface.Response, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	op := "daemon " + string(cmd.Op)
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.Socket)
	if err != nil {
		return surface.Response{}, errs.Wrap(errs.KindNetwork, op, err)
	}
	defer conn.Close()
	deadline, _ := ctx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		return surface.Response{}, errs.Wrap(errs.KindNetwork, op, err)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	if err := json.NewEncoder(conn).Encode(cmd); err != nil {
		return surface.Response{}, c.ioErr(op, timeout, err)
	}
	rd := bufio.NewReaderSize(conn, 64*1024)
	line, err := rd.ReadBytes('\n')
	if err != nil {
		return surface.Response{}, c.ioErr(op, timeout, err)
	}
	var resp surface.Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return surface.Response{}, errs.Wrap(errs.KindMalformedResponse, op, err)
	}
	return resp, nil
}

func (c *Client) ioErr(op string, timeout time.Duration, err error) error {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return errs.New(errs.KindNetwork, op, fmt.Sprintf("no reply within %s", timeout))
	}
	return errs.Wrap(errs.KindNetwork, op, err)
}
