package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"
)

// SocketEnv names the environment variable carrying the unix socket path a
// child-process entrypoint must listen on.
const SocketEnv = "STATICGEN_SOCKET"

const defaultStartTimeout = 10 * time.Second

// ExecLoader runs the entrypoint as a child process that serves HTTP on a unix
// socket next to the module file. Every module symbol resolves to an
// http.RoundTripper dialing that socket.
type ExecLoader struct {
	StartTimeout time.Duration
	Output       io.Writer
	Logger       *zap.Logger
}

// Load implements Loader.
func (l ExecLoader) Load(ctx context.Context, path string) (Module, error) {
	logger := l.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := l.StartTimeout
	if timeout <= 0 {
		timeout = defaultStartTimeout
	}
	output := l.Output
	if output == nil {
		output = os.Stderr
	}

	socket := path + ".sock"
	if err := os.Remove(socket); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("clear stale socket %s: %w", socket, err)
	}

	procCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	// #nosec G204 -- path is the entrypoint module written by this process.
	cmd := exec.CommandContext(procCtx, path)
	cmd.Env = append(os.Environ(), SocketEnv+"="+socket)
	cmd.Stdout = output
	cmd.Stderr = output
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start module %s: %w", path, err)
	}

	exited := make(chan error, 1)
	go func() {
		exited <- cmd.Wait()
	}()

	m := &execModule{
		socket: socket,
		cancel: cancel,
		exited: exited,
		logger: logger,
	}
	if err := m.waitReady(ctx, timeout); err != nil {
		_ = m.Close()
		return nil, err
	}
	m.transport = &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socket)
		},
		MaxIdleConns:    16,
		IdleConnTimeout: 30 * time.Second,
	}
	logger.Debug("module process ready", zap.String("module", path), zap.Int("pid", cmd.Process.Pid))
	return m, nil
}

type execModule struct {
	socket    string
	cancel    context.CancelFunc
	exited    chan error
	transport *http.Transport
	logger    *zap.Logger
	closed    bool
}

func (m *execModule) waitReady(ctx context.Context, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		conn, err := net.Dial("unix", m.socket)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for module socket: %w", ctx.Err())
		case err := <-m.exited:
			m.exited <- err
			return fmt.Errorf("module exited before listening: %w", errOrExit(err))
		case <-deadline.C:
			return fmt.Errorf("module did not listen on %s within %s", m.socket, timeout)
		case <-ticker.C:
		}
	}
}

// Lookup returns the socket transport for any name; the child process serves a
// single handler.
func (m *execModule) Lookup(name string) (any, error) {
	if m.transport == nil {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, name)
	}
	return http.RoundTripper(m.transport), nil
}

// Close stops the child process and removes its socket.
func (m *execModule) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	if m.transport != nil {
		m.transport.CloseIdleConnections()
	}
	m.cancel()
	<-m.exited
	if err := os.Remove(m.socket); err != nil && !errors.Is(err, os.ErrNotExist) {
		m.logger.Debug("remove module socket failed", zap.String("socket", m.socket), zap.Error(err))
	}
	return nil
}

func errOrExit(err error) error {
	if err == nil {
		return errors.New("exit status 0")
	}
	return err
}
