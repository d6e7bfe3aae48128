// Package listener accepts protocol connections and serves them one at a time.
package listener

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/louisbranch/koth/internal/platform/timeouts"
	"golang.org/x/time/rate"
)

const defaultMaxAcceptFailures = 16

// ConnHandler serves a single connection.
type ConnHandler interface {
	ServeConn(ctx context.Context, rw io.ReadWriter) error
}

// Config controls accept and read behavior.
type Config struct {
	// ReadTimeout bounds how long one connection may take. Zero means no
	// deadline, so a stalled client holds the listener until it disconnects.
	ReadTimeout time.Duration
	// MaxAcceptFailures is the number of consecutive accept errors tolerated
	// before Serve gives up. Defaults to 16.
	MaxAcceptFailures int
	// AcceptBackoff spaces accept retries. Defaults to timeouts.AcceptBackoff.
	AcceptBackoff time.Duration
}

// Listener owns a bound socket.
type Listener struct {
	ln      net.Listener
	handler ConnHandler
	cfg     Config
	logf    func(string, ...any)
	limiter *rate.Limiter
}

// Listen binds a TCP socket on addr.
func Listen(addr string) (net.Listener, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, fmt.Errorf("listen address is required")
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	return ln, nil
}

// New wraps an already bound listener. logf may be nil.
func New(ln net.Listener, handler ConnHandler, cfg Config, logf func(string, ...any)) (*Listener, error) {
	if ln == nil {
		return nil, fmt.Errorf("listener is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("connection handler is required")
	}
	if cfg.ReadTimeout < 0 {
		return nil, fmt.Errorf("read timeout must not be negative")
	}
	if cfg.MaxAcceptFailures <= 0 {
		cfg.MaxAcceptFailures = defaultMaxAcceptFailures
	}
	if cfg.AcceptBackoff <= 0 {
		cfg.AcceptBackoff = timeouts.AcceptBackoff
	}
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &Listener{
		ln:      ln,
		handler: handler,
		cfg:     cfg,
		logf:    logf,
		limiter: rate.NewLimiter(rate.Every(cfg.AcceptBackoff), 1),
	}, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Close closes the socket. A running Serve returns nil.
func (l *Listener) Close() error {
	return l.ln.Close()
}

// Serve accepts connections until ctx is cancelled or the socket is closed.
// Connections are served sequentially on the calling goroutine.
func (l *Listener) Serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	stop := context.AfterFunc(ctx, func() {
		_ = l.ln.Close()
	})
	defer stop()

	l.logf("listening on %s", l.ln.Addr())
	failures := 0
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			failures++
			l.logf("accept: %v (%d/%d)", err, failures, l.cfg.MaxAcceptFailures)
			if failures >= l.cfg.MaxAcceptFailures {
				return fmt.Errorf("accept failed %d times in a row: %w", failures, err)
			}
			if waitErr := l.limiter.Wait(ctx); waitErr != nil {
				return nil
			}
			continue
		}
		failures = 0
		l.serveConn(ctx, conn)
	}
}

func (l *Listener) serveConn(ctx context.Context, conn net.Conn) {
	defer func() {
		if err := conn.Close(); err != nil {
			l.logf("close connection from %s: %v", conn.RemoteAddr(), err)
		}
	}()
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()
	if l.cfg.ReadTimeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(l.cfg.ReadTimeout)); err != nil {
			l.logf("set deadline for %s: %v", conn.RemoteAddr(), err)
			return
		}
	}
	if err := l.handler.ServeConn(ctx, conn); err != nil {
		l.logf("serve %s: %v", conn.RemoteAddr(), err)
	}
}
