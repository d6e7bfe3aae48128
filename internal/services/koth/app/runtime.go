// Package app wires the scoring loop, the protocol listener and the optional
// health endpoint into one supervised runtime.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/louisbranch/koth/internal/platform/timeouts"
	"github.com/louisbranch/koth/internal/services/koth/listener"
	"github.com/louisbranch/koth/internal/services/koth/protocol"
	"github.com/louisbranch/koth/internal/services/koth/scoreboard"
	"github.com/louisbranch/koth/internal/services/koth/scoring"
	"github.com/louisbranch/koth/internal/services/koth/storage"
	kothsqlite "github.com/louisbranch/koth/internal/services/koth/storage/sqlite"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	// HealthServiceScoring reports whether the scoring loop is running.
	HealthServiceScoring = "koth.scoring"
	// HealthServiceListener reports whether the protocol listener is running.
	HealthServiceListener = "koth.listener"
)

// RuntimeConfig controls runtime startup and worker behavior.
type RuntimeConfig struct {
	Host         string
	Port         int
	DataPath     string
	KingPath     string
	TickPoints   uint64
	TickInterval time.Duration
	ReadTimeout  time.Duration
	// HealthAddr enables the gRPC health server when non-empty.
	HealthAddr string
	// JournalPath enables the SQLite award journal when non-empty.
	JournalPath string
	Verbose     bool
	// Logf defaults to log.Printf.
	Logf func(string, ...any)
}

// Runtime holds every resource bound during startup.
type Runtime struct {
	cfg      RuntimeConfig
	logf     func(string, ...any)
	loop     *scoring.Loop
	listener *listener.Listener
	journal  *kothsqlite.Store

	healthListener net.Listener
	grpcServer     *grpc.Server
	healthServer   *health.Server

	closeOnce sync.Once
	closeErr  error
}

// Run starts the runtime and blocks until ctx is cancelled or a worker fails.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	rt, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	return rt.Run(ctx)
}

// New loads the scoreboard, opens the journal and binds the sockets. Any
// failure here is fatal and releases what was already acquired.
func New(ctx context.Context, cfg RuntimeConfig) (*Runtime, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(cfg.DataPath) == "" {
		return nil, fmt.Errorf("data file path is required")
	}
	if strings.TrimSpace(cfg.KingPath) == "" {
		return nil, fmt.Errorf("king file path is required")
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port %d out of range", cfg.Port)
	}
	if cfg.Logf == nil {
		cfg.Logf = log.Printf
	}

	r := &Runtime{cfg: cfg, logf: cfg.Logf}
	ok := false
	defer func() {
		if !ok {
			_ = r.Close()
		}
	}()

	store := scoreboard.NewFileStore(cfg.DataPath)
	board, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load scoreboard: %w", err)
	}
	r.logf("loaded scoreboard from %s: %d king(s), total %d", cfg.DataPath, len(board), board.Total())

	var journal storage.AwardRecorder
	if path := strings.TrimSpace(cfg.JournalPath); path != "" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create journal dir: %w", err)
			}
		}
		r.journal, err = kothsqlite.Open(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("open award journal: %w", err)
		}
		journal = r.journal
	}

	r.loop, err = scoring.New(scoring.Config{
		KingPath: cfg.KingPath,
		Points:   cfg.TickPoints,
		Interval: cfg.TickInterval,
		Verbose:  cfg.Verbose,
	}, board, store, journal, r.logf)
	if err != nil {
		return nil, fmt.Errorf("create scoring loop: %w", err)
	}

	handler, err := protocol.NewHandler(protocol.Config{
		DataPath: cfg.DataPath,
		KingPath: cfg.KingPath,
		Verbose:  cfg.Verbose,
	}, r.logf)
	if err != nil {
		return nil, fmt.Errorf("create protocol handler: %w", err)
	}

	ln, err := listener.Listen(net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)))
	if err != nil {
		return nil, err
	}
	r.listener, err = listener.New(ln, handler, listener.Config{ReadTimeout: cfg.ReadTimeout}, r.logf)
	if err != nil {
		_ = ln.Close()
		return nil, fmt.Errorf("create listener: %w", err)
	}

	if addr := strings.TrimSpace(cfg.HealthAddr); addr != "" {
		r.healthListener, err = net.Listen("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("listen on health address %s: %w", addr, err)
		}
		r.grpcServer = grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
		r.healthServer = health.NewServer()
		grpc_health_v1.RegisterHealthServer(r.grpcServer, r.healthServer)
	}

	ok = true
	return r, nil
}

// Addr returns the protocol socket address.
func (r *Runtime) Addr() net.Addr {
	return r.listener.Addr()
}

// HealthAddr returns the health socket address, or nil when disabled.
func (r *Runtime) HealthAddr() net.Addr {
	if r.healthListener == nil {
		return nil
	}
	return r.healthListener.Addr()
}

// Run starts the scoring loop and the listener. When either stops the other
// is cancelled; the first error is returned. Resources are released on return.
func (r *Runtime) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	defer func() {
		if err := r.Close(); err != nil {
			r.logf("close runtime: %v", err)
		}
	}()

	serveErr := make(chan error, 1)
	if r.grpcServer != nil {
		r.setStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
		r.setStatus(HealthServiceScoring, grpc_health_v1.HealthCheckResponse_SERVING)
		r.setStatus(HealthServiceListener, grpc_health_v1.HealthCheckResponse_SERVING)
		go func() {
			serveErr <- r.grpcServer.Serve(r.healthListener)
		}()
		r.logf("health server listening at %v", r.healthListener.Addr())
	}

	g, gctx := errgroup.WithContext(ctx)
	workerCtx, cancel := context.WithCancel(gctx)
	defer cancel()

	g.Go(func() error {
		defer cancel()
		defer r.setStatus(HealthServiceScoring, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
		if err := r.loop.Run(workerCtx); err != nil {
			return fmt.Errorf("scoring loop: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		defer cancel()
		defer r.setStatus(HealthServiceListener, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
		if err := r.listener.Serve(workerCtx); err != nil {
			return fmt.Errorf("listener: %w", err)
		}
		return nil
	})

	err := g.Wait()
	r.setStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	r.stopHealth()
	if r.grpcServer != nil {
		if serr := <-serveErr; serr != nil && !errors.Is(serr, grpc.ErrServerStopped) {
			r.logf("health server: %v", serr)
		}
	}
	return err
}

// Close releases sockets and the journal. It is safe to call more than once.
func (r *Runtime) Close() error {
	r.closeOnce.Do(func() {
		var errs []error
		if r.listener != nil {
			if err := r.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				errs = append(errs, fmt.Errorf("close listener: %w", err))
			}
		}
		if r.healthListener != nil {
			if err := r.healthListener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				errs = append(errs, fmt.Errorf("close health listener: %w", err))
			}
		}
		r.stopHealth()
		if r.journal != nil {
			if err := r.journal.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close award journal: %w", err))
			}
		}
		r.closeErr = errors.Join(errs...)
	})
	return r.closeErr
}

func (r *Runtime) setStatus(service string, status grpc_health_v1.HealthCheckResponse_ServingStatus) {
	if r.healthServer == nil {
		return
	}
	r.healthServer.SetServingStatus(service, status)
}

// stopHealth drains the health server, forcing it down after timeouts.Shutdown.
func (r *Runtime) stopHealth() {
	if r.grpcServer == nil {
		return
	}
	r.healthServer.Shutdown()
	stopped := make(chan struct{})
	go func() {
		r.grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(timeouts.Shutdown):
		r.grpcServer.Stop()
	}
}
