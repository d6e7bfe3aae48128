package listener

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/louisbranch/koth/internal/services/koth/protocol"
)

type echoHandler struct {
	served atomic.Int32
}

func (h *echoHandler) ServeConn(_ context.Context, rw io.ReadWriter) error {
	line, err := bufio.NewReader(rw).ReadString('\n')
	if err != nil {
		return err
	}
	h.served.Add(1)
	_, err = fmt.Fprintf(rw, "echo %s", line)
	return err
}

type failingListener struct {
	accepts atomic.Int32
	closed  chan struct{}
}

func (f *failingListener) Accept() (net.Conn, error) {
	f.accepts.Add(1)
	return nil, errors.New("too many open files")
}

func (f *failingListener) Close() error {
	select {
	case <-f.closed:
	default:
		close(f.closed)
	}
	return nil
}

func (f *failingListener) Addr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)}
}

func startListener(t *testing.T, handler ConnHandler, cfg Config) (*Listener, context.CancelFunc, <-chan error) {
	t.Helper()
	ln, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	l, err := New(ln, handler, cfg, t.Logf)
	if err != nil {
		t.Fatalf("new listener: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- l.Serve(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Error("listener did not stop during cleanup")
		}
	})
	return l, cancel, done
}

func roundTrip(t *testing.T, addr, request string) string {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if err := conn.SetDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("set deadline: %v", err)
	}
	if _, err := io.WriteString(conn, request); err != nil {
		t.Fatalf("write request: %v", err)
	}
	data, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return string(data)
}

func TestServeHandlesSequentialConnections(t *testing.T) {
	handler := &echoHandler{}
	l, _, _ := startListener(t, handler, Config{})

	for i := 0; i < 3; i++ {
		got := roundTrip(t, l.Addr().String(), fmt.Sprintf("ping %d\n", i))
		if want := fmt.Sprintf("echo ping %d\n", i); got != want {
			t.Fatalf("response = %q, want %q", got, want)
		}
	}
	if got := handler.served.Load(); got != 3 {
		t.Fatalf("served = %d, want 3", got)
	}
}

func TestServeWithProtocolHandler(t *testing.T) {
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "data.json")
	kingPath := filepath.Join(dir, "king.txt")
	if err := os.WriteFile(dataPath, []byte(`{"alice":10}`), 0o644); err != nil {
		t.Fatalf("write data: %v", err)
	}
	if err := os.WriteFile(kingPath, []byte("alice\n"), 0o644); err != nil {
		t.Fatalf("write king: %v", err)
	}
	handler, err := protocol.NewHandler(protocol.Config{DataPath: dataPath, KingPath: kingPath}, t.Logf)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	l, _, _ := startListener(t, handler, Config{})
	addr := l.Addr().String()

	if got, want := roundTrip(t, addr, "GET /data HTTP/1.1\r\n\r\n"), "HTTP/1.1 200 OK\r\n\r\n{\"alice\":10}"; got != want {
		t.Fatalf("GET /data = %q, want %q", got, want)
	}
	if got, want := roundTrip(t, addr, "GET / HTTP/1.1\r\n\r\n"), "HTTP/1.1 200 OK\r\n\r\nalice"; got != want {
		t.Fatalf("GET / = %q, want %q", got, want)
	}
	if got, want := roundTrip(t, addr, "POST /data HTTP/1.1\r\n\r\n"), "HTTP/1.1 420 NOPE\r\n\r\n"; got != want {
		t.Fatalf("POST /data = %q, want %q", got, want)
	}
	if got, want := roundTrip(t, addr, "GET /\r\n\r\n"), "HTTP/1.1 400 Bad Request\r\n\r\n"; got != want {
		t.Fatalf("two tokens = %q, want %q", got, want)
	}
}

func TestServeReadTimeoutReleasesStalledClient(t *testing.T) {
	handler := &echoHandler{}
	l, _, _ := startListener(t, handler, Config{ReadTimeout: 50 * time.Millisecond})
	addr := l.Addr().String()

	stalled, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial stalled client: %v", err)
	}
	defer stalled.Close()

	if got := roundTrip(t, addr, "hello\n"); got != "echo hello\n" {
		t.Fatalf("response after stalled client = %q", got)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	l, cancel, done := startListener(t, &echoHandler{}, Config{})
	addr := l.Addr().String()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("serve did not stop after cancel")
	}
	if conn, err := net.DialTimeout("tcp", addr, 200*time.Millisecond); err == nil {
		conn.Close()
		t.Fatal("expected socket to be closed")
	}
}

func TestServeCancelReleasesClientMidRequest(t *testing.T) {
	handler, err := protocol.NewHandler(protocol.Config{
		DataPath: filepath.Join(t.TempDir(), "data.json"),
		KingPath: filepath.Join(t.TempDir(), "king.txt"),
	}, t.Logf)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	l, cancel, done := startListener(t, handler, Config{})

	conn, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if _, err := io.WriteString(conn, "GET / HTTP/1.1\r\n"); err != nil {
		t.Fatalf("write partial request: %v", err)
	}
	// Give the listener time to accept and block on the unfinished head.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("serve still blocked on a half-sent request after cancel")
	}
}

func TestServeReturnsErrorAfterConsecutiveAcceptFailures(t *testing.T) {
	fake := &failingListener{closed: make(chan struct{})}
	l, err := New(fake, &echoHandler{}, Config{MaxAcceptFailures: 4, AcceptBackoff: time.Millisecond}, t.Logf)
	if err != nil {
		t.Fatalf("new listener: %v", err)
	}

	err = l.Serve(context.Background())
	if err == nil {
		t.Fatal("expected hard error after repeated accept failures")
	}
	if got := fake.accepts.Load(); got != 4 {
		t.Fatalf("accepts = %d, want 4", got)
	}
}

func TestNewValidatesArguments(t *testing.T) {
	fake := &failingListener{closed: make(chan struct{})}
	if _, err := New(nil, &echoHandler{}, Config{}, nil); err == nil {
		t.Fatal("expected missing listener error")
	}
	if _, err := New(fake, nil, Config{}, nil); err == nil {
		t.Fatal("expected missing handler error")
	}
	if _, err := New(fake, &echoHandler{}, Config{ReadTimeout: -time.Second}, nil); err == nil {
		t.Fatal("expected negative timeout error")
	}
	if _, err := Listen(" "); err == nil {
		t.Fatal("expected empty address error")
	}
}
