package protocol

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	apperrors "github.com/louisbranch/koth/internal/platform/errors"
	"github.com/louisbranch/koth/internal/services/koth/king"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/louisbranch/koth/internal/services/koth/protocol"

// Config controls how requests are read and answered.
type Config struct {
	// DataPath is the persisted scoreboard served at /data.
	DataPath string
	// KingPath is the king file served at every other path.
	KingPath string
	// MaxLineBytes caps a single request line. Defaults to 8 KiB.
	MaxLineBytes int
	// MaxHeaderLines caps the number of lines before the blank line. Defaults to 100.
	MaxHeaderLines int
	// Verbose logs every served request.
	Verbose bool
}

// Handler answers one request per connection.
type Handler struct {
	cfg    Config
	logf   func(string, ...any)
	tracer trace.Tracer
}

// NewHandler validates cfg and returns a handler. logf may be nil.
func NewHandler(cfg Config, logf func(string, ...any)) (*Handler, error) {
	if strings.TrimSpace(cfg.DataPath) == "" {
		return nil, fmt.Errorf("data file path is required")
	}
	if strings.TrimSpace(cfg.KingPath) == "" {
		return nil, fmt.Errorf("king file path is required")
	}
	if cfg.MaxLineBytes <= 0 {
		cfg.MaxLineBytes = defaultMaxLineBytes
	}
	if cfg.MaxHeaderLines <= 0 {
		cfg.MaxHeaderLines = defaultMaxHeaderLines
	}
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &Handler{cfg: cfg, logf: logf, tracer: otel.Tracer(tracerName)}, nil
}

// ServeConn reads one request from rw and writes one response. It returns
// an error only when the request could not be read or the response could not
// be written; protocol-level failures are answered with a status line.
func (h *Handler) ServeConn(ctx context.Context, rw io.ReadWriter) error {
	if ctx == nil {
		ctx = context.Background()
	}
	_, span := h.tracer.Start(ctx, "koth.request")
	defer span.End()

	reader := bufio.NewReaderSize(rw, 4096)
	lines, err := readHead(reader, h.cfg.MaxLineBytes, h.cfg.MaxHeaderLines)
	if err != nil && apperrors.CodeOf(err) != apperrors.CodeRequestTooLarge {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read request")
		return fmt.Errorf("read request: %w", err)
	}

	var (
		status apperrors.Status
		body   string
	)
	if err == nil {
		status, body = h.respond(lines)
	} else {
		status = apperrors.StatusOf(err)
	}
	span.SetAttributes(attribute.Int("koth.status", status.Code))
	if status.Code >= 500 {
		span.SetStatus(codes.Error, status.Reason)
	}

	if err := writeResponse(rw, status, body); err != nil {
		span.RecordError(err)
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}

func (h *Handler) respond(lines []string) (apperrors.Status, string) {
	first := ""
	if len(lines) > 0 {
		first = lines[0]
	}
	req, err := ParseRequestLine(first)
	if err != nil {
		if h.cfg.Verbose {
			h.logf("rejected request %q: %v", first, err)
		}
		return apperrors.StatusOf(err), ""
	}
	if req.Method != MethodGet {
		if h.cfg.Verbose {
			h.logf("rejected method %s %s", req.Method, req.Path)
		}
		return apperrors.CodeMethodNotAllowed.Status(), ""
	}

	var body string
	if req.Path == DataPath {
		body, err = readData(h.cfg.DataPath)
	} else {
		body, err = king.Read(h.cfg.KingPath)
	}
	if err != nil {
		h.logf("serve %s: %v", req.Path, err)
		return apperrors.StatusOf(apperrors.Wrap(apperrors.CodeStorageUnavailable, "read state", err)), ""
	}
	if h.cfg.Verbose {
		h.logf("served %s %s (%d bytes)", req.Method, req.Path, len(body))
	}
	return apperrors.StatusOK, body
}

// readData returns the data file verbatim, or "" when it does not exist.
func readData(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read data file %s: %w", path, err)
	}
	return string(data), nil
}

func writeResponse(w io.Writer, status apperrors.Status, body string) error {
	_, err := fmt.Fprintf(w, "HTTP/1.1 %d %s\r\n\r\n%s", status.Code, status.Reason, body)
	return err
}
