// Package protocol serves the minimal line-based request protocol.
package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	apperrors "github.com/louisbranch/koth/internal/platform/errors"
)

const (
	// MethodGet is the only method the protocol serves.
	MethodGet = "GET"
	// DataPath is the path that returns the persisted scoreboard.
	DataPath = "/data"

	defaultMaxLineBytes   = 8 << 10
	defaultMaxHeaderLines = 100
)

// Request is a parsed request line.
type Request struct {
	Method  string
	Path    string
	Version string
}

// ParseRequestLine splits line on whitespace into method, path and version.
// Any other token count is a malformed request.
func ParseRequestLine(line string) (Request, error) {
	parts := strings.Fields(line)
	if len(parts) != 3 {
		return Request{}, apperrors.New(apperrors.CodeMalformedRequest, fmt.Sprintf("malformed request line: %d token(s)", len(parts)))
	}
	return Request{Method: parts[0], Path: parts[1], Version: parts[2]}, nil
}

// readHead reads lines until a blank line or EOF and returns them without
// their terminators. Lines longer than maxLine or more than maxLines lines
// fail with CodeRequestTooLarge.
func readHead(r *bufio.Reader, maxLine, maxLines int) ([]string, error) {
	var lines []string
	for {
		line, err := readLine(r, maxLine)
		if err != nil {
			if errors.Is(err, io.EOF) {
				if line != "" {
					lines = append(lines, line)
				}
				return lines, nil
			}
			return lines, err
		}
		if line == "" {
			return lines, nil
		}
		if len(lines) == maxLines {
			return lines, apperrors.New(apperrors.CodeRequestTooLarge, "too many request lines")
		}
		lines = append(lines, line)
	}
}

func readLine(r *bufio.Reader, maxLine int) (string, error) {
	var buf bytes.Buffer
	for {
		chunk, isPrefix, err := r.ReadLine()
		buf.Write(chunk)
		if buf.Len() > maxLine {
			return "", apperrors.New(apperrors.CodeRequestTooLarge, "request line too long")
		}
		if err != nil {
			return buf.String(), err
		}
		if !isPrefix {
			return buf.String(), nil
		}
	}
}
