// Package king reads the externally written king designation.
package king

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// Read returns the trimmed content of the king file, or "" when the file
// does not exist. Whether the content names a king is decided by Valid, so
// callers can still display a malformed signal verbatim.
func Read(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read king file %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Valid reports whether a trimmed signal names exactly one king: it must be
// non-empty and fit on a single line.
func Valid(signal string) bool {
	return signal != "" && !strings.Contains(signal, "\n")
}
