package scoreboard

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/louisbranch/koth/internal/platform/errors"
)

const dataFileMode = 0o644

// FileStore persists a board as a flat JSON object at Path.
type FileStore struct {
	Path string
}

// NewFileStore returns a store for the data file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// Load reads the data file. A missing file yields an empty board; any
// document that is not a flat object of non-negative integers is reported
// as CodeScoreboardCorrupt.
func (s *FileStore) Load() (Board, error) {
	if s == nil || strings.TrimSpace(s.Path) == "" {
		return nil, fmt.Errorf("data file path is required")
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return New(), nil
		}
		return nil, fmt.Errorf("read data file %s: %w", s.Path, err)
	}
	board, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", s.Path, err)
	}
	return board, nil
}

// Save overwrites the data file with the full board. The document is
// written to a sibling temp file and renamed into place, so readers see
// either the previous snapshot or the new one.
func (s *FileStore) Save(board Board) error {
	if s == nil || strings.TrimSpace(s.Path) == "" {
		return fmt.Errorf("data file path is required")
	}
	data, err := Encode(board)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.Path), "."+filepath.Base(s.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp data file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp data file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp data file: %w", err)
	}
	if err := os.Chmod(tmpPath, dataFileMode); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp data file: %w", err)
	}
	if err := os.Rename(tmpPath, s.Path); err != nil {
		cleanup()
		return fmt.Errorf("replace data file %s: %w", s.Path, err)
	}
	return nil
}

// Encode serializes the board as compact JSON with sorted keys.
func Encode(board Board) ([]byte, error) {
	if board == nil {
		board = New()
	}
	data, err := json.Marshal(map[string]uint64(board))
	if err != nil {
		return nil, fmt.Errorf("encode scoreboard: %w", err)
	}
	return data, nil
}

// Decode parses a persisted snapshot.
func Decode(data []byte) (Board, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, apperrors.New(apperrors.CodeScoreboardCorrupt, "scoreboard document is empty")
	}
	if trimmed[0] != '{' {
		return nil, apperrors.New(apperrors.CodeScoreboardCorrupt, "scoreboard document is not an object")
	}

	var raw map[string]uint64
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeScoreboardCorrupt, "decode scoreboard", err)
	}
	board := make(Board, len(raw))
	for id, score := range raw {
		if id == "" {
			return nil, apperrors.New(apperrors.CodeScoreboardCorrupt, "scoreboard has an empty participant identifier")
		}
		board[id] = score
	}
	return board, nil
}
