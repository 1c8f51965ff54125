// Package logging writes murmur's runtime log as JSON lines under the XDG
// state directory.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/rbright/murmur/internal/version"
)

const (
	logFileName = "log.jsonl"
	// rotateBytes is the size past which the previous log is kept as log.jsonl.1.
	rotateBytes = 4 << 20
)

// Runtime is an open log file and the logger writing to it.
type Runtime struct {
	Logger *slog.Logger
	Path   string
	file   *os.File
}

func (r Runtime) Close() error {
	if r.file == nil {
		return nil
	}
	return r.file.Close()
}

// New opens $XDG_STATE_HOME/murmur/log.jsonl (or ~/.local/state/murmur).
// MURMUR_LOG_LEVEL selects debug, info, warn, or error.
func New() (Runtime, error) {
	path, err := resolveLogPath()
	if err != nil {
		return Runtime{}, err
	}
	return Open(path, levelFromEnv())
}

// Open appends to path, rotating it first when it has grown past rotateBytes.
func Open(path string, level slog.Level) (Runtime, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return Runtime{}, fmt.Errorf("create log dir: %w", err)
	}
	if err := rotate(path); err != nil {
		return Runtime{}, err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return Runtime{}, fmt.Errorf("open log file: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level})).
		With("pid", os.Getpid(), "version", version.Version)
	return Runtime{Logger: logger, Path: path, file: f}, nil
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func rotate(path string) error {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil
	case err != nil:
		return fmt.Errorf("stat log file: %w", err)
	case info.Size() < rotateBytes:
		return nil
	}
	if err := os.Rename(path, path+".1"); err != nil {
		return fmt.Errorf("rotate log file: %w", err)
	}
	return nil
}

func levelFromEnv() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(os.Getenv("MURMUR_LOG_LEVEL")))); err != nil {
		return slog.LevelInfo
	}
	return level
}

func resolveLogPath() (string, error) {
	base := strings.TrimSpace(os.Getenv("XDG_STATE_HOME"))
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve log path: %w", err)
		}
		base = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(base, "murmur", logFileName), nil
}
