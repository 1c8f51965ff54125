package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

const socketName = "murmur.sock"

var ErrAlreadyRunning = errors.New("murmur session already running")

// RuntimeSocketPath returns $XDG_RUNTIME_DIR/murmur.sock.
func RuntimeSocketPath() (string, error) {
	runtimeDir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR"))
	if runtimeDir == "" {
		return "", errors.New("XDG_RUNTIME_DIR is not set")
	}
	return filepath.Join(runtimeDir, socketName), nil
}

// Acquire makes the caller the session owner by listening on path. A live
// owner yields ErrAlreadyRunning; a stale socket file is removed and retried.
// A socket that accepts but never answers is left in place.
func Acquire(ctx context.Context, path string, pingTimeout time.Duration, retries int) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("ensure runtime socket dir: %w", err)
	}

	for attempt := 0; ; attempt++ {
		listener, err := net.Listen("unix", path)
		if err == nil {
			_ = os.Chmod(path, 0o600)
			return listener, nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("listen unix %s: %w", path, err)
		}

		alive, pingErr := Ping(ctx, path, pingTimeout)
		switch {
		case alive:
			return nil, ErrAlreadyRunning
		case pingErr != nil:
			return nil, fmt.Errorf("ping existing socket %s: %w", path, pingErr)
		}

		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale socket %s: %w", path, err)
		}

		if attempt >= retries {
			return nil, fmt.Errorf("acquire socket %s: gave up after %d retries", path, retries)
		}
		backoff := time.Duration(25*(attempt+1)) * time.Millisecond
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}
