package indicator

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/rbright/murmur/internal/hypr"
)

const (
	colorInfo  = "rgb(89b4fa)"
	colorError = "rgb(f38ba8)"
)

type hyprNotifier struct{}

func (hyprNotifier) notify(ctx context.Context, lvl level, timeoutMS int, text string) error {
	if lvl == levelError {
		return hypr.Notify(ctx, hypr.IconError, timeoutMS, colorError, text)
	}
	return hypr.Notify(ctx, hypr.IconInfo, timeoutMS, colorInfo, text)
}

func (hyprNotifier) dismiss(ctx context.Context) error {
	return hypr.Dismiss(ctx)
}

// desktopNotifier talks to org.freedesktop.Notifications via busctl and
// replaces its own notification in place across phases.
type desktopNotifier struct {
	appName string

	mu sync.Mutex
	id uint32
}

func (d *desktopNotifier) notify(ctx context.Context, _ level, timeoutMS int, text string) error {
	d.mu.Lock()
	replaceID := d.id
	d.mu.Unlock()

	out, err := busctl(ctx,
		"Notify", "susssasa{sv}i",
		d.appName,
		strconv.FormatUint(uint64(replaceID), 10),
		"",
		text,
		"",
		"0", // actions
		"0", // hints
		strconv.Itoa(timeoutMS),
	)
	if err != nil {
		return err
	}

	fields := strings.Fields(out)
	if len(fields) < 2 || fields[0] != "u" {
		return fmt.Errorf("desktop notify: unexpected reply %q", out)
	}
	id, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return fmt.Errorf("desktop notify: parse id %q: %w", fields[1], err)
	}

	d.mu.Lock()
	d.id = uint32(id)
	d.mu.Unlock()
	return nil
}

func (d *desktopNotifier) dismiss(ctx context.Context) error {
	d.mu.Lock()
	id := d.id
	d.id = 0
	d.mu.Unlock()
	if id == 0 {
		return nil
	}

	_, err := busctl(ctx, "CloseNotification", "u", strconv.FormatUint(uint64(id), 10))
	return err
}

func busctl(ctx context.Context, method string, args ...string) (string, error) {
	argv := append([]string{
		"--user", "call",
		"org.freedesktop.Notifications",
		"/org/freedesktop/Notifications",
		"org.freedesktop.Notifications",
		method,
	}, args...)

	out, err := exec.CommandContext(ctx, "busctl", argv...).CombinedOutput()
	trimmed := strings.TrimSpace(string(out))
	if err != nil {
		if trimmed == "" {
			return "", fmt.Errorf("busctl %s: %w", method, err)
		}
		return "", fmt.Errorf("busctl %s: %w (%s)", method, err, trimmed)
	}
	return trimmed, nil
}
