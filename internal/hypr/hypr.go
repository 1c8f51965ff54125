// Package hypr sends compositor notifications through hyprctl.
package hypr

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

const defaultColor = "rgb(89b4fa)"

// Icon selects the hyprctl notify glyph.
type Icon int

const (
	IconWarning Icon = 0
	IconInfo    Icon = 1
	IconHint    Icon = 2
	IconError   Icon = 3
)

// Notify shows text for timeoutMS using Hyprland's built-in notification overlay.
func Notify(ctx context.Context, icon Icon, timeoutMS int, color string, text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("notify text must not be empty")
	}
	if strings.TrimSpace(color) == "" {
		color = defaultColor
	}
	return run(ctx,
		"--quiet", "dispatch", "notify",
		strconv.Itoa(int(icon)),
		strconv.Itoa(timeoutMS),
		color,
		text,
	)
}

// Dismiss clears every visible hyprctl notification.
func Dismiss(ctx context.Context) error {
	return run(ctx, "--quiet", "dispatch", "dismissnotify")
}

func run(ctx context.Context, args ...string) error {
	out, err := exec.CommandContext(ctx, "hyprctl", args...).CombinedOutput()
	if err == nil {
		return nil
	}
	trimmed := strings.TrimSpace(string(out))
	if trimmed == "" {
		return fmt.Errorf("hyprctl %s: %w", args[len(args)-1], err)
	}
	return fmt.Errorf("hyprctl %s: %w (%s)", args[len(args)-1], err, trimmed)
}
