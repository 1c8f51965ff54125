// Package output publishes a finished turn's transcript outside the process.
package output

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rbright/murmur/internal/command"
)

const clipboardTimeout = 2 * time.Second

// Clipboard writes transcripts to a clipboard command's stdin.
type Clipboard struct {
	argv   []string
	logger *slog.Logger
}

// NewClipboard returns a clipboard sink. Empty argv disables it.
func NewClipboard(argv []string, logger *slog.Logger) *Clipboard {
	return &Clipboard{argv: append([]string(nil), argv...), logger: logger}
}

// Enabled reports whether a clipboard command is configured.
func (c *Clipboard) Enabled() bool {
	return c != nil && len(c.argv) > 0
}

// Copy replaces the clipboard contents with transcript. Empty transcripts are skipped.
func (c *Clipboard) Copy(ctx context.Context, transcript string) error {
	if !c.Enabled() || strings.TrimSpace(transcript) == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, clipboardTimeout)
	defer cancel()
	if _, err := command.Run(ctx, c.argv, []byte(transcript)); err != nil {
		return fmt.Errorf("set clipboard: %w", err)
	}
	return nil
}

// Publish copies transcript and logs rather than returns failures.
func (c *Clipboard) Publish(ctx context.Context, transcript string) {
	if err := c.Copy(ctx, transcript); err != nil && c.logger != nil {
		c.logger.Warn("clipboard copy failed", "error", err.Error())
	}
}
