// Package command runs the external helpers murmur delegates to (audio decoder, local voice).
package command

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const (
	maxStderr = 512
	waitDelay = time.Second
)

// Run executes argv with input on stdin and returns stdout.
func Run(ctx context.Context, argv []string, input []byte) ([]byte, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("command argv cannot be empty")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.WaitDelay = waitDelay
	cmd.Stdin = bytes.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("run %s: %w", argv[0], ctxErr)
		}
		detail := strings.TrimSpace(stderr.String())
		if len(detail) > maxStderr {
			detail = detail[:maxStderr]
		}
		if detail == "" {
			return nil, fmt.Errorf("run %s: %w", argv[0], err)
		}
		return nil, fmt.Errorf("run %s: %w: %s", argv[0], err, detail)
	}
	return stdout.Bytes(), nil
}

// Expand returns a copy of argv with {name} placeholders replaced from values.
func Expand(argv []string, values map[string]string) []string {
	out := make([]string, len(argv))
	for i, arg := range argv {
		for name, value := range values {
			arg = strings.ReplaceAll(arg, "{"+name+"}", value)
		}
		out[i] = arg
	}
	return out
}

// Available reports whether argv's executable resolves on PATH.
func Available(argv []string) (string, error) {
	if len(argv) == 0 {
		return "", fmt.Errorf("command argv cannot be empty")
	}
	return exec.LookPath(argv[0])
}
