// Package diagnostics records recoverable turn failures to the runtime log and,
// when a DSN is configured, to Sentry.
package diagnostics

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/rbright/murmur/internal/fault"
	"github.com/rbright/murmur/internal/version"
)

// Config selects the remote sink. An empty DSN keeps reporting local.
type Config struct {
	DSN         string
	Environment string

	beforeSend func(*sentry.Event, *sentry.EventHint) *sentry.Event
}

// Reporter is safe for concurrent use. A nil Reporter discards reports.
type Reporter struct {
	logger   *slog.Logger
	hub      *sentry.Hub
	reported atomic.Int64
}

// New builds a reporter bound to its own hub so tests and embedders never touch
// the global Sentry client.
func New(cfg Config, logger *slog.Logger) (*Reporter, error) {
	r := &Reporter{logger: logger}
	if cfg.DSN == "" {
		return r, nil
	}

	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Release:     "murmur@" + version.Version,
		BeforeSend:  cfg.beforeSend,
	})
	if err != nil {
		return nil, fmt.Errorf("init sentry client: %w", err)
	}
	r.hub = sentry.NewHub(client, sentry.NewScope())
	return r, nil
}

// Remote reports whether captured failures leave the process.
func (r *Reporter) Remote() bool {
	return r != nil && r.hub != nil
}

// Reported returns the number of failures accepted so far.
func (r *Reporter) Reported() int64 {
	if r == nil {
		return 0
	}
	return r.reported.Load()
}

// Report records err for the given turn. Non-diagnostic errors are ignored.
func (r *Reporter) Report(ctx context.Context, turnID string, kind fault.Kind, err error) {
	if r == nil || !fault.IsDiagnostic(err) {
		return
	}
	r.reported.Add(1)

	if r.logger != nil {
		r.logger.WarnContext(ctx, "turn failure",
			"turn_id", turnID,
			"failure_kind", string(kind),
			"error", err.Error(),
		)
	}

	if r.hub == nil {
		return
	}
	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("failure_kind", string(kind))
		scope.SetTag("turn_id", turnID)
		r.hub.CaptureException(err)
	})
}

// Flush waits up to timeout for queued events. It reports false on timeout.
func (r *Reporter) Flush(timeout time.Duration) bool {
	if r == nil || r.hub == nil {
		return true
	}
	return r.hub.Flush(timeout)
}
