// Package transcribe orders the recognition tiers: the native recognizer when
// present, then a fixed-window capture submitted to the cloud recognizer.
package transcribe

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/murmur/internal/audio"
	"github.com/rbright/murmur/internal/fault"
)

// Source names the tier that produced a transcript.
type Source string

const (
	SourceNone   Source = "none"
	SourceNative Source = "native"
	SourceCloud  Source = "cloud"
)

// Result is the settled outcome of one transcription. Err carries the last
// diagnostic cause when no tier produced an answer, or the cancellation error.
type Result struct {
	Text   string
	Source Source
	Err    error
}

// Utterance is one in-flight native recognition.
type Utterance interface {
	Await(ctx context.Context) (string, error)
	Stop()
	Cancel()
}

// NativeRecognizer starts native recognitions.
type NativeRecognizer interface {
	Start(ctx context.Context, languageCode string) (Utterance, error)
}

// NativeFactory resolves the native capability. An error means it is absent.
type NativeFactory func(ctx context.Context) (NativeRecognizer, error)

// Capturer records a fixed window of microphone audio.
type Capturer interface {
	CaptureFixedWindow(ctx context.Context, window time.Duration) (audio.Payload, error)
	Stop() bool
}

// CloudRecognizer transcribes captured audio remotely.
type CloudRecognizer interface {
	Recognize(ctx context.Context, payload audio.Payload, languageCode string) (string, error)
}

// Chain runs the two recognition tiers in strict order.
type Chain struct {
	logger   *slog.Logger
	factory  NativeFactory
	capturer Capturer
	cloud    CloudRecognizer
	window   time.Duration

	nativeMu sync.Mutex
	resolved bool
	native   NativeRecognizer
}

func NewChain(logger *slog.Logger, factory NativeFactory, capturer Capturer, cloud CloudRecognizer, window time.Duration) *Chain {
	return &Chain{
		logger:   logger,
		factory:  factory,
		capturer: capturer,
		cloud:    cloud,
		window:   window,
	}
}

// Pending is a transcription that has started but not settled.
type Pending interface {
	Await(ctx context.Context) Result
	// Stop ends the current listening stage early and keeps what was heard.
	Stop()
	Cancel()
}

// Transcribe runs both tiers and blocks until a result settles.
func (c *Chain) Transcribe(ctx context.Context, languageHint string) Result {
	return c.Begin(ctx, languageHint).Await(ctx)
}

// Begin synchronously resolves the native capability and, when present,
// starts it. The rest of the chain runs in Await.
func (c *Chain) Begin(ctx context.Context, languageHint string) Pending {
	ctx, cancel := context.WithCancel(ctx)
	p := &pending{chain: c, ctx: ctx, cancel: cancel, language: languageHint}

	recognizer := c.resolveNative(ctx)
	if recognizer == nil {
		return p
	}

	utterance, err := recognizer.Start(ctx, languageHint)
	if err != nil {
		p.record(fmt.Errorf("native tier: %w", err))
		return p
	}
	p.utterance = utterance
	return p
}

// Warm resolves the native capability ahead of the first turn so the
// gesture path does not wait on the recognizer handshake.
func (c *Chain) Warm(ctx context.Context) {
	c.resolveNative(ctx)
}

// Close releases the native recognizer if one was resolved. It waits for a
// resolution already in flight.
func (c *Chain) Close() error {
	c.nativeMu.Lock()
	native := c.native
	c.nativeMu.Unlock()

	if closer, ok := native.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// resolveNative invokes the factory at most once and caches absence.
func (c *Chain) resolveNative(ctx context.Context) NativeRecognizer {
	c.nativeMu.Lock()
	defer c.nativeMu.Unlock()
	if c.resolved || c.factory == nil {
		return c.native
	}
	c.resolved = true

	recognizer, err := c.factory(ctx)
	if err != nil {
		c.logDebug("native recognizer unavailable; using cloud tier", "error", err.Error())
		return nil
	}
	c.native = recognizer
	return c.native
}

func (c *Chain) logDebug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func (c *Chain) logWarn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

type stage int

const (
	stageNative stage = iota
	stageCloud
)

type pending struct {
	chain    *Chain
	ctx      context.Context
	cancel   context.CancelFunc
	language string

	utterance Utterance
	lastErr   error

	mu    sync.Mutex
	stage stage
}

func (p *pending) Await(ctx context.Context) Result {
	stopWatch := context.AfterFunc(ctx, p.Cancel)
	defer stopWatch()
	defer p.cancel()

	if p.utterance != nil {
		text, err := p.utterance.Await(p.ctx)
		text = strings.TrimSpace(text)
		switch {
		case err == nil && text != "":
			return Result{Text: text, Source: SourceNative}
		case p.ctx.Err() != nil:
			return p.cancelled()
		case err == nil:
			err = fault.ErrNoSpeech
		}
		p.record(fmt.Errorf("native tier: %w", err))
		p.chain.logDebug("native tier failed; falling back to cloud", "error", err.Error())
	}

	if p.ctx.Err() != nil {
		return p.cancelled()
	}
	return p.runCloud()
}

func (p *pending) runCloud() Result {
	chain := p.chain
	if chain.capturer == nil || chain.cloud == nil {
		p.record(fmt.Errorf("cloud tier: %w", fault.ErrCapabilityAbsent))
		return Result{Source: SourceNone, Err: p.lastErr}
	}

	p.mu.Lock()
	p.stage = stageCloud
	p.mu.Unlock()

	payload, err := chain.capturer.CaptureFixedWindow(p.ctx, chain.window)
	if err != nil {
		if p.ctx.Err() != nil {
			return p.cancelled()
		}
		p.record(fmt.Errorf("cloud tier capture: %w", err))
		return Result{Source: SourceNone, Err: p.lastErr}
	}

	text, err := chain.cloud.Recognize(p.ctx, payload, p.language)
	if err != nil {
		if p.ctx.Err() != nil {
			return p.cancelled()
		}
		p.record(fmt.Errorf("cloud tier: %w", err))
		chain.logWarn("cloud recognition failed", "error", err.Error())
		return Result{Source: SourceNone, Err: p.lastErr}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return Result{Source: SourceNone, Err: p.lastErr}
	}
	return Result{Text: text, Source: SourceCloud}
}

func (p *pending) Stop() {
	p.mu.Lock()
	current := p.stage
	p.mu.Unlock()

	if current == stageNative && p.utterance != nil {
		p.utterance.Stop()
		return
	}
	if current == stageCloud && p.chain.capturer != nil {
		p.chain.capturer.Stop()
	}
}

func (p *pending) Cancel() {
	p.cancel()
	if p.utterance != nil {
		p.utterance.Cancel()
	}
}

// record keeps err as the last cause when it is worth diagnosing.
func (p *pending) record(err error) {
	if fault.IsDiagnostic(err) {
		p.lastErr = err
	}
}

func (p *pending) cancelled() Result {
	err := p.ctx.Err()
	if err == nil {
		err = context.Canceled
	}
	return Result{Source: SourceNone, Err: err}
}
