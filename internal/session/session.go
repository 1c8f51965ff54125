// Package session owns the voice turn lifecycle: phase machine, stage ordering,
// fallbacks, and teardown.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rbright/murmur/internal/fault"
	"github.com/rbright/murmur/internal/fsm"
	"github.com/rbright/murmur/internal/ipc"
	"github.com/rbright/murmur/internal/transcribe"
	"github.com/rbright/murmur/internal/tts"
)

var (
	// ErrTurnInProgress indicates Run was called while a turn was active.
	ErrTurnInProgress = errors.New("turn already in progress")
	// ErrClosed indicates the controller has been torn down.
	ErrClosed = errors.New("session closed")
)

// Result is the complete output of one turn.
type Result struct {
	TurnID        string
	Phase         fsm.Phase
	Phases        []fsm.Phase
	Transcript    string
	Source        transcribe.Source
	Err           error
	ErrKind       fault.Kind
	Played        bool
	LocalFallback bool
	Cancelled     bool
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Options carry per-session settings and observers. Callbacks run on the turn
// goroutine without the controller lock held.
type Options struct {
	LanguageCode string
	Voice        tts.VoiceConfig
	OnPhase      func(fsm.Phase)
	OnTurn       func(Result)
}

// Controller sequences capture, transcription, synthesis, and playback for at
// most one turn at a time.
type Controller struct {
	logger *slog.Logger
	deps   Deps
	opts   Options

	root       context.Context
	rootCancel context.CancelFunc

	mu         sync.Mutex
	phase      fsm.Phase
	transcript string
	lastErr    error
	active     *turn
	closed     bool

	wg sync.WaitGroup
}

type turn struct {
	ctx    context.Context
	cancel context.CancelFunc
	result Result
	done   chan struct{}

	mu      sync.Mutex
	pending transcribe.Pending
}

// NewController constructs an idle controller.
func NewController(logger *slog.Logger, deps Deps, opts Options) *Controller {
	root, cancel := context.WithCancel(context.Background())
	return &Controller{
		logger:     logger,
		deps:       deps.withDefaults(),
		opts:       opts,
		root:       root,
		rootCancel: cancel,
		phase:      fsm.PhaseIdle,
	}
}

// Phase returns the current phase snapshot.
func (c *Controller) Phase() fsm.Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Transcript returns the most recent recognized text, or "".
func (c *Controller) Transcript() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript
}

// LastError returns the most recent recoverable failure of the current or last turn.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// StartTurn is the gesture entry point. It returns false without side effects
// unless the session is idle. The playback unlock and transcription start run
// before it returns; the remaining stages continue in the background.
func (c *Controller) StartTurn(ctx context.Context) bool {
	_, err := c.startTurn(ctx)
	return err == nil
}

// Run starts a turn and blocks until it settles. Cancelling ctx cancels the turn.
func (c *Controller) Run(ctx context.Context) (Result, error) {
	t, err := c.startTurn(ctx)
	if err != nil {
		return Result{}, err
	}

	stop := context.AfterFunc(ctx, t.abort)
	defer stop()

	<-t.done
	return t.result, nil
}

func (c *Controller) startTurn(ctx context.Context) (*turn, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	next, err := fsm.Transition(c.phase, fsm.EventStart)
	if err != nil {
		current := c.phase
		c.mu.Unlock()
		return nil, fmt.Errorf("%w (phase %s)", ErrTurnInProgress, current)
	}

	turnCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	unbind := context.AfterFunc(c.root, cancel)
	t := &turn{
		ctx: turnCtx,
		cancel: func() {
			unbind()
			cancel()
		},
		done: make(chan struct{}),
		result: Result{
			TurnID:    uuid.NewString(),
			Phases:    []fsm.Phase{fsm.PhaseIdle, next},
			StartedAt: time.Now(),
		},
	}
	c.phase = next
	c.transcript = ""
	c.lastErr = nil
	c.active = t
	c.wg.Add(1)
	c.mu.Unlock()

	c.notifyPhase(next)

	if err := c.deps.Unlocker.Unlock(); err != nil {
		c.logWarn("playback unlock failed", "turn_id", t.result.TurnID, "error", err.Error())
	}

	t.setPending(c.deps.Transcriber.Begin(turnCtx, c.opts.LanguageCode))

	go c.runTurn(t)
	return t, nil
}

func (c *Controller) runTurn(t *turn) {
	defer c.wg.Done()
	defer close(t.done)
	defer t.cancel()

	transcription := t.currentPending().Await(t.ctx)
	if t.cancelled(transcription.Err) {
		c.finish(t, c.cancelTurn(t))
		return
	}
	if transcription.Text == "" {
		c.recordFailure(t, transcription.Err)
		c.finish(t, fsm.EventNoSpeech)
		return
	}

	t.result.Transcript = transcription.Text
	t.result.Source = transcription.Source
	c.mu.Lock()
	c.transcript = transcription.Text
	c.mu.Unlock()
	c.advance(t, fsm.EventTranscribed)

	payload, err := c.deps.Synthesizer.Synthesize(t.ctx, transcription.Text, c.opts.Voice)
	if t.cancelled(err) {
		c.finish(t, c.cancelTurn(t))
		return
	}
	if err != nil {
		c.recordFailure(t, fmt.Errorf("synthesize: %w", err))
		c.finish(t, fsm.EventSynthesisFailed)
		return
	}
	c.advance(t, fsm.EventSynthesized)

	err = c.deps.Player.Play(t.ctx, payload)
	if t.cancelled(err) {
		c.finish(t, c.cancelTurn(t))
		return
	}
	if err != nil {
		c.recordFailure(t, fmt.Errorf("play: %w", err))
		c.deps.LocalVoice.Speak(transcription.Text, c.voiceLanguage())
		t.result.LocalFallback = true
		c.finish(t, fsm.EventPlaybackRejected)
		return
	}
	t.result.Played = true
	c.finish(t, fsm.EventPlaybackEnded)
}

func (c *Controller) cancelTurn(t *turn) fsm.Event {
	t.result.Cancelled = true
	t.result.Err = context.Canceled
	return fsm.EventCancel
}

// advance applies a non-terminal transition.
func (c *Controller) advance(t *turn, event fsm.Event) {
	c.mu.Lock()
	next, err := fsm.Transition(c.phase, event)
	if err == nil {
		c.phase = next
	}
	c.mu.Unlock()

	if err != nil {
		c.logWarn("phase transition rejected", "turn_id", t.result.TurnID, "error", err.Error())
		return
	}
	t.result.Phases = append(t.result.Phases, next)
	c.notifyPhase(next)
}

// finish applies the terminal transition and releases the session for the next turn.
func (c *Controller) finish(t *turn, event fsm.Event) {
	c.mu.Lock()
	next, err := fsm.Transition(c.phase, event)
	if err != nil {
		next = fsm.PhaseIdle
	}
	c.phase = next
	if c.active == t {
		c.active = nil
	}
	c.mu.Unlock()

	if err != nil {
		c.logWarn("phase transition rejected; forcing idle", "turn_id", t.result.TurnID, "error", err.Error())
	}
	t.result.Phases = append(t.result.Phases, next)
	t.result.Phase = next
	t.result.ErrKind = fault.KindOf(t.result.Err)
	t.result.FinishedAt = time.Now()
	c.notifyPhase(next)
	c.logTurn(t.result)

	if c.opts.OnTurn != nil {
		c.opts.OnTurn(t.result)
	}
}

// recordFailure stores err as the turn's error and, when diagnostic, as lastError.
func (c *Controller) recordFailure(t *turn, err error) {
	if err == nil {
		return
	}
	t.result.Err = err
	if !fault.IsDiagnostic(err) {
		return
	}
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
	c.deps.Reporter.Report(t.ctx, t.result.TurnID, fault.KindOf(err), err)
}

// StopListening ends the current listening window early. It reports whether a
// stop was delivered.
func (c *Controller) StopListening() bool {
	c.mu.Lock()
	t := c.active
	phase := c.phase
	c.mu.Unlock()

	if phase != fsm.PhaseListening || t == nil {
		return false
	}
	pending := t.currentPending()
	if pending == nil {
		return false
	}
	pending.Stop()
	return true
}

// Wait blocks until the in-flight turn, if any, has settled.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close cancels any in-flight recognition, capture, and playback, waits for
// the turn to settle, and rejects later turns. It is idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	t := c.active
	c.mu.Unlock()

	if t != nil {
		t.abort()
	}
	c.rootCancel()
	c.wg.Wait()
}

// Handle serves presentation-boundary commands from IPC clients.
func (c *Controller) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandStatus:
		resp := c.status()
		resp.OK = true
		resp.Message = "status"
		return resp
	case ipc.CommandTalk:
		return c.handleTalk(ctx, req.Wait)
	case ipc.CommandStop:
		if !c.StopListening() {
			resp := c.status()
			resp.Error = fmt.Sprintf("cannot stop from phase %s", resp.Phase)
			return resp
		}
		resp := c.status()
		resp.OK = true
		resp.Message = "stop requested"
		return resp
	default:
		resp := c.status()
		resp.Error = fmt.Sprintf("unknown command: %s", req.Command)
		return resp
	}
}

func (c *Controller) handleTalk(ctx context.Context, wait bool) ipc.Response {
	t, err := c.startTurn(ctx)
	if err != nil {
		resp := c.status()
		resp.Error = err.Error()
		return resp
	}
	if !wait {
		resp := c.status()
		resp.OK = true
		resp.Message = "turn started"
		return resp
	}

	select {
	case <-t.done:
	case <-ctx.Done():
		resp := c.status()
		resp.Error = ctx.Err().Error()
		return resp
	}

	resp := c.status()
	resp.OK = true
	resp.Transcript = t.result.Transcript
	resp.Message = "turn complete"
	return resp
}

func (c *Controller) status() ipc.Response {
	c.mu.Lock()
	defer c.mu.Unlock()
	resp := ipc.Response{Phase: string(c.phase), Transcript: c.transcript}
	if c.lastErr != nil {
		resp.LastError = string(fault.KindOf(c.lastErr))
	}
	return resp
}

func (c *Controller) voiceLanguage() string {
	if c.opts.Voice.LanguageCode != "" {
		return c.opts.Voice.LanguageCode
	}
	return c.opts.LanguageCode
}

func (c *Controller) notifyPhase(phase fsm.Phase) {
	if c.opts.OnPhase != nil {
		c.opts.OnPhase(phase)
	}
}

func (c *Controller) logWarn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

func (c *Controller) logTurn(result Result) {
	if c.logger == nil {
		return
	}
	errText := ""
	if result.Err != nil {
		errText = result.Err.Error()
	}
	c.logger.Info("turn complete",
		"turn_id", result.TurnID,
		"phases", phaseNames(result.Phases),
		"transcript_chars", len(result.Transcript),
		"source", string(result.Source),
		"played", result.Played,
		"local_fallback", result.LocalFallback,
		"cancelled", result.Cancelled,
		"error_kind", string(result.ErrKind),
		"error", errText,
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
	)
}

func phaseNames(phases []fsm.Phase) []string {
	names := make([]string, 0, len(phases))
	for _, phase := range phases {
		names = append(names, string(phase))
	}
	return names
}

func (t *turn) setPending(pending transcribe.Pending) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = pending
}

func (t *turn) currentPending() transcribe.Pending {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

// abort cancels the turn context and any in-flight tier.
func (t *turn) abort() {
	t.cancel()
	if pending := t.currentPending(); pending != nil {
		pending.Cancel()
	}
}

// cancelled reports whether err, or the turn itself, ended by cancellation.
func (t *turn) cancelled(err error) bool {
	return t.ctx.Err() != nil || errors.Is(err, context.Canceled)
}
