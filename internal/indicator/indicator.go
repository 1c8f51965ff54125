// Package indicator mirrors session phases as desktop notifications and short
// audio cues.
package indicator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rbright/murmur/internal/config"
	"github.com/rbright/murmur/internal/fault"
	"github.com/rbright/murmur/internal/fsm"
)

const (
	dispatchTimeout       = 400 * time.Millisecond
	cueTimeout            = 2 * time.Second
	persistentTimeoutMS   = 300000
	defaultErrorTimeoutMS = 1200
	queueSize             = 16
)

// CueOutput renders cue PCM on the shared output channel. It must refuse a
// cue that would overlap another playback.
type CueOutput interface {
	PlayCue(ctx context.Context, samples []int16, sampleRate int) error
}

// Gate reports whether the output channel has been unlocked.
type Gate interface {
	Unlocked() bool
}

type notifier interface {
	notify(ctx context.Context, level level, timeoutMS int, text string) error
	dismiss(ctx context.Context) error
}

type level int

const (
	levelInfo level = iota
	levelError
)

type event struct {
	phase   fsm.Phase
	turnEnd bool
	kind    fault.Kind
}

// Indicator consumes phase and turn events on its own goroutine so callers
// never wait on notification or cue dispatch.
type Indicator struct {
	cfg      config.IndicatorConfig
	logger   *slog.Logger
	notifier notifier
	cues     CueOutput
	gate     Gate

	events chan event
	quit   chan struct{}
	done   chan struct{}
	once   sync.Once
}

// New starts an indicator. cues and gate may be nil, which disables audio cues.
func New(cfg config.IndicatorConfig, cues CueOutput, gate Gate, logger *slog.Logger) *Indicator {
	var n notifier = &desktopNotifier{appName: cfg.DesktopAppName}
	if cfg.Backend == "hypr" {
		n = hyprNotifier{}
	}
	return newIndicator(cfg, n, cues, gate, logger)
}

func newIndicator(cfg config.IndicatorConfig, n notifier, cues CueOutput, gate Gate, logger *slog.Logger) *Indicator {
	ind := &Indicator{
		cfg:      cfg,
		logger:   logger,
		notifier: n,
		cues:     cues,
		gate:     gate,
		events:   make(chan event, queueSize),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go ind.loop()
	return ind
}

// OnPhase queues a phase change. It never blocks.
func (i *Indicator) OnPhase(phase fsm.Phase) {
	i.enqueue(event{phase: phase})
}

// OnTurnEnd queues the outcome of a finished turn.
func (i *Indicator) OnTurnEnd(kind fault.Kind) {
	i.enqueue(event{turnEnd: true, kind: kind})
}

// Close drains queued events and stops the worker.
func (i *Indicator) Close() {
	if i == nil {
		return
	}
	i.once.Do(func() { close(i.quit) })
	<-i.done
}

func (i *Indicator) enqueue(ev event) {
	if i == nil {
		return
	}
	select {
	case <-i.quit:
		return
	default:
	}
	select {
	case i.events <- ev:
	default:
		i.debug("indicator queue full; dropping event", nil)
	}
}

func (i *Indicator) loop() {
	defer close(i.done)
	for {
		select {
		case ev := <-i.events:
			i.handle(ev)
		case <-i.quit:
			for {
				select {
				case ev := <-i.events:
					i.handle(ev)
				default:
					return
				}
			}
		}
	}
}

func (i *Indicator) handle(ev event) {
	if ev.turnEnd {
		i.handleTurnEnd(ev.kind)
		return
	}

	switch ev.phase {
	case fsm.PhaseListening:
		// No cue while the microphone is open.
		i.show(levelInfo, persistentTimeoutMS, textListening)
	case fsm.PhaseThinking:
		i.show(levelInfo, persistentTimeoutMS, textThinking)
		i.cue(cueHeard)
	case fsm.PhaseTalking:
		i.show(levelInfo, persistentTimeoutMS, textTalking)
	}
}

func (i *Indicator) handleTurnEnd(kind fault.Kind) {
	switch kind {
	case fault.KindNone, fault.KindNoSpeech:
		i.hide()
		i.cue(cueDone)
	case fault.KindCancelled:
		i.hide()
		i.cue(cueCancel)
	default:
		timeout := i.cfg.ErrorTimeoutMS
		if timeout <= 0 {
			timeout = defaultErrorTimeoutMS
		}
		i.show(levelError, timeout, failureText(kind))
		i.cue(cueCancel)
	}
}

func (i *Indicator) show(lvl level, timeoutMS int, text string) {
	if !i.cfg.Enable {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()
	if err := i.notifier.notify(ctx, lvl, timeoutMS, text); err != nil {
		i.debug("indicator notify failed", err)
	}
}

func (i *Indicator) hide() {
	if !i.cfg.Enable {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()
	if err := i.notifier.dismiss(ctx); err != nil {
		i.debug("indicator dismiss failed", err)
	}
}

// cue plays only after the output channel was unlocked by a turn gesture.
func (i *Indicator) cue(kind cueKind) {
	if !i.cfg.SoundEnable || i.cues == nil {
		return
	}
	if i.gate != nil && !i.gate.Unlocked() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), cueTimeout)
	defer cancel()
	if err := i.cues.PlayCue(ctx, cueSamples(kind), cueSampleRate); err != nil {
		i.debug("indicator audio cue failed", err)
	}
}

func (i *Indicator) debug(msg string, err error) {
	if i.logger == nil {
		return
	}
	if err == nil {
		i.logger.Debug(msg)
		return
	}
	i.logger.Debug(msg, "error", err.Error())
}
