package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rbright/murmur/internal/config"
	"github.com/rbright/murmur/internal/fault"
)

// Recorder is one live microphone capture.
type Recorder interface {
	Chunks() <-chan []byte
	Payload() Payload
	Stop() error
}

// Adapter acquires microphone streams for both recognition tiers.
type Adapter struct {
	input     string
	fallback  string
	dumpAudio bool
	logger    *slog.Logger

	selectDevice func(ctx context.Context, input string, fallback string) (Selection, error)
	start        func(ctx context.Context, device Device) (Recorder, error)

	mu     sync.Mutex
	window *windowStop
}

type windowStop struct {
	once sync.Once
	ch   chan struct{}
}

func (w *windowStop) fire() {
	w.once.Do(func() { close(w.ch) })
}

// NewAdapter builds a Pulse-backed adapter from capture config.
func NewAdapter(cfg config.CaptureConfig, dumpAudio bool, logger *slog.Logger) *Adapter {
	return &Adapter{
		input:        cfg.Input,
		fallback:     cfg.Fallback,
		dumpAudio:    dumpAudio,
		logger:       logger,
		selectDevice: SelectDevice,
		start: func(ctx context.Context, device Device) (Recorder, error) {
			return StartCapture(ctx, device)
		},
	}
}

// Open selects the configured device and starts a live capture on it.
func (a *Adapter) Open(ctx context.Context) (Recorder, error) {
	selection, err := a.selectDevice(ctx, a.input, a.fallback)
	if err != nil {
		return nil, fmt.Errorf("select audio device: %w", err)
	}
	if selection.Warning != "" && a.logger != nil {
		a.logger.Warn(selection.Warning)
	}

	recorder, err := a.start(ctx, selection.Device)
	if err != nil {
		return nil, fmt.Errorf("start capture on %s: %w", selection.Device, err)
	}
	if a.logger != nil {
		a.logger.Debug("capture started", "device", selection.Device.String(), "fallback", selection.Fallback)
	}
	return recorder, nil
}

// CaptureFixedWindow records for window, or until Stop is called, and returns
// the LINEAR16 audio. Cancelling ctx discards the audio and returns ctx's error.
func (a *Adapter) CaptureFixedWindow(ctx context.Context, window time.Duration) (Payload, error) {
	if window <= 0 {
		return Payload{}, errors.New("capture window must be positive")
	}

	stop := &windowStop{ch: make(chan struct{})}
	a.mu.Lock()
	a.window = stop
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		if a.window == stop {
			a.window = nil
		}
		a.mu.Unlock()
	}()

	captureCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	recorder, err := a.Open(captureCtx)
	if err != nil {
		return Payload{}, err
	}

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for range recorder.Chunks() {
		}
	}()

	timer := time.NewTimer(window)
	defer timer.Stop()

	var cancelled error
	select {
	case <-timer.C:
	case <-stop.ch:
	case <-ctx.Done():
		cancelled = ctx.Err()
	}

	_ = recorder.Stop()
	<-drained

	if cancelled != nil {
		return Payload{}, cancelled
	}

	payload := recorder.Payload()
	a.dump(payload)
	if payload.Empty() {
		return Payload{}, fault.ErrNoSpeech
	}
	return payload, nil
}

// Stop ends the active fixed window early. It reports whether a window was active.
func (a *Adapter) Stop() bool {
	a.mu.Lock()
	window := a.window
	a.mu.Unlock()
	if window == nil {
		return false
	}
	window.fire()
	return true
}

func (a *Adapter) dump(payload Payload) {
	if !a.dumpAudio || payload.Empty() {
		return
	}
	path, err := DumpWAV(payload)
	if a.logger == nil {
		return
	}
	if err != nil {
		a.logger.Warn("unable to write debug audio dump", "error", err.Error())
		return
	}
	a.logger.Debug("wrote debug audio dump", "path", path)
}
