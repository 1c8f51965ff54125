package tts

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/murmur/internal/command"
)

const defaultLocalVoiceTimeout = 30 * time.Second

// LocalVoice speaks text through an on-device synthesis command.
type LocalVoice struct {
	argv    []string
	timeout time.Duration
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewLocalVoice returns a voice running argv, where {lang} expands to the
// lowercased language tag. Empty argv yields a disabled voice.
func NewLocalVoice(argv []string, logger *slog.Logger) *LocalVoice {
	ctx, cancel := context.WithCancel(context.Background())
	return &LocalVoice{
		argv:    append([]string(nil), argv...),
		timeout: defaultLocalVoiceTimeout,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Enabled reports whether a command is configured.
func (v *LocalVoice) Enabled() bool {
	return v != nil && len(v.argv) > 0
}

// Speak starts speaking text and returns immediately. Failures are only logged.
func (v *LocalVoice) Speak(text string, languageCode string) {
	text = strings.TrimSpace(text)
	if !v.Enabled() || text == "" {
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}

	argv := command.Expand(v.argv, map[string]string{"lang": strings.ToLower(languageCode)})
	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		ctx, cancel := context.WithTimeout(v.ctx, v.timeout)
		defer cancel()
		if _, err := command.Run(ctx, argv, []byte(text)); err != nil && v.logger != nil {
			v.logger.Warn("local voice failed", "error", err.Error())
		}
	}()
}

// Wait blocks until every started utterance has finished.
func (v *LocalVoice) Wait() {
	if v == nil {
		return
	}
	v.wg.Wait()
}

// Close cancels any utterance still speaking.
func (v *LocalVoice) Close() {
	if v == nil {
		return
	}
	v.mu.Lock()
	v.closed = true
	v.mu.Unlock()
	v.cancel()
	v.wg.Wait()
}
