package session

import (
	"context"
	"fmt"

	"github.com/rbright/murmur/internal/audio"
	"github.com/rbright/murmur/internal/fault"
	"github.com/rbright/murmur/internal/transcribe"
	"github.com/rbright/murmur/internal/tts"
)

// Transcriber begins one transcription. Begin runs inside the gesture call and
// must not block on the listening window.
type Transcriber interface {
	Begin(ctx context.Context, languageHint string) transcribe.Pending
}

// Synthesizer converts a transcript into playable audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voice tts.VoiceConfig) (audio.Payload, error)
}

// Player plays synthesized audio on the shared output channel.
type Player interface {
	Play(ctx context.Context, payload audio.Payload) error
}

// Unlocker primes the output channel. It is called synchronously by StartTurn.
type Unlocker interface {
	Unlock() error
}

// LocalVoice speaks text on-device after a rejected playback. Fire-and-forget.
type LocalVoice interface {
	Speak(text string, languageCode string)
}

// Reporter receives recoverable turn failures.
type Reporter interface {
	Report(ctx context.Context, turnID string, kind fault.Kind, err error)
}

// Deps are the turn collaborators. Nil members fall back to no-ops that fail
// the corresponding stage cleanly.
type Deps struct {
	Transcriber Transcriber
	Synthesizer Synthesizer
	Player      Player
	Unlocker    Unlocker
	LocalVoice  LocalVoice
	Reporter    Reporter
}

func (d Deps) withDefaults() Deps {
	if d.Transcriber == nil {
		d.Transcriber = absentTranscriber{}
	}
	if d.Synthesizer == nil {
		d.Synthesizer = absentSynthesizer{}
	}
	if d.Player == nil {
		d.Player = rejectingPlayer{}
	}
	if d.Unlocker == nil {
		d.Unlocker = noopUnlocker{}
	}
	if d.LocalVoice == nil {
		d.LocalVoice = silentVoice{}
	}
	if d.Reporter == nil {
		d.Reporter = discardReporter{}
	}
	return d
}

type absentTranscriber struct{}

func (absentTranscriber) Begin(context.Context, string) transcribe.Pending {
	return settled{result: transcribe.Result{
		Source: transcribe.SourceNone,
		Err:    fmt.Errorf("transcriber not configured: %w", fault.ErrCapabilityAbsent),
	}}
}

type settled struct {
	result transcribe.Result
}

func (s settled) Await(context.Context) transcribe.Result { return s.result }
func (settled) Stop()                                   {}
func (settled) Cancel()                                 {}

type absentSynthesizer struct{}

func (absentSynthesizer) Synthesize(context.Context, string, tts.VoiceConfig) (audio.Payload, error) {
	return audio.Payload{}, fmt.Errorf("synthesizer not configured: %w", fault.ErrCapabilityAbsent)
}

type rejectingPlayer struct{}

func (rejectingPlayer) Play(context.Context, audio.Payload) error {
	return fmt.Errorf("player not configured: %w", fault.ErrPlaybackRejected)
}

type noopUnlocker struct{}

func (noopUnlocker) Unlock() error { return nil }

type silentVoice struct{}

func (silentVoice) Speak(string, string) {}

type discardReporter struct{}

func (discardReporter) Report(context.Context, string, fault.Kind, error) {}
