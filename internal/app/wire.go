package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rbright/murmur/internal/audio"
	"github.com/rbright/murmur/internal/config"
	"github.com/rbright/murmur/internal/diagnostics"
	"github.com/rbright/murmur/internal/fsm"
	"github.com/rbright/murmur/internal/indicator"
	"github.com/rbright/murmur/internal/logging"
	"github.com/rbright/murmur/internal/native"
	"github.com/rbright/murmur/internal/output"
	"github.com/rbright/murmur/internal/playback"
	"github.com/rbright/murmur/internal/session"
	"github.com/rbright/murmur/internal/stt"
	"github.com/rbright/murmur/internal/transcribe"
	"github.com/rbright/murmur/internal/tts"
)

const flushTimeout = 2 * time.Second

// Runtime owns every long-lived collaborator behind one session controller.
type Runtime struct {
	Controller *session.Controller

	chain     *transcribe.Chain
	stopWarm  context.CancelFunc
	warmed    chan struct{}
	speaker   *playback.PulseOutput
	voice     *tts.LocalVoice
	indicator *indicator.Indicator
	reporter  *diagnostics.Reporter
}

// BuildRuntime wires config into a ready, idle session controller.
func BuildRuntime(cfg config.Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	reporter, err := diagnostics.New(diagnostics.Config{
		DSN:         cfg.Diagnostics.SentryDSN,
		Environment: cfg.Diagnostics.Environment,
	}, logger)
	if err != nil {
		return nil, err
	}

	capture := audio.NewAdapter(cfg.Capture, cfg.Debug.EnableAudioDump, logger)
	cloud := stt.NewClient(stt.Config{
		Endpoint: cfg.STT.Endpoint,
		APIKey:   cfg.Credentials.APIKey,
		Timeout:  millis(cfg.STT.TimeoutMS),
	})
	chain := transcribe.NewChain(logger, nativeFactory(cfg, capture, logger), capture, cloud, millis(cfg.Capture.WindowMS))
	warmCtx, stopWarm := context.WithCancel(context.Background())
	warmed := make(chan struct{})
	go func() {
		defer close(warmed)
		chain.Warm(warmCtx)
	}()

	pulseOut := playback.NewPulseOutput()
	unlocker := playback.NewUnlocker(pulseOut)
	player := playback.NewPlayer(unlocker, playback.NewCommandDecoder(cfg.Playback.Decoder.Argv, cfg.Playback.SampleRate), pulseOut)

	var voiceArgv []string
	if cfg.LocalVoice.Enable {
		voiceArgv = cfg.LocalVoice.Command.Argv
	}
	voice := tts.NewLocalVoice(voiceArgv, logger)
	ind := indicator.New(cfg.Indicator, player, unlocker, logger)

	var clipboardArgv []string
	if cfg.Clipboard.Enable {
		clipboardArgv = cfg.Clipboard.Command.Argv
	}
	clipboard := output.NewClipboard(clipboardArgv, logger)

	controller := session.NewController(logger, session.Deps{
		Transcriber: chain,
		Synthesizer: tts.NewClient(tts.Config{
			Endpoint: cfg.TTS.Endpoint,
			APIKey:   cfg.Credentials.APIKey,
			Timeout:  millis(cfg.TTS.TimeoutMS),
		}),
		Player:     player,
		Unlocker:   unlocker,
		LocalVoice: voice,
		Reporter:   reporter,
	}, session.Options{
		LanguageCode: cfg.LanguageCode,
		Voice:        tts.VoiceConfig{LanguageCode: cfg.VoiceLanguage(), Name: cfg.TTS.VoiceName},
		OnPhase: func(phase fsm.Phase) {
			logger.Debug("phase", "phase", string(phase))
			ind.OnPhase(phase)
		},
		OnTurn: func(result session.Result) {
			ind.OnTurnEnd(result.ErrKind)
			clipboard.Publish(context.Background(), result.Transcript)
		},
	})

	return &Runtime{
		Controller: controller,
		chain:      chain,
		stopWarm:   stopWarm,
		warmed:     warmed,
		speaker:    pulseOut,
		voice:      voice,
		indicator:  ind,
		reporter:   reporter,
	}, nil
}

// Close tears down the session first so in-flight work is cancelled before
// its resources are released.
func (r *Runtime) Close() {
	r.Controller.Close()
	r.stopWarm()
	<-r.warmed
	_ = r.chain.Close()
	r.voice.Close()
	r.indicator.Close()
	r.speaker.Close()
	r.reporter.Flush(flushTimeout)
}

// nativeFactory returns nil when the native tier is disabled so the chain
// treats it as absent without dialing.
func nativeFactory(cfg config.Config, capture *audio.Adapter, logger *slog.Logger) transcribe.NativeFactory {
	if !cfg.Native.Enable {
		return nil
	}
	nativeCfg := native.Config{
		Endpoint:     cfg.Native.Endpoint,
		DialTimeout:  millis(cfg.Native.DialTimeoutMS),
		MaxUtterance: millis(cfg.Native.MaxUtteranceMS),
	}
	return func(ctx context.Context) (transcribe.NativeRecognizer, error) {
		recognizer, err := native.Dial(ctx, nativeCfg, capture.Open)
		if err != nil {
			return nil, fmt.Errorf("native tier: %w", err)
		}
		logger.Info("native recognizer ready", "endpoint", nativeCfg.Endpoint)
		return nativeRecognizer{recognizer: recognizer}, nil
	}
}

// nativeRecognizer narrows *native.Recognizer to the chain's interface.
type nativeRecognizer struct {
	recognizer *native.Recognizer
}

func (n nativeRecognizer) Start(ctx context.Context, languageCode string) (transcribe.Utterance, error) {
	utterance, err := n.recognizer.Start(ctx, languageCode)
	if err != nil {
		return nil, err
	}
	return utterance, nil
}

func (n nativeRecognizer) Close() error {
	return n.recognizer.Close()
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
