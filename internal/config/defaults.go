package config

const (
	defaultDecoderCmd    = "ffmpeg -hide_banner -loglevel error -i pipe:0 -f s16le -ac 1 -ar 24000 pipe:1"
	defaultLocalVoiceCmd = "espeak-ng -v {lang} --stdin"
	defaultClipboardCmd  = "wl-copy --trim-newline"
)

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		LanguageCode: "en-US",
		Native: NativeConfig{
			Enable:         true,
			Endpoint:       "127.0.0.1:50051",
			DialTimeoutMS:  1500,
			MaxUtteranceMS: 10000,
		},
		Capture: CaptureConfig{
			Input:    "default",
			Fallback: "default",
			WindowMS: 10000,
		},
		STT: STTConfig{
			Endpoint:  "https://speech.googleapis.com/v1/speech:recognize",
			TimeoutMS: 15000,
		},
		TTS: TTSConfig{
			Endpoint:  "https://texttospeech.googleapis.com/v1/text:synthesize",
			VoiceName: "en-US-Wavenet-D",
			TimeoutMS: 15000,
		},
		Playback: PlaybackConfig{
			Decoder:    CommandConfig{Raw: defaultDecoderCmd, Argv: mustParseArgv(defaultDecoderCmd)},
			SampleRate: 24000,
		},
		LocalVoice: LocalVoiceConfig{
			Enable:  true,
			Command: CommandConfig{Raw: defaultLocalVoiceCmd, Argv: mustParseArgv(defaultLocalVoiceCmd)},
		},
		Indicator: IndicatorConfig{
			Enable:         true,
			Backend:        "desktop",
			DesktopAppName: "murmur",
			SoundEnable:    true,
			ErrorTimeoutMS: 1600,
		},
		Clipboard: ClipboardConfig{
			Command: CommandConfig{Raw: defaultClipboardCmd, Argv: mustParseArgv(defaultClipboardCmd)},
		},
		Credentials: CredentialsConfig{
			APIKeyEnv: "MURMUR_GOOGLE_API_KEY",
		},
		Diagnostics: DiagnosticsConfig{
			SentryDSNEnv: "MURMUR_SENTRY_DSN",
			Environment:  "local",
		},
		Debug: DebugConfig{},
	}
}
