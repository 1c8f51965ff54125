// Package config resolves, parses, validates, and defaults murmur configuration.
package config

// Config is the fully materialized runtime configuration used by murmur.
type Config struct {
	LanguageCode string
	Native       NativeConfig
	Capture      CaptureConfig
	STT          STTConfig
	TTS          TTSConfig
	Playback     PlaybackConfig
	LocalVoice   LocalVoiceConfig
	Indicator    IndicatorConfig
	Clipboard    ClipboardConfig
	Credentials  CredentialsConfig
	Diagnostics  DiagnosticsConfig
	Debug        DebugConfig
}

// NativeConfig controls the on-device recognizer tier.
type NativeConfig struct {
	Enable         bool
	Endpoint       string
	DialTimeoutMS  int
	MaxUtteranceMS int
}

// CaptureConfig controls microphone selection and the cloud-tier recording window.
type CaptureConfig struct {
	Input    string
	Fallback string
	WindowMS int
}

// STTConfig controls the cloud speech-to-text endpoint.
type STTConfig struct {
	Endpoint  string
	TimeoutMS int
}

// TTSConfig controls the cloud text-to-speech endpoint and voice selection.
type TTSConfig struct {
	Endpoint     string
	VoiceName    string
	LanguageCode string
	TimeoutMS    int
}

// PlaybackConfig controls decoding of synthesized audio for the output channel.
type PlaybackConfig struct {
	Decoder    CommandConfig
	SampleRate int
}

// LocalVoiceConfig controls the on-device synthesis fallback.
type LocalVoiceConfig struct {
	Enable  bool
	Command CommandConfig
}

// IndicatorConfig controls phase notifications and audio cues.
type IndicatorConfig struct {
	Enable         bool
	Backend        string
	DesktopAppName string
	SoundEnable    bool
	ErrorTimeoutMS int
}

// ClipboardConfig controls copying each transcript to the desktop clipboard.
type ClipboardConfig struct {
	Enable  bool
	Command CommandConfig
}

// CredentialsConfig names where service credentials are read from. Values never live in the file.
type CredentialsConfig struct {
	APIKeyEnv  string
	DotenvPath string
	APIKey     string
}

// DiagnosticsConfig controls optional remote failure reporting.
type DiagnosticsConfig struct {
	SentryDSNEnv string
	Environment  string
	SentryDSN    string
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// DebugConfig controls optional debug artifact output.
type DebugConfig struct {
	EnableAudioDump bool
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}

// VoiceLanguage returns the synthesis language, defaulting to the recognition language.
func (c Config) VoiceLanguage() string {
	if c.TTS.LanguageCode != "" {
		return c.TTS.LanguageCode
	}
	return c.LanguageCode
}
