package config

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	minCaptureWindowMS = 1000
	maxCaptureWindowMS = 60000
	minPlaybackRate    = 8000
	maxPlaybackRate    = 48000
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if strings.TrimSpace(cfg.LanguageCode) == "" {
		return nil, fmt.Errorf("language_code must not be empty")
	}

	if cfg.Native.Enable {
		if strings.TrimSpace(cfg.Native.Endpoint) == "" {
			return nil, fmt.Errorf("native.endpoint must not be empty when native.enable=true")
		}
		if cfg.Native.DialTimeoutMS <= 0 {
			return nil, fmt.Errorf("native.dial_timeout_ms must be > 0")
		}
		if cfg.Native.MaxUtteranceMS <= 0 {
			return nil, fmt.Errorf("native.max_utterance_ms must be > 0")
		}
	}

	if cfg.Capture.WindowMS < minCaptureWindowMS || cfg.Capture.WindowMS > maxCaptureWindowMS {
		return nil, fmt.Errorf("capture.window_ms must be between %d and %d", minCaptureWindowMS, maxCaptureWindowMS)
	}
	if strings.TrimSpace(cfg.Capture.Input) == "" {
		return nil, fmt.Errorf("capture.input must not be empty")
	}

	if err := validateEndpoint("stt.endpoint", cfg.STT.Endpoint); err != nil {
		return nil, err
	}
	if cfg.STT.TimeoutMS <= 0 {
		return nil, fmt.Errorf("stt.timeout_ms must be > 0")
	}

	if err := validateEndpoint("tts.endpoint", cfg.TTS.Endpoint); err != nil {
		return nil, err
	}
	if cfg.TTS.TimeoutMS <= 0 {
		return nil, fmt.Errorf("tts.timeout_ms must be > 0")
	}
	if strings.TrimSpace(cfg.TTS.VoiceName) == "" {
		warnings = append(warnings, Warning{Message: "tts.voice_name is empty; the service default voice will be used"})
	}

	if len(cfg.Playback.Decoder.Argv) == 0 {
		return nil, fmt.Errorf("playback.decoder_cmd must not be empty")
	}
	if cfg.Playback.SampleRate < minPlaybackRate || cfg.Playback.SampleRate > maxPlaybackRate {
		return nil, fmt.Errorf("playback.sample_rate must be between %d and %d", minPlaybackRate, maxPlaybackRate)
	}

	if cfg.LocalVoice.Enable && len(cfg.LocalVoice.Command.Argv) == 0 {
		return nil, fmt.Errorf("local_voice.cmd must not be empty when local_voice.enable=true")
	}

	if cfg.Clipboard.Enable && len(cfg.Clipboard.Command.Argv) == 0 {
		return nil, fmt.Errorf("clipboard.cmd must not be empty when clipboard.enable=true")
	}

	switch cfg.Indicator.Backend {
	case "desktop":
		if strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
			return nil, fmt.Errorf("indicator.desktop_app_name must not be empty when indicator.backend=desktop")
		}
	case "hypr":
	default:
		return nil, fmt.Errorf("indicator.backend must be one of: desktop, hypr")
	}
	if cfg.Indicator.ErrorTimeoutMS < 0 {
		return nil, fmt.Errorf("indicator.error_timeout_ms must be >= 0")
	}

	if strings.TrimSpace(cfg.Credentials.APIKeyEnv) == "" {
		return nil, fmt.Errorf("credentials.api_key_env must not be empty")
	}

	return warnings, nil
}

func validateEndpoint(field string, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("%s must not be empty", field)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", field, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must use http or https", field)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host", field)
	}
	return nil
}
