package config

import (
	"encoding/json"
	"fmt"
	"strings"
)

type jsoncConfig struct {
	LanguageCode *string             `json:"language_code"`
	Native       *jsoncNative        `json:"native"`
	Capture      *jsoncCapture       `json:"capture"`
	STT          *jsoncSTT           `json:"stt"`
	TTS          *jsoncTTS           `json:"tts"`
	Playback     *jsoncPlayback      `json:"playback"`
	LocalVoice   *jsoncToggleCommand `json:"local_voice"`
	Indicator    *jsoncIndicator     `json:"indicator"`
	Clipboard    *jsoncToggleCommand `json:"clipboard"`
	Credentials  *jsoncCredentials   `json:"credentials"`
	Diagnostics  *jsoncDiagnostics   `json:"diagnostics"`
	Debug        *jsoncDebug         `json:"debug"`
}

type jsoncNative struct {
	Enable         *bool   `json:"enable"`
	Endpoint       *string `json:"endpoint"`
	DialTimeoutMS  *int    `json:"dial_timeout_ms"`
	MaxUtteranceMS *int    `json:"max_utterance_ms"`
}

type jsoncCapture struct {
	Input    *string `json:"input"`
	Fallback *string `json:"fallback"`
	WindowMS *int    `json:"window_ms"`
}

type jsoncSTT struct {
	Endpoint  *string `json:"endpoint"`
	TimeoutMS *int    `json:"timeout_ms"`
}

type jsoncTTS struct {
	Endpoint     *string `json:"endpoint"`
	VoiceName    *string `json:"voice_name"`
	LanguageCode *string `json:"language_code"`
	TimeoutMS    *int    `json:"timeout_ms"`
}

type jsoncPlayback struct {
	DecoderCmd *string `json:"decoder_cmd"`
	SampleRate *int    `json:"sample_rate"`
}

type jsoncToggleCommand struct {
	Enable *bool   `json:"enable"`
	Cmd    *string `json:"cmd"`
}

type jsoncIndicator struct {
	Enable         *bool   `json:"enable"`
	Backend        *string `json:"backend"`
	DesktopAppName *string `json:"desktop_app_name"`
	SoundEnable    *bool   `json:"sound_enable"`
	ErrorTimeoutMS *int    `json:"error_timeout_ms"`
}

type jsoncCredentials struct {
	APIKeyEnv *string `json:"api_key_env"`
	Dotenv    *string `json:"dotenv"`
}

type jsoncDiagnostics struct {
	SentryDSNEnv *string `json:"sentry_dsn_env"`
	Environment  *string `json:"environment"`
}

type jsoncDebug struct {
	AudioDump *bool `json:"audio_dump"`
}

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	cfg := base
	warnings, err := payload.applyTo(&cfg)
	if err != nil {
		return Config{}, nil, err
	}

	validatedWarnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	warnings = append(warnings, validatedWarnings...)
	return cfg, warnings, nil
}

func (payload jsoncConfig) applyTo(cfg *Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if payload.LanguageCode != nil {
		cfg.LanguageCode = strings.TrimSpace(*payload.LanguageCode)
	}

	if n := payload.Native; n != nil {
		if n.Enable != nil {
			cfg.Native.Enable = *n.Enable
		}
		if n.Endpoint != nil {
			cfg.Native.Endpoint = strings.TrimSpace(*n.Endpoint)
		}
		if n.DialTimeoutMS != nil {
			cfg.Native.DialTimeoutMS = *n.DialTimeoutMS
		}
		if n.MaxUtteranceMS != nil {
			cfg.Native.MaxUtteranceMS = *n.MaxUtteranceMS
		}
	}

	if c := payload.Capture; c != nil {
		if c.Input != nil {
			cfg.Capture.Input = *c.Input
		}
		if c.Fallback != nil {
			cfg.Capture.Fallback = *c.Fallback
		}
		if c.WindowMS != nil {
			cfg.Capture.WindowMS = *c.WindowMS
		}
	}

	if s := payload.STT; s != nil {
		if s.Endpoint != nil {
			cfg.STT.Endpoint = strings.TrimSpace(*s.Endpoint)
		}
		if s.TimeoutMS != nil {
			cfg.STT.TimeoutMS = *s.TimeoutMS
		}
	}

	if s := payload.TTS; s != nil {
		if s.Endpoint != nil {
			cfg.TTS.Endpoint = strings.TrimSpace(*s.Endpoint)
		}
		if s.VoiceName != nil {
			cfg.TTS.VoiceName = strings.TrimSpace(*s.VoiceName)
		}
		if s.LanguageCode != nil {
			cfg.TTS.LanguageCode = strings.TrimSpace(*s.LanguageCode)
		}
		if s.TimeoutMS != nil {
			cfg.TTS.TimeoutMS = *s.TimeoutMS
		}
	}

	if p := payload.Playback; p != nil {
		if p.DecoderCmd != nil {
			raw := *p.DecoderCmd
			argv, err := parseArgv(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid playback.decoder_cmd: %w", err)
			}
			cfg.Playback.Decoder = CommandConfig{Raw: raw, Argv: argv}
		}
		if p.SampleRate != nil {
			cfg.Playback.SampleRate = *p.SampleRate
		}
	}

	if l := payload.LocalVoice; l != nil {
		if l.Enable != nil {
			cfg.LocalVoice.Enable = *l.Enable
		}
		if l.Cmd != nil {
			raw := *l.Cmd
			argv, err := parseArgv(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid local_voice.cmd: %w", err)
			}
			cfg.LocalVoice.Command = CommandConfig{Raw: raw, Argv: argv}
		}
	}

	if i := payload.Indicator; i != nil {
		if i.Enable != nil {
			cfg.Indicator.Enable = *i.Enable
		}
		if i.Backend != nil {
			cfg.Indicator.Backend = strings.ToLower(strings.TrimSpace(*i.Backend))
		}
		if i.DesktopAppName != nil {
			cfg.Indicator.DesktopAppName = strings.TrimSpace(*i.DesktopAppName)
		}
		if i.SoundEnable != nil {
			cfg.Indicator.SoundEnable = *i.SoundEnable
		}
		if i.ErrorTimeoutMS != nil {
			cfg.Indicator.ErrorTimeoutMS = *i.ErrorTimeoutMS
		}
	}

	if c := payload.Clipboard; c != nil {
		if c.Enable != nil {
			cfg.Clipboard.Enable = *c.Enable
		}
		if c.Cmd != nil {
			raw := *c.Cmd
			argv, err := parseArgv(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid clipboard.cmd: %w", err)
			}
			cfg.Clipboard.Command = CommandConfig{Raw: raw, Argv: argv}
		}
	}

	if c := payload.Credentials; c != nil {
		if c.APIKeyEnv != nil {
			cfg.Credentials.APIKeyEnv = strings.TrimSpace(*c.APIKeyEnv)
		}
		if c.Dotenv != nil {
			cfg.Credentials.DotenvPath = strings.TrimSpace(*c.Dotenv)
		}
	}

	if d := payload.Diagnostics; d != nil {
		if d.SentryDSNEnv != nil {
			cfg.Diagnostics.SentryDSNEnv = strings.TrimSpace(*d.SentryDSNEnv)
		}
		if d.Environment != nil {
			cfg.Diagnostics.Environment = strings.TrimSpace(*d.Environment)
		}
	}

	if payload.Debug != nil && payload.Debug.AudioDump != nil {
		cfg.Debug.EnableAudioDump = *payload.Debug.AudioDump
	}

	return warnings, nil
}
