// Package doctor runs readiness diagnostics for config, credentials, audio,
// the native recognizer, and helper binaries.
package doctor

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rbright/murmur/internal/audio"
	"github.com/rbright/murmur/internal/command"
	"github.com/rbright/murmur/internal/config"
	"github.com/rbright/murmur/internal/native"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// services are the checks that touch live services; tests swap them out.
type services struct {
	selectDevice func(ctx context.Context, input string, fallback string) (audio.Selection, error)
	native       func(ctx context.Context, cfg native.Config) error
}

var liveServices = services{
	selectDevice: audio.SelectDevice,
	native:       native.Ping,
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, cfg config.Loaded) Report {
	return run(ctx, cfg, liveServices)
}

func run(ctx context.Context, loaded config.Loaded, p services) Report {
	cfg := loaded.Config
	checks := []Check{checkConfig(loaded)}

	checks = append(checks, checkCredential(cfg.Credentials))
	checks = append(checks, checkEndpoint("stt.endpoint", cfg.STT.Endpoint))
	checks = append(checks, checkEndpoint("tts.endpoint", cfg.TTS.Endpoint))
	checks = append(checks, checkCommand(cfg.Playback.Decoder.Argv, "playback.decoder_cmd"))
	if cfg.LocalVoice.Enable {
		checks = append(checks, checkCommand(cfg.LocalVoice.Command.Argv, "local_voice.cmd"))
	}

	if cfg.Clipboard.Enable {
		checks = append(checks, checkCommand(cfg.Clipboard.Command.Argv, "clipboard.cmd"))
	}
	if cfg.Indicator.Enable {
		checks = append(checks, checkCommand(indicatorArgv(cfg.Indicator), "indicator.backend"))
	}

	checks = append(checks, checkAudioSelection(ctx, cfg, p.selectDevice))
	if cfg.Native.Enable {
		checks = append(checks, checkNative(ctx, cfg.Native, p.native))
	}

	return Report{Checks: checks}
}

func checkConfig(loaded config.Loaded) Check {
	if !loaded.Exists {
		return Check{Name: "config", Pass: true, Message: fmt.Sprintf("%q not found; using defaults", loaded.Path)}
	}
	return Check{Name: "config", Pass: true, Message: fmt.Sprintf("loaded %q", loaded.Path)}
}

// checkCredential reports only whether the key is present, never its value.
func checkCredential(creds config.CredentialsConfig) Check {
	name := "credentials." + creds.APIKeyEnv
	if creds.APIKey == "" {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("%s is not set (environment or .env)", creds.APIKeyEnv)}
	}
	return Check{Name: name, Pass: true, Message: "set"}
}

func checkEndpoint(name string, raw string) Check {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Host == "" {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("invalid endpoint %q", raw)}
	}
	return Check{Name: name, Pass: true, Message: parsed.Scheme + "://" + parsed.Host}
}

// checkCommand validates that argv names a binary on PATH.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	path, err := command.Available(argv)
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", argv[0])}
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("found at %s", path)}
}

func indicatorArgv(cfg config.IndicatorConfig) []string {
	if cfg.Backend == "hypr" {
		return []string{"hyprctl"}
	}
	return []string{"busctl"}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(
	ctx context.Context,
	cfg config.Config,
	selectDevice func(context.Context, string, string) (audio.Selection, error),
) Check {
	selection, err := selectDevice(ctx, cfg.Capture.Input, cfg.Capture.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

// checkNative dials the recognizer daemon. Absence is reported but the cloud
// tier still works, so the message says so.
func checkNative(ctx context.Context, cfg config.NativeConfig, ping func(context.Context, native.Config) error) Check {
	err := ping(ctx, native.Config{
		Endpoint:    cfg.Endpoint,
		DialTimeout: time.Duration(cfg.DialTimeoutMS) * time.Millisecond,
	})
	if err != nil {
		return Check{Name: "native.ready", Pass: false, Message: fmt.Sprintf("%v (cloud tier will be used)", err)}
	}
	return Check{Name: "native.ready", Pass: true, Message: fmt.Sprintf("ready at %s", cfg.Endpoint)}
}
