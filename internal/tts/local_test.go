package tts

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocalVoiceSpeaksTextWithLanguage(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "voice.sh")
	out := filepath.Join(dir, "spoken.txt")
	body := "#!/usr/bin/env bash\nset -euo pipefail\n{ echo \"$1\"; cat; } > \"" + out + "\"\n"
	require.NoError(t, os.WriteFile(script, []byte(body), 0o755))

	voice := NewLocalVoice([]string{script, "{lang}"}, nil)
	defer voice.Close()

	voice.Speak("hello there", "en-US")
	voice.Wait()

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, "en-us\nhello there", string(data))
}

func TestLocalVoiceCloseCancelsSpeech(t *testing.T) {
	script := filepath.Join(t.TempDir(), "slow.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/usr/bin/env bash\nexec sleep 10\n"), 0o755))

	voice := NewLocalVoice([]string{script}, nil)
	voice.Speak("long reply", "en-US")

	done := make(chan struct{})
	go func() {
		voice.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("close did not cancel local voice")
	}

	voice.Speak("after close", "en-US")
	voice.Wait()
}

func TestLocalVoiceDisabledIsNoop(t *testing.T) {
	voice := NewLocalVoice(nil, nil)
	require.False(t, voice.Enabled())
	voice.Speak("hello", "en-US")
	voice.Wait()

	var nilVoice *LocalVoice
	require.False(t, nilVoice.Enabled())
	nilVoice.Wait()
	nilVoice.Close()
}
