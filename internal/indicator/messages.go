package indicator

import (
	"strings"

	"github.com/rbright/murmur/internal/fault"
)

const (
	textListening = "Listening…"
	textThinking  = "Thinking…"
	textTalking   = "Speaking…"
)

func failureText(kind fault.Kind) string {
	switch kind {
	case fault.KindPermissionDenied:
		return "Microphone access denied"
	case fault.KindCapabilityAbsent:
		return "No microphone or recognizer available"
	case fault.KindPlaybackRejected:
		return "Reply could not be played"
	default:
		return "Voice reply failed (" + strings.ReplaceAll(string(kind), "_", " ") + ")"
	}
}
