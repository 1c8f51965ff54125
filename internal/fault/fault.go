// Package fault defines the recoverable failure taxonomy shared by every turn stage.
package fault

import (
	"context"
	"errors"
)

// Kind names one failure class surfaced through Result.ErrKind and diagnostics.
type Kind string

const (
	KindNone             Kind = "none"
	KindCapabilityAbsent Kind = "capability_absent"
	KindPermissionDenied Kind = "permission_denied"
	KindService          Kind = "network_or_service_failure"
	KindPlaybackRejected Kind = "playback_rejected"
	KindNoSpeech         Kind = "no_speech"
	KindCancelled        Kind = "cancelled"
)

var (
	// ErrCapabilityAbsent indicates the platform offers no recognizer, capture device, or output.
	ErrCapabilityAbsent = errors.New("capability absent")
	// ErrPermissionDenied indicates microphone access was refused.
	ErrPermissionDenied = errors.New("microphone permission denied")
	// ErrServiceFailure indicates a speech service request failed or returned no usable payload.
	ErrServiceFailure = errors.New("speech service failure")
	// ErrPlaybackRejected indicates the output channel refused programmatic playback.
	ErrPlaybackRejected = errors.New("playback rejected")
	// ErrNoSpeech indicates a tier finished normally without recognizing anything.
	ErrNoSpeech = errors.New("no speech recognized")
)

// KindOf classifies err into the failure taxonomy.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrCapabilityAbsent):
		return KindCapabilityAbsent
	case errors.Is(err, ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, ErrPlaybackRejected):
		return KindPlaybackRejected
	case errors.Is(err, ErrNoSpeech):
		return KindNoSpeech
	case errors.Is(err, ErrServiceFailure):
		return KindService
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	default:
		return KindService
	}
}

// IsDiagnostic reports whether err is worth recording as a turn's last error.
func IsDiagnostic(err error) bool {
	switch KindOf(err) {
	case KindNone, KindNoSpeech, KindCancelled:
		return false
	default:
		return true
	}
}
