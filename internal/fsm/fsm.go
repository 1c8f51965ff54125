// Package fsm defines the voice turn phase machine.
package fsm

import "fmt"

// Phase is the session-visible stage of one voice turn.
type Phase string

type Event string

const (
	PhaseIdle      Phase = "idle"
	PhaseListening Phase = "listening"
	PhaseThinking  Phase = "thinking"
	PhaseTalking   Phase = "talking"
)

const (
	EventStart            Event = "start"
	EventTranscribed      Event = "transcribed"
	EventNoSpeech         Event = "no_speech"
	EventSynthesized      Event = "synthesized"
	EventSynthesisFailed  Event = "synthesis_failed"
	EventPlaybackEnded    Event = "playback_ended"
	EventPlaybackRejected Event = "playback_rejected"
	EventCancel           Event = "cancel"
)

// Transition returns the phase reached by applying event to current.
func Transition(current Phase, event Event) (Phase, error) {
	switch current {
	case PhaseIdle, PhaseListening, PhaseThinking, PhaseTalking:
	default:
		return current, fmt.Errorf("unknown phase %q", current)
	}

	if event == EventCancel {
		return PhaseIdle, nil
	}

	switch current {
	case PhaseIdle:
		switch event {
		case EventStart:
			return PhaseListening, nil
		}
	case PhaseListening:
		switch event {
		case EventTranscribed:
			return PhaseThinking, nil
		case EventNoSpeech:
			return PhaseIdle, nil
		}
	case PhaseThinking:
		switch event {
		case EventSynthesized:
			return PhaseTalking, nil
		case EventSynthesisFailed:
			return PhaseIdle, nil
		}
	case PhaseTalking:
		switch event {
		case EventPlaybackEnded, EventPlaybackRejected:
			return PhaseIdle, nil
		}
	}
	return current, invalidTransition(current, event)
}

func invalidTransition(phase Phase, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", phase, event)
}
