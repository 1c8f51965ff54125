package fault

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil", err: nil, want: KindNone},
		{name: "cancelled", err: fmt.Errorf("capture: %w", context.Canceled), want: KindCancelled},
		{name: "deadline", err: context.DeadlineExceeded, want: KindCancelled},
		{name: "absent", err: fmt.Errorf("%w: no pulse server", ErrCapabilityAbsent), want: KindCapabilityAbsent},
		{name: "permission", err: fmt.Errorf("%w: source muted", ErrPermissionDenied), want: KindPermissionDenied},
		{name: "playback", err: fmt.Errorf("%w: not unlocked", ErrPlaybackRejected), want: KindPlaybackRejected},
		{name: "no speech", err: ErrNoSpeech, want: KindNoSpeech},
		{name: "service", err: fmt.Errorf("%w: HTTP 500", ErrServiceFailure), want: KindService},
		{name: "service timeout is not cancellation", err: fmt.Errorf("%w: %w", ErrServiceFailure, context.DeadlineExceeded), want: KindService},
		{name: "unknown defaults to service", err: errors.New("boom"), want: KindService},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, KindOf(tc.err))
		})
	}
}

func TestIsDiagnostic(t *testing.T) {
	require.False(t, IsDiagnostic(nil))
	require.False(t, IsDiagnostic(ErrNoSpeech))
	require.False(t, IsDiagnostic(context.Canceled))
	require.True(t, IsDiagnostic(ErrPermissionDenied))
	require.True(t, IsDiagnostic(errors.New("boom")))
}
