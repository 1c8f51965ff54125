// Package playback owns the shared audio output channel: the one-time unlock
// that primes it and the player that renders synthesized replies on it.
package playback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jfreymuth/pulse"

	"github.com/rbright/murmur/internal/fault"
)

const (
	primeSampleRate = 16000
	primeDuration   = 20 * time.Millisecond
)

// Output is the shared audio output channel.
type Output interface {
	// Prime plays then immediately stops a short silent asset.
	Prime() error
	PlayPCM(ctx context.Context, samples []int16, sampleRate int) error
}

// PulseOutput is an Output backed by one persistent Pulse connection.
type PulseOutput struct {
	mu     sync.Mutex
	client *pulse.Client
}

func NewPulseOutput() *PulseOutput {
	return &PulseOutput{}
}

func (o *PulseOutput) connect() (*pulse.Client, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.client != nil {
		return o.client, nil
	}
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("murmur"),
		pulse.ClientApplicationIconName("audio-speakers"),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: connect pulse server: %v", fault.ErrCapabilityAbsent, err)
	}
	o.client = client
	return client, nil
}

// Prime opens the output connection and runs a start/stop cycle on silence.
func (o *PulseOutput) Prime() error {
	client, err := o.connect()
	if err != nil {
		return err
	}

	silence := make([]int16, int(primeDuration.Seconds()*primeSampleRate))
	stream, err := client.NewPlayback(
		sampleReader(context.Background(), silence),
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(primeSampleRate),
		pulse.PlaybackMediaName("murmur unlock"),
	)
	if err != nil {
		return fmt.Errorf("create unlock stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Stop()
	if err := stream.Error(); err != nil {
		return fmt.Errorf("unlock stream: %w", err)
	}
	return nil
}

// PlayPCM plays mono samples and blocks until they drain or ctx ends.
func (o *PulseOutput) PlayPCM(ctx context.Context, samples []int16, sampleRate int) error {
	client, err := o.connect()
	if err != nil {
		return err
	}

	stream, err := client.NewPlayback(
		sampleReader(ctx, samples),
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackLatency(0.05),
		pulse.PlaybackMediaName("murmur reply"),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play reply stream: %w", err)
	}
	return nil
}

// Close releases the Pulse connection.
func (o *PulseOutput) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.client != nil {
		o.client.Close()
		o.client = nil
	}
}

// sampleReader feeds samples to Pulse and ends early once ctx is done.
func sampleReader(ctx context.Context, samples []int16) pulse.Reader {
	cursor := 0
	return pulse.Int16Reader(func(buf []int16) (int, error) {
		if ctx.Err() != nil || cursor >= len(samples) {
			return 0, pulse.EndOfData
		}

		n := copy(buf, samples[cursor:])
		cursor += n
		if cursor >= len(samples) {
			return n, pulse.EndOfData
		}
		return n, nil
	})
}
