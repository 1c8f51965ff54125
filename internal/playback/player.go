package playback

import (
	"context"
	"fmt"
	"sync"

	"github.com/rbright/murmur/internal/audio"
	"github.com/rbright/murmur/internal/fault"
)

// Gate reports whether the output channel has been unlocked.
type Gate interface {
	Unlocked() bool
}

// Player renders synthesized payloads and short cues on the unlocked output
// channel. At most one playback is outstanding at a time; a reply preempts a
// cue that is still sounding, and a cue never interrupts anything.
type Player struct {
	gate    Gate
	decoder Decoder
	output  Output

	mu      sync.Mutex
	current *slot
}

// slot is the one outstanding playback.
type slot struct {
	cue    bool
	cancel context.CancelFunc
	done   chan struct{}
}

func NewPlayer(gate Gate, decoder Decoder, output Output) *Player {
	return &Player{gate: gate, decoder: decoder, output: output}
}

// Play blocks until payload has been played. Every refusal wraps
// fault.ErrPlaybackRejected; cancellation returns ctx's error.
func (p *Player) Play(ctx context.Context, payload audio.Payload) error {
	if !p.gate.Unlocked() {
		return fmt.Errorf("%w: output channel is locked", fault.ErrPlaybackRejected)
	}
	s, playCtx, err := p.acquire(ctx, false)
	if err != nil {
		return err
	}
	defer p.release(s)

	samples, sampleRate, err := p.decoder.Decode(playCtx, payload)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", fault.ErrPlaybackRejected, err)
	}
	if len(samples) == 0 {
		return fmt.Errorf("%w: decoded audio is empty", fault.ErrPlaybackRejected)
	}

	if err := p.output.PlayPCM(playCtx, samples, sampleRate); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", fault.ErrPlaybackRejected, err)
	}
	return nil
}

// PlayCue plays a short PCM cue when the output is unlocked and idle. A cue
// that would overlap another playback is skipped with ErrPlaybackRejected.
func (p *Player) PlayCue(ctx context.Context, samples []int16, sampleRate int) error {
	if !p.gate.Unlocked() {
		return fmt.Errorf("%w: output channel is locked", fault.ErrPlaybackRejected)
	}
	s, playCtx, err := p.acquire(ctx, true)
	if err != nil {
		return err
	}
	defer p.release(s)
	return p.output.PlayPCM(playCtx, samples, sampleRate)
}

// acquire claims the output. A reply waits for a preempted cue to stop
// before it starts.
func (p *Player) acquire(ctx context.Context, cue bool) (*slot, context.Context, error) {
	for {
		p.mu.Lock()
		cur := p.current
		if cur == nil {
			playCtx, cancel := context.WithCancel(ctx)
			s := &slot{cue: cue, cancel: cancel, done: make(chan struct{})}
			p.current = s
			p.mu.Unlock()
			return s, playCtx, nil
		}
		p.mu.Unlock()

		if cue || !cur.cue {
			return nil, nil, fmt.Errorf("%w: another playback is outstanding", fault.ErrPlaybackRejected)
		}
		cur.cancel()
		select {
		case <-cur.done:
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}
}

func (p *Player) release(s *slot) {
	p.mu.Lock()
	if p.current == s {
		p.current = nil
	}
	p.mu.Unlock()
	s.cancel()
	close(s.done)
}
