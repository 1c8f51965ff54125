package playback

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/rbright/murmur/internal/audio"
	"github.com/rbright/murmur/internal/command"
)

// Decoder converts an encoded payload into mono PCM samples.
type Decoder interface {
	Decode(ctx context.Context, payload audio.Payload) ([]int16, int, error)
}

// CommandDecoder plays LINEAR16 as-is and pipes compressed audio through an
// external decoder that writes s16le mono at sampleRate.
type CommandDecoder struct {
	argv       []string
	sampleRate int
}

func NewCommandDecoder(argv []string, sampleRate int) *CommandDecoder {
	return &CommandDecoder{argv: append([]string(nil), argv...), sampleRate: sampleRate}
}

func (d *CommandDecoder) Decode(ctx context.Context, payload audio.Payload) ([]int16, int, error) {
	switch payload.Encoding() {
	case audio.EncodingLinear16:
		return samplesFromLE(payload.Bytes()), payload.SampleRateHertz(), nil
	case audio.EncodingMP3:
		out, err := command.Run(ctx, d.argv, payload.Bytes())
		if err != nil {
			return nil, 0, fmt.Errorf("decode %s: %w", payload.Encoding(), err)
		}
		return samplesFromLE(out), d.sampleRate, nil
	default:
		return nil, 0, fmt.Errorf("unsupported audio encoding %q", payload.Encoding())
	}
}

func samplesFromLE(raw []byte) []int16 {
	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[2*i:]))
	}
	return samples
}
