package indicator

import (
	"math"
	"time"
)

type cueKind int

const (
	cueHeard cueKind = iota + 1
	cueDone
	cueCancel
)

const cueSampleRate = 16000

type tone struct {
	hz       float64
	duration time.Duration
	volume   float64
}

var (
	heardCue = synthesizeCue(
		tone{hz: 620, duration: 110 * time.Millisecond, volume: 0.16},
	)
	doneCue = synthesizeCue(
		tone{hz: 740, duration: 65 * time.Millisecond, volume: 0.18},
		tone{hz: 988, duration: 90 * time.Millisecond, volume: 0.18},
	)
	cancelCue = synthesizeCue(
		tone{hz: 480, duration: 75 * time.Millisecond, volume: 0.18},
		tone{hz: 360, duration: 90 * time.Millisecond, volume: 0.18},
	)
)

func cueSamples(kind cueKind) []int16 {
	switch kind {
	case cueHeard:
		return heardCue
	case cueDone:
		return doneCue
	case cueCancel:
		return cancelCue
	default:
		return nil
	}
}

// synthesizeCue joins tones with a short gap of silence.
func synthesizeCue(tones ...tone) []int16 {
	gap := samplesFor(22 * time.Millisecond)
	var pcm []int16
	for i, t := range tones {
		if i > 0 {
			pcm = append(pcm, make([]int16, gap)...)
		}
		pcm = append(pcm, synthesizeTone(t)...)
	}
	return pcm
}

// synthesizeTone renders a sine wave with a linear attack/release of at most 5 ms.
func synthesizeTone(t tone) []int16 {
	n := samplesFor(t.duration)
	if n <= 0 || t.hz <= 0 || t.volume <= 0 {
		return nil
	}

	ramp := min(n/10, cueSampleRate/200)
	ramp = max(ramp, 1)

	pcm := make([]int16, n)
	for i := range n {
		envelope := 1.0
		if i < ramp {
			envelope = float64(i) / float64(ramp)
		}
		if tail := n - i - 1; tail < ramp {
			envelope = min(envelope, float64(tail)/float64(ramp))
		}
		sample := math.Sin(2 * math.Pi * t.hz * float64(i) / cueSampleRate)
		pcm[i] = int16(math.Round(sample * t.volume * envelope * 32767))
	}
	return pcm
}

func samplesFor(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * cueSampleRate))
}
