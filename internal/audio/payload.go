package audio

// Encoding names the codec of an audio payload.
type Encoding string

const (
	EncodingLinear16 Encoding = "LINEAR16"
	EncodingMP3      Encoding = "MP3"
)

// CaptureSampleRate is the sample rate of every microphone capture.
const CaptureSampleRate = 16000

// Payload is an immutable audio buffer plus its encoding descriptor.
type Payload struct {
	data       []byte
	encoding   Encoding
	sampleRate int
}

// NewPayload copies data into a new payload.
func NewPayload(data []byte, encoding Encoding, sampleRateHertz int) Payload {
	buf := make([]byte, len(data))
	copy(buf, data)
	return Payload{data: buf, encoding: encoding, sampleRate: sampleRateHertz}
}

// Bytes returns a copy of the encoded audio.
func (p Payload) Bytes() []byte {
	out := make([]byte, len(p.data))
	copy(out, p.data)
	return out
}

func (p Payload) Encoding() Encoding { return p.encoding }

// SampleRateHertz is zero when the encoding carries its own rate (MP3).
func (p Payload) SampleRateHertz() int { return p.sampleRate }

func (p Payload) Len() int { return len(p.data) }

func (p Payload) Empty() bool { return len(p.data) == 0 }
