package audio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"

	"github.com/rbright/murmur/internal/fault"
)

// chunkBytes is 20ms of 16kHz mono s16.
const chunkBytes = 640

// Capture records from one Pulse source. Every frame is kept for Payload and
// also delivered on Chunks in chunkBytes pieces.
type Capture struct {
	device Device
	client *pulse.Client
	stream *pulse.RecordStream

	chunks chan []byte
	done   chan struct{}
	total  atomic.Int64

	mu       sync.Mutex
	recorded []byte
	carry    []byte
	closed   bool
	writers  sync.WaitGroup
}

// StartCapture opens a 16kHz mono record stream on device. It stops by
// itself when ctx ends.
func StartCapture(ctx context.Context, device Device) (*Capture, error) {
	client, err := dialPulse()
	if err != nil {
		return nil, err
	}
	source, err := client.SourceByID(device.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: resolve source %q: %v", fault.ErrCapabilityAbsent, device.ID, err)
	}

	c := newCapture(device)
	c.client = client
	c.stream, err = client.NewRecord(
		pulse.NewWriter(pcmSink(c.write), pulseproto.FormatInt16LE),
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(CaptureSampleRate),
		pulse.RecordBufferFragmentSize(chunkBytes),
		pulse.RecordMediaName("murmur listening"),
	)
	if err != nil {
		_ = c.Stop()
		return nil, fmt.Errorf("%w: create pulse record stream: %v", fault.ErrCapabilityAbsent, err)
	}
	c.stream.Start()

	stopOnCancel := context.AfterFunc(ctx, func() { _ = c.Stop() })
	go func() {
		<-c.done
		stopOnCancel()
	}()
	return c, nil
}

func newCapture(device Device) *Capture {
	return &Capture{
		device: device,
		chunks: make(chan []byte, 128),
		done:   make(chan struct{}),
	}
}

func (c *Capture) Device() Device { return c.device }

// Chunks is closed once Stop has flushed the final partial chunk.
func (c *Capture) Chunks() <-chan []byte { return c.chunks }

func (c *Capture) BytesCaptured() int64 { return c.total.Load() }

// Payload snapshots everything recorded so far.
func (c *Capture) Payload() Payload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return NewPayload(c.recorded, EncodingLinear16, CaptureSampleRate)
}

// Stop is idempotent.
func (c *Capture) Stop() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	if c.stream != nil {
		c.stream.Stop()
		c.stream.Close()
	}
	if c.client != nil {
		c.client.Close()
	}
	c.writers.Wait()

	c.mu.Lock()
	tail := c.carry
	c.carry = nil
	c.mu.Unlock()
	if len(tail) > 0 {
		select {
		case c.chunks <- tail:
		default:
		}
	}
	close(c.chunks)
	return nil
}

func (c *Capture) write(frame []byte) (int, error) {
	if len(frame) == 0 {
		return 0, nil
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, io.EOF
	}
	c.writers.Add(1)
	defer c.writers.Done()

	c.recorded = append(c.recorded, frame...)
	var ready [][]byte
	ready, c.carry = split(append(c.carry, frame...), chunkBytes)
	c.mu.Unlock()

	c.total.Add(int64(len(frame)))
	for _, chunk := range ready {
		select {
		case c.chunks <- chunk:
		case <-c.done:
			return 0, io.EOF
		}
	}
	return len(frame), nil
}

// split cuts buf into size-byte copies and returns the remainder.
func split(buf []byte, size int) (full [][]byte, rest []byte) {
	for len(buf) >= size {
		full = append(full, append([]byte(nil), buf[:size]...))
		buf = buf[size:]
	}
	return full, append([]byte(nil), buf...)
}

type pcmSink func([]byte) (int, error)

func (f pcmSink) Write(b []byte) (int, error) { return f(b) }
