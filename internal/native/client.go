package native

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rbright/murmur/internal/audio"
	"github.com/rbright/murmur/internal/fault"
)

const defaultDialTimeout = 1500 * time.Millisecond

// Config controls how the recognizer daemon is reached.
type Config struct {
	Endpoint     string
	DialTimeout  time.Duration
	MaxUtterance time.Duration
}

// OpenFunc starts the microphone that feeds one utterance.
type OpenFunc func(ctx context.Context) (audio.Recorder, error)

// Recognizer is a ready connection to the on-device recognizer.
type Recognizer struct {
	cfg  Config
	conn *grpc.ClientConn
	open OpenFunc
}

// Dial connects to the recognizer and waits for readiness. An empty endpoint
// or an unreachable daemon reports fault.ErrCapabilityAbsent.
func Dial(ctx context.Context, cfg Config, open OpenFunc) (*Recognizer, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("%w: native recognizer endpoint is empty", fault.ErrCapabilityAbsent)
	}
	if open == nil {
		return nil, fmt.Errorf("%w: no microphone for native recognizer", fault.ErrCapabilityAbsent)
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}

	conn, err := grpc.NewClient(
		endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: dial native recognizer %q: %v", fault.ErrCapabilityAbsent, endpoint, err)
	}

	readyCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	conn.Connect()
	if err := WaitForReady(readyCtx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: native recognizer %q not ready: %v", fault.ErrCapabilityAbsent, endpoint, err)
	}

	return &Recognizer{cfg: cfg, conn: conn, open: open}, nil
}

// Ping reports whether the recognizer at cfg.Endpoint becomes ready within
// cfg.DialTimeout. It never opens a microphone.
func Ping(ctx context.Context, cfg Config) error {
	recognizer, err := Dial(ctx, cfg, func(context.Context) (audio.Recorder, error) {
		return nil, errors.New("ping connections do not record")
	})
	if err != nil {
		return err
	}
	return recognizer.Close()
}

// Close releases the recognizer connection.
func (r *Recognizer) Close() error {
	return r.conn.Close()
}

// Start opens a recognition stream, sends the session config, and starts
// pumping microphone audio. It returns once audio is flowing.
func (r *Recognizer) Start(ctx context.Context, languageCode string) (*Utterance, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	var stream grpc.ClientStream
	err := runWithTimeout(streamCtx, r.cfg.DialTimeout, func() error {
		var openErr error
		stream, openErr = r.conn.NewStream(streamCtx, &serviceDesc.Streams[0], streamingRecognizeMethod)
		if openErr != nil {
			return openErr
		}
		req, reqErr := configRequest(languageCode)
		if reqErr != nil {
			return reqErr
		}
		return stream.SendMsg(req)
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: open recognition stream: %v", fault.ErrServiceFailure, err)
	}

	mic, err := r.open(streamCtx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open microphone: %w", err)
	}

	u := &Utterance{
		stream: stream,
		mic:    mic,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	if r.cfg.MaxUtterance > 0 {
		u.timer = time.AfterFunc(r.cfg.MaxUtterance, u.Stop)
	}
	go u.sendLoop()
	go u.recvLoop()
	return u, nil
}

// Utterance is one in-flight single-utterance recognition.
type Utterance struct {
	stream grpc.ClientStream
	mic    audio.Recorder
	cancel context.CancelFunc
	timer  *time.Timer

	cancelled atomic.Bool
	stopOnce  sync.Once

	done chan struct{}
	text string
	err  error
}

// Await blocks until the recognizer settles. Ending without a final result
// reports fault.ErrNoSpeech and stream failures fault.ErrServiceFailure.
func (u *Utterance) Await(ctx context.Context) (string, error) {
	select {
	case <-u.done:
		return u.text, u.err
	case <-ctx.Done():
		u.Cancel()
		<-u.done
		return "", ctx.Err()
	}
}

// Stop ends the audio early; the recognizer may still deliver a final result.
func (u *Utterance) Stop() {
	u.stopOnce.Do(func() {
		if u.timer != nil {
			u.timer.Stop()
		}
		_ = u.mic.Stop()
	})
}

// Cancel aborts the utterance without waiting for a result.
func (u *Utterance) Cancel() {
	u.cancelled.Store(true)
	u.Stop()
	u.cancel()
}

func (u *Utterance) sendLoop() {
	for chunk := range u.mic.Chunks() {
		if len(chunk) == 0 {
			continue
		}
		if err := u.stream.SendMsg(audioRequest(chunk)); err != nil {
			// The receive side reports the stream status.
			u.Stop()
			for range u.mic.Chunks() {
			}
			return
		}
	}
	_ = u.stream.CloseSend()
}

func (u *Utterance) recvLoop() {
	defer close(u.done)
	defer func() {
		u.Stop()
		u.cancel()
	}()

	for {
		resp := new(structpb.Struct)
		err := u.stream.RecvMsg(resp)
		switch {
		case err == nil:
			if text, ok := finalTranscript(resp); ok {
				u.text = text
				return
			}
		case u.cancelled.Load():
			u.err = context.Canceled
			return
		case errors.Is(err, io.EOF):
			u.err = fault.ErrNoSpeech
			return
		default:
			u.err = fmt.Errorf("%w: native recognizer: %v", fault.ErrServiceFailure, err)
			return
		}
	}
}

// WaitForReady blocks until conn enters Ready or ctx expires.
func WaitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Shutdown:
			return errors.New("grpc connection entered shutdown state")
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("grpc readiness wait timed out in state %s", state.String())
		}
	}
}

// runWithTimeout bounds one blocking stream operation.
func runWithTimeout(ctx context.Context, timeout time.Duration, call func() error) error {
	if timeout <= 0 {
		return call()
	}

	resultCh := make(chan error, 1)
	go func() {
		resultCh <- call()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("timed out after %s", timeout)
	case err := <-resultCh:
		return err
	}
}
