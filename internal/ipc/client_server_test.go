package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func listenTestSocket(t *testing.T) (net.Listener, string) {
	t.Helper()

	socketPath := filepath.Join(t.TempDir(), socketName)
	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	return listener, socketPath
}

func serveInBackground(t *testing.T, listener net.Listener, handler Handler) func() {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, listener, handler) }()
	return func() {
		cancel()
		require.NoError(t, <-done)
	}
}

func TestSendRoundTrip(t *testing.T) {
	listener, socketPath := listenTestSocket(t)
	requests := make(chan Request, 1)
	stop := serveInBackground(t, listener, HandlerFunc(func(_ context.Context, req Request) Response {
		requests <- req
		return Response{OK: true, Phase: "thinking", Transcript: "hello", Message: "turn started"}
	}))
	defer stop()

	resp, err := Send(context.Background(), socketPath, Request{Command: CommandTalk, Wait: true}, 200*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, Response{OK: true, Phase: "thinking", Transcript: "hello", Message: "turn started"}, resp)
	require.Equal(t, Request{Command: CommandTalk, Wait: true}, <-requests)
}

func TestSendHonorsTimeoutForSlowHandler(t *testing.T) {
	listener, socketPath := listenTestSocket(t)
	release := make(chan struct{})
	stop := serveInBackground(t, listener, HandlerFunc(func(context.Context, Request) Response {
		<-release
		return Response{OK: true}
	}))
	defer stop()
	defer close(release)

	start := time.Now()
	_, err := Send(context.Background(), socketPath, Request{Command: CommandTalk, Wait: true}, 80*time.Millisecond)
	require.Error(t, err)
	require.Contains(t, err.Error(), "read response")
	require.Less(t, time.Since(start), time.Second)
}

func TestSendDecodeResponseError(t *testing.T) {
	listener, socketPath := listenTestSocket(t)
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = bufio.NewReader(conn).ReadBytes('\n')
		_, _ = conn.Write([]byte("not-json\n"))
	}()

	_, err := Send(context.Background(), socketPath, Request{Command: CommandStatus}, 200*time.Millisecond)
	require.Error(t, err)
	require.Contains(t, err.Error(), "read response: decode")
}

func TestSendReadResponseError(t *testing.T) {
	listener, socketPath := listenTestSocket(t)
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err == nil {
			_ = conn.Close()
		}
	}()

	_, err := Send(context.Background(), socketPath, Request{Command: CommandStatus}, 200*time.Millisecond)
	require.Error(t, err)
	require.Contains(t, err.Error(), "read response")
}

func TestServeAnswersMalformedRequest(t *testing.T) {
	listener, socketPath := listenTestSocket(t)
	stop := serveInBackground(t, listener, HandlerFunc(func(context.Context, Request) Response {
		return Response{OK: true}
	}))
	defer stop()

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("not-json\n"))
	require.NoError(t, err)

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal(line, &resp))
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "read request")
}

func TestReadMessageRejectsOversizedLine(t *testing.T) {
	line := `{"command":"` + strings.Repeat("x", maxMessageBytes) + "\"}\n"

	var req Request
	err := readMessage(bufio.NewReader(strings.NewReader(line)), &req)
	require.ErrorIs(t, err, errMessageTooLarge)
}

func TestWriteMessageFramesWithNewline(t *testing.T) {
	var buf strings.Builder
	require.NoError(t, writeMessage(&buf, Request{Command: CommandStop}))
	require.Equal(t, "{\"command\":\"stop\"}\n", buf.String())

	var req Request
	require.NoError(t, readMessage(bufio.NewReader(strings.NewReader(buf.String())), &req))
	require.Equal(t, CommandStop, req.Command)
}

func TestServeWaitsForInFlightHandlers(t *testing.T) {
	listener, socketPath := listenTestSocket(t)
	entered := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, listener, HandlerFunc(func(hctx context.Context, _ Request) Response {
			close(entered)
			<-hctx.Done()
			return Response{Error: "shutting down"}
		}))
	}()

	sendDone := make(chan Response, 1)
	go func() {
		resp, _ := Send(context.Background(), socketPath, Request{Command: CommandTalk, Wait: true}, time.Second)
		sendDone <- resp
	}()

	<-entered
	cancel()
	require.NoError(t, <-done)
	require.Equal(t, "shutting down", (<-sendDone).Error)
}

func TestPing(t *testing.T) {
	listener, socketPath := listenTestSocket(t)
	stop := serveInBackground(t, listener, HandlerFunc(func(_ context.Context, req Request) Response {
		return Response{OK: req.Command == CommandStatus, Phase: "idle"}
	}))

	alive, err := Ping(context.Background(), socketPath, 200*time.Millisecond)
	require.NoError(t, err)
	require.True(t, alive)

	stop()

	alive, err = Ping(context.Background(), socketPath, 100*time.Millisecond)
	require.NoError(t, err)
	require.False(t, alive)
}

func TestUnreachable(t *testing.T) {
	require.False(t, Unreachable(nil))
	require.True(t, Unreachable(os.ErrNotExist))
	require.True(t, Unreachable(&net.OpError{Op: "dial", Net: "unix", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}))
	require.False(t, Unreachable(errors.New("read response: EOF")))

	_, err := Send(context.Background(), filepath.Join(t.TempDir(), "missing.sock"), Request{Command: CommandStatus}, 50*time.Millisecond)
	require.True(t, Unreachable(err))
}
