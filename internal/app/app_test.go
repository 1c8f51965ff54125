package app

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/murmur/internal/config"
	"github.com/rbright/murmur/internal/fault"
	"github.com/rbright/murmur/internal/ipc"
	"github.com/rbright/murmur/internal/session"
)

func TestExecuteHelp(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"--help"}, &stdout, &stderr)
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "Usage:")
	require.Empty(t, stderr.String())
}

func TestExecuteVersion(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"version"}, &stdout, &stderr)
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "murmur")
	require.Empty(t, stderr.String())
}

func TestExecuteUnknownCommand(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"definitely-not-a-command"}, &stdout, &stderr)
	require.Equal(t, 2, exitCode)
	require.Contains(t, stderr.String(), "unknown command")
	require.Contains(t, stderr.String(), "Usage:")
}

func TestRunnerStatusIdleWhenSocketUnavailable(t *testing.T) {
	paths := setupRunnerEnv(t)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "status"})
	require.Equal(t, 0, exitCode)
	require.Equal(t, "idle\n", stdout.String())
	require.Empty(t, stderr.String())
}

func TestRunnerWarnsWhenAPIKeyMissing(t *testing.T) {
	paths := setupRunnerEnv(t)
	t.Setenv("MURMUR_GOOGLE_API_KEY", "")

	var stderr bytes.Buffer
	runner := Runner{Stdout: &bytes.Buffer{}, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "status"})
	require.Equal(t, 0, exitCode)
	require.Contains(t, stderr.String(), "warning: MURMUR_GOOGLE_API_KEY is not set")
}

func TestRunnerStopReturnsNoActiveSession(t *testing.T) {
	paths := setupRunnerEnv(t)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "stop"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "no active murmur session")
}

func TestRunnerForwardsCommandsToActiveSession(t *testing.T) {
	paths := setupRunnerEnv(t)
	requests := make(chan ipc.Request, 8)

	shutdown := startIPCServerForRunnerTest(t, filepath.Join(paths.runtimeDir, "murmur.sock"), func(_ context.Context, req ipc.Request) ipc.Response {
		requests <- req
		switch req.Command {
		case ipc.CommandStatus:
			return ipc.Response{OK: true, Phase: "listening"}
		case ipc.CommandStop:
			return ipc.Response{OK: true, Message: "stop requested"}
		case ipc.CommandTalk:
			return ipc.Response{OK: true, Phase: "idle", Transcript: "hello there", Message: "turn complete"}
		default:
			return ipc.Response{OK: false, Error: "unsupported"}
		}
	})
	defer shutdown()

	outputs := map[string]string{}
	for _, cmd := range []string{"status", "stop", "talk"} {
		stdout := &bytes.Buffer{}
		stderr := &bytes.Buffer{}
		runner := Runner{Stdout: stdout, Stderr: stderr}

		exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, cmd})
		require.Equal(t, 0, exitCode, cmd)
		require.Empty(t, stderr.String(), cmd)
		outputs[cmd] = stdout.String()
	}

	require.Equal(t, "listening\n", outputs["status"])
	require.Equal(t, "stop requested\n", outputs["stop"])
	require.Equal(t, "hello there\n", outputs["talk"])

	got := []ipc.Request{<-requests, <-requests, <-requests}
	require.Equal(t, ipc.Request{Command: ipc.CommandTalk, Wait: true}, got[2])
}

func TestRunnerStatusPrintsTranscriptAndLastError(t *testing.T) {
	paths := setupRunnerEnv(t)

	shutdown := startIPCServerForRunnerTest(t, filepath.Join(paths.runtimeDir, "murmur.sock"), func(_ context.Context, req ipc.Request) ipc.Response {
		return ipc.Response{OK: true, Phase: "", Transcript: "last words", LastError: "playback_rejected"}
	})
	defer shutdown()

	var stdout bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &bytes.Buffer{}}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "status"})
	require.Equal(t, 0, exitCode)
	require.Equal(t, "idle\ntranscript: last words\nlast_error: playback_rejected\n", stdout.String())
}

func TestRunnerTalkForwardReportsBusyOwner(t *testing.T) {
	paths := setupRunnerEnv(t)

	shutdown := startIPCServerForRunnerTest(t, filepath.Join(paths.runtimeDir, "murmur.sock"), func(_ context.Context, req ipc.Request) ipc.Response {
		return ipc.Response{OK: false, Phase: "talking", Error: "turn already in progress (phase talking)"}
	})
	defer shutdown()

	var stderr bytes.Buffer
	runner := Runner{Stdout: &bytes.Buffer{}, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "talk"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "turn already in progress")
}

func TestTryForwardSuccessAndFailureResponses(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "murmur.sock")

	shutdown := startIPCServerForRunnerTest(t, socketPath, func(_ context.Context, req ipc.Request) ipc.Response {
		switch req.Command {
		case ipc.CommandStatus:
			return ipc.Response{OK: true, Phase: "listening"}
		default:
			return ipc.Response{OK: false, Error: "unsupported"}
		}
	})
	defer shutdown()

	resp, handled, err := tryForward(context.Background(), socketPath, ipc.Request{Command: ipc.CommandStatus}, forwardTimeout)
	require.True(t, handled)
	require.NoError(t, err)
	require.Equal(t, "listening", resp.Phase)

	_, handled, err = tryForward(context.Background(), socketPath, ipc.Request{Command: "bogus"}, forwardTimeout)
	require.True(t, handled)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported")
}

func TestTryForwardDoesNotRemoveSocketPathOnForwardFailure(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "murmur.sock")
	require.NoError(t, os.WriteFile(socketPath, []byte("stale"), 0o600))

	_, handled, err := tryForward(context.Background(), socketPath, ipc.Request{Command: ipc.CommandStatus}, forwardTimeout)
	require.False(t, handled)
	require.NoError(t, err)

	_, statErr := os.Stat(socketPath)
	require.NoError(t, statErr)
}

func TestTryForwardTreatsReadFailuresAsHandledErrors(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "murmur.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, acceptErr := listener.Accept()
		if acceptErr == nil {
			_ = conn.Close()
		}
	}()

	_, handled, err := tryForward(context.Background(), socketPath, ipc.Request{Command: ipc.CommandStatus}, forwardTimeout)
	require.True(t, handled)
	require.Error(t, err)
	require.Contains(t, err.Error(), "forward command \"status\":")

	<-done
	require.NoError(t, listener.Close())
}

func TestRunnerDoctorCommandDispatchesAndPrintsReport(t *testing.T) {
	paths := setupRunnerEnv(t)
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	writeConfig(t, paths.configPath, `{"native": {"enable": false}}`)

	var stdout bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &bytes.Buffer{}}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "doctor"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stdout.String(), "config: loaded")
	require.Contains(t, stdout.String(), "[FAIL] audio.device")
	require.Contains(t, stdout.String(), "[OK] credentials.MURMUR_GOOGLE_API_KEY: set")
}

func TestRunnerDevicesCommandDispatches(t *testing.T) {
	paths := setupRunnerEnv(t)
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	var stderr bytes.Buffer
	runner := Runner{Stdout: &bytes.Buffer{}, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "devices"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "error:")
}

func TestRunnerTalkOwnerPathFailsWithoutCaptureAndCleansSocket(t *testing.T) {
	paths := setupRunnerEnv(t)
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	writeConfig(t, paths.configPath, `{"native": {"enable": false}, "local_voice": {"enable": false}, "indicator": {"enable": false}}`)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "talk"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "error:")
	require.Contains(t, stderr.String(), fault.ErrCapabilityAbsent.Error())

	_, statErr := os.Stat(filepath.Join(paths.runtimeDir, "murmur.sock"))
	require.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestRunnerServeStopsOnContextCancel(t *testing.T) {
	paths := setupRunnerEnv(t)
	writeConfig(t, paths.configPath, `{"native": {"enable": false}}`)
	socketPath := filepath.Join(paths.runtimeDir, "murmur.sock")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan int, 1)
	var stdout bytes.Buffer
	go func() {
		runner := Runner{Stdout: &stdout, Stderr: &bytes.Buffer{}}
		done <- runner.Execute(ctx, []string{"--config", paths.configPath, "serve"})
	}()

	require.Eventually(t, func() bool {
		resp, err := ipc.Send(context.Background(), socketPath, ipc.Request{Command: ipc.CommandStatus}, forwardTimeout)
		return err == nil && resp.OK && resp.Phase == "idle"
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case code := <-done:
		require.Equal(t, 0, code)
	case <-time.After(3 * time.Second):
		t.Fatal("serve did not stop after cancellation")
	}
	require.Contains(t, stdout.String(), "serving on "+socketPath)

	_, statErr := os.Stat(socketPath)
	require.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestPrintTurnOutcomes(t *testing.T) {
	tests := []struct {
		name       string
		result     session.Result
		wantCode   int
		wantStdout string
		wantStderr string
	}{
		{name: "played", result: session.Result{Transcript: "hi"}, wantStdout: "hi\n"},
		{name: "cancelled", result: session.Result{Cancelled: true, Err: context.Canceled}, wantStdout: "cancelled\n"},
		{name: "no speech", result: session.Result{}},
		{name: "failed", result: session.Result{Err: fault.ErrPermissionDenied}, wantCode: 1, wantStderr: "error: microphone permission denied\n"},
		{
			name:       "local fallback keeps transcript",
			result:     session.Result{Transcript: "hi", Err: fault.ErrPlaybackRejected, LocalFallback: true},
			wantStdout: "hi\n",
			wantStderr: "error: playback rejected\n",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var stdout bytes.Buffer
			var stderr bytes.Buffer
			runner := Runner{Stdout: &stdout, Stderr: &stderr}

			require.Equal(t, tc.wantCode, runner.printTurn(tc.result))
			require.Equal(t, tc.wantStdout, stdout.String())
			require.Equal(t, tc.wantStderr, stderr.String())
		})
	}
}

func TestTalkTimeoutCoversConfiguredStages(t *testing.T) {
	cfg := config.Default()
	require.Equal(t, 10*time.Second+15*time.Second+15*time.Second+talkSlack, talkTimeout(cfg))
}

type runnerPaths struct {
	configPath string
	runtimeDir string
}

func setupRunnerEnv(t *testing.T) runnerPaths {
	t.Helper()

	t.Setenv("XDG_STATE_HOME", t.TempDir())
	runtimeDir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", runtimeDir)
	t.Setenv("MURMUR_GOOGLE_API_KEY", "test-key")
	t.Setenv("MURMUR_SENTRY_DSN", "")

	configPath := filepath.Join(t.TempDir(), "config.jsonc")
	writeConfig(t, configPath, "{}\n")

	return runnerPaths{configPath: configPath, runtimeDir: runtimeDir}
}

func writeConfig(t *testing.T, path string, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func startIPCServerForRunnerTest(t *testing.T, socketPath string, handler func(context.Context, ipc.Request) ipc.Response) func() {
	t.Helper()

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ipc.Serve(ctx, listener, ipc.HandlerFunc(handler))
	}()

	return func() {
		cancel()
		require.NoError(t, <-done)
	}
}
