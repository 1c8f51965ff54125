// Package app dispatches CLI commands to a serving session owner or runs the
// session in-process.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rbright/murmur/internal/audio"
	"github.com/rbright/murmur/internal/cli"
	"github.com/rbright/murmur/internal/config"
	"github.com/rbright/murmur/internal/doctor"
	"github.com/rbright/murmur/internal/fault"
	"github.com/rbright/murmur/internal/ipc"
	"github.com/rbright/murmur/internal/logging"
	"github.com/rbright/murmur/internal/session"
	"github.com/rbright/murmur/internal/version"
)

const (
	binaryName     = "murmur"
	forwardTimeout = 220 * time.Millisecond
	pingTimeout    = 180 * time.Millisecond
	acquireRetries = 8
	// talkSlack covers unlock, dialing, and playback on top of the configured stage timeouts.
	talkSlack = 30 * time.Second
)

// Runner executes one CLI invocation. Logger overrides the file logger.
type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return Runner{Stdout: stdout, Stderr: stderr}.Execute(ctx, args)
}

// invocation is what every command after setup needs.
type invocation struct {
	loaded config.Loaded
	logger *slog.Logger
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	switch {
	case err != nil:
		fmt.Fprintf(r.Stderr, "error: %v\n\n%s", err, cli.HelpText(binaryName))
		return 2
	case parsed.ShowHelp:
		fmt.Fprint(r.Stdout, cli.HelpText(binaryName))
		return 0
	case parsed.Command == cli.CommandVersion:
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logs, err := logging.New()
	if err != nil {
		return r.fail(fmt.Errorf("setup logging: %w", err))
	}
	defer func() { _ = logs.Close() }()

	inv := invocation{logger: r.Logger}
	if inv.logger == nil {
		inv.logger = logs.Logger
	}

	inv.loaded, err = config.Load(parsed.ConfigPath)
	if err != nil {
		inv.logger.Error("load config failed", "error", err.Error())
		return r.fail(err)
	}
	r.reportWarnings(inv.loaded.Warnings, inv.logger)
	inv.logger.Info("command start", "command", parsed.Command, "config", inv.loaded.Path, "log", logs.Path)

	handlers := map[cli.Command]func(context.Context, invocation) int{
		cli.CommandDoctor:  r.commandDoctor,
		cli.CommandDevices: r.commandDevices,
		cli.CommandStatus:  r.commandStatus,
		cli.CommandStop:    r.commandStop,
		cli.CommandTalk:    r.commandTalk,
		cli.CommandServe:   r.commandServe,
	}
	handler, ok := handlers[parsed.Command]
	if !ok {
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
	return handler(ctx, inv)
}

func (r Runner) fail(err error) int {
	fmt.Fprintf(r.Stderr, "error: %v\n", err)
	return 1
}

func (r Runner) reportWarnings(warnings []config.Warning, logger *slog.Logger) {
	for _, w := range warnings {
		if w.Line > 0 {
			fmt.Fprintf(r.Stderr, "warning: line %d: %s\n", w.Line, w.Message)
		} else {
			fmt.Fprintf(r.Stderr, "warning: %s\n", w.Message)
		}
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}
}

func (r Runner) commandDoctor(ctx context.Context, inv invocation) int {
	report := doctor.Run(ctx, inv.loaded)
	fmt.Fprintln(r.Stdout, report.String())
	if !report.OK() {
		return 1
	}
	return 0
}

func (r Runner) commandDevices(ctx context.Context, _ invocation) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		return r.fail(err)
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	tw := tabwriter.NewWriter(r.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\tID\tDESCRIPTION\tSTATE\tAVAILABLE\tMUTED")
	for _, d := range devices {
		mark := ""
		if d.Default {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", mark, d.ID, d.Description, d.State, yesNo(d.Available), yesNo(d.Muted))
	}
	if err := tw.Flush(); err != nil {
		return r.fail(err)
	}
	return 0
}

// commandStatus reports idle whenever no owner answers.
func (r Runner) commandStatus(ctx context.Context, _ invocation) int {
	resp, handled, err := forward(ctx, ipc.Request{Command: ipc.CommandStatus}, forwardTimeout)
	switch {
	case !handled:
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	case err != nil:
		return r.fail(err)
	}

	phase := resp.Phase
	if phase == "" {
		phase = "idle"
	}
	fmt.Fprintln(r.Stdout, phase)
	if resp.Transcript != "" {
		fmt.Fprintln(r.Stdout, "transcript: "+resp.Transcript)
	}
	if resp.LastError != "" {
		fmt.Fprintln(r.Stdout, "last_error: "+resp.LastError)
	}
	return 0
}

func (r Runner) commandStop(ctx context.Context, _ invocation) int {
	resp, handled, err := forward(ctx, ipc.Request{Command: ipc.CommandStop}, forwardTimeout)
	switch {
	case !handled:
		return r.fail(fmt.Errorf("no active %s session", binaryName))
	case err != nil:
		return r.fail(err)
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

// commandTalk forwards a waiting talk request to a serving owner, or owns the
// socket for exactly one turn when nobody is serving.
func (r Runner) commandTalk(ctx context.Context, inv invocation) int {
	cfg := inv.loaded.Config
	if code, handled := r.forwardTalk(ctx, cfg); handled {
		return code
	}

	return r.own(ctx, inv, func(ctx context.Context, rt *Runtime, ln net.Listener) int {
		serveCtx, stopServing := context.WithCancel(ctx)
		defer stopServing()
		served := make(chan error, 1)
		go func() { served <- ipc.Serve(serveCtx, ln, rt.Controller) }()

		result, runErr := rt.Controller.Run(ctx)
		stopServing()
		if err := <-served; err != nil {
			return r.fail(fmt.Errorf("ipc server failed: %w", err))
		}
		if runErr != nil {
			return r.fail(runErr)
		}
		return r.printTurn(result)
	}, func() (int, bool) { return r.forwardTalk(ctx, cfg) })
}

// commandServe owns the session until ctx is cancelled.
func (r Runner) commandServe(ctx context.Context, inv invocation) int {
	return r.own(ctx, inv, func(ctx context.Context, rt *Runtime, ln net.Listener) int {
		inv.logger.Info("serving", "socket", ln.Addr().String())
		fmt.Fprintf(r.Stdout, "serving on %s\n", ln.Addr().String())
		if err := ipc.Serve(ctx, ln, rt.Controller); err != nil {
			return r.fail(fmt.Errorf("ipc server failed: %w", err))
		}
		return 0
	}, nil)
}

// own acquires the session socket, builds the runtime, and hands both to
// body. When another owner wins the socket first, lost decides the outcome.
func (r Runner) own(
	ctx context.Context,
	inv invocation,
	body func(context.Context, *Runtime, net.Listener) int,
	lost func() (int, bool),
) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		return r.fail(err)
	}

	ln, err := ipc.Acquire(ctx, socketPath, pingTimeout, acquireRetries)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) && lost != nil {
			if code, handled := lost(); handled {
				return code
			}
		}
		return r.fail(err)
	}
	defer func() {
		_ = ln.Close()
		_ = os.Remove(socketPath)
	}()

	rt, err := BuildRuntime(inv.loaded.Config, inv.logger)
	if err != nil {
		return r.fail(err)
	}
	defer rt.Close()
	return body(ctx, rt, ln)
}

func (r Runner) forwardTalk(ctx context.Context, cfg config.Config) (int, bool) {
	resp, handled, err := forward(ctx, ipc.Request{Command: ipc.CommandTalk, Wait: true}, talkTimeout(cfg))
	switch {
	case !handled:
		return 0, false
	case err != nil:
		return r.fail(err), true
	}
	if resp.Transcript != "" {
		fmt.Fprintln(r.Stdout, resp.Transcript)
	}
	if resp.LastError != "" {
		fmt.Fprintf(r.Stderr, "warning: turn ended with %s\n", resp.LastError)
	}
	return 0, true
}

// printTurn reports one in-process turn. A diagnostic failure without any
// transcript is the only non-zero outcome.
func (r Runner) printTurn(result session.Result) int {
	if result.Cancelled {
		fmt.Fprintln(r.Stdout, "cancelled")
		return 0
	}
	if result.Transcript != "" {
		fmt.Fprintln(r.Stdout, result.Transcript)
	}
	if result.Err == nil || !fault.IsDiagnostic(result.Err) {
		return 0
	}
	fmt.Fprintf(r.Stderr, "error: %v\n", result.Err)
	if result.Transcript == "" {
		return 1
	}
	return 0
}

func talkTimeout(cfg config.Config) time.Duration {
	return millis(cfg.Capture.WindowMS) +
		millis(cfg.STT.TimeoutMS) +
		millis(cfg.TTS.TimeoutMS) +
		talkSlack
}

// forward sends req to the runtime socket. handled is false when no owner is
// listening there.
func forward(ctx context.Context, req ipc.Request, timeout time.Duration) (ipc.Response, bool, error) {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		return ipc.Response{}, false, nil
	}
	return tryForward(ctx, socketPath, req, timeout)
}

func tryForward(ctx context.Context, socketPath string, req ipc.Request, timeout time.Duration) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, req, timeout)
	switch {
	case err == nil && resp.OK:
		return resp, true, nil
	case err == nil:
		return resp, true, errors.New(resp.Error)
	case ipc.Unreachable(err):
		return ipc.Response{}, false, nil
	default:
		return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", req.Command, err)
	}
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
