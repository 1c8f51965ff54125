// Package cli parses murmur's argv surface.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandServe   Command = "serve"
	CommandTalk    Command = "talk"
	CommandStop    Command = "stop"
	CommandStatus  Command = "status"
	CommandDevices Command = "devices"
	CommandDoctor  Command = "doctor"
	CommandVersion Command = "version"
	CommandHelp    Command = "help"
)

// commands is ordered as it appears in the help text.
var commands = []struct {
	name    Command
	summary string
}{
	{CommandServe, "Own the voice session until interrupted"},
	{CommandTalk, "Start a turn (runs one turn directly when no session is serving)"},
	{CommandStop, "End the current listening window early"},
	{CommandStatus, "Print the current phase and last transcript"},
	{CommandDevices, "List available input devices"},
	{CommandDoctor, "Run configuration and environment checks"},
	{CommandVersion, "Print version information"},
	{CommandHelp, "Show this help"},
}

var errConfigPath = errors.New("--config requires a path")

type Parsed struct {
	Command    Command
	ConfigPath string
	ShowHelp   bool
}

// Parse accepts global flags followed by at most one command, which must be
// the final argument.
func Parse(args []string) (Parsed, error) {
	out := Parsed{Command: CommandHelp, ShowHelp: true}

	rest := args
	for len(rest) > 0 {
		arg := rest[0]
		rest = rest[1:]

		if name, value, inline := strings.Cut(arg, "="); name == "--config" {
			if !inline {
				if len(rest) == 0 {
					return Parsed{}, errConfigPath
				}
				value, rest = rest[0], rest[1:]
			}
			if strings.TrimSpace(value) == "" {
				return Parsed{}, errConfigPath
			}
			out.ConfigPath = value
			continue
		}

		switch arg {
		case "-h", "--help":
			out.Command, out.ShowHelp = CommandHelp, true
			continue
		case "--version":
			out.Command, out.ShowHelp = CommandVersion, false
			continue
		}
		if strings.HasPrefix(arg, "-") {
			return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
		}

		cmd, ok := lookup(arg)
		if !ok {
			return Parsed{}, fmt.Errorf("unknown command: %s", arg)
		}
		if len(rest) > 0 {
			return Parsed{}, fmt.Errorf("unexpected arguments after command %q", arg)
		}
		out.Command, out.ShowHelp = cmd, cmd == CommandHelp
	}

	return out, nil
}

func lookup(name string) (Command, bool) {
	for _, c := range commands {
		if string(c.name) == name {
			return c.name, true
		}
	}
	return "", false
}

// HelpText renders usage for binaryName.
func HelpText(binaryName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Usage:\n  %s [--config PATH] <command>\n\nCommands:\n", binaryName)
	for _, c := range commands {
		fmt.Fprintf(&b, "  %-9s %s\n", c.name, c.summary)
	}
	fmt.Fprintf(&b, "\nFlags:\n"+
		"  --config PATH   Config file path (default: $XDG_CONFIG_HOME/%s/config.jsonc)\n"+
		"  -h, --help      Show help\n"+
		"  --version       Show version\n", binaryName)
	return b.String()
}
