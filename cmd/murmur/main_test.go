package main

import (
	"errors"
	"os"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/require"
)

const reexecEnv = "MURMUR_TEST_REEXEC"

// TestMain lets the test binary stand in for murmur when re-executed.
func TestMain(m *testing.M) {
	if os.Getenv(reexecEnv) == "1" {
		os.Args = append([]string{"murmur"}, os.Args[1:]...)
		main()
		return
	}
	os.Exit(m.Run())
}

func TestMainExitCodes(t *testing.T) {
	tests := []struct {
		args     []string
		wantCode int
		wantOut  string
	}{
		{args: []string{"--help"}, wantCode: 0, wantOut: "Usage:"},
		{args: []string{"version"}, wantCode: 0, wantOut: "murmur "},
		{args: []string{"not-a-command"}, wantCode: 2, wantOut: "unknown command"},
		{args: []string{"--config"}, wantCode: 2, wantOut: "--config requires a path"},
	}

	for _, tc := range tests {
		t.Run(tc.args[0], func(t *testing.T) {
			out, code := runMurmur(t, tc.args...)
			require.Equal(t, tc.wantCode, code, out)
			require.Contains(t, out, tc.wantOut)
		})
	}
}

func runMurmur(t *testing.T, args ...string) (string, int) {
	t.Helper()

	exe, err := os.Executable()
	require.NoError(t, err)

	cmd := exec.Command(exe, args...)
	cmd.Env = append(os.Environ(), reexecEnv+"=1")
	out, err := cmd.CombinedOutput()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return string(out), 0
	case errors.As(err, &exitErr):
		return string(out), exitErr.ExitCode()
	default:
		require.NoError(t, err)
		return "", -1
	}
}
