package subprocess

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/procbridge/internal/config"
)

// helperEnv selects the mode the test binary runs in when it is launched as
// a child by the tests below.
const helperEnv = "PROCBRIDGE_HELPER"

func TestMain(m *testing.M) {
	if mode := os.Getenv(helperEnv); mode != "" {
		os.Exit(runHelper(mode))
	}

	os.Exit(m.Run())
}

// runHelper implements the child side of the tests.
//
//	echo         copies stdin to stdout until EOF
//	exit         writes a line to stdout and stderr, then exits with PROCBRIDGE_EXIT_CODE
//	sleep        does nothing until killed
//	ignore-term  ignores SIGTERM, prints "ready" and sleeps
func runHelper(mode string) int {
	switch mode {
	case "echo":
		if _, err := io.Copy(os.Stdout, os.Stdin); err != nil {
			return 2
		}

		return 0

	case "exit":
		fmt.Fprintln(os.Stdout, "bye")
		fmt.Fprintln(os.Stderr, "fatal: boom")

		code, err := strconv.Atoi(os.Getenv("PROCBRIDGE_EXIT_CODE"))
		if err != nil {
			return 0
		}

		return code

	case "sleep":
		time.Sleep(time.Hour)

		return 0

	case "ignore-term":
		signal.Ignore(syscall.SIGTERM)
		fmt.Fprintln(os.Stdout, "ready")
		time.Sleep(time.Hour)

		return 0

	default:
		fmt.Fprintf(os.Stderr, "unknown helper mode %q\n", mode)

		return 2
	}
}

// helperSpec returns a spec that runs this test binary in the given mode.
func helperSpec(t *testing.T, mode string, env map[string]string) config.LaunchSpec {
	t.Helper()

	exe, err := os.Executable()
	require.NoError(t, err)

	merged := map[string]string{helperEnv: mode}
	for k, v := range env {
		merged[k] = v
	}

	return config.LaunchSpec{Path: exe, Env: merged}
}
