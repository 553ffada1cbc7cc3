package errors

import (
	"errors"
	"io/fs"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLaunchError(t *testing.T) {
	err := &LaunchError{Path: "/nonexistent/binary", Err: fs.ErrNotExist}

	require.Equal(t, "failed to launch /nonexistent/binary: file does not exist", err.Error())
	require.ErrorIs(t, err, fs.ErrNotExist)
	require.True(t, err.IsBridgeError())

	got, ok := errors.AsType[*LaunchError](error(err))
	require.True(t, ok)
	require.Equal(t, "/nonexistent/binary", got.Path)
}

func TestUnexpectedExitError_ExitCode(t *testing.T) {
	root := errors.New("exit status 3")
	err := &UnexpectedExitError{PID: 42, ExitCode: 3, Err: root}

	require.Equal(t, "process 42 exited unexpectedly (exit 3)", err.Error())
	require.ErrorIs(t, err, root)
	require.ErrorIs(t, err, ErrProcessExited)
	require.True(t, err.IsBridgeError())
}

func TestUnexpectedExitError_Signal(t *testing.T) {
	err := &UnexpectedExitError{PID: 7, ExitCode: -1, Signal: "killed"}

	require.Equal(t, "process 7 exited unexpectedly (signal killed)", err.Error())
	require.ErrorIs(t, err, ErrProcessExited)
}

func TestShutdownTimeoutError(t *testing.T) {
	err := &ShutdownTimeoutError{PID: 99, GracePeriod: 5 * time.Second}

	require.Equal(t, "process 99 did not exit within 5s, killed", err.Error())
	require.True(t, err.IsBridgeError())
}

func TestSpecFileError(t *testing.T) {
	root := errors.New("missing path")
	err := &SpecFileError{File: "server.toml", Err: root}

	require.Equal(t, "load launch spec server.toml: missing path", err.Error())
	require.ErrorIs(t, err, root)
	require.True(t, err.IsBridgeError())
}
