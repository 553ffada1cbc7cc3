//go:build windows

package launch

import (
	stderrors "errors"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/windows"

	"github.com/wagiedev/procbridge/internal/config"
)

func sysProcAttr(spec config.LaunchSpec) *syscall.SysProcAttr {
	flags := uint32(windows.CREATE_NEW_PROCESS_GROUP)
	if spec.CreateNoWindow {
		flags |= windows.CREATE_NO_WINDOW
	}

	return &syscall.SysProcAttr{
		CreationFlags: flags,
		HideWindow:    spec.CreateNoWindow,
	}
}

// Terminate sends CTRL_BREAK to the process group of p.
func Terminate(p *os.Process) error {
	if err := windows.GenerateConsoleCtrlEvent(windows.CTRL_BREAK_EVENT, uint32(p.Pid)); err != nil {
		return fmt.Errorf("send ctrl-break to %d: %w", p.Pid, err)
	}

	return nil
}

// Kill terminates p immediately.
// A process that is already gone is not an error.
func Kill(p *os.Process) error {
	if err := p.Kill(); err != nil && !stderrors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill process %d: %w", p.Pid, err)
	}

	return nil
}

// ExitSignal always reports false; windows processes do not die by signal.
func ExitSignal(*os.ProcessState) (string, bool) {
	return "", false
}
