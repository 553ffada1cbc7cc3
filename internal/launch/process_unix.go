//go:build unix

package launch

import (
	stderrors "errors"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/wagiedev/procbridge/internal/config"
)

func sysProcAttr(config.LaunchSpec) *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

// Terminate sends SIGTERM to the process group led by p.
func Terminate(p *os.Process) error {
	return signalGroup(p, unix.SIGTERM)
}

// Kill sends SIGKILL to the process group led by p.
// A process that is already gone is not an error.
func Kill(p *os.Process) error {
	return signalGroup(p, unix.SIGKILL)
}

func signalGroup(p *os.Process, sig syscall.Signal) error {
	err := unix.Kill(-p.Pid, sig)
	if err == nil {
		return nil
	}

	if !stderrors.Is(err, unix.ESRCH) {
		return fmt.Errorf("signal process group %d: %w", p.Pid, err)
	}

	// The group is gone; the leader may still be waiting to be reaped.
	if err := p.Signal(sig); err != nil && !stderrors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("signal process %d: %w", p.Pid, err)
	}

	return nil
}

// ExitSignal returns the name of the signal that terminated the process.
func ExitSignal(state *os.ProcessState) (string, bool) {
	if state == nil {
		return "", false
	}

	status, ok := state.Sys().(syscall.WaitStatus)
	if !ok || !status.Signaled() {
		return "", false
	}

	return unix.SignalName(status.Signal()), true
}
