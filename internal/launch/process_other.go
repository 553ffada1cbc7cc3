//go:build !unix && !windows

package launch

import (
	stderrors "errors"
	"os"
	"syscall"

	"github.com/wagiedev/procbridge/internal/config"
)

func sysProcAttr(config.LaunchSpec) *syscall.SysProcAttr {
	return nil
}

// Terminate sends an interrupt to p.
func Terminate(p *os.Process) error {
	return p.Signal(os.Interrupt)
}

// Kill terminates p immediately.
func Kill(p *os.Process) error {
	if err := p.Kill(); err != nil && !stderrors.Is(err, os.ErrProcessDone) {
		return err
	}

	return nil
}

// ExitSignal is not supported on this platform.
func ExitSignal(*os.ProcessState) (string, bool) {
	return "", false
}
