//go:build !windows

package launch

import (
	"os/exec"
	"testing"
)

// requireHideWindow is only reached on Windows; HideWindow does not exist
// on other platforms' SysProcAttr.
func requireHideWindow(t *testing.T, _ *exec.Cmd) {
	t.Helper()
}
