//go:build windows

package launch

import (
	"os/exec"
	"testing"

	"github.com/stretchr/testify/require"
)

// requireHideWindow checks the Windows-only SysProcAttr.HideWindow field.
func requireHideWindow(t *testing.T, cmd *exec.Cmd) {
	t.Helper()
	require.True(t, cmd.SysProcAttr.HideWindow)
}
