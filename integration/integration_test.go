//go:build integration

package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/wagiedev/procbridge"
)

// requireBinary skips the test if path is not an executable file.
func requireBinary(t *testing.T, path string) {
	t.Helper()

	info, err := os.Stat(path)
	if err != nil || info.IsDir() || info.Mode()&0o111 == 0 {
		t.Skipf("%s not available", path)
	}
}

// shutdown stops bridge at test cleanup with a bounded context.
func shutdown(t *testing.T, bridge procbridge.Bridge) {
	t.Helper()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		_ = bridge.Shutdown(ctx)
	})
}
