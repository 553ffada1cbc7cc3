package procbridge

import (
	"context"

	"github.com/wagiedev/procbridge/internal/errors"
	"github.com/wagiedev/procbridge/internal/subprocess"
)

// bridgeWrapper wraps the internal bridge to adapt it to the public interface.
type bridgeWrapper struct {
	impl *subprocess.Bridge
}

// Compile-time check that *bridgeWrapper implements the Bridge interface.
var _ Bridge = (*bridgeWrapper)(nil)

// newBridgeImpl creates the internal bridge implementation.
func newBridgeImpl(options *BridgeOptions) Bridge {
	return &bridgeWrapper{impl: subprocess.New(options)}
}

// Activate launches the process and returns its channel.
func (b *bridgeWrapper) Activate(ctx context.Context, spec LaunchSpec) (Channel, error) {
	h, err := b.impl.Activate(ctx, spec)
	if err != nil {
		return nil, err
	}

	return h, nil
}

// Shutdown stops the process and closes the bridge.
func (b *bridgeWrapper) Shutdown(ctx context.Context) error {
	return b.impl.Shutdown(ctx)
}

// State returns the lifecycle state of the bridged process.
func (b *bridgeWrapper) State() State {
	return b.impl.State()
}

// Wait blocks until the process has exited and returns its report.
func (b *bridgeWrapper) Wait(ctx context.Context) (*ExitReport, error) {
	h := b.impl.Handle()
	if h == nil {
		return nil, errors.ErrNotActivated
	}

	return h.Wait(ctx)
}
