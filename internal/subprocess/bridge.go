package subprocess

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/wagiedev/procbridge/internal/config"
	"github.com/wagiedev/procbridge/internal/errors"
	"github.com/wagiedev/procbridge/internal/launch"
	"github.com/wagiedev/procbridge/internal/telemetry"
)

// Bridge owns the lifecycle of one child process.
//
// A Bridge is single-use: it activates at most once, and after Shutdown it
// cannot be activated again. It holds no process-wide state, so any number
// of bridges may run side by side.
type Bridge struct {
	log     *slog.Logger
	options *config.Options
	inst    *telemetry.Instruments

	mu         sync.Mutex
	state      config.State
	closed     bool
	handle     *Handle
	activating chan struct{} // closed when an in-flight Activate returns
}

// New creates a bridge. The bridge starts no process until Activate.
func New(options *config.Options) *Bridge {
	if options == nil {
		options = &config.Options{}
	}

	log := options.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	log = log.With("component", "process_bridge")

	inst, err := telemetry.New(options.TracerProvider, options.MeterProvider)
	if err != nil {
		log.Warn("Failed to set up telemetry, continuing without it", "error", err)

		inst, _ = telemetry.New(tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	}

	return &Bridge{
		log:     log,
		options: options,
		inst:    inst,
		state:   config.StateIdle,
	}
}

// State returns the lifecycle state of the bridge's process.
func (b *Bridge) State() config.State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handle != nil {
		return b.handle.State()
	}

	return b.state
}

// Handle returns the live handle, or nil before a successful Activate.
func (b *Bridge) Handle() *Handle {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.handle
}

// Activate launches the process described by spec and returns its handle.
//
// The child's stdin and stdout are connected to pipes owned by the bridge;
// its stderr is inherited unless the options redirect it. When the OS
// cannot start the process the error is a *errors.LaunchError and every
// pipe end opened for the attempt has been closed.
//
// If ctx is cancelled after the process started, the process is killed and
// reaped before the context error is returned.
func (b *Bridge) Activate(ctx context.Context, spec config.LaunchSpec) (*Handle, error) {
	b.mu.Lock()

	if b.closed {
		b.mu.Unlock()

		return nil, errors.ErrBridgeClosed
	}

	if b.state != config.StateIdle {
		b.mu.Unlock()

		return nil, errors.ErrAlreadyActivated
	}

	b.state = config.StateStarting
	b.activating = make(chan struct{})
	b.mu.Unlock()

	spec = spec.Clone()
	id := ulid.Make().String()

	ctx, span := b.inst.Start(ctx, "procbridge.Activate",
		telemetry.AttrHandleID.String(id),
		telemetry.AttrPath.String(spec.Path),
	)

	h, err := b.activate(ctx, id, spec)
	if err == nil {
		err = b.publish(ctx, h)
	}

	telemetry.EndSpan(span, err)

	b.mu.Lock()
	defer b.mu.Unlock()

	close(b.activating)

	if err != nil {
		b.state = config.StateFailed

		// A process that started and was then killed keeps its real
		// terminal state.
		if h != nil {
			b.state = h.State()
		}

		return nil, err
	}

	return h, nil
}

// publish stores h as the bridge's handle. If ctx was cancelled or the
// bridge was shut down while the process was starting, h is killed and
// reaped instead and the reason is returned.
func (b *Bridge) publish(ctx context.Context, h *Handle) error {
	b.mu.Lock()

	err := ctx.Err()
	if err == nil && b.closed {
		err = errors.ErrBridgeClosed
	}

	if err == nil {
		b.handle = h
	}

	b.mu.Unlock()

	if err != nil {
		h.log.Warn("Activation abandoned after process started, killing", "pid", h.pid, "reason", err)
		h.abort()
	}

	return err
}

func (b *Bridge) activate(ctx context.Context, id string, spec config.LaunchSpec) (*Handle, error) {
	log := b.log.With("handle_id", id)

	if err := ctx.Err(); err != nil {
		b.inst.Launched(ctx, "cancelled")

		return nil, err
	}

	cmd, err := launch.Command(spec)
	if err != nil {
		b.inst.Launched(ctx, "failure")
		log.Error("Invalid launch spec", "path", spec.Path, "error", err)

		return nil, &errors.LaunchError{Path: spec.Path, Err: err}
	}

	log.Info("Starting process", "path", cmd.Path, "args", spec.Args)

	p, err := openPipes(b.options.CapturesStderr())
	if err != nil {
		b.inst.Launched(ctx, "failure")
		log.Error("Failed to create pipes", "error", err)

		return nil, &errors.LaunchError{Path: cmd.Path, Err: err}
	}

	cmd.Stdin = p.childStdin
	cmd.Stdout = p.childStdout
	cmd.Stderr = os.Stderr

	if p.childStderr != nil {
		cmd.Stderr = p.childStderr
	}

	startErr := cmd.Start()

	// The child holds its own copies now; the parent's are no longer needed.
	p.closeChildEnds()

	if startErr != nil {
		p.closeParentEnds()
		b.inst.Launched(ctx, "failure")
		log.Error("Failed to start process", "path", cmd.Path, "error", startErr)

		return nil, &errors.LaunchError{Path: cmd.Path, Err: startErr}
	}

	h := &Handle{
		id:             id,
		log:            log,
		inst:           b.inst,
		cmd:            cmd,
		path:           cmd.Path,
		pid:            cmd.Process.Pid,
		startedAt:      time.Now(),
		stdin:          p.stdin,
		stdout:         p.stdout,
		stderr:         p.stderr,
		grace:          b.options.EffectiveGracePeriod(),
		drain:          b.options.EffectiveDrainTimeout(),
		onExit:         b.options.OnExit,
		stderrWriter:   b.options.Stderr,
		stderrCallback: b.options.StderrCallback,
		stdoutEOF:      make(chan struct{}),
		stderrDone:     make(chan struct{}),
		shutdownCh:     make(chan struct{}),
		exited:         make(chan struct{}),
		done:           make(chan struct{}),
	}

	if p.stderr != nil {
		h.stderrTail = newTailBuffer(maxStderrTailSize)
	}

	h.state.Store(int32(config.StateRunning))
	h.watch()

	b.inst.Launched(ctx, "success")
	log.Info("Process started", "pid", h.pid)

	return h, nil
}

// Shutdown stops the bridge's process and marks the bridge closed.
//
// Calling Shutdown before Activate only closes the bridge. Calling it while
// Activate is still starting the process waits for Activate to return; the
// process it started is then killed and Activate reports ErrBridgeClosed.
// Calling it again is a no-op. See Handle.Shutdown for the termination
// sequence.
func (b *Bridge) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	b.closed = true
	h := b.handle
	activating := b.activating
	b.mu.Unlock()

	if h == nil && activating != nil {
		select {
		case <-activating:
		case <-ctx.Done():
			return ctx.Err()
		}

		h = b.Handle()
	}

	if h == nil {
		return nil
	}

	return h.Shutdown(ctx)
}

// pipes holds both ends of the child's stdio pipes.
type pipes struct {
	stdin, childStdin   *os.File
	stdout, childStdout *os.File
	stderr, childStderr *os.File
}

// openPipes creates the stdin and stdout pipes, and a stderr pipe when
// withStderr is set. On error every file already opened is closed.
func openPipes(withStderr bool) (*pipes, error) {
	p := &pipes{}

	var err error

	if p.childStdin, p.stdin, err = os.Pipe(); err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}

	if p.stdout, p.childStdout, err = os.Pipe(); err != nil {
		p.closeAll()

		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	if withStderr {
		if p.stderr, p.childStderr, err = os.Pipe(); err != nil {
			p.closeAll()

			return nil, fmt.Errorf("stderr pipe: %w", err)
		}
	}

	return p, nil
}

func (p *pipes) closeChildEnds() {
	closeFiles(p.childStdin, p.childStdout, p.childStderr)
}

func (p *pipes) closeParentEnds() {
	closeFiles(p.stdin, p.stdout, p.stderr)
}

func (p *pipes) closeAll() {
	p.closeChildEnds()
	p.closeParentEnds()
}

func closeFiles(files ...*os.File) {
	for _, f := range files {
		if f != nil {
			_ = f.Close()
		}
	}
}
