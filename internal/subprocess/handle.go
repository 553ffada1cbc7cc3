package subprocess

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/procbridge/internal/config"
	"github.com/wagiedev/procbridge/internal/errors"
	"github.com/wagiedev/procbridge/internal/launch"
	"github.com/wagiedev/procbridge/internal/telemetry"
)

const (
	// maxScanTokenSize is the maximum length of a single stderr line.
	maxScanTokenSize = 1024 * 1024 // 1MB

	// exitSettleTimeout bounds how long a failed write waits for the exit
	// to be observed so it can report why the pipe broke.
	exitSettleTimeout = 250 * time.Millisecond
)

// Handle is a live child process together with the parent's ends of its
// stdin and stdout pipes. It implements config.Channel.
//
// A Handle is created only after the OS started the process. It reaches
// its terminal state once the process has exited and every pipe end the
// bridge holds is closed; Done is closed at that point.
type Handle struct {
	id        string
	log       *slog.Logger
	inst      *telemetry.Instruments
	cmd       *exec.Cmd
	path      string
	pid       int
	startedAt time.Time

	stdin  *os.File // parent's write end of the child's stdin
	stdout *os.File // parent's read end of the child's stdout
	stderr *os.File // parent's read end of the child's stderr, nil unless captured

	grace          time.Duration
	drain          time.Duration
	onExit         func(config.ExitReport)
	stderrWriter   io.Writer
	stderrCallback func(string)
	stderrTail     *tailBuffer

	state             atomic.Int32
	released          atomic.Bool // set by whichever of Shutdown or the waiter releases the pipes
	shutdownRequested atomic.Bool
	inputClosed       atomic.Bool
	escalated         atomic.Bool // set before the forced kill, copied into the report

	stdinOnce     sync.Once
	stdoutOnce    sync.Once
	stderrOnce    sync.Once
	stdoutEOFOnce sync.Once

	stdoutEOF  chan struct{} // closed when a Read observed EOF
	stderrDone chan struct{} // closed when the stderr scanner returns
	shutdownCh chan struct{} // closed when Shutdown begins
	exited     chan struct{} // closed once the process has been reaped
	done       chan struct{} // closed once the handle reached its terminal state

	eg errgroup.Group

	mu     sync.RWMutex
	report *config.ExitReport
}

// Compile-time verification that Handle implements the Channel interface.
var _ config.Channel = (*Handle)(nil)

// ID returns the handle's unique identifier.
func (h *Handle) ID() string {
	return h.id
}

// PID returns the OS process ID of the child.
func (h *Handle) PID() int {
	return h.pid
}

// Path returns the resolved executable path.
func (h *Handle) Path() string {
	return h.path
}

// State returns the current lifecycle state.
func (h *Handle) State() config.State {
	return config.State(h.state.Load())
}

// Done returns a channel that is closed once the process has exited and
// both pipe ends are closed.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Report returns the exit report, or nil while the process is running.
func (h *Handle) Report() *config.ExitReport {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.report == nil {
		return nil
	}

	r := *h.report

	return &r
}

// Wait blocks until the handle reached its terminal state and returns the
// exit report.
func (h *Handle) Wait(ctx context.Context) (*config.ExitReport, error) {
	if err := h.awaitDone(ctx); err != nil {
		return nil, err
	}

	return h.Report(), nil
}

// Read reads from the child's stdout.
//
// Once the process has exited and the pipe is released, Read returns io.EOF.
func (h *Handle) Read(p []byte) (int, error) {
	n, err := h.stdout.Read(p)

	switch {
	case err == nil:
		return n, nil
	case err == io.EOF:
		h.stdoutEOFOnce.Do(func() { close(h.stdoutEOF) })

		return n, io.EOF
	case stderrors.Is(err, os.ErrClosed) && h.released.Load():
		return n, io.EOF
	default:
		return n, fmt.Errorf("read stdout: %w", err)
	}
}

// Write writes to the child's stdin.
//
// When the child exited on its own, the error is an
// *errors.UnexpectedExitError describing the exit.
func (h *Handle) Write(p []byte) (int, error) {
	n, err := h.stdin.Write(p)
	if err == nil {
		return n, nil
	}

	return n, h.writeError(err)
}

func (h *Handle) writeError(err error) error {
	if h.inputClosed.Load() && !h.hasExited() {
		return fmt.Errorf("write stdin: %w", errors.ErrStdinClosed)
	}

	if !h.shutdownRequested.Load() {
		timer := time.NewTimer(exitSettleTimeout)
		defer timer.Stop()

		select {
		case <-h.exited:
		case <-timer.C:
		}
	}

	if r := h.Report(); r != nil {
		if r.Unexpected {
			return exitError(*r)
		}

		return fmt.Errorf("write stdin: %w: %w", errors.ErrProcessExited, err)
	}

	return fmt.Errorf("write stdin: %w", err)
}

// CloseWrite closes the child's stdin. The process keeps running and its
// stdout stays readable.
func (h *Handle) CloseWrite() error {
	var err error

	h.inputClosed.Store(true)
	h.stdinOnce.Do(func() {
		h.log.Debug("Closing stdin pipe", "pid", h.pid)
		err = h.stdin.Close()
	})

	return err
}

// Close shuts the process down. It is safe to call multiple times.
func (h *Handle) Close() error {
	err := h.Shutdown(context.Background())
	if _, ok := stderrors.AsType[*errors.ShutdownTimeoutError](err); ok {
		return nil
	}

	return err
}

// Shutdown closes both pipe ends, asks the process to terminate and waits
// for it to exit. A process still alive after the grace period is killed
// and a *errors.ShutdownTimeoutError is returned once it has been reaped.
//
// If ctx ends first the process is killed immediately and the context error
// is returned. Later calls do nothing and return nil once the process is gone.
func (h *Handle) Shutdown(ctx context.Context) error {
	if !h.shutdownRequested.CompareAndSwap(false, true) {
		return h.awaitDone(ctx)
	}

	close(h.shutdownCh)

	ctx, span := h.inst.Start(ctx, "procbridge.Shutdown", h.spanAttrs()...)

	err := h.shutdown(ctx)
	telemetry.EndSpan(span, err)

	return err
}

func (h *Handle) shutdown(ctx context.Context) error {
	if !h.released.CompareAndSwap(false, true) {
		h.log.Debug("Process already exited, waiting for release", "pid", h.pid)

		return h.awaitDone(ctx)
	}

	h.log.Info("Shutting down process", "pid", h.pid, "grace_period", h.grace)

	h.closeStdin()
	h.closeStdout()

	if h.hasExited() {
		return h.awaitDone(ctx)
	}

	if err := launch.Terminate(h.cmd.Process); err != nil {
		h.log.Debug("Graceful termination failed, killing process", "pid", h.pid, "error", err)

		return h.kill()
	}

	timer := time.NewTimer(h.grace)
	defer timer.Stop()

	select {
	case <-h.done:
		return nil

	case <-timer.C:
		h.log.Warn("Process did not exit within grace period, killing", "pid", h.pid, "grace_period", h.grace)
		h.inst.Escalated(ctx)
		h.escalated.Store(true)

		if err := h.kill(); err != nil {
			return err
		}

		h.markEscalated()

		return &errors.ShutdownTimeoutError{PID: h.pid, GracePeriod: h.grace}

	case <-ctx.Done():
		h.log.Debug("Context cancelled during shutdown, killing process", "pid", h.pid, "error", ctx.Err())
		h.escalated.Store(true)

		if err := h.kill(); err != nil {
			return stderrors.Join(ctx.Err(), err)
		}

		h.markEscalated()

		return ctx.Err()
	}
}

// abort kills a process whose activation was cancelled after it started.
func (h *Handle) abort() {
	if !h.shutdownRequested.CompareAndSwap(false, true) {
		<-h.done

		return
	}

	close(h.shutdownCh)

	if h.released.CompareAndSwap(false, true) {
		h.closeStdin()
		h.closeStdout()
	}

	if err := h.kill(); err != nil {
		h.log.Error("Failed to kill process after cancelled activation", "pid", h.pid, "error", err)
	}
}

// kill forcefully terminates the process group and waits for the handle to
// reach its terminal state.
func (h *Handle) kill() error {
	if !h.hasExited() {
		h.log.Debug("Killing process", "pid", h.pid)

		if err := launch.Kill(h.cmd.Process); err != nil {
			return fmt.Errorf("kill process (pid %d): %w", h.pid, err)
		}
	}

	<-h.done

	return nil
}

func (h *Handle) hasExited() bool {
	select {
	case <-h.exited:
		return true
	default:
		return false
	}
}

func (h *Handle) awaitDone(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// markEscalated covers a process that exited on its own after the grace
// period lapsed but before the kill, when supervise already built the report.
func (h *Handle) markEscalated() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.report != nil {
		h.report.Escalated = true
	}
}

func (h *Handle) closeStdin() {
	h.stdinOnce.Do(func() {
		if err := h.stdin.Close(); err != nil {
			h.log.Debug("Failed to close stdin pipe", "pid", h.pid, "error", err)
		}
	})
}

func (h *Handle) closeStdout() {
	h.stdoutOnce.Do(func() {
		if err := h.stdout.Close(); err != nil {
			h.log.Debug("Failed to close stdout pipe", "pid", h.pid, "error", err)
		}
	})
}

func (h *Handle) closeStderr() {
	if h.stderr == nil {
		return
	}

	h.stderrOnce.Do(func() {
		if err := h.stderr.Close(); err != nil {
			h.log.Debug("Failed to close stderr pipe", "pid", h.pid, "error", err)
		}
	})
}

// watch starts the goroutines that follow the process until it is gone.
func (h *Handle) watch() {
	if h.stderr != nil {
		h.eg.Go(h.scanStderr)
	} else {
		close(h.stderrDone)
	}

	h.eg.Go(h.waitProcess)

	go h.supervise()
}

// waitProcess blocks on the process exit. When the process ended before
// any shutdown request it claims the release and closes the pipes, giving
// the caller up to the drain timeout to read the remaining output.
func (h *Handle) waitProcess() error {
	waitErr := h.cmd.Wait()
	byExit := h.released.CompareAndSwap(false, true)

	report := h.classify(waitErr, byExit)

	h.mu.Lock()
	h.report = &report
	h.mu.Unlock()

	close(h.exited)

	if byExit {
		h.log.Debug("Process exited without shutdown request, releasing pipes",
			"pid", h.pid,
			"state", report.State.String(),
			"exit_code", report.ExitCode,
		)

		h.closeStdin()
		h.awaitStream(h.stdoutEOF, h.shutdownCh, "stdout")
		h.closeStdout()
	}

	if h.stderr != nil {
		h.awaitStream(h.stderrDone, nil, "stderr")
		h.closeStderr()
	}

	return nil
}

// awaitStream waits until drained or cut is closed, or the drain timeout
// elapses. A nil cut never fires.
func (h *Handle) awaitStream(drained, cut <-chan struct{}, name string) {
	timer := time.NewTimer(h.drain)
	defer timer.Stop()

	select {
	case <-drained:
	case <-cut:
	case <-timer.C:
		h.log.Debug("Stream not drained before timeout", "pid", h.pid, "stream", name, "timeout", h.drain)
	}
}

// scanStderr forwards the child's stderr line by line.
func (h *Handle) scanStderr() error {
	defer close(h.stderrDone)

	scanner := bufio.NewScanner(h.stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), maxScanTokenSize)

	for scanner.Scan() {
		line := scanner.Text()

		_, _ = h.stderrTail.Write([]byte(line + "\n"))

		if h.stderrWriter != nil {
			if _, err := io.WriteString(h.stderrWriter, line+"\n"); err != nil {
				h.log.Debug("Failed to forward stderr line", "error", err)
			}
		}

		if h.stderrCallback != nil {
			h.stderrCallback(line)
		}
	}

	if err := scanner.Err(); err != nil && !stderrors.Is(err, os.ErrClosed) {
		h.log.Debug("Stderr scanner error", "pid", h.pid, "error", err)

		// Keep the pipe drained so the child never blocks on a full stderr.
		_, _ = io.Copy(io.Discard, h.stderr)
	}

	return nil
}

// supervise finalizes the handle once every watcher goroutine returned.
func (h *Handle) supervise() {
	_ = h.eg.Wait()

	// Shutdown may still be closing the pipes; Once makes these calls wait
	// for it rather than close twice.
	h.closeStdin()
	h.closeStdout()
	h.closeStderr()

	h.mu.Lock()
	if h.stderrTail != nil {
		h.report.Stderr = h.stderrTail.String()
	}
	if h.escalated.Load() {
		h.report.Escalated = true
	}
	report := *h.report
	h.mu.Unlock()

	h.state.Store(int32(report.State))

	if report.Unexpected {
		h.log.Warn("Process exited unexpectedly",
			"pid", h.pid,
			"state", report.State.String(),
			"exit_code", report.ExitCode,
			"signal", report.Signal,
		)
	} else {
		h.log.Info("Process stopped", "pid", h.pid, "state", report.State.String(), "runtime", report.Runtime())
	}

	h.inst.Exited(context.Background(), report)

	close(h.done)

	if report.Unexpected && h.onExit != nil {
		h.onExit(report)
	}
}

// classify turns the result of waiting on the process into an exit report.
func (h *Handle) classify(waitErr error, unexpected bool) config.ExitReport {
	r := config.ExitReport{
		HandleID:   h.id,
		PID:        h.pid,
		State:      config.StateExitedWithError,
		ExitCode:   -1,
		Unexpected: unexpected,
		StartedAt:  h.startedAt,
		ExitedAt:   time.Now(),
		Err:        waitErr,
	}

	ps := h.cmd.ProcessState

	if sig, ok := launch.ExitSignal(ps); ok {
		r.State = config.StateKilled
		r.Signal = sig

		return r
	}

	if ps != nil {
		r.ExitCode = ps.ExitCode()
		if r.ExitCode == 0 {
			r.State = config.StateExitedCleanly
		}
	}

	return r
}

// exitError converts an unexpected exit report into an error.
func exitError(r config.ExitReport) error {
	return &errors.UnexpectedExitError{
		PID:      r.PID,
		ExitCode: r.ExitCode,
		Signal:   r.Signal,
		Err:      r.Err,
	}
}

// spanAttrs returns the attributes identifying h on spans.
func (h *Handle) spanAttrs() []attribute.KeyValue {
	return []attribute.KeyValue{
		telemetry.AttrHandleID.String(h.id),
		telemetry.AttrPath.String(h.path),
		telemetry.AttrPID.Int(h.pid),
	}
}
