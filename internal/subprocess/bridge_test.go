package subprocess

import (
	"bufio"
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/wagiedev/procbridge/internal/config"
	"github.com/wagiedev/procbridge/internal/errors"
)

const testTimeout = 10 * time.Second

func activate(t *testing.T, opts *config.Options, spec config.LaunchSpec) (*Bridge, *Handle) {
	t.Helper()

	b := New(opts)

	h, err := b.Activate(context.Background(), spec)
	require.NoError(t, err)
	require.NotNil(t, h)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		defer cancel()

		_ = b.Shutdown(ctx)
	})

	return b, h
}

func waitDone(t *testing.T, h *Handle) *config.ExitReport {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	report, err := h.Wait(ctx)
	require.NoError(t, err)
	require.NotNil(t, report)

	return report
}

func openFDs(t *testing.T) int {
	t.Helper()

	entries, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Skip("/proc/self/fd not available")
	}

	return len(entries)
}

func TestActivate_Echo(t *testing.T) {
	var exits atomic.Int32

	b, h := activate(t, &config.Options{
		OnExit: func(config.ExitReport) { exits.Add(1) },
	}, helperSpec(t, "echo", nil))

	require.Equal(t, config.StateRunning, b.State())
	require.Same(t, h, b.Handle())
	require.NotEmpty(t, h.ID())
	require.Positive(t, h.PID())
	require.Nil(t, h.Report(), "report must be nil while running")

	_, err := h.Write([]byte("ping\n"))
	require.NoError(t, err)

	line, err := bufio.NewReader(h).ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "ping\n", line)

	require.NoError(t, b.Shutdown(context.Background()))

	report := waitDone(t, h)
	assert.False(t, report.Unexpected)
	assert.True(t, report.State.IsTerminal())
	assert.Equal(t, h.ID(), report.HandleID)
	assert.Equal(t, h.PID(), report.PID)
	assert.Zero(t, exits.Load(), "exit callback must not fire after a requested shutdown")
}

func TestActivate_NonexistentPath(t *testing.T) {
	before := openFDs(t)

	b := New(nil)

	h, err := b.Activate(context.Background(), config.LaunchSpec{Path: "/nonexistent/binary"})
	require.Error(t, err)
	require.Nil(t, h)

	launchErr, ok := stderrors.AsType[*errors.LaunchError](err)
	require.True(t, ok, "expected *LaunchError, got %T", err)
	assert.Equal(t, "/nonexistent/binary", launchErr.Path)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "/nonexistent/binary")

	assert.Nil(t, b.Handle())
	assert.Equal(t, config.StateFailed, b.State())
	assert.Equal(t, before, openFDs(t), "all pipe ends must be closed after a failed launch")
}

func TestActivate_EmptyPath(t *testing.T) {
	b := New(nil)

	_, err := b.Activate(context.Background(), config.LaunchSpec{Path: "  "})
	require.ErrorIs(t, err, errors.ErrInvalidLaunchSpec)

	_, ok := stderrors.AsType[*errors.LaunchError](err)
	require.True(t, ok)
}

func TestActivate_CancelledContext(t *testing.T) {
	b := New(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h, err := b.Activate(ctx, helperSpec(t, "sleep", nil))
	require.ErrorIs(t, err, context.Canceled)
	require.Nil(t, h)
	require.Nil(t, b.Handle())
}

// lateCancelContext reports no error on its first Err call and
// context.Canceled afterwards, so cancellation lands after the process
// has started.
type lateCancelContext struct {
	context.Context

	calls atomic.Int32
}

func (c *lateCancelContext) Err() error {
	if c.calls.Add(1) == 1 {
		return nil
	}

	return context.Canceled
}

func TestActivate_CancelledAfterStart(t *testing.T) {
	before := openFDs(t)

	var exits atomic.Int32

	b := New(&config.Options{
		OnExit: func(config.ExitReport) { exits.Add(1) },
	})

	h, err := b.Activate(&lateCancelContext{Context: context.Background()}, helperSpec(t, "sleep", nil))
	require.ErrorIs(t, err, context.Canceled)
	require.Nil(t, h)
	require.Nil(t, b.Handle())

	assert.Equal(t, config.StateKilled, b.State())
	assert.Equal(t, int32(0), exits.Load(), "a killed activation is not an unexpected exit")
	assert.Equal(t, before, openFDs(t), "all pipe ends must be closed after a cancelled activation")
}

func TestActivate_SingleUse(t *testing.T) {
	b, _ := activate(t, nil, helperSpec(t, "sleep", nil))

	_, err := b.Activate(context.Background(), helperSpec(t, "sleep", nil))
	require.ErrorIs(t, err, errors.ErrAlreadyActivated)

	require.NoError(t, b.Shutdown(context.Background()))

	_, err = b.Activate(context.Background(), helperSpec(t, "sleep", nil))
	require.ErrorIs(t, err, errors.ErrBridgeClosed)
}

func TestShutdown_DuringActivate(t *testing.T) {
	for range 20 {
		b := New(nil)

		type result struct {
			h   *Handle
			err error
		}

		results := make(chan result, 1)

		go func() {
			h, err := b.Activate(context.Background(), helperSpec(t, "sleep", nil))
			results <- result{h, err}
		}()

		require.Eventually(t, func() bool {
			return b.State() != config.StateIdle
		}, testTimeout, time.Microsecond)

		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		require.NoError(t, b.Shutdown(ctx))
		cancel()

		assert.NotEqual(t, config.StateRunning, b.State(), "no process may outlive Shutdown")

		res := <-results
		if res.err != nil {
			require.ErrorIs(t, res.err, errors.ErrBridgeClosed)
			require.Nil(t, res.h)

			continue
		}

		select {
		case <-res.h.Done():
		default:
			t.Fatal("handle returned by Activate must be stopped once Shutdown returned")
		}
	}
}

func TestShutdown_BeforeActivate(t *testing.T) {
	b := New(nil)

	require.NoError(t, b.Shutdown(context.Background()))
	require.Equal(t, config.StateIdle, b.State())

	_, err := b.Activate(context.Background(), helperSpec(t, "sleep", nil))
	require.ErrorIs(t, err, errors.ErrBridgeClosed)
}

func TestShutdown_Idempotent(t *testing.T) {
	var exits atomic.Int32

	b, h := activate(t, &config.Options{
		OnExit: func(config.ExitReport) { exits.Add(1) },
	}, helperSpec(t, "sleep", nil))

	require.NoError(t, b.Shutdown(context.Background()))
	require.NoError(t, b.Shutdown(context.Background()))
	require.NoError(t, h.Close())

	select {
	case <-h.Done():
	default:
		t.Fatal("handle must be done after Shutdown returns")
	}

	report := h.Report()
	require.NotNil(t, report)
	assert.False(t, report.Unexpected)
	assert.False(t, report.Escalated)
	assert.Zero(t, exits.Load())

	if runtime.GOOS != "windows" {
		assert.Equal(t, config.StateKilled, report.State)
		assert.Equal(t, "SIGTERM", report.Signal)
		assert.Equal(t, -1, report.ExitCode)
	}
}

func TestUnexpectedExit_ExternalKill(t *testing.T) {
	reports := make(chan config.ExitReport, 2)

	b, h := activate(t, &config.Options{
		OnExit: func(r config.ExitReport) { reports <- r },
	}, helperSpec(t, "sleep", nil))

	proc, err := os.FindProcess(h.PID())
	require.NoError(t, err)
	require.NoError(t, proc.Kill())

	var report config.ExitReport

	select {
	case report = <-reports:
	case <-time.After(testTimeout):
		t.Fatal("exit callback was not invoked")
	}

	assert.True(t, report.Unexpected)
	assert.True(t, report.Abnormal())
	assert.Equal(t, h.PID(), report.PID)

	if runtime.GOOS != "windows" {
		assert.Equal(t, config.StateKilled, report.State)
		assert.Equal(t, "SIGKILL", report.Signal)
	}

	_, err = h.Write([]byte("hello\n"))
	require.Error(t, err)

	exitErr, ok := stderrors.AsType[*errors.UnexpectedExitError](err)
	require.True(t, ok, "expected *UnexpectedExitError, got %T: %v", err, err)
	assert.Equal(t, h.PID(), exitErr.PID)
	assert.ErrorIs(t, err, errors.ErrProcessExited)

	n, err := h.Read(make([]byte, 16))
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.EOF)

	require.NoError(t, b.Shutdown(context.Background()))
	assert.Empty(t, reports, "exit callback must fire exactly once")
}

func TestUnexpectedExit_DrainsOutputAndStderr(t *testing.T) {
	var (
		stderr  bytes.Buffer
		lines   []string
		linesMu sync.Mutex
	)

	reports := make(chan config.ExitReport, 1)

	_, h := activate(t, &config.Options{
		OnExit: func(r config.ExitReport) { reports <- r },
		Stderr: &stderr,
		StderrCallback: func(line string) {
			linesMu.Lock()
			defer linesMu.Unlock()

			lines = append(lines, line)
		},
		DrainTimeout: 5 * time.Second,
	}, helperSpec(t, "exit", map[string]string{"PROCBRIDGE_EXIT_CODE": "3"}))

	out, err := io.ReadAll(h)
	require.NoError(t, err)
	require.Equal(t, "bye\n", string(out))

	report := waitDone(t, h)
	assert.True(t, report.Unexpected)
	assert.Equal(t, config.StateExitedWithError, report.State)
	assert.Equal(t, 3, report.ExitCode)
	assert.Contains(t, report.Stderr, "fatal: boom")
	assert.Equal(t, "fatal: boom\n", stderr.String())

	linesMu.Lock()
	assert.Equal(t, []string{"fatal: boom"}, lines)
	linesMu.Unlock()

	select {
	case r := <-reports:
		assert.Equal(t, 3, r.ExitCode)
	case <-time.After(testTimeout):
		t.Fatal("exit callback was not invoked")
	}
}

func TestCloseWrite(t *testing.T) {
	reports := make(chan config.ExitReport, 1)

	_, h := activate(t, &config.Options{
		OnExit: func(r config.ExitReport) { reports <- r },
	}, helperSpec(t, "echo", nil))

	_, err := h.Write([]byte("last words\n"))
	require.NoError(t, err)
	require.NoError(t, h.CloseWrite())

	out, err := io.ReadAll(h)
	require.NoError(t, err)
	assert.Equal(t, "last words\n", string(out))

	select {
	case r := <-reports:
		assert.Equal(t, config.StateExitedCleanly, r.State)
		assert.False(t, r.Abnormal())
	case <-time.After(testTimeout):
		t.Fatal("exit callback was not invoked")
	}
}

func TestWrite_AfterCloseWrite(t *testing.T) {
	_, h := activate(t, nil, helperSpec(t, "sleep", nil))

	require.NoError(t, h.CloseWrite())
	require.NoError(t, h.CloseWrite())

	_, err := h.Write([]byte("x"))
	require.ErrorIs(t, err, errors.ErrStdinClosed)
}

func TestRelease_ExitRacesShutdown(t *testing.T) {
	for i := range 20 {
		var exits atomic.Int32

		b := New(&config.Options{
			OnExit: func(config.ExitReport) { exits.Add(1) },
		})

		h, err := b.Activate(context.Background(), helperSpec(t, "exit", nil))
		require.NoError(t, err, "iteration %d", i)

		// Give the child a chance to exit on its own in some iterations.
		if i%2 == 0 {
			time.Sleep(time.Duration(i) * time.Millisecond)
		}

		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		require.NoError(t, b.Shutdown(ctx), "iteration %d", i)
		cancel()

		report := waitDone(t, h)

		if report.Unexpected {
			require.Eventually(t, func() bool { return exits.Load() == 1 },
				testTimeout, 5*time.Millisecond, "iteration %d: waiter released, callback must fire", i)
		} else {
			require.Zero(t, exits.Load(), "iteration %d: shutdown released, callback must not fire", i)
		}

		require.LessOrEqual(t, exits.Load(), int32(1), "iteration %d", i)
	}
}

func TestShutdown_FromExitCallback(t *testing.T) {
	var b *Bridge

	result := make(chan error, 1)

	b = New(&config.Options{
		OnExit: func(config.ExitReport) {
			result <- b.Shutdown(context.Background())
		},
	})

	_, err := b.Activate(context.Background(), helperSpec(t, "exit", nil))
	require.NoError(t, err)

	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(testTimeout):
		t.Fatal("Shutdown from the exit callback did not return")
	}
}

func TestTelemetry(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	reader := sdkmetric.NewManualReader()

	b, h := activate(t, &config.Options{
		TracerProvider: sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)),
		MeterProvider:  sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
	}, helperSpec(t, "sleep", nil))

	require.NoError(t, b.Shutdown(context.Background()))
	waitDone(t, h)

	names := make([]string, 0, 2)
	for _, span := range recorder.Ended() {
		names = append(names, span.Name())
	}

	assert.ElementsMatch(t, []string{"procbridge.Activate", "procbridge.Shutdown"}, names)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	totals := make(map[string]int64)

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}

			for _, dp := range sum.DataPoints {
				totals[m.Name] += dp.Value
			}
		}
	}

	assert.Equal(t, int64(1), totals["procbridge.launches"])
	assert.Equal(t, int64(1), totals["procbridge.exits"])
	assert.Equal(t, int64(0), totals["procbridge.processes.running"])
}

func TestTailBuffer(t *testing.T) {
	tail := newTailBuffer(8)

	_, _ = tail.Write([]byte("abc"))
	assert.Equal(t, "abc", tail.String())

	_, _ = tail.Write([]byte("defghij"))
	assert.Equal(t, "cdefghij", tail.String())

	_, _ = tail.Write([]byte(strings.Repeat("z", 20)))
	assert.Equal(t, strings.Repeat("z", 8), tail.String())
}
