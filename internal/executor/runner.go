package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/remora-dev/remora/internal/guard"
	"github.com/remora-dev/remora/internal/observability"
	"github.com/remora-dev/remora/internal/protocol"
)

// truncationMarker is appended to captured output when the byte cap was hit.
const truncationMarker = "\n... output truncated ..."

// Completion states for one subprocess run. Exactly one of the three racing
// completion sources (natural exit, timeout, spawn failure) may resolve the
// run; the winner is decided by a single compare-and-swap on this state.
const (
	statePending int32 = iota
	stateExited
	stateTimedOut
)

// ProcessRunner spawns the platform shell with a sanitized environment,
// enforces a timeout, and caps captured output.
type ProcessRunner struct {
	maxOutput int
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewProcessRunner creates a runner capping combined stdout/stderr at
// maxOutput bytes.
func NewProcessRunner(maxOutput int, metrics *observability.Metrics, logger *slog.Logger) *ProcessRunner {
	return &ProcessRunner{
		maxOutput: maxOutput,
		metrics:   metrics,
		logger:    logger,
	}
}

// Run executes command through the platform shell in dir (already validated
// by the caller) and resolves exactly once with a CommandResult: success on
// exit 0, failure on non-zero exit, timeout, or spawn error. Partial stdout
// is carried in Data even on failure.
func (r *ProcessRunner) Run(ctx context.Context, command, dir string, timeout time.Duration) protocol.CommandResult {
	shell, flag := platformShell()
	cmd := exec.Command(shell, flag, command)
	cmd.Dir = dir
	cmd.Env = guard.SafeEnvironment()
	// The child runs in its own process group so a timeout kill reaps
	// grandchildren too.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	budget := newOutputBudget(r.maxOutput)
	stdout := budget.newWriter()
	stderr := budget.newWriter()
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	r.logger.InfoContext(ctx, "spawning shell command",
		slog.String("command", command),
		slog.String("dir", dir),
		slog.Duration("timeout", timeout),
	)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return protocol.Fail("%s", spawnFailure(err))
	}

	var state atomic.Int32
	timer := time.AfterFunc(timeout, func() {
		if state.CompareAndSwap(statePending, stateTimedOut) {
			// Negative PID = kill the entire process group.
			_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
	})
	defer timer.Stop()

	waitErr := cmd.Wait()
	duration := time.Since(start)
	r.metrics.RecordShell(duration, budget.wasTruncated())

	if !state.CompareAndSwap(statePending, stateExited) {
		// The timeout fired first and killed the process group.
		r.logger.WarnContext(ctx, "shell command timed out",
			slog.String("command", command),
			slog.Duration("timeout", timeout),
		)
		return protocol.CommandResult{
			Success: false,
			Error:   fmt.Sprintf("command timed out after %s", timeout),
			Data:    budget.render(stdout),
		}
	}

	if waitErr == nil {
		return protocol.OK(budget.render(stdout))
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		msg := strings.TrimSpace(stderr.contents())
		if msg == "" {
			msg = fmt.Sprintf("command exited with code %d", exitErr.ExitCode())
		}
		return protocol.CommandResult{
			Success: false,
			Error:   msg,
			Data:    budget.render(stdout),
		}
	}

	return protocol.Fail("command execution failed: %v", waitErr)
}

// spawnFailure translates a start error into an operator-readable message.
func spawnFailure(err error) string {
	switch {
	case errors.Is(err, exec.ErrNotFound):
		return fmt.Sprintf("shell not found: %v", err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Sprintf("permission denied starting shell: %v", err)
	default:
		return fmt.Sprintf("failed to start command: %v", err)
	}
}

// platformShell returns the shell binary and its command flag.
func platformShell() (string, string) {
	if runtime.GOOS == "windows" {
		return "cmd.exe", "/c"
	}
	return "/bin/sh", "-c"
}

// outputBudget enforces one combined byte cap across stdout and stderr.
// Writes past the cap are discarded, never errored; a chatty command
// still runs to completion, only its captured output stops growing.
type outputBudget struct {
	mu        sync.Mutex
	remaining int
	truncated bool
}

func newOutputBudget(max int) *outputBudget {
	return &outputBudget{remaining: max}
}

func (b *outputBudget) newWriter() *cappedWriter {
	return &cappedWriter{budget: b}
}

func (b *outputBudget) wasTruncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.truncated
}

// render returns the writer's captured bytes, with the truncation marker
// appended when any write across the budget was dropped.
func (b *outputBudget) render(w *cappedWriter) string {
	out := w.contents()
	if b.wasTruncated() {
		out += truncationMarker
	}
	return out
}

// cappedWriter accumulates bytes against a shared budget.
type cappedWriter struct {
	budget *outputBudget
	mu     sync.Mutex
	buf    bytes.Buffer
}

func (w *cappedWriter) Write(p []byte) (int, error) {
	w.budget.mu.Lock()
	take := len(p)
	if take > w.budget.remaining {
		take = w.budget.remaining
		w.budget.truncated = true
	}
	w.budget.remaining -= take
	w.budget.mu.Unlock()

	if take > 0 {
		w.mu.Lock()
		w.buf.Write(p[:take])
		w.mu.Unlock()
	}
	// Report full length so the pipe keeps draining.
	return len(p), nil
}

func (w *cappedWriter) contents() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}
