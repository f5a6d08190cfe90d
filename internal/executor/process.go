package executor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"syscall"

	"github.com/remora-dev/remora/internal/protocol"
)

// allowedSignals is the closed set of signals process_kill may deliver.
// SIGKILL is deliberately absent: remote operators get graceful shutdown
// and user-defined signals, never an unconditional kill.
var allowedSignals = map[string]syscall.Signal{
	"SIGTERM": syscall.SIGTERM,
	"SIGINT":  syscall.SIGINT,
	"SIGHUP":  syscall.SIGHUP,
	"SIGUSR1": syscall.SIGUSR1,
	"SIGUSR2": syscall.SIGUSR2,
}

// processList shells out to the platform process lister with a dedicated,
// shorter timeout than general command execution.
func (e *Executor) processList(ctx context.Context) protocol.CommandResult {
	command := "ps aux"
	if runtime.GOOS == "windows" {
		command = "tasklist"
	}
	return e.runner.Run(ctx, command, "", processListTimeout)
}

// processKill validates the PID and signal name, then signals the process
// exactly once.
func (e *Executor) processKill(ctx context.Context, payload map[string]any) protocol.CommandResult {
	raw, present := payload["pid"]
	if !present {
		return protocol.Fail("pid is required")
	}
	pid, ok := intValue(raw)
	if !ok || pid <= 0 {
		return protocol.Fail("pid must be a positive integer")
	}

	name := "SIGTERM"
	if s, ok := stringField(payload, "signal"); ok && s != "" {
		name = s
	}
	sig, ok := allowedSignals[name]
	if !ok {
		e.metrics.RecordGuardRejection("signal")
		return protocol.Fail("signal %q is not allowed", name)
	}

	if err := syscall.Kill(int(pid), sig); err != nil {
		return protocol.Fail("signaling process %d: %v", pid, err)
	}

	e.logger.InfoContext(ctx, "process signaled",
		slog.Int64("pid", pid),
		slog.String("signal", name),
	)
	return protocol.OK(fmt.Sprintf("sent %s to process %d", name, pid))
}
