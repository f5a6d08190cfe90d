// Package agent owns one project's lifecycle: registration with the
// control plane, a heartbeat timer, and a poll timer that drains pending
// commands through the executor. Each Runner is fully independent; a
// process hosting several projects runs one Runner per project with no
// shared mutable state between them.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/remora-dev/remora/internal/api"
	"github.com/remora-dev/remora/internal/executor"
	"github.com/remora-dev/remora/internal/observability"
	"github.com/remora-dev/remora/internal/protocol"
	"github.com/remora-dev/remora/internal/sysinfo"
)

// State tracks a runner's position in its lifecycle. Transitions are
// one-way: Unregistered → Registering → Active → Stopped. A failed
// registration jumps straight to Stopped; registration is never retried
// within a process lifetime.
type State int32

const (
	StateUnregistered State = iota
	StateRegistering
	StateActive
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateRegistering:
		return "registering"
	case StateActive:
		return "active"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Recorder receives a best-effort record of every executed command.
// Implementations must never block the poll cycle on failure.
type Recorder interface {
	RecordCommand(ctx context.Context, projectCode, commandID, cmdType string, result *protocol.CommandResult)
}

// Config holds the per-project parameters supplied by the config layer.
type Config struct {
	ProjectCode       string
	AgentID           string
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
}

// Runner drives one project's agent loop.
type Runner struct {
	cfg      Config
	client   api.Client
	executor *executor.Executor
	recorder Recorder
	metrics  *observability.Metrics
	logger   *slog.Logger

	state   atomic.Int32
	polling atomic.Bool

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewRunner creates a runner. recorder and metrics may be nil.
func NewRunner(cfg Config, client api.Client, exec *executor.Executor, recorder Recorder, metrics *observability.Metrics, logger *slog.Logger) *Runner {
	return &Runner{
		cfg:      cfg,
		client:   client,
		executor: exec,
		recorder: recorder,
		metrics:  metrics,
		logger: logger.With(
			slog.String("project", cfg.ProjectCode),
			slog.String("agent_id", cfg.AgentID),
		),
	}
}

// State returns the runner's current lifecycle state.
func (r *Runner) State() State {
	return State(r.state.Load())
}

// Start registers the agent and launches the heartbeat and poll loops.
// A registration failure is terminal: the runner moves to Stopped and
// the error is returned. Start must be called at most once.
func (r *Runner) Start(ctx context.Context) error {
	if !r.state.CompareAndSwap(int32(StateUnregistered), int32(StateRegistering)) {
		return fmt.Errorf("runner already started (state %s)", r.State())
	}

	hostname, _ := os.Hostname()
	resp, err := r.client.Register(ctx, &api.RegisterRequest{
		AgentID:   r.cfg.AgentID,
		Hostname:  hostname,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		IPAddress: localIP(),
	})
	if err != nil {
		r.state.Store(int32(StateStopped))
		r.logger.ErrorContext(ctx, "registration failed",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("registering project %s: %w", r.cfg.ProjectCode, err)
	}
	if resp.AgentID != "" {
		// The control plane's ID assignment is authoritative.
		r.cfg.AgentID = resp.AgentID
	}
	r.state.Store(int32(StateActive))

	r.logger.InfoContext(ctx, "agent registered",
		slog.String("assigned_id", r.cfg.AgentID),
		slog.Duration("poll_interval", r.cfg.PollInterval),
		slog.Duration("heartbeat_interval", r.cfg.HeartbeatInterval),
	)

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.wg.Add(2)
	go r.heartbeatLoop(runCtx)
	go r.pollLoop(runCtx)
	return nil
}

// Stop cancels both loops and waits for in-flight work to settle.
// Idempotent; safe to call before Start.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		r.state.Store(int32(StateStopped))
		if r.cancel != nil {
			r.cancel()
		}
		r.wg.Wait()
		r.logger.Info("agent stopped")
	})
}

// heartbeatLoop reports fresh host metrics on a fixed interval.
// Failures are logged and never affect polling.
func (r *Runner) heartbeatLoop(ctx context.Context) {
	defer r.wg.Done()

	// Initial heartbeat on startup.
	r.sendHeartbeat(ctx)

	ticker := time.NewTicker(r.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sendHeartbeat(ctx)
		}
	}
}

func (r *Runner) sendHeartbeat(ctx context.Context) {
	info := sysinfo.Collect()
	if err := r.client.Heartbeat(ctx, r.cfg.AgentID, &info); err != nil {
		r.metrics.RecordHeartbeat(r.cfg.ProjectCode, "error")
		r.logger.WarnContext(ctx, "heartbeat failed",
			slog.String("error", err.Error()),
		)
		return
	}
	r.metrics.RecordHeartbeat(r.cfg.ProjectCode, "ok")
	r.logger.DebugContext(ctx, "heartbeat sent",
		slog.Float64("cpu_usage", info.CPUUsage),
		slog.Float64("memory_usage", info.MemoryUsage),
	)
}

// pollLoop fetches and executes pending commands on a fixed interval.
func (r *Runner) pollLoop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.pollTick(ctx)
		}
	}
}

// pollTick runs one poll cycle. The single-flight flag guarantees no two
// cycles for the same runner ever overlap: a tick that finds a previous
// cycle still running is skipped outright, never queued.
func (r *Runner) pollTick(ctx context.Context) {
	if !r.polling.CompareAndSwap(false, true) {
		r.metrics.RecordPollCycle(r.cfg.ProjectCode, "skipped")
		r.logger.DebugContext(ctx, "poll tick skipped, previous cycle still running")
		return
	}
	defer r.polling.Store(false)

	summaries, err := r.client.GetPendingCommands(ctx)
	if err != nil {
		// Transient by definition: the next tick retries.
		r.metrics.RecordPollCycle(r.cfg.ProjectCode, "error")
		r.logger.WarnContext(ctx, "polling failed",
			slog.String("error", err.Error()),
		)
		return
	}

	// Commands run strictly sequentially in server order.
	for _, summary := range summaries {
		if ctx.Err() != nil {
			return
		}
		r.runCommand(ctx, summary.CommandID)
	}
	r.metrics.RecordPollCycle(r.cfg.ProjectCode, "ok")
}

// runCommand fetches, executes, and reports one command. Any failure is
// converted to a failure result and submitted best-effort so one bad
// command never aborts the rest of the cycle.
func (r *Runner) runCommand(ctx context.Context, commandID string) {
	cmd, err := r.client.GetCommand(ctx, commandID)
	if err != nil {
		r.logger.WarnContext(ctx, "fetching command failed",
			slog.String("command_id", commandID),
			slog.String("error", err.Error()),
		)
		result := protocol.Fail("fetching command: %v", err)
		r.submit(ctx, commandID, "", &result)
		return
	}

	result := r.executor.Execute(ctx, cmd)
	r.submit(ctx, commandID, string(cmd.Type), &result)
}

func (r *Runner) submit(ctx context.Context, commandID, cmdType string, result *protocol.CommandResult) {
	if r.recorder != nil {
		r.recorder.RecordCommand(ctx, r.cfg.ProjectCode, commandID, cmdType, result)
	}
	if err := r.client.SubmitResult(ctx, commandID, result); err != nil {
		r.logger.WarnContext(ctx, "submitting result failed",
			slog.String("command_id", commandID),
			slog.String("error", err.Error()),
		)
	}
}

// localIP returns the host's first non-loopback IPv4 address, or empty.
func localIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if v4 := ipNet.IP.To4(); v4 != nil {
			return v4.String()
		}
	}
	return ""
}
