// Package executor dispatches remotely issued commands to their handlers,
// applying the guard layer before anything touches the host. Execute never
// panics or returns a Go error upward: every fault (guard rejection,
// malformed payload, OS error) is normalized into a failed CommandResult
// so the control plane always receives an answer.
package executor

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/remora-dev/remora/internal/guard"
	"github.com/remora-dev/remora/internal/observability"
	"github.com/remora-dev/remora/internal/protocol"
)

// Built-in limits, overridable through Config.
const (
	DefaultMaxOutputBytes = 1 << 20  // 1 MiB combined stdout+stderr
	DefaultMaxFileSize    = 10 << 20 // 10 MiB read and write cap
	DefaultMaxDirEntries  = 500
	DefaultCommandTimeout = 30 * time.Second
	MaxCommandTimeout     = 5 * time.Minute
	processListTimeout    = 10 * time.Second
)

// Config bounds command execution. Zero values use the defaults above.
type Config struct {
	MaxOutputBytes        int
	MaxFileSizeBytes      int64
	MaxDirEntries         int
	MaxCommandTimeout     time.Duration
	DefaultCommandTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxOutputBytes <= 0 {
		c.MaxOutputBytes = DefaultMaxOutputBytes
	}
	if c.MaxFileSizeBytes <= 0 {
		c.MaxFileSizeBytes = DefaultMaxFileSize
	}
	if c.MaxDirEntries <= 0 {
		c.MaxDirEntries = DefaultMaxDirEntries
	}
	if c.MaxCommandTimeout <= 0 {
		c.MaxCommandTimeout = MaxCommandTimeout
	}
	if c.DefaultCommandTimeout <= 0 {
		c.DefaultCommandTimeout = DefaultCommandTimeout
	}
	return c
}

// Executor routes typed commands through the guards to their handlers.
type Executor struct {
	cfg     Config
	paths   *guard.PathGuard
	runner  *ProcessRunner
	metrics *observability.Metrics
	tracer  trace.Tracer
	logger  *slog.Logger
}

// New creates an Executor. metrics may be nil.
func New(cfg Config, metrics *observability.Metrics, logger *slog.Logger) *Executor {
	cfg = cfg.withDefaults()
	return &Executor{
		cfg:     cfg,
		paths:   guard.NewPathGuard(),
		runner:  NewProcessRunner(cfg.MaxOutputBytes, metrics, logger),
		metrics: metrics,
		logger:  logger,
	}
}

// WithTracer attaches an OTel tracer; Execute then wraps each command in
// a span.
func (e *Executor) WithTracer(tracer trace.Tracer) *Executor {
	e.tracer = tracer
	return e
}

// Execute runs one command and always produces a result; the agent loop
// depends on that invariant. Unknown types fail explicitly rather than
// being silently dropped.
func (e *Executor) Execute(ctx context.Context, cmd *protocol.AgentCommand) (result protocol.CommandResult) {
	start := time.Now()

	var span trace.Span
	if e.tracer != nil {
		ctx, span = e.tracer.Start(ctx, "executor.execute",
			trace.WithAttributes(
				attribute.String("command.type", string(cmd.Type)),
				attribute.String("command.id", cmd.CommandID),
			),
		)
	}

	defer func() {
		if r := recover(); r != nil {
			result = protocol.Fail("internal error executing command: %v", r)
		}
		status := "ok"
		if !result.Success {
			status = "error"
		}
		e.metrics.RecordCommand(string(cmd.Type), status, time.Since(start))
		if span != nil {
			if !result.Success {
				span.SetStatus(codes.Error, result.Error)
			}
			span.End()
		}
	}()

	e.logger.InfoContext(ctx, "executing command",
		slog.String("command_id", cmd.CommandID),
		slog.String("type", string(cmd.Type)),
	)

	switch cmd.Type {
	case protocol.TypeExecuteCommand:
		return e.execCommand(ctx, cmd.Payload)
	case protocol.TypeFileRead:
		return e.fileRead(ctx, cmd.Payload)
	case protocol.TypeFileWrite:
		return e.fileWrite(ctx, cmd.Payload)
	case protocol.TypeFileList:
		return e.fileList(ctx, cmd.Payload)
	case protocol.TypeProcessList:
		return e.processList(ctx)
	case protocol.TypeProcessKill:
		return e.processKill(ctx, cmd.Payload)
	default:
		return protocol.Fail("unknown command type %q", cmd.Type)
	}
}

// execCommand validates the command string, timeout bound, and working
// directory, then delegates to the ProcessRunner.
func (e *Executor) execCommand(ctx context.Context, payload map[string]any) protocol.CommandResult {
	command, ok := stringField(payload, "command")
	if !ok || command == "" {
		return protocol.Fail("command is required")
	}

	if err := guard.ValidateCommand(command); err != nil {
		e.metrics.RecordGuardRejection("command")
		return protocol.FailErr(err, nil)
	}

	timeout := e.cfg.DefaultCommandTimeout
	if raw, present := payload["timeout"]; present {
		ms, ok := intValue(raw)
		if !ok || ms < 1 || time.Duration(ms)*time.Millisecond > e.cfg.MaxCommandTimeout {
			return protocol.Fail("timeout must be between 1 and %d ms", e.cfg.MaxCommandTimeout.Milliseconds())
		}
		timeout = time.Duration(ms) * time.Millisecond
	}

	cwd := ""
	if raw, ok := stringField(payload, "cwd"); ok && raw != "" {
		resolved, err := e.paths.Validate(raw)
		if err != nil {
			e.metrics.RecordGuardRejection("path")
			return protocol.FailErr(err, nil)
		}
		cwd = resolved
	}

	return e.runner.Run(ctx, command, cwd, timeout)
}

// validatePath runs a payload path through the PathGuard, recording
// rejections.
func (e *Executor) validatePath(path string) (string, error) {
	resolved, err := e.paths.Validate(path)
	if err != nil {
		if errors.Is(err, guard.ErrAccessDenied) {
			e.metrics.RecordGuardRejection("path")
		}
		return "", err
	}
	return resolved, nil
}

// --- payload field helpers ---
// Payloads arrive as generic JSON mappings; numbers decode as float64.

func stringField(payload map[string]any, key string) (string, bool) {
	v, ok := payload[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func boolField(payload map[string]any, key string) bool {
	v, ok := payload[key].(bool)
	return ok && v
}

func intValue(raw any) (int64, bool) {
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int64(v), true
	case int:
		return int64(v), true
	case int64:
		return v, true
	default:
		return 0, false
	}
}
