// internal/infra/shell/command_runner.go
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"rasterwarp/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// commandRunner implements domain.CommandRunner over os/exec.
type commandRunner struct {
	logger *slog.Logger
	tracer trace.Tracer
}

// NewCommandRunner creates a new commandRunner instance.
func NewCommandRunner(logger *slog.Logger) domain.CommandRunner {
	return &commandRunner{
		logger: logger.With("component", "command-runner"),
		tracer: otel.Tracer("rasterwarp-command-runner"),
	}
}

// Run starts argv[0] with the remaining arguments and waits for completion,
// measuring elapsed wall-clock time. A missing binary and a non-zero exit
// both come back inside the RunResult; this method never panics or returns
// an error through a side channel.
func (r *commandRunner) Run(ctx context.Context, argv []string) domain.RunResult {
	if len(argv) == 0 {
		return domain.RunResult{
			Message: "empty argument vector",
			Err:     fmt.Errorf("%w: no command given", domain.ErrExecutableNotFound),
		}
	}

	ctx, span := r.tracer.Start(ctx, "runner.shell.Run",
		trace.WithAttributes(
			attribute.String("command.name", argv[0]),
			attribute.StringSlice("command.args", argv[1:]),
		))
	defer span.End()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) && errors.Is(execErr.Err, exec.ErrNotFound) {
			span.SetStatus(codes.Error, "executable not found")
			span.RecordError(err)
			return domain.RunResult{
				Message: fmt.Sprintf("command %q not found", argv[0]),
				Elapsed: elapsed,
				Err:     fmt.Errorf("%w: %s", domain.ErrExecutableNotFound, argv[0]),
			}
		}

		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		span.SetAttributes(attribute.String("command.stderr", msg))
		span.SetStatus(codes.Error, "command exited non-zero")
		span.RecordError(err)
		return domain.RunResult{
			Message: msg,
			Elapsed: elapsed,
			Err:     fmt.Errorf("%w: %s", domain.ErrExternalTool, argv[0]),
		}
	}

	return domain.RunResult{
		OK:      true,
		Message: fmt.Sprintf("command finished in %.1f seconds", elapsed.Seconds()),
		Elapsed: elapsed,
	}
}
