package domain

import (
	"context"
	"time"
)

// RunResult reports the outcome of a single external command invocation.
type RunResult struct {
	OK      bool
	Message string // captured stderr on failure, elapsed-time report on success
	Elapsed time.Duration
	Err     error // nil when OK; wraps ErrExecutableNotFound or ErrExternalTool
}

// CommandRunner executes an external process and waits for it to finish.
// Failures never surface as a separate error return: the RunResult carries
// the full outcome. Retry policy, if any, belongs to the caller.
type CommandRunner interface {
	Run(ctx context.Context, argv []string) RunResult
}
