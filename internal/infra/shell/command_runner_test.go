package shell_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"rasterwarp/internal/domain"
	"rasterwarp/internal/infra/shell"
)

func newRunner() domain.CommandRunner {
	return shell.NewCommandRunner(slog.New(slog.DiscardHandler))
}

func TestRunReportsElapsedTimeOnSuccess(t *testing.T) {
	res := newRunner().Run(context.Background(), []string{"sh", "-c", "exit 0"})
	if !res.OK {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.Err != nil {
		t.Fatalf("expected nil error on success, got %v", res.Err)
	}
	if !strings.Contains(res.Message, "seconds") {
		t.Errorf("expected elapsed-time message, got %q", res.Message)
	}
}

func TestRunClassifiesMissingExecutable(t *testing.T) {
	res := newRunner().Run(context.Background(), []string{"rasterwarp-no-such-binary"})
	if res.OK {
		t.Fatal("expected failure for missing executable")
	}
	if !errors.Is(res.Err, domain.ErrExecutableNotFound) {
		t.Fatalf("expected ErrExecutableNotFound, got %v", res.Err)
	}
	if !strings.Contains(res.Message, "rasterwarp-no-such-binary") {
		t.Errorf("message should name the missing program, got %q", res.Message)
	}
}

func TestRunCapturesStderrOnNonZeroExit(t *testing.T) {
	res := newRunner().Run(context.Background(), []string{"sh", "-c", "echo bad projection >&2; exit 1"})
	if res.OK {
		t.Fatal("expected failure for non-zero exit")
	}
	if !errors.Is(res.Err, domain.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", res.Err)
	}
	if res.Message != "bad projection" {
		t.Errorf("expected captured stderr, got %q", res.Message)
	}
}

func TestRunRejectsEmptyArgv(t *testing.T) {
	res := newRunner().Run(context.Background(), nil)
	if res.OK {
		t.Fatal("expected failure for empty argv")
	}
	if !errors.Is(res.Err, domain.ErrExecutableNotFound) {
		t.Fatalf("expected ErrExecutableNotFound, got %v", res.Err)
	}
}
