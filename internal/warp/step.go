// internal/warp/step.go
package warp

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"rasterwarp/internal/domain"
	"rasterwarp/internal/metrics"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Step composes a reprojection invocation and an optional overview-generation
// invocation into one unit of work for a single input file.
type Step struct {
	runner       domain.CommandRunner
	warpTool     string
	overviewTool string
	logger       *slog.Logger
	tracer       trace.Tracer
}

// NewStep creates a reprojection step backed by the given command runner.
func NewStep(runner domain.CommandRunner, warpTool, overviewTool string, logger *slog.Logger) *Step {
	return &Step{
		runner:       runner,
		warpTool:     warpTool,
		overviewTool: overviewTool,
		logger:       logger.With("component", "warp-step"),
		tracer:       otel.Tracer("rasterwarp-warp-step"),
	}
}

// Execute reprojects the item's source file and, when overview levels are
// configured, builds pyramids on the result. The returned WorkResult carries
// a nil Output on any failure. When only overview generation fails, the
// reprojected file is left in place on disk but the item is not announced.
func (s *Step) Execute(ctx context.Context, item *domain.WorkItem) *domain.WorkResult {
	executionID := uuid.NewString()
	logger := s.logger.With("source", item.SourcePath, "execution_id", executionID)

	ctx, span := s.tracer.Start(ctx, "warp.Execute",
		trace.WithAttributes(
			attribute.String("item.source", item.SourcePath),
			attribute.String("execution.id", executionID),
		))
	defer span.End()

	outPath := filepath.Join(item.TargetDir, filepath.Base(item.SourcePath))
	meta := copyMetadata(item.Metadata)

	argv := s.warpCommand(item, outPath)
	logger.Debug("running reprojection", "command", strings.Join(argv, " "))

	res := s.runner.Run(ctx, argv)
	if !res.OK {
		logger.Error("reprojection failed", "error", res.Err, "message", res.Message)
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, "reprojection failed")
		metrics.ItemsProcessedTotal.WithLabelValues("warp_failed").Inc()
		return &domain.WorkResult{Metadata: meta}
	}
	logger.Debug(res.Message)

	if !s.addOverviews(ctx, logger, outPath, item.Overviews) {
		span.SetStatus(codes.Error, "overview generation failed")
		metrics.ItemsProcessedTotal.WithLabelValues("overview_failed").Inc()
		return &domain.WorkResult{Metadata: meta}
	}

	metrics.ItemsProcessedTotal.WithLabelValues("success").Inc()
	return &domain.WorkResult{
		Metadata: meta,
		Output: &domain.Output{
			Path: outPath,
			UID:  filepath.Base(outPath),
		},
	}
}

// warpCommand builds the reprojection argument vector. Option flags are
// emitted in sorted key order so commands are deterministic; a list-valued
// option repeats its flag once per element in list order, a scalar option is
// whitespace-tokenized after its flag.
func (s *Step) warpCommand(item *domain.WorkItem, outPath string) []string {
	argv := []string{s.warpTool}

	keys := make([]string, 0, len(item.Options))
	for k := range item.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		flag := "-" + key
		switch value := item.Options[key].(type) {
		case []string:
			for _, el := range value {
				argv = append(argv, flag, el)
			}
		case []any:
			for _, el := range value {
				argv = append(argv, flag, fmt.Sprint(el))
			}
		case string:
			argv = append(argv, flag)
			argv = append(argv, strings.Fields(value)...)
		default:
			argv = append(argv, flag, fmt.Sprint(value))
		}
	}

	return append(argv, item.SourcePath, outPath)
}

// addOverviews runs the overview tool on the reprojected file. An empty level
// list is a no-op that trivially succeeds.
func (s *Step) addOverviews(ctx context.Context, logger *slog.Logger, path string, levels []int) bool {
	if len(levels) == 0 {
		logger.Debug("no overviews configured")
		return true
	}

	argv := make([]string, 0, len(levels)+2)
	argv = append(argv, s.overviewTool, path)
	for _, level := range levels {
		argv = append(argv, strconv.Itoa(level))
	}

	res := s.runner.Run(ctx, argv)
	if !res.OK {
		logger.Error("overview generation failed",
			"error", fmt.Errorf("%w: %w", domain.ErrOverviewGeneration, res.Err),
			"message", res.Message)
		return false
	}
	logger.Info(res.Message)
	return true
}

func copyMetadata(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
