package application

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sourcepole/qgis-interlis-plugin/internal/domain"
	"github.com/sourcepole/qgis-interlis-plugin/internal/ports/output"
)

// ToolService runs the external INTERLIS tools.
type ToolService struct {
	runner   output.ToolRunner
	registry *ModelRegistry
	metrics  output.MetricsCollector
	logger   *slog.Logger
}

// NewToolService creates a new tool service. registry may be nil when
// compiled models need not be registered.
func NewToolService(runner output.ToolRunner, registry *ModelRegistry, metrics output.MetricsCollector, logger *slog.Logger) *ToolService {
	return &ToolService{
		runner:   runner,
		registry: registry,
		metrics:  metrics,
		logger:   logger,
	}
}

// Run runs tool with args.
func (s *ToolService) Run(ctx context.Context, tool string, args []string) error {
	start := time.Now()
	err := s.runner.Run(ctx, tool, args)
	s.metrics.IncGenerationCount(tool, err == nil)
	s.metrics.ObserveGenerationDuration(tool, time.Since(start))
	return err
}

// Compile runs ili2c with args to produce the IlisMeta document imd and
// registers the result.
func (s *ToolService) Compile(ctx context.Context, tool string, args []string, imd string) error {
	if !domain.IsModelFile(imd) {
		return fmt.Errorf("%w: %s is not an .imd file", domain.ErrInvalidInput, imd)
	}
	if dir := filepath.Dir(imd); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}
	if err := s.Run(ctx, tool, args); err != nil {
		return err
	}
	if _, err := os.Stat(imd); err != nil {
		return &domain.ToolError{Tool: tool, ExitCode: 0, Err: fmt.Errorf("no output written: %w", err)}
	}
	if s.registry == nil {
		return nil
	}
	return s.registry.LoadModel(ctx, imd)
}
