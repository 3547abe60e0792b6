package output

import (
	"context"

	"github.com/sourcepole/qgis-interlis-plugin/internal/domain"
)

// SourceInspector defines the secondary port for reading the schema of a
// source dataset.
type SourceInspector interface {
	// Inspect opens the dataset described by ds and returns its layers.
	Inspect(ctx context.Context, ds domain.SourceDescriptor) (*domain.SourceDataset, error)
}

// ModelReader defines the secondary port for reading IlisMeta documents.
type ModelReader interface {
	// ReadModel parses the model file at path.
	ReadModel(ctx context.Context, path string) (*domain.ModelGraph, error)
}

// ToolRunner defines the secondary port for running the external ili2c,
// ili2pg and ili2gpkg tools.
type ToolRunner interface {
	// Run runs tool with args and returns once the process has exited.
	Run(ctx context.Context, tool string, args []string) error
}
