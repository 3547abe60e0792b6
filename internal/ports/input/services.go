// Package input defines the primary/driving ports of the application.
package input

import (
	"context"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/sourcepole/qgis-interlis-plugin/internal/domain"
)

// ModelRegistry defines the primary port for model file management.
type ModelRegistry interface {
	// ListModels returns all registered model files.
	ListModels(ctx context.Context) ([]domain.ModelFile, error)

	// GetModel returns a specific model file by ID.
	GetModel(ctx context.Context, id string) (*domain.ModelFile, error)

	// GetModelStatus returns the status of a model file.
	GetModelStatus(ctx context.Context, id string) (domain.ModelFileStatus, error)
}

// GenerateRequest describes a mapping document to generate.
type GenerateRequest struct {
	DS        string   `json:"ds"`         // Source connection string, empty maps the model itself (not for VRTs)
	DstFormat string   `json:"dst_format"` // Destination format, service default when empty
	Layers    []string `json:"layers"`     // Source layers, all when empty
	SRS       int      `json:"srs"`        // Fallback EPSG code, service default when zero
}

// TransformService defines the primary port for mapping document and
// derived output generation.
type TransformService interface {
	// GenerateConfig returns the mapping document JSON for a source
	// dataset described by the model file modelID.
	GenerateConfig(ctx context.Context, modelID string, req GenerateRequest) (string, error)

	// GenerateVRT generates a mapping document and renders it as VRT.
	GenerateVRT(ctx context.Context, modelID string, req GenerateRequest, reverse bool) (string, error)

	// VRTFromConfig renders a supplied mapping document as VRT.
	VRTFromConfig(ctx context.Context, ds string, config []byte, reverse bool) (string, error)

	// Enums returns the enum tables of a model keyed by destination name.
	Enums(ctx context.Context, modelID string) (*orderedmap.OrderedMap[string, *domain.EnumMapping], error)

	// EnumsGML returns the enumerations of a model as a GML feature collection.
	EnumsGML(ctx context.Context, modelID string) (string, error)

	// EmptyTransfer returns an INTERLIS 2.3 transfer without data.
	EmptyTransfer(ctx context.Context, modelID string) (string, error)
}

// HealthChecker defines the primary port for health checks.
type HealthChecker interface {
	// IsHealthy returns true if the service is healthy.
	IsHealthy(ctx context.Context) bool

	// IsReady returns true if the service is ready to accept requests.
	IsReady(ctx context.Context) bool

	// GetHealthDetails returns detailed health information.
	GetHealthDetails(ctx context.Context) HealthDetails
}

// HealthDetails contains detailed health information.
type HealthDetails struct {
	Healthy      bool              // Overall health status
	Ready        bool              // Ready to accept requests
	ModelsLoaded int               // Number of loaded model files
	ModelsReady  int               // Number of ready model files
	Components   map[string]string // Component statuses
}
