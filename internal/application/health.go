package application

import (
	"context"

	"github.com/sourcepole/qgis-interlis-plugin/internal/domain"
	"github.com/sourcepole/qgis-interlis-plugin/internal/ports/input"
)

// HealthService provides health check functionality.
type HealthService struct {
	registry *ModelRegistry
}

// NewHealthService creates a new health service.
func NewHealthService(registry *ModelRegistry) *HealthService {
	return &HealthService{
		registry: registry,
	}
}

// IsHealthy returns true if the service is healthy.
func (s *HealthService) IsHealthy(_ context.Context) bool {
	return true
}

// IsReady returns true once no model file is still loading. An empty
// registry is ready because sources can be mapped without a stored model.
func (s *HealthService) IsReady(ctx context.Context) bool {
	models, err := s.registry.ListModels(ctx)
	if err != nil {
		return false
	}
	for _, m := range models {
		status, _ := s.registry.GetModelStatus(ctx, m.ID)
		if status == domain.StatusLoading {
			return false
		}
	}
	return true
}

// GetHealthDetails returns detailed health information.
func (s *HealthService) GetHealthDetails(ctx context.Context) input.HealthDetails {
	models, _ := s.registry.ListModels(ctx)

	components := map[string]string{
		"storage": "ok",
	}
	failed := 0
	for _, m := range models {
		if status, _ := s.registry.GetModelStatus(ctx, m.ID); status == domain.StatusError {
			failed++
		}
	}
	if failed > 0 {
		components["models"] = "degraded"
	} else {
		components["models"] = "ok"
	}

	return input.HealthDetails{
		Healthy:      s.IsHealthy(ctx),
		Ready:        s.IsReady(ctx),
		ModelsLoaded: len(models),
		ModelsReady:  len(s.registry.ReadyModelIDs()),
		Components:   components,
	}
}

// ModelHealth contains health info for a single model file.
type ModelHealth struct {
	ID     string                 `json:"id"`
	Status domain.ModelFileStatus `json:"status"`
	Ready  bool                   `json:"ready"`
}

// GetModelHealth returns health info for all model files.
func (s *HealthService) GetModelHealth(ctx context.Context) []ModelHealth {
	models, _ := s.registry.ListModels(ctx)

	health := make([]ModelHealth, len(models))
	for i, m := range models {
		status, _ := s.registry.GetModelStatus(ctx, m.ID)
		health[i] = ModelHealth{
			ID:     m.ID,
			Status: status,
			Ready:  status == domain.StatusReady,
		}
	}
	return health
}
