package application

import (
	"context"
	"testing"

	"github.com/sourcepole/qgis-interlis-plugin/internal/domain"
)

func TestHealthServiceIsHealthy(t *testing.T) {
	service := NewHealthService(newTestRegistry())

	if !service.IsHealthy(context.Background()) {
		t.Error("IsHealthy should return true")
	}
}

func TestHealthServiceIsReady(t *testing.T) {
	tests := []struct {
		name   string
		models map[string]*modelEntry
		want   bool
	}{
		{
			name:   "empty registry is ready",
			models: map[string]*modelEntry{},
			want:   true,
		},
		{
			name: "ready model",
			models: map[string]*modelEntry{
				"roads": {File: &domain.ModelFile{ID: "roads"}, Status: domain.StatusReady},
			},
			want: true,
		},
		{
			name: "failed model does not block",
			models: map[string]*modelEntry{
				"roads":  {File: &domain.ModelFile{ID: "roads"}, Status: domain.StatusReady},
				"broken": {File: &domain.ModelFile{ID: "broken"}, Status: domain.StatusError},
			},
			want: true,
		},
		{
			name: "loading model",
			models: map[string]*modelEntry{
				"roads":   {File: &domain.ModelFile{ID: "roads"}, Status: domain.StatusReady},
				"loading": {File: &domain.ModelFile{ID: "loading"}, Status: domain.StatusLoading},
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := newTestRegistry()
			registry.models = tt.models
			service := NewHealthService(registry)

			if got := service.IsReady(context.Background()); got != tt.want {
				t.Errorf("IsReady() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHealthServiceGetHealthDetails(t *testing.T) {
	registry := newTestRegistry()
	registry.models = map[string]*modelEntry{
		"roads":  {File: &domain.ModelFile{ID: "roads"}, Status: domain.StatusReady},
		"broken": {File: &domain.ModelFile{ID: "broken"}, Status: domain.StatusError},
	}
	service := NewHealthService(registry)

	details := service.GetHealthDetails(context.Background())
	if !details.Healthy {
		t.Error("Healthy should be true")
	}
	if !details.Ready {
		t.Error("Ready should be true")
	}
	if details.ModelsLoaded != 2 {
		t.Errorf("ModelsLoaded = %d, want 2", details.ModelsLoaded)
	}
	if details.ModelsReady != 1 {
		t.Errorf("ModelsReady = %d, want 1", details.ModelsReady)
	}
	if details.Components["models"] != "degraded" {
		t.Errorf("Components[models] = %q, want degraded", details.Components["models"])
	}
}

func TestHealthServiceGetModelHealth(t *testing.T) {
	registry := newTestRegistry()
	registry.models = map[string]*modelEntry{
		"b": {File: &domain.ModelFile{ID: "b"}, Status: domain.StatusLoading},
		"a": {File: &domain.ModelFile{ID: "a"}, Status: domain.StatusReady},
	}
	service := NewHealthService(registry)

	health := service.GetModelHealth(context.Background())
	if len(health) != 2 {
		t.Fatalf("len(health) = %d, want 2", len(health))
	}
	if health[0].ID != "a" || !health[0].Ready {
		t.Errorf("health[0] = %+v, want ready model a", health[0])
	}
	if health[1].Status != domain.StatusLoading || health[1].Ready {
		t.Errorf("health[1] = %+v, want loading model b", health[1])
	}
}
