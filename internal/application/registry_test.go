package application

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sourcepole/qgis-interlis-plugin/internal/domain"
	"github.com/sourcepole/qgis-interlis-plugin/internal/ports/output"
)

func TestModelRegistryLoadUnload(t *testing.T) {
	metrics := newMockMetrics()
	registry := NewModelRegistry(&mockReader{}, &mockStorage{}, metrics, discardLogger(), testdataDir)
	ctx := context.Background()

	path := filepath.Join(testdataDir, "RoadsExdm2ien.imd")
	if err := registry.LoadModel(ctx, path); err != nil {
		t.Fatalf("LoadModel failed: %v", err)
	}

	models, err := registry.ListModels(ctx)
	if err != nil {
		t.Fatalf("ListModels failed: %v", err)
	}
	if len(models) != 1 {
		t.Fatalf("len(models) = %d, want 1", len(models))
	}

	m, err := registry.GetModel(ctx, "RoadsExdm2ien")
	if err != nil {
		t.Fatalf("GetModel failed: %v", err)
	}
	if m.Name != "RoadsExdm2ien" {
		t.Errorf("Name = %q, want %q", m.Name, "RoadsExdm2ien")
	}
	if len(m.Models) != 2 {
		t.Errorf("Models = %v, want RoadsExdm2ben and RoadsExdm2ien", m.Models)
	}
	if m.Size == 0 {
		t.Error("Size should be set")
	}
	if metrics.loaded != 1 || metrics.ready != 1 {
		t.Errorf("metrics loaded/ready = %d/%d, want 1/1", metrics.loaded, metrics.ready)
	}

	if err := registry.UnloadModel(ctx, "RoadsExdm2ien"); err != nil {
		t.Fatalf("UnloadModel failed: %v", err)
	}
	models, _ = registry.ListModels(ctx)
	if len(models) != 0 {
		t.Errorf("len(models) = %d, want 0", len(models))
	}
	if metrics.loaded != 0 {
		t.Errorf("metrics loaded = %d, want 0", metrics.loaded)
	}
}

func TestModelRegistryLoadError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.imd")
	if err := os.WriteFile(path, []byte("<TRANSFER>"), 0o644); err != nil {
		t.Fatal(err)
	}

	registry := newTestRegistry()
	ctx := context.Background()

	err := registry.LoadModel(ctx, path)
	if !errors.Is(err, domain.ErrModelParse) {
		t.Fatalf("err = %v, want %v", err, domain.ErrModelParse)
	}

	status, err := registry.GetModelStatus(ctx, "broken")
	if err != nil {
		t.Fatalf("GetModelStatus failed: %v", err)
	}
	if status != domain.StatusError {
		t.Errorf("status = %s, want %s", status, domain.StatusError)
	}

	_, _, err = registry.Graph("broken")
	if !errors.Is(err, domain.ErrModelParse) {
		t.Errorf("Graph() err = %v, want %v", err, domain.ErrModelParse)
	}
}

func TestModelRegistryEmptyModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.imd")
	content := `<?xml version="1.0" encoding="UTF-8"?>
<TRANSFER xmlns="http://www.interlis.ch/INTERLIS2.3">
<DATASECTION><IlisMeta07.ModelData BID="MODEL.Empty"></IlisMeta07.ModelData></DATASECTION>
</TRANSFER>`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	registry := newTestRegistry()
	err := registry.LoadModel(context.Background(), path)
	if !errors.Is(err, domain.ErrEmptyModel) {
		t.Errorf("err = %v, want %v", err, domain.ErrEmptyModel)
	}
	if registry.IsReady("empty") {
		t.Error("empty model should not be ready")
	}
}

func TestModelRegistryGetModelNotFound(t *testing.T) {
	registry := newTestRegistry()
	ctx := context.Background()

	if _, err := registry.GetModel(ctx, "nonexistent"); !errors.Is(err, domain.ErrModelNotFound) {
		t.Errorf("GetModel err = %v, want %v", err, domain.ErrModelNotFound)
	}
	if _, err := registry.GetModelStatus(ctx, "nonexistent"); !errors.Is(err, domain.ErrModelNotFound) {
		t.Errorf("GetModelStatus err = %v, want %v", err, domain.ErrModelNotFound)
	}
	if _, _, err := registry.Graph("nonexistent"); !errors.Is(err, domain.ErrModelNotFound) {
		t.Errorf("Graph err = %v, want %v", err, domain.ErrModelNotFound)
	}
	if err := registry.UnloadModel(ctx, "nonexistent"); !errors.Is(err, domain.ErrModelNotFound) {
		t.Errorf("UnloadModel err = %v, want %v", err, domain.ErrModelNotFound)
	}
}

func TestModelRegistryGraphNotReady(t *testing.T) {
	registry := newTestRegistry()

	registry.mu.Lock()
	registry.models["loading"] = &modelEntry{
		File:   &domain.ModelFile{ID: "loading"},
		Status: domain.StatusLoading,
	}
	registry.mu.Unlock()

	_, _, err := registry.Graph("loading")
	if !errors.Is(err, domain.ErrNotReady) {
		t.Errorf("err = %v, want %v", err, domain.ErrNotReady)
	}
}

func TestModelRegistryReadyModelIDs(t *testing.T) {
	registry := newTestRegistry()

	registry.mu.Lock()
	registry.models["b"] = &modelEntry{File: &domain.ModelFile{ID: "b"}, Status: domain.StatusReady}
	registry.models["a"] = &modelEntry{File: &domain.ModelFile{ID: "a"}, Status: domain.StatusReady}
	registry.models["c"] = &modelEntry{File: &domain.ModelFile{ID: "c"}, Status: domain.StatusError}
	registry.mu.Unlock()

	ids := registry.ReadyModelIDs()
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("ReadyModelIDs() = %v, want [a b]", ids)
	}
	if !registry.IsReady("a") {
		t.Error("a should be ready")
	}
	if registry.IsReady("c") {
		t.Error("c should not be ready")
	}
}

func TestModelRegistryLoadAll(t *testing.T) {
	storage := &mockStorage{
		objects: []output.StorageObject{
			{Key: "RoadsExdm2ben.imd"},
			{Key: "RoadsExdm2ien.imd"},
			{Key: "README.md"},
		},
	}
	registry := NewModelRegistry(&mockReader{}, storage, &output.NoOpMetrics{}, discardLogger(), testdataDir)

	if err := registry.LoadAll(context.Background()); err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if got := registry.ModelCount(); got != 2 {
		t.Errorf("ModelCount() = %d, want 2", got)
	}
}

func TestModelRegistryLoadAllListError(t *testing.T) {
	storage := &mockStorage{listErr: domain.ErrStorageUnavailable}
	registry := NewModelRegistry(&mockReader{}, storage, &output.NoOpMetrics{}, discardLogger(), testdataDir)

	if err := registry.LoadAll(context.Background()); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Errorf("err = %v, want %v", err, domain.ErrStorageUnavailable)
	}
}
