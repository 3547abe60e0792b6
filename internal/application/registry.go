// Package application contains the application services.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/sourcepole/qgis-interlis-plugin/internal/domain"
	"github.com/sourcepole/qgis-interlis-plugin/internal/ports/output"
)

// ModelRegistry manages parsed IlisMeta documents.
type ModelRegistry struct {
	mu        sync.RWMutex
	models    map[string]*modelEntry
	reader    output.ModelReader
	storage   output.ObjectStorage
	metrics   output.MetricsCollector
	logger    *slog.Logger
	localPath string
}

type modelEntry struct {
	File   *domain.ModelFile
	Graph  *domain.ModelGraph
	Status domain.ModelFileStatus
	Error  error
}

// NewModelRegistry creates a new model registry.
func NewModelRegistry(
	reader output.ModelReader,
	storage output.ObjectStorage,
	metrics output.MetricsCollector,
	logger *slog.Logger,
	localPath string,
) *ModelRegistry {
	return &ModelRegistry{
		models:    make(map[string]*modelEntry),
		reader:    reader,
		storage:   storage,
		metrics:   metrics,
		logger:    logger,
		localPath: localPath,
	}
}

// LoadModel parses the model file at path and registers it. A file that
// was loaded before is replaced.
func (r *ModelRegistry) LoadModel(ctx context.Context, path string) error {
	id := domain.DeriveModelID(path)
	r.logger.Info("loading model", "path", path, "id", id)

	r.mu.Lock()
	r.models[id] = &modelEntry{
		File:   &domain.ModelFile{ID: id, Path: path},
		Status: domain.StatusLoading,
	}
	r.mu.Unlock()

	graph, err := r.read(ctx, path)
	if err != nil {
		r.logger.Error("failed to load model", "path", path, "error", err)
		r.mu.Lock()
		r.models[id].Status = domain.StatusError
		r.models[id].Error = err
		r.mu.Unlock()
		r.updateMetrics()
		return err
	}

	var size int64
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}
	file := domain.NewModelFile(id, path, size, graph)

	r.mu.Lock()
	r.models[id] = &modelEntry{File: file, Graph: graph, Status: domain.StatusReady}
	r.mu.Unlock()

	r.updateMetrics()
	r.logger.Info("model loaded", "id", id, "model", file.Name, "classes", file.ClassCount, "enums", file.EnumCount)
	return nil
}

func (r *ModelRegistry) read(ctx context.Context, path string) (*domain.ModelGraph, error) {
	graph, err := r.reader.ReadModel(ctx, path)
	if err != nil {
		return nil, err
	}
	if graph.IsEmpty() {
		return nil, &domain.EmptyModelError{Source: path}
	}
	return graph, nil
}

// UnloadModel removes a model file from the registry.
func (r *ModelRegistry) UnloadModel(_ context.Context, id string) error {
	r.logger.Info("unloading model", "id", id)

	r.mu.Lock()
	if _, ok := r.models[id]; !ok {
		r.mu.Unlock()
		return domain.ErrModelNotFound
	}
	delete(r.models, id)
	r.mu.Unlock()

	r.updateMetrics()
	return nil
}

// ListModels returns all registered model files ordered by ID.
func (r *ModelRegistry) ListModels(_ context.Context) ([]domain.ModelFile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	models := make([]domain.ModelFile, 0, len(r.models))
	for _, entry := range r.models {
		models = append(models, *entry.File)
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models, nil
}

// GetModel returns a specific model file by ID.
func (r *ModelRegistry) GetModel(_ context.Context, id string) (*domain.ModelFile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.models[id]
	if !ok {
		return nil, domain.ErrModelNotFound
	}
	return entry.File, nil
}

// GetModelStatus returns the status of a model file.
func (r *ModelRegistry) GetModelStatus(_ context.Context, id string) (domain.ModelFileStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.models[id]
	if !ok {
		return "", domain.ErrModelNotFound
	}
	return entry.Status, nil
}

// Graph returns the parsed graph of a ready model file.
func (r *ModelRegistry) Graph(id string) (*domain.ModelFile, *domain.ModelGraph, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.models[id]
	if !ok {
		return nil, nil, domain.ErrModelNotFound
	}
	if entry.Status != domain.StatusReady {
		if entry.Error != nil {
			return nil, nil, fmt.Errorf("model %s: %w", id, entry.Error)
		}
		return nil, nil, fmt.Errorf("model %s is %s: %w", id, entry.Status, domain.ErrNotReady)
	}
	return entry.File, entry.Graph, nil
}

// IsReady returns true if a model file can be used.
func (r *ModelRegistry) IsReady(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.models[id]
	return ok && entry.Status == domain.StatusReady
}

// ReadyModelIDs returns IDs of all ready model files.
func (r *ModelRegistry) ReadyModelIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0)
	for id, entry := range r.models {
		if entry.Status == domain.StatusReady {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (r *ModelRegistry) updateMetrics() {
	r.mu.RLock()
	total := len(r.models)
	ready := 0
	for _, entry := range r.models {
		if entry.Status == domain.StatusReady {
			ready++
		}
	}
	r.mu.RUnlock()

	r.metrics.SetModelsLoaded(total)
	r.metrics.SetModelsReady(ready)
}

// LoadAll loads all model files from storage. Files that fail to load are
// logged and kept in error state.
func (r *ModelRegistry) LoadAll(ctx context.Context) error {
	r.logger.Info("loading all models from storage")

	objects, err := r.storage.List(ctx)
	if err != nil {
		return err
	}

	// Download everything first so that documents importing models of
	// another file find it beside them.
	var paths []string
	for _, obj := range objects {
		if !domain.IsModelFile(obj.Key) {
			continue
		}
		localPath := filepath.Join(r.localPath, obj.Key)
		if err := r.storage.Download(ctx, obj.Key, localPath); err != nil {
			r.logger.Error("failed to download model", "key", obj.Key, "error", err)
			continue
		}
		paths = append(paths, localPath)
	}
	for _, path := range paths {
		_ = r.LoadModel(ctx, path)
	}
	return nil
}

// IsLoaded returns true if a model file with the given ID is registered.
func (r *ModelRegistry) IsLoaded(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.models[id]
	return ok
}

// ModelCount returns the number of registered model files.
func (r *ModelRegistry) ModelCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.models)
}

// SyncStats contains statistics from a sync operation.
type SyncStats struct {
	Added   int
	Removed int
}

// Sync downloads model files that are new in storage and removes those
// that no longer exist there.
func (r *ModelRegistry) Sync(ctx context.Context) (SyncStats, error) {
	r.logger.Info("syncing models from storage")

	objects, err := r.storage.List(ctx)
	if err != nil {
		return SyncStats{}, err
	}

	remote := make(map[string]string) // model ID -> object key
	for _, obj := range objects {
		if domain.IsModelFile(obj.Key) {
			remote[domain.DeriveModelID(obj.Key)] = obj.Key
		}
	}

	stats := SyncStats{}
	downloaded := make(map[string]string) // model ID -> local path
	for id, key := range remote {
		if r.IsLoaded(id) {
			r.logger.Debug("model already loaded, skipping", "id", id)
			continue
		}

		localPath := filepath.Join(r.localPath, key)
		if err := r.storage.Download(ctx, key, localPath); err != nil {
			r.logger.Error("failed to download model", "key", key, "error", err)
			continue
		}
		downloaded[id] = localPath
	}
	for id, localPath := range downloaded {
		if err := r.LoadModel(ctx, localPath); err != nil {
			continue
		}
		stats.Added++
		r.logger.Info("new model synced", "id", id)
	}

	for _, id := range r.findModelsToRemove(remote) {
		r.logger.Info("removing model not in remote storage", "id", id)
		localPath := r.modelPath(id)

		if err := r.UnloadModel(ctx, id); err != nil {
			r.logger.Error("failed to unload removed model", "id", id, "error", err)
			continue
		}
		if localPath != "" {
			if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
				r.logger.Warn("failed to delete local cache file", "path", localPath, "error", err)
			}
		}
		stats.Removed++
	}

	r.logger.Info("sync completed", "added", stats.Added, "removed", stats.Removed, "total", r.ModelCount())
	return stats, nil
}

func (r *ModelRegistry) findModelsToRemove(remote map[string]string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var toRemove []string
	for id := range r.models {
		if _, exists := remote[id]; !exists {
			toRemove = append(toRemove, id)
		}
	}
	sort.Strings(toRemove)
	return toRemove
}

func (r *ModelRegistry) modelPath(id string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if entry, ok := r.models[id]; ok && entry.File != nil {
		return entry.File.Path
	}
	return ""
}
