package storage

import (
	"context"
	"io"
	"time"

	"github.com/sourcepole/qgis-interlis-plugin/internal/ports/output"
)

// Instrumented records operation counts and durations of a repository.
type Instrumented struct {
	output.ObjectStorage
	metrics output.MetricsCollector
}

// Instrument wraps storage with metrics.
func Instrument(storage output.ObjectStorage, metrics output.MetricsCollector) *Instrumented {
	return &Instrumented{ObjectStorage: storage, metrics: metrics}
}

// List implements output.ObjectStorage.
func (s *Instrumented) List(ctx context.Context) (objects []output.StorageObject, err error) {
	defer s.observe("list", time.Now(), &err)
	return s.ObjectStorage.List(ctx)
}

// Download implements output.ObjectStorage.
func (s *Instrumented) Download(ctx context.Context, key, dest string) (err error) {
	defer s.observe("download", time.Now(), &err)
	return s.ObjectStorage.Download(ctx, key, dest)
}

// GetReader implements output.ObjectStorage.
func (s *Instrumented) GetReader(ctx context.Context, key string) (r io.ReadCloser, err error) {
	defer s.observe("get", time.Now(), &err)
	return s.ObjectStorage.GetReader(ctx, key)
}

func (s *Instrumented) observe(op string, start time.Time, err *error) {
	s.metrics.IncStorageOperations(op, *err == nil)
	s.metrics.ObserveStorageDuration(op, time.Since(start))
}
