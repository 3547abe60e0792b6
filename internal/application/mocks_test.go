package application

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/sourcepole/qgis-interlis-plugin/internal/domain"
	"github.com/sourcepole/qgis-interlis-plugin/internal/ilismeta"
	"github.com/sourcepole/qgis-interlis-plugin/internal/ports/output"
)

const testdataDir = "../ilismeta/testdata"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockReader implements output.ModelReader by parsing the file unless an
// error is configured for its path.
type mockReader struct {
	errs map[string]error
}

func (m *mockReader) ReadModel(_ context.Context, path string) (*domain.ModelGraph, error) {
	if err, ok := m.errs[path]; ok {
		return nil, err
	}
	return ilismeta.ParseFile(path)
}

// mockStorage implements output.ObjectStorage for testing.
type mockStorage struct {
	objects     []output.StorageObject
	downloadErr error
	listErr     error
}

func (m *mockStorage) List(_ context.Context) ([]output.StorageObject, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.objects, nil
}

func (m *mockStorage) Download(_ context.Context, _, _ string) error {
	return m.downloadErr
}

func (m *mockStorage) GetReader(_ context.Context, _ string) (io.ReadCloser, error) {
	return nil, nil
}

func (m *mockStorage) Exists(_ context.Context, _ string) (bool, error) {
	return true, nil
}

// mockMetrics records generation counts.
type mockMetrics struct {
	output.NoOpMetrics
	mu          sync.Mutex
	generations map[string]int
	failures    map[string]int
	loaded      int
	ready       int
}

func newMockMetrics() *mockMetrics {
	return &mockMetrics{generations: map[string]int{}, failures: map[string]int{}}
}

func (m *mockMetrics) IncGenerationCount(kind string, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if success {
		m.generations[kind]++
	} else {
		m.failures[kind]++
	}
}

func (m *mockMetrics) ObserveGenerationDuration(_ string, _ time.Duration) {}

func (m *mockMetrics) SetModelsLoaded(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaded = count
}

func (m *mockMetrics) SetModelsReady(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready = count
}

// mockRunner implements output.ToolRunner.
type mockRunner struct {
	tool string
	args []string
	err  error
	run  func(args []string)
}

func (m *mockRunner) Run(_ context.Context, tool string, args []string) error {
	m.tool = tool
	m.args = args
	if m.run != nil {
		m.run(args)
	}
	return m.err
}

func newTestRegistry() *ModelRegistry {
	return NewModelRegistry(&mockReader{}, &mockStorage{}, &output.NoOpMetrics{}, discardLogger(), testdataDir)
}
