package output

import "time"

// MetricsCollector defines the secondary port for metrics collection.
type MetricsCollector interface {
	// IncGenerationCount increments the generation counter for a kind
	// (config, vrt, reverse_vrt, enums, transfer).
	IncGenerationCount(kind string, success bool)

	// ObserveGenerationDuration records generation duration.
	ObserveGenerationDuration(kind string, duration time.Duration)

	// SetModelsLoaded sets the number of loaded model files.
	SetModelsLoaded(count int)

	// SetModelsReady sets the number of ready model files.
	SetModelsReady(count int)

	// IncStorageOperations increments storage operation counter.
	IncStorageOperations(operation string, success bool)

	// ObserveStorageDuration records storage operation duration.
	ObserveStorageDuration(operation string, duration time.Duration)
}

// NoOpMetrics is a no-op implementation of MetricsCollector.
type NoOpMetrics struct{}

// IncGenerationCount implements MetricsCollector.
func (n *NoOpMetrics) IncGenerationCount(_ string, _ bool) {}

// ObserveGenerationDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveGenerationDuration(_ string, _ time.Duration) {}

// SetModelsLoaded implements MetricsCollector.
func (n *NoOpMetrics) SetModelsLoaded(_ int) {}

// SetModelsReady implements MetricsCollector.
func (n *NoOpMetrics) SetModelsReady(_ int) {}

// IncStorageOperations implements MetricsCollector.
func (n *NoOpMetrics) IncStorageOperations(_ string, _ bool) {}

// ObserveStorageDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveStorageDuration(_ string, _ time.Duration) {}
