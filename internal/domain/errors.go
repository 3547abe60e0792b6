package domain

import (
	"errors"
	"fmt"
)

// Base error types (sentinel errors).
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnsupported  = errors.New("unsupported operation")
	ErrInternal     = errors.New("internal error")
	ErrUnavailable  = errors.New("service unavailable")
)

// Specific errors.
var (
	ErrModelNotFound      = fmt.Errorf("model: %w", ErrNotFound)
	ErrLayerNotFound      = fmt.Errorf("layer: %w", ErrNotFound)
	ErrModelParse         = fmt.Errorf("model parse: %w", ErrInvalidInput)
	ErrEmptyModel         = fmt.Errorf("empty model: %w", ErrInvalidInput)
	ErrConfigGeneration   = fmt.Errorf("config generation: %w", ErrUnavailable)
	ErrConfigLoad         = fmt.Errorf("config load: %w", ErrInvalidInput)
	ErrNameCollision      = fmt.Errorf("name collision: %w", ErrInvalidInput)
	ErrUnsupportedSource  = fmt.Errorf("source format: %w", ErrUnsupported)
	ErrNotReady           = fmt.Errorf("service not ready: %w", ErrUnavailable)
	ErrStorageUnavailable = fmt.Errorf("storage: %w", ErrUnavailable)
	ErrToolFailed         = fmt.Errorf("external tool: %w", ErrInternal)
)

// ModelParseError is returned when an IlisMeta document is malformed or
// references a definition that cannot be resolved.
type ModelParseError struct {
	Source string // File path or "<inline>"
	Reason string // What went wrong
	Err    error  // Underlying error, if any
}

// Error implements the error interface.
func (e *ModelParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parsing model %s: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("parsing model %s: %s", e.Source, e.Reason)
}

// Unwrap returns the underlying error.
func (e *ModelParseError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrModelParse, e.Err}
	}
	return []error{ErrModelParse}
}

// EmptyModelError is returned when a model graph has no classes to transfer.
type EmptyModelError struct {
	Source string
}

// Error implements the error interface.
func (e *EmptyModelError) Error() string {
	return fmt.Sprintf("model %s contains no classes", e.Source)
}

// Unwrap returns the underlying error type.
func (e *EmptyModelError) Unwrap() error {
	return ErrEmptyModel
}

// ConfigGenerationError is returned when a source dataset cannot be opened
// or inspected.
type ConfigGenerationError struct {
	Source string // Connection descriptor
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *ConfigGenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generating config for %s: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("generating config for %s: %s", e.Source, e.Reason)
}

// Unwrap returns the underlying errors.
func (e *ConfigGenerationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrConfigGeneration, e.Err}
	}
	return []error{ErrConfigGeneration}
}

// ConfigLoadError is returned when a supplied mapping document is not valid.
type ConfigLoadError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *ConfigLoadError) Error() string {
	return fmt.Sprintf("loading config %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying errors.
func (e *ConfigLoadError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrConfigLoad, e.Err}
	}
	return []error{ErrConfigLoad}
}

// NameCollisionError is returned in strict mode when two destination names
// are identical after laundering.
type NameCollisionError struct {
	Name string // Colliding destination name
	Kind string // "layer" or "field"
}

// Error implements the error interface.
func (e *NameCollisionError) Error() string {
	return fmt.Sprintf("duplicate %s name %q", e.Kind, e.Name)
}

// Unwrap returns the underlying error type.
func (e *NameCollisionError) Unwrap() error {
	return ErrNameCollision
}

// ValidationError represents a detailed validation error.
type ValidationError struct {
	Field      string      // Field that failed validation
	Value      interface{} // The invalid value
	Constraint string      // The constraint that was violated
	Message    string      // Human-readable message
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s (value: %v, constraint: %s)",
		e.Field, e.Message, e.Value, e.Constraint)
}

// Unwrap returns the underlying error type.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// StorageError represents an error during storage operations.
type StorageError struct {
	Operation string // Operation that failed (download, list, etc.)
	Key       string // Object key
	Err       error  // Underlying error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage error during %s for %s: %v",
			e.Operation, e.Key, e.Err)
	}
	return fmt.Sprintf("storage error during %s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// ToolError represents a failed run of an external command-line tool.
type ToolError struct {
	Tool     string // ili2c, ili2pg, ili2gpkg
	ExitCode int
	Err      error
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	return fmt.Sprintf("%s failed (exit code %d): %v", e.Tool, e.ExitCode, e.Err)
}

// Unwrap returns the underlying errors.
func (e *ToolError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrToolFailed, e.Err}
	}
	return []error{ErrToolFailed}
}
