package domain

import (
	"errors"
	"testing"
)

func TestValidationError(t *testing.T) {
	err := &ValidationError{
		Field:      "dst_format",
		Value:      "",
		Constraint: "non-empty",
		Message:    "destination format is required",
	}

	// Test Error() output
	got := err.Error()
	if got == "" {
		t.Error("Error() should not return empty string")
	}

	// Test Unwrap()
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("ValidationError should unwrap to ErrInvalidInput")
	}
}

func TestModelParseError(t *testing.T) {
	tests := []struct {
		name string
		err  *ModelParseError
	}{
		{
			name: "with cause",
			err: &ModelParseError{
				Source: "Roads.imd",
				Reason: "invalid XML",
				Err:    errors.New("unexpected EOF"),
			},
		},
		{
			name: "without cause",
			err: &ModelParseError{
				Source: "Roads.imd",
				Reason: "unresolved base class Roads.Topic.Base",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() == "" {
				t.Error("Error() should not return empty string")
			}
			if !errors.Is(tt.err, ErrModelParse) {
				t.Error("ModelParseError should unwrap to ErrModelParse")
			}
			if !errors.Is(tt.err, ErrInvalidInput) {
				t.Error("ModelParseError should unwrap to ErrInvalidInput")
			}
			if tt.err.Err != nil && !errors.Is(tt.err, tt.err.Err) {
				t.Error("Unwrap should return the underlying error")
			}
		})
	}
}

func TestEmptyModelError(t *testing.T) {
	err := &EmptyModelError{Source: "Empty.imd"}

	if err.Error() == "" {
		t.Error("Error() should not return empty string")
	}
	if !errors.Is(err, ErrEmptyModel) {
		t.Error("EmptyModelError should unwrap to ErrEmptyModel")
	}
}

func TestConfigGenerationError(t *testing.T) {
	cause := errors.New("no such file")
	err := &ConfigGenerationError{
		Source: "missing.shp",
		Reason: "cannot open source",
		Err:    cause,
	}

	if err.Error() == "" {
		t.Error("Error() should not return empty string")
	}
	if !errors.Is(err, ErrConfigGeneration) {
		t.Error("ConfigGenerationError should unwrap to ErrConfigGeneration")
	}
	if !errors.Is(err, cause) {
		t.Error("Unwrap should return the underlying error")
	}

	var target *ConfigGenerationError
	wrapped := errors.Join(errors.New("outer"), err)
	if !errors.As(wrapped, &target) {
		t.Error("errors.As should find ConfigGenerationError")
	}
}

func TestConfigLoadError(t *testing.T) {
	tests := []struct {
		name string
		err  *ConfigLoadError
	}{
		{"with cause", &ConfigLoadError{Path: "roads.cfg", Err: errors.New("invalid character")}},
		{"without cause", &ConfigLoadError{Path: "roads.cfg"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() == "" {
				t.Error("Error() should not return empty string")
			}
			if !errors.Is(tt.err, ErrConfigLoad) {
				t.Error("ConfigLoadError should unwrap to ErrConfigLoad")
			}
		})
	}
}

func TestNameCollisionError(t *testing.T) {
	err := &NameCollisionError{Name: "roads_streetaxis", Kind: "layer"}

	if err.Error() == "" {
		t.Error("Error() should not return empty string")
	}
	if !errors.Is(err, ErrNameCollision) {
		t.Error("NameCollisionError should unwrap to ErrNameCollision")
	}
}

func TestStorageError(t *testing.T) {
	tests := []struct {
		name string
		err  *StorageError
	}{
		{
			name: "with key",
			err: &StorageError{
				Operation: "download",
				Key:       "RoadsExdm2ien.imd",
				Err:       errors.New("network error"),
			},
		},
		{
			name: "without key",
			err: &StorageError{
				Operation: "list",
				Err:       errors.New("access denied"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Error()
			if got == "" {
				t.Error("Error() should not return empty string")
			}

			// Test Unwrap
			if !errors.Is(tt.err, tt.err.Err) {
				t.Error("Unwrap should return the underlying error")
			}
		})
	}
}

func TestToolError(t *testing.T) {
	cause := errors.New("exit status 1")
	err := &ToolError{Tool: "ili2pg", ExitCode: 1, Err: cause}

	if err.Error() == "" {
		t.Error("Error() should not return empty string")
	}
	if !errors.Is(err, ErrToolFailed) {
		t.Error("ToolError should unwrap to ErrToolFailed")
	}
	if !errors.Is(err, cause) {
		t.Error("Unwrap should return the underlying error")
	}
}
