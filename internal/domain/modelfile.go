package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// ModelFile is an IlisMeta document held by the model registry.
type ModelFile struct {
	ID         string    // Derived from the file name
	Name       string    // Name of the compiled (last) model
	Path       string    // Local file path
	Size       int64     // File size in bytes
	Models     []string  // All models in the document
	Topics     []string  // Qualified topic names
	ClassCount int       // Number of classes, structures and associations
	EnumCount  int       // Number of enumeration types
	LoadedAt   time.Time // When the file was parsed
}

// ModelFileStatus represents the status of a model file.
type ModelFileStatus string

// Model file statuses.
const (
	StatusLoading   ModelFileStatus = "loading"
	StatusReady     ModelFileStatus = "ready"
	StatusError     ModelFileStatus = "error"
	StatusUnloading ModelFileStatus = "unloading"
)

// NewModelFile summarizes a parsed graph.
func NewModelFile(id, path string, size int64, graph *ModelGraph) *ModelFile {
	mf := &ModelFile{
		ID:         id,
		Path:       path,
		Size:       size,
		Models:     graph.ModelNames(),
		ClassCount: len(graph.Classes),
		EnumCount:  len(graph.Enums),
		LoadedAt:   time.Now(),
	}
	if last := graph.LastModel(); last != nil {
		mf.Name = last.Name
	}
	for _, m := range graph.Models {
		for _, t := range m.Topics {
			if t.Name != "" {
				mf.Topics = append(mf.Topics, t.QualifiedName())
			}
		}
	}
	return mf
}

// ModelFileExtensions lists the file extensions of IlisMeta documents.
var ModelFileExtensions = []string{".imd"}

// IsModelFile checks if the path is an IlisMeta document.
func IsModelFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range ModelFileExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// DeriveModelID extracts a model file ID from a file path or object key.
func DeriveModelID(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return base[:len(base)-len(ext)]
}
