// Package output defines the driven ports: model storage, source
// inspection, external tools and metrics.
package output

import (
	"context"
	"io"
	"time"
)

// ObjectStorage is a repository of IlisMeta model files. Keys are slash
// separated and relative to the repository root.
type ObjectStorage interface {
	// List returns the .imd files of the repository.
	List(ctx context.Context) ([]StorageObject, error)

	// Download copies the file at key to dest, replacing dest atomically.
	Download(ctx context.Context, key string, dest string) error

	// GetReader opens the file at key. The caller closes the reader.
	GetReader(ctx context.Context, key string) (io.ReadCloser, error)

	Exists(ctx context.Context, key string) (bool, error)
}

// StorageObject describes one model file in a repository.
type StorageObject struct {
	Key     string
	Size    int64
	ModTime time.Time // zero when the backend does not report it
	ETag    string    // empty for local and HTTP repositories
}

// StorageType selects the repository backend.
type StorageType string

// Repository backends.
const (
	StorageTypeLocal StorageType = "local"
	StorageTypeS3    StorageType = "s3"
	StorageTypeAzure StorageType = "azure"
	StorageTypeHTTP  StorageType = "http"
)
