package interlis

import (
	"context"
	"os"
	"path/filepath"

	"github.com/sourcepole/qgis-interlis-plugin/internal/domain"
	"github.com/sourcepole/qgis-interlis-plugin/internal/ilismeta"
)

// ModelReader implements the ModelReader port with the IlisMeta parser.
type ModelReader struct{}

// NewModelReader creates a new model reader.
func NewModelReader() *ModelReader {
	return &ModelReader{}
}

// ReadModel parses the IlisMeta document at path. Models it imports but
// does not contain are read from the other .imd files of its directory.
func (r *ModelReader) ReadModel(ctx context.Context, path string) (*domain.ModelGraph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	companions, err := ilismeta.Companions(path, siblingModelFiles(path))
	if err != nil {
		return nil, err
	}
	return ilismeta.ParseFiles(append([]string{path}, companions...)...)
}

func siblingModelFiles(path string) []string {
	dir := filepath.Dir(path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && domain.IsModelFile(e.Name()) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files
}
