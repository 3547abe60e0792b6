// Package source selects the source inspector for a connection string.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/sourcepole/qgis-interlis-plugin/internal/adapters/geopackage"
	"github.com/sourcepole/qgis-interlis-plugin/internal/adapters/interlis"
	"github.com/sourcepole/qgis-interlis-plugin/internal/adapters/postgis"
	"github.com/sourcepole/qgis-interlis-plugin/internal/adapters/shapefile"
	"github.com/sourcepole/qgis-interlis-plugin/internal/domain"
	"github.com/sourcepole/qgis-interlis-plugin/internal/ports/output"
)

// Dispatcher implements the SourceInspector port by delegating to the
// inspector for the kind of dataset.
type Dispatcher struct {
	postgres   output.SourceInspector
	shapefile  output.SourceInspector
	geopackage output.SourceInspector
	interlis   output.SourceInspector

	roots []string // Allowed file roots, any path when empty
	hosts []string // Allowed database hosts, any host when empty
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithAllowedRoots restricts file sources and model files to the given
// directories.
func WithAllowedRoots(roots ...string) Option {
	return func(d *Dispatcher) {
		for _, root := range roots {
			if root == "" {
				continue
			}
			d.roots = append(d.roots, resolvePath(root))
		}
	}
}

// WithAllowedHosts restricts PostgreSQL sources to the given hosts.
func WithAllowedHosts(hosts ...string) Option {
	return func(d *Dispatcher) {
		for _, host := range hosts {
			if host != "" {
				d.hosts = append(d.hosts, strings.ToLower(host))
			}
		}
	}
}

// NewDispatcher creates a dispatcher with the built-in inspectors.
func NewDispatcher(logger *slog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		postgres:   postgis.NewInspector(logger),
		shapefile:  shapefile.NewInspector(),
		geopackage: geopackage.NewInspector(),
		interlis:   interlis.NewInspector(logger),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Inspect implements output.SourceInspector.
func (d *Dispatcher) Inspect(ctx context.Context, ds domain.SourceDescriptor) (*domain.SourceDataset, error) {
	if err := d.allowed(ds); err != nil {
		return nil, err
	}
	inspector, err := d.inspectorFor(ds)
	if err != nil {
		return nil, &domain.ConfigGenerationError{Source: ds.Path, Reason: "unknown source format", Err: err}
	}
	return inspector.Inspect(ctx, ds)
}

func (d *Dispatcher) inspectorFor(ds domain.SourceDescriptor) (output.SourceInspector, error) {
	switch {
	case ds.IsPostgres():
		return d.postgres, nil
	case ds.IsInterlis():
		return d.interlis, nil
	}
	switch ds.Ext() {
	case ".shp":
		return d.shapefile, nil
	case ".gpkg":
		return d.geopackage, nil
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedSource, ds.Path)
}

// allowed rejects sources outside the configured roots and hosts before
// any file is opened or connection made.
func (d *Dispatcher) allowed(ds domain.SourceDescriptor) error {
	if ds.IsPostgres() {
		if len(d.hosts) == 0 {
			return nil
		}
		dsn, err := postgis.ParseDSN(ds.Path)
		if err != nil {
			return err
		}
		for _, host := range dsn.Hosts() {
			if !slices.Contains(d.hosts, strings.ToLower(host)) {
				return fmt.Errorf("%w: database host %q is not allowed", domain.ErrInvalidInput, host)
			}
		}
		return nil
	}
	if len(d.roots) == 0 {
		return nil
	}
	for _, path := range []string{ds.Path, ds.Model} {
		if path != "" && !d.underRoot(resolvePath(path)) {
			return fmt.Errorf("%w: source %q is outside the allowed directories", domain.ErrInvalidInput, path)
		}
	}
	return nil
}

func (d *Dispatcher) underRoot(path string) bool {
	for _, root := range d.roots {
		rel, err := filepath.Rel(root, path)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// resolvePath returns the absolute path with symlinks resolved where the
// path exists.
func resolvePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}
