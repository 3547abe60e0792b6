// Package ogrconfig generates mapping documents that describe how the
// layers, fields and enumerations of a source dataset map to names of a
// destination format, and renders them as OGR VRT documents.
package ogrconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/sourcepole/qgis-interlis-plugin/internal/domain"
	"github.com/sourcepole/qgis-interlis-plugin/internal/formats"
	"github.com/sourcepole/qgis-interlis-plugin/internal/ports/output"
)

// Config holds the mapping document of one source dataset. It is not safe
// for concurrent use.
type Config struct {
	ds        domain.SourceDescriptor
	model     string
	inspector output.SourceInspector
	registry  *formats.Registry
	logger    *slog.Logger
	doc       *domain.MappingDocument
}

// Option configures a Config.
type Option func(*Config)

// WithModel overrides the model file given in the connection string.
func WithModel(path string) Option {
	return func(c *Config) {
		c.model = path
	}
}

// WithInspector sets the source inspector used by GenerateConfig.
func WithInspector(inspector output.SourceInspector) Option {
	return func(c *Config) {
		c.inspector = inspector
	}
}

// WithRegistry sets the format registry. By default every Config owns a
// fresh registry.
func WithRegistry(registry *formats.Registry) Option {
	return func(c *Config) {
		c.registry = registry
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.logger = logger
	}
}

// New creates a Config for the connection string ds, which is either
// "<path>" or "<path>,<model>".
func New(ds string, opts ...Option) *Config {
	c := &Config{
		ds:     domain.ParseSourceDescriptor(ds),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.registry == nil {
		c.registry = formats.NewRegistry()
	}
	return c
}

// Source returns the source descriptor including any model override.
func (c *Config) Source() domain.SourceDescriptor {
	return c.ds.WithModel(c.model)
}

// GenerateOptions control GenerateConfig.
type GenerateOptions struct {
	Layers      []string // Source layers to include, all when empty
	SRS         int      // EPSG code for geometry fields without a known SRS
	Outfile     string   // Also write the document to this file
	StrictNames bool     // Fail on destination name collisions
}

// GenerateConfig inspects the source and builds a new mapping document for
// dstFormat. On success the document replaces the loaded one and is
// returned as indented JSON.
func (c *Config) GenerateConfig(ctx context.Context, dstFormat string, opts GenerateOptions) (string, error) {
	c.registry.ResetSequence()
	ds := c.Source()

	if c.inspector == nil {
		return "", &domain.ConfigGenerationError{Source: ds.String(), Reason: "no source inspector configured"}
	}
	dataset, err := c.inspector.Inspect(ctx, ds)
	if err != nil {
		var genErr *domain.ConfigGenerationError
		if errors.As(err, &genErr) {
			return "", err
		}
		return "", &domain.ConfigGenerationError{Source: ds.String(), Reason: "cannot open source", Err: err}
	}

	src := c.registry.Get(dataset.Format)
	dst := c.registry.Get(dstFormat)

	doc := domain.NewMappingDocument(dataset.Format, dstFormat)
	doc.DstDSCO = dst.DefaultDSCO()
	doc.DstLCO = dst.DefaultLCO()

	if err := c.mapLayers(doc, dataset, dst, opts); err != nil {
		return "", &domain.ConfigGenerationError{Source: ds.String(), Reason: "cannot map layers", Err: err}
	}

	tables, err := src.ExtractEnums(dataset.Model)
	if err != nil {
		return "", &domain.ConfigGenerationError{Source: ds.String(), Reason: "cannot extract enumerations", Err: err}
	}
	if tables != nil && tables.Len() > 0 {
		doc.Enums = orderedmap.New[string, *domain.EnumMapping]()
		for pair := tables.Oldest(); pair != nil; pair = pair.Next() {
			name := dst.LaunderName(dst.ShortenName(pair.Key, "enum", "."))
			doc.Enums.Set(name, &domain.EnumMapping{SrcName: pair.Key, Values: pair.Value})
		}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling mapping document: %w", err)
	}
	if opts.Outfile != "" {
		if err := os.WriteFile(opts.Outfile, data, 0o644); err != nil {
			return "", fmt.Errorf("writing mapping document: %w", err)
		}
	}

	c.doc = doc
	c.logger.Debug("generated mapping document",
		"source", ds.String(),
		"dst_format", dstFormat,
		"layers", doc.Layers.Len(),
		"enums", c.enumCount(),
	)
	return string(data), nil
}

func (c *Config) mapLayers(doc *domain.MappingDocument, dataset *domain.SourceDataset, dst formats.Handler, opts GenerateOptions) error {
	wanted := make(map[string]bool, len(opts.Layers))
	for _, name := range opts.Layers {
		wanted[name] = false
	}

	for i := range dataset.Layers {
		layer := &dataset.Layers[i]
		if len(wanted) > 0 {
			if _, ok := wanted[layer.Name]; !ok {
				continue
			}
			wanted[layer.Name] = true
		}

		name := dst.LayerName(dst.LaunderName(layer.Name))
		if _, exists := doc.Layers.Get(name); exists {
			name = dst.LayerName(dst.LaunderName(dst.ShortenName(layer.Name, "n", ".")))
			if _, exists := doc.Layers.Get(name); exists {
				if opts.StrictNames {
					return &domain.NameCollisionError{Name: name, Kind: "layer"}
				}
				c.logger.Warn("skipping layer with colliding name", "layer", layer.Name, "name", name)
				continue
			}
		}

		lm, err := c.mapLayer(layer, dst, opts)
		if err != nil {
			return err
		}
		doc.Layers.Set(name, lm)
	}

	for name, found := range wanted {
		if !found {
			return fmt.Errorf("%w: %s", domain.ErrLayerNotFound, name)
		}
	}
	return nil
}

func (c *Config) mapLayer(layer *domain.SourceLayer, dst formats.Handler, opts GenerateOptions) (*domain.LayerMapping, error) {
	lm := domain.NewLayerMapping(layer.Name)

	for _, f := range layer.Fields {
		name := dst.LaunderName(f.Name)
		if _, exists := lm.Fields.Get(name); exists {
			name = dst.LaunderName(dst.ShortenName(f.Name, "n", "."))
			if _, exists := lm.Fields.Get(name); exists {
				if opts.StrictNames {
					return nil, &domain.NameCollisionError{Name: layer.Name + "." + name, Kind: "field"}
				}
				c.logger.Warn("skipping field with colliding name", "layer", layer.Name, "field", f.Name, "name", name)
				continue
			}
		}
		lm.Fields.Set(name, domain.FieldMapping{Src: f.Name, Type: f.Type, Width: f.Width})
	}

	for _, g := range layer.GeomFields {
		name := dst.LaunderName(g.Name)
		srs := g.SRS
		if srs == 0 {
			srs = opts.SRS
		}
		lm.GeomFields.Set(name, domain.GeomFieldMapping{Src: g.Name, Type: g.Type, SRS: srs})
	}

	lm.GeometryType = layer.EffectiveGeometryType()
	return lm, nil
}

// Load loads a mapping document from a file.
func (c *Config) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &domain.ConfigLoadError{Path: path, Err: err}
	}
	if err := c.loadBytes(data); err != nil {
		return &domain.ConfigLoadError{Path: path, Err: err}
	}
	return nil
}

// LoadBytes loads a mapping document from JSON.
func (c *Config) LoadBytes(data []byte) error {
	if err := c.loadBytes(data); err != nil {
		return &domain.ConfigLoadError{Path: "<inline>", Err: err}
	}
	return nil
}

func (c *Config) loadBytes(data []byte) error {
	var doc domain.MappingDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	if doc.Layers == nil {
		return errors.New("mapping document has no layers")
	}
	if doc.DstDSCO == nil {
		doc.DstDSCO = orderedmap.New[string, string]()
	}
	if doc.DstLCO == nil {
		doc.DstLCO = orderedmap.New[string, string]()
	}
	for pair := doc.Layers.Oldest(); pair != nil; pair = pair.Next() {
		lm := pair.Value
		if lm == nil || lm.SrcLayer == "" {
			return fmt.Errorf("layer %q has no src_layer", pair.Key)
		}
		if lm.Fields == nil {
			lm.Fields = orderedmap.New[string, domain.FieldMapping]()
		}
		if lm.GeomFields == nil {
			lm.GeomFields = orderedmap.New[string, domain.GeomFieldMapping]()
		}
		if lm.GeometryType == "" {
			lm.GeometryType = domain.GeometryNone
		}
	}
	c.doc = &doc
	return nil
}

// IsLoaded reports whether a document was generated or loaded.
func (c *Config) IsLoaded() bool {
	return c.doc != nil
}

// Document returns the current mapping document, nil if none.
func (c *Config) Document() *domain.MappingDocument {
	return c.doc
}

// JSON returns the current document as indented JSON.
func (c *Config) JSON() (string, error) {
	if c.doc == nil {
		return "", fmt.Errorf("%w: no mapping document", domain.ErrNotReady)
	}
	data, err := json.MarshalIndent(c.doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling mapping document: %w", err)
	}
	return string(data), nil
}

// LayerNames returns the destination layer names.
func (c *Config) LayerNames() []string {
	names := []string{}
	if c.doc == nil {
		return names
	}
	for pair := c.doc.Layers.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// EnumNames returns the destination enum table names.
func (c *Config) EnumNames() []string {
	names := []string{}
	if c.doc == nil || c.doc.Enums == nil {
		return names
	}
	for pair := c.doc.Enums.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// LayerInfos returns one entry per destination layer. GeomField is set
// only for layers with exactly one geometry field.
func (c *Config) LayerInfos() []domain.LayerInfo {
	infos := []domain.LayerInfo{}
	if c.doc == nil {
		return infos
	}
	for pair := c.doc.Layers.Oldest(); pair != nil; pair = pair.Next() {
		info := domain.LayerInfo{Name: pair.Key}
		if geoms := pair.Value.GeomFields; geoms.Len() == 1 {
			info.GeomField = geoms.Oldest().Key
		}
		infos = append(infos, info)
	}
	return infos
}

// EnumInfos returns one entry per destination enum table.
func (c *Config) EnumInfos() []domain.EnumInfo {
	infos := []domain.EnumInfo{}
	for _, name := range c.EnumNames() {
		infos = append(infos, domain.EnumInfo{Name: name})
	}
	return infos
}

func (c *Config) enumCount() int {
	if c.doc == nil || c.doc.Enums == nil {
		return 0
	}
	return c.doc.Enums.Len()
}
