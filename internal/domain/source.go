package domain

import (
	"path/filepath"
	"strings"
)

// Source format names as reported by OGR drivers.
const (
	FormatShapefile  = "ESRI Shapefile"
	FormatGeoPackage = "GPKG"
	FormatPostgreSQL = "PostgreSQL"
	FormatSQLite     = "SQLite"
	FormatInterlis1  = "Interlis 1"
	FormatInterlis2  = "Interlis 2"
	FormatGeoJSON    = "GeoJSON"
)

// PGPrefix marks an OGR PostgreSQL connection string.
const PGPrefix = "PG:"

// SourceDescriptor is a parsed source connection string of the form
// "<path>" or "<path>,<model>".
type SourceDescriptor struct {
	Raw   string // The string as given
	Path  string // Dataset path or connection string
	Model string // Model file, empty if none
}

// ParseSourceDescriptor splits a connection string. PostgreSQL connection
// strings are never split.
func ParseSourceDescriptor(ds string) SourceDescriptor {
	desc := SourceDescriptor{Raw: ds, Path: strings.TrimSpace(ds)}
	if desc.IsPostgres() {
		return desc
	}
	if idx := strings.LastIndex(desc.Path, ","); idx >= 0 {
		desc.Model = strings.TrimSpace(desc.Path[idx+1:])
		desc.Path = strings.TrimSpace(desc.Path[:idx])
	}
	return desc
}

// WithModel returns a copy whose model is replaced if model is not empty.
func (d SourceDescriptor) WithModel(model string) SourceDescriptor {
	if model != "" {
		d.Model = model
	}
	return d
}

// String returns the connection string as used in VRT documents.
func (d SourceDescriptor) String() string {
	if d.Model == "" {
		return d.Path
	}
	return d.Path + "," + d.Model
}

// IsPostgres returns true for PG: connection strings.
func (d SourceDescriptor) IsPostgres() bool {
	return strings.HasPrefix(strings.TrimSpace(d.Path), PGPrefix)
}

// Ext returns the lower-case file extension of the dataset path.
func (d SourceDescriptor) Ext() string {
	return strings.ToLower(filepath.Ext(d.Path))
}

// IsInterlis returns true for INTERLIS transfer files.
func (d SourceDescriptor) IsInterlis() bool {
	switch d.Ext() {
	case ".xtf", ".itf", ".xml":
		return true
	default:
		return false
	}
}

// InterlisFormat returns the format name for an INTERLIS transfer file.
func (d SourceDescriptor) InterlisFormat() string {
	if d.Ext() == ".itf" {
		return FormatInterlis1
	}
	return FormatInterlis2
}

// SourceDataset is what a source inspector reports about a dataset.
type SourceDataset struct {
	Format string
	Layers []SourceLayer
	Model  *ModelGraph // INTERLIS sources only
}

// Layer returns a layer by name.
func (d *SourceDataset) Layer(name string) (*SourceLayer, bool) {
	for i := range d.Layers {
		if d.Layers[i].Name == name {
			return &d.Layers[i], true
		}
	}
	return nil, false
}

// SourceLayer describes one layer of a source dataset.
type SourceLayer struct {
	Name           string
	GeometryType   GeometryType // Layer geometry when there is no named geometry field
	GeometryColumn string
	Fields         []SourceField
	GeomFields     []SourceGeomField
}

// EffectiveGeometryType returns the layer geometry, falling back to the
// first geometry field.
func (l *SourceLayer) EffectiveGeometryType() GeometryType {
	if l.GeometryType != "" && l.GeometryType != GeometryNone {
		return l.GeometryType
	}
	if len(l.GeomFields) > 0 {
		return l.GeomFields[0].Type
	}
	return GeometryNone
}

// SourceField describes an attribute field.
type SourceField struct {
	Name  string
	Type  string // OGR field type name: String, Integer, Integer64, Real, Date, ...
	Width int
}

// SourceGeomField describes a named geometry field.
type SourceGeomField struct {
	Name string
	Type GeometryType
	SRS  int
}

// OGR field type names.
const (
	FieldString    = "String"
	FieldInteger   = "Integer"
	FieldInteger64 = "Integer64"
	FieldReal      = "Real"
	FieldDate      = "Date"
	FieldTime      = "Time"
	FieldDateTime  = "DateTime"
	FieldBinary    = "Binary"
)
