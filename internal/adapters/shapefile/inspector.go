// Package shapefile reads the schema of ESRI Shapefiles.
package shapefile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"

	"github.com/sourcepole/qgis-interlis-plugin/internal/domain"
)

// Inspector implements the SourceInspector port for .shp files.
type Inspector struct{}

// NewInspector creates a new Shapefile inspector.
func NewInspector() *Inspector {
	return &Inspector{}
}

// Inspect returns the single layer of a Shapefile, named after the file.
func (i *Inspector) Inspect(ctx context.Context, ds domain.SourceDescriptor) (*domain.SourceDataset, error) {
	if !strings.EqualFold(ds.Ext(), ".shp") {
		return nil, &domain.ConfigGenerationError{Source: ds.Path, Reason: "not a shapefile", Err: domain.ErrUnsupportedSource}
	}
	if _, err := os.Stat(ds.Path); err != nil {
		return nil, &domain.ConfigGenerationError{Source: ds.Path, Reason: "cannot open shapefile", Err: err}
	}

	r, err := shp.Open(ds.Path)
	if err != nil {
		return nil, &domain.ConfigGenerationError{Source: ds.Path, Reason: "cannot open shapefile", Err: err}
	}
	defer r.Close()

	base := filepath.Base(ds.Path)
	layer := domain.SourceLayer{
		Name:         strings.TrimSuffix(base, filepath.Ext(base)),
		GeometryType: geometryType(r.GeometryType),
	}
	for _, f := range r.Fields() {
		field, err := sourceField(f)
		if err != nil {
			return nil, &domain.ConfigGenerationError{Source: ds.Path, Reason: "unsupported field", Err: err}
		}
		layer.Fields = append(layer.Fields, field)
	}

	return &domain.SourceDataset{
		Format: domain.FormatShapefile,
		Layers: []domain.SourceLayer{layer},
	}, nil
}

// sourceField maps a DBF field descriptor to an OGR field type.
func sourceField(f shp.Field) (domain.SourceField, error) {
	field := domain.SourceField{Name: f.String(), Width: int(f.Size)}
	switch f.Fieldtype {
	case 'C':
		field.Type = domain.FieldString
	case 'N':
		switch {
		case f.Precision > 0:
			field.Type = domain.FieldReal
		case f.Size < 10:
			field.Type = domain.FieldInteger
		case f.Size <= 18:
			field.Type = domain.FieldInteger64
		default:
			field.Type = domain.FieldReal
		}
	case 'F':
		field.Type = domain.FieldReal
	case 'D':
		field.Type = domain.FieldDate
		field.Width = int(f.Size) + 2
	case 'L':
		field.Type = domain.FieldInteger
	default:
		return field, fmt.Errorf("%w: field %s has DBF type %q", domain.ErrUnsupported, field.Name, f.Fieldtype)
	}
	return field, nil
}

func geometryType(t shp.ShapeType) domain.GeometryType {
	switch t {
	case shp.NULL:
		return domain.GeometryNone
	case shp.POINT, shp.POINTM:
		return domain.GeometryPoint
	case shp.POLYLINE, shp.POLYLINEM:
		return domain.GeometryLineString
	case shp.POLYGON, shp.POLYGONM:
		return domain.GeometryPolygon
	case shp.MULTIPOINT, shp.MULTIPOINTM:
		return domain.GeometryMultiPoint
	case shp.POINTZ:
		return domain.GeometryPoint.To3D()
	case shp.POLYLINEZ:
		return domain.GeometryLineString.To3D()
	case shp.POLYGONZ:
		return domain.GeometryPolygon.To3D()
	case shp.MULTIPOINTZ:
		return domain.GeometryMultiPoint.To3D()
	default:
		return domain.GeometryUnknown
	}
}
