// Package interlis derives the layer schema of INTERLIS transfer files from
// their IlisMeta model.
package interlis

import (
	"context"
	"log/slog"
	"os"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/sourcepole/qgis-interlis-plugin/internal/domain"
	"github.com/sourcepole/qgis-interlis-plugin/internal/formats"
)

// TIDField is the transfer identifier field of class layers.
const TIDField = "TID"

// Inspector implements the SourceInspector port for .xtf/.itf transfers.
type Inspector struct {
	registry *formats.Registry
	logger   *slog.Logger
}

// NewInspector creates a new INTERLIS inspector.
func NewInspector(logger *slog.Logger) *Inspector {
	return &Inspector{
		registry: formats.NewRegistry(),
		logger:   logger,
	}
}

// Inspect returns one layer per non-abstract class, structure and
// stand-alone association of the model of ds.
func (i *Inspector) Inspect(ctx context.Context, ds domain.SourceDescriptor) (*domain.SourceDataset, error) {
	if _, err := os.Stat(ds.Path); err != nil {
		return nil, &domain.ConfigGenerationError{Source: ds.Path, Reason: "cannot open transfer file", Err: err}
	}

	format := ds.InterlisFormat()
	modelPath, err := i.registry.Get(format).DetectModel(ds)
	if err != nil {
		return nil, &domain.ConfigGenerationError{Source: ds.String(), Reason: "cannot determine model", Err: err}
	}

	i.logger.Debug("reading model", "transfer", ds.Path, "model", modelPath)
	g, err := NewModelReader().ReadModel(ctx, modelPath)
	if err != nil {
		return nil, &domain.ConfigGenerationError{Source: ds.String(), Reason: "cannot read model", Err: err}
	}

	return &domain.SourceDataset{
		Format: format,
		Layers: Layers(g),
		Model:  g,
	}, nil
}

// Layers flattens a model graph into source layers in class declaration
// order. Associations with a role of maximum cardinality one are embedded
// as a field of the class on the opposite end and yield no layer.
func Layers(g *domain.ModelGraph) []domain.SourceLayer {
	embedded := embeddedRoles(g)

	var layers []domain.SourceLayer
	for _, c := range g.Classes {
		if c.Abstract {
			continue
		}
		if c.IsAssociation() && isEmbedded(c) {
			continue
		}
		layers = append(layers, classLayer(c, embedded))
	}
	return layers
}

type column struct {
	field *domain.SourceField
	geom  *domain.SourceGeomField
}

func classLayer(c *domain.ClassDef, embedded map[*domain.ClassDef][]*domain.RoleDef) domain.SourceLayer {
	columns := orderedmap.New[string, column]()
	if c.Kind == domain.KindClass {
		columns.Set(TIDField, column{field: &domain.SourceField{Name: TIDField, Type: domain.FieldString}})
	}

	for _, cls := range c.Chain() {
		if cls.IsAssociation() {
			for _, r := range cls.Roles {
				columns.Set(r.Name, column{field: &domain.SourceField{Name: r.Name, Type: domain.FieldString}})
			}
		}
		for pair := cls.Attributes.Oldest(); pair != nil; pair = pair.Next() {
			if col, ok := attributeColumn(pair.Value); ok {
				columns.Set(pair.Key, col)
			} else {
				columns.Delete(pair.Key)
			}
		}
		for _, r := range embedded[cls] {
			columns.Set(r.Name, column{field: &domain.SourceField{Name: r.Name, Type: domain.FieldString}})
		}
	}

	layer := domain.SourceLayer{Name: c.QualifiedName, GeometryType: domain.GeometryNone}
	for pair := columns.Oldest(); pair != nil; pair = pair.Next() {
		switch col := pair.Value; {
		case col.geom != nil:
			layer.GeomFields = append(layer.GeomFields, *col.geom)
		case col.field != nil:
			layer.Fields = append(layer.Fields, *col.field)
		}
	}
	if len(layer.GeomFields) > 0 {
		layer.GeometryColumn = layer.GeomFields[0].Name
	}
	return layer
}

func attributeColumn(a *domain.AttributeDef) (column, bool) {
	switch a.Kind {
	case domain.ValueGeometry:
		return column{geom: &domain.SourceGeomField{Name: a.Name, Type: a.Geometry}}, true
	case domain.ValueStructure:
		return column{}, false
	case domain.ValueNumeric:
		return column{field: &domain.SourceField{Name: a.Name, Type: domain.FieldReal}}, true
	case domain.ValueDate:
		return column{field: &domain.SourceField{Name: a.Name, Type: domain.FieldDate}}, true
	default:
		return column{field: &domain.SourceField{Name: a.Name, Type: domain.FieldString}}, true
	}
}

// embeddedRoles maps each class to the roles embedded into it.
func embeddedRoles(g *domain.ModelGraph) map[*domain.ClassDef][]*domain.RoleDef {
	embedded := make(map[*domain.ClassDef][]*domain.RoleDef)
	for _, c := range g.Classes {
		if !c.IsAssociation() || !isEmbedded(c) {
			continue
		}
		one, other := c.Roles[0], c.Roles[1]
		if one.Max != 1 {
			one, other = other, one
		}
		embedded[other.Target] = append(embedded[other.Target], one)
	}
	return embedded
}

// isEmbedded reports whether an association is a plain binary
// association with a role of maximum cardinality one.
func isEmbedded(c *domain.ClassDef) bool {
	if len(c.Roles) != 2 || c.Attributes.Len() > 0 {
		return false
	}
	return c.Roles[0].Max == 1 || c.Roles[1].Max == 1
}
