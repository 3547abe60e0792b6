package shapefile

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sourcepole/qgis-interlis-plugin/internal/domain"
)

func writeRailway(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "railway.shp")
	w, err := shp.Create(path, shp.POLYLINE)
	require.NoError(t, err)

	require.NoError(t, w.SetFields([]shp.Field{
		shp.StringField("type", 255),
		shp.NumberField("osm_id", 11),
		shp.DateField("lastchange"),
		shp.StringField("name", 255),
		shp.StringField("keyvalue", 80),
	}))

	line := shp.NewPolyLine([][]shp.Point{{{X: 2600000, Y: 1200000}, {X: 2600100, Y: 1200050}}})
	row := w.Write(line)
	require.NoError(t, w.WriteAttribute(int(row), 0, "rail"))
	require.NoError(t, w.WriteAttribute(int(row), 1, 4711))
	require.NoError(t, w.WriteAttribute(int(row), 2, "20240131"))
	require.NoError(t, w.WriteAttribute(int(row), 3, "Gotthard"))
	require.NoError(t, w.WriteAttribute(int(row), 4, "railway=rail"))
	w.Close()
	return path
}

func TestInspect_Railway(t *testing.T) {
	path := writeRailway(t, t.TempDir())

	ds, err := NewInspector().Inspect(context.Background(), domain.ParseSourceDescriptor(path))
	require.NoError(t, err)

	assert.Equal(t, domain.FormatShapefile, ds.Format)
	assert.Nil(t, ds.Model)
	require.Len(t, ds.Layers, 1)

	layer := ds.Layers[0]
	assert.Equal(t, "railway", layer.Name)
	assert.Equal(t, domain.GeometryLineString, layer.GeometryType)
	assert.Empty(t, layer.GeomFields)
	assert.Equal(t, []domain.SourceField{
		{Name: "type", Type: domain.FieldString, Width: 255},
		{Name: "osm_id", Type: domain.FieldInteger64, Width: 11},
		{Name: "lastchange", Type: domain.FieldDate, Width: 10},
		{Name: "name", Type: domain.FieldString, Width: 255},
		{Name: "keyvalue", Type: domain.FieldString, Width: 80},
	}, layer.Fields)
}

func TestInspect_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(dir, "missing.shp")},
		{"wrong extension", filepath.Join(dir, "railway.gpkg")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewInspector().Inspect(context.Background(), domain.ParseSourceDescriptor(tt.path))
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrConfigGeneration)
		})
	}
}

func TestSourceField(t *testing.T) {
	tests := []struct {
		name  string
		field shp.Field
		want  domain.SourceField
	}{
		{"short number", shp.NumberField("n", 9), domain.SourceField{Name: "n", Type: domain.FieldInteger, Width: 9}},
		{"long number", shp.NumberField("n", 18), domain.SourceField{Name: "n", Type: domain.FieldInteger64, Width: 18}},
		{"huge number", shp.NumberField("n", 20), domain.SourceField{Name: "n", Type: domain.FieldReal, Width: 20}},
		{"float", shp.FloatField("f", 12, 3), domain.SourceField{Name: "f", Type: domain.FieldReal, Width: 12}},
		{"date", shp.DateField("d"), domain.SourceField{Name: "d", Type: domain.FieldDate, Width: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sourceField(tt.field)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := sourceField(shp.Field{Fieldtype: 'M'})
	assert.ErrorIs(t, err, domain.ErrUnsupported)
}

func TestGeometryType(t *testing.T) {
	assert.Equal(t, domain.GeometryNone, geometryType(shp.NULL))
	assert.Equal(t, domain.GeometryPolygon, geometryType(shp.POLYGONM))
	assert.Equal(t, domain.GeometryType("3D Point"), geometryType(shp.POINTZ))
	assert.Equal(t, domain.GeometryUnknown, geometryType(shp.MULTIPATCH))
}
