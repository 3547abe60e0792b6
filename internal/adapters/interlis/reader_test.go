package interlis

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sourcepole/qgis-interlis-plugin/internal/domain"
)

const (
	imdHeader = `<?xml version="1.0" encoding="UTF-8"?><TRANSFER xmlns="http://www.interlis.ch/INTERLIS2.3"><DATASECTION>`

	baseIMD = imdHeader + `<IlisMeta07.ModelData BID="MODEL.Base">
<IlisMeta07.ModelData.Model TID="Base"><Name>Base</Name></IlisMeta07.ModelData.Model>
<IlisMeta07.ModelData.SubModel TID="Base.Topic"><Name>Topic</Name><ElementInPackage REF="Base"/></IlisMeta07.ModelData.SubModel>
<IlisMeta07.ModelData.Class TID="Base.Topic.Parcel"><Name>Parcel</Name><ElementInPackage REF="Base.Topic"/><Kind>Class</Kind></IlisMeta07.ModelData.Class>
</IlisMeta07.ModelData></DATASECTION></TRANSFER>`

	derivedIMD = imdHeader + `<IlisMeta07.ModelData BID="MODEL.Derived">
<IlisMeta07.ModelData.Model TID="Derived"><Name>Derived</Name></IlisMeta07.ModelData.Model>
<IlisMeta07.ModelData.Import><ImportingP REF="Derived"/><ImportedP REF="Base"/></IlisMeta07.ModelData.Import>
<IlisMeta07.ModelData.SubModel TID="Derived.Topic"><Name>Topic</Name><ElementInPackage REF="Derived"/></IlisMeta07.ModelData.SubModel>
<IlisMeta07.ModelData.Class TID="Derived.Topic.Parcel"><Name>Parcel</Name><Super REF="Base.Topic.Parcel"/><ElementInPackage REF="Derived.Topic"/><Kind>Class</Kind></IlisMeta07.ModelData.Class>
</IlisMeta07.ModelData></DATASECTION></TRANSFER>`
)

func TestModelReader_ImportsFromSiblingFile(t *testing.T) {
	dir := t.TempDir()
	derived := filepath.Join(dir, "Derived.imd")
	require.NoError(t, os.WriteFile(derived, []byte(derivedIMD), 0o644))

	_, err := NewModelReader().ReadModel(context.Background(), derived)
	require.Error(t, err, "the base model is not available yet")
	assert.ErrorIs(t, err, domain.ErrModelParse)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "Base.imd"), []byte(baseIMD), 0o644))
	g, err := NewModelReader().ReadModel(context.Background(), derived)
	require.NoError(t, err)

	assert.Equal(t, derived, g.Source)
	assert.Equal(t, []string{"Base", "Derived"}, g.ModelNames())
	c, ok := g.Class("Derived.Topic.Parcel")
	require.True(t, ok)
	require.NotNil(t, c.Base)
	assert.Equal(t, "Base.Topic.Parcel", c.Base.QualifiedName)
}

func TestModelReader_SelfContained(t *testing.T) {
	g, err := NewModelReader().ReadModel(context.Background(), roadsModel)
	require.NoError(t, err)
	assert.Equal(t, []string{"RoadsExdm2ben", "RoadsExdm2ien"}, g.ModelNames())
}

func TestModelReader_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewModelReader().ReadModel(ctx, roadsModel)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInspect_ModelImportsSiblingFile(t *testing.T) {
	dir := t.TempDir()
	derived := filepath.Join(dir, "Derived.imd")
	require.NoError(t, os.WriteFile(derived, []byte(derivedIMD), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Base.imd"), []byte(baseIMD), 0o644))
	xtf := writeTransfer(t, dir, "parcels.xtf", "Derived")

	ds, err := NewInspector(testLogger()).Inspect(context.Background(), domain.ParseSourceDescriptor(xtf+","+derived))
	require.NoError(t, err)
	assert.Equal(t, []string{"Base", "Derived"}, ds.Model.ModelNames())
	_, ok := ds.Layer("Derived.Topic.Parcel")
	assert.True(t, ok)
}
