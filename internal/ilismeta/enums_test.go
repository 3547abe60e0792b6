package ilismeta

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sourcepole/qgis-interlis-plugin/internal/domain"
)

func values(names ...string) []domain.EnumValue {
	out := make([]domain.EnumValue, len(names))
	for i, n := range names {
		out[i] = domain.EnumValue{ID: i, Enum: n, EnumTxt: n}
	}
	return out
}

func TestExtractEnums(t *testing.T) {
	g, err := ParseFile("testdata/Beispiel.imd")
	require.NoError(t, err)

	tables := ExtractEnums(g)

	var keys []string
	for pair := tables.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	assert.Equal(t, []string{
		"Beispiel.Bodenbedeckung.Grenzpunkte.LageZuv",
		"Beispiel.Bodenbedeckung.Grenzpunkte.Punktzeichen",
		"Beispiel.Bodenbedeckung.Gebaeude.Status",
		"Beispiel.Bodenbedeckung.BoFlaechen.Art",
	}, keys)

	art, ok := tables.Get("Beispiel.Bodenbedeckung.BoFlaechen.Art")
	require.True(t, ok)
	require.Len(t, art, 6)
	assert.Equal(t, domain.EnumValue{ID: 1, Enum: "befestigt", EnumTxt: "befestigt"}, art[1])
}

func TestExtractEnums_Extended(t *testing.T) {
	base := values("prohibition", "indication", "danger", "velocity")

	g, err := ParseFile("testdata/RoadsExdm2ben.imd")
	require.NoError(t, err)
	tables := ExtractEnums(g)
	got, ok := tables.Get("RoadsExdm2ben.Roads.RoadSign.Type")
	require.True(t, ok)
	assert.Equal(t, base, got)

	g, err = ParseFile("testdata/RoadsExdm2ien.imd")
	require.NoError(t, err)
	tables = ExtractEnums(g)

	got, ok = tables.Get("RoadsExdm2ben.Roads.RoadSign.Type")
	require.True(t, ok, "base attribute keeps its own key")
	assert.Equal(t, base, got)

	got, ok = tables.Get("RoadsExdm2ien.RoadsExtended.RoadSign.Type")
	require.True(t, ok)
	assert.Equal(t, values(
		"prohibition", "indication", "danger", "velocity",
		"prohibition.noentry", "prohibition.noparking", "prohibition.other",
	), got)

	precision, ok := tables.Get("RoadsExdm2ien.RoadsExtended.StreetAxis.Precision")
	require.True(t, ok)
	assert.Equal(t, values("precise", "unprecise"), precision)
}

func TestFlattenEnum_DerivedOnlyNodes(t *testing.T) {
	base := &domain.EnumDef{Values: []*domain.EnumNode{{Name: "a"}, {Name: "b"}}}
	ext := &domain.EnumDef{Base: base, Values: []*domain.EnumNode{
		{Name: "b", Children: []*domain.EnumNode{{Name: "x", Children: []*domain.EnumNode{{Name: "deep"}}}, {Name: "y"}}},
	}}

	assert.Equal(t, values("a", "b", "b.x", "b.y", "b.x.deep"), flattenEnum(ext))
}

func TestExtractEnumsAsGML(t *testing.T) {
	g, err := ParseFile("testdata/Beispiel.imd")
	require.NoError(t, err)

	gml, err := ExtractEnumsAsGML(g)
	require.NoError(t, err)

	assert.Contains(t, gml, `<ogr:FeatureCollection xmlns:ogr="http://ogr.maptools.org/" xmlns:gml="http://www.opengis.net/gml">`)
	assert.Contains(t, gml, "gml:featureMember><gml:featureMember><enum3_Art><id>1</id><enum>befestigt</enum><enumtxt>befestigt</enumtxt></enum3_Art>")
	assert.Contains(t, gml, "<enum0_LageZuv><id>0</id><enum>genau</enum>")
}
