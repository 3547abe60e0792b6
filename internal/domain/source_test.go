package domain

import "testing"

func TestParseSourceDescriptor(t *testing.T) {
	tests := []struct {
		name      string
		ds        string
		wantPath  string
		wantModel string
		wantPG    bool
	}{
		{"plain path", "tests/data/osm/railway.shp", "tests/data/osm/railway.shp", "", false},
		{"path and model", "./roads23.xtf,./RoadsExdm2ien.imd", "./roads23.xtf", "./RoadsExdm2ien.imd", false},
		{"spaces around comma", "roads.xtf , Roads.imd", "roads.xtf", "Roads.imd", false},
		{
			"postgres",
			"PG:dbname='gis' host=localhost port=5432 user='u' password='p,q'",
			"PG:dbname='gis' host=localhost port=5432 user='u' password='p,q'",
			"",
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseSourceDescriptor(tt.ds)
			if got.Path != tt.wantPath {
				t.Errorf("Path = %q, want %q", got.Path, tt.wantPath)
			}
			if got.Model != tt.wantModel {
				t.Errorf("Model = %q, want %q", got.Model, tt.wantModel)
			}
			if got.IsPostgres() != tt.wantPG {
				t.Errorf("IsPostgres() = %v, want %v", got.IsPostgres(), tt.wantPG)
			}
			if got.Raw != tt.ds {
				t.Errorf("Raw = %q, want %q", got.Raw, tt.ds)
			}
		})
	}
}

func TestSourceDescriptorWithModel(t *testing.T) {
	desc := ParseSourceDescriptor("roads.xtf,embedded.imd")

	if got := desc.WithModel("").Model; got != "embedded.imd" {
		t.Errorf("WithModel(\"\").Model = %q, want %q", got, "embedded.imd")
	}
	if got := desc.WithModel("override.imd").String(); got != "roads.xtf,override.imd" {
		t.Errorf("String() = %q, want %q", got, "roads.xtf,override.imd")
	}
	if desc.Model != "embedded.imd" {
		t.Error("WithModel should not modify the receiver")
	}
}

func TestSourceDescriptorInterlisFormat(t *testing.T) {
	tests := []struct {
		ds         string
		wantILI    bool
		wantFormat string
	}{
		{"roads.xtf", true, FormatInterlis2},
		{"roads.XTF", true, FormatInterlis2},
		{"roads.xml", true, FormatInterlis2},
		{"av.itf", true, FormatInterlis1},
		{"railway.shp", false, FormatInterlis2},
	}

	for _, tt := range tests {
		t.Run(tt.ds, func(t *testing.T) {
			desc := ParseSourceDescriptor(tt.ds)
			if desc.IsInterlis() != tt.wantILI {
				t.Errorf("IsInterlis() = %v, want %v", desc.IsInterlis(), tt.wantILI)
			}
			if desc.InterlisFormat() != tt.wantFormat {
				t.Errorf("InterlisFormat() = %q, want %q", desc.InterlisFormat(), tt.wantFormat)
			}
		})
	}
}

func TestSourceLayerEffectiveGeometryType(t *testing.T) {
	tests := []struct {
		name  string
		layer SourceLayer
		want  GeometryType
	}{
		{"layer geometry", SourceLayer{GeometryType: GeometryLineString}, GeometryLineString},
		{
			"first geometry field",
			SourceLayer{GeomFields: []SourceGeomField{{Name: "Punkt", Type: GeometryPoint}, {Name: "Flaeche", Type: GeometryPolygon}}},
			GeometryPoint,
		},
		{"no geometry", SourceLayer{}, GeometryNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.layer.EffectiveGeometryType(); got != tt.want {
				t.Errorf("EffectiveGeometryType() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSourceDatasetLayer(t *testing.T) {
	ds := &SourceDataset{Layers: []SourceLayer{{Name: "railway"}, {Name: "roads"}}}

	if l, ok := ds.Layer("roads"); !ok || l.Name != "roads" {
		t.Errorf("Layer(roads) = %v, %v", l, ok)
	}
	if _, ok := ds.Layer("rivers"); ok {
		t.Error("Layer(rivers) should not be found")
	}
}
