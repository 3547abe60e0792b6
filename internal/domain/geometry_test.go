package domain

import "testing"

func TestGeometryTypeWKBToken(t *testing.T) {
	tests := []struct {
		geom GeometryType
		want string
	}{
		{GeometryPoint, "wkbPoint"},
		{GeometryMultiLineString, "wkbMultiLineString"},
		{GeometryPolygon, "wkbPolygon"},
		{GeometryNone, "wkbNone"},
		{"", "wkbNone"},
		{GeometryUnknown, "wkbUnknown"},
		{GeometryLineString.To3D(), "wkbLineString25D"},
	}

	for _, tt := range tests {
		t.Run(string(tt.geom), func(t *testing.T) {
			if got := tt.geom.WKBToken(); got != tt.want {
				t.Errorf("WKBToken() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGeometryType3D(t *testing.T) {
	g := GeometryPolygon.To3D()
	if g != "3D Polygon" {
		t.Errorf("To3D() = %q, want %q", g, "3D Polygon")
	}
	if !g.Is3D() {
		t.Error("Is3D() should be true")
	}
	if g.Flat() != GeometryPolygon {
		t.Errorf("Flat() = %q, want %q", g.Flat(), GeometryPolygon)
	}
	if GeometryNone.To3D() != GeometryNone {
		t.Error("None has no 3D variant")
	}
}

func TestParseGeometryType(t *testing.T) {
	tests := []struct {
		name string
		want GeometryType
	}{
		{"POINT", GeometryPoint},
		{"multipolygon", GeometryMultiPolygon},
		{"LINESTRINGZ", "3D LineString"},
		{"POINTZM", "3D Point"},
		{"POLYGONM", GeometryPolygon},
		{"GEOMETRY", GeometryUnknown},
		{"", GeometryNone},
		{"CIRCULARSTRING", GeometryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseGeometryType(tt.name); got != tt.want {
				t.Errorf("ParseGeometryType(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}
