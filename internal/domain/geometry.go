package domain

import "strings"

// GeometryType is an OGR geometry type name as used in mapping documents,
// e.g. "Point", "MultiLineString" or "3D Polygon".
type GeometryType string

// Geometry types.
const (
	GeometryNone            GeometryType = "None"
	GeometryUnknown         GeometryType = "Unknown (any)"
	GeometryPoint           GeometryType = "Point"
	GeometryLineString      GeometryType = "LineString"
	GeometryPolygon         GeometryType = "Polygon"
	GeometryMultiPoint      GeometryType = "MultiPoint"
	GeometryMultiLineString GeometryType = "MultiLineString"
	GeometryMultiPolygon    GeometryType = "MultiPolygon"
	GeometryCollection      GeometryType = "GeometryCollection"
)

const prefix3D = "3D "

// Is3D returns true for types carrying a Z coordinate.
func (g GeometryType) Is3D() bool {
	return strings.HasPrefix(string(g), prefix3D)
}

// Flat returns the type without the 3D marker.
func (g GeometryType) Flat() GeometryType {
	return GeometryType(strings.TrimPrefix(string(g), prefix3D))
}

// To3D returns the 3D variant of the type.
func (g GeometryType) To3D() GeometryType {
	if g.Is3D() || g == GeometryNone || g == "" {
		return g
	}
	return GeometryType(prefix3D + string(g))
}

// WKBToken returns the OGR VRT token, e.g. wkbMultiLineString or
// wkbPoint25D.
func (g GeometryType) WKBToken() string {
	switch g.Flat() {
	case "", GeometryNone:
		return "wkbNone"
	case GeometryUnknown:
		return "wkbUnknown"
	}
	token := "wkb" + string(g.Flat())
	if g.Is3D() {
		token += "25D"
	}
	return token
}

// ParseGeometryType maps a geometry name as reported by GeoPackage or
// PostGIS (e.g. "MULTIPOLYGON", "POINTZ") to a GeometryType.
func ParseGeometryType(name string) GeometryType {
	upper := strings.ToUpper(strings.TrimSpace(name))
	is3D := false
	switch {
	case strings.HasSuffix(upper, "ZM"):
		upper = strings.TrimSuffix(upper, "ZM")
		is3D = true
	case strings.HasSuffix(upper, "Z"):
		upper = strings.TrimSuffix(upper, "Z")
		is3D = true
	case strings.HasSuffix(upper, "M"):
		upper = strings.TrimSuffix(upper, "M")
	}

	var g GeometryType
	switch upper {
	case "POINT":
		g = GeometryPoint
	case "LINESTRING":
		g = GeometryLineString
	case "POLYGON":
		g = GeometryPolygon
	case "MULTIPOINT":
		g = GeometryMultiPoint
	case "MULTILINESTRING":
		g = GeometryMultiLineString
	case "MULTIPOLYGON":
		g = GeometryMultiPolygon
	case "GEOMETRYCOLLECTION":
		g = GeometryCollection
	case "GEOMETRY":
		g = GeometryUnknown
	case "", "NONE":
		return GeometryNone
	default:
		return GeometryUnknown
	}

	if is3D {
		return g.To3D()
	}
	return g
}
