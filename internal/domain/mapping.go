package domain

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// MappingComment is the fixed value of the "//" key of a mapping document.
const MappingComment = "OGR transformation configuration"

// MappingDocument describes how source layers, fields and enumerations map
// to destination names. Field order of the struct is the JSON key order.
type MappingDocument struct {
	Comment   string                                        `json:"//"`
	SrcFormat string                                        `json:"src_format"`
	DstFormat string                                        `json:"dst_format"`
	DstDSCO   *orderedmap.OrderedMap[string, string]        `json:"dst_dsco"`
	DstLCO    *orderedmap.OrderedMap[string, string]        `json:"dst_lco"`
	Layers    *orderedmap.OrderedMap[string, *LayerMapping] `json:"layers"`
	Enums     *orderedmap.OrderedMap[string, *EnumMapping]  `json:"enums,omitempty"`
}

// NewMappingDocument creates an empty document.
func NewMappingDocument(srcFormat, dstFormat string) *MappingDocument {
	return &MappingDocument{
		Comment:   MappingComment,
		SrcFormat: srcFormat,
		DstFormat: dstFormat,
		DstDSCO:   orderedmap.New[string, string](),
		DstLCO:    orderedmap.New[string, string](),
		Layers:    orderedmap.New[string, *LayerMapping](),
	}
}

// LayerMapping maps one source layer to a destination layer.
type LayerMapping struct {
	SrcLayer     string                                           `json:"src_layer"`
	Fields       *orderedmap.OrderedMap[string, FieldMapping]     `json:"fields"`
	GeomFields   *orderedmap.OrderedMap[string, GeomFieldMapping] `json:"geom_fields"`
	GeometryType GeometryType                                     `json:"geometry_type"`
}

// NewLayerMapping creates a layer mapping with empty field maps.
func NewLayerMapping(srcLayer string) *LayerMapping {
	return &LayerMapping{
		SrcLayer:     srcLayer,
		Fields:       orderedmap.New[string, FieldMapping](),
		GeomFields:   orderedmap.New[string, GeomFieldMapping](),
		GeometryType: GeometryNone,
	}
}

// FieldMapping maps one attribute field.
type FieldMapping struct {
	Src   string `json:"src"`
	Type  string `json:"type"`
	Width int    `json:"width,omitempty"`
}

// GeomFieldMapping maps one geometry field.
type GeomFieldMapping struct {
	Src  string       `json:"src"`
	Type GeometryType `json:"type"`
	SRS  int          `json:"srs,omitempty"`
}

// EnumMapping maps one enumeration attribute to an enum table.
type EnumMapping struct {
	SrcName string      `json:"src_name"`
	Values  []EnumValue `json:"values"`
}

// LayerInfo summarizes a destination layer.
type LayerInfo struct {
	Name      string `json:"name"`
	GeomField string `json:"geom_field,omitempty"`
}

// EnumInfo summarizes a destination enum table.
type EnumInfo struct {
	Name string `json:"name"`
}
