package ilismeta

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/sourcepole/qgis-interlis-plugin/internal/domain"
)

const (
	ogrNamespace = "http://ogr.maptools.org/"
	gmlNamespace = "http://www.opengis.net/gml"
)

// ExtractEnums flattens every enumeration attribute of the graph. Keys are
// qualified attribute paths in class and attribute declaration order.
func ExtractEnums(g *domain.ModelGraph) *domain.EnumTables {
	tables := domain.NewEnumTables()
	for _, c := range g.Classes {
		for pair := c.Attributes.Oldest(); pair != nil; pair = pair.Next() {
			a := pair.Value
			if a.Kind != domain.ValueEnum || a.Enum == nil {
				continue
			}
			tables.Set(a.QualifiedName(), flattenEnum(a.Enum))
		}
	}
	return tables
}

// ExtractEnumsAsGML renders the enum tables as an OGR GML feature
// collection with one feature member per value.
func ExtractEnumsAsGML(g *domain.ModelGraph) (string, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("ogr:FeatureCollection")
	root.CreateAttr("xmlns:ogr", ogrNamespace)
	root.CreateAttr("xmlns:gml", gmlNamespace)

	seq := 0
	tables := ExtractEnums(g)
	for pair := tables.Oldest(); pair != nil; pair = pair.Next() {
		name := shortName(pair.Key, seq)
		seq++
		for _, v := range pair.Value {
			feature := root.CreateElement("gml:featureMember").CreateElement(name)
			feature.CreateElement("id").SetText(strconv.Itoa(v.ID))
			feature.CreateElement("enum").SetText(v.Enum)
			feature.CreateElement("enumtxt").SetText(v.EnumTxt)
		}
	}

	doc.WriteSettings.CanonicalText = true
	out, err := doc.WriteToString()
	if err != nil {
		return "", fmt.Errorf("writing enum GML: %w", err)
	}
	return out, nil
}

// flattenEnum lists the base definition first, then the paths each
// extension adds, every level breadth-first.
func flattenEnum(e *domain.EnumDef) []domain.EnumValue {
	var paths []string
	seen := make(map[string]bool)
	for _, def := range e.Chain() {
		for _, p := range enumPaths(def.Values) {
			if !seen[p] {
				seen[p] = true
				paths = append(paths, p)
			}
		}
	}

	values := make([]domain.EnumValue, len(paths))
	for i, p := range paths {
		values[i] = domain.EnumValue{ID: i, Enum: p, EnumTxt: p}
	}
	return values
}

func enumPaths(top []*domain.EnumNode) []string {
	type entry struct {
		prefix string
		node   *domain.EnumNode
	}

	queue := make([]entry, 0, len(top))
	for _, n := range top {
		queue = append(queue, entry{node: n})
	}

	var paths []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		path := cur.node.Name
		if cur.prefix != "" {
			path = cur.prefix + "." + path
		}
		paths = append(paths, path)
		for _, child := range cur.node.Children {
			queue = append(queue, entry{prefix: path, node: child})
		}
	}
	return paths
}

func shortName(qualified string, seq int) string {
	seg := qualified
	if i := strings.LastIndex(qualified, "."); i >= 0 {
		seg = qualified[i+1:]
	}
	return "enum" + strconv.Itoa(seq) + "_" + seg
}
