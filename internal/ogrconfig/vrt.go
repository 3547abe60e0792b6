package ogrconfig

import (
	"fmt"
	"strconv"

	"github.com/beevik/etree"

	"github.com/sourcepole/qgis-interlis-plugin/internal/domain"
)

// GenerateVRT renders the current document as a VRT that reads the source
// under destination names.
func (c *Config) GenerateVRT() (string, error) {
	return c.generateVRT(false)
}

// GenerateReverseVRT renders the current document as a VRT that reads
// destination data under source names. Types, widths and SRS are kept so
// that both documents describe the same schema.
func (c *Config) GenerateReverseVRT() (string, error) {
	return c.generateVRT(true)
}

func (c *Config) generateVRT(reverse bool) (string, error) {
	if c.doc == nil {
		return "", fmt.Errorf("%w: no mapping document", domain.ErrNotReady)
	}

	doc := etree.NewDocument()
	root := doc.CreateElement("OGRVRTDataSource")
	ds := c.Source().String()

	for pair := c.doc.Layers.Oldest(); pair != nil; pair = pair.Next() {
		lm := pair.Value
		name, srcLayer := pair.Key, lm.SrcLayer
		if reverse {
			name, srcLayer = srcLayer, name
		}

		layer := root.CreateElement("OGRVRTLayer")
		layer.CreateAttr("name", name)
		src := layer.CreateElement("SrcDataSource")
		src.CreateAttr("relativeToVRT", "0")
		src.CreateAttr("shared", "1")
		src.SetText(ds)
		layer.CreateElement("SrcLayer").SetText(srcLayer)

		if lm.GeomFields.Len() == 0 {
			layer.CreateElement("GeometryType").SetText(lm.GeometryType.WKBToken())
		}

		for f := lm.Fields.Oldest(); f != nil; f = f.Next() {
			fieldName, fieldSrc := f.Key, f.Value.Src
			if reverse {
				fieldName, fieldSrc = fieldSrc, fieldName
			}
			el := layer.CreateElement("Field")
			el.CreateAttr("name", fieldName)
			el.CreateAttr("src", fieldSrc)
			if f.Value.Type != "" {
				el.CreateAttr("type", f.Value.Type)
			}
			if f.Value.Width > 0 {
				el.CreateAttr("width", strconv.Itoa(f.Value.Width))
			}
		}

		for g := lm.GeomFields.Oldest(); g != nil; g = g.Next() {
			geomName, geomSrc := g.Key, g.Value.Src
			if reverse {
				geomName, geomSrc = geomSrc, geomName
			}
			el := layer.CreateElement("GeometryField")
			el.CreateAttr("field", geomSrc)
			el.CreateAttr("name", geomName)
			el.CreateElement("GeometryType").SetText(g.Value.Type.WKBToken())
			if g.Value.SRS > 0 {
				el.CreateElement("SRS").SetText("EPSG:" + strconv.Itoa(g.Value.SRS))
			}
		}
	}

	doc.Indent(2)
	doc.WriteSettings.CanonicalText = true
	doc.WriteSettings.CanonicalAttrVal = true
	out, err := doc.WriteToString()
	if err != nil {
		return "", fmt.Errorf("writing VRT: %w", err)
	}
	return out, nil
}
