package ilismeta

import (
	"path/filepath"
	"slices"
	"sort"

	"github.com/beevik/etree"

	"github.com/sourcepole/qgis-interlis-plugin/internal/domain"
)

// Header lists the models an IlisMeta document defines and the models
// those import, without the predefined INTERLIS model.
type Header struct {
	Models  []string
	Imports []string
}

// ReadHeader reads the model and import records of the document at path.
func ReadHeader(path string) (*Header, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		return nil, &domain.ModelParseError{Source: path, Reason: "cannot read document", Err: err}
	}
	root := doc.Root()
	if root == nil || root.Tag != "TRANSFER" {
		return nil, &domain.ModelParseError{Source: path, Reason: "root element is not TRANSFER"}
	}

	h := &Header{}
	for _, basket := range root.FindElements("DATASECTION/*") {
		for _, obj := range basket.ChildElements() {
			switch obj.Tag {
			case tagPrefix + "Model":
				if name := obj.SelectAttrValue("TID", ""); name != "" && !isBuiltin(name) {
					h.Models = append(h.Models, name)
				}
			case tagPrefix + "Import":
				if imported := childRef(obj, "ImportedP"); imported != "" && !isBuiltin(imported) {
					h.Imports = append(h.Imports, imported)
				}
			}
		}
	}
	return h, nil
}

// Companions returns the documents among candidates that path needs to be
// parsed with ParseFiles: those defining models that path imports but does
// not define, directly or through another companion. Unreadable candidates
// are skipped; a model that stays missing fails the parse.
func Companions(path string, candidates []string) ([]string, error) {
	h, err := ReadHeader(path)
	if err != nil {
		return nil, err
	}

	defined := make(map[string]bool)
	for _, m := range h.Models {
		defined[m] = true
	}
	missing := func(imports []string) bool {
		for _, imported := range imports {
			if !defined[imported] {
				return true
			}
		}
		return false
	}
	if !missing(h.Imports) {
		return nil, nil
	}

	headers := make(map[string]*Header)
	sorted := append([]string(nil), candidates...)
	sort.Strings(sorted)
	for _, c := range sorted {
		if filepath.Clean(c) == filepath.Clean(path) {
			continue
		}
		if ch, err := ReadHeader(c); err == nil {
			headers[c] = ch
		}
	}

	var companions []string
	used := make(map[string]bool)
	pending := append([]string(nil), h.Imports...)
	for len(pending) > 0 {
		name := pending[0]
		pending = pending[1:]
		if defined[name] {
			continue
		}
		for _, c := range sorted {
			ch, ok := headers[c]
			if !ok || used[c] || !slices.Contains(ch.Models, name) {
				continue
			}
			used[c] = true
			companions = append(companions, c)
			for _, m := range ch.Models {
				defined[m] = true
			}
			pending = append(pending, ch.Imports...)
			break
		}
		// A model no candidate defines stays unresolved in the parse.
		defined[name] = true
	}
	return companions, nil
}
