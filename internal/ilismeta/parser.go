// Package ilismeta reads IlisMeta07 documents produced by "ili2c -oIMD"
// into a linked model graph and derives enum tables and empty transfers
// from it.
package ilismeta

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/sourcepole/qgis-interlis-plugin/internal/domain"
)

const (
	tagPrefix     = "IlisMeta07.ModelData."
	builtinPrefix = domain.PredefinedModel + "."
	xmlDatePrefix = builtinPrefix + "XMLDate"
)

// Parse parses an IlisMeta document. Input starting with '<' is read as
// XML text, anything else as a file path.
func Parse(pathOrXML string) (*domain.ModelGraph, error) {
	if strings.HasPrefix(strings.TrimSpace(pathOrXML), "<") {
		return ParseAll(Document{Source: "<inline>", Reader: strings.NewReader(pathOrXML)})
	}
	return ParseFile(pathOrXML)
}

// ParseFile parses the IlisMeta document at path.
func ParseFile(path string) (*domain.ModelGraph, error) {
	return ParseFiles(path)
}

// ParseReader parses an IlisMeta document from r. Source names the
// document in errors and in the returned graph.
func ParseReader(source string, r io.Reader) (*domain.ModelGraph, error) {
	return ParseAll(Document{Source: source, Reader: r})
}

// ParseFiles parses IlisMeta documents into one graph. The graph is named
// after the first path.
func ParseFiles(paths ...string) (*domain.ModelGraph, error) {
	docs := make([]*etree.Document, 0, len(paths))
	for _, path := range paths {
		doc := etree.NewDocument()
		if err := doc.ReadFromFile(path); err != nil {
			return nil, &domain.ModelParseError{Source: path, Reason: "cannot read document", Err: err}
		}
		docs = append(docs, doc)
	}
	return parseDocuments(paths, docs)
}

// Document is one IlisMeta document passed to ParseAll.
type Document struct {
	Source string
	Reader io.Reader
}

// ParseAll parses documents that are linked together: a class may extend a
// class of a model that another document defines, whatever the order of
// docs. A model defined by several documents is taken from the first one.
// Models are ordered with imported models first.
func ParseAll(docs ...Document) (*domain.ModelGraph, error) {
	sources := make([]string, 0, len(docs))
	parsed := make([]*etree.Document, 0, len(docs))
	for _, d := range docs {
		doc := etree.NewDocument()
		if _, err := doc.ReadFrom(d.Reader); err != nil {
			return nil, &domain.ModelParseError{Source: d.Source, Reason: "invalid XML", Err: err}
		}
		sources = append(sources, d.Source)
		parsed = append(parsed, doc)
	}
	return parseDocuments(sources, parsed)
}

func parseDocuments(sources []string, docs []*etree.Document) (*domain.ModelGraph, error) {
	if len(docs) == 0 {
		return nil, &domain.ModelParseError{Source: "<none>", Reason: "no documents"}
	}
	b := newBuilder(sources[0])
	for i, doc := range docs {
		if err := b.addDocument(sources[i], doc); err != nil {
			return nil, err
		}
	}
	return b.link()
}

// Raw records, keyed by TID, collected before any reference is resolved.
type (
	rawModel struct {
		tid, name, version, uri, iliVersion string
	}
	rawImport struct {
		importing, imported string
	}
	rawTopic struct {
		tid, name, parent string
	}
	rawClass struct {
		tid, name, kind, parent, super string
		abstract                       bool
	}
	rawAttr struct {
		tid, name, parent, typ, super string
		pos                           int
	}
	rawRole struct {
		tid, name, assoc, target string
		pos, max                 int
	}
	rawEnum struct {
		tid, name, super string
		values           []*domain.EnumNode
	}
	rawType struct {
		kind, form, base, super string
	}
)

type builder struct {
	source string // graph source, the first document

	// defined maps each model name to the document that defines it, tids
	// every recorded TID to its document.
	defined map[string]string
	tids    map[string]string

	models      []rawModel
	imports     []rawImport
	topics      []rawTopic
	classes     []rawClass
	attrs       []rawAttr
	roles       []rawRole
	enums       []rawEnum
	types       map[string]rawType
	roleTargets map[string]string
}

func newBuilder(source string) *builder {
	return &builder{
		source:      source,
		defined:     make(map[string]string),
		tids:        make(map[string]string),
		types:       make(map[string]rawType),
		roleTargets: make(map[string]string),
	}
}

// addDocument records the objects of one document. Objects of models that
// an earlier document defined are skipped.
func (b *builder) addDocument(source string, doc *etree.Document) error {
	root := doc.Root()
	if root == nil || root.Tag != "TRANSFER" {
		return &domain.ModelParseError{Source: source, Reason: "root element is not TRANSFER"}
	}
	data := root.SelectElement("DATASECTION")
	if data == nil {
		return &domain.ModelParseError{Source: source, Reason: "missing DATASECTION"}
	}

	var objects, models []*etree.Element
	for _, basket := range data.ChildElements() {
		for _, obj := range basket.ChildElements() {
			objects = append(objects, obj)
			if obj.Tag == tagPrefix+"Model" {
				models = append(models, obj)
			}
		}
	}

	skip := make(map[string]bool)
	for _, m := range models {
		name := m.SelectAttrValue("TID", "")
		if _, ok := b.defined[name]; ok {
			skip[name] = true
		}
	}
	for _, obj := range objects {
		if skip[ownerModel(obj)] {
			continue
		}
		if err := b.add(source, obj); err != nil {
			return err
		}
	}
	for _, m := range models {
		name := m.SelectAttrValue("TID", "")
		if _, ok := b.defined[name]; !ok {
			b.defined[name] = source
		}
	}
	return nil
}

// ownerModel returns the name of the model an object belongs to. TIDs and
// references are qualified by the model name.
func ownerModel(obj *etree.Element) string {
	ref := obj.SelectAttrValue("TID", "")
	if ref == "" {
		ref = childRef(obj, "ImportingP")
	}
	if ref == "" {
		ref = childRef(obj, "CRT")
	}
	name, _, _ := strings.Cut(ref, ".")
	return name
}

func (b *builder) add(source string, obj *etree.Element) error {
	tid := obj.SelectAttrValue("TID", "")
	kind := strings.TrimPrefix(obj.Tag, tagPrefix)
	if tid != "" && recordedKinds[kind] {
		if prev, dup := b.tids[tid]; dup {
			if prev == source {
				return &domain.ModelParseError{Source: source, Reason: fmt.Sprintf("duplicate %s %s", kind, tid)}
			}
			return &domain.ModelParseError{Source: source, Reason: fmt.Sprintf("duplicate %s %s, also defined in %s", kind, tid, prev)}
		}
		b.tids[tid] = source
	}

	switch kind {
	case "Model":
		b.models = append(b.models, rawModel{
			tid:        tid,
			name:       childText(obj, "Name"),
			version:    childText(obj, "Version"),
			uri:        childText(obj, "At"),
			iliVersion: childText(obj, "iliVersion"),
		})
	case "Import":
		b.imports = append(b.imports, rawImport{
			importing: childRef(obj, "ImportingP"),
			imported:  childRef(obj, "ImportedP"),
		})
	case "SubModel":
		b.topics = append(b.topics, rawTopic{
			tid:    tid,
			name:   childText(obj, "Name"),
			parent: childRef(obj, "ElementInPackage"),
		})
	case "Class":
		b.classes = append(b.classes, rawClass{
			tid:      tid,
			name:     childText(obj, "Name"),
			kind:     childText(obj, "Kind"),
			abstract: childText(obj, "Abstract") == "true",
			parent:   childRef(obj, "ElementInPackage"),
			super:    childRef(obj, "Super"),
		})
	case "AttrOrParam":
		b.attrs = append(b.attrs, rawAttr{
			tid:    tid,
			name:   childText(obj, "Name"),
			parent: childRef(obj, "AttrParent"),
			pos:    orderPos(obj.SelectElement("AttrParent")),
			typ:    childRef(obj, "Type"),
			super:  childRef(obj, "Super"),
		})
	case "Role":
		b.roles = append(b.roles, rawRole{
			tid:    tid,
			name:   childText(obj, "Name"),
			assoc:  childRef(obj, "Association"),
			pos:    orderPos(obj.SelectElement("Association")),
			target: childRef(obj, "BaseClass"),
			max:    multiplicityMax(obj),
		})
	case "BaseClass":
		if crt := childRef(obj, "CRT"); crt != "" {
			b.roleTargets[crt] = childRef(obj, "BaseClass")
		}
	case "EnumType":
		b.enums = append(b.enums, rawEnum{
			tid:    tid,
			name:   childText(obj, "Name"),
			super:  childRef(obj, "Super"),
			values: enumNodes(obj.SelectElement("TopValues")),
		})
	case "TextType", "NumType", "FormattedType", "BlackboxType",
		"CoordType", "MultiCoordType", "LineType", "MultiLineType", "MultiSurfaceType",
		"MultiValue", "ReferenceType", "ClassRefType":
		b.types[tid] = rawType{
			kind:  kind,
			form:  childText(obj, "Kind"),
			base:  childRef(obj, "BaseType"),
			super: childRef(obj, "Super"),
		}
	}
	return nil
}

// recordedKinds are the object kinds whose TIDs the builder keeps.
var recordedKinds = map[string]bool{
	"Model": true, "SubModel": true, "Class": true, "AttrOrParam": true, "Role": true, "EnumType": true,
	"TextType": true, "NumType": true, "FormattedType": true, "BlackboxType": true,
	"CoordType": true, "MultiCoordType": true, "LineType": true, "MultiLineType": true, "MultiSurfaceType": true,
	"MultiValue": true, "ReferenceType": true, "ClassRefType": true,
}

func (b *builder) fail(format string, args ...any) error {
	return &domain.ModelParseError{Source: b.source, Reason: fmt.Sprintf(format, args...)}
}

func (b *builder) link() (*domain.ModelGraph, error) {
	b.orderByImports()
	g := domain.NewModelGraph(b.source)
	topics := make(map[string]*domain.Topic)

	for _, rm := range b.models {
		if rm.name == domain.PredefinedModel {
			continue
		}
		m := &domain.Model{
			Name:       rm.name,
			Version:    rm.version,
			URI:        rm.uri,
			IliVersion: rm.iliVersion,
		}
		g.AddModel(m)
	}

	for _, ri := range b.imports {
		importing, ok := g.Model(ri.importing)
		if !ok {
			continue
		}
		if imported, ok := g.Model(ri.imported); ok {
			importing.Imports = append(importing.Imports, imported)
		}
	}

	for _, rt := range b.topics {
		if isBuiltin(rt.tid) {
			continue
		}
		m, ok := g.Model(rt.parent)
		if !ok {
			return nil, b.fail("unresolved model %s of topic %s", rt.parent, rt.tid)
		}
		t := &domain.Topic{Name: rt.name, Model: m}
		m.Topics = append(m.Topics, t)
		topics[rt.tid] = t
	}

	classes := make(map[string]*domain.ClassDef, len(b.classes))
	for _, rc := range b.classes {
		if isBuiltin(rc.tid) {
			continue
		}
		t, err := b.packageTopic(g, topics, rc.parent)
		if err != nil {
			return nil, err
		}
		c := domain.NewClassDef(rc.name, rc.tid, classKind(rc.kind))
		c.Abstract = rc.abstract
		c.Topic = t
		t.Classes = append(t.Classes, c)
		g.AddClass(c)
		classes[rc.tid] = c
	}
	for _, rc := range b.classes {
		c, ok := classes[rc.tid]
		if !ok || rc.super == "" || isBuiltin(rc.super) {
			continue
		}
		base, ok := classes[rc.super]
		if !ok {
			return nil, b.fail("unresolved base class %s of %s", rc.super, rc.tid)
		}
		c.Base = base
	}
	for _, c := range g.Classes {
		if hasClassCycle(c, len(g.Classes)) {
			return nil, b.fail("inheritance cycle at %s", c.QualifiedName)
		}
	}

	enums := make(map[string]*domain.EnumDef, len(b.enums))
	for _, re := range b.enums {
		if isBuiltin(re.tid) {
			continue
		}
		e := &domain.EnumDef{Name: re.name, QualifiedName: re.tid, Values: re.values}
		g.Enums = append(g.Enums, e)
		enums[re.tid] = e
	}
	for _, re := range b.enums {
		e, ok := enums[re.tid]
		if !ok || re.super == "" || isBuiltin(re.super) {
			continue
		}
		base, ok := enums[re.super]
		if !ok {
			return nil, b.fail("unresolved enumeration super %s of %s", re.super, re.tid)
		}
		e.Base = base
	}
	for _, e := range g.Enums {
		if hasEnumCycle(e, len(g.Enums)) {
			return nil, b.fail("enumeration extension cycle at %s", e.QualifiedName)
		}
	}

	if err := b.linkAttributes(classes, enums); err != nil {
		return nil, err
	}
	if err := b.linkRoles(classes); err != nil {
		return nil, err
	}
	return g, nil
}

// orderByImports sorts models so that imported models come first, keeping
// document order otherwise, and sorts topics, classes and enums by model.
func (b *builder) orderByImports() {
	imports := make(map[string][]string)
	for _, ri := range b.imports {
		imports[ri.importing] = append(imports[ri.importing], ri.imported)
	}

	rank := make(map[string]int, len(b.models))
	visiting := make(map[string]bool)
	var visit func(name string)
	visit = func(name string) {
		if _, done := rank[name]; done || visiting[name] {
			return
		}
		visiting[name] = true
		for _, imported := range imports[name] {
			visit(imported)
		}
		rank[name] = len(rank)
	}
	for _, rm := range b.models {
		visit(rm.tid)
	}

	byModel := func(ref string) int {
		name, _, _ := strings.Cut(ref, ".")
		if r, ok := rank[name]; ok {
			return r
		}
		return len(rank)
	}
	sort.SliceStable(b.models, func(i, j int) bool { return byModel(b.models[i].tid) < byModel(b.models[j].tid) })
	sort.SliceStable(b.topics, func(i, j int) bool { return byModel(b.topics[i].tid) < byModel(b.topics[j].tid) })
	sort.SliceStable(b.classes, func(i, j int) bool { return byModel(b.classes[i].tid) < byModel(b.classes[j].tid) })
	sort.SliceStable(b.enums, func(i, j int) bool { return byModel(b.enums[i].tid) < byModel(b.enums[j].tid) })
}

// packageTopic resolves an ElementInPackage reference to a topic, creating
// the unnamed model-level topic on first use.
func (b *builder) packageTopic(g *domain.ModelGraph, topics map[string]*domain.Topic, ref string) (*domain.Topic, error) {
	if t, ok := topics[ref]; ok {
		return t, nil
	}
	m, ok := g.Model(ref)
	if !ok {
		return nil, b.fail("unresolved package %s", ref)
	}
	t, ok := m.Topic("")
	if !ok {
		t = &domain.Topic{Model: m}
		m.Topics = append(m.Topics, t)
	}
	topics[ref] = t
	return t, nil
}

func (b *builder) linkAttributes(classes map[string]*domain.ClassDef, enums map[string]*domain.EnumDef) error {
	raws := make([]rawAttr, 0, len(b.attrs))
	for _, ra := range b.attrs {
		if !isBuiltin(ra.tid) {
			raws = append(raws, ra)
		}
	}
	sort.SliceStable(raws, func(i, j int) bool { return raws[i].pos < raws[j].pos })

	attrs := make(map[string]*domain.AttributeDef, len(raws))
	for _, ra := range raws {
		owner, ok := classes[ra.parent]
		if !ok {
			return b.fail("unresolved attribute parent %s of %s", ra.parent, ra.tid)
		}
		a := &domain.AttributeDef{Name: ra.name, Owner: owner}
		owner.Attributes.Set(ra.name, a)
		attrs[ra.tid] = a
	}

	byTID := make(map[string]rawAttr, len(raws))
	for _, ra := range raws {
		byTID[ra.tid] = ra
		if ra.super == "" {
			continue
		}
		base, ok := attrs[ra.super]
		if !ok {
			return b.fail("unresolved attribute super %s of %s", ra.super, ra.tid)
		}
		attrs[ra.tid].Base = base
	}

	resolved := make(map[*domain.AttributeDef]bool, len(attrs))
	var resolve func(a *domain.AttributeDef, ra rawAttr, depth int) error
	resolve = func(a *domain.AttributeDef, ra rawAttr, depth int) error {
		if resolved[a] {
			return nil
		}
		if depth > len(raws) {
			return b.fail("attribute extension cycle at %s", ra.tid)
		}
		if ra.typ == "" && a.Base != nil {
			if err := resolve(a.Base, byTID[ra.super], depth+1); err != nil {
				return err
			}
			a.Kind, a.Geometry, a.Enum, a.Struct = a.Base.Kind, a.Base.Geometry, a.Base.Enum, a.Base.Struct
		} else if err := b.resolveType(a, ra, classes, enums); err != nil {
			return err
		}
		resolved[a] = true
		return nil
	}
	for _, ra := range raws {
		if err := resolve(attrs[ra.tid], ra, 0); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) resolveType(a *domain.AttributeDef, ra rawAttr, classes map[string]*domain.ClassDef, enums map[string]*domain.EnumDef) error {
	switch {
	case ra.typ == "":
		a.Kind = domain.ValueText
		return nil
	case strings.HasPrefix(ra.typ, xmlDatePrefix):
		a.Kind = domain.ValueDate
		return nil
	case isBuiltin(ra.typ):
		a.Kind = domain.ValueText
		return nil
	}

	if e, ok := enums[ra.typ]; ok {
		a.Kind = domain.ValueEnum
		a.Enum = e
		return nil
	}
	rt, ok := b.types[ra.typ]
	if !ok {
		return b.fail("unresolved type %s of %s", ra.typ, ra.tid)
	}

	switch rt.kind {
	case "NumType":
		a.Kind = domain.ValueNumeric
	case "FormattedType":
		a.Kind = domain.ValueText
		if strings.HasPrefix(rt.super, xmlDatePrefix) || strings.HasPrefix(rt.base, xmlDatePrefix) {
			a.Kind = domain.ValueDate
		}
	case "ReferenceType", "ClassRefType":
		a.Kind = domain.ValueReference
	case "MultiValue":
		a.Kind = domain.ValueStructure
		a.Struct = classes[rt.base]
	case "CoordType":
		a.Kind, a.Geometry = domain.ValueGeometry, domain.GeometryPoint
	case "MultiCoordType":
		a.Kind, a.Geometry = domain.ValueGeometry, domain.GeometryMultiPoint
	case "LineType":
		a.Kind, a.Geometry = domain.ValueGeometry, lineGeometry(rt.form)
	case "MultiLineType":
		a.Kind, a.Geometry = domain.ValueGeometry, domain.GeometryMultiLineString
	case "MultiSurfaceType":
		a.Kind, a.Geometry = domain.ValueGeometry, domain.GeometryMultiPolygon
	default:
		a.Kind = domain.ValueText
	}
	return nil
}

func (b *builder) linkRoles(classes map[string]*domain.ClassDef) error {
	raws := append([]rawRole(nil), b.roles...)
	sort.SliceStable(raws, func(i, j int) bool { return raws[i].pos < raws[j].pos })

	for _, rr := range raws {
		if isBuiltin(rr.tid) {
			continue
		}
		assoc, ok := classes[rr.assoc]
		if !ok {
			return b.fail("unresolved association %s of role %s", rr.assoc, rr.tid)
		}
		targetRef := rr.target
		if t, ok := b.roleTargets[rr.tid]; ok {
			targetRef = t
		}
		target, ok := classes[targetRef]
		if !ok {
			return b.fail("unresolved role target %q of %s", targetRef, rr.tid)
		}
		assoc.Roles = append(assoc.Roles, &domain.RoleDef{
			Name:        rr.name,
			Association: assoc,
			Target:      target,
			Max:         rr.max,
		})
	}
	return nil
}

func lineGeometry(form string) domain.GeometryType {
	switch form {
	case "Surface", "Area":
		return domain.GeometryPolygon
	default:
		return domain.GeometryMultiLineString
	}
}

func classKind(kind string) domain.ClassKind {
	switch kind {
	case "Structure":
		return domain.KindStructure
	case "Association":
		return domain.KindAssociation
	default:
		return domain.KindClass
	}
}

func hasClassCycle(c *domain.ClassDef, limit int) bool {
	steps := 0
	for cur := c.Base; cur != nil; cur = cur.Base {
		if cur == c || steps > limit {
			return true
		}
		steps++
	}
	return false
}

func hasEnumCycle(e *domain.EnumDef, limit int) bool {
	steps := 0
	for cur := e.Base; cur != nil; cur = cur.Base {
		if cur == e || steps > limit {
			return true
		}
		steps++
	}
	return false
}

func isBuiltin(ref string) bool {
	return ref == domain.PredefinedModel || strings.HasPrefix(ref, builtinPrefix)
}

func childText(e *etree.Element, tag string) string {
	if c := e.SelectElement(tag); c != nil {
		return strings.TrimSpace(c.Text())
	}
	return ""
}

func childRef(e *etree.Element, tag string) string {
	if c := e.SelectElement(tag); c != nil {
		return c.SelectAttrValue("REF", "")
	}
	return ""
}

func orderPos(e *etree.Element) int {
	if e == nil {
		return 0
	}
	pos, err := strconv.Atoi(e.SelectAttrValue("ORDER_POS", "0"))
	if err != nil {
		return 0
	}
	return pos
}

// multiplicityMax returns the upper bound of a role, 0 when unbounded.
func multiplicityMax(role *etree.Element) int {
	m := role.SelectElement("Multiplicity")
	if m == nil {
		return 0
	}
	if inner := m.SelectElement(tagPrefix + "Multiplicity"); inner != nil {
		m = inner
	}
	n, err := strconv.Atoi(childText(m, "Max"))
	if err != nil {
		return 0
	}
	return n
}

func enumNodes(container *etree.Element) []*domain.EnumNode {
	if container == nil {
		return nil
	}
	var nodes []*domain.EnumNode
	for _, el := range container.SelectElements(tagPrefix + "EnumNode") {
		nodes = append(nodes, &domain.EnumNode{
			Name:     childText(el, "Name"),
			Children: enumNodes(el.SelectElement("SubValues")),
		})
	}
	return nodes
}
