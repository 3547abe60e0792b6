package domain

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// PredefinedModel is the name of the built-in INTERLIS model. It is never
// part of a parsed graph.
const PredefinedModel = "INTERLIS"

// ModelGraph is the linked result of parsing one IlisMeta document.
// It is read-only once returned by the parser.
type ModelGraph struct {
	Source  string   // Path the graph was parsed from
	Models  []*Model // Models in document order
	Classes []*ClassDef
	Enums   []*EnumDef

	classIndex map[string]*ClassDef
	modelIndex map[string]*Model
}

// NewModelGraph creates an empty graph for the given source.
func NewModelGraph(source string) *ModelGraph {
	return &ModelGraph{
		Source:     source,
		classIndex: make(map[string]*ClassDef),
		modelIndex: make(map[string]*Model),
	}
}

// AddModel registers a model.
func (g *ModelGraph) AddModel(m *Model) {
	g.Models = append(g.Models, m)
	g.modelIndex[m.Name] = m
}

// AddClass registers a class in declaration order.
func (g *ModelGraph) AddClass(c *ClassDef) {
	g.Classes = append(g.Classes, c)
	g.classIndex[c.QualifiedName] = c
}

// Model returns a model by name.
func (g *ModelGraph) Model(name string) (*Model, bool) {
	m, ok := g.modelIndex[name]
	return m, ok
}

// Class returns a class by qualified name.
func (g *ModelGraph) Class(qualifiedName string) (*ClassDef, bool) {
	c, ok := g.classIndex[qualifiedName]
	return c, ok
}

// IsEmpty returns true if the graph has nothing to transfer.
func (g *ModelGraph) IsEmpty() bool {
	return len(g.Classes) == 0
}

// ModelNames returns the names of all models in document order.
func (g *ModelGraph) ModelNames() []string {
	names := make([]string, len(g.Models))
	for i, m := range g.Models {
		names[i] = m.Name
	}
	return names
}

// LastModel returns the last model of the document, which for ili2c output
// is the model that was compiled.
func (g *ModelGraph) LastModel() *Model {
	if len(g.Models) == 0 {
		return nil
	}
	return g.Models[len(g.Models)-1]
}

// Model is a named metamodel unit.
type Model struct {
	Name       string
	Version    string
	URI        string
	IliVersion string
	Imports    []*Model
	Topics     []*Topic
}

// Topic returns a topic by name.
func (m *Model) Topic(name string) (*Topic, bool) {
	for _, t := range m.Topics {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// Topic is a named grouping of classes within a model. Classes declared
// directly in a model belong to a topic with an empty name.
type Topic struct {
	Name    string
	Model   *Model
	Classes []*ClassDef
}

// QualifiedName returns Model.Topic, or Model for the model-level topic.
func (t *Topic) QualifiedName() string {
	if t.Name == "" {
		return t.Model.Name
	}
	return t.Model.Name + "." + t.Name
}

// ClassKind distinguishes classes, structures and associations.
type ClassKind int

// Class kinds.
const (
	KindClass ClassKind = iota
	KindStructure
	KindAssociation
)

// String returns the IlisMeta spelling of the kind.
func (k ClassKind) String() string {
	switch k {
	case KindClass:
		return "Class"
	case KindStructure:
		return "Structure"
	case KindAssociation:
		return "Association"
	default:
		return "unknown"
	}
}

// ClassDef is a class, structure or association.
type ClassDef struct {
	Name          string
	QualifiedName string
	Kind          ClassKind
	Abstract      bool
	Topic         *Topic
	Base          *ClassDef

	// Attributes in declaration order.
	Attributes *orderedmap.OrderedMap[string, *AttributeDef]

	// Roles of an association, in declaration order.
	Roles []*RoleDef
}

// NewClassDef creates a class with an empty attribute map.
func NewClassDef(name, qualifiedName string, kind ClassKind) *ClassDef {
	return &ClassDef{
		Name:          name,
		QualifiedName: qualifiedName,
		Kind:          kind,
		Attributes:    orderedmap.New[string, *AttributeDef](),
	}
}

// IsStructure returns true for embeddable structures without identity.
func (c *ClassDef) IsStructure() bool {
	return c.Kind == KindStructure
}

// IsAssociation returns true for associations.
func (c *ClassDef) IsAssociation() bool {
	return c.Kind == KindAssociation
}

// Model returns the owning model.
func (c *ClassDef) Model() *Model {
	if c.Topic == nil {
		return nil
	}
	return c.Topic.Model
}

// Chain returns the inheritance chain from the root class to c.
func (c *ClassDef) Chain() []*ClassDef {
	var chain []*ClassDef
	for cur := c; cur != nil; cur = cur.Base {
		chain = append([]*ClassDef{cur}, chain...)
	}
	return chain
}

// IsA returns true if c is other or extends it.
func (c *ClassDef) IsA(other *ClassDef) bool {
	for cur := c; cur != nil; cur = cur.Base {
		if cur == other {
			return true
		}
	}
	return false
}

// AllAttributes returns inherited attributes followed by own ones.
// An attribute overriding an inherited one replaces it in place.
func (c *ClassDef) AllAttributes() []*AttributeDef {
	merged := orderedmap.New[string, *AttributeDef]()
	for _, cls := range c.Chain() {
		for pair := cls.Attributes.Oldest(); pair != nil; pair = pair.Next() {
			merged.Set(pair.Key, pair.Value)
		}
	}

	attrs := make([]*AttributeDef, 0, merged.Len())
	for pair := merged.Oldest(); pair != nil; pair = pair.Next() {
		attrs = append(attrs, pair.Value)
	}
	return attrs
}

// ValueKind is the kind of value an attribute holds.
type ValueKind int

// Attribute value kinds.
const (
	ValueText ValueKind = iota
	ValueNumeric
	ValueDate
	ValueEnum
	ValueGeometry
	ValueStructure
	ValueReference
)

// String returns a readable name for the kind.
func (k ValueKind) String() string {
	switch k {
	case ValueText:
		return "text"
	case ValueNumeric:
		return "numeric"
	case ValueDate:
		return "date"
	case ValueEnum:
		return "enumeration"
	case ValueGeometry:
		return "geometry"
	case ValueStructure:
		return "structure"
	case ValueReference:
		return "reference"
	default:
		return "unknown"
	}
}

// AttributeDef is an attribute of a class.
type AttributeDef struct {
	Name     string
	Owner    *ClassDef
	Kind     ValueKind
	Geometry GeometryType // ValueGeometry only
	Enum     *EnumDef     // ValueEnum only
	Struct   *ClassDef    // ValueStructure only
	Base     *AttributeDef
}

// QualifiedName returns Model.Topic.Class.Attribute.
func (a *AttributeDef) QualifiedName() string {
	return a.Owner.QualifiedName + "." + a.Name
}

// RoleDef is one end of an association.
type RoleDef struct {
	Name        string
	Association *ClassDef
	Target      *ClassDef
	Max         int // 0 means unbounded
}

// EnumDef is an enumeration type, possibly extending a base enumeration.
type EnumDef struct {
	Name          string
	QualifiedName string
	Values        []*EnumNode
	Base          *EnumDef
}

// Chain returns the extension chain from the most-base definition to e.
func (e *EnumDef) Chain() []*EnumDef {
	var chain []*EnumDef
	for cur := e; cur != nil; cur = cur.Base {
		chain = append([]*EnumDef{cur}, chain...)
	}
	return chain
}

// EnumNode is one value of an enumeration tree.
type EnumNode struct {
	Name     string
	Children []*EnumNode
}

// EnumValue is one record of a flattened enumeration.
type EnumValue struct {
	ID      int    `json:"id"`
	Enum    string `json:"enum"`
	EnumTxt string `json:"enumtxt"`
}

// EnumTables maps qualified attribute paths to flattened values.
type EnumTables = orderedmap.OrderedMap[string, []EnumValue]

// NewEnumTables creates an empty enum table map.
func NewEnumTables() *EnumTables {
	return orderedmap.New[string, []EnumValue]()
}
