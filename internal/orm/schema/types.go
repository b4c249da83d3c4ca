// Package schema provides the mapping metadata of document classes.
// A ClassDescriptor lists the persisted fields, the relations and the methods of a mapped
// Go struct; the Registry is the metadata catalog the proxy factory reads descriptors from.
package schema

import (
	"fmt"
	"strings"
)

// DefaultIdentifier is the identifier attribute of classes that do not declare one
const DefaultIdentifier = "ID"

// RelationKind represents the kind of a persisted relation
type RelationKind int

// Relation kinds, in the order their attributes are enumerated
const (
	RelationReference RelationKind = iota
	RelationChildren
	RelationReferrers
	RelationChild
)

// RelationKinds lists every relation kind in enumeration order
var RelationKinds = []RelationKind{
	RelationReference,
	RelationChildren,
	RelationReferrers,
	RelationChild,
}

// String returns the string representation of the relation kind
func (k RelationKind) String() string {
	switch k {
	case RelationReference:
		return "reference"
	case RelationChildren:
		return "children"
	case RelationReferrers:
		return "referrers"
	case RelationChild:
		return "child"
	default:
		return "unknown"
	}
}

// ParseRelationKind converts a string to a RelationKind
func ParseRelationKind(s string) (RelationKind, error) {
	switch s {
	case "reference":
		return RelationReference, nil
	case "children":
		return RelationChildren, nil
	case "referrers":
		return RelationReferrers, nil
	case "child":
		return RelationChild, nil
	default:
		return 0, fmt.Errorf("unknown relation kind: %s", s)
	}
}

// FieldMapping represents a persisted simple field
type FieldMapping struct {
	Name string
	Type *TypeRef
}

// RelationMapping represents a persisted relation to other documents
type RelationMapping struct {
	Name   string
	Kind   RelationKind
	Target string // qualified class name of the related document, if known
	Type   *TypeRef
}

// Param represents a method parameter
type Param struct {
	Name     string
	Type     *TypeRef
	Variadic bool
}

// MethodDescriptor represents a method of a mapped class
type MethodDescriptor struct {
	Name    string
	Params  []Param
	Results []*TypeRef

	Public      bool
	Static      bool
	Final       bool
	Constructor bool

	PointerReceiver  bool
	ReturnsReference bool
}

// ClassDescriptor represents the mapping metadata of one document class
type ClassDescriptor struct {
	Name        string // qualified name, e.g. example.com/app/model.User
	Package     string // import path of the declaring package
	PackageName string
	TypeName    string
	FilePath    string

	// Identifier is nil when the class relies on the implicit DefaultIdentifier
	Identifier *FieldMapping
	Fields     []*FieldMapping
	Relations  []*RelationMapping
	Methods    []*MethodDescriptor

	// MappedSuperclass marks abstract base classes that are never instantiated
	MappedSuperclass bool
}

// QualifiedName joins an import path and a type name
func QualifiedName(pkgPath, typeName string) string {
	if pkgPath == "" {
		return typeName
	}
	return pkgPath + "." + typeName
}

// NewClassDescriptor creates a descriptor for typeName declared in pkgPath
func NewClassDescriptor(pkgPath, pkgName, typeName string) *ClassDescriptor {
	return &ClassDescriptor{
		Name:        QualifiedName(pkgPath, typeName),
		Package:     pkgPath,
		PackageName: pkgName,
		TypeName:    typeName,
		Fields:      make([]*FieldMapping, 0),
		Relations:   make([]*RelationMapping, 0),
		Methods:     make([]*MethodDescriptor, 0),
	}
}

// IdentifierName returns the name of the identifier attribute
func (c *ClassDescriptor) IdentifierName() string {
	if c.Identifier != nil && c.Identifier.Name != "" {
		return c.Identifier.Name
	}
	return DefaultIdentifier
}

// HasField returns true if the class maps a simple field with the given name
func (c *ClassDescriptor) HasField(name string) bool {
	for _, f := range c.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// HasRelation returns true if the class maps a relation with the given name
func (c *ClassDescriptor) HasRelation(name string) bool {
	for _, r := range c.Relations {
		if r.Name == name {
			return true
		}
	}
	return false
}

// RelationsOf returns the relations of the given kind in declaration order
func (c *ClassDescriptor) RelationsOf(kind RelationKind) []*RelationMapping {
	var out []*RelationMapping
	for _, r := range c.Relations {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

// Method returns the method with the given name
func (c *ClassDescriptor) Method(name string) (*MethodDescriptor, bool) {
	for _, m := range c.Methods {
		if m.Name == name {
			return m, true
		}
	}
	return nil, false
}

// CloneAs returns a copy of the descriptor registered under another name.
// Mappings are shared; only the top-level slices are copied.
func (c *ClassDescriptor) CloneAs(name string) *ClassDescriptor {
	clone := *c
	clone.Name = name
	clone.Fields = append([]*FieldMapping(nil), c.Fields...)
	clone.Relations = append([]*RelationMapping(nil), c.Relations...)
	clone.Methods = append([]*MethodDescriptor(nil), c.Methods...)
	return &clone
}

// String returns a short description of the class
func (c *ClassDescriptor) String() string {
	var b strings.Builder
	b.WriteString(c.Name)
	if c.MappedSuperclass {
		b.WriteString(" (mapped superclass)")
	}
	return b.String()
}
