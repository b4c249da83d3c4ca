// Package codegen synthesizes reference proxy types for mapped document classes.
// Inspect reduces a class descriptor to the shape a proxy needs; ProxyGenerator renders that
// shape as Go source registering itself with the proxy runtime.
package codegen

import (
	"strings"

	"github.com/conduit-lang/refproxy/internal/orm/schema"
)

// SerializationHook is the method name of the serialization hook, compared case-insensitively
const SerializationHook = "MarshalJSON"

// Behavior is a public method forwarded by the proxy
type Behavior struct {
	Name             string
	Params           []schema.Param
	Results          []*schema.TypeRef
	ReturnsReference bool
}

// ClassShape is the proxy-relevant view of a mapped class
type ClassShape struct {
	QualifiedName string
	Package       string
	PackageName   string
	TypeName      string
	Identifier    string

	// PersistedAttributes lists the identifier, the simple fields and the relations in
	// reference, children, referrers, child order, without duplicates
	PersistedAttributes []string
	SimpleFields        []string

	ForwardableBehaviors       []Behavior
	HasCustomSerializationHook bool

	// Members holds the declared type of every persisted attribute backed by a struct member
	Members map[string]*schema.TypeRef

	MappedSuperclass bool
}

// IsMember reports whether attr is backed by a declared struct member
func (s *ClassShape) IsMember(attr string) bool {
	_, ok := s.Members[attr]
	return ok
}

// Inspect derives the shape of a class from its descriptor. It performs no I/O.
func Inspect(desc *schema.ClassDescriptor) *ClassShape {
	shape := &ClassShape{
		QualifiedName:    desc.Name,
		Package:          desc.Package,
		PackageName:      desc.PackageName,
		TypeName:         desc.TypeName,
		Identifier:       desc.IdentifierName(),
		Members:          make(map[string]*schema.TypeRef),
		MappedSuperclass: desc.MappedSuperclass,
	}

	seen := make(map[string]bool)
	add := func(name string, ref *schema.TypeRef) bool {
		if seen[name] {
			if _, typed := shape.Members[name]; !typed && ref != nil {
				shape.Members[name] = ref
			}
			return false
		}
		seen[name] = true
		shape.PersistedAttributes = append(shape.PersistedAttributes, name)
		if ref != nil {
			shape.Members[name] = ref
		}
		return true
	}

	if desc.Identifier != nil {
		add(desc.IdentifierName(), desc.Identifier.Type)
	} else {
		add(desc.IdentifierName(), nil)
	}

	for _, f := range desc.Fields {
		if add(f.Name, f.Type) {
			shape.SimpleFields = append(shape.SimpleFields, f.Name)
		}
	}

	for _, kind := range schema.RelationKinds {
		for _, r := range desc.RelationsOf(kind) {
			add(r.Name, r.Type)
		}
	}

	for _, m := range desc.Methods {
		if isSerializationHook(m) {
			shape.HasCustomSerializationHook = true
		}
		if !forwardable(m) {
			continue
		}
		shape.ForwardableBehaviors = append(shape.ForwardableBehaviors, Behavior{
			Name:             m.Name,
			Params:           m.Params,
			Results:          m.Results,
			ReturnsReference: m.ReturnsReference,
		})
	}

	return shape
}

func forwardable(m *schema.MethodDescriptor) bool {
	if !m.Public || m.Constructor || m.Final || m.Static {
		return false
	}
	return !strings.EqualFold(m.Name, SerializationHook)
}

// isSerializationHook matches a json.Marshaler implementation on the class
func isSerializationHook(m *schema.MethodDescriptor) bool {
	if m.Name != SerializationHook || !m.Public || m.Static || m.Constructor {
		return false
	}
	if len(m.Params) != 0 || len(m.Results) != 2 {
		return false
	}
	bytes := m.Results[0]
	return bytes.Kind == schema.KindSlice && bytes.Elem != nil &&
		bytes.Elem.Kind == schema.KindNamed && bytes.Elem.Package == "" &&
		(bytes.Elem.Name == "byte" || bytes.Elem.Name == "uint8") &&
		m.Results[1].IsError()
}
