package schema

import (
	"fmt"
	"strings"
)

// ValidationError represents a descriptor validation error with context
type ValidationError struct {
	Class     string
	Attribute string
	Message   string
	Hint      string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	var b strings.Builder

	if e.Class != "" {
		b.WriteString(e.Class)
		if e.Attribute != "" {
			b.WriteString(".")
			b.WriteString(e.Attribute)
		}
		b.WriteString(": ")
	}

	b.WriteString(e.Message)

	if e.Hint != "" {
		b.WriteString("\n  hint: ")
		b.WriteString(e.Hint)
	}

	return b.String()
}

// DescriptorValidator validates class descriptors before they enter the catalog
type DescriptorValidator struct{}

// NewDescriptorValidator creates a new descriptor validator
func NewDescriptorValidator() *DescriptorValidator {
	return &DescriptorValidator{}
}

// ValidateStructural checks a single descriptor: names present, attributes unique,
// relation kinds known and method names unique.
func (v *DescriptorValidator) ValidateStructural(desc *ClassDescriptor) error {
	if desc == nil {
		return &ValidationError{Message: "descriptor is nil"}
	}
	if desc.Name == "" {
		return &ValidationError{Message: "class name is empty"}
	}
	if desc.TypeName == "" {
		return &ValidationError{
			Class:   desc.Name,
			Message: "type name is empty",
			Hint:    "build descriptors with NewClassDescriptor",
		}
	}

	if err := v.validateAttributes(desc); err != nil {
		return err
	}
	return v.validateMethods(desc)
}

func (v *DescriptorValidator) validateAttributes(desc *ClassDescriptor) error {
	seen := make(map[string]string)
	check := func(name, kind string) error {
		if name == "" {
			return &ValidationError{Class: desc.Name, Message: fmt.Sprintf("%s with empty name", kind)}
		}
		if prev, dup := seen[name]; dup {
			return &ValidationError{
				Class:     desc.Name,
				Attribute: name,
				Message:   fmt.Sprintf("mapped as both %s and %s", prev, kind),
			}
		}
		seen[name] = kind
		return nil
	}

	if desc.Identifier != nil {
		if err := check(desc.Identifier.Name, "identifier"); err != nil {
			return err
		}
	}
	for _, f := range desc.Fields {
		if err := check(f.Name, "field"); err != nil {
			return err
		}
	}
	for _, r := range desc.Relations {
		if r.Kind < RelationReference || r.Kind > RelationChild {
			return &ValidationError{
				Class:     desc.Name,
				Attribute: r.Name,
				Message:   fmt.Sprintf("invalid relation kind %d", int(r.Kind)),
			}
		}
		if err := check(r.Name, r.Kind.String()); err != nil {
			return err
		}
	}
	return nil
}

func (v *DescriptorValidator) validateMethods(desc *ClassDescriptor) error {
	seen := make(map[string]bool)
	for _, m := range desc.Methods {
		if m.Name == "" {
			return &ValidationError{Class: desc.Name, Message: "method with empty name"}
		}
		if seen[m.Name] {
			return &ValidationError{
				Class:     desc.Name,
				Attribute: m.Name,
				Message:   "method declared twice",
			}
		}
		seen[m.Name] = true
	}
	return nil
}
