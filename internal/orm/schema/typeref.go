package schema

import (
	"strconv"
	"strings"
)

// TypeKind represents the shape of a type expression
type TypeKind int

const (
	KindNamed TypeKind = iota
	KindPointer
	KindSlice
	KindArray
	KindMap
	KindChan
	KindFunc
	KindInterface
	KindUnsupported
)

// String returns the string representation of the type kind
func (k TypeKind) String() string {
	switch k {
	case KindNamed:
		return "named"
	case KindPointer:
		return "pointer"
	case KindSlice:
		return "slice"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	case KindChan:
		return "chan"
	case KindFunc:
		return "func"
	case KindInterface:
		return "interface"
	default:
		return "unsupported"
	}
}

// ChanDir represents the direction of a channel type
type ChanDir int

const (
	ChanBoth ChanDir = iota
	ChanSend
	ChanRecv
)

// TypeRef is a structural description of a Go type expression.
// Named types carry the import path of their package so that generated code in another
// package can qualify them; predeclared types have an empty Package.
type TypeRef struct {
	Kind TypeKind

	// KindNamed
	Package     string
	PackageName string
	Name        string
	TypeArgs    []*TypeRef

	// KindPointer, KindSlice, KindArray, KindMap (value), KindChan
	Elem *TypeRef
	Key  *TypeRef
	Len  int
	Dir  ChanDir

	// KindFunc
	Params   []*TypeRef
	Results  []*TypeRef
	Variadic bool

	// Expr keeps the source text of unsupported expressions
	Expr string
}

// Builtin returns a reference to a predeclared type such as string or error
func Builtin(name string) *TypeRef {
	return &TypeRef{Kind: KindNamed, Name: name}
}

// Named returns a reference to a type declared in another package
func Named(pkgPath, pkgName, name string) *TypeRef {
	return &TypeRef{Kind: KindNamed, Package: pkgPath, PackageName: pkgName, Name: name}
}

// PointerTo returns a pointer type
func PointerTo(elem *TypeRef) *TypeRef {
	return &TypeRef{Kind: KindPointer, Elem: elem}
}

// SliceOf returns a slice type
func SliceOf(elem *TypeRef) *TypeRef {
	return &TypeRef{Kind: KindSlice, Elem: elem}
}

// MapOf returns a map type
func MapOf(key, elem *TypeRef) *TypeRef {
	return &TypeRef{Kind: KindMap, Key: key, Elem: elem}
}

// Unsupported records a type expression that cannot be reproduced in generated code
func Unsupported(expr string) *TypeRef {
	return &TypeRef{Kind: KindUnsupported, Expr: expr}
}

// IsPointer returns true for pointer types
func (t *TypeRef) IsPointer() bool {
	return t != nil && t.Kind == KindPointer
}

// IsError returns true for the predeclared error type
func (t *TypeRef) IsError() bool {
	return t != nil && t.Kind == KindNamed && t.Package == "" && t.Name == "error"
}

// Supported returns false if t or any type it is built from cannot be generated
func (t *TypeRef) Supported() bool {
	if t == nil {
		return false
	}

	switch t.Kind {
	case KindUnsupported:
		return false
	case KindNamed:
		for _, arg := range t.TypeArgs {
			if !arg.Supported() {
				return false
			}
		}
		return t.Name != ""
	case KindPointer, KindSlice, KindArray, KindChan:
		return t.Elem.Supported()
	case KindMap:
		return t.Key.Supported() && t.Elem.Supported()
	case KindFunc:
		for _, p := range t.Params {
			if !p.Supported() {
				return false
			}
		}
		for _, r := range t.Results {
			if !r.Supported() {
				return false
			}
		}
		return true
	case KindInterface:
		return true
	default:
		return false
	}
}

// Packages returns the import paths referenced by t, keyed by path with the package name
func (t *TypeRef) Packages() map[string]string {
	out := make(map[string]string)
	t.collectPackages(out)
	return out
}

func (t *TypeRef) collectPackages(out map[string]string) {
	if t == nil {
		return
	}
	if t.Kind == KindNamed && t.Package != "" {
		out[t.Package] = t.PackageName
	}
	for _, arg := range t.TypeArgs {
		arg.collectPackages(out)
	}
	t.Elem.collectPackages(out)
	t.Key.collectPackages(out)
	for _, p := range t.Params {
		p.collectPackages(out)
	}
	for _, r := range t.Results {
		r.collectPackages(out)
	}
}

// String renders t in Go syntax, qualifying named types with their package name
func (t *TypeRef) String() string {
	if t == nil {
		return "<nil>"
	}

	switch t.Kind {
	case KindNamed:
		s := t.Name
		if t.PackageName != "" {
			s = t.PackageName + "." + t.Name
		}
		if len(t.TypeArgs) > 0 {
			s += "[" + joinTypes(t.TypeArgs) + "]"
		}
		return s
	case KindPointer:
		return "*" + t.Elem.String()
	case KindSlice:
		return "[]" + t.Elem.String()
	case KindArray:
		return "[" + strconv.Itoa(t.Len) + "]" + t.Elem.String()
	case KindMap:
		return "map[" + t.Key.String() + "]" + t.Elem.String()
	case KindChan:
		switch t.Dir {
		case ChanSend:
			return "chan<- " + t.Elem.String()
		case ChanRecv:
			return "<-chan " + t.Elem.String()
		default:
			return "chan " + t.Elem.String()
		}
	case KindFunc:
		params := make([]string, len(t.Params))
		for i, p := range t.Params {
			params[i] = p.String()
			if t.Variadic && i == len(t.Params)-1 && p.Kind == KindSlice {
				params[i] = "..." + p.Elem.String()
			}
		}
		s := "func(" + strings.Join(params, ", ") + ")"
		switch len(t.Results) {
		case 0:
		case 1:
			s += " " + t.Results[0].String()
		default:
			s += " (" + joinTypes(t.Results) + ")"
		}
		return s
	case KindInterface:
		return "interface{}"
	default:
		return t.Expr
	}
}

// MarshalYAML renders the type as its Go syntax
func (t *TypeRef) MarshalYAML() (interface{}, error) {
	return t.String(), nil
}

func joinTypes(types []*TypeRef) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}
