package codegen

import (
	"fmt"
	"go/ast"

	"github.com/dave/jennifer/jen"

	"github.com/conduit-lang/refproxy/internal/orm/schema"
)

// TypeMapper converts type references into jennifer type expressions
type TypeMapper struct{}

// NewTypeMapper creates a new TypeMapper
func NewTypeMapper() *TypeMapper {
	return &TypeMapper{}
}

// MapType converts ref into code usable from a package other than its own
func (tm *TypeMapper) MapType(ref *schema.TypeRef) (*jen.Statement, error) {
	if ref == nil {
		return nil, fmt.Errorf("type reference cannot be nil")
	}
	if err := tm.CheckAccessible(ref); err != nil {
		return nil, err
	}
	return tm.mapType(ref)
}

// MapParam converts a parameter type, rendering variadic slices as ...T
func (tm *TypeMapper) MapParam(p schema.Param) (*jen.Statement, error) {
	if p.Variadic && p.Type != nil && p.Type.Kind == schema.KindSlice {
		elem, err := tm.MapType(p.Type.Elem)
		if err != nil {
			return nil, err
		}
		return jen.Op("...").Add(elem), nil
	}
	return tm.MapType(p.Type)
}

// CheckAccessible returns an error if ref cannot be named outside its declaring package
func (tm *TypeMapper) CheckAccessible(ref *schema.TypeRef) error {
	if ref == nil {
		return fmt.Errorf("type reference cannot be nil")
	}

	switch ref.Kind {
	case schema.KindUnsupported:
		return fmt.Errorf("unsupported type %s", ref.Expr)
	case schema.KindNamed:
		if ref.Name == "" {
			return fmt.Errorf("named type without a name")
		}
		if ref.Package != "" && !ast.IsExported(ref.Name) {
			return fmt.Errorf("type %s is not exported", ref.String())
		}
		for _, arg := range ref.TypeArgs {
			if err := tm.CheckAccessible(arg); err != nil {
				return err
			}
		}
	case schema.KindPointer, schema.KindSlice, schema.KindArray, schema.KindChan:
		return tm.CheckAccessible(ref.Elem)
	case schema.KindMap:
		if err := tm.CheckAccessible(ref.Key); err != nil {
			return err
		}
		return tm.CheckAccessible(ref.Elem)
	case schema.KindFunc:
		for _, p := range ref.Params {
			if err := tm.CheckAccessible(p); err != nil {
				return err
			}
		}
		for _, r := range ref.Results {
			if err := tm.CheckAccessible(r); err != nil {
				return err
			}
		}
	case schema.KindInterface:
	default:
		return fmt.Errorf("unknown type kind %d", int(ref.Kind))
	}
	return nil
}

func (tm *TypeMapper) mapType(ref *schema.TypeRef) (*jen.Statement, error) {
	switch ref.Kind {
	case schema.KindNamed:
		var s *jen.Statement
		if ref.Package == "" {
			s = jen.Id(ref.Name)
		} else {
			s = jen.Qual(ref.Package, ref.Name)
		}
		if len(ref.TypeArgs) > 0 {
			args, err := tm.mapList(ref.TypeArgs)
			if err != nil {
				return nil, err
			}
			s = s.Types(args...)
		}
		return s, nil
	case schema.KindPointer:
		elem, err := tm.mapType(ref.Elem)
		if err != nil {
			return nil, err
		}
		return jen.Op("*").Add(elem), nil
	case schema.KindSlice:
		elem, err := tm.mapType(ref.Elem)
		if err != nil {
			return nil, err
		}
		return jen.Index().Add(elem), nil
	case schema.KindArray:
		elem, err := tm.mapType(ref.Elem)
		if err != nil {
			return nil, err
		}
		return jen.Index(jen.Lit(ref.Len)).Add(elem), nil
	case schema.KindMap:
		key, err := tm.mapType(ref.Key)
		if err != nil {
			return nil, err
		}
		elem, err := tm.mapType(ref.Elem)
		if err != nil {
			return nil, err
		}
		return jen.Map(key).Add(elem), nil
	case schema.KindChan:
		elem, err := tm.mapType(ref.Elem)
		if err != nil {
			return nil, err
		}
		switch ref.Dir {
		case schema.ChanSend:
			return jen.Chan().Op("<-").Add(elem), nil
		case schema.ChanRecv:
			return jen.Op("<-").Chan().Add(elem), nil
		default:
			return jen.Chan().Add(elem), nil
		}
	case schema.KindFunc:
		return tm.mapFunc(ref)
	case schema.KindInterface:
		return jen.Interface(), nil
	default:
		return nil, fmt.Errorf("unsupported type %s", ref.Expr)
	}
}

func (tm *TypeMapper) mapFunc(ref *schema.TypeRef) (*jen.Statement, error) {
	params := make([]jen.Code, len(ref.Params))
	for i, p := range ref.Params {
		if ref.Variadic && i == len(ref.Params)-1 && p.Kind == schema.KindSlice {
			elem, err := tm.mapType(p.Elem)
			if err != nil {
				return nil, err
			}
			params[i] = jen.Op("...").Add(elem)
			continue
		}
		code, err := tm.mapType(p)
		if err != nil {
			return nil, err
		}
		params[i] = code
	}

	results, err := tm.mapList(ref.Results)
	if err != nil {
		return nil, err
	}

	s := jen.Func().Params(params...)
	switch len(results) {
	case 0:
	case 1:
		s = s.Add(results[0])
	default:
		s = s.Params(results...)
	}
	return s, nil
}

func (tm *TypeMapper) mapList(refs []*schema.TypeRef) ([]jen.Code, error) {
	out := make([]jen.Code, len(refs))
	for i, ref := range refs {
		code, err := tm.mapType(ref)
		if err != nil {
			return nil, err
		}
		out[i] = code
	}
	return out, nil
}
