package scan

import (
	"bytes"
	"go/ast"
	"go/printer"
	"go/token"
	"path"
	"strconv"
	"strings"

	"github.com/conduit-lang/refproxy/internal/orm/schema"
)

var predeclared = map[string]bool{
	"any": true, "bool": true, "byte": true, "comparable": true,
	"complex64": true, "complex128": true, "error": true,
	"float32": true, "float64": true,
	"int": true, "int8": true, "int16": true, "int32": true, "int64": true,
	"rune": true, "string": true,
	"uint": true, "uint8": true, "uint16": true, "uint32": true, "uint64": true, "uintptr": true,
}

type importRef struct {
	path string
	name string
}

// importTable maps the local names of a file's imports to their paths
type importTable map[string]importRef

func newImportTable(f *ast.File) importTable {
	t := make(importTable)
	for _, spec := range f.Imports {
		p, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			continue
		}
		name := guessPackageName(p)
		local := name
		if spec.Name != nil {
			local = spec.Name.Name
		}
		if local == "_" || local == "." {
			continue
		}
		t[local] = importRef{path: p, name: name}
	}
	return t
}

// guessPackageName derives a package name from an import path the way goimports does
func guessPackageName(importPath string) string {
	base := path.Base(importPath)
	if len(base) > 1 && base[0] == 'v' && isDigits(base[1:]) {
		base = path.Base(path.Dir(importPath))
	}
	base = strings.TrimPrefix(base, "go-")
	base = strings.TrimSuffix(base, ".go")
	if i := strings.IndexAny(base, ".-"); i >= 0 {
		base = base[:i]
	}
	return base
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// typeConverter turns type expressions of one file into TypeRefs
type typeConverter struct {
	pkgPath string
	pkgName string
	imports importTable
	fset    *token.FileSet
}

func (c typeConverter) convertParam(expr ast.Expr) (*schema.TypeRef, bool) {
	if ell, ok := expr.(*ast.Ellipsis); ok {
		return schema.SliceOf(c.convert(ell.Elt)), true
	}
	return c.convert(expr), false
}

func (c typeConverter) convert(expr ast.Expr) *schema.TypeRef {
	switch t := expr.(type) {
	case *ast.Ident:
		if predeclared[t.Name] {
			return schema.Builtin(t.Name)
		}
		return schema.Named(c.pkgPath, c.pkgName, t.Name)
	case *ast.SelectorExpr:
		pkg, ok := t.X.(*ast.Ident)
		if !ok {
			return c.unsupported(expr)
		}
		imp, ok := c.imports[pkg.Name]
		if !ok {
			return c.unsupported(expr)
		}
		return schema.Named(imp.path, imp.name, t.Sel.Name)
	case *ast.StarExpr:
		return schema.PointerTo(c.convert(t.X))
	case *ast.ParenExpr:
		return c.convert(t.X)
	case *ast.ArrayType:
		if t.Len == nil {
			return schema.SliceOf(c.convert(t.Elt))
		}
		lit, ok := t.Len.(*ast.BasicLit)
		if !ok || lit.Kind != token.INT {
			return c.unsupported(expr)
		}
		n, err := strconv.Atoi(lit.Value)
		if err != nil {
			return c.unsupported(expr)
		}
		return &schema.TypeRef{Kind: schema.KindArray, Len: n, Elem: c.convert(t.Elt)}
	case *ast.MapType:
		return schema.MapOf(c.convert(t.Key), c.convert(t.Value))
	case *ast.ChanType:
		dir := schema.ChanBoth
		switch t.Dir {
		case ast.SEND:
			dir = schema.ChanSend
		case ast.RECV:
			dir = schema.ChanRecv
		}
		return &schema.TypeRef{Kind: schema.KindChan, Dir: dir, Elem: c.convert(t.Value)}
	case *ast.FuncType:
		return c.convertFunc(t)
	case *ast.InterfaceType:
		if t.Methods == nil || len(t.Methods.List) == 0 {
			return &schema.TypeRef{Kind: schema.KindInterface}
		}
		return c.unsupported(expr)
	case *ast.IndexExpr:
		base := c.convert(t.X)
		if base.Kind != schema.KindNamed {
			return c.unsupported(expr)
		}
		base.TypeArgs = []*schema.TypeRef{c.convert(t.Index)}
		return base
	case *ast.IndexListExpr:
		base := c.convert(t.X)
		if base.Kind != schema.KindNamed {
			return c.unsupported(expr)
		}
		for _, idx := range t.Indices {
			base.TypeArgs = append(base.TypeArgs, c.convert(idx))
		}
		return base
	default:
		return c.unsupported(expr)
	}
}

func (c typeConverter) convertFunc(ft *ast.FuncType) *schema.TypeRef {
	ref := &schema.TypeRef{Kind: schema.KindFunc}
	if ft.TypeParams != nil {
		return c.unsupported(ft)
	}
	if ft.Params != nil {
		for _, field := range ft.Params.List {
			p, variadic := c.convertParam(field.Type)
			if variadic {
				ref.Variadic = true
			}
			for i := 0; i < max(1, len(field.Names)); i++ {
				ref.Params = append(ref.Params, p)
			}
		}
	}
	if ft.Results != nil {
		for _, field := range ft.Results.List {
			r := c.convert(field.Type)
			for i := 0; i < max(1, len(field.Names)); i++ {
				ref.Results = append(ref.Results, r)
			}
		}
	}
	return ref
}

func (c typeConverter) unsupported(expr ast.Expr) *schema.TypeRef {
	var b bytes.Buffer
	_ = printer.Fprint(&b, c.fset, expr)
	return schema.Unsupported(b.String())
}
