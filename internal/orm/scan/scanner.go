// Package scan builds class descriptors from Go source.
//
// A struct is mapped when its doc comment carries the "odm:document" or
// "odm:mapped-superclass" marker. Persisted members are tagged with odm:"<kind>"
// where kind is one of id, field, reference, children, referrers or child.
package scan

import (
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/mod/modfile"
	"golang.org/x/sync/errgroup"

	"github.com/conduit-lang/refproxy/internal/orm/schema"
)

const (
	// DocumentMarker marks a struct as a mapped document class
	DocumentMarker = "odm:document"
	// MappedSuperclassMarker marks an abstract base whose mappings are inherited by embedding
	MappedSuperclassMarker = "odm:mapped-superclass"
	// FinalMarker excludes a method from proxy forwarding
	FinalMarker = "odm:final"

	tagKey = "odm"
)

// ErrNoModule is returned when no go.mod can be found above a directory
var ErrNoModule = errors.New("go.mod not found")

// Scanner reads mapped classes from the packages of one Go module
type Scanner struct {
	root       string
	modulePath string
	logger     *zap.Logger
}

// New creates a scanner for the module rooted at root
func New(root string, logger *zap.Logger) (*Scanner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving module root: %w", err)
	}

	modPath, err := ReadModulePath(filepath.Join(abs, "go.mod"))
	if err != nil {
		return nil, err
	}

	return &Scanner{root: abs, modulePath: modPath, logger: logger}, nil
}

// NewFromDir creates a scanner for the module containing dir
func NewFromDir(dir string, logger *zap.Logger) (*Scanner, error) {
	root, err := FindModuleRoot(dir)
	if err != nil {
		return nil, err
	}
	return New(root, logger)
}

// ModulePath returns the module path read from go.mod
func (s *Scanner) ModulePath() string {
	return s.modulePath
}

// Root returns the absolute module root
func (s *Scanner) Root() string {
	return s.root
}

// ImportPath returns the import path of a package directory inside the module
func (s *Scanner) ImportPath(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(s.root, abs)
	if err != nil {
		return "", err
	}
	if rel == "." {
		return s.modulePath, nil
	}
	if strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%s is outside module %s", dir, s.modulePath)
	}
	return s.modulePath + "/" + filepath.ToSlash(rel), nil
}

// ScanDirs scans several package directories concurrently.
// Descriptors are returned sorted by qualified name.
func (s *Scanner) ScanDirs(ctx context.Context, dirs []string) ([]*schema.ClassDescriptor, error) {
	results := make([][]*schema.ClassDescriptor, len(dirs))

	g, ctx := errgroup.WithContext(ctx)
	for i, dir := range dirs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			descs, err := s.ScanDir(dir)
			if err != nil {
				return err
			}
			results[i] = descs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []*schema.ClassDescriptor
	for _, descs := range results {
		for _, desc := range descs {
			if seen[desc.Name] {
				continue
			}
			seen[desc.Name] = true
			out = append(out, desc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ScanDir parses the package in dir and returns its mapped classes sorted by type name
func (s *Scanner) ScanDir(dir string) ([]*schema.ClassDescriptor, error) {
	importPath, err := s.ImportPath(dir)
	if err != nil {
		return nil, err
	}

	fset := token.NewFileSet()
	pkgs, err := parser.ParseDir(fset, dir, func(fi fs.FileInfo) bool {
		return !strings.HasSuffix(fi.Name(), "_test.go")
	}, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", dir, err)
	}

	var pkg *ast.Package
	for name, p := range pkgs {
		if strings.HasSuffix(name, "_test") {
			continue
		}
		pkg = p
		break
	}
	if pkg == nil {
		return nil, nil
	}

	p := &packageScan{
		scanner:    s,
		fset:       fset,
		importPath: importPath,
		name:       pkg.Name,
		classes:    make(map[string]*classScan),
	}

	files := make([]string, 0, len(pkg.Files))
	for path := range pkg.Files {
		files = append(files, path)
	}
	sort.Strings(files)

	for _, path := range files {
		f := pkg.Files[path]
		if ast.IsGenerated(f) {
			continue
		}
		p.collectTypes(path, f)
	}
	for _, path := range files {
		f := pkg.Files[path]
		if ast.IsGenerated(f) {
			continue
		}
		p.collectFuncs(f)
	}

	return p.descriptors(), nil
}

// FindModuleRoot walks up from dir to the directory containing go.mod
func FindModuleRoot(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(abs, "go.mod")); err == nil {
			return abs, nil
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", fmt.Errorf("%w above %s", ErrNoModule, dir)
		}
		abs = parent
	}
}

// ReadModulePath returns the module path declared in a go.mod file
func ReadModulePath(goModPath string) (string, error) {
	data, err := os.ReadFile(goModPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNoModule, goModPath)
		}
		return "", err
	}
	modPath := modfile.ModulePath(data)
	if modPath == "" {
		return "", fmt.Errorf("cannot find module path in %s", goModPath)
	}
	return modPath, nil
}

type classScan struct {
	desc     *schema.ClassDescriptor
	embedded []string
	imports  importTable
}

type packageScan struct {
	scanner    *Scanner
	fset       *token.FileSet
	importPath string
	name       string
	classes    map[string]*classScan
}

func (p *packageScan) collectTypes(path string, f *ast.File) {
	imports := newImportTable(f)

	for _, decl := range f.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.TYPE {
			continue
		}
		for _, spec := range gd.Specs {
			ts, ok := spec.(*ast.TypeSpec)
			if !ok {
				continue
			}
			st, ok := ts.Type.(*ast.StructType)
			if !ok {
				continue
			}

			document := hasMarker(ts.Doc, DocumentMarker) || hasMarker(gd.Doc, DocumentMarker)
			superclass := hasMarker(ts.Doc, MappedSuperclassMarker) || hasMarker(gd.Doc, MappedSuperclassMarker)
			if !document && !superclass {
				continue
			}
			if ts.TypeParams != nil && len(ts.TypeParams.List) > 0 {
				p.scanner.logger.Warn("skipping generic document type",
					zap.String("type", ts.Name.Name),
					zap.String("path", path))
				continue
			}

			desc := schema.NewClassDescriptor(p.importPath, p.name, ts.Name.Name)
			desc.FilePath = path
			desc.MappedSuperclass = superclass && !document

			cs := &classScan{desc: desc, imports: imports}
			p.collectFields(cs, st)
			p.classes[ts.Name.Name] = cs
		}
	}
}

func (p *packageScan) collectFields(cs *classScan, st *ast.StructType) {
	conv := typeConverter{pkgPath: p.importPath, pkgName: p.name, imports: cs.imports, fset: p.fset}

	for _, fld := range st.Fields.List {
		if len(fld.Names) == 0 {
			if name, ok := embeddedName(fld.Type); ok {
				cs.embedded = append(cs.embedded, name)
			}
			continue
		}

		kind, ok := fieldKind(fld)
		if !ok {
			continue
		}

		ref := conv.convert(fld.Type)
		for _, ident := range fld.Names {
			p.addMapping(cs.desc, ident.Name, kind, ref)
		}
	}
}

func (p *packageScan) addMapping(desc *schema.ClassDescriptor, name, kind string, ref *schema.TypeRef) {
	switch kind {
	case "id":
		if desc.Identifier != nil {
			p.scanner.logger.Warn("ignoring second identifier",
				zap.String("class", desc.Name),
				zap.String("field", name))
			return
		}
		desc.Identifier = &schema.FieldMapping{Name: name, Type: ref}
	case "field":
		desc.Fields = append(desc.Fields, &schema.FieldMapping{Name: name, Type: ref})
	default:
		relKind, err := schema.ParseRelationKind(kind)
		if err != nil {
			p.scanner.logger.Warn("ignoring field with unknown mapping",
				zap.String("class", desc.Name),
				zap.String("field", name),
				zap.String("kind", kind))
			return
		}
		desc.Relations = append(desc.Relations, &schema.RelationMapping{
			Name:   name,
			Kind:   relKind,
			Target: relationTarget(ref),
			Type:   ref,
		})
	}
}

func (p *packageScan) collectFuncs(f *ast.File) {
	imports := newImportTable(f)
	conv := typeConverter{pkgPath: p.importPath, pkgName: p.name, imports: imports, fset: p.fset}

	for _, decl := range f.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok {
			continue
		}

		if fd.Recv == nil || len(fd.Recv.List) == 0 {
			p.collectConstructor(fd, conv)
			continue
		}

		recvName, pointer, ok := receiverTypeName(fd.Recv.List[0].Type)
		if !ok {
			continue
		}
		cs, ok := p.classes[recvName]
		if !ok {
			continue
		}

		m := methodDescriptor(fd, conv)
		m.PointerReceiver = pointer
		cs.desc.Methods = append(cs.desc.Methods, m)
	}
}

// collectConstructor records New<Type> functions as constructors of their class
func (p *packageScan) collectConstructor(fd *ast.FuncDecl, conv typeConverter) {
	name := fd.Name.Name
	if !strings.HasPrefix(name, "New") {
		return
	}
	cs, ok := p.classes[strings.TrimPrefix(name, "New")]
	if !ok {
		return
	}

	m := methodDescriptor(fd, conv)
	m.Constructor = true
	m.Static = true
	cs.desc.Methods = append(cs.desc.Methods, m)
}

func (p *packageScan) descriptors() []*schema.ClassDescriptor {
	names := make([]string, 0, len(p.classes))
	for name := range p.classes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		p.inherit(p.classes[name], make(map[string]bool))
	}

	out := make([]*schema.ClassDescriptor, 0, len(names))
	for _, name := range names {
		out = append(out, p.classes[name].desc)
	}
	return out
}

// inherit merges the mappings and methods of embedded mapped structs of the same package.
// Embedded members come first; members declared on the class itself win.
func (p *packageScan) inherit(cs *classScan, visiting map[string]bool) {
	if len(cs.embedded) == 0 || visiting[cs.desc.TypeName] {
		return
	}
	visiting[cs.desc.TypeName] = true

	embedded := cs.embedded
	cs.embedded = nil

	for _, name := range embedded {
		parent, ok := p.classes[name]
		if !ok {
			continue
		}
		p.inherit(parent, visiting)
		mergeParent(cs.desc, parent.desc)
	}
}

func mergeParent(desc, parent *schema.ClassDescriptor) {
	taken := make(map[string]bool)
	if desc.Identifier != nil {
		taken[desc.Identifier.Name] = true
	}
	for _, f := range desc.Fields {
		taken[f.Name] = true
	}
	for _, r := range desc.Relations {
		taken[r.Name] = true
	}

	if desc.Identifier == nil && parent.Identifier != nil && !taken[parent.Identifier.Name] {
		desc.Identifier = parent.Identifier
		taken[parent.Identifier.Name] = true
	}

	var fields []*schema.FieldMapping
	for _, f := range parent.Fields {
		if !taken[f.Name] {
			fields = append(fields, f)
		}
	}
	desc.Fields = append(fields, desc.Fields...)

	var relations []*schema.RelationMapping
	for _, r := range parent.Relations {
		if !taken[r.Name] {
			relations = append(relations, r)
		}
	}
	desc.Relations = append(relations, desc.Relations...)

	for _, m := range parent.Methods {
		if m.Constructor {
			continue
		}
		if _, exists := desc.Method(m.Name); exists {
			continue
		}
		desc.Methods = append(desc.Methods, m)
	}
}

func methodDescriptor(fd *ast.FuncDecl, conv typeConverter) *schema.MethodDescriptor {
	m := &schema.MethodDescriptor{
		Name:   fd.Name.Name,
		Public: ast.IsExported(fd.Name.Name),
		Final:  hasMarker(fd.Doc, FinalMarker),
	}

	if fd.Type.Params != nil {
		for _, field := range fd.Type.Params.List {
			ref, variadic := conv.convertParam(field.Type)
			if len(field.Names) == 0 {
				m.Params = append(m.Params, schema.Param{Type: ref, Variadic: variadic})
				continue
			}
			for _, ident := range field.Names {
				m.Params = append(m.Params, schema.Param{Name: ident.Name, Type: ref, Variadic: variadic})
			}
		}
	}

	if fd.Type.Results != nil {
		for _, field := range fd.Type.Results.List {
			ref := conv.convert(field.Type)
			n := len(field.Names)
			if n == 0 {
				n = 1
			}
			for i := 0; i < n; i++ {
				m.Results = append(m.Results, ref)
			}
		}
	}

	m.ReturnsReference = len(m.Results) > 0 && m.Results[0].IsPointer()
	return m
}

func fieldKind(fld *ast.Field) (string, bool) {
	if fld.Tag == nil {
		return "", false
	}
	tag := reflect.StructTag(strings.Trim(fld.Tag.Value, "`"))
	value, ok := tag.Lookup(tagKey)
	if !ok || value == "-" {
		return "", false
	}
	kind, _, _ := strings.Cut(value, ",")
	kind = strings.TrimSpace(kind)
	if kind == "" {
		kind = "field"
	}
	return kind, true
}

func hasMarker(cg *ast.CommentGroup, marker string) bool {
	if cg == nil {
		return false
	}
	for _, c := range cg.List {
		text := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(c.Text, "//"), "/*"))
		if strings.HasPrefix(text, marker) {
			return true
		}
	}
	return false
}

func receiverTypeName(recv ast.Expr) (name string, pointer bool, ok bool) {
	switch t := recv.(type) {
	case *ast.Ident:
		return t.Name, false, true
	case *ast.StarExpr:
		id, ok := t.X.(*ast.Ident)
		if !ok {
			return "", false, false
		}
		return id.Name, true, true
	default:
		return "", false, false
	}
}

// embeddedName reports value-embedded local types; pointer embeds are not inherited
// since a freshly allocated entity would leave them nil.
func embeddedName(expr ast.Expr) (string, bool) {
	id, ok := expr.(*ast.Ident)
	if !ok {
		return "", false
	}
	return id.Name, true
}

// relationTarget finds the named class a relation points to through pointers, slices and maps
func relationTarget(ref *schema.TypeRef) string {
	for ref != nil {
		switch ref.Kind {
		case schema.KindPointer, schema.KindSlice, schema.KindArray, schema.KindMap:
			ref = ref.Elem
		case schema.KindNamed:
			if ref.Package == "" {
				return ""
			}
			return schema.QualifiedName(ref.Package, ref.Name)
		default:
			return ""
		}
	}
	return ""
}
