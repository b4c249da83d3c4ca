package codegen

import (
	"bytes"
	"errors"
	"fmt"
	"go/ast"
	"go/token"

	"github.com/dave/jennifer/jen"
)

// RuntimePackage is the import path of the runtime generated proxies depend on
const RuntimePackage = "github.com/conduit-lang/refproxy/pkg/proxy"

// GeneratedHeader marks generated proxy files
const GeneratedHeader = "Code generated by refproxy. DO NOT EDIT."

// ErrUnexportedClass is returned for classes that cannot be referenced from the proxy package
var ErrUnexportedClass = errors.New("class is not exported")

// ErrInvalidClassName is returned when a class name does not mangle to a Go identifier
var ErrInvalidClassName = errors.New("class name does not mangle to an identifier")

// reservedNames are methods every proxy declares itself
var reservedNames = map[string]bool{
	"IsProxyInitialized": true,
	"ProxyLoad":          true,
	"ProxyIdentifier":    true,
	"ProxyClassName":     true,
	"ProxiedEntity":      true,
	"GetAttribute":       true,
	"SetAttribute":       true,
	"Entity":             true,
	SerializationHook:    true,
}

// Result contains the generated code and any warnings
type Result struct {
	MangledName    string
	Code           string
	Warnings       []string
	SkippedMethods []SkippedMethod
}

// SkippedMethod records a behavior that could not be forwarded
type SkippedMethod struct {
	Name   string
	Reason string
}

// ProxyGenerator renders proxy types into a single namespace package
type ProxyGenerator struct {
	namespace string
	types     *TypeMapper
}

// NewProxyGenerator creates a generator emitting files of package namespace
func NewProxyGenerator(namespace string) *ProxyGenerator {
	return &ProxyGenerator{
		namespace: namespace,
		types:     NewTypeMapper(),
	}
}

// Namespace returns the package name of generated files
func (g *ProxyGenerator) Namespace() string {
	return g.namespace
}

// Generate renders the proxy type for shape
func (g *ProxyGenerator) Generate(shape *ClassShape) (*Result, error) {
	if shape == nil {
		return nil, fmt.Errorf("shape cannot be nil")
	}
	if !ast.IsExported(shape.TypeName) {
		return nil, fmt.Errorf("%w: %s", ErrUnexportedClass, shape.QualifiedName)
	}

	name := MangledName(shape.QualifiedName)
	if !token.IsIdentifier(name) {
		return nil, fmt.Errorf("%w: %s mangles to %s", ErrInvalidClassName, shape.QualifiedName, name)
	}

	e := &emitter{
		shape:   shape,
		types:   g.types,
		name:    name,
		warning: []string{},
		skipped: []SkippedMethod{},
	}

	f := jen.NewFile(g.namespace)
	f.HeaderComment(GeneratedHeader)
	f.ImportName(RuntimePackage, "proxy")
	if shape.Package != "" && shape.PackageName != "" && shape.PackageName != "proxy" {
		f.ImportName(shape.Package, shape.PackageName)
	}

	e.attrs = e.interceptable()
	e.emit(f)

	buf := &bytes.Buffer{}
	if err := f.Render(buf); err != nil {
		return nil, fmt.Errorf("rendering proxy for %s: %w", shape.QualifiedName, err)
	}

	return &Result{
		MangledName:    e.name,
		Code:           buf.String(),
		Warnings:       e.warning,
		SkippedMethods: e.skipped,
	}, nil
}

type emitter struct {
	shape   *ClassShape
	types   *TypeMapper
	name    string
	attrs   []string
	warning []string
	skipped []SkippedMethod
}

// src returns a new statement naming the source type. jen statements are appended to in
// place, so every use needs its own.
func (e *emitter) src() *jen.Statement {
	if e.shape.Package == "" {
		return jen.Id(e.shape.TypeName)
	}
	return jen.Qual(e.shape.Package, e.shape.TypeName)
}

func (e *emitter) warnf(format string, args ...any) {
	e.warning = append(e.warning, fmt.Sprintf(format, args...))
}

// recv starts a method declaration on the proxy type
func (e *emitter) recv() *jen.Statement {
	return jen.Func().Params(jen.Id("p").Op("*").Id(e.name))
}

func (e *emitter) emit(f *jen.File) {
	f.Func().Id("init").Params().Block(
		jen.Qual(RuntimePackage, "Register").Call(
			jen.Lit(e.name),
			jen.Lit(e.shape.QualifiedName),
			jen.Id(constructorName(e.name)),
		),
	)
	f.Line()

	f.Var().Id("_").Qual(RuntimePackage, "Proxy").Op("=").Parens(jen.Op("*").Id(e.name)).Parens(jen.Nil())
	f.Line()

	f.Commentf("%s is a lazy reference to a %s.", e.name, e.shape.TypeName)
	f.Type().Id(e.name).Struct(
		jen.Id("entity").Op("*").Add(e.src()),
		jen.Id("state").Qual(RuntimePackage, "State"),
	)
	f.Line()

	e.emitConstructor(f)
	e.emitProxyMethods(f)
	e.emitBehaviors(f)
	e.emitSerialization(f)
	e.emitGetAttribute(f)
	e.emitSetAttribute(f)
}

// interceptable returns the exported member attributes in persisted order
func (e *emitter) interceptable() []string {
	var out []string
	for _, attr := range e.shape.PersistedAttributes {
		if !e.shape.IsMember(attr) {
			continue
		}
		if !ast.IsExported(attr) {
			e.warnf("attribute %s is not exported and is not intercepted", attr)
			continue
		}
		out = append(out, attr)
	}
	return out
}

func (e *emitter) emitConstructor(f *jen.File) {
	body := []jen.Code{
		jen.Id("p").Op(":=").Op("&").Id(e.name).Values(jen.Dict{
			jen.Id("entity"): jen.New(e.src()),
		}),
	}

	if len(e.attrs) > 0 {
		body = append(body, jen.Var().Id("zero").Add(e.src()))
		for _, attr := range e.attrs {
			body = append(body, jen.Id("p").Dot("entity").Dot(attr).Op("=").Id("zero").Dot(attr))
		}
	}

	body = append(body,
		jen.Id("p").Dot("state").Op("=").Qual(RuntimePackage, "NewState").Call(jen.Id("loader"), jen.Id("identifier")),
		jen.Return(jen.Id("p")),
	)

	f.Func().Id(constructorName(e.name)).Params(
		jen.Id("loader").Qual(RuntimePackage, "Loader"),
		jen.Id("identifier").String(),
	).Qual(RuntimePackage, "Proxy").Block(body...)
	f.Line()
}

func (e *emitter) emitProxyMethods(f *jen.File) {
	f.Add(e.recv()).Id("IsProxyInitialized").Params().Bool().Block(
		jen.Return(jen.Id("p").Dot("state").Dot("Initialized").Call()),
	)
	f.Line()

	f.Add(e.recv()).Id("ProxyLoad").Params().Error().Block(
		jen.Return(jen.Id("p").Dot("state").Dot("Load").Call(jen.Id("p"))),
	)
	f.Line()

	f.Add(e.recv()).Id("ProxyIdentifier").Params().String().Block(
		jen.Return(jen.Id("p").Dot("state").Dot("Identifier").Call()),
	)
	f.Line()

	f.Add(e.recv()).Id("ProxyClassName").Params().String().Block(
		jen.Return(jen.Lit(e.shape.QualifiedName)),
	)
	f.Line()

	f.Add(e.recv()).Id("ProxiedEntity").Params().Id("any").Block(
		jen.Return(jen.Id("p").Dot("entity")),
	)
	f.Line()

	f.Comment("Entity loads the proxy and returns the backing entity.")
	f.Add(e.recv()).Id("Entity").Params().Params(jen.Op("*").Add(e.src()), jen.Error()).Block(
		jen.If(jen.Err().Op(":=").Id("p").Dot("ProxyLoad").Call(), jen.Err().Op("!=").Nil()).Block(
			jen.Return(jen.Nil(), jen.Err()),
		),
		jen.Return(jen.Id("p").Dot("entity"), jen.Nil()),
	)
	f.Line()
}

func (e *emitter) emitBehaviors(f *jen.File) {
	for _, b := range e.shape.ForwardableBehaviors {
		if reservedNames[b.Name] {
			e.skip(b.Name, "name is reserved by the proxy type")
			continue
		}
		if err := e.emitBehavior(f, b); err != nil {
			e.skip(b.Name, err.Error())
		}
	}
}

func (e *emitter) skip(name, reason string) {
	e.skipped = append(e.skipped, SkippedMethod{Name: name, Reason: reason})
	e.warnf("method %s not forwarded: %s", name, reason)
}

func (e *emitter) emitBehavior(f *jen.File, b Behavior) error {
	params := make([]jen.Code, len(b.Params))
	args := make([]jen.Code, len(b.Params))
	for i, p := range b.Params {
		typ, err := e.types.MapParam(p)
		if err != nil {
			return fmt.Errorf("parameter %d: %w", i, err)
		}
		id := fmt.Sprintf("a%d", i)
		params[i] = jen.Id(id).Add(typ)
		args[i] = jen.Id(id)
		if p.Variadic && i == len(b.Params)-1 {
			args[i] = jen.Id(id).Op("...")
		}
	}

	results := make([]jen.Code, len(b.Results))
	for i, r := range b.Results {
		typ, err := e.types.MapType(r)
		if err != nil {
			return fmt.Errorf("result %d: %w", i, err)
		}
		results[i] = typ
	}

	call := jen.Id("p").Dot("entity").Dot(b.Name).Call(args...)
	sig := e.recv().Id(b.Name).Params(params...)

	n := len(b.Results)
	switch {
	case n > 0 && b.Results[n-1].IsError():
		named := make([]jen.Code, n)
		for i := 0; i < n-1; i++ {
			named[i] = jen.Id(fmt.Sprintf("r%d", i)).Add(results[i])
		}
		named[n-1] = jen.Err().Add(results[n-1])
		f.Add(sig).Params(named...).Block(
			jen.If(jen.Err().Op("=").Id("p").Dot("ProxyLoad").Call(), jen.Err().Op("!=").Nil()).Block(
				jen.Return(),
			),
			jen.Return(call),
		)
	case n == 0:
		f.Add(sig).Block(
			jen.Qual(RuntimePackage, "MustLoad").Call(jen.Id("p")),
			call,
		)
	default:
		if n == 1 {
			sig = sig.Add(results[0])
		} else {
			sig = sig.Params(results...)
		}
		f.Add(sig).Block(
			jen.Qual(RuntimePackage, "MustLoad").Call(jen.Id("p")),
			jen.Return(call),
		)
	}
	f.Line()
	return nil
}

func (e *emitter) emitSerialization(f *jen.File) {
	initialized := jen.Id("p").Dot("state").Dot("Initialized").Call()
	sig := e.recv().Id(SerializationHook).Params().Params(jen.Index().Byte(), jen.Error())

	if e.shape.HasCustomSerializationHook {
		f.Add(sig).Block(
			jen.Return(jen.Qual(RuntimePackage, "MarshalWithInitialized").Call(
				jen.Id("p").Dot("entity").Dot(SerializationHook),
				initialized,
			)),
		)
		f.Line()
		return
	}

	fields := jen.Dict{}
	for _, name := range e.shape.SimpleFields {
		if !e.shape.IsMember(name) || !ast.IsExported(name) {
			continue
		}
		fields[jen.Lit(name)] = jen.Id("p").Dot("entity").Dot(name)
	}

	f.Add(sig).Block(
		jen.Return(jen.Qual(RuntimePackage, "MarshalFields").Call(
			initialized,
			jen.Map(jen.String()).Id("any").Values(fields),
		)),
	)
	f.Line()
}

func (e *emitter) emitGetAttribute(f *jen.File) {
	var cases []jen.Code
	if id := e.shape.Identifier; id != "" && !e.shape.IsMember(id) {
		cases = append(cases, jen.Case(jen.Lit(id)).Block(
			jen.Return(jen.Id("p").Dot("state").Dot("Identifier").Call(), jen.Nil()),
		))
	}
	for _, attr := range e.attrs {
		cases = append(cases, jen.Case(jen.Lit(attr)).Block(
			jen.Return(jen.Id("p").Dot("entity").Dot(attr), jen.Nil()),
		))
	}

	body := []jen.Code{
		jen.If(jen.Err().Op(":=").Id("p").Dot("ProxyLoad").Call(), jen.Err().Op("!=").Nil()).Block(
			jen.Return(jen.Nil(), jen.Err()),
		),
	}
	if len(cases) > 0 {
		body = append(body, jen.Switch(jen.Id("name")).Block(cases...))
	}
	body = append(body, jen.Return(
		jen.Nil(),
		jen.Qual(RuntimePackage, "UnknownAttribute").Call(jen.Lit(e.shape.QualifiedName), jen.Id("name")),
	))

	f.Comment("GetAttribute loads the proxy and returns the named persisted attribute.")
	f.Add(e.recv()).Id("GetAttribute").Params(jen.Id("name").String()).Params(jen.Id("any"), jen.Error()).Block(body...)
	f.Line()
}

func (e *emitter) emitSetAttribute(f *jen.File) {
	var cases []jen.Code
	for _, attr := range e.attrs {
		ref := e.shape.Members[attr]
		if _, err := e.types.MapType(ref); err != nil {
			e.warnf("attribute %s cannot be set: %v", attr, err)
			continue
		}
		typ := func() *jen.Statement {
			t, _ := e.types.MapType(ref)
			return t
		}
		field := func() *jen.Statement {
			return jen.Id("p").Dot("entity").Dot(attr)
		}

		cases = append(cases, jen.Case(jen.Lit(attr)).Block(
			jen.If(jen.Id("value").Op("==").Nil()).Block(
				jen.Var().Id("zero").Add(typ()),
				field().Op("=").Id("zero"),
				jen.Return(jen.Nil()),
			),
			jen.List(jen.Id("v"), jen.Id("ok")).Op(":=").Id("value").Assert(typ()),
			jen.If(jen.Op("!").Id("ok")).Block(
				jen.Return(jen.Qual(RuntimePackage, "AttributeTypeError").Call(
					jen.Lit(e.shape.QualifiedName), jen.Id("name"), jen.Id("value"),
				)),
			),
			field().Op("=").Id("v"),
			jen.Return(jen.Nil()),
		))
	}

	body := []jen.Code{
		jen.If(jen.Err().Op(":=").Id("p").Dot("ProxyLoad").Call(), jen.Err().Op("!=").Nil()).Block(
			jen.Return(jen.Err()),
		),
	}
	if len(cases) > 0 {
		body = append(body, jen.Switch(jen.Id("name")).Block(cases...))
	}
	body = append(body, jen.Return(
		jen.Qual(RuntimePackage, "UnknownAttribute").Call(jen.Lit(e.shape.QualifiedName), jen.Id("name")),
	))

	f.Comment("SetAttribute loads the proxy and assigns the named persisted attribute.")
	f.Add(e.recv()).Id("SetAttribute").Params(jen.Id("name").String(), jen.Id("value").Id("any")).Error().Block(body...)
	f.Line()
}
