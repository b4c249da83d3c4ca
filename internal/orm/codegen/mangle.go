package codegen

import (
	"strings"
	"unicode"
)

// ProxySuffix is appended to every mangled class name
const ProxySuffix = "ReferenceProxy"

// MangledName flattens a qualified class name into a Go identifier by dropping every
// separator and appending ProxySuffix, e.g. Foo\Bar becomes FooBarReferenceProxy.
func MangledName(className string) string {
	var b strings.Builder
	b.Grow(len(className) + len(ProxySuffix))
	for _, r := range className {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	b.WriteString(ProxySuffix)
	return b.String()
}

// constructorName returns the name of the generated constructor for a proxy type
func constructorName(mangled string) string {
	return "new" + strings.ToUpper(mangled[:1]) + mangled[1:]
}
