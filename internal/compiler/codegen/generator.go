// Package codegen generates a Go package exposing compiled field metadata: one
// lookup table per metadata kind plus accessor functions that resolve a field's
// value with the same precedence as the runtime registry.
package codegen

import (
	"bytes"
	"fmt"
	"go/format"
	"go/token"
	"strings"
	"unicode"

	cerrors "github.com/conduit-lang/fieldmeta/internal/compiler/errors"
	"github.com/conduit-lang/fieldmeta/runtime/metadata"
)

// Version identifies the generator output format. Build caches key on it.
const Version = "fieldmeta-codegen/1"

// names the generated package declares for its own use
var reservedNames = []string{"Record", "Symbol", "Tuple", "List", "Call", "FieldOrder", "Kinds"}

// Generator transforms a registry snapshot into Go source
type Generator struct {
	buf    *bytes.Buffer
	indent int
}

// NewGenerator creates a new code generator
func NewGenerator() *Generator {
	return &Generator{
		buf: &bytes.Buffer{},
	}
}

// kindNames are the generated identifiers of one kind
type kindNames struct {
	accessor string // Range
	all      string // RangeAll
	of       string // RangeOf
	entries  string // rangeEntries
	types    string // rangeTypeDefaults
	def      string // rangeDefault
}

// Generate renders the accessor package for snap. The output is gofmt-clean and
// depends only on the snapshot, so equal snapshots give equal bytes.
func (g *Generator) Generate(snap *metadata.Snapshot, pkg string) ([]byte, error) {
	if !token.IsIdentifier(pkg) || pkg == "_" {
		return nil, cerrors.NewInvalidIdentifier(pkg, "the package name")
	}

	names, err := g.assignNames(snap)
	if err != nil {
		return nil, err
	}

	g.reset()
	g.writeHeader(snap, pkg)
	g.writeRuntimeTypes()
	g.writeFieldOrder(snap)
	for i := range snap.Kinds {
		g.writeKind(&snap.Kinds[i], names[i])
	}

	formatted, err := format.Source(g.buf.Bytes())
	if err != nil {
		return nil, cerrors.NewFormatFailed(err)
	}
	return formatted, nil
}

// assignNames derives the identifiers of every kind and rejects collisions
func (g *Generator) assignNames(snap *metadata.Snapshot) ([]kindNames, error) {
	taken := make(map[string]string)
	for _, name := range reservedNames {
		taken[name] = "the generated package"
	}

	out := make([]kindNames, len(snap.Kinds))
	for i, k := range snap.Kinds {
		exported := toGoName(k.Name)
		if !token.IsIdentifier(exported) || !token.IsExported(exported) {
			return nil, cerrors.NewInvalidIdentifier(k.Name, "a metadata kind")
		}
		r := []rune(exported)
		unexported := string(unicode.ToLower(r[0])) + string(r[1:])

		n := kindNames{
			accessor: exported,
			all:      exported + "All",
			of:       exported + "Of",
			entries:  unexported + "Entries",
			types:    unexported + "TypeDefaults",
			def:      unexported + "Default",
		}
		for _, id := range []string{n.accessor, n.all, n.of, n.entries, n.types, n.def} {
			if owner, clash := taken[id]; clash {
				return nil, cerrors.NewInvalidIdentifier(k.Name, "a metadata kind").
					WithSuggestion(fmt.Sprintf("'%s' is already generated for %s", id, owner))
			}
			taken[id] = "kind " + k.Name
		}
		out[i] = n
	}
	return out, nil
}

func (g *Generator) writeHeader(snap *metadata.Snapshot, pkg string) {
	g.writeLine("// Code generated by fieldmeta. DO NOT EDIT.")
	if snap.SourceHash != "" {
		g.writeLine("// Source hash: %s", snap.SourceHash)
	}
	g.writeLine("")
	g.writeLine("// Package %s exposes compiled field metadata.", pkg)
	g.writeLine("package %s", pkg)
	g.writeLine("")
}

func (g *Generator) writeRuntimeTypes() {
	g.writeLine("// Record is implemented by values whose dynamic type carries field metadata")
	g.writeLine("type Record interface {")
	g.indent++
	g.writeLine("RecordType() string")
	g.indent--
	g.writeLine("}")
	g.writeLine("")
	g.writeLine("// Symbol is an identifier used as a metadata value")
	g.writeLine("type Symbol string")
	g.writeLine("")
	g.writeLine("// Tuple is a fixed-arity metadata value")
	g.writeLine("type Tuple []any")
	g.writeLine("")
	g.writeLine("// List is a sequence metadata value")
	g.writeLine("type List []any")
	g.writeLine("")
	g.writeLine("// Call is a constructor-style metadata value such as between(1, 5)")
	g.writeLine("type Call struct {")
	g.indent++
	g.writeLine("Name string")
	g.writeLine("Args []any")
	g.indent--
	g.writeLine("}")
	g.writeLine("")
	g.writeLine("type fieldKey struct {")
	g.indent++
	g.writeLine("typ   string")
	g.writeLine("field string")
	g.indent--
	g.writeLine("}")
	g.writeLine("")
}

func (g *Generator) writeFieldOrder(snap *metadata.Snapshot) {
	g.writeLine("// FieldOrder lists the fields of every declared record in declaration order")
	g.writeLine("var FieldOrder = map[string][]string{")
	g.indent++
	for _, rec := range snap.Records {
		quoted := make([]string, len(rec.Fields))
		for i, f := range rec.Fields {
			quoted[i] = fmt.Sprintf("%q", f)
		}
		g.writeLine("%q: {%s},", rec.Name, strings.Join(quoted, ", "))
	}
	g.indent--
	g.writeLine("}")
	g.writeLine("")

	kinds := make([]string, len(snap.Kinds))
	for i, k := range snap.Kinds {
		kinds[i] = fmt.Sprintf("%q", k.Name)
	}
	g.writeLine("// Kinds lists the metadata kinds in declaration order")
	g.writeLine("var Kinds = []string{%s}", strings.Join(kinds, ", "))
	g.writeLine("")
}

func (g *Generator) writeKind(k *metadata.KindSnapshot, n kindNames) {
	g.writeLine("var %s = map[fieldKey]any{", n.entries)
	g.indent++
	for _, e := range k.Entries {
		g.writeLine("{%q, %q}: %s,", e.Type, e.Field, goValue(e.Value))
	}
	g.indent--
	g.writeLine("}")
	g.writeLine("")

	g.writeLine("var %s = map[string]any{", n.types)
	g.indent++
	for _, td := range k.TypeDefaults {
		g.writeLine("%q: %s,", td.Type, goValue(td.Value))
	}
	g.indent--
	g.writeLine("}")
	g.writeLine("")

	g.writeLine("var %s any = %s", n.def, goValue(k.Default))
	g.writeLine("")

	g.writeLine("// %s returns the %s metadata of a field: its own entry, else the", n.accessor, k.Name)
	g.writeLine("// default of its type, else the default of the kind")
	g.writeLine("func %s(typeName, field string) any {", n.accessor)
	g.indent++
	g.writeLine("if v, ok := %s[fieldKey{typeName, field}]; ok {", n.entries)
	g.indent++
	g.writeLine("return v")
	g.indent--
	g.writeLine("}")
	g.writeLine("if v, ok := %s[typeName]; ok {", n.types)
	g.indent++
	g.writeLine("return v")
	g.indent--
	g.writeLine("}")
	g.writeLine("return %s", n.def)
	g.indent--
	g.writeLine("}")
	g.writeLine("")

	g.writeLine("// %s returns the %s metadata of every field of typeName, in field order", n.all, k.Name)
	g.writeLine("func %s(typeName string) []any {", n.all)
	g.indent++
	g.writeLine("fields := FieldOrder[typeName]")
	g.writeLine("out := make([]any, len(fields))")
	g.writeLine("for i, field := range fields {")
	g.indent++
	g.writeLine("out[i] = %s(typeName, field)", n.accessor)
	g.indent--
	g.writeLine("}")
	g.writeLine("return out")
	g.indent--
	g.writeLine("}")
	g.writeLine("")

	g.writeLine("// %s resolves the %s metadata of a field of rec's record type", n.of, k.Name)
	g.writeLine("func %s(rec Record, field string) any {", n.of)
	g.indent++
	g.writeLine("return %s(rec.RecordType(), field)", n.accessor)
	g.indent--
	g.writeLine("}")
	g.writeLine("")
}

// reset clears the generator state
func (g *Generator) reset() {
	g.buf.Reset()
	g.indent = 0
}

// writeLine writes a formatted line with proper indentation
func (g *Generator) writeLine(format string, args ...interface{}) {
	if format == "" {
		g.buf.WriteString("\n")
		return
	}

	for i := 0; i < g.indent; i++ {
		g.buf.WriteString("\t")
	}

	if len(args) > 0 {
		g.buf.WriteString(fmt.Sprintf(format, args...))
	} else {
		g.buf.WriteString(format)
	}
	g.buf.WriteString("\n")
}

// toGoName converts a snake_case kind name to PascalCase
func toGoName(name string) string {
	// Common initialisms that should be all caps in Go
	initialisms := map[string]string{
		"id":   "ID",
		"url":  "URL",
		"uri":  "URI",
		"uuid": "UUID",
		"api":  "API",
		"json": "JSON",
		"sql":  "SQL",
		"ip":   "IP",
	}

	parts := strings.Split(name, "_")
	for i, part := range parts {
		if len(part) == 0 {
			continue
		}
		if upper, ok := initialisms[strings.ToLower(part)]; ok {
			parts[i] = upper
			continue
		}
		r := []rune(part)
		parts[i] = strings.ToUpper(string(r[0])) + string(r[1:])
	}
	return strings.Join(parts, "")
}
