package codegen

import (
	"bytes"
	"go/ast"
	"go/format"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"strings"
	"testing"

	cerrors "github.com/conduit-lang/fieldmeta/internal/compiler/errors"
	"github.com/conduit-lang/fieldmeta/runtime/metadata"
)

func rangeSnapshot(t *testing.T) *metadata.Snapshot {
	t.Helper()
	r := metadata.NewRegistry()
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}

	must(r.DeclareKind("range", metadata.Tuple{int64(0), int64(0)}))
	must(r.DeclareKind("max_id", nil))
	must(r.Set("range", "Model", "a", metadata.Tuple{int64(1), int64(4)}))
	must(r.Set("range", "Model", "b", metadata.Tuple{int64(4), int64(9)}))
	must(r.SetTypeDefault("range", "Point", metadata.List{1.5, "x"}))
	must(r.Set("max_id", "Model", "a", metadata.Call{Name: "between", Args: []metadata.Value{int64(1), metadata.Symbol("n")}}))
	r.SetFields("Model", []string{"a", "b"})

	snap := r.Snapshot()
	snap.SourceHash = "abc123"
	return snap
}

func typeCheck(t *testing.T, src []byte) *types.Package {
	t.Helper()
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "metadata.go", src, parser.ParseComments)
	if err != nil {
		t.Fatalf("generated code does not parse: %v\n%s", err, src)
	}
	conf := types.Config{Importer: importer.Default()}
	pkg, err := conf.Check("metadata", fset, []*ast.File{file}, nil)
	if err != nil {
		t.Fatalf("generated code does not type-check: %v\n%s", err, src)
	}
	return pkg
}

func TestGenerate_TypeChecks(t *testing.T) {
	src, err := NewGenerator().Generate(rangeSnapshot(t), "metadata")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	pkg := typeCheck(t, src)
	for _, name := range []string{"Range", "RangeAll", "RangeOf", "MaxID", "MaxIDAll", "MaxIDOf", "FieldOrder", "Kinds", "Record"} {
		if pkg.Scope().Lookup(name) == nil {
			t.Errorf("generated package lacks %s", name)
		}
	}

	sig, ok := pkg.Scope().Lookup("RangeAll").Type().(*types.Signature)
	if !ok || sig.Params().Len() != 1 || sig.Results().Len() != 1 {
		t.Errorf("RangeAll has type %v", pkg.Scope().Lookup("RangeAll").Type())
	}
}

func TestGenerate_Contents(t *testing.T) {
	src, err := NewGenerator().Generate(rangeSnapshot(t), "metadata")
	if err != nil {
		t.Fatal(err)
	}
	code := string(src)

	expected := []string{
		"// Code generated by fieldmeta. DO NOT EDIT.",
		"// Source hash: abc123",
		"package metadata",
		`"Model": {"a", "b"},`,
		`var Kinds = []string{"range", "max_id"}`,
		`{"Model", "a"}: Tuple{int64(1), int64(4)},`,
		`"Point": List{float64(1.5), "x"},`,
		"var rangeDefault any = Tuple{int64(0), int64(0)}",
		"var maxIDDefault any = nil",
		`{"Model", "a"}: Call{Name: "between", Args: []any{int64(1), Symbol("n")}},`,
		"func Range(typeName, field string) any {",
		"func MaxIDOf(rec Record, field string) any {",
	}
	for _, want := range expected {
		if !strings.Contains(code, want) {
			t.Errorf("generated code missing %q\n%s", want, code)
		}
	}
}

func TestGenerate_IsFormattedAndDeterministic(t *testing.T) {
	first, err := NewGenerator().Generate(rangeSnapshot(t), "metadata")
	if err != nil {
		t.Fatal(err)
	}

	formatted, err := format.Source(first)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, formatted) {
		t.Error("generated code is not gofmt-clean")
	}

	g := NewGenerator()
	for i := 0; i < 3; i++ {
		again, err := g.Generate(rangeSnapshot(t), "metadata")
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("run %d produced different output", i)
		}
	}
}

func TestGenerate_EmptySnapshot(t *testing.T) {
	src, err := NewGenerator().Generate(&metadata.Snapshot{}, "fields")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	typeCheck(t, src)
}

func TestGenerate_InvalidIdentifiers(t *testing.T) {
	tests := []struct {
		name  string
		pkg   string
		kinds []string
	}{
		{"package keyword", "func", []string{"range"}},
		{"package with dash", "my-pkg", []string{"range"}},
		{"blank package", "_", []string{"range"}},
		{"kind of underscores", "metadata", []string{"__"}},
		{"kinds colliding", "metadata", []string{"max_len", "maxLen"}},
		{"kind colliding with a suffix", "metadata", []string{"range", "range_all"}},
		{"kind colliding with a runtime type", "metadata", []string{"record"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := &metadata.Snapshot{}
			for _, k := range tt.kinds {
				snap.Kinds = append(snap.Kinds, metadata.KindSnapshot{Name: k})
			}

			_, err := NewGenerator().Generate(snap, tt.pkg)
			if !cerrors.HasCode(err, cerrors.ErrInvalidIdentifier) {
				t.Errorf("expected %s, got %v", cerrors.ErrInvalidIdentifier, err)
			}
		})
	}
}

func TestToGoName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"range", "Range"},
		{"max_len", "MaxLen"},
		{"user_id", "UserID"},
		{"label", "Label"},
		{"_private", "Private"},
		{"é", "É"},
	}

	for _, tt := range tests {
		if got := toGoName(tt.in); got != tt.want {
			t.Errorf("toGoName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGoValue(t *testing.T) {
	tests := []struct {
		in   metadata.Value
		want string
	}{
		{nil, "nil"},
		{int64(-3), "int64(-3)"},
		{2.0, "float64(2)"},
		{"a\"b", `"a\"b"`},
		{true, "true"},
		{metadata.Symbol("kg"), `Symbol("kg")`},
		{metadata.Tuple{}, "Tuple{}"},
		{metadata.List{nil, int64(1)}, "List{nil, int64(1)}"},
	}

	for _, tt := range tests {
		if got := goValue(tt.in); got != tt.want {
			t.Errorf("goValue(%#v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
