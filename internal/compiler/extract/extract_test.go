package extract

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/conduit-lang/fieldmeta/internal/compiler/ast"
	cerrors "github.com/conduit-lang/fieldmeta/internal/compiler/errors"
	"github.com/conduit-lang/fieldmeta/internal/compiler/parser"
	"github.com/conduit-lang/fieldmeta/internal/format"
)

// parseDecl parses source holding exactly one declaration
func parseDecl(t *testing.T, source string) *ast.Node {
	t.Helper()
	file, errs := parser.ParseSource(source)
	if errs.HasErrors() {
		t.Fatalf("parse errors: %v", errs)
	}
	if len(file.Children) != 1 {
		t.Fatalf("expected one declaration, got %d", len(file.Children))
	}
	return file.Children[0]
}

type entryView struct {
	Kind, Type, Field, Value string
}

func entries(r *Result) []entryView {
	out := make([]entryView, 0, len(r.Entries))
	for _, e := range r.Entries {
		out = append(out, entryView{e.Kind, e.Type, e.Field, format.Expr(e.Value)})
	}
	return out
}

func TestExtract_RangeExample(t *testing.T) {
	decl := parseDecl(t, `record Model { a: Int | (1, 4); b: Int | (4, 9) }`)

	result, err := Extract(decl, "range", Define)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if result.TypeName != "Model" {
		t.Errorf("TypeName = %q", result.TypeName)
	}
	if diff := cmp.Diff([]string{"a", "b"}, result.Fields); diff != "" {
		t.Errorf("field order (-want +got):\n%s", diff)
	}

	want := []entryView{
		{"range", "Model", "a", "(1, 4)"},
		{"range", "Model", "b", "(4, 9)"},
	}
	if diff := cmp.Diff(want, entries(result)); diff != "" {
		t.Errorf("entries (-want +got):\n%s", diff)
	}

	expected := `record Model {
    a: Int
    b: Int
}

range(Model, a) = (1, 4)
range(Model, b) = (4, 9)
`
	if got := format.Print(result.Output()); got != expected {
		t.Errorf("output mismatch.\nExpected:\n%s\nGot:\n%s", expected, got)
	}
}

func TestExtract_FieldShapes(t *testing.T) {
	decl := parseDecl(t, `record R {
    plain: Int
    annotated: Int | "x"
    defaulted: Int = 3 | "y"
    bare | "z"
    assigned = 4
    skipped: Int | nothing
}`)

	result, err := Extract(decl, "label", Define)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	want := []entryView{
		{"label", "R", "annotated", `"x"`},
		{"label", "R", "defaulted", `"y"`},
		{"label", "R", "bare", `"z"`},
	}
	if diff := cmp.Diff(want, entries(result)); diff != "" {
		t.Errorf("entries (-want +got):\n%s", diff)
	}

	fields := []string{"plain", "annotated", "defaulted", "bare", "assigned", "skipped"}
	if diff := cmp.Diff(fields, result.Fields); diff != "" {
		t.Errorf("field order (-want +got):\n%s", diff)
	}

	cleaned := `record R {
    plain: Int
    annotated: Int
    defaulted: Int = 3
    bare
    assigned = 4
    skipped: Int
}
`
	if got := format.Print(result.Decl); got != cleaned {
		t.Errorf("cleaned mismatch.\nExpected:\n%s\nGot:\n%s", cleaned, got)
	}
}

func TestExtract_RoundTripCleanliness(t *testing.T) {
	annotated := parseDecl(t, `record M { a: Int | 1; b: Int = 2 | nothing; c: Int }`)
	manual := parseDecl(t, `record M { a: Int; b: Int = 2; c: Int }`)

	result, err := Extract(annotated, "k", Define)
	if err != nil {
		t.Fatal(err)
	}

	if !ast.Equal(result.Decl, manual) {
		t.Errorf("cleaned tree differs:\n got  %s\n want %s", result.Decl, manual)
	}
	if !ast.Equal(result.Output().Child(0), manual) {
		t.Error("output must start with the cleaned declaration")
	}
}

func TestExtract_OnlyOutermostAnnotation(t *testing.T) {
	decl := parseDecl(t, `record M { a: Int | "inner" | (1, 2) }`)

	outer, err := Extract(decl, "range", Define)
	if err != nil {
		t.Fatal(err)
	}
	if got := format.Expr(outer.Entries[0].Value); got != "(1, 2)" {
		t.Errorf("outer value = %s", got)
	}

	inner, err := Extract(outer.Decl, "label", Define)
	if err != nil {
		t.Fatal(err)
	}
	if got := format.Expr(inner.Entries[0].Value); got != `"inner"` {
		t.Errorf("inner value = %s", got)
	}
	if got := format.Print(inner.Decl); got != "record M {\n    a: Int\n}\n" {
		t.Errorf("fully cleaned = %q", got)
	}
}

func TestExtract_UpdateModeEmitsEntriesOnly(t *testing.T) {
	decl := parseDecl(t, `record M { a: Int | 1 }`)

	result, err := Extract(decl, "k", Update)
	if err != nil {
		t.Fatal(err)
	}

	out := result.Output()
	if len(out.Children) != 1 || !out.Child(0).Is(ast.KindAccessor) {
		t.Errorf("update output = %s", out)
	}
	if result.Decl == nil || ast.FirstNode(result.Decl, ast.KindBinaryOp) != nil {
		t.Error("update mode still threads the cleaned declaration")
	}
}

func TestExtract_InputIsNotModified(t *testing.T) {
	decl := parseDecl(t, `record M { a: Int | 1 }`)
	before := decl.String()

	if _, err := Extract(decl, "k", Define); err != nil {
		t.Fatal(err)
	}
	if decl.String() != before {
		t.Error("Extract modified its input")
	}
}

func TestExtract_UnannotatedDeclIsShared(t *testing.T) {
	decl := parseDecl(t, `record M { a: Int }`)

	result, err := Extract(decl, "k", Define)
	if err != nil {
		t.Fatal(err)
	}
	if result.Decl != decl {
		t.Error("a declaration without annotations should come back unchanged")
	}
	if len(result.Entries) != 0 {
		t.Errorf("unexpected entries: %v", result.Entries)
	}
}

func TestExtract_FindsRecordInsideWrappers(t *testing.T) {
	decl := parseDecl(t, `@label @rerange
"Documented."
record Model[T] <: Base { a: T | 1 }`)

	result, err := Extract(decl, "range", Define)
	if err != nil {
		t.Fatal(err)
	}
	if result.TypeName != "Model" {
		t.Errorf("TypeName = %q", result.TypeName)
	}

	// wrappers and the doc string pass through untouched
	if !result.Decl.Is(ast.KindMacroCall) || result.Decl.Value != "label" {
		t.Errorf("wrapper lost: %s", result.Decl)
	}
	doc := ast.FirstNode(result.Decl, ast.KindDoc)
	if doc == nil || doc.Child(0).Value != "Documented." {
		t.Errorf("doc lost: %s", result.Decl)
	}
}

func TestExtract_Errors(t *testing.T) {
	loc := ast.SourceLocation{Line: 1, Column: 1}
	ident := func(name string) *ast.Node { return ast.Ident(name, loc) }
	block := func(fields ...*ast.Node) *ast.Node { return ast.New(ast.KindBlock, "", loc, fields...) }
	record := func(name *ast.Node, body *ast.Node) *ast.Node {
		if body == nil {
			return ast.New(ast.KindRecordDef, "", loc, name)
		}
		return ast.New(ast.KindRecordDef, "", loc, name, body)
	}
	pipe := func(children ...*ast.Node) *ast.Node {
		return ast.New(ast.KindBinaryOp, ast.AnnotationOp, loc, children...)
	}
	one := ast.Lit(ast.LitInt, "1", loc)

	tests := []struct {
		name string
		decl *ast.Node
		code cerrors.ErrorCode
	}{
		{"no record", ast.New(ast.KindMacroCall, "x", loc, ident("Model")), cerrors.ErrMissingRecordDef},
		{"no block", record(ident("M"), nil), cerrors.ErrMissingFieldBlock},
		{"literal name", record(one, block()), cerrors.ErrInvalidRecordName},
		{"annotation arity", record(ident("M"), block(pipe(ident("a")))), cerrors.ErrMalformedAnnotation},
		{"non-identifier key", record(ident("M"), block(pipe(one, one))), cerrors.ErrMalformedAnnotation},
		{"typed key not identifier", record(ident("M"), block(
			ast.New(ast.KindFieldDecl, "", loc, one, ast.New(ast.KindTypeRef, "Int", loc)))), cerrors.ErrMalformedAnnotation},
		{"duplicate", record(ident("M"), block(ident("a"), pipe(ident("a"), one))), cerrors.ErrDuplicateField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Extract(tt.decl, "k", Define)
			if err == nil {
				t.Fatalf("expected %s, got result %v", tt.code, result)
			}
			if result != nil {
				t.Error("no partial result on failure")
			}
			if !cerrors.HasCode(err, tt.code) {
				t.Errorf("expected %s, got %v", tt.code, err)
			}
		})
	}
}

func TestExtract_WildcardIsNotAFieldKey(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"typed", "record M {\n    _: Int | 5\n    b: Int\n}"},
		{"untyped", "record M { _ | 5; b }"},
		{"bare", "record M { _; b }"},
		{"assigned", "record M { _: Int = 1 | 5 }"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decl := parseDecl(t, tt.source)

			for _, mode := range []Mode{Define, Update} {
				_, err := Extract(decl, "range", mode)
				list := cerrors.AsList(err)
				if len(list) != 1 || list[0].Code != cerrors.ErrMalformedAnnotation {
					t.Fatalf("%s: expected one MalformedAnnotation, got %v", mode, err)
				}
				if list[0].Subject != ast.Wildcard {
					t.Errorf("%s: subject = %q, want %q", mode, list[0].Subject, ast.Wildcard)
				}
			}

			if _, _, err := Fields(decl); !cerrors.HasCode(err, cerrors.ErrMalformedAnnotation) {
				t.Errorf("Fields: expected MalformedAnnotation, got %v", err)
			}
		})
	}
}

func TestExtract_ArityErrorNamesTheField(t *testing.T) {
	loc := ast.SourceLocation{Line: 1, Column: 1}
	key := ast.Ident("width", loc)
	typed := ast.New(ast.KindFieldDecl, "", loc, ast.Ident("height", loc), ast.New(ast.KindTypeRef, "Int", loc))

	tests := []struct {
		name  string
		field *ast.Node
		want  string
	}{
		{"annotation", ast.New(ast.KindBinaryOp, ast.AnnotationOp, loc, key), "width"},
		{"typed annotation", ast.New(ast.KindBinaryOp, ast.AnnotationOp, loc, typed), "height"},
		{"assignment", ast.New(ast.KindAssign, "", loc, typed), "height"},
		{"no operands", ast.New(ast.KindAssign, "", loc), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decl := ast.New(ast.KindRecordDef, "", loc, ast.Ident("M", loc), ast.New(ast.KindBlock, "", loc, tt.field))

			_, err := Extract(decl, "k", Define)
			list := cerrors.AsList(err)
			if len(list) != 1 || list[0].Code != cerrors.ErrMalformedAnnotation {
				t.Fatalf("expected one MalformedAnnotation, got %v", err)
			}
			if list[0].Subject != tt.want {
				t.Errorf("subject = %q, want %q", list[0].Subject, tt.want)
			}
		})
	}
}

func TestExtract_DuplicateReportedBeforeEntries(t *testing.T) {
	decl := parseDecl(t, `record M {
    f1: Int | 1
    f2: Int | 2
    f1: Int | 3
}`)

	_, err := Extract(decl, "k", Define)
	if !cerrors.HasCode(err, cerrors.ErrDuplicateField) {
		t.Fatalf("expected DuplicateField, got %v", err)
	}

	list := cerrors.AsList(err)
	if list[0].Location.Line != 4 {
		t.Errorf("expected the second declaration's line, got %s", list[0].Location)
	}
}

func TestModeString(t *testing.T) {
	if Define.String() != "define" || Update.String() != "update" {
		t.Error("Mode.String")
	}
}

func TestFields(t *testing.T) {
	decl := parseDecl(t, `@range record Pair[T] <: Base { x: T | (0, 1); y = 2 | nothing; z }`)

	name, fields, err := Fields(decl)
	if err != nil {
		t.Fatalf("Fields failed: %v", err)
	}
	if name != "Pair" {
		t.Errorf("name = %q", name)
	}
	if diff := cmp.Diff([]string{"x", "y", "z"}, fields); diff != "" {
		t.Errorf("fields (-want +got):\n%s", diff)
	}

	_, _, err = Fields(parseDecl(t, `record P { x; x: Int }`))
	if !cerrors.HasCode(err, cerrors.ErrDuplicateField) {
		t.Errorf("expected DuplicateField, got %v", err)
	}
}
