package annotate

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/conduit-lang/fieldmeta/internal/compiler/ast"
	cerrors "github.com/conduit-lang/fieldmeta/internal/compiler/errors"
	"github.com/conduit-lang/fieldmeta/internal/compiler/extract"
	"github.com/conduit-lang/fieldmeta/internal/compiler/parser"
	"github.com/conduit-lang/fieldmeta/internal/format"
	"github.com/conduit-lang/fieldmeta/runtime/metadata"
)

func parseDecl(t *testing.T, source string) *ast.Node {
	t.Helper()
	file, errs := parser.ParseSource(source)
	if errs.HasErrors() {
		t.Fatalf("parse errors: %v", errs)
	}
	return file.Children[0]
}

func expr(t *testing.T, source string) *ast.Node {
	t.Helper()
	n, errs := parser.ParseExpr(source)
	if errs.HasErrors() {
		t.Fatalf("parse errors: %v", errs)
	}
	return n
}

func declare(t *testing.T, c *Compiler, kind, def string) {
	t.Helper()
	if err := c.Declare(kind, expr(t, def)); err != nil {
		t.Fatalf("Declare(%s) failed: %v", kind, err)
	}
}

func lookup(t *testing.T, c *Compiler, kind, typ, field string) string {
	t.Helper()
	v, err := c.Registry().Lookup(kind, typ, field)
	if err != nil {
		t.Fatalf("Lookup(%s, %s, %s) failed: %v", kind, typ, field, err)
	}
	return metadata.FormatValue(v)
}

func TestDeclare_RangeExample(t *testing.T) {
	c := New(nil)
	declare(t, c, "range", "(0, 0)")

	unit, err := c.Apply("range", parseDecl(t, `record Model { a: Int | (1, 4); b: Int | (4, 9) }`))
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if err := c.Install(unit); err != nil {
		t.Fatalf("Install failed: %v", err)
	}

	if got := lookup(t, c, "range", "Model", "a"); got != "(1, 4)" {
		t.Errorf("range(Model, a) = %s", got)
	}
	if got := lookup(t, c, "range", "Model", "b"); got != "(4, 9)" {
		t.Errorf("range(Model, b) = %s", got)
	}

	all, err := c.Registry().All("range", "Model")
	if err != nil {
		t.Fatal(err)
	}
	if got := metadata.FormatValue(metadata.Tuple(all)); got != "((1, 4), (4, 9))" {
		t.Errorf("range(Model) = %s", got)
	}

	want := "record Model {\n    a: Int\n    b: Int\n}\n"
	if got := format.Print(unit.Decl); got != want {
		t.Errorf("cleaned declaration:\n%s", got)
	}
}

func TestDeclare_InstallsEntryPointPair(t *testing.T) {
	c := New(nil)
	declare(t, c, "units", "nothing")

	define, ok := c.Info("units")
	if !ok || define.Mode != extract.Define || define.Kind != "units" {
		t.Errorf("define entry point = %+v", define)
	}
	update, ok := c.Info("reunits")
	if !ok || update.Mode != extract.Update || update.Kind != "units" {
		t.Errorf("update entry point = %+v", update)
	}

	def, err := c.Registry().Default("units")
	if err != nil || def != nil {
		t.Errorf("default = %v, %v", def, err)
	}
}

func TestDeclare_Duplicate(t *testing.T) {
	c := New(nil)
	declare(t, c, "label", `""`)

	err := c.Declare("label", expr(t, `"x"`))
	if !cerrors.HasCode(err, cerrors.ErrDuplicateEntryPoint) {
		t.Errorf("expected DuplicateEntryPoint, got %v", err)
	}
}

func TestDeclare_InvalidDefault(t *testing.T) {
	c := New(nil)
	loc := ast.SourceLocation{Line: 1, Column: 1}
	bad := ast.New(ast.KindBlock, "", loc)

	if err := c.Declare("k", bad); !cerrors.HasCode(err, cerrors.ErrInvalidValue) {
		t.Errorf("expected InvalidValue, got %v", err)
	}
	if c.Registry().HasKind("k") {
		t.Error("a failed declaration must not install the kind")
	}
}

func TestSentinelFallsThrough(t *testing.T) {
	c := New(nil)
	declare(t, c, "label", `"default"`)

	unit, err := c.Apply("label", parseDecl(t, `record T { f1 | "one"; f2 | nothing }`))
	if err != nil {
		t.Fatal(err)
	}
	if len(unit.Entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(unit.Entries))
	}
	if err := c.Install(unit); err != nil {
		t.Fatal(err)
	}

	accessor := parseDecl(t, `label(T, _) = "type"`)
	if err := c.DefineEntry(accessor); err != nil {
		t.Fatal(err)
	}

	if got := lookup(t, c, "label", "T", "f1"); got != `"one"` {
		t.Errorf("label(T, f1) = %s", got)
	}
	if got := lookup(t, c, "label", "T", "f2"); got != `"type"` {
		t.Errorf("label(T, f2) = %s", got)
	}
	if got := lookup(t, c, "label", "U", "f2"); got != `"default"` {
		t.Errorf("label(U, f2) = %s", got)
	}
}

func TestUpdateModeOutput(t *testing.T) {
	c := New(nil)
	declare(t, c, "range", "(0, 0)")

	unit, err := c.Apply("rerange", parseDecl(t, `record M { a: Int | (1, 2) }`))
	if err != nil {
		t.Fatal(err)
	}
	if unit.Declares {
		t.Error("an update entry point does not declare the record")
	}

	if got := format.Print(unit.Output()); got != "range(M, a) = (1, 2)\n" {
		t.Errorf("output = %q", got)
	}

	if err := c.Install(unit); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Registry().Fields("M"); ok {
		t.Error("field order is only registered by the declaring unit")
	}
}

func TestInstall_IsAtomic(t *testing.T) {
	c := New(nil)
	declare(t, c, "k", "0")

	loc := ast.SourceLocation{Line: 3, Column: 7}
	unit := &Unit{
		Declares: true,
		TypeName: "M",
		Fields:   []string{"a", "b"},
		Entries: []extract.Entry{
			{Kind: "k", Type: "M", Field: "a", Value: ast.Lit(ast.LitInt, "1", loc), Loc: loc},
			{Kind: "k", Type: "M", Field: "b", Value: ast.New(ast.KindBlock, "", loc), Loc: loc},
		},
	}

	err := c.Install(unit)
	if !cerrors.HasCode(err, cerrors.ErrInvalidValue) {
		t.Fatalf("expected InvalidValue, got %v", err)
	}
	if got := lookup(t, c, "k", "M", "a"); got != "0" {
		t.Errorf("partial install: k(M, a) = %s", got)
	}
	if _, ok := c.Registry().Fields("M"); ok {
		t.Error("partial install registered field order")
	}
}

func TestDefineEntry_UnknownKind(t *testing.T) {
	c := New(nil)
	err := c.DefineEntry(parseDecl(t, `nope(M, a) = 1`))
	if !cerrors.HasCode(err, cerrors.ErrUnknownKind) {
		t.Errorf("expected UnknownKind, got %v", err)
	}
}

func TestApply_UnknownEntryPoint(t *testing.T) {
	c := New(nil)
	_, err := c.Apply("missing", parseDecl(t, `record M {}`))
	if !cerrors.HasCode(err, cerrors.ErrUnknownEntryPoint) {
		t.Errorf("expected UnknownEntryPoint, got %v", err)
	}
}

func TestEntryPointsInOrder(t *testing.T) {
	c := New(nil)
	declare(t, c, "label", `""`)
	declare(t, c, "range", "(0, 0)")
	if err := c.Compose("columns", "label", "rerange"); err != nil {
		t.Fatal(err)
	}

	var names []string
	for _, info := range c.EntryPoints() {
		names = append(names, info.Name)
	}
	want := []string{"label", "relabel", "range", "rerange", "columns"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("entry points (-want +got):\n%s", diff)
	}
}
