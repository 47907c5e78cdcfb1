package parser

import (
	"testing"

	"github.com/conduit-lang/fieldmeta/internal/compiler/ast"
	cerrors "github.com/conduit-lang/fieldmeta/internal/compiler/errors"
	"github.com/conduit-lang/fieldmeta/internal/compiler/lexer"
)

// Helper function to create a parser from source code
func parseSource(t *testing.T, source string) (*ast.Node, []ParseError) {
	t.Helper()

	lex := lexer.New(source)
	tokens, lexErrors := lex.ScanTokens()

	if len(lexErrors) > 0 {
		t.Fatalf("Lexer errors: %v", lexErrors)
	}

	parser := New(tokens)
	return parser.Parse()
}

func mustParse(t *testing.T, source string) *ast.Node {
	t.Helper()
	file, errors := parseSource(t, source)
	if len(errors) > 0 {
		t.Fatalf("Parse errors: %v", errors)
	}
	return file
}

// TestParseMetadataDecl tests kind declarations
func TestParseMetadataDecl(t *testing.T) {
	file := mustParse(t, `metadata range = (0, 0)`)

	if len(file.Children) != 1 {
		t.Fatalf("Expected 1 statement, got %d", len(file.Children))
	}

	decl := file.Children[0]
	if decl.Kind != ast.KindMetadataDecl || decl.Value != "range" {
		t.Fatalf("Expected MetadataDecl 'range', got %s", decl)
	}

	want := `(Tuple (Literal "0") (Literal "0"))`
	if got := decl.Child(0).String(); got != want {
		t.Errorf("Expected default %s, got %s", want, got)
	}
}

// TestParseChainDecl tests chain declarations and member order
func TestParseChainDecl(t *testing.T) {
	file := mustParse(t, `chain columns = @label @rerange @reunits`)

	chain := file.Children[0]
	if chain.Kind != ast.KindChainDecl || chain.Value != "columns" {
		t.Fatalf("Expected ChainDecl 'columns', got %s", chain)
	}

	expected := []string{"label", "rerange", "reunits"}
	if len(chain.Children) != len(expected) {
		t.Fatalf("Expected %d members, got %d", len(expected), len(chain.Children))
	}
	for i, name := range expected {
		if chain.Children[i].Kind != ast.KindMacroRef || chain.Children[i].Value != name {
			t.Errorf("Member %d: expected MacroRef %q, got %s", i, name, chain.Children[i])
		}
	}
}

// TestParseAccessor tests hand-written dispatch entries
func TestParseAccessor(t *testing.T) {
	file := mustParse(t, `range(Model, _) = (0, 1)
label(Model, a) = "Alpha"`)

	if len(file.Children) != 2 {
		t.Fatalf("Expected 2 statements, got %d", len(file.Children))
	}

	tests := []struct {
		index int
		want  string
	}{
		{0, `(Accessor (Identifier "range") (Identifier "Model") (Identifier "_") (Tuple (Literal "0") (Literal "1")))`},
		{1, `(Accessor (Identifier "label") (Identifier "Model") (Identifier "a") (Literal "Alpha"))`},
	}

	for _, tt := range tests {
		if got := file.Children[tt.index].String(); got != tt.want {
			t.Errorf("Statement %d:\n  got  %s\n  want %s", tt.index, got, tt.want)
		}
	}
}

// TestParseRecordFields tests the field shapes of a record body
func TestParseRecordFields(t *testing.T) {
	source := `record Model {
    plain: Int
    a: Int | (1, 4)
    b: Int = 3 | (4, 9)
    c | nothing;
    d = 2
}`
	file := mustParse(t, source)

	record := file.Children[0]
	if record.Kind != ast.KindRecordDef {
		t.Fatalf("Expected RecordDef, got %s", record)
	}
	if name := record.Child(0); !name.Is(ast.KindIdentifier) || name.Value != "Model" {
		t.Fatalf("Expected record name Model, got %s", name)
	}

	block := record.Child(1)
	expected := []string{
		`(FieldDecl (Identifier "plain") (TypeRef "Int"))`,
		`(BinaryOp "|" (FieldDecl (Identifier "a") (TypeRef "Int")) (Tuple (Literal "1") (Literal "4")))`,
		`(Assign (FieldDecl (Identifier "b") (TypeRef "Int")) (BinaryOp "|" (Literal "3") (Tuple (Literal "4") (Literal "9"))))`,
		`(BinaryOp "|" (Identifier "c") (Nothing "nothing"))`,
		`(Assign (Identifier "d") (Literal "2"))`,
	}

	if len(block.Children) != len(expected) {
		t.Fatalf("Expected %d fields, got %d", len(expected), len(block.Children))
	}
	for i, want := range expected {
		if got := block.Children[i].String(); got != want {
			t.Errorf("Field %d:\n  got  %s\n  want %s", i, got, want)
		}
	}
}

// TestParseAnnotationChainIsLeftAssociative tests that repeated pipes nest outermost-last
func TestParseAnnotationChainIsLeftAssociative(t *testing.T) {
	file := mustParse(t, `record R { a: Int | 1 | "x" }`)

	field := file.Children[0].Child(1).Child(0)
	want := `(BinaryOp "|" (BinaryOp "|" (FieldDecl (Identifier "a") (TypeRef "Int")) (Literal "1")) (Literal "x"))`
	if got := field.String(); got != want {
		t.Errorf("got  %s\nwant %s", got, want)
	}
}

// TestParseRecordNames tests parameterized and subtyped names
func TestParseRecordNames(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"plain", `record A {}`, `(Identifier "A")`},
		{"parameterized", `record A[T, U] {}`, `(TypeApply (Identifier "A") (TypeRef "T") (TypeRef "U"))`},
		{"subtype", `record A <: Base {}`, `(Subtype (Identifier "A") (TypeRef "Base"))`},
		{"both", `record A[T] <: Base[T] {}`, `(Subtype (TypeApply (Identifier "A") (TypeRef "T")) (TypeRef "Base" (TypeRef "T")))`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file := mustParse(t, tt.source)
			if got := file.Children[0].Child(0).String(); got != tt.want {
				t.Errorf("got  %s\nwant %s", got, tt.want)
			}
		})
	}
}

// TestParseMacroCallsNestRightToLeft tests macro application order and doc strings
func TestParseMacroCallsNestRightToLeft(t *testing.T) {
	file := mustParse(t, `@label @rerange
"A model."
record Model { a: Int }`)

	outer := file.Children[0]
	if outer.Kind != ast.KindMacroCall || outer.Value != "label" {
		t.Fatalf("Expected outer MacroCall label, got %s", outer)
	}
	inner := outer.Child(0)
	if inner.Kind != ast.KindMacroCall || inner.Value != "rerange" {
		t.Fatalf("Expected inner MacroCall rerange, got %s", inner)
	}
	doc := inner.Child(0)
	if doc.Kind != ast.KindDoc || doc.Child(0).Value != "A model." {
		t.Fatalf("Expected Doc node, got %s", doc)
	}
	if !doc.Child(1).Is(ast.KindRecordDef) {
		t.Errorf("Expected documented RecordDef, got %s", doc.Child(1))
	}
	if outer.Loc.Line != 1 || outer.Loc.Column != 1 {
		t.Errorf("Expected macro location 1:1, got %s", outer.Loc)
	}
}

// TestParseExpressions tests the value expression forms
func TestParseExpressions(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{`42`, `(Literal "42")`},
		{`1_000`, `(Literal "1000")`},
		{`-7`, `(Literal "-7")`},
		{`3.0`, `(Literal "3.0")`},
		{`-2.5`, `(Literal "-2.5")`},
		{`"hi"`, `(Literal "hi")`},
		{`true`, `(Literal "true")`},
		{`nothing`, `(Nothing "nothing")`},
		{`meters`, `(Identifier "meters")`},
		{`()`, `(Tuple)`},
		{`(1)`, `(Literal "1")`},
		{`(1,)`, `(Tuple (Literal "1"))`},
		{`(1, "a", x)`, `(Tuple (Literal "1") (Literal "a") (Identifier "x"))`},
		{`[1, 2,]`, `(List (Literal "1") (Literal "2"))`},
		{`[]`, `(List)`},
		{`between(1, [2])`, `(Call "between" (Literal "1") (List (Literal "2")))`},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			expr, errs := ParseExpr(tt.source)
			if errs.HasErrors() {
				t.Fatalf("ParseExpr(%q) errors: %v", tt.source, errs)
			}
			if got := expr.String(); got != tt.want {
				t.Errorf("got  %s\nwant %s", got, tt.want)
			}
		})
	}
}

// TestParseExprRejectsTrailingInput tests that a config default is one expression
func TestParseExprRejectsTrailingInput(t *testing.T) {
	if _, errs := ParseExpr(`1 2`); !errs.HasErrors() {
		t.Fatal("Expected error for trailing tokens")
	}
}

// TestParseErrorRecovery tests that the parser reports errors and keeps going
func TestParseErrorRecovery(t *testing.T) {
	source := `metadata = 1
metadata label = ""
record Broken { a: }
record Good { b: Int }
range(Model, a) = 1`

	file, errors := parseSource(t, source)

	if len(errors) != 2 {
		t.Fatalf("Expected 2 errors, got %d: %v", len(errors), errors)
	}

	kinds := make([]ast.Kind, 0, len(file.Children))
	for _, stmt := range file.Children {
		kinds = append(kinds, stmt.Kind)
	}
	expected := []ast.Kind{ast.KindMetadataDecl, ast.KindRecordDef, ast.KindRecordDef, ast.KindAccessor}
	if len(kinds) != len(expected) {
		t.Fatalf("Expected statements %v, got %v", expected, kinds)
	}
	for i := range expected {
		if kinds[i] != expected[i] {
			t.Errorf("Statement %d: expected %s, got %s", i, expected[i], kinds[i])
		}
	}

	broken := file.Children[1].Child(1)
	if len(broken.Children) != 0 {
		t.Errorf("Expected the malformed field to be dropped, got %s", broken)
	}
}

// TestParseSourceErrorCodes tests conversion to structured compiler errors
func TestParseSourceErrorCodes(t *testing.T) {
	tests := []struct {
		name   string
		source string
		code   cerrors.ErrorCode
	}{
		{"unterminated string", `metadata label = "oops`, cerrors.ErrUnterminatedString},
		{"bad character", `metadata label = $`, cerrors.ErrInvalidCharacter},
		{"bad exponent", `metadata x = 1e`, cerrors.ErrInvalidNumber},
		{"missing equals", `metadata label 1`, cerrors.ErrExpectedToken},
		{"eof in record", `record A { a: Int`, cerrors.ErrUnexpectedEOF},
		{"stray token", `} metadata a = 1`, cerrors.ErrUnexpectedToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file, errs := ParseSource(tt.source)
			if file != nil {
				t.Errorf("Expected no tree on error")
			}
			if !cerrors.HasCode(errs, tt.code) {
				t.Errorf("Expected code %s, got %v", tt.code, errs)
			}
		})
	}
}

// TestParseLocations tests that nodes carry 1-indexed positions
func TestParseLocations(t *testing.T) {
	file := mustParse(t, "metadata a = 1\n\nrecord R {\n  x: Int | 2\n}")

	record := file.Children[1]
	if record.Loc.Line != 3 || record.Loc.Column != 1 {
		t.Errorf("Expected record at 3:1, got %s", record.Loc)
	}
	field := record.Child(1).Child(0)
	if field.Loc.Line != 4 || field.Loc.Column != 10 {
		t.Errorf("Expected annotation at 4:10, got %s", field.Loc)
	}
}
