// Package format prints fieldmeta syntax trees back to canonical source and
// renders differences between two sources.
package format

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/conduit-lang/fieldmeta/internal/compiler/ast"
	"github.com/conduit-lang/fieldmeta/internal/compiler/parser"
)

// Formatter formats fieldmeta source code and trees
type Formatter struct {
	config *Config
	buf    *bytes.Buffer
	indent int
}

// New creates a new Formatter with the given configuration
func New(config *Config) *Formatter {
	return &Formatter{
		config: config.normalize(),
		buf:    new(bytes.Buffer),
		indent: 0,
	}
}

// Format parses source code and returns it in canonical form
func (f *Formatter) Format(source string) (string, error) {
	file, errs := parser.ParseSource(source)
	if errs.HasErrors() {
		return "", errs
	}
	return f.Print(file), nil
}

// FormatFile formats a fieldmeta source file
func FormatFile(path string, config *Config) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	formatted, err := New(config).Format(string(content))
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return formatted, nil
}

// Print renders a tree as source. A File or Compound prints as a sequence of
// statements; any other node prints as one statement.
func (f *Formatter) Print(node *ast.Node) string {
	f.buf.Reset()
	f.indent = 0

	statements := flatten(node, nil)
	for i, stmt := range statements {
		if i > 0 && (isDeclaration(stmt) || isDeclaration(statements[i-1])) {
			f.writeLine("")
		}
		f.formatStatement(stmt)
	}

	return f.buf.String()
}

// Print renders a tree with the default configuration
func Print(node *ast.Node) string {
	return New(nil).Print(node)
}

// flatten expands File and Compound nodes into their statements
func flatten(node *ast.Node, out []*ast.Node) []*ast.Node {
	if node == nil {
		return out
	}
	if node.Is(ast.KindFile) || node.Is(ast.KindCompound) {
		for _, child := range node.Children {
			out = flatten(child, out)
		}
		return out
	}
	return append(out, node)
}

// isDeclaration reports whether a statement spans several lines
func isDeclaration(n *ast.Node) bool {
	switch n.Kind {
	case ast.KindMacroCall, ast.KindDoc, ast.KindRecordDef:
		return true
	}
	return false
}

// formatStatement formats one top-level statement
func (f *Formatter) formatStatement(n *ast.Node) {
	switch n.Kind {
	case ast.KindMetadataDecl:
		f.writeLine(fmt.Sprintf("metadata %s = %s", n.Value, Expr(n.Child(0))))
	case ast.KindChainDecl:
		f.writeLine(strings.TrimRight(fmt.Sprintf("chain %s = %s", n.Value, macroRefs(n.Children)), " "))
	case ast.KindAccessor:
		f.writeLine(Expr(n))
	case ast.KindMacroCall, ast.KindDoc, ast.KindRecordDef:
		f.formatDeclaration(n)
	default:
		f.writeLine(Expr(n))
	}
}

// formatDeclaration formats `@a @b "doc" record ...`, macros on one line
func (f *Formatter) formatDeclaration(n *ast.Node) {
	var macros []string
	for n.Is(ast.KindMacroCall) {
		macros = append(macros, "@"+n.Value)
		n = n.Child(0)
	}
	if len(macros) > 0 {
		f.writeLine(strings.Join(macros, " "))
	}

	if n.Is(ast.KindDoc) {
		f.writeLine(quote(n.Child(0).Value))
		n = n.Child(1)
	}

	if n.Is(ast.KindRecordDef) {
		f.formatRecord(n)
		return
	}
	// Anything else under a macro call is printed as an expression
	f.writeLine(Expr(n))
}

// formatRecord formats a RecordDef node
func (f *Formatter) formatRecord(record *ast.Node) {
	header := "record " + Expr(record.Child(0))
	block := record.Child(1)
	if block == nil || len(block.Children) == 0 {
		f.writeLine(header + " {}")
		return
	}

	f.writeLine(header + " {")
	f.indent++

	maxLen := 0
	if f.config.AlignFields {
		for _, field := range block.Children {
			if name := typedFieldName(field); len(name) > maxLen {
				maxLen = len(name)
			}
		}
	}

	for _, field := range block.Children {
		f.formatField(field, maxLen)
	}

	f.indent--
	f.writeLine("}")
}

// formatField formats one entry of a record body
func (f *Formatter) formatField(field *ast.Node, maxLen int) {
	text := Expr(field)
	if name := typedFieldName(field); maxLen > 0 && name != "" {
		// pad the name so the type ascriptions line up
		text = name + strings.Repeat(" ", maxLen-len(name)) + strings.TrimPrefix(text, name)
	}
	f.writeLine(text)
}

// typedFieldName returns the name of a field printed with a leading `name:`
func typedFieldName(field *ast.Node) string {
	head := field
	for head.Is(ast.KindBinaryOp) || head.Is(ast.KindAssign) {
		head = head.Child(0)
	}
	if head.Is(ast.KindFieldDecl) {
		return head.Child(0).Value
	}
	return ""
}

// writeIndent writes the current indentation
func (f *Formatter) writeIndent() {
	f.buf.WriteString(strings.Repeat(" ", f.indent*f.config.IndentSize))
}

// writeLine writes a line with indentation
func (f *Formatter) writeLine(text string) {
	if text != "" {
		f.writeIndent()
		f.buf.WriteString(text)
	}
	f.buf.WriteString("\n")
}

func macroRefs(refs []*ast.Node) string {
	parts := make([]string, len(refs))
	for i, ref := range refs {
		parts[i] = "@" + ref.Value
	}
	return strings.Join(parts, " ")
}

// Expr renders a single node on one line
func Expr(n *ast.Node) string {
	if n == nil {
		return ""
	}

	switch n.Kind {
	case ast.KindIdentifier:
		return n.Value
	case ast.KindNothing:
		return "nothing"
	case ast.KindLiteral:
		if n.Lit == ast.LitString {
			return quote(n.Value)
		}
		return n.Value
	case ast.KindTuple:
		items := exprs(n.Children)
		if len(items) == 1 {
			return "(" + items[0] + ",)"
		}
		return "(" + strings.Join(items, ", ") + ")"
	case ast.KindList:
		return "[" + strings.Join(exprs(n.Children), ", ") + "]"
	case ast.KindCall:
		return n.Value + "(" + strings.Join(exprs(n.Children), ", ") + ")"
	case ast.KindTypeRef:
		if len(n.Children) == 0 {
			return n.Value
		}
		return n.Value + "[" + strings.Join(exprs(n.Children), ", ") + "]"
	case ast.KindTypeApply:
		return Expr(n.Child(0)) + "[" + strings.Join(exprs(n.Children[1:]), ", ") + "]"
	case ast.KindSubtype:
		return Expr(n.Child(0)) + " <: " + Expr(n.Child(1))
	case ast.KindFieldDecl:
		return Expr(n.Child(0)) + ": " + Expr(n.Child(1))
	case ast.KindAssign:
		return Expr(n.Child(0)) + " = " + Expr(n.Child(1))
	case ast.KindBinaryOp:
		return Expr(n.Child(0)) + " " + n.Value + " " + Expr(n.Child(1))
	case ast.KindAccessor:
		return fmt.Sprintf("%s(%s, %s) = %s", Expr(n.Child(0)), Expr(n.Child(1)), Expr(n.Child(2)), Expr(n.Child(3)))
	case ast.KindMacroRef:
		return "@" + n.Value
	case ast.KindMacroCall, ast.KindDoc, ast.KindRecordDef, ast.KindFile, ast.KindCompound,
		ast.KindMetadataDecl, ast.KindChainDecl:
		return strings.TrimRight(Print(n), "\n")
	default:
		return n.String()
	}
}

func exprs(nodes []*ast.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = Expr(n)
	}
	return out
}

// quote renders a string literal using the escapes the lexer understands
func quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}
