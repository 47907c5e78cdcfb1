// Package ast defines the syntax tree consumed and produced by the fieldmeta compiler.
// A tree is built from tagged, ordered Nodes; nodes are never mutated once built, so
// rewriting a tree always produces new nodes and shares the unchanged ones.
package ast

import (
	"fmt"
	"strings"

	"github.com/conduit-lang/fieldmeta/internal/compiler/lexer"
)

// SourceLocation tracks the position of a node in source code
type SourceLocation struct {
	Line   int `json:"line"`   // Line number (1-indexed)
	Column int `json:"column"` // Column number (1-indexed)
}

// String returns the location as line:column
func (l SourceLocation) String() string {
	return fmt.Sprintf("%d:%d", l.Line, l.Column)
}

// IsZero reports whether the location was never set
func (l SourceLocation) IsZero() bool {
	return l.Line == 0 && l.Column == 0
}

// TokenLocation creates a SourceLocation from a lexer token
func TokenLocation(token lexer.Token) SourceLocation {
	return SourceLocation{
		Line:   token.Line,
		Column: token.Column,
	}
}

// Kind tags a node with its syntactic role
type Kind int

const (
	// KindFile is the root of a parsed source file; children are statements
	KindFile Kind = iota
	// KindMetadataDecl declares an annotation kind: Value is the name, child is the default
	KindMetadataDecl
	// KindChainDecl declares a chain: Value is the name, children are MacroRefs
	KindChainDecl
	// KindMacroRef references an entry point by name (Value)
	KindMacroRef
	// KindMacroCall applies the entry point named Value to its single child
	KindMacroCall
	// KindDoc attaches a documentation literal (first child) to a declaration (second child)
	KindDoc
	// KindRecordDef is a record definition: children are the name expression and the field Block
	KindRecordDef
	// KindTypeApply is a parameterized name: first child is the base, the rest are parameters
	KindTypeApply
	// KindSubtype is `name <: super`: children are the declared name and the supertype
	KindSubtype
	// KindTypeRef names a type in a field declaration; children are type parameters
	KindTypeRef
	// KindBlock holds a record's fields in declaration order
	KindBlock
	// KindFieldDecl is a typed declaration `name: Type`: children are Identifier and TypeRef
	KindFieldDecl
	// KindAssign is `lhs = rhs`
	KindAssign
	// KindBinaryOp is a binary operator call: Value is the operator, children the operands
	KindBinaryOp
	// KindIdentifier is a bare name held in Value
	KindIdentifier
	// KindLiteral is a literal; Value holds its canonical source text
	KindLiteral
	// KindNothing is the reserved sentinel value `nothing`
	KindNothing
	// KindTuple is a parenthesized, comma-separated list of values
	KindTuple
	// KindList is a bracketed list of values
	KindList
	// KindCall is a call expression: Value is the callee, children the arguments
	KindCall
	// KindAccessor is a dispatch entry definition `kind(Type, field) = value`;
	// children are kind, type and field Identifiers followed by the value
	KindAccessor
	// KindCompound groups several statements produced by one expansion
	KindCompound
)

var kindNames = map[Kind]string{
	KindFile:         "File",
	KindMetadataDecl: "MetadataDecl",
	KindChainDecl:    "ChainDecl",
	KindMacroRef:     "MacroRef",
	KindMacroCall:    "MacroCall",
	KindDoc:          "Doc",
	KindRecordDef:    "RecordDef",
	KindTypeApply:    "TypeApply",
	KindSubtype:      "Subtype",
	KindTypeRef:      "TypeRef",
	KindBlock:        "Block",
	KindFieldDecl:    "FieldDecl",
	KindAssign:       "Assign",
	KindBinaryOp:     "BinaryOp",
	KindIdentifier:   "Identifier",
	KindLiteral:      "Literal",
	KindNothing:      "Nothing",
	KindTuple:        "Tuple",
	KindList:         "List",
	KindCall:         "Call",
	KindAccessor:     "Accessor",
	KindCompound:     "Compound",
}

// String returns the name of the kind
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// LiteralKind distinguishes literal values
type LiteralKind int

const (
	// LitNone marks nodes that are not literals
	LitNone LiteralKind = iota
	// LitInt is an integer literal
	LitInt
	// LitFloat is a floating point literal
	LitFloat
	// LitString is a string literal; Value holds the unquoted text
	LitString
	// LitBool is true or false
	LitBool
)

// Reserved operator and names of the annotation syntax
const (
	// AnnotationOp attaches a metadata value to a field
	AnnotationOp = "|"
	// Wildcard in an accessor definition stands for every field of the type
	Wildcard = "_"
)

// Node is a tagged tree element
type Node struct {
	Kind     Kind
	Value    string
	Lit      LiteralKind
	Children []*Node
	Loc      SourceLocation
}

// New creates a node of the given kind
func New(kind Kind, value string, loc SourceLocation, children ...*Node) *Node {
	return &Node{
		Kind:     kind,
		Value:    value,
		Children: children,
		Loc:      loc,
	}
}

// Ident creates an identifier node
func Ident(name string, loc SourceLocation) *Node {
	return New(KindIdentifier, name, loc)
}

// Lit creates a literal node
func Lit(lit LiteralKind, text string, loc SourceLocation) *Node {
	n := New(KindLiteral, text, loc)
	n.Lit = lit
	return n
}

// Nothing creates the sentinel node
func Nothing(loc SourceLocation) *Node {
	return New(KindNothing, "nothing", loc)
}

// Location returns the source location of the node
func (n *Node) Location() SourceLocation {
	return n.Loc
}

// Is reports whether the node is non-nil and of the given kind
func (n *Node) Is(kind Kind) bool {
	return n != nil && n.Kind == kind
}

// Child returns the i-th child or nil when out of range
func (n *Node) Child(i int) *Node {
	if n == nil || i < 0 || i >= len(n.Children) {
		return nil
	}
	return n.Children[i]
}

// WithChildren returns a copy of the node holding the given children.
// The receiver is left untouched.
func (n *Node) WithChildren(children ...*Node) *Node {
	cp := *n
	cp.Children = children
	return &cp
}

// IsSentinel reports whether the node is the "no override" marker
func (n *Node) IsSentinel() bool {
	return n.Is(KindNothing)
}

// Equal reports whether two trees have the same shape and values.
// Source locations are ignored.
func Equal(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind || a.Value != b.Value || a.Lit != b.Lit || len(a.Children) != len(b.Children) {
		return false
	}
	for i := range a.Children {
		if !Equal(a.Children[i], b.Children[i]) {
			return false
		}
	}
	return true
}

// String renders the tree as an s-expression, mostly for tests and debug logs
func (n *Node) String() string {
	var b strings.Builder
	n.sexpr(&b)
	return b.String()
}

func (n *Node) sexpr(b *strings.Builder) {
	if n == nil {
		b.WriteString("<nil>")
		return
	}
	b.WriteString("(")
	b.WriteString(n.Kind.String())
	if n.Value != "" {
		fmt.Fprintf(b, " %q", n.Value)
	}
	for _, c := range n.Children {
		b.WriteString(" ")
		c.sexpr(b)
	}
	b.WriteString(")")
}
