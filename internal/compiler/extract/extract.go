// Package extract implements the field extractor: it finds the record definition
// inside a (possibly macro-wrapped) declaration, strips the annotations of one kind
// from its fields and turns them into dispatch entries.
package extract

import (
	"github.com/conduit-lang/fieldmeta/internal/compiler/ast"
	cerrors "github.com/conduit-lang/fieldmeta/internal/compiler/errors"
)

// Mode selects what an extraction re-emits
type Mode int

const (
	// Define re-emits the cleaned declaration followed by the entries
	Define Mode = iota
	// Update emits only the entries; the record was declared elsewhere
	Update
)

// String returns the mode name
func (m Mode) String() string {
	if m == Update {
		return "update"
	}
	return "define"
}

// Entry is one dispatch entry: kind(Type, Field) = Value
type Entry struct {
	Kind  string
	Type  string
	Field string
	Value *ast.Node
	Loc   ast.SourceLocation
}

// Node returns the entry as an accessor definition
func (e Entry) Node() *ast.Node {
	return ast.New(ast.KindAccessor, "", e.Loc,
		ast.Ident(e.Kind, e.Loc),
		ast.Ident(e.Type, e.Loc),
		ast.Ident(e.Field, e.Loc),
		e.Value,
	)
}

// Result is the outcome of one extraction
type Result struct {
	Mode     Mode
	TypeName string
	// Fields lists the record's field keys in declaration order
	Fields []string
	// Decl is the declaration with this kind's annotations removed
	Decl    *ast.Node
	Entries []Entry
}

// Output returns the re-emitted unit: the cleaned declaration and the entries in
// define mode, the entries alone in update mode
func (r *Result) Output() *ast.Node {
	children := make([]*ast.Node, 0, len(r.Entries)+1)
	if r.Mode == Define {
		children = append(children, r.Decl)
	}
	for _, e := range r.Entries {
		children = append(children, e.Node())
	}
	return ast.New(ast.KindCompound, "", r.Decl.Loc, children...)
}

// field is one classified entry of a record body
type field struct {
	node  *ast.Node
	key   string
	loc   ast.SourceLocation
	clean *ast.Node // replacement with the outermost annotation removed
	meta  *ast.Node // nil for plain fields
}

// Extract processes decl for the annotation kind. The input tree is not modified.
func Extract(decl *ast.Node, kind string, mode Mode) (*Result, error) {
	record := ast.FirstNode(decl, ast.KindRecordDef)
	if record == nil {
		return nil, cerrors.NewMissingRecordDef(locationOf(decl), kind)
	}

	typeName, err := RecordName(record)
	if err != nil {
		return nil, err
	}

	block := ast.FirstNode(record, ast.KindBlock)
	if block == nil {
		return nil, cerrors.NewMissingFieldBlock(record.Loc, typeName)
	}

	fields, err := classify(block, typeName)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Mode:     mode,
		TypeName: typeName,
		Fields:   make([]string, 0, len(fields)),
		Entries:  make([]Entry, 0),
	}

	changed := false
	cleaned := make([]*ast.Node, len(fields))
	for i, f := range fields {
		result.Fields = append(result.Fields, f.key)
		cleaned[i] = f.clean
		if f.clean != f.node {
			changed = true
		}
		if f.meta == nil || f.meta.IsSentinel() {
			continue
		}
		result.Entries = append(result.Entries, Entry{
			Kind:  kind,
			Type:  typeName,
			Field: f.key,
			Value: f.meta,
			Loc:   f.meta.Loc,
		})
	}

	result.Decl = decl
	if changed {
		result.Decl = ast.Replace(decl, block, block.WithChildren(cleaned...))
	}

	return result, nil
}

// Fields reports the record name and field keys of decl without consuming any
// annotation. Keys are checked for uniqueness.
func Fields(decl *ast.Node) (string, []string, error) {
	record := ast.FirstNode(decl, ast.KindRecordDef)
	if record == nil {
		return "", nil, cerrors.NewMissingRecordDef(locationOf(decl), "record")
	}
	typeName, err := RecordName(record)
	if err != nil {
		return "", nil, err
	}
	block := ast.FirstNode(record, ast.KindBlock)
	if block == nil {
		return "", nil, cerrors.NewMissingFieldBlock(record.Loc, typeName)
	}

	fields, err := classify(block, typeName)
	if err != nil {
		return "", nil, err
	}
	keys := make([]string, len(fields))
	for i, f := range fields {
		keys[i] = f.key
	}
	return typeName, keys, nil
}

// classify resolves every field of the block and checks key uniqueness before
// anything is emitted
func classify(block *ast.Node, typeName string) ([]field, error) {
	fields := make([]field, 0, len(block.Children))
	seen := make(map[string]ast.SourceLocation, len(block.Children))

	for _, child := range block.Children {
		f, err := classifyField(child)
		if err != nil {
			return nil, err
		}
		if first, dup := seen[f.key]; dup {
			return nil, cerrors.NewDuplicateField(f.loc, typeName, f.key, first)
		}
		seen[f.key] = f.loc
		fields = append(fields, f)
	}

	return fields, nil
}

// classifyField recognizes the three field shapes:
//
//	a: Int                        plain
//	a: Int = 3 | meta             default-assignment
//	a: Int | meta                 annotated
func classifyField(n *ast.Node) (field, error) {
	f := field{node: n, clean: n}

	switch {
	case n.Is(ast.KindBinaryOp) && n.Value == ast.AnnotationOp:
		if len(n.Children) != 2 {
			return f, cerrors.NewMalformedAnnotation(n.Loc, keyHint(n), "an annotation needs a field and a value")
		}
		f.clean, f.meta = n.Child(0), n.Child(1)
		typed := n.Child(0)
		key, loc, err := fieldKey(typed)
		if err != nil {
			return f, err
		}
		f.key, f.loc = key, loc

	case n.Is(ast.KindAssign):
		if len(n.Children) != 2 {
			return f, cerrors.NewMalformedAnnotation(n.Loc, keyHint(n), "an assignment needs a field and a default")
		}
		key, loc, err := fieldKey(n.Child(0))
		if err != nil {
			return f, err
		}
		f.key, f.loc = key, loc

		rhs := n.Child(1)
		if rhs.Is(ast.KindBinaryOp) && rhs.Value == ast.AnnotationOp {
			if len(rhs.Children) != 2 {
				return f, cerrors.NewMalformedAnnotation(rhs.Loc, key, "an annotation needs a default and a value")
			}
			f.clean = n.WithChildren(n.Child(0), rhs.Child(0))
			f.meta = rhs.Child(1)
		}

	default:
		key, loc, err := fieldKey(n)
		if err != nil {
			return f, err
		}
		f.key, f.loc = key, loc
	}

	return f, nil
}

// keyHint names the field of a malformed shape when its first operand still
// resolves to one
func keyHint(n *ast.Node) string {
	if len(n.Children) == 0 {
		return ""
	}
	key, _, err := fieldKey(n.Child(0))
	if err != nil {
		return ""
	}
	return key
}

// fieldKey finds the identifier naming a typed declaration. Inner annotations of
// other kinds are looked through. The wildcard is reserved for type-wide
// defaults and never names a field.
func fieldKey(typed *ast.Node) (string, ast.SourceLocation, error) {
	for typed.Is(ast.KindBinaryOp) && typed.Value == ast.AnnotationOp && len(typed.Children) == 2 {
		typed = typed.Child(0)
	}

	if typed.Is(ast.KindIdentifier) {
		return checkKey(typed)
	}

	decl, ok := ast.First(typed, ast.KindFieldDecl, func(n *ast.Node) (*ast.Node, bool) {
		return n, true
	})
	if !ok {
		return "", locationOf(typed), cerrors.NewMalformedAnnotation(locationOf(typed), "", "expected a field name or 'name: Type'")
	}

	name := decl.Child(0)
	if !name.Is(ast.KindIdentifier) || len(decl.Children) != 2 {
		return "", decl.Loc, cerrors.NewMalformedAnnotation(decl.Loc, "", "the field key must be an identifier")
	}
	return checkKey(name)
}

func checkKey(name *ast.Node) (string, ast.SourceLocation, error) {
	if name.Value == ast.Wildcard {
		return "", name.Loc, cerrors.NewMalformedAnnotation(name.Loc, name.Value,
			"'_' stands for every field in accessor definitions and cannot name a field")
	}
	return name.Value, name.Loc, nil
}

// RecordName resolves the declared name of a RecordDef to its base identifier,
// looking through type parameters and supertypes
func RecordName(record *ast.Node) (string, error) {
	name := record.Child(0)
	for {
		switch {
		case name.Is(ast.KindIdentifier):
			return name.Value, nil
		case name.Is(ast.KindTypeApply), name.Is(ast.KindSubtype):
			name = name.Child(0)
		default:
			found := "nothing"
			if name != nil {
				found = name.Kind.String()
			}
			return "", cerrors.NewInvalidRecordName(locationOf(record), found)
		}
	}
}

func locationOf(n *ast.Node) ast.SourceLocation {
	if n == nil {
		return ast.SourceLocation{}
	}
	return n.Loc
}
