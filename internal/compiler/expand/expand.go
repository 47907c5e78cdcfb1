// Package expand runs a compilation pass over parsed fieldmeta files: it declares
// metadata kinds and chains, applies entry points to macro-annotated records and
// installs the resulting dispatch entries. The output of a pass is a file of plain
// statements that compiles to the same dispatch tables.
package expand

import (
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conduit-lang/fieldmeta/internal/compiler/annotate"
	"github.com/conduit-lang/fieldmeta/internal/compiler/ast"
	cerrors "github.com/conduit-lang/fieldmeta/internal/compiler/errors"
	"github.com/conduit-lang/fieldmeta/internal/compiler/extract"
)

// Expander expands the statements of one or more files against a shared compiler
type Expander struct {
	compiler *annotate.Compiler
	records  map[string]ast.SourceLocation
	passID   string
	logger   *zap.Logger
}

// New creates an expander for compiler. Every expander gets its own pass id,
// attached to all of its log lines.
func New(compiler *annotate.Compiler, logger *zap.Logger) *Expander {
	if logger == nil {
		logger = zap.NewNop()
	}
	passID := uuid.NewString()
	return &Expander{
		compiler: compiler,
		records:  make(map[string]ast.SourceLocation),
		passID:   passID,
		logger:   logger.With(zap.String("pass_id", passID)),
	}
}

// PassID identifies this pass in logs
func (e *Expander) PassID() string {
	return e.passID
}

// Compiler returns the compiler the expander declares into
func (e *Expander) Compiler() *annotate.Compiler {
	return e.compiler
}

// Expand processes the statements of file in order. Statements that fail are
// reported together; when any fails, no output is returned.
func (e *Expander) Expand(file *ast.Node) (*ast.Node, error) {
	var errs cerrors.ErrorList
	out := make([]*ast.Node, 0, len(file.Children))

	for _, stmt := range file.Children {
		emitted, err := e.statement(stmt)
		if err != nil {
			list := cerrors.AsList(err)
			if list == nil {
				return nil, err
			}
			errs = append(errs, list...)
			continue
		}
		out = append(out, emitted...)
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return ast.New(ast.KindFile, "", file.Loc, out...), nil
}

func (e *Expander) statement(stmt *ast.Node) ([]*ast.Node, error) {
	switch stmt.Kind {
	case ast.KindMetadataDecl:
		if err := e.compiler.Declare(stmt.Value, stmt.Child(0)); err != nil {
			return nil, err
		}
		return []*ast.Node{stmt}, nil

	case ast.KindChainDecl:
		if err := e.compiler.ComposeDecl(stmt); err != nil {
			return nil, err
		}
		return []*ast.Node{stmt}, nil

	case ast.KindAccessor:
		if err := e.compiler.DefineEntry(stmt); err != nil {
			return nil, err
		}
		return []*ast.Node{stmt}, nil

	case ast.KindMacroCall:
		return e.macroCall(stmt)

	case ast.KindRecordDef, ast.KindDoc:
		if err := e.record(stmt); err != nil {
			return nil, err
		}
		return []*ast.Node{stmt}, nil

	default:
		return nil, cerrors.NewMalformedAnnotation(stmt.Loc, "", "unexpected "+stmt.Kind.String()+" statement")
	}
}

// macroCall applies the nested entry points of `@m1 @m2 ... decl`, innermost
// first. Like a chain, only the outermost entry point may declare the record.
func (e *Expander) macroCall(stmt *ast.Node) ([]*ast.Node, error) {
	var calls []*ast.Node
	decl := stmt
	for decl.Is(ast.KindMacroCall) {
		calls = append(calls, decl)
		decl = decl.Child(0)
	}

	eps := make([]annotate.EntryPoint, len(calls))
	for i, call := range calls {
		ep, ok := e.compiler.Lookup(call.Value)
		if !ok {
			return nil, cerrors.NewUnknownEntryPoint(call.Loc, call.Value)
		}
		if info, _ := e.compiler.Info(call.Value); i > 0 && info.Mode != extract.Update {
			return nil, cerrors.NewChainOrdering(call.Loc, macroChain(calls), call.Value)
		}
		eps[i] = ep
	}

	unit := annotate.NewUnit(decl)
	for i := len(eps) - 1; i >= 0; i-- {
		var err error
		if unit, err = eps[i](unit); err != nil {
			return nil, err
		}
	}

	if unit.Declares {
		if err := e.claimRecord(unit.TypeName, stmt.Loc); err != nil {
			return nil, err
		}
	}
	if err := e.compiler.Install(unit); err != nil {
		if unit.Declares {
			delete(e.records, unit.TypeName)
		}
		return nil, err
	}

	e.logger.Debug("expanded declaration",
		zap.String("record", unit.TypeName),
		zap.String("macros", macroChain(calls)),
		zap.Int("entries", len(unit.Entries)),
		zap.Bool("declares", unit.Declares),
	)
	return unit.Output().Children, nil
}

// record registers the field order of a declaration that no entry point touches
func (e *Expander) record(decl *ast.Node) error {
	name, fields, err := extract.Fields(decl)
	if err != nil {
		return err
	}
	if err := e.claimRecord(name, decl.Loc); err != nil {
		return err
	}
	e.compiler.Registry().SetFields(name, fields)

	e.logger.Debug("registered record",
		zap.String("record", name),
		zap.Int("fields", len(fields)),
	)
	return nil
}

func (e *Expander) claimRecord(name string, loc ast.SourceLocation) error {
	if _, exists := e.records[name]; exists {
		return cerrors.NewDuplicateRecord(loc, name)
	}
	e.records[name] = loc
	return nil
}

func macroChain(calls []*ast.Node) string {
	names := make([]string, len(calls))
	for i, c := range calls {
		names[i] = "@" + c.Value
	}
	return strings.Join(names, " ")
}
