package annotate

import (
	"go.uber.org/zap"

	"github.com/conduit-lang/fieldmeta/internal/compiler/ast"
	cerrors "github.com/conduit-lang/fieldmeta/internal/compiler/errors"
	"github.com/conduit-lang/fieldmeta/internal/compiler/extract"
)

// Compose installs the chain `name` such that name(D) == m1(m2(...mk(D))).
// Every member but the outermost must be an update entry point so the record is
// emitted exactly once.
func (c *Compiler) Compose(name string, members ...string) error {
	refs := make([]*ast.Node, len(members))
	for i, m := range members {
		refs[i] = ast.New(ast.KindMacroRef, m, ast.SourceLocation{})
	}
	return c.ComposeDecl(ast.New(ast.KindChainDecl, name, ast.SourceLocation{}, refs...))
}

// ComposeDecl installs the chain declared by a ChainDecl node. Members are the
// MacroRef nodes found anywhere under it, in source order.
func (c *Compiler) ComposeDecl(decl *ast.Node) error {
	name := decl.Value

	if _, exists := c.entryPoints[name]; exists {
		return cerrors.NewDuplicateEntryPoint(decl.Loc, name)
	}

	var refs []*ast.Node
	ast.Collect(decl, ast.KindMacroRef, func(ref *ast.Node) {
		refs = append(refs, ref)
	})
	if len(refs) == 0 {
		return cerrors.NewEmptyChain(decl.Loc, name)
	}

	members := make([]*entryPoint, len(refs))
	names := make([]string, len(refs))
	for i, ref := range refs {
		ep, ok := c.entryPoints[ref.Value]
		if !ok {
			return cerrors.NewUnknownEntryPoint(ref.Loc, ref.Value)
		}
		if i > 0 && ep.Mode != extract.Update {
			return cerrors.NewChainOrdering(ref.Loc, name, ref.Value)
		}
		members[i] = ep
		names[i] = ref.Value
	}

	c.add(&entryPoint{
		EntryPointInfo: EntryPointInfo{Name: name, Mode: members[0].Mode, Members: names},
		apply:          pipeline(members),
	})

	c.logger.Debug("composed chain",
		zap.String("chain", name),
		zap.Strings("members", names),
	)
	return nil
}

// pipeline composes the members once; the last one is applied first
func pipeline(members []*entryPoint) EntryPoint {
	fns := make([]EntryPoint, len(members))
	for i, m := range members {
		fns[i] = m.apply
	}

	return func(u *Unit) (*Unit, error) {
		var err error
		for i := len(fns) - 1; i >= 0; i-- {
			if u, err = fns[i](u); err != nil {
				return nil, err
			}
		}
		return u, nil
	}
}
