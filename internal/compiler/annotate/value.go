package annotate

import (
	"strconv"

	"github.com/conduit-lang/fieldmeta/internal/compiler/ast"
	cerrors "github.com/conduit-lang/fieldmeta/internal/compiler/errors"
	"github.com/conduit-lang/fieldmeta/runtime/metadata"
)

// ToValue converts a value expression into a runtime metadata value
func ToValue(n *ast.Node) (metadata.Value, error) {
	if n == nil {
		return nil, cerrors.NewInvalidValue(ast.SourceLocation{}, "nothing")
	}

	switch n.Kind {
	case ast.KindNothing:
		return nil, nil
	case ast.KindIdentifier:
		return metadata.Symbol(n.Value), nil
	case ast.KindLiteral:
		return literalValue(n)
	case ast.KindTuple:
		items, err := toValues(n.Children)
		if err != nil {
			return nil, err
		}
		return metadata.Tuple(items), nil
	case ast.KindList:
		items, err := toValues(n.Children)
		if err != nil {
			return nil, err
		}
		return metadata.List(items), nil
	case ast.KindCall:
		args, err := toValues(n.Children)
		if err != nil {
			return nil, err
		}
		return metadata.Call{Name: n.Value, Args: args}, nil
	default:
		return nil, cerrors.NewInvalidValue(n.Loc, n.Kind.String())
	}
}

func toValues(nodes []*ast.Node) ([]metadata.Value, error) {
	out := make([]metadata.Value, 0, len(nodes))
	for _, n := range nodes {
		v, err := ToValue(n)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func literalValue(n *ast.Node) (metadata.Value, error) {
	switch n.Lit {
	case ast.LitInt:
		v, err := strconv.ParseInt(n.Value, 10, 64)
		if err != nil {
			return nil, cerrors.NewInvalidValue(n.Loc, "integer "+n.Value)
		}
		return v, nil
	case ast.LitFloat:
		v, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			return nil, cerrors.NewInvalidValue(n.Loc, "float "+n.Value)
		}
		return v, nil
	case ast.LitBool:
		return n.Value == "true", nil
	case ast.LitString:
		return n.Value, nil
	default:
		return nil, cerrors.NewInvalidValue(n.Loc, "untyped literal "+strconv.Quote(n.Value))
	}
}
