package expand

import (
	"go.uber.org/zap"

	"github.com/conduit-lang/fieldmeta/internal/compiler/annotate"
	"github.com/conduit-lang/fieldmeta/internal/compiler/ast"
	cerrors "github.com/conduit-lang/fieldmeta/internal/compiler/errors"
	"github.com/conduit-lang/fieldmeta/internal/compiler/parser"
	"github.com/conduit-lang/fieldmeta/internal/format"
	"github.com/conduit-lang/fieldmeta/runtime/metadata"
)

// Source is one input file
type Source struct {
	Path    string
	Content string
}

// KindDef declares a metadata kind before any source is read. Default is a value
// expression in source syntax.
type KindDef struct {
	Name    string
	Default string
}

// ChainDef composes entry points before any source is read
type ChainDef struct {
	Name    string
	Members []string
}

// Options configures Compile
type Options struct {
	Kinds  []KindDef
	Chains []ChainDef
	// ConfigFile is reported as the location of errors in Kinds and Chains
	ConfigFile string
	// Registry receives the dispatch tables; nil starts from an empty one. It is
	// only updated when every source compiles.
	Registry *metadata.Registry
	Logger   *zap.Logger
}

// FileOutput is the expanded form of one source file
type FileOutput struct {
	Path string
	Tree *ast.Node
}

// Source prints the expanded file
func (f FileOutput) Source() string {
	return format.Print(f.Tree)
}

// Output is the result of compiling a set of sources
type Output struct {
	PassID string
	// Files are in expansion order: declarations come before their uses
	Files    []FileOutput
	Compiler *annotate.Compiler

	registry *metadata.Registry
}

// Registry returns the dispatch tables the sources compiled to: Options.Registry
// when one was given
func (o *Output) Registry() *metadata.Registry {
	if o.registry != nil {
		return o.registry
	}
	return o.Compiler.Registry()
}

// Source prints every expanded file, in expansion order
func (o *Output) Source() string {
	trees := make([]*ast.Node, len(o.Files))
	for i, f := range o.Files {
		trees[i] = f.Tree
	}
	return format.Print(ast.New(ast.KindFile, "", ast.SourceLocation{Line: 1, Column: 1}, trees...))
}

type parsedFile struct {
	path    string
	tree    *ast.Node
	symbols fileSymbols
}

// Compile parses, orders and expands sources. Syntax errors of every file are
// reported together; expansion stops at the first file that fails. Sources
// compile into a copy of Options.Registry, installed only on success.
func Compile(sources []Source, opts Options) (*Output, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var scratch *metadata.Registry
	if opts.Registry != nil {
		var err error
		if scratch, err = metadata.FromSnapshot(opts.Registry.Snapshot()); err != nil {
			return nil, err
		}
	}

	compiler := annotate.New(scratch, annotate.WithLogger(logger))
	if err := declareConfigured(compiler, opts); err != nil {
		return nil, err
	}

	var errs cerrors.ErrorList
	parsed := make([]parsedFile, 0, len(sources))
	for _, src := range sources {
		tree, parseErrs := parser.ParseSource(src.Content)
		if len(parseErrs) > 0 {
			errs = append(errs, parseErrs.WithFile(src.Path)...)
			continue
		}
		parsed = append(parsed, parsedFile{path: src.Path, tree: tree, symbols: symbolsOf(tree)})
	}
	if len(errs) > 0 {
		return nil, errs
	}

	ordered, err := buildOrder(parsed)
	if err != nil {
		return nil, err
	}

	expander := New(compiler, logger)
	out := &Output{
		PassID:   expander.PassID(),
		Files:    make([]FileOutput, 0, len(ordered)),
		Compiler: compiler,
	}
	for _, f := range ordered {
		tree, err := expander.Expand(f.tree)
		if err != nil {
			if list := cerrors.AsList(err); list != nil {
				return nil, list.WithFile(f.path)
			}
			return nil, err
		}
		out.Files = append(out.Files, FileOutput{Path: f.path, Tree: tree})
	}

	if opts.Registry != nil {
		if err := opts.Registry.Restore(scratch.Snapshot()); err != nil {
			return nil, err
		}
		out.registry = opts.Registry
	}

	logger.Info("compiled sources",
		zap.String("pass_id", out.PassID),
		zap.Int("files", len(out.Files)),
		zap.Strings("kinds", out.Registry().Kinds()),
		zap.Int("records", len(out.Registry().Records())),
	)
	return out, nil
}

func declareConfigured(compiler *annotate.Compiler, opts Options) error {
	var errs cerrors.ErrorList

	for _, k := range opts.Kinds {
		def := k.Default
		if def == "" {
			def = "nothing"
		}
		value, parseErrs := parser.ParseExpr(def)
		if len(parseErrs) > 0 {
			errs = append(errs, parseErrs.WithFile(opts.ConfigFile)...)
			continue
		}
		if err := compiler.Declare(k.Name, value); err != nil {
			errs = append(errs, withFile(err, opts.ConfigFile)...)
		}
	}

	for _, c := range opts.Chains {
		if err := compiler.Compose(c.Name, c.Members...); err != nil {
			errs = append(errs, withFile(err, opts.ConfigFile)...)
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func withFile(err error, file string) cerrors.ErrorList {
	list := cerrors.AsList(err)
	if file != "" {
		list.WithFile(file)
	}
	return list
}
