// Package annotate generates annotation compilers. Declaring a metadata kind
// installs a define entry point and an update entry point that run the field
// extractor, plus the kind's dispatch tables; composing entry points builds a
// chain that threads one declaration through several of them.
package annotate

import (
	"go.uber.org/zap"

	"github.com/conduit-lang/fieldmeta/internal/compiler/ast"
	cerrors "github.com/conduit-lang/fieldmeta/internal/compiler/errors"
	"github.com/conduit-lang/fieldmeta/internal/compiler/extract"
	"github.com/conduit-lang/fieldmeta/runtime/metadata"
)

// UpdatePrefix is prepended to a kind name to form its update entry point
const UpdatePrefix = "re"

// EntryPoint transforms a unit. Entry points never modify their argument.
type EntryPoint func(*Unit) (*Unit, error)

// Unit is a record declaration on its way through one or more entry points
type Unit struct {
	// Decl is the declaration with every annotation consumed so far removed
	Decl *ast.Node
	// Declares is set once a define-mode entry point has run; the output then
	// re-emits Decl
	Declares bool
	// Entries collects the dispatch entries, innermost entry point first
	Entries  []extract.Entry
	TypeName string
	Fields   []string
}

// NewUnit wraps a declaration that no entry point has seen yet
func NewUnit(decl *ast.Node) *Unit {
	return &Unit{Decl: decl}
}

// Output returns the compound unit to re-emit
func (u *Unit) Output() *ast.Node {
	children := make([]*ast.Node, 0, len(u.Entries)+1)
	if u.Declares {
		children = append(children, u.Decl)
	}
	for _, e := range u.Entries {
		children = append(children, e.Node())
	}
	var loc ast.SourceLocation
	if u.Decl != nil {
		loc = u.Decl.Loc
	}
	return ast.New(ast.KindCompound, "", loc, children...)
}

// EntryPointInfo describes an installed entry point
type EntryPointInfo struct {
	Name string
	Mode extract.Mode
	// Kind is the annotation kind for define and update entry points
	Kind string
	// Members lists the composed entry points of a chain, outermost first
	Members []string
}

type entryPoint struct {
	EntryPointInfo
	apply EntryPoint
}

// Compiler owns the entry points of one compilation and the dispatch tables
// they install into
type Compiler struct {
	registry    *metadata.Registry
	entryPoints map[string]*entryPoint
	order       []string
	logger      *zap.Logger
}

// Option configures a Compiler
type Option func(*Compiler)

// WithLogger sets the logger used for declaration and install events
func WithLogger(logger *zap.Logger) Option {
	return func(c *Compiler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a compiler installing into registry; a nil registry gets a fresh one
func New(registry *metadata.Registry, opts ...Option) *Compiler {
	if registry == nil {
		registry = metadata.NewRegistry()
	}
	c := &Compiler{
		registry:    registry,
		entryPoints: make(map[string]*entryPoint),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Registry returns the dispatch tables the compiler installs into
func (c *Compiler) Registry() *metadata.Registry {
	return c.registry
}

// Declare installs the annotation kind with its global default: the define entry
// point `kind`, the update entry point `re<kind>` and the kind's dispatch tables
func (c *Compiler) Declare(kind string, def *ast.Node) error {
	var loc ast.SourceLocation
	if def != nil {
		loc = def.Loc
	}

	update := UpdatePrefix + kind
	for _, name := range []string{kind, update} {
		if _, exists := c.entryPoints[name]; exists {
			return cerrors.NewDuplicateEntryPoint(loc, name)
		}
	}

	value, err := ToValue(def)
	if err != nil {
		return err
	}
	if err := c.registry.DeclareKind(kind, value); err != nil {
		return cerrors.NewDuplicateEntryPoint(loc, kind)
	}

	c.add(&entryPoint{
		EntryPointInfo: EntryPointInfo{Name: kind, Mode: extract.Define, Kind: kind},
		apply:          c.extractor(kind, extract.Define),
	})
	c.add(&entryPoint{
		EntryPointInfo: EntryPointInfo{Name: update, Mode: extract.Update, Kind: kind},
		apply:          c.extractor(kind, extract.Update),
	})

	c.logger.Debug("declared metadata kind",
		zap.String("kind", kind),
		zap.String("default", metadata.FormatValue(value)),
	)
	return nil
}

// extractor builds the entry point running the field extractor for one kind
func (c *Compiler) extractor(kind string, mode extract.Mode) EntryPoint {
	return func(u *Unit) (*Unit, error) {
		result, err := extract.Extract(u.Decl, kind, mode)
		if err != nil {
			return nil, err
		}

		entries := make([]extract.Entry, 0, len(u.Entries)+len(result.Entries))
		entries = append(entries, u.Entries...)
		entries = append(entries, result.Entries...)

		return &Unit{
			Decl:     result.Decl,
			Declares: u.Declares || mode == extract.Define,
			Entries:  entries,
			TypeName: result.TypeName,
			Fields:   result.Fields,
		}, nil
	}
}

func (c *Compiler) add(ep *entryPoint) {
	c.entryPoints[ep.Name] = ep
	c.order = append(c.order, ep.Name)
}

// Lookup returns the entry point with the given name
func (c *Compiler) Lookup(name string) (EntryPoint, bool) {
	ep, ok := c.entryPoints[name]
	if !ok {
		return nil, false
	}
	return ep.apply, true
}

// Info describes the entry point with the given name
func (c *Compiler) Info(name string) (EntryPointInfo, bool) {
	ep, ok := c.entryPoints[name]
	if !ok {
		return EntryPointInfo{}, false
	}
	return ep.EntryPointInfo, true
}

// EntryPoints lists the installed entry points in installation order
func (c *Compiler) EntryPoints() []EntryPointInfo {
	out := make([]EntryPointInfo, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.entryPoints[name].EntryPointInfo)
	}
	return out
}

// Apply runs the named entry point on a fresh declaration
func (c *Compiler) Apply(name string, decl *ast.Node) (*Unit, error) {
	ep, ok := c.Lookup(name)
	if !ok {
		var loc ast.SourceLocation
		if decl != nil {
			loc = decl.Loc
		}
		return nil, cerrors.NewUnknownEntryPoint(loc, name)
	}
	return ep(NewUnit(decl))
}

// Install writes a unit's entries into the dispatch tables and, when the unit
// declares its record, the record's field order. Every value is converted before
// anything is written, so a failing unit installs nothing.
func (c *Compiler) Install(u *Unit) error {
	values := make([]metadata.Value, len(u.Entries))
	for i, e := range u.Entries {
		if !c.registry.HasKind(e.Kind) {
			return cerrors.NewUnknownKind(e.Loc, e.Kind)
		}
		v, err := ToValue(e.Value)
		if err != nil {
			return err
		}
		values[i] = v
	}

	for i, e := range u.Entries {
		if err := c.registry.Set(e.Kind, e.Type, e.Field, values[i]); err != nil {
			return cerrors.NewUnknownKind(e.Loc, e.Kind)
		}
	}
	if u.Declares && u.TypeName != "" {
		c.registry.SetFields(u.TypeName, u.Fields)
	}

	c.logger.Debug("installed unit",
		zap.String("record", u.TypeName),
		zap.Int("entries", len(u.Entries)),
		zap.Bool("declares", u.Declares),
	)
	return nil
}

// DefineEntry installs a hand-written accessor definition `kind(Type, field) = value`.
// The field `_` sets the type-level default.
func (c *Compiler) DefineEntry(accessor *ast.Node) error {
	if !accessor.Is(ast.KindAccessor) || len(accessor.Children) != 4 {
		return cerrors.NewMalformedAnnotation(accessor.Location(), "", "expected 'kind(Type, field) = value'")
	}

	kind := accessor.Child(0).Value
	typ := accessor.Child(1).Value
	field := accessor.Child(2).Value

	if !c.registry.HasKind(kind) {
		return cerrors.NewUnknownKind(accessor.Loc, kind)
	}
	value, err := ToValue(accessor.Child(3))
	if err != nil {
		return err
	}

	if field == ast.Wildcard {
		err = c.registry.SetTypeDefault(kind, typ, value)
	} else {
		err = c.registry.Set(kind, typ, field, value)
	}
	if err != nil {
		return cerrors.NewUnknownKind(accessor.Loc, kind)
	}
	return nil
}
