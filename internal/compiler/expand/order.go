package expand

import (
	"fmt"
	"strings"

	"github.com/conduit-lang/fieldmeta/internal/compiler/annotate"
	"github.com/conduit-lang/fieldmeta/internal/compiler/ast"
)

// fileDeps is one source file in the declaration graph
type fileDeps struct {
	path       string
	dependsOn  []string // files declaring names this file uses
	dependedBy []string
}

// depGraph orders source files so that every kind and chain is declared before a
// file that uses it is expanded
type depGraph struct {
	paths []string
	nodes map[string]*fileDeps
}

func newDepGraph() *depGraph {
	return &depGraph{nodes: make(map[string]*fileDeps)}
}

func (g *depGraph) addFile(path string) {
	if _, exists := g.nodes[path]; exists {
		return
	}
	g.paths = append(g.paths, path)
	g.nodes[path] = &fileDeps{path: path}
}

// addDependency records that from uses a name declared in to
func (g *depGraph) addDependency(from, to string) {
	g.addFile(from)
	g.addFile(to)
	if !contains(g.nodes[from].dependsOn, to) {
		g.nodes[from].dependsOn = append(g.nodes[from].dependsOn, to)
	}
	if !contains(g.nodes[to].dependedBy, from) {
		g.nodes[to].dependedBy = append(g.nodes[to].dependedBy, from)
	}
}

// order returns the files with declarations before uses. Files that are free to
// go keep their input order.
func (g *depGraph) order() ([]string, error) {
	done := make(map[string]bool, len(g.paths))
	result := make([]string, 0, len(g.paths))

	for len(result) < len(g.paths) {
		progressed := false
		for _, path := range g.paths {
			if done[path] || !g.ready(path, done) {
				continue
			}
			done[path] = true
			result = append(result, path)
			progressed = true
			break
		}
		if !progressed {
			var stuck []string
			for _, path := range g.paths {
				if !done[path] {
					stuck = append(stuck, path)
				}
			}
			return nil, &CycleError{Files: stuck}
		}
	}

	return result, nil
}

func (g *depGraph) ready(path string, done map[string]bool) bool {
	for _, dep := range g.nodes[path].dependsOn {
		if !done[dep] {
			return false
		}
	}
	return true
}

// CycleError reports source files that use each other's declarations
type CycleError struct {
	Files []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("circular declaration dependency between %s", strings.Join(e.Files, ", "))
}

// fileSymbols lists the entry point names a file declares and uses
type fileSymbols struct {
	declares []string
	uses     []string
}

func symbolsOf(file *ast.Node) fileSymbols {
	var syms fileSymbols

	ast.Collect(file, ast.KindMetadataDecl, func(n *ast.Node) {
		syms.declares = append(syms.declares, n.Value, annotate.UpdatePrefix+n.Value)
	})
	ast.Collect(file, ast.KindChainDecl, func(n *ast.Node) {
		syms.declares = append(syms.declares, n.Value)
	})

	ast.Collect(file, ast.KindMacroRef, func(n *ast.Node) {
		syms.uses = append(syms.uses, n.Value)
	})
	ast.Collect(file, ast.KindMacroCall, func(n *ast.Node) {
		syms.uses = append(syms.uses, n.Value)
	})
	ast.Collect(file, ast.KindAccessor, func(n *ast.Node) {
		syms.uses = append(syms.uses, n.Child(0).Value)
	})

	return syms
}

// buildOrder sorts parsed files by their declaration dependencies. A name
// declared in several files belongs to the first one; expansion reports the
// duplicate.
func buildOrder(files []parsedFile) ([]parsedFile, error) {
	g := newDepGraph()
	owner := make(map[string]string)
	byPath := make(map[string]parsedFile, len(files))

	for _, f := range files {
		g.addFile(f.path)
		byPath[f.path] = f
		for _, name := range f.symbols.declares {
			if _, taken := owner[name]; !taken {
				owner[name] = f.path
			}
		}
	}
	for _, f := range files {
		for _, name := range f.symbols.uses {
			if declaredIn, ok := owner[name]; ok && declaredIn != f.path {
				g.addDependency(f.path, declaredIn)
			}
		}
	}

	paths, err := g.order()
	if err != nil {
		return nil, err
	}
	ordered := make([]parsedFile, len(paths))
	for i, p := range paths {
		ordered[i] = byPath[p]
	}
	return ordered, nil
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
