package commands

import (
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/fieldmeta/internal/compiler/cache"
	"github.com/conduit-lang/fieldmeta/internal/compiler/codegen"
	"github.com/conduit-lang/fieldmeta/internal/watch"
)

// NewBuildCommand creates the build command
func NewBuildCommand() *cobra.Command {
	var (
		asJSON   bool
		verbose  bool
		output   string
		pkg      string
		noCache  bool
		watching bool
	)

	cmd := &cobra.Command{
		Use:   "build [files...]",
		Short: "Generate a Go package exposing the compiled metadata",
		Long: `Compile every source under source_dir and write a Go package with one
accessor per metadata kind.

The build process:
  1. Hash the sources, the configured kinds and chains and the generator version
  2. Reuse the cached package for that hash when the build cache is enabled
  3. Otherwise compile the sources and generate the package
  4. Write the package to build.output

With --watch the build reruns whenever a source under source_dir changes.
Compiler errors are reported and the previous output is left in place.`,
		Example: `  # Build with settings from fieldmeta.yaml
  fieldmeta build

  # Generate into another package
  fieldmeta build --package fields -o internal/fields/metadata.go

  # Rebuild on every change
  fieldmeta build --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			startTime := time.Now()
			infoColor := color.New(color.FgCyan)

			p, err := loadProject(cmd)
			if err != nil {
				return err
			}
			defer p.logger.Sync()

			if pkg == "" {
				pkg = p.cfg.Build.Package
			}
			if output == "" {
				output = p.cfg.Path(p.cfg.Build.Output)
			}

			var store cache.Cache
			closeCache := func() {}
			if !noCache {
				store, closeCache, err = p.openCache(cmd.Context())
				if err != nil {
					p.logger.Warn("build cache unavailable, building without it", zap.Error(err))
				}
			}
			defer closeCache()

			b := &builder{
				project:     p,
				coordinator: cache.NewCoordinator(store, p.cfg.Cache.TTL, p.logger),
				pkg:         pkg,
				output:      output,
				asJSON:      asJSON,
				verbose:     verbose,
			}

			err = b.run(cmd, args, startTime)
			if !watching || (err != nil && !errors.Is(err, errCompilationFailed)) {
				return err
			}

			roots, err := watchRoots(p, args)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			watcher, err := watch.NewSourceWatcher(roots, watch.Options{Ext: cache.SourceExt, Logger: p.logger}, func(changed []string) error {
				infoColor.Fprintf(cmd.OutOrStdout(), "Changed: %s\n", strings.Join(changed, ", "))
				if err := b.run(cmd, args, time.Now()); err != nil && !errors.Is(err, errCompilationFailed) {
					return err
				}
				return nil
			})
			if err != nil {
				return err
			}
			infoColor.Fprintf(cmd.OutOrStdout(), "Watching %s for changes (Ctrl+C to stop)\n", strings.Join(roots, ", "))
			return watcher.Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output errors in JSON format")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed build output")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: build.output)")
	cmd.Flags().StringVar(&pkg, "package", "", "Package name of the generated code (default: build.package)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Always rebuild")
	cmd.Flags().BoolVarP(&watching, "watch", "w", false, "Rebuild whenever a source changes")

	return cmd
}

// builder runs one build of the project into output. Builds triggered by the
// watcher are serialized.
type builder struct {
	mu          sync.Mutex
	project     *project
	coordinator *cache.Coordinator
	pkg         string
	output      string
	asJSON      bool
	verbose     bool
}

func (b *builder) run(cmd *cobra.Command, args []string, startTime time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p := b.project
	infoColor := color.New(color.FgCyan)

	files, err := p.readSources(args)
	if err != nil {
		return err
	}
	if b.verbose {
		infoColor.Fprintf(cmd.OutOrStdout(), "Found %d source file(s)\n", len(files))
	}

	in, err := p.buildInput(files, b.pkg)
	if err != nil {
		return err
	}
	key := b.coordinator.Key(in)

	code, hit, err := b.coordinator.Build(cmd.Context(), key, func() ([]byte, error) {
		out, err := p.compile(files)
		if err != nil {
			return nil, err
		}
		snap := out.Registry().Snapshot()
		snap.Version = codegen.Version
		snap.SourceHash = key
		return codegen.NewGenerator().Generate(snap, b.pkg)
	})
	if err != nil {
		w := cmd.ErrOrStderr()
		if b.asJSON {
			w = cmd.OutOrStdout()
		}
		return reportErrors(w, err, b.asJSON)
	}

	if err := writeFile(b.output, code); err != nil {
		return err
	}

	if b.verbose {
		m := b.coordinator.Metrics()
		infoColor.Fprintf(cmd.OutOrStdout(), "Cache: %d hit(s), %d miss(es), %d error(s)\n", m.CacheHits, m.CacheMisses, m.CacheErrors)
	}
	note := ""
	if hit {
		note = " (cached)"
	}
	color.New(color.FgGreen, color.Bold).Fprintf(cmd.OutOrStdout(),
		"✓ Wrote %s in %v%s\n", b.output, time.Since(startTime).Round(time.Millisecond), note)
	return nil
}

// watchRoots are the directories holding the sources named by args
func watchRoots(p *project, args []string) ([]string, error) {
	if len(args) == 0 {
		return []string{p.cfg.Path(p.cfg.SourceDir)}, nil
	}

	seen := make(map[string]bool)
	var roots []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		dir := arg
		if !info.IsDir() {
			dir = filepath.Dir(arg)
		}
		if !seen[dir] {
			seen[dir] = true
			roots = append(roots, dir)
		}
	}
	return roots, nil
}
