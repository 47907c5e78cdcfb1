package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/fieldmeta/internal/cli/config"
	"github.com/conduit-lang/fieldmeta/internal/compiler/cache"
	"github.com/conduit-lang/fieldmeta/internal/compiler/codegen"
	cerrors "github.com/conduit-lang/fieldmeta/internal/compiler/errors"
	"github.com/conduit-lang/fieldmeta/internal/compiler/expand"
	"github.com/conduit-lang/fieldmeta/internal/logging"
)

// errCompilationFailed is returned after compiler errors have been printed
var errCompilationFailed = fmt.Errorf("compilation failed")

// project bundles what every command needs: configuration and a logger
type project struct {
	cfg    *config.Config
	logger *zap.Logger
}

func loadProject(cmd *cobra.Command) (*project, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	return &project{cfg: cfg, logger: logger}, nil
}

// sourceFiles lists the inputs named by args, or every source under source_dir.
// Directories are scanned for source files.
func (p *project) sourceFiles(args []string) ([]string, error) {
	if len(args) == 0 {
		dir := p.cfg.Path(p.cfg.SourceDir)
		files, err := cache.ScanDirectory(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("no %s files found in %s", cache.SourceExt, dir)
		}
		return files, nil
	}

	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		found, err := cache.ScanDirectory(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", arg, err)
		}
		files = append(files, found...)
	}
	return files, nil
}

func (p *project) options() expand.Options {
	opts := expand.Options{
		ConfigFile: p.cfg.DisplayFile(),
		Logger:     p.logger,
	}
	for _, k := range p.cfg.Kinds {
		opts.Kinds = append(opts.Kinds, expand.KindDef{Name: k.Name, Default: k.Default})
	}
	for _, c := range p.cfg.Chains {
		opts.Chains = append(opts.Chains, expand.ChainDef{Name: c.Name, Members: c.Members})
	}
	return opts
}

// buildInput is what a build's output depends on: the generator, the
// configured kinds and chains, the package name and the sources
func (p *project) buildInput(files []cache.File, pkg string) (cache.BuildInput, error) {
	settings, err := json.Marshal(struct {
		Kinds   []config.KindConfig  `json:"kinds"`
		Chains  []config.ChainConfig `json:"chains"`
		Package string               `json:"package"`
	}{p.cfg.Kinds, p.cfg.Chains, pkg})
	if err != nil {
		return cache.BuildInput{}, err
	}
	return cache.BuildInput{Generator: codegen.Version, Config: settings, Files: files}, nil
}

// compile reads and compiles files
func (p *project) compile(files []cache.File) (*expand.Output, error) {
	sources := make([]expand.Source, len(files))
	for i, f := range files {
		sources[i] = expand.Source{Path: f.Path, Content: string(f.Content)}
	}
	return expand.Compile(sources, p.options())
}

// readSources reads the inputs named by args
func (p *project) readSources(args []string) ([]cache.File, error) {
	paths, err := p.sourceFiles(args)
	if err != nil {
		return nil, err
	}
	return cache.ReadFiles(paths)
}

// sourceHash is the build key of files under the configured package
func (p *project) sourceHash(files []cache.File) (string, error) {
	in, err := p.buildInput(files, p.cfg.Build.Package)
	if err != nil {
		return "", err
	}
	return cache.NewFileHasher().BuildKey(in), nil
}

// compileArgs compiles the sources named by args and derives their content hash
func (p *project) compileArgs(args []string) (*expand.Output, string, error) {
	files, err := p.readSources(args)
	if err != nil {
		return nil, "", err
	}
	out, err := p.compile(files)
	if err != nil {
		return nil, "", err
	}
	hash, err := p.sourceHash(files)
	if err != nil {
		return nil, "", err
	}
	return out, hash, nil
}

// openCache returns the configured build cache, or nil when caching is off
func (p *project) openCache(ctx context.Context) (cache.Cache, func(), error) {
	noop := func() {}
	if !p.cfg.Cache.Enabled {
		return nil, noop, nil
	}

	base := cache.Config{DefaultTTL: p.cfg.Cache.TTL, Prefix: p.cfg.Cache.Redis.Prefix}
	switch p.cfg.Cache.Backend {
	case "redis":
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     p.cfg.Cache.Redis.Addr,
			Password: p.cfg.Cache.Redis.Password,
			DB:       p.cfg.Cache.Redis.DB,
			Cache:    base,
		})
		if err != nil {
			return nil, noop, err
		}
		return rc, func() { rc.Close() }, nil
	default:
		return cache.NewMemoryCache(base), noop, nil
	}
}

// reportErrors prints compiler errors and replaces them with
// errCompilationFailed; other errors are returned unchanged
func reportErrors(w io.Writer, err error, asJSON bool) error {
	list := cerrors.AsList(err)
	if list == nil {
		return err
	}

	if asJSON {
		out, jsonErr := list.ToJSON()
		if jsonErr != nil {
			return jsonErr
		}
		fmt.Fprintln(w, out)
		return errCompilationFailed
	}

	fmt.Fprint(w, cerrors.FormatErrorList(list))
	return errCompilationFailed
}

// writeFile writes data to path, creating parent directories
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// withFile names file as the location of compiler errors in err
func withFile(err error, file string) error {
	if list := cerrors.AsList(err); list != nil {
		return list.WithFile(file)
	}
	return err
}
