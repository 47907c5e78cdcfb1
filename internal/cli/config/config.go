// Package config loads fieldmeta.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conduit-lang/fieldmeta/internal/catalog"
	"github.com/conduit-lang/fieldmeta/internal/format"
	"github.com/conduit-lang/fieldmeta/internal/logging"
)

// FileNames are the config file names searched for, in order
var FileNames = []string{"fieldmeta.yaml", "fieldmeta.yml"}

// Config represents the fieldmeta configuration
type Config struct {
	SourceDir string         `mapstructure:"source_dir"`
	Build     BuildConfig    `mapstructure:"build"`
	Kinds     []KindConfig   `mapstructure:"kinds"`
	Chains    []ChainConfig  `mapstructure:"chains"`
	Format    format.Config  `mapstructure:"format"`
	Cache     CacheConfig    `mapstructure:"cache"`
	Catalog   CatalogConfig  `mapstructure:"catalog"`
	Server    ServerConfig   `mapstructure:"server"`
	Log       logging.Config `mapstructure:"log"`

	// File is the config file that was read, empty when running on defaults
	File string `mapstructure:"-"`
	// Root is the directory relative paths are resolved against
	Root string `mapstructure:"-"`
}

// BuildConfig controls Go code generation
type BuildConfig struct {
	Output  string `mapstructure:"output"`
	Package string `mapstructure:"package"`
}

// KindConfig declares a metadata kind before any source is read
type KindConfig struct {
	Name    string `mapstructure:"name"`
	Default string `mapstructure:"default"`
}

// ChainConfig composes entry points into a chain
type ChainConfig struct {
	Name    string   `mapstructure:"name"`
	Members []string `mapstructure:"members"`
}

// CacheConfig configures the build cache
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

// RedisConfig locates the redis cache backend
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// CatalogConfig locates the SQL catalog
type CatalogConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Load reads the config file at path. With an empty path, fieldmeta.yaml is
// searched for from the working directory upwards; defaults apply when none is
// found.
func Load(path string) (*Config, error) {
	v := newViper()

	var root string
	if path != "" {
		v.SetConfigFile(path)
		root = filepath.Dir(path)
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		root = cwd
		if found, err := FindRoot(cwd); err == nil {
			root = found
		}
		v.SetConfigName("fieldmeta")
		v.SetConfigType("yaml")
		v.AddConfigPath(root)
	}

	file := ""
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		file = v.ConfigFileUsed()
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.File = file
	cfg.Root = root

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("source_dir", "schema")
	v.SetDefault("build.output", "build/fieldmeta/metadata.go")
	v.SetDefault("build.package", "metadata")
	v.SetDefault("format.indent_size", 4)
	v.SetDefault("format.align_fields", false)
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.prefix", "fieldmeta:")
	v.SetDefault("catalog.driver", "sqlite3")
	v.SetDefault("catalog.dsn", "fieldmeta.db")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 7070)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	// FIELDMETA_SERVER_PORT overrides server.port
	v.SetEnvPrefix("FIELDMETA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Path resolves p against the config root
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, p)
}

// DisplayFile names the config file in diagnostics
func (c *Config) DisplayFile() string {
	if c.File == "" {
		return "configuration"
	}
	return c.File
}

// FindRoot walks up from dir to the first directory holding a config file
func FindRoot(dir string) (string, error) {
	for {
		for _, name := range FileNames {
			if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
				return dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no fieldmeta.yaml found")
		}
		dir = parent
	}
}

// Validate checks the configuration
func Validate(cfg *Config) error {
	var problems []string

	if cfg.SourceDir == "" {
		problems = append(problems, "source_dir must not be empty")
	}
	if !isIdentifier(cfg.Build.Package) {
		problems = append(problems, fmt.Sprintf("build.package must be an identifier, got %q", cfg.Build.Package))
	}

	seen := map[string]bool{}
	for i, k := range cfg.Kinds {
		if !isIdentifier(k.Name) {
			problems = append(problems, fmt.Sprintf("kinds[%d].name must be an identifier, got %q", i, k.Name))
		}
		if seen[k.Name] {
			problems = append(problems, fmt.Sprintf("kind %q is declared twice", k.Name))
		}
		seen[k.Name] = true
	}
	for i, c := range cfg.Chains {
		if !isIdentifier(c.Name) {
			problems = append(problems, fmt.Sprintf("chains[%d].name must be an identifier, got %q", i, c.Name))
		}
		if len(c.Members) == 0 {
			problems = append(problems, fmt.Sprintf("chain %q has no members", c.Name))
		}
	}

	if cfg.Format.IndentSize < 1 {
		problems = append(problems, fmt.Sprintf("format.indent_size must be positive, got %d", cfg.Format.IndentSize))
	}

	switch cfg.Cache.Backend {
	case "memory", "redis":
	default:
		problems = append(problems, fmt.Sprintf("cache.backend must be memory or redis, got %q", cfg.Cache.Backend))
	}
	if cfg.Cache.TTL < 0 {
		problems = append(problems, "cache.ttl must not be negative")
	}

	if _, err := catalog.DialectFor(cfg.Catalog.Driver); err != nil {
		problems = append(problems, "catalog.driver: "+err.Error())
	}
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port must be between 1 and 65535, got %d", cfg.Server.Port))
	}
	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		problems = append(problems, "log.level: "+err.Error())
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  %s", strings.Join(problems, "\n  "))
	}
	return nil
}

func isIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
