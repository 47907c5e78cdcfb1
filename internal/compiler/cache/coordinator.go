package cache

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SourceExt is the extension of fieldmeta source files
const SourceExt = ".fmd"

// BuildMetrics tracks cache behaviour across builds
type BuildMetrics struct {
	Builds        int
	CacheHits     int
	CacheMisses   int
	CacheErrors   int
	BuildDuration time.Duration
	CacheDuration time.Duration
}

// CacheHitRate returns the cache hit rate as a percentage
func (bm *BuildMetrics) CacheHitRate() float64 {
	lookups := bm.CacheHits + bm.CacheMisses
	if lookups == 0 {
		return 0.0
	}
	return float64(bm.CacheHits) / float64(lookups) * 100.0
}

// Coordinator runs builds through the cache. With a nil cache every build runs.
type Coordinator struct {
	cache   Cache
	ttl     time.Duration
	hasher  *FileHasher
	metrics BuildMetrics
	logger  *zap.Logger
	mu      sync.Mutex
}

// NewCoordinator creates a coordinator storing outputs in cache for ttl
func NewCoordinator(cache Cache, ttl time.Duration, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		cache:  cache,
		ttl:    ttl,
		hasher: NewFileHasher(),
		logger: logger,
	}
}

// Key derives the cache key of a build
func (c *Coordinator) Key(in BuildInput) string {
	return c.hasher.BuildKey(in)
}

// Build returns the output stored under key, or runs build and stores its
// output. Cache failures are logged and never fail the build; a failed build
// stores nothing.
func (c *Coordinator) Build(ctx context.Context, key string, build func() ([]byte, error)) ([]byte, bool, error) {
	if c.cache != nil {
		start := time.Now()
		data, err := c.cache.Get(ctx, key)
		c.record(func(m *BuildMetrics) { m.CacheDuration += time.Since(start) })

		switch {
		case err == nil:
			c.record(func(m *BuildMetrics) { m.CacheHits++ })
			c.logger.Debug("build cache hit", zap.String("key", key))
			return data, true, nil
		case IsCacheMiss(err):
			c.record(func(m *BuildMetrics) { m.CacheMisses++ })
			c.logger.Debug("build cache miss", zap.String("key", key))
		default:
			c.record(func(m *BuildMetrics) { m.CacheErrors++ })
			c.logger.Warn("build cache unavailable", zap.String("key", key), zap.Error(err))
		}
	}

	start := time.Now()
	data, err := build()
	c.record(func(m *BuildMetrics) {
		m.Builds++
		m.BuildDuration += time.Since(start)
	})
	if err != nil {
		return nil, false, err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
			c.record(func(m *BuildMetrics) { m.CacheErrors++ })
			c.logger.Warn("failed to store build output", zap.String("key", key), zap.Error(err))
		}
	}
	return data, false, nil
}

// Invalidate drops the output stored under key
func (c *Coordinator) Invalidate(ctx context.Context, key string) error {
	if c.cache == nil {
		return nil
	}
	return c.cache.Delete(ctx, key)
}

// Clear drops every stored output and resets the metrics
func (c *Coordinator) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.metrics = BuildMetrics{}
	c.mu.Unlock()

	if c.cache == nil {
		return nil
	}
	return c.cache.Clear(ctx)
}

// Metrics returns a copy of the current metrics
func (c *Coordinator) Metrics() BuildMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics
}

func (c *Coordinator) record(update func(*BuildMetrics)) {
	c.mu.Lock()
	update(&c.metrics)
	c.mu.Unlock()
}

// ScanDirectory finds the source files under dir, sorted by path
func ScanDirectory(dir string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == SourceExt {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// ReadFiles loads build inputs from disk
func ReadFiles(paths []string) ([]File, error) {
	files := make([]File, 0, len(paths))
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		files = append(files, File{Path: path, Content: content})
	}
	return files, nil
}
