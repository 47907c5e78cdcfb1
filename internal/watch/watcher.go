// Package watch reruns a build whenever fieldmeta sources change.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDelay is how long a burst of changes must be quiet before a rebuild
const DefaultDelay = 100 * time.Millisecond

// SourceWatcher monitors source directories and reports changed source files
type SourceWatcher struct {
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	roots     []string
	ext       string
	ignored   []string
	onChange  func([]string) error
	logger    *zap.Logger
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// Options configure a SourceWatcher
type Options struct {
	// Ext selects the files reported, e.g. ".fmd"
	Ext string
	// Ignored holds base name patterns never reported
	Ignored []string
	// Delay overrides DefaultDelay
	Delay  time.Duration
	Logger *zap.Logger
}

// NewSourceWatcher creates a watcher over roots. onChange receives every batch
// of changed files, sorted.
func NewSourceWatcher(roots []string, opts Options, onChange func([]string) error) (*SourceWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	delay := opts.Delay
	if delay <= 0 {
		delay = DefaultDelay
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sw := &SourceWatcher{
		watcher:   watcher,
		debouncer: NewDebouncer(delay),
		roots:     roots,
		ext:       opts.Ext,
		ignored:   opts.Ignored,
		onChange:  onChange,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}

	sw.debouncer.SetCallback(func(files []string) {
		if err := sw.onChange(files); err != nil {
			sw.logger.Warn("rebuild failed", zap.Strings("files", files), zap.Error(err))
		}
	})

	return sw, nil
}

// Start watches every directory under the roots
func (sw *SourceWatcher) Start() error {
	for _, root := range sw.roots {
		if err := sw.addTree(root); err != nil {
			return err
		}
	}

	sw.wg.Add(1)
	go sw.watch()
	return nil
}

// Run starts the watcher and blocks until ctx is done
func (sw *SourceWatcher) Run(ctx context.Context) error {
	if err := sw.Start(); err != nil {
		sw.Stop()
		return err
	}
	<-ctx.Done()
	return sw.Stop()
}

// Stop stops the watcher; pending changes are dropped
func (sw *SourceWatcher) Stop() error {
	select {
	case <-sw.stopChan:
		return nil
	default:
		close(sw.stopChan)
	}

	err := sw.watcher.Close()
	sw.wg.Wait()
	sw.debouncer.Stop()
	return err
}

func (sw *SourceWatcher) watch() {
	defer sw.wg.Done()

	for {
		select {
		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			sw.handle(event)

		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			sw.logger.Warn("watch error", zap.Error(err))

		case <-sw.stopChan:
			return
		}
	}
}

func (sw *SourceWatcher) handle(event fsnotify.Event) {
	if sw.shouldIgnore(event.Name) {
		return
	}

	// new directories are watched as they appear
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := sw.addTree(event.Name); err != nil {
				sw.logger.Warn("failed to watch directory", zap.String("dir", event.Name), zap.Error(err))
			}
			return
		}
	}

	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	if !sw.matches(event.Name) {
		return
	}

	sw.logger.Debug("source changed", zap.String("file", event.Name), zap.Stringer("op", event.Op))
	sw.debouncer.Add(event.Name)
}

func (sw *SourceWatcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && sw.shouldIgnore(path) {
			return filepath.SkipDir
		}
		if err := sw.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch directory %s: %w", path, err)
		}
		sw.logger.Debug("watching directory", zap.String("dir", path))
		return nil
	})
}

// shouldIgnore skips hidden entries and the configured patterns
func (sw *SourceWatcher) shouldIgnore(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") && base != "." && base != ".." {
		return true
	}

	for _, pattern := range sw.ignored {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}

// matches reports whether path has the watched extension; an empty one matches all
func (sw *SourceWatcher) matches(path string) bool {
	return sw.ext == "" || filepath.Ext(path) == sw.ext
}

// Debouncer collects file changes and triggers callbacks after a delay
type Debouncer struct {
	duration time.Duration
	timer    *time.Timer
	files    map[string]struct{}
	mutex    sync.Mutex
	callback func([]string)
	stopped  bool
}

// NewDebouncer creates a new debouncer instance
func NewDebouncer(duration time.Duration) *Debouncer {
	return &Debouncer{
		duration: duration,
		files:    make(map[string]struct{}),
	}
}

// Add records a changed file and restarts the delay
func (d *Debouncer) Add(file string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.stopped {
		return
	}
	d.files[file] = struct{}{}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.duration, d.flush)
}

func (d *Debouncer) flush() {
	d.mutex.Lock()
	if len(d.files) == 0 || d.stopped {
		d.mutex.Unlock()
		return
	}

	files := make([]string, 0, len(d.files))
	for file := range d.files {
		files = append(files, file)
	}
	sort.Strings(files)
	d.files = make(map[string]struct{})
	callback := d.callback
	d.mutex.Unlock()

	// callbacks run without the lock
	if callback != nil {
		callback(files)
	}
}

// SetCallback sets the callback function
func (d *Debouncer) SetCallback(callback func([]string)) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.callback = callback
}

// Stop cancels a pending flush
func (d *Debouncer) Stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.stopped = true
}
