// Package watcher reloads model files when they change on disk.
package watcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sourcepole/qgis-interlis-plugin/internal/domain"
)

// DefaultDebounce is the quiet period after the last event on a file.
const DefaultDebounce = 500 * time.Millisecond

// Event is a debounced change of one model file.
type Event struct {
	Path      string
	Operation Operation
}

// Operation represents the type of file operation.
type Operation int

// File operation types.
const (
	OpCreate Operation = iota
	OpModify
	OpDelete
)

// String returns the string representation of the operation.
func (o Operation) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Handler is called once per debounced event. Calls are serialized.
type Handler func(ctx context.Context, event Event) error

// Config holds watcher configuration.
type Config struct {
	Paths    []string
	Debounce time.Duration
	// Filter selects the files to report. Defaults to IlisMeta documents.
	Filter func(path string) bool
}

// Watcher reports model file changes in a set of directories.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	handler   Handler
	logger    *slog.Logger
	config    Config

	mu      sync.Mutex
	pending map[string]*pending
	handle  sync.Mutex
	wg      sync.WaitGroup
}

type pending struct {
	op    Operation
	timer *time.Timer
}

// New creates a new file watcher.
func New(cfg Config, handler Handler, logger *slog.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Filter == nil {
		cfg.Filter = domain.IsModelFile
	}

	return &Watcher{
		fsWatcher: fsWatcher,
		handler:   handler,
		logger:    logger,
		config:    cfg,
		pending:   make(map[string]*pending),
	}, nil
}

// Start watches the configured paths until ctx is done. Paths that cannot
// be watched are logged and skipped.
func (w *Watcher) Start(ctx context.Context) error {
	for _, path := range w.config.Paths {
		if err := w.AddPath(path); err != nil {
			w.logger.Warn("failed to watch path", "path", path, "error", err)
		}
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.eventLoop(ctx)
	}()
	return nil
}

// Stop stops the watcher and cancels pending events.
func (w *Watcher) Stop() error {
	err := w.fsWatcher.Close()
	w.wg.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()
	for path, p := range w.pending {
		p.timer.Stop()
		delete(w.pending, path)
	}
	return err
}

// AddPath adds a directory to watch.
func (w *Watcher) AddPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := w.fsWatcher.Add(absPath); err != nil {
		return err
	}
	w.logger.Info("watching directory", "path", absPath)
	return nil
}

// RemovePath stops watching a directory.
func (w *Watcher) RemovePath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	return w.fsWatcher.Remove(absPath)
}

func (w *Watcher) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if w.config.Filter(event.Name) {
				w.schedule(ctx, event.Name, fsnotifyOpToOperation(event.Op))
			}
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

// schedule merges op into the pending event for path and restarts its
// debounce timer.
func (w *Watcher) schedule(ctx context.Context, path string, op Operation) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if p, ok := w.pending[path]; ok {
		p.op = mergeOperations(p.op, op)
		p.timer.Reset(w.config.Debounce)
		return
	}

	w.pending[path] = &pending{
		op: op,
		timer: time.AfterFunc(w.config.Debounce, func() {
			w.fire(ctx, path)
		}),
	}
}

func (w *Watcher) fire(ctx context.Context, path string) {
	w.mu.Lock()
	p, ok := w.pending[path]
	delete(w.pending, path)
	w.mu.Unlock()
	if !ok || ctx.Err() != nil {
		return
	}

	w.handle.Lock()
	defer w.handle.Unlock()

	event := Event{Path: path, Operation: p.op}
	w.logger.Info("model file changed", "path", path, "operation", p.op.String())
	if err := w.handler(ctx, event); err != nil {
		w.logger.Error("handler error", "path", path, "operation", p.op.String(), "error", err)
	}
}

// mergeOperations combines the pending and the new operation of a file. A
// delete wins, except that a file recreated after a delete is a create.
func mergeOperations(existing, next Operation) Operation {
	switch {
	case existing == OpDelete && next == OpCreate:
		return OpCreate
	case next == OpDelete:
		return OpDelete
	case existing == OpCreate:
		return OpCreate
	default:
		return next
	}
}

func fsnotifyOpToOperation(op fsnotify.Op) Operation {
	switch {
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return OpDelete
	case op.Has(fsnotify.Create):
		return OpCreate
	default:
		return OpModify
	}
}
