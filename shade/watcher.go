package shade

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatcherConfig configures the file watcher
type WatcherConfig struct {
	// Root is the input directory to watch
	Root string

	// Out is the directory relocated files are written to
	Out string

	// Shader relocates changed files
	Shader *Shader

	// DebounceDelay is how long to wait for more changes before processing
	DebounceDelay time.Duration

	// Logger for logging events
	Logger *slog.Logger
}

// WatchOperation indicates the type of file operation
type WatchOperation string

const (
	OpCreate WatchOperation = "create"
	OpModify WatchOperation = "modify"
	OpDelete WatchOperation = "delete"
)

// WatchEvent reports one relocated or removed file
type WatchEvent struct {
	// Path is the file path relative to Root
	Path string

	// Target is the output path relative to Out
	Target string

	Operation WatchOperation

	// Error if relocation failed
	Error error
}

// Watcher keeps Out in sync with Root, relocating files as they change.
type Watcher struct {
	config  WatcherConfig
	watcher *fsnotify.Watcher
	logger  *slog.Logger
	out     string // absolute Out, skipped when it lies under Root

	pendingMu sync.Mutex
	pending   map[string]fsnotify.Op // path → most recent operation

	// content hashes and output targets of relocated files
	stateMu sync.Mutex
	hashes  map[string]string
	targets map[string]string

	events chan WatchEvent
	done   chan struct{}
}

// NewWatcher creates a new file watcher
func NewWatcher(config WatcherConfig) (*Watcher, error) {
	if config.Shader == nil {
		return nil, errors.New("watcher requires a shader")
	}
	var out string
	if config.Out != "" {
		abs, err := filepath.Abs(config.Out)
		if err != nil {
			return nil, err
		}
		out = abs
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if config.DebounceDelay == 0 {
		config.DebounceDelay = 100 * time.Millisecond
	}

	return &Watcher{
		config:  config,
		watcher: fsw,
		logger:  logger,
		out:     out,
		pending: make(map[string]fsnotify.Op),
		hashes:  make(map[string]string),
		targets: make(map[string]string),
		events:  make(chan WatchEvent, 100),
		done:    make(chan struct{}),
	}, nil
}

// Events returns the channel of watch events. It is closed when the
// watcher stops.
func (w *Watcher) Events() <-chan WatchEvent {
	return w.events
}

// Start relocates every existing file, then watches Root until ctx is
// cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	err := w.addWatchesRecursive(w.config.Root)
	if err == nil {
		err = filepath.WalkDir(w.config.Root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != w.config.Root && w.skip(path) {
					return filepath.SkipDir
				}
				return nil
			}
			w.relocate(path, fsnotify.Create, false)
			return nil
		})
	}
	if err != nil {
		_ = w.watcher.Close()
		close(w.events)
		close(w.done)
		return err
	}

	go w.processEvents(ctx)

	w.logger.Info("File watcher started",
		"root", w.config.Root,
		"out", w.config.Out,
		"debounce", w.config.DebounceDelay)
	return nil
}

// Stop stops a started watcher and waits for event processing to finish.
func (w *Watcher) Stop() error {
	err := w.watcher.Close()
	<-w.done
	return err
}

// skip reports whether a directory is hidden or holds the output.
func (w *Watcher) skip(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".") || w.inOut(path)
}

// inOut reports whether path is the output directory or lies below it.
func (w *Watcher) inOut(path string) bool {
	if w.out == "" {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return abs == w.out || strings.HasPrefix(abs, w.out+string(filepath.Separator))
}

func (w *Watcher) addWatchesRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.skip(path) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("Failed to watch directory",
				"path", path,
				"error", err)
		} else {
			w.logger.Debug("Watching directory", "path", path)
		}
		return nil
	})
}

// processEvents handles fsnotify events with debouncing
func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.done)
	defer close(w.events)

	ticker := time.NewTicker(w.config.DebounceDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", "error", err)

		case <-ticker.C:
			w.flushPending(ctx)
		}
	}
}

func (w *Watcher) handleFSEvent(event fsnotify.Event) {
	path := event.Name
	if w.inOut(path) {
		return
	}
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if !w.skip(path) {
				w.handleNewDirectory(path)
			}
			return
		}
	}
	if event.Op == fsnotify.Chmod {
		return
	}

	w.pendingMu.Lock()
	w.pending[path] = event.Op
	w.pendingMu.Unlock()

	w.logger.Debug("File change detected",
		"path", path,
		"op", event.Op.String())
}

// handleNewDirectory watches a new directory and queues files that were
// created in it before the watch was in place.
func (w *Watcher) handleNewDirectory(path string) {
	if err := w.addWatchesRecursive(path); err != nil {
		w.logger.Warn("Failed to watch new directory", "path", path, "error", err)
		return
	}
	_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if p != path && w.skip(p) {
				return filepath.SkipDir
			}
			return nil
		}
		w.pendingMu.Lock()
		w.pending[p] = fsnotify.Create
		w.pendingMu.Unlock()
		return nil
	})
}

// flushPending processes accumulated changes
func (w *Watcher) flushPending(ctx context.Context) {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}
	toProcess := w.pending
	w.pending = make(map[string]fsnotify.Op)
	w.pendingMu.Unlock()

	for path, op := range toProcess {
		if ctx.Err() != nil {
			return
		}
		w.relocate(path, op, true)
	}
}

// relocate brings the output for one input path up to date.
func (w *Watcher) relocate(path string, op fsnotify.Op, notify bool) {
	rel, err := filepath.Rel(w.config.Root, path)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	event := WatchEvent{Path: rel}

	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		w.remove(rel, notify)
		return
	}
	if err != nil {
		event.Error = err
		w.sendEvent(event, notify)
		return
	}

	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:])
	w.stateMu.Lock()
	old, had := w.hashes[rel]
	w.stateMu.Unlock()
	if had && old == hash {
		return
	}

	r, err := w.config.Shader.File(rel, content)
	if err != nil {
		event.Error = err
		w.sendEvent(event, notify)
		return
	}
	event.Target = r.Target
	target := filepath.Join(w.config.Out, filepath.FromSlash(r.Target))
	err = os.MkdirAll(filepath.Dir(target), 0o755)
	if err == nil {
		err = os.WriteFile(target, r.Content, 0o644)
	}
	if err != nil {
		event.Error = err
		w.sendEvent(event, notify)
		return
	}

	w.stateMu.Lock()
	w.hashes[rel] = hash
	w.targets[rel] = r.Target
	w.stateMu.Unlock()

	event.Operation = OpModify
	if op.Has(fsnotify.Create) || !had {
		event.Operation = OpCreate
	}
	w.sendEvent(event, notify)
}

func (w *Watcher) remove(rel string, notify bool) {
	w.stateMu.Lock()
	target, ok := w.targets[rel]
	delete(w.hashes, rel)
	delete(w.targets, rel)
	w.stateMu.Unlock()
	if !ok {
		return
	}
	event := WatchEvent{Path: rel, Target: target, Operation: OpDelete}
	if err := os.Remove(filepath.Join(w.config.Out, filepath.FromSlash(target))); err != nil && !errors.Is(err, fs.ErrNotExist) {
		event.Error = err
	}
	w.sendEvent(event, notify)
}

// sendEvent sends an event to the output channel
func (w *Watcher) sendEvent(event WatchEvent, notify bool) {
	if event.Error != nil {
		w.logger.Warn("Relocation failed", "path", event.Path, "error", event.Error)
	}
	if !notify {
		return
	}
	select {
	case w.events <- event:
		w.logger.Debug("Sent watch event",
			"path", event.Path,
			"op", event.Operation)
	default:
		w.logger.Warn("Event channel full, dropping event",
			"path", event.Path)
	}
}
