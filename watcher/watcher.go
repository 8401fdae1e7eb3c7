// Package watcher turns raw fsnotify events into vault-relative file events
// delivered to a handler. It keeps a short per-path pending window so editor
// write bursts collapse into one event.
package watcher

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"vaultindex/indexer"
)

type EventType int

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
)

func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "CREATE"
	case EventModify:
		return "MODIFY"
	case EventDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// Handler receives settled file events. Paths are vault-relative.
type Handler interface {
	OnCreate(path string)
	OnModify(path string)
	OnDelete(path string)
}

type fileEvent struct {
	Type EventType
	Path string
}

type Watcher struct {
	root     string
	watcher  *fsnotify.Watcher
	ignore   *indexer.IgnoreMatcher
	handler  Handler
	debounce time.Duration
	done     chan struct{}

	pending   map[string]fileEvent
	pendingMu sync.Mutex
	timer     *time.Timer
}

func NewWatcher(root string, ignore *indexer.IgnoreMatcher, handler Handler, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		root:     root,
		watcher:  fsw,
		ignore:   ignore,
		handler:  handler,
		debounce: debounce,
		done:     make(chan struct{}),
		pending:  make(map[string]fileEvent),
	}, nil
}

func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addRecursive(w.root); err != nil {
		return err
	}

	go w.processEvents(ctx)

	return nil
}

func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

// addRecursive watches root and every non-ignored subdirectory.
func (w *Watcher) addRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip inaccessible paths
		}
		if !info.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(w.root, path)
		if err != nil {
			return nil
		}
		if w.ignore.ShouldSkipDir(relPath) {
			return filepath.SkipDir
		}

		if err := w.watcher.Add(path); err != nil {
			log.Printf("Failed to watch %s: %v", path, err)
		}
		return nil
	})
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Watcher error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	relPath, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return
	}

	if !w.ignore.IsEligible(relPath) {
		// A new directory still needs watching so files inside it are seen.
		if event.Has(fsnotify.Create) {
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !w.ignore.ShouldSkipDir(relPath) {
				if err := w.addRecursive(event.Name); err != nil {
					log.Printf("Failed to watch new directory %s: %v", event.Name, err)
				}
			}
		}
		return
	}

	var evType EventType
	switch {
	case event.Has(fsnotify.Create):
		evType = EventCreate
	case event.Has(fsnotify.Write):
		evType = EventModify
	case event.Has(fsnotify.Remove):
		evType = EventDelete
	case event.Has(fsnotify.Rename):
		// fsnotify reports the old path of a rename; it is gone from our
		// point of view. The new path arrives as a separate create.
		evType = EventDelete
	default:
		return
	}

	w.debounceEvent(fileEvent{Type: evType, Path: filepath.ToSlash(relPath)})
}

func (w *Watcher) debounceEvent(event fileEvent) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	// A pending delete is never downgraded by a trailing create or write.
	if existing, ok := w.pending[event.Path]; !ok || existing.Type != EventDelete || event.Type == EventDelete {
		w.pending[event.Path] = event
	}

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	w.pendingMu.Lock()
	events := make([]fileEvent, 0, len(w.pending))
	for _, event := range w.pending {
		events = append(events, event)
	}
	w.pending = make(map[string]fileEvent)
	w.pendingMu.Unlock()

	for _, event := range events {
		switch event.Type {
		case EventCreate:
			w.handler.OnCreate(event.Path)
		case EventModify:
			w.handler.OnModify(event.Path)
		case EventDelete:
			w.handler.OnDelete(event.Path)
		}
	}
}
