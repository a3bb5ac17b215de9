// Package watch publishes workspace change events for the tracked roots.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/joescharf/kanban/internal/events"
)

// DefaultDebounce coalesces bursts of writes (a ticket rename touches two
// files) into one event.
const DefaultDebounce = 200 * time.Millisecond

// Change is the payload of an events.WorkspaceChanged event.
type Change struct {
	Paths []string `json:"paths"`
}

// Watcher observes the tracked roots of a workspace.
type Watcher struct {
	root     string
	roots    []string
	pub      events.Publisher
	debounce time.Duration
}

// New returns a watcher over roots, given relative to the workspace root.
func New(root string, roots []string, pub events.Publisher) *Watcher {
	return &Watcher{root: root, roots: roots, pub: pub, debounce: DefaultDebounce}
}

// WithDebounce sets the quiet period before a change is published.
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	w.debounce = d
	return w
}

// Run watches until ctx is done. Roots that do not exist yet are picked up
// when they are created at the top level of the workspace.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	if err := fw.Add(w.root); err != nil {
		return fmt.Errorf("watch %s: %w", w.root, err)
	}
	for _, r := range w.roots {
		w.addTree(fw, filepath.Join(w.root, r))
	}

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			rel, tracked := w.relevant(ev.Name)
			if !tracked {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					w.addTree(fw, ev.Name)
				}
			}
			pending[rel] = struct{}{}
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch", "error", err)

		case <-timer.C:
			w.flush(pending)
			pending = make(map[string]struct{})

		case <-ctx.Done():
			return nil
		}
	}
}

// addTree watches dir and every directory beneath it. fsnotify is not
// recursive.
func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string) {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := fw.Add(path); err != nil {
				slog.Warn("watch directory", "path", path, "error", err)
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("walk tracked root", "path", dir, "error", err)
	}
}

// relevant maps an event path to a workspace-relative path and reports
// whether it lies under a tracked root. Hidden temp files are ignored.
func (w *Watcher) relevant(name string) (string, bool) {
	rel, err := filepath.Rel(w.root, name)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if base := filepath.Base(rel); strings.HasPrefix(base, ".") && !w.isRoot(rel) {
		return "", false
	}
	for _, r := range w.roots {
		r = strings.TrimSuffix(r, "/")
		if rel == r || strings.HasPrefix(rel, r+"/") {
			return rel, true
		}
	}
	return "", false
}

func (w *Watcher) isRoot(rel string) bool {
	for _, r := range w.roots {
		if strings.TrimSuffix(r, "/") == rel {
			return true
		}
	}
	return false
}

func (w *Watcher) flush(pending map[string]struct{}) {
	if len(pending) == 0 {
		return
	}
	paths := make([]string, 0, len(pending))
	for p := range pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	slog.Debug("workspace changed", "paths", paths)
	w.pub.Publish(events.Event{Type: events.WorkspaceChanged, Data: Change{Paths: paths}})
}
