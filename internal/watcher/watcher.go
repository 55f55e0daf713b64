package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/capcom6/convwatch/internal/logging"
	"github.com/fsnotify/fsnotify"
	logger "github.com/go-core-fx/cli-logger"
	"github.com/samber/lo"
)

const (
	DefaultRenameWindow = 100 * time.Millisecond

	eventsBuffer = 64
)

type Options struct {
	// Recursive also watches subdirectories, including the ones created later.
	Recursive bool
	// Pattern is matched against the base name of every path. Empty matches all.
	Pattern string
	// Excludes are matched against paths relative to the root.
	Excludes []string
	// RenameWindow is how long a rename waits for the matching create.
	RenameWindow time.Duration
}

// Watcher turns fsnotify notifications into change events for the files
// below RootPath that match the configured pattern.
type Watcher struct {
	RootPath string
	Options

	absRoot   string
	fswatcher *fsnotify.Watcher
	events    chan Event

	// known holds the last seen identity of every path below the root, so a
	// rename can be told apart from an unrelated create.
	known map[string]os.FileInfo

	pendingRename *pendingRename
	renameTimer   *time.Timer
}

type pendingRename struct {
	path string
	info os.FileInfo
}

func New(rootPath string, opts Options) *Watcher {
	if opts.Pattern == "" {
		opts.Pattern = "*"
	}
	if opts.RenameWindow <= 0 {
		opts.RenameWindow = DefaultRenameWindow
	}

	return &Watcher{
		RootPath: rootPath,
		Options:  opts,
	}
}

// Watch subscribes to the root and delivers events until ctx is done. The
// returned channel is closed when watching stops.
func (w *Watcher) Watch(ctx context.Context, wg *sync.WaitGroup) (EventsChannel, error) {
	if w.events != nil {
		return w.events, nil
	}

	if err := w.open(); err != nil {
		return nil, err
	}

	ctx = logger.WithComponent(ctx, "watcher")
	log := logging.FromContext(ctx)

	wg.Add(1)
	go func() {
		defer func() {
			w.clearRename()
			w.fswatcher.Close()
			close(w.events)
			w.fswatcher = nil
			w.events = nil
			w.known = nil
			wg.Done()
		}()

		for {
			select {
			case event, ok := <-w.fswatcher.Events:
				if !ok {
					return
				}

				log.Debug(ctx, "fsnotify event", logger.Fields{"op": event.Op.String(), "path": event.Name})
				if err := w.processEvent(ctx, event); err != nil {
					log.Error(ctx, "can't process event", err, logger.Fields{"path": event.Name})
				}

			case <-w.renameExpired():
				w.flushRename(ctx)

			case err, ok := <-w.fswatcher.Errors:
				if !ok {
					return
				}
				if errors.Is(err, fsnotify.ErrEventOverflow) {
					// dropped events are not recovered
					log.Warn(ctx, "events were dropped", logger.Fields{"error": err.Error()})
					continue
				}
				log.Error(ctx, "fsnotify error", err)

			case <-ctx.Done():
				return
			}
		}
	}()

	return w.events, nil
}

func (w *Watcher) open() error {
	rootPath, err := w.prepareRoot()
	if err != nil {
		return fmt.Errorf("can't prepare root: %w", err)
	}
	w.absRoot = rootPath
	w.known = map[string]os.FileInfo{}

	w.fswatcher, err = fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("can't create fsnotify watcher: %w", err)
	}

	if w.Recursive {
		err = w.addRecursive(rootPath)
	} else {
		err = w.addDir(rootPath)
	}
	if err != nil {
		w.fswatcher.Close()
		w.fswatcher = nil
		return fmt.Errorf("can't watch %s: %w", rootPath, err)
	}

	w.events = make(chan Event, eventsBuffer)

	return nil
}

func (w *Watcher) processEvent(ctx context.Context, source fsnotify.Event) error {
	if source.Name == "" || source.Name == "." {
		return nil
	}
	if w.isExcluded(source.Name) {
		return nil
	}

	if w.pendingRename != nil {
		if source.Has(fsnotify.Create) && w.isRenameTarget(source.Name) {
			oldPath := w.pendingRename.path
			w.clearRename()
			return w.processMove(ctx, oldPath, source.Name)
		}
		w.flushRename(ctx)
	}

	switch {
	case source.Has(fsnotify.Rename):
		w.unwatch(source.Name)
		w.pendingRename = &pendingRename{path: source.Name, info: w.known[source.Name]}
		w.forget(source.Name)
		w.renameTimer = time.NewTimer(w.RenameWindow)
		return nil
	case source.Has(fsnotify.Remove):
		w.unwatch(source.Name)
		w.forget(source.Name)
		w.emit(ctx, Event{Kind: EventDeleted, Path: source.Name})
		return nil
	case source.Has(fsnotify.Create):
		return w.processCreate(ctx, source.Name)
	case source.Has(fsnotify.Write):
		w.remember(source.Name)
		w.emit(ctx, Event{Kind: EventChanged, Path: source.Name})
		return nil
	case source.Has(fsnotify.Chmod):
		// unlinking an open file reports an attribute change first
		exists, isDir, err := fsInfo(source.Name)
		if err != nil {
			return err
		}
		if exists && !isDir {
			w.remember(source.Name)
			w.emit(ctx, Event{Kind: EventChanged, Path: source.Name})
		}
		return nil
	}

	return nil
}

func (w *Watcher) processCreate(ctx context.Context, fullpath string) error {
	exists, isDir, err := fsInfo(fullpath)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	w.remember(fullpath)

	if !isDir {
		w.emit(ctx, Event{Kind: EventCreated, Path: fullpath})
		return nil
	}

	if !w.Recursive {
		return nil
	}

	if err := w.addRecursive(fullpath); err != nil {
		return fmt.Errorf("can't watch %s: %w", fullpath, err)
	}

	return w.materialize(ctx, fullpath)
}

func (w *Watcher) processMove(ctx context.Context, oldPath, newPath string) error {
	w.remember(newPath)

	if w.Recursive {
		if _, isDir, _ := fsInfo(newPath); isDir {
			if err := w.addRecursive(newPath); err != nil {
				return fmt.Errorf("can't watch %s: %w", newPath, err)
			}
		}
	}

	w.emit(ctx, Event{Kind: EventRenamed, Path: newPath, OldPath: oldPath})

	return nil
}

// isRenameTarget reports whether fullpath is the file the pending rename
// moved away, rather than a new file created meanwhile.
func (w *Watcher) isRenameTarget(fullpath string) bool {
	if w.pendingRename.info == nil {
		return false
	}

	info, err := os.Stat(fullpath)
	if err != nil {
		return false
	}

	return os.SameFile(w.pendingRename.info, info)
}

func (w *Watcher) remember(fullpath string) {
	if w.known == nil {
		return
	}

	info, err := os.Stat(fullpath)
	if err != nil {
		return
	}
	w.known[fullpath] = info
}

func (w *Watcher) forget(fullpath string) {
	prefix := fullpath + string(filepath.Separator)
	for path := range w.known {
		if path == fullpath || strings.HasPrefix(path, prefix) {
			delete(w.known, path)
		}
	}
}

// materialize announces the files already inside a new directory. Nested
// directories are watched by addRecursive but their files are not announced.
func (w *Watcher) materialize(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("can't read directory %s: %w", dir, err)
	}

	files := lo.Filter(entries, func(entry os.DirEntry, _ int) bool {
		return !entry.IsDir()
	})

	for _, file := range files {
		fullpath := filepath.Join(dir, file.Name())
		if w.isExcluded(fullpath) {
			continue
		}
		w.emit(ctx, Event{Kind: EventCreated, Path: fullpath})
	}

	return nil
}

// flushRename reports a rename that was not followed by a create: the file
// left the watched tree.
func (w *Watcher) flushRename(ctx context.Context) {
	if w.pendingRename == nil {
		return
	}

	oldPath := w.pendingRename.path
	w.clearRename()

	w.emit(ctx, Event{Kind: EventDeleted, Path: oldPath})
}

func (w *Watcher) clearRename() {
	if w.renameTimer != nil {
		w.renameTimer.Stop()
	}
	w.renameTimer = nil
	w.pendingRename = nil
}

func (w *Watcher) renameExpired() <-chan time.Time {
	if w.renameTimer == nil {
		return nil
	}
	return w.renameTimer.C
}

func (w *Watcher) emit(ctx context.Context, event Event) {
	if !w.matches(event.Path) && (event.OldPath == "" || !w.matches(event.OldPath)) {
		return
	}

	select {
	case w.events <- event:
	case <-ctx.Done():
	}
}

func (w *Watcher) matches(fullpath string) bool {
	ok, err := doublestar.Match(w.Pattern, filepath.Base(fullpath))
	return err == nil && ok
}

func (w *Watcher) unwatch(fullpath string) {
	if w.fswatcher == nil {
		return
	}

	prefix := fullpath + string(filepath.Separator)
	for _, entry := range w.fswatcher.WatchList() {
		if entry == fullpath || strings.HasPrefix(entry, prefix) {
			_ = w.fswatcher.Remove(entry)
		}
	}
}

func (w *Watcher) prepareRoot() (string, error) {
	rootPath, err := filepath.Abs(w.RootPath)
	if err != nil {
		return rootPath, fmt.Errorf("filepath.Abs: %w", err)
	}

	exists, isDir, err := fsInfo(rootPath)
	if err != nil {
		return rootPath, err
	}
	if !exists || !isDir {
		return rootPath, fmt.Errorf("%w: %s", ErrNotDirectory, rootPath)
	}

	return rootPath, nil
}

// addDir watches dir and records the identity of its entries.
func (w *Watcher) addDir(dir string) error {
	err := w.fswatcher.Add(dir)
	if err != nil {
		return fmt.Errorf("fswatcher.Add: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("os.ReadDir: %w", err)
	}

	for _, entry := range entries {
		fullpath := filepath.Join(dir, entry.Name())
		if info, infoErr := entry.Info(); infoErr == nil && w.known != nil {
			w.known[fullpath] = info
		}
	}

	return nil
}

func (w *Watcher) addRecursive(path string) error {
	if w.isExcluded(path) {
		return nil
	}

	if err := w.addDir(path); err != nil {
		return err
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("os.ReadDir: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		path := filepath.Join(path, entry.Name())
		err := w.addRecursive(path)
		if err != nil {
			return err
		}
	}

	return nil
}

func (w *Watcher) isExcluded(fullpath string) bool {
	if len(w.Excludes) == 0 || w.absRoot == "" {
		return false
	}

	rel, err := filepath.Rel(w.absRoot, fullpath)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return false
	}
	rel = filepath.ToSlash(rel)

	for _, exclude := range w.Excludes {
		if ok, _ := doublestar.Match(exclude, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(strings.TrimSuffix(exclude, "/")+"/**", rel); ok {
			return true
		}
	}
	return false
}

func fsInfo(path string) (bool, bool, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, false, nil
		}
		return false, false, fmt.Errorf("os.Stat: %w", err)
	}

	return true, fi.IsDir(), nil
}
