// Package dispatcher maps change events to actions: created and changed
// files are converted by an external command, deleted files lose their
// derived file, renames are only reported.
package dispatcher

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/capcom6/convwatch/internal/command"
	"github.com/capcom6/convwatch/internal/logging"
	"github.com/capcom6/convwatch/internal/watcher"
	logger "github.com/go-core-fx/cli-logger"
)

type Config struct {
	Command string
	Args    []string
	// WorkDir is the command's working directory. Empty means the directory
	// of the changed file.
	WorkDir    string
	DerivedExt string
}

type handlerFunc func(ctx context.Context, event watcher.Event)

// Syncer receives the derived path after every conversion and deletion.
type Syncer interface {
	Sync(ctx context.Context, absPath string) error
}

type Dispatcher struct {
	Config

	// Remove deletes a derived file and reports whether it succeeded.
	Remove func(ctx context.Context, path string) bool
	// Output receives the "Log:" lines with the command's output.
	Output io.Writer

	runner   command.Runner
	syncer   Syncer
	handlers map[watcher.EventKind]handlerFunc
	mu       sync.Mutex
}

// New wires the default handlers. syncer may be nil.
func New(cfg Config, runner command.Runner, syncer Syncer) *Dispatcher {
	d := &Dispatcher{
		Config: cfg,
		Remove: RemoveFile,
		Output: os.Stdout,

		runner: runner,
		syncer: syncer,
	}

	d.handlers = map[watcher.EventKind]handlerFunc{
		watcher.EventCreated: d.onChanged,
		watcher.EventChanged: d.onChanged,
		watcher.EventDeleted: d.onDeleted,
		watcher.EventRenamed: d.onRenamed,
	}

	return d
}

// on replaces the handler for kind.
func (d *Dispatcher) on(kind watcher.EventKind, handler handlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.handlers[kind] = handler
}

// Handle runs the handler for event to completion. Concurrent calls are
// serialized.
func (d *Dispatcher) Handle(ctx context.Context, event watcher.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx = logger.WithComponent(ctx, "dispatcher")

	handler, ok := d.handlers[event.Kind]
	if !ok {
		logging.FromContext(ctx).Debug(ctx, "no handler", logger.Fields{"event": event.String()})
		return
	}

	handler(ctx, event)
}

// Run handles events one at a time until ctx is done or the source closes
// the channel.
func (d *Dispatcher) Run(ctx context.Context, events watcher.EventsChannel) error {
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return ErrSourceClosed
			}
			d.Handle(ctx, event)
		case <-ctx.Done():
			return nil
		}
	}
}

func (d *Dispatcher) onChanged(ctx context.Context, event watcher.Event) {
	log := logging.FromContext(ctx)
	log.Info(ctx, "File changed", logger.Fields{"path": event.Path, "kind": string(event.Kind)})

	dir := d.WorkDir
	if dir == "" {
		dir = filepath.Dir(event.Path)
	}

	res, err := d.runner.Run(ctx, command.Invocation{
		Path: d.Command,
		Args: command.Expand(d.Args, event.Path),
		Dir:  dir,
	})
	if err != nil {
		log.Error(ctx, "can't run command", err, logger.Fields{"path": event.Path})
		return
	}

	if res.ExitCode != 0 {
		log.Debug(ctx, "command failed", logger.Fields{"command": d.Command, "status": res.ExitCode})
	}

	if output := strings.TrimRight(string(res.Output), "\r\n"); output != "" {
		fmt.Fprintf(d.Output, "Log: %s\n", output)
	}

	d.sync(ctx, DerivedPath(event.Path, d.DerivedExt))
}

func (d *Dispatcher) onDeleted(ctx context.Context, event watcher.Event) {
	derived := DerivedPath(event.Path, d.DerivedExt)

	log := logging.FromContext(ctx)
	log.Info(ctx, "File deleted", logger.Fields{"path": event.Path})

	if d.Remove(ctx, derived) {
		log.Info(ctx, "Derived file removed", logger.Fields{"path": derived})
	}

	d.sync(ctx, derived)
}

func (d *Dispatcher) onRenamed(ctx context.Context, event watcher.Event) {
	logging.FromContext(ctx).Info(ctx, "File renamed, no need to convert", logger.Fields{
		"from": event.OldPath,
		"to":   event.Path,
	})
}

func (d *Dispatcher) sync(ctx context.Context, derived string) {
	if d.syncer == nil {
		return
	}

	if err := d.syncer.Sync(ctx, derived); err != nil {
		logging.FromContext(ctx).Error(ctx, "can't mirror derived file", err, logger.Fields{"path": derived})
	}
}

// DerivedPath replaces the extension of source with ext.
func DerivedPath(source, ext string) string {
	return strings.TrimSuffix(source, filepath.Ext(source)) + "." + strings.TrimPrefix(ext, ".")
}

// RemoveFile deletes path, reporting failure instead of returning it.
func RemoveFile(ctx context.Context, path string) bool {
	if err := os.Remove(path); err != nil {
		logging.FromContext(ctx).Debug(ctx, "can't remove derived file", logger.Fields{"path": path, "error": err.Error()})
		return false
	}
	return true
}
