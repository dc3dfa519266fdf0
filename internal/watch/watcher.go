package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"p8sync/internal/cart"
	"p8sync/internal/trace"
)

// DefaultDebounce is the quiet period before an action is dispatched.
const DefaultDebounce = time.Second

// Handler performs actions. Calls never overlap.
type Handler interface {
	Sync(ctx context.Context, luaPath string) error
	Bootstrap(ctx context.Context, dir string) error
}

// Options configures a Watcher.
type Options struct {
	Recursive bool
	Debounce  time.Duration // 0 means DefaultDebounce; negative disables debouncing
	// OnError receives handler and notification errors. The loop keeps going.
	OnError func(error)
}

// Watcher turns filesystem notifications under a root directory into
// handler calls.
type Watcher struct {
	root    string
	opts    Options
	handler Handler
	fsw     *fsnotify.Watcher
	deb     *Debouncer
}

// New starts watching root (and its subdirectories when opts.Recursive).
func New(root string, h Handler, opts Options) (*Watcher, error) {
	if opts.Debounce == 0 {
		opts.Debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		root:    root,
		opts:    opts,
		handler: h,
		fsw:     fsw,
		deb:     NewDebouncer(max(opts.Debounce, 0)),
	}
	if err := w.addTree(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Close stops the underlying notifier.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Dirs returns the directories currently watched.
func (w *Watcher) Dirs() []string {
	return w.fsw.WatchList()
}

func (w *Watcher) addTree(dir string) error {
	if !w.opts.Recursive {
		return w.fsw.Add(dir)
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func isHidden(name string) bool {
	return len(name) > 1 && name[0] == '.'
}

// Run dispatches actions until ctx is done or the notifier is closed.
func (w *Watcher) Run(ctx context.Context) error {
	ctx, span := trace.Start(ctx, trace.ScopeDriver, "watch")
	defer span.End(w.root)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			for _, ev := range w.translate(raw) {
				act := Classify(ev)
				trace.Point(trace.FromContext(ctx), trace.ScopeLine, "watch.event",
					fmt.Sprintf("%s %s -> %s", ev.Op, ev.Path, act.Kind), span.ID())
				if act.Kind == ActionIgnore {
					continue
				}
				w.deb.Add(act, time.Now())
			}
			w.schedule(timer)
			w.dispatch(ctx, time.Now())

		case <-timer.C:
			w.dispatch(ctx, time.Now())
			w.schedule(timer)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.report(ctx, err)
		}
	}
}

func (w *Watcher) schedule(timer *time.Timer) {
	next, ok := w.deb.Next()
	if !ok {
		return
	}
	timer.Reset(max(time.Until(next), 0))
}

func (w *Watcher) dispatch(ctx context.Context, now time.Time) {
	due := w.deb.Due(now)
	if len(due) > 0 {
		trace.Point(trace.FromContext(ctx), trace.ScopeDriver, "watch.dispatch",
			fmt.Sprintf("%d due, %d pending", len(due), w.deb.Len()), trace.ParentFrom(ctx))
	}
	for _, act := range due {
		if ctx.Err() != nil {
			return
		}
		var err error
		switch act.Kind {
		case ActionSync:
			err = w.handler.Sync(ctx, act.Path)
		case ActionBootstrap:
			err = w.handler.Bootstrap(ctx, act.Path)
		}
		if err != nil {
			w.report(ctx, err)
		}
	}
}

func (w *Watcher) report(ctx context.Context, err error) {
	trace.Error(trace.FromContext(ctx), "watch", err, trace.ParentFrom(ctx))
	if w.opts.OnError != nil {
		w.opts.OnError(err)
	}
}

// translate reduces a raw notification to zero or more events. New
// directories are added to the watch list in recursive mode.
func (w *Watcher) translate(raw fsnotify.Event) []Event {
	path := raw.Name
	switch {
	case raw.Has(fsnotify.Create):
		st, err := os.Stat(path)
		isDir := err == nil && st.IsDir()
		if isDir && w.opts.Recursive && !isHidden(filepath.Base(path)) {
			if err := w.addTree(path); err != nil && !errors.Is(err, fs.ErrNotExist) && w.opts.OnError != nil {
				w.opts.OnError(err)
			}
		}
		op := OpCreated
		// fsnotify reports the target of a rename as Create
		if !isDir && cart.IsCompanion(path) {
			op = OpMovedTo
		}
		return []Event{{Op: op, Path: path, IsDir: isDir}}
	case raw.Has(fsnotify.Write):
		return []Event{{Op: OpModified, Path: path}}
	case raw.Has(fsnotify.Remove), raw.Has(fsnotify.Rename):
		// Rename is delivered for the old name only
		return []Event{{Op: OpDeleted, Path: path}}
	}
	return nil
}
