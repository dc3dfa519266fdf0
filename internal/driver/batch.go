package driver

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"p8sync/internal/cart"
	"p8sync/internal/cartsync"
	"p8sync/internal/source"
	"p8sync/internal/trace"
)

// Options configures SyncAll.
type Options struct {
	Jobs     int        // 0 means GOMAXPROCS
	Cache    *DiskCache // nil disables skipping and recording
	Progress ProgressSink
}

// PairResult is the outcome for one companion file.
type PairResult struct {
	Lua     string
	Report  cartsync.Report
	Skipped bool // cache says the cartridge is already up to date
	Err     error
	Elapsed time.Duration
}

// Summary counts results by outcome.
type Summary struct {
	Written   int
	Unchanged int
	Skipped   int
	Failed    int
}

// Summarize counts results.
func Summarize(results []PairResult) Summary {
	var s Summary
	for _, r := range results {
		switch {
		case r.Err != nil:
			s.Failed++
		case r.Skipped:
			s.Skipped++
		case r.Report.Status == cartsync.StatusUnchanged:
			s.Unchanged++
		default:
			s.Written++
		}
	}
	return s
}

// Total returns the number of pairs the summary covers.
func (s Summary) Total() int {
	return s.Written + s.Unchanged + s.Skipped + s.Failed
}

// SyncAll syncs every companion in luaPaths, at most opts.Jobs at a time.
// A failing pair never stops the others; its error lands in its PairResult.
// The returned error is non-nil only when ctx is cancelled.
func SyncAll(ctx context.Context, s *cartsync.Syncer, luaPaths []string, opts Options) ([]PairResult, error) {
	ctx, span := trace.Start(ctx, trace.ScopeDriver, "sync-all")
	defer span.End("")

	results := make([]PairResult, len(luaPaths))
	if len(luaPaths) == 0 {
		return results, nil
	}
	for _, p := range luaPaths {
		emit(opts.Progress, Event{File: p, Stage: StageSync, Status: StatusQueued})
	}

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	optionsKey := OptionsKey(s.Options())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(luaPaths)))
	for i, p := range luaPaths {
		g.Go(func() error {
			// индекс i уникален для горутины, мьютекс не нужен
			results[i] = syncOne(gctx, s, p, optionsKey, opts)
			return nil
		})
	}
	_ = g.Wait()

	sum := Summarize(results)
	span.WithExtra("written", fmt.Sprint(sum.Written)).
		WithExtra("skipped", fmt.Sprint(sum.Skipped)).
		WithExtra("failed", fmt.Sprint(sum.Failed))
	return results, ctx.Err()
}

func syncOne(ctx context.Context, s *cartsync.Syncer, luaPath string, optionsKey source.Digest, opts Options) PairResult {
	res := PairResult{Lua: luaPath}
	start := time.Now()
	if err := ctx.Err(); err != nil {
		res.Err = err
		emit(opts.Progress, Event{File: luaPath, Stage: StageSync, Status: StatusError, Err: err})
		return res
	}

	if opts.Cache != nil {
		emit(opts.Progress, Event{File: luaPath, Stage: StageCache, Status: StatusWorking})
		if fresh(opts.Cache, luaPath, optionsKey) {
			res.Skipped = true
			res.Elapsed = time.Since(start)
			emit(opts.Progress, Event{File: luaPath, Stage: StageCache, Status: StatusSkipped, Elapsed: res.Elapsed})
			return res
		}
	}

	emit(opts.Progress, Event{File: luaPath, Stage: StageSync, Status: StatusWorking})
	res.Report, res.Err = s.Sync(ctx, luaPath)
	res.Elapsed = time.Since(start)
	if res.Err != nil {
		emit(opts.Progress, Event{File: luaPath, Stage: StageSync, Status: StatusError, Err: res.Err, Elapsed: res.Elapsed})
		return res
	}
	if opts.Cache != nil {
		if err := opts.Cache.Put(luaPath, EntryFromReport(res.Report, optionsKey)); err != nil {
			trace.Error(trace.FromContext(ctx), "cache.put", err, trace.ParentFrom(ctx))
		}
	}
	emit(opts.Progress, Event{File: luaPath, Stage: StageSync, Status: StatusDone, Elapsed: res.Elapsed})
	return res
}

func fresh(c *DiskCache, luaPath string, optionsKey source.Digest) bool {
	var e Entry
	ok, err := c.Get(luaPath, &e)
	if err != nil || !ok {
		return false
	}
	snap, err := TakeSnapshot(&e, optionsKey)
	if err != nil {
		return false
	}
	return Fresh(&e, snap)
}

// Discover expands command-line paths into companion files. Files are taken
// as given. Directories are walked recursively and contribute every ".lua"
// file that has a ".p8" next to it, so included libraries are not synced on
// their own. The result is sorted and free of duplicates.
func Discover(paths []string) ([]string, error) {
	if len(paths) == 0 {
		paths = []string{"."}
	}
	seen := make(map[string]struct{})
	var out []string
	add := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}

	for _, root := range paths {
		st, err := os.Stat(root)
		if err != nil {
			return nil, err
		}
		if !st.IsDir() {
			if !cart.IsCompanion(root) {
				return nil, fmt.Errorf("%s: not a %s file", root, cart.CompanionExt)
			}
			add(filepath.Clean(root))
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !cart.IsCompanion(path) {
				return nil
			}
			if _, err := os.Stat(cart.CartPath(path)); err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil
				}
				return err
			}
			add(path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(out)
	return out, nil
}
