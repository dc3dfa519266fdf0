package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/spf13/cobra"

	"p8sync/internal/cart"
	"p8sync/internal/cartsync"
	"p8sync/internal/driver"
	"p8sync/internal/source"
	"p8sync/internal/trace"
	"p8sync/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Bootstrap companions, then sync every save until interrupted",
	Long: `Watch creates a .lua companion for every cartridge that lacks one and
then re-syncs a cartridge whenever its companion, or a file the companion
includes, is saved. A deleted companion is recreated from its cartridge.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().Bool("recursive", true, "watch subdirectories too")
	watchCmd.Flags().Duration("debounce", watch.DefaultDebounce, "quiet period before a change is synced (0 disables)")
	addDefineFlag(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	project, err := loadProject(dir)
	if err != nil {
		return err
	}
	wopts := project.Config.WatchOptions()
	if cmd.Flags().Changed("recursive") {
		if wopts.Recursive, err = cmd.Flags().GetBool("recursive"); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("debounce") {
		d, err := cmd.Flags().GetDuration("debounce")
		if err != nil {
			return err
		}
		if d == 0 {
			d = -1
		}
		wopts.Debounce = d
	}
	defines, err := readDefines(cmd)
	if err != nil {
		return err
	}
	opts, err := syncOptions(project.Config, defines, nil)
	if err != nil {
		return err
	}

	h := newWatchHandler(opts, project.Root, cmd.OutOrStdout(), cmd.ErrOrStderr())
	h.quiet = quietFlag(cmd)
	h.limit = diagnosticsLimit(cmd)
	if project.Config.Sync.Cache {
		if h.cache, err = driver.OpenDiskCache(cacheApp); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s cache disabled: %v\n", warningColor.Sprint("warning"), err)
			h.cache = nil
		}
	}
	wopts.OnError = h.reportError

	w, err := watch.New(dir, h, wopts)
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	dirs := w.Dirs()
	sort.Strings(dirs)
	for _, d := range dirs {
		if err := h.Bootstrap(ctx, d); err != nil {
			h.reportError(err)
		}
	}
	companions, err := driver.Discover(dirs)
	if err != nil {
		return err
	}
	h.index(ctx, companions)

	if !h.quiet {
		fmt.Fprintf(h.out, "watching %s (%d directories, %d companions), ctrl+c to stop\n",
			formatPathForOutput(project.Root, dir), len(dirs), len(companions))
	}
	err = w.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// watchHandler performs watcher actions. It remembers which companions
// include which files so that saving an include re-syncs every cartridge
// built from it. Calls never overlap, so no locking is needed.
type watchHandler struct {
	opts  cartsync.Options
	root  string
	out   io.Writer
	err   io.Writer
	quiet bool
	limit int
	cache *driver.DiskCache
	key   source.Digest

	// include path -> companions that include it
	users map[string]map[string]struct{}
}

func newWatchHandler(opts cartsync.Options, root string, out, errOut io.Writer) *watchHandler {
	return &watchHandler{
		opts:  opts,
		root:  root,
		out:   out,
		err:   errOut,
		key:   driver.OptionsKey(opts),
		users: make(map[string]map[string]struct{}),
	}
}

// Sync re-syncs luaPath when it has a cartridge, then every companion
// known to include it.
func (h *watchHandler) Sync(ctx context.Context, luaPath string) error {
	lua := cleanAbs(luaPath)
	var targets []string
	if _, err := os.Stat(cart.CartPath(lua)); err == nil {
		targets = append(targets, lua)
	}
	targets = append(targets, h.dependents(lua)...)

	var errs []error
	for _, t := range targets {
		if err := h.syncOne(ctx, t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *watchHandler) Bootstrap(ctx context.Context, dir string) error {
	created, err := cartsync.New(h.opts).Bootstrap(ctx, dir)
	if !h.quiet {
		for _, p := range created {
			fmt.Fprintf(h.out, "%s %s\n", okColor.Sprintf("%-9s", "created"), formatPathForOutput(h.root, p))
		}
	}
	return err
}

func (h *watchHandler) syncOne(ctx context.Context, lua string) error {
	diags := newDiagnosticsLimit(h.limit)
	opts := h.opts
	opts.Reporter = diags.Reporter

	res := driver.PairResult{Lua: lua}
	res.Report, res.Err = cartsync.New(opts).Sync(ctx, lua)
	diags.print(h.err, h.root, h.quiet)
	if res.Err != nil {
		dumpRecent(ctx, h.err)
		return res.Err
	}

	h.record(lua, res.Report.Includes)
	if h.cache != nil {
		if err := h.cache.Put(lua, driver.EntryFromReport(res.Report, h.key)); err != nil {
			trace.Error(trace.FromContext(ctx), "cache.put", err, trace.ParentFrom(ctx))
		}
	}
	if !h.quiet {
		printResult(h.out, h.root, res)
	}
	return nil
}

// index records the includes of companions without writing anything.
func (h *watchHandler) index(ctx context.Context, companions []string) {
	syncer := cartsync.New(h.opts)
	for _, lua := range companions {
		exp, err := syncer.Expand(ctx, lua)
		if err != nil {
			// сообщим при первом сохранении
			continue
		}
		h.record(cleanAbs(lua), exp.Includes)
	}
}

func (h *watchHandler) record(lua string, includes []cartsync.Include) {
	for _, set := range h.users {
		delete(set, lua)
	}
	for _, inc := range includes {
		p := cleanAbs(inc.Path)
		set, ok := h.users[p]
		if !ok {
			set = make(map[string]struct{})
			h.users[p] = set
		}
		set[lua] = struct{}{}
	}
}

func (h *watchHandler) dependents(path string) []string {
	var out []string
	for lua := range h.users[path] {
		if lua != path {
			out = append(out, lua)
		}
	}
	slices.Sort(out)
	return out
}

func (h *watchHandler) reportError(err error) {
	fmt.Fprintf(h.err, "%s %v\n", errorColor.Sprint("error"), err)
}

func cleanAbs(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
