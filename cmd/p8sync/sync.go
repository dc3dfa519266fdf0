package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"p8sync/internal/cartsync"
	"p8sync/internal/driver"
	"p8sync/internal/observ"
)

// cacheApp names the per-user cache directory.
const cacheApp = "p8sync"

var syncCmd = &cobra.Command{
	Use:   "sync [paths...]",
	Short: "Write preprocessed companion files into their cartridges",
	Long: `Sync every given .lua file into the .p8 next to it. Directories are
searched recursively for .lua files that have a cartridge beside them.
Without arguments the current directory is used.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().Int("jobs", 0, "max parallel syncs (0=auto)")
	syncCmd.Flags().Bool("no-cache", false, "neither consult nor update the sync cache")
	syncCmd.Flags().String("ui", "auto", "progress view (auto|on|off)")
	syncCmd.Flags().Bool("strict", false, "fail when the preprocessor reports warnings")
	addDefineFlag(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	quiet := quietFlag(cmd)
	timer := observ.NewTimer()

	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return err
	}
	noCache, err := cmd.Flags().GetBool("no-cache")
	if err != nil {
		return err
	}
	uiFlag, err := cmd.Flags().GetString("ui")
	if err != nil {
		return err
	}
	uiMode, err := readSwitch("ui", uiFlag)
	if err != nil {
		return err
	}
	strict, err := cmd.Flags().GetBool("strict")
	if err != nil {
		return err
	}
	defines, err := readDefines(cmd)
	if err != nil {
		return err
	}

	phase := timer.Begin("discover")
	start := "."
	if len(args) > 0 {
		start = args[0]
	}
	project, err := loadProject(start)
	if err != nil {
		return err
	}
	files, err := driver.Discover(args)
	if err != nil {
		return err
	}
	timer.End(phase, fmt.Sprintf("%d files", len(files)))
	if len(files) == 0 {
		if !quiet {
			fmt.Fprintln(cmd.OutOrStdout(), "no companion files found")
		}
		return nil
	}

	diags := newDiagnostics(cmd)
	opts, err := syncOptions(project.Config, defines, diags.Reporter)
	if err != nil {
		return err
	}
	syncer := cartsync.New(opts)

	var cache *driver.DiskCache
	if project.Config.Sync.Cache && !noCache {
		cache, err = driver.OpenDiskCache(cacheApp)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s cache disabled: %v\n", warningColor.Sprint("warning"), err)
			cache = nil
		}
	}

	dopts := driver.Options{Jobs: jobs, Cache: cache}
	useTUI := !quiet && uiMode.enabled(os.Stdout)

	phase = timer.Begin("sync")
	var results []driver.PairResult
	if useTUI {
		results, err = runSyncWithUI(ctx, "p8sync sync", syncer, files, dopts)
	} else {
		results, err = driver.SyncAll(ctx, syncer, files, dopts)
	}
	sum := driver.Summarize(results)
	timer.End(phase, fmt.Sprintf("%d written, %d skipped", sum.Written, sum.Skipped))
	for _, r := range results {
		timer.Track(formatPathForOutput(project.Root, r.Lua), r.Elapsed, resultWord(r))
	}

	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %v\n", errorColor.Sprint("error"), r.Err)
			continue
		}
		if !useTUI && !quiet {
			printResult(cmd.OutOrStdout(), project.Root, r)
		}
	}
	diags.print(cmd.ErrOrStderr(), project.Root, quiet)
	if !quiet {
		fmt.Fprintln(cmd.OutOrStdout(), formatSummary(sum))
	}
	printTimings(cmd, timer)

	if err != nil {
		return err
	}
	if sum.Failed > 0 {
		return fmt.Errorf("%d of %d files failed to sync", sum.Failed, sum.Total())
	}
	if diags.failed(strict) {
		return fmt.Errorf("preprocessor reported problems")
	}
	return nil
}

func resultWord(r driver.PairResult) string {
	switch {
	case r.Err != nil:
		return "error"
	case r.Skipped:
		return "cached"
	case r.Report.Status == cartsync.StatusUnchanged:
		return "unchanged"
	default:
		return "synced"
	}
}

// describeResult renders a successful pair without color.
func describeResult(root string, r driver.PairResult) string {
	lua := formatPathForOutput(root, r.Lua)
	if r.Skipped || r.Report.Status == cartsync.StatusUnchanged {
		return lua
	}
	line := fmt.Sprintf("%s -> %s", lua, formatPathForOutput(root, r.Report.Cart))
	if r.Report.Backup != "" {
		line += fmt.Sprintf(" (backup %s)", formatPathForOutput(root, r.Report.Backup))
	}
	return line
}

func printResult(out io.Writer, root string, r driver.PairResult) {
	word := resultWord(r)
	switch word {
	case "synced":
		word = okColor.Sprintf("%-9s", word)
	default:
		word = dimColor.Sprintf("%-9s", word)
	}
	fmt.Fprintf(out, "%s %s %s\n", word, describeResult(root, r), dimColor.Sprintf("%.1f ms", toMillis(r.Elapsed)))
}

func formatSummary(s driver.Summary) string {
	return fmt.Sprintf("%d synced, %d unchanged, %d cached, %d failed", s.Written, s.Unchanged, s.Skipped, s.Failed)
}
