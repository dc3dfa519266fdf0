package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"p8sync/internal/cart"
	"p8sync/internal/driver"
)

var cleanCmd = &cobra.Command{
	Use:   "clean [dir]",
	Short: "Remove cartridge backups and cached sync state",
	Long: `Clean deletes the cartridge backups below dir (game.p8.bak with the
configured suffix) and forgets the cached state of the companions found
there. With --all the whole per-user cache is removed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runClean,
}

func init() {
	cleanCmd.Flags().Bool("all", false, "remove the whole sync cache, not just entries under dir")
	cleanCmd.Flags().Bool("dry-run", false, "list what would be removed")
}

func runClean(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 && args[0] != "" {
		dir = args[0]
	}
	all, err := cmd.Flags().GetBool("all")
	if err != nil {
		return err
	}
	dryRun, err := cmd.Flags().GetBool("dry-run")
	if err != nil {
		return err
	}
	project, err := loadProject(dir)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	quiet := quietFlag(cmd)
	verb := "removed"
	if dryRun {
		verb = "would remove"
	}

	backups, err := findBackups(dir, project.Config.Sync.BackupSuffix)
	if err != nil {
		return err
	}
	for _, p := range backups {
		if !dryRun {
			if err := os.Remove(p); err != nil {
				return fmt.Errorf("failed to remove %q: %w", p, err)
			}
		}
		if !quiet || dryRun {
			fmt.Fprintf(out, "%s %s\n", verb, formatPathForOutput(project.Root, p))
		}
	}

	cache, err := driver.OpenDiskCache(cacheApp)
	if err != nil {
		return err
	}
	if all {
		if !dryRun {
			if err := cache.DropAll(); err != nil {
				return err
			}
		}
		if !quiet || dryRun {
			fmt.Fprintf(out, "%s %s\n", verb, cache.Dir())
		}
		return nil
	}
	companions, err := driver.Discover([]string{dir})
	if err != nil {
		return err
	}
	if !dryRun {
		for _, lua := range companions {
			if err := cache.Drop(lua); err != nil {
				return err
			}
		}
	}
	if !quiet && len(companions) > 0 {
		fmt.Fprintf(out, "forgot cached state of %d companions\n", len(companions))
	}
	return nil
}

// findBackups lists "<name>.p8<suffix>" files below dir, skipping hidden
// directories.
func findBackups(dir, suffix string) ([]string, error) {
	if suffix == "" {
		suffix = ".bak"
	}
	var out []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		name := d.Name()
		if strings.HasSuffix(name, suffix) && cart.IsCart(strings.TrimSuffix(name, suffix)) {
			out = append(out, path)
		}
		return nil
	})
	return out, err
}
