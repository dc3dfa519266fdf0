package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"p8sync/internal/cartsync"
	"p8sync/internal/config"
	"p8sync/internal/diag"
	"p8sync/internal/source"
)

// loadProject finds p8sync.toml above start (a file or a directory).
// Without one the defaults apply and Root is the absolute start directory.
func loadProject(start string) (*config.File, error) {
	if start == "" {
		start = "."
	}
	if info, err := os.Stat(start); err == nil && !info.IsDir() {
		start = filepath.Dir(start)
	}
	file, err := config.Discover(start)
	if err != nil {
		return nil, err
	}
	if file.Root == "" {
		if abs, err := filepath.Abs(start); err == nil {
			file.Root = abs
		} else {
			file.Root = start
		}
	}
	return file, nil
}

// syncOptions merges the config file with the -D labels given on the
// command line.
func syncOptions(cfg config.Config, defines []string, rep diag.Reporter) (cartsync.Options, error) {
	opts := cfg.SyncOptions()
	for _, d := range defines {
		if strings.TrimSpace(d) == "" {
			return opts, fmt.Errorf("empty label in --define")
		}
		opts.Defines = append(opts.Defines, d)
	}
	opts.Reporter = rep
	return opts, nil
}

func addDefineFlag(cmd *cobra.Command) {
	cmd.Flags().StringArrayP("define", "D", nil, "define a label before the first line (repeatable)")
}

func readDefines(cmd *cobra.Command) ([]string, error) {
	return cmd.Flags().GetStringArray("define")
}

func quietFlag(cmd *cobra.Command) bool {
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	return err == nil && quiet
}

// formatPathForOutput shortens path to be relative to root when it lies
// inside it.
func formatPathForOutput(root, path string) string {
	if root == "" || path == "" {
		return path
	}
	rel, err := source.RelativePath(path, root)
	if err != nil || filepath.IsAbs(filepath.FromSlash(rel)) {
		return path
	}
	return rel
}
