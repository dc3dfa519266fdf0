package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"p8sync/internal/cartsync"
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap [dir]",
	Short: "Create a .lua companion for every cartridge that has none",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBootstrap,
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 && args[0] != "" {
		dir = args[0]
	}
	project, err := loadProject(dir)
	if err != nil {
		return err
	}
	opts, err := syncOptions(project.Config, nil, nil)
	if err != nil {
		return err
	}

	created, err := cartsync.New(opts).Bootstrap(cmd.Context(), dir)
	if !quietFlag(cmd) {
		for _, p := range created {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", okColor.Sprintf("%-9s", "created"), formatPathForOutput(project.Root, p))
		}
		if len(created) == 0 && err == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "every cartridge already has a companion")
		}
	}
	return err
}
