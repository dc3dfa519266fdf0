package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"p8sync/internal/cart"
	"p8sync/internal/cartsync"
)

var expandCmd = &cobra.Command{
	Use:   "expand <file.lua>",
	Short: "Print the preprocessed code of a companion file",
	Long: `Expand runs the preprocessor on a .lua file and prints the code that a
sync would write into the cartridge. Nothing is written.`,
	Args: cobra.ExactArgs(1),
	RunE: runExpand,
}

func init() {
	expandCmd.Flags().Bool("labels", false, "print the labels still defined at the end to stderr")
	addDefineFlag(expandCmd)
}

func runExpand(cmd *cobra.Command, args []string) error {
	path := args[0]
	if !cart.IsCompanion(path) {
		return fmt.Errorf("%s is not a %s file", path, cart.CompanionExt)
	}
	defines, err := readDefines(cmd)
	if err != nil {
		return err
	}
	showLabels, err := cmd.Flags().GetBool("labels")
	if err != nil {
		return err
	}
	project, err := loadProject(path)
	if err != nil {
		return err
	}

	diags := newDiagnostics(cmd)
	opts, err := syncOptions(project.Config, defines, diags.Reporter)
	if err != nil {
		return err
	}
	exp, err := cartsync.New(opts).Expand(cmd.Context(), path)
	diags.print(cmd.ErrOrStderr(), project.Root, quietFlag(cmd))
	if err != nil {
		return err
	}

	writeCode(cmd.OutOrStdout(), exp.Result.Text)
	if showLabels {
		fmt.Fprintf(cmd.ErrOrStderr(), "labels: %s\n", strings.Join(exp.Result.Defined, " "))
	}
	return nil
}

// writeCode prints code followed by exactly one newline.
func writeCode(out io.Writer, code string) {
	fmt.Fprint(out, code)
	if !strings.HasSuffix(code, "\n") {
		fmt.Fprintln(out)
	}
}
