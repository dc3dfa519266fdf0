package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"p8sync/internal/diag"
)

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	infoColor    = color.New(color.FgCyan)
	okColor      = color.New(color.FgGreen)
	dimColor     = color.New(color.Faint)
)

// diagnostics collects preprocessor findings of one command. Reporter is
// safe for concurrent use by the batch driver.
type diagnostics struct {
	bag      *diag.Bag
	Reporter diag.Reporter
}

func newDiagnostics(cmd *cobra.Command) *diagnostics {
	return newDiagnosticsLimit(diagnosticsLimit(cmd))
}

func diagnosticsLimit(cmd *cobra.Command) int {
	limit, err := cmd.Root().PersistentFlags().GetInt("max-diagnostics")
	if err != nil {
		return 0
	}
	return limit
}

// newDiagnosticsLimit keeps at most limit entries; 0 means the Bag default.
func newDiagnosticsLimit(limit int) *diagnostics {
	bag := diag.NewBag(limit)
	return &diagnostics{
		bag:      bag,
		Reporter: diag.NewLockedReporter(diag.NewDedupReporter(diag.BagReporter{Bag: bag})),
	}
}

// print writes the collected diagnostics sorted by position, with file
// names shortened against root. Info entries are dropped when quiet is set.
func (d *diagnostics) print(out io.Writer, root string, quiet bool) {
	d.bag.Sort()
	for _, item := range d.bag.Items() {
		if quiet && item.Severity < diag.SevWarning {
			continue
		}
		item.Primary.File = formatPathForOutput(root, item.Primary.File)
		printDiagnostic(out, item)
	}
	if d.bag.Len() >= d.bag.Cap() && !quiet {
		fmt.Fprintf(out, "%s\n", dimColor.Sprintf("stopped after %d diagnostics (--max-diagnostics)", d.bag.Cap()))
	}
}

// failed reports whether the findings should fail the command.
func (d *diagnostics) failed(strict bool) bool {
	return d.bag.HasErrors() || (strict && d.bag.HasWarnings())
}

func printDiagnostic(out io.Writer, d diag.Diagnostic) {
	line := d.FormatShort()
	label := d.Severity.Label()
	switch d.Severity {
	case diag.SevError:
		label = errorColor.Sprint(label)
	case diag.SevWarning:
		label = warningColor.Sprint(label)
	default:
		label = infoColor.Sprint(label)
	}
	fmt.Fprintln(out, label+strings.TrimPrefix(line, d.Severity.Label()))
}
