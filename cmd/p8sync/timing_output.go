package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"p8sync/internal/observ"
)

// printTimings writes the timer summary to stderr when --timings is set.
func printTimings(cmd *cobra.Command, timer *observ.Timer) {
	show, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil || !show || timer == nil {
		return
	}
	fmt.Fprint(cmd.ErrOrStderr(), timer.Summary())
}
