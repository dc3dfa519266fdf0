package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"p8sync/internal/prof"
	"p8sync/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "p8sync",
	Short: "Keep PICO-8 cartridges in sync with their Lua companion files",
	Long: `p8sync preprocesses <name>.lua companion files (--#include, --#define,
--#if, comment stripping, syntax sugar) and writes the result into the
__lua__ section of <name>.p8, leaving every other section untouched.`,
	SilenceUsage:      true,
	PersistentPreRunE: setupRoot,
}

// Set by setupRoot, released once the command returns.
var (
	traceCleanup func()
	profSession  *prof.Session
)

// main registers subcommands and persistent flags and executes the root
// command. Interrupts cancel the command context; any error exits with 1.
func main() {
	rootCmd.Version = version.String()

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(bootstrapCmd)
	rootCmd.AddCommand(expandCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(versionCmd)

	// Глобальные флаги
	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress non-essential output")
	rootCmd.PersistentFlags().Bool("timings", false, "show timing information")
	rootCmd.PersistentFlags().Int("max-diagnostics", 100, "maximum number of diagnostics to show")

	rootCmd.PersistentFlags().String("trace", "", "write trace events to a file (\"-\" for stderr)")
	rootCmd.PersistentFlags().String("trace-level", "off", "trace level (off|error|phase|detail|debug)")
	rootCmd.PersistentFlags().String("trace-mode", "stream", "trace mode (stream|ring|both)")
	rootCmd.PersistentFlags().Int("trace-ring-size", 4096, "events kept in ring mode")
	rootCmd.PersistentFlags().Duration("trace-heartbeat", 0, "emit a heartbeat event at this interval (0 disables)")

	rootCmd.PersistentFlags().String("cpuprofile", "", "write a CPU profile to this file")
	rootCmd.PersistentFlags().String("memprofile", "", "write a heap profile to this file on exit")
	rootCmd.PersistentFlags().String("runtime-trace", "", "write a Go runtime trace to this file")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if traceCleanup != nil {
		traceCleanup()
	}
	if perr := profSession.Stop(); perr != nil {
		fmt.Fprintf(os.Stderr, "profile: %v\n", perr)
	}
	if err != nil {
		os.Exit(1)
	}
}

func setupRoot(cmd *cobra.Command, _ []string) error {
	colorFlag, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return err
	}
	mode, err := readSwitch("color", colorFlag)
	if err != nil {
		return err
	}
	color.NoColor = !mode.enabled(os.Stdout)

	cleanup, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	traceCleanup = cleanup

	cfg, err := readProfileFlags(cmd)
	if err != nil {
		return err
	}
	if cfg.Enabled() {
		if profSession, err = prof.Start(cfg); err != nil {
			return fmt.Errorf("profile: %w", err)
		}
	}
	return nil
}

func readProfileFlags(cmd *cobra.Command) (prof.Config, error) {
	flags := cmd.Root().PersistentFlags()
	var (
		cfg prof.Config
		err error
	)
	if cfg.CPU, err = flags.GetString("cpuprofile"); err != nil {
		return cfg, err
	}
	if cfg.Mem, err = flags.GetString("memprofile"); err != nil {
		return cfg, err
	}
	cfg.Trace, err = flags.GetString("runtime-trace")
	return cfg, err
}

// isTerminal проверяет, является ли файл терминалом
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
