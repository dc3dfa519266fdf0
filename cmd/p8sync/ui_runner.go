package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"p8sync/internal/cartsync"
	"p8sync/internal/driver"
	"p8sync/internal/ui"
)

type syncOutcome struct {
	results []driver.PairResult
	err     error
}

// runSyncWithUI runs driver.SyncAll while a progress view consumes its
// events. The view exits when the event channel closes.
func runSyncWithUI(ctx context.Context, title string, s *cartsync.Syncer, files []string, opts driver.Options) ([]driver.PairResult, error) {
	events := make(chan driver.Event, 256)
	outcomeCh := make(chan syncOutcome, 1)

	go func() {
		optsCopy := opts
		optsCopy.Progress = driver.ChannelSink{Ch: events}
		res, err := driver.SyncAll(ctx, s, files, optsCopy)
		outcomeCh <- syncOutcome{results: res, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, files, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	// view may quit early on ctrl+c; keep the sink from blocking
	go func() {
		for range events {
		}
	}()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.results, uiErr
	}
	return outcome.results, outcome.err
}
