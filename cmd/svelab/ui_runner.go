package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"svelab/internal/driver"
	"svelab/internal/ui"
)

type elabOutcome struct {
	results []*driver.Result
	err     error
}

// runElabWithUI elaborates runs while a progress view draws on stderr.
func runElabWithUI(ctx context.Context, title string, runs []driver.Options, jobs int) ([]*driver.Result, error) {
	events := make(chan driver.PhaseEvent, 256)
	outcomeCh := make(chan elabOutcome, 1)

	names := make([]string, len(runs))
	for i := range runs {
		names[i] = runs[i].Name
		runs[i].Observer = func(ev driver.PhaseEvent) { events <- ev }
	}

	go func() {
		results, err := driver.ElaborateAll(ctx, runs, jobs)
		outcomeCh <- elabOutcome{results: results, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, names, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stderr))
	_, uiErr := program.Run()
	// the view may quit early; workers must never block on events
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
