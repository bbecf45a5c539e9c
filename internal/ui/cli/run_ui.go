package cli

import (
	"apimatch/internal/core/app"
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
)

// RunUI watches paths and shows every batch in a terminal dashboard until
// the user quits or ctx is cancelled.
func RunUI(ctx context.Context, svc *app.Service, paths []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(initialModel(), tea.WithAltScreen(), tea.WithContext(ctx))

	go func() {
		err := svc.Watch(ctx, paths, func(report *app.Report) {
			p.Send(reportMsg{report: report})
		})
		if err != nil {
			p.Send(watchErrMsg{err: err})
		}
	}()

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
