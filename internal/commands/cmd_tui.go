package commands

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/nhle/noticeboard/internal/app"
)

type TuiCmd struct {
	flags *Flags
	app   *App
}

// NewTuiCmd creates the interactive dashboard command.
func NewTuiCmd(flags *Flags, a *App) *TuiCmd {
	return &TuiCmd{flags: flags, app: a}
}

// Run follows the session file, polls while signed in and renders the
// badge, panel and toast until the user quits.
func (cmd *TuiCmd) Run(ctx context.Context, _ *cli.Command) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates, unsubscribe := cmd.app.Poller.Subscribe()
	defer unsubscribe()

	sessions := cmd.app.Sessions.Watch(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		cmd.app.Poller.Run(ctx, sessions)
	}()

	user := cmd.app.Sessions.Current().UserName
	program := tea.NewProgram(app.New(cmd.app.Poller, updates, user), tea.WithAltScreen(), tea.WithContext(ctx))

	_, err := program.Run()
	cancel()
	<-done
	if err != nil {
		return fmt.Errorf("run dashboard: %w", err)
	}
	return nil
}
