package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

type ReadCmd struct {
	flags *Flags
	app   *App
}

// NewReadCmd creates a new read command
func NewReadCmd(flags *Flags, a *App) *ReadCmd {
	return &ReadCmd{flags: flags, app: a}
}

// Register adds the read command to the application
func (cmd *ReadCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "read",
		Usage:     "Mark every notice as read for the signed-in role",
		UsageText: "noticeboard read",
		Action:    cmd.run,
	})

	return app
}

func (cmd *ReadCmd) run(ctx context.Context, _ *cli.Command) error {
	s := cmd.app.Sessions.Current()
	if s.Role == "" {
		return errNotSignedIn
	}

	at, err := cmd.app.Marks.MarkSeenNow(ctx, s.Role)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}

	fmt.Fprintf(os.Stdout, "Marked all notices read for %s as of %s\n", s.Role, at.Local().Format("2006-01-02 15:04:05"))
	return nil
}
