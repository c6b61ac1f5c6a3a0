package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/nhle/noticeboard/internal/model"
	"github.com/nhle/noticeboard/internal/session"
)

type SessionCmd struct {
	flags *Flags
	app   *App

	// login flags
	role  string
	token string
	user  string
}

// NewSessionCmd creates the login and logout commands.
func NewSessionCmd(flags *Flags, a *App) *SessionCmd {
	return &SessionCmd{flags: flags, app: a}
}

// Register adds login, logout and whoami to the application
func (cmd *SessionCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands,
		&cli.Command{
			Name:      "login",
			Usage:     "Store an API token and role for this machine",
			UsageText: "noticeboard login --role teacher --token <token> [--user <name>]",
			Description: `Writes the session file and stores the token in the system keyring.
A running dashboard picks up the change without restarting.`,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:        "role",
					Usage:       "viewer role (admin, teacher, student)",
					Required:    true,
					Destination: &cmd.role,
				},
				&cli.StringFlag{
					Name:        "token",
					Usage:       "API bearer token",
					Sources:     cli.EnvVars("NOTICEBOARD_TOKEN"),
					Required:    true,
					Destination: &cmd.token,
				},
				&cli.StringFlag{
					Name:        "user",
					Usage:       "display name",
					Destination: &cmd.user,
				},
			},
			Action: cmd.login,
		},
		&cli.Command{
			Name:      "logout",
			Usage:     "Remove the stored session and token",
			UsageText: "noticeboard logout",
			Action:    cmd.logout,
		},
		&cli.Command{
			Name:      "whoami",
			Usage:     "Show the current session",
			UsageText: "noticeboard whoami",
			Action:    cmd.whoami,
		},
	)

	return app
}

func (cmd *SessionCmd) login(_ context.Context, _ *cli.Command) error {
	role := model.ParseRole(cmd.role)
	if err := session.Login(cmd.app.Config.Session.Path, cmd.app.Tokens, role, cmd.token, cmd.user); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	fmt.Fprintf(os.Stdout, "Signed in as %s\n", role)
	return nil
}

func (cmd *SessionCmd) logout(_ context.Context, _ *cli.Command) error {
	if err := session.Logout(cmd.app.Config.Session.Path, cmd.app.Tokens); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	fmt.Fprintln(os.Stdout, "Signed out")
	return nil
}

func (cmd *SessionCmd) whoami(_ context.Context, _ *cli.Command) error {
	s := cmd.app.Sessions.Current()
	switch {
	case s.Authenticated():
		name := s.UserName
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Fprintf(os.Stdout, "%s, role %s\n", name, s.Role)
	case s.Role != "":
		fmt.Fprintf(os.Stdout, "role %s, but no valid token; run 'noticeboard login'\n", s.Role)
	default:
		fmt.Fprintln(os.Stdout, "signed out")
	}
	return nil
}
