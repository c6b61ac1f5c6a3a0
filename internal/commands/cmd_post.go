package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/urfave/cli/v3"

	"github.com/nhle/noticeboard/internal/gateway"
	"github.com/nhle/noticeboard/internal/model"
)

type PostCmd struct {
	flags *Flags
	app   *App

	// flags
	title    string
	message  string
	audience string
	expires  time.Duration
}

// NewPostCmd creates the authoring commands: post, edit and retract.
func NewPostCmd(flags *Flags, a *App) *PostCmd {
	return &PostCmd{flags: flags, app: a}
}

// Register adds the authoring commands to the application
func (cmd *PostCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands,
		&cli.Command{
			Name:      "post",
			Usage:     "Publish a new notice",
			UsageText: "noticeboard post [--title T --message M --audience A]",
			Description: `Opens a form for any field not given as a flag.
Audience is one of: all, admin, teacher, student.`,
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "title", Destination: &cmd.title},
				&cli.StringFlag{Name: "message", Destination: &cmd.message},
				&cli.StringFlag{Name: "audience", Destination: &cmd.audience},
				&cli.DurationFlag{
					Name:        "expires-in",
					Usage:       "hide the notice after this long (e.g. 72h)",
					Destination: &cmd.expires,
				},
			},
			Action: cmd.post,
		},
		&cli.Command{
			Name:      "edit",
			Usage:     "Change the title, message or audience of a notice",
			UsageText: "noticeboard edit <id> [--title T] [--message M] [--audience A]",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "title", Destination: &cmd.title},
				&cli.StringFlag{Name: "message", Destination: &cmd.message},
				&cli.StringFlag{Name: "audience", Destination: &cmd.audience},
			},
			Action: cmd.edit,
		},
		&cli.Command{
			Name:      "retract",
			Usage:     "Delete a notice",
			UsageText: "noticeboard retract <id>",
			Action:    cmd.retract,
		},
	)

	return app
}

func (cmd *PostCmd) post(ctx context.Context, _ *cli.Command) error {
	if cmd.title == "" || cmd.message == "" || cmd.audience == "" {
		if err := cmd.form().Run(); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return nil
			}
			return fmt.Errorf("post form: %w", err)
		}
	}

	req := gateway.CreateRequest{
		Title:    strings.TrimSpace(cmd.title),
		Message:  strings.TrimSpace(cmd.message),
		Audience: model.Audience(strings.ToLower(strings.TrimSpace(cmd.audience))),
	}
	if cmd.expires > 0 {
		at := time.Now().Add(cmd.expires).UTC()
		req.ExpiresAt = &at
	}

	n, err := cmd.app.Gateway.Create(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Posted %q to %s (id %s)\n", n.Title, n.Audience, n.ID)
	return nil
}

// form collects whatever post fields were not passed as flags.
func (cmd *PostCmd) form() *huh.Form {
	if cmd.audience == "" {
		cmd.audience = string(model.AudienceAll)
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Title").
				Description("Shown in the toast and the notice list").
				Value(&cmd.title).
				Validate(func(s string) error {
					if len(strings.TrimSpace(s)) < 3 {
						return errors.New("title must be at least 3 characters")
					}
					return nil
				}),
			huh.NewText().
				Title("Message").
				Value(&cmd.message).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("message is required")
					}
					return nil
				}),
			huh.NewSelect[string]().
				Title("Audience").
				Description("Who should see this notice").
				Options(
					huh.NewOption("Everyone", string(model.AudienceAll)),
					huh.NewOption("Admins", string(model.RoleAdmin)),
					huh.NewOption("Teachers", string(model.RoleTeacher)),
					huh.NewOption("Students", string(model.RoleStudent)),
				).
				Value(&cmd.audience),
		),
	)
}

func (cmd *PostCmd) edit(ctx context.Context, c *cli.Command) error {
	id := c.Args().First()
	if id == "" {
		return errors.New("edit: notice id is required")
	}

	var req gateway.UpdateRequest
	if c.IsSet("title") {
		req.Title = &cmd.title
	}
	if c.IsSet("message") {
		req.Message = &cmd.message
	}
	if c.IsSet("audience") {
		aud := model.Audience(strings.ToLower(cmd.audience))
		req.Audience = &aud
	}
	if req.Title == nil && req.Message == nil && req.Audience == nil {
		return errors.New("edit: nothing to change")
	}

	n, err := cmd.app.Gateway.Update(ctx, id, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Updated %s: %q (%s)\n", n.ID, n.Title, n.Audience)
	return nil
}

func (cmd *PostCmd) retract(ctx context.Context, c *cli.Command) error {
	id := c.Args().First()
	if id == "" {
		return errors.New("retract: notice id is required")
	}
	if err := cmd.app.Gateway.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Retracted %s\n", id)
	return nil
}
