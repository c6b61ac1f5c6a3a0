package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/nhle/noticeboard/internal/model"
	notifysync "github.com/nhle/noticeboard/internal/sync"
)

// errNotSignedIn is returned by commands that need an authenticated session.
var errNotSignedIn = errors.New("not signed in; run 'noticeboard login' first")

type ListCmd struct {
	flags *Flags
	app   *App

	// flags
	jsonOutput bool
}

// NewListCmd creates a new list command
func NewListCmd(flags *Flags, a *App) *ListCmd {
	return &ListCmd{flags: flags, app: a}
}

// Register adds the list command to the application
func (cmd *ListCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "list",
		Aliases:   []string{"ls"},
		Usage:     "Fetch once and print the notices visible to the signed-in role",
		UsageText: "noticeboard list [--json]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output the snapshot as JSON",
				Destination: &cmd.jsonOutput,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *ListCmd) run(ctx context.Context, _ *cli.Command) error {
	s := cmd.app.Sessions.Current()
	if !s.Authenticated() {
		return errNotSignedIn
	}

	snap, err := fetchOnce(ctx, cmd.app.Poller, s)
	if err != nil {
		return err
	}

	if cmd.jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}
	return printSnapshot(os.Stdout, snap)
}

// fetchOnce starts the poller for s, waits for the first applied fetch
// and stops it again.
func fetchOnce(ctx context.Context, p *notifysync.Poller, s model.Session) (notifysync.Snapshot, error) {
	updates, unsubscribe := p.Subscribe()
	defer unsubscribe()

	p.Start(s)
	defer p.Stop()

	for {
		select {
		case <-ctx.Done():
			return notifysync.Snapshot{}, ctx.Err()
		case snap := <-updates:
			if snap.State != notifysync.StatePolling || snap.Loading {
				continue
			}
			if snap.Error != "" {
				return snap, errors.New(snap.Error)
			}
			if !snap.LastFetched.IsZero() {
				return snap, nil
			}
		}
	}
}

// printSnapshot writes a human-readable table of snap to w.
func printSnapshot(w io.Writer, snap notifysync.Snapshot) error {
	if len(snap.Items) == 0 {
		_, err := fmt.Fprintf(w, "No notices for %s.\n", snap.Role)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tAUDIENCE\tCREATED\tTITLE")
	for _, n := range snap.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", n.ID, n.Audience, n.CreatedAt.Local().Format("2006-01-02 15:04"), n.Title)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n%d new for %s", snap.UnreadCount, snap.Role)
	if snap.ActiveToast != nil {
		fmt.Fprintf(w, " (latest: %s)", snap.ActiveToast.Title)
	}
	_, err := fmt.Fprintln(w)
	return err
}
