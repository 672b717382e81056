package status

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/fieldapp-client/pkg/cmd/util"
)

var refresh bool

func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "restores the stored session and prints it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return util.Run(cmd.Context(), func(ctx context.Context, app *util.App) error {
				return status(ctx, app, cmd.OutOrStdout())
			})
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false,
		"reload user and scope after the restore")
	return cmd
}

func status(ctx context.Context, app *util.App, out io.Writer) error {
	snap := app.Session.Restore(ctx)
	if refresh && snap.SignedIn() {
		var err error
		if snap, err = app.Session.Refresh(ctx); err != nil {
			return err
		}
	}
	return util.Print(out, snap)
}
