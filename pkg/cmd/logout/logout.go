package logout

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/fieldapp-client/pkg/cmd/util"
)

func NewLogoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "ends the session and removes the stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return util.Run(cmd.Context(), func(ctx context.Context, app *util.App) error {
				return logout(ctx, app, cmd.OutOrStdout())
			})
		},
	}
	return cmd
}

func logout(ctx context.Context, app *util.App, out io.Writer) error {
	app.Session.Restore(ctx)
	app.Session.Logout(ctx)
	return util.Print(out, app.Session.State())
}
