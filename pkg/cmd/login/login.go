package login

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/fieldapp-client/log"
	"github.com/mpapenbr/fieldapp-client/pkg/cmd/util"
	"github.com/mpapenbr/fieldapp-client/pkg/session"
)

var (
	username   string
	password   string
	rememberMe bool
	force      bool
)

func NewLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "signs in and stores the token for later commands",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if username == "" || password == "" {
				return errors.New("username and password are required")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return util.Run(cmd.Context(),
				func(ctx context.Context, app *util.App) error {
					return login(ctx, app, cmd.OutOrStdout())
				},
				util.WithSessionOptions(session.WithRememberMe(rememberMe)))
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "user name")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	cmd.Flags().BoolVar(&rememberMe, "remember-me", true,
		"ask the backend for a long lived token")
	cmd.Flags().BoolVar(&force, "force", false,
		"sign out a current session before signing in")
	return cmd
}

func login(ctx context.Context, app *util.App, out io.Writer) error {
	snap := app.Session.Restore(ctx)
	if snap.SignedIn() {
		if !force {
			return fmt.Errorf("%w as %s, use --force to switch the user",
				session.ErrAlreadySignedIn, snap.User.Username)
		}
		app.Session.Logout(ctx)
	}
	user, err := app.Session.Login(ctx, username, password)
	if err != nil {
		log.Error("login failed", log.ErrorField(err))
		return err
	}
	log.Info("signed in", log.String("user", user.DisplayName()))
	return util.Print(out, app.Session.State())
}
