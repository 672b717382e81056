package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/fieldapp-client/log"
	"github.com/mpapenbr/fieldapp-client/pkg/cmd/util"
)

var (
	method string
	data   string
)

var ErrSessionEnded = errors.New("session ended, please login again")

func NewFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch path",
		Short: "sends an authenticated request and prints the response body",
		Long: `sends an authenticated request to the backend.
Relative paths are placed below base url and api prefix, absolute URLs are used as is.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return util.Run(cmd.Context(), func(ctx context.Context, app *util.App) error {
				return fetch(ctx, app, args[0], cmd.OutOrStdout())
			})
		},
	}
	cmd.Flags().StringVarP(&method, "method", "X", http.MethodGet, "HTTP method")
	cmd.Flags().StringVarP(&data, "data", "d", "", "request body")
	return cmd
}

func fetch(ctx context.Context, app *util.App, path string, out io.Writer) error {
	if snap := app.Session.Restore(ctx); !snap.SignedIn() {
		log.Warn("not signed in, sending request without token")
	}
	var body io.Reader
	if data != "" {
		body = strings.NewReader(data)
	}
	resp, err := app.Gateway.Fetch(ctx, strings.ToUpper(method), path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return ErrSessionEnded
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
